// Package httpmeta is the reference MetadataSupplier/MetadataConsumer/
// DrainMetaFactory driver (C7/C8): it talks to a coordinator's REST API
// over net/http, classifying 5xx/network errors as TransientError and 4xx
// as PermanentError, the same convention httpsink uses, and guarded by the
// same gobreaker circuit-breaking strategy for outbound calls.
package httpmeta

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"

	"github.com/savannahghi/idrclient/internal/disposable"
	"github.com/savannahghi/idrclient/internal/etlmodel"
	"github.com/savannahghi/idrclient/internal/idrerrors"
)

const consecutiveFailureThreshold = 5

// Client is a coordinator REST client implementing MetadataSupplier,
// MetadataConsumer, and DrainMetaFactory against one base URL.
type Client struct {
	disposable.Base
	baseURL string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[[]byte]
}

// New builds a Client against baseURL (no trailing slash expected). A nil
// httpClient defaults to http.DefaultClient.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	settings := gobreaker.Settings{
		Name: "httpmeta",
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > consecutiveFailureThreshold
		},
	}

	return &Client{
		baseURL: baseURL,
		client:  httpClient,
		breaker: gobreaker.NewCircuitBreaker[[]byte](settings),
	}
}

type dataSourceMetaDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type drawMetaDTO struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	Description  string            `json:"description"`
	DataSourceID string            `json:"data_source_id"`
	Spec         string            `json:"spec"`
	Hints        map[string]string `json:"hints"`
}

type dataSinkMetaDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Endpoint    string `json:"endpoint"`
	Dialect     string `json:"dialect"`
}

// DataSinkMetas implements etlmodel.MetadataSupplier.
func (c *Client) DataSinkMetas(ctx context.Context) ([]*etlmodel.DataSinkMeta, error) {
	if err := c.Guard("httpmeta.Client"); err != nil {
		return nil, err
	}

	var dtos []dataSinkMetaDTO

	if err := c.getJSON(ctx, "/data-sink-metas", &dtos); err != nil {
		return nil, err
	}

	metas := make([]*etlmodel.DataSinkMeta, 0, len(dtos))

	for _, d := range dtos {
		m, err := etlmodel.NewDataSinkMeta(d.ID, d.Name, d.Description, d.Endpoint, d.Dialect)
		if err != nil {
			return nil, &idrerrors.PermanentError{Op: "httpmeta.DataSinkMetas", Err: err}
		}

		metas = append(metas, m)
	}

	return metas, nil
}

// DataSourceMetas implements etlmodel.MetadataSupplier.
func (c *Client) DataSourceMetas(ctx context.Context) ([]*etlmodel.DataSourceMeta, error) {
	if err := c.Guard("httpmeta.Client"); err != nil {
		return nil, err
	}

	var dtos []dataSourceMetaDTO

	if err := c.getJSON(ctx, "/data-source-metas", &dtos); err != nil {
		return nil, err
	}

	metas := make([]*etlmodel.DataSourceMeta, 0, len(dtos))

	for _, d := range dtos {
		m, err := etlmodel.NewDataSourceMeta(d.ID, d.Name, d.Description)
		if err != nil {
			return nil, &idrerrors.PermanentError{Op: "httpmeta.DataSourceMetas", Err: err}
		}

		metas = append(metas, m)
	}

	return metas, nil
}

// DrawMetas implements etlmodel.MetadataSupplier.
func (c *Client) DrawMetas(ctx context.Context, source *etlmodel.DataSourceMeta) ([]*etlmodel.DrawMeta, error) {
	if err := c.Guard("httpmeta.Client"); err != nil {
		return nil, err
	}

	var dtos []drawMetaDTO

	path := fmt.Sprintf("/data-source-metas/%s/draw-metas", source.ID())
	if err := c.getJSON(ctx, path, &dtos); err != nil {
		return nil, err
	}

	draws := make([]*etlmodel.DrawMeta, 0, len(dtos))

	for _, d := range dtos {
		draw, err := etlmodel.NewDrawMeta(d.ID, d.Name, d.Description, d.Spec, d.Hints)
		if err != nil {
			return nil, &idrerrors.PermanentError{Op: "httpmeta.DrawMetas", Err: err}
		}

		draws = append(draws, draw)
	}

	return draws, nil
}

// TakeDrainMeta implements etlmodel.MetadataConsumer.
func (c *Client) TakeDrainMeta(ctx context.Context, meta *etlmodel.DrainMeta) error {
	if err := c.Guard("httpmeta.Client"); err != nil {
		return err
	}

	body, err := json.Marshal(struct {
		ID          string `json:"id"`
		DrawMetaID  string `json:"draw_meta_id"`
		ContentType string `json:"content_type"`
	}{ID: meta.ID(), DrawMetaID: meta.DrawMetaID, ContentType: meta.ContentType})
	if err != nil {
		return &idrerrors.PermanentError{Op: "httpmeta.TakeDrainMeta", Err: err}
	}

	_, err = c.do(ctx, http.MethodPost, "/drain-metas", body)

	return err
}

// New implements etlmodel.DrainMetaFactory by minting a client-side id via
// uuid.NewString; the coordinator only learns of the DrainMeta later,
// through TakeDrainMeta.
func (c *Client) New(ctx context.Context, draw *etlmodel.DrawMeta, contentType string) (*etlmodel.DrainMeta, error) {
	if err := c.Guard("httpmeta.Client"); err != nil {
		return nil, err
	}

	dm := etlmodel.NewDrainMetaForFactory(uuid.NewString(), draw.ID(), contentType)

	return dm, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	body, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, out); err != nil {
		return &idrerrors.PermanentError{Op: "httpmeta.getJSON", Err: err}
	}

	return nil
}

func (c *Client) do(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	body, err := c.breaker.Execute(func() ([]byte, error) {
		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}

		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return nil, &idrerrors.PermanentError{Op: "httpmeta.do", Err: err}
		}

		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.client.Do(req)
		if err != nil {
			return nil, &idrerrors.TransientError{Op: "httpmeta.do", Err: err}
		}
		defer resp.Body.Close()

		respBody, readErr := io.ReadAll(resp.Body)

		switch {
		case resp.StatusCode >= http.StatusInternalServerError:
			return nil, &idrerrors.TransientError{Op: "httpmeta.do", Err: fmt.Errorf("coordinator responded %d", resp.StatusCode)}
		case resp.StatusCode >= http.StatusBadRequest:
			return nil, &idrerrors.PermanentError{Op: "httpmeta.do", Err: fmt.Errorf("coordinator rejected request with %d", resp.StatusCode)}
		}

		if readErr != nil {
			return nil, &idrerrors.TransientError{Op: "httpmeta.do", Err: readErr}
		}

		return respBody, nil
	})

	// A tripped breaker means the closure above never ran, so its error
	// hasn't been classified yet: treat it as Transient, since the breaker
	// will close again once its cooldown elapses.
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, &idrerrors.TransientError{Op: "httpmeta.do", Err: err}
	}

	return body, err
}
