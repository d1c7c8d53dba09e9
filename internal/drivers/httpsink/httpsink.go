// Package httpsink is the reference DataSink driver (C5): each Consume call
// POSTs one CleanedData chunk to the sink's endpoint over net/http, guarded
// by a sony/gobreaker circuit breaker so a run of consecutive failures trips
// open and is surfaced as PermanentError rather than retried forever,
// independent of the retry engine's own budget (SPEC_FULL.md §2 domain
// stack table).
package httpsink

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/sony/gobreaker"

	"github.com/savannahghi/idrclient/internal/disposable"
	"github.com/savannahghi/idrclient/internal/etlmodel"
	"github.com/savannahghi/idrclient/internal/idrerrors"
)

// consecutiveFailureThreshold trips the breaker open.
const consecutiveFailureThreshold = 5

// Sink is a DataSink backed by one remote HTTP endpoint, shared across every
// workflow draining to it (§5: DataSinks must tolerate concurrent
// StartDrain calls).
type Sink struct {
	disposable.Base
	endpoint string
	client   *http.Client
	breaker  *gobreaker.CircuitBreaker[any]
}

// New builds a Sink for meta. A nil client defaults to http.DefaultClient.
func New(meta *etlmodel.DataSinkMeta, client *http.Client) *Sink {
	if client == nil {
		client = http.DefaultClient
	}

	settings := gobreaker.Settings{
		Name: meta.Name(),
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > consecutiveFailureThreshold
		},
	}

	return &Sink{
		endpoint: meta.Endpoint,
		client:   client,
		breaker:  gobreaker.NewCircuitBreaker[any](settings),
	}
}

// StartDrain opens a DrainStream posting chunks to this Sink's endpoint.
func (s *Sink) StartDrain(ctx context.Context, meta *etlmodel.DrainMeta) (etlmodel.DrainStream, error) {
	if err := s.Guard("httpsink.Sink"); err != nil {
		return nil, err
	}

	return &drainStream{sink: s, drainMeta: meta}, nil
}

// drainStream is owned exclusively by one workflow (§5); it carries no
// state of its own beyond which Sink and DrainMeta it's bound to.
type drainStream struct {
	disposable.Base
	sink      *Sink
	drainMeta *etlmodel.DrainMeta
}

func (d *drainStream) Dispose() error {
	return d.DisposeOnce(func() error { return nil })
}

// Consume POSTs data.Bytes with data.ContentType, classifying 5xx/network
// failures as TransientError (retried by the caller's retry engine) and
// 4xx/breaker-open failures as PermanentError.
func (d *drainStream) Consume(ctx context.Context, data etlmodel.CleanedData, progress float64) error {
	if err := d.Guard("httpsink.drainStream"); err != nil {
		return err
	}

	_, err := d.sink.breaker.Execute(func() (any, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.sink.endpoint, bytes.NewReader(data.Bytes))
		if err != nil {
			return nil, &idrerrors.PermanentError{Op: "httpsink.Consume", Err: err}
		}

		req.Header.Set("Content-Type", data.ContentType)
		req.Header.Set("X-Drain-Meta-Id", d.drainMeta.ID())
		req.Header.Set("X-Chunk-Index", strconv.Itoa(data.Index))
		req.Header.Set("X-Chunk-Progress", strconv.FormatFloat(progress, 'f', -1, 64))

		resp, err := d.sink.client.Do(req)
		if err != nil {
			return nil, &idrerrors.TransientError{Op: "httpsink.Consume", Err: err}
		}
		defer resp.Body.Close()

		_, _ = io.Copy(io.Discard, resp.Body)

		switch {
		case resp.StatusCode >= http.StatusInternalServerError:
			return nil, &idrerrors.TransientError{Op: "httpsink.Consume", Err: fmt.Errorf("sink responded %d", resp.StatusCode)}
		case resp.StatusCode >= http.StatusBadRequest:
			return nil, &idrerrors.PermanentError{Op: "httpsink.Consume", Err: fmt.Errorf("sink rejected chunk with %d", resp.StatusCode)}
		case resp.StatusCode >= http.StatusMultipleChoices:
			return nil, &idrerrors.PermanentError{Op: "httpsink.Consume", Err: fmt.Errorf("unexpected redirect status %d", resp.StatusCode)}
		}

		return nil, nil
	})

	if err == nil {
		return nil
	}

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return &idrerrors.PermanentError{Op: "httpsink.Consume", Err: err}
	}

	return err
}
