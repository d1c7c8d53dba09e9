package runner_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/savannahghi/idrclient/internal/disposable"
	"github.com/savannahghi/idrclient/internal/etlmodel"
	"github.com/savannahghi/idrclient/internal/idrerrors"
	"github.com/savannahghi/idrclient/internal/protocol"
	"github.com/savannahghi/idrclient/internal/retry"
	"github.com/savannahghi/idrclient/internal/runner"
	"github.com/savannahghi/idrclient/internal/signalbus"
)

func fastRetryConfig() retry.Config {
	cfg := retry.DefaultConfig()
	cfg.InitialDelay = time.Millisecond
	cfg.MaximumDelay = 2 * time.Millisecond

	return cfg
}

type fakeSupplier struct {
	disposable.Base
	sinkMetas   []*etlmodel.DataSinkMeta
	sourceMetas []*etlmodel.DataSourceMeta
	draws       map[string][]*etlmodel.DrawMeta
	drawErr     error
}

func (s *fakeSupplier) DataSinkMetas(context.Context) ([]*etlmodel.DataSinkMeta, error) {
	return s.sinkMetas, nil
}

func (s *fakeSupplier) DataSourceMetas(context.Context) ([]*etlmodel.DataSourceMeta, error) {
	return s.sourceMetas, nil
}

func (s *fakeSupplier) DrawMetas(_ context.Context, source *etlmodel.DataSourceMeta) ([]*etlmodel.DrawMeta, error) {
	if s.drawErr != nil {
		return nil, s.drawErr
	}

	return s.draws[source.ID()], nil
}

type noopSource struct {
	disposable.Base
}

func (noopSource) StartDraw(context.Context, *etlmodel.DrawMeta) (etlmodel.DrawStream, error) {
	return &noopDrawStream{}, nil
}

type noopDrawStream struct {
	disposable.Base
	done bool
}

func (s *noopDrawStream) Next(context.Context) (etlmodel.RawData, float64, bool, error) {
	if s.done {
		return etlmodel.RawData{}, 1.0, false, nil
	}

	s.done = true

	return etlmodel.RawData{Index: 0, Bytes: []byte("x")}, 1.0, true, nil
}

type noopSink struct {
	disposable.Base
}

func (noopSink) StartDrain(context.Context, *etlmodel.DrainMeta) (etlmodel.DrainStream, error) {
	return &noopDrainStream{}, nil
}

type noopDrainStream struct {
	disposable.Base
}

func (noopDrainStream) Consume(context.Context, etlmodel.CleanedData, float64) error { return nil }

type noopProcessor struct {
	disposable.Base
}

func (noopProcessor) Process(_ context.Context, raw etlmodel.RawData, _ *etlmodel.DrawMeta) (etlmodel.CleanedData, error) {
	return etlmodel.CleanedData{Index: raw.Index, Bytes: raw.Bytes}, nil
}

type countingDrainMetaFactory struct {
	disposable.Base
	mu    sync.Mutex
	count int
}

func (f *countingDrainMetaFactory) New(_ context.Context, draw *etlmodel.DrawMeta, contentType string) (*etlmodel.DrainMeta, error) {
	f.mu.Lock()
	f.count++
	id := fmt.Sprintf("dm-%d", f.count)
	f.mu.Unlock()

	return etlmodel.NewDrainMetaForFactory(id, draw.ID(), contentType), nil
}

func buildProtocol(t *testing.T, supplier *fakeSupplier) *protocol.ETLProtocol {
	t.Helper()

	return &protocol.ETLProtocol{
		ID: "test-protocol",
		DataSourceFactory: func(*etlmodel.DataSourceMeta) (etlmodel.DataSource, error) {
			return &noopSource{}, nil
		},
		DataSinkFactory: func(*etlmodel.DataSinkMeta) (etlmodel.DataSink, error) {
			return &noopSink{}, nil
		},
		ProcessorFactory: func() (etlmodel.ExtractProcessor, error) {
			return &noopProcessor{}, nil
		},
		MetadataSuppliers: []etlmodel.MetadataSupplier{supplier},
		DrainMetaFactory:  &countingDrainMetaFactory{},
	}
}

func TestRunProtocolHappyPath(t *testing.T) {
	srcMeta, err := etlmodel.NewDataSourceMeta("src-1", "source", "")
	require.NoError(t, err)

	sinkMeta, err := etlmodel.NewDataSinkMeta("sink-1", "sink", "", "https://example.test", "http")
	require.NoError(t, err)

	draw1, err := etlmodel.NewDrawMeta("draw-1", "draw1", "", "select 1", nil)
	require.NoError(t, err)

	draw2, err := etlmodel.NewDrawMeta("draw-2", "draw2", "", "select 2", nil)
	require.NoError(t, err)

	supplier := &fakeSupplier{
		sinkMetas:   []*etlmodel.DataSinkMeta{sinkMeta},
		sourceMetas: []*etlmodel.DataSourceMeta{srcMeta},
		draws:       map[string][]*etlmodel.DrawMeta{"src-1": {draw1, draw2}},
	}

	p := buildProtocol(t, supplier)

	r := runner.New(runner.Options{RetryConfig: fastRetryConfig()})

	result, err := r.RunProtocol(context.Background(), p)

	require.NoError(t, err)
	assert.Equal(t, 2, result.TotalWorkflows)
	assert.Empty(t, result.FailedWorkflows)
	assert.False(t, result.Cancelled)
}

func TestRunProtocolProceedsWhenOneSourceDiscoveryFails(t *testing.T) {
	goodSrc, err := etlmodel.NewDataSourceMeta("src-good", "good", "")
	require.NoError(t, err)

	badSupplier := &fakeSupplier{
		sourceMetas: []*etlmodel.DataSourceMeta{goodSrc},
		drawErr:     &idrerrors.TransientError{Op: "test", Err: errors.New("coordinator down")},
	}

	p := buildProtocol(t, badSupplier)

	cfg := fastRetryConfig()
	deadline := 20 * time.Millisecond
	cfg = cfg.WithDeadline(deadline)

	r := runner.New(runner.Options{RetryConfig: cfg})

	result, err := r.RunProtocol(context.Background(), p)

	require.Error(t, err)
	assert.Equal(t, 0, result.TotalWorkflows)
	assert.False(t, result.Cancelled)
	require.Len(t, result.DiscoveryErrors, 1)

	var deadlineErr *idrerrors.RetryDeadlineExceededError
	assert.ErrorAs(t, result.DiscoveryErrors[0], &deadlineErr)
}

func TestRunProtocolRecordsFailedWorkflows(t *testing.T) {
	srcMeta, err := etlmodel.NewDataSourceMeta("src-1", "source", "")
	require.NoError(t, err)

	draw, err := etlmodel.NewDrawMeta("draw-1", "draw", "", "select 1", nil)
	require.NoError(t, err)

	supplier := &fakeSupplier{
		sourceMetas: []*etlmodel.DataSourceMeta{srcMeta},
		draws:       map[string][]*etlmodel.DrawMeta{"src-1": {draw}},
	}

	p := buildProtocol(t, supplier)
	p.DataSourceFactory = func(*etlmodel.DataSourceMeta) (etlmodel.DataSource, error) {
		return &failingSource{}, nil
	}

	r := runner.New(runner.Options{RetryConfig: fastRetryConfig()})

	result, err := r.RunProtocol(context.Background(), p)

	require.Error(t, err)
	require.Len(t, result.FailedWorkflows, 1)
	assert.Equal(t, "draw-1", result.FailedWorkflows[0].DrawMetaID)
}

type failingSource struct {
	disposable.Base
}

func (failingSource) StartDraw(context.Context, *etlmodel.DrawMeta) (etlmodel.DrawStream, error) {
	return nil, &idrerrors.PermanentError{Op: "test", Err: errors.New("cannot open draw")}
}

func TestRunProtocolEmitsSignals(t *testing.T) {
	srcMeta, err := etlmodel.NewDataSourceMeta("src-1", "source", "")
	require.NoError(t, err)

	draw, err := etlmodel.NewDrawMeta("draw-1", "draw", "", "select 1", nil)
	require.NoError(t, err)

	supplier := &fakeSupplier{
		sourceMetas: []*etlmodel.DataSourceMeta{srcMeta},
		draws:       map[string][]*etlmodel.DrawMeta{"src-1": {draw}},
	}

	p := buildProtocol(t, supplier)

	var (
		mu   sync.Mutex
		seen []signalbus.Kind
	)

	bus := signalbus.New()
	bus.Subscribe(func(sig signalbus.Signal) {
		mu.Lock()
		seen = append(seen, sig.Kind)
		mu.Unlock()
	})

	r := runner.New(runner.Options{RetryConfig: fastRetryConfig(), Bus: bus})

	_, err = r.RunProtocol(context.Background(), p)
	require.NoError(t, err)

	assert.Contains(t, seen, signalbus.PreProtocolRun)
	assert.Contains(t, seen, signalbus.PostProtocolRun)
	assert.Contains(t, seen, signalbus.PreWorkflowRun)
	assert.Contains(t, seen, signalbus.PostWorkflowRun)
}
