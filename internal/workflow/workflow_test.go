package workflow_test

import (
	"context"
	"errors"
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
	"github.com/savannahghi/idrclient/internal/workflow"
)

func fastRetryConfig() retry.Config {
	cfg := retry.DefaultConfig()
	cfg.InitialDelay = time.Millisecond
	cfg.MaximumDelay = 2 * time.Millisecond

	return cfg
}

type fakeDrawStream struct {
	disposable.Base
	chunks [][]byte
	index  int
}

func (s *fakeDrawStream) Next(context.Context) (etlmodel.RawData, float64, bool, error) {
	if s.index >= len(s.chunks) {
		return etlmodel.RawData{}, 1.0, false, nil
	}

	data := etlmodel.RawData{Index: s.index, Bytes: s.chunks[s.index]}
	s.index++

	progress := float64(s.index) / float64(len(s.chunks))

	return data, progress, true, nil
}

type fakeSource struct {
	disposable.Base
	chunks [][]byte
}

func (s *fakeSource) StartDraw(context.Context, *etlmodel.DrawMeta) (etlmodel.DrawStream, error) {
	return &fakeDrawStream{chunks: s.chunks}, nil
}

type fakeDrainStream struct {
	disposable.Base
	mu          sync.Mutex
	consumed    []etlmodel.CleanedData
	failTimes   int
	transientOp func() error
}

func (d *fakeDrainStream) Consume(_ context.Context, data etlmodel.CleanedData, _ float64) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.failTimes > 0 {
		d.failTimes--
		return &idrerrors.TransientError{Op: "fake.Consume", Err: errors.New("flaky sink")}
	}

	d.consumed = append(d.consumed, data)

	return nil
}

type fakeSink struct {
	disposable.Base
	stream *fakeDrainStream
}

func (s *fakeSink) StartDrain(context.Context, *etlmodel.DrainMeta) (etlmodel.DrainStream, error) {
	return s.stream, nil
}

type passthroughProcessor struct {
	disposable.Base
}

func (p *passthroughProcessor) Process(_ context.Context, raw etlmodel.RawData, _ *etlmodel.DrawMeta) (etlmodel.CleanedData, error) {
	return etlmodel.CleanedData{Index: raw.Index, Bytes: raw.Bytes, ContentType: "text/plain"}, nil
}

func passthroughFactory() protocol.ProcessorFactory {
	return func() (etlmodel.ExtractProcessor, error) {
		return &passthroughProcessor{}, nil
	}
}

type fakeDrainMetaFactory struct {
	disposable.Base
}

func (f *fakeDrainMetaFactory) New(_ context.Context, draw *etlmodel.DrawMeta, contentType string) (*etlmodel.DrainMeta, error) {
	return etlmodel.NewDrainMetaForFactory("dm-1", draw.ID(), contentType), nil
}

type fakeConsumer struct {
	disposable.Base
	mu     sync.Mutex
	acked  []*etlmodel.DrainMeta
	ackErr error
}

func (c *fakeConsumer) TakeDrainMeta(_ context.Context, meta *etlmodel.DrainMeta) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ackErr != nil {
		return c.ackErr
	}

	c.acked = append(c.acked, meta)

	return nil
}

func mustDrawMeta(t *testing.T) *etlmodel.DrawMeta {
	t.Helper()

	dm, err := etlmodel.NewDrawMeta("draw-1", "draw", "", "select 1", nil)
	require.NoError(t, err)

	return dm
}

func TestRunHappyPath(t *testing.T) {
	source := &fakeSource{chunks: [][]byte{[]byte("a"), []byte("b"), []byte("c")}}
	stream := &fakeDrainStream{}
	sink := &fakeSink{stream: stream}
	consumer := &fakeConsumer{}

	meta, err := etlmodel.NewDataSinkMeta("sink-1", "sink", "", "https://example.test", "http")
	require.NoError(t, err)

	wf, err := workflow.New(workflow.Config{
		DrawMeta:          mustDrawMeta(t),
		DataSource:        source,
		Sinks:             []workflow.SinkHandle{{Meta: meta, Sink: sink}},
		ProcessorFactory:  passthroughFactory(),
		DrainMetaFactory:  &fakeDrainMetaFactory{},
		MetadataConsumers: []etlmodel.MetadataConsumer{consumer},
		DataSinkSelector:  protocol.SelectAllSinks,
		RetryConfig:       fastRetryConfig(),
	})
	require.NoError(t, err)

	outcome := wf.Run(context.Background())

	require.Equal(t, workflow.StateDone, outcome.State)
	require.NoError(t, outcome.Err)

	require.Len(t, stream.consumed, 3)
	assert.Equal(t, 0, stream.consumed[0].Index)
	assert.Equal(t, 1, stream.consumed[1].Index)
	assert.Equal(t, 2, stream.consumed[2].Index)

	require.Len(t, consumer.acked, 1)
	assert.Equal(t, "dm-1", consumer.acked[0].ID())
}

func TestRunRetriesTransientSinkFailure(t *testing.T) {
	source := &fakeSource{chunks: [][]byte{[]byte("a")}}
	stream := &fakeDrainStream{failTimes: 2}
	sink := &fakeSink{stream: stream}

	meta, err := etlmodel.NewDataSinkMeta("sink-1", "sink", "", "https://example.test", "http")
	require.NoError(t, err)

	wf, err := workflow.New(workflow.Config{
		DrawMeta:         mustDrawMeta(t),
		DataSource:       source,
		Sinks:            []workflow.SinkHandle{{Meta: meta, Sink: sink}},
		ProcessorFactory: passthroughFactory(),
		DrainMetaFactory: &fakeDrainMetaFactory{},
		DataSinkSelector: protocol.SelectAllSinks,
		RetryConfig:      fastRetryConfig(),
	})
	require.NoError(t, err)

	outcome := wf.Run(context.Background())

	require.Equal(t, workflow.StateDone, outcome.State)
	require.Len(t, stream.consumed, 1)
}

func TestRunFailsOnPermanentSinkError(t *testing.T) {
	source := &fakeSource{chunks: [][]byte{[]byte("a")}}
	failingSink := &permanentFailSink{}

	meta, err := etlmodel.NewDataSinkMeta("sink-1", "sink", "", "https://example.test", "http")
	require.NoError(t, err)

	wf, err := workflow.New(workflow.Config{
		DrawMeta:         mustDrawMeta(t),
		DataSource:       source,
		Sinks:            []workflow.SinkHandle{{Meta: meta, Sink: failingSink}},
		ProcessorFactory: passthroughFactory(),
		DrainMetaFactory: &fakeDrainMetaFactory{},
		DataSinkSelector: protocol.SelectAllSinks,
		RetryConfig:      fastRetryConfig(),
	})
	require.NoError(t, err)

	outcome := wf.Run(context.Background())

	require.Equal(t, workflow.StateFailed, outcome.State)

	var permErr *idrerrors.PermanentError
	assert.ErrorAs(t, outcome.Err, &permErr)
}

type permanentFailDrainStream struct {
	disposable.Base
}

func (p *permanentFailDrainStream) Consume(context.Context, etlmodel.CleanedData, float64) error {
	return &idrerrors.PermanentError{Op: "fake.Consume", Err: errors.New("rejected")}
}

type permanentFailSink struct {
	disposable.Base
}

func (s *permanentFailSink) StartDrain(context.Context, *etlmodel.DrainMeta) (etlmodel.DrainStream, error) {
	return &permanentFailDrainStream{}, nil
}

func TestRunRespectsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	source := &fakeSource{chunks: [][]byte{[]byte("a"), []byte("b")}}
	stream := &fakeDrainStream{}
	sink := &fakeSink{stream: stream}

	meta, err := etlmodel.NewDataSinkMeta("sink-1", "sink", "", "https://example.test", "http")
	require.NoError(t, err)

	wf, err := workflow.New(workflow.Config{
		DrawMeta:         mustDrawMeta(t),
		DataSource:       source,
		Sinks:            []workflow.SinkHandle{{Meta: meta, Sink: sink}},
		ProcessorFactory: passthroughFactory(),
		DrainMetaFactory: &fakeDrainMetaFactory{},
		DataSinkSelector: protocol.SelectAllSinks,
		RetryConfig:      fastRetryConfig(),
	})
	require.NoError(t, err)

	outcome := wf.Run(ctx)

	require.Equal(t, workflow.StateFailed, outcome.State)

	var cancelledErr *idrerrors.CancelledError
	assert.ErrorAs(t, outcome.Err, &cancelledErr)
}
