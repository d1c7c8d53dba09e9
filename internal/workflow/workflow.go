// Package workflow drives one extract end to end: mint a DrainMeta, open
// the draw stream and the selected drain streams, pull and deliver chunks
// in order, acknowledge completion, and dispose everything — the per-extract
// state machine described as component C10.
package workflow

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/savannahghi/idrclient/internal/disposable"
	"github.com/savannahghi/idrclient/internal/etlmodel"
	"github.com/savannahghi/idrclient/internal/idrerrors"
	"github.com/savannahghi/idrclient/internal/mlog"
	"github.com/savannahghi/idrclient/internal/protocol"
	"github.com/savannahghi/idrclient/internal/retry"
	"github.com/savannahghi/idrclient/internal/tracing"
)

// defaultContentType is used when a Config leaves ContentType blank,
// matching the reference parquetproc processor's declared MIME type (§6.4).
const defaultContentType = "application/vnd.apache-parquet"

// SinkHandle pairs a materialized DataSink with the DataSinkMeta it was
// built from, so the selector (§4.4) can choose sinks by metadata while the
// workflow still drains to the live handle.
type SinkHandle struct {
	Meta *etlmodel.DataSinkMeta
	Sink etlmodel.DataSink
}

// Config is everything one Workflow run needs. New rejects a nil DrawMeta,
// DataSource, ProcessorFactory, DrainMetaFactory or DataSinkSelector; Sinks,
// MetadataConsumers and ContentType may be left empty, and RetryConfig is
// validated by each retry.Do call during Run.
type Config struct {
	DrawMeta          *etlmodel.DrawMeta
	DataSource        etlmodel.DataSource
	Sinks             []SinkHandle
	ProcessorFactory  protocol.ProcessorFactory
	DrainMetaFactory  etlmodel.DrainMetaFactory
	MetadataConsumers []etlmodel.MetadataConsumer
	DataSinkSelector  protocol.DataSinkSelector
	RetryConfig       retry.Config
	// ContentType overrides the default MIME type the minted DrainMeta is
	// tagged with.
	ContentType string
}

// Outcome is what Run returns instead of panicking: the terminal State
// reached and, for StateFailed, the error that caused it.
type Outcome struct {
	State State
	Err   error
}

// Workflow is a single-use per-extract state machine. Construct one with New
// per (DataSource, DrawMeta) pair; Run must be called exactly once.
type Workflow struct {
	cfg   Config
	state State
}

// New validates cfg and returns a Workflow ready to Run.
func New(cfg Config) (*Workflow, error) {
	switch {
	case cfg.DrawMeta == nil:
		return nil, errWorkflowField("DrawMeta")
	case cfg.DataSource == nil:
		return nil, errWorkflowField("DataSource")
	case cfg.ProcessorFactory == nil:
		return nil, errWorkflowField("ProcessorFactory")
	case cfg.DrainMetaFactory == nil:
		return nil, errWorkflowField("DrainMetaFactory")
	case cfg.DataSinkSelector == nil:
		return nil, errWorkflowField("DataSinkSelector")
	}

	return &Workflow{cfg: cfg, state: StateNew}, nil
}

// State returns the workflow's current state.
func (w *Workflow) State() State { return w.state }

// Run drives the full §4.5 execution sequence. It never panics; failures at
// any step surface as Outcome.Err with Outcome.State == StateFailed.
func (w *Workflow) Run(ctx context.Context) Outcome {
	ctx, span := tracing.StartSpan(ctx, "workflow.Run",
		attribute.String("draw_meta.id", w.cfg.DrawMeta.ID()))
	defer span.End()

	logger := mlog.FromContext(ctx).WithFields("draw_meta_id", w.cfg.DrawMeta.ID())

	if err := w.enter(StateDrawing); err != nil {
		return w.fail(span, err)
	}

	var scope disposable.MultiScope
	defer func() {
		if err := scope.Close(); err != nil {
			logger.Warnf("workflow teardown encountered an error: %s", err.Error())
		}
	}()

	contentType := w.cfg.ContentType
	if contentType == "" {
		contentType = defaultContentType
	}

	var drainMeta *etlmodel.DrainMeta

	mintErr := retry.Do(ctx, w.cfg.RetryConfig, func(ctx context.Context) error {
		dm, err := w.cfg.DrainMetaFactory.New(ctx, w.cfg.DrawMeta, contentType)
		if err != nil {
			return err
		}

		drainMeta = dm

		return nil
	})
	if mintErr != nil {
		return w.fail(span, mintErr)
	}

	drawStream, err := w.cfg.DataSource.StartDraw(ctx, w.cfg.DrawMeta)
	if err != nil {
		return w.fail(span, err)
	}

	scope.Enter(drawStream)

	selected := w.selectSinks(drainMeta)

	drainStreams := make([]etlmodel.DrainStream, 0, len(selected))

	for _, h := range selected {
		ds, err := h.Sink.StartDrain(ctx, drainMeta)
		if err != nil {
			return w.fail(span, err)
		}

		scope.Enter(ds)

		drainStreams = append(drainStreams, ds)
	}

	if err := w.enter(StateDraining); err != nil {
		return w.fail(span, err)
	}

	if err := w.deliver(ctx, logger, drawStream, drainStreams); err != nil {
		return w.fail(span, err)
	}

	for _, consumer := range w.cfg.MetadataConsumers {
		consumer := consumer

		ackErr := retry.Do(ctx, w.cfg.RetryConfig, func(ctx context.Context) error {
			return consumer.TakeDrainMeta(ctx, drainMeta)
		})
		if ackErr != nil {
			return w.fail(span, ackErr)
		}
	}

	if err := w.enter(StateDone); err != nil {
		return w.fail(span, err)
	}

	return Outcome{State: StateDone}
}

// selectSinks applies the protocol's DataSinkSelector once, before any
// chunk is pulled (§4.5 step 3), against a zero-value CleanedData — the
// selector's data parameter only matters to selectors that key off sink
// metadata and drain metadata, not chunk content, since drain streams are
// opened before the first chunk exists.
func (w *Workflow) selectSinks(drainMeta *etlmodel.DrainMeta) []SinkHandle {
	metas := make([]*etlmodel.DataSinkMeta, 0, len(w.cfg.Sinks))
	bySink := make(map[*etlmodel.DataSinkMeta]SinkHandle, len(w.cfg.Sinks))

	for _, h := range w.cfg.Sinks {
		metas = append(metas, h.Meta)
		bySink[h.Meta] = h
	}

	chosen := w.cfg.DataSinkSelector(metas, drainMeta, etlmodel.CleanedData{})

	selected := make([]SinkHandle, 0, len(chosen))
	for _, m := range chosen {
		if h, ok := bySink[m]; ok {
			selected = append(selected, h)
		}
	}

	return selected
}

// deliver runs the §4.5 step 4 pull/process/consume loop: one chunk is
// pulled, processed, and fanned out to every selected sink in order before
// the next chunk is pulled (no buffering beyond the current chunk).
func (w *Workflow) deliver(ctx context.Context, logger mlog.Logger, drawStream etlmodel.DrawStream, drainStreams []etlmodel.DrainStream) error {
	chunkCount := 0

	for {
		if ctx.Err() != nil {
			return &idrerrors.CancelledError{Op: "workflow.deliver"}
		}

		raw, progress, ok, err := drawStream.Next(ctx)
		if err != nil {
			return err
		}

		if !ok {
			if progress != 1.0 {
				logger.Warnf("draw stream exhausted at progress %v, expected 1.0", progress)
			}

			return nil
		}

		if raw.Index != chunkCount {
			logger.Warnf("draw stream produced out-of-order index %d, expected %d", raw.Index, chunkCount)
		}

		clean, err := w.processChunk(ctx, raw)
		if err != nil {
			return err
		}

		for _, ds := range drainStreams {
			ds := ds

			consumeErr := retry.Do(ctx, w.cfg.RetryConfig, func(ctx context.Context) error {
				return ds.Consume(ctx, clean, progress)
			})
			if consumeErr != nil {
				return consumeErr
			}
		}

		chunkCount++
	}
}

// processChunk builds a fresh, single-use processor (§4.5 step 4a) and
// disposes it immediately after transforming raw.
func (w *Workflow) processChunk(ctx context.Context, raw etlmodel.RawData) (etlmodel.CleanedData, error) {
	proc, err := w.cfg.ProcessorFactory()
	if err != nil {
		return etlmodel.CleanedData{}, err
	}

	var clean etlmodel.CleanedData

	err = disposable.Scope(proc, func() error {
		c, err := proc.Process(ctx, raw, w.cfg.DrawMeta)
		if err != nil {
			return err
		}

		clean = c

		return nil
	})

	return clean, err
}

func (w *Workflow) enter(to State) error {
	if err := transition(w.state, to); err != nil {
		return err
	}

	w.state = to

	return nil
}

func (w *Workflow) fail(span trace.Span, err error) Outcome {
	tracing.RecordError(span, "workflow run failed", err)

	w.state = StateFailed

	return Outcome{State: StateFailed, Err: err}
}

func errWorkflowField(field string) error {
	return &idrerrors.ImproperlyConfiguredError{Field: field, Message: "must be set on workflow.Config"}
}
