package etlmodel

import (
	"context"

	"github.com/savannahghi/idrclient/internal/disposable"
)

// DataSource is a live handle on a logical source; it owns a driver
// connection and produces DrawStreams. The runner materializes one
// DataSource per DataSourceMeta and hands that same handle to every workflow
// drawing from it; those workflows run concurrently, so a DataSource must be
// safe for concurrent StartDraw calls returning independent streams. Only
// the DrawStreams are owned by a single workflow.
type DataSource interface {
	disposable.Disposable

	// StartDraw opens a DrawStream for the given DrawMeta. The returned
	// stream is lazy, finite, and non-restartable.
	StartDraw(ctx context.Context, meta *DrawMeta) (DrawStream, error)
}

// DrawStream is a pull-based, disposable iterator over (RawData, progress)
// pairs. Progress is in [0.0, 1.0]; the stream ends when progress reaches
// 1.0.
type DrawStream interface {
	disposable.Disposable

	// Next pulls the next chunk. ok is false with err nil once the stream
	// is exhausted (progress has reached 1.0); ok is false with err non-nil
	// on failure.
	Next(ctx context.Context) (data RawData, progress float64, ok bool, err error)
}

// DataSink is a live handle on a remote endpoint; it must be safe for
// concurrent StartDrain calls returning independent streams, since a single
// DataSink is shared across every workflow selected to drain to it (§5).
type DataSink interface {
	disposable.Disposable

	// StartDrain opens a DrainStream for the given DrainMeta. The returned
	// stream is owned exclusively by the caller — DrainStreams are never
	// shared across workflows.
	StartDrain(ctx context.Context, meta *DrainMeta) (DrainStream, error)
}

// DrainStream consumes (CleanedData, progress) pairs in arrival order. It is
// owned exclusively by one workflow.
type DrainStream interface {
	disposable.Disposable

	// Consume delivers one chunk. Implementations should classify failures
	// as TransientError or PermanentError so the retry engine wrapping this
	// call (§4.5 step 4c) can decide whether to retry.
	Consume(ctx context.Context, data CleanedData, progress float64) error
}

// ExtractProcessor transforms RawData into CleanedData for a given DrawMeta.
// It is stateful and single-use per extract: the workflow creates a fresh
// processor per chunk (§4.5 step 4a) and disposes it immediately after.
type ExtractProcessor interface {
	disposable.Disposable

	Process(ctx context.Context, data RawData, meta *DrawMeta) (CleanedData, error)
}

// MetadataSupplier pulls DataSourceMeta/DrawMeta/DataSinkMeta from the
// coordinator. Every operation is idempotent and safe to call repeatedly;
// each may fail with a TransientError (retried) or a PermanentError.
type MetadataSupplier interface {
	disposable.Disposable

	DataSinkMetas(ctx context.Context) ([]*DataSinkMeta, error)
	DataSourceMetas(ctx context.Context) ([]*DataSourceMeta, error)
	DrawMetas(ctx context.Context, source *DataSourceMeta) ([]*DrawMeta, error)
}

// MetadataConsumer acknowledges a completed upload back to the coordinator.
// Transient failures are retried; permanent failures surface to the runner.
type MetadataConsumer interface {
	disposable.Disposable

	TakeDrainMeta(ctx context.Context, meta *DrainMeta) error
}

// DrainMetaFactory mints a DrainMeta from a DrawMeta and a content-type
// before drain begins. It is the sole legitimate constructor of DrainMeta
// values (§3).
type DrainMetaFactory interface {
	disposable.Disposable

	New(ctx context.Context, draw *DrawMeta, contentType string) (*DrainMeta, error)
}
