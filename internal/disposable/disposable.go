// Package disposable implements the scoped-acquisition/guaranteed-release
// discipline shared by every driver-backed entity in the ETL kernel:
// data sources, data sinks, streams, processors, factories, suppliers and
// consumers.
package disposable

import (
	"sync"
	"sync/atomic"

	"github.com/savannahghi/idrclient/internal/idrerrors"
)

// Disposable is implemented by anything that owns an external resource that
// must be released exactly once, idempotently, with post-disposal operations
// rejected.
type Disposable interface {
	// IsDisposed reports whether Dispose has run.
	IsDisposed() bool

	// Dispose releases the underlying resource. It is safe to call more
	// than once; only the first call does any work. It never panics, but
	// may return the first release error it observed.
	Dispose() error
}

// Base is embedded by concrete disposables to get idempotent Dispose/
// IsDisposed bookkeeping. The embedding type supplies the actual release
// logic via Base.DisposeOnce from within its own Dispose method, e.g.:
//
//	type Conn struct {
//		disposable.Base
//		conn *sql.DB
//	}
//
//	func (c *Conn) Dispose() error {
//		return c.DisposeOnce(func() error { return c.conn.Close() })
//	}
type Base struct {
	once     sync.Once
	disposed atomic.Bool
	err      error
}

// IsDisposed reports whether this Base's DisposeOnce has run.
func (b *Base) IsDisposed() bool {
	return b.disposed.Load()
}

// DisposeOnce runs release exactly once and marks the Base disposed
// regardless of whether release returns an error. Embedders with a real
// resource to release call this from their own Dispose method; embedders
// with nothing to release can use Dispose below directly.
func (b *Base) DisposeOnce(release func() error) error {
	b.once.Do(func() {
		defer b.disposed.Store(true)
		b.err = release()
	})

	return b.err
}

// Dispose satisfies Disposable for embedders that have no resource of their
// own to release beyond marking themselves disposed (e.g. in-memory
// fakes/tests). Embedders with real resources should shadow this method.
func (b *Base) Dispose() error {
	return b.DisposeOnce(func() error { return nil })
}

// Guard returns ResourceDisposedError when the receiver is already disposed,
// nil otherwise. Every disposable-guarded operation must call this first.
func (b *Base) Guard(resource string) error {
	if b.IsDisposed() {
		return &idrerrors.ResourceDisposedError{Resource: resource}
	}

	return nil
}
