package disposable_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/savannahghi/idrclient/internal/disposable"
)

func TestScopeDisposesAfterSuccess(t *testing.T) {
	f := &fake{}

	err := disposable.Scope(f, func() error { return nil })

	require.NoError(t, err)
	assert.True(t, f.IsDisposed())
}

func TestScopeReturnsDisposeErrorWhenFnSucceeds(t *testing.T) {
	disposeErr := errors.New("release failed")
	f := &fake{err: disposeErr}

	err := disposable.Scope(f, func() error { return nil })

	require.ErrorIs(t, err, disposeErr)
}

func TestScopePreservesFnErrorOverDisposeError(t *testing.T) {
	fnErr := errors.New("fn failed")
	f := &fake{err: errors.New("dispose also failed")}

	err := disposable.Scope(f, func() error { return fnErr })

	require.ErrorIs(t, err, fnErr)
	assert.True(t, f.IsDisposed())
}

func TestScopeDisposesOnPanic(t *testing.T) {
	f := &fake{}

	assert.Panics(t, func() {
		_ = disposable.Scope(f, func() error { panic("boom") })
	})

	assert.True(t, f.IsDisposed())
}

func TestMultiScopeClosesInLIFOOrder(t *testing.T) {
	var order []int

	var scope disposable.MultiScope

	for i := 0; i < 3; i++ {
		i := i
		scope.Enter(&orderedDisposable{onDispose: func() { order = append(order, i) }})
	}

	require.NoError(t, scope.Close())
	assert.Equal(t, []int{2, 1, 0}, order)
}

func TestMultiScopeCloseCollectsFirstErrorButDisposesAll(t *testing.T) {
	var disposed []string

	var scope disposable.MultiScope

	scope.Enter(&orderedDisposable{onDispose: func() { disposed = append(disposed, "a") }})
	scope.Enter(&orderedDisposable{err: errors.New("b failed"), onDispose: func() { disposed = append(disposed, "b") }})
	scope.Enter(&orderedDisposable{err: errors.New("c failed"), onDispose: func() { disposed = append(disposed, "c") }})

	err := scope.Close()

	require.EqualError(t, err, "c failed")
	assert.Equal(t, []string{"c", "b", "a"}, disposed)
}

type orderedDisposable struct {
	err       error
	onDispose func()
}

func (o *orderedDisposable) IsDisposed() bool { return false }

func (o *orderedDisposable) Dispose() error {
	o.onDispose()
	return o.err
}
