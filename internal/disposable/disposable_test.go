package disposable_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/savannahghi/idrclient/internal/disposable"
	"github.com/savannahghi/idrclient/internal/idrerrors"
)

type fake struct {
	disposable.Base
	releases int
	err      error
}

func (f *fake) Dispose() error {
	return f.DisposeOnce(func() error {
		f.releases++
		return f.err
	})
}

func TestDisposeOnceIdempotent(t *testing.T) {
	f := &fake{}

	require.False(t, f.IsDisposed())

	require.NoError(t, f.Dispose())
	require.NoError(t, f.Dispose())
	require.NoError(t, f.Dispose())

	assert.Equal(t, 1, f.releases)
	assert.True(t, f.IsDisposed())
}

func TestDisposeOnceReturnsFirstError(t *testing.T) {
	releaseErr := errors.New("boom")
	f := &fake{err: releaseErr}

	require.ErrorIs(t, f.Dispose(), releaseErr)
	require.ErrorIs(t, f.Dispose(), releaseErr)

	assert.Equal(t, 1, f.releases)
}

func TestGuardRejectsPostDisposeAccess(t *testing.T) {
	f := &fake{}

	require.NoError(t, f.Guard("fake"))

	require.NoError(t, f.Dispose())

	err := f.Guard("fake")
	require.Error(t, err)

	var disposedErr *idrerrors.ResourceDisposedError
	require.ErrorAs(t, err, &disposedErr)
	assert.Equal(t, "fake", disposedErr.Resource)
}
