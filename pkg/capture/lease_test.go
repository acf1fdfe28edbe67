package capture

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExclusive_SecondOpenFailsFast(t *testing.T) {
	mock := NewMock()
	ex := NewExclusive(&MockOpener{Source: mock})

	first, err := ex.Open(context.Background())
	require.NoError(t, err)
	assert.True(t, ex.Busy())

	_, err = ex.Open(context.Background())
	assert.ErrorIs(t, err, ErrSourceBusy)

	require.NoError(t, first.Release())
	assert.False(t, ex.Busy())

	second, err := ex.Open(context.Background())
	require.NoError(t, err)
	require.NoError(t, second.Release())
}

func TestExclusive_ReleaseIsIdempotent(t *testing.T) {
	mock := NewMock()
	ex := NewExclusive(&MockOpener{Source: mock})

	src, err := ex.Open(context.Background())
	require.NoError(t, err)

	require.NoError(t, src.Release())
	require.NoError(t, src.Release())
	assert.Equal(t, 1, mock.Releases())
	assert.False(t, ex.Busy())
}

func TestExclusive_OpenErrorReturnsLease(t *testing.T) {
	opener := &MockOpener{Err: errors.New("no camera")}
	ex := NewExclusive(opener)

	_, err := ex.Open(context.Background())
	assert.ErrorIs(t, err, ErrSourceUnavailable)
	assert.False(t, ex.Busy(), "failed open must not hold the lease")
}

func TestGuard_ReleasesOnce(t *testing.T) {
	mock := NewMock()
	src := Guard(mock)

	for i := 0; i < 3; i++ {
		_ = src.Release()
	}
	assert.Equal(t, 1, mock.Releases())
	assert.Same(t, src, Guard(src), "guarding twice should not re-wrap")
}
