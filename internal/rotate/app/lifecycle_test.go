package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"video_rotate_service/internal/rotate/domain"
	"video_rotate_service/internal/rotate/engine"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	blobs []engine.Blob
	err   error
	calls int
}

func (f *fakeFetcher) FetchAll(context.Context, []engine.ResourceSpec) ([]engine.Blob, error) {
	f.calls++
	return f.blobs, f.err
}

func TestLifecycle_Initialize(t *testing.T) {
	eng := newFakeEngine()
	l := NewLifecycle(eng, nil, nil)

	assert.Equal(t, "idle", l.Status())
	assert.Empty(t, l.Version(), "no version before load")
	_, err := l.Engine()
	assert.ErrorIs(t, err, domain.ErrEngineNotReady)

	require.NoError(t, l.Initialize(context.Background()))
	assert.True(t, l.Ready())
	assert.Equal(t, "ready", l.Status())
	require.NoError(t, l.WaitReady(context.Background()))
	assert.Equal(t, "ffmpeg version 6.1-fake", l.Version())

	got, err := l.Engine()
	require.NoError(t, err)
	assert.Same(t, eng, got)

	assert.ErrorIs(t, l.Initialize(context.Background()), domain.ErrAlreadyInitialized)
	assert.True(t, l.Ready(), "second call changes nothing")
}

func TestLifecycle_FetchFailureIsTerminal(t *testing.T) {
	boom := errors.New("404")
	fetcher := &fakeFetcher{err: boom}
	l := NewLifecycle(newFakeEngine(), fetcher, []engine.ResourceSpec{{Name: "ffmpeg", URL: "https://example.invalid/ffmpeg"}})

	err := l.Initialize(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "failed", l.Status())
	assert.ErrorIs(t, l.Err(), boom)
	assert.ErrorIs(t, l.WaitReady(context.Background()), boom)

	_, err = l.Engine()
	assert.ErrorIs(t, err, domain.ErrEngineNotReady)

	// no automatic retry
	assert.ErrorIs(t, l.Initialize(context.Background()), domain.ErrAlreadyInitialized)
	assert.Equal(t, 1, fetcher.calls)
}

func TestLifecycle_ResourcesWithoutFetcher(t *testing.T) {
	l := NewLifecycle(newFakeEngine(), nil, []engine.ResourceSpec{{Name: "ffmpeg", URL: "file:///opt/ffmpeg"}})
	assert.Error(t, l.Initialize(context.Background()))
	assert.False(t, l.Ready())
}

func TestLifecycle_WaitReadyHonoursContext(t *testing.T) {
	l := NewLifecycle(newFakeEngine(), nil, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, l.WaitReady(ctx), context.DeadlineExceeded)
}
