package app

import (
	"testing"

	"video_rotate_service/internal/rotate/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateStore_Lifecycle(t *testing.T) {
	s := NewStateStore()
	assert.Equal(t, domain.PhaseIdle, s.Snapshot().Phase)

	s.Begin("run-1")
	st := s.Snapshot()
	assert.Equal(t, domain.PhaseProcessing, st.Phase)
	assert.Equal(t, 0.0, st.Progress)

	assert.True(t, s.Advance("run-1", 40))
	assert.False(t, s.Advance("run-1", 30), "lower value ignored")
	assert.False(t, s.Advance("run-1", 40), "equal value ignored")
	assert.False(t, s.Advance("run-0", 90), "stale run ignored")
	assert.True(t, s.Advance("run-1", 250))
	assert.Equal(t, 100.0, s.Snapshot().Progress)

	ref := domain.DownloadRef{URL: "/download/x", FileName: "output.mp4"}
	s.Finish("run-1", ref)
	st = s.Snapshot()
	assert.Equal(t, domain.PhaseDone, st.Phase)
	assert.Equal(t, 100.0, st.Progress)
	require.NotNil(t, st.Download)
	assert.Equal(t, "/download/x", st.Download.URL)

	assert.False(t, s.Advance("run-1", 100), "no progress after done")

	// next run starts from zero and keeps the last link
	s.Begin("run-2")
	st = s.Snapshot()
	assert.Equal(t, 0.0, st.Progress)
	require.NotNil(t, st.Download)

	s.Reset("run-1")
	assert.Equal(t, domain.PhaseProcessing, s.Snapshot().Phase, "reset of another run ignored")
	s.Reset("run-2")
	st = s.Snapshot()
	assert.Equal(t, domain.PhaseIdle, st.Phase)
	assert.Equal(t, 0.0, st.Progress)
}

func TestStateStore_Subscribe(t *testing.T) {
	s := NewStateStore()
	ch, cancel := s.Subscribe(2)

	first := <-ch
	assert.Equal(t, domain.PhaseIdle, first.Phase, "initial snapshot")

	s.Begin("r")
	s.Advance("r", 10)
	s.Advance("r", 20)
	s.Advance("r", 30)

	// buffer of 2 keeps the newest snapshots
	a := <-ch
	b := <-ch
	assert.Equal(t, 20.0, a.Progress)
	assert.Equal(t, 30.0, b.Progress)

	cancel()
	cancel()
	_, ok := <-ch
	assert.False(t, ok)

	s.Advance("r", 40)
}
