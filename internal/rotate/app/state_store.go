package app

import (
	"sync"

	"video_rotate_service/internal/rotate/domain"
	"video_rotate_service/pkg/metrics"
)

// StateStore 唯一的 ProcessingState
// 進度在同一個 run 內只增不減，每次 Begin 歸零；不屬於目前 run 的更新直接丟棄
type StateStore struct {
	mu     sync.Mutex
	state  domain.ProcessingState
	last   *domain.DownloadRef
	subs   map[int]chan domain.ProcessingState
	nextID int
}

// NewStateStore starts Idle
func NewStateStore() *StateStore {
	return &StateStore{
		state: domain.ProcessingState{Phase: domain.PhaseIdle},
		subs:  make(map[int]chan domain.ProcessingState),
	}
}

// Snapshot current state, Download is the last delivered output if any
func (s *StateStore) Snapshot() domain.ProcessingState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *StateStore) snapshotLocked() domain.ProcessingState {
	st := s.state
	if s.last != nil {
		ref := *s.last
		st.Download = &ref
	}
	return st
}

// Begin Processing(0) for runID
func (s *StateStore) Begin(runID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = domain.ProcessingState{Phase: domain.PhaseProcessing, Progress: 0, RunID: runID}
	metrics.RunProgress.Set(0)
	s.broadcastLocked()
}

// Advance raise progress of runID; lower or stale values are ignored
func (s *StateStore) Advance(runID string, pct float64) bool {
	if pct > 100 {
		pct = 100
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Phase != domain.PhaseProcessing || s.state.RunID != runID || pct <= s.state.Progress {
		return false
	}
	s.state.Progress = pct
	metrics.RunProgress.Set(pct)
	s.broadcastLocked()
	return true
}

// Finish Done(100) and remember the download
func (s *StateStore) Finish(runID string, ref domain.DownloadRef) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.RunID != runID {
		return
	}
	s.state = domain.ProcessingState{Phase: domain.PhaseDone, Progress: 100, RunID: runID}
	s.last = &ref
	metrics.RunProgress.Set(100)
	s.broadcastLocked()
}

// Reset back to Idle(0) after a failed run
func (s *StateStore) Reset(runID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.RunID != runID {
		return
	}
	s.state = domain.ProcessingState{Phase: domain.PhaseIdle, Progress: 0, RunID: runID}
	metrics.RunProgress.Set(0)
	s.broadcastLocked()
}

// Subscribe receive snapshots on every transition. The channel keeps only
// the newest snapshots when the reader falls behind. cancel closes it.
func (s *StateStore) Subscribe(buffer int) (<-chan domain.ProcessingState, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan domain.ProcessingState, buffer)

	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = ch
	ch <- s.snapshotLocked()
	s.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			close(ch)
			s.mu.Unlock()
		})
	}
	return ch, cancel
}

func (s *StateStore) broadcastLocked() {
	snap := s.snapshotLocked()
	for _, ch := range s.subs {
		select {
		case ch <- snap:
		default:
			// 丟掉最舊的一筆再放入最新狀態
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}
