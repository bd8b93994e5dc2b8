package engine

import (
	"bytes"
	"sync"
)

// LogHub fans engine log lines out to subscribers.
// Publish blocks on a subscriber with a full buffer until it reads or closes,
// so no line is dropped while a subscription is open.
type LogHub struct {
	mu   sync.RWMutex
	subs map[*LogSubscription]struct{}
}

// NewLogHub create LogHub
func NewLogHub() *LogHub {
	return &LogHub{subs: make(map[*LogSubscription]struct{})}
}

// LogSubscription 一個訂閱者
type LogSubscription struct {
	hub   *LogHub
	lines chan string
	done  chan struct{}
	once  sync.Once
}

// Subscribe register a new observer
func (h *LogHub) Subscribe(buffer int) *LogSubscription {
	if buffer < 0 {
		buffer = 0
	}
	s := &LogSubscription{
		hub:   h,
		lines: make(chan string, buffer),
		done:  make(chan struct{}),
	}
	h.mu.Lock()
	h.subs[s] = struct{}{}
	h.mu.Unlock()
	return s
}

// Publish deliver one line to every open subscription
func (h *LogHub) Publish(line string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.subs {
		select {
		case s.lines <- line:
		case <-s.done:
		}
	}
}

// Lines never closed; watch Done to know when to stop reading
func (s *LogSubscription) Lines() <-chan string {
	return s.lines
}

// Done closed by Close
func (s *LogSubscription) Done() <-chan struct{} {
	return s.done
}

// Close unregister. Lines already buffered stay readable.
func (s *LogSubscription) Close() {
	s.once.Do(func() {
		close(s.done)
		s.hub.mu.Lock()
		delete(s.hub.subs, s)
		s.hub.mu.Unlock()
	})
}

// Drain call fn for every line until the subscription is closed and its buffer is empty
func (s *LogSubscription) Drain(fn func(line string)) {
	for {
		select {
		case line := <-s.lines:
			fn(line)
		case <-s.done:
			for {
				select {
				case line := <-s.lines:
					fn(line)
				default:
					return
				}
			}
		}
	}
}

// ScanLogLines bufio.SplitFunc splitting on '\r' or '\n'.
// ffmpeg rewrites its progress line with '\r'.
func ScanLogLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
