package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"video_rotate_service/internal/rotate/domain"

	"github.com/gofrs/flock"
)

const lockFileName = ".lock"

// Workspace 引擎的工作目錄
// 同一時間只允許一個持有者：程序內以單格 channel，跨程序以 flock
type Workspace struct {
	dir  string
	slot chan struct{}
	lock *flock.Flock
}

// NewWorkspace dir 為空時建立暫存目錄
func NewWorkspace(dir string) (*Workspace, error) {
	if dir == "" {
		tmp, err := os.MkdirTemp("", "rotate-engine-*")
		if err != nil {
			return nil, fmt.Errorf("create workspace: %w", err)
		}
		dir = tmp
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create workspace %s: %w", dir, err)
	}

	return &Workspace{
		dir:  dir,
		slot: make(chan struct{}, 1),
		lock: flock.New(filepath.Join(dir, lockFileName)),
	}, nil
}

// Dir workspace root
func (w *Workspace) Dir() string {
	return w.dir
}

// Path resolve a flat file name inside the workspace
func (w *Workspace) Path(name string) (string, error) {
	if name == "" || name == lockFileName || filepath.Base(name) != name || name == "." || name == ".." {
		return "", fmt.Errorf("invalid workspace file name %q", name)
	}
	return filepath.Join(w.dir, name), nil
}

// TryAcquire returns domain.ErrBusy when another holder exists
func (w *Workspace) TryAcquire() (func(), error) {
	select {
	case w.slot <- struct{}{}:
	default:
		return nil, domain.ErrBusy
	}

	ok, err := w.lock.TryLock()
	if err != nil {
		<-w.slot
		return nil, fmt.Errorf("workspace lock: %w", err)
	}
	if !ok {
		<-w.slot
		return nil, domain.ErrBusy
	}
	return w.releaser(), nil
}

// Acquire wait until the slot is free or ctx is done
func (w *Workspace) Acquire(ctx context.Context) (func(), error) {
	select {
	case w.slot <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	ok, err := w.lock.TryLockContext(ctx, 200*time.Millisecond)
	if err != nil || !ok {
		<-w.slot
		if err == nil {
			err = domain.ErrBusy
		}
		return nil, fmt.Errorf("workspace lock: %w", err)
	}
	return w.releaser(), nil
}

func (w *Workspace) releaser() func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			_ = w.lock.Unlock()
			<-w.slot
		})
	}
}
