package app

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"video_rotate_service/internal/rotate/domain"
	"video_rotate_service/internal/rotate/engine"
	"video_rotate_service/pkg/logger"
	"video_rotate_service/pkg/metrics"

	"go.uber.org/zap"
)

type lifecycleState int32

const (
	engineIdle lifecycleState = iota
	engineLoading
	engineReady
	engineFailed
)

// ResourceSource fetch engine resources
type ResourceSource interface {
	FetchAll(ctx context.Context, specs []engine.ResourceSpec) ([]engine.Blob, error)
}

// Lifecycle 管理引擎初始化：整個 session 只做一次，失敗即終止不重試
type Lifecycle struct {
	eng       engine.Engine
	fetcher   ResourceSource
	resources []engine.ResourceSpec

	state atomic.Int32
	ready chan struct{}
	once  sync.Once
	mu    sync.RWMutex
	err   error
}

// NewLifecycle fetcher may be nil when no resources are configured
func NewLifecycle(eng engine.Engine, fetcher ResourceSource, resources []engine.ResourceSpec) *Lifecycle {
	return &Lifecycle{
		eng:       eng,
		fetcher:   fetcher,
		resources: resources,
		ready:     make(chan struct{}),
	}
}

// Initialize fetch resources and load the engine. A second call is a logic
// error and returns domain.ErrAlreadyInitialized without touching the engine.
func (l *Lifecycle) Initialize(ctx context.Context) error {
	if !l.state.CompareAndSwap(int32(engineIdle), int32(engineLoading)) {
		return domain.ErrAlreadyInitialized
	}

	start := time.Now()
	logger.Log.Info("loading transcoding engine", zap.Int("resources", len(l.resources)))

	var blobs []engine.Blob
	if len(l.resources) > 0 {
		if l.fetcher == nil {
			return l.fail(fmt.Errorf("engine resources configured but no fetcher"))
		}
		fetched, err := l.fetcher.FetchAll(ctx, l.resources)
		if err != nil {
			return l.fail(fmt.Errorf("fetch engine resources: %w", err))
		}
		blobs = fetched
	}

	if err := l.eng.Load(ctx, blobs); err != nil {
		return l.fail(fmt.Errorf("load engine: %w", err))
	}

	l.state.Store(int32(engineReady))
	metrics.EngineReady.Set(1)
	l.once.Do(func() { close(l.ready) })
	logger.Log.Info("transcoding engine ready", zap.String("version", l.Version()), zap.Duration("took", time.Since(start)))
	return nil
}

func (l *Lifecycle) fail(err error) error {
	l.mu.Lock()
	l.err = err
	l.mu.Unlock()
	l.state.Store(int32(engineFailed))
	metrics.EngineReady.Set(0)
	l.once.Do(func() { close(l.ready) })
	logger.Log.Error("transcoding engine failed to load, reload required", zap.Error(err))
	return err
}

// Ready engine finished loading successfully
func (l *Lifecycle) Ready() bool {
	return lifecycleState(l.state.Load()) == engineReady
}

// Err terminal initialization error, nil otherwise
func (l *Lifecycle) Err() error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.err
}

// WaitReady block until Initialize finished or ctx is done
func (l *Lifecycle) WaitReady(ctx context.Context) error {
	select {
	case <-l.ready:
		if err := l.Err(); err != nil {
			return err
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Engine the handle, only once ready
func (l *Lifecycle) Engine() (engine.Engine, error) {
	if !l.Ready() {
		return nil, domain.ErrEngineNotReady
	}
	return l.eng, nil
}

// Version engine build string once ready, empty when the engine does not report one
func (l *Lifecycle) Version() string {
	v, ok := l.eng.(interface{ Version() string })
	if !ok || !l.Ready() {
		return ""
	}
	return v.Version()
}

// Status textual state for health endpoints
func (l *Lifecycle) Status() string {
	switch lifecycleState(l.state.Load()) {
	case engineLoading:
		return "loading"
	case engineReady:
		return "ready"
	case engineFailed:
		return "failed"
	default:
		return "idle"
	}
}
