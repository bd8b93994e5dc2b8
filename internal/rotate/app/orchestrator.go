package app

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"video_rotate_service/internal/rotate/domain"
	"video_rotate_service/internal/rotate/engine"
	errprocess "video_rotate_service/pkg/err"
	"video_rotate_service/pkg/logger"
	"video_rotate_service/pkg/metrics"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// EngineProvider hands out the engine once it is ready
type EngineProvider interface {
	Engine() (engine.Engine, error)
}

// SourceProvider the currently selected source
type SourceProvider interface {
	Source() (domain.MediaSource, bool)
}

// RunResult 成功的一次旋轉
type RunResult struct {
	RunID    string             `json:"run_id"`
	Angle    int                `json:"angle"`
	Download domain.DownloadRef `json:"download"`
	Took     time.Duration      `json:"took"`
}

// Orchestrator 串起整個旋轉流程：檢查、寫入、執行、讀回、交付
// 同一時間只允許一個 run 持有引擎工作區
type Orchestrator struct {
	engines   EngineProvider
	sources   SourceProvider
	state     *StateStore
	slot      engine.Slot
	delivery  Delivery
	logBuffer int

	base   context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// OrchestratorOption option
type OrchestratorOption func(*Orchestrator)

// WithLogBuffer engine log subscription buffer size
func WithLogBuffer(n int) OrchestratorOption {
	return func(o *Orchestrator) {
		if n > 0 {
			o.logBuffer = n
		}
	}
}

// NewOrchestrator create Orchestrator
func NewOrchestrator(engines EngineProvider, sources SourceProvider, state *StateStore, slot engine.Slot, delivery Delivery, opts ...OrchestratorOption) *Orchestrator {
	base, cancel := context.WithCancel(context.Background())
	o := &Orchestrator{
		engines:   engines,
		sources:   sources,
		state:     state,
		slot:      slot,
		delivery:  delivery,
		logBuffer: 64,
		base:      base,
		cancel:    cancel,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// State the store backing this orchestrator
func (o *Orchestrator) State() *StateStore {
	return o.state
}

type preparedRun struct {
	id      string
	angle   int
	source  domain.MediaSource
	eng     engine.Engine
	cmd     domain.EngineCommand
	release func()
	started time.Time
}

// prepare runs the pre-flight guards in order and takes the slot through
// acquire. Nothing observable changes when a guard rejects.
func (o *Orchestrator) prepare(angle int, acquire func() (func(), error)) (*preparedRun, error) {
	src, ok := o.sources.Source()
	if !ok {
		return nil, o.reject("no_source", domain.ErrNoSourceSelected)
	}

	eng, err := o.engines.Engine()
	if err != nil {
		return nil, o.reject("engine_not_ready", err)
	}

	cmd, err := domain.BuildCommand(angle, src.FileName)
	if err != nil {
		return nil, o.reject("invalid_angle", err)
	}

	release, err := acquire()
	if err != nil {
		reason := "busy"
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			reason = "canceled"
		}
		return nil, o.reject(reason, err)
	}

	var once sync.Once
	run := &preparedRun{
		id:     uuid.NewString(),
		angle:  angle,
		source: src,
		eng:    eng,
		cmd:    cmd,
		release: func() {
			once.Do(func() {
				metrics.RunsInFlight.Set(0)
				release()
			})
		},
		started: time.Now(),
	}
	o.state.Begin(run.id)
	metrics.RunsInFlight.Set(1)
	logger.Log.Info("rotation started",
		zap.String("run_id", run.id),
		zap.Int("angle", angle),
		zap.String("file", src.FileName),
		zap.Strings("args", cmd.Args),
	)
	return run, nil
}

func (o *Orchestrator) reject(reason string, err error) error {
	metrics.RunsRejectedTotal.WithLabelValues(reason).Inc()
	logger.Log.Warn("rotation rejected", zap.String("reason", reason), zap.Error(err))
	return err
}

// Rotate run one rotation and block until it is delivered or failed.
// Guard errors are returned as is; anything after the guards wraps
// domain.ErrEngineExecution and leaves the state Idle(0).
func (o *Orchestrator) Rotate(ctx context.Context, angle int) (*RunResult, error) {
	run, err := o.prepare(angle, o.slot.TryAcquire)
	if err != nil {
		return nil, err
	}
	return o.execute(ctx, run)
}

// RotateWhenFree same as Rotate but waits for the working storage instead of
// returning domain.ErrBusy. The queue consumer runs jobs through it.
func (o *Orchestrator) RotateWhenFree(ctx context.Context, angle int) (*RunResult, error) {
	run, err := o.prepare(angle, func() (func(), error) { return o.slot.Acquire(ctx) })
	if err != nil {
		return nil, err
	}
	return o.execute(ctx, run)
}

// Start same guards as Rotate, then run in the background. The returned id
// matches ProcessingState.RunID of the state store.
func (o *Orchestrator) Start(_ context.Context, angle int) (string, error) {
	run, err := o.prepare(angle, o.slot.TryAcquire)
	if err != nil {
		return "", err
	}
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		// request ctx 會在 handler 回應後結束，背景執行改用 orchestrator 自己的 ctx
		_, _ = o.execute(o.base, run)
	}()
	return run.id, nil
}

// Close cancel background runs and wait for them
func (o *Orchestrator) Close() {
	o.cancel()
	o.wg.Wait()
}

func (o *Orchestrator) execute(ctx context.Context, run *preparedRun) (*RunResult, error) {
	defer run.release()

	sub := run.eng.Subscribe(o.logBuffer)
	estimator := NewProgressEstimator(o.durationOf(run.source))
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		sub.Drain(func(line string) {
			logger.Log.Debug("engine", zap.String("run_id", run.id), zap.String("line", line))
			if pct, ok := estimator.Observe(line); ok {
				o.state.Advance(run.id, pct)
			}
		})
	}()

	data, err := o.transcode(ctx, run)
	// 等所有 log 都被估算過再結束，避免晚到的進度蓋掉最終狀態
	sub.Close()
	<-drained
	if err != nil {
		return nil, o.fail(run, err)
	}

	artifact := domain.NewOutputArtifact(data, run.cmd.Extension)
	ref, err := o.delivery.Deliver(ctx, artifact)
	if err != nil {
		return nil, o.fail(run, err)
	}

	// Done 先寫入再釋放工作區，下一個 run 的 Begin 一定排在它之後
	o.state.Finish(run.id, ref)
	run.release()
	took := time.Since(run.started)
	metrics.RunsTotal.WithLabelValues(strconv.Itoa(run.angle), "done").Inc()
	metrics.RunDuration.WithLabelValues("done").Observe(took.Seconds())
	logger.Log.Info("rotation done",
		zap.String("run_id", run.id),
		zap.String("output", artifact.FileName),
		zap.Int("bytes", len(artifact.Data)),
		zap.Duration("took", took),
	)
	return &RunResult{RunID: run.id, Angle: run.angle, Download: ref, Took: took}, nil
}

// transcode write input, exec, read output; working files are removed either way
func (o *Orchestrator) transcode(ctx context.Context, run *preparedRun) ([]byte, error) {
	defer func() {
		for _, name := range []string{run.cmd.Input, run.cmd.Output} {
			if err := run.eng.RemoveFile(context.Background(), name); err != nil {
				logger.Log.Warn("remove working file failed", zap.String("file", name), zap.Error(err))
			}
		}
	}()

	if err := run.eng.WriteFile(ctx, run.cmd.Input, run.source.Data); err != nil {
		return nil, err
	}
	if err := run.eng.Exec(ctx, run.cmd.Args); err != nil {
		return nil, err
	}
	return run.eng.ReadFile(ctx, run.cmd.Output)
}

func (o *Orchestrator) fail(run *preparedRun, cause error) error {
	o.state.Reset(run.id)
	run.release()
	metrics.RunsTotal.WithLabelValues(strconv.Itoa(run.angle), "failed").Inc()
	metrics.RunDuration.WithLabelValues("failed").Observe(time.Since(run.started).Seconds())
	if errors.Is(cause, domain.ErrEngineExecution) {
		logger.Log.Error("rotation failed", zap.String("run_id", run.id), zap.Error(cause))
		return cause
	}
	return errprocess.Cause(domain.ErrEngineExecution, cause, "run[%s] rotation failed", run.id)
}

// durationOf duration of the source this run started with. It may resolve
// after the run started, so the session is consulted again per line as long
// as the same selection is still current.
func (o *Orchestrator) durationOf(src domain.MediaSource) DurationFunc {
	return func() (float64, bool) {
		if src.Duration != nil && *src.Duration > 0 {
			return *src.Duration, true
		}
		cur, ok := o.sources.Source()
		if !ok || cur.FileName != src.FileName || !cur.SelectedAt.Equal(src.SelectedAt) {
			return 0, false
		}
		if cur.Duration == nil || *cur.Duration <= 0 {
			return 0, false
		}
		return *cur.Duration, true
	}
}
