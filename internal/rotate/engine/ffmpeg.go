package engine

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"

	"video_rotate_service/pkg/logger"

	"go.uber.org/zap"
)

// BinaryResource blob name that replaces the ffmpeg binary on PATH
const BinaryResource = "ffmpeg"

// engine-level flags, always in front of the command argv
var baseArgs = []string{"-hide_banner", "-nostdin", "-y"}

// 讓測試可以替換
var (
	execCommand = exec.CommandContext
	lookPath    = exec.LookPath
)

// FFmpegEngine Engine backed by an ffmpeg process per Exec
type FFmpegEngine struct {
	ws  *Workspace
	hub *LogHub

	mu      sync.RWMutex
	binary  string
	version string
	loaded  bool
}

// NewFFmpegEngine binary 為空時使用 PATH 上的 ffmpeg
func NewFFmpegEngine(binary string, ws *Workspace) *FFmpegEngine {
	if strings.TrimSpace(binary) == "" {
		binary = "ffmpeg"
	}
	return &FFmpegEngine{
		ws:     ws,
		hub:    NewLogHub(),
		binary: binary,
	}
}

// Version first line of `ffmpeg -version`, empty before Load
func (e *FFmpegEngine) Version() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.version
}

// Load materialize an ffmpeg blob if one was fetched, then probe the binary
func (e *FFmpegEngine) Load(ctx context.Context, blobs []Blob) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	binary := e.binary
	for _, b := range blobs {
		if b.Name != BinaryResource {
			continue
		}
		name := "bin-" + BinaryResource
		if len(b.Digest) >= 12 {
			name += "-" + b.Digest[:12]
		}
		path, err := e.ws.Path(name)
		if err != nil {
			return err
		}
		if err := os.WriteFile(path, b.Data, 0755); err != nil {
			return fmt.Errorf("materialize ffmpeg blob: %w", err)
		}
		binary = path
	}

	resolved, err := lookPath(binary)
	if err != nil {
		return fmt.Errorf("ffmpeg binary %q: %w", binary, err)
	}

	out, err := execCommand(ctx, resolved, "-hide_banner", "-version").CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg -version: %w: %s", err, strings.TrimSpace(string(out)))
	}

	e.binary = resolved
	e.version = strings.TrimSpace(strings.SplitN(string(out), "\n", 2)[0])
	e.loaded = true
	logger.Log.Info("ffmpeg engine loaded", zap.String("binary", resolved), zap.String("version", e.version))
	return nil
}

// WriteFile stage bytes into the workspace
func (e *FFmpegEngine) WriteFile(ctx context.Context, name string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := e.ws.Path(name)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ReadFile read a workspace file back
func (e *FFmpegEngine) ReadFile(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := e.ws.Path(name)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(path)
}

// RemoveFile missing files are not an error
func (e *FFmpegEngine) RemoveFile(_ context.Context, name string) error {
	path, err := e.ws.Path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Subscribe observe engine log lines
func (e *FFmpegEngine) Subscribe(buffer int) *LogSubscription {
	return e.hub.Subscribe(buffer)
}

// Exec run ffmpeg inside the workspace; every stderr line is published
// before Exec returns.
func (e *FFmpegEngine) Exec(ctx context.Context, argv []string) error {
	e.mu.RLock()
	binary, loaded := e.binary, e.loaded
	e.mu.RUnlock()
	if !loaded {
		return errors.New("ffmpeg engine not loaded")
	}

	args := append(append([]string{}, baseArgs...), argv...)
	logger.Log.Debug("執行 FFmpeg", zap.String("binary", binary), zap.Strings("args", args))

	cmd := execCommand(ctx, binary, args...)
	cmd.Dir = e.ws.Dir()
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start ffmpeg: %w", err)
	}

	tail := newTailBuffer(8)
	scanner := bufio.NewScanner(stderr)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	scanner.Split(ScanLogLines)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		tail.add(line)
		e.hub.Publish(line)
	}
	if err := scanner.Err(); err != nil {
		// 掃描中斷後仍要讀完 stderr，否則 ffmpeg 會卡在寫入
		logger.Log.Warn("ffmpeg log scan stopped", zap.Error(err))
		tail.add("log scan stopped: " + err.Error())
		_, _ = io.Copy(io.Discard, stderr)
	}

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("ffmpeg: %w: %s", err, tail.String())
	}
	return nil
}

// tailBuffer keeps the last n log lines for error messages
type tailBuffer struct {
	lines []string
	n     int
}

func newTailBuffer(n int) *tailBuffer {
	return &tailBuffer{n: n}
}

func (t *tailBuffer) add(line string) {
	t.lines = append(t.lines, line)
	if len(t.lines) > t.n {
		t.lines = t.lines[len(t.lines)-t.n:]
	}
}

func (t *tailBuffer) String() string {
	return strings.Join(t.lines, " | ")
}
