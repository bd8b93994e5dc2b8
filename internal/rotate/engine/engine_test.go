package engine

import (
	"bufio"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"video_rotate_service/internal/rotate/domain"
	"video_rotate_service/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeFFmpeg 假的 ffmpeg：回應 -version，輸出兩行進度並把 input.mp4 複製到最後一個參數
const fakeFFmpeg = `#!/bin/sh
case "$*" in
  *-version*) echo "ffmpeg version 6.1-fake"; exit 0 ;;
esac
for a in "$@"; do last="$a"; done
if [ ! -f input.mp4 ]; then echo "input.mp4: No such file or directory" >&2; exit 1; fi
printf 'frame=1 fps=0.0 time=00:00:05.00 bitrate=1.0kbits/s\r' >&2
printf 'frame=2 fps=0.0 time=00:00:10.00 bitrate=1.0kbits/s\n' >&2
cp input.mp4 "$last"
`

// fakeFFmpegLongLine 單一行 stderr 超過 scanner 上限
const fakeFFmpegLongLine = `#!/bin/sh
case "$*" in
  *-version*) echo "ffmpeg version 6.1-fake"; exit 0 ;;
esac
for a in "$@"; do last="$a"; done
head -c 3000000 /dev/zero | tr '\0' 'x' >&2
printf '\n' >&2
cp input.mp4 "$last"
`

func writeFakeFFmpeg(t *testing.T) string {
	t.Helper()
	return writeScript(t, fakeFFmpeg)
}

func writeScript(t *testing.T, script string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ffmpeg")
	require.NoError(t, os.WriteFile(path, []byte(script), 0755))
	return path
}

func TestScanLogLines(t *testing.T) {
	input := "frame=1 time=00:00:01.00\rframe=2 time=00:00:02.00\r\nDone\nlast"
	scanner := bufio.NewScanner(strings.NewReader(input))
	scanner.Split(ScanLogLines)

	var lines []string
	for scanner.Scan() {
		if scanner.Text() != "" {
			lines = append(lines, scanner.Text())
		}
	}
	assert.Equal(t, []string{"frame=1 time=00:00:01.00", "frame=2 time=00:00:02.00", "Done", "last"}, lines)
}

func TestLogHub_DrainReceivesEverything(t *testing.T) {
	hub := NewLogHub()
	sub := hub.Subscribe(1)

	var got []string
	done := make(chan struct{})
	go func() {
		sub.Drain(func(line string) { got = append(got, line) })
		close(done)
	}()

	for i := 0; i < 50; i++ {
		hub.Publish("line")
	}
	sub.Close()
	<-done

	assert.Len(t, got, 50)
}

func TestLogHub_PublishDoesNotBlockOnClosedSubscriber(t *testing.T) {
	hub := NewLogHub()
	sub := hub.Subscribe(0)

	finished := make(chan struct{})
	go func() {
		hub.Publish("nobody reads this")
		close(finished)
	}()

	time.Sleep(20 * time.Millisecond)
	sub.Close()

	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("publish stayed blocked after close")
	}
	sub.Close()
}

func TestWorkspace_SingleSlot(t *testing.T) {
	ws, err := NewWorkspace(t.TempDir())
	require.NoError(t, err)

	release, err := ws.TryAcquire()
	require.NoError(t, err)

	_, err = ws.TryAcquire()
	assert.ErrorIs(t, err, domain.ErrBusy)

	release()
	release()

	again, err := ws.TryAcquire()
	require.NoError(t, err)
	again()
}

func TestWorkspace_LockSharedAcrossInstances(t *testing.T) {
	dir := t.TempDir()
	a, err := NewWorkspace(dir)
	require.NoError(t, err)
	b, err := NewWorkspace(dir)
	require.NoError(t, err)

	release, err := a.TryAcquire()
	require.NoError(t, err)
	defer release()

	_, err = b.TryAcquire()
	assert.ErrorIs(t, err, domain.ErrBusy)
}

func TestWorkspace_AcquireWaits(t *testing.T) {
	ws, err := NewWorkspace(t.TempDir())
	require.NoError(t, err)

	release, err := ws.TryAcquire()
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = ws.Acquire(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	go func() {
		time.Sleep(20 * time.Millisecond)
		release()
	}()
	next, err := ws.Acquire(context.Background())
	require.NoError(t, err)
	next()
}

func TestWorkspace_Path(t *testing.T) {
	ws, err := NewWorkspace(t.TempDir())
	require.NoError(t, err)

	p, err := ws.Path("input.mp4")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(ws.Dir(), "input.mp4"), p)

	for _, bad := range []string{"", "..", "../x", "a/b", ".lock"} {
		_, err := ws.Path(bad)
		assert.Error(t, err, bad)
	}
}

func TestResourceFetcher_CachesByDigest(t *testing.T) {
	data := []byte("core-binary")
	sum := sha256.Sum256(data)
	digest := hex.EncodeToString(sum[:])

	var calls int32
	f := NewResourceFetcher()
	f.Register("mem", GetterFunc(func(ctx context.Context, rawURL string) ([]byte, error) {
		atomic.AddInt32(&calls, 1)
		return data, nil
	}))

	spec := ResourceSpec{Name: "core", URL: "mem://core", Digest: strings.ToUpper(digest)}
	b1, err := f.Fetch(context.Background(), spec)
	require.NoError(t, err)
	b2, err := f.Fetch(context.Background(), spec)
	require.NoError(t, err)
	b3, err := f.Fetch(context.Background(), ResourceSpec{Name: "core", URL: "mem://core"})
	require.NoError(t, err)

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Equal(t, digest, b1.Digest)
	assert.Equal(t, b1.Data, b2.Data)
	assert.Equal(t, b1.Digest, b3.Digest)
}

func TestResourceFetcher_DigestMismatch(t *testing.T) {
	var calls int32
	f := NewResourceFetcher()
	f.Register("mem", GetterFunc(func(ctx context.Context, rawURL string) ([]byte, error) {
		atomic.AddInt32(&calls, 1)
		return []byte("tampered"), nil
	}))

	spec := ResourceSpec{Name: "core", URL: "mem://core", Digest: "00ff"}
	_, err := f.Fetch(context.Background(), spec)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "digest mismatch")

	// 驗證失敗的內容不進快取
	_, err = f.Fetch(context.Background(), spec)
	require.Error(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestResourceFetcher_FileAndUnsupportedScheme(t *testing.T) {
	path := filepath.Join(t.TempDir(), "core.bin")
	require.NoError(t, os.WriteFile(path, []byte("abc"), 0644))

	f := NewResourceFetcher()
	blobs, err := f.FetchAll(context.Background(), []ResourceSpec{{Name: "core", URL: "file://" + path}})
	require.NoError(t, err)
	require.Len(t, blobs, 1)
	assert.Equal(t, []byte("abc"), blobs[0].Data)

	_, err = f.Fetch(context.Background(), ResourceSpec{Name: "x", URL: "gopher://x"})
	assert.Error(t, err)
}

type memObjects map[string][]byte

func (m memObjects) GetBytes(_ context.Context, bucket, objectName string) ([]byte, error) {
	data, ok := m[bucket+"/"+objectName]
	if !ok {
		return nil, errors.New("no such key")
	}
	return data, nil
}

func TestObjectGetter(t *testing.T) {
	g := ObjectGetter(memObjects{"engine/bin/ffmpeg": []byte("elf")})

	data, err := g.Get(context.Background(), "s3://engine/bin/ffmpeg")
	require.NoError(t, err)
	assert.Equal(t, []byte("elf"), data)

	_, err = g.Get(context.Background(), "s3://engine")
	assert.Error(t, err)
}

func TestFFmpegEngine_ExecPublishesLogs(t *testing.T) {
	logger.SetNewNop()
	ws, err := NewWorkspace(t.TempDir())
	require.NoError(t, err)
	eng := NewFFmpegEngine(writeFakeFFmpeg(t), ws)
	ctx := context.Background()

	require.Error(t, eng.Exec(ctx, []string{"-i", "input.mp4", "out.mp4"}), "exec before load")

	require.NoError(t, eng.Load(ctx, nil))
	assert.Equal(t, "ffmpeg version 6.1-fake", eng.Version())

	require.NoError(t, eng.WriteFile(ctx, "input.mp4", []byte("video-bytes")))

	sub := eng.Subscribe(4)
	var (
		mu    sync.Mutex
		lines []string
	)
	drained := make(chan struct{})
	go func() {
		sub.Drain(func(line string) {
			mu.Lock()
			lines = append(lines, line)
			mu.Unlock()
		})
		close(drained)
	}()

	require.NoError(t, eng.Exec(ctx, []string{"-i", "input.mp4", "-vf", "transpose=1", "output.mp4"}))
	sub.Close()
	<-drained

	out, err := eng.ReadFile(ctx, "output.mp4")
	require.NoError(t, err)
	assert.Equal(t, []byte("video-bytes"), out)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{
		"frame=1 fps=0.0 time=00:00:05.00 bitrate=1.0kbits/s",
		"frame=2 fps=0.0 time=00:00:10.00 bitrate=1.0kbits/s",
	}, lines)

	require.NoError(t, eng.RemoveFile(ctx, "output.mp4"))
	require.NoError(t, eng.RemoveFile(ctx, "output.mp4"))
}

func TestFFmpegEngine_ExecFailure(t *testing.T) {
	logger.SetNewNop()
	ws, err := NewWorkspace(t.TempDir())
	require.NoError(t, err)
	eng := NewFFmpegEngine(writeFakeFFmpeg(t), ws)
	ctx := context.Background()
	require.NoError(t, eng.Load(ctx, nil))

	err = eng.Exec(ctx, []string{"-i", "input.mp4", "output.mp4"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "No such file or directory")
}

func TestFFmpegEngine_LoadMaterializesBlob(t *testing.T) {
	logger.SetNewNop()
	ws, err := NewWorkspace(t.TempDir())
	require.NoError(t, err)
	eng := NewFFmpegEngine("definitely-not-on-path-ffmpeg", ws)

	sum := sha256.Sum256([]byte(fakeFFmpeg))
	blob := Blob{Name: BinaryResource, Digest: hex.EncodeToString(sum[:]), Data: []byte(fakeFFmpeg)}
	require.NoError(t, eng.Load(context.Background(), []Blob{blob}))

	info, err := os.Stat(filepath.Join(ws.Dir(), "bin-ffmpeg-"+blob.Digest[:12]))
	require.NoError(t, err)
	assert.NotZero(t, info.Mode()&0100)
}

func TestFFmpegEngine_LoadMissingBinary(t *testing.T) {
	logger.SetNewNop()
	ws, err := NewWorkspace(t.TempDir())
	require.NoError(t, err)
	eng := NewFFmpegEngine("definitely-not-on-path-ffmpeg", ws)
	assert.Error(t, eng.Load(context.Background(), nil))
}

func TestFFmpegEngine_ExecSurvivesOversizedLogLine(t *testing.T) {
	logger.SetNewNop()
	ws, err := NewWorkspace(t.TempDir())
	require.NoError(t, err)
	eng := NewFFmpegEngine(writeScript(t, fakeFFmpegLongLine), ws)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, eng.Load(ctx, nil))
	require.NoError(t, eng.WriteFile(ctx, "input.mp4", []byte("video-bytes")))

	require.NoError(t, eng.Exec(ctx, []string{"-i", "input.mp4", "output.mp4"}))
	out, err := eng.ReadFile(ctx, "output.mp4")
	require.NoError(t, err)
	assert.Equal(t, []byte("video-bytes"), out)
}

func TestResourceFetcher_ConcurrentFetchSharesDownload(t *testing.T) {
	var calls int32
	release := make(chan struct{})
	f := NewResourceFetcher()
	f.Register("mem", GetterFunc(func(ctx context.Context, rawURL string) ([]byte, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return []byte("core-binary"), nil
	}))

	const callers = 5
	var wg sync.WaitGroup
	blobs := make([]Blob, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			blobs[i], errs[i] = f.Fetch(context.Background(), ResourceSpec{Name: "core", URL: "mem://core"})
		}(i)
	}

	require.Eventually(t, func() bool { return atomic.LoadInt32(&calls) == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, []byte("core-binary"), blobs[i].Data)
		assert.Equal(t, "core", blobs[i].Name)
	}
}

func TestHTTPGetter_ReturnsOnCancel(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(block) })

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	start := time.Now()
	_, err := HTTPGetter{Timeout: time.Minute}.Get(ctx, srv.URL+"/ffmpeg")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestHTTPGetter_OK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("elf"))
	}))
	t.Cleanup(srv.Close)

	data, err := HTTPGetter{Timeout: 5 * time.Second}.Get(context.Background(), srv.URL+"/ffmpeg")
	require.NoError(t, err)
	assert.Equal(t, []byte("elf"), data)
}
