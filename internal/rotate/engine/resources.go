package engine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// ResourceSpec 引擎需要的二進位資源
type ResourceSpec struct {
	Name   string
	URL    string
	Digest string // sha256 hex, optional
}

// Blob fetched resource kept in memory
type Blob struct {
	Name   string
	Digest string
	Data   []byte
}

// Getter fetch raw bytes for one URL scheme
type Getter interface {
	Get(ctx context.Context, rawURL string) ([]byte, error)
}

// GetterFunc adapter
type GetterFunc func(ctx context.Context, rawURL string) ([]byte, error)

// Get implements Getter
func (f GetterFunc) Get(ctx context.Context, rawURL string) ([]byte, error) {
	return f(ctx, rawURL)
}

// ResourceFetcher content-addressable fetch step.
// Every URL is fetched at most once, concurrent callers share the download;
// blobs are cached by sha256 digest.
type ResourceFetcher struct {
	mu      sync.Mutex
	getters map[string]Getter
	blobs   map[string]Blob   // digest -> blob
	byURL   map[string]string // url -> digest
	group   singleflight.Group
}

// NewResourceFetcher http, https and file schemes registered
func NewResourceFetcher() *ResourceFetcher {
	f := &ResourceFetcher{
		getters: make(map[string]Getter),
		blobs:   make(map[string]Blob),
		byURL:   make(map[string]string),
	}
	httpGetter := HTTPGetter{Timeout: 5 * time.Minute}
	f.Register("http", httpGetter)
	f.Register("https", httpGetter)
	f.Register("file", GetterFunc(getFile))
	return f
}

// Register add or replace the getter of a scheme
func (f *ResourceFetcher) Register(scheme string, g Getter) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getters[strings.ToLower(scheme)] = g
}

// Fetch return the cached blob or fetch and verify it
func (f *ResourceFetcher) Fetch(ctx context.Context, spec ResourceSpec) (Blob, error) {
	want := strings.ToLower(strings.TrimSpace(spec.Digest))

	f.mu.Lock()
	if want != "" {
		if b, ok := f.blobs[want]; ok {
			f.mu.Unlock()
			return withName(b, spec.Name), nil
		}
	}
	if digest, ok := f.byURL[spec.URL]; ok {
		b := f.blobs[digest]
		f.mu.Unlock()
		if want != "" && want != digest {
			return Blob{}, fmt.Errorf("resource %s: digest mismatch: want %s got %s", spec.Name, want, digest)
		}
		return withName(b, spec.Name), nil
	}
	f.mu.Unlock()

	v, err, _ := f.group.Do(spec.URL, func() (interface{}, error) {
		return f.download(ctx, spec.URL, want)
	})
	if err != nil {
		return Blob{}, fmt.Errorf("resource %s: %w", spec.Name, err)
	}
	b := v.(Blob)
	if want != "" && want != b.Digest {
		return Blob{}, fmt.Errorf("resource %s: digest mismatch: want %s got %s", spec.Name, want, b.Digest)
	}
	return withName(b, spec.Name), nil
}

// download fetch rawURL and cache it when it matches want (or want is empty)
func (f *ResourceFetcher) download(ctx context.Context, rawURL, want string) (Blob, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return Blob{}, fmt.Errorf("parse url: %w", err)
	}
	f.mu.Lock()
	getter, ok := f.getters[strings.ToLower(u.Scheme)]
	f.mu.Unlock()
	if !ok {
		return Blob{}, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}

	data, err := getter.Get(ctx, rawURL)
	if err != nil {
		return Blob{}, fmt.Errorf("fetch %s: %w", rawURL, err)
	}

	sum := sha256.Sum256(data)
	digest := hex.EncodeToString(sum[:])
	b := Blob{Digest: digest, Data: data}
	if want != "" && want != digest {
		return b, nil
	}

	f.mu.Lock()
	f.blobs[digest] = b
	f.byURL[rawURL] = digest
	f.mu.Unlock()
	return b, nil
}

// FetchAll fetch every spec concurrently; blobs keep the order of specs.
// The first failure cancels the remaining fetches.
func (f *ResourceFetcher) FetchAll(ctx context.Context, specs []ResourceSpec) ([]Blob, error) {
	blobs := make([]Blob, len(specs))
	g, gctx := errgroup.WithContext(ctx)
	for i, spec := range specs {
		g.Go(func() error {
			b, err := f.Fetch(gctx, spec)
			if err != nil {
				return err
			}
			blobs[i] = b
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return blobs, nil
}

func withName(b Blob, name string) Blob {
	if name != "" {
		b.Name = name
	}
	return b
}

// HTTPGetter fetch through the fiber client agent
type HTTPGetter struct {
	Timeout time.Duration
}

// Get implements Getter. The agent has no context support, so the request
// runs on its own goroutine and Get returns as soon as ctx is done.
func (g HTTPGetter) Get(ctx context.Context, rawURL string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	timeout := g.Timeout
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); timeout <= 0 || left < timeout {
			timeout = left
		}
	}

	a := fiber.Get(rawURL)
	if timeout > 0 {
		a.Timeout(timeout)
	}
	if err := a.Parse(); err != nil {
		return nil, err
	}

	type response struct {
		code int
		body []byte
		errs []error
	}
	done := make(chan response, 1)
	go func() {
		code, body, errs := a.Bytes()
		done <- response{code: code, body: body, errs: errs}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-done:
		if len(res.errs) > 0 {
			return nil, errors.Join(res.errs...)
		}
		if res.code != fiber.StatusOK {
			return nil, fmt.Errorf("unexpected status %d", res.code)
		}
		return res.body, nil
	}
}

func getFile(_ context.Context, rawURL string) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(u.Path)
}

// ObjectReader minimal object storage read access
type ObjectReader interface {
	GetBytes(ctx context.Context, bucket, objectName string) ([]byte, error)
}

// ObjectGetter s3://bucket/key through an object store client
func ObjectGetter(store ObjectReader) Getter {
	return GetterFunc(func(ctx context.Context, rawURL string) ([]byte, error) {
		u, err := url.Parse(rawURL)
		if err != nil {
			return nil, err
		}
		key := strings.TrimPrefix(u.Path, "/")
		if u.Host == "" || key == "" {
			return nil, fmt.Errorf("object url %q needs bucket and key", rawURL)
		}
		return store.GetBytes(ctx, u.Host, key)
	})
}
