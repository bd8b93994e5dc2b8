package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"video_rotate_service/internal/rotate/domain"
	"video_rotate_service/pkg/database"
	"video_rotate_service/pkg/logger"
	"video_rotate_service/pkg/metrics"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Delivery turns an output artifact into a transient download reference
type Delivery interface {
	Deliver(ctx context.Context, artifact domain.OutputArtifact) (domain.DownloadRef, error)
}

// DownloadPath route prefix served by the HTTP handler
const DownloadPath = "/download/"

type memoryItem struct {
	artifact domain.OutputArtifact
	expires  time.Time
}

// MemoryDelivery 產物暫存在記憶體，以一次性 token 下載，逾時自動釋放
type MemoryDelivery struct {
	baseURL string
	ttl     time.Duration
	now     func() time.Time

	mu    sync.Mutex
	items map[string]memoryItem
}

// NewMemoryDelivery baseURL 例如 http://127.0.0.1:8090，可為空（回傳相對路徑）
func NewMemoryDelivery(baseURL string, ttl time.Duration) *MemoryDelivery {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &MemoryDelivery{
		baseURL: strings.TrimRight(baseURL, "/"),
		ttl:     ttl,
		now:     time.Now,
		items:   make(map[string]memoryItem),
	}
}

// Deliver implements Delivery
func (m *MemoryDelivery) Deliver(_ context.Context, artifact domain.OutputArtifact) (domain.DownloadRef, error) {
	token := uuid.NewString()
	expires := m.now().Add(m.ttl)

	m.mu.Lock()
	m.items[token] = memoryItem{artifact: artifact, expires: expires}
	m.mu.Unlock()

	metrics.DeliveriesTotal.WithLabelValues("memory", "ok").Inc()
	metrics.DeliveredBytes.Add(float64(len(artifact.Data)))

	return domain.DownloadRef{
		URL:         m.baseURL + DownloadPath + token,
		FileName:    artifact.FileName,
		ContentType: artifact.ContentType,
		Size:        len(artifact.Data),
		ExpiresAt:   expires,
	}, nil
}

// Take hand out the artifact once and release it
func (m *MemoryDelivery) Take(token string) (domain.OutputArtifact, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[token]
	if !ok {
		return domain.OutputArtifact{}, false
	}
	delete(m.items, token)
	if m.now().After(item.expires) {
		return domain.OutputArtifact{}, false
	}
	return item.artifact, true
}

// Sweep release expired artifacts, returns how many were dropped
func (m *MemoryDelivery) Sweep() int {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for token, item := range m.items {
		if now.After(item.expires) {
			delete(m.items, token)
			n++
		}
	}
	return n
}

// Pending artifacts not downloaded yet
func (m *MemoryDelivery) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

// Run sweep on every interval until ctx is done
func (m *MemoryDelivery) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if n := m.Sweep(); n > 0 {
				logger.Log.Debug("expired downloads released", zap.Int("count", n))
			}
		case <-ctx.Done():
			return
		}
	}
}

// FileDelivery 直接寫到本機目錄（CLI 使用）
type FileDelivery struct {
	dir string
}

// NewFileDelivery create FileDelivery
func NewFileDelivery(dir string) *FileDelivery {
	if dir == "" {
		dir = "."
	}
	return &FileDelivery{dir: dir}
}

// Deliver implements Delivery
func (f *FileDelivery) Deliver(_ context.Context, artifact domain.OutputArtifact) (domain.DownloadRef, error) {
	if err := os.MkdirAll(f.dir, 0755); err != nil {
		metrics.DeliveriesTotal.WithLabelValues("file", "error").Inc()
		return domain.DownloadRef{}, fmt.Errorf("create output dir: %w", err)
	}
	path := filepath.Join(f.dir, artifact.FileName)
	if err := os.WriteFile(path, artifact.Data, 0644); err != nil {
		metrics.DeliveriesTotal.WithLabelValues("file", "error").Inc()
		return domain.DownloadRef{}, fmt.Errorf("write output: %w", err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}

	metrics.DeliveriesTotal.WithLabelValues("file", "ok").Inc()
	metrics.DeliveredBytes.Add(float64(len(artifact.Data)))
	return domain.DownloadRef{
		URL:         "file://" + abs,
		FileName:    artifact.FileName,
		ContentType: artifact.ContentType,
		Size:        len(artifact.Data),
	}, nil
}

// ObjectDelivery 上傳到 MinIO 並回傳 presigned URL，ttl 後刪除物件
type ObjectDelivery struct {
	store     database.MinIOClientRepo
	ttl       time.Duration
	afterFunc func(d time.Duration, f func()) *time.Timer
}

// NewObjectDelivery create ObjectDelivery
func NewObjectDelivery(store database.MinIOClientRepo, ttl time.Duration) *ObjectDelivery {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &ObjectDelivery{store: store, ttl: ttl, afterFunc: time.AfterFunc}
}

// Deliver implements Delivery
func (o *ObjectDelivery) Deliver(ctx context.Context, artifact domain.OutputArtifact) (domain.DownloadRef, error) {
	objectName := fmt.Sprintf("%s/%s/%s", domain.RotatedPrefix, uuid.NewString(), artifact.FileName)

	if err := o.store.PutBytes(ctx, objectName, artifact.Data, artifact.ContentType); err != nil {
		metrics.DeliveriesTotal.WithLabelValues("minio", "error").Inc()
		return domain.DownloadRef{}, fmt.Errorf("upload output %s: %w", objectName, err)
	}

	url, err := o.store.PresignDownloadURL(ctx, objectName, artifact.FileName, o.ttl)
	if err != nil {
		metrics.DeliveriesTotal.WithLabelValues("minio", "error").Inc()
		if rmErr := o.store.RemoveObject(context.Background(), objectName); rmErr != nil {
			logger.Log.Warn("release undelivered object failed", zap.String("object", objectName), zap.Error(rmErr))
		}
		return domain.DownloadRef{}, fmt.Errorf("presign output %s: %w", objectName, err)
	}

	o.afterFunc(o.ttl, func() {
		if err := o.store.RemoveObject(context.Background(), objectName); err != nil {
			logger.Log.Warn("release delivered object failed", zap.String("object", objectName), zap.Error(err))
		}
	})

	metrics.DeliveriesTotal.WithLabelValues("minio", "ok").Inc()
	metrics.DeliveredBytes.Add(float64(len(artifact.Data)))
	return domain.DownloadRef{
		URL:         url,
		FileName:    artifact.FileName,
		ContentType: artifact.ContentType,
		Size:        len(artifact.Data),
		ExpiresAt:   time.Now().Add(o.ttl),
	}, nil
}
