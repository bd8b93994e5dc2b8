package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"video_rotate_service/internal/rotate/domain"
	"video_rotate_service/pkg/logger"
	"video_rotate_service/pkg/metrics"

	"go.uber.org/zap"
)

// Session 目前選取的來源影片
// 每次 Select 都會遞增 generation；metadata 回來時 generation 不符就丟棄，確保 duration 永遠屬於目前的檔案
type Session struct {
	extractor MetadataExtractor
	timeout   time.Duration

	mu         sync.RWMutex
	source     *domain.MediaSource
	generation uint64
}

// NewSession create Session
func NewSession(extractor MetadataExtractor, metadataTimeout time.Duration) *Session {
	return &Session{extractor: extractor, timeout: metadataTimeout}
}

// Select replace the current source and resolve its duration asynchronously.
// The returned channel closes once resolution finished, resolved or not.
func (s *Session) Select(fileName string, data []byte) <-chan struct{} {
	s.mu.Lock()
	s.generation++
	gen := s.generation
	s.source = &domain.MediaSource{
		FileName:   fileName,
		Data:       data,
		SelectedAt: time.Now(),
	}
	s.mu.Unlock()

	logger.Log.Info("video selected", zap.String("file", fileName), zap.Int("bytes", len(data)))

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.resolve(gen, fileName, data)
	}()
	return done
}

func (s *Session) resolve(gen uint64, fileName string, data []byte) {
	if s.extractor == nil {
		metrics.MetadataTotal.WithLabelValues("unavailable").Inc()
		return
	}

	ctx := context.Background()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	d, err := s.extractor.Duration(ctx, fileName, data)
	if err != nil {
		metrics.MetadataTotal.WithLabelValues("unavailable").Inc()
		fields := []zap.Field{zap.String("file", fileName), zap.Error(err)}
		if !errors.Is(err, domain.ErrMetadataUnavailable) {
			fields = append(fields, zap.NamedError("kind", domain.ErrMetadataUnavailable))
		}
		logger.Log.Warn("video metadata unavailable, progress will be unknown", fields...)
		return
	}
	if d <= 0 {
		metrics.MetadataTotal.WithLabelValues("unavailable").Inc()
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation || s.source == nil {
		metrics.MetadataTotal.WithLabelValues("stale").Inc()
		logger.Log.Debug("drop stale metadata", zap.String("file", fileName))
		return
	}
	s.source.Duration = &d
	metrics.MetadataTotal.WithLabelValues("resolved").Inc()
	logger.Log.Info("video duration", zap.String("file", fileName), zap.Float64("seconds", d))
}

// Source copy of the current source
func (s *Session) Source() (domain.MediaSource, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.source == nil {
		return domain.MediaSource{}, false
	}
	src := *s.source
	if s.source.Duration != nil {
		d := *s.source.Duration
		src.Duration = &d
	}
	return src, true
}

// Duration of the current source, false while unknown
func (s *Session) Duration() (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.source == nil || s.source.Duration == nil || *s.source.Duration <= 0 {
		return 0, false
	}
	return *s.source.Duration, true
}

