package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"video_rotate_service/internal/rotate/domain"
	"video_rotate_service/pkg/logger"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// ProgressPublisher worker side of job progress
type ProgressPublisher interface {
	Publish(ctx context.Context, event domain.ProgressEvent) error
}

// ProgressSubscriber API side of job progress
type ProgressSubscriber interface {
	Subscribe(ctx context.Context, jobID string, handler func(domain.ProgressEvent)) error
}

// RedisPubSub definition redis pub/sub of job progress
type RedisPubSub struct {
	client redis.UniversalClient
}

// NewRedisPubSub create RedisPubSub
func NewRedisPubSub(client redis.UniversalClient) *RedisPubSub {
	return &RedisPubSub{client: client}
}

// Publish 將 event 序列化後發布到 rotate:job:<id>
func (r *RedisPubSub) Publish(ctx context.Context, event domain.ProgressEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal progress event: %w", err)
	}
	return r.client.Publish(ctx, domain.JobChannel(event.JobID), data).Err()
}

// Subscribe 訂閱 job 的進度，收到訊息後呼叫 handler，ctx 結束時關閉訂閱
func (r *RedisPubSub) Subscribe(ctx context.Context, jobID string, handler func(domain.ProgressEvent)) error {
	channel := domain.JobChannel(jobID)
	sub := r.client.Subscribe(ctx, channel)
	// 確認訂閱成功再回傳，避免漏掉第一筆
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return fmt.Errorf("subscribe %s: %w", channel, err)
	}

	go func() {
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case m, ok := <-ch:
				if !ok {
					return
				}
				var event domain.ProgressEvent
				if err := json.Unmarshal([]byte(m.Payload), &event); err != nil {
					logger.Log.Error("unmarshal progress event failed", zap.String("channel", channel), zap.Error(err))
					continue
				}
				handler(event)
			case <-ctx.Done():
				logger.Log.Debug("progress subscription closed", zap.String("channel", channel))
				return
			}
		}
	}()
	return nil
}
