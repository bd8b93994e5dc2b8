package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"video_rotate_service/internal/rotate/domain"
	"video_rotate_service/internal/rotate/repository"
	"video_rotate_service/pkg/database"
	"video_rotate_service/pkg/logger"
	"video_rotate_service/pkg/metrics"

	"github.com/streadway/amqp"
	"go.uber.org/zap"
)

// Rotator synchronous rotation of the selected source, waiting for the
// engine when another run holds it
type Rotator interface {
	RotateWhenFree(ctx context.Context, angle int) (*RunResult, error)
}

// Consumer 定義一個消息消費者，將所有必要的依賴注入進來
type Consumer struct {
	rabbitChannel *amqp.Channel
	minioClient   database.MinIOClientRepo
	session       *Session
	rotator       Rotator
	state         *StateStore
	progress      repository.ProgressPublisher
	results       repository.ResultWriter
	queueName     string
	retryDelay    time.Duration
}

// NewConsumer 建構 Consumer 實例
func NewConsumer(rabbitChannel *amqp.Channel,
	minioClient database.MinIOClientRepo,
	session *Session,
	rotator Rotator,
	state *StateStore,
	progress repository.ProgressPublisher,
	results repository.ResultWriter,
	queueName string,
) *Consumer {
	if queueName == "" {
		queueName = domain.QueueName
	}
	if results == nil {
		results = repository.NopResultWriter{}
	}
	return &Consumer{
		rabbitChannel: rabbitChannel,
		minioClient:   minioClient,
		session:       session,
		rotator:       rotator,
		state:         state,
		progress:      progress,
		results:       results,
		queueName:     queueName,
		retryDelay:    5 * time.Second,
	}
}

// StartConsumer 開始消費訊息；一次只拿一筆，和引擎單一工作區一致
func (c *Consumer) StartConsumer(ctx context.Context) error {
	if err := c.rabbitChannel.Qos(1, 0, false); err != nil {
		return fmt.Errorf("設定 prefetch 失敗: %w", err)
	}

	msgs, err := c.rabbitChannel.Consume(
		c.queueName, // queue
		"",          // consumer tag，留空由系統分配
		false,       // autoAck 為 false，使用手動確認
		false,       // exclusive
		false,       // noLocal
		false,       // noWait
		nil,         // arguments
	)
	if err != nil {
		return fmt.Errorf("無法開始消費 RabbitMQ 訊息: %w", err)
	}

	logger.Log.Info("consumer started", zap.String("queue", c.queueName))

	for {
		select {
		case d, ok := <-msgs:
			if !ok {
				logger.Log.Info("rabbitmq delivery channel closed")
				return nil
			}
			c.handle(ctx, d)
		case <-ctx.Done():
			logger.Log.Info("consumer stopping")
			return nil
		}
	}
}

// handle one delivery. Transient conditions are requeued after retryDelay;
// anything else is acked with a failed result so it is not retried forever.
func (c *Consumer) handle(ctx context.Context, d amqp.Delivery) {
	var job domain.RotateJob
	if err := json.Unmarshal(d.Body, &job); err != nil {
		logger.Log.Error("invalid rotate job message", zap.Error(err))
		if err := d.Nack(false, false); err != nil {
			logger.Log.Error("nack failed", zap.Error(err))
		}
		return
	}

	logger.Log.Info("rotate job received", zap.String("job_id", job.JobID), zap.String("file", job.FileName), zap.Int("angle", job.Angle))

	result, err := c.processRotateJob(ctx, job)
	if err != nil && retryable(err) {
		logger.Log.Warn("rotate job requeued", zap.String("job_id", job.JobID), zap.Error(err))
		select {
		case <-time.After(c.retryDelay):
		case <-ctx.Done():
		}
		if err := d.Nack(false, true); err != nil {
			logger.Log.Error("nack failed", zap.Error(err))
		}
		return
	}

	metrics.JobsTotal.WithLabelValues(string(result.Status)).Inc()
	if err := c.results.Write(ctx, result); err != nil {
		logger.Log.Error("write job result failed", zap.String("job_id", job.JobID), zap.Error(err))
	}
	c.publish(ctx, domain.ProgressEvent{
		JobID:  job.JobID,
		State:  c.state.Snapshot(),
		Status: result.Status,
		Error:  result.Error,
	})

	if err := d.Ack(false); err != nil {
		logger.Log.Error("ack failed", zap.String("job_id", job.JobID), zap.Error(err))
	}
}

func retryable(err error) bool {
	return errors.Is(err, domain.ErrBusy) ||
		errors.Is(err, domain.ErrEngineNotReady) ||
		errors.Is(err, context.Canceled)
}

// processRotateJob 負責執行旋轉工作：
// 1. 從 MinIO 下載原始影片
// 2. 選取為目前來源並等待 metadata
// 3. 旋轉並把進度轉發到 redis
func (c *Consumer) processRotateJob(ctx context.Context, job domain.RotateJob) (domain.JobResult, error) {
	result := domain.JobResult{JobID: job.JobID, Status: domain.JobFailed}

	data, err := c.minioClient.GetBytes(ctx, "", job.ObjectKey)
	if err != nil {
		result.Error = fmt.Sprintf("download original: %v", err)
		return result, nil
	}

	select {
	case <-c.session.Select(job.FileName, data):
	case <-ctx.Done():
		return result, ctx.Err()
	}

	stop := c.forwardProgress(ctx, job.JobID)
	res, err := c.rotator.RotateWhenFree(ctx, job.Angle)
	stop()
	if err != nil {
		if retryable(err) || ctx.Err() != nil {
			return result, errors.Join(err, ctx.Err())
		}
		result.Error = err.Error()
		return result, nil
	}

	result.Status = domain.JobDone
	result.RunID = res.RunID
	download := res.Download
	result.Download = &download
	return result, nil
}

// forwardProgress publish every state of the next run until stop is called
func (c *Consumer) forwardProgress(ctx context.Context, jobID string) (stop func()) {
	states, cancel := c.state.Subscribe(16)
	prev := (<-states).RunID

	done := make(chan struct{})
	go func() {
		defer close(done)
		for st := range states {
			if st.RunID == prev {
				continue
			}
			c.publish(ctx, domain.ProgressEvent{JobID: jobID, State: st})
		}
	}()

	return func() {
		cancel()
		<-done
	}
}

func (c *Consumer) publish(ctx context.Context, event domain.ProgressEvent) {
	if c.progress == nil {
		return
	}
	if err := c.progress.Publish(ctx, event); err != nil {
		logger.Log.Warn("publish progress failed", zap.String("job_id", event.JobID), zap.Error(err))
	}
}
