package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"video_rotate_service/internal/rotate/domain"

	"github.com/segmentio/kafka-go"
)

// ResultWriter job results sink
type ResultWriter interface {
	Write(ctx context.Context, result domain.JobResult) error
}

// MessageWriter the part of *kafka.Writer used here
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// KafkaResultWriter 每個 job 結束寫一筆，key 為 job id
type KafkaResultWriter struct {
	writer MessageWriter
}

// NewKafkaResultWriter create KafkaResultWriter
func NewKafkaResultWriter(w MessageWriter) *KafkaResultWriter {
	return &KafkaResultWriter{writer: w}
}

// Write implements ResultWriter
func (k *KafkaResultWriter) Write(ctx context.Context, result domain.JobResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal job result: %w", err)
	}
	return k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(result.JobID),
		Value: data,
		Headers: []kafka.Header{
			{Key: "status", Value: []byte(result.Status)},
		},
	})
}

// NopResultWriter used when kafka is not configured
type NopResultWriter struct{}

// Write implements ResultWriter
func (NopResultWriter) Write(context.Context, domain.JobResult) error { return nil }
