package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"video_rotate_service/pkg/logger"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// NewKafkaWriterWithRetry 建立 Kafka Writer，並確認 topic 可以連上
func NewKafkaWriterWithRetry(k KafkaConnection) (*kafka.Writer, error) {
	var err error

	attempts := retryCount(k.RetryCount)
	for attempt := 1; attempt <= attempts; attempt++ {
		err = pingKafka(k)
		if err == nil {
			logger.Log.Info("kafka writer ready", zap.Strings("brokers", k.Brokers), zap.String("topic", k.Topic), zap.Int("attempt", attempt))
			return &kafka.Writer{
				Addr:                   kafka.TCP(k.Brokers...),
				Topic:                  k.Topic,
				Balancer:               &kafka.LeastBytes{},
				AllowAutoTopicCreation: true,
			}, nil
		}

		logger.Log.Warn("kafka connect failed", zap.Int("attempt", attempt), zap.Int("max", attempts), zap.Error(err))
		time.Sleep(k.RetryInterval)
	}

	return nil, fmt.Errorf("無法建立 Kafka Writer，經過 %d 次嘗試: %w", attempts, err)
}

// pingKafka 讀取 topic 的 partition，取代原本送 ping 訊息的作法
func pingKafka(k KafkaConnection) error {
	if len(k.Brokers) == 0 {
		return fmt.Errorf("no kafka brokers")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := kafka.DialContext(ctx, "tcp", k.Brokers[0])
	if err != nil {
		return err
	}
	defer conn.Close()

	_, err = conn.ReadPartitions(k.Topic)
	if errors.Is(err, kafka.UnknownTopicOrPartition) {
		// writer 會自動建立 topic
		return nil
	}
	return err
}
