package database

import (
	"fmt"
	"time"

	"video_rotate_service/pkg/logger"

	"github.com/streadway/amqp"
	"go.uber.org/zap"
)

// RabbitRepo definition rabbit repo
type RabbitRepo interface {
	GetRabbit() *amqp.Channel
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

type rabbitRepo struct {
	channel *amqp.Channel
}

// NewRabbitRepository create a RabbitRepository
func NewRabbitRepository(ch *amqp.Channel) RabbitRepo {
	return &rabbitRepo{channel: ch}
}

// RabbitURL amqp://user:password@ip:port/
func RabbitURL(user, password, ip, port string) string {
	return fmt.Sprintf("amqp://%s:%s@%s:%s/", user, password, ip, port)
}

// ConnectRabbitMQWithRetry 嘗試連線到 RabbitMQ，失敗時固定間隔重試
func ConnectRabbitMQWithRetry(d Connection) (*amqp.Connection, error) {
	var conn *amqp.Connection
	var err error

	attempts := retryCount(d.RetryCount)
	for attempt := 1; attempt <= attempts; attempt++ {
		conn, err = amqp.Dial(d.ConnectStr)
		if err == nil {
			logger.Log.Info("rabbitmq connected", zap.Int("attempt", attempt))
			return conn, nil
		}

		logger.Log.Warn("rabbitmq connect failed", zap.Int("attempt", attempt), zap.Int("max", attempts), zap.Error(err))
		time.Sleep(d.RetryInterval)
	}

	return nil, fmt.Errorf("無法連線 RabbitMQ，經過 %d 次嘗試: %w", attempts, err)
}

// GetRabbitMQChannelWithRetry 使用已有的 RabbitMQ 連線嘗試取得 Channel
func GetRabbitMQChannelWithRetry(conn *amqp.Connection, maxRetries int, delay time.Duration) (*amqp.Channel, error) {
	var ch *amqp.Channel
	var err error

	attempts := retryCount(maxRetries)
	for attempt := 1; attempt <= attempts; attempt++ {
		ch, err = conn.Channel()
		if err == nil {
			return ch, nil
		}

		logger.Log.Warn("rabbitmq channel failed", zap.Int("attempt", attempt), zap.Int("max", attempts), zap.Error(err))
		time.Sleep(delay)
	}

	return nil, fmt.Errorf("無法取得 RabbitMQ Channel，經過 %d 次嘗試: %w", attempts, err)
}

// DeclareQueue durable queue shared by producer and worker
func DeclareQueue(ch *amqp.Channel, name string) error {
	_, err := ch.QueueDeclare(
		name,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,
	)
	if err != nil {
		return fmt.Errorf("宣告 queue %s 失敗: %w", name, err)
	}
	return nil
}

func (r *rabbitRepo) GetRabbit() *amqp.Channel {
	return r.channel
}

func (r *rabbitRepo) Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	return r.channel.Publish(exchange, key, mandatory, immediate, msg)
}
