package database

import (
	"time"
)

// Connection definition amqp setting
type Connection struct {
	ConnectStr string

	RetryCount    int
	RetryInterval time.Duration
}

// MinIOConnection definition minio
type MinIOConnection struct {
	Endpoint   string
	User       string
	Password   string
	BucketName string
	UseSSL     bool

	RetryCount    int
	RetryInterval time.Duration
}

// KafkaConnection definition kafka
type KafkaConnection struct {
	Brokers       []string
	Topic         string
	RetryCount    int
	RetryInterval time.Duration
}

// RedisConnection definition redis, sentinel when SentinelAddrs is set
type RedisConnection struct {
	Addr          string
	Password      string
	DB            int
	MasterName    string
	SentinelAddrs []string
}

func retryCount(n int) int {
	if n < 1 {
		return 1
	}
	return n
}
