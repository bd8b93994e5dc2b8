package config

import "time"

// Rotate definition rotate_service / rotate_worker YAML structure
type Rotate struct {
	Port        string `mapstructure:"port"`
	IP          string `mapstructure:"ip"`
	MetricsPort string `mapstructure:"metrics_port"`
	MaxUploadMB int    `mapstructure:"max_upload_mb"`

	Engine   EngineConfig   `mapstructure:"engine"`
	Delivery DeliveryConfig `mapstructure:"delivery"`

	MinIO    MinIOConfig    `mapstructure:"minio"`
	RabbitMQ RabbitMQConfig `mapstructure:"rabbitmq"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
}

// EngineConfig definition ffmpeg engine setting
// MetadataTimeout bounds ffprobe per selected source
type EngineConfig struct {
	FFmpegPath      string           `mapstructure:"ffmpeg_path"`
	FFprobePath     string           `mapstructure:"ffprobe_path"`
	WorkDir         string           `mapstructure:"work_dir"`
	LogBuffer       int              `mapstructure:"log_buffer"`
	MetadataTimeout time.Duration    `mapstructure:"metadata_timeout"`
	Resources       []ResourceConfig `mapstructure:"resources"`
}

// ResourceConfig definition engine binary resource (fetched once, cached by digest)
type ResourceConfig struct {
	Name   string `mapstructure:"name"`
	URL    string `mapstructure:"url"`
	Digest string `mapstructure:"digest"`
}

// DeliveryConfig definition output delivery setting
// Mode "memory" | "minio" | "file"; PublicURL prefixes memory download links
type DeliveryConfig struct {
	Mode      string        `mapstructure:"mode"`
	TTL       time.Duration `mapstructure:"ttl"`
	Dir       string        `mapstructure:"dir"`
	PublicURL string        `mapstructure:"public_url"`
}

// MinIOConfig definition minio setting
type MinIOConfig struct {
	Host          string        `mapstructure:"host"`
	Port          int           `mapstructure:"port"`
	User          string        `mapstructure:"user"`
	Password      string        `mapstructure:"password"`
	BucketName    string        `mapstructure:"bucket_name"`
	UseSSL        bool          `mapstructure:"use_ssl"`
	RetryCount    int           `mapstructure:"retry_count"`
	RetryInterval time.Duration `mapstructure:"retry_interval"`
}

// Enabled minio is configured
func (m MinIOConfig) Enabled() bool {
	return m.Host != ""
}

// RabbitMQConfig definition rabbitmq setting
type RabbitMQConfig struct {
	IP            string        `mapstructure:"ip"`
	Port          string        `mapstructure:"port"`
	User          string        `mapstructure:"user"`
	Password      string        `mapstructure:"password"`
	Queue         string        `mapstructure:"queue"`
	RetryCount    int           `mapstructure:"retry_count"`
	RetryInterval time.Duration `mapstructure:"retry_interval"`
}

// Enabled rabbitmq is configured
func (r RabbitMQConfig) Enabled() bool {
	return r.IP != ""
}

// RedisConfig definition redis setting
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	RedisDB  int    `mapstructure:"redis_db"`
}

// Enabled redis is configured
func (r RedisConfig) Enabled() bool {
	return r.Addr != ""
}

// KafkaConfig definition kafka setting
type KafkaConfig struct {
	Brokers       []string      `mapstructure:"brokers"`
	Topic         string        `mapstructure:"topic"`
	RetryCount    int           `mapstructure:"retry_count"`
	RetryInterval time.Duration `mapstructure:"retry_interval"`
}

// Enabled kafka is configured
func (k KafkaConfig) Enabled() bool {
	if k.Topic == "" {
		return false
	}
	for _, b := range k.Brokers {
		if b != "" {
			return true
		}
	}
	return false
}
