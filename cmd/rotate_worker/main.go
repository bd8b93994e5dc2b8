package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"video_rotate_service/internal/rotate/app"
	"video_rotate_service/internal/rotate/domain"
	"video_rotate_service/internal/rotate/repository"
	"video_rotate_service/pkg/config"
	"video_rotate_service/pkg/database"
	"video_rotate_service/pkg/logger"
	testtool "video_rotate_service/pkg/test_tool"

	"go.uber.org/zap"
)

func main() {
	logger.Log = logger.Initialize(config.EnvConfig.RotateWorker, config.EnvConfig.RotateWorkerLogPath)
	defer logger.Log.Sync()

	cfg := config.LoadConfig[config.Rotate](config.EnvConfig.RotateWorker, config.EnvConfig.RotateWorkerYAMLPath)
	testtool.StartPprof()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. 初始化 MinIO 客戶端，下載原始檔與交付結果都靠它
	minioClient, err := database.NewMinIOConnection(database.MinIOConnection{
		Endpoint:   fmt.Sprintf("%s:%d", cfg.MinIO.Host, cfg.MinIO.Port),
		User:       cfg.MinIO.User,
		Password:   cfg.MinIO.Password,
		BucketName: cfg.MinIO.BucketName,
		UseSSL:     cfg.MinIO.UseSSL,

		RetryCount:    cfg.MinIO.RetryCount,
		RetryInterval: cfg.MinIO.RetryInterval,
	})
	if err != nil {
		logger.Log.Fatal("Unable to connect to minio after retries", zap.Error(err))
	}

	// worker 沒有 HTTP，預設交付到 MinIO
	deliveryCfg := cfg.Delivery
	if deliveryCfg.Mode == "" || deliveryCfg.Mode == "memory" {
		deliveryCfg.Mode = "minio"
	}
	delivery, _, err := app.NewDelivery(deliveryCfg, minioClient)
	if err != nil {
		logger.Log.Fatal("invalid delivery setting", zap.Error(err))
	}

	pipeline, err := app.NewPipeline(cfg.Engine, delivery, minioClient)
	if err != nil {
		logger.Log.Fatal("build rotation pipeline failed", zap.Error(err))
	}
	defer pipeline.Orchestrator.Close()

	// 引擎和下面的連線同時準備，開始消費前再等它
	go func() {
		_ = pipeline.Lifecycle.Initialize(ctx)
	}()

	// 2. RabbitMQ
	conn, err := database.ConnectRabbitMQWithRetry(database.Connection{
		ConnectStr:    database.RabbitURL(cfg.RabbitMQ.User, cfg.RabbitMQ.Password, cfg.RabbitMQ.IP, cfg.RabbitMQ.Port),
		RetryCount:    cfg.RabbitMQ.RetryCount,
		RetryInterval: cfg.RabbitMQ.RetryInterval,
	})
	if err != nil {
		logger.Log.Fatal("RabbitMQ 連線失敗", zap.Error(err))
	}
	defer conn.Close()

	rabbitChannel, err := database.GetRabbitMQChannelWithRetry(conn, cfg.RabbitMQ.RetryCount, cfg.RabbitMQ.RetryInterval)
	if err != nil {
		logger.Log.Fatal("取得 RabbitMQ Channel 失敗", zap.Error(err))
	}
	defer rabbitChannel.Close()

	queue := cfg.RabbitMQ.Queue
	if queue == "" {
		queue = domain.QueueName
	}
	if err := database.DeclareQueue(rabbitChannel, queue); err != nil {
		logger.Log.Fatal("Queue Declare failed", zap.Error(err))
	}

	// 3. redis 進度 (選用)
	var progress repository.ProgressPublisher
	if cfg.Redis.Enabled() {
		masterName, sentinels := config.GetRedisSetting()
		rdb, err := database.NewRedisClient(ctx, database.RedisConnection{
			Addr:          cfg.Redis.Addr,
			Password:      cfg.Redis.Password,
			DB:            cfg.Redis.RedisDB,
			MasterName:    masterName,
			SentinelAddrs: sentinels,
		})
		if err != nil {
			logger.Log.Fatal("redis 連線失敗", zap.Error(err))
		}
		defer rdb.Close()
		progress = repository.NewRedisPubSub(rdb)
	}

	// 4. kafka 結果 (選用)
	var results repository.ResultWriter = repository.NopResultWriter{}
	if cfg.Kafka.Enabled() {
		kafkaWriter, err := database.NewKafkaWriterWithRetry(database.KafkaConnection{
			Brokers:       cfg.Kafka.Brokers,
			Topic:         cfg.Kafka.Topic,
			RetryCount:    cfg.Kafka.RetryCount,
			RetryInterval: cfg.Kafka.RetryInterval,
		})
		if err != nil {
			logger.Log.Fatal("Kafka Writer 建立失敗", zap.Error(err))
		}
		defer kafkaWriter.Close()
		results = repository.NewKafkaResultWriter(kafkaWriter)
	}

	if err := pipeline.Lifecycle.WaitReady(ctx); err != nil {
		logger.Log.Fatal("engine initialization failed", zap.Error(err))
	}

	consumer := app.NewConsumer(
		rabbitChannel,
		minioClient,
		pipeline.Session,
		pipeline.Orchestrator,
		pipeline.State,
		progress,
		results,
		queue,
	)
	if err := consumer.StartConsumer(ctx); err != nil {
		logger.Log.Fatal("consumer stopped", zap.Error(err))
	}
	logger.Log.Info("rotate worker stopped")
}
