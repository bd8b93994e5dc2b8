package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"video_rotate_service/internal/rotate/api/handlers"
	"video_rotate_service/internal/rotate/api/router"
	"video_rotate_service/internal/rotate/app"
	"video_rotate_service/internal/rotate/domain"
	"video_rotate_service/internal/rotate/engine"
	"video_rotate_service/internal/rotate/repository"
	"video_rotate_service/pkg/config"
	"video_rotate_service/pkg/database"
	"video_rotate_service/pkg/logger"
	testtool "video_rotate_service/pkg/test_tool"

	"github.com/gofiber/fiber/v2"
	fiber_log "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/streadway/amqp"
	"go.uber.org/zap"
)

func main() {
	logger.Log = logger.Initialize(config.EnvConfig.RotateService, config.EnvConfig.RotateServiceLogPath)
	defer logger.Log.Sync()

	cfg := config.LoadConfig[config.Rotate](config.EnvConfig.RotateService, config.EnvConfig.RotateServiceYAMLPath)
	testtool.StartPprof()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. MinIO (選用)：minio 交付、s3:// 引擎資源、佇列模式
	var objects database.MinIOClientRepo
	var minioClient *database.MinIOClient
	if cfg.MinIO.Enabled() {
		mc, err := connectMinIO(cfg.MinIO)
		if err != nil {
			logger.Log.Fatal("Unable to connect to minio after retries", zap.Error(err))
		}
		minioClient = mc
		objects = mc
	}

	// 2. 交付方式與旋轉流程
	delivery, memory, err := app.NewDelivery(cfg.Delivery, objects)
	if err != nil {
		logger.Log.Fatal("invalid delivery setting", zap.Error(err))
	}
	var reader engine.ObjectReader
	if minioClient != nil {
		reader = minioClient
	}
	pipeline, err := app.NewPipeline(cfg.Engine, delivery, reader)
	if err != nil {
		logger.Log.Fatal("build rotation pipeline failed", zap.Error(err))
	}
	defer pipeline.Orchestrator.Close()

	if memory != nil {
		go memory.Run(ctx, time.Minute)
	}

	// 引擎在背景載入，載入完成前 /rotate 回 503
	go func() {
		if err := pipeline.Lifecycle.Initialize(ctx); err != nil {
			logger.Log.Error("engine initialization failed", zap.Error(err))
		}
	}()

	rotateHandler := &handlers.RotateHandler{
		Session: pipeline.Session,
		Runs:    pipeline.Orchestrator,
		State:   pipeline.State,
		Engine:  pipeline.Lifecycle,
	}
	if memory != nil {
		rotateHandler.Downloads = memory
	}

	// 3. 佇列模式 (選用)：RabbitMQ + MinIO，進度走 redis
	jobHandler, closeQueue := setupQueue(ctx, cfg, objects)
	defer closeQueue()

	// 4. Fiber
	bodyLimit := cfg.MaxUploadMB
	if bodyLimit <= 0 {
		bodyLimit = 512
	}
	r := fiber.New(fiber.Config{BodyLimit: bodyLimit * 1024 * 1024})

	file, err := os.OpenFile(fmt.Sprintf("%s/access.log", config.EnvConfig.RotateServiceLogPath), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0666)
	if err != nil {
		logger.Log.Fatal("Failed to open access log", zap.Error(err))
	}
	defer file.Close()
	r.Use(fiber_log.New(fiber_log.Config{
		Output: file,
	}))

	router.RegisterRoutes(r, rotateHandler, jobHandler)

	go func() {
		<-ctx.Done()
		logger.Log.Info("shutting down rotate service")
		if err := r.ShutdownWithTimeout(10 * time.Second); err != nil {
			logger.Log.Error("server shutdown failed", zap.Error(err))
		}
	}()

	addr := cfg.IP + ":" + cfg.Port
	logger.Log.Info("rotate service listening", zap.String("addr", addr))
	if err := r.Listen(addr); err != nil {
		logger.Log.Fatal("Server failed to start", zap.Error(err))
	}
}

func connectMinIO(c config.MinIOConfig) (*database.MinIOClient, error) {
	return database.NewMinIOConnection(database.MinIOConnection{
		Endpoint:   fmt.Sprintf("%s:%d", c.Host, c.Port),
		User:       c.User,
		Password:   c.Password,
		BucketName: c.BucketName,
		UseSSL:     c.UseSSL,

		RetryCount:    c.RetryCount,
		RetryInterval: c.RetryInterval,
	})
}

// setupQueue returns a nil handler when queued mode is not configured
func setupQueue(ctx context.Context, cfg config.Rotate, objects database.MinIOClientRepo) (*handlers.JobHandler, func()) {
	noop := func() {}
	if !cfg.RabbitMQ.Enabled() || !cfg.Redis.Enabled() || objects == nil {
		logger.Log.Info("queued mode disabled, needs rabbitmq, redis and minio")
		return nil, noop
	}

	conn, err := database.ConnectRabbitMQWithRetry(database.Connection{
		ConnectStr:    database.RabbitURL(cfg.RabbitMQ.User, cfg.RabbitMQ.Password, cfg.RabbitMQ.IP, cfg.RabbitMQ.Port),
		RetryCount:    cfg.RabbitMQ.RetryCount,
		RetryInterval: cfg.RabbitMQ.RetryInterval,
	})
	if err != nil {
		logger.Log.Fatal("RabbitMQ 連線失敗", zap.Error(err))
	}
	ch, err := database.GetRabbitMQChannelWithRetry(conn, cfg.RabbitMQ.RetryCount, cfg.RabbitMQ.RetryInterval)
	if err != nil {
		logger.Log.Fatal("取得 RabbitMQ Channel 失敗", zap.Error(err))
	}
	if err := database.DeclareQueue(ch, queueName(cfg.RabbitMQ)); err != nil {
		logger.Log.Fatal("Queue Declare failed", zap.Error(err))
	}

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

	handler := &handlers.JobHandler{
		UseCase:  app.NewJobUseCase(objects, database.NewRabbitRepository(ch), queueName(cfg.RabbitMQ)),
		Progress: repository.NewRedisPubSub(rdb),
	}
	return handler, func() {
		closeAll(ch, conn)
		rdb.Close()
	}
}

func queueName(c config.RabbitMQConfig) string {
	if c.Queue != "" {
		return c.Queue
	}
	return domain.QueueName
}

func closeAll(ch *amqp.Channel, conn *amqp.Connection) {
	if err := ch.Close(); err != nil {
		logger.Log.Warn("close rabbitmq channel", zap.Error(err))
	}
	if err := conn.Close(); err != nil {
		logger.Log.Warn("close rabbitmq connection", zap.Error(err))
	}
}
