package app

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"video_rotate_service/internal/rotate/domain"
	"video_rotate_service/pkg/database"
	errprocess "video_rotate_service/pkg/err"
	"video_rotate_service/pkg/metrics"

	"github.com/google/uuid"
	"github.com/streadway/amqp"
)

// JobUseCase queued rotation: store the original and hand it to a worker
type JobUseCase interface {
	SubmitJob(ctx context.Context, req domain.UploadJobReq) (*domain.UploadJobRes, error)
}

type jobUseCase struct {
	MinioClient   database.MinIOClientRepo
	RabbitChannel database.RabbitRepo // 用於發布旋轉工作訊息的 RabbitMQ Channel
	QueueName     string
}

// NewJobUseCase create JobUseCase
func NewJobUseCase(minIO database.MinIOClientRepo, rabbitChannel database.RabbitRepo, queueName string) JobUseCase {
	if queueName == "" {
		queueName = domain.QueueName
	}
	return &jobUseCase{
		MinioClient:   minIO,
		RabbitChannel: rabbitChannel,
		QueueName:     queueName,
	}
}

// SubmitJob 上傳原始檔到 MinIO 後發布工作訊息 (Producer 動作)
func (j *jobUseCase) SubmitJob(ctx context.Context, req domain.UploadJobReq) (*domain.UploadJobRes, error) {
	if err := (domain.RotationRequest{AngleDegrees: req.Angle}).Validate(); err != nil {
		return nil, err
	}
	fileName := filepath.Base(strings.TrimSpace(req.FileName))
	if fileName == "" || fileName == "." || fileName == string(filepath.Separator) {
		return nil, domain.ErrNoSourceSelected
	}

	jobID := uuid.NewString()
	objectName := fmt.Sprintf("%s/%s/%s", domain.OriginalPrefix, jobID, fileName)

	contentType := req.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	if err := j.MinioClient.PutBytes(ctx, objectName, req.Data, contentType); err != nil {
		errMsg := fmt.Sprintf("fileName[%s] 上傳 MinIO 失敗 : %v", fileName, err)
		return nil, errprocess.Set(errMsg)
	}

	job := domain.RotateJob{
		JobID:     jobID,
		ObjectKey: objectName,
		FileName:  fileName,
		Angle:     req.Angle,
	}
	data, err := json.Marshal(job)
	if err != nil {
		errMsg := fmt.Sprintf("fileName[%s] Job JSON 序列化失敗 : %v", fileName, err)
		return nil, errprocess.Set(errMsg)
	}

	err = j.RabbitChannel.Publish(
		"",          // 預設 exchange
		j.QueueName, // queue 名稱
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    jobID,
			Body:         data,
		},
	)
	if err != nil {
		errMsg := fmt.Sprintf("fileName[%s] 發送 RabbitMQ 訊息失敗 : %v", fileName, err)
		return nil, errprocess.Set(errMsg)
	}

	metrics.JobsTotal.WithLabelValues(string(domain.JobQueued)).Inc()
	return &domain.UploadJobRes{
		Message: "上傳成功，等待旋轉",
		JobID:   jobID,
		Status:  domain.JobQueued,
	}, nil
}
