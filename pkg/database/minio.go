package database

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	"video_rotate_service/pkg/logger"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

// MinIOClientRepo definition minio operations used by the rotate service
type MinIOClientRepo interface {
	PutBytes(ctx context.Context, objectName string, data []byte, contentType string) error
	GetObject(ctx context.Context, objectName string, opts minio.GetObjectOptions) (io.Reader, error)
	GetBytes(ctx context.Context, bucket, objectName string) ([]byte, error)
	PresignDownloadURL(ctx context.Context, objectName, fileName string, expiry time.Duration) (string, error)
	RemoveObject(ctx context.Context, objectName string) error
}

// MinIOClient definition minio client
type MinIOClient struct {
	Client     *minio.Client
	BucketName string
}

// NewMinIOConnection create a new minio connection have retry
func NewMinIOConnection(d MinIOConnection) (*MinIOClient, error) {
	var mc *MinIOClient
	var err error

	attempts := retryCount(d.RetryCount)
	for i := 1; i <= attempts; i++ {
		mc, err = NewMinioClient(d.Endpoint, d.User, d.Password, d.BucketName, d.UseSSL)
		if err == nil {
			logger.Log.Info("minio connected", zap.String("endpoint", d.Endpoint), zap.Int("attempt", i))
			return mc, nil
		}

		logger.Log.Warn("minio connect failed",
			zap.String("endpoint", d.Endpoint),
			zap.Int("attempt", i),
			zap.Int("max", attempts),
			zap.Error(err),
		)
		time.Sleep(d.RetryInterval)
	}

	return nil, err
}

// NewMinioClient create a new minio
func NewMinioClient(endpoint, accessKey, secretKey, bucketName string, useSSL bool) (*MinIOClient, error) {
	minioClient, err := minio.New(endpoint,
		&minio.Options{
			Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
			Secure: useSSL,
		})
	if err != nil {
		return nil, fmt.Errorf("初始化 MinIO 失敗: %w", err)
	}

	ctx := context.Background()
	// 檢查 bucket 是否存在
	exists, err := minioClient.BucketExists(ctx, bucketName)
	if err != nil {
		return nil, fmt.Errorf("檢查 bucket [%s] 失敗: %w", bucketName, err)
	}

	if !exists {
		if err = minioClient.MakeBucket(ctx, bucketName, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("建立 bucket [%s] 失敗: %w", bucketName, err)
		}
		logger.Log.Info("bucket created", zap.String("bucket", bucketName))
	}

	return &MinIOClient{
		Client:     minioClient,
		BucketName: bucketName,
	}, nil
}

// PutBytes upload an in-memory object
func (m *MinIOClient) PutBytes(ctx context.Context, objectName string, data []byte, contentType string) error {
	_, err := m.Client.PutObject(ctx, m.BucketName, objectName, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("上傳物件 %s 失敗: %w", objectName, err)
	}
	return nil
}

// GetObject stream an object of the default bucket
func (m *MinIOClient) GetObject(ctx context.Context, objectName string, opts minio.GetObjectOptions) (io.Reader, error) {
	obj, err := m.Client.GetObject(ctx, m.BucketName, objectName, opts)
	if err != nil {
		return nil, fmt.Errorf("取得物件失敗: %w", err)
	}
	return obj, nil
}

// GetBytes read a whole object; empty bucket means the default one
func (m *MinIOClient) GetBytes(ctx context.Context, bucket, objectName string) ([]byte, error) {
	if bucket == "" {
		bucket = m.BucketName
	}
	obj, err := m.Client.GetObject(ctx, bucket, objectName, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("取得物件 %s/%s 失敗: %w", bucket, objectName, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("讀取物件 %s/%s 失敗: %w", bucket, objectName, err)
	}
	return data, nil
}

// PresignDownloadURL 生成 Presigned URL，下載時以 fileName 作為附件名稱
func (m *MinIOClient) PresignDownloadURL(ctx context.Context, objectName, fileName string, expiry time.Duration) (string, error) {
	reqParams := make(url.Values)
	if fileName != "" {
		reqParams.Set("response-content-disposition", fmt.Sprintf("attachment; filename=%q", fileName))
	}
	presignedURL, err := m.Client.PresignedGetObject(ctx, m.BucketName, objectName, expiry, reqParams)
	if err != nil {
		return "", fmt.Errorf("生成 Presigned URL 失敗: %w", err)
	}
	return presignedURL.String(), nil
}

// RemoveObject delete an object of the default bucket
func (m *MinIOClient) RemoveObject(ctx context.Context, objectName string) error {
	return m.Client.RemoveObject(ctx, m.BucketName, objectName, minio.RemoveObjectOptions{})
}
