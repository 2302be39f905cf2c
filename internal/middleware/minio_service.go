package middleware

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aihub/docsearch/internal/config"
	"github.com/aihub/docsearch/internal/logger"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

// MinIOService 原始PDF归档
type MinIOService struct {
	client *minio.Client
	bucket string
}

// NewMinIOService 创建客户端并确保bucket存在
func NewMinIOService(ctx context.Context, cfg config.ObjectStorageConfig) (*MinIOService, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("minio endpoint not configured")
	}
	if cfg.Bucket == "" {
		cfg.Bucket = "documents"
	}

	// minio.New 不接受协议前缀
	endpoint := strings.TrimPrefix(cfg.Endpoint, "http://")
	endpoint = strings.TrimPrefix(endpoint, "https://")

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	service := &MinIOService{client: client, bucket: cfg.Bucket}
	if err := service.ensureBucket(ctx); err != nil {
		return nil, err
	}
	return service, nil
}

// ensureBucket 带重试，MinIO可能晚于服务启动
func (s *MinIOService) ensureBucket(ctx context.Context) error {
	const attempts = 5

	var lastErr error
	for i := 0; i < attempts; i++ {
		exists, err := s.client.BucketExists(ctx, s.bucket)
		if err == nil && exists {
			return nil
		}
		if err == nil {
			err = s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{})
			if err == nil {
				logger.Info("Created MinIO bucket", zap.String("bucket", s.bucket))
				return nil
			}
			code := minio.ToErrorResponse(err).Code
			if code == "BucketAlreadyExists" || code == "BucketAlreadyOwnedByYou" {
				return nil
			}
		}

		lastErr = err
		wait := time.Duration(i+1) * 2 * time.Second
		logger.Warn("MinIO bucket check failed, retrying",
			zap.Int("attempt", i+1),
			zap.Duration("wait", wait),
			zap.Error(err))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return fmt.Errorf("failed to prepare bucket %s: %w", s.bucket, lastErr)
}

// ObjectKey 文档归档对象路径
func ObjectKey(documentID, filename string) string {
	return path.Join("documents", documentID, path.Base(filename))
}

// ArchiveDocument 保存原始PDF
func (s *MinIOService) ArchiveDocument(ctx context.Context, documentID, filename string, data []byte) (string, error) {
	key := ObjectKey(documentID, filename)
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/pdf",
	})
	if err != nil {
		return "", fmt.Errorf("failed to archive document %s: %w", documentID, err)
	}
	return key, nil
}

// HealthCheck 检查bucket可访问
func (s *MinIOService) HealthCheck(ctx context.Context) error {
	if s == nil || s.client == nil {
		return fmt.Errorf("minio client not initialized")
	}
	_, err := s.client.BucketExists(ctx, s.bucket)
	return err
}
