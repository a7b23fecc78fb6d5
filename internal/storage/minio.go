package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"social-connect-go/internal/config"
	"social-connect-go/internal/logger"
	"social-connect-go/internal/tracing"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/minio/minio-go/v7/pkg/lifecycle"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// 为MinIO操作定义专用tracer
var minioTracer = otel.Tracer("social-connect-go/storage/minio")

// MinIO 封装MinIO客户端，归档已解析的上传文档
type MinIO struct {
	Client *minio.Client
	config *config.MinIOConfig
}

// NewMinIOAdapter 创建MinIO适配器并确保文档桶存在
func NewMinIOAdapter(cfg *config.MinIOConfig) (*MinIO, error) {
	if cfg == nil {
		return nil, fmt.Errorf("MinIO配置不能为空")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("初始化MinIO客户端失败: %w", err)
	}

	m := &MinIO{
		Client: client,
		config: cfg,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := m.ensureBucketExists(ctx, cfg.DocumentsBucket); err != nil {
		return nil, fmt.Errorf("确保文档桶 %s 存在失败: %w", cfg.DocumentsBucket, err)
	}

	return m, nil
}

// ensureBucketExists 检查桶是否存在，不存在则创建并设置生命周期规则
func (m *MinIO) ensureBucketExists(ctx context.Context, bucketName string) error {
	exists, err := m.Client.BucketExists(ctx, bucketName)
	if err != nil {
		return fmt.Errorf("检查桶是否存在失败: %w", err)
	}
	if exists {
		return nil
	}

	if err := m.Client.MakeBucket(ctx, bucketName, minio.MakeBucketOptions{Region: m.config.Location}); err != nil {
		return fmt.Errorf("创建桶失败: %w", err)
	}
	logger.Info().Str("bucket", bucketName).Msg("文档桶已创建")

	// 归档文档按配置天数自动过期
	if m.config.DocumentExpireDays > 0 {
		lcCfg := lifecycle.NewConfiguration()
		lcCfg.Rules = []lifecycle.Rule{
			{
				ID:     "expire-archived-documents",
				Status: "Enabled",
				Expiration: lifecycle.Expiration{
					Days: lifecycle.ExpirationDays(m.config.DocumentExpireDays),
				},
			},
		}
		if err := m.Client.SetBucketLifecycle(ctx, bucketName, lcCfg); err != nil {
			// 生命周期设置失败不阻塞启动，仅记录
			logger.Warn().Err(err).Str("bucket", bucketName).Msg("设置桶生命周期规则失败")
		}
	}

	return nil
}

// ArchiveDocument 将已解析的PDF归档到文档桶
// objectName 由调用方生成，通常为 {userID}/{uploadID}.pdf
func (m *MinIO) ArchiveDocument(ctx context.Context, objectName string, reader io.Reader, size int64) (string, error) {
	ctx, span := minioTracer.Start(ctx, "MinIO.ArchiveDocument", trace.WithAttributes(
		attribute.String("minio.bucket", m.config.DocumentsBucket),
		attribute.String("minio.object", tracing.TruncateString(objectName, tracing.DefaultMaxLength)),
		attribute.Int64("minio.size_bytes", size),
	))
	defer span.End()

	info, err := m.Client.PutObject(ctx, m.config.DocumentsBucket, objectName, reader, size, minio.PutObjectOptions{
		ContentType: "application/pdf",
	})
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeObjectStorage)
		return "", fmt.Errorf("归档文档到MinIO失败: %w", err)
	}

	location := fmt.Sprintf("%s/%s", m.config.DocumentsBucket, info.Key)
	return location, nil
}
