// Package ingest 实现PDF文档的接入管道：
// 校验 -> 落临时文件 -> 解析 -> 归档 -> 事件通知。
// 临时文件的生命周期严格限定在单次请求内，清理失败只记录不上抛。
package ingest

import (
	"context"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"social-connect-go/internal/config"
	"social-connect-go/internal/constants"
	"social-connect-go/internal/logger"
	"social-connect-go/internal/parser"
	"social-connect-go/internal/storage"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var ingestTracer = otel.Tracer("social-connect-go/ingest")

// DocumentArchiver 解析成功后的文档归档接口，由MinIO适配器实现
type DocumentArchiver interface {
	ArchiveDocument(ctx context.Context, objectName string, reader io.Reader, size int64) (string, error)
}

// EventPublisher 领域事件发布接口，由RabbitMQ适配器实现
type EventPublisher interface {
	PublishJSON(ctx context.Context, routingKey string, message interface{}) error
}

// IngestResult PDF接入结果，直接作为上传端点的响应数据
type IngestResult struct {
	UploadID        string                 `json:"uploadId"`
	ExtractedText   string                 `json:"extractedText"`
	TotalPages      int                    `json:"totalPages"`
	Info            map[string]interface{} `json:"info"`
	FileSizeBytes   int64                  `json:"fileSizeBytes"`
	ArchiveLocation string                 `json:"archiveLocation,omitempty"`
}

// PDFService PDF文档接入服务
// archiver 与 events 均可为nil，此时归档与事件通知降级为跳过
type PDFService struct {
	extractor       parser.PDFExtractor
	archiver        DocumentArchiver
	events          EventPublisher
	cfg             *config.UploadConfig
	eventRoutingKey string
}

// Option PDF接入服务的可选配置
type Option func(*PDFService)

// WithEventRoutingKey 指定文档接入事件的路由键，覆盖默认值
func WithEventRoutingKey(key string) Option {
	return func(s *PDFService) {
		if key != "" {
			s.eventRoutingKey = key
		}
	}
}

// NewPDFService 创建PDF接入服务
func NewPDFService(extractor parser.PDFExtractor, archiver DocumentArchiver, events EventPublisher, cfg *config.UploadConfig, opts ...Option) *PDFService {
	s := &PDFService{
		extractor:       extractor,
		archiver:        archiver,
		events:          events,
		cfg:             cfg,
		eventRoutingKey: constants.DocumentIngestedRoutingKey,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// maxFileSize 上传大小上限
func (s *PDFService) maxFileSize() int64 {
	if s.cfg != nil && s.cfg.MaxFileSizeBytes > 0 {
		return s.cfg.MaxFileSizeBytes
	}
	return constants.DefaultMaxUploadBytes
}

// tempDir 临时文件目录，为空时使用系统默认
func (s *PDFService) tempDir() string {
	if s.cfg != nil && s.cfg.TempDir != "" {
		return s.cfg.TempDir
	}
	return os.TempDir()
}

// ProcessUpload 执行完整的PDF接入管道
// 所有校验在写入任何存储之前完成，校验失败不留任何落盘痕迹
func (s *PDFService) ProcessUpload(ctx context.Context, reader io.Reader, declaredSize int64, contentType, originalName string) (*IngestResult, error) {
	const op = "ProcessUpload"

	ctx, span := ingestTracer.Start(ctx, "PDFService.ProcessUpload")
	defer span.End()

	// 入口门禁：类型与大小，先于一切落盘动作
	if !isPDFContentType(contentType) {
		return nil, newError(op, ErrUnsupportedMediaType, fmt.Sprintf("收到类型 %q", contentType), nil)
	}
	if declaredSize > s.maxFileSize() {
		return nil, newError(op, ErrFileTooLarge, fmt.Sprintf("声明大小 %d 字节，上限 %d 字节", declaredSize, s.maxFileSize()), nil)
	}
	if declaredSize == 0 {
		return nil, newError(op, ErrEmptyFile, "", nil)
	}

	uploadID := uuid.NewString()
	span.SetAttributes(
		attribute.String("upload.id", uploadID),
		attribute.Int64("upload.declared_size", declaredSize),
	)

	// 落临时文件，请求结束后清理
	tempPath := filepath.Join(s.tempDir(), fmt.Sprintf("upload-%s.pdf", uploadID))
	written, err := s.writeTempFile(tempPath, reader)
	if err != nil {
		return nil, err
	}
	defer func() {
		// 清理失败不影响请求结果
		if rmErr := os.Remove(tempPath); rmErr != nil && !os.IsNotExist(rmErr) {
			logger.Warn().Err(rmErr).Str("path", tempPath).Msg("清理临时PDF文件失败")
		}
	}()

	// 流式写入后按实际字节数复核大小
	if written > s.maxFileSize() {
		return nil, newError(op, ErrFileTooLarge, fmt.Sprintf("实际大小 %d 字节，上限 %d 字节", written, s.maxFileSize()), nil)
	}
	if written == 0 {
		return nil, newError(op, ErrEmptyFile, "", nil)
	}

	extraction, err := s.extractor.ExtractFromFile(ctx, tempPath)
	if err != nil {
		return nil, newError(op, ErrExtraction, "", err)
	}
	if extraction.Metadata == nil {
		extraction.Metadata = map[string]interface{}{}
	}
	if originalName != "" {
		extraction.Metadata["original_filename"] = originalName
	}
	span.SetAttributes(
		attribute.Int("upload.page_count", extraction.PageCount),
		attribute.Int("upload.text_length", len(extraction.Text)),
	)

	result := &IngestResult{
		UploadID:      uploadID,
		ExtractedText: extraction.Text,
		TotalPages:    extraction.PageCount,
		Info:          extraction.Metadata,
		FileSizeBytes: written,
	}

	// 归档与事件通知均为尽力而为
	result.ArchiveLocation = s.archive(ctx, uploadID, tempPath, written)
	s.notify(ctx, result)

	return result, nil
}

// writeTempFile 将上传内容写入临时文件，返回实际写入字节数
func (s *PDFService) writeTempFile(tempPath string, reader io.Reader) (int64, error) {
	const op = "writeTempFile"

	f, err := os.OpenFile(tempPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return 0, newError(op, ErrInternal, "创建临时文件失败", err)
	}

	// 多读一个字节以识别超限
	written, copyErr := io.Copy(f, io.LimitReader(reader, s.maxFileSize()+1))
	closeErr := f.Close()

	if copyErr != nil {
		os.Remove(tempPath)
		return 0, newError(op, ErrInternal, "写入临时文件失败", copyErr)
	}
	if closeErr != nil {
		os.Remove(tempPath)
		return 0, newError(op, ErrInternal, "关闭临时文件失败", closeErr)
	}
	return written, nil
}

// archive 将临时文件归档到对象存储，失败仅记录
func (s *PDFService) archive(ctx context.Context, uploadID, tempPath string, size int64) string {
	if s.archiver == nil {
		return ""
	}

	f, err := os.Open(tempPath)
	if err != nil {
		logger.Warn().Err(err).Str("upload_id", uploadID).Msg("打开临时文件归档失败")
		return ""
	}
	defer f.Close()

	objectName := fmt.Sprintf("%s/%s.pdf", time.Now().Format("2006/01/02"), uploadID)
	location, err := s.archiver.ArchiveDocument(ctx, objectName, f, size)
	if err != nil {
		logger.Warn().Err(err).Str("upload_id", uploadID).Msg("归档PDF文档失败")
		return ""
	}
	return location
}

// notify 发布文档接入事件，失败仅记录
func (s *PDFService) notify(ctx context.Context, result *IngestResult) {
	if s.events == nil {
		return
	}

	msg := storage.DocumentIngestedMessage{
		UploadID:        result.UploadID,
		ObjectLocation:  result.ArchiveLocation,
		PageCount:       result.TotalPages,
		FileSizeBytes:   result.FileSizeBytes,
		TextLengthRunes: len([]rune(result.ExtractedText)),
		IngestedAt:      time.Now(),
	}
	if err := s.events.PublishJSON(ctx, s.eventRoutingKey, msg); err != nil {
		logger.Warn().Err(err).Str("upload_id", result.UploadID).Msg("发布文档接入事件失败")
	}
}

// isPDFContentType 判断Content-Type是否为PDF，容忍参数后缀如charset
func isPDFContentType(contentType string) bool {
	if contentType == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return strings.EqualFold(mediaType, constants.PDFContentType)
}
