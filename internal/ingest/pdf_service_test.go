package ingest_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"social-connect-go/internal/config"
	"social-connect-go/internal/ingest"
	"social-connect-go/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockExtractor 固定返回预设结果的PDF提取器
type mockExtractor struct {
	result   *types.PdfExtractionResult
	err      error
	gotPaths []string
}

func (m *mockExtractor) ExtractFromFile(_ context.Context, filePath string) (*types.PdfExtractionResult, error) {
	m.gotPaths = append(m.gotPaths, filePath)
	if m.err != nil {
		return nil, m.err
	}
	// 返回副本，避免测试间共享metadata；预设为nil时保持nil
	cp := *m.result
	if m.result.Metadata != nil {
		cp.Metadata = map[string]interface{}{}
		for k, v := range m.result.Metadata {
			cp.Metadata[k] = v
		}
	}
	return &cp, nil
}

// mockArchiver 记录归档调用
type mockArchiver struct {
	mu       sync.Mutex
	objects  []string
	err      error
	location string
}

func (m *mockArchiver) ArchiveDocument(_ context.Context, objectName string, _ io.Reader, _ int64) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	m.objects = append(m.objects, objectName)
	return m.location, nil
}

// mockPublisher 记录事件发布
type mockPublisher struct {
	mu   sync.Mutex
	keys []string
	msgs []interface{}
}

func (m *mockPublisher) PublishJSON(_ context.Context, routingKey string, message interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys = append(m.keys, routingKey)
	m.msgs = append(m.msgs, message)
	return nil
}

func defaultResult() *types.PdfExtractionResult {
	return &types.PdfExtractionResult{
		Text:      "extracted resume text",
		PageCount: 2,
		Metadata:  map[string]interface{}{"pdf_title": "Resume"},
	}
}

func newTestService(t *testing.T, extractor *mockExtractor, archiver ingest.DocumentArchiver, events ingest.EventPublisher, maxSize int64) (*ingest.PDFService, string) {
	t.Helper()
	tempDir := t.TempDir()
	cfg := &config.UploadConfig{
		MaxFileSizeBytes: maxSize,
		TempDir:          tempDir,
	}
	return ingest.NewPDFService(extractor, archiver, events, cfg), tempDir
}

func TestProcessUploadRejectsNonPDF(t *testing.T) {
	extractor := &mockExtractor{result: defaultResult()}
	svc, tempDir := newTestService(t, extractor, nil, nil, 1024)

	_, err := svc.ProcessUpload(context.Background(), bytes.NewReader([]byte("hello")), 5, "text/plain", "notes.txt")
	assert.ErrorIs(t, err, ingest.ErrUnsupportedMediaType)

	// 校验失败不应留下任何临时文件
	entries, readErr := os.ReadDir(tempDir)
	require.NoError(t, readErr)
	assert.Empty(t, entries)
	assert.Empty(t, extractor.gotPaths)
}

func TestProcessUploadRejectsOversizedBeforeWrite(t *testing.T) {
	extractor := &mockExtractor{result: defaultResult()}
	svc, tempDir := newTestService(t, extractor, nil, nil, 100)

	_, err := svc.ProcessUpload(context.Background(), bytes.NewReader(make([]byte, 200)), 200, "application/pdf", "big.pdf")
	assert.ErrorIs(t, err, ingest.ErrFileTooLarge)

	entries, readErr := os.ReadDir(tempDir)
	require.NoError(t, readErr)
	assert.Empty(t, entries)
}

func TestProcessUploadRejectsEmptyFile(t *testing.T) {
	extractor := &mockExtractor{result: defaultResult()}
	svc, _ := newTestService(t, extractor, nil, nil, 1024)

	_, err := svc.ProcessUpload(context.Background(), bytes.NewReader(nil), 0, "application/pdf", "empty.pdf")
	assert.ErrorIs(t, err, ingest.ErrEmptyFile)
}

func TestProcessUploadDetectsUndersizedDeclaration(t *testing.T) {
	// 声明大小合法但实际内容超限时，落盘后复核仍要拒绝
	extractor := &mockExtractor{result: defaultResult()}
	svc, tempDir := newTestService(t, extractor, nil, nil, 100)

	_, err := svc.ProcessUpload(context.Background(), bytes.NewReader(make([]byte, 200)), 50, "application/pdf", "liar.pdf")
	assert.ErrorIs(t, err, ingest.ErrFileTooLarge)

	// 临时文件必须已清理
	entries, readErr := os.ReadDir(tempDir)
	require.NoError(t, readErr)
	assert.Empty(t, entries)
}

func TestProcessUploadSuccess(t *testing.T) {
	extractor := &mockExtractor{result: defaultResult()}
	archiver := &mockArchiver{location: "documents/2026/01/01/abc.pdf"}
	publisher := &mockPublisher{}
	svc, tempDir := newTestService(t, extractor, archiver, publisher, 1024)

	content := []byte("%PDF-1.4 fake content")
	result, err := svc.ProcessUpload(context.Background(), bytes.NewReader(content), int64(len(content)), "application/pdf", "resume.pdf")
	require.NoError(t, err)

	assert.NotEmpty(t, result.UploadID)
	assert.Equal(t, 2, result.TotalPages)
	assert.Equal(t, "extracted resume text", result.ExtractedText)
	assert.Equal(t, "resume.pdf", result.Info["original_filename"])
	assert.Equal(t, int64(len(content)), result.FileSizeBytes)
	assert.Equal(t, "documents/2026/01/01/abc.pdf", result.ArchiveLocation)

	// 提取器收到的路径位于配置的临时目录内
	require.Len(t, extractor.gotPaths, 1)
	assert.Equal(t, tempDir, filepath.Dir(extractor.gotPaths[0]))

	// 请求结束后临时文件已清理
	entries, readErr := os.ReadDir(tempDir)
	require.NoError(t, readErr)
	assert.Empty(t, entries)

	// 归档与事件通知均已触发
	require.Len(t, archiver.objects, 1)
	require.Len(t, publisher.keys, 1)
}

func TestProcessUploadHandlesNilMetadata(t *testing.T) {
	extractor := &mockExtractor{result: &types.PdfExtractionResult{
		Text:      "plain extraction",
		PageCount: 1,
	}}
	svc, _ := newTestService(t, extractor, nil, nil, 1024)

	content := []byte("%PDF-1.4 fake content")
	result, err := svc.ProcessUpload(context.Background(), bytes.NewReader(content), int64(len(content)), "application/pdf", "resume.pdf")
	require.NoError(t, err)
	require.NotNil(t, result.Info)
	assert.Equal(t, "resume.pdf", result.Info["original_filename"])
}

func TestProcessUploadToleratesContentTypeParams(t *testing.T) {
	extractor := &mockExtractor{result: defaultResult()}
	svc, _ := newTestService(t, extractor, nil, nil, 1024)

	content := []byte("%PDF-1.4")
	_, err := svc.ProcessUpload(context.Background(), bytes.NewReader(content), int64(len(content)), "application/pdf; charset=binary", "resume.pdf")
	assert.NoError(t, err)
}

func TestProcessUploadExtractionFailure(t *testing.T) {
	extractor := &mockExtractor{err: errors.New("corrupt xref table")}
	svc, tempDir := newTestService(t, extractor, nil, nil, 1024)

	content := []byte("%PDF-1.4 broken")
	_, err := svc.ProcessUpload(context.Background(), bytes.NewReader(content), int64(len(content)), "application/pdf", "broken.pdf")
	assert.ErrorIs(t, err, ingest.ErrExtraction)

	// 解析失败后临时文件也要清理
	entries, readErr := os.ReadDir(tempDir)
	require.NoError(t, readErr)
	assert.Empty(t, entries)
}

func TestProcessUploadUsesConfiguredRoutingKey(t *testing.T) {
	extractor := &mockExtractor{result: defaultResult()}
	publisher := &mockPublisher{}
	tempDir := t.TempDir()
	svc := ingest.NewPDFService(extractor, nil, publisher, &config.UploadConfig{
		MaxFileSizeBytes: 1024,
		TempDir:          tempDir,
	}, ingest.WithEventRoutingKey("custom.document.ingested"))

	content := []byte("%PDF-1.4")
	_, err := svc.ProcessUpload(context.Background(), bytes.NewReader(content), int64(len(content)), "application/pdf", "resume.pdf")
	require.NoError(t, err)

	require.Len(t, publisher.keys, 1)
	assert.Equal(t, "custom.document.ingested", publisher.keys[0])
}

func TestProcessUploadArchiveFailureIsNonFatal(t *testing.T) {
	extractor := &mockExtractor{result: defaultResult()}
	archiver := &mockArchiver{err: errors.New("minio unreachable")}
	svc, _ := newTestService(t, extractor, archiver, nil, 1024)

	content := []byte("%PDF-1.4")
	result, err := svc.ProcessUpload(context.Background(), bytes.NewReader(content), int64(len(content)), "application/pdf", "resume.pdf")
	// 归档失败不影响解析结果返回
	require.NoError(t, err)
	assert.Empty(t, result.ArchiveLocation)
}
