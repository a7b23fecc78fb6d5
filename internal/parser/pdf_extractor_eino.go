package parser

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"social-connect-go/internal/logger"
	"social-connect-go/internal/types"

	"github.com/cloudwego/eino-ext/components/document/parser/pdf"
	einoParser "github.com/cloudwego/eino/components/document/parser"
	pdfmeta "github.com/ledongthuc/pdf"
)

// PDFExtractor 从PDF文件提取文本与元数据
type PDFExtractor interface {
	ExtractFromFile(ctx context.Context, filePath string) (*types.PdfExtractionResult, error)
}

// EinoPDFTextExtractor 使用 Eino PDF Parser 提取文本
type EinoPDFTextExtractor struct {
	parser  *pdf.PDFParser
	timeout time.Duration
}

// EinoPDFOption PDF提取器的配置选项
type EinoPDFOption func(*EinoPDFTextExtractor)

// WithParseTimeout 配置单次解析的超时时间
func WithParseTimeout(d time.Duration) EinoPDFOption {
	return func(e *EinoPDFTextExtractor) {
		e.timeout = d
	}
}

// NewEinoPDFTextExtractor 初始化 Eino PDF 文本提取器
// 配置为按页面分割，页数即返回的文档数
func NewEinoPDFTextExtractor(ctx context.Context, options ...EinoPDFOption) (*EinoPDFTextExtractor, error) {
	p, err := pdf.NewPDFParser(ctx, &pdf.Config{
		ToPages: true, // 每页一个文档，len(docs)即页数
	})
	if err != nil {
		return nil, fmt.Errorf("创建Eino PDF解析器失败: %w", err)
	}

	extractor := &EinoPDFTextExtractor{
		parser:  p,
		timeout: 30 * time.Second,
	}

	for _, option := range options {
		option(extractor)
	}

	return extractor, nil
}

// ExtractFromFile 从给定的PDF文件路径中提取纯文本内容、页数与元数据
func (e *EinoPDFTextExtractor) ExtractFromFile(ctx context.Context, filePath string) (*types.PdfExtractionResult, error) {
	startTime := time.Now()

	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("打开PDF文件 %s 失败: %w", filePath, err)
	}
	defer file.Close()

	var fileSize int64
	if fileInfo, statErr := file.Stat(); statErr == nil {
		fileSize = fileInfo.Size()
	}

	parseCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	docs, err := e.parser.Parse(parseCtx, file,
		einoParser.WithURI(filePath),
	)
	if err != nil {
		return nil, fmt.Errorf("eino解析PDF文件 %s 失败: %w", filePath, err)
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("eino解析PDF文件 %s 未返回任何页面", filePath)
	}

	// 逐页拼接文本
	pages := make([]string, 0, len(docs))
	for _, doc := range docs {
		pages = append(pages, doc.Content)
	}
	fullText := strings.Join(pages, "\n\n")

	metadata := map[string]interface{}{
		"extraction_time":        time.Now().Format(time.RFC3339),
		"processing_duration_ms": time.Since(startTime).Milliseconds(),
	}
	if len(docs) > 0 && docs[0].MetaData != nil {
		for k, v := range docs[0].MetaData {
			metadata[k] = v
		}
	}

	// 读取PDF Info字典补充文档级元数据，失败不影响主流程
	e.mergeDocumentInfo(filePath, len(docs), metadata)

	logger.Debug().
		Str("file", filePath).
		Int("pages", len(docs)).
		Int("text_length", len(fullText)).
		Dur("duration", time.Since(startTime)).
		Msg("PDF文本提取完成")

	return &types.PdfExtractionResult{
		Text:                fullText,
		PageCount:           len(docs),
		Metadata:            metadata,
		SourceFileSizeBytes: fileSize,
	}, nil
}

// mergeDocumentInfo 用Info字典（标题、作者等）补充元数据，并核对页数
func (e *EinoPDFTextExtractor) mergeDocumentInfo(filePath string, parsedPages int, metadata map[string]interface{}) {
	f, r, err := pdfmeta.Open(filePath)
	if err != nil {
		logger.Debug().Err(err).Str("file", filePath).Msg("读取PDF Info字典失败")
		return
	}
	defer f.Close()

	if numPages := r.NumPage(); numPages > 0 && numPages != parsedPages {
		metadata["declared_page_count"] = numPages
	}

	info := r.Trailer().Key("Info")
	if info.Kind() != pdfmeta.Dict {
		return
	}
	for _, key := range []string{"Title", "Author", "Subject", "Creator", "Producer"} {
		v := info.Key(key)
		if v.Kind() != pdfmeta.String {
			continue
		}
		if text := strings.TrimSpace(v.Text()); text != "" {
			metadata["pdf_"+strings.ToLower(key)] = text
		}
	}
}
