package parser

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/document/parser/pdf"
	einoParser "github.com/cloudwego/eino/components/document/parser"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"

	"resume-structurer/internal/logger"
)

// EinoPageExtractor 使用 Eino PDF Parser 按页提取文本
type EinoPageExtractor struct {
	parser einoParser.Parser
	logger zerolog.Logger
}

// EinoPDFOption PDF提取器的配置选项
type EinoPDFOption func(*EinoPageExtractor)

// WithEinoLogger 配置自定义日志记录器
func WithEinoLogger(l zerolog.Logger) EinoPDFOption {
	return func(e *EinoPageExtractor) {
		e.logger = l
	}
}

// WithEinoParser 替换底层解析器, 测试用
func WithEinoParser(p einoParser.Parser) EinoPDFOption {
	return func(e *EinoPageExtractor) {
		e.parser = p
	}
}

// NewEinoPageExtractor 初始化 Eino PDF 文本提取器, 每页输出一个文档
func NewEinoPageExtractor(ctx context.Context, options ...EinoPDFOption) (*EinoPageExtractor, error) {
	p, err := pdf.NewPDFParser(ctx, &pdf.Config{ToPages: true})
	if err != nil {
		return nil, fmt.Errorf("failed to create Eino PDF parser: %w", err)
	}

	extractor := &EinoPageExtractor{
		parser: p,
		logger: logger.Component("pdf-eino"),
	}
	for _, option := range options {
		option(extractor)
	}
	return extractor, nil
}

var _ PageExtractor = (*EinoPageExtractor)(nil)

// ExtractPages 实现 PageExtractor, 文档顺序即页序
func (e *EinoPageExtractor) ExtractPages(ctx context.Context, data []byte) ([][]string, error) {
	start := time.Now()

	docs, err := e.parser.Parse(ctx, bytes.NewReader(data),
		einoParser.WithExtraMeta(map[string]any{
			"extraction_time": start.Format(time.RFC3339),
			"size_bytes":      len(data),
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("eino PDF parser failed: %w", err)
	}
	if len(docs) == 0 {
		return nil, ErrNoPages
	}

	pages := documentsToPages(docs)
	e.logger.Debug().
		Int("pages", len(pages)).
		Dur("duration", time.Since(start)).
		Msg("PDF页面文本提取完成")
	return pages, nil
}

func documentsToPages(docs []*schema.Document) [][]string {
	pages := make([][]string, 0, len(docs))
	for _, doc := range docs {
		if doc == nil {
			pages = append(pages, nil)
			continue
		}
		pages = append(pages, strings.Split(doc.Content, "\n"))
	}
	return pages
}
