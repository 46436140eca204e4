package parser

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"resume-structurer/internal/logger"
	"resume-structurer/internal/tracing"
	"resume-structurer/internal/types"
)

var tracer = otel.Tracer("parser")

// PageExtractor 页面文本提取能力
//
// 按页序返回每页有序的文本片段(一个片段通常是一行)。
// 实现可以并行解析页面, 但必须在所有页面完成后才返回, 且保持页序。
type PageExtractor interface {
	ExtractPages(ctx context.Context, data []byte) ([][]string, error)
}

// StructureLines 对一组行执行分章节、条目组装和关键词兜底, 不做扫描件判定
func StructureLines(lines []string) *types.ParsedResume {
	return structure(flattenTrimmed([][]string{NormalizeLines(strings.Join(lines, "\n"))}))
}

// StructurePages 从逐页文本片段生成结构化简历
//
// 依次执行: 行规范化, 去除页眉页脚, 扫描件判定, 分章节, 字段提取, 关键词兜底。
func StructurePages(pages [][]string, bufferSize int) *types.ParsedResume {
	lines := flattenTrimmed(RemoveRepeatedHeadersFooters(normalizePages(pages)))
	rawText := strings.Join(lines, "\n")

	textLen := utf8.RuneCountInString(rawText)
	if IsLikelyScanned(textLen, bufferSize) {
		return ScannedResult(rawText, bufferSize, textLen)
	}
	return structure(lines)
}

func structure(lines []string) *types.ParsedResume {
	sections := Segment(lines)

	// 经历分组时实习章节的内容接在工作经历之后
	jobLines := append(sections.FieldLines(types.FieldExperience), sections.FieldLines(types.FieldInternships)...)

	r := &types.ParsedResume{
		RawText:       strings.Join(lines, "\n"),
		Experience:    GroupEntries(jobLines),
		Internships:   sections.FieldLines(types.FieldInternships),
		Projects:      ExtractProjects(sections.FieldLines(types.FieldProjects), sections.All()),
		Education:     sections.FieldLines(types.FieldEducation),
		Skills:        ExtractSkills(sections.FieldLines(types.FieldSkills)),
		OtherSections: sections.Other(),
		Confidence:    make(map[types.Field]types.Confidence, len(types.CanonicalFields)),
	}
	for _, f := range types.CanonicalFields {
		r.Confidence[f] = sections.Confidence(f)
	}

	if r.AllFieldsEmpty() {
		applyFallback(r)
	}
	r.EnsureSlices()
	return r
}

// Structurer 把 PDF 字节流转换为结构化简历
type Structurer struct {
	extractor PageExtractor
	logger    zerolog.Logger
}

// StructurerOption 配置选项
type StructurerOption func(*Structurer)

// WithStructurerLogger 设置日志记录器
func WithStructurerLogger(l zerolog.Logger) StructurerOption {
	return func(s *Structurer) {
		s.logger = l
	}
}

// NewStructurer 创建结构化器
func NewStructurer(extractor PageExtractor, opts ...StructurerOption) *Structurer {
	s := &Structurer{
		extractor: extractor,
		logger:    logger.Component("structurer"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Parse 提取页面文本并结构化
//
// 提取失败不会返回 error, 而是转换为 scanned=true 的终态结果。
// 调用方可通过 ctx 设置整体超时, 超时后结果应直接丢弃。
func (s *Structurer) Parse(ctx context.Context, data []byte) *types.ParsedResume {
	ctx, span := tracer.Start(ctx, "Structurer.Parse")
	defer span.End()
	span.SetAttributes(attribute.Int("pdf.size_bytes", len(data)))

	start := time.Now()
	pages, err := s.extractor.ExtractPages(ctx, data)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeExtraction)
		s.logger.Warn().Err(err).Int("size_bytes", len(data)).Msg("PDF文本提取失败")
		return ExtractionFailedResult(err)
	}

	result := StructurePages(pages, len(data))

	span.SetAttributes(
		attribute.Int("pdf.pages", len(pages)),
		attribute.Int("resume.text_length", utf8.RuneCountInString(result.RawText)),
		attribute.Bool("resume.scanned", result.Scanned),
	)
	s.logger.Debug().
		Int("pages", len(pages)).
		Int("size_bytes", len(data)).
		Bool("scanned", result.Scanned).
		Int("experience", len(result.Experience)).
		Int("projects", len(result.Projects)).
		Int("skills", len(result.Skills)).
		Dur("duration", time.Since(start)).
		Msg("简历结构化完成")
	return result
}
