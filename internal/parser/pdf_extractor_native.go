package parser

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"resume-structurer/internal/logger"
)

const (
	// 同一行文字的 Y 坐标容差
	rowTolerance = 2.0
	// 字符间距超过字号的该比例时视为单词间隔
	wordGapRatio = 0.2
)

// NativePageExtractor 基于 ledongthuc/pdf 的逐页文本提取器
//
// 页面并行解析, 每个协程使用独立的 reader, 结果按页码写回, 全部完成后才返回。
type NativePageExtractor struct {
	workers int
	logger  zerolog.Logger
}

// NativeOption 原生提取器配置选项
type NativeOption func(*NativePageExtractor)

// WithPageWorkers 设置并行解析页面的协程数
func WithPageWorkers(n int) NativeOption {
	return func(e *NativePageExtractor) {
		if n > 0 {
			e.workers = n
		}
	}
}

// WithNativeLogger 设置日志记录器
func WithNativeLogger(l zerolog.Logger) NativeOption {
	return func(e *NativePageExtractor) {
		e.logger = l
	}
}

// NewNativePageExtractor 创建原生提取器
func NewNativePageExtractor(opts ...NativeOption) *NativePageExtractor {
	e := &NativePageExtractor{
		workers: 4,
		logger:  logger.Component("pdf-native"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

var _ PageExtractor = (*NativePageExtractor)(nil)

// ExtractPages 实现 PageExtractor
func (e *NativePageExtractor) ExtractPages(ctx context.Context, data []byte) ([][]string, error) {
	start := time.Now()

	r, err := openPDF(data)
	if err != nil {
		return nil, err
	}
	n := r.NumPage()
	if n == 0 {
		return nil, ErrNoPages
	}

	pages := make([][]string, n)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rows, err := readPageRows(data, i+1)
			if err != nil {
				return fmt.Errorf("第 %d 页: %w", i+1, err)
			}
			pages[i] = rows
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	e.logger.Debug().
		Int("pages", n).
		Dur("duration", time.Since(start)).
		Msg("PDF页面文本提取完成")
	return pages, nil
}

// openPDF ledongthuc/pdf 遇到损坏文件可能 panic, 统一转为 error
func openPDF(data []byte) (r *pdf.Reader, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: %v", ErrUnreadablePDF, p)
		}
	}()
	r, err = pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadablePDF, err)
	}
	return r, nil
}

func readPageRows(data []byte, num int) (rows []string, err error) {
	r, err := openPDF(data)
	if err != nil {
		return nil, err
	}

	defer func() {
		if p := recover(); p != nil {
			rows, err = nil, fmt.Errorf("%w: %v", ErrUnreadablePDF, p)
		}
	}()
	page := r.Page(num)
	if page.V.IsNull() {
		return nil, nil
	}
	return assembleRows(page.Content().Text), nil
}

// assembleRows 按 Y 坐标把字符归为行(自上而下), 行内按 X 排序并在较大间隔处补空格
func assembleRows(texts []pdf.Text) []string {
	glyphs := make([]pdf.Text, 0, len(texts))
	for _, t := range texts {
		if t.S != "" && t.S != "\n" {
			glyphs = append(glyphs, t)
		}
	}
	if len(glyphs) == 0 {
		return nil
	}

	sort.SliceStable(glyphs, func(i, j int) bool { return glyphs[i].Y > glyphs[j].Y })

	var (
		rows    []string
		current []pdf.Text
		rowY    float64
	)
	emit := func() {
		if line := joinRow(current); strings.TrimSpace(line) != "" {
			rows = append(rows, line)
		}
		current = current[:0]
	}
	for _, t := range glyphs {
		if len(current) > 0 && rowY-t.Y > rowTolerance {
			emit()
		}
		if len(current) == 0 {
			rowY = t.Y
		}
		current = append(current, t)
	}
	emit()
	return rows
}

func joinRow(row []pdf.Text) string {
	sorted := append([]pdf.Text(nil), row...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].X < sorted[j].X })

	var b strings.Builder
	prevEnd := 0.0
	lastSpace := true
	for i, t := range sorted {
		if i > 0 && !lastSpace && !strings.HasPrefix(t.S, " ") {
			gap := wordGapRatio * t.FontSize
			if gap <= 0 {
				gap = 1.0
			}
			if t.X-prevEnd > gap {
				b.WriteByte(' ')
			}
		}
		b.WriteString(t.S)
		lastSpace = strings.HasSuffix(t.S, " ")
		prevEnd = t.X + t.W
	}
	return b.String()
}
