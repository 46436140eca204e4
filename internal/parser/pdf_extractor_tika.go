package parser

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/net/html"

	"resume-structurer/internal/logger"
)

// TikaPageExtractor 是基于 Apache Tika 的逐页文本提取器
//
// 请求 XHTML 输出, Tika 为每一页生成 <div class="page">, 段落为 <p>。
type TikaPageExtractor struct {
	// Tika服务器地址，例如 http://localhost:9998
	ServerURL string
	// HTTP客户端，可配置超时等参数
	Client *http.Client

	extractAnnotations bool
	logger             zerolog.Logger
}

// TikaOption 定义配置选项函数
type TikaOption func(*TikaPageExtractor)

// WithAnnotations 配置是否提取PDF链接注释文本
func WithAnnotations(extract bool) TikaOption {
	return func(e *TikaPageExtractor) {
		e.extractAnnotations = extract
	}
}

// WithTikaLogger 配置自定义日志记录器
func WithTikaLogger(l zerolog.Logger) TikaOption {
	return func(e *TikaPageExtractor) {
		e.logger = l
	}
}

// WithTimeout 配置HTTP客户端超时时间
func WithTimeout(timeout time.Duration) TikaOption {
	return func(e *TikaPageExtractor) {
		e.Client.Timeout = timeout
	}
}

// NewTikaPageExtractor 创建一个新的Tika PDF解析器
func NewTikaPageExtractor(serverURL string, options ...TikaOption) *TikaPageExtractor {
	extractor := &TikaPageExtractor{
		ServerURL: strings.TrimRight(serverURL, "/"),
		Client:    &http.Client{Timeout: 60 * time.Second},
		logger:    logger.Component("pdf-tika"),
	}
	for _, option := range options {
		option(extractor)
	}
	return extractor
}

var _ PageExtractor = (*TikaPageExtractor)(nil)

// ExtractPages 实现 PageExtractor
func (e *TikaPageExtractor) ExtractPages(ctx context.Context, data []byte) ([][]string, error) {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, e.ServerURL+"/tika", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("创建HTTP请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/pdf")
	req.Header.Set("Accept", "text/html")
	if !e.extractAnnotations {
		req.Header.Set("X-Tika-PDFExtractAnnotationText", "false")
	}

	resp, err := e.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("发送请求到Tika服务器失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tika服务器返回错误状态码: %d", resp.StatusCode)
	}

	pages, err := splitXHTMLPages(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("解析Tika XHTML失败: %w", err)
	}
	if len(pages) == 0 {
		return nil, ErrNoPages
	}

	e.logger.Debug().
		Int("pages", len(pages)).
		Dur("duration", time.Since(start)).
		Msg("Tika页面文本提取完成")
	return pages, nil
}

// 这些元素的边界处断行
var blockElements = map[string]bool{
	"p": true, "br": true, "li": true, "tr": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
}

// 这些元素内的文本不属于正文
var skippedElements = map[string]bool{
	"head": true, "script": true, "style": true, "title": true,
}

// splitXHTMLPages 把 Tika 的 XHTML 输出按页拆分为文本片段
//
// 没有 page div 时整份文档视为一页。
func splitXHTMLPages(r io.Reader) ([][]string, error) {
	var (
		pages     [][]string
		current   []string
		line      strings.Builder
		inPage    bool
		sawPage   bool
		pageDepth int
		divDepth  int
		skipDepth int
	)

	breakLine := func() {
		if s := strings.TrimSpace(line.String()); s != "" {
			current = append(current, s)
		}
		line.Reset()
	}

	z := html.NewTokenizer(r)
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			if err := z.Err(); err != io.EOF {
				return nil, err
			}
			breakLine()
			if inPage || (!sawPage && len(current) > 0) {
				pages = append(pages, current)
			}
			return pages, nil

		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			if skippedElements[tok.Data] {
				if tt == html.StartTagToken {
					skipDepth++
				}
				continue
			}
			if tok.Data == "div" {
				breakLine()
				if tt == html.SelfClosingTagToken {
					continue
				}
				divDepth++
				if !inPage && hasClass(tok, "page") {
					inPage, sawPage = true, true
					pageDepth = divDepth
					current = nil
				}
				continue
			}
			if blockElements[tok.Data] {
				breakLine()
			}

		case html.EndTagToken:
			tok := z.Token()
			if skippedElements[tok.Data] {
				if skipDepth > 0 {
					skipDepth--
				}
				continue
			}
			if tok.Data == "div" {
				breakLine()
				if inPage && divDepth == pageDepth {
					inPage = false
					pages = append(pages, current)
					current = nil
				}
				divDepth--
				continue
			}
			if blockElements[tok.Data] {
				breakLine()
			}

		case html.TextToken:
			if skipDepth > 0 || (sawPage && !inPage) {
				continue
			}
			for i, part := range strings.Split(string(z.Text()), "\n") {
				if i > 0 {
					breakLine()
				}
				line.WriteString(part)
			}
		}
	}
}

func hasClass(tok html.Token, class string) bool {
	for _, a := range tok.Attr {
		if a.Key != "class" {
			continue
		}
		for _, c := range strings.Fields(a.Val) {
			if c == class {
				return true
			}
		}
	}
	return false
}
