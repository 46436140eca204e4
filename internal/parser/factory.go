package parser

import (
	"context"
	"fmt"
	"strings"
	"time"

	"resume-structurer/internal/config"
)

// 可选的页面提取器
const (
	ExtractorEino   = "eino"
	ExtractorNative = "native"
	ExtractorTika   = "tika"
)

// NewPageExtractor 按名称创建页面提取器, kind 为空时使用 eino
func NewPageExtractor(ctx context.Context, kind string, cfg *config.Config) (PageExtractor, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", ExtractorEino:
		e, err := NewEinoPageExtractor(ctx)
		if err != nil {
			return nil, err
		}
		return e, nil
	case ExtractorNative:
		return NewNativePageExtractor(WithPageWorkers(cfg.Extractor.PageWorkers)), nil
	case ExtractorTika:
		if cfg.Tika.ServerURL == "" {
			return nil, fmt.Errorf("tika 提取器需要配置 tika.server_url")
		}
		var opts []TikaOption
		if cfg.Tika.Timeout > 0 {
			opts = append(opts, WithTimeout(time.Duration(cfg.Tika.Timeout)*time.Second))
		}
		return NewTikaPageExtractor(cfg.Tika.ServerURL, opts...), nil
	default:
		return nil, fmt.Errorf("未知的提取器类型: %q", kind)
	}
}
