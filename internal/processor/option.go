package processor

import (
	"time"

	"github.com/rs/zerolog"

	"resume-structurer/internal/storage"
)

// ServiceOption 简历服务选项
type ServiceOption func(*ResumeService)

// GeneratorOption 问题生成器选项
type GeneratorOption func(*QuestionGenerator)

// ----- 组件选项 -----

// WithStorage 从聚合的 storage 实例中取出已初始化的组件
//
// 未初始化(nil)的组件不会被设置, 对应步骤以降级模式运行。
func WithStorage(s *storage.Storage) ServiceOption {
	return func(rs *ResumeService) {
		if s == nil {
			return
		}
		if s.Redis != nil {
			rs.cache = s.Redis
		}
		if s.MinIO != nil {
			rs.originals = s.MinIO
		}
		if s.MySQL != nil {
			rs.repo = s.MySQL
		}
	}
}

// WithParsedCache 设置解析结果缓存
func WithParsedCache(c ParsedCache) ServiceOption {
	return func(rs *ResumeService) {
		rs.cache = c
	}
}

// WithOriginalStore 设置原始文件存储
func WithOriginalStore(o OriginalStore) ServiceOption {
	return func(rs *ResumeService) {
		rs.originals = o
	}
}

// WithParseRepository 设置解析记录存储
func WithParseRepository(r ParseRepository) ServiceOption {
	return func(rs *ResumeService) {
		rs.repo = r
	}
}

// ----- 设置选项 -----

// WithParseTimeout 单次解析的超时时间, 非正数忽略
func WithParseTimeout(d time.Duration) ServiceOption {
	return func(rs *ResumeService) {
		if d > 0 {
			rs.parseTimeout = d
		}
	}
}

// WithEventRoute 设置 resume.parsed 事件投递的交换机和路由键
func WithEventRoute(exchange, routingKey string) ServiceOption {
	return func(rs *ResumeService) {
		rs.exchange = exchange
		rs.routingKey = routingKey
	}
}

// WithIDGenerator 替换提交ID生成函数, 测试用
func WithIDGenerator(gen func() (string, error)) ServiceOption {
	return func(rs *ResumeService) {
		if gen != nil {
			rs.newID = gen
		}
	}
}

// WithServiceLogger 设置日志记录器
func WithServiceLogger(l zerolog.Logger) ServiceOption {
	return func(rs *ResumeService) {
		rs.logger = l
	}
}

// ----- 问题生成器选项 -----

// WithGeneratorLogger 设置日志记录器
func WithGeneratorLogger(l zerolog.Logger) GeneratorOption {
	return func(g *QuestionGenerator) {
		g.logger = l
	}
}

// WithTemperature 设置生成问题时的采样温度
func WithTemperature(t float32) GeneratorOption {
	return func(g *QuestionGenerator) {
		g.temperature = &t
	}
}

// WithMaxTokens 设置生成问题时的最大输出 token 数, 非正数忽略
func WithMaxTokens(n int) GeneratorOption {
	return func(g *QuestionGenerator) {
		if n > 0 {
			g.maxTokens = &n
		}
	}
}
