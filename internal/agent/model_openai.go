package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"

	"resume-structurer/internal/logger"
	"resume-structurer/internal/tracing"
)

const (
	defaultChatCompletionsURL = "https://api.openai.com/v1/chat/completions"
	defaultModelName          = "gpt-4o-mini"
)

// ErrEmptyChoices 接口返回了空的 choices
var ErrEmptyChoices = errors.New("chat completion returned no choices")

// APIError 非 200 响应
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("chat completion API returned %d: %s", e.StatusCode, tracing.TruncateString(e.Body, tracing.DefaultMaxLength))
}

// HTTPStatus 供限流重试判断是否可重试
func (e *APIError) HTTPStatus() int { return e.StatusCode }

type openAIFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters"`
}

type openAITool struct {
	Type     string         `json:"type"`
	Function openAIFunction `json:"function"`
}

type openAIMessage struct {
	Role       string           `json:"role"`
	Content    *string          `json:"content"`
	ToolCalls  []openAIToolCall `json:"tool_calls,omitempty"`
	ToolCallID string           `json:"tool_call_id,omitempty"`
}

type openAIToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatCompletionRequest struct {
	Model          string          `json:"model"`
	Messages       []openAIMessage `json:"messages"`
	Temperature    *float32        `json:"temperature,omitempty"`
	MaxTokens      *int            `json:"max_tokens,omitempty"`
	Tools          []openAITool    `json:"tools,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatCompletionResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index        int           `json:"index"`
		Message      openAIMessage `json:"message"`
		FinishReason string        `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// OpenAIChatModel 兼容 OpenAI chat/completions 协议的聊天模型
//
// 实现 model.ToolCallingChatModel, 可直接交给 ratelimit 包装。
type OpenAIChatModel struct {
	apiKey      string
	modelName   string
	apiURL      string
	temperature *float32
	maxTokens   *int
	jsonMode    bool
	httpClient  *http.Client
	tools       []openAITool
	logger      zerolog.Logger
}

var _ model.ToolCallingChatModel = (*OpenAIChatModel)(nil)

// ModelOption 模型配置选项
type ModelOption func(*OpenAIChatModel)

// WithHTTPClient 替换 HTTP 客户端
func WithHTTPClient(c *http.Client) ModelOption {
	return func(m *OpenAIChatModel) {
		m.httpClient = c
	}
}

// WithRequestTimeout 设置单次请求超时
func WithRequestTimeout(d time.Duration) ModelOption {
	return func(m *OpenAIChatModel) {
		if d > 0 {
			m.httpClient.Timeout = d
		}
	}
}

// WithDefaultTemperature 设置默认温度
func WithDefaultTemperature(t float32) ModelOption {
	return func(m *OpenAIChatModel) {
		m.temperature = &t
	}
}

// WithDefaultMaxTokens 设置默认最大输出 token 数
func WithDefaultMaxTokens(n int) ModelOption {
	return func(m *OpenAIChatModel) {
		if n > 0 {
			m.maxTokens = &n
		}
	}
}

// WithJSONMode 要求模型输出 JSON 对象
func WithJSONMode(enabled bool) ModelOption {
	return func(m *OpenAIChatModel) {
		m.jsonMode = enabled
	}
}

// WithModelLogger 设置日志记录器
func WithModelLogger(l zerolog.Logger) ModelOption {
	return func(m *OpenAIChatModel) {
		m.logger = l
	}
}

// NewOpenAIChatModel 创建聊天模型, modelName 和 apiURL 为空时使用默认值
func NewOpenAIChatModel(apiKey, modelName, apiURL string, opts ...ModelOption) (*OpenAIChatModel, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("API 密钥不能为空")
	}
	if strings.TrimSpace(modelName) == "" {
		modelName = defaultModelName
	}
	if strings.TrimSpace(apiURL) == "" {
		apiURL = defaultChatCompletionsURL
	}

	m := &OpenAIChatModel{
		apiKey:     apiKey,
		modelName:  modelName,
		apiURL:     apiURL,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		logger:     logger.Component("llm"),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger.Info().Str("api_url", m.apiURL).Str("model", m.modelName).Msg("初始化 LLM 客户端")
	return m, nil
}

// Generate 实现 model.BaseChatModel
func (m *OpenAIChatModel) Generate(ctx context.Context, messages []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	options := model.GetCommonOptions(&model.Options{
		Temperature: m.temperature,
		MaxTokens:   m.maxTokens,
		Model:       &m.modelName,
	}, opts...)

	req := chatCompletionRequest{
		Model:       m.modelName,
		Messages:    toOpenAIMessages(messages),
		Temperature: options.Temperature,
		MaxTokens:   options.MaxTokens,
		Tools:       m.tools,
	}
	if options.Model != nil && *options.Model != "" {
		req.Model = *options.Model
	}
	if m.jsonMode {
		req.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("序列化请求体失败: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, m.apiURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("创建 HTTP 请求失败: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+m.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	httpResp, err := m.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("发送 HTTP 请求失败: %w", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取响应体失败: %w", err)
	}
	if httpResp.StatusCode != http.StatusOK {
		return nil, &APIError{StatusCode: httpResp.StatusCode, Body: string(respBody)}
	}

	var resp chatCompletionResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("反序列化 API 响应失败: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, ErrEmptyChoices
	}

	m.logger.Debug().
		Str("model", req.Model).
		Int("prompt_tokens", resp.Usage.PromptTokens).
		Int("completion_tokens", resp.Usage.CompletionTokens).
		Str("finish_reason", resp.Choices[0].FinishReason).
		Dur("duration", time.Since(start)).
		Msg("LLM 调用完成")

	return fromOpenAIMessage(resp.Choices[0].Message), nil
}

// Stream 不支持流式输出
func (m *OpenAIChatModel) Stream(ctx context.Context, messages []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("OpenAIChatModel 不支持 Stream")
}

// WithTools 返回绑定了工具的模型副本, 原模型不变
func (m *OpenAIChatModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	clone := *m
	clone.tools = make([]openAITool, 0, len(tools))
	for _, t := range tools {
		if t == nil {
			continue
		}
		clone.tools = append(clone.tools, openAITool{
			Type: "function",
			Function: openAIFunction{
				Name:        t.Name,
				Description: t.Desc,
				Parameters:  map[string]any{"type": "object", "properties": map[string]any{}},
			},
		})
	}
	return &clone, nil
}

func toOpenAIMessages(messages []*schema.Message) []openAIMessage {
	out := make([]openAIMessage, 0, len(messages))
	for _, msg := range messages {
		if msg == nil {
			continue
		}
		content := msg.Content
		om := openAIMessage{
			Role:       string(msg.Role),
			Content:    &content,
			ToolCallID: msg.ToolCallID,
		}
		for _, tc := range msg.ToolCalls {
			call := openAIToolCall{ID: tc.ID, Type: "function"}
			call.Function.Name = tc.Function.Name
			call.Function.Arguments = tc.Function.Arguments
			om.ToolCalls = append(om.ToolCalls, call)
		}
		out = append(out, om)
	}
	return out
}

func fromOpenAIMessage(om openAIMessage) *schema.Message {
	msg := &schema.Message{Role: schema.RoleType(om.Role)}
	if msg.Role == "" {
		msg.Role = schema.Assistant
	}
	if om.Content != nil {
		msg.Content = *om.Content
	}
	for _, tc := range om.ToolCalls {
		msg.ToolCalls = append(msg.ToolCalls, schema.ToolCall{
			ID: tc.ID,
			Function: schema.FunctionCall{
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			},
		})
	}
	return msg
}
