package agent

import (
	"context"
	"errors"
	"sync"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// MockResponse MockChatClient 的单次响应
type MockResponse struct {
	Content string
	Error   error
}

// MockChatClient 测试用的聊天模型, 按顺序返回预设响应, 用完后重复最后一个
type MockChatClient struct {
	mu               sync.Mutex
	responses        []MockResponse
	index            int
	ReceivedMessages [][]*schema.Message
}

var _ model.ToolCallingChatModel = (*MockChatClient)(nil)

// NewMockChatClient 返回固定响应的 MockChatClient
func NewMockChatClient(content string, err error) *MockChatClient {
	return NewMockChatClientSequential([]MockResponse{{Content: content, Error: err}})
}

// NewMockChatClientSequential 按顺序返回不同响应的 MockChatClient
func NewMockChatClientSequential(responses []MockResponse) *MockChatClient {
	if len(responses) == 0 {
		responses = []MockResponse{{Error: errors.New("mock client has no responses configured")}}
	}
	return &MockChatClient{responses: responses}
}

// Generate 记录输入并返回下一个预设响应
func (m *MockChatClient) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	received := make([]*schema.Message, len(input))
	copy(received, input)
	m.ReceivedMessages = append(m.ReceivedMessages, received)

	resp := m.responses[min(m.index, len(m.responses)-1)]
	m.index++
	if resp.Error != nil {
		return nil, resp.Error
	}
	return schema.AssistantMessage(resp.Content, nil), nil
}

// Stream 不支持
func (m *MockChatClient) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("streaming not implemented in MockChatClient")
}

// WithTools 忽略工具, 返回自身
func (m *MockChatClient) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	return m, nil
}

// Calls 返回 Generate 被调用的次数
func (m *MockChatClient) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.ReceivedMessages)
}
