// Package fake provides a scriptable LLM implementation for testing.
package fake

import (
	"context"
	"fmt"
	"sync"

	"github.com/swizz-ai/holdline/pkg/ai/llm"
)

// FakeLLM is a fake LLM implementation for testing. Replies are scripted;
// when the script runs out, the fake echoes the last user message.
type FakeLLM struct {
	mu       sync.Mutex
	script   []string
	calls    int
	requests []llm.ChatRequest

	// Err, when set, is returned by every Chat call.
	Err error
}

// NewFakeLLM creates a fake LLM that plays back the given replies in order.
func NewFakeLLM(replies ...string) *FakeLLM {
	return &FakeLLM{script: replies}
}

// Chat returns the next scripted reply.
func (f *FakeLLM) Chat(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.requests = append(f.requests, req)
	if f.Err != nil {
		return llm.ChatResponse{}, f.Err
	}

	var content string
	if f.calls < len(f.script) {
		content = f.script[f.calls]
	} else {
		content = fmt.Sprintf("Understood: %s", lastUserMessage(req.Messages))
	}
	f.calls++

	return llm.ChatResponse{
		Message: llm.Message{
			Role:    llm.RoleAssistant,
			Content: content,
		},
		FinishReason: "stop",
	}, nil
}

// Capabilities returns the fake LLM capabilities.
func (f *FakeLLM) Capabilities() llm.Capabilities {
	return llm.Capabilities{
		MaxTokens:          4096,
		SupportedModels:    []string{"fake-chat"},
		SupportsSystemRole: true,
	}
}

// Requests returns a copy of every request seen so far, in call order.
func (f *FakeLLM) Requests() []llm.ChatRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]llm.ChatRequest, len(f.requests))
	copy(out, f.requests)
	return out
}

func lastUserMessage(messages []llm.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == llm.RoleUser {
			return messages[i].Content
		}
	}
	return ""
}
