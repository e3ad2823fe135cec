package openai

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/swizz-ai/holdline/pkg/ai/llm"
)

// ChatLLM generates agent replies with the OpenAI chat completion API.
type ChatLLM struct {
	client *openai.Client
	model  string
}

// NewChatLLM creates a chat-completion provider on the given model.
func NewChatLLM(client *openai.Client, model string) *ChatLLM {
	return &ChatLLM{client: client, model: model}
}

// Chat performs one chat completion over the accumulated conversation.
func (g *ChatLLM) Chat(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
	messages := make([]openai.ChatCompletionMessage, len(req.Messages))
	for i, m := range req.Messages {
		messages[i] = openai.ChatCompletionMessage{
			Role:    string(m.Role),
			Content: m.Content,
		}
	}

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       g.model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})
	if err != nil {
		return llm.ChatResponse{}, classifyErr(err, "chat completion failed")
	}
	if len(resp.Choices) == 0 {
		return llm.ChatResponse{}, fmt.Errorf("chat completion returned no choices")
	}

	choice := resp.Choices[0]
	return llm.ChatResponse{
		Message: llm.Message{
			Role:    llm.MessageRole(choice.Message.Role),
			Content: choice.Message.Content,
		},
		TokensUsed:   resp.Usage.TotalTokens,
		FinishReason: string(choice.FinishReason),
	}, nil
}

// Capabilities reports the provider's limits.
func (g *ChatLLM) Capabilities() llm.Capabilities {
	return llm.Capabilities{
		MaxTokens:          4096,
		SupportedModels:    []string{openai.GPT4, openai.GPT4Turbo, openai.GPT3Dot5Turbo},
		SupportsSystemRole: true,
	}
}
