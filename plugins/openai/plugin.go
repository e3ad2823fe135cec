// Package openai implements the speech provider contracts against the
// OpenAI API: Whisper for transcription, GPT chat completions for reply
// generation, and the speech endpoint for synthesis.
package openai

import (
	"errors"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"

	"github.com/swizz-ai/holdline/pkg/ai"
)

// Default model selections. They match what the hold-for-me agent was
// tuned against; override per provider if needed.
const (
	DefaultChatModel = openai.GPT4
	DefaultTTSModel  = openai.TTSModel1
)

// Config configures the OpenAI provider bundle.
type Config struct {
	APIKey    string
	ChatModel string
}

// Providers bundles the three OpenAI-backed services behind one API key.
type Providers struct {
	STT *WhisperSTT
	LLM *ChatLLM
	TTS *SpeechTTS
}

// New builds the full provider bundle.
func New(cfg Config) (*Providers, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}
	model := cfg.ChatModel
	if model == "" {
		model = DefaultChatModel
	}

	client := openai.NewClient(cfg.APIKey)
	return &Providers{
		STT: NewWhisperSTT(client),
		LLM: NewChatLLM(client, model),
		TTS: NewSpeechTTS(client),
	}, nil
}

// classifyErr maps an OpenAI API failure onto the shared retry
// classification. Rate limits and server-side errors are worth retrying on
// a later chunk; auth and request errors are not.
func classifyErr(err error, message string) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == http.StatusTooManyRequests,
			apiErr.HTTPStatusCode >= http.StatusInternalServerError:
			return ai.NewRecoverableError(err, message)
		default:
			return ai.NewFatalError(err, message)
		}
	}
	// Transport-level failures (timeouts, resets) are transient.
	return ai.NewRecoverableError(err, message)
}
