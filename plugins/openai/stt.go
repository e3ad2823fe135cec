package openai

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/swizz-ai/holdline/pkg/ai/stt"
)

// WhisperSTT transcribes encoded audio chunks with OpenAI Whisper.
type WhisperSTT struct {
	client *openai.Client
	model  string
}

// NewWhisperSTT creates the Whisper-backed transcriber.
func NewWhisperSTT(client *openai.Client) *WhisperSTT {
	return &WhisperSTT{
		client: client,
		model:  openai.Whisper1,
	}
}

// Transcribe sends one WAV-encoded chunk to the transcription endpoint.
func (w *WhisperSTT) Transcribe(ctx context.Context, audio []byte, cfg stt.Config) (string, error) {
	if len(audio) == 0 {
		return "", nil
	}

	req := openai.AudioRequest{
		Model:    w.model,
		Language: cfg.Lang,
		Format:   openai.AudioResponseFormatJSON,
		Reader:   bytes.NewReader(audio),
		// The API infers the container format from the file extension.
		FilePath: "chunk.wav",
	}

	resp, err := w.client.CreateTranscription(ctx, req)
	if err != nil {
		return "", classifyErr(err, fmt.Sprintf("whisper transcription of %d bytes failed", len(audio)))
	}
	return strings.TrimSpace(resp.Text), nil
}

// Capabilities reports what the Whisper endpoint accepts. The language
// list is trimmed to what the calling agent actually targets.
func (w *WhisperSTT) Capabilities() stt.Capabilities {
	return stt.Capabilities{
		SupportedLanguages: []string{"en", "es", "fr", "de", "pt", "it", "nl", "ja", "zh"},
		SampleRates:        []int{8000, 16000, 24000, 44100, 48000},
	}
}
