package openai

import (
	"context"
	"fmt"
	"io"

	openai "github.com/sashabaranov/go-openai"

	"github.com/swizz-ai/holdline/pkg/ai/tts"
)

// SpeechTTS synthesizes reply audio with the OpenAI speech endpoint.
type SpeechTTS struct {
	client *openai.Client
	model  openai.SpeechModel
}

// NewSpeechTTS creates the speech-endpoint synthesizer.
func NewSpeechTTS(client *openai.Client) *SpeechTTS {
	return &SpeechTTS{
		client: client,
		model:  DefaultTTSModel,
	}
}

// Synthesize converts reply text to raw PCM audio. The endpoint returns
// 24kHz 16-bit mono PCM when asked for the pcm response format.
func (o *SpeechTTS) Synthesize(ctx context.Context, req tts.SynthesizeRequest) ([]byte, error) {
	speed := req.Speed
	if speed == 0 {
		speed = 1.0
	}

	resp, err := o.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          o.model,
		Input:          req.Text,
		Voice:          openai.SpeechVoice(req.Voice),
		ResponseFormat: openai.SpeechResponseFormatPcm,
		Speed:          float64(speed),
	})
	if err != nil {
		return nil, classifyErr(err, "speech synthesis failed")
	}
	defer resp.Close()

	audio, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("read speech response: %w", err)
	}
	return audio, nil
}

// Capabilities reports the available voices and the fixed PCM rate.
func (o *SpeechTTS) Capabilities() tts.Capabilities {
	return tts.Capabilities{
		SupportedVoices: []string{"alloy", "echo", "fable", "onyx", "nova", "shimmer"},
		SampleRates:     []int{24000},
	}
}
