// Package tts defines the text-to-speech provider contract used to
// synthesize the agent's replies into playable audio.
package tts

import (
	"context"

	"github.com/swizz-ai/holdline/pkg/ai"
)

// TTS-specific error variables
var (
	// ErrRecoverable indicates a temporary TTS failure that may succeed if retried.
	ErrRecoverable = ai.ErrRecoverable

	// ErrFatal indicates a permanent TTS failure that will not succeed if retried.
	ErrFatal = ai.ErrFatal
)

// SynthesizeRequest contains parameters for text-to-speech synthesis.
type SynthesizeRequest struct {
	Text  string
	Voice string
	Speed float32
}

// Capabilities describes the capabilities of a TTS provider.
type Capabilities struct {
	SupportedVoices []string
	SampleRates     []int
}

// TTS is the main interface for text-to-speech providers.
type TTS interface {
	// Synthesize converts text to audio bytes the call transport can play.
	Synthesize(ctx context.Context, req SynthesizeRequest) ([]byte, error)

	// Capabilities returns the provider's capabilities.
	Capabilities() Capabilities
}
