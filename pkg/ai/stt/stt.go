// Package stt defines the speech-to-text provider contract. Providers
// receive a fully encoded audio container for one chunk and return the
// best-effort transcript, which may be empty when nothing intelligible
// was said.
package stt

import (
	"context"

	"github.com/swizz-ai/holdline/pkg/ai"
)

// STT-specific error variables
var (
	// ErrRecoverable indicates a temporary STT failure that may succeed if retried.
	ErrRecoverable = ai.ErrRecoverable

	// ErrFatal indicates a permanent STT failure that will not succeed if retried.
	ErrFatal = ai.ErrFatal
)

// Config describes the audio being submitted for transcription.
type Config struct {
	SampleRate  int
	NumChannels int
	Lang        string // language hint, e.g. "en"
}

// Capabilities describes the capabilities of an STT provider.
type Capabilities struct {
	SupportedLanguages []string
	SampleRates        []int
}

// STT is the main interface for speech-to-text providers.
type STT interface {
	// Transcribe converts one encoded audio chunk to text. An empty string
	// with a nil error means the provider heard nothing worth reporting.
	Transcribe(ctx context.Context, audio []byte, cfg Config) (string, error)

	// Capabilities returns the provider's capabilities.
	Capabilities() Capabilities
}
