// Package fake provides a deterministic TTS implementation for testing.
package fake

import (
	"context"
	"sync"

	"github.com/swizz-ai/holdline/pkg/ai/tts"
)

// FakeTTS is a fake TTS implementation for testing. Synthesized audio is
// the UTF-8 bytes of the input text prefixed with "audio:", so tests can
// assert exactly which reply was spoken.
type FakeTTS struct {
	mu    sync.Mutex
	texts []string

	// Err, when set, is returned by every Synthesize call.
	Err error
}

// NewFakeTTS creates a new fake TTS provider.
func NewFakeTTS() *FakeTTS {
	return &FakeTTS{}
}

// Synthesize returns deterministic bytes for the given text.
func (f *FakeTTS) Synthesize(ctx context.Context, req tts.SynthesizeRequest) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.Err != nil {
		return nil, f.Err
	}
	f.texts = append(f.texts, req.Text)
	return []byte("audio:" + req.Text), nil
}

// Capabilities returns the fake TTS capabilities.
func (f *FakeTTS) Capabilities() tts.Capabilities {
	return tts.Capabilities{
		SupportedVoices: []string{"fake"},
		SampleRates:     []int{8000, 24000},
	}
}

// Texts returns every synthesized text in call order.
func (f *FakeTTS) Texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.texts))
	copy(out, f.texts)
	return out
}
