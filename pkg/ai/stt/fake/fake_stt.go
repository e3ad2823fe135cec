// Package fake provides a scriptable STT implementation for testing.
package fake

import (
	"context"
	"sync"
	"time"

	"github.com/swizz-ai/holdline/pkg/ai/stt"
)

// DefaultTranscript is returned when no scripted transcripts remain.
const DefaultTranscript = "This is a fake transcript from the fake STT provider."

// FakeSTT is a fake STT implementation for testing. Each Transcribe call
// consumes the next scripted transcript; when the script is exhausted it
// falls back to DefaultTranscript.
type FakeSTT struct {
	mu      sync.Mutex
	script  []string
	calls   int
	byteLog []int

	// Err, when set, is returned by every Transcribe call.
	Err error

	// Delay is applied before each result to simulate provider latency.
	Delay time.Duration
}

// NewFakeSTT creates a fake STT provider that plays back the given
// transcripts in order.
func NewFakeSTT(transcripts ...string) *FakeSTT {
	return &FakeSTT{script: transcripts}
}

// Transcribe returns the next scripted transcript.
func (f *FakeSTT) Transcribe(ctx context.Context, audio []byte, cfg stt.Config) (string, error) {
	if f.Delay > 0 {
		select {
		case <-time.After(f.Delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.byteLog = append(f.byteLog, len(audio))
	if f.Err != nil {
		return "", f.Err
	}

	var text string
	if f.calls < len(f.script) {
		text = f.script[f.calls]
	} else {
		text = DefaultTranscript
	}
	f.calls++
	return text, nil
}

// Capabilities returns the fake STT capabilities.
func (f *FakeSTT) Capabilities() stt.Capabilities {
	return stt.Capabilities{
		SupportedLanguages: []string{"en"},
		SampleRates:        []int{8000, 16000},
	}
}

// Calls reports how many times Transcribe was invoked.
func (f *FakeSTT) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// AudioSizes reports the byte length of each submitted chunk in call order.
func (f *FakeSTT) AudioSizes() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]int, len(f.byteLog))
	copy(out, f.byteLog)
	return out
}
