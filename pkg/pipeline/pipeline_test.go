package pipeline

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/matryer/is"

	"github.com/swizz-ai/holdline/pkg/ai/llm"
	llmfake "github.com/swizz-ai/holdline/pkg/ai/llm/fake"
	sttfake "github.com/swizz-ai/holdline/pkg/ai/stt/fake"
	ttsfake "github.com/swizz-ai/holdline/pkg/ai/tts/fake"
	"github.com/swizz-ai/holdline/pkg/audio/wav"
	"github.com/swizz-ai/holdline/pkg/call"
	"github.com/swizz-ai/holdline/pkg/notify"
	"github.com/swizz-ai/holdline/pkg/store/memory"
)

type fixture struct {
	pipeline *Pipeline
	conv     *call.Conversation
	store    *memory.Store
	stt      *sttfake.FakeSTT
	llm      *llmfake.FakeLLM
	tts      *ttsfake.FakeTTS
	detected int
	held     int
}

func newFixture(t *testing.T, transcripts ...string) *fixture {
	t.Helper()
	is := is.New(t)

	f := &fixture{
		conv:  call.NewConversation("cancel my cable subscription"),
		store: memory.New(),
		stt:   sttfake.NewFakeSTT(transcripts...),
		llm:   llmfake.NewFakeLLM(),
		tts:   ttsfake.NewFakeTTS(),
	}
	is.NoErr(f.store.Create(context.Background(), &call.Call{
		ID:     "call-1",
		Status: call.StatusCalling,
	}))

	p, err := New(Config{
		CallID:       "call-1",
		UserPhone:    "+15550100",
		Conversation: f.conv,
		STT:          f.stt,
		LLM:          f.llm,
		TTS:          f.tts,
		Store:        f.store,
		Notifier:     notify.NewNop(slog.Default()),
		Logger:       slog.Default(),
		OnHumanDetected: func(ctx context.Context) error {
			f.detected++
			return nil
		},
		OnHold: func(ctx context.Context) error {
			f.held++
			return nil
		},
	})
	is.NoErr(err)
	f.pipeline = p
	return f
}

func TestProcessFullExchange(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	f := newFixture(t, "I need to speak to billing")
	f.llm = llmfake.NewFakeLLM("Of course, I can wait while you transfer me.")
	f.pipeline.cfg.LLM = f.llm

	chunk := bytes.Repeat([]byte{1}, 2000)
	audio, err := f.pipeline.Process(ctx, chunk)
	is.NoErr(err)
	is.Equal(string(audio), "audio:Of course, I can wait while you transfer me.")

	// The STT provider received a WAV container wrapping the whole chunk.
	sizes := f.stt.AudioSizes()
	is.Equal(len(sizes), 1)
	is.Equal(sizes[0], wav.HeaderSize+2000)

	// No human indicators, so no detection and no status change.
	is.Equal(f.detected, 0)
	is.True(!f.conv.HumanDetected())

	// Transcript holds the caller line then the reply, in order.
	c, err := f.store.Get(ctx, "call-1")
	is.NoErr(err)
	is.Equal(len(c.Transcription), 2)
	is.Equal(c.Transcription[0].Speaker, call.SpeakerHuman)
	is.Equal(c.Transcription[0].Text, "I need to speak to billing")
	is.Equal(c.Transcription[1].Speaker, call.SpeakerAI)
	is.Equal(c.Transcription[1].Text, "Of course, I can wait while you transfer me.")
	is.Equal(c.AIResponses, 1)

	// Conversation history: system, user, assistant.
	history := f.conv.History()
	is.Equal(len(history), 3)
	is.Equal(history[1].Role, call.RoleUser)
	is.Equal(history[2].Role, call.RoleAssistant)

	// The reply generator saw the bounded-length, moderate-temperature request.
	reqs := f.llm.Requests()
	is.Equal(len(reqs), 1)
	is.Equal(reqs[0].MaxTokens, DefaultMaxReplyTokens)
	is.Equal(reqs[0].Temperature, float32(DefaultTemperature))
	is.Equal(reqs[0].Messages[0].Role, llm.RoleSystem)
}

func TestProcessHumanDetectionFiresOnce(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	f := newFixture(t,
		"Hello, how can I help you today?",
		"Hi there, this is Morgan speaking",
	)

	_, err := f.pipeline.Process(ctx, []byte{1, 2, 3})
	is.NoErr(err)
	is.True(f.conv.HumanDetected())
	is.Equal(f.detected, 1)

	// A second human transcript must not re-fire the transition.
	_, err = f.pipeline.Process(ctx, []byte{4, 5, 6})
	is.NoErr(err)
	is.Equal(f.detected, 1)
	is.True(f.conv.HumanDetected()) // and the flag never reverts
}

func TestProcessHumanDetectedIsMonotone(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	f := newFixture(t,
		"Hello, how can I help you today?",
		"Please hold, your call is important to us",
	)

	_, err := f.pipeline.Process(ctx, []byte{1})
	is.NoErr(err)
	is.True(f.conv.HumanDetected())

	// An automated classification afterwards does not reset the flag.
	_, err = f.pipeline.Process(ctx, []byte{2})
	is.NoErr(err)
	is.True(f.conv.HumanDetected())
	is.Equal(f.detected, 1)
}

func TestProcessOnHoldFiresOnceBeforeHuman(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	f := newFixture(t,
		"Please hold, your call is important to us",
		"Please continue to hold",
		"Hello, how can I help you today?",
		"Please hold again",
	)

	_, err := f.pipeline.Process(ctx, []byte{1})
	is.NoErr(err)
	is.Equal(f.held, 1)

	// A second automated chunk does not re-fire the transition.
	_, err = f.pipeline.Process(ctx, []byte{2})
	is.NoErr(err)
	is.Equal(f.held, 1)

	// Human pickup, then automated-sounding audio afterwards must not
	// report the call as back on hold.
	_, err = f.pipeline.Process(ctx, []byte{3})
	is.NoErr(err)
	is.Equal(f.detected, 1)

	_, err = f.pipeline.Process(ctx, []byte{4})
	is.NoErr(err)
	is.Equal(f.held, 1)
}

func TestProcessEmptyTranscriptAbortsTurn(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()

	for _, transcript := range []string{"", "   ", "\n\t"} {
		f := newFixture(t, transcript)
		audio, err := f.pipeline.Process(ctx, []byte{1})
		is.NoErr(err)
		is.Equal(audio, []byte(nil))

		c, err := f.store.Get(ctx, "call-1")
		is.NoErr(err)
		is.Equal(len(c.Transcription), 0) // nothing appended
		is.Equal(f.conv.Len(), 1)         // only the system turn
		is.Equal(len(f.llm.Requests()), 0)
	}
}

func TestProcessTranscribeFailureAbortsTurn(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	f := newFixture(t)
	f.stt.Err = errors.New("stt unavailable")

	_, err := f.pipeline.Process(ctx, []byte{1})
	is.True(err != nil)

	c, err := f.store.Get(ctx, "call-1")
	is.NoErr(err)
	is.Equal(len(c.Transcription), 0)
	is.Equal(f.conv.Len(), 1)
}

func TestProcessReplyFailureKeepsTranscript(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	f := newFixture(t, "I need help with an invoice")
	f.llm.Err = errors.New("llm overloaded")

	_, err := f.pipeline.Process(ctx, []byte{1})
	is.True(err != nil)

	// The caller's line survives; no reply entry was appended.
	c, err := f.store.Get(ctx, "call-1")
	is.NoErr(err)
	is.Equal(len(c.Transcription), 1)
	is.Equal(c.Transcription[0].Speaker, call.SpeakerHuman)
	is.Equal(c.AIResponses, 0)
	is.Equal(len(f.tts.Texts()), 0)
}

func TestProcessSynthesisFailureAbortsTurn(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	f := newFixture(t, "what is this regarding")
	f.tts.Err = errors.New("tts quota exceeded")

	audio, err := f.pipeline.Process(ctx, []byte{1})
	is.True(err != nil)
	is.Equal(audio, []byte(nil))
}

func TestProcessFailureDoesNotPoisonNextChunk(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	f := newFixture(t, "first line", "second line")
	f.stt.Err = errors.New("flaky")

	_, err := f.pipeline.Process(ctx, []byte{1})
	is.True(err != nil)

	f.stt.Err = nil
	audio, err := f.pipeline.Process(ctx, []byte{2})
	is.NoErr(err)
	is.True(len(audio) > 0) // the next chunk processes normally
}

func TestProcessEntriesStayOrdered(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	f := newFixture(t, "line one", "line two", "line three")

	for i := 0; i < 3; i++ {
		_, err := f.pipeline.Process(ctx, []byte{byte(i)})
		is.NoErr(err)
	}

	c, err := f.store.Get(ctx, "call-1")
	is.NoErr(err)
	is.Equal(len(c.Transcription), 6) // human+ai per chunk
	is.Equal(c.Transcription[0].Text, "line one")
	is.Equal(c.Transcription[2].Text, "line two")
	is.Equal(c.Transcription[4].Text, "line three")
	for i := 1; i < len(c.Transcription); i++ {
		is.True(!c.Transcription[i].Timestamp.Before(c.Transcription[i-1].Timestamp))
	}
}
