// Package pipeline transforms one flushed audio chunk into at most one
// conversational exchange: encode, transcribe, classify, update the
// conversation, generate a reply, and synthesize it. Every stage is
// independently fallible; a failed or timed-out stage aborts only that
// chunk's turn and leaves the session ready for the next chunk.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/swizz-ai/holdline/pkg/ai/llm"
	"github.com/swizz-ai/holdline/pkg/ai/stt"
	"github.com/swizz-ai/holdline/pkg/ai/tts"
	"github.com/swizz-ai/holdline/pkg/audio/wav"
	"github.com/swizz-ai/holdline/pkg/call"
	"github.com/swizz-ai/holdline/pkg/classify"
	"github.com/swizz-ai/holdline/pkg/notify"
	"github.com/swizz-ai/holdline/pkg/store"
)

const (
	// DefaultMaxReplyTokens bounds replies to a short spoken utterance.
	DefaultMaxReplyTokens = 150

	// DefaultTemperature gives replies natural variation.
	DefaultTemperature = 0.7

	// DefaultStageTimeout bounds each external provider call.
	DefaultStageTimeout = 15 * time.Second
)

// Config holds the collaborators and tuning for one call's pipeline.
type Config struct {
	CallID       string
	UserPhone    string
	Conversation *call.Conversation

	STT      stt.STT
	LLM      llm.LLM
	TTS      tts.TTS
	Store    store.Store
	Notifier notify.Notifier
	Logger   *slog.Logger

	// OnHumanDetected is invoked exactly once, the first time the
	// classifier reports a live human. The session controller uses it to
	// fire the connected_to_human transition.
	OnHumanDetected func(ctx context.Context) error

	// OnHold is invoked exactly once, the first time the classifier
	// reports an automated system before any human was heard. The session
	// controller uses it to fire the on_hold transition.
	OnHold func(ctx context.Context) error

	// AudioFormat describes the raw frames being encoded. Zero value
	// means wav.DefaultFormat.
	AudioFormat wav.Format

	Language       string  // transcription language hint, default "en"
	Voice          string  // synthesis voice, default "alloy"
	MaxReplyTokens int     // default DefaultMaxReplyTokens
	Temperature    float32 // default DefaultTemperature

	// StageTimeout bounds each external call. A timeout is treated the
	// same as a failure for that stage.
	StageTimeout time.Duration
}

// Pipeline orchestrates the per-chunk speech stages for one session. Its
// Process method is invoked only by the session's single dispatcher, so
// the conversation state needs no locking.
type Pipeline struct {
	cfg    Config
	format wav.Format
	logger *slog.Logger

	// onHoldFired is touched only by the session's dispatcher goroutine.
	onHoldFired bool
}

// New creates a pipeline for one call.
func New(cfg Config) (*Pipeline, error) {
	if cfg.Conversation == nil {
		return nil, fmt.Errorf("conversation is required")
	}
	if cfg.STT == nil || cfg.LLM == nil || cfg.TTS == nil {
		return nil, fmt.Errorf("stt, llm, and tts providers are required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if cfg.Notifier == nil {
		return nil, fmt.Errorf("notifier is required")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	if cfg.Language == "" {
		cfg.Language = "en"
	}
	if cfg.Voice == "" {
		cfg.Voice = "alloy"
	}
	if cfg.MaxReplyTokens <= 0 {
		cfg.MaxReplyTokens = DefaultMaxReplyTokens
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = DefaultTemperature
	}
	if cfg.StageTimeout <= 0 {
		cfg.StageTimeout = DefaultStageTimeout
	}

	format := cfg.AudioFormat
	if format == (wav.Format{}) {
		format = wav.DefaultFormat
	}

	return &Pipeline{
		cfg:    cfg,
		format: format,
		logger: cfg.Logger.With(slog.String("call_id", cfg.CallID)),
	}, nil
}

// Process runs the speech stages for one chunk and returns the synthesized
// reply audio, or nil when the chunk produced no exchange (silence, empty
// transcript, empty reply).
func (p *Pipeline) Process(ctx context.Context, chunk []byte) ([]byte, error) {
	encoded, err := wav.Encode(chunk, p.format)
	if err != nil {
		return nil, fmt.Errorf("encode chunk: %w", err)
	}

	transcript, err := p.transcribe(ctx, encoded)
	if err != nil {
		return nil, fmt.Errorf("transcribe chunk: %w", err)
	}
	if strings.TrimSpace(transcript) == "" {
		return nil, nil
	}
	p.logger.Debug("transcribed chunk", slog.String("text", transcript))

	if err := p.cfg.Store.AppendTranscription(ctx, p.cfg.CallID, call.Entry{
		Timestamp: time.Now().UTC(),
		Speaker:   call.SpeakerHuman,
		Text:      transcript,
	}); err != nil {
		return nil, fmt.Errorf("append transcript entry: %w", err)
	}

	if classify.Classify(transcript) == classify.Human {
		p.handleHumanDetected(ctx)
	} else {
		p.handleOnHold(ctx)
	}

	p.cfg.Conversation.AppendUser(transcript)

	reply, err := p.generateReply(ctx)
	if err != nil {
		return nil, fmt.Errorf("generate reply: %w", err)
	}
	if strings.TrimSpace(reply) == "" {
		return nil, nil
	}

	p.cfg.Conversation.AppendAssistant(reply)
	if err := p.cfg.Store.AppendTranscription(ctx, p.cfg.CallID, call.Entry{
		Timestamp: time.Now().UTC(),
		Speaker:   call.SpeakerAI,
		Text:      reply,
	}); err != nil {
		return nil, fmt.Errorf("append reply entry: %w", err)
	}
	if err := p.cfg.Store.IncrementAIResponses(ctx, p.cfg.CallID); err != nil {
		// Counter drift is tolerable; the reply itself already persisted.
		p.logger.Error("failed to bump reply counter", slog.String("error", err.Error()))
	}

	audio, err := p.synthesize(ctx, reply)
	if err != nil {
		return nil, fmt.Errorf("synthesize reply: %w", err)
	}
	return audio, nil
}

// handleHumanDetected flips the monotone flag and fires the one-shot side
// effects. Side-effect failures are logged, not fatal: the flag itself is
// already set and never reverts.
func (p *Pipeline) handleHumanDetected(ctx context.Context) {
	if !p.cfg.Conversation.MarkHumanDetected() {
		return
	}
	p.logger.Info("human detected on call")

	if p.cfg.OnHumanDetected != nil {
		if err := p.cfg.OnHumanDetected(ctx); err != nil {
			p.logger.Error("human-detected transition failed", slog.String("error", err.Error()))
		}
	}

	notifyCtx, cancel := p.stageCtx(ctx)
	defer cancel()
	if err := p.cfg.Notifier.HumanDetected(notifyCtx, p.cfg.CallID, p.cfg.UserPhone); err != nil {
		p.logger.Error("human-detected notification failed", slog.String("error", err.Error()))
	}
}

// handleOnHold fires the on_hold transition the first time a chunk reads
// as an automated system, as long as no human has been heard yet.
func (p *Pipeline) handleOnHold(ctx context.Context) {
	if p.onHoldFired || p.cfg.Conversation.HumanDetected() {
		return
	}
	p.onHoldFired = true

	if p.cfg.OnHold != nil {
		if err := p.cfg.OnHold(ctx); err != nil {
			p.logger.Error("on-hold transition failed", slog.String("error", err.Error()))
		}
	}
}

func (p *Pipeline) transcribe(ctx context.Context, encoded []byte) (string, error) {
	sttCtx, cancel := p.stageCtx(ctx)
	defer cancel()

	return p.cfg.STT.Transcribe(sttCtx, encoded, stt.Config{
		SampleRate:  int(p.format.SampleRate),
		NumChannels: int(p.format.NumChannels),
		Lang:        p.cfg.Language,
	})
}

func (p *Pipeline) generateReply(ctx context.Context) (string, error) {
	llmCtx, cancel := p.stageCtx(ctx)
	defer cancel()

	resp, err := p.cfg.LLM.Chat(llmCtx, llm.ChatRequest{
		Messages:    toMessages(p.cfg.Conversation.History()),
		MaxTokens:   p.cfg.MaxReplyTokens,
		Temperature: p.cfg.Temperature,
	})
	if err != nil {
		return "", err
	}
	return resp.Message.Content, nil
}

func (p *Pipeline) synthesize(ctx context.Context, reply string) ([]byte, error) {
	ttsCtx, cancel := p.stageCtx(ctx)
	defer cancel()

	return p.cfg.TTS.Synthesize(ttsCtx, tts.SynthesizeRequest{
		Text:  reply,
		Voice: p.cfg.Voice,
	})
}

func (p *Pipeline) stageCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, p.cfg.StageTimeout)
}

func toMessages(turns []call.Turn) []llm.Message {
	messages := make([]llm.Message, len(turns))
	for i, t := range turns {
		messages[i] = llm.Message{
			Role:    llm.MessageRole(t.Role),
			Content: t.Content,
		}
	}
	return messages
}
