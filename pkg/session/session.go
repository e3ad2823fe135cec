// Package session implements the controller that owns one call's live
// media stream. It demultiplexes control and media events, feeds the
// frame buffer, hands ready chunks to the speech pipeline through a
// bounded queue, and drives the call's status transitions.
package session

import (
	"context"
	"expvar"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/swizz-ai/holdline/pkg/call"
	"github.com/swizz-ai/holdline/pkg/store"
)

// State represents the lifecycle state of a session's stream.
type State int32

const (
	StateIdle State = iota
	StateStreaming
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateStreaming:
		return "Streaming"
	case StateClosed:
		return "Closed"
	default:
		return fmt.Sprintf("Unknown(%d)", s)
	}
}

// EventType identifies a stream event.
type EventType int

const (
	EventConnected EventType = iota
	EventStart
	EventMedia
	EventStop
)

func (t EventType) String() string {
	switch t {
	case EventConnected:
		return "connected"
	case EventStart:
		return "start"
	case EventMedia:
		return "media"
	case EventStop:
		return "stop"
	default:
		return fmt.Sprintf("unknown(%d)", int(t))
	}
}

// Event is one decoded control or media event from the telephony transport.
type Event struct {
	Type      EventType
	StreamSID string // set on start events
	Sequence  string // provider sequence indicator, media events
	Frame     []byte // decoded audio frame, media events
}

// Processor runs the speech pipeline for one flushed chunk and returns the
// synthesized reply audio, or nil when the turn produced no reply.
type Processor interface {
	Process(ctx context.Context, chunk []byte) ([]byte, error)
}

// Outbound transmits synthesized audio back over the call's media stream.
type Outbound interface {
	SendAudio(streamSID string, audio []byte) error
}

// Metrics holds per-session counters. They are unregistered expvars so
// multiple sessions and tests do not collide in the global namespace.
type Metrics struct {
	ChunksQueued    *expvar.Int
	ChunksProcessed *expvar.Int
	ChunksDropped   *expvar.Int
	EventsDropped   *expvar.Int
}

func newMetrics() *Metrics {
	return &Metrics{
		ChunksQueued:    new(expvar.Int),
		ChunksProcessed: new(expvar.Int),
		ChunksDropped:   new(expvar.Int),
		EventsDropped:   new(expvar.Int),
	}
}

// Config holds the collaborators for one session.
type Config struct {
	Call      *call.Call
	Store     store.Store
	Processor Processor
	Out       Outbound
	Logger    *slog.Logger

	// FrameThreshold is the frames-per-chunk flush threshold.
	// Defaults to DefaultFrameThreshold.
	FrameThreshold int

	// QueueSize bounds the number of flushed chunks waiting for the
	// pipeline. When full, the oldest queued chunk is dropped in favor of
	// the newest. Defaults to 4.
	QueueSize int
}

// Session owns exactly one call's streaming connection.
type Session struct {
	callID    string
	userPhone string
	st        store.Store
	processor Processor
	out       Outbound
	logger    *slog.Logger

	state atomic.Int32

	mu        sync.Mutex
	status    call.Status
	streamSID string

	buffer *FrameBuffer
	chunks chan []byte

	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once

	metrics *Metrics
}

// New creates a session for the given call.
func New(cfg Config) (*Session, error) {
	if cfg.Call == nil {
		return nil, fmt.Errorf("call is required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if cfg.Processor == nil {
		return nil, fmt.Errorf("processor is required")
	}
	if cfg.Out == nil {
		return nil, fmt.Errorf("outbound transport is required")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 4
	}

	s := &Session{
		callID:    cfg.Call.ID,
		userPhone: cfg.Call.UserPhone,
		st:        cfg.Store,
		processor: cfg.Processor,
		out:       cfg.Out,
		logger:    cfg.Logger.With(slog.String("call_id", cfg.Call.ID)),
		status:    cfg.Call.Status,
		buffer:    NewFrameBuffer(cfg.FrameThreshold),
		chunks:    make(chan []byte, queueSize),
		quit:      make(chan struct{}),
		done:      make(chan struct{}),
		metrics:   newMetrics(),
	}
	s.state.Store(int32(StateIdle))
	return s, nil
}

// Start launches the chunk dispatcher. It must be called once before the
// first Handle call.
func (s *Session) Start(ctx context.Context) {
	go s.dispatch(ctx)
}

// State returns the session's current stream state.
func (s *Session) State() State {
	return State(s.state.Load())
}

// Status returns the session's view of the call status.
func (s *Session) Status() call.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Metrics returns the session's counters.
func (s *Session) Metrics() *Metrics {
	return s.metrics
}

// Done is closed once the dispatcher has drained and exited.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Handle processes one decoded stream event. Malformed or out-of-order
// events are logged and dropped; they never terminate the session.
// Handle must be called from a single goroutine (the transport read loop).
func (s *Session) Handle(ctx context.Context, ev Event) {
	switch ev.Type {
	case EventConnected:
		s.logger.Debug("stream connected")

	case EventStart:
		s.handleStart(ctx, ev)

	case EventMedia:
		s.handleMedia(ev)

	case EventStop:
		s.logger.Info("stream stopped")
		s.Close(ctx)

	default:
		s.metrics.EventsDropped.Add(1)
		s.logger.Warn("dropping unknown stream event", slog.String("type", ev.Type.String()))
	}
}

func (s *Session) handleStart(ctx context.Context, ev Event) {
	if !s.state.CompareAndSwap(int32(StateIdle), int32(StateStreaming)) {
		s.metrics.EventsDropped.Add(1)
		s.logger.Warn("dropping start event in state", slog.String("state", s.State().String()))
		return
	}
	if ev.StreamSID == "" {
		s.logger.Warn("start event without stream sid")
	}

	s.mu.Lock()
	s.streamSID = ev.StreamSID
	s.mu.Unlock()

	s.logger.Info("stream started", slog.String("stream_sid", ev.StreamSID))
	if err := s.setStatus(ctx, call.StatusCalling, store.Fields{}); err != nil {
		s.logger.Error("failed to record calling status", slog.String("error", err.Error()))
	}
}

func (s *Session) handleMedia(ev Event) {
	if s.State() != StateStreaming {
		s.metrics.EventsDropped.Add(1)
		s.logger.Warn("dropping media event in state", slog.String("state", s.State().String()))
		return
	}
	if len(ev.Frame) == 0 {
		s.metrics.EventsDropped.Add(1)
		s.logger.Warn("dropping empty media frame", slog.String("sequence", ev.Sequence))
		return
	}

	chunk, ready := s.buffer.Push(ev.Frame)
	if !ready {
		return
	}
	s.enqueue(chunk)
}

// enqueue hands a flushed chunk to the dispatcher without blocking the
// read loop. When the queue is full the oldest queued chunk is dropped:
// real-time recency beats completeness.
func (s *Session) enqueue(chunk []byte) {
	for {
		select {
		case s.chunks <- chunk:
			s.metrics.ChunksQueued.Add(1)
			return
		default:
		}

		select {
		case dropped := <-s.chunks:
			s.metrics.ChunksDropped.Add(1)
			s.logger.Warn("chunk queue full, dropping oldest",
				slog.Int("dropped_bytes", len(dropped)))
		default:
		}
	}
}

// dispatch serializes pipeline runs: at most one is active per session, so
// transcript and turn-history order always matches chunk flush order.
func (s *Session) dispatch(ctx context.Context) {
	defer close(s.done)

	// An in-flight run is allowed to finish its current provider call even
	// while the session is closing; partial external side effects cannot be
	// unwound. Stage deadlines inside the processor still bound it.
	runCtx := context.WithoutCancel(ctx)

	for {
		// Closing wins over queued work: once quit is closed no further
		// chunk may start, even if the queue is non-empty.
		select {
		case <-s.quit:
			return
		case <-ctx.Done():
			return
		default:
		}

		select {
		case <-s.quit:
			return
		case <-ctx.Done():
			return
		case chunk := <-s.chunks:
			audio, err := s.processor.Process(runCtx, chunk)
			if err != nil {
				s.logger.Error("chunk processing failed", slog.String("error", err.Error()))
				continue
			}
			s.metrics.ChunksProcessed.Add(1)
			if len(audio) == 0 {
				continue
			}
			s.sendAudio(audio)
		}
	}
}

func (s *Session) sendAudio(audio []byte) {
	s.mu.Lock()
	sid := s.streamSID
	s.mu.Unlock()

	if sid == "" {
		s.logger.Warn("no stream sid recorded, discarding outbound audio")
		return
	}
	if err := s.out.SendAudio(sid, audio); err != nil {
		s.logger.Error("failed to send outbound audio", slog.String("error", err.Error()))
	}
}

// Close moves the session to Closed, finalizes the call status, and
// cancels queued-but-unstarted chunk work. Safe to call more than once.
func (s *Session) Close(ctx context.Context) {
	s.closeOnce.Do(func() {
		s.state.Store(int32(StateClosed))
		close(s.quit)

		now := time.Now().UTC()
		if err := s.setStatus(ctx, call.StatusCompleted, store.Fields{CompletedAt: &now}); err != nil {
			s.logger.Error("failed to finalize call status", slog.String("error", err.Error()))
		}
		s.logger.Info("session closed")
	})
}

// MarkOnHold fires the on_hold transition. The speech pipeline calls this
// once, the first time a chunk reads as an automated system.
func (s *Session) MarkOnHold(ctx context.Context) error {
	return s.setStatus(ctx, call.StatusOnHold, store.Fields{})
}

// MarkConnectedToHuman fires the connected_to_human transition. The speech
// pipeline calls this once, the first time the classifier reports a human.
func (s *Session) MarkConnectedToHuman(ctx context.Context) error {
	return s.setStatus(ctx, call.StatusConnectedToHuman, store.Fields{})
}

// RequestCallback handles a user-initiated callback request, independent
// of classifier state.
func (s *Session) RequestCallback(ctx context.Context) error {
	return s.setStatus(ctx, call.StatusCallbackInProgress, store.Fields{
		CallbackRequested: store.BoolPtr(true),
	})
}

// ApplyProviderStatus folds a telephony provider status report into the
// session, typically a terminal completion or failure.
func (s *Session) ApplyProviderStatus(ctx context.Context, providerStatus string, duration int) error {
	update, ok := call.MapProviderStatus(providerStatus, duration, time.Now().UTC())
	if !ok {
		s.logger.Warn("ignoring unknown provider status", slog.String("provider_status", providerStatus))
		return nil
	}
	return s.setStatus(ctx, update.Status, store.Fields{
		CompletedAt: update.CompletedAt,
		Duration:    update.Duration,
	})
}

// setStatus applies a guarded status transition and persists it. A
// transition out of a terminal status, or any move the graph forbids, is a
// logged no-op. Repeating the current status is an idempotent store write.
func (s *Session) setStatus(ctx context.Context, next call.Status, f store.Fields) error {
	s.mu.Lock()
	current := s.status
	switch {
	case current == next && current.Terminal():
		s.mu.Unlock()
		return nil
	case current == next:
		// idempotent re-assertion, e.g. "calling" on stream start
	case !current.CanTransitionTo(next):
		s.mu.Unlock()
		s.logger.Warn("ignoring status transition",
			slog.String("from", string(current)),
			slog.String("to", string(next)))
		return nil
	default:
		s.status = next
	}
	s.mu.Unlock()

	f.Status = store.StatusPtr(next)
	if err := s.st.Update(ctx, s.callID, f); err != nil {
		return fmt.Errorf("persist status %s: %w", next, err)
	}
	s.logger.Info("call status updated", slog.String("status", string(next)))
	return nil
}
