// Package stream hosts the media-stream websocket server. Each accepted
// connection carries exactly one phone call: the handler builds that
// call's conversation state, speech pipeline, and session controller,
// then pumps decoded wire messages into the session until the stream ends.
package stream

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/swizz-ai/holdline/pkg/ai/llm"
	"github.com/swizz-ai/holdline/pkg/ai/stt"
	"github.com/swizz-ai/holdline/pkg/ai/tts"
	"github.com/swizz-ai/holdline/pkg/call"
	"github.com/swizz-ai/holdline/pkg/notify"
	"github.com/swizz-ai/holdline/pkg/pipeline"
	"github.com/swizz-ai/holdline/pkg/session"
	"github.com/swizz-ai/holdline/pkg/store"
)

// Config holds the shared collaborators handed to every call session.
type Config struct {
	Store    store.Store
	STT      stt.STT
	LLM      llm.LLM
	TTS      tts.TTS
	Notifier notify.Notifier
	Logger   *slog.Logger

	FrameThreshold int
	QueueSize      int
	StageTimeout   time.Duration
}

// Server upgrades media-stream requests and runs one session per call.
type Server struct {
	cfg      Config
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewServer validates the configuration and creates the server.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if cfg.STT == nil || cfg.LLM == nil || cfg.TTS == nil {
		return nil, fmt.Errorf("stt, llm, and tts providers are required")
	}
	if cfg.Notifier == nil {
		return nil, fmt.Errorf("notifier is required")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return &Server{
		cfg:    cfg,
		logger: cfg.Logger,
		upgrader: websocket.Upgrader{
			HandshakeTimeout: 10 * time.Second,
			// The telephony provider connects server-to-server; there is
			// no browser origin to check.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}, nil
}

// HandleStream is the websocket endpoint for one call's audio stream.
// Query parameters: callId, userPhone, callReason.
func (s *Server) HandleStream(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	callID := q.Get("callId")
	userPhone := q.Get("userPhone")
	callReason := q.Get("callReason")
	if callID == "" || userPhone == "" || callReason == "" {
		http.Error(w, "missing callId, userPhone, or callReason", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	c, err := s.lookupCall(ctx, callID, userPhone, callReason)
	if err != nil {
		s.logger.Error("failed to resolve call record",
			slog.String("call_id", callID),
			slog.String("error", err.Error()))
		http.Error(w, "call lookup failed", http.StatusInternalServerError)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	defer conn.Close()

	s.logger.Info("media stream opened", slog.String("call_id", callID))
	s.serveCall(ctx, conn, c, callReason)
	s.logger.Info("media stream closed", slog.String("call_id", callID))
}

// serveCall wires up and runs one call session over an open connection.
func (s *Server) serveCall(ctx context.Context, conn *websocket.Conn, c *call.Call, callReason string) {
	out := &wsOutbound{conn: conn}
	conv := call.NewConversation(callReason)

	// The session is assigned before any chunk can reach the pipeline, so
	// the closure never observes it nil.
	var sess *session.Session

	p, err := pipeline.New(pipeline.Config{
		CallID:       c.ID,
		UserPhone:    c.UserPhone,
		Conversation: conv,
		STT:          s.cfg.STT,
		LLM:          s.cfg.LLM,
		TTS:          s.cfg.TTS,
		Store:        s.cfg.Store,
		Notifier:     s.cfg.Notifier,
		Logger:       s.cfg.Logger,
		StageTimeout: s.cfg.StageTimeout,
		OnHumanDetected: func(ctx context.Context) error {
			return sess.MarkConnectedToHuman(ctx)
		},
		OnHold: func(ctx context.Context) error {
			return sess.MarkOnHold(ctx)
		},
	})
	if err != nil {
		s.logger.Error("failed to build pipeline", slog.String("error", err.Error()))
		return
	}

	sess, err = session.New(session.Config{
		Call:           c,
		Store:          s.cfg.Store,
		Processor:      p,
		Out:            out,
		Logger:         s.cfg.Logger,
		FrameThreshold: s.cfg.FrameThreshold,
		QueueSize:      s.cfg.QueueSize,
	})
	if err != nil {
		s.logger.Error("failed to build session", slog.String("error", err.Error()))
		return
	}

	sess.Start(ctx)
	defer sess.Close(ctx)

	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Warn("media stream read failed", slog.String("error", err.Error()))
			}
			return
		}

		ev, err := msg.ToEvent()
		if err != nil {
			// Malformed events are dropped; the stream keeps flowing.
			s.logger.Warn("dropping malformed stream message", slog.String("error", err.Error()))
			continue
		}

		sess.Handle(ctx, ev)
		if ev.Type == session.EventStop {
			return
		}
	}
}

// lookupCall fetches the call record created by the initiation endpoint.
// A missing record is recreated from the stream parameters so a stray
// reconnect still produces a transcript.
func (s *Server) lookupCall(ctx context.Context, callID, userPhone, callReason string) (*call.Call, error) {
	c, err := s.cfg.Store.Get(ctx, callID)
	if err == nil {
		return c, nil
	}
	if err != store.ErrNotFound {
		return nil, err
	}

	s.logger.Warn("no call record for stream, creating one", slog.String("call_id", callID))
	c = &call.Call{
		ID:               callID,
		UserPhone:        userPhone,
		IssueDescription: callReason,
		Status:           call.StatusCalling,
		StartedAt:        time.Now().UTC(),
	}
	if err := s.cfg.Store.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("create call record: %w", err)
	}
	return c, nil
}

// wsOutbound serializes writes to the shared websocket connection. The
// read loop and the session dispatcher both live past each other, and
// gorilla/websocket allows only one concurrent writer.
type wsOutbound struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (o *wsOutbound) SendAudio(streamSID string, audio []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.conn.WriteJSON(OutboundMedia(streamSID, audio)); err != nil {
		return fmt.Errorf("write outbound media: %w", err)
	}
	return nil
}
