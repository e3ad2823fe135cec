package stream

import (
	"encoding/base64"
	"fmt"

	"github.com/swizz-ai/holdline/pkg/session"
)

// Wire event names used by the telephony provider's media stream.
const (
	EventConnected = "connected"
	EventStart     = "start"
	EventMedia     = "media"
	EventStop      = "stop"
)

// Message is one JSON frame on the media-stream websocket, in both
// directions.
type Message struct {
	Event          string        `json:"event"`
	SequenceNumber string        `json:"sequenceNumber,omitempty"`
	StreamSID      string        `json:"streamSid,omitempty"`
	Start          *StartPayload `json:"start,omitempty"`
	Media          *MediaPayload `json:"media,omitempty"`
}

// StartPayload accompanies a start event.
type StartPayload struct {
	StreamSID  string `json:"streamSid"`
	AccountSID string `json:"accountSid,omitempty"`
	CallSID    string `json:"callSid,omitempty"`
}

// MediaPayload carries one base64-encoded audio frame.
type MediaPayload struct {
	Track     string `json:"track,omitempty"`
	Chunk     string `json:"chunk,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   string `json:"payload"`
}

// ToEvent translates a wire message into a session event, decoding the
// media payload. Unknown or malformed messages return an error so the
// caller can log and drop them.
func (m *Message) ToEvent() (session.Event, error) {
	switch m.Event {
	case EventConnected:
		return session.Event{Type: session.EventConnected}, nil

	case EventStart:
		if m.Start == nil {
			return session.Event{}, fmt.Errorf("start event without start payload")
		}
		return session.Event{
			Type:      session.EventStart,
			StreamSID: m.Start.StreamSID,
		}, nil

	case EventMedia:
		if m.Media == nil || m.Media.Payload == "" {
			return session.Event{}, fmt.Errorf("media event without payload")
		}
		frame, err := base64.StdEncoding.DecodeString(m.Media.Payload)
		if err != nil {
			return session.Event{}, fmt.Errorf("decode media payload: %w", err)
		}
		return session.Event{
			Type:     session.EventMedia,
			Sequence: m.SequenceNumber,
			Frame:    frame,
		}, nil

	case EventStop:
		return session.Event{Type: session.EventStop}, nil

	default:
		return session.Event{}, fmt.Errorf("unknown stream event %q", m.Event)
	}
}

// OutboundMedia builds the wire message carrying synthesized audio back
// to the provider on the given stream.
func OutboundMedia(streamSID string, audio []byte) Message {
	return Message{
		Event:     EventMedia,
		StreamSID: streamSID,
		Media: &MediaPayload{
			Payload: base64.StdEncoding.EncodeToString(audio),
		},
	}
}
