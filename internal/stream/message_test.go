package stream

import (
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/matryer/is"

	"github.com/swizz-ai/holdline/pkg/session"
)

func TestToEventStart(t *testing.T) {
	is := is.New(t)

	m := Message{
		Event: EventStart,
		Start: &StartPayload{StreamSID: "MZ123", CallSID: "CA456"},
	}
	ev, err := m.ToEvent()
	is.NoErr(err)
	is.Equal(ev.Type, session.EventStart)
	is.Equal(ev.StreamSID, "MZ123")
}

func TestToEventMediaDecodesPayload(t *testing.T) {
	is := is.New(t)

	frame := []byte{0x7f, 0x00, 0x12, 0x34}
	m := Message{
		Event:          EventMedia,
		SequenceNumber: "17",
		Media:          &MediaPayload{Payload: base64.StdEncoding.EncodeToString(frame)},
	}
	ev, err := m.ToEvent()
	is.NoErr(err)
	is.Equal(ev.Type, session.EventMedia)
	is.Equal(ev.Sequence, "17")
	is.Equal(ev.Frame, frame)
}

func TestToEventControlEvents(t *testing.T) {
	is := is.New(t)

	ev, err := (&Message{Event: EventConnected}).ToEvent()
	is.NoErr(err)
	is.Equal(ev.Type, session.EventConnected)

	ev, err = (&Message{Event: EventStop}).ToEvent()
	is.NoErr(err)
	is.Equal(ev.Type, session.EventStop)
}

func TestToEventRejectsMalformed(t *testing.T) {
	is := is.New(t)

	cases := []Message{
		{Event: "ringing"},
		{Event: EventStart},
		{Event: EventMedia},
		{Event: EventMedia, Media: &MediaPayload{Payload: ""}},
		{Event: EventMedia, Media: &MediaPayload{Payload: "not base64!!!"}},
	}
	for _, m := range cases {
		_, err := m.ToEvent()
		is.True(err != nil) // malformed messages must error, not panic
	}
}

func TestOutboundMediaWireShape(t *testing.T) {
	is := is.New(t)

	audio := []byte("RIFF....WAVE")
	raw, err := json.Marshal(OutboundMedia("MZ999", audio))
	is.NoErr(err)

	var decoded struct {
		Event     string `json:"event"`
		StreamSID string `json:"streamSid"`
		Media     struct {
			Payload string `json:"payload"`
		} `json:"media"`
	}
	is.NoErr(json.Unmarshal(raw, &decoded))
	is.Equal(decoded.Event, "media")
	is.Equal(decoded.StreamSID, "MZ999")
	is.Equal(decoded.Media.Payload, base64.StdEncoding.EncodeToString(audio))
}
