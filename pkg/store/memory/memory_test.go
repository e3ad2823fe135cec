package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/matryer/is"

	"github.com/swizz-ai/holdline/pkg/call"
	"github.com/swizz-ai/holdline/pkg/store"
)

func newTestCall(id string) *call.Call {
	return &call.Call{
		ID:               id,
		PhoneNumber:      "+15550100",
		IssueDescription: "billing question",
		Status:           call.StatusCalling,
		StartedAt:        time.Now(),
	}
}

func TestCreateGet(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	s := New()

	is.NoErr(s.Create(ctx, newTestCall("c1")))

	got, err := s.Get(ctx, "c1")
	is.NoErr(err)
	is.Equal(got.ID, "c1")
	is.Equal(got.Status, call.StatusCalling)

	_, err = s.Get(ctx, "missing")
	is.True(errors.Is(err, store.ErrNotFound))
}

func TestUpdatePartialFields(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	s := New()
	is.NoErr(s.Create(ctx, newTestCall("c1")))

	completed := time.Now()
	dur := 42
	err := s.Update(ctx, "c1", store.Fields{
		Status:      store.StatusPtr(call.StatusCompleted),
		CompletedAt: &completed,
		Duration:    &dur,
	})
	is.NoErr(err)

	got, err := s.Get(ctx, "c1")
	is.NoErr(err)
	is.Equal(got.Status, call.StatusCompleted)
	is.Equal(got.Duration, 42)
	is.Equal(got.PhoneNumber, "+15550100") // untouched fields survive

	err = s.Update(ctx, "missing", store.Fields{})
	is.True(errors.Is(err, store.ErrNotFound))
}

func TestAppendTranscriptionOrdering(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	s := New()
	is.NoErr(s.Create(ctx, newTestCall("c1")))

	base := time.Now()
	for i := 0; i < 5; i++ {
		err := s.AppendTranscription(ctx, "c1", call.Entry{
			Timestamp: base.Add(time.Duration(i) * time.Second),
			Speaker:   call.SpeakerHuman,
			Text:      fmt.Sprintf("line %d", i),
		})
		is.NoErr(err)
	}

	got, err := s.Get(ctx, "c1")
	is.NoErr(err)
	is.Equal(len(got.Transcription), 5)
	for i, e := range got.Transcription {
		is.Equal(e.Text, fmt.Sprintf("line %d", i)) // append order preserved
		if i > 0 {
			is.True(!e.Timestamp.Before(got.Transcription[i-1].Timestamp))
		}
	}
}

func TestAppendTranscriptionConcurrent(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	s := New()
	is.NoErr(s.Create(ctx, newTestCall("c1")))

	const writers = 8
	const perWriter = 25

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				_ = s.AppendTranscription(ctx, "c1", call.Entry{
					Timestamp: time.Now(),
					Speaker:   call.SpeakerAI,
					Text:      fmt.Sprintf("w%d-%d", w, i),
				})
			}
		}(w)
	}
	wg.Wait()

	got, err := s.Get(ctx, "c1")
	is.NoErr(err)
	is.Equal(len(got.Transcription), writers*perWriter) // no appends lost
}

func TestIncrementAIResponses(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	s := New()
	is.NoErr(s.Create(ctx, newTestCall("c1")))

	for i := 0; i < 3; i++ {
		is.NoErr(s.IncrementAIResponses(ctx, "c1"))
	}

	got, err := s.Get(ctx, "c1")
	is.NoErr(err)
	is.Equal(got.AIResponses, 3)
}

func TestGetReturnsCopy(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	s := New()
	is.NoErr(s.Create(ctx, newTestCall("c1")))
	is.NoErr(s.AppendTranscription(ctx, "c1", call.Entry{Speaker: call.SpeakerHuman, Text: "original"}))

	got, err := s.Get(ctx, "c1")
	is.NoErr(err)
	got.Transcription[0].Text = "mutated"
	got.Status = call.StatusFailed

	again, err := s.Get(ctx, "c1")
	is.NoErr(err)
	is.Equal(again.Transcription[0].Text, "original") // callers cannot mutate stored state
	is.Equal(again.Status, call.StatusCalling)
}
