// Package store defines the Call Store boundary shared by the streaming
// core and the HTTP endpoints. Implementations must make AppendTranscription
// atomic per call id: the store is shared across sessions and a plain
// read-then-write append loses entries under concurrent writers.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/swizz-ai/holdline/pkg/call"
)

// ErrNotFound is returned when no call exists for the given id.
var ErrNotFound = errors.New("call not found")

// Fields is a partial update of a call record. Nil pointers leave the
// corresponding column unchanged.
type Fields struct {
	Status            *call.Status
	ProviderCallID    *string
	CallbackRequested *bool
	CompletedAt       *time.Time
	Duration          *int
}

// Store is the call record store consumed by the session controller and
// the speech pipeline.
type Store interface {
	// Create inserts a new call record.
	Create(ctx context.Context, c *call.Call) error

	// Get returns the call with the given id, or ErrNotFound.
	Get(ctx context.Context, id string) (*call.Call, error)

	// Update applies a partial update to the call with the given id.
	Update(ctx context.Context, id string, f Fields) error

	// AppendTranscription atomically appends one entry to the call's
	// transcript. Entries are never reordered or deleted.
	AppendTranscription(ctx context.Context, id string, e call.Entry) error

	// IncrementAIResponses bumps the call's reply counter by one.
	IncrementAIResponses(ctx context.Context, id string) error
}

// StatusPtr is a convenience for building Fields literals.
func StatusPtr(s call.Status) *call.Status { return &s }

// BoolPtr is a convenience for building Fields literals.
func BoolPtr(b bool) *bool { return &b }
