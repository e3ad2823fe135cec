// Package memory provides an in-memory Call Store used by tests and by
// the serve command when no database is configured. All operations take a
// single store-wide lock, which trivially makes transcript appends atomic.
package memory

import (
	"context"
	"sync"

	"github.com/swizz-ai/holdline/pkg/call"
	"github.com/swizz-ai/holdline/pkg/store"
)

// Store is an in-memory implementation of store.Store.
type Store struct {
	mu    sync.Mutex
	calls map[string]*call.Call
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{calls: make(map[string]*call.Call)}
}

// Create inserts a new call record.
func (s *Store) Create(ctx context.Context, c *call.Call) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *c
	cp.Transcription = append([]call.Entry(nil), c.Transcription...)
	s.calls[c.ID] = &cp
	return nil
}

// Get returns a copy of the call with the given id.
func (s *Store) Get(ctx context.Context, id string) (*call.Call, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.calls[id]
	if !ok {
		return nil, store.ErrNotFound
	}

	cp := *c
	cp.Transcription = append([]call.Entry(nil), c.Transcription...)
	return &cp, nil
}

// Update applies a partial update to the call with the given id.
func (s *Store) Update(ctx context.Context, id string, f store.Fields) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.calls[id]
	if !ok {
		return store.ErrNotFound
	}

	if f.Status != nil {
		c.Status = *f.Status
	}
	if f.ProviderCallID != nil {
		c.ProviderCallID = *f.ProviderCallID
	}
	if f.CallbackRequested != nil {
		c.CallbackRequested = *f.CallbackRequested
	}
	if f.CompletedAt != nil {
		t := *f.CompletedAt
		c.CompletedAt = &t
	}
	if f.Duration != nil {
		c.Duration = *f.Duration
	}
	return nil
}

// AppendTranscription appends one entry under the store lock.
func (s *Store) AppendTranscription(ctx context.Context, id string, e call.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.calls[id]
	if !ok {
		return store.ErrNotFound
	}
	c.Transcription = append(c.Transcription, e)
	return nil
}

// IncrementAIResponses bumps the reply counter.
func (s *Store) IncrementAIResponses(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.calls[id]
	if !ok {
		return store.ErrNotFound
	}
	c.AIResponses++
	return nil
}
