// Package postgres implements the Call Store on PostgreSQL using pgx.
// Transcript appends run as a single jsonb concatenation statement, so
// they are atomic per call id under concurrent writers without an
// optimistic-concurrency loop.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pressly/goose/v3"

	// Registers the pgx database/sql driver used for migrations.
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/swizz-ai/holdline/pkg/call"
	"github.com/swizz-ai/holdline/pkg/store"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Store is a PostgreSQL-backed implementation of store.Store.
type Store struct {
	pool *pgxpool.Pool
}

// New connects to the database, applies pending migrations, and returns
// the store.
func New(ctx context.Context, dsn string) (*Store, error) {
	if err := migrate(dsn); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	return &Store{pool: pool}, nil
}

func migrate(dsn string) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}
	defer db.Close()

	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	return goose.Up(db, "migrations")
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Create inserts a new call record.
func (s *Store) Create(ctx context.Context, c *call.Call) error {
	transcription, err := json.Marshal(entriesOrEmpty(c.Transcription))
	if err != nil {
		return fmt.Errorf("marshal transcription: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO calls (
			id, phone_number, issue_description, user_phone, provider_call_id,
			status, callback_requested, started_at, completed_at, call_duration,
			ai_responses_count, transcription
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		c.ID, c.PhoneNumber, c.IssueDescription, c.UserPhone, c.ProviderCallID,
		c.Status, c.CallbackRequested, c.StartedAt, c.CompletedAt, nullableInt(c.Duration),
		c.AIResponses, transcription,
	)
	if err != nil {
		return fmt.Errorf("insert call: %w", err)
	}
	return nil
}

// Get returns the call with the given id.
func (s *Store) Get(ctx context.Context, id string) (*call.Call, error) {
	var (
		c             call.Call
		duration      *int
		transcription []byte
	)

	err := s.pool.QueryRow(ctx, `
		SELECT id, phone_number, issue_description, user_phone, provider_call_id,
		       status, callback_requested, started_at, completed_at, call_duration,
		       ai_responses_count, transcription
		FROM calls WHERE id = $1`, id,
	).Scan(
		&c.ID, &c.PhoneNumber, &c.IssueDescription, &c.UserPhone, &c.ProviderCallID,
		&c.Status, &c.CallbackRequested, &c.StartedAt, &c.CompletedAt, &duration,
		&c.AIResponses, &transcription,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("select call: %w", err)
	}

	if duration != nil {
		c.Duration = *duration
	}
	if err := json.Unmarshal(transcription, &c.Transcription); err != nil {
		return nil, fmt.Errorf("unmarshal transcription: %w", err)
	}
	return &c, nil
}

// Update applies a partial update to the call with the given id.
func (s *Store) Update(ctx context.Context, id string, f store.Fields) error {
	sets := make([]string, 0, 5)
	args := make([]any, 0, 6)
	args = append(args, id)

	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if f.Status != nil {
		add("status", *f.Status)
	}
	if f.ProviderCallID != nil {
		add("provider_call_id", *f.ProviderCallID)
	}
	if f.CallbackRequested != nil {
		add("callback_requested", *f.CallbackRequested)
	}
	if f.CompletedAt != nil {
		add("completed_at", *f.CompletedAt)
	}
	if f.Duration != nil {
		add("call_duration", *f.Duration)
	}
	if len(sets) == 0 {
		return nil
	}

	tag, err := s.pool.Exec(ctx,
		fmt.Sprintf("UPDATE calls SET %s WHERE id = $1", strings.Join(sets, ", ")),
		args...,
	)
	if err != nil {
		return fmt.Errorf("update call: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// AppendTranscription appends one entry in a single statement. The jsonb
// concatenation executes atomically inside the database, so concurrent
// appends to the same call interleave without losing entries.
func (s *Store) AppendTranscription(ctx context.Context, id string, e call.Entry) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE calls SET transcription = transcription || $2::jsonb WHERE id = $1`,
		id, payload,
	)
	if err != nil {
		return fmt.Errorf("append transcription: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// IncrementAIResponses bumps the reply counter in place.
func (s *Store) IncrementAIResponses(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE calls SET ai_responses_count = ai_responses_count + 1 WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("increment ai responses: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func entriesOrEmpty(entries []call.Entry) []call.Entry {
	if entries == nil {
		return []call.Entry{}
	}
	return entries
}

func nullableInt(v int) *int {
	if v == 0 {
		return nil
	}
	return &v
}
