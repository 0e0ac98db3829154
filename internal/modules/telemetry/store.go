package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tripbench/internal/types"
)

// Store persists events in ai_telemetry_events. It only inserts and reads.
type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

const eventColumns = `id, created_at, source, provider, model, provider_model_id, status,
	latency_ms, http_status, error_code, error_message, estimated_cost_usd,
	prompt_tokens, completion_tokens, total_tokens, session_id, run_id, metadata`

func (s *Store) Append(ctx context.Context, e *Event) error {
	if e.ID == "" {
		e.ID = types.ID(uuid.NewString())
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	meta, err := json.Marshal(e.Metadata)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	_, err = s.db.Exec(ctx, `INSERT INTO ai_telemetry_events (`+eventColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
		string(e.ID), e.CreatedAt, e.Source, e.Provider, e.Model, e.ProviderModelID, e.Status,
		e.LatencyMs, e.HTTPStatus, e.ErrorCode, e.ErrorMessage, e.EstimatedCostUSD,
		e.PromptTokens, e.CompletionTokens, e.TotalTokens, nullID(e.SessionID), nullID(e.RunID), meta,
	)
	return err
}

// ListSince returns events newer than since, oldest first. An empty or "all"
// source matches every source.
func (s *Store) ListSince(ctx context.Context, since time.Time, source string) ([]Event, error) {
	if source == "" || source == SourceAll {
		return s.query(ctx, `SELECT `+eventColumns+` FROM ai_telemetry_events
			WHERE created_at >= $1 ORDER BY created_at ASC`, since)
	}
	return s.query(ctx, `SELECT `+eventColumns+` FROM ai_telemetry_events
		WHERE created_at >= $1 AND source = $2 ORDER BY created_at ASC`, since, source)
}

func (s *Store) ListBySession(ctx context.Context, sessionID types.ID) ([]Event, error) {
	return s.query(ctx, `SELECT `+eventColumns+` FROM ai_telemetry_events
		WHERE session_id = $1 ORDER BY created_at ASC`, string(sessionID))
}

func (s *Store) query(ctx context.Context, sql string, args ...any) ([]Event, error) {
	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func scanEvent(row pgx.Row) (Event, error) {
	var (
		e                   Event
		id                  string
		sessionID, runID    *string
		providerModelID     *string
		errorCode, errorMsg *string
		meta                []byte
	)
	err := row.Scan(&id, &e.CreatedAt, &e.Source, &e.Provider, &e.Model, &providerModelID, &e.Status,
		&e.LatencyMs, &e.HTTPStatus, &errorCode, &errorMsg, &e.EstimatedCostUSD,
		&e.PromptTokens, &e.CompletionTokens, &e.TotalTokens, &sessionID, &runID, &meta)
	if err != nil {
		return Event{}, err
	}
	e.ID = types.ID(id)
	e.ProviderModelID = derefString(providerModelID)
	e.ErrorCode = derefString(errorCode)
	e.ErrorMessage = derefString(errorMsg)
	e.SessionID = types.ID(derefString(sessionID))
	e.RunID = types.ID(derefString(runID))
	if len(meta) > 0 {
		_ = json.Unmarshal(meta, &e.Metadata)
	}
	return e, nil
}

func nullID(id types.ID) *string {
	if id == "" {
		return nil
	}
	s := string(id)
	return &s
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// MemoryStore is an in-process event log for the bench CLI and tests.
type MemoryStore struct {
	mu     sync.Mutex
	events []Event
	// FailAppend makes Append return this error when set.
	FailAppend error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Append(_ context.Context, e *Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailAppend != nil {
		return m.FailAppend
	}
	if e.ID == "" {
		e.ID = types.ID(uuid.NewString())
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	m.events = append(m.events, *e)
	return nil
}

func (m *MemoryStore) ListSince(_ context.Context, since time.Time, source string) ([]Event, error) {
	return m.filter(func(e Event) bool {
		return !e.CreatedAt.Before(since) && (source == "" || source == SourceAll || e.Source == source)
	}), nil
}

func (m *MemoryStore) ListBySession(_ context.Context, sessionID types.ID) ([]Event, error) {
	return m.filter(func(e Event) bool { return e.SessionID == sessionID }), nil
}

func (m *MemoryStore) filter(keep func(Event) bool) []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Event
	for _, e := range m.events {
		if keep(e) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}
