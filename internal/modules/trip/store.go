// README: Generated-trip store backed by PostgreSQL; trips keep their benchmark provenance for cleanup.
package trip

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tripbench/internal/types"
)

var ErrNotFound = errors.New("trip not found")

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// Save inserts t with a fresh id and returns it.
func (s *Store) Save(ctx context.Context, t *Trip) (types.ID, error) {
	id := types.ID(uuid.NewString())
	payload, err := json.Marshal(t)
	if err != nil {
		return "", fmt.Errorf("encode trip: %w", err)
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO generated_trips (
			id, session_id, run_id, source_kind, provider, model,
			title, start_date, payload, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		string(id),
		nullID(t.Provenance.SessionID),
		nullID(t.Provenance.RunID),
		t.Provenance.SourceKind,
		t.Provenance.Provider,
		t.Provenance.Model,
		t.Title,
		t.StartDate,
		payload,
		time.Now().UTC(),
	)
	if err != nil {
		return "", err
	}
	t.ID = id
	return id, nil
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Trip, error) {
	var payload []byte
	err := s.db.QueryRow(ctx, `SELECT payload FROM generated_trips WHERE id = $1`, string(id)).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var t Trip
	if err := json.Unmarshal(payload, &t); err != nil {
		return nil, fmt.Errorf("decode trip %s: %w", id, err)
	}
	t.ID = id
	return &t, nil
}

// DeleteBySession removes every trip generated by runs of the session.
func (s *Store) DeleteBySession(ctx context.Context, sessionID types.ID) (int, error) {
	tag, err := s.db.Exec(ctx, `
		DELETE FROM generated_trips
		WHERE session_id = $1 AND source_kind = $2`,
		string(sessionID), SourceBenchmark,
	)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func nullID(id types.ID) *string {
	if id == "" {
		return nil
	}
	s := string(id)
	return &s
}

// MemoryStore keeps trips in process memory. Used by the bench CLI and tests.
type MemoryStore struct {
	mu    sync.Mutex
	trips map[types.ID]Trip
	// FailSave makes Save return this error when set.
	FailSave error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{trips: map[types.ID]Trip{}}
}

func (m *MemoryStore) Save(_ context.Context, t *Trip) (types.ID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailSave != nil {
		return "", m.FailSave
	}
	id := types.ID(uuid.NewString())
	t.ID = id
	m.trips[id] = *t
	return id, nil
}

func (m *MemoryStore) Get(_ context.Context, id types.ID) (*Trip, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.trips[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &t, nil
}

func (m *MemoryStore) DeleteBySession(_ context.Context, sessionID types.ID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, t := range m.trips {
		if t.Provenance.SessionID == sessionID && t.Provenance.SourceKind == SourceBenchmark {
			delete(m.trips, id)
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.trips)
}
