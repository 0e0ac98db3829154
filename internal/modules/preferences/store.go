package preferences

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) Get(ctx context.Context, uid string) (*Preferences, error) {
	var payload []byte
	var p Preferences
	err := s.db.QueryRow(ctx, `SELECT payload, updated_at FROM benchmark_preferences WHERE uid = $1`, uid).
		Scan(&payload, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	updated := p.UpdatedAt
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("decode preferences of %s: %w", uid, err)
	}
	p.UpdatedAt = updated
	return &p, nil
}

func (s *Store) Put(ctx context.Context, uid string, p *Preferences) error {
	payload, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode preferences: %w", err)
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO benchmark_preferences (uid, payload, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (uid) DO UPDATE SET payload = EXCLUDED.payload, updated_at = EXCLUDED.updated_at`,
		uid, payload, p.UpdatedAt,
	)
	return err
}

type MemoryStore struct {
	mu   sync.Mutex
	rows map[string]Preferences
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rows: map[string]Preferences{}}
}

func (m *MemoryStore) Get(_ context.Context, uid string) (*Preferences, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.rows[uid]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (m *MemoryStore) Put(_ context.Context, uid string, p *Preferences) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[uid] = *p
	return nil
}
