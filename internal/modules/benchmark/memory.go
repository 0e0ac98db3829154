package benchmark

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"tripbench/internal/types"
)

// MemoryStore keeps sessions and runs in process memory. The bench CLI uses
// it when no database is configured.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[types.ID]Session
	runs     map[types.ID]Run
	// FailFinish makes FinishRun return this error when set.
	FailFinish error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: map[types.ID]Session{}, runs: map[types.ID]Run{}}
}

func (m *MemoryStore) CreateSession(_ context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[s.ID]; ok {
		return fmt.Errorf("%w: session %s exists", ErrConflict, s.ID)
	}
	for _, other := range m.sessions {
		if other.ShareToken == s.ShareToken {
			return fmt.Errorf("%w: share token in use", ErrConflict)
		}
	}
	m.sessions[s.ID] = *s
	return nil
}

func (m *MemoryStore) GetSession(_ context.Context, id types.ID) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok || s.DeletedAt != nil {
		return nil, ErrNotFound
	}
	return &s, nil
}

func (m *MemoryStore) GetSessionByShareToken(_ context.Context, token string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		if s.ShareToken == token && s.DeletedAt == nil {
			return &s, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) ListSessions(_ context.Context, limit int) ([]Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		if s.DeletedAt == nil {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) SoftDeleteSession(_ context.Context, id types.ID, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok || s.DeletedAt != nil {
		return false, nil
	}
	s.DeletedAt = &at
	s.UpdatedAt = at
	m.sessions[id] = s
	return true, nil
}

func (m *MemoryStore) InsertRuns(_ context.Context, runs []*Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range runs {
		for _, existing := range m.runs {
			if existing.SessionID == r.SessionID && existing.Provider == r.Provider &&
				existing.Model == r.Model && existing.RunIndex == r.RunIndex {
				return fmt.Errorf("%w: run index %d taken for %s/%s", ErrConflict, r.RunIndex, r.Provider, r.Model)
			}
		}
	}
	for _, r := range runs {
		m.runs[r.ID] = *r
	}
	return nil
}

func (m *MemoryStore) MaxRunIndex(_ context.Context, sessionID types.ID, provider, model string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, r := range m.runs {
		if r.SessionID == sessionID && r.Provider == provider && r.Model == model && r.RunIndex > n {
			n = r.RunIndex
		}
	}
	return n, nil
}

func (m *MemoryStore) GetRun(_ context.Context, id types.ID) (*Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &r, nil
}

func (m *MemoryStore) ListRuns(_ context.Context, sessionID types.ID) ([]Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Run
	for _, r := range m.runs {
		if r.SessionID == sessionID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Provider != b.Provider {
			return a.Provider < b.Provider
		}
		if a.Model != b.Model {
			return a.Model < b.Model
		}
		return a.RunIndex < b.RunIndex
	})
	return out, nil
}

func (m *MemoryStore) RunStatus(_ context.Context, id types.ID) (Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runs[id]
	if !ok {
		return "", ErrNotFound
	}
	return r.Status, nil
}

func (m *MemoryStore) MarkRunning(_ context.Context, id types.ID, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runs[id]
	if !ok || r.Status != StatusQueued {
		return false, nil
	}
	r.Status = StatusRunning
	r.StartedAt = &at
	m.runs[id] = r
	return true, nil
}

func (m *MemoryStore) FinishRun(_ context.Context, id types.ID, expected Status, u runUpdate) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailFinish != nil {
		return false, m.FailFinish
	}
	status, message := u.Outcome.persisted()
	if !CanTransition(expected, status) {
		return false, fmt.Errorf("%w: %s -> %s", ErrInvalidState, expected, status)
	}
	r, ok := m.runs[id]
	if !ok || r.Status != expected {
		return false, nil
	}
	r.Status = status
	r.ErrorMessage = message
	r.ErrorCode = u.ErrorCode
	r.LatencyMs = u.LatencyMs
	r.SchemaValid = u.SchemaValid
	r.ValidationChecks = u.ValidationChecks
	r.ValidationErrors = u.ValidationErrors
	r.ValidationWarnings = u.ValidationWarnings
	r.Usage = u.Usage
	r.RawOutput = u.RawOutput
	r.NormalizedTrip = u.NormalizedTrip
	r.TripID = u.TripID
	at := u.FinishedAt
	r.FinishedAt = &at
	m.runs[id] = r
	return true, nil
}

func (m *MemoryStore) CancelActive(_ context.Context, sessionID, runID types.ID, at time.Time) ([]types.ID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []types.ID
	for id, r := range m.runs {
		if r.SessionID != sessionID || (runID != "" && id != runID) || !r.Status.Active() {
			continue
		}
		r.Status = StatusFailed
		r.ErrorMessage = CancelledMessage
		finished := at
		r.FinishedAt = &finished
		m.runs[id] = r
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (m *MemoryStore) SetRating(_ context.Context, id types.ID, rating *Rating) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runs[id]
	if !ok || !r.Status.Terminal() {
		return false, nil
	}
	r.Rating = rating
	m.runs[id] = r
	return true, nil
}

func (m *MemoryStore) DeleteRuns(_ context.Context, sessionID types.ID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, r := range m.runs {
		if r.SessionID == sessionID {
			delete(m.runs, id)
			n++
		}
	}
	return n, nil
}
