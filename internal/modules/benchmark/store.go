// README: Benchmark session/run store backed by PostgreSQL. Status writes are guarded by the expected status.
package benchmark

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tripbench/internal/ai"
	"tripbench/internal/modules/trip"
	"tripbench/internal/types"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

const sessionColumns = `id, name, share_token, flow, scenario, created_by, created_at, updated_at, deleted_at`

func (s *Store) CreateSession(ctx context.Context, sess *Session) error {
	scenario, err := json.Marshal(sess.Scenario)
	if err != nil {
		return fmt.Errorf("encode scenario: %w", err)
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO benchmark_sessions (`+sessionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULL)`,
		string(sess.ID), sess.Name, sess.ShareToken, string(sess.Flow), scenario,
		sess.CreatedBy, sess.CreatedAt, sess.UpdatedAt,
	)
	return err
}

func (s *Store) GetSession(ctx context.Context, id types.ID) (*Session, error) {
	row := s.db.QueryRow(ctx, `SELECT `+sessionColumns+` FROM benchmark_sessions
		WHERE id = $1 AND deleted_at IS NULL`, string(id))
	return scanSession(row)
}

func (s *Store) GetSessionByShareToken(ctx context.Context, token string) (*Session, error) {
	row := s.db.QueryRow(ctx, `SELECT `+sessionColumns+` FROM benchmark_sessions
		WHERE share_token = $1 AND deleted_at IS NULL`, token)
	return scanSession(row)
}

func (s *Store) ListSessions(ctx context.Context, limit int) ([]Session, error) {
	rows, err := s.db.Query(ctx, `SELECT `+sessionColumns+` FROM benchmark_sessions
		WHERE deleted_at IS NULL ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *sess)
	}
	return out, rows.Err()
}

func (s *Store) SoftDeleteSession(ctx context.Context, id types.ID, at time.Time) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE benchmark_sessions SET deleted_at = $2, updated_at = $2
		WHERE id = $1 AND deleted_at IS NULL`, string(id), at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func scanSession(row pgx.Row) (*Session, error) {
	var sess Session
	var scenario []byte
	var deletedAt sql.NullTime
	err := row.Scan(&sess.ID, &sess.Name, &sess.ShareToken, &sess.Flow, &scenario,
		&sess.CreatedBy, &sess.CreatedAt, &sess.UpdatedAt, &deletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(scenario, &sess.Scenario); err != nil {
		return nil, fmt.Errorf("decode scenario of %s: %w", sess.ID, err)
	}
	sess.DeletedAt = toTimePtr(deletedAt)
	return &sess, nil
}

const runColumns = `id, session_id, provider, model, label, run_index, status,
	latency_ms, schema_valid, validation_checks, validation_errors, validation_warnings,
	usage, request_snapshot, raw_output, normalized_trip, trip_id, error_code, error_message,
	rating, created_at, started_at, finished_at`

// InsertRuns writes a whole batch in one transaction.
func (s *Store) InsertRuns(ctx context.Context, runs []*Run) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, r := range runs {
		snapshot, err := json.Marshal(r.Request)
		if err != nil {
			return fmt.Errorf("encode request snapshot: %w", err)
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO benchmark_runs (
				id, session_id, provider, model, label, run_index, status, request_snapshot, created_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			string(r.ID), string(r.SessionID), r.Provider, r.Model, r.Label, r.RunIndex,
			string(r.Status), snapshot, r.CreatedAt,
		)
		if err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (s *Store) MaxRunIndex(ctx context.Context, sessionID types.ID, provider, model string) (int, error) {
	var n int
	err := s.db.QueryRow(ctx, `
		SELECT COALESCE(MAX(run_index), 0) FROM benchmark_runs
		WHERE session_id = $1 AND provider = $2 AND model = $3`,
		string(sessionID), provider, model,
	).Scan(&n)
	return n, err
}

func (s *Store) GetRun(ctx context.Context, id types.ID) (*Run, error) {
	row := s.db.QueryRow(ctx, `SELECT `+runColumns+` FROM benchmark_runs WHERE id = $1`, string(id))
	return scanRun(row)
}

func (s *Store) ListRuns(ctx context.Context, sessionID types.ID) ([]Run, error) {
	rows, err := s.db.Query(ctx, `SELECT `+runColumns+` FROM benchmark_runs
		WHERE session_id = $1 ORDER BY provider, model, run_index`, string(sessionID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func (s *Store) RunStatus(ctx context.Context, id types.ID) (Status, error) {
	var st Status
	err := s.db.QueryRow(ctx, `SELECT status FROM benchmark_runs WHERE id = $1`, string(id)).Scan(&st)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	return st, err
}

func (s *Store) MarkRunning(ctx context.Context, id types.ID, at time.Time) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE benchmark_runs SET status = 'running', started_at = $2
		WHERE id = $1 AND status = 'queued'`, string(id), at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// FinishRun applies a terminal update only while the run is still in the
// expected status. A false result means someone else finished it first.
func (s *Store) FinishRun(ctx context.Context, id types.ID, expected Status, u runUpdate) (bool, error) {
	status, message := u.Outcome.persisted()
	if !CanTransition(expected, status) {
		return false, fmt.Errorf("%w: %s -> %s", ErrInvalidState, expected, status)
	}
	checks, err := marshalNullable(u.ValidationChecks)
	if err != nil {
		return false, err
	}
	errs, err := marshalNullable(u.ValidationErrors)
	if err != nil {
		return false, err
	}
	warnings, err := marshalNullable(u.ValidationWarnings)
	if err != nil {
		return false, err
	}
	usage, err := marshalNullable(u.Usage)
	if err != nil {
		return false, err
	}
	normalized, err := marshalNullable(u.NormalizedTrip)
	if err != nil {
		return false, err
	}
	tag, err := s.db.Exec(ctx, `
		UPDATE benchmark_runs
		SET status = $3,
			latency_ms = $4,
			schema_valid = $5,
			validation_checks = $6,
			validation_errors = $7,
			validation_warnings = $8,
			usage = $9,
			raw_output = $10,
			normalized_trip = $11,
			trip_id = $12,
			error_code = $13,
			error_message = $14,
			finished_at = $15
		WHERE id = $1 AND status = $2`,
		string(id), string(expected), string(status),
		u.LatencyMs, u.SchemaValid, checks, errs, warnings, usage,
		nullString(u.RawOutput), normalized, nullString(string(u.TripID)),
		nullString(u.ErrorCode), nullString(message), u.FinishedAt,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// CancelActive fails every queued or running run matching the filter and
// returns their ids. An empty runID cancels the whole session.
func (s *Store) CancelActive(ctx context.Context, sessionID, runID types.ID, at time.Time) ([]types.ID, error) {
	rows, err := s.db.Query(ctx, `
		UPDATE benchmark_runs
		SET status = 'failed', error_message = $3, finished_at = $4
		WHERE session_id = $1
		  AND ($2 = '' OR id = $2)
		  AND status IN ('queued', 'running')
		RETURNING id`,
		string(sessionID), string(runID), CancelledMessage, at,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []types.ID
	for rows.Next() {
		var id types.ID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *Store) SetRating(ctx context.Context, id types.ID, rating *Rating) (bool, error) {
	var v *string
	if rating != nil {
		r := string(*rating)
		v = &r
	}
	tag, err := s.db.Exec(ctx, `
		UPDATE benchmark_runs SET rating = $2
		WHERE id = $1 AND status IN ('completed', 'failed')`, string(id), v)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) DeleteRuns(ctx context.Context, sessionID types.ID) (int, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM benchmark_runs WHERE session_id = $1`, string(sessionID))
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func scanRun(row pgx.Row) (*Run, error) {
	var r Run
	var latency sql.NullInt64
	var schemaValid sql.NullBool
	var checks, errs, warnings, usage, snapshot, normalized []byte
	var rawOutput, tripID, errorCode, errorMessage, rating sql.NullString
	var startedAt, finishedAt sql.NullTime

	err := row.Scan(
		&r.ID, &r.SessionID, &r.Provider, &r.Model, &r.Label, &r.RunIndex, &r.Status,
		&latency, &schemaValid, &checks, &errs, &warnings,
		&usage, &snapshot, &rawOutput, &normalized, &tripID, &errorCode, &errorMessage,
		&rating, &r.CreatedAt, &startedAt, &finishedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if latency.Valid {
		r.LatencyMs = &latency.Int64
	}
	if schemaValid.Valid {
		r.SchemaValid = &schemaValid.Bool
	}
	if rating.Valid {
		v := Rating(rating.String)
		r.Rating = &v
	}
	r.RawOutput = rawOutput.String
	r.TripID = types.ID(tripID.String)
	r.ErrorCode = errorCode.String
	r.ErrorMessage = errorMessage.String
	r.StartedAt = toTimePtr(startedAt)
	r.FinishedAt = toTimePtr(finishedAt)

	decode := []struct {
		raw []byte
		dst any
	}{
		{checks, &r.ValidationChecks},
		{errs, &r.ValidationErrors},
		{warnings, &r.ValidationWarnings},
		{snapshot, &r.Request},
	}
	for _, d := range decode {
		if len(d.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(d.raw, d.dst); err != nil {
			return nil, fmt.Errorf("decode run %s: %w", r.ID, err)
		}
	}
	if len(usage) > 0 && string(usage) != "null" {
		var u ai.Usage
		if err := json.Unmarshal(usage, &u); err != nil {
			return nil, fmt.Errorf("decode run %s usage: %w", r.ID, err)
		}
		r.Usage = &u
	}
	if len(normalized) > 0 && string(normalized) != "null" {
		var t trip.Trip
		if err := json.Unmarshal(normalized, &t); err != nil {
			return nil, fmt.Errorf("decode run %s trip: %w", r.ID, err)
		}
		r.NormalizedTrip = &t
	}
	return &r, nil
}

func toTimePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// marshalNullable encodes v as JSON, or SQL NULL when v is a nil value.
func marshalNullable(v any) ([]byte, error) {
	switch x := v.(type) {
	case map[string]bool:
		if x == nil {
			return nil, nil
		}
	case []string:
		if x == nil {
			return nil, nil
		}
	case *ai.Usage:
		if x == nil {
			return nil, nil
		}
	case *trip.Trip:
		if x == nil {
			return nil, nil
		}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode run field: %w", err)
	}
	return b, nil
}
