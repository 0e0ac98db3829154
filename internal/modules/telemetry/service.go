package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/samber/lo"

	"tripbench/internal/ai"
	"tripbench/internal/metrics"
	"tripbench/internal/types"
)

const (
	DefaultWindowHours = 24
	MaxWindowHours     = 2160
	RecentLimit        = 120
)

type EventStore interface {
	Append(ctx context.Context, e *Event) error
	ListSince(ctx context.Context, since time.Time, source string) ([]Event, error)
	ListBySession(ctx context.Context, sessionID types.ID) ([]Event, error)
}

type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

type Service struct {
	store    EventStore
	cache    Cache
	cacheTTL time.Duration
	now      func() time.Time
}

// NewService builds the service. cache may be nil.
func NewService(store EventStore, cache Cache, cacheTTL time.Duration) *Service {
	return &Service{store: store, cache: cache, cacheTTL: cacheTTL, now: time.Now}
}

// Record appends e and never fails the caller; write errors are logged and counted.
func (s *Service) Record(ctx context.Context, e Event) {
	if err := s.store.Append(ctx, &e); err != nil {
		metrics.TelemetryWriteFailures.Inc()
		slog.Warn("telemetry write failed", "provider", e.Provider, "model", e.Model, "run_id", e.RunID, "error", err)
	}
}

// Ingest validates and stores an event reported by the product.
func (s *Service) Ingest(ctx context.Context, e Event) (*Event, error) {
	e.Source = strings.TrimSpace(e.Source)
	if e.Source == "" {
		e.Source = SourceCreateTrip
	}
	e.Provider = strings.ToLower(strings.TrimSpace(e.Provider))
	e.Model = strings.TrimSpace(e.Model)
	switch {
	case e.Source != SourceCreateTrip && e.Source != SourceBenchmark:
		return nil, fmt.Errorf("%w: unknown source %q", ErrBadRequest, e.Source)
	case e.Provider == "" || e.Model == "":
		return nil, fmt.Errorf("%w: provider and model are required", ErrBadRequest)
	case e.Status != StatusSuccess && e.Status != StatusFailed:
		return nil, fmt.Errorf("%w: status must be success or failed", ErrBadRequest)
	case e.LatencyMs != nil && (!types.IsFinite(*e.LatencyMs) || *e.LatencyMs < 0):
		return nil, fmt.Errorf("%w: latencyMs must be a non-negative number", ErrBadRequest)
	case e.EstimatedCostUSD != nil && (!types.IsFinite(*e.EstimatedCostUSD) || *e.EstimatedCostUSD < 0):
		return nil, fmt.Errorf("%w: estimatedCostUsd must be a non-negative number", ErrBadRequest)
	}
	e.ID = ""
	e.CreatedAt = s.now().UTC()
	if err := s.store.Append(ctx, &e); err != nil {
		return nil, fmt.Errorf("append telemetry: %w", err)
	}
	return &e, nil
}

func (s *Service) ListBySession(ctx context.Context, sessionID types.ID) ([]Event, error) {
	return s.store.ListBySession(ctx, sessionID)
}

func normalizeQuery(q Query) (Query, error) {
	q.Source = strings.TrimSpace(q.Source)
	if q.Source == "" {
		q.Source = SourceAll
	}
	if q.Source != SourceAll && q.Source != SourceCreateTrip && q.Source != SourceBenchmark {
		return q, fmt.Errorf("%w: source must be all, create_trip or benchmark", ErrBadRequest)
	}
	q.Provider = strings.ToLower(strings.TrimSpace(q.Provider))
	if q.Provider == SourceAll {
		q.Provider = ""
	}
	if q.WindowHours == 0 {
		q.WindowHours = DefaultWindowHours
	}
	if q.WindowHours < 1 || q.WindowHours > MaxWindowHours {
		return q, fmt.Errorf("%w: windowHours must be between 1 and %d", ErrBadRequest, MaxWindowHours)
	}
	return q, nil
}

// Overview aggregates the events of the query window.
func (s *Service) Overview(ctx context.Context, q Query) (*Overview, error) {
	q, err := normalizeQuery(q)
	if err != nil {
		return nil, err
	}
	key := cacheKey(q)
	if cached := s.cached(ctx, key); cached != nil {
		return cached, nil
	}

	now := s.now().UTC()
	rows, err := s.store.ListSince(ctx, now.Add(-time.Duration(q.WindowHours)*time.Hour), q.Source)
	if err != nil {
		return nil, fmt.Errorf("list telemetry: %w", err)
	}
	available := lo.Uniq(lo.Map(rows, func(e Event, _ int) string { return e.Provider }))
	sort.Strings(available)
	if q.Provider != "" {
		rows = lo.Filter(rows, func(e Event, _ int) bool { return e.Provider == q.Provider })
	}

	models := ByModel(rows)
	bucket := BucketMinutesFor(q.WindowHours)
	ov := &Overview{
		Source:        q.Source,
		Provider:      q.Provider,
		WindowHours:   q.WindowHours,
		BucketMinutes: bucket,
		GeneratedAt:   now,
		Summary:       Summarize(rows),
		Series:        Series(rows, bucket),
		Providers:     ByProvider(rows),
		Models:        models,
		Rankings: Rankings{
			Fastest:       Fastest(models, DefaultRankingLimit),
			Cheapest:      Cheapest(models, DefaultRankingLimit),
			CostEfficient: MostCostEfficient(models, DefaultRankingLimit),
		},
		Recent:             recent(rows, RecentLimit),
		AvailableProviders: available,
	}
	s.remember(ctx, key, ov)
	return ov, nil
}

// recent returns up to limit rows, newest first.
func recent(rows []Event, limit int) []Event {
	out := append([]Event(nil), rows...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (s *Service) cached(ctx context.Context, key string) *Overview {
	if s.cache == nil || s.cacheTTL <= 0 {
		return nil
	}
	raw, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		slog.Warn("telemetry cache read failed", "error", err)
		metrics.TelemetryCacheHits.WithLabelValues("error").Inc()
		return nil
	}
	if !ok {
		metrics.TelemetryCacheHits.WithLabelValues("miss").Inc()
		return nil
	}
	var ov Overview
	if err := json.Unmarshal(raw, &ov); err != nil {
		metrics.TelemetryCacheHits.WithLabelValues("error").Inc()
		return nil
	}
	metrics.TelemetryCacheHits.WithLabelValues("hit").Inc()
	return &ov
}

func (s *Service) remember(ctx context.Context, key string, ov *Overview) {
	if s.cache == nil || s.cacheTTL <= 0 {
		return
	}
	raw, err := json.Marshal(ov)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, raw, s.cacheTTL); err != nil {
		slog.Warn("telemetry cache write failed", "error", err)
	}
}

// FromGeneration builds the event describing one generation call.
func FromGeneration(source string, meta ai.Meta, fail *ai.Failure) Event {
	latency := float64(meta.LatencyMs)
	e := Event{
		Source:           source,
		Provider:         meta.Provider,
		Model:            meta.Model,
		ProviderModelID:  meta.ProviderModelID,
		Status:           StatusSuccess,
		LatencyMs:        &latency,
		EstimatedCostUSD: meta.Usage.EstimatedCostUSD,
		PromptTokens:     meta.Usage.PromptTokens,
		CompletionTokens: meta.Usage.CompletionTokens,
		TotalTokens:      meta.Usage.TotalTokens,
		Metadata: map[string]any{
			"attempts": meta.Attempts,
		},
	}
	if meta.HTTPStatus != 0 {
		st := meta.HTTPStatus
		e.HTTPStatus = &st
	}
	if meta.Endpoint != "" {
		e.Metadata["endpoint"] = meta.Endpoint
	}
	if len(meta.Retries) > 0 {
		e.Metadata["retries"] = meta.Retries
	}
	if meta.FinishReason != "" {
		e.Metadata["finishReason"] = meta.FinishReason
	}
	if fail != nil {
		e.Status = StatusFailed
		e.ErrorCode = fail.Code
		e.ErrorMessage = fail.Message
		if fail.HTTPStatus != 0 {
			st := fail.HTTPStatus
			e.HTTPStatus = &st
		}
	}
	return e
}
