package telemetry

import (
	"context"
	"testing"
	"time"

	"tripbench/internal/dbtest"
)

func TestStoreAppendAndList(t *testing.T) {
	store := NewStore(dbtest.Pool(t, "ai_telemetry_events"))
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Millisecond)
	status := 502
	events := []Event{
		{CreatedAt: now.Add(-2 * time.Hour), Source: SourceBenchmark, Provider: "gemini", Model: "gemini-2.5-pro",
			Status: StatusSuccess, LatencyMs: f64(1200), EstimatedCostUSD: f64(0.004), SessionID: "s1", RunID: "r1",
			Metadata: map[string]any{"attempts": 1}},
		{CreatedAt: now.Add(-time.Hour), Source: SourceCreateTrip, Provider: "openai", Model: "gpt-5",
			Status: StatusFailed, HTTPStatus: &status, ErrorCode: "OPENAI_REQUEST_FAILED"},
		{CreatedAt: now.Add(-72 * time.Hour), Source: SourceBenchmark, Provider: "xai", Model: "grok-4", Status: StatusSuccess},
	}
	for i := range events {
		if err := store.Append(ctx, &events[i]); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	all, err := store.ListSince(ctx, now.Add(-24*time.Hour), SourceAll)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 || all[0].Provider != "gemini" || all[1].HTTPStatus == nil || *all[1].HTTPStatus != 502 {
		t.Fatalf("all = %+v", all)
	}
	if all[0].SessionID != "s1" || *all[0].LatencyMs != 1200 || all[0].Metadata["attempts"] != 1.0 {
		t.Errorf("row = %+v", all[0])
	}

	bench, _ := store.ListSince(ctx, now.Add(-24*time.Hour), SourceBenchmark)
	if len(bench) != 1 {
		t.Errorf("benchmark rows = %d", len(bench))
	}
	bySession, _ := store.ListBySession(ctx, "s1")
	if len(bySession) != 1 || bySession[0].RunID != "r1" {
		t.Errorf("by session = %+v", bySession)
	}
}
