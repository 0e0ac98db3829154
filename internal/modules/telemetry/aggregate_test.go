package telemetry

import (
	"math/rand"
	"reflect"
	"testing"
	"time"
)

func f64(v float64) *float64 { return &v }

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func ev(provider, model, status string, minute int, latency, cost *float64) Event {
	return Event{
		Provider: provider, Model: model, Status: status, Source: SourceBenchmark,
		CreatedAt: base.Add(time.Duration(minute) * time.Minute), LatencyMs: latency, EstimatedCostUSD: cost,
	}
}

func sampleRows() []Event {
	return []Event{
		ev("gemini", "gemini-2.5-pro", StatusSuccess, 0, f64(1000), f64(0.01)),
		ev("gemini", "gemini-2.5-pro", StatusFailed, 5, f64(9000), f64(0.5)),
		ev("gemini", "gemini-2.5-flash", StatusSuccess, 20, f64(400), f64(0.001)),
		ev("openai", "gpt-5", StatusSuccess, 31, f64(2000), f64(0.02)),
		ev("openai", "gpt-5", StatusSuccess, 44, f64(4000), nil),
		ev("openai", "gpt-4o", StatusFailed, 61, nil, nil),
		ev("anthropic", "claude-haiku-4.5", StatusSuccess, 62, f64(-5), f64(0.003)),
	}
}

func TestSummarize(t *testing.T) {
	m := Summarize(sampleRows())
	if m.Total != 7 || m.Success != 5 || m.Failed != 2 {
		t.Fatalf("counts = %+v", m)
	}
	if m.SuccessRate != 71.43 {
		t.Errorf("success rate = %v", m.SuccessRate)
	}
	// Negative and missing latencies are skipped: (1000+9000+400+2000+4000)/5.
	if m.AvgLatencyMs == nil || *m.AvgLatencyMs != 3280 {
		t.Errorf("avg latency = %v", m.AvgLatencyMs)
	}
	if m.TotalCostUSD != 0.534 || m.AvgCostUSD == nil || *m.AvgCostUSD != 0.1068 {
		t.Errorf("cost = %v / %v", m.TotalCostUSD, m.AvgCostUSD)
	}

	empty := Summarize(nil)
	if empty.Total != 0 || empty.SuccessRate != 0 || empty.AvgLatencyMs != nil || empty.AvgCostUSD != nil {
		t.Errorf("empty = %+v", empty)
	}
}

func TestSummarizeIgnoresOrder(t *testing.T) {
	rows := sampleRows()
	want := Summarize(rows)
	r := rand.New(rand.NewSource(7))
	for i := 0; i < 20; i++ {
		r.Shuffle(len(rows), func(a, b int) { rows[a], rows[b] = rows[b], rows[a] })
		if got := Summarize(rows); !reflect.DeepEqual(got, want) {
			t.Fatalf("shuffle %d: %+v != %+v", i, got, want)
		}
	}
}

func TestSeriesBuckets(t *testing.T) {
	rows := sampleRows()
	// Latest row first: Series must not depend on input order.
	rows[0], rows[len(rows)-1] = rows[len(rows)-1], rows[0]

	got := Series(rows, 30)
	wantStarts := []time.Time{base, base.Add(30 * time.Minute), base.Add(60 * time.Minute)}
	if len(got) != len(wantStarts) {
		t.Fatalf("buckets = %d, want %d", len(got), len(wantStarts))
	}
	wantTotals := []int{3, 2, 2}
	for i, b := range got {
		if !b.Start.Equal(wantStarts[i]) || b.Total != wantTotals[i] {
			t.Errorf("bucket %d = %s total %d", i, b.Start, b.Total)
		}
	}
}

func TestBucketStart(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 44, 59, 0, time.UTC)
	if got := BucketStart(at, 15*time.Minute); !got.Equal(time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)) {
		t.Errorf("got %s", got)
	}
	if got := BucketStart(at, 24*time.Hour); !got.Equal(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("got %s", got)
	}
}

func TestByModelSuccessOnly(t *testing.T) {
	models := ByModel(sampleRows())
	var pro *ModelStats
	for i := range models {
		if models[i].Model == "gemini-2.5-pro" {
			pro = &models[i]
		}
	}
	if pro == nil {
		t.Fatal("gemini-2.5-pro missing")
	}
	if *pro.AvgLatencyMs != 5000 || *pro.SuccessAvgLatencyMs != 1000 {
		t.Errorf("latency all=%v success=%v", *pro.AvgLatencyMs, *pro.SuccessAvgLatencyMs)
	}
	if *pro.SuccessAvgCostUSD != 0.01 || *pro.CostPerSecond != 0.01 {
		t.Errorf("cost=%v perSecond=%v", *pro.SuccessAvgCostUSD, *pro.CostPerSecond)
	}

	providers := ByProvider(sampleRows())
	if providers[0].Provider != "gemini" || providers[0].Total != 3 || providers[2].Provider != "anthropic" {
		t.Errorf("providers = %+v", providers)
	}
}

func TestRankings(t *testing.T) {
	models := ByModel(sampleRows())

	fastest := Fastest(models, 5)
	names := func(ms []ModelStats) []string {
		out := make([]string, len(ms))
		for i, m := range ms {
			out[i] = m.Model
		}
		return out
	}
	// gpt-4o has no success; claude has no valid latency.
	if got := names(fastest); !reflect.DeepEqual(got, []string{"gemini-2.5-flash", "gemini-2.5-pro", "gpt-5"}) {
		t.Errorf("fastest = %v", got)
	}
	if got := names(Cheapest(models, 2)); !reflect.DeepEqual(got, []string{"gemini-2.5-flash", "claude-haiku-4.5"}) {
		t.Errorf("cheapest = %v", got)
	}
	if got := names(MostCostEfficient(models, 5)); len(got) != 3 || got[0] != "gemini-2.5-flash" {
		t.Errorf("cost efficient = %v", got)
	}
}

func TestRankingTieBreaks(t *testing.T) {
	models := []ModelStats{
		{Model: "low-volume", Metrics: Metrics{Total: 2, Success: 2, SuccessRate: 100}, SuccessAvgLatencyMs: f64(100)},
		{Model: "flaky", Metrics: Metrics{Total: 10, Success: 5, SuccessRate: 50}, SuccessAvgLatencyMs: f64(100)},
		{Model: "high-volume", Metrics: Metrics{Total: 9, Success: 9, SuccessRate: 100}, SuccessAvgLatencyMs: f64(100)},
	}
	got := Fastest(models, 0)
	if got[0].Model != "high-volume" || got[1].Model != "low-volume" || got[2].Model != "flaky" {
		t.Errorf("order = %s %s %s", got[0].Model, got[1].Model, got[2].Model)
	}
}

func TestBucketMinutesFor(t *testing.T) {
	tests := []struct{ hours, want int }{{1, 15}, {6, 15}, {7, 60}, {48, 60}, {72, 360}, {336, 360}, {337, 1440}, {2160, 1440}}
	for _, tt := range tests {
		if got := BucketMinutesFor(tt.hours); got != tt.want {
			t.Errorf("BucketMinutesFor(%d) = %d, want %d", tt.hours, got, tt.want)
		}
	}
}
