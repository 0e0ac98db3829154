package telemetry

import (
	"sort"
	"time"

	"github.com/samber/lo"

	"tripbench/internal/types"
)

// DefaultRankingLimit is the length of each ranking in the overview.
const DefaultRankingLimit = 5

type accumulator struct {
	total, success       int
	latencySum           float64
	latencyN             int
	costSum              float64
	costN                int
	okLatencySum, okCost float64
	okLatencyN, okCostN  int
}

func (a *accumulator) add(e *Event) {
	a.total++
	ok := e.succeeded()
	if ok {
		a.success++
	}
	if e.LatencyMs != nil && types.IsFinite(*e.LatencyMs) && *e.LatencyMs >= 0 {
		a.latencySum += *e.LatencyMs
		a.latencyN++
		if ok {
			a.okLatencySum += *e.LatencyMs
			a.okLatencyN++
		}
	}
	if e.EstimatedCostUSD != nil && types.IsFinite(*e.EstimatedCostUSD) && *e.EstimatedCostUSD >= 0 {
		a.costSum += *e.EstimatedCostUSD
		a.costN++
		if ok {
			a.okCost += *e.EstimatedCostUSD
			a.okCostN++
		}
	}
}

func (a *accumulator) metrics() Metrics {
	m := Metrics{Total: a.total, Success: a.success, Failed: a.total - a.success}
	if a.total > 0 {
		m.SuccessRate = types.Round(float64(a.success)*100/float64(a.total), 2)
	}
	m.AvgLatencyMs = average(a.latencySum, a.latencyN, 2)
	m.TotalCostUSD = types.RoundUSD(a.costSum)
	m.AvgCostUSD = average(a.costSum, a.costN, 6)
	return m
}

func average(sum float64, n, decimals int) *float64 {
	if n == 0 {
		return nil
	}
	v := types.Round(sum/float64(n), decimals)
	return &v
}

func accumulate(rows []Event) *accumulator {
	var a accumulator
	for i := range rows {
		a.add(&rows[i])
	}
	return &a
}

// Summarize is order independent.
func Summarize(rows []Event) Metrics {
	return accumulate(rows).metrics()
}

// BucketStart floors t to a multiple of width since the Unix epoch.
func BucketStart(t time.Time, width time.Duration) time.Time {
	ms := width.Milliseconds()
	if ms <= 0 {
		return t.UTC()
	}
	unix := t.UnixMilli()
	start := unix / ms * ms
	if unix < 0 && unix%ms != 0 {
		start -= ms
	}
	return time.UnixMilli(start).UTC()
}

// Series groups rows into fixed-width buckets, ascending by bucket start.
func Series(rows []Event, bucketMinutes int) []Bucket {
	if bucketMinutes <= 0 {
		bucketMinutes = 60
	}
	width := time.Duration(bucketMinutes) * time.Minute
	groups := lo.GroupBy(rows, func(e Event) int64 { return BucketStart(e.CreatedAt, width).UnixMilli() })
	starts := lo.Keys(groups)
	sort.Slice(starts, func(i, j int) bool { return starts[i] < starts[j] })

	out := make([]Bucket, 0, len(starts))
	for _, s := range starts {
		out = append(out, Bucket{Start: time.UnixMilli(s).UTC(), Metrics: Summarize(groups[s])})
	}
	return out
}

// ByProvider is ordered by volume, then name.
func ByProvider(rows []Event) []ProviderStats {
	groups := lo.GroupBy(rows, func(e Event) string { return e.Provider })
	out := make([]ProviderStats, 0, len(groups))
	for name, g := range groups {
		out = append(out, ProviderStats{Provider: name, Metrics: Summarize(g)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Total != out[j].Total {
			return out[i].Total > out[j].Total
		}
		return out[i].Provider < out[j].Provider
	})
	return out
}

type modelKey struct{ provider, model string }

// ByModel groups by (provider, model).
func ByModel(rows []Event) []ModelStats {
	groups := lo.GroupBy(rows, func(e Event) modelKey { return modelKey{e.Provider, e.Model} })
	out := make([]ModelStats, 0, len(groups))
	for key, g := range groups {
		a := accumulate(g)
		ms := ModelStats{
			Provider:            key.provider,
			Model:               key.model,
			Metrics:             a.metrics(),
			SuccessAvgLatencyMs: average(a.okLatencySum, a.okLatencyN, 2),
			SuccessAvgCostUSD:   average(a.okCost, a.okCostN, 6),
		}
		if ms.SuccessAvgLatencyMs != nil && ms.SuccessAvgCostUSD != nil && *ms.SuccessAvgLatencyMs > 0 {
			v := types.RoundUSD(*ms.SuccessAvgCostUSD / (*ms.SuccessAvgLatencyMs / 1000))
			ms.CostPerSecond = &v
		}
		out = append(out, ms)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Total != out[j].Total {
			return out[i].Total > out[j].Total
		}
		if out[i].Provider != out[j].Provider {
			return out[i].Provider < out[j].Provider
		}
		return out[i].Model < out[j].Model
	})
	return out
}

// Fastest ranks by success-only average latency.
func Fastest(models []ModelStats, limit int) []ModelStats {
	return rank(models, limit, func(m ModelStats) *float64 { return m.SuccessAvgLatencyMs })
}

// Cheapest ranks by success-only average cost.
func Cheapest(models []ModelStats, limit int) []ModelStats {
	return rank(models, limit, func(m ModelStats) *float64 { return m.SuccessAvgCostUSD })
}

// MostCostEfficient ranks by cost per second of generation.
func MostCostEfficient(models []ModelStats, limit int) []ModelStats {
	return rank(models, limit, func(m ModelStats) *float64 { return m.CostPerSecond })
}

// rank keeps models with a success and a defined metric, sorts ascending with
// ties broken by success rate desc then volume desc, and truncates to limit.
func rank(models []ModelStats, limit int, metric func(ModelStats) *float64) []ModelStats {
	out := lo.Filter(models, func(m ModelStats, _ int) bool {
		v := metric(m)
		return m.Success > 0 && v != nil && types.IsFinite(*v)
	})
	sort.SliceStable(out, func(i, j int) bool {
		a, b := *metric(out[i]), *metric(out[j])
		if a != b {
			return a < b
		}
		if out[i].SuccessRate != out[j].SuccessRate {
			return out[i].SuccessRate > out[j].SuccessRate
		}
		return out[i].Total > out[j].Total
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// BucketMinutesFor picks the series resolution for a window.
func BucketMinutesFor(windowHours int) int {
	switch {
	case windowHours <= 6:
		return 15
	case windowHours <= 48:
		return 60
	case windowHours <= 14*24:
		return 360
	default:
		return 1440
	}
}
