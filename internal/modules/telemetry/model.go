// README: AI telemetry events (one immutable row per generation attempt) and their read model.
package telemetry

import (
	"errors"
	"time"

	"tripbench/internal/types"
)

var ErrBadRequest = errors.New("bad request")

const (
	SourceCreateTrip = "create_trip"
	SourceBenchmark  = "benchmark"
	SourceAll        = "all"

	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// Event is append-only. Optional numeric fields are nil when the provider did not report them.
type Event struct {
	ID               types.ID       `json:"id"`
	CreatedAt        time.Time      `json:"createdAt"`
	Source           string         `json:"source"`
	Provider         string         `json:"provider"`
	Model            string         `json:"model"`
	ProviderModelID  string         `json:"providerModelId,omitempty"`
	Status           string         `json:"status"`
	LatencyMs        *float64       `json:"latencyMs,omitempty"`
	HTTPStatus       *int           `json:"httpStatus,omitempty"`
	ErrorCode        string         `json:"errorCode,omitempty"`
	ErrorMessage     string         `json:"errorMessage,omitempty"`
	EstimatedCostUSD *float64       `json:"estimatedCostUsd,omitempty"`
	PromptTokens     *int           `json:"promptTokens,omitempty"`
	CompletionTokens *int           `json:"completionTokens,omitempty"`
	TotalTokens      *int           `json:"totalTokens,omitempty"`
	SessionID        types.ID       `json:"sessionId,omitempty"`
	RunID            types.ID       `json:"runId,omitempty"`
	Metadata         map[string]any `json:"metadata,omitempty"`
}

func (e *Event) succeeded() bool { return e.Status == StatusSuccess }

// Metrics is the shape shared by the summary, each bucket and each group.
type Metrics struct {
	Total        int      `json:"total"`
	Success      int      `json:"success"`
	Failed       int      `json:"failed"`
	SuccessRate  float64  `json:"successRate"`
	AvgLatencyMs *float64 `json:"avgLatencyMs"`
	TotalCostUSD float64  `json:"totalCostUsd"`
	AvgCostUSD   *float64 `json:"avgCostUsd"`
}

type Bucket struct {
	Start time.Time `json:"start"`
	Metrics
}

type ProviderStats struct {
	Provider string `json:"provider"`
	Metrics
}

// ModelStats adds success-only performance figures so failed attempts do not
// skew latency and cost comparisons.
type ModelStats struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
	Metrics
	SuccessAvgLatencyMs *float64 `json:"successAvgLatencyMs"`
	SuccessAvgCostUSD   *float64 `json:"successAvgCostUsd"`
	CostPerSecond       *float64 `json:"costPerSecond"`
}

type Rankings struct {
	Fastest       []ModelStats `json:"fastest"`
	Cheapest      []ModelStats `json:"cheapest"`
	CostEfficient []ModelStats `json:"costEfficient"`
}

type Query struct {
	Source      string `form:"source"`
	Provider    string `form:"provider"`
	WindowHours int    `form:"windowHours"`
}

type Overview struct {
	Source             string          `json:"source"`
	Provider           string          `json:"provider,omitempty"`
	WindowHours        int             `json:"windowHours"`
	BucketMinutes      int             `json:"bucketMinutes"`
	GeneratedAt        time.Time       `json:"generatedAt"`
	Summary            Metrics         `json:"summary"`
	Series             []Bucket        `json:"series"`
	Providers          []ProviderStats `json:"providers"`
	Models             []ModelStats    `json:"models"`
	Rankings           Rankings        `json:"rankings"`
	Recent             []Event         `json:"recent"`
	AvailableProviders []string        `json:"availableProviders"`
}
