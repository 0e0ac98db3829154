// README: Benchmark sessions, runs and the run status machine.
package benchmark

import (
	"strings"
	"time"

	"tripbench/internal/ai"
	"tripbench/internal/modules/trip"
	"tripbench/internal/types"
)

type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Persisted error messages with a fixed meaning.
const (
	CancelledMessage       = "Cancelled by user."
	ExecutionFailedMessage = "Benchmark execution failed unexpectedly."
)

// AllowedTransitions is the run state flow. queued -> failed only happens on
// cancellation or the failure sweep.
var AllowedTransitions = map[Status][]Status{
	StatusQueued:  {StatusRunning, StatusFailed},
	StatusRunning: {StatusCompleted, StatusFailed},
}

func CanTransition(from, to Status) bool {
	for _, s := range AllowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func (s Status) Terminal() bool { return s == StatusCompleted || s == StatusFailed }

func (s Status) Active() bool { return s == StatusQueued || s == StatusRunning }

type Flow string

const (
	FlowClassic  Flow = "classic"
	FlowWizard   Flow = "wizard"
	FlowSurprise Flow = "surprise"
)

func (f Flow) Valid() bool {
	return f == FlowClassic || f == FlowWizard || f == FlowSurprise
}

type Rating string

const (
	RatingGood   Rating = "good"
	RatingMedium Rating = "medium"
	RatingBad    Rating = "bad"
)

func (r Rating) Valid() bool {
	return r == RatingGood || r == RatingMedium || r == RatingBad
}

type Scenario struct {
	Prompt    string         `json:"prompt" yaml:"prompt"`
	StartDate string         `json:"startDate,omitempty" yaml:"startDate"`
	RoundTrip bool           `json:"roundTrip,omitempty" yaml:"roundTrip"`
	Input     map[string]any `json:"input,omitempty" yaml:"input"`
}

type Session struct {
	ID         types.ID   `json:"id"`
	Name       string     `json:"name"`
	ShareToken string     `json:"shareToken"`
	Flow       Flow       `json:"flow"`
	Scenario   Scenario   `json:"scenario"`
	CreatedBy  string     `json:"createdBy,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
	DeletedAt  *time.Time `json:"deletedAt,omitempty"`
}

// Target is expanded into runs and never stored on its own.
type Target struct {
	Provider string `json:"provider" yaml:"provider"`
	Model    string `json:"model" yaml:"model"`
	Label    string `json:"label,omitempty" yaml:"label"`
}

type Run struct {
	ID                 types.ID        `json:"id"`
	SessionID          types.ID        `json:"sessionId"`
	Provider           string          `json:"provider"`
	Model              string          `json:"model"`
	Label              string          `json:"label,omitempty"`
	RunIndex           int             `json:"runIndex"`
	Status             Status          `json:"status"`
	LatencyMs          *int64          `json:"latencyMs,omitempty"`
	SchemaValid        *bool           `json:"schemaValid,omitempty"`
	ValidationChecks   map[string]bool `json:"validationChecks,omitempty"`
	ValidationErrors   []string        `json:"validationErrors,omitempty"`
	ValidationWarnings []string        `json:"validationWarnings,omitempty"`
	Usage              *ai.Usage       `json:"usage,omitempty"`
	Request            map[string]any  `json:"requestSnapshot,omitempty"`
	RawOutput          string          `json:"rawOutput,omitempty"`
	NormalizedTrip     *trip.Trip      `json:"normalizedTrip,omitempty"`
	TripID             types.ID        `json:"tripId,omitempty"`
	ErrorCode          string          `json:"errorCode,omitempty"`
	ErrorMessage       string          `json:"errorMessage,omitempty"`
	Rating             *Rating         `json:"rating"`
	CreatedAt          time.Time       `json:"createdAt"`
	StartedAt          *time.Time      `json:"startedAt,omitempty"`
	FinishedAt         *time.Time      `json:"finishedAt,omitempty"`
}

type OutcomeKind int

const (
	OutcomePending OutcomeKind = iota
	OutcomeCompleted
	OutcomeFailed
	OutcomeCancelled
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeCompleted:
		return "completed"
	case OutcomeFailed:
		return "failed"
	case OutcomeCancelled:
		return "cancelled"
	}
	return "pending"
}

// Outcome is the run result as the service sees it. Cancellation is stored
// as a failed status whose message starts with CancelledMessage.
type Outcome struct {
	Kind    OutcomeKind
	Message string
}

func outcomeOf(status Status, message string) Outcome {
	switch status {
	case StatusCompleted:
		return Outcome{Kind: OutcomeCompleted}
	case StatusFailed:
		if strings.HasPrefix(message, CancelledMessage) {
			return Outcome{Kind: OutcomeCancelled, Message: message}
		}
		return Outcome{Kind: OutcomeFailed, Message: message}
	}
	return Outcome{Kind: OutcomePending}
}

// persisted maps an outcome to the stored status and error message.
func (o Outcome) persisted() (Status, string) {
	switch o.Kind {
	case OutcomeCompleted:
		return StatusCompleted, ""
	case OutcomeCancelled:
		if strings.HasPrefix(o.Message, CancelledMessage) {
			return StatusFailed, o.Message
		}
		return StatusFailed, strings.TrimSpace(CancelledMessage + " " + o.Message)
	case OutcomeFailed:
		return StatusFailed, o.Message
	}
	return StatusQueued, ""
}

func (r *Run) Outcome() Outcome { return outcomeOf(r.Status, r.ErrorMessage) }

func IsRunActive(r *Run) bool { return r.Status.Active() }

func IsRunCancelled(r *Run) bool { return r.Outcome().Kind == OutcomeCancelled }

type Summary struct {
	Total        int      `json:"total"`
	Queued       int      `json:"queued"`
	Running      int      `json:"running"`
	Completed    int      `json:"completed"`
	Failed       int      `json:"failed"`
	Cancelled    int      `json:"cancelled"`
	SchemaValid  int      `json:"schemaValid"`
	AvgLatencyMs *float64 `json:"avgLatencyMs"`
	TotalCostUSD float64  `json:"totalCostUsd"`
	Active       bool     `json:"active"`
}

// Summarize counts cancelled runs apart from other failures.
func Summarize(runs []Run) Summary {
	var s Summary
	var latency int64
	var latencyN int
	for i := range runs {
		r := &runs[i]
		s.Total++
		switch r.Status {
		case StatusQueued:
			s.Queued++
		case StatusRunning:
			s.Running++
		case StatusCompleted:
			s.Completed++
		case StatusFailed:
			if IsRunCancelled(r) {
				s.Cancelled++
			} else {
				s.Failed++
			}
		}
		if r.SchemaValid != nil && *r.SchemaValid {
			s.SchemaValid++
		}
		if r.Status == StatusCompleted && r.LatencyMs != nil {
			latency += *r.LatencyMs
			latencyN++
		}
		if r.Usage != nil && r.Usage.EstimatedCostUSD != nil {
			s.TotalCostUSD += *r.Usage.EstimatedCostUSD
		}
	}
	if latencyN > 0 {
		v := types.Round(float64(latency)/float64(latencyN), 2)
		s.AvgLatencyMs = &v
	}
	s.TotalCostUSD = types.RoundUSD(s.TotalCostUSD)
	s.Active = s.Queued+s.Running > 0
	return s
}

// SessionView is what the run, get and cancel operations return.
type SessionView struct {
	Session Session `json:"session"`
	Runs    []Run   `json:"runs"`
	Summary Summary `json:"summary"`
	// Async is set when execution continues after the call returns.
	Async bool `json:"async,omitempty"`
}

type SessionListItem struct {
	Session Session `json:"session"`
	Summary Summary `json:"summary"`
}

// runUpdate is the terminal payload written by a guarded finish.
type runUpdate struct {
	Outcome            Outcome
	ErrorCode          string
	LatencyMs          *int64
	SchemaValid        *bool
	ValidationChecks   map[string]bool
	ValidationErrors   []string
	ValidationWarnings []string
	Usage              *ai.Usage
	RawOutput          string
	NormalizedTrip     *trip.Trip
	TripID             types.ID
	FinishedAt         time.Time
}

type CleanupMode string

const (
	CleanupLinkedTrips CleanupMode = "delete-linked-trips"
	CleanupSessionData CleanupMode = "delete-session-data"
	CleanupBoth        CleanupMode = "both"
)

type CleanupResult struct {
	TripsDeleted    int `json:"tripsDeleted"`
	RunsDeleted     int `json:"runsDeleted"`
	SessionsDeleted int `json:"sessionsDeleted"`
}
