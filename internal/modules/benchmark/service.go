// README: Benchmark service queues runs, executes them on a worker pool and owns cancel/rate/cleanup.
package benchmark

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"tripbench/internal/ai"
	"tripbench/internal/itinerary"
	"tripbench/internal/metrics"
	"tripbench/internal/modules/telemetry"
	"tripbench/internal/modules/trip"
	"tripbench/internal/types"
)

var (
	ErrNotFound     = errors.New("benchmark not found")
	ErrBadRequest   = errors.New("bad request")
	ErrInvalidState = errors.New("invalid run state")
	ErrConflict     = errors.New("benchmark conflict")
	// ErrStore wraps persistence failures of foreground calls.
	ErrStore = errors.New("benchmark store error")
)

const (
	DefaultRunCount    = 1
	MaxRunCount        = 3
	DefaultConcurrency = 2
	MaxConcurrency     = 5
	MaxTargets         = 12

	DefaultListLimit = 20
	MaxListLimit     = 100

	maxStoredErrorLen = 500
)

// Error codes written by the orchestrator itself. Provider failures keep the
// provider-prefixed codes of the generation client.
const (
	CodeTripSaveFailed  = "TRIP_SAVE_FAILED"
	CodeExecutionFailed = "EXECUTION_FAILED"
)

type RunStore interface {
	CreateSession(ctx context.Context, s *Session) error
	GetSession(ctx context.Context, id types.ID) (*Session, error)
	GetSessionByShareToken(ctx context.Context, token string) (*Session, error)
	ListSessions(ctx context.Context, limit int) ([]Session, error)
	SoftDeleteSession(ctx context.Context, id types.ID, at time.Time) (bool, error)
	InsertRuns(ctx context.Context, runs []*Run) error
	MaxRunIndex(ctx context.Context, sessionID types.ID, provider, model string) (int, error)
	GetRun(ctx context.Context, id types.ID) (*Run, error)
	ListRuns(ctx context.Context, sessionID types.ID) ([]Run, error)
	RunStatus(ctx context.Context, id types.ID) (Status, error)
	MarkRunning(ctx context.Context, id types.ID, at time.Time) (bool, error)
	FinishRun(ctx context.Context, id types.ID, expected Status, u runUpdate) (bool, error)
	CancelActive(ctx context.Context, sessionID, runID types.ID, at time.Time) ([]types.ID, error)
	SetRating(ctx context.Context, id types.ID, rating *Rating) (bool, error)
	DeleteRuns(ctx context.Context, sessionID types.ID) (int, error)
}

type Generator interface {
	Generate(ctx context.Context, req ai.Request) (*ai.Result, error)
}

type TripStore interface {
	Save(ctx context.Context, t *trip.Trip) (types.ID, error)
	DeleteBySession(ctx context.Context, sessionID types.ID) (int, error)
}

type Telemetry interface {
	Record(ctx context.Context, e telemetry.Event)
	ListBySession(ctx context.Context, sessionID types.ID) ([]telemetry.Event, error)
}

// CoordinateChecker adds advisory warnings to a report.
type CoordinateChecker interface {
	Check(ctx context.Context, it *itinerary.Itinerary, r *itinerary.Report)
}

type Options struct {
	// ProviderTimeout zero means the provider default.
	ProviderTimeout time.Duration
	MaxOutputTokens int
	Checker         CoordinateChecker
	Now             func() time.Time
}

type Service struct {
	store    RunStore
	gen      Generator
	trips    TripStore
	tel      Telemetry
	opts     Options
	now      func() time.Time
	inflight sync.WaitGroup
}

func NewService(store RunStore, gen Generator, trips TripStore, tel Telemetry, opts Options) *Service {
	now := opts.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Service{store: store, gen: gen, trips: trips, tel: tel, opts: opts, now: now}
}

// Wait blocks until every background batch has finished.
func (s *Service) Wait() {
	s.inflight.Wait()
}

type RunCommand struct {
	SessionID   types.ID
	SessionName string
	Flow        Flow
	Scenario    Scenario
	Targets     []Target
	RunCount    int
	Concurrency int
	CreatedBy   string
	// Async returns once the runs are queued and executes them in the background.
	Async bool
}

func normalizeRunCommand(cmd RunCommand) (RunCommand, error) {
	if cmd.RunCount == 0 {
		cmd.RunCount = DefaultRunCount
	}
	if cmd.RunCount < 1 || cmd.RunCount > MaxRunCount {
		return cmd, fmt.Errorf("%w: runCount must be between 1 and %d", ErrBadRequest, MaxRunCount)
	}
	if cmd.Concurrency == 0 {
		cmd.Concurrency = DefaultConcurrency
	}
	if cmd.Concurrency < 1 || cmd.Concurrency > MaxConcurrency {
		return cmd, fmt.Errorf("%w: concurrency must be between 1 and %d", ErrBadRequest, MaxConcurrency)
	}
	if len(cmd.Targets) == 0 || len(cmd.Targets) > MaxTargets {
		return cmd, fmt.Errorf("%w: between 1 and %d targets are required", ErrBadRequest, MaxTargets)
	}
	targets := make([]Target, 0, len(cmd.Targets))
	for _, t := range cmd.Targets {
		t.Provider = strings.ToLower(strings.TrimSpace(t.Provider))
		t.Model = strings.TrimSpace(t.Model)
		t.Label = strings.TrimSpace(t.Label)
		if t.Provider == "" || t.Model == "" {
			return cmd, fmt.Errorf("%w: every target needs a provider and a model", ErrBadRequest)
		}
		targets = append(targets, t)
	}
	cmd.Targets = targets
	if cmd.SessionID == "" {
		if cmd.Flow == "" {
			cmd.Flow = FlowClassic
		}
		if !cmd.Flow.Valid() {
			return cmd, fmt.Errorf("%w: unknown flow %q", ErrBadRequest, cmd.Flow)
		}
		cmd.Scenario.Prompt = strings.TrimSpace(cmd.Scenario.Prompt)
		if cmd.Scenario.Prompt == "" {
			return cmd, fmt.Errorf("%w: scenario prompt is required", ErrBadRequest)
		}
	}
	return cmd, nil
}

// RunBenchmark queues runCount runs per target and executes them. In async
// mode the returned view holds the queued runs.
func (s *Service) RunBenchmark(ctx context.Context, cmd RunCommand) (*SessionView, error) {
	cmd, err := normalizeRunCommand(cmd)
	if err != nil {
		return nil, err
	}
	sess, err := s.sessionFor(ctx, cmd)
	if err != nil {
		return nil, err
	}
	prompt := ai.BuildItineraryPrompt(ai.PromptInput{
		Prompt:    sess.Scenario.Prompt,
		StartDate: sess.Scenario.StartDate,
		RoundTrip: sess.Scenario.RoundTrip,
		Input:     sess.Scenario.Input,
	})
	runs, err := s.queueRuns(ctx, sess, cmd.Targets, cmd.RunCount, prompt)
	if err != nil {
		return nil, err
	}
	slog.Info("benchmark queued", "session_id", sess.ID, "runs", len(runs), "concurrency", cmd.Concurrency, "async", cmd.Async)

	if cmd.Async {
		bg := context.WithoutCancel(ctx)
		s.inflight.Add(1)
		go func() {
			defer s.inflight.Done()
			s.execute(bg, sess, runs, prompt, cmd.Concurrency)
		}()
		queued := make([]Run, 0, len(runs))
		for _, r := range runs {
			queued = append(queued, *r)
		}
		view := s.view(sess, queued)
		view.Async = true
		return view, nil
	}

	s.execute(ctx, sess, runs, prompt, cmd.Concurrency)
	return s.load(context.WithoutCancel(ctx), sess)
}

func (s *Service) sessionFor(ctx context.Context, cmd RunCommand) (*Session, error) {
	if cmd.SessionID != "" {
		sess, err := s.store.GetSession(ctx, cmd.SessionID)
		if err != nil {
			return nil, storeErr("load session", err)
		}
		return sess, nil
	}
	now := s.now()
	name := strings.TrimSpace(cmd.SessionName)
	if name == "" {
		name = "Benchmark " + now.Format("2006-01-02 15:04")
	}
	sess := &Session{
		ID:         types.ID(uuid.NewString()),
		Name:       name,
		ShareToken: newShareToken(),
		Flow:       cmd.Flow,
		Scenario:   cmd.Scenario,
		CreatedBy:  cmd.CreatedBy,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.store.CreateSession(ctx, sess); err != nil {
		return nil, storeErr("create session", err)
	}
	return sess, nil
}

// queueRuns seeds each (provider, model) index from the stored maximum so
// repeated invocations continue the sequence.
func (s *Service) queueRuns(ctx context.Context, sess *Session, targets []Target, runCount int, prompt string) ([]*Run, error) {
	next := map[string]int{}
	now := s.now()
	runs := make([]*Run, 0, len(targets)*runCount)
	for _, t := range targets {
		key := t.Provider + "/" + t.Model
		if _, ok := next[key]; !ok {
			stored, err := s.store.MaxRunIndex(ctx, sess.ID, t.Provider, t.Model)
			if err != nil {
				return nil, storeErr("read run index", err)
			}
			next[key] = stored
		}
		for i := 0; i < runCount; i++ {
			next[key]++
			r := &Run{
				ID:        types.ID(uuid.NewString()),
				SessionID: sess.ID,
				Provider:  t.Provider,
				Model:     t.Model,
				Label:     t.Label,
				RunIndex:  next[key],
				Status:    StatusQueued,
				CreatedAt: now,
			}
			r.Request = map[string]any{
				"provider":        r.Provider,
				"model":           r.Model,
				"runIndex":        r.RunIndex,
				"flow":            string(sess.Flow),
				"scenario":        sess.Scenario,
				"prompt":          prompt,
				"timeoutMs":       s.opts.ProviderTimeout.Milliseconds(),
				"maxOutputTokens": s.opts.MaxOutputTokens,
			}
			runs = append(runs, r)
		}
	}
	if err := s.store.InsertRuns(ctx, runs); err != nil {
		return nil, storeErr("queue runs", err)
	}
	return runs, nil
}

// execute drives one batch. Whatever happens, no run of the batch stays
// queued or running once it returns.
func (s *Service) execute(ctx context.Context, sess *Session, runs []*Run, prompt string, concurrency int) {
	defer func() {
		if p := recover(); p != nil {
			slog.Error("benchmark batch panicked", "session_id", sess.ID, "panic", p)
		}
		s.sweep(context.WithoutCancel(ctx), runs)
	}()
	runPool(runs, min(concurrency, len(runs)), func(r *Run) {
		s.process(ctx, sess, r, prompt)
	})
}

// sweep fails every run of the batch that is still active.
func (s *Service) sweep(ctx context.Context, runs []*Run) {
	for _, r := range runs {
		st, err := s.store.RunStatus(ctx, r.ID)
		if err != nil {
			slog.Warn("benchmark sweep read failed", "run_id", r.ID, "error", err)
			continue
		}
		if !st.Active() {
			continue
		}
		ok, err := s.store.FinishRun(ctx, r.ID, st, runUpdate{
			Outcome:    Outcome{Kind: OutcomeFailed, Message: ExecutionFailedMessage},
			ErrorCode:  CodeExecutionFailed,
			FinishedAt: s.now(),
		})
		if err != nil {
			slog.Warn("benchmark sweep write failed", "run_id", r.ID, "error", err)
			continue
		}
		if ok {
			metrics.RunsFinished.WithLabelValues(OutcomeFailed.String()).Inc()
			slog.Warn("benchmark run swept", "run_id", r.ID, "status", st)
		}
	}
}

// checkpoint reports whether the run is still in the wanted status.
func (s *Service) checkpoint(ctx context.Context, id types.ID, want Status) bool {
	st, err := s.store.RunStatus(ctx, id)
	if err != nil {
		slog.Warn("benchmark checkpoint failed", "run_id", id, "error", err)
		return false
	}
	return st == want
}

func (s *Service) process(ctx context.Context, sess *Session, r *Run, prompt string) {
	if !s.checkpoint(ctx, r.ID, StatusQueued) {
		return
	}
	ok, err := s.store.MarkRunning(ctx, r.ID, s.now())
	if err != nil {
		slog.Warn("benchmark mark running failed", "run_id", r.ID, "error", err)
		return
	}
	if !ok {
		return
	}
	metrics.RunsActive.Inc()
	defer metrics.RunsActive.Dec()

	res, genErr := s.gen.Generate(ctx, ai.Request{
		Prompt:          prompt,
		Provider:        r.Provider,
		Model:           r.Model,
		Timeout:         s.opts.ProviderTimeout,
		MaxOutputTokens: s.opts.MaxOutputTokens,
	})
	var meta ai.Meta
	var fail *ai.Failure
	if genErr != nil {
		fail = ai.AsFailure(genErr, r.Provider, r.Model)
		if fail.Meta != nil {
			meta = *fail.Meta
		} else {
			meta = ai.Meta{Provider: r.Provider, Model: r.Model}
		}
	} else {
		meta = res.Meta
	}
	latency := meta.LatencyMs
	usage := meta.Usage

	if !s.checkpoint(ctx, r.ID, StatusRunning) {
		// The provider was already paid for; keep the fact.
		s.record(ctx, r, meta, fail)
		return
	}

	if fail != nil {
		s.finish(ctx, r, runUpdate{
			Outcome:   Outcome{Kind: OutcomeFailed, Message: clip(fail.Message, maxStoredErrorLen)},
			ErrorCode: fail.Code,
			LatencyMs: &latency,
			Usage:     &usage,
			RawOutput: fail.Details,
		})
		s.record(ctx, r, meta, fail)
		return
	}

	report, it := itinerary.Validate(res.Data)
	if s.opts.Checker != nil && it != nil {
		s.opts.Checker.Check(ctx, it, report)
	}
	valid := report.SchemaValid
	base := runUpdate{
		LatencyMs:          &latency,
		SchemaValid:        &valid,
		ValidationChecks:   report.Checks,
		ValidationErrors:   report.Errors,
		ValidationWarnings: report.Warnings,
		Usage:              &usage,
		RawOutput:          meta.RawText,
	}
	if !valid {
		invalid := &ai.Failure{
			Code:     ai.ProviderCode(r.Provider, ai.SuffixOutputInvalid),
			Message:  schemaMessage(report),
			Provider: r.Provider,
			Model:    r.Model,
		}
		u := base
		u.Outcome = Outcome{Kind: OutcomeFailed, Message: invalid.Message}
		u.ErrorCode = invalid.Code
		s.finish(ctx, r, u)
		s.record(ctx, r, meta, invalid)
		return
	}

	tr := trip.Build(it, sess.Scenario.StartDate, trip.BuildOptions{
		RoundTrip: sess.Scenario.RoundTrip,
		Provider:  r.Provider,
		Model:     r.Model,
		SessionID: sess.ID,
		RunID:     r.ID,
		Now:       s.now(),
	})
	tripID, err := s.trips.Save(ctx, tr)
	if err != nil {
		saveFail := &ai.Failure{
			Code:     CodeTripSaveFailed,
			Message:  clip("Failed to save generated trip: "+err.Error(), maxStoredErrorLen),
			Provider: r.Provider,
			Model:    r.Model,
		}
		u := base
		u.Outcome = Outcome{Kind: OutcomeFailed, Message: saveFail.Message}
		u.ErrorCode = saveFail.Code
		u.NormalizedTrip = tr
		s.finish(ctx, r, u)
		s.record(ctx, r, meta, saveFail)
		return
	}

	if !s.checkpoint(ctx, r.ID, StatusRunning) {
		s.record(ctx, r, meta, nil)
		return
	}
	u := base
	u.Outcome = Outcome{Kind: OutcomeCompleted}
	u.NormalizedTrip = tr
	u.TripID = tripID
	s.finish(ctx, r, u)
	s.record(ctx, r, meta, nil)
}

// finish writes a terminal update guarded on the running status.
func (s *Service) finish(ctx context.Context, r *Run, u runUpdate) bool {
	u.FinishedAt = s.now()
	ok, err := s.store.FinishRun(ctx, r.ID, StatusRunning, u)
	if err != nil {
		slog.Warn("benchmark run write failed", "run_id", r.ID, "error", err)
		return false
	}
	if !ok {
		slog.Info("benchmark run changed while executing", "run_id", r.ID)
		return false
	}
	metrics.RunsFinished.WithLabelValues(u.Outcome.Kind.String()).Inc()
	return true
}

func (s *Service) record(ctx context.Context, r *Run, meta ai.Meta, fail *ai.Failure) {
	if s.tel == nil {
		return
	}
	e := telemetry.FromGeneration(telemetry.SourceBenchmark, meta, fail)
	e.SessionID = r.SessionID
	e.RunID = r.ID
	e.Metadata["runIndex"] = r.RunIndex
	s.tel.Record(context.WithoutCancel(ctx), e)
}

func schemaMessage(r *itinerary.Report) string {
	msg := "Itinerary failed schema validation"
	if len(r.Errors) > 0 {
		n := min(len(r.Errors), 3)
		msg += ": " + strings.Join(r.Errors[:n], "; ")
	}
	return clip(msg, maxStoredErrorLen)
}

type CancelCommand struct {
	RunID     types.ID
	SessionID types.ID
}

// Cancel fails every active run matching the command with the cancellation
// message. Workers notice it at their next checkpoint.
func (s *Service) Cancel(ctx context.Context, cmd CancelCommand) (*SessionView, error) {
	if cmd.RunID == "" && cmd.SessionID == "" {
		return nil, fmt.Errorf("%w: runId or sessionId is required", ErrBadRequest)
	}
	sessionID := cmd.SessionID
	if cmd.RunID != "" {
		r, err := s.store.GetRun(ctx, cmd.RunID)
		if err != nil {
			return nil, storeErr("load run", err)
		}
		if sessionID != "" && sessionID != r.SessionID {
			return nil, fmt.Errorf("%w: run %s is not part of session %s", ErrBadRequest, cmd.RunID, sessionID)
		}
		sessionID = r.SessionID
	}
	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, storeErr("load session", err)
	}
	ids, err := s.store.CancelActive(ctx, sessionID, cmd.RunID, s.now())
	if err != nil {
		return nil, storeErr("cancel runs", err)
	}
	metrics.RunsFinished.WithLabelValues(OutcomeCancelled.String()).Add(float64(len(ids)))
	slog.Info("benchmark cancelled", "session_id", sessionID, "run_id", cmd.RunID, "cancelled", len(ids))
	return s.load(ctx, sess)
}

type RateCommand struct {
	RunID types.ID
	// Rating nil clears the rating.
	Rating *Rating
}

func (s *Service) Rate(ctx context.Context, cmd RateCommand) (*Run, error) {
	if cmd.RunID == "" {
		return nil, fmt.Errorf("%w: runId is required", ErrBadRequest)
	}
	if cmd.Rating != nil && !cmd.Rating.Valid() {
		return nil, fmt.Errorf("%w: rating must be good, medium, bad or null", ErrBadRequest)
	}
	r, err := s.store.GetRun(ctx, cmd.RunID)
	if err != nil {
		return nil, storeErr("load run", err)
	}
	if !r.Status.Terminal() {
		return nil, fmt.Errorf("%w: run %s is %s", ErrInvalidState, r.ID, r.Status)
	}
	ok, err := s.store.SetRating(ctx, r.ID, cmd.Rating)
	if err != nil {
		return nil, storeErr("rate run", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: run %s is not finished", ErrInvalidState, r.ID)
	}
	r.Rating = cmd.Rating
	return r, nil
}

type CleanupCommand struct {
	SessionID types.ID
	Mode      CleanupMode
}

func (s *Service) Cleanup(ctx context.Context, cmd CleanupCommand) (*CleanupResult, error) {
	if cmd.SessionID == "" {
		return nil, fmt.Errorf("%w: sessionId is required", ErrBadRequest)
	}
	trips, data := false, false
	switch cmd.Mode {
	case CleanupLinkedTrips:
		trips = true
	case CleanupSessionData:
		data = true
	case CleanupBoth:
		trips, data = true, true
	default:
		return nil, fmt.Errorf("%w: unknown cleanup mode %q", ErrBadRequest, cmd.Mode)
	}
	if _, err := s.store.GetSession(ctx, cmd.SessionID); err != nil {
		return nil, storeErr("load session", err)
	}
	if data {
		runs, err := s.store.ListRuns(ctx, cmd.SessionID)
		if err != nil {
			return nil, storeErr("list runs", err)
		}
		for i := range runs {
			if IsRunActive(&runs[i]) {
				return nil, fmt.Errorf("%w: session has active runs, cancel them first", ErrConflict)
			}
		}
	}

	var res CleanupResult
	if trips {
		n, err := s.trips.DeleteBySession(ctx, cmd.SessionID)
		if err != nil {
			return nil, storeErr("delete trips", err)
		}
		res.TripsDeleted = n
	}
	if data {
		n, err := s.store.DeleteRuns(ctx, cmd.SessionID)
		if err != nil {
			return nil, storeErr("delete runs", err)
		}
		res.RunsDeleted = n
		ok, err := s.store.SoftDeleteSession(ctx, cmd.SessionID, s.now())
		if err != nil {
			return nil, storeErr("delete session", err)
		}
		if ok {
			res.SessionsDeleted = 1
		}
	}
	slog.Info("benchmark cleanup", "session_id", cmd.SessionID, "mode", cmd.Mode,
		"trips", res.TripsDeleted, "runs", res.RunsDeleted, "sessions", res.SessionsDeleted)
	return &res, nil
}

type GetQuery struct {
	SessionID  types.ID
	ShareToken string
}

func (s *Service) Get(ctx context.Context, q GetQuery) (*SessionView, error) {
	var sess *Session
	var err error
	switch {
	case q.SessionID != "":
		sess, err = s.store.GetSession(ctx, q.SessionID)
	case q.ShareToken != "":
		sess, err = s.store.GetSessionByShareToken(ctx, q.ShareToken)
	default:
		return nil, fmt.Errorf("%w: sessionId or shareToken is required", ErrBadRequest)
	}
	if err != nil {
		return nil, storeErr("load session", err)
	}
	return s.load(ctx, sess)
}

// ListRecent returns the newest sessions with their run summaries.
func (s *Service) ListRecent(ctx context.Context, limit int) ([]SessionListItem, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	limit = min(limit, MaxListLimit)
	sessions, err := s.store.ListSessions(ctx, limit)
	if err != nil {
		return nil, storeErr("list sessions", err)
	}
	out := make([]SessionListItem, 0, len(sessions))
	for _, sess := range sessions {
		runs, err := s.store.ListRuns(ctx, sess.ID)
		if err != nil {
			return nil, storeErr("list runs", err)
		}
		out = append(out, SessionListItem{Session: sess, Summary: Summarize(runs)})
	}
	return out, nil
}

func (s *Service) load(ctx context.Context, sess *Session) (*SessionView, error) {
	runs, err := s.store.ListRuns(ctx, sess.ID)
	if err != nil {
		return nil, storeErr("list runs", err)
	}
	return s.view(sess, runs), nil
}

func (s *Service) view(sess *Session, runs []Run) *SessionView {
	if runs == nil {
		runs = []Run{}
	}
	return &SessionView{Session: *sess, Runs: runs, Summary: Summarize(runs)}
}

// storeErr keeps ErrNotFound as is and marks everything else as a store failure.
func storeErr(op string, err error) error {
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrConflict) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrStore, op, err)
}

func newShareToken() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

func clip(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n]) + "..."
}
