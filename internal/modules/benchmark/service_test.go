package benchmark

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"tripbench/internal/ai"
	"tripbench/internal/itinerary"
	"tripbench/internal/modules/telemetry"
	"tripbench/internal/modules/trip"
	"tripbench/internal/types"
)

const twoCities = `{
  "title": "Lisbon weekend",
  "cities": [
    {"name": "Lisbon", "description": "Hills and tiles.\n\n### Must See\n- Alfama\n\n### Must Try\n- Bacalhau\n\n### Must Do\n- Tram 28", "days": 2, "lat": 38.7223, "lng": -9.1393},
    {"name": "Sintra", "description": "Palaces in the forest.\n\n### Must See\n- Pena Palace\n\n### Must Try\n- Travesseiros\n\n### Must Do\n- Hike to the Moorish Castle", "days": 1, "lat": 38.8029, "lng": -9.3817}
  ],
  "activities": [
    {"cityIndex": 0, "dayOffset": 0, "title": "Alfama walk", "description": "Old town lanes", "activityTypes": ["culture"], "duration": 0.5},
    {"cityIndex": 1, "dayOffset": 0, "title": "Pena Palace", "description": "Romantic palace", "activityTypes": ["sightseeing"], "duration": 0.5}
  ],
  "travelSegments": [
    {"fromCityIndex": 0, "toCityIndex": 1, "transportMode": "train", "duration": 1}
  ],
  "countryInfo": {"country": "Portugal", "currency": "EUR"}
}`

func itineraryData(t *testing.T) map[string]any {
	t.Helper()
	var raw map[string]any
	if err := json.Unmarshal([]byte(twoCities), &raw); err != nil {
		t.Fatalf("fixture: %v", err)
	}
	return raw
}

type generateFunc func(ctx context.Context, req ai.Request) (*ai.Result, error)

type fakeGenerator struct {
	mu    sync.Mutex
	calls []ai.Request
	fn    generateFunc
}

func (g *fakeGenerator) Generate(ctx context.Context, req ai.Request) (*ai.Result, error) {
	g.mu.Lock()
	g.calls = append(g.calls, req)
	g.mu.Unlock()
	return g.fn(ctx, req)
}

func (g *fakeGenerator) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

func succeed(t *testing.T) generateFunc {
	return func(_ context.Context, req ai.Request) (*ai.Result, error) {
		cost := 0.0042
		return &ai.Result{
			Data: itineraryData(t),
			Meta: ai.Meta{Provider: req.Provider, Model: req.Model, LatencyMs: 1500, Attempts: 1, HTTPStatus: 200,
				Usage: ai.Usage{EstimatedCostUSD: &cost, CostSource: ai.CostFromPriceTable}, RawText: twoCities},
		}, nil
	}
}

type fakeTelemetry struct {
	mu     sync.Mutex
	events []telemetry.Event
}

func (f *fakeTelemetry) Record(_ context.Context, e telemetry.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, e)
}

func (f *fakeTelemetry) ListBySession(_ context.Context, id types.ID) ([]telemetry.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []telemetry.Event
	for _, e := range f.events {
		if e.SessionID == id {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeTelemetry) all() []telemetry.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]telemetry.Event(nil), f.events...)
}

type fixtureEnv struct {
	svc   *Service
	store *MemoryStore
	trips *trip.MemoryStore
	tel   *fakeTelemetry
	gen   *fakeGenerator
}

func newEnv(t *testing.T, fn generateFunc) *fixtureEnv {
	t.Helper()
	var mu sync.Mutex
	clock := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	env := &fixtureEnv{
		store: NewMemoryStore(),
		trips: trip.NewMemoryStore(),
		tel:   &fakeTelemetry{},
		gen:   &fakeGenerator{fn: fn},
	}
	env.svc = NewService(env.store, env.gen, env.trips, env.tel, Options{
		ProviderTimeout: 30 * time.Second,
		Now: func() time.Time {
			mu.Lock()
			defer mu.Unlock()
			clock = clock.Add(time.Second)
			return clock
		},
	})
	return env
}

func lisbonCommand(targets ...Target) RunCommand {
	return RunCommand{Scenario: Scenario{Prompt: "3 days in Lisbon"}, Targets: targets}
}

var gemini = Target{Provider: "gemini", Model: "gemini-3-pro-preview"}

func TestRunBenchmarkEndToEnd(t *testing.T) {
	env := newEnv(t, succeed(t))
	view, err := env.svc.RunBenchmark(context.Background(), lisbonCommand(gemini))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(view.Runs) != 1 {
		t.Fatalf("runs = %d, want 1", len(view.Runs))
	}
	r := view.Runs[0]
	if r.RunIndex != 1 || r.Status != StatusCompleted {
		t.Fatalf("run = index %d status %s (%s %s)", r.RunIndex, r.Status, r.ErrorCode, r.ErrorMessage)
	}
	if r.SchemaValid == nil || !*r.SchemaValid {
		t.Errorf("schema valid = %v, errors %v", r.SchemaValid, r.ValidationErrors)
	}
	if r.TripID == "" || r.NormalizedTrip == nil || len(r.NormalizedTrip.Cities) != 2 {
		t.Fatalf("trip linkage missing: %+v", r)
	}
	saved, err := env.trips.Get(context.Background(), r.TripID)
	if err != nil || saved.Provenance.RunID != r.ID || saved.Provenance.SessionID != view.Session.ID {
		t.Errorf("saved trip = %+v, %v", saved, err)
	}
	if r.LatencyMs == nil || *r.LatencyMs != 1500 || r.StartedAt == nil || r.FinishedAt == nil {
		t.Errorf("timing = %v %v %v", r.LatencyMs, r.StartedAt, r.FinishedAt)
	}
	if r.Request["prompt"] == "" || !strings.Contains(r.Request["prompt"].(string), "3 days in Lisbon") {
		t.Errorf("request snapshot prompt missing")
	}

	events := env.tel.all()
	if len(events) != 1 {
		t.Fatalf("events = %d, want 1", len(events))
	}
	if e := events[0]; e.Status != telemetry.StatusSuccess || e.Source != telemetry.SourceBenchmark || e.RunID != r.ID || e.SessionID != view.Session.ID {
		t.Errorf("event = %+v", e)
	}
	if view.Summary.Completed != 1 || view.Summary.Active || view.Summary.TotalCostUSD != 0.0042 {
		t.Errorf("summary = %+v", view.Summary)
	}
	if view.Session.ShareToken == "" || len(view.Session.ShareToken) != 32 || view.Session.Flow != FlowClassic {
		t.Errorf("session = %+v", view.Session)
	}
}

func TestRunIndexContinuesAcrossInvocations(t *testing.T) {
	env := newEnv(t, succeed(t))
	ctx := context.Background()
	cmd := lisbonCommand(gemini)
	cmd.RunCount = 3
	first, err := env.svc.RunBenchmark(ctx, cmd)
	if err != nil {
		t.Fatal(err)
	}
	cmd.SessionID = first.Session.ID
	cmd.Scenario = Scenario{}
	second, err := env.svc.RunBenchmark(ctx, cmd)
	if err != nil {
		t.Fatal(err)
	}
	if second.Session.ID != first.Session.ID {
		t.Fatalf("session not reused")
	}
	seen := map[int]bool{}
	for _, r := range second.Runs {
		if seen[r.RunIndex] {
			t.Errorf("duplicate run index %d", r.RunIndex)
		}
		seen[r.RunIndex] = true
	}
	for i := 1; i <= 6; i++ {
		if !seen[i] {
			t.Errorf("missing run index %d in %v", i, seen)
		}
	}
}

func TestDuplicateTargetsGetDistinctIndexes(t *testing.T) {
	env := newEnv(t, succeed(t))
	cmd := lisbonCommand(gemini, Target{Provider: " Gemini ", Model: "gemini-3-pro-preview"})
	cmd.RunCount = 2
	view, err := env.svc.RunBenchmark(context.Background(), cmd)
	if err != nil {
		t.Fatal(err)
	}
	if len(view.Runs) != 4 {
		t.Fatalf("runs = %d", len(view.Runs))
	}
	for i, r := range view.Runs {
		if r.RunIndex != i+1 || r.Provider != "gemini" {
			t.Errorf("run %d = %s #%d", i, r.Provider, r.RunIndex)
		}
	}
}

func TestRunBenchmarkRejectsBadCommands(t *testing.T) {
	many := make([]Target, MaxTargets+1)
	for i := range many {
		many[i] = gemini
	}
	cases := []struct {
		name string
		edit func(c *RunCommand)
	}{
		{"run count", func(c *RunCommand) { c.RunCount = 4 }},
		{"negative run count", func(c *RunCommand) { c.RunCount = -1 }},
		{"concurrency", func(c *RunCommand) { c.Concurrency = 6 }},
		{"no targets", func(c *RunCommand) { c.Targets = nil }},
		{"too many targets", func(c *RunCommand) { c.Targets = many }},
		{"missing model", func(c *RunCommand) { c.Targets = []Target{{Provider: "gemini"}} }},
		{"empty prompt", func(c *RunCommand) { c.Scenario.Prompt = "   " }},
		{"unknown flow", func(c *RunCommand) { c.Flow = "freestyle" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := newEnv(t, succeed(t))
			cmd := lisbonCommand(gemini)
			tc.edit(&cmd)
			_, err := env.svc.RunBenchmark(context.Background(), cmd)
			if !errors.Is(err, ErrBadRequest) {
				t.Fatalf("err = %v, want ErrBadRequest", err)
			}
			if env.gen.callCount() != 0 {
				t.Error("provider called for a rejected command")
			}
		})
	}
}

func TestRunBenchmarkUnknownSession(t *testing.T) {
	env := newEnv(t, succeed(t))
	cmd := lisbonCommand(gemini)
	cmd.SessionID = "missing"
	if _, err := env.svc.RunBenchmark(context.Background(), cmd); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v", err)
	}
}

func TestProviderFailureIsRecorded(t *testing.T) {
	env := newEnv(t, func(_ context.Context, req ai.Request) (*ai.Result, error) {
		return nil, &ai.Failure{
			Code:    ai.ProviderCode(req.Provider, ai.SuffixRequestTimeout),
			Message: "openai request timed out after 30s",
			Details: "finish_reason=; ",
			Meta:    &ai.Meta{Provider: req.Provider, Model: req.Model, LatencyMs: 30000, Attempts: 1},
		}
	})
	view, err := env.svc.RunBenchmark(context.Background(), lisbonCommand(Target{Provider: "openai", Model: "gpt-5"}))
	if err != nil {
		t.Fatal(err)
	}
	r := view.Runs[0]
	if r.Status != StatusFailed || r.ErrorCode != "OPENAI_REQUEST_TIMEOUT" || IsRunCancelled(&r) {
		t.Fatalf("run = %s %s %q", r.Status, r.ErrorCode, r.ErrorMessage)
	}
	if r.LatencyMs == nil || *r.LatencyMs != 30000 || r.SchemaValid != nil {
		t.Errorf("run detail = %+v", r)
	}
	events := env.tel.all()
	if len(events) != 1 || events[0].Status != telemetry.StatusFailed || events[0].ErrorCode != "OPENAI_REQUEST_TIMEOUT" {
		t.Errorf("events = %+v", events)
	}
	if env.trips.Len() != 0 {
		t.Error("no trip should be saved")
	}
}

func TestSchemaFailureKeepsValidationDetail(t *testing.T) {
	env := newEnv(t, func(_ context.Context, req ai.Request) (*ai.Result, error) {
		return &ai.Result{
			Data: map[string]any{"title": "Nowhere", "cities": []any{}},
			Meta: ai.Meta{Provider: req.Provider, Model: req.Model, LatencyMs: 800},
		}, nil
	})
	view, err := env.svc.RunBenchmark(context.Background(), lisbonCommand(gemini))
	if err != nil {
		t.Fatal(err)
	}
	r := view.Runs[0]
	if r.Status != StatusFailed || r.ErrorCode != "GEMINI_OUTPUT_INVALID" {
		t.Fatalf("run = %s %s", r.Status, r.ErrorCode)
	}
	if r.SchemaValid == nil || *r.SchemaValid || len(r.ValidationErrors) == 0 || r.ValidationChecks[itinerary.CheckHasCities] {
		t.Errorf("validation = %v %v %v", r.SchemaValid, r.ValidationErrors, r.ValidationChecks)
	}
	if !strings.HasPrefix(r.ErrorMessage, "Itinerary failed schema validation") {
		t.Errorf("message = %q", r.ErrorMessage)
	}
	if events := env.tel.all(); len(events) != 1 || events[0].Status != telemetry.StatusFailed {
		t.Errorf("events = %+v", events)
	}
}

func TestTripSaveFailureFailsRun(t *testing.T) {
	env := newEnv(t, succeed(t))
	env.trips.FailSave = errors.New(strings.Repeat("disk full ", 100))
	view, err := env.svc.RunBenchmark(context.Background(), lisbonCommand(gemini))
	if err != nil {
		t.Fatal(err)
	}
	r := view.Runs[0]
	if r.Status != StatusFailed || r.ErrorCode != CodeTripSaveFailed || r.TripID != "" {
		t.Fatalf("run = %s %s %s", r.Status, r.ErrorCode, r.TripID)
	}
	if n := len([]rune(r.ErrorMessage)); n > maxStoredErrorLen+3 {
		t.Errorf("error message not truncated: %d runes", n)
	}
	if r.SchemaValid == nil || !*r.SchemaValid {
		t.Error("validation result should be kept")
	}
}

func TestCancelDuringGeneration(t *testing.T) {
	started := make(chan struct{}, 1)
	release := make(chan struct{})
	ok := succeed(t)
	env := newEnv(t, func(ctx context.Context, req ai.Request) (*ai.Result, error) {
		started <- struct{}{}
		<-release
		return ok(ctx, req)
	})
	ctx := context.Background()
	cmd := lisbonCommand(gemini)
	cmd.Async = true
	view, err := env.svc.RunBenchmark(ctx, cmd)
	if err != nil {
		t.Fatal(err)
	}
	if !view.Async || view.Runs[0].Status != StatusQueued || !view.Summary.Active {
		t.Fatalf("async view = %+v", view)
	}

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("generation never started")
	}
	cancelled, err := env.svc.Cancel(ctx, CancelCommand{SessionID: view.Session.ID})
	if err != nil {
		t.Fatal(err)
	}
	if cancelled.Summary.Cancelled != 1 {
		t.Errorf("summary = %+v", cancelled.Summary)
	}
	close(release)
	env.svc.Wait()

	got, err := env.svc.Get(ctx, GetQuery{SessionID: view.Session.ID})
	if err != nil {
		t.Fatal(err)
	}
	r := got.Runs[0]
	if r.Status != StatusFailed || !strings.HasPrefix(r.ErrorMessage, CancelledMessage) {
		t.Fatalf("run = %s %q", r.Status, r.ErrorMessage)
	}
	if IsRunActive(&r) || !IsRunCancelled(&r) || r.TripID != "" {
		t.Errorf("cancelled run overwritten: %+v", r)
	}
	if env.trips.Len() != 0 {
		t.Error("cancelled run saved a trip")
	}
	if events := env.tel.all(); len(events) != 1 {
		t.Errorf("events = %d, want the dispatched call recorded once", len(events))
	}
}

func TestCancelQueuedRunIsNeverStarted(t *testing.T) {
	env := newEnv(t, succeed(t))
	ctx := context.Background()
	sess := &Session{ID: "s1", ShareToken: "tok", Flow: FlowClassic, Scenario: Scenario{Prompt: "x"}}
	if err := env.store.CreateSession(ctx, sess); err != nil {
		t.Fatal(err)
	}
	runs := []*Run{
		{ID: "r1", SessionID: "s1", Provider: "gemini", Model: "gemini-2.5-pro", RunIndex: 1, Status: StatusQueued},
		{ID: "r2", SessionID: "s1", Provider: "gemini", Model: "gemini-2.5-pro", RunIndex: 2, Status: StatusQueued},
	}
	if err := env.store.InsertRuns(ctx, runs); err != nil {
		t.Fatal(err)
	}
	if _, err := env.svc.Cancel(ctx, CancelCommand{RunID: "r1"}); err != nil {
		t.Fatal(err)
	}
	env.svc.execute(ctx, sess, runs, "prompt", 2)

	if env.gen.callCount() != 1 {
		t.Errorf("provider calls = %d, want 1", env.gen.callCount())
	}
	r1, _ := env.store.GetRun(ctx, "r1")
	r2, _ := env.store.GetRun(ctx, "r2")
	if !IsRunCancelled(r1) || r2.Status != StatusCompleted {
		t.Errorf("r1 %s %q, r2 %s", r1.Status, r1.ErrorMessage, r2.Status)
	}
}

func TestPanicLeavesNoActiveRun(t *testing.T) {
	ok := succeed(t)
	env := newEnv(t, func(ctx context.Context, req ai.Request) (*ai.Result, error) {
		if req.Provider == "openai" {
			panic("provider exploded")
		}
		return ok(ctx, req)
	})
	cmd := lisbonCommand(gemini, Target{Provider: "openai", Model: "gpt-5"})
	view, err := env.svc.RunBenchmark(context.Background(), cmd)
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range view.Runs {
		switch r.Provider {
		case "openai":
			if r.Status != StatusFailed || r.ErrorMessage != ExecutionFailedMessage || r.ErrorCode != CodeExecutionFailed {
				t.Errorf("panicked run = %s %s %q", r.Status, r.ErrorCode, r.ErrorMessage)
			}
		case "gemini":
			if r.Status != StatusCompleted {
				t.Errorf("sibling run = %s", r.Status)
			}
		}
	}
	if view.Summary.Active {
		t.Errorf("summary still active: %+v", view.Summary)
	}
}

func TestWorkerPoolBound(t *testing.T) {
	var mu sync.Mutex
	inflight, peak := 0, 0
	ok := succeed(t)
	env := newEnv(t, func(ctx context.Context, req ai.Request) (*ai.Result, error) {
		mu.Lock()
		inflight++
		peak = max(peak, inflight)
		mu.Unlock()
		time.Sleep(5 * time.Millisecond)
		mu.Lock()
		inflight--
		mu.Unlock()
		return ok(ctx, req)
	})
	cmd := lisbonCommand(gemini, Target{Provider: "openai", Model: "gpt-5"})
	cmd.RunCount = 3
	cmd.Concurrency = 2
	view, err := env.svc.RunBenchmark(context.Background(), cmd)
	if err != nil {
		t.Fatal(err)
	}
	if env.gen.callCount() != 6 || view.Summary.Completed != 6 {
		t.Fatalf("calls %d, summary %+v", env.gen.callCount(), view.Summary)
	}
	if peak > 2 {
		t.Errorf("peak concurrency = %d, want <= 2", peak)
	}
}

func TestRate(t *testing.T) {
	env := newEnv(t, succeed(t))
	ctx := context.Background()
	view, err := env.svc.RunBenchmark(ctx, lisbonCommand(gemini))
	if err != nil {
		t.Fatal(err)
	}
	id := view.Runs[0].ID
	good, bogus := RatingGood, Rating("great")

	r, err := env.svc.Rate(ctx, RateCommand{RunID: id, Rating: &good})
	if err != nil || r.Rating == nil || *r.Rating != RatingGood {
		t.Fatalf("rate: %v %+v", err, r)
	}
	if _, err := env.svc.Rate(ctx, RateCommand{RunID: id, Rating: &bogus}); !errors.Is(err, ErrBadRequest) {
		t.Errorf("bogus rating err = %v", err)
	}
	if _, err := env.svc.Rate(ctx, RateCommand{RunID: "nope", Rating: &good}); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing run err = %v", err)
	}
	r, err = env.svc.Rate(ctx, RateCommand{RunID: id})
	if err != nil || r.Rating != nil {
		t.Fatalf("clear: %v %+v", err, r)
	}
	stored, _ := env.store.GetRun(ctx, id)
	if stored.Rating != nil {
		t.Error("rating not cleared in store")
	}

	queued := &Run{ID: "q1", SessionID: view.Session.ID, Provider: "xai", Model: "grok-4", RunIndex: 1, Status: StatusQueued}
	if err := env.store.InsertRuns(ctx, []*Run{queued}); err != nil {
		t.Fatal(err)
	}
	if _, err := env.svc.Rate(ctx, RateCommand{RunID: "q1", Rating: &good}); !errors.Is(err, ErrInvalidState) {
		t.Errorf("active run err = %v", err)
	}
}

func TestCleanupModes(t *testing.T) {
	cases := []struct {
		mode         CleanupMode
		trips, runs  int
		sessionsLeft int
	}{
		{CleanupLinkedTrips, 2, 0, 1},
		{CleanupSessionData, 0, 2, 0},
		{CleanupBoth, 2, 2, 0},
	}
	for _, tc := range cases {
		t.Run(string(tc.mode), func(t *testing.T) {
			env := newEnv(t, succeed(t))
			ctx := context.Background()
			cmd := lisbonCommand(gemini)
			cmd.RunCount = 2
			view, err := env.svc.RunBenchmark(ctx, cmd)
			if err != nil {
				t.Fatal(err)
			}
			res, err := env.svc.Cleanup(ctx, CleanupCommand{SessionID: view.Session.ID, Mode: tc.mode})
			if err != nil {
				t.Fatal(err)
			}
			if res.TripsDeleted != tc.trips || res.RunsDeleted != tc.runs || res.SessionsDeleted != 1-tc.sessionsLeft {
				t.Errorf("result = %+v", res)
			}
			list, _ := env.svc.ListRecent(ctx, 0)
			if len(list) != tc.sessionsLeft {
				t.Errorf("sessions left = %d", len(list))
			}
		})
	}
}

func TestCleanupRejects(t *testing.T) {
	env := newEnv(t, succeed(t))
	ctx := context.Background()
	if _, err := env.svc.Cleanup(ctx, CleanupCommand{SessionID: "x", Mode: "everything"}); !errors.Is(err, ErrBadRequest) {
		t.Errorf("mode err = %v", err)
	}
	if _, err := env.svc.Cleanup(ctx, CleanupCommand{SessionID: "x", Mode: CleanupBoth}); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing session err = %v", err)
	}

	sess := &Session{ID: "s1", ShareToken: "tok", Flow: FlowClassic}
	_ = env.store.CreateSession(ctx, sess)
	_ = env.store.InsertRuns(ctx, []*Run{{ID: "r1", SessionID: "s1", Provider: "gemini", Model: "m", RunIndex: 1, Status: StatusRunning}})
	if _, err := env.svc.Cleanup(ctx, CleanupCommand{SessionID: "s1", Mode: CleanupSessionData}); !errors.Is(err, ErrConflict) {
		t.Errorf("active session err = %v", err)
	}
}

func TestGetAndListRecent(t *testing.T) {
	env := newEnv(t, succeed(t))
	ctx := context.Background()
	first, _ := env.svc.RunBenchmark(ctx, lisbonCommand(gemini))
	second, _ := env.svc.RunBenchmark(ctx, lisbonCommand(gemini))

	byToken, err := env.svc.Get(ctx, GetQuery{ShareToken: first.Session.ShareToken})
	if err != nil || byToken.Session.ID != first.Session.ID || len(byToken.Runs) != 1 {
		t.Fatalf("by token: %v %+v", err, byToken)
	}
	if _, err := env.svc.Get(ctx, GetQuery{}); !errors.Is(err, ErrBadRequest) {
		t.Errorf("empty query err = %v", err)
	}
	list, err := env.svc.ListRecent(ctx, 10)
	if err != nil || len(list) != 2 || list[0].Session.ID != second.Session.ID || list[1].Summary.Completed != 1 {
		t.Errorf("list = %v %+v", err, list)
	}
}

func TestCancelRequiresTarget(t *testing.T) {
	env := newEnv(t, succeed(t))
	if _, err := env.svc.Cancel(context.Background(), CancelCommand{}); !errors.Is(err, ErrBadRequest) {
		t.Errorf("err = %v", err)
	}
	if _, err := env.svc.Cancel(context.Background(), CancelCommand{RunID: "nope"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v", err)
	}
}

func TestStoreErrorsAreMarked(t *testing.T) {
	err := storeErr("list runs", errors.New("connection reset"))
	if !errors.Is(err, ErrStore) || !strings.Contains(err.Error(), "connection reset") {
		t.Errorf("err = %v", err)
	}
	if !errors.Is(storeErr("x", ErrNotFound), ErrNotFound) || errors.Is(storeErr("x", ErrNotFound), ErrStore) {
		t.Error("not found must pass through")
	}
}
