package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"tripbench/internal/ai"
	"tripbench/internal/config"
	"tripbench/internal/infra"
	"tripbench/internal/itinerary"
	"tripbench/internal/maps"
	"tripbench/internal/migrate"
	"tripbench/internal/modules/benchmark"
	"tripbench/internal/modules/telemetry"
	"tripbench/internal/modules/trip"
)

type Runner struct {
	flags  runFlags
	db     *pgxpool.Pool
	client *ai.Client
	svc    *benchmark.Service
}

func newRunner(ctx context.Context, f runFlags) (*Runner, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	r := &Runner{flags: f}
	r.client, err = ai.NewClient(ctx, cfg.Providers.ClientConfig(), cfg.Catalog)
	if err != nil {
		return nil, err
	}

	opts := benchmark.Options{
		ProviderTimeout: cfg.Providers.Timeout,
		MaxOutputTokens: cfg.Providers.MaxOutputTokens,
	}
	if cfg.Maps.APIKey != "" {
		geo, err := maps.NewService(cfg.Maps.APIKey)
		if err != nil {
			r.Close()
			return nil, err
		}
		opts.Checker = maps.NewChecker(geo, geo)
	}

	if f.DSN == "" {
		tel := telemetry.NewService(telemetry.NewMemoryStore(), nil, 0)
		r.svc = benchmark.NewService(benchmark.NewMemoryStore(), r.client, trip.NewMemoryStore(), tel, opts)
		return r, nil
	}

	r.db, err = infra.NewDB(ctx, f.DSN)
	if err != nil {
		r.Close()
		return nil, err
	}
	if f.Migrations != "" {
		if err := migrate.ApplyDir(ctx, r.db, f.Migrations); err != nil {
			r.Close()
			return nil, err
		}
	}
	tel := telemetry.NewService(telemetry.NewStore(r.db), nil, 0)
	r.svc = benchmark.NewService(benchmark.NewStore(r.db), r.client, trip.NewStore(r.db), tel, opts)
	return r, nil
}

func (r *Runner) Close() {
	if r.client != nil {
		_ = r.client.Close()
	}
	if r.db != nil {
		r.db.Close()
	}
}

// Run executes the scenario synchronously and returns the number of runs that did not complete.
func (r *Runner) Run(ctx context.Context, sc *Scenario, out io.Writer) (int, error) {
	view, err := r.svc.RunBenchmark(ctx, sc.command())
	if err != nil {
		return 0, err
	}
	fmt.Fprintf(out, "session %s (%s)\n", view.Session.ID, view.Session.Name)
	failed := 0
	for i := range view.Runs {
		run := &view.Runs[i]
		if run.Outcome().Kind != benchmark.OutcomeCompleted {
			failed++
		}
		fmt.Fprintln(out, resultLine(run))
	}

	s := view.Summary
	fmt.Fprintln(out, "\n== Summary ==")
	fmt.Fprintf(out, "PASS=%d FAIL=%d CANCELLED=%d SCHEMA_VALID=%d COST=$%.6f", s.Completed, s.Failed, s.Cancelled, s.SchemaValid, s.TotalCostUSD)
	if s.AvgLatencyMs != nil {
		fmt.Fprintf(out, " AVG_LATENCY=%.0fms", *s.AvgLatencyMs)
	}
	fmt.Fprintln(out)

	if r.flags.Zip != "" {
		exp, err := r.svc.ExportSession(ctx, view.Session.ID, r.flags.Logs)
		if err != nil {
			return failed, err
		}
		if err := os.WriteFile(r.flags.Zip, exp.Data, 0o644); err != nil {
			return failed, fmt.Errorf("write export: %w", err)
		}
		fmt.Fprintf(out, "export written to %s\n", r.flags.Zip)
	}
	return failed, nil
}

func resultLine(run *benchmark.Run) string {
	var status string
	switch run.Outcome().Kind {
	case benchmark.OutcomeCompleted:
		status = "PASS"
	case benchmark.OutcomeCancelled:
		status = "CANCEL"
	default:
		status = "FAIL"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-7s %s/%s #%d", status, run.Provider, run.Model, run.RunIndex)
	if run.LatencyMs != nil {
		fmt.Fprintf(&b, " (%dms)", *run.LatencyMs)
	}
	if run.Usage != nil && run.Usage.EstimatedCostUSD != nil {
		fmt.Fprintf(&b, " $%.6f", *run.Usage.EstimatedCostUSD)
	}
	if run.ErrorMessage != "" {
		fmt.Fprintf(&b, " - %s: %s", run.ErrorCode, run.ErrorMessage)
	}
	if n := len(run.ValidationWarnings); n > 0 {
		fmt.Fprintf(&b, " [%d warning(s)]", n)
	}
	return b.String()
}

func validateFile(path, startDate string, out io.Writer) (bool, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("read itinerary: %w", err)
	}
	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return false, fmt.Errorf("parse itinerary: %w", err)
	}
	report, it := itinerary.Validate(data)
	res := map[string]any{"report": report}
	if report.SchemaValid && it != nil {
		res["trip"] = trip.Build(it, startDate, trip.BuildOptions{Now: time.Now()})
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		return false, err
	}
	return report.SchemaValid, nil
}
