package benchmark

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"tripbench/internal/ai"
	"tripbench/internal/archive"
	"tripbench/internal/types"
)

const ExportVersion = 1

type runExport struct {
	ExportVersion int       `json:"exportVersion"`
	ExportedAt    time.Time `json:"exportedAt"`
	Session       Session   `json:"session"`
	Run           Run       `json:"run"`
}

// ExportRun returns the single-run JSON document.
func (s *Service) ExportRun(ctx context.Context, runID types.ID) ([]byte, error) {
	if runID == "" {
		return nil, fmt.Errorf("%w: runId is required", ErrBadRequest)
	}
	r, err := s.store.GetRun(ctx, runID)
	if err != nil {
		return nil, storeErr("load run", err)
	}
	sess, err := s.store.GetSession(ctx, r.SessionID)
	if err != nil {
		return nil, storeErr("load session", err)
	}
	return json.MarshalIndent(runExport{
		ExportVersion: ExportVersion,
		ExportedAt:    s.now(),
		Session:       *sess,
		Run:           *r,
	}, "", "  ")
}

type SessionExport struct {
	Filename string
	Data     []byte
}

type manifestRun struct {
	File     string `json:"file"`
	ID       string `json:"id"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
	RunIndex int    `json:"runIndex"`
	Status   Status `json:"status"`
}

type manifest struct {
	ExportVersion int           `json:"exportVersion"`
	ExportedAt    time.Time     `json:"exportedAt"`
	IncludeLogs   bool          `json:"includeLogs"`
	Session       Session       `json:"session"`
	Summary       Summary       `json:"summary"`
	Runs          []manifestRun `json:"runs"`
}

// ExportSession packs a session into a ZIP archive. With includeLogs the
// archive also carries the scenario, per-run logs and the linked telemetry.
func (s *Service) ExportSession(ctx context.Context, sessionID types.ID, includeLogs bool) (*SessionExport, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("%w: sessionId is required", ErrBadRequest)
	}
	view, err := s.Get(ctx, GetQuery{SessionID: sessionID})
	if err != nil {
		return nil, err
	}
	now := s.now()
	m := manifest{
		ExportVersion: ExportVersion,
		ExportedAt:    now,
		IncludeLogs:   includeLogs,
		Session:       view.Session,
		Summary:       view.Summary,
	}

	var files []archive.File
	var logs []archive.File
	var ndjson bytes.Buffer
	for i := range view.Runs {
		r := &view.Runs[i]
		name := runFileName(i+1, r)
		m.Runs = append(m.Runs, manifestRun{
			File:     "runs/" + name + ".json",
			ID:       string(r.ID),
			Provider: r.Provider,
			Model:    r.Model,
			RunIndex: r.RunIndex,
			Status:   r.Status,
		})
		body, err := json.MarshalIndent(r, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encode run %s: %w", r.ID, err)
		}
		files = append(files, archive.File{Name: "runs/" + name + ".json", Content: body})

		if includeLogs {
			logs = append(logs, archive.File{Name: "logs/" + name + ".log", Content: []byte(runLog(r))})
			line, err := json.Marshal(r)
			if err != nil {
				return nil, fmt.Errorf("encode run %s: %w", r.ID, err)
			}
			ndjson.Write(line)
			ndjson.WriteByte('\n')
		}
	}

	head, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}
	out := append([]archive.File{{Name: "manifest.json", Content: head}}, files...)

	if includeLogs {
		scenario, err := json.MarshalIndent(map[string]any{
			"flow":     view.Session.Flow,
			"scenario": view.Session.Scenario,
		}, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encode scenario: %w", err)
		}
		out = append(out,
			archive.File{Name: "scenario/prompt.txt", Content: []byte(promptOf(view))},
			archive.File{Name: "scenario/scenario.json", Content: scenario},
		)
		out = append(out, logs...)
		out = append(out, archive.File{Name: "logs/runs.ndjson", Content: ndjson.Bytes()})

		events, err := s.telemetryLines(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		out = append(out, archive.File{Name: "logs/telemetry.ndjson", Content: events})
	}

	data, err := archive.Build(out, now)
	if err != nil {
		return nil, fmt.Errorf("build archive: %w", err)
	}
	short := string(sessionID)
	if len(short) > 8 {
		short = short[:8]
	}
	return &SessionExport{
		Filename: fmt.Sprintf("benchmark-%s-%s.zip", short, now.Format("20060102-150405")),
		Data:     data,
	}, nil
}

func (s *Service) telemetryLines(ctx context.Context, sessionID types.ID) ([]byte, error) {
	if s.tel == nil {
		return nil, nil
	}
	events, err := s.tel.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, storeErr("list telemetry", err)
	}
	var buf bytes.Buffer
	for _, e := range events {
		line, err := json.Marshal(e)
		if err != nil {
			return nil, fmt.Errorf("encode telemetry event %s: %w", e.ID, err)
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

// promptOf prefers the prompt the runs were actually sent.
func promptOf(view *SessionView) string {
	for _, r := range view.Runs {
		if p, ok := r.Request["prompt"].(string); ok && p != "" {
			return p
		}
	}
	sc := view.Session.Scenario
	return ai.BuildItineraryPrompt(ai.PromptInput{
		Prompt:    sc.Prompt,
		StartDate: sc.StartDate,
		RoundTrip: sc.RoundTrip,
		Input:     sc.Input,
	})
}

func runFileName(n int, r *Run) string {
	return fmt.Sprintf("%02d-%s-%s-r%d", n, slug(r.Provider), slug(r.Model), r.RunIndex)
}

func slug(s string) string {
	var b strings.Builder
	for _, c := range strings.ToLower(s) {
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9', c == '.', c == '_':
			b.WriteRune(c)
		default:
			b.WriteByte('-')
		}
	}
	return strings.Trim(b.String(), "-")
}

func runLog(r *Run) string {
	var b strings.Builder
	fmt.Fprintf(&b, "run:          %s\n", r.ID)
	fmt.Fprintf(&b, "target:       %s/%s #%d\n", r.Provider, r.Model, r.RunIndex)
	if r.Label != "" {
		fmt.Fprintf(&b, "label:        %s\n", r.Label)
	}
	fmt.Fprintf(&b, "outcome:      %s\n", r.Outcome().Kind)
	fmt.Fprintf(&b, "created:      %s\n", r.CreatedAt.Format(time.RFC3339))
	if r.StartedAt != nil {
		fmt.Fprintf(&b, "started:      %s\n", r.StartedAt.Format(time.RFC3339))
	}
	if r.FinishedAt != nil {
		fmt.Fprintf(&b, "finished:     %s\n", r.FinishedAt.Format(time.RFC3339))
	}
	if r.LatencyMs != nil {
		fmt.Fprintf(&b, "latency:      %d ms\n", *r.LatencyMs)
	}
	if r.Usage != nil {
		if r.Usage.TotalTokens != nil {
			fmt.Fprintf(&b, "tokens:       %d\n", *r.Usage.TotalTokens)
		}
		if r.Usage.EstimatedCostUSD != nil {
			fmt.Fprintf(&b, "cost:         $%.6f (%s)\n", *r.Usage.EstimatedCostUSD, r.Usage.CostSource)
		}
	}
	if r.SchemaValid != nil {
		fmt.Fprintf(&b, "schema valid: %t\n", *r.SchemaValid)
	}
	if r.ErrorCode != "" || r.ErrorMessage != "" {
		fmt.Fprintf(&b, "error:        %s %s\n", r.ErrorCode, r.ErrorMessage)
	}
	if r.TripID != "" {
		fmt.Fprintf(&b, "trip:         %s\n", r.TripID)
	}

	names := make([]string, 0, len(r.ValidationChecks))
	for name := range r.ValidationChecks {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		mark := "FAIL"
		if r.ValidationChecks[name] {
			mark = "ok"
		}
		fmt.Fprintf(&b, "check %-22s %s\n", name, mark)
	}
	for _, e := range r.ValidationErrors {
		fmt.Fprintf(&b, "validation error: %s\n", e)
	}
	for _, w := range r.ValidationWarnings {
		fmt.Fprintf(&b, "validation warning: %s\n", w)
	}
	return b.String()
}
