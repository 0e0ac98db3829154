package preferences

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"
)

var (
	ErrNotFound   = errors.New("preferences not found")
	ErrBadRequest = errors.New("bad request")
)

type PreferenceStore interface {
	Get(ctx context.Context, uid string) (*Preferences, error)
	Put(ctx context.Context, uid string, p *Preferences) error
}

// Allowlist is satisfied by *ai.Catalog.
type Allowlist interface {
	IsAllowed(provider, model string) bool
}

type Service struct {
	store PreferenceStore
	allow Allowlist
	now   func() time.Time
}

func NewService(store PreferenceStore, allow Allowlist) *Service {
	return &Service{store: store, allow: allow, now: func() time.Time { return time.Now().UTC() }}
}

// Get returns the caller's preferences, persisting the defaults on first access.
func (s *Service) Get(ctx context.Context, uid string) (*Preferences, error) {
	if strings.TrimSpace(uid) == "" {
		return nil, fmt.Errorf("%w: uid is required", ErrBadRequest)
	}
	p, err := s.store.Get(ctx, uid)
	if errors.Is(err, ErrNotFound) {
		d := s.normalize(Defaults())
		d.UpdatedAt = s.now()
		if err := s.store.Put(ctx, uid, &d); err != nil {
			return nil, fmt.Errorf("store default preferences: %w", err)
		}
		return &d, nil
	}
	if err != nil {
		return nil, err
	}
	out := s.normalize(*p)
	out.UpdatedAt = p.UpdatedAt
	return &out, nil
}

func (s *Service) Save(ctx context.Context, uid string, p Preferences) (*Preferences, error) {
	if strings.TrimSpace(uid) == "" {
		return nil, fmt.Errorf("%w: uid is required", ErrBadRequest)
	}
	if err := validate(p); err != nil {
		return nil, err
	}
	out := s.normalize(p)
	out.UpdatedAt = s.now()
	if err := s.store.Put(ctx, uid, &out); err != nil {
		return nil, fmt.Errorf("store preferences: %w", err)
	}
	return &out, nil
}

func validate(p Preferences) error {
	if len(p.ModelTargets) > MaxTargets {
		return fmt.Errorf("%w: at most %d model targets", ErrBadRequest, MaxTargets)
	}
	seen := map[string]bool{}
	for _, pr := range p.Presets {
		id := strings.TrimSpace(pr.ID)
		if id == "" || strings.TrimSpace(pr.Name) == "" {
			return fmt.Errorf("%w: presets need an id and a name", ErrBadRequest)
		}
		if seen[id] {
			return fmt.Errorf("%w: duplicate preset id %q", ErrBadRequest, id)
		}
		seen[id] = true
		if pr.RunCount < 1 || pr.RunCount > MaxRunCount {
			return fmt.Errorf("%w: preset %q runCount must be between 1 and %d", ErrBadRequest, id, MaxRunCount)
		}
		if pr.Concurrency < 1 || pr.Concurrency > MaxConcurrency {
			return fmt.Errorf("%w: preset %q concurrency must be between 1 and %d", ErrBadRequest, id, MaxConcurrency)
		}
		if len(pr.Targets) > MaxTargets {
			return fmt.Errorf("%w: preset %q has more than %d targets", ErrBadRequest, id, MaxTargets)
		}
	}
	return nil
}

// normalize drops disallowed targets and empty presets, then falls back to
// the defaults for whatever ends up empty.
func (s *Service) normalize(p Preferences) Preferences {
	out := Preferences{ModelTargets: s.filter(p.ModelTargets)}
	for _, pr := range p.Presets {
		pr.ID = strings.TrimSpace(pr.ID)
		pr.Name = strings.TrimSpace(pr.Name)
		pr.Targets = s.filter(pr.Targets)
		if len(pr.Targets) == 0 {
			continue
		}
		out.Presets = append(out.Presets, pr)
	}

	if len(out.ModelTargets) == 0 || len(out.Presets) == 0 {
		d := Defaults()
		if len(out.ModelTargets) == 0 {
			out.ModelTargets = s.filter(d.ModelTargets)
		}
		if len(out.Presets) == 0 {
			for _, pr := range d.Presets {
				if pr.Targets = s.filter(pr.Targets); len(pr.Targets) > 0 {
					out.Presets = append(out.Presets, pr)
				}
			}
		}
	}
	if out.ModelTargets == nil {
		out.ModelTargets = []Target{}
	}
	if out.Presets == nil {
		out.Presets = []Preset{}
	}

	out.SelectedPresetID = strings.TrimSpace(p.SelectedPresetID)
	if _, ok := lo.Find(out.Presets, func(pr Preset) bool { return pr.ID == out.SelectedPresetID }); !ok {
		out.SelectedPresetID = ""
		if len(out.Presets) > 0 {
			out.SelectedPresetID = out.Presets[0].ID
		}
	}
	return out
}

func (s *Service) filter(targets []Target) []Target {
	cleaned := lo.Map(targets, func(t Target, _ int) Target {
		return Target{
			Provider: strings.ToLower(strings.TrimSpace(t.Provider)),
			Model:    strings.TrimSpace(t.Model),
			Label:    strings.TrimSpace(t.Label),
		}
	})
	allowed := lo.Filter(cleaned, func(t Target, _ int) bool {
		return s.allow == nil || s.allow.IsAllowed(t.Provider, t.Model)
	})
	return lo.UniqBy(allowed, func(t Target) string { return t.Provider + "/" + t.Model })
}
