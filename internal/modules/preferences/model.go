// README: Per-admin benchmark presets; always filtered against the active allow-list.
package preferences

import "time"

const (
	MaxTargets     = 24
	MaxRunCount    = 3
	MaxConcurrency = 5
)

type Target struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
	Label    string `json:"label,omitempty"`
}

type Preset struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Targets     []Target `json:"targets"`
	RunCount    int      `json:"runCount"`
	Concurrency int      `json:"concurrency"`
}

type Preferences struct {
	ModelTargets     []Target  `json:"modelTargets"`
	Presets          []Preset  `json:"presets"`
	SelectedPresetID string    `json:"selectedPresetId"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// Defaults returns a fresh copy of the system presets.
func Defaults() Preferences {
	flagship := []Target{
		{Provider: "gemini", Model: "gemini-3-pro-preview"},
		{Provider: "openai", Model: "gpt-5"},
		{Provider: "anthropic", Model: "claude-sonnet-4.5"},
	}
	fast := []Target{
		{Provider: "gemini", Model: "gemini-2.5-flash"},
		{Provider: "openai", Model: "gpt-5-mini"},
		{Provider: "anthropic", Model: "claude-haiku-4.5"},
	}
	open := []Target{
		{Provider: "deepseek", Model: "deepseek-chat"},
		{Provider: "qwen", Model: "qwen3-235b"},
		{Provider: "meta", Model: "llama-4-maverick"},
		{Provider: "mistral", Model: "mistral-medium-3"},
	}
	all := append(append(append([]Target{}, flagship...), fast...), open...)
	return Preferences{
		ModelTargets: all,
		Presets: []Preset{
			{ID: "flagship", Name: "Flagship models", Targets: flagship, RunCount: 1, Concurrency: 3},
			{ID: "fast", Name: "Fast and cheap", Targets: fast, RunCount: 2, Concurrency: 3},
			{ID: "open-weights", Name: "Open weights via gateway", Targets: open, RunCount: 1, Concurrency: 4},
		},
		SelectedPresetID: "flagship",
	}
}
