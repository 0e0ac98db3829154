package ai

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Provider kinds. Each kind is one request/response translation; several
// provider names may share the gateway kind.
const (
	KindGemini    = "gemini"
	KindOpenAI    = "openai"
	KindAnthropic = "anthropic"
	KindGateway   = "gateway"
)

// ModelSpec is one allow-listed model. ProviderModelID is the id sent on the
// wire when it differs from the public ID.
type ModelSpec struct {
	ID              string `yaml:"id" json:"id"`
	ProviderModelID string `yaml:"providerModelId,omitempty" json:"providerModelId,omitempty"`
	Price           Price  `yaml:",inline" json:"price"`
}

func (m ModelSpec) wireID() string {
	if m.ProviderModelID != "" {
		return m.ProviderModelID
	}
	return m.ID
}

type ProviderSpec struct {
	Name           string        `yaml:"-" json:"name"`
	Kind           string        `yaml:"kind" json:"kind"`
	DefaultTimeout time.Duration `yaml:"timeout,omitempty" json:"-"`
	Models         []ModelSpec   `yaml:"models" json:"models"`
}

func (p *ProviderSpec) model(id string) (ModelSpec, bool) {
	for _, m := range p.Models {
		if m.ID == id {
			return m, true
		}
	}
	return ModelSpec{}, false
}

// Catalog is the allow-list of providers and models with their price tables.
type Catalog struct {
	providers map[string]*ProviderSpec
}

func DefaultCatalog() *Catalog {
	gw := func(name string, models ...ModelSpec) *ProviderSpec {
		return &ProviderSpec{Name: name, Kind: KindGateway, Models: models}
	}
	specs := []*ProviderSpec{
		{Name: "gemini", Kind: KindGemini, DefaultTimeout: 120 * time.Second, Models: []ModelSpec{
			{ID: "gemini-3-pro-preview", Price: Price{2.00, 12.00}},
			{ID: "gemini-2.5-pro", Price: Price{1.25, 10.00}},
			{ID: "gemini-2.5-flash", Price: Price{0.30, 2.50}},
			{ID: "gemini-2.0-flash", Price: Price{0.10, 0.40}},
		}},
		{Name: "openai", Kind: KindOpenAI, DefaultTimeout: 150 * time.Second, Models: []ModelSpec{
			{ID: "gpt-5", Price: Price{1.25, 10.00}},
			{ID: "gpt-5-mini", Price: Price{0.25, 2.00}},
			{ID: "gpt-5-pro", Price: Price{15.00, 120.00}},
			{ID: "gpt-4.1", Price: Price{2.00, 8.00}},
			{ID: "gpt-4o", Price: Price{2.50, 10.00}},
			{ID: "o4-mini", Price: Price{1.10, 4.40}},
		}},
		{Name: "anthropic", Kind: KindAnthropic, DefaultTimeout: 120 * time.Second, Models: []ModelSpec{
			{ID: "claude-sonnet-4.5", ProviderModelID: "claude-sonnet-4-5-20250929", Price: Price{3.00, 15.00}},
			{ID: "claude-opus-4.1", ProviderModelID: "claude-opus-4-1-20250805", Price: Price{15.00, 75.00}},
			{ID: "claude-haiku-4.5", ProviderModelID: "claude-haiku-4-5-20251001", Price: Price{1.00, 5.00}},
		}},
		gw("deepseek",
			ModelSpec{ID: "deepseek-chat", ProviderModelID: "deepseek/deepseek-chat", Price: Price{0.27, 1.10}},
			ModelSpec{ID: "deepseek-reasoner", ProviderModelID: "deepseek/deepseek-r1", Price: Price{0.55, 2.19}},
		),
		gw("mistral",
			ModelSpec{ID: "mistral-large", ProviderModelID: "mistralai/mistral-large", Price: Price{2.00, 6.00}},
			ModelSpec{ID: "mistral-medium-3", ProviderModelID: "mistralai/mistral-medium-3", Price: Price{0.40, 2.00}},
		),
		gw("xai",
			ModelSpec{ID: "grok-4", ProviderModelID: "x-ai/grok-4", Price: Price{3.00, 15.00}},
			ModelSpec{ID: "grok-3-mini", ProviderModelID: "x-ai/grok-3-mini", Price: Price{0.30, 0.50}},
		),
		gw("qwen",
			ModelSpec{ID: "qwen3-235b", ProviderModelID: "qwen/qwen3-235b-a22b", Price: Price{0.13, 0.60}},
		),
		gw("meta",
			ModelSpec{ID: "llama-4-maverick", ProviderModelID: "meta-llama/llama-4-maverick", Price: Price{0.15, 0.60}},
		),
	}
	c := &Catalog{providers: map[string]*ProviderSpec{}}
	for _, s := range specs {
		c.providers[s.Name] = s
	}
	return c
}

type catalogFile struct {
	Providers map[string]*ProviderSpec `yaml:"providers"`
}

// LoadCatalogFile reads a YAML file whose providers replace (or add to) the
// default catalog entries of the same name.
func LoadCatalogFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return ParseCatalog(data)
}

func ParseCatalog(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	c := DefaultCatalog()
	for rawName, spec := range f.Providers {
		name := strings.ToLower(strings.TrimSpace(rawName))
		if spec == nil {
			delete(c.providers, name)
			continue
		}
		spec.Name = name
		if spec.Kind == "" {
			if existing, ok := c.providers[name]; ok {
				spec.Kind = existing.Kind
			} else {
				spec.Kind = KindGateway
			}
		}
		switch spec.Kind {
		case KindGemini, KindOpenAI, KindAnthropic, KindGateway:
		default:
			return nil, fmt.Errorf("catalog provider %s: unknown kind %q", name, spec.Kind)
		}
		for _, m := range spec.Models {
			if m.ID == "" {
				return nil, fmt.Errorf("catalog provider %s: model without id", name)
			}
		}
		c.providers[name] = spec
	}
	return c, nil
}

func (c *Catalog) provider(name string) (*ProviderSpec, bool) {
	p, ok := c.providers[name]
	return p, ok
}

// IsAllowed reports whether (provider, model) is on the allow-list.
func (c *Catalog) IsAllowed(provider, model string) bool {
	p, ok := c.providers[provider]
	if !ok {
		return false
	}
	_, ok = p.model(model)
	return ok
}

// Providers returns provider names in lexical order.
func (c *Catalog) Providers() []string {
	out := make([]string, 0, len(c.providers))
	for name := range c.providers {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Models returns the public model ids allow-listed for provider.
func (c *Catalog) Models(provider string) []string {
	p, ok := c.providers[provider]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(p.Models))
	for _, m := range p.Models {
		out = append(out, m.ID)
	}
	return out
}

// PriceFor returns the price table entry of an allow-listed model.
func (c *Catalog) PriceFor(provider, model string) (Price, bool) {
	p, ok := c.providers[provider]
	if !ok {
		return Price{}, false
	}
	m, ok := p.model(model)
	return m.Price, ok
}
