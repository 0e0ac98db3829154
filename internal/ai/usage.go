package ai

import (
	"encoding/json"
	"math"
	"strconv"

	"tripbench/internal/types"
)

// Usage is the provider-independent token and cost record of one call.
type Usage struct {
	PromptTokens     *int     `json:"promptTokens,omitempty"`
	CompletionTokens *int     `json:"completionTokens,omitempty"`
	TotalTokens      *int     `json:"totalTokens,omitempty"`
	EstimatedCostUSD *float64 `json:"estimatedCostUsd,omitempty"`
	CostSource       string   `json:"costSource,omitempty"`
}

const (
	CostFromProvider   = "provider"
	CostFromPriceTable = "price_table"
)

var (
	promptTokenKeys     = []string{"prompt_tokens", "input_tokens", "promptTokenCount", "promptTokens"}
	completionTokenKeys = []string{"completion_tokens", "output_tokens", "candidatesTokenCount", "completionTokens"}
	totalTokenKeys      = []string{"total_tokens", "totalTokenCount", "totalTokens"}
	costKeys            = []string{"cost", "total_cost", "estimated_cost", "costUsd"}
)

// usageAccumulator sums usage over the attempts of one call.
type usageAccumulator struct {
	prompt, completion, total *int
	reported                  *float64
}

func (a *usageAccumulator) add(raw map[string]any) {
	if raw == nil {
		return
	}
	a.prompt = addInt(a.prompt, lookupInt(raw, promptTokenKeys))
	a.completion = addInt(a.completion, lookupInt(raw, completionTokenKeys))
	a.total = addInt(a.total, lookupInt(raw, totalTokenKeys))
	if c := lookupFloat(raw, costKeys); c != nil {
		sum := *c
		if a.reported != nil {
			sum += *a.reported
		}
		a.reported = &sum
	}
}

// finish produces the canonical usage, pricing tokens with price when the
// provider did not report a cost.
func (a *usageAccumulator) finish(price *Price) Usage {
	u := Usage{PromptTokens: a.prompt, CompletionTokens: a.completion, TotalTokens: a.total}
	if u.TotalTokens == nil && (u.PromptTokens != nil || u.CompletionTokens != nil) {
		t := deref(u.PromptTokens) + deref(u.CompletionTokens)
		u.TotalTokens = &t
	}
	switch {
	case a.reported != nil:
		c := types.RoundUSD(*a.reported)
		u.EstimatedCostUSD = &c
		u.CostSource = CostFromProvider
	case price != nil && (u.PromptTokens != nil || u.CompletionTokens != nil):
		c := price.Cost(deref(u.PromptTokens), deref(u.CompletionTokens))
		u.EstimatedCostUSD = &c
		u.CostSource = CostFromPriceTable
	}
	return u
}

// Price is USD per million tokens.
type Price struct {
	InputPerMillion  float64 `yaml:"inputPerMillion" json:"inputPerMillion"`
	OutputPerMillion float64 `yaml:"outputPerMillion" json:"outputPerMillion"`
}

func (p Price) Cost(promptTokens, completionTokens int) float64 {
	return types.RoundUSD((p.InputPerMillion*float64(promptTokens) + p.OutputPerMillion*float64(completionTokens)) / 1e6)
}

func lookupInt(raw map[string]any, keys []string) *int {
	f := lookupFloat(raw, keys)
	if f == nil || *f < 0 {
		return nil
	}
	n := int(math.Round(*f))
	return &n
}

func lookupFloat(raw map[string]any, keys []string) *float64 {
	for _, k := range keys {
		var f float64
		switch v := raw[k].(type) {
		case float64:
			f = v
		case int:
			f = float64(v)
		case int32:
			f = float64(v)
		case int64:
			f = float64(v)
		case json.Number:
			x, err := v.Float64()
			if err != nil {
				continue
			}
			f = x
		case string:
			x, err := strconv.ParseFloat(v, 64)
			if err != nil {
				continue
			}
			f = x
		default:
			continue
		}
		if types.IsFinite(f) {
			return &f
		}
	}
	return nil
}

func addInt(acc, v *int) *int {
	if v == nil {
		return acc
	}
	sum := *v
	if acc != nil {
		sum += *acc
	}
	return &sum
}

func deref(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}
