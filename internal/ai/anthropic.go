package ai

import (
	"context"
	"net/http"
	"strings"
)

const (
	defaultAnthropicBaseURL = "https://api.anthropic.com"
	anthropicVersion        = "2023-06-01"
	endpointMessages        = "messages"
)

type anthropicProvider struct {
	baseURL string
	hc      *http.Client
}

func newAnthropicProvider(baseURL string, hc *http.Client) *anthropicProvider {
	if baseURL == "" {
		baseURL = defaultAnthropicBaseURL
	}
	return &anthropicProvider{baseURL: strings.TrimRight(baseURL, "/"), hc: hc}
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content    []contentBlock `json:"content"`
	StopReason string         `json:"stop_reason"`
	Usage      map[string]any `json:"usage"`
}

func (p *anthropicProvider) generate(ctx context.Context, c call) (*reply, error) {
	var out anthropicResponse
	status, err := postJSON(ctx, p.hc, p.baseURL+"/v1/messages", map[string]string{
		"x-api-key":         c.APIKey,
		"anthropic-version": anthropicVersion,
	}, anthropicRequest{
		Model:     c.Model,
		MaxTokens: c.MaxOutputTokens,
		Messages:  []anthropicMessage{{Role: "user", Content: c.Prompt}},
	}, &out)
	if err != nil {
		return nil, err
	}

	var text strings.Builder
	for _, block := range out.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	return &reply{
		Text:         text.String(),
		FinishReason: out.StopReason,
		Truncated:    out.StopReason == "max_tokens",
		HTTPStatus:   status,
		Usage:        out.Usage,
		Endpoint:     endpointMessages,
	}, nil
}
