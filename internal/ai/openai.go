package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
)

const (
	defaultOpenAIBaseURL = "https://api.openai.com"

	endpointChat      = "chat.completions"
	endpointResponses = "responses"

	// responsesHint appears in the chat endpoint's error body for models that
	// only serve the responses API.
	responsesHint = "v1/responses"
)

// openAIProvider talks to the OpenAI REST API directly. Chat completions are
// tried first; models that only serve /v1/responses are retried there once.
type openAIProvider struct {
	baseURL string
	hc      *http.Client
}

func newOpenAIProvider(baseURL string, hc *http.Client) *openAIProvider {
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	return &openAIProvider{baseURL: strings.TrimRight(baseURL, "/"), hc: hc}
}

type openAIChatRequest struct {
	Model               string              `json:"model"`
	Messages            []openAIChatMessage `json:"messages"`
	ResponseFormat      map[string]string   `json:"response_format"`
	MaxCompletionTokens int                 `json:"max_completion_tokens,omitempty"`
}

type openAIChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIChatResponse struct {
	Choices []struct {
		Message struct {
			Content json.RawMessage `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage map[string]any `json:"usage"`
}

type openAIResponsesRequest struct {
	Model           string         `json:"model"`
	Input           string         `json:"input"`
	MaxOutputTokens int            `json:"max_output_tokens,omitempty"`
	Text            map[string]any `json:"text"`
}

type openAIResponsesResponse struct {
	Status            string `json:"status"`
	IncompleteDetails *struct {
		Reason string `json:"reason"`
	} `json:"incomplete_details"`
	OutputText string `json:"output_text"`
	Output     []struct {
		Type    string         `json:"type"`
		Content []contentBlock `json:"content"`
	} `json:"output"`
	Usage map[string]any `json:"usage"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func (p *openAIProvider) headers(apiKey string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + apiKey}
}

func (p *openAIProvider) generate(ctx context.Context, c call) (*reply, error) {
	if c.Endpoint == endpointResponses {
		return p.responses(ctx, c)
	}
	rep, err := p.chat(ctx, c)
	var he *httpError
	if err != nil && errors.As(err, &he) && strings.Contains(he.Body, responsesHint) {
		rep, err = p.responses(ctx, c)
		if rep != nil {
			rep.Fallback = true
		}
	}
	return rep, err
}

func (p *openAIProvider) chat(ctx context.Context, c call) (*reply, error) {
	var out openAIChatResponse
	status, err := postJSON(ctx, p.hc, p.baseURL+"/v1/chat/completions", p.headers(c.APIKey), openAIChatRequest{
		Model:               c.Model,
		Messages:            []openAIChatMessage{{Role: "user", Content: c.Prompt}},
		ResponseFormat:      map[string]string{"type": "json_object"},
		MaxCompletionTokens: c.MaxOutputTokens,
	}, &out)
	if err != nil {
		return nil, err
	}
	rep := &reply{Endpoint: endpointChat, HTTPStatus: status, Usage: out.Usage}
	if len(out.Choices) > 0 {
		ch := out.Choices[0]
		rep.Text = messageText(ch.Message.Content)
		rep.FinishReason = ch.FinishReason
		rep.Truncated = ch.FinishReason == "length"
	}
	return rep, nil
}

func (p *openAIProvider) responses(ctx context.Context, c call) (*reply, error) {
	var out openAIResponsesResponse
	status, err := postJSON(ctx, p.hc, p.baseURL+"/v1/responses", p.headers(c.APIKey), openAIResponsesRequest{
		Model:           c.Model,
		Input:           c.Prompt,
		MaxOutputTokens: c.MaxOutputTokens,
		Text:            map[string]any{"format": map[string]string{"type": "json_object"}},
	}, &out)
	if err != nil {
		return nil, err
	}
	rep := &reply{Endpoint: endpointResponses, HTTPStatus: status, Usage: out.Usage, Text: out.OutputText}
	if rep.Text == "" {
		var b strings.Builder
		for _, item := range out.Output {
			for _, block := range item.Content {
				if block.Type == "output_text" || block.Type == "text" {
					b.WriteString(block.Text)
				}
			}
		}
		rep.Text = b.String()
	}
	rep.FinishReason = out.Status
	if out.IncompleteDetails != nil && out.IncompleteDetails.Reason != "" {
		rep.FinishReason = out.IncompleteDetails.Reason
	}
	rep.Truncated = out.Status == "incomplete"
	return rep, nil
}

// messageText accepts message content as a string or a list of typed blocks.
func messageText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	var blocks []contentBlock
	if json.Unmarshal(raw, &blocks) != nil {
		return ""
	}
	var b strings.Builder
	for _, block := range blocks {
		if block.Type == "text" || block.Type == "output_text" {
			b.WriteString(block.Text)
		}
	}
	return b.String()
}
