package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/openai/openai-go/v2"
	oaioption "github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/shared"
)

const (
	defaultGatewayBaseURL = "https://ai-gateway.vercel.sh/v1"
	endpointGateway       = "gateway.chat.completions"
)

// gatewayProvider routes vendor models through one OpenAI-compatible gateway.
// SDK retries are disabled; the client owns the overload retry.
type gatewayProvider struct {
	client openai.Client
}

func newGatewayProvider(baseURL, apiKey string, hc *http.Client) *gatewayProvider {
	if baseURL == "" {
		baseURL = defaultGatewayBaseURL
	}
	return &gatewayProvider{client: openai.NewClient(
		oaioption.WithAPIKey(apiKey),
		oaioption.WithBaseURL(baseURL),
		oaioption.WithHTTPClient(hc),
		oaioption.WithMaxRetries(0),
	)}
}

func (p *gatewayProvider) generate(ctx context.Context, c call) (*reply, error) {
	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(c.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{openai.UserMessage(c.Prompt)},
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
	}
	if c.MaxOutputTokens > 0 {
		params.MaxTokens = openai.Int(int64(c.MaxOutputTokens))
	}

	resp, err := p.client.Chat.Completions.New(ctx, params, oaioption.WithAPIKey(c.APIKey))
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return nil, &httpError{Status: apiErr.StatusCode, Body: apiErr.Message}
		}
		return nil, err
	}

	rep := &reply{Endpoint: endpointGateway, HTTPStatus: http.StatusOK, Usage: gatewayUsage(resp.Usage)}
	if len(resp.Choices) > 0 {
		ch := resp.Choices[0]
		rep.Text = ch.Message.Content
		rep.FinishReason = ch.FinishReason
		rep.Truncated = ch.FinishReason == "length"
	}
	return rep, nil
}

// gatewayUsage keeps extra fields such as a gateway-reported cost.
func gatewayUsage(u openai.CompletionUsage) map[string]any {
	out := map[string]any{}
	if raw := u.RawJSON(); raw != "" {
		_ = json.Unmarshal([]byte(raw), &out)
	}
	if _, ok := out["prompt_tokens"]; !ok && (u.PromptTokens > 0 || u.CompletionTokens > 0) {
		out["prompt_tokens"] = u.PromptTokens
		out["completion_tokens"] = u.CompletionTokens
		out["total_tokens"] = u.TotalTokens
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
