package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const endpointGemini = "generateContent"

type geminiGenerateFunc func(ctx context.Context, model, prompt string, maxTokens int32) (*genai.GenerateContentResponse, error)

// geminiProvider calls Gemini models through the genai SDK.
type geminiProvider struct {
	client *genai.Client
	send   geminiGenerateFunc
}

func newGeminiProvider(ctx context.Context, apiKey string) (*geminiProvider, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	p := &geminiProvider{client: client}
	p.send = p.sdkGenerate
	return p, nil
}

func (p *geminiProvider) Close() error {
	if p.client == nil {
		return nil
	}
	return p.client.Close()
}

func (p *geminiProvider) sdkGenerate(ctx context.Context, model, prompt string, maxTokens int32) (*genai.GenerateContentResponse, error) {
	m := p.client.GenerativeModel(model)
	// Force JSON response for structured parsing.
	m.ResponseMIMEType = "application/json"
	m.SetTemperature(0.4)
	m.SetMaxOutputTokens(maxTokens)
	return m.GenerateContent(ctx, genai.Text(prompt))
}

func (p *geminiProvider) generate(ctx context.Context, c call) (*reply, error) {
	resp, err := p.send(ctx, c.Model, c.Prompt, int32(c.MaxOutputTokens))
	if err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) {
			return nil, &httpError{Status: gerr.Code, Body: gerr.Message}
		}
		return nil, err
	}

	rep := &reply{Endpoint: endpointGemini, HTTPStatus: 200}
	if u := resp.UsageMetadata; u != nil {
		rep.Usage = map[string]any{
			"promptTokenCount":     int64(u.PromptTokenCount),
			"candidatesTokenCount": int64(u.CandidatesTokenCount),
			"totalTokenCount":      int64(u.TotalTokenCount),
		}
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		if len(resp.Candidates) > 0 {
			rep.FinishReason = finishReasonName(resp.Candidates[0].FinishReason)
		}
		return rep, nil
	}

	cand := resp.Candidates[0]
	var text strings.Builder
	for _, part := range cand.Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			text.WriteString(string(txt))
		}
	}
	rep.Text = text.String()
	rep.FinishReason = finishReasonName(cand.FinishReason)
	rep.Truncated = cand.FinishReason == genai.FinishReasonMaxTokens
	return rep, nil
}

func finishReasonName(fr genai.FinishReason) string {
	switch fr {
	case genai.FinishReasonStop:
		return "STOP"
	case genai.FinishReasonMaxTokens:
		return "MAX_TOKENS"
	case genai.FinishReasonSafety:
		return "SAFETY"
	case genai.FinishReasonRecitation:
		return "RECITATION"
	case genai.FinishReasonOther:
		return "OTHER"
	}
	return ""
}
