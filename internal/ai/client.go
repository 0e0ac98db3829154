// README: Generation client: allow-list check, per-call timeout, one malformed-output retry, usage and metrics.
package ai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"tripbench/internal/metrics"
)

const (
	DefaultTimeout = 90 * time.Second
	MinTimeout     = 10 * time.Second
	MaxTimeout     = 180 * time.Second

	DefaultMaxOutputTokens = 8192

	diagnosticLimit = 400
)

// Failure codes that do not carry a provider prefix.
const (
	CodeProviderNotSupported = "PROVIDER_NOT_SUPPORTED"
	CodeModelNotAllowed      = "MODEL_NOT_ALLOWED"
)

// Suffixes of provider-prefixed failure codes, e.g. GEMINI_PARSE_FAILED.
const (
	SuffixAPIKeyMissing   = "_API_KEY_MISSING"
	SuffixRequestFailed   = "_REQUEST_FAILED"
	SuffixRequestTimeout  = "_REQUEST_TIMEOUT"
	SuffixParseFailed     = "_PARSE_FAILED"
	SuffixOutputTruncated = "_OUTPUT_TRUNCATED"
	SuffixEmptyResponse   = "_EMPTY_RESPONSE"
	// Set by callers that reject a parsed itinerary.
	SuffixOutputInvalid   = "_OUTPUT_INVALID"
)

// Retry reasons recorded in Meta.Retries.
const (
	RetryParse     = "parse"
	RetryTruncated = "truncated"
	RetryOverload  = "overload"
	RetryFallback  = "responses_fallback"
)

// ProviderCode builds the provider-prefixed failure code.
func ProviderCode(provider, suffix string) string {
	return strings.ToUpper(provider) + suffix
}

type Request struct {
	Prompt   string
	Provider string
	Model    string
	// Timeout of one provider call. Zero means the provider default.
	Timeout time.Duration
	// MaxOutputTokens zero means the client default.
	MaxOutputTokens int
}

type Meta struct {
	Provider        string   `json:"provider"`
	Model           string   `json:"model"`
	ProviderModelID string   `json:"providerModelId"`
	Endpoint        string   `json:"endpoint,omitempty"`
	LatencyMs       int64    `json:"latencyMs"`
	Attempts        int      `json:"attempts"`
	Retries         []string `json:"retries,omitempty"`
	FinishReason    string   `json:"finishReason,omitempty"`
	HTTPStatus      int      `json:"httpStatus,omitempty"`
	Usage           Usage    `json:"usage"`
	RawText         string   `json:"-"`
}

type Result struct {
	Data map[string]any
	Meta Meta
}

// Failure is the error value returned by Generate.
type Failure struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"httpStatus,omitempty"`
	Provider   string `json:"provider"`
	Model      string `json:"model"`
	Details    string `json:"details,omitempty"`
	Meta       *Meta  `json:"meta,omitempty"`
}

func (f *Failure) Error() string {
	return f.Code + ": " + f.Message
}

// AsFailure unwraps err into a Failure, wrapping unknown errors as request failures.
func AsFailure(err error, provider, model string) *Failure {
	var f *Failure
	if errors.As(err, &f) {
		return f
	}
	return &Failure{Code: ProviderCode(provider, SuffixRequestFailed), Message: err.Error(), Provider: provider, Model: model}
}

// provider is one request/response translation.
type provider interface {
	generate(ctx context.Context, c call) (*reply, error)
}

type call struct {
	APIKey          string
	Prompt          string
	Model           string
	MaxOutputTokens int
	// Endpoint pins the endpoint that answered a previous attempt.
	Endpoint string
}

type reply struct {
	Text         string
	FinishReason string
	Truncated    bool
	HTTPStatus   int
	Usage        map[string]any
	Endpoint     string
	// Fallback is set when the attempt switched endpoints.
	Fallback bool
}

// httpError is a non-2xx provider response.
type httpError struct {
	Status int
	Body   string
}

func (e *httpError) Error() string {
	return fmt.Sprintf("status %d: %s", e.Status, e.Body)
}

func (e *httpError) overloaded() bool {
	return e.Status >= 500 || e.Status == http.StatusTooManyRequests
}

type variant struct {
	spec            *ProviderSpec
	impl            provider
	apiKey          string
	retryOnOverload bool
}

type ClientConfig struct {
	GeminiAPIKey     string
	OpenAIAPIKey     string
	OpenAIBaseURL    string
	AnthropicAPIKey  string
	AnthropicBaseURL string
	GatewayAPIKey    string
	GatewayBaseURL   string
	DefaultTimeout   time.Duration
	MaxOutputTokens  int
	HTTPClient       *http.Client
}

type Client struct {
	catalog  *Catalog
	cfg      ClientConfig
	variants map[string]*variant
	closers  []func() error
}

// NewClient wires one variant per catalog provider.
func NewClient(ctx context.Context, cfg ClientConfig, catalog *Catalog) (*Client, error) {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = NewPooledHTTPClient(16)
	}
	c := &Client{catalog: catalog, cfg: cfg, variants: map[string]*variant{}}

	var gem provider
	if cfg.GeminiAPIKey != "" {
		g, err := newGeminiProvider(ctx, cfg.GeminiAPIKey)
		if err != nil {
			return nil, err
		}
		c.closers = append(c.closers, g.Close)
		gem = g
	}
	oai := newOpenAIProvider(cfg.OpenAIBaseURL, cfg.HTTPClient)
	ant := newAnthropicProvider(cfg.AnthropicBaseURL, cfg.HTTPClient)
	gw := newGatewayProvider(cfg.GatewayBaseURL, cfg.GatewayAPIKey, cfg.HTTPClient)

	for _, name := range catalog.Providers() {
		spec, _ := catalog.provider(name)
		v := &variant{spec: spec}
		switch spec.Kind {
		case KindGemini:
			v.impl, v.apiKey = gem, cfg.GeminiAPIKey
		case KindOpenAI:
			v.impl, v.apiKey = oai, cfg.OpenAIAPIKey
		case KindAnthropic:
			v.impl, v.apiKey = ant, cfg.AnthropicAPIKey
		case KindGateway:
			v.impl, v.apiKey, v.retryOnOverload = gw, cfg.GatewayAPIKey, true
		}
		c.variants[name] = v
	}
	return c, nil
}

func (c *Client) Close() error {
	var errs []error
	for _, fn := range c.closers {
		if err := fn(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (c *Client) Catalog() *Catalog { return c.catalog }

// resolveTimeout picks the request, provider or global timeout and clamps it.
func (c *Client) resolveTimeout(spec *ProviderSpec, requested time.Duration) time.Duration {
	t := DefaultTimeout
	if c.cfg.DefaultTimeout > 0 {
		t = c.cfg.DefaultTimeout
	}
	if spec.DefaultTimeout > 0 {
		t = spec.DefaultTimeout
	}
	if requested > 0 {
		t = requested
	}
	return clampTimeout(t)
}

func clampTimeout(t time.Duration) time.Duration {
	if t < MinTimeout {
		return MinTimeout
	}
	if t > MaxTimeout {
		return MaxTimeout
	}
	return t
}

// Generate runs one itinerary generation. A non-nil error is always a *Failure.
func (c *Client) Generate(ctx context.Context, req Request) (*Result, error) {
	providerName := strings.ToLower(strings.TrimSpace(req.Provider))
	v, ok := c.variants[providerName]
	if !ok {
		return nil, &Failure{Code: CodeProviderNotSupported, Message: fmt.Sprintf("provider %q is not supported", req.Provider), Provider: providerName, Model: req.Model}
	}
	model, ok := v.spec.model(req.Model)
	if !ok {
		return nil, &Failure{Code: CodeModelNotAllowed, Message: fmt.Sprintf("model %q is not allowed for %s", req.Model, providerName), Provider: providerName, Model: req.Model}
	}
	meta := Meta{Provider: providerName, Model: model.ID, ProviderModelID: model.wireID()}
	if v.apiKey == "" || v.impl == nil {
		return nil, c.fail(&meta, time.Now(), &Failure{Code: ProviderCode(providerName, SuffixAPIKeyMissing), Message: providerName + " API key is not configured"})
	}

	started := time.Now()
	timeout := c.resolveTimeout(v.spec, req.Timeout)
	maxTokens := req.MaxOutputTokens
	if maxTokens <= 0 {
		maxTokens = c.cfg.MaxOutputTokens
	}
	if maxTokens <= 0 {
		maxTokens = DefaultMaxOutputTokens
	}

	var acc usageAccumulator
	price := model.Price
	prompt := req.Prompt
	endpoint := ""
	overloadRetried := false
	for attempt := 1; attempt <= 2; attempt++ {
		meta.Attempts = attempt
		rep, err := c.callVariant(ctx, v, &meta, &overloadRetried, timeout, call{
			APIKey:          v.apiKey,
			Prompt:          prompt,
			Model:           model.wireID(),
			MaxOutputTokens: maxTokens,
			Endpoint:        endpoint,
		})
		if err != nil {
			meta.Usage = acc.finish(&price)
			return nil, c.fail(&meta, started, c.transportFailure(ctx, providerName, timeout, err))
		}
		acc.add(rep.Usage)
		endpoint = rep.Endpoint
		if rep.Fallback {
			meta.Retries = append(meta.Retries, RetryFallback)
		}
		meta.Endpoint, meta.FinishReason, meta.HTTPStatus, meta.RawText = rep.Endpoint, rep.FinishReason, rep.HTTPStatus, rep.Text

		if rep.Truncated {
			if attempt == 1 {
				c.retry(&meta, RetryTruncated)
				prompt = req.Prompt + TruncationRetrySuffix
				continue
			}
			meta.Usage = acc.finish(&price)
			return nil, c.fail(&meta, started, &Failure{
				Code:       ProviderCode(providerName, SuffixOutputTruncated),
				Message:    "output was truncated after retry",
				HTTPStatus: rep.HTTPStatus,
				Details:    diagnostics(rep),
			})
		}

		data, perr := ExtractJSON(rep.Text)
		if perr == nil {
			meta.Usage = acc.finish(&price)
			meta.LatencyMs = time.Since(started).Milliseconds()
			c.observe(&meta, "success")
			return &Result{Data: data, Meta: meta}, nil
		}
		if attempt == 1 {
			c.retry(&meta, RetryParse)
			prompt = req.Prompt + StrictJSONRetrySuffix
			continue
		}
		meta.Usage = acc.finish(&price)
		code, msg := ProviderCode(providerName, SuffixParseFailed), "output is not a JSON object after retry"
		if errors.Is(perr, ErrEmptyOutput) {
			code, msg = ProviderCode(providerName, SuffixEmptyResponse), "provider returned no text after retry"
		}
		return nil, c.fail(&meta, started, &Failure{Code: code, Message: msg, HTTPStatus: rep.HTTPStatus, Details: diagnostics(rep)})
	}
	panic("unreachable")
}

// callVariant performs one attempt under its own deadline. Gateway variants get
// one extra call per Generate when an answer is a 5xx or 429; overloadRetried
// records that it was spent.
func (c *Client) callVariant(ctx context.Context, v *variant, meta *Meta, overloadRetried *bool, timeout time.Duration, cl call) (*reply, error) {
	rep, err := c.once(ctx, v, timeout, cl)
	var he *httpError
	if err != nil && !*overloadRetried && v.retryOnOverload && errors.As(err, &he) && he.overloaded() && ctx.Err() == nil {
		*overloadRetried = true
		c.retry(meta, RetryOverload)
		rep, err = c.once(ctx, v, timeout, cl)
	}
	return rep, err
}

func (c *Client) once(ctx context.Context, v *variant, timeout time.Duration, cl call) (*reply, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	rep, err := v.impl.generate(attemptCtx, cl)
	if err != nil && ctx.Err() == nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
		return nil, fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
	}
	return rep, err
}

func (c *Client) transportFailure(ctx context.Context, provider string, timeout time.Duration, err error) *Failure {
	var ne net.Error
	if ctx.Err() == nil && (errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout())) {
		return &Failure{
			Code:    ProviderCode(provider, SuffixRequestTimeout),
			Message: fmt.Sprintf("provider did not answer within %s", timeout),
		}
	}
	f := &Failure{Code: ProviderCode(provider, SuffixRequestFailed), Message: "provider request failed"}
	var he *httpError
	if errors.As(err, &he) {
		f.HTTPStatus = he.Status
		f.Message = fmt.Sprintf("provider returned HTTP %d", he.Status)
		f.Details = truncateText(he.Body, diagnosticLimit)
		return f
	}
	f.Details = truncateText(err.Error(), diagnosticLimit)
	return f
}

func (c *Client) retry(meta *Meta, reason string) {
	meta.Retries = append(meta.Retries, reason)
	metrics.ProviderRetries.WithLabelValues(meta.Provider, reason).Inc()
}

func (c *Client) fail(meta *Meta, started time.Time, f *Failure) *Failure {
	meta.LatencyMs = time.Since(started).Milliseconds()
	f.Provider, f.Model = meta.Provider, meta.Model
	if f.HTTPStatus == 0 {
		f.HTTPStatus = meta.HTTPStatus
	}
	m := *meta
	f.Meta = &m
	c.observe(meta, f.Code)
	return f
}

func (c *Client) observe(meta *Meta, outcome string) {
	metrics.ProviderCalls.WithLabelValues(meta.Provider, outcome).Inc()
	metrics.ProviderLatency.WithLabelValues(meta.Provider).Observe(float64(meta.LatencyMs) / 1000)
}

func diagnostics(rep *reply) string {
	var b strings.Builder
	if rep.FinishReason != "" {
		b.WriteString("finish_reason=")
		b.WriteString(rep.FinishReason)
		b.WriteString("; ")
	}
	text := strings.TrimSpace(rep.Text)
	if text == "" {
		text = "(empty output)"
	}
	b.WriteString(text)
	return truncateText(b.String(), diagnosticLimit)
}
