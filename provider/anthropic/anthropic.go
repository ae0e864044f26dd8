// Package anthropic implements the provider surface for the Anthropic
// Messages API, including the stream translator for its SSE event shape.
package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/turnwire/turnwire/internal/httpx"
	"github.com/turnwire/turnwire/provider"
	"github.com/turnwire/turnwire/session"
	"github.com/turnwire/turnwire/tools"
)

const (
	// ProviderID is the registry key for this provider.
	ProviderID = "anthropic"

	defaultBaseURL         = "https://api.anthropic.com/v1"
	defaultModel           = "claude-sonnet-4-5"
	defaultMaxOutputTokens = 8192
	apiVersion             = "2023-06-01"
)

// Provider talks to the Anthropic Messages API. Configuration is immutable
// after New; per-stream state lives in translators.
type Provider struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
}

// Option configures a Provider.
type Option func(*Provider)

// WithAPIKey overrides the key read from ANTHROPIC_API_KEY.
func WithAPIKey(key string) Option {
	return func(p *Provider) { p.apiKey = key }
}

// WithBaseURL points the provider at a different endpoint, e.g. a proxy or
// a test server. The value should include the version prefix ("/v1").
func WithBaseURL(url string) Option {
	return func(p *Provider) { p.baseURL = url }
}

// WithModel overrides the default model id.
func WithModel(model string) Option {
	return func(p *Provider) { p.model = model }
}

// WithHTTPClient substitutes the HTTP client used for all calls.
func WithHTTPClient(client *http.Client) Option {
	return func(p *Provider) { p.client = client }
}

// New builds a Provider, reading ANTHROPIC_API_KEY and ANTHROPIC_BASE_URL
// from the environment for anything not set via options.
func New(opts ...Option) *Provider {
	p := &Provider{
		apiKey:  os.Getenv("ANTHROPIC_API_KEY"),
		baseURL: defaultBaseURL,
		model:   defaultModel,
		client:  &http.Client{Timeout: 10 * time.Minute},
	}
	if url := os.Getenv("ANTHROPIC_BASE_URL"); url != "" {
		p.baseURL = url
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Provider) ID() string { return ProviderID }

func (p *Provider) NewTranslator() provider.Translator { return newTranslator() }

// DefaultModelConfig returns the configured model with its stock limits.
func (p *Provider) DefaultModelConfig() provider.ModelConfig {
	return provider.ModelConfig{
		ModelID:         p.model,
		MaxOutputTokens: defaultMaxOutputTokens,
	}
}

// SendMessage POSTs the translated session to /messages and hands back the
// open SSE body.
func (p *Provider) SendMessage(ctx context.Context, s *session.Session, cfg provider.ModelConfig, defs []tools.Definition) (io.ReadCloser, error) {
	if p.apiKey == "" {
		return nil, &provider.ExpectedError{
			StatusCode: 401,
			ErrorType:  "authentication_error",
			Message:    "no API key configured; set ANTHROPIC_API_KEY",
		}
	}

	request, err := p.buildRequest(s, cfg, defs)
	if err != nil {
		return nil, err
	}

	response, err := httpx.PostStream(ctx, p.client, p.baseURL+"/messages", request, p.headers()...)
	if err != nil {
		return nil, translateHTTPError(err)
	}
	return response.Body, nil
}

// Models lists the models visible to the configured key.
func (p *Provider) Models(ctx context.Context) ([]provider.ModelInfo, error) {
	listed, err := httpx.GetJSON[modelsResponse](ctx, p.client, p.baseURL+"/models", p.headers()...)
	if err != nil {
		return nil, translateHTTPError(err)
	}
	models := make([]provider.ModelInfo, 0, len(listed.Data))
	for _, model := range listed.Data {
		models = append(models, provider.ModelInfo{ID: model.ID, DisplayName: model.DisplayName})
	}
	return models, nil
}

func (p *Provider) headers() []httpx.Header {
	return []httpx.Header{
		{Key: "x-api-key", Value: p.apiKey},
		{Key: "anthropic-version", Value: apiVersion},
	}
}

// translateHTTPError upgrades a non-2xx response into a typed provider error
// when the body carries the standard error envelope.
func translateHTTPError(err error) error {
	var statusErr *httpx.StatusError
	if !errors.As(err, &statusErr) {
		return err
	}

	envelope := errorEnvelope{}
	if json.Unmarshal(statusErr.Body, &envelope) == nil && envelope.Error != nil {
		return &provider.ExpectedError{
			StatusCode: statusErr.StatusCode,
			ErrorType:  envelope.Error.Type,
			Message:    envelope.Error.Message,
		}
	}
	return &provider.ServerSideHTTPError{
		StatusCode: statusErr.StatusCode,
		Body:       string(statusErr.Body),
	}
}
