// Package inference sends a single chat-completion request to an
// OpenAI-compatible provider such as OpenRouter.
package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"prereg/pkg/domain"
)

const (
	DefaultBaseURL   = "https://openrouter.ai/api/v1"
	DefaultModel     = "deepseek/deepseek-chat-v3-0324"
	DefaultTimeout   = 120 * time.Second
	DefaultMaxTokens = 8000
	DefaultSiteURL   = "http://localhost:8080"
	DefaultSiteName  = RegistrationSiteName

	// X-Title values identifying each phase to the provider.
	RegistrationSiteName = "Emergence Pre-Registration"
	ComparisonSiteName   = "Emergence Run Comparison"

	maxResponseBytes = 10 * 1024 * 1024
	maxErrorBody     = 4096
)

// Outcome labels passed to an Observer.
const (
	OutcomeOK        = "ok"
	OutcomeHTTPError = "http_error"
	OutcomeTransport = "transport_error"
	OutcomeEnvelope  = "envelope_error"
)

// Request is one system+user prompt pair.
type Request struct {
	Model       string
	System      string
	Prompt      string
	Temperature float64
	MaxTokens   int
}

// Response is the assistant text of the first choice.
type Response struct {
	Content string
	Model   string
	Elapsed time.Duration
}

// Completer is satisfied by Client and by test doubles.
type Completer interface {
	Complete(ctx context.Context, req Request) (Response, error)
}

// Observer receives one call per request.
type Observer interface {
	ObserveInference(model, outcome string, elapsed time.Duration)
}

// Config configures a Client. Zero values fall back to the defaults above.
type Config struct {
	APIKey     string
	BaseURL    string
	SiteURL    string
	SiteName   string
	Timeout    time.Duration
	HTTPClient *http.Client
	Observer   Observer
	Logger     *zap.Logger
}

// Client talks to a chat-completions endpoint. It never retries.
type Client struct {
	apiKey     string
	baseURL    string
	siteURL    string
	siteName   string
	timeout    time.Duration
	httpClient *http.Client
	observer   Observer
	logger     *zap.Logger
}

// New validates cfg and builds a Client.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, domain.ConfigError{Key: "OPENROUTER_API_KEY", Reason: "no API key set (also checked LLM_DEFAULT_API_KEY)"}
	}
	c := &Client{
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		siteURL:    cfg.SiteURL,
		siteName:   cfg.SiteName,
		timeout:    cfg.Timeout,
		httpClient: cfg.HTTPClient,
		observer:   cfg.Observer,
		logger:     cfg.Logger,
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.siteURL == "" {
		c.siteURL = DefaultSiteURL
	}
	if c.siteName == "" {
		c.siteName = DefaultSiteName
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{}
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	c.logger = c.logger.Named("inference")
	return c, nil
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []message       `json:"messages"`
	Temperature    float64         `json:"temperature"`
	MaxTokens      int             `json:"max_tokens"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message message `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Complete sends req and returns the first choice's content. Transport
// failures and non-2xx statuses are *domain.InferenceError; an unreadable
// envelope is *domain.MalformedResponseError carrying the body.
func (c *Client) Complete(ctx context.Context, req Request) (Response, error) {
	if req.Model == "" {
		req.Model = DefaultModel
	}
	if req.MaxTokens <= 0 {
		req.MaxTokens = DefaultMaxTokens
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	payload, err := json.Marshal(chatRequest{
		Model: req.Model,
		Messages: []message{
			{Role: "system", Content: req.System},
			{Role: "user", Content: req.Prompt},
		},
		Temperature:    req.Temperature,
		MaxTokens:      req.MaxTokens,
		ResponseFormat: &responseFormat{Type: "json_object"},
	})
	if err != nil {
		return Response{}, fmt.Errorf("encode inference request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return Response{}, &domain.InferenceError{Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("HTTP-Referer", c.siteURL)
	httpReq.Header.Set("X-Title", c.siteName)

	c.logger.Info("querying model", zap.String("model", req.Model), zap.String("url", c.baseURL), zap.Int("prompt_len", len(req.Prompt)))
	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.observe(req.Model, OutcomeTransport, start)
		return Response{}, &domain.InferenceError{Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		c.observe(req.Model, OutcomeTransport, start)
		return Response{}, &domain.InferenceError{StatusCode: resp.StatusCode, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.observe(req.Model, OutcomeHTTPError, start)
		return Response{}, &domain.InferenceError{StatusCode: resp.StatusCode, Body: clip(string(body))}
	}

	var decoded chatResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		c.observe(req.Model, OutcomeEnvelope, start)
		return Response{}, &domain.MalformedResponseError{Reason: "inference envelope is not JSON", Raw: string(body), Err: err}
	}
	if decoded.Error != nil {
		c.observe(req.Model, OutcomeHTTPError, start)
		return Response{}, &domain.InferenceError{StatusCode: resp.StatusCode, Body: decoded.Error.Message}
	}
	if len(decoded.Choices) == 0 {
		c.observe(req.Model, OutcomeEnvelope, start)
		return Response{}, &domain.MalformedResponseError{Reason: "inference envelope has no choices", Raw: string(body)}
	}

	elapsed := c.observe(req.Model, OutcomeOK, start)
	model := decoded.Model
	if model == "" {
		model = req.Model
	}
	c.logger.Info("response received", zap.Duration("elapsed", elapsed), zap.Int("content_len", len(decoded.Choices[0].Message.Content)))
	return Response{Content: decoded.Choices[0].Message.Content, Model: model, Elapsed: elapsed}, nil
}

func (c *Client) observe(model, outcome string, start time.Time) time.Duration {
	elapsed := time.Since(start)
	if c.observer != nil {
		c.observer.ObserveInference(model, outcome, elapsed)
	}
	return elapsed
}

func clip(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > maxErrorBody {
		return s[:maxErrorBody] + "..."
	}
	return s
}
