package cdbsapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"cdbs/internal/config"
	"cdbs/internal/logging"
	"cdbs/internal/services"
)

const defaultTimeout = 30 * time.Second

// Config captures the runtime settings required to talk to the backend.
type Config struct {
	Endpoint       string
	Token          string
	TimeoutSeconds int
}

// ConfigFrom extracts client settings from the application config.
func ConfigFrom(cfg *config.Config) Config {
	if cfg == nil {
		return Config{}
	}
	return Config{
		Endpoint:       cfg.API.Endpoint,
		Token:          cfg.API.Token,
		TimeoutSeconds: cfg.API.RequestTimeout,
	}
}

// HTTPDoer describes the HTTP client used for GraphQL requests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client issues GraphQL requests against the CDBS backend.
type Client struct {
	cfg     Config
	timeout time.Duration
	client  HTTPDoer
	logger  *slog.Logger
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client HTTPDoer) Option {
	return func(c *Client) {
		if client != nil {
			c.client = client
		}
	}
}

// WithLogger sets the client logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient constructs a backend client using the supplied configuration.
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	cfg.Endpoint = strings.TrimSpace(cfg.Endpoint)
	cfg.Token = strings.TrimSpace(cfg.Token)
	if cfg.Endpoint == "" {
		return nil, services.Wrap(services.ErrConfiguration, "cdbsapi", "init", "api endpoint is not configured", nil)
	}
	timeout := defaultTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	c := &Client{
		cfg:     cfg,
		timeout: timeout,
		client:  http.DefaultClient,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logging.NewComponentLogger(c.logger, "cdbsapi")
	return c, nil
}

type graphQLRequest struct {
	Query     string `json:"query"`
	Variables any    `json:"variables,omitempty"`
}

type graphQLResponse struct {
	Data   map[string]json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// execute posts query and decodes data[field] into out.
func (c *Client) execute(ctx context.Context, operation, query string, variables any, field string, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	payload, err := json.Marshal(graphQLRequest{Query: query, Variables: variables})
	if err != nil {
		return services.Wrap(services.ErrValidation, "cdbsapi", operation, "encode request", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "cdbsapi", operation, "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", c.cfg.Token)
	}
	if rid, ok := services.RequestIDFromContext(ctx); ok {
		req.Header.Set("X-Request-ID", rid)
	}

	started := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return services.Wrap(services.ErrTimeout, "cdbsapi", operation, fmt.Sprintf("no response within %s", c.timeout), err)
		}
		return services.Wrap(services.ErrTransient, "cdbsapi", operation, "request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return services.Wrap(services.ErrTransient, "cdbsapi", operation, "read response", err)
	}
	logging.WithContext(ctx, c.logger).Debug("graphql response",
		logging.String("operation", operation),
		logging.Int("status", resp.StatusCode),
		logging.Duration("elapsed", time.Since(started)),
	)
	if !services.IsSuccessStatus(resp.StatusCode) {
		return &Error{Operation: operation, StatusCode: resp.StatusCode, Message: statusMessage(resp.StatusCode, body)}
	}

	var envelope graphQLResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		return services.Wrap(services.ErrTransient, "cdbsapi", operation, "decode response envelope", err)
	}
	if len(envelope.Errors) > 0 {
		return &Error{Operation: operation, Message: envelope.Errors[0].Message}
	}
	raw, ok := envelope.Data[field]
	if envelope.Data == nil || !ok || string(raw) == "null" {
		return &Error{Operation: operation, Message: fmt.Sprintf("response has no %s data", field)}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return services.Wrap(services.ErrTransient, "cdbsapi", operation, "decode "+field, err)
	}
	return nil
}

func statusMessage(code int, body []byte) string {
	statusErr := &services.HTTPStatusError{StatusCode: code, Body: string(body)}
	return statusErr.Error()
}

// Ping verifies that the endpoint answers GraphQL requests.
func (c *Client) Ping(ctx context.Context) error {
	return c.execute(ctx, "ping", "query Ping { __typename }", nil, "__typename", nil)
}
