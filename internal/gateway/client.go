package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/fjod/go_storefront/pkg/circuitbreaker"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"
)

const (
	DefaultAPIPath    = "/api/2023-01/graphql.json"
	accessTokenHeader = "X-Shopify-Storefront-Access-Token"
	maxResponseBytes  = 10 << 20
)

type Config struct {
	Domain      string
	APIPath     string
	AccessToken string
	Timeout     time.Duration
	// RateLimit is the steady request rate per second; zero disables limiting.
	RateLimit float64
	Breaker   circuitbreaker.Config
	// Transport overrides the base round tripper (tests).
	Transport http.RoundTripper
}

// Client talks to the remote commerce backend's storefront GraphQL API.
type Client struct {
	domain   string
	endpoint string
	token    string
	http     *http.Client
	limiter  *rate.Limiter
	breaker  *circuitbreaker.Breaker[json.RawMessage]
	logger   *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	apiPath := cfg.APIPath
	if apiPath == "" {
		apiPath = DefaultAPIPath
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	base := cfg.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), int(cfg.RateLimit)+1)
	}

	breakerCfg := cfg.Breaker
	if breakerCfg.Name == "" {
		breakerCfg = circuitbreaker.DefaultConfig("storefront-api")
	}
	breakerCfg.IsSuccessful = countsAsSuccess

	domain := EnsureHTTPS(cfg.Domain)
	return &Client{
		domain:   domain,
		endpoint: domain + apiPath,
		token:    cfg.AccessToken,
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(base),
		},
		limiter: limiter,
		breaker: circuitbreaker.New[json.RawMessage](breakerCfg, logger),
		logger:  logger,
	}
}

// EnsureHTTPS prefixes a bare store domain with https://.
func EnsureHTTPS(domain string) string {
	if domain == "" || strings.HasPrefix(domain, "https://") || strings.HasPrefix(domain, "http://") {
		return domain
	}
	return "https://" + domain
}

type graphQLRequest struct {
	Query     string `json:"query"`
	Variables any    `json:"variables,omitempty"`
}

type graphQLError struct {
	Message    string `json:"message"`
	Extensions struct {
		Code string `json:"code"`
	} `json:"extensions"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphQLError  `json:"errors"`
}

// do executes one GraphQL operation and decodes its data block into out.
func (c *Client) do(ctx context.Context, op, query string, variables any, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%s: %w: %v", op, ErrTransient, err)
	}

	payload, err := json.Marshal(graphQLRequest{Query: query, Variables: variables})
	if err != nil {
		return fmt.Errorf("%s: marshal request: %w", op, err)
	}

	data, err := c.breaker.Execute(func() (json.RawMessage, error) {
		return c.post(ctx, op, payload)
	})
	if errors.Is(err, circuitbreaker.ErrOpen) {
		return fmt.Errorf("%s: %w: %v", op, ErrTransient, err)
	}
	if err != nil {
		c.logger.ErrorContext(ctx, "storefront api error", slog.String("op", op), slog.Any("error", err))
		return err
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s: decode data: %w", op, err)
	}
	return nil
}

func (c *Client) post(ctx context.Context, op string, payload []byte) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(accessTokenHeader, c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", op, ErrTransient, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%s: %w: read body: %v", op, ErrTransient, err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError:
		return nil, fmt.Errorf("%s: %w: status %d", op, ErrTransient, resp.StatusCode)
	case resp.StatusCode >= http.StatusBadRequest && resp.StatusCode != http.StatusBadRequest:
		return nil, fmt.Errorf("%s: storefront api rejected request: status %d", op, resp.StatusCode)
	}

	var envelope graphQLResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("%s: decode response: %w", op, err)
	}

	if len(envelope.Errors) > 0 {
		first := envelope.Errors[0]
		if first.Extensions.Code == "THROTTLED" || first.Extensions.Code == "INTERNAL_SERVER_ERROR" {
			return nil, fmt.Errorf("%s: %w: %s", op, ErrTransient, first.Message)
		}
		return nil, &ValidationError{
			Op:     op,
			Errors: []UserError{{Code: first.Extensions.Code, Message: first.Message}},
		}
	}
	return envelope.Data, nil
}
