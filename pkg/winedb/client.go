// Package winedb is the client for the third-party wine database used for
// canonical name and region disambiguation. The contract is identity-only:
// responses may carry names, producers, regions and scores, never commercial
// data. Payloads that violate that are rejected wholesale.
package winedb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/winefeed/vine/pkg/tracing"
)

const (
	// DefaultTimeout is the default request timeout
	DefaultTimeout = 3 * time.Second

	// DefaultMaxBodyBytes is the maximum response body size (1MB)
	DefaultMaxBodyBytes = 1 * 1024 * 1024
)

// ErrForbiddenField is returned when a response carries commercial fields.
var ErrForbiddenField = errors.New("winedb response contains forbidden fields")

// ErrUnavailable is returned when the service could not be reached within
// the retry budget. Callers degrade to local evidence.
var ErrUnavailable = errors.New("winedb unavailable")

// Config holds wine database client configuration
type Config struct {
	BaseURL      string
	Timeout      time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
	MaxBodyBytes int64
}

// DefaultConfig returns default client configuration
func DefaultConfig() Config {
	return Config{
		Timeout:      DefaultTimeout,
		MaxRetries:   2,
		RetryBackoff: 250 * time.Millisecond,
		MaxBodyBytes: DefaultMaxBodyBytes,
	}
}

// SuggestQuery is a canonical-name lookup request.
type SuggestQuery struct {
	Name     string
	Producer string
	Vintage  *int
	Region   string
}

// Suggestion is one identity-only hit from the wine database.
type Suggestion struct {
	Name        string  `json:"name"`
	Producer    string  `json:"producer"`
	Region      string  `json:"region"`
	Appellation string  `json:"appellation"`
	Country     string  `json:"country"`
	Score       float64 `json:"score"`
}

// Client calls the wine database with bounded retries and enforces the
// identity-only allowlist on every response.
type Client struct {
	config Config
	client *http.Client
	logger ectologger.Logger
}

// NewClient creates a new wine database client
func NewClient(config Config, logger ectologger.Logger) *Client {
	if config.Timeout == 0 {
		config.Timeout = DefaultTimeout
	}
	if config.MaxBodyBytes == 0 {
		config.MaxBodyBytes = DefaultMaxBodyBytes
	}

	return &Client{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
		logger: logger,
	}
}

// Suggest returns canonical-name suggestions for a wine. Transient failures
// are retried with backoff up to the configured cap; a 429 honors the
// Retry-After header. After the retry budget is spent, ErrUnavailable is
// returned and the caller proceeds on local evidence only.
func (c *Client) Suggest(ctx context.Context, query SuggestQuery) ([]Suggestion, error) {
	ctx, span := tracing.StartSpan(ctx, "winedb.Client.Suggest")
	defer span.End()

	reqURL, err := c.buildURL(query)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := c.config.RetryBackoff * time.Duration(attempt)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		suggestions, retryAfter, err := c.doSuggest(ctx, reqURL)
		if err == nil {
			return suggestions, nil
		}
		if errors.Is(err, ErrForbiddenField) {
			// contract violation, retrying will not fix it
			return nil, err
		}

		lastErr = err
		c.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"attempt": attempt + 1}).Warn("winedb lookup failed")

		if retryAfter > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(retryAfter):
			}
		}
	}

	return nil, fmt.Errorf("%w: %v", ErrUnavailable, lastErr)
}

func (c *Client) buildURL(query SuggestQuery) (string, error) {
	base, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return "", fmt.Errorf("invalid winedb base url: %w", err)
	}
	base.Path += "/v1/wines/suggest"

	values := url.Values{}
	values.Set("name", query.Name)
	if query.Producer != "" {
		values.Set("producer", query.Producer)
	}
	if query.Vintage != nil {
		values.Set("vintage", strconv.Itoa(*query.Vintage))
	}
	if query.Region != "" {
		values.Set("region", query.Region)
	}
	base.RawQuery = values.Encode()

	return base.String(), nil
}

func (c *Client) doSuggest(ctx context.Context, reqURL string) ([]Suggestion, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, parseRetryAfter(resp.Header.Get("Retry-After")), fmt.Errorf("winedb rate limited")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, 0, fmt.Errorf("winedb returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.config.MaxBodyBytes+1))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read response body: %w", err)
	}
	if int64(len(body)) > c.config.MaxBodyBytes {
		return nil, 0, fmt.Errorf("response body too large: %d bytes (max %d)", len(body), c.config.MaxBodyBytes)
	}

	// allowlist check runs on the raw payload before any value is used
	if keys := FindForbiddenKeysJSON(body); len(keys) > 0 {
		c.logger.WithContext(ctx).WithFields(map[string]any{"keys": keys}).Error("winedb response violated identity-only contract")
		return nil, 0, fmt.Errorf("%w: %v", ErrForbiddenField, keys)
	}

	var payload struct {
		Suggestions []Suggestion `json:"suggestions"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, 0, fmt.Errorf("failed to decode winedb response: %w", err)
	}

	return payload.Suggestions, 0, nil
}

func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	seconds, err := strconv.Atoi(header)
	if err != nil || seconds < 0 {
		return 0
	}
	if seconds > 10 {
		seconds = 10
	}
	return time.Duration(seconds) * time.Second
}
