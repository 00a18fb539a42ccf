// Package llm implements the single request/response primitive the
// pipeline treats as its only external collaborator: a chat-completion
// HTTP endpoint accepting {model, messages, temperature, max_tokens}
// and returning {choices:[{message:{content}}]}.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"scenepipe/internal/pipelog"
)

// Config carries the credentials and endpoint shape the client needs.
type Config struct {
	Endpoint       string
	Model          string
	APIKeys        []string // rotated on terminal auth/quota errors
	TimeoutSeconds int
}

// Client is a chat-completion client with retry/backoff. It carries no
// cross-request state beyond configuration and is safe for concurrent
// use up to the pipeline's configured fan-out.
type Client struct {
	httpClient *http.Client
	endpoint   string
	model      string
	logger     *slog.Logger

	keys    []string
	keyIdx  int32 // atomic index into keys, advanced on terminal auth failures
	sleeper func(ctx context.Context, d time.Duration) error

	retryMaxAttempts int
	retryBaseDelay   time.Duration
	retryMaxDelay    time.Duration
}

// Option customizes a Client at construction.
type Option func(*Client)

// WithHTTPClient overrides the underlying *http.Client (tests inject a
// client pointed at an httptest.Server).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger attaches a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = pipelog.Component(logger, "llm") }
}

// WithRetryPolicy overrides the retry attempt count and backoff schedule.
func WithRetryPolicy(maxAttempts int, base, cap time.Duration) Option {
	return func(c *Client) {
		c.retryMaxAttempts = maxAttempts
		c.retryBaseDelay = base
		c.retryMaxDelay = cap
	}
}

// WithSleeper overrides the backoff sleep function; tests inject a
// no-op sleeper to keep retry tests fast and deterministic.
func WithSleeper(sleeper func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Client) { c.sleeper = sleeper }
}

// New builds a Client. Defaults match spec.md §4.1: 15 attempts, base
// delay 3s, cap ~96s.
func New(cfg Config, opts ...Option) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	c := &Client{
		httpClient:       &http.Client{Timeout: timeout},
		endpoint:         cfg.Endpoint,
		model:            cfg.Model,
		keys:             append([]string{}, cfg.APIKeys...),
		logger:           slog.New(pipelog.NoopHandler{}),
		sleeper:          sleep,
		retryMaxAttempts: 15,
		retryBaseDelay:   3 * time.Second,
		retryMaxDelay:    96 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Complete issues one chat-completion call and returns the assistant's
// text body. It returns ("", nil) iff a non-retryable failure occurred
// or the retry budget was exhausted — callers treat an empty string as
// spec.md's `None`.
func (c *Client) Complete(ctx context.Context, prompt string, temperature float64, maxTokens int) (string, error) {
	if len(c.keys) == 0 {
		return "", errors.New("llm: no api keys configured")
	}

	var lastErr error
	for attempt := 1; attempt <= c.retryMaxAttempts; attempt++ {
		content, err := c.sendOnce(ctx, prompt, temperature, maxTokens)
		if err == nil {
			return content, nil
		}
		lastErr = err

		if isAuthOrQuotaError(err) {
			c.rotateKey()
		}

		if attempt == c.retryMaxAttempts {
			break
		}
		delay, retryable := c.retryDelay(err, attempt)
		if !retryable {
			c.logger.Warn("llm call terminal", pipelog.Args(
				pipelog.Int("attempt", attempt),
				pipelog.Error(err),
			)...)
			return "", nil
		}
		c.logger.Debug("llm call retrying", pipelog.Args(
			pipelog.Int("attempt", attempt),
			pipelog.Duration("delay", delay),
			pipelog.Error(err),
		)...)
		if sleepErr := c.sleeper(ctx, delay); sleepErr != nil {
			return "", sleepErr
		}
	}

	c.logger.Warn("llm call exhausted retries", pipelog.Args(
		pipelog.Int("attempts", c.retryMaxAttempts),
		pipelog.Error(lastErr),
	)...)
	return "", nil
}

func (c *Client) rotateKey() {
	if len(c.keys) < 2 {
		return
	}
	atomic.AddInt32(&c.keyIdx, 1)
}

func (c *Client) currentKey() string {
	idx := int(atomic.LoadInt32(&c.keyIdx)) % len(c.keys)
	if idx < 0 {
		idx += len(c.keys)
	}
	return c.keys[idx]
}

func (c *Client) sendOnce(ctx context.Context, prompt string, temperature float64, maxTokens int) (string, error) {
	reqBody := chatCompletionRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "user", Content: prompt},
		},
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}
	encoded, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(encoded))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.currentKey())

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 300 {
		return "", &httpStatusError{status: resp.StatusCode, body: string(body), retryAfter: resp.Header.Get("Retry-After")}
	}

	var parsed chatCompletionResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", &emptyContentError{}
	}
	return parsed.Choices[0].Message.Content, nil
}

type httpStatusError struct {
	status     int
	body       string
	retryAfter string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("llm endpoint returned status %d: %s", e.status, summarizeSnippet(e.body))
}

type emptyContentError struct{}

func (e *emptyContentError) Error() string { return "llm response contained no choices" }

func isAuthOrQuotaError(err error) bool {
	var statusErr *httpStatusError
	if errors.As(err, &statusErr) {
		return statusErr.status == http.StatusUnauthorized || statusErr.status == http.StatusForbidden || statusErr.status == http.StatusTooManyRequests
	}
	return false
}

// retryDelay classifies err as retryable (429/5xx/timeout) or terminal
// (other 4xx) and computes the exponential backoff for the next attempt,
// honoring a Retry-After header when present.
func (c *Client) retryDelay(err error, attempt int) (time.Duration, bool) {
	var statusErr *httpStatusError
	if errors.As(err, &statusErr) {
		if statusErr.status == http.StatusTooManyRequests || statusErr.status >= 500 {
			if d, ok := parseRetryAfter(statusErr.retryAfter); ok {
				return capDelay(d, c.retryMaxDelay), true
			}
			return c.backoffDelay(attempt), true
		}
		if statusErr.status == http.StatusRequestTimeout {
			return c.backoffDelay(attempt), true
		}
		return 0, false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return c.backoffDelay(attempt), true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return c.backoffDelay(attempt), true
	}

	var emptyErr *emptyContentError
	if errors.As(err, &emptyErr) {
		return c.backoffDelay(attempt), true
	}

	return c.backoffDelay(attempt), true
}

func (c *Client) backoffDelay(attempt int) time.Duration {
	base := c.retryBaseDelay
	if base <= 0 {
		base = 3 * time.Second
	}
	multiplier := math.Pow(2, float64(attempt-1))
	delay := time.Duration(float64(base) * multiplier)
	return capDelay(delay, c.retryMaxDelay)
}

func capDelay(d, max time.Duration) time.Duration {
	if max > 0 && d > max {
		return max
	}
	return d
}

func parseRetryAfter(value string) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second, true
	}
	if when, err := http.ParseTime(value); err == nil {
		delta := time.Until(when)
		if delta > 0 {
			return delta, true
		}
	}
	return 0, false
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func summarizeSnippet(body string) string {
	const maxLen = 200
	trimmed := strings.TrimSpace(body)
	if len(trimmed) > maxLen {
		return trimmed[:maxLen] + "..."
	}
	return trimmed
}
