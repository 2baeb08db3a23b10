// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

// Package bbb implements the conferencing client against the BigBlueButton
// API, plus an in-memory fake used by tests and local runs.
package bbb

import (
	"bytes"
	"context"
	"crypto/sha1" //nolint:gosec // sha1 is the BigBlueButton default checksum
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"encoding/xml"
	"errors"
	"fmt"
	"hash"
	"io"
	"log/slog"
	"math"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/linuxfoundation/lfx-v2-whistle-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-whistle-service/internal/logging"
)

const (
	// DefaultClientTimeout is the default HTTP client timeout for API calls
	DefaultClientTimeout = 10 * time.Second
	// Retry configuration. Retries are off unless MaxRetries is set.
	DefaultInitialBackoff    = 500 * time.Millisecond
	DefaultMaxBackoff        = 5 * time.Second
	DefaultBackoffMultiplier = 2.0

	// Supported checksum algorithms
	ChecksumSHA1   = "sha1"
	ChecksumSHA256 = "sha256"
	ChecksumSHA384 = "sha384"
	ChecksumSHA512 = "sha512"

	returnCodeSuccess = "SUCCESS"
	meterName         = "github.com/linuxfoundation/lfx-v2-whistle-service/internal/infrastructure/bbb"
)

// Config holds the configuration for the BigBlueButton client
type Config struct {
	// Endpoint is the API root, e.g. https://bbb.example.org/bigbluebutton/api
	Endpoint string
	Secret   string
	// Optional: checksum algorithm, sha1 when empty
	ChecksumAlgorithm string
	// Optional: override timeout for HTTP requests
	Timeout time.Duration
	// Optional: retry configuration
	MaxRetries        int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
}

// IsConfigured reports whether the endpoint and secret are set.
func (c Config) IsConfigured() bool {
	return c.Endpoint != "" && c.Secret != ""
}

// Client talks to a BigBlueButton server.
type Client struct {
	httpClient *http.Client
	config     Config
	newHash    func() hash.Hash

	requests metric.Int64Counter
	duration metric.Float64Histogram
}

// Ensure that Client implements domain.ConferencingClient
var _ domain.ConferencingClient = (*Client)(nil)

// NewClient creates a new BigBlueButton API client
func NewClient(config Config) (*Client, error) {
	if !config.IsConfigured() {
		return nil, errors.New("bigbluebutton endpoint and secret are required")
	}
	endpoint, err := normalizeEndpoint(config.Endpoint)
	if err != nil {
		return nil, err
	}
	config.Endpoint = endpoint

	if config.ChecksumAlgorithm == "" {
		config.ChecksumAlgorithm = ChecksumSHA1
	}
	newHash, err := checksumHash(config.ChecksumAlgorithm)
	if err != nil {
		return nil, err
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultClientTimeout
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}
	if config.InitialBackoff == 0 {
		config.InitialBackoff = DefaultInitialBackoff
	}
	if config.MaxBackoff == 0 {
		config.MaxBackoff = DefaultMaxBackoff
	}
	if config.BackoffMultiplier == 0 {
		config.BackoffMultiplier = DefaultBackoffMultiplier
	}

	c := &Client{
		httpClient: &http.Client{
			Timeout:   config.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		config:  config,
		newHash: newHash,
	}
	c.setupMetrics()
	return c, nil
}

func (c *Client) setupMetrics() {
	meter := otel.Meter(meterName)

	requests, err := meter.Int64Counter("bbb.client.requests",
		metric.WithDescription("BigBlueButton API calls by call name and outcome"))
	if err != nil {
		slog.Warn("error creating bbb request counter", logging.ErrKey, err)
		requests = noop.Int64Counter{}
	}
	duration, err := meter.Float64Histogram("bbb.client.duration",
		metric.WithDescription("BigBlueButton API call latency"),
		metric.WithUnit("s"))
	if err != nil {
		slog.Warn("error creating bbb duration histogram", logging.ErrKey, err)
		duration = noop.Float64Histogram{}
	}
	c.requests = requests
	c.duration = duration
}

func normalizeEndpoint(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("invalid bigbluebutton endpoint: %w", err)
	}
	if !u.IsAbs() {
		return "", fmt.Errorf("bigbluebutton endpoint %q must be an absolute URL", raw)
	}
	u.Path = strings.TrimSuffix(u.Path, "/")
	if !strings.HasSuffix(u.Path, "/api") {
		u.Path += "/api"
	}
	u.RawQuery = ""
	return u.String(), nil
}

func checksumHash(algorithm string) (func() hash.Hash, error) {
	switch strings.ToLower(algorithm) {
	case ChecksumSHA1:
		return sha1.New, nil
	case ChecksumSHA256:
		return sha256.New, nil
	case ChecksumSHA384:
		return sha512.New384, nil
	case ChecksumSHA512:
		return sha512.New, nil
	}
	return nil, fmt.Errorf("unsupported checksum algorithm %q", algorithm)
}

// checksum signs a call: hex(hash(call + query + secret)).
func (c *Client) checksum(call, query string) string {
	h := c.newHash()
	h.Write([]byte(call + query + c.config.Secret))
	return hex.EncodeToString(h.Sum(nil))
}

// buildURL returns the signed URL for call.
func (c *Client) buildURL(call string, params url.Values) string {
	query := params.Encode()
	sum := c.checksum(call, query)
	if query == "" {
		return fmt.Sprintf("%s/%s?checksum=%s", c.config.Endpoint, call, sum)
	}
	return fmt.Sprintf("%s/%s?%s&checksum=%s", c.config.Endpoint, call, query, sum)
}

// apiResponse is implemented by every decoded response envelope.
type apiResponse interface {
	envelope() *baseResponse
}

type baseResponse struct {
	ReturnCode string `xml:"returncode"`
	MessageKey string `xml:"messageKey"`
	Message    string `xml:"message"`
}

func (b *baseResponse) envelope() *baseResponse { return b }

// call performs the API call and decodes the XML envelope into out. A FAILED
// return code or any transport problem becomes an external service error.
func (c *Client) call(ctx context.Context, name string, params url.Values, body []byte, out apiResponse) error {
	start := time.Now()
	err := c.doCall(ctx, name, params, body, out)

	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	attrs := metric.WithAttributes(attribute.String("bbb.call", name), attribute.String("outcome", outcome))
	c.requests.Add(ctx, 1, attrs)
	c.duration.Record(ctx, time.Since(start).Seconds(), attrs)
	return err
}

func (c *Client) doCall(ctx context.Context, name string, params url.Values, body []byte, out apiResponse) error {
	resp, err := c.doRequest(ctx, name, c.buildURL(name, params), body)
	if err != nil {
		return domain.NewExternalServiceError(name, "", "", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusBadRequest {
		return domain.NewExternalServiceError(name, "", "", fmt.Errorf("status: %d", resp.StatusCode))
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.NewExternalServiceError(name, "", "", fmt.Errorf("failed to read response: %w", err))
	}
	if err := xml.Unmarshal(raw, out); err != nil {
		slog.ErrorContext(ctx, "error decoding BigBlueButton response",
			"call", name,
			logging.ErrKey, err)
		return domain.NewExternalServiceError(name, "", "", fmt.Errorf("failed to decode response: %w", err))
	}

	env := out.envelope()
	if env.ReturnCode != returnCodeSuccess {
		slog.WarnContext(ctx, "BigBlueButton call returned failure",
			"call", name,
			"return_code", env.ReturnCode,
			"message_key", env.MessageKey,
			"message", env.Message)
		return domain.NewExternalServiceError(name, env.MessageKey, env.Message, nil)
	}
	return nil
}

// shouldRetry determines if an error or HTTP status code should be retried
func shouldRetry(statusCode int, err error) bool {
	if err != nil {
		return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
	}
	return statusCode >= http.StatusInternalServerError || statusCode == http.StatusTooManyRequests
}

// calculateBackoff calculates the backoff duration for a retry attempt with jitter
func (c *Client) calculateBackoff(attempt int) time.Duration {
	backoff := float64(c.config.InitialBackoff) * math.Pow(c.config.BackoffMultiplier, float64(attempt))
	if time.Duration(backoff) > c.config.MaxBackoff {
		backoff = float64(c.config.MaxBackoff)
	}

	// ±25% jitter
	jitter := backoff * 0.25 * (rand.Float64()*2 - 1)
	withJitter := time.Duration(backoff + jitter)
	if withJitter < c.config.InitialBackoff {
		withJitter = c.config.InitialBackoff
	}
	return withJitter
}

// doRequest sends the request, retrying transport errors and 5xx responses
// up to MaxRetries times. Query strings are never logged since they carry
// meeting passwords.
func (c *Client) doRequest(ctx context.Context, name, target string, body []byte) (*http.Response, error) {
	method := http.MethodGet
	if body != nil {
		method = http.MethodPost
	}

	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		req, err := c.newRequest(ctx, method, target, body)
		if err != nil {
			return nil, err
		}

		if attempt == 0 {
			slog.DebugContext(ctx, "making BigBlueButton API request", "call", name, "method", method)
		} else {
			slog.DebugContext(ctx, "retrying BigBlueButton API request", "call", name, "attempt", attempt)
		}

		started := time.Now()
		resp, err := c.httpClient.Do(req)
		elapsed := time.Since(started)

		if err == nil && resp.StatusCode < http.StatusInternalServerError && resp.StatusCode != http.StatusTooManyRequests {
			slog.DebugContext(ctx, "BigBlueButton API request completed",
				"call", name,
				"status", resp.StatusCode,
				"duration", elapsed.String(),
				"attempt", attempt+1)
			return resp, nil
		}

		statusCode := 0
		if resp != nil {
			statusCode = resp.StatusCode
			_ = resp.Body.Close()
			lastErr = fmt.Errorf("status: %d", statusCode)
		} else {
			lastErr = redactURL(err)
		}

		if !shouldRetry(statusCode, err) || attempt == c.config.MaxRetries {
			break
		}

		backoff := c.calculateBackoff(attempt)
		slog.WarnContext(ctx, "BigBlueButton API request failed, retrying",
			"call", name,
			"status", statusCode,
			"duration", elapsed.String(),
			"attempt", attempt+1,
			"max_retries", c.config.MaxRetries,
			"backoff", backoff.String(),
			logging.ErrKey, lastErr)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}

	slog.ErrorContext(ctx, "BigBlueButton API request failed",
		"call", name,
		"attempts", c.config.MaxRetries+1,
		logging.ErrKey, lastErr,
		logging.PriorityCritical())
	return nil, fmt.Errorf("request failed after %d attempts: %w", c.config.MaxRetries+1, lastErr)
}

func (c *Client) newRequest(ctx context.Context, method, target string, body []byte) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", redactURL(err))
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/xml")
	}
	return req, nil
}

// redactURL strips the query string from a *url.Error. The query of a signed
// call carries meeting passwords, the access code and the checksum.
func redactURL(err error) error {
	var uerr *url.Error
	if !errors.As(err, &uerr) {
		return err
	}
	target := uerr.URL
	if i := strings.IndexAny(target, "?#"); i >= 0 {
		target = target[:i]
	}
	return &url.Error{Op: uerr.Op, URL: target, Err: uerr.Err}
}
