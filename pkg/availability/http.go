package availability

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/goccy/go-json"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const tracerName = "github.com/goliatone/go-formstate/pkg/availability"

// HTTPChecker asks a remote endpoint: GET <base>?username=<candidate>,
// expecting {"available": bool}. Transport failures and 5xx answers are
// retried with exponential backoff; 4xx answers fail immediately.
type HTTPChecker struct {
	base       *url.URL
	client     *http.Client
	maxRetries uint64
	interval   time.Duration
	tracer     trace.Tracer
	logger     *zap.SugaredLogger
}

// HTTPOption configures an HTTPChecker.
type HTTPOption func(*HTTPChecker)

// WithHTTPClient overrides the client. Defaults to a client with a 5s timeout.
func WithHTTPClient(client *http.Client) HTTPOption {
	return func(c *HTTPChecker) {
		if client != nil {
			c.client = client
		}
	}
}

// WithRetries sets how many times a failed lookup is retried.
func WithRetries(n uint64) HTTPOption {
	return func(c *HTTPChecker) {
		c.maxRetries = n
	}
}

// WithRetryInterval sets the initial backoff interval.
func WithRetryInterval(d time.Duration) HTTPOption {
	return func(c *HTTPChecker) {
		if d > 0 {
			c.interval = d
		}
	}
}

// WithTracer overrides the tracer. Defaults to the global provider.
func WithTracer(tracer trace.Tracer) HTTPOption {
	return func(c *HTTPChecker) {
		if tracer != nil {
			c.tracer = tracer
		}
	}
}

// WithHTTPLogger sets the logger used for retry diagnostics.
func WithHTTPLogger(logger *zap.SugaredLogger) HTTPOption {
	return func(c *HTTPChecker) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewHTTPChecker validates base and builds the checker.
func NewHTTPChecker(base string, opts ...HTTPOption) (*HTTPChecker, error) {
	parsed, err := url.Parse(strings.TrimSpace(base))
	if err != nil {
		return nil, fmt.Errorf("availability: parse url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("availability: url %q must be http or https", base)
	}
	c := &HTTPChecker{
		base:       parsed,
		client:     &http.Client{Timeout: 5 * time.Second},
		maxRetries: 2,
		interval:   100 * time.Millisecond,
		tracer:     otel.Tracer(tracerName),
		logger:     zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

type availabilityResponse struct {
	Available *bool `json:"available"`
}

// CheckAvailability implements Checker.
func (c *HTTPChecker) CheckAvailability(ctx context.Context, candidate string) (bool, error) {
	ctx, span := c.tracer.Start(ctx, "availability.http",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("availability.candidate", candidate)),
	)
	defer span.End()

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.interval
	retry := backoff.WithContext(backoff.WithMaxRetries(policy, c.maxRetries), ctx)

	attempts := 0
	var available bool
	err := backoff.RetryNotify(func() error {
		attempts++
		answer, err := c.lookup(ctx, candidate)
		if err != nil {
			return err
		}
		available = answer
		return nil
	}, retry, func(err error, wait time.Duration) {
		c.logger.Debugw("availability lookup retry", "candidate", candidate, "error", err, "wait", wait)
	})
	span.SetAttributes(attribute.Int("availability.attempts", attempts))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return false, err
	}
	span.SetAttributes(attribute.Bool("availability.available", available))
	return available, nil
}

func (c *HTTPChecker) lookup(ctx context.Context, candidate string) (bool, error) {
	target := *c.base
	query := target.Query()
	query.Set("username", candidate)
	target.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return false, backoff.Permanent(fmt.Errorf("availability: build request: %w", err))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return false, backoff.Permanent(ctx.Err())
		}
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return false, fmt.Errorf("%w: %d", ErrBadStatus, resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return false, backoff.Permanent(fmt.Errorf("%w: %d", ErrBadStatus, resp.StatusCode))
	}

	var payload availabilityResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return false, backoff.Permanent(fmt.Errorf("availability: decode response: %w", err))
	}
	if payload.Available == nil {
		return false, backoff.Permanent(fmt.Errorf("availability: response missing \"available\""))
	}
	return *payload.Available, nil
}
