// Package catalogue talks to the Wellcome Collection catalogue API.
package catalogue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kenoir/weco-concept-explorer/application/ports"
	"github.com/kenoir/weco-concept-explorer/domain/concept"
	"github.com/kenoir/weco-concept-explorer/pkg/observability"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// maxBodyBytes caps how much of an upstream response is read.
const maxBodyBytes = 8 << 20

var (
	// ErrUnresolvable wraps every reason a concept id did not yield a usable record.
	ErrUnresolvable = errors.New("concept unresolvable")

	// ErrUnavailable is returned while the circuit breaker is open.
	ErrUnavailable = errors.New("catalogue unavailable")

	errServerStatus = errors.New("upstream server error")
)

// forwardedHeaders are copied from upstream responses to proxy clients.
var forwardedHeaders = []string{"Content-Type", "Cache-Control", "ETag", "Last-Modified"}

// ClientOptions configures a Client.
type ClientOptions struct {
	BaseURL   string
	Timeout   time.Duration
	RateLimit float64
	Burst     int

	// HTTPClient overrides the default client built from Timeout.
	HTTPClient *http.Client

	Metrics *observability.Collector
	Logger  *zap.Logger
}

// Client is a rate-limited, circuit-broken catalogue client. It serves both
// the proxy endpoints and concept resolution.
type Client struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	metrics *observability.Collector
	tracer  trace.Tracer
	logger  *zap.Logger
}

// NewClient creates a catalogue client.
func NewClient(opts ClientOptions) (*Client, error) {
	base, err := url.Parse(opts.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid catalogue base url %q", opts.BaseURL)
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}
	limit := rate.Inf
	if opts.RateLimit > 0 {
		limit = rate.Limit(opts.RateLimit)
	}
	if opts.Burst < 1 {
		opts.Burst = 1
	}

	c := &Client{
		baseURL: strings.TrimRight(base.String(), "/"),
		http:    httpClient,
		limiter: rate.NewLimiter(limit, opts.Burst),
		metrics: opts.Metrics,
		tracer:  observability.Tracer(),
		logger:  logger,
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "catalogue",
		MaxRequests: 5,
		Interval:    30 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.8
		},
		IsSuccessful: func(err error) bool {
			// Cancelled callers say nothing about upstream health.
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	return c, nil
}

// Ready reports ErrUnavailable while the circuit breaker is open.
func (c *Client) Ready() error {
	if c.breaker.State() == gobreaker.StateOpen {
		return ErrUnavailable
	}
	return nil
}

// FetchConcept returns the raw upstream response for /concepts/{id}.
func (c *Client) FetchConcept(ctx context.Context, id string) (*ports.UpstreamResponse, error) {
	return c.get(ctx, c.baseURL+"/concepts/"+url.PathEscape(id))
}

// FetchWorks returns the raw upstream response for /works?subjects={subjects}.
func (c *Client) FetchWorks(ctx context.Context, subjects string) (*ports.UpstreamResponse, error) {
	q := url.Values{"subjects": []string{subjects}}
	return c.get(ctx, c.baseURL+"/works?"+q.Encode())
}

// Resolve fetches and decodes one concept. Every failure, whether transport,
// upstream status or payload, is reported as ErrUnresolvable.
func (c *Client) Resolve(ctx context.Context, id string) (*concept.Record, error) {
	ctx, span := c.tracer.Start(ctx, "catalogue.Resolve",
		trace.WithAttributes(attribute.String("concept.id", id)))
	defer span.End()

	start := time.Now()
	rec, result, err := c.resolve(ctx, id)
	c.metrics.RecordLookup(result, time.Since(start))
	if err != nil {
		span.SetStatus(codes.Error, result)
		return nil, err
	}
	return rec, nil
}

func (c *Client) resolve(ctx context.Context, id string) (*concept.Record, string, error) {
	if id == "" {
		return nil, "invalid", fmt.Errorf("%w: empty id", ErrUnresolvable)
	}
	resp, err := c.FetchConcept(ctx, id)
	if err != nil {
		return nil, "error", fmt.Errorf("%w: %s: %w", ErrUnresolvable, id, err)
	}
	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return nil, "not_found", fmt.Errorf("%w: %s: %w", ErrUnresolvable, id, ports.ErrConceptNotFound)
	case resp.StatusCode != http.StatusOK:
		return nil, "error", fmt.Errorf("%w: %s: upstream status %d", ErrUnresolvable, id, resp.StatusCode)
	}

	var rec concept.Record
	if err := json.Unmarshal(resp.Body, &rec); err != nil {
		return nil, "malformed", fmt.Errorf("%w: %s: decode: %w", ErrUnresolvable, id, err)
	}
	if !rec.IsUsable() {
		return nil, "malformed", fmt.Errorf("%w: %s: record has no id", ErrUnresolvable, id)
	}
	return &rec, "ok", nil
}

func (c *Client) get(ctx context.Context, target string) (*ports.UpstreamResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if err != nil {
			return nil, fmt.Errorf("read body: %w", err)
		}

		up := &ports.UpstreamResponse{
			StatusCode: resp.StatusCode,
			Header:     make(http.Header),
			Body:       body,
		}
		for _, h := range forwardedHeaders {
			if v := resp.Header.Get(h); v != "" {
				up.Header.Set(h, v)
			}
		}
		if resp.StatusCode >= 500 {
			return up, errServerStatus
		}
		return up, nil
	})

	switch {
	case err == nil:
		return result.(*ports.UpstreamResponse), nil
	case errors.Is(err, errServerStatus):
		// 5xx counts against the breaker but is still a valid response to forward.
		return result.(*ports.UpstreamResponse), nil
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	default:
		c.logger.Debug("Catalogue request failed", zap.String("url", target), zap.Error(err))
		return nil, err
	}
}
