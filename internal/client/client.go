// Package client talks to the remote user collection endpoint.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/msomdec/user-board/internal/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/msomdec/user-board/internal/client"

const (
	opFetchAll = "fetch_all"
	opCreate   = "create"
)

// Client performs the two remote operations against a single collection
// endpoint. It is safe for concurrent use.
type Client struct {
	endpoint string
	http     *http.Client
	logger   *slog.Logger
	tracer   trace.Tracer
	requests metric.Int64Counter
	duration metric.Float64Histogram
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the logger for the client.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithTracerProvider sets the provider used for spans. Defaults to the global one.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Client) { c.tracer = tp.Tracer(instrumentationName) }
}

// WithMeterProvider sets the provider used for metrics. Defaults to the global one.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(c *Client) { c.initMetrics(mp.Meter(instrumentationName)) }
}

// New creates a Client for the collection at endpoint, an absolute http(s) URL.
func New(endpoint string, opts ...Option) (*Client, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: endpoint must be an absolute http(s) URL, got %q", domain.ErrInvalidInput, endpoint)
	}

	c := &Client{
		endpoint: u.String(),
		http:     &http.Client{Timeout: 10 * time.Second},
		logger:   slog.Default(),
		tracer:   otel.Tracer(instrumentationName),
	}
	c.initMetrics(otel.Meter(instrumentationName))
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) initMetrics(meter metric.Meter) {
	c.requests, _ = meter.Int64Counter("users.client.requests",
		metric.WithDescription("Requests sent to the collection endpoint"),
		metric.WithUnit("{request}"),
	)
	c.duration, _ = meter.Float64Histogram("users.client.duration",
		metric.WithDescription("Round trip time to the collection endpoint in milliseconds"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000),
	)
}

// Endpoint returns the collection address the client was built with.
func (c *Client) Endpoint() string { return c.endpoint }

type userDTO struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Age  int    `json:"age"`
}

type createRequest struct {
	Name string `json:"name"`
	Age  int    `json:"age"`
}

// FetchAll reads the whole collection in server order. A JSON null body is
// an empty collection.
func (c *Client) FetchAll(ctx context.Context) (users []domain.User, err error) {
	ctx, finish := c.observe(ctx, opFetchAll)
	defer func() { finish(err) }()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint, nil)
	if err != nil {
		return nil, &Error{Op: opFetchAll, Kind: KindTransport, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &Error{Op: opFetchAll, Kind: KindTransport, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return nil, &Error{Op: opFetchAll, Kind: KindStatus, StatusCode: resp.StatusCode}
	}

	var dtos []userDTO
	if err := json.NewDecoder(resp.Body).Decode(&dtos); err != nil {
		return nil, &Error{Op: opFetchAll, Kind: KindDecode, Err: err}
	}

	users = make([]domain.User, len(dtos))
	for i, d := range dtos {
		users[i] = domain.User{ID: d.ID, Name: d.Name, Age: d.Age}
	}
	return users, nil
}

// Create posts a new user. Any 2xx status is success; the body is ignored.
func (c *Client) Create(ctx context.Context, in domain.NewUser) (err error) {
	ctx, finish := c.observe(ctx, opCreate)
	defer func() { finish(err) }()

	body, err := json.Marshal(createRequest{Name: in.Name, Age: in.Age})
	if err != nil {
		return &Error{Op: opCreate, Kind: KindTransport, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return &Error{Op: opCreate, Kind: KindTransport, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return &Error{Op: opCreate, Kind: KindTransport, Err: err}
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &Error{Op: opCreate, Kind: KindStatus, StatusCode: resp.StatusCode}
	}
	return nil
}

// observe starts a span for op and returns a func that records the outcome.
func (c *Client) observe(ctx context.Context, op string) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := c.tracer.Start(ctx, "users."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("http.url", c.endpoint)),
	)

	return ctx, func(err error) {
		defer span.End()
		elapsed := time.Since(start)

		outcome := "ok"
		if err != nil {
			outcome = KindOf(err).String()
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}

		attrs := metric.WithAttributes(
			attribute.String("op", op),
			attribute.String("outcome", outcome),
		)
		if c.requests != nil {
			c.requests.Add(ctx, 1, attrs)
		}
		if c.duration != nil {
			c.duration.Record(ctx, float64(elapsed.Milliseconds()), attrs)
		}

		c.logger.Debug("collection request", "op", op, "outcome", outcome, "duration", elapsed)
	}
}
