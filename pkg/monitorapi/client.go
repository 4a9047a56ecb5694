// Package monitorapi is the HTTP client for the monitoring control plane.
// Each method issues exactly one request and classifies the response; the
// client never retries and never caches.
package monitorapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/openfroyo/monitor-provider/pkg/engine"
	"github.com/openfroyo/monitor-provider/pkg/model"
	"github.com/openfroyo/monitor-provider/pkg/telemetry"
)

// Operation names used for spans and metrics.
const (
	OpCreateMonitor  = "create_monitor"
	OpFetchMonitor   = "fetch_monitor"
	OpGetMonitor     = "get_monitor"
	OpReplaceMonitor = "replace_monitor"
	OpDeleteMonitor  = "delete_monitor"
)

// HeaderAPIKey carries the resolved credential on every request.
const HeaderAPIKey = "Api-Key"

const (
	monitorsPath    = "/v3/monitors"
	maxResponseSize = 1 << 20
)

// Config configures a Client.
type Config struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
}

// DefaultUserAgent is sent when the config does not set one.
const DefaultUserAgent = "monitor-provider"

// Client talks to the control plane's /v3/monitors resource.
type Client struct {
	base      *url.URL
	http      *http.Client
	userAgent string
	tel       *telemetry.Telemetry
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTelemetry enables tracing, metrics, and logging of calls.
func WithTelemetry(tel *telemetry.Telemetry) Option {
	return func(c *Client) {
		if tel != nil {
			c.tel = tel
		}
	}
}

// NewClient creates a client for the control plane at cfg.BaseURL.
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("control plane base URL is required")
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid control plane base URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("control plane base URL must be http or https, got %q", cfg.BaseURL)
	}

	c := &Client{
		base:      base,
		http:      &http.Client{Timeout: cfg.Timeout},
		userAgent: cfg.UserAgent,
		tel:       telemetry.NewNop(),
	}
	if c.userAgent == "" {
		c.userAgent = DefaultUserAgent
	}
	// Locations are read from the Location header, not followed.
	c.http.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the control plane base URL.
func (c *Client) BaseURL() string {
	return c.base.String()
}

// CreateMonitor posts a new monitor and returns the Location of the
// created entity.
func (c *Client) CreateMonitor(ctx context.Context, apiKey string, m model.Monitor) (string, error) {
	resp, err := c.do(ctx, OpCreateMonitor, http.MethodPost, c.monitorsURL(""), apiKey, PayloadFromModel(m), m.Name)
	if err != nil {
		return "", err
	}
	location := resp.header.Get("Location")
	if location == "" {
		return "", engine.NewInternalFailure("control plane did not return a Location for the created monitor", nil).
			WithStatusCode(resp.status)
	}
	return location, nil
}

// FetchMonitor dereferences a Location returned by CreateMonitor. Relative
// locations are resolved against the base URL.
func (c *Client) FetchMonitor(ctx context.Context, apiKey, location string) (*model.Monitor, error) {
	target, err := c.resolve(location)
	if err != nil {
		return nil, engine.NewInternalFailure(fmt.Sprintf("invalid monitor location %q", location), err)
	}
	resp, err := c.do(ctx, OpFetchMonitor, http.MethodGet, target, apiKey, nil, location)
	if err != nil {
		return nil, err
	}
	return resp.monitor(location)
}

// GetMonitor fetches a monitor by its identifier.
func (c *Client) GetMonitor(ctx context.Context, apiKey, id string) (*model.Monitor, error) {
	resp, err := c.do(ctx, OpGetMonitor, http.MethodGet, c.monitorsURL(id), apiKey, nil, id)
	if err != nil {
		return nil, err
	}
	return resp.monitor(id)
}

// ReplaceMonitor overwrites the monitor with the given identifier.
func (c *Client) ReplaceMonitor(ctx context.Context, apiKey, id string, m model.Monitor) error {
	_, err := c.do(ctx, OpReplaceMonitor, http.MethodPut, c.monitorsURL(id), apiKey, PayloadFromModel(m.WithID(id)), id)
	return err
}

// DeleteMonitor removes the monitor with the given identifier.
func (c *Client) DeleteMonitor(ctx context.Context, apiKey, id string) error {
	_, err := c.do(ctx, OpDeleteMonitor, http.MethodDelete, c.monitorsURL(id), apiKey, nil, id)
	return err
}

func (c *Client) monitorsURL(id string) string {
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + monitorsPath
	if id != "" {
		u.Path += "/" + id
	}
	return u.String()
}

func (c *Client) resolve(location string) (string, error) {
	ref, err := url.Parse(strings.TrimSpace(location))
	if err != nil {
		return "", err
	}
	return c.base.ResolveReference(ref).String(), nil
}

type response struct {
	status int
	header http.Header
	body   []byte
}

func (r *response) monitor(identifier string) (*model.Monitor, error) {
	body := bytes.TrimSpace(r.body)
	if len(body) == 0 {
		body = []byte("{}")
	}
	var p MonitorPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, engine.NewInternalFailure("failed to decode control plane response", err).
			WithStatusCode(r.status).
			WithResource(model.TypeName, identifier)
	}
	m := p.Model()
	return &m, nil
}

func (c *Client) do(ctx context.Context, op, method, target, apiKey string, payload interface{}, identifier string) (*response, error) {
	ctx, span := c.tel.Tracer.StartAPICallSpan(ctx, op, method, target)
	defer span.End()
	timer := telemetry.NewTimer()
	logger := c.tel.Logger.NewComponentLogger("monitorapi").WithField("operation", op)

	resp, err := c.roundTrip(ctx, method, target, apiKey, payload)
	if err != nil {
		c.tel.Metrics.RecordAPICall(op, 0, timer.Duration())
		telemetry.RecordError(span, err)
		logger.WithError(err).Warn("control plane request failed")
		return nil, engine.NewInternalFailure(fmt.Sprintf("%s %s failed", method, target), err)
	}

	c.tel.Metrics.RecordAPICall(op, resp.status, timer.Duration())
	span.SetAttributes(telemetry.AttrHTTPStatus.Int(resp.status))

	if err := Classify(resp.status, http.StatusText(resp.status), identifier); err != nil {
		telemetry.RecordError(span, err)
		logger.Zerolog().Debug().Int("status", resp.status).Str("error_code", string(engine.CodeOf(err))).Msg("control plane call rejected")
		return nil, err
	}

	telemetry.RecordSuccess(span)
	logger.Zerolog().Debug().Int("status", resp.status).Dur("duration", timer.Duration()).Msg("control plane call succeeded")
	return resp, nil
}

func (c *Client) roundTrip(ctx context.Context, method, target, apiKey string, payload interface{}) (*response, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderAPIKey, apiKey)
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return &response{
		status: resp.StatusCode,
		header: resp.Header,
		body:   data,
	}, nil
}
