// Package aeronet provides a client for the AERONET version 3 web service
// (print_web_data_v3). It validates query options, fetches the CSV
// payload, optionally keeps a raw copy on disk and parses the result into a
// Table with optional UTC and local standard time columns.
package aeronet

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/aerosolkit/aeronet/internal/provider/resilience"
)

const (
	// DefaultBaseURL is the AERONET version 3 data endpoint.
	DefaultBaseURL = "https://aeronet.gsfc.nasa.gov/cgi-bin/print_web_data_v3"

	// ProviderName identifies this provider in logs and health checks.
	ProviderName = "aeronet"

	// DefaultTimeout bounds a single request. Multi-month queries are slow.
	DefaultTimeout = 2 * time.Minute
)

// HTTPDoer abstracts HTTP request execution.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig holds configuration for the AERONET client.
type ClientConfig struct {
	// BaseURL is the service root (defaults to DefaultBaseURL).
	BaseURL string

	// Defaults are merged under every request's options. Unknown keys make
	// NewClient fail.
	Defaults Options

	// HTTPClient executes requests. If nil, a resilient client without
	// retries is created.
	HTTPClient HTTPDoer

	// Timeout for the default HTTP client (default: DefaultTimeout).
	Timeout time.Duration

	// Logger for client operations.
	Logger zerolog.Logger
}

// Response is the raw service answer.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	URL        string
}

// TableParams controls ToTable.
type TableParams struct {
	// CachePath, if set, is read instead of the network when it exists and
	// written with the raw response otherwise.
	CachePath string

	AddUTC bool
	AddLST bool
}

// Client is an AERONET web service client. Default options may be replaced
// with SetDefaultOptions while other goroutines issue requests.
type Client struct {
	baseURL    string
	httpClient HTTPDoer
	logger     zerolog.Logger
	tracer     trace.Tracer
	metrics    *instruments

	mu       sync.RWMutex
	defaults Options
}

// NewClient creates a new AERONET client.
func NewClient(cfg ClientConfig) (*Client, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = DefaultTimeout
		}
		httpClient = resilience.NewClient(resilience.ClientConfig{
			Name:    ProviderName,
			Timeout: timeout,
		})
	}

	metrics, err := newInstruments()
	if err != nil {
		return nil, fmt.Errorf("create instruments: %w", err)
	}

	c := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "?"),
		httpClient: httpClient,
		logger:     cfg.Logger,
		tracer:     otel.Tracer(instrumentationName),
		metrics:    metrics,
		defaults:   Options{},
	}

	if err := c.SetDefaultOptions(cfg.Defaults); err != nil {
		return nil, err
	}

	return c, nil
}

// BaseURL returns the service root requests are sent to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// DefaultOptions returns a copy of the current default options.
func (c *Client) DefaultOptions() Options {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.defaults.Clone()
}

// SetDefaultOptions merges opts over the current defaults and stores the
// result for later calls. Required parameters need not be present yet, but
// unknown keys are rejected. if_no_html=1 is added unless opts sets it.
func (c *Client) SetDefaultOptions(opts Options) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	merged, err := ValidateOptions(c.defaults, opts, false)
	if err != nil {
		return err
	}
	if _, ok := merged[OptNoHTML]; !ok {
		merged[OptNoHTML] = "1"
	}
	c.defaults = merged
	return nil
}

// Validate merges opts over the client defaults and checks the result
// without touching the client.
func (c *Client) Validate(opts Options, requireMandatory bool) (Options, error) {
	c.mu.RLock()
	defaults := c.defaults
	c.mu.RUnlock()

	return ValidateOptions(defaults, opts, requireMandatory)
}

// RequestURL returns the URL Fetch would request for opts.
func (c *Client) RequestURL(opts Options) (string, error) {
	validated, err := c.Validate(opts, true)
	if err != nil {
		return "", err
	}
	return c.baseURL + "?" + validated.Encode(), nil
}

// Fetch validates opts and performs the GET request. Any non-2xx status is
// returned as a *StatusError.
func (c *Client) Fetch(ctx context.Context, opts Options) (*Response, error) {
	ctx, span := c.tracer.Start(ctx, "aeronet.Fetch", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	url, err := c.RequestURL(opts)
	if err != nil {
		return nil, spanError(span, err)
	}
	span.SetAttributes(attribute.String("url.full", url))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, spanError(span, fmt.Errorf("create request: %w", err))
	}

	c.logger.Debug().Str("url", url).Msg("requesting aeronet data")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrTransport, err)
		c.metrics.recordRequest(ctx, time.Since(start), 0, 0, err)
		return nil, spanError(span, err)
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err := &StatusError{StatusCode: resp.StatusCode, URL: url}
		c.metrics.recordRequest(ctx, time.Since(start), resp.StatusCode, 0, err)
		return nil, spanError(span, err)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		err = fmt.Errorf("%w: read body: %w", ErrTransport, err)
		c.metrics.recordRequest(ctx, time.Since(start), resp.StatusCode, 0, err)
		return nil, spanError(span, err)
	}
	c.metrics.recordRequest(ctx, time.Since(start), resp.StatusCode, len(body), nil)

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
		URL:        url,
	}, nil
}

// ToTable returns the observations for opts as a Table.
//
// If params.CachePath names an existing file, that file is parsed and opts
// is ignored entirely. Otherwise the data is fetched and, when a cache path
// is given, saved there before being parsed.
func (c *Client) ToTable(ctx context.Context, opts Options, params TableParams) (*Table, error) {
	ctx, span := c.tracer.Start(ctx, "aeronet.ToTable")
	defer span.End()

	readOpts := ReadOptions{AddUTC: params.AddUTC, AddLST: params.AddLST}

	if params.CachePath != "" {
		span.SetAttributes(attribute.String("aeronet.cache_path", params.CachePath))

		exists, err := cacheExists(params.CachePath)
		if err != nil {
			return nil, spanError(span, err)
		}
		c.metrics.recordCache(ctx, exists)
		span.SetAttributes(attribute.Bool("aeronet.cache_hit", exists))

		if exists {
			c.logger.Warn().Str("path", params.CachePath).Msg("using cached file")
			t, err := ReadTableFile(params.CachePath, readOpts)
			if err != nil {
				return nil, spanError(span, err)
			}
			return t, nil
		}
	}

	resp, err := c.Fetch(ctx, opts)
	if err != nil {
		return nil, spanError(span, err)
	}

	if params.CachePath == "" {
		t, err := ReadTable(bytes.NewReader(resp.Body), readOpts)
		if err != nil {
			return nil, spanError(span, err)
		}
		return t, nil
	}

	path, err := writeCache(params.CachePath, resp.Body)
	if err != nil {
		return nil, spanError(span, err)
	}
	c.logger.Info().
		Str("path", path).
		Int("bytes", len(resp.Body)).
		Msg("cached aeronet response")

	t, err := ReadTableFile(path, readOpts)
	if err != nil {
		return nil, spanError(span, err)
	}
	return t, nil
}

func spanError(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
