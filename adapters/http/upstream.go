package http

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/ImagingSolutions/UsageMonitor/adapters/metrics"
	"github.com/ImagingSolutions/UsageMonitor/pkg/jsonapi"
)

const (
	maxRequestBody  = 10 << 20
	maxResponseBody = 50 << 20
)

// hopHeaders are connection-scoped and never forwarded.
var hopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// UpstreamClient forwards metered requests to the protected API.
type UpstreamClient struct {
	client  *http.Client
	baseURL *url.URL
	apiKey  apiKey
	metrics *metrics.Collector
	logger  zerolog.Logger
}

type apiKey struct {
	header string
	value  string
}

// UpstreamConfig contains configuration for the upstream client.
type UpstreamConfig struct {
	BaseURL         string
	Timeout         time.Duration
	MaxIdleConns    int
	IdleConnTimeout time.Duration

	// APIKeyHeader and APIKey, when both set, are added to every
	// forwarded request.
	APIKeyHeader string
	APIKey       string

	Metrics *metrics.Collector
	Logger  zerolog.Logger
}

// Response is a buffered upstream response.
type Response struct {
	Status  int
	Header  http.Header
	Body    []byte
	Latency time.Duration
}

// NewUpstreamClient creates a new upstream HTTP client.
func NewUpstreamClient(cfg UpstreamConfig) (*UpstreamClient, error) {
	baseURL, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}
	if baseURL.Scheme != "http" && baseURL.Scheme != "https" {
		return nil, fmt.Errorf("upstream URL %q must be http or https", cfg.BaseURL)
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	maxIdleConns := cfg.MaxIdleConns
	if maxIdleConns == 0 {
		maxIdleConns = 100
	}

	idleConnTimeout := cfg.IdleConnTimeout
	if idleConnTimeout == 0 {
		idleConnTimeout = 90 * time.Second
	}

	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        maxIdleConns,
		MaxIdleConnsPerHost: maxIdleConns,
		IdleConnTimeout:     idleConnTimeout,
	}

	return &UpstreamClient{
		client: &http.Client{
			Transport: transport,
			Timeout:   timeout,
			// Redirects are the client's business.
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		baseURL: baseURL,
		apiKey:  apiKey{header: cfg.APIKeyHeader, value: cfg.APIKey},
		metrics: cfg.Metrics,
		logger:  cfg.Logger,
	}, nil
}

// Forward sends r to the upstream and buffers the response.
func (u *UpstreamClient) Forward(ctx context.Context, r *http.Request) (Response, error) {
	start := time.Now()

	var body io.Reader
	if r.Body != nil && r.Body != http.NoBody {
		data, err := io.ReadAll(r.Body)
		if err != nil {
			return Response{}, fmt.Errorf("read request body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	target := *u.baseURL
	target.Path = joinPath(u.baseURL.Path, r.URL.Path)
	target.RawPath = ""
	target.RawQuery = r.URL.RawQuery

	req, err := http.NewRequestWithContext(ctx, r.Method, target.String(), body)
	if err != nil {
		return Response{}, fmt.Errorf("create request: %w", err)
	}
	req.Header = forwardHeaders(r)
	if u.apiKey.header != "" && u.apiKey.value != "" {
		req.Header.Set(u.apiKey.header, u.apiKey.value)
	}

	resp, err := u.client.Do(req)
	if err != nil {
		return Response{}, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return Response{}, fmt.Errorf("read response: %w", err)
	}

	header := resp.Header.Clone()
	stripHopHeaders(header)
	header.Del("Content-Length")

	return Response{
		Status:  resp.StatusCode,
		Header:  header,
		Body:    respBody,
		Latency: time.Since(start),
	}, nil
}

// ServeHTTP proxies the request and writes the upstream response. Transport
// failures are answered with 502, timeouts with 504 and oversized bodies
// with 413; a caller that went away gets nothing.
func (u *UpstreamClient) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)

	resp, err := u.Forward(r.Context(), r)
	if err != nil {
		u.fail(w, r, err)
		return
	}

	for k, vs := range resp.Header {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	w.WriteHeader(resp.Status)
	if _, err := w.Write(resp.Body); err != nil {
		u.logger.Debug().Err(err).Str("path", r.URL.Path).Msg("failed to write upstream response")
	}
}

func (u *UpstreamClient) fail(w http.ResponseWriter, r *http.Request, err error) {
	var tooLarge *http.MaxBytesError
	var netErr net.Error

	switch {
	case errors.As(err, &tooLarge):
		jsonapi.WriteError(w, jsonapi.NewError(http.StatusRequestEntityTooLarge, "body_too_large", "Request Entity Too Large").
			Detailf("Request bodies are limited to %d bytes", tooLarge.Limit).Build())
	case errors.Is(err, context.Canceled):
		// Client gone.
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &netErr) && netErr.Timeout():
		u.metrics.ObserveUpstreamError("timeout")
		u.logger.Warn().Err(err).Str("path", r.URL.Path).Msg("upstream timed out")
		jsonapi.WriteError(w, jsonapi.ErrGatewayTimeout())
	default:
		u.metrics.ObserveUpstreamError("connection")
		u.logger.Error().Err(err).Str("path", r.URL.Path).Msg("upstream request failed")
		jsonapi.WriteError(w, jsonapi.ErrBadGateway("The upstream API could not be reached"))
	}
}

// HealthCheck reports whether the upstream is reachable. Any HTTP
// response, even 404, counts as reachable.
func (u *UpstreamClient) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, u.baseURL.String(), nil)
	if err != nil {
		return err
	}

	resp, err := u.client.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// Close releases idle connections.
func (u *UpstreamClient) Close() error {
	u.client.CloseIdleConnections()
	return nil
}

// forwardHeaders copies the inbound headers minus hop-by-hop ones and
// adds the X-Forwarded-* and X-Request-ID headers.
func forwardHeaders(r *http.Request) http.Header {
	h := r.Header.Clone()
	if h == nil {
		h = http.Header{}
	}
	stripHopHeaders(h)

	if ip := clientIP(r); ip != "" {
		if prior := h.Get("X-Forwarded-For"); prior != "" {
			ip = prior + ", " + ip
		}
		h.Set("X-Forwarded-For", ip)
	}
	h.Set("X-Forwarded-Host", r.Host)
	if r.TLS != nil {
		h.Set("X-Forwarded-Proto", "https")
	} else {
		h.Set("X-Forwarded-Proto", "http")
	}
	if id := middleware.GetReqID(r.Context()); id != "" {
		h.Set("X-Request-ID", id)
	}
	return h
}

func stripHopHeaders(h http.Header) {
	// Headers named in Connection are hop-by-hop too.
	for _, v := range h.Values("Connection") {
		for _, name := range strings.Split(v, ",") {
			if name = strings.TrimSpace(name); name != "" {
				h.Del(name)
			}
		}
	}
	for _, name := range hopHeaders {
		h.Del(name)
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func joinPath(base, path string) string {
	switch {
	case base == "" || base == "/":
		return path
	case strings.HasSuffix(base, "/") && strings.HasPrefix(path, "/"):
		return base + path[1:]
	case !strings.HasSuffix(base, "/") && !strings.HasPrefix(path, "/"):
		return base + "/" + path
	default:
		return base + path
	}
}
