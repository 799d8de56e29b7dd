// Package client provides the upstream HTTP client for the Gemini API.
package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"gemini-proxy-go/internal/config"
	"gemini-proxy-go/internal/metrics"
	"gemini-proxy-go/internal/model"
)

// maxResponseBytes caps how much of an upstream body is buffered.
const maxResponseBytes = 32 << 20

// GeminiClient sends requests to the upstream Gemini API.
type GeminiClient struct {
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *metrics.Metrics
	model      string
}

// NewGeminiClient creates a GeminiClient with connection pooling and timeouts.
// The metrics parameter is optional; pass nil to disable upstream metrics recording.
func NewGeminiClient(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) *GeminiClient {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        cfg.Upstream.IdleConnections,
		MaxIdleConnsPerHost: cfg.Upstream.IdleConnections,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
	}

	return &GeminiClient{
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   time.Duration(cfg.Upstream.TimeoutSeconds) * time.Second,
		},
		logger:  logger.With("component", "gemini_client"),
		metrics: m,
		model:   cfg.Upstream.Model,
	}
}

// Do executes an HTTP request against the upstream and buffers the whole response.
// The returned error never carries the response; a non-2xx status is not an error here.
func (c *GeminiClient) Do(req *http.Request) (*model.ProxyResponse, error) {
	// Only the path is logged: the query string carries the credential.
	c.logger.Debug("upstream request",
		"method", req.Method,
		"path", req.URL.Path,
	)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.observe(start, "")
		return nil, fmt.Errorf("upstream request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	c.observe(start, strconv.Itoa(resp.StatusCode))
	if err != nil {
		return nil, fmt.Errorf("read upstream body: %w", err)
	}

	return &model.ProxyResponse{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}, nil
}

// Post sends body to url with the given headers. The provided context controls
// the lifetime of the upstream request: when the inbound request is canceled,
// so is the upstream call.
func (c *GeminiClient) Post(ctx context.Context, url string, header http.Header, body []byte) (*model.ProxyResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build upstream request: %w", err)
	}
	req.Header = header

	return c.Do(req)
}

// observe records upstream latency and, when status is known, the response count.
func (c *GeminiClient) observe(start time.Time, status string) {
	if c.metrics == nil {
		return
	}
	c.metrics.UpstreamDuration.WithLabelValues(c.model).Observe(time.Since(start).Seconds())
	if status != "" {
		c.metrics.UpstreamResponses.WithLabelValues(c.model, status).Inc()
	}
}
