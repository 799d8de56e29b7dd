// Package service implements the core proxy forwarding logic.
package service

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"gemini-proxy-go/internal/client"
	"gemini-proxy-go/internal/config"
	"gemini-proxy-go/internal/model"
)

var (
	// ErrMissingAPIKey is returned when no Gemini API key is configured.
	ErrMissingAPIKey = errors.New("API key is not configured")

	// ErrInvalidPayload is returned when the inbound body is not valid JSON.
	// Such a body is never forwarded.
	ErrInvalidPayload = errors.New("request body is not valid JSON")

	// ErrInvalidUpstreamJSON is returned when a 2xx upstream body is not valid JSON.
	ErrInvalidUpstreamJSON = errors.New("upstream response is not valid JSON")
)

// UpstreamError is a non-2xx upstream response. It is relayed to the caller
// unchanged: same status, raw body.
type UpstreamError struct {
	StatusCode int
	Body       []byte
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream returned status %d", e.StatusCode)
}

// allowedUpstreamHosts restricts which hosts the proxy will send the key to.
var allowedUpstreamHosts = map[string]bool{
	"generativelanguage.googleapis.com": true,
}

const userAgent = "gemini-proxy-go/1.0"

// ProxyService handles the forwarding logic for proxy requests.
type ProxyService struct {
	client   *client.GeminiClient
	cfg      *config.Config
	logger   *slog.Logger
	endpoint *url.URL
}

// NewProxyService creates a ProxyService.
func NewProxyService(c *client.GeminiClient, cfg *config.Config, logger *slog.Logger) (*ProxyService, error) {
	s, err := newProxyService(c, cfg, logger)
	if err != nil {
		return nil, err
	}
	if !allowedUpstreamHosts[s.endpoint.Hostname()] {
		return nil, fmt.Errorf("upstream host %q is not in the allowlist", s.endpoint.Hostname())
	}
	return s, nil
}

// NewProxyServiceForTest creates a ProxyService without host allowlist validation.
// This is intended only for tests that use httptest servers on localhost.
func NewProxyServiceForTest(c *client.GeminiClient, cfg *config.Config, logger *slog.Logger) (*ProxyService, error) {
	return newProxyService(c, cfg, logger)
}

func newProxyService(c *client.GeminiClient, cfg *config.Config, logger *slog.Logger) (*ProxyService, error) {
	endpoint, err := generateContentURL(cfg.Upstream)
	if err != nil {
		return nil, err
	}
	return &ProxyService{
		client:   c,
		cfg:      cfg,
		logger:   logger.With("component", "proxy_service"),
		endpoint: endpoint,
	}, nil
}

// generateContentURL resolves {base_url}/{api_version}/models/{model}:generateContent.
func generateContentURL(up config.UpstreamConfig) (*url.URL, error) {
	u, err := url.Parse(up.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse upstream base_url: %w", err)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/" + up.APIVersion + "/models/" + up.Model + ":generateContent"
	u.RawPath = ""
	u.RawQuery = ""
	return u, nil
}

// Forward validates the inbound payload, sends it to Gemini with the configured
// key and classifies the outcome.
//
// Errors, in the order they are checked:
//   - ErrMissingAPIKey: no key configured; nothing is sent.
//   - ErrInvalidPayload: body is not JSON; nothing is sent.
//   - *UpstreamError: Gemini answered non-2xx.
//   - ErrInvalidUpstreamJSON or a wrapped transport error: anything else.
func (s *ProxyService) Forward(pr *model.ProxyRequest) (*model.ProxyResponse, error) {
	apiKey := s.cfg.Gemini.APIKey
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	payload, err := reserialize(pr.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}

	s.logger.Debug("forwarding request",
		"model", s.cfg.Upstream.Model,
		"bytes", len(payload),
	)

	resp, err := s.client.Post(pr.Ctx, s.buildUpstreamURL(apiKey), s.requestHeaders(), payload)
	if err != nil {
		return nil, fmt.Errorf("forward to upstream: %w", err)
	}

	if !resp.OK() {
		return nil, &UpstreamError{StatusCode: resp.StatusCode, Body: resp.Body}
	}

	data, err := reserialize(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidUpstreamJSON, err)
	}

	return &model.ProxyResponse{
		StatusCode: http.StatusOK,
		Header: http.Header{
			"Content-Type":                {"application/json"},
			"Access-Control-Allow-Origin": {"*"},
		},
		Body: data,
	}, nil
}

func (s *ProxyService) buildUpstreamURL(apiKey string) string {
	u := *s.endpoint
	q := make(url.Values)
	q.Set("key", apiKey)
	u.RawQuery = q.Encode()
	return u.String()
}

// requestHeaders is the fixed upstream header set; inbound headers are not forwarded.
func (s *ProxyService) requestHeaders() http.Header {
	return http.Header{
		"Content-Type": {"application/json"},
		"User-Agent":   {userAgent},
	}
}

// reserialize validates data as a single JSON value and returns it compacted.
// Member order and string escapes are preserved.
func reserialize(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := json.Compact(&buf, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
