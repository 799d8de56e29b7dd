package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"regexp"

	"github.com/labstack/echo/v4"

	"gemini-proxy-go/internal/metrics"
	"gemini-proxy-go/internal/model"
	"gemini-proxy-go/internal/service"
)

// Fixed response bodies.
const (
	methodNotAllowedBody = "Method Not Allowed"
	missingAPIKeyBody    = "API key is not configured."
)

var internalErrorBody = []byte(`{"error":"An internal error occurred."}`)

// apiKeyPattern matches key query parameter values in URLs embedded in error messages.
var apiKeyPattern = regexp.MustCompile(`(?i)([?&]key=)[^&\s"]+`)

// ProxyHandler forwards generateContent payloads to the upstream Gemini API.
type ProxyHandler struct {
	service *service.ProxyService
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewProxyHandler creates a ProxyHandler. m may be nil.
func NewProxyHandler(svc *service.ProxyService, logger *slog.Logger, m *metrics.Metrics) *ProxyHandler {
	return &ProxyHandler{
		service: svc,
		logger:  logger.With("component", "proxy_handler"),
		metrics: m,
	}
}

// Handle accepts a POSTed JSON payload, forwards it upstream with the server-held
// key and writes back the upstream result.
func (h *ProxyHandler) Handle(c echo.Context) error {
	req := c.Request()

	if req.Method != http.MethodPost {
		h.metrics.ObserveOutcome(metrics.OutcomeMethodNotAllowed)
		return c.String(http.StatusMethodNotAllowed, methodNotAllowedBody)
	}

	body, err := io.ReadAll(req.Body)
	if err != nil {
		return h.mapError(c, err)
	}

	resp, err := h.service.Forward(&model.ProxyRequest{
		Ctx:    req.Context(),
		Method: req.Method,
		Header: req.Header,
		Body:   body,
	})
	if err != nil {
		return h.mapError(c, err)
	}

	for key, vals := range resp.Header {
		for _, v := range vals {
			c.Response().Header().Add(key, v)
		}
	}
	c.Response().WriteHeader(resp.StatusCode)
	if _, err := c.Response().Write(resp.Body); err != nil {
		h.logger.Error("writing response body", "err", err)
	}

	h.metrics.ObserveOutcome(metrics.OutcomeSuccess)
	return nil
}

// mapError writes the response for a failed invocation. Only a missing key and
// an upstream non-2xx are distinguishable by the caller; every other failure
// collapses to the same internal error body.
func (h *ProxyHandler) mapError(c echo.Context, err error) error {
	if errors.Is(err, service.ErrMissingAPIKey) {
		h.logger.Error("proxy error", "err", err)
		h.metrics.ObserveOutcome(metrics.OutcomeConfigError)
		return c.String(http.StatusInternalServerError, missingAPIKeyBody)
	}

	var upErr *service.UpstreamError
	if errors.As(err, &upErr) {
		h.logger.Error("upstream error",
			"status", upErr.StatusCode,
			"body", string(upErr.Body),
		)
		h.metrics.ObserveOutcome(metrics.OutcomeUpstreamError)
		c.Response().WriteHeader(upErr.StatusCode)
		if _, werr := c.Response().Write(upErr.Body); werr != nil {
			h.logger.Error("writing response body", "err", werr)
		}
		return nil
	}

	h.logger.Error("proxy error",
		"err", sanitizeError(err),
		"path", c.Request().URL.Path,
	)
	h.metrics.ObserveOutcome(metrics.OutcomeInternalError)
	return c.JSONBlob(http.StatusInternalServerError, internalErrorBody)
}

// sanitizeError redacts API keys from error messages that may contain upstream URLs.
func sanitizeError(err error) string {
	return apiKeyPattern.ReplaceAllString(err.Error(), "${1}[REDACTED]")
}
