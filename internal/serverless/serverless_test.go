package serverless

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gemini-proxy-go/internal/client"
	"gemini-proxy-go/internal/config"
	"gemini-proxy-go/internal/handler"
	"gemini-proxy-go/internal/service"
)

const proxyPath = "/.netlify/functions/gemini-proxy"

// newEcho builds the routes against an arbitrary upstream (no host allowlist).
func newEcho(t *testing.T, baseURL, apiKey string) *echo.Echo {
	t.Helper()
	cfg := &config.Config{
		Server: config.ServerConfig{ProxyPath: proxyPath},
		Gemini: config.GeminiConfig{APIKey: apiKey},
		Upstream: config.UpstreamConfig{
			BaseURL:         baseURL,
			APIVersion:      "v1beta",
			Model:           "gemini-2.0-flash",
			TimeoutSeconds:  10,
			IdleConnections: 10,
		},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc, err := service.NewProxyServiceForTest(client.NewGeminiClient(cfg, logger, nil), cfg, logger)
	require.NoError(t, err)

	e := echo.New()
	handler.RegisterRoutes(e, cfg, handler.NewProxyHandler(svc, logger, nil), handler.NewHealthHandler(cfg, "test"))
	return e
}

func event(method, body string) events.APIGatewayProxyRequest {
	return events.APIGatewayProxyRequest{
		HTTPMethod: method,
		Path:       proxyPath,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       body,
		RequestContext: events.APIGatewayProxyRequestContext{
			DomainName: "example.netlify.app",
			Stage:      "prod",
		},
	}
}

func TestHandler_MethodNotAllowed(t *testing.T) {
	h := NewHandler(newEcho(t, "https://generativelanguage.googleapis.com", "k"))

	resp, err := h(context.Background(), event(http.MethodGet, ""))
	require.NoError(t, err)
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	assert.Equal(t, "Method Not Allowed", resp.Body)
}

func TestHandler_MissingAPIKey(t *testing.T) {
	h := NewHandler(newEcho(t, "https://generativelanguage.googleapis.com", ""))

	resp, err := h(context.Background(), event(http.MethodPost, `{"contents":[]}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "API key is not configured.", resp.Body)
}

func TestHandler_Success(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "lambda-key", r.URL.Query().Get("key"))
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, `{"contents":[{"parts":[{"text":"hi"}]}]}`, string(body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates": []}`))
	}))
	defer upstream.Close()

	h := NewHandler(newEcho(t, upstream.URL, "lambda-key"))

	resp, err := h(context.Background(), event(http.MethodPost, `{"contents": [{"parts": [{"text": "hi"}]}]}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, `{"candidates":[]}`, resp.Body)
	assert.False(t, resp.IsBase64Encoded)

	headers := http.Header(resp.MultiValueHeaders)
	assert.Equal(t, "*", headers.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "application/json", headers.Get("Content-Type"))
}

func TestHandler_UpstreamError(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`"rate limited"`))
	}))
	defer upstream.Close()

	h := NewHandler(newEcho(t, upstream.URL, "lambda-key"))

	resp, err := h(context.Background(), event(http.MethodPost, `{}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, `"rate limited"`, resp.Body)
}
