package app

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"

	"gemini-proxy-go/internal/config"
)

// startApp builds the module from a config file and returns the populated echo.
func startApp(t *testing.T, toml string, cli config.CLI) *echo.Echo {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(toml), 0o600))
	cli.Config = path

	var e *echo.Echo
	app := fxtest.New(t, Module(&cli, "test"), fx.Populate(&e))
	app.RequireStart()
	t.Cleanup(func() { app.RequireStop() })
	return e
}

func do(e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestModule_Routes(t *testing.T) {
	e := startApp(t, `
[log]
level = "error"

[metrics]
enabled = true
`, config.CLI{})

	rec := do(e, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	_, err := uuid.Parse(rec.Header().Get(echo.HeaderXRequestID))
	assert.NoError(t, err, "request id should be a UUID")
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	rec = do(e, http.MethodGet, "/.netlify/functions/gemini-proxy", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "Method Not Allowed", rec.Body.String())

	rec = do(e, http.MethodPost, "/.netlify/functions/gemini-proxy", `{"contents":[]}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "API key is not configured.", rec.Body.String())

	rec = do(e, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `gemini_proxy_outcomes_total{outcome="config_error"} 1`)
	assert.Contains(t, rec.Body.String(), "gemini_proxy_http_requests_total")
}

func TestModule_MetricsDisabled(t *testing.T) {
	e := startApp(t, "[log]\nlevel = \"error\"\n", config.CLI{APIKey: "k"})

	rec := do(e, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestModule_BodyLimit(t *testing.T) {
	e := startApp(t, `
[server]
body_max_bytes = 16

[log]
level = "error"
`, config.CLI{APIKey: "k"})

	rec := do(e, http.MethodPost, "/.netlify/functions/gemini-proxy", `{"contents":"this is longer than sixteen bytes"}`)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestModule_RejectsDisallowedUpstream(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[upstream]\nbase_url = \"https://evil.example.com\"\n"), 0o600))

	var e *echo.Echo
	app := fx.New(Module(&config.CLI{Config: path}, "test"), fx.Populate(&e))
	err := app.Err()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "allowlist")
}

func TestNewLogger(t *testing.T) {
	tests := []struct {
		level   string
		enabled slog.Level
		muted   slog.Level
	}{
		{"debug", slog.LevelDebug, slog.LevelDebug - 1},
		{"info", slog.LevelInfo, slog.LevelDebug},
		{"warn", slog.LevelWarn, slog.LevelInfo},
		{"error", slog.LevelError, slog.LevelWarn},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			logger := NewLogger(&config.Config{Log: config.LogConfig{Level: tt.level, Format: "text"}})
			assert.True(t, logger.Enabled(context.Background(), tt.enabled))
			assert.False(t, logger.Enabled(context.Background(), tt.muted))
		})
	}
}
