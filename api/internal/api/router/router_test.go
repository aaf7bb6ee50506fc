package router

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"akatsuki/api/internal/api/handlers"
	api_middleware "akatsuki/api/internal/api/middleware"
	"akatsuki/api/internal/core/domain"
	"akatsuki/api/internal/metrics"
)

type stubGateway struct {
	domain.QueryGateway
}

func (stubGateway) QueryOne(ctx context.Context, method, query string, args ...any) (domain.Row, error) {
	return domain.Row{"ok": int64(1)}, nil
}

type stubMailer struct{}

func (stubMailer) Send(ctx context.Context, msg domain.MailMessage) error { return nil }

const testKey = "router-test-key"

func newTestMux(limiter *api_middleware.RateLimiter) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewRouter(RouterConfig{
		AllowedOrigins:   []string{"https://app.example.com"},
		HealthHandler:    handlers.NewHealthHandler(stubGateway{}),
		DevHandler:       handlers.NewDevHandler(),
		MailHandler:      handlers.NewMailHandler(stubMailer{}, logger),
		APIKeyMiddleware: api_middleware.NewAPIKeyMiddleware(testKey, logger),
		RateLimiter:      limiter,
		Metrics:          metrics.New(nil),
		Logger:           logger,
	})
}

func newTestServer(t *testing.T, limiter *api_middleware.RateLimiter) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(newTestMux(limiter))
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, method, url, key, body string) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	if key != "" {
		req.Header.Set("Authorization", key)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(b)
}

func TestRouter_PublicEndpoints(t *testing.T) {
	srv := newTestServer(t, nil)

	resp, body := do(t, http.MethodGet, srv.URL+"/ping", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "pong", body)

	resp, body = do(t, http.MethodGet, srv.URL+"/health", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "healthy", body)
}

func TestRouter_APIKeyGroup(t *testing.T) {
	srv := newTestServer(t, nil)

	resp, body := do(t, http.MethodPost, srv.URL+"/v1/test", "", "")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.JSONEq(t, `{"message": "Could not validate credentials"}`, body)

	resp, body = do(t, http.MethodPost, srv.URL+"/v1/test", testKey, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"text": ""}`, body)

	resp, _ = do(t, http.MethodPost, srv.URL+"/v1/mail", testKey, `{"subject":"s","message":"m"}`)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
}

func TestRouter_BodyLimit(t *testing.T) {
	huge := `{"subject":"s","message":"` + strings.Repeat("x", 2*maxBodyBytes) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/mail", strings.NewReader(huge))
	req.Header.Set("Authorization", testKey)
	rec := httptest.NewRecorder()

	newTestMux(nil).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouter_RateLimit(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	srv := newTestServer(t, api_middleware.NewRateLimiter(ctx, 0.001, 2))

	for i := 0; i < 2; i++ {
		resp, _ := do(t, http.MethodGet, srv.URL+"/ping", "", "")
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	}
	resp, _ := do(t, http.MethodGet, srv.URL+"/ping", "", "")
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestRouter_CORSPreflight(t *testing.T) {
	srv := newTestServer(t, nil)

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/v1/test", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	req.Header.Set("Access-Control-Request-Headers", "Authorization")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "https://app.example.com", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestRouter_MetricsEndpoint(t *testing.T) {
	srv := newTestServer(t, nil)

	do(t, http.MethodPost, srv.URL+"/v1/test", testKey, "")
	resp, body := do(t, http.MethodGet, srv.URL+"/metrics", "", "")

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `akatsuki_http_requests_total{method="POST",route="/v1/test",status="200"} 1`)
}
