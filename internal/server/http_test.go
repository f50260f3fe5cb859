package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmmcquay/sgfrender/internal/config"
	"github.com/dmmcquay/sgfrender/internal/health"
	"github.com/dmmcquay/sgfrender/internal/logging"
	"github.com/dmmcquay/sgfrender/internal/pipeline"
	"github.com/dmmcquay/sgfrender/internal/ratelimit"
)

const captureGame = "(;SZ[5];B[aa];W[ba];B[cc];W[ab])"

type fakeRecorder struct {
	mu    sync.Mutex
	paths []string
	codes []string
}

func (f *fakeRecorder) RecordHTTPRequest(method, path, status string, _ float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paths = append(f.paths, method+" "+path)
	f.codes = append(f.codes, status)
}

func defaults() config.RenderConfig {
	return config.RenderConfig{Theme: "dark", CellSize: 20, Coordinates: true}
}

func newTestServer(t *testing.T, limiter *ratelimit.Limiter, recorder HTTPRecorder) *HTTPServer {
	t.Helper()
	logger := logging.NewNopLogger()
	checker := health.NewChecker(logger, "1.0.0", "abc123")
	checker.RegisterCheck("ok", func(context.Context) error { return nil })

	return NewHTTPServer(":0", Deps{
		Logger:   logger,
		Checker:  checker,
		Service:  pipeline.NewService(logger),
		Defaults: defaults(),
		Recorder: recorder,
		Limiter:  limiter,
	})
}

func do(t *testing.T, h http.Handler, method, target, contentType, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestNewHTTPServer(t *testing.T) {
	s := newTestServer(t, nil, nil)
	assert.Equal(t, ":0", s.server.Addr)
	assert.Equal(t, ":0", s.Addr())
}

func TestHTTPServerStartStop(t *testing.T) {
	s := newTestServer(t, nil, nil)
	require.NoError(t, s.Start())

	resp, err := http.Get("http://" + s.Addr() + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
}

func TestHealthEndpoints(t *testing.T) {
	h := newTestServer(t, nil, nil).server.Handler

	for _, path := range []string{"/health", "/ready"} {
		t.Run(path, func(t *testing.T) {
			rec := do(t, h, http.MethodGet, path, "", "")
			assert.Equal(t, http.StatusOK, rec.Code)

			var resp health.Response
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, health.StatusHealthy, resp.Status)
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	rec := do(t, newTestServer(t, nil, nil).server.Handler, http.MethodGet, "/metrics", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestThemesEndpoint(t *testing.T) {
	rec := do(t, newTestServer(t, nil, nil).server.Handler, http.MethodGet, "/themes", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var themes []themeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &themes))
	require.Len(t, themes, 3)
	assert.Equal(t, "dark", themes[0].Name)
	assert.True(t, themes[0].Default)
	assert.False(t, themes[1].Default)
}

func TestRenderJSON(t *testing.T) {
	h := newTestServer(t, nil, nil).server.Handler

	body := `{"sgf":"` + captureGame + `","theme":"paper","kifu":true,"coordinates":false}`
	rec := do(t, h, http.MethodPost, "/render", "application/json", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))

	img, err := png.Decode(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	// Five cells of 20 pixels plus one cell of margin on each side.
	assert.Equal(t, 140, img.Bounds().Dx())
	assert.Equal(t, 140, img.Bounds().Dy())
}

func TestRenderRawBodyWithQuery(t *testing.T) {
	h := newTestServer(t, nil, nil).server.Handler

	rec := do(t, h, http.MethodPost, "/render?theme=light&move=2&cellSize=30", "application/x-go-sgf", captureGame)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	img, err := png.Decode(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, 210, img.Bounds().Dx())
}

func TestRenderErrors(t *testing.T) {
	h := newTestServer(t, nil, nil).server.Handler

	tests := []struct {
		name        string
		target      string
		contentType string
		body        string
		wantCode    int
		wantStage   string
		wantMessage string
	}{
		{
			name:        "unknown theme",
			target:      "/render",
			contentType: "application/json",
			body:        `{"sgf":"(;SZ[9])","theme":"sepia"}`,
			wantCode:    http.StatusBadRequest,
			wantStage:   "config",
			wantMessage: "unknown theme",
		},
		{
			name:        "malformed record",
			target:      "/render",
			contentType: "application/json",
			body:        `{"sgf":"(;B["}`,
			wantCode:    http.StatusBadRequest,
			wantStage:   "parse",
			wantMessage: "parse error",
		},
		{
			name:        "illegal move",
			target:      "/render",
			contentType: "application/json",
			body:        `{"sgf":"(;SZ[5];B[aa];W[aa])"}`,
			wantCode:    http.StatusUnprocessableEntity,
			wantStage:   "replay",
			wantMessage: "occupied point",
		},
		{
			name:        "bad cell size",
			target:      "/render?cellSize=5",
			body:        "(;SZ[9])",
			wantCode:    http.StatusBadRequest,
			wantStage:   "config",
			wantMessage: "cellSize",
		},
		{
			name:        "invalid json",
			target:      "/render",
			contentType: "application/json",
			body:        `{"sgf":`,
			wantCode:    http.StatusBadRequest,
			wantMessage: "invalid JSON",
		},
		{
			name:        "unknown field",
			target:      "/render",
			contentType: "application/json",
			body:        `{"sgf":"(;SZ[9])","colour":"red"}`,
			wantCode:    http.StatusBadRequest,
			wantMessage: "invalid JSON",
		},
		{
			name:        "empty body",
			target:      "/render",
			body:        "  ",
			wantCode:    http.StatusBadRequest,
			wantMessage: "empty game record",
		},
		{
			name:        "bad query boolean",
			target:      "/render?kifu=maybe",
			body:        "(;SZ[9])",
			wantCode:    http.StatusBadRequest,
			wantMessage: "kifu must be a boolean",
		},
		{
			name:        "bad query integer",
			target:      "/render?move=two",
			body:        "(;SZ[9])",
			wantCode:    http.StatusBadRequest,
			wantMessage: "move must be an integer",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, tt.target, tt.contentType, tt.body)
			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))

			resp := decodeError(t, rec)
			assert.Equal(t, tt.wantStage, resp.Stage)
			assert.Contains(t, resp.Error, tt.wantMessage)
		})
	}
}

func TestRenderBodyTooLarge(t *testing.T) {
	h := newTestServer(t, nil, nil).server.Handler

	body := "(;SZ[19]C[" + strings.Repeat("x", maxBodyBytes) + "])"
	rec := do(t, h, http.MethodPost, "/render", "", body)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestRenderRateLimited(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	limiter := ratelimit.NewLimiter(ctx, &config.RateLimitConfig{
		Enabled:        true,
		RequestsPerMin: 60,
		BurstSize:      1,
	}, logging.NewNopLogger())
	defer limiter.Close()

	h := newTestServer(t, limiter, nil).server.Handler

	first := do(t, h, http.MethodPost, "/render", "", "(;SZ[9])")
	require.Equal(t, http.StatusOK, first.Code)

	second := do(t, h, http.MethodPost, "/render", "", "(;SZ[9])")
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.NotEmpty(t, second.Header().Get("Retry-After"))
	assert.Contains(t, decodeError(t, second).Error, "rate limit exceeded")
}

func TestDescribeEndpoint(t *testing.T) {
	h := newTestServer(t, nil, nil).server.Handler

	rec := do(t, h, http.MethodPost, "/describe", "", captureGame)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var desc pipeline.Description
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &desc))
	assert.Equal(t, 5, desc.Width)
	assert.Equal(t, 4, desc.TotalMoves)
	assert.Equal(t, 3, desc.Stones)
	assert.Equal(t, 1, desc.Captures.White)
	assert.Equal(t, "ab", desc.LastMove)
}

func TestPrometheusMiddlewareUsesRoutePattern(t *testing.T) {
	recorder := &fakeRecorder{}
	h := newTestServer(t, nil, recorder).server.Handler

	do(t, h, http.MethodGet, "/themes", "", "")
	do(t, h, http.MethodPost, "/render", "", "(;B[")
	do(t, h, http.MethodGet, "/no/such/path", "", "")

	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	assert.Equal(t, []string{"GET /themes", "POST /render", "GET unmatched"}, recorder.paths)
	assert.Equal(t, []string{"200", "400", "404"}, recorder.codes)
}

func TestCorrelationMiddleware(t *testing.T) {
	h := newTestServer(t, nil, nil).server.Handler

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Correlation-ID", "corr-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "corr-123", rec.Header().Get("X-Correlation-ID"))

	rec = do(t, h, http.MethodGet, "/health", "", "")
	assert.NotEmpty(t, rec.Header().Get("X-Correlation-ID"))
}

func TestCorrelationMiddlewareSetsContext(t *testing.T) {
	var seen []string
	h := CorrelationMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, _ := logging.CorrelationIDFromContext(r.Context())
		seen = append(seen, id)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Correlation-ID", "abc")
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, []string{"abc"}, seen)
}

func TestRenderRequestOptions(t *testing.T) {
	theme := "paper"
	kifu := true
	cell := 60
	off := false

	tests := []struct {
		name string
		req  RenderRequest
		want pipeline.Options
	}{
		{
			name: "defaults",
			req:  RenderRequest{},
			want: pipeline.Options{Theme: "dark", CellSize: 20, Coordinates: true},
		},
		{
			name: "overrides",
			req:  RenderRequest{Theme: &theme, Kifu: &kifu, CellSize: &cell, Coordinates: &off},
			want: pipeline.Options{Theme: "paper", Kifu: true, CellSize: 60},
		},
		{
			name: "square board size",
			req:  RenderRequest{BoardSize: 13},
			want: pipeline.Options{Theme: "dark", CellSize: 20, Coordinates: true, BoardWidth: 13, BoardHeight: 13},
		},
		{
			name: "explicit width wins",
			req:  RenderRequest{BoardSize: 13, BoardWidth: 9},
			want: pipeline.Options{Theme: "dark", CellSize: 20, Coordinates: true, BoardWidth: 9, BoardHeight: 13},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.req.Options(defaults()))
		})
	}
}

func TestWriteErrorHidesInternalErrors(t *testing.T) {
	s := newTestServer(t, nil, nil)
	rec := httptest.NewRecorder()
	s.writeError(rec, httptest.NewRequest(http.MethodPost, "/render", nil), errors.New("disk on fire"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal error", decodeError(t, rec).Error)
}
