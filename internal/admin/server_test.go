package admin

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgeguard/edgeguard/internal/pinner"
	"github.com/edgeguard/edgeguard/internal/ratelimit"
)

func newTestServer(t *testing.T) (*Server, *ratelimit.Limiter, *pinner.Pinner) {
	t.Helper()

	limiter, err := ratelimit.New(&ratelimit.Config{
		Global: ratelimit.ScopeLimit{MaxRequests: 10, Window: time.Minute},
		Providers: map[string]ratelimit.ScopeLimit{
			"openai": {MaxRequests: 3, Window: time.Minute},
		},
		ProviderDefault: ratelimit.ScopeLimit{MaxRequests: 2, Window: time.Minute},
		PerUser:         ratelimit.ScopeLimit{MaxRequests: 2, Window: time.Minute},
		HistorySize:     50,
	})
	require.NoError(t, err)

	pin, err := pinner.New(pinner.DefaultConfig())
	require.NoError(t, err)

	srv := NewServer(Config{Address: "127.0.0.1", Port: 0}, limiter, pin)
	return srv, limiter, pin
}

func doRequest(srv *Server, method, path, body string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	rec := httptest.NewRecorder()
	srv.Engine().ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	t.Parallel()

	srv, _, _ := newTestServer(t)

	rec := doRequest(srv, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp["status"])
}

func TestRateLimitStatusEndpoint(t *testing.T) {
	t.Parallel()

	srv, limiter, _ := newTestServer(t)
	limiter.Decide("openai", "alice")

	rec := doRequest(srv, http.MethodGet, "/v1/ratelimit/status?provider=openai&user=alice", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var status ratelimit.Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))

	assert.Equal(t, 9, status.Global.Remaining)
	require.NotNil(t, status.Provider)
	assert.Equal(t, 2, status.Provider.Remaining)
	require.NotNil(t, status.User)
	assert.Equal(t, 1, status.User.Remaining)
}

func TestRateLimitHistoryEndpoint(t *testing.T) {
	t.Parallel()

	srv, limiter, _ := newTestServer(t)
	limiter.Decide("openai", "")
	limiter.Decide("openai", "")

	rec := doRequest(srv, http.MethodGet, "/v1/ratelimit/history", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Count   int                `json:"count"`
		Records []ratelimit.Record `json:"records"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	assert.Equal(t, 2, resp.Count)
	require.Len(t, resp.Records, 2)
	assert.Equal(t, "openai", resp.Records[0].Provider)
}

func TestRateLimitResetEndpoint(t *testing.T) {
	t.Parallel()

	srv, limiter, _ := newTestServer(t)

	for i := 0; i < 3; i++ {
		require.True(t, limiter.Decide("openai", "").Allowed)
	}
	require.False(t, limiter.Decide("openai", "").Allowed)

	rec := doRequest(srv, http.MethodPost, "/v1/ratelimit/reset", `{"provider":"openai"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.True(t, limiter.Decide("openai", "").Allowed)
}

func TestRateLimitResetEndpoint_EmptyBodyResetsAll(t *testing.T) {
	t.Parallel()

	srv, limiter, _ := newTestServer(t)
	limiter.Decide("openai", "alice")

	rec := doRequest(srv, http.MethodPost, "/v1/ratelimit/reset", "")
	require.Equal(t, http.StatusOK, rec.Code)

	status := limiter.Status("openai", "alice")
	assert.Equal(t, 10, status.Global.Remaining)
}

func TestProviderLimitUpdateEndpoint(t *testing.T) {
	t.Parallel()

	srv, limiter, _ := newTestServer(t)

	rec := doRequest(srv, http.MethodPut, "/v1/ratelimit/providers/openai",
		`{"maxRequests":25,"window":"30s"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	status := limiter.Status("openai", "")
	assert.Equal(t, 25, status.Provider.MaxTokens)
}

func TestProviderLimitUpdateEndpoint_Invalid(t *testing.T) {
	t.Parallel()

	srv, _, _ := newTestServer(t)

	tests := []struct {
		name string
		body string
	}{
		{"missing maxRequests", `{"window":"30s"}`},
		{"bad window", `{"maxRequests":5,"window":"soon"}`},
		{"not json", `maxRequests=5`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(srv, http.MethodPut, "/v1/ratelimit/providers/openai", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestPinUpdateEndpoint(t *testing.T) {
	t.Parallel()

	srv, _, _ := newTestServer(t)

	rec := doRequest(srv, http.MethodPut, "/v1/pins/api.openai.com",
		`{"pins":["sha256/AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA="]}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(srv, http.MethodPut, "/v1/pins/api.openai.com",
		`{"pins":["sha256/malformed"]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPinCacheClearEndpoint(t *testing.T) {
	t.Parallel()

	srv, _, _ := newTestServer(t)

	rec := doRequest(srv, http.MethodDelete, "/v1/pins/cache", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "cleared", resp["status"])
}

func TestMetricsEndpoint_DisabledByDefault(t *testing.T) {
	t.Parallel()

	srv, _, _ := newTestServer(t)

	rec := doRequest(srv, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
