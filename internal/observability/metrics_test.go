package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetrics(t *testing.T) {
	t.Parallel()

	m := NewMetrics("edgeguard")
	require.NotNil(t, m.Registry())
	assert.Equal(t, "edgeguard", m.Namespace())

	m.SetBuildInfo("1.0.0", "abc123", 1700000000)

	families, err := m.Registry().Gather()
	require.NoError(t, err)

	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["edgeguard_build_info"])
	assert.True(t, names["edgeguard_start_time_seconds"])
}

func TestNewMetrics_EmptyNamespace(t *testing.T) {
	t.Parallel()

	m := NewMetrics("")
	assert.Equal(t, "edgeguard", m.Namespace())
}

func TestMetricsHandler(t *testing.T) {
	t.Parallel()

	m := NewMetrics("edgeguard")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestNewTracer_Disabled(t *testing.T) {
	t.Parallel()

	tracer, err := NewTracer(TracerConfig{ServiceName: "edgeguard", Enabled: false})
	require.NoError(t, err)

	ctx, span := tracer.Start(context.Background(), "test-span")
	assert.NotNil(t, ctx)
	span.End()

	assert.NoError(t, tracer.Shutdown(context.Background()))
}
