package metrics_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	auth "github.com/goliatone/go-admin-auth"
	"github.com/goliatone/go-admin-auth/metrics"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_RecordActivity(t *testing.T) {
	m := metrics.NewMetrics(prometheus.NewRegistry())

	for _, e := range []auth.ActivityEventType{
		auth.ActivityEventLoginFailure,
		auth.ActivityEventLoginFailure,
		auth.ActivityEventLoginSuccess,
	} {
		require.NoError(t, m.Record(context.Background(), auth.ActivityEvent{EventType: e}))
	}

	assert.Equal(t, float64(2), testutil.ToFloat64(m.ActivityEventsTotal.WithLabelValues(string(auth.ActivityEventLoginFailure))))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ActivityEventsTotal.WithLabelValues(string(auth.ActivityEventLoginSuccess))))
}

func TestMetrics_MiddlewareAndHandler(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := metrics.NewMetrics(registry)

	app := fiber.New(fiber.Config{ErrorHandler: auth.FiberErrorHandler(nil)})
	app.Use(m.Middleware())
	app.Get("/metrics", metrics.Handler(registry))
	app.Get("/admins/:id", func(c *fiber.Ctx) error { return c.SendString("ok") })
	app.Get("/denied", func(c *fiber.Ctx) error { return auth.ErrNoToken })

	for _, path := range []string{"/admins/1", "/admins/2", "/denied"} {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, path, nil))
		require.NoError(t, err)
		resp.Body.Close()
	}

	assert.Equal(t, float64(2), testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/admins/:id", "200")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/denied", "401")))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "admin_auth_http_requests_total")
}
