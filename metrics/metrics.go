// Package metrics exposes auth activity and request counters to prometheus.
package metrics

import (
	"context"
	"strconv"
	"time"

	auth "github.com/goliatone/go-admin-auth"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors registered by NewMetrics
type Metrics struct {
	ActivityEventsTotal *prometheus.CounterVec
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

var _ auth.ActivitySink = (*Metrics)(nil)

// NewMetrics creates and registers all collectors
func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		ActivityEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "admin_auth_activity_events_total",
				Help: "Total number of auth activity events",
			},
			[]string{"event"},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "admin_auth_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "admin_auth_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}

	registry.MustRegister(
		m.ActivityEventsTotal,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
	)

	return m
}

// Record implements auth.ActivitySink
func (m *Metrics) Record(_ context.Context, event auth.ActivityEvent) error {
	m.ActivityEventsTotal.WithLabelValues(string(event.EventType)).Inc()
	return nil
}

// Middleware counts requests by route pattern, never by raw path
func (m *Metrics) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			} else if richErr := auth.AsError(err); richErr != nil {
				status = richErr.Code
			}
		}

		route := c.Route().Path
		m.HTTPRequestsTotal.WithLabelValues(c.Method(), route, strconv.Itoa(status)).Inc()
		m.HTTPRequestDuration.WithLabelValues(c.Method(), route).Observe(time.Since(start).Seconds())

		return err
	}
}

// Handler serves the gatherer in the prometheus text format
func Handler(gatherer prometheus.Gatherer) fiber.Handler {
	return adaptor.HTTPHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
}
