package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics stores Prometheus collectors for the send and reconciliation flows.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal        *prometheus.CounterVec
	httpRequestDuration      *prometheus.HistogramVec
	messagesSentTotal        *prometheus.CounterVec
	messageSendDuration      *prometheus.HistogramVec
	recipientsRejectedTotal  *prometheus.CounterVec
	callbacksTotal           *prometheus.CounterVec
	recipientsPromotedTotal  prometheus.Counter
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "smsrelay",
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests processed by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "smsrelay",
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds by method and path.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		messagesSentTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "smsrelay",
				Name:      "messages_sent_total",
				Help:      "Total number of messages handed to a driver, by driver and outcome.",
			},
			[]string{"driver", "outcome"},
		),
		messageSendDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "smsrelay",
				Name:      "message_send_duration_seconds",
				Help:      "Driver send duration in seconds grouped by driver.",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
			},
			[]string{"driver"},
		),
		recipientsRejectedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "smsrelay",
				Name:      "recipients_rejected_total",
				Help:      "Total number of recipient addresses rejected by the provider.",
			},
			[]string{"driver"},
		),
		callbacksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "smsrelay",
				Name:      "callbacks_total",
				Help:      "Total number of delivery-status callbacks processed, by outcome.",
			},
			[]string{"outcome"},
		),
		recipientsPromotedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "smsrelay",
				Name:      "recipients_promoted_total",
				Help:      "Total number of recipient identifiers promoted to provider identifiers.",
			},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.messagesSentTotal,
		m.messageSendDuration,
		m.recipientsRejectedTotal,
		m.callbacksTotal,
		m.recipientsPromotedTotal,
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) HTTPMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		path := routePath(c)
		// Avoid self-scrape noise for request counters.
		if path == "/metrics" {
			return err
		}

		m.recordHTTPRequest(c.Method(), path, statusFromResult(c, err), time.Since(start))
		return err
	}
}

func (m *Metrics) IncMessageSent(driver string, accepted bool) {
	if m == nil {
		return
	}
	outcome := "rejected"
	if accepted {
		outcome = "accepted"
	}
	m.messagesSentTotal.WithLabelValues(normalizeLabel(driver), outcome).Inc()
}

func (m *Metrics) ObserveMessageSendDuration(driver string, duration time.Duration) {
	if m == nil {
		return
	}
	seconds := duration.Seconds()
	if seconds < 0 {
		seconds = 0
	}
	m.messageSendDuration.WithLabelValues(normalizeLabel(driver)).Observe(seconds)
}

func (m *Metrics) AddRecipientsRejected(driver string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.recipientsRejectedTotal.WithLabelValues(normalizeLabel(driver)).Add(float64(count))
}

func (m *Metrics) IncCallback(outcome string) {
	if m == nil {
		return
	}
	m.callbacksTotal.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func (m *Metrics) AddRecipientsPromoted(count int) {
	if m == nil || count <= 0 {
		return
	}
	m.recipientsPromotedTotal.Add(float64(count))
}

func (m *Metrics) recordHTTPRequest(method string, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}

	methodLabel := strings.ToUpper(strings.TrimSpace(method))
	if methodLabel == "" {
		methodLabel = "UNKNOWN"
	}
	pathLabel := strings.TrimSpace(path)
	if pathLabel == "" {
		pathLabel = "unmatched"
	}

	m.httpRequestsTotal.WithLabelValues(methodLabel, pathLabel, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(methodLabel, pathLabel).Observe(duration.Seconds())
}

func routePath(c *fiber.Ctx) string {
	if c == nil {
		return "unmatched"
	}

	if route := c.Route(); route != nil {
		if path := strings.TrimSpace(route.Path); path != "" {
			return path
		}
	}
	return "unmatched"
}

func statusFromResult(c *fiber.Ctx, err error) int {
	if err != nil {
		if fiberErr, ok := err.(*fiber.Error); ok {
			return fiberErr.Code
		}
		return fiber.StatusInternalServerError
	}

	if c == nil {
		return fiber.StatusOK
	}

	status := c.Response().StatusCode()
	if status == 0 {
		return fiber.StatusOK
	}
	return status
}

func normalizeLabel(value string) string {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if normalized == "" {
		return "unknown"
	}
	return normalized
}
