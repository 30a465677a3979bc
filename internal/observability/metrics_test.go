package observability

import (
	"testing"
	"time"

	"net/http/httptest"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsDeliveryCollectors(t *testing.T) {
	t.Parallel()

	metrics := NewMetrics()

	metrics.IncMessageSent("HTTP", true)
	metrics.IncMessageSent("http", false)
	metrics.ObserveMessageSendDuration("http", 80*time.Millisecond)
	metrics.AddRecipientsRejected("http", 2)
	metrics.IncCallback("reconciled")
	metrics.AddRecipientsPromoted(3)

	if got := testutil.ToFloat64(metrics.messagesSentTotal.WithLabelValues("http", "accepted")); got != 1 {
		t.Fatalf("messages_sent_total{accepted} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.messagesSentTotal.WithLabelValues("http", "rejected")); got != 1 {
		t.Fatalf("messages_sent_total{rejected} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.recipientsRejectedTotal.WithLabelValues("http")); got != 2 {
		t.Fatalf("recipients_rejected_total = %v, want 2", got)
	}
	if got := testutil.ToFloat64(metrics.callbacksTotal.WithLabelValues("reconciled")); got != 1 {
		t.Fatalf("callbacks_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.recipientsPromotedTotal); got != 3 {
		t.Fatalf("recipients_promoted_total = %v, want 3", got)
	}
}

func TestMetricsHTTPMiddlewareRecordsRequest(t *testing.T) {
	t.Parallel()

	metrics := NewMetrics()
	app := fiber.New()
	app.Use(metrics.HTTPMiddleware())
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	req := httptest.NewRequest("GET", "/health", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	if got := testutil.ToFloat64(metrics.httpRequestsTotal.WithLabelValues("GET", "/health", "200")); got != 1 {
		t.Fatalf("http_requests_total = %v, want 1", got)
	}
}

func TestMetricsNilReceiverIsSafe(t *testing.T) {
	t.Parallel()

	var metrics *Metrics
	metrics.IncMessageSent("http", true)
	metrics.ObserveMessageSendDuration("http", time.Second)
	metrics.AddRecipientsRejected("http", 1)
	metrics.IncCallback("error")
	metrics.AddRecipientsPromoted(1)

	if metrics.Handler() == nil {
		t.Fatal("Handler() should fall back to the default handler")
	}
}
