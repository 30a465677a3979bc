package transport

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestCorrelationIDMiddleware(t *testing.T) {
	t.Parallel()

	app := fiber.New()
	app.Use(CorrelationID())
	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	t.Run("echoes the caller id", func(t *testing.T) {
		t.Parallel()

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(fiber.HeaderXRequestID, "cid-from-caller")

		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("app.Test() error = %v", err)
		}
		if got := resp.Header.Get(fiber.HeaderXRequestID); got != "cid-from-caller" {
			t.Fatalf("X-Request-Id = %q, want cid-from-caller", got)
		}
	})

	t.Run("generates one when absent", func(t *testing.T) {
		t.Parallel()

		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
		if err != nil {
			t.Fatalf("app.Test() error = %v", err)
		}
		if resp.Header.Get(fiber.HeaderXRequestID) == "" {
			t.Fatal("a correlation id should have been generated")
		}
	})
}

func TestErrorHandlerLogsWithCorrelationID(t *testing.T) {
	t.Parallel()

	core, recorded := observer.New(zapcore.InfoLevel)
	logger := zap.New(core)

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(logger)})
	app.Use(CorrelationID())
	app.Get("/boom", func(c *fiber.Ctx) error {
		return fiber.NewError(fiber.StatusBadRequest, "broken input")
	})

	req := httptest.NewRequest(http.MethodGet, "/boom", nil)
	req.Header.Set(fiber.HeaderXRequestID, "cid-err")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}

	entries := recorded.All()
	if len(entries) != 1 {
		t.Fatalf("log entries = %d, want 1", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["correlationId"] != "cid-err" {
		t.Fatalf("correlationId = %v, want cid-err", fields["correlationId"])
	}
	if fields["status"] != int64(fiber.StatusBadRequest) {
		t.Fatalf("status field = %v, want 400", fields["status"])
	}
}
