package middleware

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestHTTPMetricsLabelsByRoute(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewHTTPMetrics(reg)

	app := fiber.New()
	app.Use(metrics.Handler("transactions"))
	app.Get("/transactions/:id", func(c *fiber.Ctx) error {
		if c.Params("id") == "missing" {
			return fiber.NewError(fiber.StatusNotFound, "Transaction not found")
		}
		return c.SendStatus(fiber.StatusOK)
	})

	for _, id := range []string{"a", "b", "missing"} {
		resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/transactions/"+id, nil))
		if err != nil {
			t.Fatalf("app.Test: %v", err)
		}
		resp.Body.Close()
	}

	if got := testutil.ToFloat64(metrics.requests.WithLabelValues("transactions", "GET", "/transactions/:id", "200")); got != 2 {
		t.Fatalf("expected 2 successful requests, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.requests.WithLabelValues("transactions", "GET", "/transactions/:id", "404")); got != 1 {
		t.Fatalf("expected 1 not found request, got %v", got)
	}
}
