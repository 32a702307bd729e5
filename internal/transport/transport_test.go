package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticToken string

func (s staticToken) Token() string { return string(s) }

type panicDoer struct{}

func (panicDoer) Do(*http.Request) (*http.Response, error) { panic("boom") }

func newFakeService(t *testing.T, routes func(app *fiber.App)) *httptest.Server {
	t.Helper()
	app := fiber.New(fiber.Config{Immutable: true})
	routes(app)
	srv := httptest.NewServer(adaptor.FiberApp(app))
	t.Cleanup(srv.Close)
	return srv
}

func TestDoAttachesBearerToken(t *testing.T) {
	var seen string
	srv := newFakeService(t, func(app *fiber.App) {
		app.Get("/users/u1/balance", func(c *fiber.Ctx) error {
			seen = c.Get(fiber.HeaderAuthorization)
			return c.JSON(fiber.Map{"userId": "u1", "balance": 10})
		})
	})

	client := New(srv.URL, WithTokenSource(staticToken("t1")))
	resp, err := client.Get(context.Background(), "/users/u1/balance", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, "Bearer t1", seen)
	assert.JSONEq(t, `{"userId":"u1","balance":10}`, string(resp.Data))
}

func TestDoOmitsAuthorizationWithoutToken(t *testing.T) {
	var seen string
	srv := newFakeService(t, func(app *fiber.App) {
		app.Post("/users/login", func(c *fiber.Ctx) error {
			seen = c.Get(fiber.HeaderAuthorization)
			return c.JSON(fiber.Map{"ok": true})
		})
	})

	client := New(srv.URL, WithTokenSource(staticToken("")))
	_, err := client.Post(context.Background(), "/users/login", map[string]string{"phoneNumber": "1"})
	require.NoError(t, err)
	assert.Empty(t, seen)
}

func TestDoUsesRemoteErrorMessage(t *testing.T) {
	srv := newFakeService(t, func(app *fiber.App) {
		app.Post("/transactions/transfer", func(c *fiber.Ctx) error {
			return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "insufficient funds"})
		})
	})

	_, err := New(srv.URL).Post(context.Background(), "/transactions/transfer", map[string]any{})
	te, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, te.StatusCode)
	assert.Equal(t, "insufficient funds", te.Error())
	assert.False(t, te.IsNetwork())
}

func TestDoFallsBackToStatusMessage(t *testing.T) {
	srv := newFakeService(t, func(app *fiber.App) {
		app.Get("/broken", func(c *fiber.Ctx) error {
			return c.Status(http.StatusBadGateway).SendString("<html>bad gateway</html>")
		})
	})

	_, err := New(srv.URL).Get(context.Background(), "/broken", nil)
	te, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadGateway, te.StatusCode)
	assert.Equal(t, "HTTP 502", te.Message)
}

func TestDoRejectsMalformedSuccessBody(t *testing.T) {
	srv := newFakeService(t, func(app *fiber.App) {
		app.Get("/garbled", func(c *fiber.Ctx) error {
			return c.Status(http.StatusOK).SendString("{not json")
		})
	})

	_, err := New(srv.URL).Get(context.Background(), "/garbled", nil)
	te, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusOK, te.StatusCode)
	assert.Contains(t, te.Message, "invalid response body")
}

func TestDoEmptySuccessBody(t *testing.T) {
	srv := newFakeService(t, func(app *fiber.App) {
		app.Put("/users/u1/verify", func(c *fiber.Ctx) error {
			return c.SendStatus(http.StatusNoContent)
		})
	})

	resp, err := New(srv.URL).Put(context.Background(), "/users/u1/verify", map[string]string{"verificationCode": "1"})
	require.NoError(t, err)
	assert.Nil(t, resp.Data)
}

func TestDoNetworkFailureHasZeroStatus(t *testing.T) {
	srv := newFakeService(t, func(app *fiber.App) {})
	url := srv.URL
	srv.Close()

	_, err := New(url).Get(context.Background(), "/anything", nil)
	te, ok := AsError(err)
	require.True(t, ok)
	assert.True(t, te.IsNetwork())
	assert.NotEmpty(t, te.Message)
}

func TestDoRecoversPanics(t *testing.T) {
	_, err := New("http://example.invalid", WithHTTPClient(panicDoer{})).Get(context.Background(), "/x", nil)
	te, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, 0, te.StatusCode)
	assert.Contains(t, te.Message, "boom")
}

func TestCallDecodesPayload(t *testing.T) {
	srv := newFakeService(t, func(app *fiber.App) {
		app.Get("/users/u1/balance", func(c *fiber.Ctx) error {
			return c.JSON(fiber.Map{"userId": "u1", "balance": 12.5, "currency": "SEK"})
		})
	})

	var out struct {
		Balance  float64 `json:"balance"`
		Currency string  `json:"currency"`
	}
	err := New(srv.URL).Call(context.Background(), Request{Method: http.MethodGet, Path: "/users/u1/balance"}, &out)
	require.NoError(t, err)
	assert.Equal(t, 12.5, out.Balance)
	assert.Equal(t, "SEK", out.Currency)
}

func TestMetricsCountRequestsByStatus(t *testing.T) {
	srv := newFakeService(t, func(app *fiber.App) {
		app.Get("/ok", func(c *fiber.Ctx) error { return c.JSON(fiber.Map{}) })
		app.Get("/missing", func(c *fiber.Ctx) error { return fiber.NewError(http.StatusNotFound, "nope") })
	})

	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	client := New(srv.URL, WithMetrics(metrics), WithService("users"))

	_, _ = client.Get(context.Background(), "/ok", nil)
	_, _ = client.Get(context.Background(), "/missing", nil)
	_, _ = client.Get(context.Background(), "/missing", nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.requests.WithLabelValues("users", "GET", "200")))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.requests.WithLabelValues("users", "GET", "404")))
}

func TestStatusCodeOfForeignError(t *testing.T) {
	assert.Equal(t, -1, StatusCode(context.Canceled))
	assert.Equal(t, 409, StatusCode(&Error{StatusCode: 409, Message: "conflict"}))
}
