package ledgerview

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/congo-pay/swish/internal/logging"
	"github.com/congo-pay/swish/internal/remote"
	"github.com/congo-pay/swish/internal/transport"
)

func newReader(t *testing.T, routes func(app *fiber.App)) *Reader {
	t.Helper()
	app := fiber.New(fiber.Config{Immutable: true})
	routes(app)
	srv := httptest.NewServer(adaptor.FiberApp(app))
	t.Cleanup(srv.Close)
	return NewReader(remote.NewTransactions(transport.New(srv.URL)), logging.Discard())
}

func TestReaderRecent(t *testing.T) {
	var limit string
	reader := newReader(t, func(app *fiber.App) {
		app.Get("/transactions/user/:id/recent", func(c *fiber.Ctx) error {
			limit = c.Query("limit")
			return c.JSON(fiber.Map{
				"user_id": c.Params("id"),
				"count":   2,
				"transactions": []fiber.Map{
					{"id": "tx1", "sender_id": "u1", "amount": 20, "status": "completed", "receiver": fiber.Map{"id": "u2", "name": "Erik"}},
					{"id": "tx2", "sender_id": "u2", "amount": "5.5", "status": "pending", "sender": fiber.Map{"id": "u2", "name": "Erik"}},
				},
			})
		})
	})

	entries, err := reader.Recent(context.Background(), "u1", 10)
	require.NoError(t, err)
	assert.Equal(t, "10", limit)
	require.Len(t, entries, 2)
	assert.Equal(t, Sent, entries[0].Direction)
	assert.Equal(t, Received, entries[1].Direction)
	assert.Equal(t, "Erik", entries[1].Counterparty)
}

func TestReaderRecentEmptyIsNotAnError(t *testing.T) {
	reader := newReader(t, func(app *fiber.App) {
		app.Get("/transactions/user/:id/recent", func(c *fiber.Ctx) error {
			return c.JSON(fiber.Map{"transactions": nil, "count": 0})
		})
	})

	entries, err := reader.Recent(context.Background(), "u1", 0)
	require.NoError(t, err)
	require.NotNil(t, entries)
	assert.Empty(t, entries)
}

func TestReaderPropagatesTransportErrors(t *testing.T) {
	reader := newReader(t, func(app *fiber.App) {
		app.Get("/transactions/between/:a/:b", func(c *fiber.Ctx) error {
			return c.Status(http.StatusForbidden).JSON(fiber.Map{"error": "forbidden"})
		})
	})

	_, err := reader.Between(context.Background(), "u1", "u2", 5)
	require.Error(t, err)
	assert.Equal(t, http.StatusForbidden, transport.StatusCode(err))
	assert.Equal(t, "forbidden", err.Error())
}

func TestReaderGet(t *testing.T) {
	reader := newReader(t, func(app *fiber.App) {
		app.Get("/transactions/:id", func(c *fiber.Ctx) error {
			return c.JSON(fiber.Map{"id": c.Params("id"), "receiver_id": "u1", "sender": fiber.Map{"id": "u3", "firstName": "Sara"}, "status": "failed"})
		})
	})

	entry, err := reader.Get(context.Background(), "tx9", "u1")
	require.NoError(t, err)
	assert.Equal(t, "tx9", entry.ID)
	assert.Equal(t, Received, entry.Direction)
	assert.Equal(t, "Sara", entry.Counterparty)
	assert.Equal(t, Failed, entry.Status)
}
