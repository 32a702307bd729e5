package identity

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/swish/internal/logging"
	"github.com/congo-pay/swish/internal/remote"
)

type stubActivity struct {
	calls int
}

func (s *stubActivity) Between(_ context.Context, userID, otherID string, limit int) ([]remote.RawTransaction, error) {
	s.calls++
	return []remote.RawTransaction{{ID: "tx-1", SenderID: userID, ReceiverID: otherID, Status: "completed"}}, nil
}

func newTestApp(t *testing.T, svc *Service, provisioned *[]string, activity Activity) *fiber.App {
	t.Helper()
	h := NewHandler(svc, func(_ context.Context, userID string) error {
		*provisioned = append(*provisioned, userID)
		return nil
	}, activity, logging.Discard())

	app := fiber.New(fiber.Config{Immutable: true})
	app.Post("/users/register", h.Register)
	app.Post("/users/validate", h.Validate)
	authed := app.Group("/users", func(c *fiber.Ctx) error {
		c.Locals("user_id", c.Get("X-User"))
		return c.Next()
	})
	authed.Get("/:userId/contacts", h.Contacts)
	authed.Post("/:userId/contacts", h.AddContact)
	authed.Put("/:userId/verify", h.Verify)
	authed.Get("/:phoneNumber", h.Lookup)
	return app
}

func doJSON(t *testing.T, app *fiber.App, method, path, user, body string, out any) int {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("X-User", user)
	}
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s %s: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

func TestHandlerRegisterProvisionsAndRejectsDuplicates(t *testing.T) {
	var provisioned []string
	app := newTestApp(t, NewService(NewMemoryRepository(), "000000"), &provisioned, nil)
	body := `{"phoneNumber":"+46701234567","firstName":"Anna","lastName":"Svensson","email":"anna@example.se","password":"hemligt"}`

	var created remote.RegisterResponse
	if status := doJSON(t, app, http.MethodPost, "/users/register", "", body, &created); status != http.StatusCreated {
		t.Fatalf("expected 201, got %d", status)
	}
	if created.UserID == "" || created.PhoneNumber != "+46701234567" {
		t.Fatalf("unexpected response %+v", created)
	}
	if len(provisioned) != 1 || provisioned[0] != created.UserID {
		t.Fatalf("expected wallet provisioning for %s, got %v", created.UserID, provisioned)
	}

	if status := doJSON(t, app, http.MethodPost, "/users/register", "", body, nil); status != http.StatusConflict {
		t.Fatalf("expected 409, got %d", status)
	}
}

func TestHandlerContactsAndVerifyRequireOwner(t *testing.T) {
	var provisioned []string
	svc := NewService(NewMemoryRepository(), "000000")
	activity := &stubActivity{}
	app := newTestApp(t, svc, &provisioned, activity)
	anna := register(t, svc, "+46701234567", "Anna")
	erik := register(t, svc, "+46707654321", "Erik")

	if status := doJSON(t, app, http.MethodGet, "/users/"+anna.ID+"/contacts", erik.ID, "", nil); status != http.StatusForbidden {
		t.Fatalf("expected 403 for another user's contacts, got %d", status)
	}

	var added remote.AddContactResponse
	status := doJSON(t, app, http.MethodPost, "/users/"+anna.ID+"/contacts", anna.ID, `{"phoneNumber":"+46707654321"}`, &added)
	if status != http.StatusCreated {
		t.Fatalf("expected 201, got %d", status)
	}
	if added.Contact.ID != erik.ID || added.Contact.Nickname != "Erik Svensson" {
		t.Fatalf("unexpected contact %+v", added.Contact)
	}

	var list remote.ContactsResponse
	if status := doJSON(t, app, http.MethodGet, "/users/"+anna.ID+"/contacts", anna.ID, "", &list); status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if len(list.Contacts) != 1 || len(list.Contacts[0].RecentTransactions) != 1 || activity.calls != 1 {
		t.Fatalf("expected one contact with activity, got %+v", list)
	}

	if status := doJSON(t, app, http.MethodPut, "/users/"+anna.ID+"/verify", anna.ID, `{"verificationCode":"999999"}`, nil); status != http.StatusBadRequest {
		t.Fatalf("expected 400 for wrong code, got %d", status)
	}
	var msg remote.MessageResponse
	if status := doJSON(t, app, http.MethodPut, "/users/"+anna.ID+"/verify", anna.ID, `{"verificationCode":"000000"}`, &msg); status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
}

func TestHandlerValidateAndLookup(t *testing.T) {
	var provisioned []string
	svc := NewService(NewMemoryRepository(), "000000")
	app := newTestApp(t, svc, &provisioned, &stubActivity{})
	anna := register(t, svc, "+46701234567", "Anna")
	erik := register(t, svc, "+46707654321", "Erik")

	var valid remote.ValidateResponse
	doJSON(t, app, http.MethodPost, "/users/validate", "", `{"phoneNumber":"+46701234567"}`, &valid)
	if !valid.Valid || valid.User == nil || valid.User.ID != anna.ID {
		t.Fatalf("expected valid user, got %+v", valid)
	}

	var invalid remote.ValidateResponse
	if status := doJSON(t, app, http.MethodPost, "/users/validate", "", `{"phoneNumber":"+46700000000"}`, &invalid); status != http.StatusOK {
		t.Fatalf("unknown account is not an HTTP error, got %d", status)
	}
	if invalid.Valid || invalid.Error == "" {
		t.Fatalf("expected invalid result, got %+v", invalid)
	}

	var lookup remote.LookupResponse
	if status := doJSON(t, app, http.MethodGet, "/users/+46707654321", anna.ID, "", &lookup); status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if lookup.User.ID != erik.ID || lookup.User.Email != "" || len(lookup.RecentTransactions) != 1 {
		t.Fatalf("unexpected lookup %+v", lookup)
	}
}
