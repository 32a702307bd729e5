package cli

import (
	"bytes"
	"context"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/congo-pay/swish/internal/config"
	"github.com/congo-pay/swish/internal/logging"
	"github.com/congo-pay/swish/internal/routes"
	"github.com/congo-pay/swish/internal/server"
	"github.com/congo-pay/swish/internal/session"
	"github.com/congo-pay/swish/internal/validation"
)

const (
	annaPhone = "+46701234567"
	erikPhone = "+46707654321"
)

// harness runs each command through a fresh App over one shared session
// store, the way separate CLI invocations share the session file.
type harness struct {
	t     *testing.T
	cfg   config.Config
	store session.Store
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	srv, err := server.New(context.Background(), routes.Deps{
		Cfg: config.SandboxConfig{
			AppName:          "SwishSandbox",
			Env:              "test",
			JWTSecret:        "cli-secret",
			AccessTokenTTL:   time.Hour,
			IdempotencyTTL:   time.Hour,
			OpeningBalance:   "1000.00",
			PendingAbove:     "500.00",
			Currency:         "SEK",
			LoginAttempts:    50,
			VerificationCode: "123456",
		},
		Logger:   logging.Discard(),
		Registry: prometheus.NewRegistry(),
	})
	require.NoError(t, err)

	users := httptest.NewServer(adaptor.FiberApp(srv.Users()))
	t.Cleanup(users.Close)
	txs := httptest.NewServer(adaptor.FiberApp(srv.Transactions()))
	t.Cleanup(txs.Close)

	return &harness{
		t: t,
		cfg: config.Config{
			UserServiceURL:        users.URL,
			TransactionServiceURL: txs.URL,
			HistoryLimit:          10,
			StatsDays:             30,
		},
		store: session.NewMemoryStore(),
	}
}

func (h *harness) run(stdin string, args ...string) (string, string, error) {
	h.t.Helper()
	var out, errOut bytes.Buffer
	deps := Wire(h.cfg, h.store, nil, nil, logging.Discard())
	deps.In = strings.NewReader(stdin)
	deps.Out = &out
	deps.ErrOut = &errOut
	err := New(deps).Run(context.Background(), args)
	return out.String(), errOut.String(), err
}

func (h *harness) mustRun(args ...string) string {
	h.t.Helper()
	out, errOut, err := h.run("", args...)
	require.NoError(h.t, err, "stderr: %s", errOut)
	return out
}

func (h *harness) registerAndLogin() {
	h.t.Helper()
	h.mustRun("register", "-phone", erikPhone, "-first", "Erik", "-last", "Svensson", "-email", "erik@example.se", "-password", "hemligt")
	out, _, err := h.run("hemligt\n", "register", "-phone", "+46 70-123 45 67", "-first", "Anna", "-last", "Andersson", "-email", "anna@example.se")
	require.NoError(h.t, err)
	assert.Contains(h.t, out, "Registered "+annaPhone)

	out = h.mustRun("login", "-phone", annaPhone, "-password", "hemligt")
	assert.Contains(h.t, out, "Logged in as Anna Andersson")
}

var txIDPattern = regexp.MustCompile(`Transaction ([0-9a-f-]{36})`)

func TestRunWithoutCommandPrintsUsage(t *testing.T) {
	var errOut bytes.Buffer
	app := New(Deps{ErrOut: &errOut})

	err := app.Run(context.Background(), nil)
	assert.ErrorIs(t, err, ErrUsage)
	assert.Contains(t, errOut.String(), "usage: swish <command>")
	assert.Contains(t, errOut.String(), "add-contact")

	errOut.Reset()
	assert.NoError(t, app.Run(context.Background(), []string{"help"}))
	assert.Contains(t, errOut.String(), "send")
}

func TestRunUnknownCommand(t *testing.T) {
	var errOut bytes.Buffer
	err := New(Deps{ErrOut: &errOut}).Run(context.Background(), []string{"pay"})
	assert.ErrorIs(t, err, ErrUsage)
	assert.Contains(t, errOut.String(), `unknown command "pay"`)
}

func TestCommandsRequireLogin(t *testing.T) {
	h := newHarness(t)
	for _, args := range [][]string{
		{"whoami"},
		{"balance"},
		{"history"},
		{"contacts"},
		{"stats"},
		{"send", "-to", erikPhone, "-amount", "1"},
		{"verify", "-code", "123456"},
	} {
		_, _, err := h.run("", args...)
		assert.ErrorIs(t, err, ErrNotLoggedIn, "command %v", args)
	}
}

func TestBadFlagsAreUsageErrors(t *testing.T) {
	h := newHarness(t)
	_, _, err := h.run("", "history", "-limit", "many")
	assert.ErrorIs(t, err, ErrUsage)

	h.registerAndLogin()
	_, _, err = h.run("", "show")
	assert.ErrorIs(t, err, ErrUsage)
	_, _, err = h.run("", "validate")
	assert.ErrorIs(t, err, ErrUsage)
}

func TestSendAndHistory(t *testing.T) {
	h := newHarness(t)
	h.registerAndLogin()

	out := h.mustRun("send", "-to", "+46 70 765 43 21", "-amount", "25,50", "-message", "fika")
	assert.Contains(t, out, "Sent 25,50 SEK to Erik Svensson")
	assert.Contains(t, out, "status completed")
	require.Regexp(t, txIDPattern, out)
	txID := txIDPattern.FindStringSubmatch(out)[1]

	assert.Equal(t, "974,50 SEK\n", h.mustRun("balance"))

	out = h.mustRun("history")
	assert.Contains(t, out, "Erik Svensson")
	assert.Contains(t, out, "-25,50 SEK")
	assert.Contains(t, out, "fika")

	out = h.mustRun("show", txID)
	assert.Contains(t, out, "sent")
	assert.Contains(t, out, erikPhone)

	out = h.mustRun("between", "-with", erikPhone)
	assert.Contains(t, out, txID)

	out = h.mustRun("stats")
	assert.Contains(t, out, "Last 30 days")
	assert.Contains(t, out, "25,50 SEK")
	assert.Contains(t, out, "-25,50 SEK")
}

func TestSendRejectsBadInputBeforeCallingTheService(t *testing.T) {
	h := newHarness(t)
	h.registerAndLogin()

	_, _, err := h.run("", "send", "-to", erikPhone, "-amount", "abc")
	require.Error(t, err)
	assert.True(t, validation.IsValidation(err))

	_, _, err = h.run("", "send", "-to", "+46700000000", "-amount", "1")
	require.Error(t, err)
	assert.Equal(t, "Receiver not found", err.Error())

	assert.Contains(t, h.mustRun("balance"), "000,00 SEK")
}

func TestCancelPendingTransfer(t *testing.T) {
	h := newHarness(t)
	h.registerAndLogin()

	out := h.mustRun("send", "-to", erikPhone, "-amount", "600")
	assert.Contains(t, out, "status pending")
	txID := txIDPattern.FindStringSubmatch(out)[1]
	assert.Equal(t, "400,00 SEK\n", h.mustRun("balance"))

	out = h.mustRun("cancel", txID)
	assert.Contains(t, out, "Transaction "+txID+" cancelled")

	_, _, err := h.run("", "cancel", txID)
	require.Error(t, err)
	assert.Equal(t, "Only pending transactions can be cancelled", err.Error())
}

func TestContactsAndValidate(t *testing.T) {
	h := newHarness(t)
	h.registerAndLogin()

	assert.Equal(t, "No contacts yet\n", h.mustRun("contacts"))
	assert.Contains(t, h.mustRun("add-contact", "-phone", erikPhone), "Added Erik Svensson")
	out := h.mustRun("contacts")
	assert.Contains(t, out, "ES")
	assert.Contains(t, out, erikPhone)

	assert.Contains(t, h.mustRun("validate", "-phone", erikPhone), "Erik Svensson ("+erikPhone+") has an account")
	assert.Equal(t, "No account: User not found\n", h.mustRun("validate", "-phone", "+46700000000"))
}

func TestVerifyWhoamiLogout(t *testing.T) {
	h := newHarness(t)
	h.registerAndLogin()

	out := h.mustRun("whoami")
	assert.Regexp(t, `Verified\s+no`, out)

	_, _, err := h.run("", "verify", "-code", "999999")
	require.Error(t, err)

	assert.Equal(t, "Account verified\n", h.mustRun("verify", "-code", "123456"))
	assert.Regexp(t, `Verified\s+yes`, h.mustRun("whoami"))

	assert.Equal(t, "Logged out\n", h.mustRun("logout"))
	_, _, err = h.run("", "whoami")
	assert.ErrorIs(t, err, ErrNotLoggedIn)
}
