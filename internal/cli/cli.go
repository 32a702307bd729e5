// Package cli implements the swish command line client on top of the session,
// history, contact and transfer components.
package cli

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/congo-pay/swish/internal/contacts"
	"github.com/congo-pay/swish/internal/ledgerview"
	"github.com/congo-pay/swish/internal/remote"
	"github.com/congo-pay/swish/internal/session"
	"github.com/congo-pay/swish/internal/transfer"
)

// ErrUsage is returned for unknown commands and bad flags.
var ErrUsage = errors.New("usage error")

// ErrNotLoggedIn is returned by commands that need a session.
var ErrNotLoggedIn = errors.New("not logged in, run `swish login` first")

const defaultCurrency = "SEK"

// Deps are the components commands operate on.
type Deps struct {
	Sessions  *session.Manager
	Users     *remote.Users
	History   *ledgerview.Reader
	Contacts  *contacts.Directory
	Transfers *transfer.Workflow

	HistoryLimit int
	StatsDays    int

	In     io.Reader
	Out    io.Writer
	ErrOut io.Writer
}

type command struct {
	summary string
	run     func(ctx context.Context, fs *flag.FlagSet, args []string) error
}

// App dispatches command lines.
type App struct {
	deps     Deps
	printer  *message.Printer
	in       *bufio.Reader
	commands map[string]command
}

// New builds an App. Amounts are formatted for the Swedish locale.
func New(deps Deps) *App {
	if deps.In == nil {
		deps.In = strings.NewReader("")
	}
	if deps.Out == nil {
		deps.Out = io.Discard
	}
	if deps.ErrOut == nil {
		deps.ErrOut = io.Discard
	}
	a := &App{
		deps:    deps,
		printer: message.NewPrinter(language.Swedish),
		in:      bufio.NewReader(deps.In),
	}
	a.commands = map[string]command{
		"login":       {"log in with phone number and password", a.login},
		"register":    {"create an account", a.register},
		"logout":      {"forget the stored session", a.logout},
		"whoami":      {"show the logged in profile", a.whoami},
		"balance":     {"fetch and show the current balance", a.balance},
		"history":     {"list recent transactions", a.history},
		"between":     {"list transactions with one contact", a.between},
		"show":        {"show one transaction", a.show},
		"contacts":    {"list contacts", a.contacts},
		"add-contact": {"add a contact by phone number", a.addContact},
		"send":        {"send money to a phone number", a.send},
		"cancel":      {"cancel a pending transaction", a.cancel},
		"verify":      {"verify the account with a code", a.verify},
		"stats":       {"show sent and received totals", a.stats},
		"validate":    {"check whether a phone number has an account", a.validate},
	}
	return a
}

// Run restores the session and executes one command line.
func (a *App) Run(ctx context.Context, args []string) error {
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		a.usage()
		if len(args) == 0 {
			return ErrUsage
		}
		return nil
	}
	cmd, ok := a.commands[args[0]]
	if !ok {
		fmt.Fprintf(a.deps.ErrOut, "unknown command %q\n", args[0])
		a.usage()
		return ErrUsage
	}

	a.deps.Sessions.Restore(ctx)

	fs := flag.NewFlagSet(args[0], flag.ContinueOnError)
	fs.SetOutput(a.deps.ErrOut)
	if err := cmd.run(ctx, fs, args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}
	return nil
}

func (a *App) usage() {
	names := make([]string, 0, len(a.commands))
	for name := range a.commands {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintln(a.deps.ErrOut, "usage: swish <command> [flags]")
	tw := tabwriter.NewWriter(a.deps.ErrOut, 0, 4, 2, ' ', 0)
	for _, name := range names {
		fmt.Fprintf(tw, "  %s\t%s\n", name, a.commands[name].summary)
	}
	_ = tw.Flush()
}

func (a *App) identity() (session.Identity, error) {
	id, ok := a.deps.Sessions.Identity()
	if !ok {
		return session.Identity{}, ErrNotLoggedIn
	}
	return id, nil
}

func parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrUsage, err)
	}
	return nil
}

// readSecret returns value, or the next line of input when value is empty.
func (a *App) readSecret(prompt, value string) (string, error) {
	if value != "" {
		return value, nil
	}
	fmt.Fprint(a.deps.ErrOut, prompt)
	line, err := a.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (a *App) table() *tabwriter.Writer {
	return tabwriter.NewWriter(a.deps.Out, 0, 4, 2, ' ', 0)
}
