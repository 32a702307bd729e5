package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/congo-pay/swish/internal/ledgerview"
	"github.com/congo-pay/swish/internal/session"
	"github.com/congo-pay/swish/internal/transfer"
	"github.com/congo-pay/swish/internal/validation"
)

func (a *App) login(ctx context.Context, fs *flag.FlagSet, args []string) error {
	phone := fs.String("phone", "", "phone number")
	password := fs.String("password", "", "password (read from stdin when omitted)")
	if err := parse(fs, args); err != nil {
		return err
	}
	secret, err := a.readSecret("Password: ", *password)
	if err != nil {
		return err
	}
	if err := a.deps.Sessions.Login(ctx, *phone, secret); err != nil {
		return err
	}
	id, _ := a.deps.Sessions.Identity()
	fmt.Fprintf(a.deps.Out, "Logged in as %s (%s)\n", id.DisplayName(), id.PhoneNumber)
	return nil
}

func (a *App) register(ctx context.Context, fs *flag.FlagSet, args []string) error {
	var in session.RegisterInput
	fs.StringVar(&in.PhoneNumber, "phone", "", "phone number")
	fs.StringVar(&in.FirstName, "first", "", "first name")
	fs.StringVar(&in.LastName, "last", "", "last name")
	fs.StringVar(&in.Email, "email", "", "email address")
	password := fs.String("password", "", "password, at least 6 characters (read from stdin when omitted)")
	if err := parse(fs, args); err != nil {
		return err
	}
	secret, err := a.readSecret("Password: ", *password)
	if err != nil {
		return err
	}
	in.Password = secret
	resp, err := a.deps.Sessions.Register(ctx, in)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.deps.Out, "Registered %s. Log in with `swish login -phone %s`.\n", resp.PhoneNumber, resp.PhoneNumber)
	return nil
}

func (a *App) logout(ctx context.Context, fs *flag.FlagSet, args []string) error {
	if err := parse(fs, args); err != nil {
		return err
	}
	if err := a.deps.Sessions.Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.deps.Out, "Logged out")
	return nil
}

func (a *App) whoami(_ context.Context, fs *flag.FlagSet, args []string) error {
	if err := parse(fs, args); err != nil {
		return err
	}
	id, err := a.identity()
	if err != nil {
		return err
	}
	verified := "no"
	if id.IsVerified {
		verified = "yes"
	}
	tw := a.table()
	fmt.Fprintf(tw, "Name\t%s\n", id.DisplayName())
	fmt.Fprintf(tw, "Phone\t%s\n", id.PhoneNumber)
	fmt.Fprintf(tw, "Email\t%s\n", orDash(id.Email))
	fmt.Fprintf(tw, "Verified\t%s\n", verified)
	fmt.Fprintf(tw, "Balance\t%s\n", a.money(decimal.NewFromFloat(id.Balance), id.Currency))
	return tw.Flush()
}

func (a *App) balance(ctx context.Context, fs *flag.FlagSet, args []string) error {
	if err := parse(fs, args); err != nil {
		return err
	}
	if _, err := a.identity(); err != nil {
		return err
	}
	if err := a.deps.Sessions.RefreshBalance(ctx); err != nil {
		return err
	}
	id, err := a.identity()
	if err != nil {
		return err
	}
	fmt.Fprintln(a.deps.Out, a.money(decimal.NewFromFloat(id.Balance), id.Currency))
	return nil
}

func (a *App) history(ctx context.Context, fs *flag.FlagSet, args []string) error {
	limit := fs.Int("limit", a.deps.HistoryLimit, "number of transactions")
	if err := parse(fs, args); err != nil {
		return err
	}
	id, err := a.identity()
	if err != nil {
		return err
	}
	entries, err := a.deps.History.Recent(ctx, id.ID, *limit)
	if err != nil {
		return err
	}
	return a.printEntries(entries)
}

func (a *App) between(ctx context.Context, fs *flag.FlagSet, args []string) error {
	with := fs.String("with", "", "phone number of the other user")
	limit := fs.Int("limit", a.deps.HistoryLimit, "number of transactions")
	if err := parse(fs, args); err != nil {
		return err
	}
	id, err := a.identity()
	if err != nil {
		return err
	}
	phone, err := validation.Phone("with", *with)
	if err != nil {
		return err
	}
	resp, err := a.deps.Users.Validate(ctx, phone, "")
	if err != nil {
		return err
	}
	if !resp.Valid || resp.User == nil {
		return fmt.Errorf("no account is registered to %s", phone)
	}
	entries, err := a.deps.History.Between(ctx, id.ID, resp.User.ID, *limit)
	if err != nil {
		return err
	}
	return a.printEntries(entries)
}

func (a *App) show(ctx context.Context, fs *flag.FlagSet, args []string) error {
	if err := parse(fs, args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("%w: show <transaction-id>", ErrUsage)
	}
	id, err := a.identity()
	if err != nil {
		return err
	}
	e, err := a.deps.History.Get(ctx, fs.Arg(0), id.ID)
	if err != nil {
		return err
	}
	tw := a.table()
	fmt.Fprintf(tw, "ID\t%s\n", e.ID)
	fmt.Fprintf(tw, "Direction\t%s\n", e.Direction)
	fmt.Fprintf(tw, "Counterparty\t%s %s\n", e.Counterparty, orDash(e.CounterpartyPhone))
	fmt.Fprintf(tw, "Amount\t%s\n", a.signed(e))
	fmt.Fprintf(tw, "Status\t%s\n", e.Status)
	fmt.Fprintf(tw, "Date\t%s\n", when(e.Timestamp))
	fmt.Fprintf(tw, "Message\t%s\n", orDash(e.Message))
	return tw.Flush()
}

func (a *App) contacts(ctx context.Context, fs *flag.FlagSet, args []string) error {
	if err := parse(fs, args); err != nil {
		return err
	}
	id, err := a.identity()
	if err != nil {
		return err
	}
	list, err := a.deps.Contacts.List(ctx, id.ID)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Fprintln(a.deps.Out, "No contacts yet")
		return nil
	}
	tw := a.table()
	fmt.Fprintln(tw, "\tNAME\tPHONE\tLAST TRANSFER")
	for _, c := range list {
		last := "-"
		if len(c.Recent) > 0 {
			last = a.signed(c.Recent[0]) + " " + when(c.Recent[0].Timestamp)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", c.Initials, c.Name, c.Phone, last)
	}
	return tw.Flush()
}

func (a *App) addContact(ctx context.Context, fs *flag.FlagSet, args []string) error {
	phone := fs.String("phone", "", "phone number of the contact")
	nickname := fs.String("nickname", "", "optional display name")
	if err := parse(fs, args); err != nil {
		return err
	}
	id, err := a.identity()
	if err != nil {
		return err
	}
	c, err := a.deps.Contacts.Add(ctx, id.ID, *phone, *nickname)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.deps.Out, "Added %s (%s)\n", c.Name, c.Phone)
	return nil
}

func (a *App) send(ctx context.Context, fs *flag.FlagSet, args []string) error {
	to := fs.String("to", "", "receiver phone number")
	amount := fs.String("amount", "", "amount, e.g. 125,50")
	msg := fs.String("message", "", "optional message to the receiver")
	if err := parse(fs, args); err != nil {
		return err
	}
	if _, err := a.identity(); err != nil {
		return err
	}
	outcome, err := a.deps.Transfers.Submit(ctx, transfer.Request{ReceiverPhone: *to, Amount: *amount, Description: *msg})
	if err != nil {
		return err
	}
	res := outcome.Result
	fmt.Fprintf(a.deps.Out, "Sent %s to %s (%s), status %s\n",
		a.money(outcome.Amount, res.Currency), orDash(res.Receiver.Name), res.Receiver.Phone, ledgerview.MapStatus(res.Status))
	fmt.Fprintf(a.deps.Out, "Transaction %s\n", res.TransactionID)
	a.reportReconcile(outcome.Reconcile)
	return nil
}

func (a *App) cancel(ctx context.Context, fs *flag.FlagSet, args []string) error {
	if err := parse(fs, args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("%w: cancel <transaction-id>", ErrUsage)
	}
	if _, err := a.identity(); err != nil {
		return err
	}
	outcome, err := a.deps.Transfers.Cancel(ctx, fs.Arg(0))
	if err != nil {
		return err
	}
	fmt.Fprintf(a.deps.Out, "Transaction %s %s\n", outcome.Result.TransactionID, outcome.Result.Status)
	a.reportReconcile(outcome.Reconcile)
	return nil
}

func (a *App) verify(ctx context.Context, fs *flag.FlagSet, args []string) error {
	code := fs.String("code", "", "verification code")
	if err := parse(fs, args); err != nil {
		return err
	}
	if err := a.deps.Sessions.Verify(ctx, *code); err != nil {
		if errors.Is(err, session.ErrNotAuthenticated) {
			return ErrNotLoggedIn
		}
		return err
	}
	fmt.Fprintln(a.deps.Out, "Account verified")
	return nil
}

func (a *App) stats(ctx context.Context, fs *flag.FlagSet, args []string) error {
	days := fs.Int("days", a.deps.StatsDays, "period in days")
	if err := parse(fs, args); err != nil {
		return err
	}
	id, err := a.identity()
	if err != nil {
		return err
	}
	s, err := a.deps.History.Stats(ctx, id.ID, *days)
	if err != nil {
		return err
	}
	period := s.PeriodDays
	if period == 0 {
		period = *days
	}
	fmt.Fprintf(a.deps.Out, "Last %d days\n", period)
	tw := a.table()
	fmt.Fprintf(tw, "Sent\t%d\t%s\n", s.Sent.Count, a.money(s.Sent.TotalAmount.Decimal, s.Sent.Currency))
	fmt.Fprintf(tw, "Received\t%d\t%s\n", s.Received.Count, a.money(s.Received.TotalAmount.Decimal, s.Received.Currency))
	fmt.Fprintf(tw, "Net\t\t%s\n", a.money(s.NetAmount.Decimal, s.Sent.Currency))
	return tw.Flush()
}

func (a *App) validate(ctx context.Context, fs *flag.FlagSet, args []string) error {
	phone := fs.String("phone", "", "phone number to check")
	userID := fs.String("user", "", "user id to check")
	if err := parse(fs, args); err != nil {
		return err
	}
	if strings.TrimSpace(*phone) == "" && strings.TrimSpace(*userID) == "" {
		return fmt.Errorf("%w: validate -phone <number> | -user <id>", ErrUsage)
	}
	if *phone != "" {
		cleaned, err := validation.Phone("phone", *phone)
		if err != nil {
			return err
		}
		*phone = cleaned
	}
	resp, err := a.deps.Users.Validate(ctx, *phone, *userID)
	if err != nil {
		return err
	}
	if !resp.Valid || resp.User == nil {
		fmt.Fprintf(a.deps.Out, "No account: %s\n", orDash(resp.Error))
		return nil
	}
	name := strings.TrimSpace(resp.User.FirstName + " " + resp.User.LastName)
	fmt.Fprintf(a.deps.Out, "%s (%s) has an account\n", orDash(name), resp.User.PhoneNumber)
	return nil
}

func (a *App) printEntries(entries []ledgerview.Entry) error {
	if len(entries) == 0 {
		fmt.Fprintln(a.deps.Out, "No transactions")
		return nil
	}
	tw := a.table()
	fmt.Fprintln(tw, "DATE\tCOUNTERPARTY\tAMOUNT\tSTATUS\tMESSAGE\tID")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", when(e.Timestamp), orDash(e.Counterparty), a.signed(e), e.Status, orDash(e.Message), e.ID)
	}
	return tw.Flush()
}

func (a *App) reportReconcile(err *transfer.ReconcileError) {
	if err == nil {
		return
	}
	fmt.Fprintf(a.deps.ErrOut, "warning: the transfer went through but %v\n", err)
}
