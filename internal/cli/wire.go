package cli

import (
	"context"
	"log/slog"

	"github.com/congo-pay/swish/internal/config"
	"github.com/congo-pay/swish/internal/contacts"
	"github.com/congo-pay/swish/internal/ledgerview"
	"github.com/congo-pay/swish/internal/remote"
	"github.com/congo-pay/swish/internal/session"
	"github.com/congo-pay/swish/internal/transfer"
	"github.com/congo-pay/swish/internal/transport"
)

// Wire builds the client components for cfg over store. Both service clients
// share doer, metrics and the session slot as token source.
func Wire(cfg config.Config, store session.Store, doer transport.Doer, metrics *transport.Metrics, logger *slog.Logger) Deps {
	slot := session.NewSlot()
	opts := func(service string) []transport.Option {
		o := []transport.Option{
			transport.WithService(service),
			transport.WithTokenSource(slot),
			transport.WithLogger(logger),
		}
		if doer != nil {
			o = append(o, transport.WithHTTPClient(doer))
		}
		if metrics != nil {
			o = append(o, transport.WithMetrics(metrics))
		}
		return o
	}

	users := remote.NewUsers(transport.New(cfg.UserServiceURL, opts("users")...))
	txs := remote.NewTransactions(transport.New(cfg.TransactionServiceURL, opts("transactions")...))
	sessions := session.NewManager(slot, users, store, logger)
	history := ledgerview.NewReader(txs, logger)

	// Nothing is cached locally. Reading the newest entry surfaces a broken
	// history endpoint as a reconcile warning.
	onHistory := func(ctx context.Context) error {
		id, ok := sessions.Identity()
		if !ok {
			return nil
		}
		_, err := history.Recent(ctx, id.ID, 1)
		return err
	}

	return Deps{
		Sessions:     sessions,
		Users:        users,
		History:      history,
		Contacts:     contacts.NewDirectory(users, logger),
		Transfers:    transfer.NewWorkflow(sessions, txs, onHistory, logger),
		HistoryLimit: cfg.HistoryLimit,
		StatsDays:    cfg.StatsDays,
	}
}
