package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/congo-pay/swish/internal/cli"
	"github.com/congo-pay/swish/internal/config"
	"github.com/congo-pay/swish/internal/infra"
	"github.com/congo-pay/swish/internal/logging"
	"github.com/congo-pay/swish/internal/session"
	"github.com/congo-pay/swish/internal/transport"
)

func main() {
	os.Exit(run())
}

func run() int {
	global := flag.NewFlagSet("swish", flag.ContinueOnError)
	metricsOut := global.String("metrics-out", "", "write client metrics in text format to this file on exit")
	if err := global.Parse(os.Args[1:]); err != nil {
		return 2
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		return 1
	}
	logger := logging.NewText(cfg.LogLevel, os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open session store: %v\n", err)
		return 1
	}
	defer closeStore()

	reg := prometheus.NewRegistry()
	deps := cli.Wire(cfg, store, &http.Client{Timeout: cfg.RequestTimeout}, transport.NewMetrics(reg), logger)
	deps.In, deps.Out, deps.ErrOut = os.Stdin, os.Stdout, os.Stderr

	runErr := cli.New(deps).Run(ctx, global.Args())

	if *metricsOut != "" {
		if err := prometheus.WriteToTextfile(*metricsOut, reg); err != nil {
			logger.Warn("write metrics", "path", *metricsOut, "error", err)
		}
	}

	switch {
	case runErr == nil:
		return 0
	case errors.Is(runErr, cli.ErrUsage):
		// A bare ErrUsage means usage was already printed.
		if runErr != cli.ErrUsage {
			fmt.Fprintf(os.Stderr, "swish: %v\n", runErr)
		}
		return 2
	default:
		fmt.Fprintf(os.Stderr, "swish: %v\n", runErr)
		return 1
	}
}

func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (session.Store, func(), error) {
	switch cfg.SessionStore {
	case config.StoreSQLite:
		store, err := session.OpenSQLiteStore(ctx, cfg.SessionPath)
		if err != nil {
			return nil, nil, err
		}
		return store, func() {
			if err := store.Close(); err != nil {
				logger.Warn("close session store", "error", err)
			}
		}, nil
	case config.StoreRedis:
		client, err := infra.OpenRedis(ctx, cfg.RedisURL, "swish-cli")
		if err != nil {
			return nil, nil, err
		}
		return session.NewRedisStore(client, cfg.RedisKeyPrefix), func() {
			if err := client.Close(); err != nil {
				logger.Warn("close redis", "error", err)
			}
		}, nil
	default:
		logger.Debug("using in-memory session store, sessions end with the process")
		return session.NewMemoryStore(), func() {}, nil
	}
}
