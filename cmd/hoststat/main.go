//go:build linux

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/spf13/cobra"

	"github.com/ja7ad/hoststat/pkg/agent"
	"github.com/ja7ad/hoststat/pkg/config"
	"github.com/ja7ad/hoststat/pkg/store"
	"github.com/ja7ad/hoststat/pkg/supervisor"
)

func main() {
	var noRestart bool

	root := &cobra.Command{
		Use:   "hoststat",
		Short: "Host resource accounting agent",
		Long: `The hoststat agent periodically measures CPU, memory and GPU usage of
the host it runs on and persists the snapshots locally with bounded
retention. Measurements come from cgroup v2, cgroup v1 or /proc,
whichever the host provides, falling back metric by metric.

The agent supervises itself: a crashed run is re-exec'd with the same
identity, up to a fixed attempt budget.

Examples:
  hoststat
  HOSTSTAT_STAT_INTERVAL_MS=1000 HOSTSTAT_STORE=sqlite hoststat
  hoststat --no-restart`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), noRestart)
		},
	}

	root.Flags().BoolVar(&noRestart, "no-restart", false,
		"run the agent once without crash supervision")

	if err := root.Execute(); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}

func run(ctx context.Context, noRestart bool) error {
	cfg := config.FromEnv()
	if noRestart {
		cfg.NoRestart = true
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	})))

	// the agent keeps running when the launching terminal goes away
	signal.Ignore(syscall.SIGHUP)

	sentryEnabled := initSentry(cfg)
	if sentryEnabled {
		defer sentry.Flush(2 * time.Second)
	}

	body := func() error {
		return runAgent(ctx, cfg)
	}

	if cfg.NoRestart {
		slog.Info("crash supervision disabled")
		return body()
	}

	sup := supervisor.New(cfg.ID)
	if sentryEnabled {
		sup.OnCrash = func(v any) {
			sentry.CurrentHub().Recover(v)
			sentry.Flush(2 * time.Second)
		}
	}
	sup.Run(body)
	return nil
}

func runAgent(ctx context.Context, cfg config.Config) error {
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	a, err := agent.New(cfg, st)
	if err != nil {
		return fmt.Errorf("initialize agent: %w", err)
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return a.Run(ctx)
}

func openStore(cfg config.Config) (store.Store, error) {
	switch cfg.StoreBackend {
	case config.StoreSQLite:
		return store.NewSQLiteStore(cfg.DBPath, cfg.MaxStatsEntries)
	default:
		return store.NewDirStore(cfg.StatsDir, cfg.MaxStatsEntries)
	}
}

// initSentry wires the error reporter when a DSN is configured. The agent
// works fine without one; crashes then only reach the local log.
func initSentry(cfg config.Config) bool {
	if cfg.SentryDSN == "" {
		slog.Info("error reporting NOT initialized, no DSN configured")
		return false
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:     cfg.SentryDSN,
		Release: "hoststat@" + version,
	})
	if err != nil {
		slog.Warn("error reporting failed to initialize", "err", err)
		return false
	}

	sentry.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetTag("hoststat_id", cfg.ID.String())
		if cfg.ClusterName != "" {
			scope.SetTag("cluster.name", cfg.ClusterName)
		}
	})
	slog.Info("error reporting initialized", "id", cfg.ID)
	return true
}

// version is stamped by the build; "dev" otherwise.
var version = "dev"
