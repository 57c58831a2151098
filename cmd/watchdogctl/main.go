// Command watchdogctl is the operator CLI: schema migration, first-admin
// bootstrap and outbox inspection/replay.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"watchdog/config"
	"watchdog/internal/repository/postgres"
	"watchdog/internal/service"
	pkgconfig "watchdog/pkg/config"
	"watchdog/pkg/db"
	"watchdog/pkg/logger"
	"watchdog/pkg/mq"
	"watchdog/pkg/outbox"
	"watchdog/pkg/rbac"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// app 每个子命令共享的依赖
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	pool   *pgxpool.Pool
}

func (a *app) close() {
	if a.pool != nil {
		a.pool.Close()
	}
	_ = a.logger.Sync()
}

func rootCmd() *cobra.Command {
	var (
		env       string
		configDir string
		logLevel  string
	)

	open := func() (*app, error) {
		cfg, err := config.LoadFrom(env, configDir)
		if err != nil {
			return nil, err
		}
		level := cfg.Log.Level
		if logLevel != "" {
			level = logLevel
		}
		log := logger.NewLogger(level)

		pool, err := db.NewConnection(cfg.DB, log)
		if err != nil {
			return nil, err
		}
		return &app{cfg: cfg, logger: log, pool: pool}, nil
	}

	cmd := &cobra.Command{
		Use:           "watchdogctl",
		Short:         "Operate a WatchDog deployment",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&env, "env", pkgconfig.GetConfigEnv(), "Config environment (base.yaml + <env>.yaml)")
	cmd.PersistentFlags().StringVar(&configDir, "config-dir", pkgconfig.GetEnv("CONFIG_DIR", "config"), "Config directory")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override log level")

	cmd.AddCommand(migrateCmd(open), bootstrapCmd(open), outboxCmd(open))
	return cmd
}

func migrateCmd(open func() (*app, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the embedded database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open()
			if err != nil {
				return err
			}
			defer a.close()

			if err := db.Migrate(cmd.Context(), a.pool, a.logger); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema is up to date")
			return nil
		},
	}
}

func bootstrapCmd(open func() (*app, error)) *cobra.Command {
	var username, email, password string

	cmd := &cobra.Command{
		Use:   "bootstrap-admin",
		Short: "Create the first super admin when no users exist",
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				password = os.Getenv("WATCHDOG_ADMIN_PASSWORD")
			}

			a, err := open()
			if err != nil {
				return err
			}
			defer a.close()

			stores := postgres.NewStores(a.pool, a.logger)
			users := service.NewUserService(stores, rbac.NewGuard(), a.cfg.JWT, a.logger)
			id, err := users.Bootstrap(cmd.Context(), username, email, password)
			if errors.Is(err, service.ErrAlreadyBootstrapped) {
				fmt.Fprintln(cmd.OutOrStdout(), "users already exist, nothing to do")
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created super admin %s (id %d)\n", email, id)
			return nil
		},
	}
	cmd.Flags().StringVar(&username, "username", "admin", "Admin username")
	cmd.Flags().StringVar(&email, "email", "", "Admin email")
	cmd.Flags().StringVar(&password, "password", "", "Admin password (default $WATCHDOG_ADMIN_PASSWORD)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func outboxCmd(open func() (*app, error)) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "outbox",
		Short: "Inspect and replay lifecycle events",
	}

	var listLimit int
	failed := &cobra.Command{
		Use:   "failed",
		Short: "List events that exhausted their retries",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open()
			if err != nil {
				return err
			}
			defer a.close()

			events, err := outbox.NewRepository(a.pool).GetFailedEvents(cmd.Context(), listLimit)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tROUTING KEY\tRETRIES\tCREATED")
			for _, e := range events {
				fmt.Fprintf(w, "%d\t%s\t%d\t%s\n", e.ID, e.RoutingKey, e.RetryCount, e.CreatedAt.Format("2006-01-02 15:04:05"))
			}
			return w.Flush()
		},
	}
	failed.Flags().IntVar(&listLimit, "limit", 100, "Maximum events to list")

	var (
		eventID     int64
		replayLimit int
	)
	replay := &cobra.Command{
		Use:   "replay",
		Short: "Republish one event (--id) or every failed event",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open()
			if err != nil {
				return err
			}
			defer a.close()

			publisher, err := mq.NewPublisher(a.cfg.MQ.URL)
			if err != nil {
				return err
			}
			defer publisher.Close()

			svc := outbox.NewReplayService(outbox.NewRepository(a.pool), publisher, a.logger)
			if eventID > 0 {
				if err := svc.ReplayEvent(cmd.Context(), eventID); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "replayed event %d\n", eventID)
				return nil
			}

			n, err := svc.ReplayFailedEvents(cmd.Context(), replayLimit)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "replayed %d failed events\n", n)
			return nil
		},
	}
	replay.Flags().Int64Var(&eventID, "id", 0, "Event id to replay")
	replay.Flags().IntVar(&replayLimit, "limit", 100, "Maximum failed events to replay")

	cmd.AddCommand(failed, replay)
	return cmd
}
