package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/souravMitra02/volunteer-project-server/internal/app"
	"github.com/souravMitra02/volunteer-project-server/internal/config"
	"github.com/souravMitra02/volunteer-project-server/internal/usecase/reconcile"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// runner は 1 回分の突き合わせを行う。テストで差し替える。
type runner interface {
	Run(ctx context.Context, opts reconcile.Options) (*reconcile.Report, error)
}

var newRunner = func(ctx context.Context, logger *zap.Logger) (runner, *config.ReconcileConfig, func() error, error) {
	c, err := app.NewReconcileContainer(ctx, logger)
	if err != nil {
		return nil, nil, nil, err
	}
	return c.Reconciler, c.Config, c.Close, nil
}

type flags struct {
	grace       time.Duration
	dryRun      bool
	concurrency int
}

func newRootCmd(logger *zap.Logger) *cobra.Command {
	var f flags
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Roll forward volunteer requests left pending or cancelling",
		Long: "Lists requests stuck in pending or cancelling for longer than the grace period and finishes them:\n" +
			"pending requests get their seat and become active, cancelling requests give the seat back and are deleted.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, cfg, closeFn, err := newRunner(cmd.Context(), logger)
			if err != nil {
				return fmt.Errorf("init: %w", err)
			}
			defer func() {
				if cerr := closeFn(); cerr != nil {
					logger.Warn("close failed", zap.Error(cerr))
				}
			}()

			grace := cfg.Grace
			if cmd.Flags().Changed("grace") {
				grace = f.grace
			}
			report, err := r.Run(cmd.Context(), reconcile.Options{
				Grace:       grace,
				DryRun:      f.dryRun,
				Concurrency: f.concurrency,
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), report.String())
			if report.Failed > 0 {
				return fmt.Errorf("%d requests could not be reconciled", report.Failed)
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&f.grace, "grace", reconcile.DefaultGrace, "only touch requests untouched for at least this long (defaults to RECONCILE_GRACE)")
	cmd.Flags().BoolVar(&f.dryRun, "dry-run", false, "report stale requests without changing anything")
	cmd.Flags().IntVar(&f.concurrency, "concurrency", 4, "requests settled in parallel")
	return cmd
}

func main() {
	if err := config.LoadDotEnv(); err != nil {
		log.Printf("%v", err)
	}
	serverCfg, err := config.LoadServerConfigFromEnv()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger, err := app.NewLogger(serverCfg)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(logger).ExecuteContext(ctx); err != nil {
		logger.Error("reconcile failed", zap.Error(err))
		stop()
		os.Exit(1)
	}
}
