// Command kumaqueue runs the Discord music bot.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sonroyaalmerol/kumaqueue/internal/config"
	"github.com/sonroyaalmerol/kumaqueue/internal/handlers"
	"github.com/sonroyaalmerol/kumaqueue/internal/logging"
	"github.com/sonroyaalmerol/kumaqueue/internal/player"
	"github.com/sonroyaalmerol/kumaqueue/internal/repository"
	"github.com/sonroyaalmerol/kumaqueue/internal/resolver"
	"github.com/sonroyaalmerol/kumaqueue/internal/server"
	"github.com/sonroyaalmerol/kumaqueue/internal/spotify"
)

var rootCmd = &cobra.Command{
	Use:          "kumaqueue",
	Short:        "Discord music bot with per-guild playback queues",
	SilenceUsage: true,
	RunE:         runBot,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Connect to Discord and serve commands (default)",
	RunE:  runBot,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations and exit",
	RunE:  runMigrate,
}

func main() {
	rootCmd.AddCommand(runCmd, migrateCmd)
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runBot(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	db, err := repository.OpenDB(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	repo := repository.NewRepo(db)

	var sp resolver.SpotifySource
	if cfg.SpotifyClientID != "" && cfg.SpotifyClientSecret != "" {
		sp = spotify.NewClientCredentials(cfg.SpotifyClientID, cfg.SpotifyClientSecret)
	} else {
		logger.Info("spotify credentials not set, spotify links disabled")
	}
	res, err := resolver.New(cfg, sp, logger.Named("resolver"))
	if err != nil {
		return err
	}

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := player.NewMetrics(promReg)

	bot, err := handlers.NewBot(cfg, handlers.Deps{
		Repo:     repo,
		Registry: player.NewRegistry(cfg.QueueCapacity, cfg.HistoryCapacity),
		Resolver: res,
		Metrics:  metrics,
		Logger:   logger,
	})
	if err != nil {
		return fmt.Errorf("create bot: %w", err)
	}

	sigCtx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	g, ctx := errgroup.WithContext(sigCtx)
	g.Go(func() error { return bot.Coordinator().Run(ctx) })
	g.Go(func() error { return bot.Run(ctx) })
	if cfg.MetricsAddr != "" {
		srv := server.New(cfg.MetricsAddr, promReg, bot.Ready, logger.Named("http"))
		g.Go(func() error { return srv.Start(ctx) })
	}

	logger.Info("kumaqueue starting",
		zap.Int("queueCapacity", cfg.QueueCapacity),
		zap.Int("resolveWorkers", cfg.ResolveWorkers),
		zap.Duration("resolveTimeout", cfg.ResolveTimeout))

	if err := g.Wait(); err != nil && sigCtx.Err() == nil {
		return err
	}
	logger.Info("kumaqueue stopped")
	return nil
}

func runMigrate(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	db, err := repository.OpenDB(cfg.DataDir)
	if err != nil {
		return err
	}
	defer db.Close()

	version, err := repository.Migrate(db)
	if err != nil {
		return err
	}
	logger.Info("database up to date", zap.String("dataDir", cfg.DataDir), zap.Uint("version", version))
	return nil
}
