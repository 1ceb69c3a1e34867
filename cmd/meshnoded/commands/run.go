package commands

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/meshwire/meshnode/internal/chat"
	"github.com/meshwire/meshnode/internal/config"
	chatmetrics "github.com/meshwire/meshnode/internal/metrics"
)

// shutdownTimeout bounds how long the metrics HTTP server is given to
// drain active connections when the daemon is asked to stop.
const shutdownTimeout = 10 * time.Second

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "run the mesh-chat daemon",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runDaemon(cfg, logger)
		},
	}
}

func runDaemon(cfg *config.Config, log *slog.Logger) error {
	reg := prometheus.NewRegistry()
	collector := chatmetrics.NewCollector(reg)

	node, closeRadio, err := buildNode(cfg, collector, log)
	if err != nil {
		return err
	}
	defer closeRadio.Close()

	mux := http.NewServeMux()
	mux.Handle(cfg.Metrics.Path, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	metricsSrv := &http.Server{
		Addr:    cfg.Metrics.Addr,
		Handler: mux,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("metrics server listening", slog.String("addr", cfg.Metrics.Addr), slog.String("path", cfg.Metrics.Path))
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		log.Info("node starting", slog.String("self", chat.NodeAddr(cfg.Node.Address).String()))
		return node.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		log.Info("shutting down")
		return metricsSrv.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		handleSIGHUP(gctx, log)
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// handleSIGHUP reloads the log level from configPath on every SIGHUP,
// matching the teacher's handleSIGHUP/reloadConfig shape: the rest of
// the running configuration (radio transport, store path) is fixed for
// the process lifetime, but the log level can be turned up or down
// without a restart via the shared logLevel LevelVar. Blocks until ctx
// is cancelled.
func handleSIGHUP(ctx context.Context, log *slog.Logger) {
	sigHUP := make(chan os.Signal, 1)
	signal.Notify(sigHUP, syscall.SIGHUP)
	defer signal.Stop(sigHUP)

	for {
		select {
		case <-ctx.Done():
			return
		case <-sigHUP:
			log.Info("received SIGHUP, reloading log level")
			reloadLogLevel(log)
		}
	}
}

// reloadLogLevel reloads configPath and applies its log.level to the
// shared logLevel LevelVar. Errors are logged but do not stop the
// daemon; the previous level remains in effect.
func reloadLogLevel(log *slog.Logger) {
	newCfg, err := loadConfig(configPath)
	if err != nil {
		log.Error("failed to reload configuration, keeping current log level", slog.String("error", err.Error()))
		return
	}

	oldLevel := logLevel.Level()
	newLevel := config.ParseLogLevel(newCfg.Log.Level)
	logLevel.Set(newLevel)

	log.Info("configuration reloaded",
		slog.String("old_log_level", oldLevel.String()),
		slog.String("new_log_level", newLevel.String()),
	)
}
