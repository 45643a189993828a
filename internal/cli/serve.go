package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/harun/wabridge/internal/config"
	"github.com/harun/wabridge/internal/logger"
	"github.com/harun/wabridge/internal/metrics"
	"github.com/harun/wabridge/pkg/responder"
	"github.com/harun/wabridge/pkg/session"
	"github.com/harun/wabridge/pkg/waclient"
	"github.com/harun/wabridge/pkg/webhook"
	"github.com/harun/wabridge/pkg/wssink"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the bridge",
	Long: `Run the bridge in the foreground: restore persisted sessions, start
the configured sinks and keep sessions alive until interrupted.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	lg, err := logger.New(logger.Config{
		Level:   cfg.Logging.Level,
		File:    cfg.Logging.File,
		Console: cfg.Logging.Console,
		Pretty:  cfg.Logging.Pretty,
	})
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	defer lg.Close()

	mx := metrics.NewMetrics()

	storage, err := session.NewStorage(cfg.SessionsPath)
	if err != nil {
		return err
	}

	opts := []session.Option{session.WithMetrics(mx)}

	whClient := webhook.NewClient(cfg.Webhook.Secret, time.Duration(cfg.Webhook.Timeout)*time.Second, mx)
	opts = append(opts, session.WithWebhookSink(whClient))

	var hub *wssink.Hub
	if cfg.Websocket.Enabled {
		hub = wssink.NewHub(cfg.Websocket.Host, cfg.Websocket.Port, mx, lg.GetZerolog())
		if err := hub.Start(); err != nil {
			return fmt.Errorf("failed to start websocket hub: %w", err)
		}
		defer hub.Stop()
		opts = append(opts, session.WithWebsocketSink(hub))
	}

	if cfg.AI.Enabled {
		resp, err := responder.New(cfg)
		if err != nil {
			return fmt.Errorf("failed to set up AI responder: %w", err)
		}
		opts = append(opts, session.WithResponder(resp))
	}

	manager := session.NewManager(cfg, session.NewRegistry(), storage, waclient.NewRodFactory(), opts...)

	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", mx.Handler())
		metricsServer = &http.Server{
			Addr:    fmt.Sprintf("%s:%d", cfg.Metrics.Host, cfg.Metrics.Port),
			Handler: mux,
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error().Err(err).Msg("Metrics server error")
			}
		}()
	}

	ctx := context.Background()
	if err := manager.Restore(ctx); err != nil {
		log.Error().Err(err).Msg("Failed to restore persisted sessions")
	}

	if cfg.FlushSchedule != "" {
		scheduler, err := session.NewFlushScheduler(manager, cfg.FlushSchedule)
		if err != nil {
			return err
		}
		scheduler.Start()
		defer scheduler.Stop()
	}

	if cfg.WatchSessions {
		watcher, err := session.NewDirWatcher(manager)
		if err != nil {
			return fmt.Errorf("failed to watch sessions directory: %w", err)
		}
		defer watcher.Stop()
	}

	log.Info().Int("sessions", manager.Registry().Count()).Msg("Bridge running")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Info().Str("signal", sig.String()).Msg("Shutting down")

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		metricsServer.Shutdown(shutdownCtx)
		cancel()
	}
	return nil
}
