package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/kestrelmq/kestrel/internal/broker"
	"github.com/kestrelmq/kestrel/internal/config"
	"github.com/kestrelmq/kestrel/internal/persist"
	"github.com/kestrelmq/kestrel/internal/server"
	"github.com/kestrelmq/kestrel/internal/snapshot"
)

// drainTimeout bounds how long shutdown waits for the snapshotter to
// finish an in-flight store and hand back its persistor.
const drainTimeout = 30 * time.Second

var (
	cfgFile string
	verbose bool
)

func setupLogger(verbose bool, logCfg *config.LoggingConfig) (*zap.Logger, error) {
	var zapConfig zap.Config
	if verbose {
		zapConfig = zap.NewDevelopmentConfig()
	} else {
		zapConfig = zap.NewProductionConfig()
		zapConfig.DisableStacktrace = true
	}

	if logCfg != nil && logCfg.Level != "" {
		var level zapcore.Level
		if err := level.UnmarshalText([]byte(logCfg.Level)); err == nil {
			zapConfig.Level = zap.NewAtomicLevelAt(level)
		}
	}

	return zapConfig.Build()
}

func main() {
	rootCmd := &cobra.Command{
		Use:           "kestreld",
		Short:         "Message broker daemon with durable session state",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}

			logger, err := setupLogger(verbose, &cfg.Logging)
			if err != nil {
				return err
			}
			defer logger.Sync()

			if err := run(cmd.Context(), cfg, logger); err != nil {
				logger.Error("exiting with error", zap.Error(err))
				return err
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", os.Getenv("KESTRELD_CONFIG"), "config file path (or set KESTRELD_CONFIG)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "kestreld: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	// Pick the persistence backend once, at startup.
	var persistor persist.Persistor
	if cfg.Persistence.Enabled {
		if err := os.MkdirAll(cfg.Persistence.Directory, 0o750); err != nil {
			return fmt.Errorf("creating state directory: %w", err)
		}
		persistor = persist.NewFilePersistor(cfg.Persistence.Directory, persist.ZstdCodec{}, cfg.Persistence.Retention, logger)
	} else {
		logger.Info("persistence disabled")
		persistor = persist.NullPersistor{}
	}

	// A missing pointer yields an empty state; anything else is fatal,
	// the broker cannot start without a determinate initial state.
	logger.Info("loading state")
	state, err := persistor.Load()
	if err != nil {
		return fmt.Errorf("loading persisted state: %w", err)
	}
	logger.Info("state loaded",
		zap.Int("sessions", len(state.Sessions)),
		zap.Int("retained", len(state.Retained)),
	)

	notes := make(chan broker.Note, 64)
	b := broker.New(state, notes, logger)

	// The snapshotter takes ownership of the persistor until shutdown.
	snapshotter := snapshot.New(persistor, logger)
	snapHandle := snapshotter.SnapshotHandle()
	shutdownHandle := snapshotter.ShutdownHandle()
	go snapshotter.Run()

	// The broker outlives the signal context: it must keep consuming
	// events until the orchestrator explicitly stops it.
	brokerCtx, stopBroker := context.WithCancel(context.Background())
	defer stopBroker()
	finalState := make(chan broker.State, 1)
	go func() { finalState <- b.Run(brokerCtx) }()

	// Tick the snapshotter
	go snapshot.Tick(ctx, cfg.Snapshot.Interval, b.Handle(), snapHandle, logger)

	// Signal the snapshotter
	trigger := snapshot.NewTrigger(b.Handle(), snapHandle, logger)
	go watchSnapshotSignal(ctx, trigger, logger)

	// Admin surface
	var httpSrv *http.Server
	if cfg.Server.Enabled {
		hub := server.NewEventHub(notes, logger)
		go hub.Run(ctx)

		srv := server.New(b, snapshotter, trigger, hub, logger)
		httpSrv = &http.Server{
			Addr:    cfg.Server.Addr,
			Handler: server.NewRouter(srv, logger),
		}
		go func() {
			logger.Info("admin server listening", zap.String("addr", cfg.Server.Addr))
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("admin server failed", zap.Error(err))
			}
		}()
	}

	<-ctx.Done()
	logger.Info("shutdown requested")

	if httpSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("admin server shutdown failed", zap.Error(err))
		}
		cancel()
	}

	// Stop the broker and collect its final exported state.
	stopBroker()
	last := <-finalState

	// Reclaim the persistor; an in-flight store is allowed to finish.
	drainCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	persistor, err = shutdownHandle.Shutdown(drainCtx)
	if err != nil {
		return fmt.Errorf("stopping snapshotter: %w", err)
	}
	logger.Info("snapshotter stopped")

	// Last chance to preserve state; failure here decides the exit code.
	logger.Info("persisting state before exiting")
	if err := persistor.Store(last); err != nil {
		return fmt.Errorf("persisting final state: %w", err)
	}
	logger.Info("state persisted, exiting")
	return nil
}
