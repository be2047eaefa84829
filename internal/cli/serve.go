package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/harun/pointlog/internal/config"
	"github.com/harun/pointlog/internal/logger"
	"github.com/harun/pointlog/internal/observability"
	"github.com/harun/pointlog/internal/tracing"
	"github.com/harun/pointlog/pkg/server"
	"github.com/harun/pointlog/pkg/session"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the pointlog HTTP server",
	Long: `Run the pointlog HTTP server in the foreground.
The server stops gracefully on SIGINT or SIGTERM.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log, err := logger.New(logger.Config{
		Level:     cfg.Logging.Level,
		File:      cfg.Logging.File,
		Console:   cfg.Logging.Console,
		Pretty:    cfg.Logging.Pretty,
		Redaction: cfg.Logging.Redaction,
		MaxSize:   cfg.Logging.MaxSize,
		MaxAge:    cfg.Logging.MaxAge,
		Compress:  cfg.Logging.Compress,
	})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer log.Close()
	zl := log.GetZerolog()

	pidFile := getPIDFilePath(cfg)
	if isRunning(pidFile) {
		return fmt.Errorf("server is already running (PID file: %s)", pidFile)
	}
	if err := writePIDFile(pidFile); err != nil {
		zl.Warn().Err(err).Str("pid_file", pidFile).Msg("Failed to write PID file")
	}
	defer removePIDFile(pidFile)

	if cfg.Tracing.Enabled {
		err := tracing.InitOpenTelemetry(tracing.ProviderOptions{
			ServiceName:    cfg.Tracing.ServiceName,
			ServiceVersion: version,
			SessionsDir:    cfg.SessionsDir,
			SampleRatio:    cfg.Tracing.SampleRatio,
		})
		if err != nil {
			zl.Warn().Err(err).Msg("Failed to initialize tracing")
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			tracing.ShutdownOpenTelemetry(ctx)
		}()
	}

	if cfg.AuditFile != "" {
		if err := observability.InitAuditLogger(cfg.AuditFile); err != nil {
			zl.Warn().Err(err).Str("audit_file", cfg.AuditFile).Msg("Failed to open audit log, using stderr")
		}
	}
	defer observability.GetAuditLogger().Close()

	store, sweeper, err := buildStore(cfg, zl)
	if err != nil {
		return err
	}
	if sweeper != nil {
		if err := sweeper.Start(); err != nil {
			return err
		}
		defer sweeper.Stop()
	}

	watcher, err := session.NewWatcher(store, zl)
	if err != nil {
		zl.Warn().Err(err).Msg("External session changes will not be detected")
	} else {
		defer watcher.Stop()
	}

	srv, err := server.New(server.Options{
		Host:               cfg.Server.Host,
		Port:               cfg.Server.Port,
		Path:               cfg.Server.Path,
		AllowedOrigins:     cfg.Server.AllowedOrigins,
		RateLimitPerMinute: cfg.Server.RateLimitPerMinute,
		RequestTimeout:     cfg.Server.RequestTimeout,
		ReadTimeout:        cfg.Server.ReadTimeout,
		WriteTimeout:       cfg.Server.WriteTimeout,
	}, store, zl)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		zl.Info().Msg("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Stop(shutdownCtx)
}

// buildStore prepares the sessions directory, the store and, when enabled,
// its sweeper. A directory that cannot be created leaves the store working
// in memory only.
func buildStore(cfg *config.Config, logger zerolog.Logger) (*session.Store, *session.Sweeper, error) {
	files := session.NewFiles(cfg.SessionsDir, logger)
	if err := files.Bootstrap(); err != nil {
		logger.Warn().Err(err).Str("dir", cfg.SessionsDir).Msg("Sessions will not be persisted")
	}
	store := session.NewStore(files, logger)

	if !cfg.Sweeper.Enabled {
		return store, nil, nil
	}

	sweeper, err := session.NewSweeper(store, session.SweeperConfig{
		Schedule:  cfg.Sweeper.Schedule,
		IdleAfter: cfg.Sweeper.IdleAfter,
		Retention: cfg.Sweeper.Retention,
	}, logger)
	if err != nil {
		return nil, nil, err
	}
	return store, sweeper, nil
}
