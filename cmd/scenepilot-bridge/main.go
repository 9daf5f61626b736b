// The scenepilot-bridge binary runs the HTTP/WebSocket sidecar that a 3D
// editor plugin talks to. It wires the transcript store, LLM gateway,
// session manager, scene watcher, and optional backup service together and
// serves until interrupted.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/scenepilot/scenepilot/internal/backup"
	"github.com/scenepilot/scenepilot/internal/config"
	"github.com/scenepilot/scenepilot/internal/llm"
	"github.com/scenepilot/scenepilot/internal/scene"
	"github.com/scenepilot/scenepilot/internal/server"
	"github.com/scenepilot/scenepilot/internal/services"
	"github.com/scenepilot/scenepilot/internal/session"
	"github.com/scenepilot/scenepilot/internal/transcript"
	"github.com/scenepilot/scenepilot/internal/transcript/postgres"
	"github.com/scenepilot/scenepilot/internal/transcript/sqlite"
	"github.com/scenepilot/scenepilot/pkg/types"
)

func main() {
	// A .env next to the binary is a convenience for local development;
	// missing is fine.
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync() //nolint:errcheck

	store, err := openStore(cfg)
	if err != nil {
		logger.Fatal("failed to open transcript store", zap.Error(err))
	}
	defer store.Close()

	client, err := llm.NewChatClient(cfg, logger)
	if err != nil {
		logger.Fatal("failed to create LLM client", zap.Error(err))
	}
	gateway := llm.NewGateway(client, cfg, logger)

	// Persisted UI settings override the configured defaults so host
	// adjustments survive restarts. New sessions seed from cfg, so fold
	// the loaded values back in before the first session is built.
	settingsSvc := services.NewSettingsService(store, logger)
	applyPersistedSettings(cfg, settingsSvc, gateway, logger)

	sessions := session.NewManager(gateway, cfg, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var watcher *scene.Watcher
	if cfg.Scene.WatchEnabled {
		watcher = scene.NewWatcher(cfg.Storage.DataPath, nil, logger)
		if err := watcher.Start(); err != nil {
			logger.Fatal("failed to start scene watcher", zap.Error(err))
		}
		defer watcher.Stop()
		logger.Info("scene watcher started", zap.String("dir", cfg.Scene.SnapshotDir))
	}

	if cfg.Backup.BackupEnabled && cfg.Storage.StorageEngine == "sqlite" {
		svc, err := newBackupService(cfg, logger)
		if err != nil {
			logger.Fatal("failed to create backup service", zap.Error(err))
		}
		svc.Start(ctx)
		defer svc.Stop()
	}

	addr, _, err := server.Start(ctx, cfg, server.Deps{
		Sessions: sessions,
		Gateway:  gateway,
		Store:    store,
		Settings: settingsSvc,
		Scenes:   watcher,
		Logger:   logger,
	})
	if err != nil {
		logger.Fatal("failed to start server", zap.Error(err))
	}
	logger.Info("bridge listening", zap.String("addr", addr))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down")
	cancel()
	time.Sleep(1 * time.Second) // Give in-flight connections time to close
}

// newLogger builds the process logger from the logging config. The
// development flag switches to the console encoder.
func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}
	var zc zap.Config
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc = zap.NewProductionConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

// openStore opens the transcript store named by the storage config.
func openStore(cfg *config.Config) (transcript.Store, error) {
	switch cfg.Storage.StorageEngine {
	case "postgres":
		return postgres.NewStore(cfg.Storage.PostgresDSN)
	default:
		if err := os.MkdirAll(cfg.Storage.DataPath, 0o700); err != nil {
			return nil, err
		}
		return sqlite.NewStore(cfg.Storage.DataPath + "/scenepilot.db")
	}
}

// applyPersistedSettings overlays stored runtime settings onto the config
// and gateway. Load failures fall back to the configured defaults.
func applyPersistedSettings(cfg *config.Config, svc *services.SettingsService, gateway *llm.Gateway, logger *zap.Logger) {
	defaults := types.DefaultAssistantSettings()
	defaults.Temperature = cfg.Pipeline.Temperature
	defaults.MaxTokens = cfg.Pipeline.MaxTokens
	defaults.EnableCaching = cfg.LLM.EnableCaching
	defaults.EnableMultiStepPlanning = cfg.Pipeline.EnableMultiStep
	defaults.UseCustomModel = cfg.Models.UseCustomModel
	defaults.CustomModel = cfg.Models.CustomModel
	settings, err := svc.Load(context.Background(), defaults)
	if err != nil {
		logger.Warn("failed to load persisted settings, using defaults", zap.Error(err))
		return
	}
	cfg.Pipeline.Temperature = settings.Temperature
	cfg.Pipeline.MaxTokens = settings.MaxTokens
	cfg.Pipeline.EnableMultiStep = settings.EnableMultiStepPlanning
	cfg.LLM.EnableCaching = settings.EnableCaching
	cfg.Models.UseCustomModel = settings.UseCustomModel
	cfg.Models.CustomModel = settings.CustomModel
	gateway.SetCaching(settings.EnableCaching)
}

// newBackupService builds the backup service from the backup config.
func newBackupService(cfg *config.Config, logger *zap.Logger) (*backup.Service, error) {
	interval, err := time.ParseDuration(cfg.Backup.BackupInterval)
	if err != nil {
		return nil, fmt.Errorf("invalid backup interval %q: %w", cfg.Backup.BackupInterval, err)
	}
	return backup.NewService(backup.Config{
		DBPath:        cfg.Storage.DataPath + "/scenepilot.db",
		BackupDir:     cfg.Backup.BackupPath,
		Interval:      interval,
		VerifyBackups: cfg.Backup.BackupVerify,
		Retention: backup.RetentionPolicy{
			Hourly:  cfg.Backup.BackupRetentionHourly,
			Daily:   cfg.Backup.BackupRetentionDaily,
			Weekly:  cfg.Backup.BackupRetentionWeekly,
			Monthly: cfg.Backup.BackupRetentionMonthly,
		},
	}, logger)
}
