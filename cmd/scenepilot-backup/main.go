// Command scenepilot-backup runs the transcript database backup service.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/scenepilot/scenepilot/internal/backup"
	"github.com/scenepilot/scenepilot/internal/config"
)

var (
	dbPath    = flag.String("db", "", "Path to database file (overrides config)")
	backupDir = flag.String("backup-dir", "", "Backup directory path (overrides config)")
	interval  = flag.Duration("interval", 0, "Backup interval (overrides config)")
	verify    = flag.Bool("verify", true, "Verify backups after creation")
	oneshot   = flag.Bool("oneshot", false, "Perform a single backup and exit")
	restore   = flag.String("restore", "", "Restore database from backup file and exit")
	healthCmd = flag.Bool("health", false, "Check backup service health and exit")
	listCmd   = flag.Bool("list", false, "List all available backups and exit")
)

func main() {
	flag.Parse()
	_ = godotenv.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync() //nolint:errcheck

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	service, err := newService(cfg, logger)
	if err != nil {
		logger.Fatal("failed to create backup service", zap.Error(err))
	}

	// Command modes run once and exit; the default is the continuous service.
	switch {
	case *restore != "":
		handleRestore(service, *restore, logger)
	case *healthCmd:
		handleHealth(service)
	case *listCmd:
		handleList(service)
	case *oneshot:
		handleOneshot(service, logger)
	default:
		runService(service, logger)
	}
}

// newService builds the backup service from config, with flag overrides
// taking precedence.
func newService(cfg *config.Config, logger *zap.Logger) (*backup.Service, error) {
	dbPathFinal := cfg.Storage.DataPath + "/scenepilot.db"
	if *dbPath != "" {
		dbPathFinal = *dbPath
	}

	backupDirFinal := cfg.Backup.BackupPath
	if *backupDir != "" {
		backupDirFinal = *backupDir
	}

	intervalFinal := 24 * time.Hour
	if cfg.Backup.BackupInterval != "" {
		if d, err := time.ParseDuration(cfg.Backup.BackupInterval); err == nil {
			intervalFinal = d
		}
	}
	if *interval > 0 {
		intervalFinal = *interval
	}

	return backup.NewService(backup.Config{
		DBPath:        dbPathFinal,
		BackupDir:     backupDirFinal,
		Interval:      intervalFinal,
		VerifyBackups: *verify,
		Retention: backup.RetentionPolicy{
			Hourly:  cfg.Backup.BackupRetentionHourly,
			Daily:   cfg.Backup.BackupRetentionDaily,
			Weekly:  cfg.Backup.BackupRetentionWeekly,
			Monthly: cfg.Backup.BackupRetentionMonthly,
		},
	}, logger)
}

func handleRestore(service *backup.Service, backupPath string, logger *zap.Logger) {
	logger.Info("restoring database from backup", zap.String("path", backupPath))

	if err := service.Restore(backupPath); err != nil {
		logger.Fatal("restore failed", zap.Error(err))
	}

	logger.Info("database restored successfully")
}

func handleHealth(service *backup.Service) {
	health := service.HealthCheck()

	fmt.Printf("Status: %s\n", health.Status)
	if health.Message != "" {
		fmt.Printf("Message: %s\n", health.Message)
	}
	fmt.Printf("Total Backups: %d\n", health.TotalBackups)
	fmt.Printf("Disk Space Used: %.2f MB\n", float64(health.DiskSpaceUsed)/(1024*1024))
	fmt.Printf("Backup Directory: %s\n", health.BackupDir)

	if !health.LastBackup.IsZero() {
		fmt.Printf("Last Backup: %s (%s ago)\n",
			health.LastBackup.Format(time.RFC3339),
			time.Since(health.LastBackup).Round(time.Minute))
	} else {
		fmt.Println("Last Backup: Never")
	}

	if !health.NextBackup.IsZero() {
		fmt.Printf("Next Backup: %s (in %s)\n",
			health.NextBackup.Format(time.RFC3339),
			time.Until(health.NextBackup).Round(time.Minute))
	}

	if health.Status != "healthy" {
		os.Exit(1)
	}
}

func handleList(service *backup.Service) {
	backups, err := service.ListBackups()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to list backups: %v\n", err)
		os.Exit(1)
	}

	if len(backups) == 0 {
		fmt.Println("No backups found")
		return
	}

	fmt.Printf("Found %d backup(s):\n\n", len(backups))
	for i, b := range backups {
		fmt.Printf("%d. %s\n", i+1, b.Path)
		fmt.Printf("   Size: %.2f MB\n", float64(b.Size)/(1024*1024))
		fmt.Printf("   Created: %s (%s ago)\n",
			b.Timestamp.Format(time.RFC3339),
			time.Since(b.Timestamp).Round(time.Minute))
		fmt.Println()
	}
}

func handleOneshot(service *backup.Service, logger *zap.Logger) {
	logger.Info("performing one-time backup")

	result := service.BackupNow()
	if result.Error != nil {
		logger.Fatal("backup failed", zap.Error(result.Error))
	}

	logger.Info("backup completed",
		zap.String("path", result.Path),
		zap.Int64("size_bytes", result.Size),
		zap.Duration("duration", result.Duration),
		zap.Bool("verified", result.Verified))
}

func runService(service *backup.Service, logger *zap.Logger) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	service.Start(ctx)
	logger.Info("backup service started, press Ctrl+C to stop")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down backup service")
	cancel()
	service.Stop()
	logger.Info("backup service stopped")
}
