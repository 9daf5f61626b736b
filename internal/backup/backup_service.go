package backup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Service performs scheduled and on-demand backups of the transcript
// database. A mutex serializes backup and restore operations so the
// automated loop cannot race a manual trigger.
type Service struct {
	config Config
	logger *zap.Logger

	mu         sync.Mutex
	lastBackup time.Time
	lastResult *Result

	cancel context.CancelFunc
	done   chan struct{}
}

// NewService creates a backup service. Zero-valued config fields are
// filled with defaults.
func NewService(cfg Config, logger *zap.Logger) (*Service, error) {
	if cfg.DBPath == "" {
		return nil, fmt.Errorf("backup: database path is required")
	}
	if cfg.BackupDir == "" {
		cfg.BackupDir = filepath.Join(filepath.Dir(cfg.DBPath), "backups")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 24 * time.Hour
	}
	if cfg.Retention == (RetentionPolicy{}) {
		cfg.Retention = RetentionPolicy{Hourly: 24, Daily: 7, Weekly: 4, Monthly: 12}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	if err := os.MkdirAll(cfg.BackupDir, 0o755); err != nil {
		return nil, fmt.Errorf("backup: create backup directory: %w", err)
	}

	return &Service{
		config: cfg,
		logger: logger,
	}, nil
}

// Start runs the automated backup loop until the context is cancelled
// or Stop is called. An initial backup runs immediately.
func (s *Service) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)

		s.logger.Info("backup service started",
			zap.Duration("interval", s.config.Interval),
			zap.String("backup_dir", s.config.BackupDir))

		if result := s.BackupNow(); result.Error != nil {
			s.logger.Error("initial backup failed", zap.Error(result.Error))
		}

		ticker := time.NewTicker(s.config.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				s.logger.Info("backup service stopped")
				return
			case <-ticker.C:
				if result := s.BackupNow(); result.Error != nil {
					s.logger.Error("scheduled backup failed", zap.Error(result.Error))
				}
			}
		}
	}()
}

// Stop terminates the automated backup loop and waits for it to exit.
func (s *Service) Stop() {
	if s.cancel != nil {
		s.cancel()
		<-s.done
	}
}

// BackupNow performs an immediate backup and applies the retention policy.
func (s *Service) BackupNow() *Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	result := &Result{}

	timestamp := start.Format("20060102-150405")
	backupPath := filepath.Join(s.config.BackupDir, fmt.Sprintf("scenepilot-backup-%s.db", timestamp))

	s.logger.Info("starting backup", zap.String("path", backupPath))

	if err := backupSQLite(s.config.DBPath, backupPath); err != nil {
		result.Error = fmt.Errorf("backup failed: %w", err)
		s.lastResult = result
		return result
	}

	info, err := os.Stat(backupPath)
	if err != nil {
		result.Error = fmt.Errorf("stat backup file: %w", err)
		s.lastResult = result
		return result
	}
	result.Path = backupPath
	result.Size = info.Size()

	if s.config.VerifyBackups {
		if err := verifyBackup(backupPath); err != nil {
			os.Remove(backupPath)
			result.Error = fmt.Errorf("backup verification failed: %w", err)
			s.lastResult = result
			return result
		}
		result.Verified = true
	}

	removed, err := applyRetention(s.config.BackupDir, s.config.Retention)
	if err != nil {
		s.logger.Warn("retention cleanup failed", zap.Error(err))
	} else if removed > 0 {
		s.logger.Info("retention cleanup removed old backups", zap.Int("removed", removed))
	}

	result.Duration = time.Since(start)
	s.lastBackup = start
	s.lastResult = result

	s.logger.Info("backup completed",
		zap.String("path", backupPath),
		zap.Int64("size_bytes", result.Size),
		zap.Bool("verified", result.Verified),
		zap.Duration("duration", result.Duration))

	return result
}

// Restore replaces the transcript database with the given backup file.
// The current database is copied aside first and rolled back if the
// restore fails.
func (s *Service) Restore(backupPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(backupPath); err != nil {
		return fmt.Errorf("backup file not accessible: %w", err)
	}
	if err := verifyBackup(backupPath); err != nil {
		return fmt.Errorf("backup failed verification, refusing to restore: %w", err)
	}

	safetyPath := s.config.DBPath + ".pre-restore"
	hadExisting := false
	if _, err := os.Stat(s.config.DBPath); err == nil {
		hadExisting = true
		if err := copyFile(s.config.DBPath, safetyPath); err != nil {
			return fmt.Errorf("create pre-restore copy: %w", err)
		}
	}

	s.logger.Info("restoring database",
		zap.String("from", backupPath),
		zap.String("to", s.config.DBPath))

	if err := restoreSQLite(backupPath, s.config.DBPath); err != nil {
		if hadExisting {
			if rbErr := copyFile(safetyPath, s.config.DBPath); rbErr != nil {
				return fmt.Errorf("restore failed (%v) and rollback failed: %w", err, rbErr)
			}
			os.Remove(safetyPath)
			return fmt.Errorf("restore failed, rolled back to previous database: %w", err)
		}
		return fmt.Errorf("restore failed: %w", err)
	}

	if hadExisting {
		os.Remove(safetyPath)
	}
	s.logger.Info("restore completed", zap.String("path", s.config.DBPath))
	return nil
}

// ListBackups returns metadata for all backups, newest first.
func (s *Service) ListBackups() ([]Info, error) {
	return listBackups(s.config.BackupDir)
}

// HealthCheck reports backup service health based on backup age and count.
func (s *Service) HealthCheck() *HealthStatus {
	s.mu.Lock()
	lastBackup := s.lastBackup
	s.mu.Unlock()

	status := &HealthStatus{
		Status:    "healthy",
		BackupDir: s.config.BackupDir,
	}

	backups, err := listBackups(s.config.BackupDir)
	if err != nil {
		status.Status = "error"
		status.Message = fmt.Sprintf("cannot list backups: %v", err)
		return status
	}
	status.TotalBackups = len(backups)
	status.DiskSpaceUsed = calculateDiskUsage(backups)

	if len(backups) == 0 {
		status.Status = "warning"
		status.Message = "no backups exist yet"
		return status
	}

	newest := backups[0].Timestamp
	if lastBackup.IsZero() {
		lastBackup = newest
	}
	status.LastBackup = lastBackup
	status.NextBackup = lastBackup.Add(s.config.Interval)

	if time.Since(newest) > 2*s.config.Interval {
		status.Status = "warning"
		status.Message = fmt.Sprintf("newest backup is %s old", time.Since(newest).Round(time.Minute))
	}
	return status
}
