// Package backup provides automated backup and restore for the transcript
// database, with tiered retention and integrity verification.
package backup

import (
	"time"
)

// Config holds backup service configuration.
type Config struct {
	// DBPath is the path to the transcript database file to back up
	DBPath string

	// BackupDir is the directory where backups are stored
	BackupDir string

	// Interval is the duration between automated backups (default: 24h)
	Interval time.Duration

	// Retention defines how many backups to keep at each age tier
	Retention RetentionPolicy

	// VerifyBackups enables integrity checking after each backup
	VerifyBackups bool
}

// RetentionPolicy defines how many backups to keep per age tier.
// Backups are categorized by age: hourly (< 24h), daily (1-7 days),
// weekly (7-30 days), monthly (30-365 days). Anything older than a year
// is always removed.
type RetentionPolicy struct {
	Hourly  int // hourly backups to keep (default: 24)
	Daily   int // daily backups to keep (default: 7)
	Weekly  int // weekly backups to keep (default: 4)
	Monthly int // monthly backups to keep (default: 12)
}

// Info contains metadata about one backup file.
type Info struct {
	// Path is the full path to the backup file
	Path string

	// Timestamp is when the backup was created
	Timestamp time.Time

	// Size is the backup file size in bytes
	Size int64

	// Verified indicates if the backup passed an integrity check
	Verified bool
}

// Result contains the outcome of a backup operation.
type Result struct {
	// Path is the path to the created backup file
	Path string

	// Duration is how long the backup took
	Duration time.Duration

	// Size is the backup file size in bytes
	Size int64

	// Verified indicates if the backup was verified successfully
	Verified bool

	// Error is any error that occurred during backup
	Error error
}

// HealthStatus reports the health of the backup service.
type HealthStatus struct {
	// Status is "healthy", "warning", or "error"
	Status string

	// Message provides additional context about the status
	Message string

	// LastBackup is when the last successful backup completed
	LastBackup time.Time

	// NextBackup is when the next backup is scheduled
	NextBackup time.Time

	// TotalBackups is the number of backups currently stored
	TotalBackups int

	// BackupDir is the backup storage directory
	BackupDir string

	// DiskSpaceUsed is total bytes used by all backups
	DiskSpaceUsed int64
}
