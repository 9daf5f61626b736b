package backup

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const backupPrefix = "scenepilot-backup-"

// listBackups returns metadata for all backup files in dir, newest first.
func listBackups(dir string) ([]Info, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var backups []Info
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, backupPrefix) || !strings.HasSuffix(name, ".db") {
			continue
		}

		stamp := strings.TrimSuffix(strings.TrimPrefix(name, backupPrefix), ".db")
		ts, err := time.ParseInLocation("20060102-150405", stamp, time.Local)
		if err != nil {
			// Unrecognized names are left alone.
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}
		backups = append(backups, Info{
			Path:      filepath.Join(dir, name),
			Timestamp: ts,
			Size:      info.Size(),
		})
	}

	sort.Slice(backups, func(i, j int) bool {
		return backups[i].Timestamp.After(backups[j].Timestamp)
	})
	return backups, nil
}

// applyRetention removes backups that exceed the per-tier limits and
// returns the number of files deleted. Backups fall into one tier by
// age: hourly (< 24h), daily (1-7d), weekly (7-30d), monthly (30-365d);
// anything past a year is removed unconditionally.
func applyRetention(dir string, policy RetentionPolicy) (int, error) {
	backups, err := listBackups(dir)
	if err != nil {
		return 0, err
	}

	now := time.Now()
	var hourly, daily, weekly, monthly []Info
	var expired []Info

	for _, b := range backups {
		age := now.Sub(b.Timestamp)
		switch {
		case age < 24*time.Hour:
			hourly = append(hourly, b)
		case age < 7*24*time.Hour:
			daily = append(daily, b)
		case age < 30*24*time.Hour:
			weekly = append(weekly, b)
		case age < 365*24*time.Hour:
			monthly = append(monthly, b)
		default:
			expired = append(expired, b)
		}
	}

	var toRemove []Info
	toRemove = append(toRemove, excess(hourly, policy.Hourly)...)
	toRemove = append(toRemove, excess(daily, policy.Daily)...)
	toRemove = append(toRemove, excess(weekly, policy.Weekly)...)
	toRemove = append(toRemove, excess(monthly, policy.Monthly)...)
	toRemove = append(toRemove, expired...)

	removed := 0
	for _, b := range toRemove {
		if err := os.Remove(b.Path); err == nil {
			removed++
		}
	}
	return removed, nil
}

// excess returns the backups beyond the keep count. The slice is
// newest-first, so the excess is always the oldest files.
func excess(backups []Info, keep int) []Info {
	if keep < 0 {
		keep = 0
	}
	if len(backups) <= keep {
		return nil
	}
	return backups[keep:]
}

// calculateDiskUsage sums the size of all listed backups.
func calculateDiskUsage(backups []Info) int64 {
	var total int64
	for _, b := range backups {
		total += b.Size
	}
	return total
}
