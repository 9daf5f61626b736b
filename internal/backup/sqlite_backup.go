package backup

import (
	"database/sql"
	"fmt"
	"io"
	"os"

	_ "modernc.org/sqlite"
)

// backupSQLite creates a consistent copy of the source database using
// VACUUM INTO, which is safe against a live WAL-mode database.
func backupSQLite(srcPath, dstPath string) error {
	db, err := sql.Open("sqlite", srcPath+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return fmt.Errorf("open source database: %w", err)
	}
	defer db.Close()

	// VACUUM INTO refuses to overwrite an existing file.
	os.Remove(dstPath)

	if _, err := db.Exec("VACUUM INTO ?", dstPath); err != nil {
		return fmt.Errorf("vacuum into: %w", err)
	}
	return nil
}

// verifyBackup opens the backup and runs an integrity check plus a
// sanity query against the transcript table.
func verifyBackup(path string) error {
	db, err := sql.Open("sqlite", path+"?mode=ro")
	if err != nil {
		return fmt.Errorf("open backup: %w", err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("integrity check failed: %s", result)
	}

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM transcript").Scan(&count); err != nil {
		return fmt.Errorf("transcript table not readable: %w", err)
	}
	return nil
}

// restoreSQLite copies a verified backup over the live database path.
// Stale WAL and SHM sidecar files are removed so the restored database
// is not replayed against an old journal.
func restoreSQLite(backupPath, dbPath string) error {
	os.Remove(dbPath + "-wal")
	os.Remove(dbPath + "-shm")

	if err := copyFile(backupPath, dbPath); err != nil {
		return err
	}
	return verifyBackup(dbPath)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("copy %s to %s: %w", src, dst, err)
	}
	return out.Sync()
}
