package db

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	backupFileExt    = ".bak"
	backupTimeLayout = "20060102-150405"
)

// Backup copies the database file at dbPath to <dbPath>.<timestamp>.bak and
// removes the oldest backups so that at most maxBackups remain.
func Backup(dbPath string, maxBackups int, log *zap.SugaredLogger) (string, error) {
	return backupAt(dbPath, maxBackups, time.Now(), log)
}

func backupAt(dbPath string, maxBackups int, now time.Time, log *zap.SugaredLogger) (string, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if maxBackups <= 0 {
		return "", fmt.Errorf("max backups must be positive, got %d", maxBackups)
	}
	info, err := os.Stat(dbPath)
	if err != nil {
		return "", fmt.Errorf("failed to stat database file: %w", err)
	}
	log.Infow("existing database file", "path", dbPath, "bytes", info.Size())

	backupPath := fmt.Sprintf("%s.%s%s", dbPath, now.Format(backupTimeLayout), backupFileExt)
	if err := copyFile(dbPath, backupPath, log); err != nil {
		return "", fmt.Errorf("failed to create DB backup: %w", err)
	}
	log.Infow("database backed up", "backup", backupPath)
	pruneOldBackups(dbPath, maxBackups, log)
	return backupPath, nil
}

func copyFile(src, dst string, log *zap.SugaredLogger) error {
	sourceFileStat, err := os.Stat(src)
	if err != nil {
		return err
	}
	if !sourceFileStat.Mode().IsRegular() {
		return fmt.Errorf("%s is not a regular file", src)
	}

	source, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() {
		if err := source.Close(); err != nil {
			log.Warnw("failed to close file", "path", src, "error", err)
		}
	}()

	destination, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := destination.ReadFrom(source); err != nil {
		_ = destination.Close()
		return err
	}
	return destination.Close()
}

// listBackups returns the backups of dbPath, oldest first. The timestamp
// layout sorts lexically.
func listBackups(dbPath string) ([]string, error) {
	dir := filepath.Dir(dbPath)
	prefix := filepath.Base(dbPath) + "."
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var backups []string
	for _, f := range files {
		if strings.HasPrefix(f.Name(), prefix) && strings.HasSuffix(f.Name(), backupFileExt) {
			backups = append(backups, filepath.Join(dir, f.Name()))
		}
	}
	sort.Strings(backups)
	return backups, nil
}

func pruneOldBackups(dbPath string, max int, log *zap.SugaredLogger) {
	backups, err := listBackups(dbPath)
	if err != nil {
		log.Warnw("failed to read backup directory", "error", err)
		return
	}
	if len(backups) <= max {
		return
	}
	for _, file := range backups[:len(backups)-max] {
		if err := os.Remove(file); err != nil {
			log.Warnw("failed to remove old backup", "path", file, "error", err)
			continue
		}
		log.Infow("removed old backup", "path", file)
	}
}
