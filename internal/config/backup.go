package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	apperrors "github.com/patchrag/patchrag/internal/errors"
)

const (
	// MaxBackups is the number of rotated config backups kept.
	MaxBackups = 3

	backupSuffix = ".bak"
)

// BackupConfig writes a timestamped backup of the file at path before
// it is overwritten. Returns the backup path, or "" when there is
// nothing to back up.
func BackupConfig(path string) (string, error) {
	if !fileExists(path) {
		return "", nil
	}

	timestamp := time.Now().Format("20060102-150405")
	backupPath := fmt.Sprintf("%s%s.%s", path, backupSuffix, timestamp)

	data, err := os.ReadFile(path)
	if err != nil {
		return "", apperrors.Wrapf(apperrors.ErrCodeStorage, err, "read config for backup")
	}
	if err := os.WriteFile(backupPath, data, 0o644); err != nil {
		return "", apperrors.Wrapf(apperrors.ErrCodeStorage, err, "write config backup")
	}

	// Rotation is best effort; the backup itself already succeeded.
	_ = cleanupOldBackups(path)

	return backupPath, nil
}

// ListBackups returns backup files for path, newest first.
func ListBackups(path string) ([]string, error) {
	dir := filepath.Dir(path)
	prefix := filepath.Base(path) + backupSuffix + "."

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, apperrors.Wrapf(apperrors.ErrCodeStorage, err, "list backups")
	}

	var backups []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasPrefix(entry.Name(), prefix) {
			backups = append(backups, filepath.Join(dir, entry.Name()))
		}
	}
	// Timestamps sort lexicographically; reverse gives newest first.
	sort.Sort(sort.Reverse(sort.StringSlice(backups)))
	return backups, nil
}

func cleanupOldBackups(path string) error {
	backups, err := ListBackups(path)
	if err != nil {
		return err
	}
	if len(backups) <= MaxBackups {
		return nil
	}
	for _, old := range backups[MaxBackups:] {
		if err := os.Remove(old); err != nil {
			return err
		}
	}
	return nil
}
