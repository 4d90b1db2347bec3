// Package publish copies the validated data file to its serving location
// and rotates timestamped backups.
//
// The design assumes at most one publisher instance active at a time; runs
// are serialized by the surrounding orchestration.
package publish

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"deploytrack/pkg/fileutil"
)

const (
	// PermServedFile is for the published data file.
	// rw-r--r-- (0644): world-readable so the HTTP server and Grafana's
	// JSON data source can fetch it.
	PermServedFile os.FileMode = 0644

	// PermBackupDir is for the backup directory.
	// rwxr-x--- (0750): owner full access, group can list, others none.
	PermBackupDir os.FileMode = 0750

	// DefaultRetention is the number of backups kept after rotation.
	DefaultRetention = 10

	backupPrefix = "deployments-"
	backupSuffix = ".json"
	backupStamp  = "20060102-150405"
)

// PublishError reports an I/O or permission failure during publish.
// The pipeline treats it as fatal for the run.
type PublishError struct {
	Op   string
	Path string
	Err  error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("publish failed during %s of %s: %v", e.Op, e.Path, e.Err)
}

func (e *PublishError) Unwrap() error { return e.Err }

// Owner identifies the serving principal that should own the published file.
type Owner struct {
	UID int
	GID int
}

// Publisher publishes data snapshots and maintains the backup set.
type Publisher struct {
	// Owner, when set, is applied to the target after the atomic rename.
	// Typically only usable when running as root; leave nil otherwise.
	Owner  *Owner
	Logger *slog.Logger
}

// NewPublisher creates a publisher. Logger must not be nil.
func NewPublisher(owner *Owner, logger *slog.Logger) *Publisher {
	return &Publisher{Owner: owner, Logger: logger}
}

// Publish copies localFile to targetPath using write-temp-then-atomic-rename,
// never a direct overwrite. Ownership and world-readable permissions are
// applied after the rename.
func (p *Publisher) Publish(localFile, targetPath string) error {
	if err := os.MkdirAll(filepath.Dir(targetPath), 0755); err != nil {
		return &PublishError{Op: "mkdir", Path: filepath.Dir(targetPath), Err: err}
	}

	if err := fileutil.CopyFileAtomic(localFile, targetPath, PermServedFile); err != nil {
		return &PublishError{Op: "copy", Path: targetPath, Err: err}
	}

	// The atomic copy already set the mode on the temp file; chmod again on
	// the final name in case the target pre-existed with tighter permissions.
	if err := os.Chmod(targetPath, PermServedFile); err != nil {
		return &PublishError{Op: "chmod", Path: targetPath, Err: err}
	}

	if p.Owner != nil {
		if err := os.Chown(targetPath, p.Owner.UID, p.Owner.GID); err != nil {
			return &PublishError{Op: "chown", Path: targetPath, Err: err}
		}
	}

	p.Logger.Info("Published data snapshot", "target", targetPath)
	return nil
}

// Backup copies the just-published file into backupDir under a timestamped
// name, then evicts the oldest backups beyond the retention count.
//
// Eviction failures are logged and skipped; an unreadable old backup must
// not fail a run whose snapshot was already published.
func (p *Publisher) Backup(targetPath, backupDir string, retention int) error {
	if retention <= 0 {
		retention = DefaultRetention
	}

	if err := os.MkdirAll(backupDir, PermBackupDir); err != nil {
		return &PublishError{Op: "mkdir", Path: backupDir, Err: err}
	}

	name := backupPrefix + time.Now().UTC().Format(backupStamp) + backupSuffix
	backupPath := filepath.Join(backupDir, name)

	if err := fileutil.CopyFile(targetPath, backupPath, PermServedFile); err != nil {
		return &PublishError{Op: "backup", Path: backupPath, Err: err}
	}

	p.Logger.Info("Created backup", "backup", backupPath)

	return p.rotate(backupDir, retention)
}

// rotate keeps the newest retention backups and deletes the rest.
func (p *Publisher) rotate(backupDir string, retention int) error {
	backups, err := ListBackups(backupDir)
	if err != nil {
		return &PublishError{Op: "list", Path: backupDir, Err: err}
	}

	if len(backups) <= retention {
		return nil
	}

	for _, name := range backups[retention:] {
		path := filepath.Join(backupDir, name)
		if err := os.Remove(path); err != nil {
			p.Logger.Warn("Failed to remove old backup", "backup", path, "error", err)
			continue
		}
		p.Logger.Info("Evicted old backup", "backup", path)
	}

	return nil
}

// ListBackups returns the backup file names in backupDir sorted by
// timestamp descending (newest first). Files that do not match the
// backup naming scheme are ignored.
func ListBackups(backupDir string) ([]string, error) {
	entries, err := os.ReadDir(backupDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read backup directory: %w", err)
	}

	var backups []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, backupPrefix) && strings.HasSuffix(name, backupSuffix) {
			backups = append(backups, name)
		}
	}

	// Names embed a second-resolution timestamp, so a reverse lexical sort
	// is newest-first.
	sort.Sort(sort.Reverse(sort.StringSlice(backups)))

	return backups, nil
}
