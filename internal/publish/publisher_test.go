package publish

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeSource(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "deployments.json")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write source file: %v", err)
	}
	return path
}

func TestPublish(t *testing.T) {
	dir := t.TempDir()
	src := writeSource(t, dir, `{"deployments": []}`)
	target := filepath.Join(dir, "www", "deployments.json")

	p := NewPublisher(nil, testLogger())
	if err := p.Publish(src, target); err != nil {
		t.Fatalf("Publish() failed: %v", err)
	}

	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("Failed to read published file: %v", err)
	}
	if string(data) != `{"deployments": []}` {
		t.Errorf("Published content mismatch: %q", data)
	}

	info, err := os.Stat(target)
	if err != nil {
		t.Fatalf("Failed to stat published file: %v", err)
	}
	if info.Mode().Perm() != PermServedFile {
		t.Errorf("Expected mode %o on published file, got %o", PermServedFile, info.Mode().Perm())
	}
}

func TestPublish_ReplacesExistingTarget(t *testing.T) {
	dir := t.TempDir()
	src := writeSource(t, dir, `{"deployments": [{"Name": "Sprint 2"}]}`)
	target := filepath.Join(dir, "target.json")
	if err := os.WriteFile(target, []byte(`{"deployments": [{"Name": "Sprint 1"}]}`), 0600); err != nil {
		t.Fatalf("Failed to seed target: %v", err)
	}

	p := NewPublisher(nil, testLogger())
	if err := p.Publish(src, target); err != nil {
		t.Fatalf("Publish() failed: %v", err)
	}

	data, _ := os.ReadFile(target)
	if string(data) != `{"deployments": [{"Name": "Sprint 2"}]}` {
		t.Errorf("Expected target replaced, got %q", data)
	}

	// The pre-existing tighter mode must be widened for serving.
	info, _ := os.Stat(target)
	if info.Mode().Perm() != PermServedFile {
		t.Errorf("Expected mode %o after republish, got %o", PermServedFile, info.Mode().Perm())
	}
}

func TestPublish_MissingSourceKeepsTarget(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "target.json")
	if err := os.WriteFile(target, []byte("previous snapshot"), 0644); err != nil {
		t.Fatalf("Failed to seed target: %v", err)
	}

	p := NewPublisher(nil, testLogger())
	err := p.Publish(filepath.Join(dir, "missing.json"), target)
	if err == nil {
		t.Fatal("Expected error for missing source")
	}

	var pubErr *PublishError
	if !errors.As(err, &pubErr) {
		t.Errorf("Expected PublishError, got %T: %v", err, err)
	}

	// A failed publish never corrupts what was already being served.
	data, _ := os.ReadFile(target)
	if string(data) != "previous snapshot" {
		t.Errorf("Target must be left intact on failure, got %q", data)
	}
}

func TestBackup_CreatesTimestampedCopy(t *testing.T) {
	dir := t.TempDir()
	target := writeSource(t, dir, `{"deployments": []}`)
	backupDir := filepath.Join(dir, "backups")

	p := NewPublisher(nil, testLogger())
	if err := p.Backup(target, backupDir, 10); err != nil {
		t.Fatalf("Backup() failed: %v", err)
	}

	backups, err := ListBackups(backupDir)
	if err != nil {
		t.Fatalf("ListBackups() failed: %v", err)
	}
	if len(backups) != 1 {
		t.Fatalf("Expected 1 backup, got %d", len(backups))
	}

	data, err := os.ReadFile(filepath.Join(backupDir, backups[0]))
	if err != nil {
		t.Fatalf("Failed to read backup: %v", err)
	}
	if string(data) != `{"deployments": []}` {
		t.Errorf("Backup content mismatch: %q", data)
	}
}

func TestBackup_EvictsBeyondRetention(t *testing.T) {
	dir := t.TempDir()
	target := writeSource(t, dir, `{"deployments": []}`)
	backupDir := filepath.Join(dir, "backups")
	if err := os.MkdirAll(backupDir, 0750); err != nil {
		t.Fatalf("Failed to create backup dir: %v", err)
	}

	// Seed 12 older backups with distinct timestamps.
	var seeded []string
	for i := 1; i <= 12; i++ {
		name := fmt.Sprintf("deployments-20240101-%06d.json", i)
		seeded = append(seeded, name)
		if err := os.WriteFile(filepath.Join(backupDir, name), []byte("old"), 0644); err != nil {
			t.Fatalf("Failed to seed backup: %v", err)
		}
	}

	p := NewPublisher(nil, testLogger())
	if err := p.Backup(target, backupDir, 10); err != nil {
		t.Fatalf("Backup() failed: %v", err)
	}

	backups, err := ListBackups(backupDir)
	if err != nil {
		t.Fatalf("ListBackups() failed: %v", err)
	}
	if len(backups) != 10 {
		t.Fatalf("Expected exactly 10 backups after rotation, got %d: %v", len(backups), backups)
	}

	// The newest backup is the one just taken; the oldest seeded ones are gone.
	sort.Sort(sort.Reverse(sort.StringSlice(seeded)))
	if backups[1] != seeded[0] {
		t.Errorf("Expected newest seeded backup %q to survive, got %q", seeded[0], backups[1])
	}
	for _, evicted := range seeded[9:] {
		if _, err := os.Stat(filepath.Join(backupDir, evicted)); !os.IsNotExist(err) {
			t.Errorf("Expected oldest backup %q to be evicted", evicted)
		}
	}
}

func TestBackup_ZeroRetentionUsesDefault(t *testing.T) {
	dir := t.TempDir()
	target := writeSource(t, dir, `{"deployments": []}`)
	backupDir := filepath.Join(dir, "backups")
	if err := os.MkdirAll(backupDir, 0750); err != nil {
		t.Fatalf("Failed to create backup dir: %v", err)
	}

	for i := 1; i <= DefaultRetention+5; i++ {
		name := fmt.Sprintf("deployments-20240101-%06d.json", i)
		if err := os.WriteFile(filepath.Join(backupDir, name), []byte("old"), 0644); err != nil {
			t.Fatalf("Failed to seed backup: %v", err)
		}
	}

	p := NewPublisher(nil, testLogger())
	if err := p.Backup(target, backupDir, 0); err != nil {
		t.Fatalf("Backup() failed: %v", err)
	}

	backups, _ := ListBackups(backupDir)
	if len(backups) != DefaultRetention {
		t.Errorf("Expected %d backups with default retention, got %d", DefaultRetention, len(backups))
	}
}

func TestListBackups_IgnoresForeignFiles(t *testing.T) {
	dir := t.TempDir()
	files := []string{
		"deployments-20250101-120000.json",
		"deployments-20250102-120000.json",
		"notes.txt",
		"deployments.json.bak",
	}
	for _, name := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644); err != nil {
			t.Fatalf("Failed to seed file: %v", err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "deployments-20250103-120000.json"), 0755); err != nil {
		t.Fatalf("Failed to create decoy dir: %v", err)
	}

	backups, err := ListBackups(dir)
	if err != nil {
		t.Fatalf("ListBackups() failed: %v", err)
	}

	want := []string{
		"deployments-20250102-120000.json",
		"deployments-20250101-120000.json",
	}
	if len(backups) != len(want) {
		t.Fatalf("Expected %d backups, got %d: %v", len(want), len(backups), backups)
	}
	for i := range want {
		if backups[i] != want[i] {
			t.Errorf("Backup %d: expected %q (newest first), got %q", i, want[i], backups[i])
		}
	}
}
