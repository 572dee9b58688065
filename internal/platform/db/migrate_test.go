package db

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeMigrations(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			t.Fatalf("failed to write test file %s: %v", name, err)
		}
	}
	return dir
}

func TestLoadMigrations(t *testing.T) {
	dir := writeMigrations(t, map[string]string{
		"003_studies.sql":  "CREATE TABLE study (id UUID PRIMARY KEY);",
		"001_users.sql":    "CREATE TABLE app_user (id UUID PRIMARY KEY);",
		"002_patients.sql": "CREATE TABLE patient (id UUID PRIMARY KEY);",
		"README.md":        "ignored",
		"notes.sql":        "ignored: no numeric prefix",
		"abc_bad.sql":      "ignored: prefix not numeric",
	})

	migrations, err := NewMigrator(nil, dir).LoadMigrations()
	if err != nil {
		t.Fatalf("LoadMigrations() error: %v", err)
	}
	if len(migrations) != 3 {
		t.Fatalf("expected 3 migrations, got %d", len(migrations))
	}
	for i, want := range []string{"001_users.sql", "002_patients.sql", "003_studies.sql"} {
		if migrations[i].Name != want {
			t.Errorf("migration %d: expected %s, got %s", i, want, migrations[i].Name)
		}
		if migrations[i].Version != i+1 {
			t.Errorf("migration %d: expected version %d, got %d", i, i+1, migrations[i].Version)
		}
	}
	if migrations[0].SQL != "CREATE TABLE app_user (id UUID PRIMARY KEY);" {
		t.Errorf("unexpected SQL content: %s", migrations[0].SQL)
	}
}

func TestLoadMigrations_EmptyDir(t *testing.T) {
	migrations, err := NewMigrator(nil, t.TempDir()).LoadMigrations()
	if err != nil {
		t.Fatalf("LoadMigrations() error: %v", err)
	}
	if len(migrations) != 0 {
		t.Errorf("expected 0 migrations from empty dir, got %d", len(migrations))
	}
}

func TestLoadMigrations_NonExistentDir(t *testing.T) {
	_, err := NewMigrator(nil, "/nonexistent/path/that/does/not/exist").LoadMigrations()
	if err == nil {
		t.Error("expected error for non-existent directory")
	}
}

func TestPending(t *testing.T) {
	migrations := []Migration{{Version: 1}, {Version: 2}, {Version: 3}, {Version: 4}}
	applied := map[int]time.Time{1: time.Now(), 3: time.Now()}

	got := pending(migrations, applied, 0)
	if len(got) != 2 || got[0].Version != 2 || got[1].Version != 4 {
		t.Errorf("unexpected pending set: %+v", got)
	}

	got = pending(migrations, applied, 3)
	if len(got) != 1 || got[0].Version != 2 {
		t.Errorf("expected only version 2 up to target 3, got %+v", got)
	}
}

func TestBuildStatus(t *testing.T) {
	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	migrations := []Migration{
		{Version: 1, Name: "001_users.sql"},
		{Version: 2, Name: "002_patients.sql"},
	}

	statuses := buildStatus(migrations, map[int]time.Time{1: at})
	if len(statuses) != 2 {
		t.Fatalf("expected 2 statuses, got %d", len(statuses))
	}
	if !statuses[0].Applied || statuses[0].AppliedAt == nil || !statuses[0].AppliedAt.Equal(at) {
		t.Errorf("expected 001 applied at %s, got %+v", at, statuses[0])
	}
	if statuses[1].Applied || statuses[1].AppliedAt != nil {
		t.Errorf("expected 002 pending, got %+v", statuses[1])
	}
}
