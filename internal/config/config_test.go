package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.txt")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoadCoordinatorValid(t *testing.T) {
	path := writeTempConfig(t, "9000\n60\n")

	cfg, err := LoadCoordinator(path)
	if err != nil {
		t.Fatalf("LoadCoordinator: %v", err)
	}
	if cfg.Port != 9000 || cfg.PersistenceWindow != 60 {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestLoadCoordinatorMalformedPort(t *testing.T) {
	path := writeTempConfig(t, "not-a-port\n60\n")
	if _, err := LoadCoordinator(path); err == nil {
		t.Fatal("expected error for malformed port")
	}
}

func TestLoadCoordinatorMissingLine(t *testing.T) {
	path := writeTempConfig(t, "9000\n")
	if _, err := LoadCoordinator(path); err == nil {
		t.Fatal("expected error for missing persistence window line")
	}
}

func TestLoadCoordinatorUnreadableFile(t *testing.T) {
	if _, err := LoadCoordinator(filepath.Join(t.TempDir(), "missing.txt")); err == nil {
		t.Fatal("expected error for unreadable file")
	}
}

func TestLoadParticipantValid(t *testing.T) {
	path := writeTempConfig(t, "alice\n/tmp/alice.log\n10.0.0.5 9000\n")

	cfg, err := LoadParticipant(path)
	if err != nil {
		t.Fatalf("LoadParticipant: %v", err)
	}
	if cfg.ID != "alice" || cfg.LogPath != "/tmp/alice.log" || cfg.CoordinatorIP != "10.0.0.5" || cfg.CoordinatorPort != 9000 {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestLoadParticipantMalformedAddressLine(t *testing.T) {
	path := writeTempConfig(t, "alice\n/tmp/alice.log\n10.0.0.5\n")
	if _, err := LoadParticipant(path); err == nil {
		t.Fatal("expected error for malformed coordinator address line")
	}
}

func TestLoadParticipantEmptyID(t *testing.T) {
	path := writeTempConfig(t, "\n/tmp/alice.log\n10.0.0.5 9000\n")
	if _, err := LoadParticipant(path); err == nil {
		t.Fatal("expected error for empty participant id")
	}
}
