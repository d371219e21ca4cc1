package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestManager_ReadWrite_RoundTrip(t *testing.T) {
	original := &Config{
		BaseDir: "/home/user/.local/share/wikiwatch",
		LogDir:  "/home/user/.local/share/wikiwatch/log",
		Database: DatabaseConfig{
			Type:    "sqlite",
			DataDir: "/home/user/.local/share/wikiwatch/db",
		},
		Wiki: WikiConfig{
			StaleAfter: Duration{30 * time.Minute},
			PageSize:   20,
			Workers:    2,
			Timeout:    Duration{5 * time.Second},
			UserAgent:  "test-agent",
		},
		Archive: ArchiveConfig{
			Type:     "s3",
			Name:     "offsite",
			S3Bucket: "snapshots",
			S3Prefix: "wikiwatch/",
			S3Region: "eu-west-1",
		},
		Encryption: EncryptionConfig{
			Type:           "age",
			PublicKeyPath:  "/keys/wikiwatch.pub",
			PrivateKeyPath: "/keys/wikiwatch.key",
		},
	}

	var buf bytes.Buffer
	m := &Manager{}

	if err := m.Write(&buf, original); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	if !strings.Contains(buf.String(), `stale_after = "30m0s"`) {
		t.Errorf("encoded config missing string duration:\n%s", buf.String())
	}

	got, err := m.Read(&buf)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	if got.BaseDir != original.BaseDir {
		t.Errorf("BaseDir = %q, want %q", got.BaseDir, original.BaseDir)
	}
	if got.LogDir != original.LogDir {
		t.Errorf("LogDir = %q, want %q", got.LogDir, original.LogDir)
	}
	if got.Database != original.Database {
		t.Errorf("Database = %+v, want %+v", got.Database, original.Database)
	}
	if got.Wiki.StaleAfter.Duration != 30*time.Minute {
		t.Errorf("Wiki.StaleAfter = %v, want %v", got.Wiki.StaleAfter, 30*time.Minute)
	}
	if got.Wiki.Timeout.Duration != 5*time.Second {
		t.Errorf("Wiki.Timeout = %v, want %v", got.Wiki.Timeout, 5*time.Second)
	}
	if got.Wiki.PageSize != 20 {
		t.Errorf("Wiki.PageSize = %d, want 20", got.Wiki.PageSize)
	}
	if got.Archive != original.Archive {
		t.Errorf("Archive = %+v, want %+v", got.Archive, original.Archive)
	}
	if got.Encryption != original.Encryption {
		t.Errorf("Encryption = %+v, want %+v", got.Encryption, original.Encryption)
	}
}

func TestManager_Read_InvalidDuration(t *testing.T) {
	m := &Manager{}
	_, err := m.Read(strings.NewReader("[wiki]\nstale_after = \"soon\"\n"))
	if err == nil {
		t.Fatal("Read() expected error for invalid duration")
	}
}

func TestNewConfig(t *testing.T) {
	cfg := NewConfig("/data/wikiwatch")

	if cfg.BaseDir != "/data/wikiwatch" {
		t.Errorf("BaseDir = %q, want %q", cfg.BaseDir, "/data/wikiwatch")
	}
	if cfg.LogDir != "/data/wikiwatch/log" {
		t.Errorf("LogDir = %q, want %q", cfg.LogDir, "/data/wikiwatch/log")
	}
	if cfg.Database.Type != "sqlite" || cfg.Database.DataDir != "/data/wikiwatch/db" {
		t.Errorf("Database = %+v, want sqlite in /data/wikiwatch/db", cfg.Database)
	}
	if cfg.Wiki.StaleAfter.Duration != 15*time.Minute {
		t.Errorf("Wiki.StaleAfter = %v, want 15m", cfg.Wiki.StaleAfter)
	}
	if cfg.Wiki.PageSize != 50 {
		t.Errorf("Wiki.PageSize = %d, want 50", cfg.Wiki.PageSize)
	}
	if cfg.Archive.Type != "none" {
		t.Errorf("Archive.Type = %q, want %q", cfg.Archive.Type, "none")
	}
	if cfg.Encryption.PublicKeyPath != "/data/wikiwatch/keys/wikiwatch.pub" {
		t.Errorf("Encryption.PublicKeyPath = %q, want %q", cfg.Encryption.PublicKeyPath, "/data/wikiwatch/keys/wikiwatch.pub")
	}
	if cfg.Encryption.PrivateKeyPath != "/data/wikiwatch/keys/wikiwatch.key" {
		t.Errorf("Encryption.PrivateKeyPath = %q, want %q", cfg.Encryption.PrivateKeyPath, "/data/wikiwatch/keys/wikiwatch.key")
	}
}

func TestInit(t *testing.T) {
	t.Run("creates config file", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "nested", "wikiwatch.toml")
		cfg := NewConfig(dir)

		if err := Init(path, cfg); err != nil {
			t.Fatalf("Init() error = %v", err)
		}

		if _, err := os.Stat(path); err != nil {
			t.Fatalf("config file not created: %v", err)
		}
	})

	t.Run("fails if file already exists", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "wikiwatch.toml")
		cfg := NewConfig(dir)

		if err := Init(path, cfg); err != nil {
			t.Fatalf("first Init() error = %v", err)
		}

		err := Init(path, cfg)
		if err == nil {
			t.Fatal("second Init() expected error")
		}
	})
}

func TestReadFromFile(t *testing.T) {
	t.Run("reads valid config", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "wikiwatch.toml")
		cfg := NewConfig(dir)
		cfg.Database = DatabaseConfig{Type: "memory"}

		if err := Init(path, cfg); err != nil {
			t.Fatalf("Init() error = %v", err)
		}

		got, err := ReadFromFile(path)
		if err != nil {
			t.Fatalf("ReadFromFile() error = %v", err)
		}
		if got.Database.Type != "memory" {
			t.Errorf("Database.Type = %q, want %q", got.Database.Type, "memory")
		}
		if got.Wiki.StaleAfter.Duration != 15*time.Minute {
			t.Errorf("Wiki.StaleAfter = %v, want 15m", got.Wiki.StaleAfter)
		}
	})

	t.Run("returns error for missing file", func(t *testing.T) {
		_, err := ReadFromFile("/nonexistent/path/wikiwatch.toml")
		if err == nil {
			t.Fatal("ReadFromFile() expected error for missing file")
		}
	})
}
