package database

import (
	"os"
	"path/filepath"
	"testing"

	"wikiwatch/internal/config"
)

func TestNewDatabaseFromConfig(t *testing.T) {
	t.Run("memory database", func(t *testing.T) {
		cfg := config.DatabaseConfig{Type: "memory"}
		got, err := NewDatabaseFromConfig(cfg)

		if err != nil {
			t.Errorf("NewDatabaseFromConfig() unexpected error: %v", err)
			return
		}
		defer got.Close()

		if err := got.CheckMigrations(); err != nil {
			t.Errorf("CheckMigrations() error = %v", err)
		}
	})

	t.Run("sqlite database", func(t *testing.T) {
		dataDir := filepath.Join(t.TempDir(), "db")
		cfg := config.DatabaseConfig{
			Type:    "sqlite",
			DataDir: dataDir,
		}
		got, err := NewDatabaseFromConfig(cfg)

		if err != nil {
			t.Errorf("NewDatabaseFromConfig() unexpected error: %v", err)
			return
		}
		defer got.Close()

		wantPath := filepath.Join(dataDir, "wikiwatch.db")
		if got.Path() != wantPath {
			t.Errorf("Path() = %q, want %q", got.Path(), wantPath)
		}
		if _, err := os.Stat(wantPath); err != nil {
			t.Errorf("database file not created: %v", err)
		}
	})

	t.Run("sqlite database without data_dir", func(t *testing.T) {
		cfg := config.DatabaseConfig{Type: "sqlite"}
		got, err := NewDatabaseFromConfig(cfg)

		if err == nil {
			t.Error("NewDatabaseFromConfig() expected error for missing data_dir, got nil")
		}

		if got != nil {
			t.Error("NewDatabaseFromConfig() should return nil on error")
			got.Close()
		}
	})

	t.Run("unknown database type", func(t *testing.T) {
		cfg := config.DatabaseConfig{Type: "unknown"}
		got, err := NewDatabaseFromConfig(cfg)

		if err == nil {
			t.Error("NewDatabaseFromConfig() expected error for unknown type, got nil")
		}

		if got != nil {
			t.Error("NewDatabaseFromConfig() should return nil on error")
			got.Close()
		}
	})
}
