package database

import (
	"fmt"
	"os"
	"path/filepath"

	"wikiwatch/internal/config"
)

// NewDatabaseFromConfig creates a migrated SQLiteDatabase based on the database config type.
func NewDatabaseFromConfig(cfg config.DatabaseConfig) (*SQLiteDatabase, error) {
	var path string
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite database")
		}
		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		path = filepath.Join(cfg.DataDir, "wikiwatch.db")
	case "memory":
		path = ":memory:"
	default:
		return nil, fmt.Errorf("unknown database type: %s", cfg.Type)
	}

	db, err := NewSQLiteDatabase(path)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating database: %w", err)
	}
	return db, nil
}
