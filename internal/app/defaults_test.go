package app

import (
	"os"
	"path/filepath"
	"testing"
)

func TestGetDefaults(t *testing.T) {
	t.Run("uses env vars when set", func(t *testing.T) {
		t.Setenv(EnvConfigPath, "/custom/config.toml")
		t.Setenv(EnvHome, "/custom/wikiwatch")

		defaults, err := GetDefaults()
		if err != nil {
			t.Fatalf("GetDefaults() error = %v", err)
		}

		want := Defaults{
			ConfigPath: "/custom/config.toml",
			BaseDir:    "/custom/wikiwatch",
			LogDir:     "/custom/wikiwatch/log",
		}
		if defaults != want {
			t.Errorf("GetDefaults() = %+v, want %+v", defaults, want)
		}
	})

	t.Run("falls back to home dir defaults", func(t *testing.T) {
		t.Setenv(EnvConfigPath, "")
		t.Setenv(EnvHome, "")

		defaults, err := GetDefaults()
		if err != nil {
			t.Fatalf("GetDefaults() error = %v", err)
		}

		homeDir, _ := os.UserHomeDir()
		wantBase := filepath.Join(homeDir, ".local", "share", "wikiwatch")
		want := Defaults{
			ConfigPath: filepath.Join(homeDir, ".config", "wikiwatch.toml"),
			BaseDir:    wantBase,
			LogDir:     filepath.Join(wantBase, "log"),
		}
		if defaults != want {
			t.Errorf("GetDefaults() = %+v, want %+v", defaults, want)
		}
	})
}
