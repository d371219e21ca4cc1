package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the main configuration for wikiwatch.
type Config struct {
	BaseDir    string           `toml:"base_dir"`
	LogDir     string           `toml:"log_dir"`
	Database   DatabaseConfig   `toml:"database"`
	Wiki       WikiConfig       `toml:"wiki"`
	Archive    ArchiveConfig    `toml:"archive"`
	Encryption EncryptionConfig `toml:"encryption"`
}

// DatabaseConfig represents configuration for the article store.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type DatabaseConfig struct {
	Type    string `toml:"type"`               // "sqlite" or "memory"
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite
}

// WikiConfig holds the remote wiki client settings and refresh policy values.
type WikiConfig struct {
	StaleAfter Duration `toml:"stale_after"` // refresh threshold, defaults to 15m
	PageSize   int      `toml:"page_size"`   // revisions per fetch, defaults to 50
	Workers    int      `toml:"workers"`     // concurrent fetches for refresh --all
	Timeout    Duration `toml:"timeout"`     // HTTP timeout per request
	UserAgent  string   `toml:"user_agent,omitempty"`
	BaseURL    string   `toml:"base_url,omitempty"` // overrides https://<code>.wikipedia.org, for testing
}

// ArchiveConfig represents where database snapshots are uploaded.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type ArchiveConfig struct {
	Type string `toml:"type"` // "none", "memory", "filesystem" or "s3"
	Name string `toml:"name,omitempty"`

	// S3-specific fields (only used when Type == "s3")
	S3Bucket   string `toml:"s3_bucket,omitempty"`
	S3Prefix   string `toml:"s3_prefix,omitempty"`
	S3Region   string `toml:"s3_region,omitempty"`
	S3Endpoint string `toml:"s3_endpoint,omitempty"` // S3-compatible services
	S3KeyID    string `toml:"s3_access_key_id,omitempty"`
	S3Secret   string `toml:"s3_secret_access_key,omitempty"`

	// FileSystem-specific fields (only used when Type == "filesystem")
	FSRoot string `toml:"fs_root,omitempty"`
}

// EncryptionConfig holds paths to the age key pair used for snapshots.
type EncryptionConfig struct {
	Type           string `toml:"type"` // "age" (default), "test" or "none"
	PublicKeyPath  string `toml:"public_key_path"`
	PrivateKeyPath string `toml:"private_key_path"`
}

// Duration is a time.Duration that encodes as a string such as "15m".
type Duration struct {
	time.Duration
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	d.Duration = parsed
	return nil
}

// NewConfig creates a new Config rooted at baseDir with default values.
func NewConfig(baseDir string) *Config {
	return &Config{
		BaseDir: baseDir,
		LogDir:  filepath.Join(baseDir, "log"),
		Database: DatabaseConfig{
			Type:    "sqlite",
			DataDir: filepath.Join(baseDir, "db"),
		},
		Wiki: WikiConfig{
			StaleAfter: Duration{15 * time.Minute},
			PageSize:   50,
			Workers:    4,
			Timeout:    Duration{20 * time.Second},
			UserAgent:  "wikiwatch/1.0",
		},
		Archive: ArchiveConfig{
			Type: "none",
		},
		Encryption: EncryptionConfig{
			Type:           "age",
			PublicKeyPath:  filepath.Join(baseDir, "keys", "wikiwatch.pub"),
			PrivateKeyPath: filepath.Join(baseDir, "keys", "wikiwatch.key"),
		},
	}
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

// writeToFile writes a Config to the specified file path.
func writeToFile(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path with the provided Config.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
