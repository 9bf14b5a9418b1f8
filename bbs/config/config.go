// Package config loads the board's settings. One Config value is built at
// startup and handed to each component's constructor; nothing reads
// ambient globals.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/moccorine/legacy-kuzuha-php-sub000/bbs/archive"
)

// Config is the whole board configuration. Field defaults mirror the
// original board's constants; a config file only needs the overrides.
type Config struct {
	// DataDir anchors relative file paths below.
	DataDir string `yaml:"data_dir"`

	// LogFile is the main log path, relative to DataDir unless absolute.
	LogFile string `yaml:"log_file"`

	// LogSave bounds the main log; oldest entries are evicted past it.
	LogSave int `yaml:"log_save"`

	// CheckCount is how many recent posts the duplicate check scans.
	CheckCount int `yaml:"check_count"`

	// SPTimeSec is the same-host repost cooldown in seconds; 0 disables.
	SPTimeSec int64 `yaml:"sp_time_sec"`

	Archive ArchiveConfig `yaml:"archive"`
	Admin   AdminConfig   `yaml:"admin"`
	Index   IndexConfig   `yaml:"index"`
}

type ArchiveConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Dir         string `yaml:"dir"`
	Ext         string `yaml:"ext"`
	Granularity string `yaml:"granularity"` // "daily" or "monthly"
	MaxBytes    int64  `yaml:"max_bytes"`   // per period file; 0 = uncapped
}

type AdminConfig struct {
	// Word is the message body that triggers admin activation. Empty
	// disables the shortcut entirely.
	Word string `yaml:"word"`
	// CredentialHash is the stored keyed hash the activation name is
	// verified against (see bbs/auth).
	CredentialHash string `yaml:"credential_hash"`
}

type IndexConfig struct {
	Enabled bool   `yaml:"enabled"`
	DBFile  string `yaml:"db_file"`
}

// Default returns the configuration a bare deployment runs with.
func Default() Config {
	return Config{
		DataDir:    "data",
		LogFile:    "bbs.log",
		LogSave:    200,
		CheckCount: 10,
		SPTimeSec:  90,
		Archive: ArchiveConfig{
			Enabled:     true,
			Dir:         "oldlog",
			Ext:         "log",
			Granularity: "daily",
			MaxBytes:    2 << 20,
		},
		Index: IndexConfig{
			Enabled: true,
			DBFile:  "index.db",
		},
	}
}

// Load reads a YAML config file over the defaults. A missing path ("")
// just returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.LogSave < 1 {
		return fmt.Errorf("log_save must be >= 1, got %d", c.LogSave)
	}
	if c.CheckCount < 0 {
		return fmt.Errorf("check_count must be >= 0, got %d", c.CheckCount)
	}
	switch c.Archive.Granularity {
	case "daily", "monthly":
	default:
		return fmt.Errorf("archive.granularity must be daily or monthly, got %q", c.Archive.Granularity)
	}
	return nil
}

// LogPath resolves the main log file location.
func (c Config) LogPath() string { return c.resolve(c.LogFile) }

// ArchiveDir resolves the archive directory location.
func (c Config) ArchiveDir() string { return c.resolve(c.Archive.Dir) }

// IndexDBPath resolves the search index database location.
func (c Config) IndexDBPath() string { return c.resolve(c.Index.DBFile) }

// ArchiveGranularity maps the config string onto the archive store's type.
func (c Config) ArchiveGranularity() archive.Granularity {
	if c.Archive.Granularity == "monthly" {
		return archive.Monthly
	}
	return archive.Daily
}

func (c Config) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.DataDir, p)
}
