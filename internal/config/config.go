// Package config loads focusdo settings from a YAML file and FOCUSDO_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	DBPath       string        `yaml:"db_path" env:"FOCUSDO_DB_PATH"`
	BackupDir    string        `yaml:"backup_dir" env:"FOCUSDO_BACKUP_DIR"`
	LogPath      string        `yaml:"log_path" env:"FOCUSDO_LOG_PATH"`
	LogLevel     string        `yaml:"log_level" env:"FOCUSDO_LOG_LEVEL" env-default:"INFO"`
	FocusMinutes int           `yaml:"focus_minutes" env:"FOCUSDO_FOCUS_MINUTES" env-default:"25"`
	TickInterval time.Duration `yaml:"tick_interval" env:"FOCUSDO_TICK_INTERVAL" env-default:"100ms"`
}

// Dir returns the directory holding focusdo's config, database and log.
func Dir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "focusdo"), nil
}

// DefaultPath returns ~/.config/focusdo/config.yaml
func DefaultPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Load reads the file at path, falling back to the environment alone when the
// file does not exist. Empty paths are filled with defaults.
func Load(path string) (Config, error) {
	var cfg Config

	if path == "" {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return Config{}, fmt.Errorf("config: read env: %w", err)
		}
	} else if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		var pe *os.PathError
		if !errors.As(err, &pe) {
			return Config{}, fmt.Errorf("config: read %q: %w", path, err)
		}
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return Config{}, fmt.Errorf("config: read env: %w", err)
		}
	}

	if err := cfg.resolve(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) resolve() error {
	if c.DBPath != "" && c.LogPath != "" && c.BackupDir != "" {
		return nil
	}
	dir, err := Dir()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.DBPath == "" {
		c.DBPath = filepath.Join(dir, "focusdo.db")
	}
	if c.LogPath == "" {
		c.LogPath = filepath.Join(dir, "focusdo.log")
	}
	if c.BackupDir == "" {
		c.BackupDir = defaultBackupDir()
	}
	return nil
}

// defaultBackupDir is ~/Downloads when it exists, else the home directory.
func defaultBackupDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	dl := filepath.Join(home, "Downloads")
	if fi, err := os.Stat(dl); err == nil && fi.IsDir() {
		return dl
	}
	return home
}

func (c Config) Validate() error {
	if c.FocusMinutes < 1 || c.FocusMinutes > 600 {
		return fmt.Errorf("config: focus_minutes must be between 1 and 600, got %d", c.FocusMinutes)
	}
	if c.TickInterval < 10*time.Millisecond || c.TickInterval > time.Second {
		return fmt.Errorf("config: tick_interval must be between 10ms and 1s, got %s", c.TickInterval)
	}
	return nil
}

func (c Config) FocusDuration() time.Duration {
	return time.Duration(c.FocusMinutes) * time.Minute
}

// Default is the configuration used when nothing is set.
func Default() Config {
	return Config{LogLevel: "INFO", FocusMinutes: 25, TickInterval: 100 * time.Millisecond}
}

// WriteDefault writes the default configuration as YAML. It refuses to
// overwrite an existing file.
func WriteDefault(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("config: create dir: %w", err)
	}
	data, err := yaml.Marshal(Default())
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("config: write: %w", err)
	}
	return f.Close()
}
