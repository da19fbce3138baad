package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
)

type Config struct {
	DBPath      string        `toml:"db_path" env:"TASKFLOW_DB_PATH"`
	Port        int           `toml:"port" env:"TASKFLOW_PORT"`
	JWTSecret   string        `toml:"jwt_secret,omitempty" env:"TASKFLOW_JWT_SECRET"`
	TokenTTL    time.Duration `toml:"token_ttl" env:"TASKFLOW_TOKEN_TTL"`
	CORSOrigins []string      `toml:"cors_origins" env:"TASKFLOW_CORS_ORIGINS" envSeparator:","`
	LogLevel    string        `toml:"log_level" env:"TASKFLOW_LOG_LEVEL"`
	LogFormat   string        `toml:"log_format" env:"TASKFLOW_LOG_FORMAT"`
}

// legacyEnv holds the unprefixed variables the service has always honoured.
type legacyEnv struct {
	Port      int    `env:"PORT"`
	JWTSecret string `env:"JWT_SECRET"`
}

func Default() Config {
	return Config{
		Port:        5000,
		TokenTTL:    7 * 24 * time.Hour,
		CORSOrigins: []string{"*"},
		LogLevel:    "info",
		LogFormat:   "text",
	}
}

func DefaultConfigPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "taskflow", "config.toml"), nil
}

func EnsureDir(path string) error {
	dir := filepath.Dir(path)
	return os.MkdirAll(dir, 0o755)
}

// Load reads the TOML file at path, if any, and overlays environment variables.
func Load(path string) (Config, error) {
	config := Default()

	if path != "" {
		if _, err := toml.DecodeFile(path, &config); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := ApplyEnv(&config); err != nil {
		return Config{}, err
	}
	return config, nil
}

// ApplyEnv overwrites fields whose environment variables are set.
func ApplyEnv(cfg *Config) error {
	var legacy legacyEnv
	if err := env.Parse(&legacy); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	if legacy.Port != 0 {
		cfg.Port = legacy.Port
	}
	if legacy.JWTSecret != "" {
		cfg.JWTSecret = legacy.JWTSecret
	}

	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.JWTSecret) == "" {
		return errors.New("jwt secret is required (set TASKFLOW_JWT_SECRET)")
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("token ttl must be positive, got %s", c.TokenTTL)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port out of range: %d", c.Port)
	}
	if c.DBPath == "" {
		return errors.New("db path is required")
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.LogFormat)
	}
	return nil
}

func (c Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("parse log level: %w", err)
	}
	return level, nil
}

// Save writes cfg as TOML. The signing secret is never written back to disk.
func Save(path string, cfg Config) error {
	if err := EnsureDir(path); err != nil {
		return err
	}

	cfg.JWTSecret = ""
	file, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if err := toml.NewEncoder(file).Encode(cfg); err != nil {
		_ = file.Close()
		return fmt.Errorf("encode config: %w", err)
	}
	return file.Close()
}
