package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

type Config struct {
	SourcePath string `toml:"source_path"`
	ClaudeRoot string `toml:"claude_root"`
	DBPath     string `toml:"db_path"`
	Cache      bool   `toml:"cache"`

	Digest    Digest    `toml:"digest"`
	Output    Output    `toml:"output"`
	Log       Log       `toml:"log"`
	Telemetry Telemetry `toml:"telemetry"`

	// Path of the config file that was read, empty if none.
	File string `toml:"-"`
}

type Digest struct {
	MaxChars    int `toml:"max_chars"`
	HeadSize    int `toml:"head_size"`
	MiddleFirst int `toml:"middle_first"`
	MiddleLast  int `toml:"middle_last"`
	TailSize    int `toml:"tail_size"`
}

type Output struct {
	Encoding string `toml:"encoding"`
	OnError  string `toml:"on_error"`
}

type Log struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

type Telemetry struct {
	TraceFile   string `toml:"trace_file"`
	MetricsFile string `toml:"metrics_file"`
}

func defaults(home string) *Config {
	return &Config{
		ClaudeRoot: filepath.Join(home, ".claude", "projects"),
		DBPath:     filepath.Join(home, ".config", "sdig", "sdig.db"),
		Digest: Digest{
			MaxChars:    800,
			HeadSize:    25,
			MiddleFirst: 100,
			MiddleLast:  120,
			TailSize:    20,
		},
		Output: Output{
			Encoding: "utf-8",
			OnError:  "ignore",
		},
		Log: Log{
			Level: "warn",
		},
	}
}

func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}

	cfg := defaults(home)

	cfgPath := os.Getenv("SDIG_CONFIG")
	explicit := cfgPath != ""
	if !explicit {
		cfgPath = filepath.Join(home, ".config", "sdig", "config.toml")
	}
	if _, err := os.Stat(cfgPath); err == nil {
		if _, err := toml.DecodeFile(cfgPath, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", cfgPath, err)
		}
		cfg.File = cfgPath
	} else if explicit {
		return nil, fmt.Errorf("config %s: %w", cfgPath, err)
	}

	// .env in the working directory never overrides the real environment
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	applyEnv(cfg)

	// expand ~ in paths
	cfg.SourcePath = expandHome(cfg.SourcePath, home)
	cfg.ClaudeRoot = expandHome(cfg.ClaudeRoot, home)
	cfg.DBPath = expandHome(cfg.DBPath, home)
	cfg.Log.File = expandHome(cfg.Log.File, home)
	cfg.Telemetry.TraceFile = expandHome(cfg.Telemetry.TraceFile, home)
	cfg.Telemetry.MetricsFile = expandHome(cfg.Telemetry.MetricsFile, home)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.SourcePath = getEnv("SDIG_SOURCE", cfg.SourcePath)
	cfg.DBPath = getEnv("SDIG_DB", cfg.DBPath)
	cfg.Output.Encoding = getEnv("SDIG_ENCODING", cfg.Output.Encoding)
	cfg.Output.OnError = getEnv("SDIG_ON_ERROR", cfg.Output.OnError)
	cfg.Log.Level = getEnv("SDIG_LOG_LEVEL", cfg.Log.Level)
	cfg.Cache = getBoolEnv("SDIG_CACHE", cfg.Cache)
}

// Validate rejects window bounds and policies the digest cannot honor.
func (c *Config) Validate() error {
	d := c.Digest
	switch {
	case d.MaxChars <= 0:
		return fmt.Errorf("config: digest.max_chars must be positive, got %d", d.MaxChars)
	case d.HeadSize < 0:
		return fmt.Errorf("config: digest.head_size must not be negative, got %d", d.HeadSize)
	case d.TailSize < 0:
		return fmt.Errorf("config: digest.tail_size must not be negative, got %d", d.TailSize)
	case d.MiddleFirst < 1:
		return fmt.Errorf("config: digest.middle_first must be at least 1, got %d", d.MiddleFirst)
	case d.MiddleLast < d.MiddleFirst:
		return fmt.Errorf("config: digest.middle_last (%d) is before middle_first (%d)", d.MiddleLast, d.MiddleFirst)
	}

	switch strings.ToLower(c.Output.OnError) {
	case "", "ignore", "replace", "strict":
	default:
		return fmt.Errorf("config: output.on_error must be ignore, replace or strict, got %q", c.Output.OnError)
	}
	return nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getBoolEnv(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v == "1" || strings.EqualFold(v, "true")
}

func expandHome(path, home string) string {
	if len(path) > 1 && path[0] == '~' && path[1] == '/' {
		return filepath.Join(home, path[2:])
	}
	return path
}
