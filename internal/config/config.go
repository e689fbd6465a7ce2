// Package config loads settings from defaults, an optional YAML file, the
// environment and command-line flags, in increasing order of precedence.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// EnvPrefix prefixes every environment variable, e.g. CHOPPER_DB.
const EnvPrefix = "CHOPPER_"

// Config holds application configuration.
type Config struct {
	// DB is the SQLite database path or DSN.
	DB string `koanf:"db" validate:"required"`
	// Addr is the HTTP listen address.
	Addr string `koanf:"addr" validate:"required,hostname_port"`
	// Questions overrides the bundled question set with a local file.
	Questions string `koanf:"questions" validate:"omitempty,file"`
	// GitURL, when set, makes the question set come from a git repository.
	GitURL   string `koanf:"git_url"`
	GitDir   string `koanf:"git_dir" validate:"required_with=GitURL"`
	GitFile  string `koanf:"git_file" validate:"required_with=GitURL"`
	LogLevel string `koanf:"log_level" validate:"oneof=debug info warn error"`
}

// Load builds the configuration for the given command-line arguments
// (without the program name).
func Load(args []string) (*Config, error) {
	f := pflag.NewFlagSet("chopper", pflag.ContinueOnError)
	f.String("config", "", "Path to a YAML config file")
	f.String("db", "chopper.db", "Path to the SQLite database file")
	f.String("addr", "127.0.0.1:8080", "HTTP listen address")
	f.String("questions", "", "Import questions from this JSON file instead of the bundled set")
	f.String("git-url", "", "Import questions from this git repository")
	f.String("git-dir", "repos", "Base directory for --git-url checkouts")
	f.String("git-file", "questions.json", "Question file inside the --git-url repository")
	f.String("log-level", "info", "Log level: debug, info, warn or error")
	if err := f.Parse(args); err != nil {
		return nil, err
	}

	k := koanf.New(".")

	path, _ := f.GetString("config")
	if path == "" {
		path = lookupEnvConfig()
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	// Flag defaults only apply to keys no earlier source has set.
	if err := k.Load(posflag.ProviderWithFlag(f, ".", k, func(fl *pflag.Flag) (string, interface{}) {
		return strings.ReplaceAll(fl.Name, "-", "_"), posflag.FlagVal(f, fl)
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load flags: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func lookupEnvConfig() string {
	k := koanf.New(".")
	_ = k.Load(env.Provider(EnvPrefix+"CONFIG", ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	}), nil)
	return k.String("config")
}

// Level maps LogLevel to a slog level.
func (c *Config) Level() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// NewLogger returns a text logger writing to w at the configured level.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: c.Level()}))
}
