package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(nil)
	require.NoError(t, err)

	assert.Equal(t, "chopper.db", cfg.DB)
	assert.Equal(t, "127.0.0.1:8080", cfg.Addr)
	assert.Equal(t, "", cfg.Questions)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, slog.LevelInfo, cfg.Level())
}

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "chopper.yaml")
	require.NoError(t, os.WriteFile(path, []byte("db: from-file.db\naddr: \":9000\"\nlog_level: warn\n"), 0o644))

	t.Run("file over defaults", func(t *testing.T) {
		cfg, err := Load([]string{"--config", path})
		require.NoError(t, err)
		assert.Equal(t, "from-file.db", cfg.DB)
		assert.Equal(t, ":9000", cfg.Addr)
		assert.Equal(t, slog.LevelWarn, cfg.Level())
	})

	t.Run("env over file", func(t *testing.T) {
		t.Setenv("CHOPPER_DB", "from-env.db")
		cfg, err := Load([]string{"--config", path})
		require.NoError(t, err)
		assert.Equal(t, "from-env.db", cfg.DB)
		assert.Equal(t, ":9000", cfg.Addr)
	})

	t.Run("flags over env", func(t *testing.T) {
		t.Setenv("CHOPPER_DB", "from-env.db")
		cfg, err := Load([]string{"--config", path, "--db", "from-flag.db", "--log-level", "debug"})
		require.NoError(t, err)
		assert.Equal(t, "from-flag.db", cfg.DB)
		assert.Equal(t, slog.LevelDebug, cfg.Level())
	})

	t.Run("config path from env", func(t *testing.T) {
		t.Setenv("CHOPPER_CONFIG", path)
		cfg, err := Load(nil)
		require.NoError(t, err)
		assert.Equal(t, "from-file.db", cfg.DB)
	})
}

func TestLoadValidation(t *testing.T) {
	testCases := []struct {
		name string
		args []string
	}{
		{name: "bad log level", args: []string{"--log-level", "loud"}},
		{name: "bad address", args: []string{"--addr", "nowhere"}},
		{name: "missing questions file", args: []string{"--questions", "/does/not/exist.json"}},
		{name: "git url without file", args: []string{"--git-url", "https://example.com/q.git", "--git-file", ""}},
		{name: "unknown flag", args: []string{"--colour", "blue"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(tc.args)
			assert.Error(t, err)
		})
	}
}

func TestLoadGitSettings(t *testing.T) {
	cfg, err := Load([]string{"--git-url", "https://example.com/q.git"})
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/q.git", cfg.GitURL)
	assert.Equal(t, "repos", cfg.GitDir)
	assert.Equal(t, "questions.json", cfg.GitFile)
}
