package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(flags)
	require.NoError(t, flags.Parse(args))
	return flags
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "studyplan.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(parse(t))
	require.NoError(t, err)

	assert.Equal(t, "local", cfg.Env)
	assert.Equal(t, "UTC", cfg.Timezone)
	assert.Equal(t, "sqlite", cfg.DB.Driver)
	assert.Equal(t, "studyplan.db", cfg.DB.DSN)
	assert.Equal(t, 10, cfg.DB.MaxConns)
	assert.Equal(t, 30*time.Minute, cfg.DB.MaxConnLifetime)
	assert.Equal(t, 1000, cfg.Cache.Capacity)
	assert.Equal(t, time.Minute, cfg.Cache.TTL)
	assert.Equal(t, "repos", cfg.Sync.ReposDir)
	assert.Equal(t, 4, cfg.Sync.Workers)
}

func TestLoadPrecedence(t *testing.T) {
	path := writeConfig(t, `
timezone: Europe/London
db:
  driver: postgres
  dsn: postgres://file
  max_conns: 5
cache:
  ttl: 2m
sync:
  workers: 2
`)
	t.Setenv("STUDYPLAN_DB__DSN", "postgres://env")
	t.Setenv("STUDYPLAN_SYNC__WORKERS", "8")

	cfg, err := Load(parse(t, "--config", path, "--sync.workers", "3"))
	require.NoError(t, err)

	assert.Equal(t, "Europe/London", cfg.Timezone, "file over defaults")
	assert.Equal(t, "postgres", cfg.DB.Driver)
	assert.Equal(t, 5, cfg.DB.MaxConns)
	assert.Equal(t, 2*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, "postgres://env", cfg.DB.DSN, "env over file")
	assert.Equal(t, 3, cfg.Sync.Workers, "explicit flag over env")

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "Europe/London", loc.String())
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	testCases := []struct {
		name string
		args []string
	}{
		{name: "unknown driver", args: []string{"--db.driver", "mysql"}},
		{name: "unknown time zone", args: []string{"--timezone", "Mars/Olympus"}},
		{name: "no workers", args: []string{"--sync.workers", "0"}},
		{name: "unknown env", args: []string{"--env", "staging"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(parse(t, tc.args...))
			assert.ErrorContains(t, err, "invalid config")
		})
	}
}

func TestLoadMissingConfigFile(t *testing.T) {
	_, err := Load(parse(t, "--config", filepath.Join(t.TempDir(), "absent.yaml")))
	assert.ErrorContains(t, err, "error loading config file")
}
