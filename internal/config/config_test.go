package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew(t *testing.T) {
	t.Run("env vars alone carry the configuration", func(t *testing.T) {
		t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "absent.yaml"))
		t.Setenv("DATABASE_URL", "postgres://localhost:5432/ftq")

		cfg, err := New()

		assert.NoError(t, err)
		assert.Equal(t, "postgres://localhost:5432/ftq", cfg.DatabaseURL)
		assert.Equal(t, "8080", cfg.APIPort)
		assert.Equal(t, 4, cfg.NumParserWorkers)
		assert.False(t, cfg.PersistUnitRecords)
	})

	t.Run("env vars override file values", func(t *testing.T) {
		dir := t.TempDir()
		configPath := filepath.Join(dir, "config.yaml")
		content := "database_url: postgres://file-host/ftq\napi_port: \"9090\"\nnum_parser_workers: 2\n"
		assert.NoError(t, os.WriteFile(configPath, []byte(content), 0644))

		t.Setenv("CONFIG_PATH", configPath)
		t.Setenv("DATABASE_URL", "postgres://env-host/ftq")
		t.Setenv("NUM_PARSER_WORKERS", "8")

		cfg, err := New()

		assert.NoError(t, err)
		assert.Equal(t, "postgres://env-host/ftq", cfg.DatabaseURL)
		assert.Equal(t, "9090", cfg.APIPort)
		assert.Equal(t, 8, cfg.NumParserWorkers)
	})

	t.Run("reads the watch and notification settings", func(t *testing.T) {
		t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "absent.yaml"))
		t.Setenv("DATABASE_URL", "postgres://localhost/ftq")
		t.Setenv("WATCH_SCHEDULE", "*/15 * * * *")
		t.Setenv("SLACK_TOKEN", "xoxb-test")
		t.Setenv("SLACK_CHANNEL", "#quality-alerts")
		t.Setenv("PERSIST_UNIT_RECORDS", "true")

		cfg, err := New()

		assert.NoError(t, err)
		assert.Equal(t, "*/15 * * * *", cfg.WatchSchedule)
		assert.Equal(t, "xoxb-test", cfg.SlackToken)
		assert.Equal(t, "#quality-alerts", cfg.SlackChannel)
		assert.True(t, cfg.PersistUnitRecords)
	})

	t.Run("requires a database url", func(t *testing.T) {
		t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "absent.yaml"))
		t.Setenv("DATABASE_URL", "")

		_, err := New()

		assert.Error(t, err)
	})

	t.Run("rejects a malformed worker count", func(t *testing.T) {
		t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "absent.yaml"))
		t.Setenv("DATABASE_URL", "postgres://localhost/ftq")
		t.Setenv("NUM_PARSER_WORKERS", "many")

		_, err := New()

		assert.Error(t, err)
	})

	t.Run("rejects zero workers", func(t *testing.T) {
		t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "absent.yaml"))
		t.Setenv("DATABASE_URL", "postgres://localhost/ftq")
		t.Setenv("NUM_PARSER_WORKERS", "0")

		_, err := New()

		assert.Error(t, err)
	})
}
