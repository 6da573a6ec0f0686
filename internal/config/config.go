package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config is loaded from an optional YAML file, with environment
// variables taking precedence over file values.
type Config struct {
	DatabaseURL string `yaml:"database_url"`
	APIPort     string `yaml:"api_port"`

	NumParserWorkers   int  `yaml:"num_parser_workers"`
	PersistUnitRecords bool `yaml:"persist_unit_records"`

	// WatchSchedule is a cron expression; when set, cmd/ingest keeps
	// running and re-scans the drop directory on that schedule.
	WatchSchedule string `yaml:"watch_schedule"`

	SlackToken   string `yaml:"slack_token"`
	SlackChannel string `yaml:"slack_channel"`
}

// New loads configuration. The config file path comes from CONFIG_PATH
// and defaults to config.yaml; a missing file is fine, env vars alone
// can carry the whole configuration.
func New() (*Config, error) {
	cfg := &Config{
		APIPort:          "8080",
		NumParserWorkers: 4,
	}

	configPath := "config.yaml"
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		configPath = envPath
	}
	if data, err := os.ReadFile(configPath); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", configPath, err)
		}
	}

	envOverride(&cfg.DatabaseURL, "DATABASE_URL")
	envOverride(&cfg.APIPort, "API_PORT")
	envOverride(&cfg.WatchSchedule, "WATCH_SCHEDULE")
	envOverride(&cfg.SlackToken, "SLACK_TOKEN")
	envOverride(&cfg.SlackChannel, "SLACK_CHANNEL")

	var err error
	cfg.NumParserWorkers, err = getEnvAsInt("NUM_PARSER_WORKERS", cfg.NumParserWorkers)
	if err != nil {
		return nil, err
	}
	if enabled := os.Getenv("PERSIST_UNIT_RECORDS"); enabled != "" {
		cfg.PersistUnitRecords = enabled == "1" || enabled == "true"
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}
	if cfg.NumParserWorkers < 1 {
		return nil, fmt.Errorf("num_parser_workers must be at least 1, got %d", cfg.NumParserWorkers)
	}

	return cfg, nil
}

func envOverride(target *string, key string) {
	if value := os.Getenv(key); value != "" {
		*target = value
	}
}

func getEnvAsInt(key string, defaultValue int) (int, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: expected an integer, got '%s'", key, valueStr)
	}
	return value, nil
}
