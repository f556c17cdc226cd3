package confs

import (
	"errors"
	"os"
	"strings"
	"time"

	"relay-server/logs"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// DefaultAPIKey is the placeholder secret; the server warns when it is still in use.
const DefaultAPIKey = "change-me-in-production"

type Config struct {
	APIKey string
	Port   string

	Database DatabaseConfig
	Logging  LoggingConfig

	StoreTimeout      time.Duration // bound on every store operation
	ConnectionTimeout time.Duration // heartbeat staleness threshold
	LedgerTTL         time.Duration // schedule execution dedup entries
	StatsTimezone     string
	StatsBuffer       int
}

type DatabaseConfig struct {
	Driver   string
	URL      string
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	DSN      string
}

type LoggingConfig struct {
	Level  string
	Format string
	File   string
}

// LoadConfig loads environment variables from a .env file if present, then
// reads the configuration from the environment and, when RELAY_CONFIG names
// one, a YAML file. Environment values win over the file.
func LoadConfig() (*Config, error) {
	// Load .env if it exists; ignore error if file not found
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			logs.Logger.Warnf("could not load .env: %v", err)
		}
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path := os.Getenv("RELAY_CONFIG"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	return fromViper(v)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api_key", DefaultAPIKey)
	v.SetDefault("port", "3536")
	v.SetDefault("db_driver", "")
	v.SetDefault("store_timeout", "500ms")
	v.SetDefault("connection_timeout", "90s")
	v.SetDefault("ledger_ttl", "720h")
	v.SetDefault("stats_timezone", "Europe/Copenhagen")
	v.SetDefault("stats_buffer", 256)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("log_file", "")
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		APIKey: strings.TrimSpace(v.GetString("api_key")),
		Port:   v.GetString("port"),
		Database: DatabaseConfig{
			Driver:   strings.ToLower(v.GetString("db_driver")),
			URL:      v.GetString("db_url"),
			Host:     v.GetString("db_host"),
			Port:     v.GetString("db_port"),
			User:     v.GetString("db_user"),
			Password: v.GetString("db_password"),
			Name:     v.GetString("db_name"),
			DSN:      v.GetString("db_dsn"),
		},
		Logging: LoggingConfig{
			Level:  v.GetString("log_level"),
			Format: v.GetString("log_format"),
			File:   v.GetString("log_file"),
		},
		StoreTimeout:      v.GetDuration("store_timeout"),
		ConnectionTimeout: v.GetDuration("connection_timeout"),
		LedgerTTL:         v.GetDuration("ledger_ttl"),
		StatsTimezone:     v.GetString("stats_timezone"),
		StatsBuffer:       v.GetInt("stats_buffer"),
	}

	// DB_URL alone implies postgres, matching hosted deployments
	if cfg.Database.Driver == "" && cfg.Database.URL != "" {
		cfg.Database.Driver = "postgres"
	}

	if cfg.APIKey == "" {
		return nil, errors.New("API_KEY must not be empty")
	}
	if cfg.StoreTimeout <= 0 || cfg.ConnectionTimeout <= 0 || cfg.LedgerTTL <= 0 {
		return nil, errors.New("STORE_TIMEOUT, CONNECTION_TIMEOUT and LEDGER_TTL must be positive")
	}
	if cfg.StatsBuffer <= 0 {
		cfg.StatsBuffer = 256
	}
	return cfg, nil
}

// Location resolves StatsTimezone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.StatsTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
