package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for crmeta.
type Config struct {
	API      APIConfig    `yaml:"api"`
	Database string       `yaml:"database"`
	Redis    RedisConfig  `yaml:"redis"`
	ETL      ETLConfig    `yaml:"etl"`
	Server   ServerConfig `yaml:"server"`
}

// APIConfig configures the game API client.
type APIConfig struct {
	Token             string  `yaml:"token"`
	BaseURL           string  `yaml:"base_url"`
	RankingPath       string  `yaml:"ranking_path"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
}

// RedisConfig enables the battle log cache when Addr is set.
type RedisConfig struct {
	Addr       string `yaml:"addr"`
	TTLSeconds int    `yaml:"ttl_seconds"`
}

// TTL returns the cache TTL.
func (c RedisConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

// ETLConfig configures a snapshot run.
type ETLConfig struct {
	TopN        int     `yaml:"top_n"`
	RankedModes []int64 `yaml:"ranked_modes"`
	// CardsFile overrides the embedded card catalog (YAML or JSON list).
	CardsFile string `yaml:"cards_file"`
}

// ServerConfig configures the read API.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// DefaultPath is where the config file is looked up when none is given.
func DefaultPath() string {
	return filepath.Join(homeDir(), ".crmeta", "config.yaml")
}

// DefaultDatabase is the SQLite file used when no database is configured.
func DefaultDatabase() string {
	return filepath.Join(homeDir(), ".crmeta", "meta.db")
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}

// Load reads and parses the configuration file. A missing file is not an
// error when optional is true; defaults are applied either way.
func Load(path string, optional bool) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case os.IsNotExist(err) && optional:
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.Database == "" {
		cfg.Database = DefaultDatabase()
	}
	if cfg.ETL.TopN == 0 {
		cfg.ETL.TopN = 20
	}
	if cfg.API.RequestsPerSecond == 0 {
		cfg.API.RequestsPerSecond = 10
	}
	if cfg.Redis.TTLSeconds == 0 {
		cfg.Redis.TTLSeconds = 600
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
}

// LoadFromEnv loads a .env file if present, then the config file, then
// applies environment overrides.
func LoadFromEnv(path string, optional bool) (*Config, error) {
	_ = godotenv.Load()

	cfg, err := Load(path, optional)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("CR_API_TOKEN"); v != "" {
		cfg.API.Token = v
	}
	if v := os.Getenv("CR_API_BASE_URL"); v != "" {
		cfg.API.BaseURL = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database = v
	}
	if v := os.Getenv("CRMETA_DB"); v != "" {
		cfg.Database = v
	}
	if v := os.Getenv("CRMETA_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	return cfg, nil
}
