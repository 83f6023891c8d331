// Package config loads and validates the application configuration from a
// JSON file plus LEADSCOUT_* environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the lead pipeline system.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Search    SearchConfig    `mapstructure:"search"`
	Scrape    ScrapeConfig    `mapstructure:"scrape"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Retention RetentionConfig `mapstructure:"retention"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Address string `mapstructure:"address"`
	// RunTimeout caps one pipeline invocation triggered over HTTP.
	RunTimeout time.Duration `mapstructure:"run_timeout"`
}

// LLMConfig configures the generation-service client.
type LLMConfig struct {
	Provider    string        `mapstructure:"provider"` // only "openai" is supported
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	Model       string        `mapstructure:"model"`
	Temperature float64       `mapstructure:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

func (l LLMConfig) Validate() error {
	if strings.TrimSpace(l.APIKey) == "" {
		return fmt.Errorf("llm.api_key is required")
	}
	return nil
}

// SearchConfig configures the web search backend used for discovery.
type SearchConfig struct {
	Provider     string        `mapstructure:"provider"` // only "googlecse" is supported
	APIKey       string        `mapstructure:"api_key"`
	EngineID     string        `mapstructure:"engine_id"`
	BaseURL      string        `mapstructure:"base_url"`
	MaxResults   int           `mapstructure:"max_results"`   // results requested per query
	MaxInFlight  int           `mapstructure:"max_in_flight"` // concurrent queries per batch
	RateLimitRPS float64       `mapstructure:"rate_limit_rps"`
	Timeout      time.Duration `mapstructure:"timeout"`
	CacheTTL     time.Duration `mapstructure:"cache_ttl"` // redis result cache; 0 disables
}

// Validate enforces the search credentials at startup. A missing API key or
// engine ID must fail the process, never an individual query.
func (s SearchConfig) Validate() error {
	if strings.TrimSpace(s.APIKey) == "" {
		return fmt.Errorf("search.api_key is required")
	}
	if strings.TrimSpace(s.EngineID) == "" {
		return fmt.Errorf("search.engine_id is required")
	}
	return nil
}

// ScrapeConfig controls the optional deep-scrape path.
type ScrapeConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	SearchURL   string        `mapstructure:"search_url"`  // SERP endpoint the query is appended to
	EngineHost  string        `mapstructure:"engine_host"` // links back into this host are skipped
	PerQuery    int           `mapstructure:"per_query"`   // result links collected per query
	MaxInFlight int           `mapstructure:"max_in_flight"`
	Timeout     time.Duration `mapstructure:"timeout"`   // per page fetch
	MaxChars    int           `mapstructure:"max_chars"` // page text truncation
}

// StorageConfig contains storage and persistence settings.
type StorageConfig struct {
	Redis    RedisConfig    `mapstructure:"redis"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	File     FileConfig     `mapstructure:"file"`
}

// RedisConfig contains Redis connection settings. Redis is optional: with no
// host configured the search cache and the sweep lock are simply disabled.
type RedisConfig struct {
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

func (r RedisConfig) Enabled() bool { return strings.TrimSpace(r.Host) != "" }

func (r RedisConfig) Addr() string {
	port := r.Port
	if port == "" {
		port = "6379"
	}
	return fmt.Sprintf("%s:%s", r.Host, port)
}

// PostgresConfig contains Postgres connection settings.
type PostgresConfig struct {
	URL      string        `mapstructure:"url"`
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	User     string        `mapstructure:"user"`
	Password string        `mapstructure:"password"`
	DBName   string        `mapstructure:"dbname"`
	SSLMode  string        `mapstructure:"sslmode"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

func (p PostgresConfig) Validate() error {
	if strings.TrimSpace(p.URL) != "" {
		return nil
	}
	if strings.TrimSpace(p.Host) == "" {
		return fmt.Errorf("storage.postgres.host required when url is not provided")
	}
	if strings.TrimSpace(p.DBName) == "" {
		return fmt.Errorf("storage.postgres.dbname required when url is not provided")
	}
	return nil
}

// DSN assembles the connection string, preferring an explicit URL.
func (p PostgresConfig) DSN() string {
	if p.URL != "" {
		return p.URL
	}
	port := p.Port
	if port == "" {
		port = "5432"
	}
	ssl := p.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		p.User, p.Password, p.Host, port, p.DBName, ssl)
}

// FileConfig contains file storage settings. DataDir is where per-run
// diagnostic artifacts are written; empty disables them.
type FileConfig struct {
	DataDir string `mapstructure:"data_dir"`
}

// TelemetryConfig contains telemetry settings. Metrics are exposed on the
// HTTP server's /metrics endpoint when enabled.
type TelemetryConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// RetentionConfig controls pruning of archived runs. Days <= 0 disables the
// sweeper entirely.
type RetentionConfig struct {
	Days     int    `mapstructure:"days"`
	Schedule string `mapstructure:"schedule"` // @daily, @hourly or a 5-field cron expression
}

func (r RetentionConfig) Validate() error {
	if r.Days < 0 {
		return fmt.Errorf("retention.days cannot be negative")
	}
	return nil
}

// LoadConfig loads config from file. It panics on a missing or unparsable
// file and on invalid required settings; configuration problems should stop
// the process before it serves anything.
func LoadConfig(path string) *Config {
	viper.SetConfigName("config")
	viper.SetConfigType("json")

	viper.SetDefault("server.address", ":10010")
	viper.SetDefault("server.run_timeout", 5*time.Minute)
	viper.SetDefault("llm.provider", "openai")
	viper.SetDefault("llm.model", "gpt-4o-mini")
	viper.SetDefault("llm.temperature", 0.7)
	viper.SetDefault("llm.timeout", time.Minute)
	viper.SetDefault("search.provider", "googlecse")
	viper.SetDefault("search.max_results", 5)
	viper.SetDefault("search.max_in_flight", 3)
	viper.SetDefault("search.rate_limit_rps", 5)
	viper.SetDefault("search.timeout", 10*time.Second)
	viper.SetDefault("scrape.per_query", 8)
	viper.SetDefault("scrape.max_in_flight", 4)
	viper.SetDefault("scrape.timeout", 15*time.Second)
	viper.SetDefault("scrape.max_chars", 50000)
	viper.SetDefault("retention.schedule", "0 3 * * *")

	if path == "" {
		viper.AddConfigPath("./config")
		viper.AddConfigPath(".")
		exe, _ := os.Executable()
		exeDir := filepath.Dir(exe)
		viper.AddConfigPath(exeDir)
		viper.AddConfigPath(filepath.Join(exeDir, ".."))
		viper.AddConfigPath(filepath.Join(exeDir, "..", "config"))
	} else {
		viper.SetConfigFile(path)
	}

	viper.SetEnvPrefix("LEADSCOUT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}

	if err := config.LLM.Validate(); err != nil {
		panic(err)
	}
	if err := config.Search.Validate(); err != nil {
		panic(err)
	}
	if err := config.Retention.Validate(); err != nil {
		panic(err)
	}
	return &config
}
