package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/aznelite89/travel-budget-estimator/core/models"
)

// Config holds the application configuration
type Config struct {
	// Database
	DatabaseURL string `yaml:"database_url"`
	Store       string `yaml:"store"` // postgres or memory

	// Server
	ServerPort         string   `yaml:"server_port"`
	CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`
	LogLevel           string   `yaml:"log_level"`

	// Runner
	SchedulerWorkers int           `yaml:"scheduler_workers"`
	MonitorInterval  time.Duration `yaml:"monitor_interval"`
	StalledJobAfter  time.Duration `yaml:"stalled_job_after"`

	// Event stream
	StreamPollInterval      time.Duration `yaml:"stream_poll_interval"`
	StreamKeepAliveInterval time.Duration `yaml:"stream_keepalive_interval"`

	// Submission rate limit
	SubmitRatePerSecond float64 `yaml:"submit_rate_per_second"`
	SubmitBurst         int     `yaml:"submit_burst"`

	Estimator EstimatorConfig `yaml:"estimator"`
}

// EstimatorConfig holds the Claude estimator settings
type EstimatorConfig struct {
	APIKey          string             `yaml:"api_key"`
	Model           string             `yaml:"model"`
	MaxTokens       int                `yaml:"max_tokens"`
	Temperature     float64            `yaml:"temperature"`
	Timeout         time.Duration      `yaml:"timeout"`
	ContingencyRate map[string]float64 `yaml:"contingency_rate"` // Keyed by budget style
}

// BufferRates returns the contingency rate for each budget style
func (e EstimatorConfig) BufferRates() map[models.BudgetStyle]float64 {
	rates := make(map[models.BudgetStyle]float64, len(e.ContingencyRate))
	for style, rate := range e.ContingencyRate {
		rates[models.BudgetStyle(style)] = rate
	}
	return rates
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		DatabaseURL:             "postgres://localhost/travel_budget?sslmode=disable",
		Store:                   "postgres",
		ServerPort:              "8000",
		CORSAllowedOrigins:      []string{"http://localhost:5173", "http://127.0.0.1:5173"},
		LogLevel:                "info",
		SchedulerWorkers:        2,
		MonitorInterval:         30 * time.Second,
		StalledJobAfter:         15 * time.Minute,
		StreamPollInterval:      time.Second,
		StreamKeepAliveInterval: 15 * time.Second,
		SubmitRatePerSecond:     1,
		SubmitBurst:             5,
		Estimator: EstimatorConfig{
			Model:       "claude-sonnet-4-5-20250929",
			MaxTokens:   8192,
			Temperature: 0.2,
			Timeout:     5 * time.Minute,
			ContingencyRate: map[string]float64{
				string(models.BudgetStyleBudget):   0.15,
				string(models.BudgetStyleMidrange): 0.10,
				string(models.BudgetStyleLuxury):   0.08,
			},
		},
	}
}

// Load loads configuration from the defaults, then the YAML file named by
// CONFIG_FILE if set, then environment variables
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	var err error

	c.DatabaseURL = getEnv("DATABASE_URL", c.DatabaseURL)
	c.Store = getEnv("STORE", c.Store)
	c.ServerPort = getEnv("SERVER_PORT", c.ServerPort)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	if origins := os.Getenv("CORS_ALLOWED_ORIGINS"); origins != "" {
		c.CORSAllowedOrigins = splitList(origins)
	}

	if c.SchedulerWorkers, err = getEnvInt("SCHEDULER_WORKERS", c.SchedulerWorkers); err != nil {
		return err
	}
	if c.MonitorInterval, err = getEnvDuration("MONITOR_INTERVAL", c.MonitorInterval); err != nil {
		return err
	}
	if c.StalledJobAfter, err = getEnvDuration("STALLED_JOB_AFTER", c.StalledJobAfter); err != nil {
		return err
	}
	if c.StreamPollInterval, err = getEnvDuration("STREAM_POLL_INTERVAL", c.StreamPollInterval); err != nil {
		return err
	}
	if c.StreamKeepAliveInterval, err = getEnvDuration("STREAM_KEEPALIVE_INTERVAL", c.StreamKeepAliveInterval); err != nil {
		return err
	}
	if c.SubmitRatePerSecond, err = getEnvFloat("SUBMIT_RATE_PER_SECOND", c.SubmitRatePerSecond); err != nil {
		return err
	}
	if c.SubmitBurst, err = getEnvInt("SUBMIT_BURST", c.SubmitBurst); err != nil {
		return err
	}

	e := &c.Estimator
	e.APIKey = getEnv("ANTHROPIC_API_KEY", e.APIKey)
	e.Model = getEnv("ESTIMATOR_MODEL", e.Model)
	if e.MaxTokens, err = getEnvInt("ESTIMATOR_MAX_TOKENS", e.MaxTokens); err != nil {
		return err
	}
	if e.Temperature, err = getEnvFloat("ESTIMATOR_TEMPERATURE", e.Temperature); err != nil {
		return err
	}
	if e.Timeout, err = getEnvDuration("ESTIMATOR_TIMEOUT", e.Timeout); err != nil {
		return err
	}
	if e.ContingencyRate == nil {
		e.ContingencyRate = map[string]float64{}
	}
	for _, style := range []models.BudgetStyle{models.BudgetStyleBudget, models.BudgetStyleMidrange, models.BudgetStyleLuxury} {
		key := "CONTINGENCY_RATE_" + strings.ToUpper(string(style))
		rate, err := getEnvFloat(key, e.ContingencyRate[string(style)])
		if err != nil {
			return err
		}
		e.ContingencyRate[string(style)] = rate
	}

	return nil
}

// Validate checks values that would otherwise fail at runtime
func (c *Config) Validate() error {
	switch c.Store {
	case "postgres", "memory":
	default:
		return fmt.Errorf("STORE must be postgres or memory, got %q", c.Store)
	}
	if c.Store == "postgres" && c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required for the postgres store")
	}
	if c.SchedulerWorkers < 1 {
		return fmt.Errorf("SCHEDULER_WORKERS must be at least 1")
	}
	if c.StreamPollInterval <= 0 || c.StreamKeepAliveInterval <= 0 {
		return fmt.Errorf("stream intervals must be positive")
	}
	if c.MonitorInterval <= 0 {
		return fmt.Errorf("MONITOR_INTERVAL must be positive")
	}
	for style, rate := range c.Estimator.ContingencyRate {
		if rate < 0 || rate > 1 {
			return fmt.Errorf("contingency rate for %s must be between 0 and 1", style)
		}
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getEnvFloat(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
