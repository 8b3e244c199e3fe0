package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the SentinelQ server.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Scheduler SchedulerConfig
}

type ServerConfig struct {
	Port int
	Env  string
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL string
}

// SchedulerConfig tunes the job scheduling engine.
type SchedulerConfig struct {
	MaxConcurrentJobs      int
	MaxMemoryMB            int
	MaxCPUCores            float64
	AutoBatchThreshold     int
	DefaultBatchSize       int
	AdmissionRetryInterval time.Duration
	DefaultMaxAttempts     int
	DefaultBackoff         time.Duration
	BatchResultTTL         time.Duration
	Retention              time.Duration
}

// Load reads configuration from environment variables and returns a validated Config.
// Returns an error with a descriptive message if any required value is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: envInt("SENTINELQ_PORT", 8080),
			Env:  envString("SENTINELQ_ENV", "development"),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Scheduler: SchedulerConfig{
			MaxConcurrentJobs:      envInt("SCHED_MAX_CONCURRENT_JOBS", 4),
			MaxMemoryMB:            envInt("SCHED_MAX_MEMORY_MB", 8192),
			MaxCPUCores:            envFloat("SCHED_MAX_CPU_CORES", 8),
			AutoBatchThreshold:     envInt("SCHED_AUTO_BATCH_THRESHOLD", 1000),
			DefaultBatchSize:       envInt("SCHED_DEFAULT_BATCH_SIZE", 100),
			AdmissionRetryInterval: envDuration("SCHED_ADMISSION_RETRY_INTERVAL", 500*time.Millisecond),
			DefaultMaxAttempts:     envInt("SCHED_DEFAULT_MAX_ATTEMPTS", 3),
			DefaultBackoff:         envDuration("SCHED_DEFAULT_BACKOFF", time.Second),
			BatchResultTTL:         envDuration("SCHED_BATCH_RESULT_TTL", 2*time.Hour),
			Retention:              envDuration("SCHED_RETENTION", 24*time.Hour),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.Scheduler.MaxConcurrentJobs < 1 {
		return fmt.Errorf("SCHED_MAX_CONCURRENT_JOBS must be at least 1, got %d", c.Scheduler.MaxConcurrentJobs)
	}
	if c.Scheduler.MaxMemoryMB < 1 {
		return fmt.Errorf("SCHED_MAX_MEMORY_MB must be positive, got %d", c.Scheduler.MaxMemoryMB)
	}
	if c.Scheduler.MaxCPUCores <= 0 {
		return fmt.Errorf("SCHED_MAX_CPU_CORES must be positive, got %g", c.Scheduler.MaxCPUCores)
	}
	if c.Scheduler.DefaultBatchSize < 1 {
		return fmt.Errorf("SCHED_DEFAULT_BATCH_SIZE must be at least 1, got %d", c.Scheduler.DefaultBatchSize)
	}
	if c.Scheduler.AutoBatchThreshold < c.Scheduler.DefaultBatchSize {
		return fmt.Errorf("SCHED_AUTO_BATCH_THRESHOLD (%d) must not be below SCHED_DEFAULT_BATCH_SIZE (%d)",
			c.Scheduler.AutoBatchThreshold, c.Scheduler.DefaultBatchSize)
	}
	if c.Scheduler.DefaultMaxAttempts < 1 {
		return fmt.Errorf("SCHED_DEFAULT_MAX_ATTEMPTS must be at least 1, got %d", c.Scheduler.DefaultMaxAttempts)
	}

	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envFloat(key string, defaultVal float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultVal
	}
	return f
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
