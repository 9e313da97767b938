package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Matching MatchingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	CORSAllowedOrigins string // comma-separated, or "*" for all
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL      string // if set, used as-is
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// JWTConfig holds JWT signing and validation settings.
type JWTConfig struct {
	Secret      string
	ExpireHours int
}

// MatchingConfig holds the matching engine policy knobs. The score weights
// are policy constants, not structural requirements; defaults follow the
// product rules (novelty dominates, then team affinity, then topics).
type MatchingConfig struct {
	NoveltyBonus      int // pair has not met before in this session
	TeamAffinityBonus int // pair satisfies the session's team policy
	TopicBonus        int // pair shares at least one topic (capped)

	TriggerWindowMinutes int // dashboard reads within this window past T-0 trigger matching
	GraceMinutes         int // minutes past round end before registrations complete
	StaleLockMinutes     int // running locks older than this may be taken over
	SweepIntervalSeconds int // worker poll interval for due rounds
	SweepLookbackMinutes int // how far past T-0 the worker still triggers matching
}

// TriggerWindow returns the T-0 trigger window as a duration.
func (m MatchingConfig) TriggerWindow() time.Duration {
	return time.Duration(m.TriggerWindowMinutes) * time.Minute
}

// Grace returns the round-completion grace period as a duration.
func (m MatchingConfig) Grace() time.Duration {
	return time.Duration(m.GraceMinutes) * time.Minute
}

// StaleLockAfter returns the running-lock takeover threshold as a duration.
func (m MatchingConfig) StaleLockAfter() time.Duration {
	return time.Duration(m.StaleLockMinutes) * time.Minute
}

// DSN returns the PostgreSQL connection string. If DatabaseConfig.URL is
// set (DATABASE_URL env), it is used as-is; otherwise built from components.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "8080"),
			ReadTimeout:        getEnvInt("READ_TIMEOUT_SEC", 30),
			WriteTimeout:       getEnvInt("WRITE_TIMEOUT_SEC", 30),
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000"),
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", ""),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "mingle"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		JWT: JWTConfig{
			Secret:      getEnv("JWT_SECRET", "change-me-in-production"),
			ExpireHours: getEnvInt("JWT_EXPIRE_HOURS", 24),
		},
		Matching: MatchingConfig{
			NoveltyBonus:         getEnvInt("MATCHING_NOVELTY_BONUS", 30),
			TeamAffinityBonus:    getEnvInt("MATCHING_TEAM_BONUS", 20),
			TopicBonus:           getEnvInt("MATCHING_TOPIC_BONUS", 10),
			TriggerWindowMinutes: getEnvInt("MATCHING_TRIGGER_WINDOW_MIN", 2),
			GraceMinutes:         getEnvInt("MATCHING_GRACE_MIN", 30),
			StaleLockMinutes:     getEnvInt("MATCHING_STALE_LOCK_MIN", 10),
			SweepIntervalSeconds: getEnvInt("MATCHING_SWEEP_INTERVAL_SEC", 60),
			SweepLookbackMinutes: getEnvInt("MATCHING_SWEEP_LOOKBACK_MIN", 15),
		},
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
