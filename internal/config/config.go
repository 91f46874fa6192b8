package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// History backends.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

type Config struct {
	Env             string
	ListenAddr      string
	LogLevel        string
	LogFormat       string
	HistoryBackend  string
	DatabaseURL     string
	SQLitePath      string
	AnalyzerURL     string
	AnalyzerAPIKey  string
	AnalyzerTimeout time.Duration
	AnalyzerRate    float64
	AnalyzerBurst   int
	CacheTTL        time.Duration
	RedisURL        string
	AnalysisWorkers int
	JobRetention    time.Duration
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// Load reads the environment, after merging an optional .env file from the
// working directory. Variables already set win over the file. A missing
// connection setting for the selected backend is returned as an error next to
// a usable Config so callers can decide whether it is fatal.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("loading .env: %w", err)
	}

	cfg := Config{
		Env:             getenv("APP_ENV", "development"),
		ListenAddr:      getenv("LISTEN_ADDR", ":8080"),
		LogLevel:        getenv("LOG_LEVEL", "info"),
		LogFormat:       getenv("LOG_FORMAT", "text"),
		HistoryBackend:  strings.ToLower(getenv("HISTORY_BACKEND", BackendSQLite)),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		SQLitePath:      getenv("SQLITE_PATH", "compliancesync.db"),
		AnalyzerURL:     os.Getenv("ANALYZER_URL"),
		AnalyzerAPIKey:  os.Getenv("ANALYZER_API_KEY"),
		AnalyzerTimeout: getenvDuration("ANALYZER_TIMEOUT", 2*time.Minute),
		AnalyzerRate:    getenvFloat("ANALYZER_RATE_PER_SEC", 0),
		AnalyzerBurst:   getenvInt("ANALYZER_BURST", 1),
		CacheTTL:        getenvDuration("ANALYSIS_CACHE_TTL", time.Hour),
		RedisURL:        os.Getenv("REDIS_URL"),
		AnalysisWorkers: getenvInt("ANALYSIS_WORKERS", 1),
		JobRetention:    getenvDuration("ANALYSIS_JOB_RETENTION", time.Hour),
	}

	switch cfg.HistoryBackend {
	case BackendMemory:
	case BackendSQLite:
		if cfg.SQLitePath == "" {
			return cfg, fmt.Errorf("SQLITE_PATH not set")
		}
	case BackendPostgres:
		if cfg.DatabaseURL == "" {
			return cfg, fmt.Errorf("DATABASE_URL not set")
		}
	default:
		return cfg, fmt.Errorf("unknown HISTORY_BACKEND %q", cfg.HistoryBackend)
	}
	if cfg.AnalyzerURL == "" {
		return cfg, fmt.Errorf("ANALYZER_URL not set")
	}
	return cfg, nil
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if out, err := strconv.Atoi(v); err == nil {
			return out
		}
	}
	return def
}

func getenvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if out, err := strconv.ParseFloat(v, 64); err == nil {
			return out
		}
	}
	return def
}

func getenvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if out, err := time.ParseDuration(v); err == nil {
			return out
		}
	}
	return def
}
