package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds application configuration derived from environment variables.
type Config struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	PostgresDSN string
	RedisAddr   string

	// ClickHouse planning-event sink. Empty DSN disables analytics.
	ClickHouseDSN string

	DataRoot          string
	CityDataPath      string
	CityEventsPath    string
	DistanceMatrixPath string
	CityCacheDir      string
	CityCacheTTL      time.Duration

	ServiceName    string
	ReloadInterval time.Duration

	// Database connection pooling configuration
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration
	DBConnMaxIdleTime time.Duration

	// Tracing configuration
	TracingEnabled    bool
	OTLPEndpoint      string
	TracingSampleRate float64

	// SMTP settings for critical alert delivery
	SMTPHost string
	SMTPPort string
	SMTPUser string
	SMTPPass string
	SMTPFrom string
	SMTPTo   string
	SMTPTLS  bool
}

// Load parses environment variables and returns a Config populated with
// defaults when variables are absent.
func Load() Config {
	cfg := Config{}

	cfg.Port = getenv("PORT", "8890")
	cfg.ReadTimeout = envDuration("READ_TIMEOUT", 5*time.Second)
	cfg.WriteTimeout = envDuration("WRITE_TIMEOUT", 15*time.Second)

	cfg.PostgresDSN = getenv("POSTGRES_DSN", "postgres://postgres@127.0.0.1:5432/postgres?sslmode=disable")
	cfg.RedisAddr = getenv("REDIS_ADDR", "localhost:6379")
	cfg.ClickHouseDSN = getenv("CLICKHOUSE_DSN", "")

	cfg.DataRoot = getenv("DATA_ROOT", "data")
	cfg.CityDataPath = getenv("CITY_DATA_PATH", "data/cities.json")
	cfg.CityEventsPath = getenv("CITY_EVENTS_PATH", "data/city_events.json")
	cfg.DistanceMatrixPath = getenv("DISTANCE_MATRIX_PATH", "data/distances.json")
	cfg.CityCacheDir = getenv("CITY_CACHE_DIR", "data/cache/cities")
	// external city fetches are cached for a month
	cfg.CityCacheTTL = envDuration("CITY_CACHE_TTL", 30*24*time.Hour)

	cfg.ServiceName = getenv("SERVICE_NAME", "mobiplan")
	cfg.ReloadInterval = envDuration("RELOAD_INTERVAL", 30*time.Second)

	cfg.DBMaxOpenConns = envInt("DB_MAX_OPEN_CONNS", 25)
	cfg.DBMaxIdleConns = envInt("DB_MAX_IDLE_CONNS", 5)
	cfg.DBConnMaxLifetime = envDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute)
	cfg.DBConnMaxIdleTime = envDuration("DB_CONN_MAX_IDLE_TIME", 1*time.Minute)

	cfg.TracingEnabled = envBool("TRACING_ENABLED", false)
	cfg.OTLPEndpoint = getenv("OTLP_ENDPOINT", "tempo:4317")
	cfg.TracingSampleRate = envFloat("TRACING_SAMPLE_RATE", 1.0)

	cfg.SMTPHost = getenv("SMTP_HOST", "")
	cfg.SMTPPort = getenv("SMTP_PORT", "587")
	cfg.SMTPUser = getenv("SMTP_USER", "")
	cfg.SMTPPass = getenv("SMTP_PASS", "")
	cfg.SMTPFrom = getenv("SMTP_FROM", "")
	cfg.SMTPTo = getenv("SMTP_TO", "")
	cfg.SMTPTLS = envBool("SMTP_TLS", true)

	return cfg
}

// getenv returns the value of the environment variable if set, otherwise def.
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// envDuration parses an environment variable into a time.Duration.
// The value can be a duration string (e.g. "5s") or a number of seconds.
// If the variable is unset or invalid, def is returned.
func envDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	return def
}

// envBool parses a boolean environment variable. Accepted values are those
// supported by strconv.ParseBool. When unset or invalid, def is returned.
func envBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if b, err := strconv.ParseBool(v); err == nil {
		return b
	}
	return def
}

// envInt parses an integer environment variable. When unset or invalid, def is returned.
func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if i, err := strconv.Atoi(v); err == nil {
		return i
	}
	return def
}

// envFloat parses a float environment variable. When unset or invalid, def is returned.
func envFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return f
	}
	return def
}
