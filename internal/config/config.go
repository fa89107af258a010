package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config covers both binaries: the server reads HTTP/Database/Redis/Photos,
// the device CLI reads Device. Everything comes from environment variables
// so deployments never need a config file.
type Config struct {
	HTTP struct {
		Addr string
	}
	Database DatabaseConfig
	Redis    struct {
		Enabled  bool
		Addr     string
		Password string
		DB       int
		// SummaryTTL bounds staleness of the cached assessment list.
		SummaryTTL time.Duration
	}
	Photos struct {
		// Dir is where the server keeps photo binaries, one file per photo
		// UUID. Metadata lives in Postgres.
		Dir string
	}
	Device struct {
		// DBPath is the device-local SQLite file.
		DBPath    string
		ServerURL string
		Timeout   time.Duration
	}
	Log struct {
		Level  string
		Format string
	}
}

// DatabaseConfig is the server's Postgres connection config.
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int
	MaxIdle  int
}

// GetDSN builds a lib/pq connection string.
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

func Load() *Config {
	cfg := &Config{}
	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":8080")

	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = parseInt(getEnv("DB_PORT", "5432"), 5432)
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("DB_NAME", "cpted")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.Database.MaxConns = parseInt(getEnv("DB_MAX_CONNS", "10"), 10)
	cfg.Database.MaxIdle = parseInt(getEnv("DB_MAX_IDLE", "5"), 5)

	cfg.Redis.Enabled = getEnv("REDIS_ENABLED", "false") == "true"
	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = 0
	cfg.Redis.SummaryTTL = time.Duration(parseInt(getEnv("REDIS_SUMMARY_TTL_SECONDS", "60"), 60)) * time.Second

	cfg.Photos.Dir = getEnv("PHOTOS_DIR", "./photos")

	cfg.Device.DBPath = getEnv("CPTED_DB_PATH", defaultDevicePath())
	cfg.Device.ServerURL = getEnv("CPTED_SERVER_URL", "http://localhost:8080")
	cfg.Device.Timeout = time.Duration(parseInt(getEnv("CPTED_HTTP_TIMEOUT_SECONDS", "30"), 30)) * time.Second

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	return cfg
}

func defaultDevicePath() string {
	if home, err := os.UserHomeDir(); err == nil {
		return home + "/.cpted-sync/assessments.db"
	}
	return "./assessments.db"
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}
