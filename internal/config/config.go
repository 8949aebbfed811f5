package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"service-note-backend/internal/db"
)

type Config struct {
	DBDriver   db.Dialect
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	SQLitePath string

	OpenAIKey     string
	OpenAIModel   string
	OpenAIBaseURL string

	JWTSecret   string
	HTTPAddr    string
	CORSOrigins []string

	PollInterval  time.Duration
	PollTimeout   time.Duration
	FormatTimeout time.Duration
	SessionIdle   time.Duration

	LogLevel slog.Level
}

func Load() *Config {
	port, err := strconv.Atoi(os.Getenv("DB_PORT"))
	if err != nil {
		port = 5432
	}

	driver := db.Dialect(strings.ToLower(envOr("DB_DRIVER", string(db.Postgres))))

	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_KEY")
	}

	var origins []string
	for _, o := range strings.Split(os.Getenv("CORS_ORIGINS"), ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(envOr("LOG_LEVEL", "info"))); err != nil {
		level = slog.LevelInfo
	}

	return &Config{
		DBDriver:   driver,
		DBHost:     os.Getenv("DB_HOST"),
		DBPort:     port,
		DBUser:     os.Getenv("DB_USER"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     os.Getenv("DB_NAME"),
		SQLitePath: envOr("SQLITE_PATH", "service-notes.db"),

		OpenAIKey:     apiKey,
		OpenAIModel:   envOr("OPENAI_MODEL", "gpt-4.1-mini"),
		OpenAIBaseURL: os.Getenv("OPENAI_BASE_URL"),

		JWTSecret:   os.Getenv("JWT_SECRET"),
		HTTPAddr:    envOr("HTTP_ADDR", ":8080"),
		CORSOrigins: origins,

		PollInterval:  durationOr("NARRATIVE_POLL_INTERVAL", 800*time.Millisecond),
		PollTimeout:   durationOr("NARRATIVE_POLL_TIMEOUT", 20*time.Second),
		FormatTimeout: durationOr("FORMAT_TIMEOUT", 60*time.Second),
		SessionIdle:   durationOr("CONVERSATION_IDLE_TIMEOUT", 2*time.Hour),

		LogLevel: level,
	}
}

// ConnString returns the driver-specific data source name.
func (c *Config) ConnString() string {
	if c.DBDriver == db.SQLite {
		return c.SQLitePath
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName,
	)
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func durationOr(key string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(key))
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
