package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"care-planner/internal/timeofday"
)

// Config keeps runtime settings for the bot, the HTTP API and their backends.
type Config struct {
	TelegramToken string
	DatabaseURL   string
	HTTPAddr      string
	JWTSecret     string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CacheTTL      time.Duration

	OpenAIAPIKey       string
	OpenAIBaseURL      string
	ChatModel          string
	TranscriptionModel string

	DigestTime       string
	ReminderInterval time.Duration
	Location         *time.Location

	LogFile         string
	LogLevel        string
	ShutdownTimeout time.Duration
}

// Load reads configuration from environment variables and an optional .env
// file in the working directory, with sane defaults.
func Load() (Config, error) {
	v := viper.New()
	v.AddConfigPath(".")
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	v.SetDefault("DATABASE_URL", "care_planner.db")
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("CHAT_MODEL", "gpt-4o-mini")
	v.SetDefault("TRANSCRIPTION_MODEL", "whisper-1")
	v.SetDefault("DIGEST_TIME", "07:00")
	v.SetDefault("LOG_LEVEL", "info")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read .env: %w", err)
		}
	}
	return fromViper(v)
}

func fromViper(v *viper.Viper) (Config, error) {
	str := func(key string) string { return strings.TrimSpace(v.GetString(key)) }

	cfg := Config{
		TelegramToken:      str("TELEGRAM_TOKEN"),
		DatabaseURL:        str("DATABASE_URL"),
		HTTPAddr:           str("HTTP_ADDR"),
		JWTSecret:          str("JWT_SECRET"),
		RedisAddr:          str("REDIS_ADDR"),
		RedisPassword:      str("REDIS_PASSWORD"),
		RedisDB:            v.GetInt("REDIS_DB"),
		CacheTTL:           parseInterval(str("CACHE_TTL_SECONDS"), "s"),
		OpenAIAPIKey:       str("OPENAI_API_KEY"),
		OpenAIBaseURL:      str("OPENAI_BASE_URL"),
		ChatModel:          str("CHAT_MODEL"),
		TranscriptionModel: str("TRANSCRIPTION_MODEL"),
		DigestTime:         str("DIGEST_TIME"),
		ReminderInterval:   parseInterval(str("REMINDER_INTERVAL_MINUTES"), "m"),
		LogFile:            str("LOG_FILE"),
		LogLevel:           str("LOG_LEVEL"),
		ShutdownTimeout:    parseInterval(str("SHUTDOWN_TIMEOUT_SECONDS"), "s"),
	}

	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = 10 * time.Second
	}
	if cfg.ReminderInterval == 0 {
		cfg.ReminderInterval = 15 * time.Minute
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}

	cfg.Location = time.Local
	if tz := str("TIMEZONE"); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return cfg, fmt.Errorf("TIMEZONE: %w", err)
		}
		cfg.Location = loc
	}

	if _, err := timeofday.Parse(cfg.DigestTime); err != nil {
		return cfg, fmt.Errorf("DIGEST_TIME: %w", err)
	}

	if cfg.TelegramToken == "" && cfg.JWTSecret == "" {
		return cfg, fmt.Errorf("TELEGRAM_TOKEN or JWT_SECRET is required")
	}

	return cfg, nil
}

// parseInterval reads a positive whole number of units ("h", "m", "s").
// Anything else yields 0 so the caller's default applies.
func parseInterval(raw, unit string) time.Duration {
	if raw == "" {
		return 0
	}
	d, err := time.ParseDuration(raw + unit)
	if err != nil || d <= 0 {
		return 0
	}
	return d
}
