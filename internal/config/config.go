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

type Config struct {
	DatabaseURL string
	HTTPAddr    string
	LogLevel    string
	Env         string // dev|prod
	SentryDSN   string
	Location    *time.Location

	JWTSecret string

	// BotToken is optional; without it notifications are only logged.
	BotToken string
	AdminIDs []int64

	NotifyWorkers int
	NotifyQueue   int

	ReminderCron    string
	OverdueInterval time.Duration
	DBTimeout       time.Duration
}

// Load reads the environment, after merging a .env file from the working directory if present.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf(".env: %w", err)
	}

	tz := getenv("TZ", "Africa/Lagos")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		loc = time.Local
	}

	adminIDs, err := parseIDs(os.Getenv("ADMIN_IDS"))
	if err != nil {
		return nil, fmt.Errorf("ADMIN_IDS: %w", err)
	}
	workers, err := getInt("NOTIFY_WORKERS", 4)
	if err != nil {
		return nil, err
	}
	queue, err := getInt("NOTIFY_QUEUE", 256)
	if err != nil {
		return nil, err
	}
	overdue, err := getDuration("OVERDUE_INTERVAL", time.Hour)
	if err != nil {
		return nil, err
	}
	dbTimeout, err := getDuration("DB_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		DatabaseURL:     mustEnv("DATABASE_URL"),
		HTTPAddr:        getenv("HTTP_ADDR", ":8080"),
		LogLevel:        getenv("LOG_LEVEL", "info"),
		Env:             getenv("ENV", "dev"),
		SentryDSN:       os.Getenv("SENTRY_DSN"),
		Location:        loc,
		JWTSecret:       mustEnv("JWT_SECRET"),
		BotToken:        os.Getenv("BOT_TOKEN"),
		AdminIDs:        adminIDs,
		NotifyWorkers:   workers,
		NotifyQueue:     queue,
		ReminderCron:    getenv("REMINDER_CRON", "0 8 * * 1"),
		OverdueInterval: overdue,
		DBTimeout:       dbTimeout,
	}
	return cfg, nil
}

func mustEnv(k string) string {
	v := os.Getenv(k)
	if v == "" {
		panic("required env " + k + " is empty")
	}
	return v
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getInt(k string, def int) (int, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%s: want positive integer, got %q", k, v)
	}
	return n, nil
}

func getDuration(k string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%s: want positive duration, got %q", k, v)
	}
	return d, nil
}

func parseIDs(s string) ([]int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' })
	out := make([]int64, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad id %q: %w", p, err)
		}
		out = append(out, n)
	}
	return out, nil
}
