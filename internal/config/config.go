package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type AppConfig struct {
	HTTPAddr string
	LiveAddr string

	// RedisURL selects the Redis session repository. Empty keeps sessions in
	// process memory.
	RedisURL   string
	SessionTTL time.Duration

	MessageLocale string
	MessageDir    string

	AllowedOrigins []string
}

func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		HTTPAddr:      ":8080",
		LiveAddr:      ":8081",
		SessionTTL:    time.Hour,
		MessageLocale: "pt",
	}

	if v := strings.TrimSpace(os.Getenv("HTTP_ADDR")); v != "" {
		cfg.HTTPAddr = v
	}
	if v := strings.TrimSpace(os.Getenv("LIVE_ADDR")); v != "" {
		cfg.LiveAddr = v
	}
	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))

	// seconds ("3600") or a Go duration ("90m")
	if v := strings.TrimSpace(os.Getenv("SESSION_TTL")); v != "" {
		ttl, err := parseTTL(v)
		if err != nil {
			return nil, fmt.Errorf("SESSION_TTL: %w", err)
		}
		cfg.SessionTTL = ttl
	}

	if v := strings.TrimSpace(os.Getenv("MESSAGE_LOCALE")); v != "" {
		cfg.MessageLocale = strings.ToLower(v)
	}
	cfg.MessageDir = strings.TrimSpace(os.Getenv("MESSAGE_DIR"))

	if v := strings.TrimSpace(os.Getenv("ALLOWED_ORIGINS")); v != "" {
		for _, p := range strings.Split(v, ",") {
			if s := strings.TrimSpace(p); s != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, s)
			}
		}
	}

	if cfg.HTTPAddr == cfg.LiveAddr {
		return nil, errors.New("HTTP_ADDR and LIVE_ADDR must differ")
	}
	return cfg, nil
}

func parseTTL(v string) (time.Duration, error) {
	if n, err := strconv.Atoi(v); err == nil {
		if n <= 0 {
			return 0, errors.New("must be positive")
		}
		return time.Duration(n) * time.Second, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, errors.New("must be positive")
	}
	return d, nil
}
