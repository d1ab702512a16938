// Package config содержит логику чтения конфигурации реферального сервиса.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	defaultRunAddress      = "localhost:8080"
	defaultReferralBaseURL = "https://ttrgestion.com/?ref="
	defaultMinPayout       = 5
)

// Config содержит параметры конфигурации реферального сервиса.
type Config struct {
	RunAddress      string `env:"RUN_ADDRESS"`
	DatabaseURI     string `env:"DATABASE_URI"`
	PartnerAPIKey   string `env:"PARTNER_API_KEY"`
	LegacyAPIKey    string `env:"TTR_API_KEY"`
	AdminAPIKey     string `env:"ADMIN_API_KEY"`
	SessionSecret   string `env:"SESSION_SECRET"`
	SecureCookie    bool   `env:"SECURE_COOKIE"`
	ReferralBaseURL string `env:"REFERRAL_BASE_URL"`
	MinPayout       int64  `env:"MIN_PAYOUT"`
	LogLevel        string `env:"LOG_LEVEL"`
}

// Parse считывает конфигурацию из файла .env, переменных окружения и флагов командной строки.
// Переменные окружения имеют приоритет над флагами.
func Parse() (*Config, error) {
	return ParseFile(".env")
}

// ParseFile работает как Parse, но читает указанный dotenv-файл. Отсутствие файла не ошибка.
func ParseFile(dotenv string) (*Config, error) {
	if dotenv != "" {
		if err := godotenv.Load(dotenv); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", dotenv, err)
		}
	}

	envCfg := Config{}
	if err := env.Parse(&envCfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	cfg := &Config{}
	flag.StringVar(&cfg.RunAddress, "a", defaultRunAddress, "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI; in-memory storage when empty")
	flag.StringVar(&cfg.PartnerAPIKey, "k", "", "shared secret of the partner system")
	flag.StringVar(&cfg.AdminAPIKey, "admin-key", "", "bearer token for the admin API")
	flag.StringVar(&cfg.SessionSecret, "s", "", "secret for signing session cookies")
	flag.BoolVar(&cfg.SecureCookie, "secure-cookie", false, "set Secure flag on session cookies")
	flag.StringVar(&cfg.ReferralBaseURL, "ref", defaultReferralBaseURL, "base URL of referral links")
	flag.Int64Var(&cfg.MinPayout, "min-payout", defaultMinPayout, "minimal payout in Monoyi")
	flag.StringVar(&cfg.LogLevel, "l", "info", "log level")

	flag.Parse()

	if envCfg.RunAddress != "" {
		cfg.RunAddress = envCfg.RunAddress
	}
	if envCfg.DatabaseURI != "" {
		cfg.DatabaseURI = envCfg.DatabaseURI
	}
	switch {
	case envCfg.PartnerAPIKey != "":
		cfg.PartnerAPIKey = envCfg.PartnerAPIKey
	case envCfg.LegacyAPIKey != "" && cfg.PartnerAPIKey == "":
		cfg.PartnerAPIKey = envCfg.LegacyAPIKey
	}
	if envCfg.AdminAPIKey != "" {
		cfg.AdminAPIKey = envCfg.AdminAPIKey
	}
	if envCfg.SessionSecret != "" {
		cfg.SessionSecret = envCfg.SessionSecret
	}
	if envCfg.SecureCookie {
		cfg.SecureCookie = true
	}
	if envCfg.ReferralBaseURL != "" {
		cfg.ReferralBaseURL = envCfg.ReferralBaseURL
	}
	if envCfg.MinPayout > 0 {
		cfg.MinPayout = envCfg.MinPayout
	}
	if envCfg.LogLevel != "" {
		cfg.LogLevel = envCfg.LogLevel
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = defaultRunAddress
	}
	if cfg.MinPayout <= 0 {
		return nil, fmt.Errorf("min payout must be positive, got %d", cfg.MinPayout)
	}

	return cfg, nil
}
