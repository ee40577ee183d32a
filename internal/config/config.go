// Package config содержит логику чтения конфигурации сервиса.
package config

import (
	"flag"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config содержит параметры конфигурации сервиса.
type Config struct {
	RunAddress       string        `env:"RUN_ADDRESS"`
	DatabaseURI      string        `env:"DATABASE_URI"`
	OracleAddress    string        `env:"ORACLE_ADDRESS"`
	AdminKey         string        `env:"ADMIN_KEY"`
	DispatchInterval time.Duration `env:"DISPATCH_INTERVAL"`
	SeedFile         string        `env:"SEED_FILE"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
// Переменные окружения имеют приоритет над флагами.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envDatabaseURI := cfg.DatabaseURI
	envOracleAddress := cfg.OracleAddress
	envAdminKey := cfg.AdminKey
	envDispatchInterval := cfg.DispatchInterval
	envSeedFile := cfg.SeedFile

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.OracleAddress, "r", "", "oracle service address")
	flag.StringVar(&cfg.AdminKey, "k", "", "admin API key")
	flag.DurationVar(&cfg.DispatchInterval, "i", 2*time.Second, "dispatch poll interval")
	flag.StringVar(&cfg.SeedFile, "s", "", "seed data file")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envDatabaseURI != "" {
		cfg.DatabaseURI = envDatabaseURI
	}
	if envOracleAddress != "" {
		cfg.OracleAddress = envOracleAddress
	}
	if envAdminKey != "" {
		cfg.AdminKey = envAdminKey
	}
	if envDispatchInterval != 0 {
		cfg.DispatchInterval = envDispatchInterval
	}
	if envSeedFile != "" {
		cfg.SeedFile = envSeedFile
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:8080"
	}
	if cfg.DispatchInterval <= 0 {
		cfg.DispatchInterval = 2 * time.Second
	}

	return cfg, nil
}
