// Package config loads application configuration from environment
// variables via struct tags.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config is the application's full environment-derived configuration.
type Config struct {
	Port        string `env:"PORT" envDefault:"8080"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	DatabaseDSN string `env:"DATABASE_DSN"`

	RedisAddr  string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisQueue string `env:"REDIS_QUEUE" envDefault:"formasur:deliveries"`

	SMTPAddr         string `env:"SMTP_ADDR"`
	SMTPUsername     string `env:"SMTP_USERNAME"`
	SMTPPassword     string `env:"SMTP_PASSWORD"`
	SMTPFromEmail    string `env:"SMTP_FROM_EMAIL"`
	SMTPUseTLS       bool   `env:"SMTP_USE_TLS" envDefault:"true"`
	EmailTemplateDir string `env:"EMAIL_TEMPLATE_DIR" envDefault:"templates/email"`

	WhatsAppCommand string `env:"WHATSAPP_COMMAND"`
	CLICommand      string `env:"CLI_COMMAND"`

	QuietHoursStart    string `env:"QUIET_HOURS_START" envDefault:""`
	QuietHoursEnd      string `env:"QUIET_HOURS_END" envDefault:""`
	QuietHoursTimezone string `env:"QUIET_HOURS_TIMEZONE" envDefault:"UTC"`

	PlaybookDir string `env:"PLAYBOOK_DIR" envDefault:"playbooks"`
}

// Load parses Config from the process environment.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing environment config: %w", err)
	}
	return cfg, nil
}
