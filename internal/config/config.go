package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	// Core
	DatabaseURL string `env:"DATABASE_URL,required"`
	BaseURL     string `env:"BASE_URL" envDefault:"http://localhost:8080"`
	Port        int    `env:"PORT" envDefault:"8080"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// Shared secret for the scheduled endpoints (reminder scan, cleanup).
	CronSecret string `env:"CRON_SECRET,required"`

	// Payment: Stripe
	StripeWebhookSecret string `env:"STRIPE_WEBHOOK_SECRET"`

	// Payment: PayPal IPN
	PayPalReceiverEmail string `env:"PAYPAL_RECEIVER_EMAIL"`

	// Payment: Helcim
	HelcimWebhookSecret string `env:"HELCIM_WEBHOOK_SECRET"`

	// Mail
	MailEnabled bool   `env:"MAIL_ENABLED" envDefault:"false"`
	MailHost    string `env:"MAIL_HOST"`
	MailName    string `env:"MAIL_NAME" envDefault:"Gestiobill"`
	MailAddress string `env:"MAIL_ADDRESS"`

	// Internal daily reminder scan (robfig/cron spec). Empty disables it.
	ReminderCron string `env:"REMINDER_CRON" envDefault:"@daily"`
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}
