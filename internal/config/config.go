package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port string

	DatabaseURL string

	StripeSecretKey     string
	StripeWebhookSecret string

	PriceLifetime     string
	PriceSubscription string

	FrontendURL    string
	AllowedOrigins []string

	SentryDSN string

	// Artificial delay before answering a validate-key miss, to blunt
	// timing-based key enumeration.
	ValidateNotFoundDelay time.Duration

	SMTPHost     string
	SMTPPort     string
	SMTPUsername string
	SMTPPassword string
	EmailFrom    string
}

func New() (*Config, error) {
	port := os.Getenv("PORT")
	if port == "" {
		port = "4242"
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, errors.New("DATABASE_URL environment variable is required")
	}

	stripeSecretKey := os.Getenv("STRIPE_SECRET_KEY")
	if stripeSecretKey == "" {
		return nil, errors.New("STRIPE_SECRET_KEY environment variable is required")
	}

	stripeWebhookSecret := os.Getenv("STRIPE_WEBHOOK_SECRET")
	if stripeWebhookSecret == "" {
		return nil, errors.New("STRIPE_WEBHOOK_SECRET environment variable is required")
	}

	frontendURL := os.Getenv("FRONTEND_URL")
	if frontendURL == "" {
		frontendURL = "http://localhost:5173"
	}

	origins := []string{frontendURL}
	if raw := os.Getenv("ALLOWED_ORIGINS"); raw != "" {
		origins = nil
		for _, origin := range strings.Split(raw, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				origins = append(origins, origin)
			}
		}
	}

	delay := 200 * time.Millisecond
	if raw := os.Getenv("VALIDATE_NOT_FOUND_DELAY_MS"); raw != "" {
		ms, err := strconv.Atoi(raw)
		if err != nil || ms < 0 {
			return nil, errors.New("VALIDATE_NOT_FOUND_DELAY_MS must be a non-negative integer")
		}
		delay = time.Duration(ms) * time.Millisecond
	}

	emailFrom := os.Getenv("EMAIL_FROM")
	if emailFrom == "" {
		emailFrom = "keys@rabisk.app"
	}

	return &Config{
		Port:                  port,
		DatabaseURL:           dbURL,
		StripeSecretKey:       stripeSecretKey,
		StripeWebhookSecret:   stripeWebhookSecret,
		PriceLifetime:         os.Getenv("STRIPE_PRICE_ID_LIFETIME"),
		PriceSubscription:     os.Getenv("STRIPE_PRICE_ID_SUBSCRIPTION"),
		FrontendURL:           frontendURL,
		AllowedOrigins:        origins,
		SentryDSN:             os.Getenv("SENTRY_DSN"),
		ValidateNotFoundDelay: delay,
		SMTPHost:              os.Getenv("SMTP_HOST"),
		SMTPPort:              os.Getenv("SMTP_PORT"),
		SMTPUsername:          os.Getenv("SMTP_USERNAME"),
		SMTPPassword:          os.Getenv("SMTP_PASSWORD"),
		EmailFrom:             emailFrom,
	}, nil
}
