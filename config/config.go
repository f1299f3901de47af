// config/config.go
package config

import (
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Policy carries the settlement and withdrawal constants. Services receive it
// by value so tests can run with their own numbers.
type Policy struct {
	PlatformFeePercent    int64 `env:"PLATFORM_FEE_PERCENT" envDefault:"10"`
	MinWithdrawalCredits  int64 `env:"MIN_WITHDRAWAL_CREDITS" envDefault:"100"`
	WithdrawalFeeCredits  int64 `env:"WITHDRAWAL_FEE_CREDITS" envDefault:"5"`
	MaxCampaignBattles    int64 `env:"MAX_CAMPAIGN_BATTLES" envDefault:"2"`
	USDCentsPer100Credits int64 `env:"USD_CENTS_PER_100_CREDITS" envDefault:"200"`
}

// DefaultPolicy is the production policy.
func DefaultPolicy() Policy {
	return Policy{
		PlatformFeePercent:    10,
		MinWithdrawalCredits:  100,
		WithdrawalFeeCredits:  5,
		MaxCampaignBattles:    2,
		USDCentsPer100Credits: 200,
	}
}

func (p Policy) Validate() error {
	if p.PlatformFeePercent < 0 || p.PlatformFeePercent > 100 {
		return fmt.Errorf("PLATFORM_FEE_PERCENT must be within 0..100, got %d", p.PlatformFeePercent)
	}
	if p.MinWithdrawalCredits <= 0 {
		return errors.New("MIN_WITHDRAWAL_CREDITS must be positive")
	}
	if p.WithdrawalFeeCredits < 0 {
		return errors.New("WITHDRAWAL_FEE_CREDITS must not be negative")
	}
	if p.MaxCampaignBattles <= 0 {
		return errors.New("MAX_CAMPAIGN_BATTLES must be positive")
	}
	if p.USDCentsPer100Credits < 0 {
		return errors.New("USD_CENTS_PER_100_CREDITS must not be negative")
	}
	return nil
}

type R2 struct {
	AccountID       string `env:"CLOUDFLARE_ACCOUNT_ID"`
	AccessKeyID     string `env:"R2_ACCESS_KEY_ID"`
	AccessKeySecret string `env:"R2_ACCESS_KEY_SECRET"`
	Bucket          string `env:"R2_BUCKET_NAME"`
	CDNBaseURL      string `env:"CDN_BASE_URL"`
}

// Enabled is true when enough is set to reach a bucket.
func (r R2) Enabled() bool {
	return r.AccountID != "" && r.AccessKeyID != "" && r.AccessKeySecret != "" && r.Bucket != ""
}

type Config struct {
	DatabaseURL    string `env:"DATABASE_URL,required,notEmpty"`
	Port           string `env:"PORT" envDefault:"5200"`
	ServiceToken   string `env:"SERVICE_TOKEN,required,notEmpty"`
	AllowedOrigins string `env:"ALLOWED_ORIGINS" envDefault:"http://localhost:3000"`
	LogLevel       string `env:"LOG_LEVEL" envDefault:"info"`

	AuthServiceURL string `env:"AUTH_SERVICE_URL"`
	NATSURL        string `env:"NATS_URL"`
	PaymentSyncURL string `env:"PAYMENT_SYNC_URL"`
	ProfileSyncURL string `env:"PROFILE_SYNC_URL"`

	R2     R2
	Policy Policy
}

// Origins returns ALLOWED_ORIGINS trimmed and re-joined the way fiber's cors
// middleware expects.
func (c *Config) Origins() string {
	parts := strings.Split(c.AllowedOrigins, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, ",")
}

// Load reads .env (if present) and the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}
	return Parse()
}

// Parse reads the process environment only.
func Parse() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Policy.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
