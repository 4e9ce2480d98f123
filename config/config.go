package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"tariconnect/internal/domain/settings"

	"github.com/joho/godotenv"
)

type Config struct {
	Port       string
	AppEnv     string
	AppURL     string
	CORSOrigin string
	DBURL      string
	JWTSecret  string
	RedisURL   string

	FirebaseProjectID string

	Paystack PaystackConfig
	Mpesa    MpesaConfig
	Stripe   StripeConfig
	Meta     settings.MetaSettings

	LogLevel  string
	LogFormat string

	GatewayTimeout      time.Duration
	RelayInterval       time.Duration
	TrialSweepCron      string
	MirrorReconcileCron string
}

type PaystackConfig struct {
	SecretKey   string
	PublicKey   string
	BaseURL     string
	CallbackURL string
}

func (p PaystackConfig) Enabled() bool { return p.SecretKey != "" }

type MpesaConfig struct {
	ConsumerKey    string
	ConsumerSecret string
	ShortCode      string
	Passkey        string
	CallbackURL    string
	CallbackToken  string
	BaseURL        string
	RelayURL       string
}

func (m MpesaConfig) Enabled() bool {
	return m.ConsumerKey != "" && m.ConsumerSecret != "" && m.ShortCode != "" && m.Passkey != ""
}

type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
}

func (s StripeConfig) Enabled() bool { return s.SecretKey != "" }

// Load reads .env when present, then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromEnv()
}

func FromEnv() (*Config, error) {
	var missing []string
	mustEnv := func(key string) string {
		v, ok := os.LookupEnv(key)
		if !ok || strings.TrimSpace(v) == "" {
			missing = append(missing, key)
		}
		return v
	}

	cfg := &Config{
		Port:       getEnv("PORT", "8080"),
		AppEnv:     getEnv("APP_ENV", "development"),
		AppURL:     strings.TrimRight(getEnv("APP_URL", "http://localhost:5173"), "/"),
		CORSOrigin: getEnv("CORS_ORIGIN", "http://localhost:5173"),
		DBURL:      mustEnv("DB_URL"),
		JWTSecret:  getEnv("JWT_SECRET", ""),
		RedisURL:   getEnv("REDIS_URL", ""),

		FirebaseProjectID: getEnv("FIREBASE_PROJECT_ID", ""),

		Paystack: PaystackConfig{
			SecretKey:   getEnv("PAYSTACK_SECRET_KEY", ""),
			PublicKey:   getEnv("PAYSTACK_PUBLIC_KEY", ""),
			BaseURL:     getEnv("PAYSTACK_BASE_URL", ""),
			CallbackURL: getEnv("PAYSTACK_CALLBACK_URL", ""),
		},
		Mpesa: MpesaConfig{
			ConsumerKey:    getEnv("MPESA_CONSUMER_KEY", ""),
			ConsumerSecret: getEnv("MPESA_CONSUMER_SECRET", ""),
			ShortCode:      getEnv("MPESA_SHORTCODE", ""),
			Passkey:        getEnv("MPESA_PASSKEY", ""),
			CallbackURL:    getEnv("MPESA_CALLBACK_URL", ""),
			CallbackToken:  getEnv("MPESA_CALLBACK_TOKEN", ""),
			BaseURL:        getEnv("MPESA_BASE_URL", ""),
			RelayURL:       getEnv("MPESA_RELAY_URL", ""),
		},
		Stripe: StripeConfig{
			SecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
			WebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),
		},
		Meta: settings.MetaSettings{
			AppID:        getEnv("META_APP_ID", ""),
			AppSecret:    getEnv("META_APP_SECRET", ""),
			AccessToken:  getEnv("META_ACCESS_TOKEN", ""),
			WebhookToken: getEnv("META_WEBHOOK_TOKEN", ""),
			PageID:       getEnv("META_PAGE_ID", ""),
		},

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		TrialSweepCron:      getEnv("TRIAL_SWEEP_CRON", "@every 1h"),
		MirrorReconcileCron: getEnv("MIRROR_RECONCILE_CRON", "*/10 * * * *"),
	}

	var err error
	if cfg.GatewayTimeout, err = getDuration("GATEWAY_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.RelayInterval, err = getDuration("RELAY_INTERVAL", 2*time.Second); err != nil {
		return nil, err
	}
	if cfg.JWTSecret == "" && cfg.FirebaseProjectID == "" {
		missing = append(missing, "JWT_SECRET or FIREBASE_PROJECT_ID")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}
	return cfg, nil
}

func (c *Config) IsProduction() bool { return c.AppEnv == "production" }

func getEnv(key string, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return d, nil
}
