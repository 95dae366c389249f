// Package config builds runtime configuration from the environment so main
// stays lean. Every knob has a development default; production overrides via
// ONBOARD_* variables.
package config

import (
	"os"
	"strings"
	"time"
)

// Config is the full runtime configuration.
type Config struct {
	Addr            string
	ShutdownTimeout time.Duration

	PostgresDSN  string
	RedisURL     string
	KafkaBrokers []string

	// VaultSigningKey signs the locally minted vault access tokens.
	VaultSigningKey string
	// OperatorSigningKey validates operator bearer tokens; empty disables
	// operator auth (development only).
	OperatorSigningKey string

	TokenRefreshWindow time.Duration

	Gateways GatewayConfig
}

// GatewayConfig holds per-vendor endpoints. An empty base URL selects the
// deterministic in-process mock for that vendor.
type GatewayConfig struct {
	SelfBaseURL      string
	SelfAPIKey       string
	AssistedBaseURL  string
	AssistedAPIKey   string
	WatchlistBaseURL string
	WatchlistAPIKey  string
	BankBaseURL      string
	BankAPIKey       string
	BiometricBaseURL string
	BiometricAPIKey  string
	ESignBaseURL     string
	ESignAPIKey      string
	VaultBaseURL     string
	VaultAPIKey      string
	Timeout          time.Duration
}

// FromEnv builds a Config from environment variables.
func FromEnv() Config {
	return Config{
		Addr:            envOr("ONBOARD_ADDR", ":8080"),
		ShutdownTimeout: durationOr("ONBOARD_SHUTDOWN_TIMEOUT", 10*time.Second),

		PostgresDSN:  os.Getenv("ONBOARD_POSTGRES_DSN"),
		RedisURL:     os.Getenv("ONBOARD_REDIS_URL"),
		KafkaBrokers: splitList(os.Getenv("ONBOARD_KAFKA_BROKERS")),

		VaultSigningKey:    envOr("ONBOARD_VAULT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		OperatorSigningKey: os.Getenv("ONBOARD_OPERATOR_SIGNING_KEY"),

		TokenRefreshWindow: durationOr("ONBOARD_TOKEN_REFRESH_WINDOW", 10*time.Minute),

		Gateways: GatewayConfig{
			SelfBaseURL:      os.Getenv("ONBOARD_SELF_KYC_URL"),
			SelfAPIKey:       os.Getenv("ONBOARD_SELF_KYC_API_KEY"),
			AssistedBaseURL:  os.Getenv("ONBOARD_ASSISTED_KYC_URL"),
			AssistedAPIKey:   os.Getenv("ONBOARD_ASSISTED_KYC_API_KEY"),
			WatchlistBaseURL: os.Getenv("ONBOARD_WATCHLIST_URL"),
			WatchlistAPIKey:  os.Getenv("ONBOARD_WATCHLIST_API_KEY"),
			BankBaseURL:      os.Getenv("ONBOARD_BANK_VERIFY_URL"),
			BankAPIKey:       os.Getenv("ONBOARD_BANK_VERIFY_API_KEY"),
			BiometricBaseURL: os.Getenv("ONBOARD_BIOMETRIC_URL"),
			BiometricAPIKey:  os.Getenv("ONBOARD_BIOMETRIC_API_KEY"),
			ESignBaseURL:     os.Getenv("ONBOARD_ESIGN_URL"),
			ESignAPIKey:      os.Getenv("ONBOARD_ESIGN_API_KEY"),
			VaultBaseURL:     os.Getenv("ONBOARD_VAULT_URL"),
			VaultAPIKey:      os.Getenv("ONBOARD_VAULT_API_KEY"),
			Timeout:          durationOr("ONBOARD_GATEWAY_TIMEOUT", 15*time.Second),
		},
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func durationOr(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
