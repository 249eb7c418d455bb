package config

import (
	"os"
	"strings"
	"time"
)

// Payment provider credentials are collected here once at startup instead of
// being read from the environment inside handlers. A provider with missing
// credentials stays in the config with Configured=false and its adapter
// reports ProviderUnavailableError, so misconfiguration surfaces as a typed
// error instead of a nil panic.

type PaygateConfig struct {
	Configured bool
	SecretKey  string
	APIBase    string
}

type KkiapayConfig struct {
	Configured bool
	SecretKey  string
	PublicKey  string
	APIBase    string
}

type FedapayConfig struct {
	Configured  bool
	APIKey      string
	Environment string // sandbox | live
	APIBase     string
}

type PaymentProviderConfig struct {
	Paygate PaygateConfig
	Kkiapay KkiapayConfig
	Fedapay FedapayConfig

	FrontendURL string
	BackendURL  string

	// Bound timeout for all server-to-server provider calls.
	HTTPTimeout time.Duration
}

func LoadPaymentProviderConfig() PaymentProviderConfig {
	cfg := PaymentProviderConfig{
		FrontendURL: envOrDefault("FRONTEND_URL", "http://localhost:5173"),
		BackendURL:  strings.TrimRight(os.Getenv("BACKEND_URL"), "/"),
		HTTPTimeout: time.Duration(intFromEnv("PROVIDER_HTTP_TIMEOUT_SECONDS", 15)) * time.Second,
	}

	paygateSecret := os.Getenv("PAYGATE_SECRET_KEY")
	cfg.Paygate = PaygateConfig{
		Configured: paygateSecret != "",
		SecretKey:  paygateSecret,
		APIBase:    envOrDefault("PAYGATE_API_URL", "https://api.paygateglobal.io"),
	}

	kkiapaySecret := os.Getenv("KKIAPAY_SECRET_KEY")
	kkiapayPublic := os.Getenv("KKIAPAY_PUBLIC_KEY")
	cfg.Kkiapay = KkiapayConfig{
		Configured: kkiapaySecret != "" && kkiapayPublic != "",
		SecretKey:  kkiapaySecret,
		PublicKey:  kkiapayPublic,
		APIBase:    envOrDefault("KKIAPAY_API_URL", "https://api.kkiapay.me"),
	}

	fedapayKey := os.Getenv("FEDAPAY_API_KEY")
	fedapayEnv := envOrDefault("FEDAPAY_ENVIRONMENT", "sandbox")
	fedapayBase := "https://sandbox-api.fedapay.com"
	if fedapayEnv == "live" {
		fedapayBase = "https://api.fedapay.com"
	}
	cfg.Fedapay = FedapayConfig{
		Configured:  fedapayKey != "",
		APIKey:      fedapayKey,
		Environment: fedapayEnv,
		APIBase:     envOrDefault("FEDAPAY_API_URL", fedapayBase),
	}

	return cfg
}

func envOrDefault(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}
