// Package config loads the Guardian service's runtime configuration from
// environment variables, in the teacher's idiom: a typed Config struct
// populated by Load, getEnv/getEnvInt helpers, and an optional .env file
// for local development.
package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all Guardian configuration.
type Config struct {
	// ChainRPCURL is the Ethereum JSON-RPC endpoint EthChainView dials.
	// Empty means run against DevChainView instead — a deterministic,
	// in-memory ChainView for local development with no live chain.
	ChainRPCURL string

	// ChainID is the chain id this Guardian serves requests for
	// (spec §3: params.chainId must equal this value). When ChainRPCURL
	// is set, it must agree with what the RPC endpoint itself reports.
	ChainID uint64

	// HostDomain is this Guardian's provider identifier, matched against
	// "bubble"-type delegation permissions (spec §3, §4.4).
	HostDomain string

	// UpstreamDataServerURL, if set, points Remote at an out-of-process
	// storage backend. Empty means use the in-memory Memory DataServer.
	UpstreamDataServerURL string

	// HTTPListenAddr is the address the JSON-RPC 2.0 HTTP transport binds.
	HTTPListenAddr string

	// WSListenAddr is the address the WebSocket transport binds.
	WSListenAddr string

	// SubscriptionTokenSecret is the HMAC-SHA256 key used to sign
	// subscriptionId correlation tokens (internal/subscription.TokenIssuer).
	SubscriptionTokenSecret []byte

	// SubscriptionTokenTTL bounds how long an issued subscriptionId token
	// remains acceptable to Unsubscribe. Zero means tokens never expire on
	// their own timeline (the ACC permission re-check is what actually
	// revokes access).
	SubscriptionTokenTTL time.Duration

	// LogLevel is the minimum slog level emitted by the transport/cmd
	// layer. The core guardian package itself never logs (spec §7).
	LogLevel string
}

// Load reads configuration from environment variables. A .env file in the
// working directory is loaded first if present (dev convenience; no-op in
// production where real env vars are already set).
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		ChainRPCURL:           getEnv("CHAIN_RPC_URL", ""),
		ChainID:               uint64(getEnvInt("CHAIN_ID", 1)),
		HostDomain:            getEnv("HOST_DOMAIN", "guardian.bubbleprotocol.com"),
		UpstreamDataServerURL: getEnv("DATA_SERVER_URL", ""),
		HTTPListenAddr:        getEnv("HTTP_LISTEN_ADDR", ":8100"),
		WSListenAddr:          getEnv("WS_LISTEN_ADDR", ":8101"),
		SubscriptionTokenTTL:  time.Duration(getEnvInt("SUBSCRIPTION_TOKEN_TTL_HOURS", 0)) * time.Hour,
		LogLevel:              getEnv("LOG_LEVEL", "info"),
	}

	jwtHex := getEnv("SUBSCRIPTION_TOKEN_SECRET", "")
	if jwtHex == "" {
		return nil, fmt.Errorf("SUBSCRIPTION_TOKEN_SECRET env var is required (32-byte hex)")
	}
	secret, err := hex.DecodeString(jwtHex)
	if err != nil {
		return nil, fmt.Errorf("SUBSCRIPTION_TOKEN_SECRET must be valid hex: %w", err)
	}
	if len(secret) < 32 {
		return nil, fmt.Errorf("SUBSCRIPTION_TOKEN_SECRET must be at least 32 bytes (64 hex chars)")
	}
	cfg.SubscriptionTokenSecret = secret

	if cfg.HostDomain == "" {
		return nil, fmt.Errorf("HOST_DOMAIN env var must not be empty")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := getEnv(key, "")
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
