// Package config loads server settings from the process environment and an
// optional .env file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	DefaultAccountsURL = "https://accounts.zoho.in/oauth/v2/token"
	DefaultAPIBaseURL  = "https://www.zohoapis.in/books/v3"
	DefaultPort        = "8089"
	DefaultRateLimit   = 10
	DefaultIssuer      = "zoho-books-gateway"

	TransportStdio = "stdio"
	TransportHTTP  = "http"
)

// Config holds everything the server reads from the environment.
type Config struct {
	// Zoho OAuth client
	ClientID     string
	ClientSecret string
	RefreshToken string

	// Upstream endpoints
	AccountsURL    string
	APIBaseURL     string
	OrganizationID string // skips GET /organizations when set

	// CacheTokens reuses an access token until shortly before expiry instead of
	// refreshing on every upstream call.
	CacheTokens bool

	Transport    string
	Port         string
	RateLimitRPS int

	GatewayJWKSURL string
	GatewayIssuer  string

	DatabaseURL string
	LogLevel    string
}

// Load reads .env (if present) and then the environment.
// Values already set in the environment take precedence over .env.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function.
func FromEnv(getenv func(string) string) (*Config, error) {
	cfg := &Config{
		ClientID:       getenv("ZOHO_CLIENT_ID"),
		ClientSecret:   getenv("ZOHO_CLIENT_SECRET"),
		RefreshToken:   getenv("ZOHO_REFRESH_TOKEN"),
		AccountsURL:    orDefault(getenv("ZOHO_ACCOUNTS_URL"), DefaultAccountsURL),
		APIBaseURL:     strings.TrimRight(orDefault(getenv("ZOHO_API_BASE_URL"), DefaultAPIBaseURL), "/"),
		OrganizationID: getenv("ZOHO_ORGANIZATION_ID"),
		Transport:      strings.ToLower(orDefault(getenv("MCP_TRANSPORT"), TransportStdio)),
		Port:           orDefault(getenv("PORT"), DefaultPort),
		RateLimitRPS:   DefaultRateLimit,
		GatewayJWKSURL: getenv("GATEWAY_JWKS_URL"),
		GatewayIssuer:  orDefault(getenv("GATEWAY_ISSUER"), DefaultIssuer),
		DatabaseURL:    getenv("DATABASE_URL"),
		LogLevel:       orDefault(getenv("LOG_LEVEL"), "info"),
	}

	if v := getenv("ZOHO_TOKEN_CACHE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("ZOHO_TOKEN_CACHE: %w", err)
		}
		cfg.CacheTokens = b
	}
	if v := getenv("RATE_LIMIT_RPS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("RATE_LIMIT_RPS must be a positive integer, got %q", v)
		}
		cfg.RateLimitRPS = n
	}

	return cfg, nil
}

// Validate fails when any required credential is missing or the transport is unknown.
func (c *Config) Validate() error {
	var missing []string
	if c.ClientID == "" {
		missing = append(missing, "ZOHO_CLIENT_ID")
	}
	if c.ClientSecret == "" {
		missing = append(missing, "ZOHO_CLIENT_SECRET")
	}
	if c.RefreshToken == "" {
		missing = append(missing, "ZOHO_REFRESH_TOKEN")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variable(s): %s", strings.Join(missing, ", "))
	}

	switch c.Transport {
	case TransportStdio, TransportHTTP:
	default:
		return fmt.Errorf("MCP_TRANSPORT must be %q or %q, got %q", TransportStdio, TransportHTTP, c.Transport)
	}
	return nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
