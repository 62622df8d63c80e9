package shopify

import (
	"errors"
	"time"
)

// ShopifyAPIVersion is the pinned Admin API version. It is never negotiated
// per call.
const ShopifyAPIVersion = "2024-01"

// userAgent identifies all outbound requests
const userAgent = "SyncBridge/1.0"

// accessTokenHeader carries the credential on Admin API calls
const accessTokenHeader = "X-Shopify-Access-Token"

// rateLimitHeader is Shopify's call-limit diagnostic (e.g. "39/40"); read
// for logging only.
const rateLimitHeader = "X-Shopify-Shop-Api-Call-Limit"

// PrivateTokenPrefix is the required prefix of private app access tokens
const PrivateTokenPrefix = "shpat_"

// PrivateTokenMinLength is the minimum accepted private token length
const PrivateTokenMinLength = 36

// Errors for Shopify configuration
var (
	ErrConfigMissingAPIKey        = errors.New("shopify: api key is required")
	ErrConfigMissingAPISecret     = errors.New("shopify: api secret is required")
	ErrConfigMissingStateSecret   = errors.New("shopify: state secret is required")
	ErrConfigMissingWebhookSecret = errors.New("shopify: webhook secret is required")
)

// Config holds credentials and tuning for the Shopify integration
type Config struct {
	// APIKey is the OAuth client ID from the Shopify partner dashboard
	APIKey string
	// APISecret is the OAuth client secret; it also signs callback HMACs
	APISecret string
	// WebhookSecret signs inbound webhook bodies
	WebhookSecret string
	// StateSecret signs handshake state tokens
	StateSecret string
	// RequiredScopes are the permission scopes the product needs
	RequiredScopes []string
	// RedirectBaseURL is the externally reachable base for OAuth callbacks
	// and webhook addresses
	RedirectBaseURL string
	// StateTokenTTL bounds the age of an acceptable state token
	StateTokenTTL time.Duration
	// TimeoutSeconds is the HTTP request timeout
	TimeoutSeconds int
	// MaxRetries bounds retry attempts for rate-limited or transient failures
	MaxRetries int
	// BackoffBaseSeconds is the exponential backoff base (delay =
	// base^attempt seconds)
	BackoffBaseSeconds float64
}

// Validate validates the configuration and applies defaults
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return ErrConfigMissingAPIKey
	}
	if c.APISecret == "" {
		return ErrConfigMissingAPISecret
	}
	if c.StateSecret == "" {
		return ErrConfigMissingStateSecret
	}
	if c.WebhookSecret == "" {
		return ErrConfigMissingWebhookSecret
	}
	if len(c.RequiredScopes) == 0 {
		c.RequiredScopes = []string{"read_orders", "read_products"}
	}
	if c.StateTokenTTL <= 0 {
		c.StateTokenTTL = time.Hour
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 30
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.BackoffBaseSeconds <= 0 {
		c.BackoffBaseSeconds = 2
	}
	return nil
}
