package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Auth      AuthConfig
	Log       LogConfig
	HTTP      HTTPConfig
	Shopify   ShopifyConfig
	Sync      SyncConfig
	Cron      CronConfig
	Telemetry TelemetryConfig
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
	// BaseURL is the externally reachable origin, used to build OAuth
	// redirect and webhook delivery addresses
	BaseURL string
	// FrontendURL is where OAuth callback results redirect the browser
	FrontendURL string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// JWTConfig holds JWT settings
type JWTConfig struct {
	Secret                string
	AccessTokenExpiration time.Duration
	Issuer                string
}

// AuthConfig holds non-session authentication settings
type AuthConfig struct {
	// InternalServiceToken authorizes service-to-service sync triggers
	InternalServiceToken string
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int
	MaxBodySize       int64
	RateLimitEnabled  bool
	RateLimitRequests int
	RateLimitWindow   time.Duration
	CORSAllowOrigins  []string
	CORSAllowMethods  []string
	CORSAllowHeaders  []string
	TrustedProxies    []string
}

// ShopifyConfig holds platform app credentials and client tuning
type ShopifyConfig struct {
	APIKey             string
	APISecret          string
	WebhookSecret      string
	StateSecret        string
	RequiredScopes     []string
	RedirectBaseURL    string
	StateTokenTTL      time.Duration
	TimeoutSeconds     int
	MaxRetries         int
	BackoffBaseSeconds float64
}

// SyncConfig holds data sync coordination settings
type SyncConfig struct {
	// StaleLockTimeout is how long a held sync lock is honored before it is
	// treated as abandoned and reclaimable
	StaleLockTimeout time.Duration
	// IncrementalLookbackDays bounds the window of a routine sync
	IncrementalLookbackDays int
	// InitialLookbackDays bounds the window of a first or full sync
	InitialLookbackDays int
	// WebhookSetupWait bounds how long a trigger waits for webhook
	// registration before continuing detached
	WebhookSetupWait time.Duration
	// WorkerConcurrency is the background sync worker pool size
	WorkerConcurrency int
}

// CronConfig holds the periodic sync cycle configuration
type CronConfig struct {
	Enabled bool
	// Interval between sync cycles
	Interval time.Duration
	// BatchSize is both the partition size and per-batch parallelism
	BatchSize int
	// InterBatchDelay is the pause between consecutive batches
	InterBatchDelay time.Duration
	// CronKey is the shared secret accepted on the cycle trigger endpoint
	CronKey string
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool
	CollectorEndpoint string  // OTEL Collector endpoint (e.g., "localhost:4317")
	SamplingRatio     float64 // Sampling ratio (0.0-1.0, 1.0 = 100%)
	ServiceName       string
	Insecure          bool // Use insecure (non-TLS) connection (development only)
	DBTraceEnabled    bool // Enable database query tracing (otelgorm)
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with SYNCBRIDGE_ prefix (e.g., SYNCBRIDGE_DATABASE_PASSWORD)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("./backend")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	v.SetEnvPrefix("SYNCBRIDGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name:        v.GetString("app.name"),
			Env:         v.GetString("app.env"),
			Port:        v.GetString("app.port"),
			BaseURL:     v.GetString("app.base_url"),
			FrontendURL: v.GetString("app.frontend_url"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		JWT: JWTConfig{
			Secret:                v.GetString("jwt.secret"),
			AccessTokenExpiration: v.GetDuration("jwt.access_token_expiration"),
			Issuer:                v.GetString("jwt.issuer"),
		},
		Auth: AuthConfig{
			InternalServiceToken: v.GetString("auth.internal_service_token"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:       v.GetDuration("http.read_timeout"),
			WriteTimeout:      v.GetDuration("http.write_timeout"),
			IdleTimeout:       v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes:    v.GetInt("http.max_header_bytes"),
			MaxBodySize:       v.GetInt64("http.max_body_size"),
			RateLimitEnabled:  v.GetBool("http.rate_limit_enabled"),
			RateLimitRequests: v.GetInt("http.rate_limit_requests"),
			RateLimitWindow:   v.GetDuration("http.rate_limit_window"),
			CORSAllowOrigins:  v.GetStringSlice("http.cors_allow_origins"),
			CORSAllowMethods:  v.GetStringSlice("http.cors_allow_methods"),
			CORSAllowHeaders:  v.GetStringSlice("http.cors_allow_headers"),
			TrustedProxies:    v.GetStringSlice("http.trusted_proxies"),
		},
		Shopify: ShopifyConfig{
			APIKey:             v.GetString("shopify.api_key"),
			APISecret:          v.GetString("shopify.api_secret"),
			WebhookSecret:      v.GetString("shopify.webhook_secret"),
			StateSecret:        v.GetString("shopify.state_secret"),
			RequiredScopes:     v.GetStringSlice("shopify.required_scopes"),
			RedirectBaseURL:    v.GetString("shopify.redirect_base_url"),
			StateTokenTTL:      v.GetDuration("shopify.state_token_ttl"),
			TimeoutSeconds:     v.GetInt("shopify.timeout_seconds"),
			MaxRetries:         v.GetInt("shopify.max_retries"),
			BackoffBaseSeconds: v.GetFloat64("shopify.backoff_base_seconds"),
		},
		Sync: SyncConfig{
			StaleLockTimeout:        v.GetDuration("sync.stale_lock_timeout"),
			IncrementalLookbackDays: v.GetInt("sync.incremental_lookback_days"),
			InitialLookbackDays:     v.GetInt("sync.initial_lookback_days"),
			WebhookSetupWait:        v.GetDuration("sync.webhook_setup_wait"),
			WorkerConcurrency:       v.GetInt("sync.worker_concurrency"),
		},
		Cron: CronConfig{
			Enabled:         v.GetBool("cron.enabled"),
			Interval:        v.GetDuration("cron.interval"),
			BatchSize:       v.GetInt("cron.batch_size"),
			InterBatchDelay: v.GetDuration("cron.inter_batch_delay"),
			CronKey:         v.GetString("cron.cron_key"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			DBTraceEnabled:    v.GetBool("telemetry.db_trace_enabled"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func defaultString(target *string, fallback string) {
	if *target == "" {
		*target = fallback
	}
}

func defaultInt(target *int, fallback int) {
	if *target == 0 {
		*target = fallback
	}
}

func defaultDuration(target *time.Duration, fallback time.Duration) {
	if *target == 0 {
		*target = fallback
	}
}

// applyDefaults fills in every zero-valued field that has a sensible default.
// Secrets never get one; production validation catches them instead.
func applyDefaults(cfg *Config) {
	defaultString(&cfg.App.Name, "syncbridge-backend")
	defaultString(&cfg.App.Env, "development")
	defaultString(&cfg.App.Port, "8080")
	defaultString(&cfg.App.BaseURL, "http://localhost:"+cfg.App.Port)
	defaultString(&cfg.App.FrontendURL, cfg.App.BaseURL)

	defaultString(&cfg.Database.Host, "localhost")
	defaultInt(&cfg.Database.Port, 5432)
	defaultString(&cfg.Database.User, "postgres")
	defaultString(&cfg.Database.DBName, "syncbridge")
	defaultString(&cfg.Database.SSLMode, "disable")
	defaultInt(&cfg.Database.MaxOpenConns, 25)
	defaultInt(&cfg.Database.MaxIdleConns, 5)
	defaultInt(&cfg.Database.ConnMaxLifetime, 60)
	defaultInt(&cfg.Database.ConnMaxIdleTime, 30)

	defaultString(&cfg.Redis.Host, "localhost")
	defaultInt(&cfg.Redis.Port, 6379)

	defaultDuration(&cfg.JWT.AccessTokenExpiration, 15*time.Minute)
	defaultString(&cfg.JWT.Issuer, "syncbridge-backend")

	defaultString(&cfg.Log.Level, "info")
	defaultString(&cfg.Log.Format, "console")
	defaultString(&cfg.Log.Output, "stdout")

	defaultDuration(&cfg.HTTP.ReadTimeout, 15*time.Second)
	defaultDuration(&cfg.HTTP.WriteTimeout, 15*time.Second)
	defaultDuration(&cfg.HTTP.IdleTimeout, 60*time.Second)
	defaultInt(&cfg.HTTP.MaxHeaderBytes, 1<<20)
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 10 << 20
	}
	defaultInt(&cfg.HTTP.RateLimitRequests, 100)
	defaultDuration(&cfg.HTTP.RateLimitWindow, time.Minute)
	// CORS origins deliberately have no fallback. An empty list means no
	// cross-origin requests are allowed until explicitly configured.
	if len(cfg.HTTP.CORSAllowMethods) == 0 {
		cfg.HTTP.CORSAllowMethods = []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"}
	}
	if len(cfg.HTTP.CORSAllowHeaders) == 0 {
		cfg.HTTP.CORSAllowHeaders = []string{"Content-Type", "Authorization", "X-Request-ID"}
	}

	if len(cfg.Shopify.RequiredScopes) == 0 {
		cfg.Shopify.RequiredScopes = []string{"read_orders", "read_products"}
	}
	defaultString(&cfg.Shopify.RedirectBaseURL, cfg.App.BaseURL)
	defaultDuration(&cfg.Shopify.StateTokenTTL, time.Hour)
	defaultInt(&cfg.Shopify.TimeoutSeconds, 30)
	defaultInt(&cfg.Shopify.MaxRetries, 3)
	if cfg.Shopify.BackoffBaseSeconds == 0 {
		cfg.Shopify.BackoffBaseSeconds = 2
	}

	defaultDuration(&cfg.Sync.StaleLockTimeout, 30*time.Minute)
	defaultInt(&cfg.Sync.IncrementalLookbackDays, 30)
	defaultInt(&cfg.Sync.InitialLookbackDays, 365)
	defaultDuration(&cfg.Sync.WebhookSetupWait, 5*time.Second)
	defaultInt(&cfg.Sync.WorkerConcurrency, 10)

	defaultDuration(&cfg.Cron.Interval, time.Hour)
	defaultInt(&cfg.Cron.BatchSize, 5)
	defaultDuration(&cfg.Cron.InterBatchDelay, time.Second)

	defaultString(&cfg.Telemetry.CollectorEndpoint, "localhost:4317")
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	defaultString(&cfg.Telemetry.ServiceName, "syncbridge-backend")
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}

	if c.App.Env == "production" {
		if c.JWT.Secret == "" {
			return fmt.Errorf("jwt.secret is required in production")
		}
		if len(c.JWT.Secret) < 32 {
			return fmt.Errorf("jwt.secret must be at least 32 characters in production")
		}
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
		if c.Shopify.APIKey == "" || c.Shopify.APISecret == "" {
			return fmt.Errorf("shopify.api_key and shopify.api_secret are required in production")
		}
		if len(c.Shopify.StateSecret) < 32 {
			return fmt.Errorf("shopify.state_secret must be at least 32 characters in production")
		}
		if c.Shopify.WebhookSecret == "" {
			return fmt.Errorf("shopify.webhook_secret is required in production")
		}
		if c.Cron.Enabled && c.Cron.CronKey == "" {
			return fmt.Errorf("cron.cron_key is required when cron is enabled in production")
		}
		for _, origin := range c.HTTP.CORSAllowOrigins {
			if origin == "*" {
				return fmt.Errorf("cors_allow_origins cannot be '*' in production (use specific origins)")
			}
		}
	}

	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}

	return nil
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// RedisAddr returns the host:port address for the redis client
func (r *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}
