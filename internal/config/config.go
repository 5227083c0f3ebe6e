// AngelaMos | 2026
// config.go

package config

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	App          AppConfig          `koanf:"app"`
	Server       ServerConfig       `koanf:"server"`
	Database     DatabaseConfig     `koanf:"database"`
	Redis        RedisConfig        `koanf:"redis"`
	JWT          JWTConfig          `koanf:"jwt"`
	RateLimit    RateLimitConfig    `koanf:"rate_limit"`
	CORS         CORSConfig         `koanf:"cors"`
	Log          LogConfig          `koanf:"log"`
	Otel         OtelConfig         `koanf:"otel"`
	Admin        AdminConfig        `koanf:"admin"`
	Submission   SubmissionConfig   `koanf:"submission"`
	Mail         MailConfig         `koanf:"mail"`
	Store        StoreConfig        `koanf:"store"`
	Connectivity ConnectivityConfig `koanf:"connectivity"`
	Metrics      MetricsConfig      `koanf:"metrics"`
	Cache        CacheConfig        `koanf:"cache"`
	Client       ClientConfig       `koanf:"client"`
}

type AppConfig struct {
	Name        string `koanf:"name"`
	Version     string `koanf:"version"`
	Environment string `koanf:"environment"`
}

type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	MaxBodyBytes    int64         `koanf:"max_body_bytes"`
}

type DatabaseConfig struct {
	URL             string        `koanf:"url"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `koanf:"conn_max_idle_time"`
	AutoMigrate     bool          `koanf:"auto_migrate"`
}

type RedisConfig struct {
	URL          string `koanf:"url"`
	PoolSize     int    `koanf:"pool_size"`
	MinIdleConns int    `koanf:"min_idle_conns"`
}

type JWTConfig struct {
	PrivateKeyPath     string        `koanf:"private_key_path"`
	PublicKeyPath      string        `koanf:"public_key_path"`
	AccessTokenExpire  time.Duration `koanf:"access_token_expire"`
	RefreshTokenExpire time.Duration `koanf:"refresh_token_expire"`
	Issuer             string        `koanf:"issuer"`
	Audience           string        `koanf:"audience"`
}

type RateLimitConfig struct {
	Requests         int           `koanf:"requests"`
	Window           time.Duration `koanf:"window"`
	Burst            int           `koanf:"burst"`
	BulkEmailPerHour int           `koanf:"bulk_email_per_hour"`
}

type CORSConfig struct {
	AllowedOrigins   []string `koanf:"allowed_origins"`
	AllowedMethods   []string `koanf:"allowed_methods"`
	AllowedHeaders   []string `koanf:"allowed_headers"`
	AllowCredentials bool     `koanf:"allow_credentials"`
	MaxAge           int      `koanf:"max_age"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

type OtelConfig struct {
	Endpoint    string  `koanf:"endpoint"`
	ServiceName string  `koanf:"service_name"`
	Enabled     bool    `koanf:"enabled"`
	Insecure    bool    `koanf:"insecure"`
	SampleRate  float64 `koanf:"sample_rate"`
}

// AdminConfig pins accounts on EmailDomain to the admin role.
type AdminConfig struct {
	EmailDomain string `koanf:"email_domain"`
}

type SubmissionConfig struct {
	RemoteURL       string        `koanf:"remote_url"`
	Timeout         time.Duration `koanf:"timeout"`
	DuplicateWindow time.Duration `koanf:"duplicate_window"`
	MessageMin      int           `koanf:"message_min"`
	MessageMax      int           `koanf:"message_max"`
	FallbackDelay   time.Duration `koanf:"fallback_delay"`
}

type MailConfig struct {
	SendGridKey  string `koanf:"sendgrid_key"`
	SendGridFrom string `koanf:"sendgrid_from"`
	SendGridHost string `koanf:"sendgrid_host"`
	SendGridPort int    `koanf:"sendgrid_port"`
	SMTPUser     string `koanf:"smtp_user"`
	SMTPPass     string `koanf:"smtp_pass"`
	SMTPHost     string `koanf:"smtp_host"`
	SMTPPort     int    `koanf:"smtp_port"`
	Signature    string `koanf:"signature"`
	VerifyURL    string `koanf:"verify_url"`
}

type StoreConfig struct {
	Driver string `koanf:"driver"`
	Dir    string `koanf:"dir"`
	Prefix string `koanf:"prefix"`
}

type ConnectivityConfig struct {
	ProbeInterval time.Duration `koanf:"probe_interval"`
	ProbeTimeout  time.Duration `koanf:"probe_timeout"`
}

type MetricsConfig struct {
	Enabled bool   `koanf:"enabled"`
	Path    string `koanf:"path"`
}

type CacheConfig struct {
	MetricsTTL time.Duration `koanf:"metrics_ttl"`
	RatingsTTL time.Duration `koanf:"ratings_ttl"`
}

// ClientConfig is read by nfpctl only.
type ClientConfig struct {
	APIURL          string        `koanf:"api_url"`
	Timeout         time.Duration `koanf:"timeout"`
	CredentialsPath string        `koanf:"credentials_path"`
}

var (
	cfg  *Config
	once sync.Once
)

// Load reads the API server configuration once per process.
func Load(configPath string) (*Config, error) {
	var loadErr error

	once.Do(func() {
		cfg, loadErr = build(configPath, validate)
	})

	if loadErr != nil {
		return nil, loadErr
	}

	return cfg, nil
}

// LoadClient reads the configuration for nfpctl. It skips server-only checks.
func LoadClient(configPath string) (*Config, error) {
	return build(configPath, validateClient)
}

func build(configPath string, check func(*Config) error) (*Config, error) {
	k := koanf.New(".")

	if err := loadDefaults(k); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	if err := k.Load(env.Provider("", ".", envKeyReplacer), nil); err != nil {
		return nil, fmt.Errorf("load env vars: %w", err)
	}

	c := &Config{}
	if err := k.Unmarshal("", c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	c.Admin.EmailDomain = strings.ToLower(strings.TrimPrefix(
		strings.TrimSpace(c.Admin.EmailDomain), "@"))

	if err := check(c); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return c, nil
}

func loadDefaults(k *koanf.Koanf) error {
	defaults := map[string]any{
		"app.name":        "NFP Health Initiative",
		"app.version":     "1.0.0",
		"app.environment": "development",

		"server.host":             "0.0.0.0",
		"server.port":             8080,
		"server.read_timeout":     "30s",
		"server.write_timeout":    "30s",
		"server.idle_timeout":     "120s",
		"server.shutdown_timeout": "15s",
		"server.max_body_bytes":   1 << 20,

		"database.max_open_conns":     25,
		"database.max_idle_conns":     5,
		"database.conn_max_lifetime":  "1h",
		"database.conn_max_idle_time": "30m",
		"database.auto_migrate":       true,

		"redis.pool_size":      10,
		"redis.min_idle_conns": 5,

		"jwt.access_token_expire":  "15m",
		"jwt.refresh_token_expire": "168h",
		"jwt.issuer":               "nfp-backend",
		"jwt.audience":             "nfp-backend-api",
		"jwt.private_key_path":     "keys/private.pem",
		"jwt.public_key_path":      "keys/public.pem",

		"rate_limit.requests": 100,
		"rate_limit.window":   "1m",
		"rate_limit.burst":    20,

		"rate_limit.bulk_email_per_hour": 10,

		"cors.allowed_origins": []string{"*"},
		"cors.allowed_methods": []string{
			"GET",
			"POST",
			"PUT",
			"PATCH",
			"DELETE",
			"OPTIONS",
		},
		"cors.allowed_headers": []string{
			"Accept",
			"Authorization",
			"Content-Type",
			"X-Request-ID",
		},
		"cors.allow_credentials": false,
		"cors.max_age":           300,

		"log.level":  "info",
		"log.format": "json",

		"otel.enabled":      false,
		"otel.insecure":     true,
		"otel.sample_rate":  0.1,
		"otel.service_name": "nfp-backend",

		"admin.email_domain": "monash.edu",

		"submission.timeout":          "10s",
		"submission.duplicate_window": "2m",
		"submission.message_min":      20,
		"submission.message_max":      500,
		"submission.fallback_delay":   "0s",

		"mail.sendgrid_host": "smtp.sendgrid.net",
		"mail.sendgrid_port": 587,
		"mail.smtp_host":     "smtp.gmail.com",
		"mail.smtp_port":     587,
		"mail.signature":     "— NFP Health Initiative",

		"store.driver": "file",
		"store.dir":    ".nfp",
		"store.prefix": "nfp",

		"connectivity.probe_interval": "15s",
		"connectivity.probe_timeout":  "3s",

		"metrics.enabled": true,
		"metrics.path":    "/metrics",

		"cache.metrics_ttl": "30s",
		"cache.ratings_ttl": "15s",

		"client.api_url":          "http://localhost:8080",
		"client.timeout":          "15s",
		"client.credentials_path": ".nfp/credentials.json",
	}

	for key, value := range defaults {
		if err := k.Set(key, value); err != nil {
			return fmt.Errorf("set default %s: %w", key, err)
		}
	}

	return nil
}

var envKeyMap = map[string]string{
	"DATABASE_URL":                "database.url",
	"DATABASE_AUTO_MIGRATE":       "database.auto_migrate",
	"REDIS_URL":                   "redis.url",
	"ENVIRONMENT":                 "app.environment",
	"HOST":                        "server.host",
	"PORT":                        "server.port",
	"LOG_LEVEL":                   "log.level",
	"LOG_FORMAT":                  "log.format",
	"JWT_PRIVATE_KEY_PATH":        "jwt.private_key_path",
	"JWT_PUBLIC_KEY_PATH":         "jwt.public_key_path",
	"JWT_ACCESS_TOKEN_EXPIRE":     "jwt.access_token_expire",
	"JWT_REFRESH_TOKEN_EXPIRE":    "jwt.refresh_token_expire",
	"JWT_ISSUER":                  "jwt.issuer",
	"JWT_AUDIENCE":                "jwt.audience",
	"RATE_LIMIT_REQUESTS":         "rate_limit.requests",
	"RATE_LIMIT_WINDOW":           "rate_limit.window",
	"RATE_LIMIT_BURST":            "rate_limit.burst",
	"RATE_LIMIT_BULK_EMAIL":       "rate_limit.bulk_email_per_hour",
	"OTEL_ENDPOINT":               "otel.endpoint",
	"OTEL_EXPORTER_OTLP_ENDPOINT": "otel.endpoint",
	"OTEL_SERVICE_NAME":           "otel.service_name",
	"OTEL_ENABLED":                "otel.enabled",
	"OTEL_INSECURE":               "otel.insecure",
	"OTEL_SAMPLE_RATE":            "otel.sample_rate",
	"ADMIN_EMAIL_DOMAIN":          "admin.email_domain",
	"SUBMIT_URL":                  "submission.remote_url",
	"SUBMIT_TIMEOUT":              "submission.timeout",
	"SUBMIT_DUPLICATE_WINDOW":     "submission.duplicate_window",
	"SUBMIT_MESSAGE_MIN":          "submission.message_min",
	"SUBMIT_MESSAGE_MAX":          "submission.message_max",
	"SENDGRID_API_KEY":            "mail.sendgrid_key",
	"SENDGRID_FROM":               "mail.sendgrid_from",
	"MAIL_USER":                   "mail.smtp_user",
	"MAIL_PASS":                   "mail.smtp_pass",
	"MAIL_HOST":                   "mail.smtp_host",
	"MAIL_PORT":                   "mail.smtp_port",
	"MAIL_VERIFY_URL":             "mail.verify_url",
	"STORE_DRIVER":                "store.driver",
	"STORE_DIR":                   "store.dir",
	"STORE_PREFIX":                "store.prefix",
	"PROBE_INTERVAL":              "connectivity.probe_interval",
	"METRICS_ENABLED":             "metrics.enabled",
	"NFP_API_URL":                 "client.api_url",
	"NFP_CREDENTIALS_PATH":        "client.credentials_path",
}

func envKeyReplacer(s string) string {
	if mapped, ok := envKeyMap[s]; ok {
		return mapped
	}
	return ""
}

func validate(c *Config) error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.JWT.PrivateKeyPath == "" {
		return fmt.Errorf("JWT_PRIVATE_KEY_PATH is required")
	}

	if c.JWT.PublicKeyPath == "" {
		return fmt.Errorf("JWT_PUBLIC_KEY_PATH is required")
	}

	if c.CORS.AllowCredentials {
		for _, origin := range c.CORS.AllowedOrigins {
			if origin == "*" {
				return fmt.Errorf(
					"CORS wildcard '*' cannot be used with AllowCredentials",
				)
			}
		}
	}

	if c.App.Environment == "production" {
		if c.Otel.Enabled && c.Otel.Insecure {
			return fmt.Errorf("OTEL_INSECURE must be false in production")
		}
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server.read_timeout must be positive")
	}

	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server.write_timeout must be positive")
	}

	if c.RateLimit.BulkEmailPerHour <= 0 {
		return fmt.Errorf("rate_limit.bulk_email_per_hour must be positive")
	}

	return validateShared(c)
}

func validateClient(c *Config) error {
	if c.Client.APIURL == "" && c.Submission.RemoteURL == "" {
		return fmt.Errorf("NFP_API_URL or SUBMIT_URL is required")
	}

	switch c.Store.Driver {
	case "file":
		if c.Store.Dir == "" {
			return fmt.Errorf("store.dir is required for the file driver")
		}
	case "redis":
		if c.Redis.URL == "" {
			return fmt.Errorf("REDIS_URL is required for the redis store driver")
		}
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}

	return validateShared(c)
}

func validateShared(c *Config) error {
	if c.Admin.EmailDomain == "" {
		return fmt.Errorf("ADMIN_EMAIL_DOMAIN is required")
	}

	if c.Submission.MessageMin < 0 ||
		c.Submission.MessageMax < c.Submission.MessageMin {
		return fmt.Errorf("submission message bounds are inconsistent")
	}

	if c.Submission.DuplicateWindow < 0 {
		return fmt.Errorf("submission.duplicate_window must not be negative")
	}

	return nil
}

func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}
