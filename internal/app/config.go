package app

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/fmc-ops/opsdash/internal/diagnostics"
)

// EnvFiles are loaded in order before the environment is read. Variables that
// are already set are never overwritten.
var EnvFiles = []string{".env.local", ".env"}

// Config holds runtime configuration for the application.
type Config struct {
	AppEnv            string        `envconfig:"APP_ENV" default:"development"`
	AppAddr           string        `envconfig:"APP_ADDR" default:":8080"`
	AppReadTimeout    time.Duration `envconfig:"APP_READ_TIMEOUT" default:"15s"`
	AppWriteTimeout   time.Duration `envconfig:"APP_WRITE_TIMEOUT" default:"15s"`
	AppRequestTimeout time.Duration `envconfig:"APP_REQUEST_TIMEOUT" default:"30s"`
	CORSOrigins       []string      `envconfig:"APP_CORS_ORIGINS" default:"*"`

	LogFormat string `envconfig:"LOG_FORMAT" default:"pretty"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`

	BackendURL          string        `envconfig:"BACKEND_URL"`
	BackendAPIKey       string        `envconfig:"BACKEND_API_KEY"`
	BackendJWTSecret    string        `envconfig:"BACKEND_JWT_SECRET"`
	BackendQueryTimeout time.Duration `envconfig:"BACKEND_QUERY_TIMEOUT" default:"15s"`

	UseMockData     bool          `envconfig:"USE_MOCK_DATA" default:"true"`
	EnableRealtime  bool          `envconfig:"ENABLE_REALTIME" default:"true"`
	RealtimeChannel string        `envconfig:"REALTIME_CHANNEL" default:"opsdash_changes"`
	RefreshDebounce time.Duration `envconfig:"REFRESH_DEBOUNCE" default:"2s"`

	WebhookURL     string        `envconfig:"WEBHOOK_URL"`
	UploadTimeout  time.Duration `envconfig:"UPLOAD_TIMEOUT" default:"5m"`
	UploadMaxBytes int64         `envconfig:"UPLOAD_MAX_BYTES" default:"10485760"`

	RedisAddr         string        `envconfig:"REDIS_ADDR"`
	WorkerConcurrency int           `envconfig:"WORKER_CONCURRENCY" default:"4"`
	WorkerMetricsAddr string        `envconfig:"WORKER_METRICS_ADDR" default:":9091"`
	AnalyticsCacheTTL time.Duration `envconfig:"ANALYTICS_CACHE_TTL" default:"10m"`

	S3Bucket        string `envconfig:"S3_BUCKET"`
	S3Region        string `envconfig:"S3_REGION" default:"us-east-1"`
	S3Endpoint      string `envconfig:"S3_ENDPOINT"`
	S3AccessKey     string `envconfig:"S3_ACCESS_KEY"`
	S3SecretKey     string `envconfig:"S3_SECRET_KEY"`
	S3PublicBaseURL string `envconfig:"S3_PUBLIC_BASE_URL"`

	HighValueThreshold float64 `envconfig:"HIGH_VALUE_THRESHOLD" default:"50000"`
	DefaultCurrency    string  `envconfig:"DEFAULT_CURRENCY" default:"USD"`
}

// LoadConfig reads .env files when present and then the environment.
func LoadConfig() (*Config, error) {
	for _, name := range EnvFiles {
		if err := godotenv.Load(name); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("app: load %s: %w", name, err)
		}
	}
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	cfg.WebhookURL = strings.TrimRight(strings.TrimSpace(cfg.WebhookURL), "/")
	cfg.DefaultCurrency = strings.ToUpper(strings.TrimSpace(cfg.DefaultCurrency))
	return &cfg, nil
}

// IsProduction returns true when the application runs in production.
func (c *Config) IsProduction() bool {
	return c != nil && c.AppEnv == "production"
}

// Mode names the data source for banners and diagnostics.
func (c *Config) Mode() string {
	if c.UseMockData {
		return "mock"
	}
	return "remote"
}

// Validate lists configuration problems. None of them stops the process:
// remote mode without credentials still serves, and every data call reports
// the failure through its envelope.
func (c *Config) Validate() []diagnostics.Issue {
	var issues []diagnostics.Issue
	if !c.UseMockData {
		if c.BackendURL == "" {
			issues = append(issues, diagnostics.Issue{Field: "BACKEND_URL", Message: "Backend URL is not configured"})
		} else if _, err := pgxpool.ParseConfig(c.BackendURL); err != nil {
			issues = append(issues, diagnostics.Issue{Field: "BACKEND_URL", Message: "Backend URL is not a valid Postgres connection string"})
		}
		if c.BackendAPIKey == "" {
			issues = append(issues, diagnostics.Issue{Field: "BACKEND_API_KEY", Message: "Backend API key is not configured"})
		}
	}
	if c.WebhookURL == "" && !c.UseMockData {
		issues = append(issues, diagnostics.Issue{Field: "WEBHOOK_URL", Message: "Document webhook URL not configured"})
	}
	if c.HighValueThreshold <= 0 {
		issues = append(issues, diagnostics.Issue{Field: "HIGH_VALUE_THRESHOLD", Message: "High value threshold must be positive"})
	}
	if len(c.DefaultCurrency) != 3 {
		issues = append(issues, diagnostics.Issue{Field: "DEFAULT_CURRENCY", Message: "Currency must be a three letter ISO code"})
	}
	if c.UploadMaxBytes <= 0 {
		issues = append(issues, diagnostics.Issue{Field: "UPLOAD_MAX_BYTES", Message: "Upload limit must be positive"})
	}
	return issues
}
