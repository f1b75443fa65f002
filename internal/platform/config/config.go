package config

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/caarlos0/env/v11"
)

// Storage drivers accepted by LEAD_STORAGE_DRIVER.
const (
	DriverMemory   = "memory"
	DriverRedis    = "redis"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Server captures process-level configuration.
type Server struct {
	Addr     string `env:"LEAD_ADDR" envDefault:":8080"`
	LogLevel string `env:"LEAD_LOG_LEVEL" envDefault:"info"`

	HTTP      HTTP
	Admin     Admin
	Remote    Remote
	Storage   Storage
	Redis     RedisConfig
	Kafka     Kafka
	Capture   Capture
	RateLimit RateLimit
	Otel      Otel
}

// HTTP tunes the listener. There is no write timeout: the export endpoint
// may wait on a slow spreadsheet.
type HTTP struct {
	ReadHeaderTimeout time.Duration `env:"LEAD_HTTP_READ_HEADER_TIMEOUT" envDefault:"5s"`
	ReadTimeout       time.Duration `env:"LEAD_HTTP_READ_TIMEOUT" envDefault:"15s"`
	IdleTimeout       time.Duration `env:"LEAD_HTTP_IDLE_TIMEOUT" envDefault:"60s"`
	ShutdownTimeout   time.Duration `env:"LEAD_HTTP_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// Admin gates the dashboard. The secret is a UI gate, not a security boundary.
type Admin struct {
	Secret        string        `env:"LEAD_ADMIN_SECRET" envDefault:"change-me"`
	JWTSigningKey string        `env:"LEAD_JWT_SIGNING_KEY" envDefault:"dev-secret-key-change-in-production"`
	SessionTTL    time.Duration `env:"LEAD_ADMIN_SESSION_TTL" envDefault:"8h"`
	DeleteWindow  time.Duration `env:"LEAD_DELETE_CONFIRM_WINDOW" envDefault:"3s"`
}

// Remote points at the spreadsheet webhook and its CSV export.
type Remote struct {
	WebhookURL       string        `env:"LEAD_WEBHOOK_URL"`
	ExportURL        string        `env:"LEAD_EXPORT_URL"`
	WebhookTimeout   time.Duration `env:"LEAD_WEBHOOK_TIMEOUT" envDefault:"10s"`
	ExportTimeout    time.Duration `env:"LEAD_EXPORT_TIMEOUT" envDefault:"0s"`
	OutboxEnabled    bool          `env:"LEAD_OUTBOX_ENABLED" envDefault:"false"`
	OutboxInterval   time.Duration `env:"LEAD_OUTBOX_INTERVAL" envDefault:"30s"`
	BreakerThreshold int           `env:"LEAD_EXPORT_BREAKER_THRESHOLD" envDefault:"3"`
	BreakerCooldown  time.Duration `env:"LEAD_EXPORT_BREAKER_COOLDOWN" envDefault:"1m"`
}

// Storage selects the key-value backend behind the local lead store and the
// session flags.
type Storage struct {
	Driver      string `env:"LEAD_STORAGE_DRIVER" envDefault:"memory"`
	SQLitePath  string `env:"LEAD_SQLITE_PATH" envDefault:"leads.db"`
	PostgresDSN string `env:"LEAD_POSTGRES_DSN"`
}

// RedisConfig mirrors the go-redis pool options we override.
type RedisConfig struct {
	URL          string        `env:"LEAD_REDIS_URL"`
	PoolSize     int           `env:"LEAD_REDIS_POOL_SIZE" envDefault:"10"`
	MinIdleConns int           `env:"LEAD_REDIS_MIN_IDLE_CONNS" envDefault:"2"`
	DialTimeout  time.Duration `env:"LEAD_REDIS_DIAL_TIMEOUT" envDefault:"5s"`
	ReadTimeout  time.Duration `env:"LEAD_REDIS_READ_TIMEOUT" envDefault:"3s"`
	WriteTimeout time.Duration `env:"LEAD_REDIS_WRITE_TIMEOUT" envDefault:"3s"`
}

// Kafka is optional; an empty broker list disables the Kafka sink.
type Kafka struct {
	Brokers     []string `env:"LEAD_KAFKA_BROKERS" envSeparator:","`
	Topic       string   `env:"LEAD_KAFKA_TOPIC" envDefault:"leads.captured"`
	EnsureTopic bool     `env:"LEAD_KAFKA_ENSURE_TOPIC" envDefault:"true"`
}

// Capture tunes the intake flows.
type Capture struct {
	SessionTTL      time.Duration `env:"LEAD_SESSION_TTL" envDefault:"24h"`
	SubmitDelay     time.Duration `env:"LEAD_SUBMIT_DELAY" envDefault:"1500ms"`
	ExitIntentDelay time.Duration `env:"LEAD_EXIT_INTENT_DELAY" envDefault:"1s"`
	DateLocation    string        `env:"LEAD_DATE_LOCATION" envDefault:"Africa/Casablanca"`
}

// RateLimit budgets requests per client IP. A zero request count disables
// the class.
type RateLimit struct {
	Enabled         bool          `env:"LEAD_RATE_LIMIT_ENABLED" envDefault:"true"`
	CaptureRequests int           `env:"LEAD_RATE_LIMIT_CAPTURE" envDefault:"60"`
	LoginRequests   int           `env:"LEAD_RATE_LIMIT_LOGIN" envDefault:"10"`
	Window          time.Duration `env:"LEAD_RATE_LIMIT_WINDOW" envDefault:"1m"`
	SweepInterval   time.Duration `env:"LEAD_RATE_LIMIT_SWEEP_INTERVAL" envDefault:"5m"`
}

type Otel struct {
	Endpoint string `env:"LEAD_OTEL_ENDPOINT"`
	Enabled  bool   `env:"LEAD_OTEL_ENABLED" envDefault:"true"`
}

// FromEnv builds the Server config from environment variables so main stays lean.
func FromEnv() (Server, error) {
	var cfg Server
	if err := env.Parse(&cfg); err != nil {
		return Server{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Server{}, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints env tags cannot express.
func (c Server) Validate() error {
	switch strings.ToLower(c.Storage.Driver) {
	case DriverMemory, DriverSQLite:
	case DriverRedis:
		if c.Redis.URL == "" {
			return fmt.Errorf("LEAD_REDIS_URL is required for the redis storage driver")
		}
	case DriverPostgres:
		if c.Storage.PostgresDSN == "" {
			return fmt.Errorf("LEAD_POSTGRES_DSN is required for the postgres storage driver")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if c.Admin.DeleteWindow <= 0 {
		return fmt.Errorf("LEAD_DELETE_CONFIRM_WINDOW must be positive")
	}
	if c.RateLimit.Enabled && c.RateLimit.Window <= 0 {
		return fmt.Errorf("LEAD_RATE_LIMIT_WINDOW must be positive")
	}
	if _, err := time.LoadLocation(c.Capture.DateLocation); err != nil {
		return fmt.Errorf("LEAD_DATE_LOCATION: %w", err)
	}
	return nil
}
