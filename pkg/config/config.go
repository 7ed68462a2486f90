package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"google.golang.org/api/option"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Eventing     EventingConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	BigQuery     BigQueryConfig
	Outbox       OutboxConfig
	Ledger       LedgerConfig
	Cron         CronConfig
	RateLimit    RateLimitConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	if cfg.Ledger.DefaultCashLimitCents < 0 {
		return nil, fmt.Errorf("%s must not be negative", EnvLedgerDefaultCashLimit)
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string   `envconfig:"VENDORLEDGER_APP_ENV" required:"true"`
	Port         string   `envconfig:"VENDORLEDGER_APP_PORT" required:"true"`
	LogLevel     string   `envconfig:"VENDORLEDGER_LOG_LEVEL" default:"info"`
	LogWarnStack bool     `envconfig:"VENDORLEDGER_LOG_WARN_STACK" default:"false"`
	CORSOrigins  []string `envconfig:"VENDORLEDGER_CORS_ORIGINS"`
	// MetricsPort serves /metrics from background binaries; blank disables it.
	MetricsPort string `envconfig:"VENDORLEDGER_METRICS_PORT"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"VENDORLEDGER_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"VENDORLEDGER_DB_DSN"`
	Driver string `envconfig:"VENDORLEDGER_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"VENDORLEDGER_DB_HOST"`
	LegacyPort     int    `envconfig:"VENDORLEDGER_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"VENDORLEDGER_DB_USER"`
	LegacyPassword string `envconfig:"VENDORLEDGER_DB_PASSWORD"`
	LegacyName     string `envconfig:"VENDORLEDGER_DB_NAME"`
	LegacySSLMode  string `envconfig:"VENDORLEDGER_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"VENDORLEDGER_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"VENDORLEDGER_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"VENDORLEDGER_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"VENDORLEDGER_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	SlowQuery       time.Duration `envconfig:"VENDORLEDGER_DB_SLOW_QUERY" default:"250ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"VENDORLEDGER_REDIS_URL" required:"true"`
	Address      string        `envconfig:"VENDORLEDGER_REDIS_ADDR"`
	Password     string        `envconfig:"VENDORLEDGER_REDIS_PASSWORD"`
	DB           int           `envconfig:"VENDORLEDGER_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"VENDORLEDGER_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"VENDORLEDGER_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"VENDORLEDGER_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"VENDORLEDGER_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"VENDORLEDGER_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// JWTConfig holds the verification settings for tokens minted by the auth service.
type JWTConfig struct {
	Secret            string `envconfig:"VENDORLEDGER_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"VENDORLEDGER_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"VENDORLEDGER_JWT_EXPIRATION_MINUTES" default:"60"`
}

type FeatureFlagsConfig struct {
	UseSQLite      bool `envconfig:"VENDORLEDGER_USE_SQLITE" default:"false"`
	AutoMigrate    bool `envconfig:"VENDORLEDGER_AUTO_MIGRATE" default:"false"`
	AnalyticsQuery bool `envconfig:"VENDORLEDGER_ANALYTICS_QUERY_ENABLED" default:"false"`
}

type EventingConfig struct {
	OutboxIdempotencyTTL time.Duration `envconfig:"VENDORLEDGER_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"VENDORLEDGER_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"VENDORLEDGER_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"VENDORLEDGER_GOOGLE_APPLICATION_CREDENTIALS"`
}

// ClientOptions prefers inline JSON over a credentials file; with neither the
// Google SDKs fall back to application default credentials.
func (g GCPConfig) ClientOptions() []option.ClientOption {
	if raw := strings.TrimSpace(g.CredentialsJSON); raw != "" {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(raw))}
	}
	if path := strings.TrimSpace(g.ApplicationCredentials); path != "" {
		return []option.ClientOption{option.WithCredentialsFile(path)}
	}
	return nil
}

type PubSubConfig struct {
	LedgerTopic              string `envconfig:"VENDORLEDGER_PUBSUB_LEDGER_TOPIC" required:"true"`
	BookingsSubscription     string `envconfig:"VENDORLEDGER_PUBSUB_BOOKINGS_SUBSCRIPTION" required:"true"`
	NotificationSubscription string `envconfig:"VENDORLEDGER_PUBSUB_NOTIFICATION_SUBSCRIPTION" required:"true"`
	AnalyticsSubscription    string `envconfig:"VENDORLEDGER_PUBSUB_ANALYTICS_SUBSCRIPTION" required:"true"`
}

// BigQueryConfig names the analytics dataset. CreateTables lets the analytics
// worker create a missing ledger table on boot.
type BigQueryConfig struct {
	Dataset           string        `envconfig:"VENDORLEDGER_BIGQUERY_DATASET" default:"vendorledger"`
	LedgerEventsTable string        `envconfig:"VENDORLEDGER_BIGQUERY_LEDGER_TABLE" default:"ledger_events"`
	CreateTables      bool          `envconfig:"VENDORLEDGER_BIGQUERY_CREATE_TABLES" default:"false"`
	QueryCacheTTL     time.Duration `envconfig:"VENDORLEDGER_ANALYTICS_CACHE_TTL" default:"5m"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"VENDORLEDGER_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"VENDORLEDGER_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"VENDORLEDGER_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

// LedgerConfig tunes ledger policy knobs that are not per-vendor.
type LedgerConfig struct {
	DefaultCashLimitCents int64         `envconfig:"VENDORLEDGER_LEDGER_DEFAULT_CASH_LIMIT_CENTS" default:"1000000"`
	StaleSettlementAge    time.Duration `envconfig:"VENDORLEDGER_LEDGER_STALE_SETTLEMENT_AGE" default:"72h"`
	ReconcileRepair       bool          `envconfig:"VENDORLEDGER_LEDGER_RECONCILE_REPAIR" default:"false"`
}

type CronConfig struct {
	Interval   time.Duration `envconfig:"VENDORLEDGER_CRON_INTERVAL" default:"1h"`
	LockTTL    time.Duration `envconfig:"VENDORLEDGER_CRON_LOCK_TTL" default:"55m"`
	JobTimeout time.Duration `envconfig:"VENDORLEDGER_CRON_JOB_TIMEOUT" default:"15m"`

	NotificationRetention time.Duration `envconfig:"VENDORLEDGER_CRON_NOTIFICATION_RETENTION" default:"720h"`
	OutboxRetention       time.Duration `envconfig:"VENDORLEDGER_CRON_OUTBOX_RETENTION" default:"720h"`
	DeadLetterRetention   time.Duration `envconfig:"VENDORLEDGER_CRON_DLQ_RETENTION" default:"2160h"`
}

// RateLimitConfig throttles vendor submissions and the internal booking hook.
type RateLimitConfig struct {
	Window              time.Duration `envconfig:"VENDORLEDGER_RATE_LIMIT_WINDOW" default:"1m"`
	SubmissionVendorMax int           `envconfig:"VENDORLEDGER_RATE_LIMIT_SUBMISSION_VENDOR_MAX" default:"10"`
	SubmissionIPMax     int           `envconfig:"VENDORLEDGER_RATE_LIMIT_SUBMISSION_IP_MAX" default:"60"`
	InternalIPMax       int           `envconfig:"VENDORLEDGER_RATE_LIMIT_INTERNAL_IP_MAX" default:"0"`
}

func (db *DBConfig) ensureDSN(useSQLite bool) error {
	if useSQLite {
		db.Driver = DriverSQLite
		if db.DSN == "" {
			db.DSN = "file:vendorledger.db?_busy_timeout=5000"
		}
		return nil
	}
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
