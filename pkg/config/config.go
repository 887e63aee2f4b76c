package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Stripe       StripeConfig
	Gateway      GatewayConfig
	Fees         FeesConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Cron         CronConfig
	Tracing      TracingConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Fees.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"INFLUENCEHUB_APP_ENV" required:"true"`
	Port         string `envconfig:"INFLUENCEHUB_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"INFLUENCEHUB_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"INFLUENCEHUB_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"INFLUENCEHUB_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"INFLUENCEHUB_DB_DSN"`
	Driver string `envconfig:"INFLUENCEHUB_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"INFLUENCEHUB_DB_HOST"`
	LegacyPort     int    `envconfig:"INFLUENCEHUB_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"INFLUENCEHUB_DB_USER"`
	LegacyPassword string `envconfig:"INFLUENCEHUB_DB_PASSWORD"`
	LegacyName     string `envconfig:"INFLUENCEHUB_DB_NAME"`
	LegacySSLMode  string `envconfig:"INFLUENCEHUB_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"INFLUENCEHUB_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"INFLUENCEHUB_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"INFLUENCEHUB_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"INFLUENCEHUB_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"INFLUENCEHUB_REDIS_URL" required:"true"`
	Address      string        `envconfig:"INFLUENCEHUB_REDIS_ADDR"`
	Password     string        `envconfig:"INFLUENCEHUB_REDIS_PASSWORD"`
	DB           int           `envconfig:"INFLUENCEHUB_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"INFLUENCEHUB_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"INFLUENCEHUB_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"INFLUENCEHUB_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"INFLUENCEHUB_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"INFLUENCEHUB_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// JWTConfig verifies access tokens minted by the identity service.
type JWTConfig struct {
	Secret string `envconfig:"INFLUENCEHUB_JWT_SECRET" required:"true"`
	Issuer string `envconfig:"INFLUENCEHUB_JWT_ISSUER" required:"true"`
	// Leeway tolerates clock skew between the identity service and this API.
	Leeway time.Duration `envconfig:"INFLUENCEHUB_JWT_LEEWAY" default:"30s"`
}

type FeatureFlagsConfig struct {
	AutoMigrate        bool `envconfig:"INFLUENCEHUB_AUTO_MIGRATE" default:"false"`
	RequireIdempotency bool `envconfig:"INFLUENCEHUB_REQUIRE_IDEMPOTENCY" default:"true"`
}

type StripeConfig struct {
	APIKey              string `envconfig:"INFLUENCEHUB_STRIPE_API_KEY"`
	Env                 string `envconfig:"INFLUENCEHUB_STRIPE_ENV" default:"test"`
	StatementDescriptor string `envconfig:"INFLUENCEHUB_STRIPE_STATEMENT_DESCRIPTOR" default:"INFLUENCEHUB"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

// GatewayConfig bounds every payment provider round trip.
type GatewayConfig struct {
	Timeout time.Duration `envconfig:"INFLUENCEHUB_GATEWAY_TIMEOUT" default:"20s"`
}

// FeesConfig holds the commission schedule applied on release.
type FeesConfig struct {
	PlatformCommissionRate decimal.Decimal `envconfig:"INFLUENCEHUB_FEES_PLATFORM_RATE" default:"0.10"`
	ProviderPercentRate    decimal.Decimal `envconfig:"INFLUENCEHUB_FEES_PROVIDER_RATE" default:"0.029"`
	ProviderFixedFee       decimal.Decimal `envconfig:"INFLUENCEHUB_FEES_PROVIDER_FIXED" default:"0.30"`
}

func (f FeesConfig) validate() error {
	one := decimal.NewFromInt(1)
	if f.PlatformCommissionRate.IsNegative() || f.PlatformCommissionRate.GreaterThanOrEqual(one) {
		return fmt.Errorf("%s must be in [0, 1)", EnvFeesPlatformRate)
	}
	if f.ProviderPercentRate.IsNegative() || f.ProviderPercentRate.GreaterThanOrEqual(one) {
		return fmt.Errorf("%s must be in [0, 1)", EnvFeesProviderRate)
	}
	if f.ProviderFixedFee.IsNegative() {
		return fmt.Errorf("%s must not be negative", EnvFeesProviderFixed)
	}
	return nil
}

type GCPConfig struct {
	ProjectID              string `envconfig:"INFLUENCEHUB_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"INFLUENCEHUB_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"INFLUENCEHUB_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	EscrowTopic string `envconfig:"INFLUENCEHUB_PUBSUB_ESCROW_TOPIC" default:"ih-escrow-events"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"INFLUENCEHUB_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"INFLUENCEHUB_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"INFLUENCEHUB_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type CronConfig struct {
	Interval           time.Duration `envconfig:"INFLUENCEHUB_CRON_INTERVAL" default:"15m"`
	LockTTL            time.Duration `envconfig:"INFLUENCEHUB_CRON_LOCK_TTL" default:"14m"`
	ReconcileBatchSize int           `envconfig:"INFLUENCEHUB_CRON_RECONCILE_BATCH_SIZE" default:"100"`
	ReconcileMinAge    time.Duration `envconfig:"INFLUENCEHUB_CRON_RECONCILE_MIN_AGE" default:"10m"`
	// MetricsAddr serves /metrics for the worker when set, e.g. ":9091".
	MetricsAddr string `envconfig:"INFLUENCEHUB_CRON_METRICS_ADDR"`
}

type TracingConfig struct {
	OTLPEndpoint string `envconfig:"INFLUENCEHUB_OTLP_ENDPOINT"`
}

func (db *DBConfig) ensureDSN() error {
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
