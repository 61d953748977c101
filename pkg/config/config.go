package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/angelmondragon/paygate-backend/pkg/enums"
	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = ""

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "PAYGATE_DB_DSN"
	EnvDBHost = "PAYGATE_DB_HOST"
	EnvDBUser = "PAYGATE_DB_USER"
	EnvDBName = "PAYGATE_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App       AppConfig
	DB        DBConfig
	Redis     RedisConfig
	Gateway   GatewayConfig
	Reconcile ReconcileConfig
	Webhook   WebhookConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Reconcile.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"PAYGATE_APP_ENV" required:"true"`
	Port         string `envconfig:"PAYGATE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"PAYGATE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"PAYGATE_LOG_WARN_STACK" default:"false"`
	AutoMigrate  bool   `envconfig:"PAYGATE_AUTO_MIGRATE" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"PAYGATE_DB_DSN"`
	Driver string `envconfig:"PAYGATE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"PAYGATE_DB_HOST"`
	LegacyPort     int    `envconfig:"PAYGATE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"PAYGATE_DB_USER"`
	LegacyPassword string `envconfig:"PAYGATE_DB_PASSWORD"`
	LegacyName     string `envconfig:"PAYGATE_DB_NAME"`
	LegacySSLMode  string `envconfig:"PAYGATE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"PAYGATE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"PAYGATE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"PAYGATE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"PAYGATE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"PAYGATE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"PAYGATE_REDIS_ADDR"`
	Password     string        `envconfig:"PAYGATE_REDIS_PASSWORD"`
	DB           int           `envconfig:"PAYGATE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"PAYGATE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"PAYGATE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"PAYGATE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"PAYGATE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"PAYGATE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// GatewayConfig points at the remote payment processor API.
type GatewayConfig struct {
	BaseURL      string        `envconfig:"PAYGATE_GATEWAY_BASE_URL" default:"https://api.checkout.example.com"`
	SecretKey    string        `envconfig:"PAYGATE_GATEWAY_SECRET_KEY"`
	Timeout      time.Duration `envconfig:"PAYGATE_GATEWAY_TIMEOUT" default:"10s"`
	MaxRetries   uint64        `envconfig:"PAYGATE_GATEWAY_MAX_RETRIES" default:"3"`
	RetryBackoff time.Duration `envconfig:"PAYGATE_GATEWAY_RETRY_BACKOFF" default:"250ms"`
}

// ReconcileConfig carries the merchant-configurable target statuses the
// webhook handlers transition orders into.
type ReconcileConfig struct {
	AuthorizedStatus string `envconfig:"PAYGATE_ORDER_AUTHORIZED_STATUS" default:"on_hold"`
	CapturedStatus   string `envconfig:"PAYGATE_ORDER_CAPTURED_STATUS" default:"processing"`
	VoidStatus       string `envconfig:"PAYGATE_ORDER_VOID_STATUS" default:"cancelled"`
}

func (r ReconcileConfig) validate() error {
	for name, raw := range map[string]string{
		"PAYGATE_ORDER_AUTHORIZED_STATUS": r.AuthorizedStatus,
		"PAYGATE_ORDER_CAPTURED_STATUS":   r.CapturedStatus,
		"PAYGATE_ORDER_VOID_STATUS":       r.VoidStatus,
	} {
		if _, err := enums.ParseOrderStatus(raw); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

// Authorized returns the parsed authorized-state target.
func (r ReconcileConfig) Authorized() enums.OrderStatus {
	return enums.OrderStatus(r.AuthorizedStatus)
}

// Captured returns the parsed captured-state target.
func (r ReconcileConfig) Captured() enums.OrderStatus {
	return enums.OrderStatus(r.CapturedStatus)
}

// Void returns the parsed void-state target.
func (r ReconcileConfig) Void() enums.OrderStatus {
	return enums.OrderStatus(r.VoidStatus)
}

// WebhookConfig secures and deduplicates inbound processor deliveries.
type WebhookConfig struct {
	SigningSecret  string        `envconfig:"PAYGATE_WEBHOOK_SIGNING_SECRET" required:"true"`
	IdempotencyTTL time.Duration `envconfig:"PAYGATE_WEBHOOK_IDEMPOTENCY_TTL" default:"24h"`
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
