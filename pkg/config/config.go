package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = ""

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "PARTDASH_DB_DSN"
	EnvDBHost = "PARTDASH_DB_HOST"
	EnvDBUser = "PARTDASH_DB_USER"
	EnvDBName = "PARTDASH_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Square       SquareConfig
	Cancellation CancellationConfig
	Sweep        SweepConfig
	Payout       PayoutConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"PARTDASH_APP_ENV" required:"true"`
	Port         string `envconfig:"PARTDASH_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"PARTDASH_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"PARTDASH_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"PARTDASH_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"PARTDASH_DB_DSN"`
	Driver string `envconfig:"PARTDASH_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"PARTDASH_DB_HOST"`
	LegacyPort     int    `envconfig:"PARTDASH_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"PARTDASH_DB_USER"`
	LegacyPassword string `envconfig:"PARTDASH_DB_PASSWORD"`
	LegacyName     string `envconfig:"PARTDASH_DB_NAME"`
	LegacySSLMode  string `envconfig:"PARTDASH_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"PARTDASH_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"PARTDASH_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"PARTDASH_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"PARTDASH_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"PARTDASH_REDIS_URL" required:"true"`
	Address      string        `envconfig:"PARTDASH_REDIS_ADDR"`
	Password     string        `envconfig:"PARTDASH_REDIS_PASSWORD"`
	DB           int           `envconfig:"PARTDASH_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"PARTDASH_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"PARTDASH_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"PARTDASH_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"PARTDASH_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"PARTDASH_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"PARTDASH_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"PARTDASH_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"PARTDASH_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	NotificationTopic string `envconfig:"PARTDASH_PUBSUB_NOTIFICATION_TOPIC" default:"pd-notification-events"`
}

type SquareConfig struct {
	AccessToken string `envconfig:"PARTDASH_SQUARE_ACCESS_TOKEN"`
	Env         string `envconfig:"PARTDASH_SQUARE_ENV" default:"sandbox"`
}

// Environment returns the normalized Square environment (sandbox/production).
func (s SquareConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "sandbox"
	}
	return env
}

// CancellationConfig carries the fee-policy knobs.
type CancellationConfig struct {
	// MaxFeeMinor caps the cancellation fee in minor units. Zero disables the cap.
	MaxFeeMinor int64 `envconfig:"PARTDASH_CANCELLATION_MAX_FEE_MINOR" default:"0"`
	// FirstCancellationFree waives the fee on a buyer's first-ever cancellation.
	FirstCancellationFree bool `envconfig:"PARTDASH_CANCELLATION_FIRST_FREE" default:"true"`
	// StrictStages rejects cancellations for order statuses missing from the
	// stage lookup table instead of defaulting them to the zero-fee stage.
	StrictStages bool `envconfig:"PARTDASH_CANCELLATION_STRICT_STAGES" default:"false"`
}

// SweepConfig carries the age thresholds and batch bounds for the
// reconciliation sweeps. The two delivery grace windows are intentionally both
// configurable; which one is authoritative is still an open operations call.
type SweepConfig struct {
	BatchSize                int           `envconfig:"PARTDASH_SWEEP_BATCH_SIZE" default:"100"`
	OrphanOrderAge           time.Duration `envconfig:"PARTDASH_SWEEP_ORPHAN_ORDER_AGE" default:"2h"`
	PreparingSLA             time.Duration `envconfig:"PARTDASH_SWEEP_PREPARING_SLA" default:"72h"`
	DeliveryConfirmAge       time.Duration `envconfig:"PARTDASH_SWEEP_DELIVERY_CONFIRM_AGE" default:"24h"`
	DeliveryConfirmLegacyAge time.Duration `envconfig:"PARTDASH_SWEEP_DELIVERY_CONFIRM_LEGACY_AGE" default:"48h"`
	DisputeResponseWindow    time.Duration `envconfig:"PARTDASH_SWEEP_DISPUTE_RESPONSE_WINDOW" default:"48h"`
	StuckRefundAge           time.Duration `envconfig:"PARTDASH_SWEEP_STUCK_REFUND_AGE" default:"15m"`
	Interval                 time.Duration `envconfig:"PARTDASH_SWEEP_INTERVAL" default:"10m"`
}

// PayoutConfig carries the payout cadence and commission schedule.
type PayoutConfig struct {
	DelayDays          int    `envconfig:"PARTDASH_PAYOUT_DELAY_DAYS" default:"7"`
	CommissionRate     string `envconfig:"PARTDASH_PAYOUT_COMMISSION_RATE" default:"0.15"`
	ConfirmAfterHours  int    `envconfig:"PARTDASH_PAYOUT_CONFIRM_AFTER_HOURS" default:"24"`
	SellerFeeShareRate string `envconfig:"PARTDASH_PAYOUT_SELLER_FEE_SHARE_RATE" default:"0.5"`
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
