package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = ""

	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

// Env var names referenced by tests and tooling.
const (
	EnvAppEnv           = "OUTCOMELY_APP_ENV"
	EnvDBDSN            = "OUTCOMELY_DB_DSN"
	EnvRedisURL         = "OUTCOMELY_REDIS_URL"
	EnvCollectorBaseURL = "OUTCOMELY_COLLECTOR_BASE_URL"
	EnvCollectorAppID   = "OUTCOMELY_COLLECTOR_APP_ID"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	Collector    CollectorConfig
	Attribution  AttributionConfig
	Dispatch     DispatchConfig
	FeatureFlags FeatureFlagsConfig
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
	Env          string `envconfig:"OUTCOMELY_APP_ENV" default:"dev"`
	Port         string `envconfig:"OUTCOMELY_APP_PORT" default:"8086"`
	LogLevel     string `envconfig:"OUTCOMELY_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"OUTCOMELY_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"OUTCOMELY_DB_DSN"`
	Driver string `envconfig:"OUTCOMELY_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"OUTCOMELY_DB_HOST"`
	Port     int    `envconfig:"OUTCOMELY_DB_PORT" default:"5432"`
	User     string `envconfig:"OUTCOMELY_DB_USER"`
	Password string `envconfig:"OUTCOMELY_DB_PASSWORD"`
	Name     string `envconfig:"OUTCOMELY_DB_NAME"`
	SSLMode  string `envconfig:"OUTCOMELY_DB_SSLMODE" default:"disable"`

	SQLitePath string `envconfig:"OUTCOMELY_DB_SQLITE_PATH" default:"attribution.db"`

	MaxOpenConns    int           `envconfig:"OUTCOMELY_DB_MAX_OPEN_CONNS" default:"10"`
	MaxIdleConns    int           `envconfig:"OUTCOMELY_DB_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `envconfig:"OUTCOMELY_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"OUTCOMELY_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

func (d *DBConfig) ensureDSN() error {
	if d.DSN != "" || strings.EqualFold(d.Driver, "sqlite") {
		return nil
	}
	if d.Host == "" || d.User == "" || d.Name == "" {
		return fmt.Errorf("either OUTCOMELY_DB_DSN or host/user/name settings are required")
	}
	d.DSN = fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
	)
	return nil
}

type RedisConfig struct {
	URL          string        `envconfig:"OUTCOMELY_REDIS_URL"`
	Address      string        `envconfig:"OUTCOMELY_REDIS_ADDR"`
	Password     string        `envconfig:"OUTCOMELY_REDIS_PASSWORD"`
	DB           int           `envconfig:"OUTCOMELY_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"OUTCOMELY_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"OUTCOMELY_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"OUTCOMELY_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"OUTCOMELY_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"OUTCOMELY_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type CollectorConfig struct {
	BaseURL        string        `envconfig:"OUTCOMELY_COLLECTOR_BASE_URL" required:"true"`
	AppID          string        `envconfig:"OUTCOMELY_COLLECTOR_APP_ID" required:"true"`
	DeviceType     int           `envconfig:"OUTCOMELY_COLLECTOR_DEVICE_TYPE" default:"1"`
	RequestTimeout time.Duration `envconfig:"OUTCOMELY_COLLECTOR_REQUEST_TIMEOUT" default:"30s"`
}

// AttributionConfig carries the default per-channel policy. SetPolicy can still
// override channels at runtime; these only seed a fresh install.
type AttributionConfig struct {
	NotificationDirect       bool          `envconfig:"OUTCOMELY_ATTRIBUTION_NOTIFICATION_DIRECT" default:"true"`
	NotificationIndirect     bool          `envconfig:"OUTCOMELY_ATTRIBUTION_NOTIFICATION_INDIRECT" default:"true"`
	NotificationUnattributed bool          `envconfig:"OUTCOMELY_ATTRIBUTION_NOTIFICATION_UNATTRIBUTED" default:"true"`
	NotificationLimit        int           `envconfig:"OUTCOMELY_ATTRIBUTION_NOTIFICATION_LIMIT" default:"10"`
	NotificationWindow       time.Duration `envconfig:"OUTCOMELY_ATTRIBUTION_NOTIFICATION_WINDOW" default:"24h"`

	IAMDirect       bool          `envconfig:"OUTCOMELY_ATTRIBUTION_IAM_DIRECT" default:"true"`
	IAMIndirect     bool          `envconfig:"OUTCOMELY_ATTRIBUTION_IAM_INDIRECT" default:"true"`
	IAMUnattributed bool          `envconfig:"OUTCOMELY_ATTRIBUTION_IAM_UNATTRIBUTED" default:"true"`
	IAMLimit        int           `envconfig:"OUTCOMELY_ATTRIBUTION_IAM_LIMIT" default:"10"`
	IAMWindow       time.Duration `envconfig:"OUTCOMELY_ATTRIBUTION_IAM_WINDOW" default:"1h"`
}

type DispatchConfig struct {
	PollInterval time.Duration `envconfig:"OUTCOMELY_DISPATCH_POLL_INTERVAL" default:"500ms"`
	BackoffBase  time.Duration `envconfig:"OUTCOMELY_DISPATCH_BACKOFF_BASE" default:"1s"`
	BackoffCap   time.Duration `envconfig:"OUTCOMELY_DISPATCH_BACKOFF_CAP" default:"1m"`
	MaxAttempts  int           `envconfig:"OUTCOMELY_DISPATCH_MAX_ATTEMPTS" default:"10"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"OUTCOMELY_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"OUTCOMELY_AUTO_MIGRATE" default:"false"`
}
