package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	FeatureFlags FeatureFlagsConfig
	Aggregation  AggregationConfig
	Idempotency  IdempotencyConfig
	Outbox       OutboxConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	if err := cfg.Aggregation.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"KIRANAHUB_APP_ENV" required:"true"`
	Port         string `envconfig:"KIRANAHUB_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"KIRANAHUB_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"KIRANAHUB_LOG_WARN_STACK" default:"false"`
	LogFormat    string `envconfig:"KIRANAHUB_LOG_FORMAT" default:"json"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN        string `envconfig:"KIRANAHUB_DB_DSN"`
	Driver     string `envconfig:"KIRANAHUB_DB_DRIVER" default:"postgres"`
	SQLitePath string `envconfig:"KIRANAHUB_SQLITE_PATH" default:"kiranahub.db"`

	LegacyHost     string `envconfig:"KIRANAHUB_DB_HOST"`
	LegacyPort     int    `envconfig:"KIRANAHUB_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"KIRANAHUB_DB_USER"`
	LegacyPassword string `envconfig:"KIRANAHUB_DB_PASSWORD"`
	LegacyName     string `envconfig:"KIRANAHUB_DB_NAME"`
	LegacySSLMode  string `envconfig:"KIRANAHUB_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"KIRANAHUB_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"KIRANAHUB_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"KIRANAHUB_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"KIRANAHUB_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"KIRANAHUB_REDIS_URL"`
	Address      string        `envconfig:"KIRANAHUB_REDIS_ADDR"`
	Password     string        `envconfig:"KIRANAHUB_REDIS_PASSWORD"`
	DB           int           `envconfig:"KIRANAHUB_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"KIRANAHUB_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"KIRANAHUB_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"KIRANAHUB_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"KIRANAHUB_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"KIRANAHUB_REDIS_WRITE_TIMEOUT" default:"5s"`
	LockTTL      time.Duration `envconfig:"KIRANAHUB_REDIS_LOCK_TTL" default:"10s"`
	LockBackoff  time.Duration `envconfig:"KIRANAHUB_REDIS_LOCK_BACKOFF" default:"25ms"`
}

// Enabled reports whether a Redis endpoint is configured.
func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != "" || strings.TrimSpace(r.Address) != ""
}

type FeatureFlagsConfig struct {
	UseSQLite        bool `envconfig:"KIRANAHUB_USE_SQLITE" default:"false"`
	AutoMigrate      bool `envconfig:"KIRANAHUB_AUTO_MIGRATE" default:"false"`
	DisableOrderLock bool `envconfig:"KIRANAHUB_DISABLE_ORDER_LOCK" default:"false"`
}

// AggregationConfig tunes the group order write retry loop.
type AggregationConfig struct {
	MaxAttempts  int           `envconfig:"KIRANAHUB_AGGREGATION_MAX_ATTEMPTS" default:"5"`
	RetryBackoff time.Duration `envconfig:"KIRANAHUB_AGGREGATION_RETRY_BACKOFF" default:"20ms"`
}

func (a AggregationConfig) validate() error {
	if a.MaxAttempts < 1 {
		return fmt.Errorf("%s must be at least 1", EnvAggregationMaxAttempts)
	}
	if a.RetryBackoff < 0 {
		return fmt.Errorf("%s must not be negative", EnvAggregationRetryBackoff)
	}
	return nil
}

type IdempotencyConfig struct {
	TTL time.Duration `envconfig:"KIRANAHUB_IDEMPOTENCY_TTL" default:"24h"`
}

// OutboxConfig tunes the outbox relay.
type OutboxConfig struct {
	BatchSize    int           `envconfig:"KIRANAHUB_OUTBOX_BATCH_SIZE" default:"50"`
	PollInterval time.Duration `envconfig:"KIRANAHUB_OUTBOX_POLL_INTERVAL" default:"500ms"`
	MaxAttempts  int           `envconfig:"KIRANAHUB_OUTBOX_MAX_ATTEMPTS" default:"10"`
	StreamMaxLen int64         `envconfig:"KIRANAHUB_OUTBOX_STREAM_MAX_LEN" default:"100000"`
}

func (db *DBConfig) ensureDSN(useSQLite bool) error {
	if useSQLite {
		if db.DSN == "" {
			db.DSN = db.SQLitePath
		}
		db.Driver = DriverSQLite
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
