package config

// EnvPrefix is passed to envconfig; every field carries an explicit name.
const EnvPrefix = ""

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

const (
	EnvAppEnv   = "KIRANAHUB_APP_ENV"
	EnvPort     = "KIRANAHUB_APP_PORT"
	EnvLogLevel = "KIRANAHUB_LOG_LEVEL"

	EnvDBDSN  = "KIRANAHUB_DB_DSN"
	EnvDBHost = "KIRANAHUB_DB_HOST"
	EnvDBUser = "KIRANAHUB_DB_USER"
	EnvDBName = "KIRANAHUB_DB_NAME"

	EnvRedisURL = "KIRANAHUB_REDIS_URL"

	EnvUseSQLite   = "KIRANAHUB_USE_SQLITE"
	EnvSQLitePath  = "KIRANAHUB_SQLITE_PATH"
	EnvAutoMigrate = "KIRANAHUB_AUTO_MIGRATE"

	EnvAggregationMaxAttempts  = "KIRANAHUB_AGGREGATION_MAX_ATTEMPTS"
	EnvAggregationRetryBackoff = "KIRANAHUB_AGGREGATION_RETRY_BACKOFF"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
