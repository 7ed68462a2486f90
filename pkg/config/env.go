package config

const EnvPrefix = "VENDORLEDGER"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

const (
	EnvAppEnv   = "VENDORLEDGER_APP_ENV"
	EnvPort     = "VENDORLEDGER_APP_PORT"
	EnvLogLevel = "VENDORLEDGER_LOG_LEVEL"

	EnvDBDSN  = "VENDORLEDGER_DB_DSN"
	EnvDBHost = "VENDORLEDGER_DB_HOST"
	EnvDBUser = "VENDORLEDGER_DB_USER"
	EnvDBName = "VENDORLEDGER_DB_NAME"

	EnvRedisURL = "VENDORLEDGER_REDIS_URL"

	EnvJWTSecret = "VENDORLEDGER_JWT_SECRET"
	EnvJWTIssuer = "VENDORLEDGER_JWT_ISSUER"

	EnvUseSQLite = "VENDORLEDGER_USE_SQLITE"

	EnvGCPProjectID = "VENDORLEDGER_GCP_PROJECT_ID"

	EnvPubSubLedgerTopic      = "VENDORLEDGER_PUBSUB_LEDGER_TOPIC"
	EnvPubSubBookingsSub      = "VENDORLEDGER_PUBSUB_BOOKINGS_SUBSCRIPTION"
	EnvPubSubNotificationSub  = "VENDORLEDGER_PUBSUB_NOTIFICATION_SUBSCRIPTION"
	EnvPubSubAnalyticsSub     = "VENDORLEDGER_PUBSUB_ANALYTICS_SUBSCRIPTION"
	EnvLedgerDefaultCashLimit = "VENDORLEDGER_LEDGER_DEFAULT_CASH_LIMIT_CENTS"
	EnvLedgerStaleAge         = "VENDORLEDGER_LEDGER_STALE_SETTLEMENT_AGE"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
