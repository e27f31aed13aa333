package config

// EnvPrefix is handed to envconfig; every field carries its full variable name.
const EnvPrefix = "LLMS"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv     = "LLMS_APP_ENV"
	EnvPort       = "LLMS_APP_PORT"
	EnvLogLevel   = "LLMS_LOG_LEVEL"
	EnvLogFormat  = "LLMS_LOG_FORMAT"
	EnvUseSQLite  = "LLMS_USE_SQLITE"
	EnvJWTSecret  = "LLMS_JWT_SECRET"
	EnvJWTIssuer  = "LLMS_JWT_ISSUER"
	EnvRedisURL   = "LLMS_REDIS_URL"
	EnvGCPProject = "LLMS_GCP_PROJECT_ID"

	EnvDBDSN        = "LLMS_DB_DSN"
	EnvDBHost       = "LLMS_DB_HOST"
	EnvDBUser       = "LLMS_DB_USER"
	EnvDBName       = "LLMS_DB_NAME"
	EnvDBSQLitePath = "LLMS_DB_SQLITE_PATH"

	EnvPubSubEventsTopic = "LLMS_PUBSUB_EVENTS_TOPIC"
	EnvPubSubEventsSub   = "LLMS_PUBSUB_EVENTS_SUBSCRIPTION"
	EnvSchedulerQueue    = "LLMS_SCHEDULER_QUEUE"
	EnvSendgridAPIKey    = "LLMS_SENDGRID_API_KEY"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
