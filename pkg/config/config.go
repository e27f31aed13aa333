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
	Site         SiteConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Eventing     EventingConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Scheduler    SchedulerConfig
	Sendgrid     SendgridConfig
	Cron         CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"LLMS_APP_ENV" required:"true"`
	Port         string `envconfig:"LLMS_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"LLMS_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"LLMS_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"LLMS_LOG_WARN_STACK" default:"false"`
	// CORSOrigins is a comma separated list of origins allowed to call the admin API.
	CORSOrigins []string `envconfig:"LLMS_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// SiteConfig feeds the {site_title} and {site_url} email merge codes.
type SiteConfig struct {
	Title string `envconfig:"LLMS_SITE_TITLE" default:"LMS"`
	URL   string `envconfig:"LLMS_SITE_URL" default:"http://localhost:8080"`
}

type ServiceConfig struct {
	Kind string `envconfig:"LLMS_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN        string `envconfig:"LLMS_DB_DSN"`
	SQLitePath string `envconfig:"LLMS_DB_SQLITE_PATH" default:"llms.db"`

	LegacyHost     string `envconfig:"LLMS_DB_HOST"`
	LegacyPort     int    `envconfig:"LLMS_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"LLMS_DB_USER"`
	LegacyPassword string `envconfig:"LLMS_DB_PASSWORD"`
	LegacyName     string `envconfig:"LLMS_DB_NAME"`
	LegacySSLMode  string `envconfig:"LLMS_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"LLMS_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"LLMS_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"LLMS_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"LLMS_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	// UseSQLite is copied from the feature flags during Load.
	UseSQLite bool `ignored:"true"`
}

type RedisConfig struct {
	URL          string        `envconfig:"LLMS_REDIS_URL"`
	Address      string        `envconfig:"LLMS_REDIS_ADDR"`
	Password     string        `envconfig:"LLMS_REDIS_PASSWORD"`
	DB           int           `envconfig:"LLMS_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"LLMS_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"LLMS_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"LLMS_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"LLMS_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"LLMS_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"LLMS_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"LLMS_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"LLMS_JWT_EXPIRATION_MINUTES" default:"60"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"LLMS_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"LLMS_AUTO_MIGRATE" default:"false"`
	// ConsumePubSub turns on the Pub/Sub event consumer inside the worker.
	ConsumePubSub bool `envconfig:"LLMS_CONSUME_PUBSUB" default:"false"`
}

type EventingConfig struct {
	IdempotencyTTL time.Duration `envconfig:"LLMS_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"LLMS_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	EventsTopic        string `envconfig:"LLMS_PUBSUB_EVENTS_TOPIC" default:"llms-domain-events"`
	EventsSubscription string `envconfig:"LLMS_PUBSUB_EVENTS_SUBSCRIPTION"`
}

type SchedulerConfig struct {
	Queue       string `envconfig:"LLMS_SCHEDULER_QUEUE" default:"engagements"`
	Concurrency int    `envconfig:"LLMS_SCHEDULER_CONCURRENCY" default:"10"`
	MaxRetry    int    `envconfig:"LLMS_SCHEDULER_MAX_RETRY" default:"5"`
}

type SendgridConfig struct {
	APIKey      string `envconfig:"LLMS_SENDGRID_API_KEY"`
	DefaultFrom string `envconfig:"LLMS_SENDGRID_FROM_EMAIL" default:"no-reply@example.com"`
	FromName    string `envconfig:"LLMS_SENDGRID_FROM_NAME" default:"LMS"`
}

// Enabled reports whether real email delivery is configured.
func (s SendgridConfig) Enabled() bool {
	return strings.TrimSpace(s.APIKey) != ""
}

type CronConfig struct {
	Interval time.Duration `envconfig:"LLMS_CRON_INTERVAL" default:"1h"`
	LockTTL  time.Duration `envconfig:"LLMS_CRON_LOCK_TTL" default:"10m"`
}

func (db *DBConfig) ensureDSN(useSQLite bool) error {
	db.UseSQLite = useSQLite
	if useSQLite {
		if strings.TrimSpace(db.SQLitePath) == "" {
			return fmt.Errorf("%s is required when sqlite is enabled", EnvDBSQLitePath)
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
