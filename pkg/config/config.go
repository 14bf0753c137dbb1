package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App      AppConfig
	Service  ServiceConfig
	DB       DBConfig
	Redis    RedisConfig
	JWT      JWTConfig
	IntaSend IntaSendConfig
	GCP      GCPConfig
	PubSub   PubSubConfig
	Outbox   OutboxConfig
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
	Env          string `envconfig:"GASFLOW_APP_ENV" required:"true"`
	Port         string `envconfig:"GASFLOW_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"GASFLOW_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"GASFLOW_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"GASFLOW_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"GASFLOW_DB_DSN"`
	Driver string `envconfig:"GASFLOW_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"GASFLOW_DB_HOST"`
	LegacyPort     int    `envconfig:"GASFLOW_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"GASFLOW_DB_USER"`
	LegacyPassword string `envconfig:"GASFLOW_DB_PASSWORD"`
	LegacyName     string `envconfig:"GASFLOW_DB_NAME"`
	LegacySSLMode  string `envconfig:"GASFLOW_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"GASFLOW_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"GASFLOW_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"GASFLOW_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"GASFLOW_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	AutoMigrate bool `envconfig:"GASFLOW_DB_AUTO_MIGRATE" default:"false"`
}

type RedisConfig struct {
	URL          string        `envconfig:"GASFLOW_REDIS_URL" required:"true"`
	Address      string        `envconfig:"GASFLOW_REDIS_ADDR"`
	Password     string        `envconfig:"GASFLOW_REDIS_PASSWORD"`
	DB           int           `envconfig:"GASFLOW_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"GASFLOW_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"GASFLOW_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"GASFLOW_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"GASFLOW_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"GASFLOW_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"GASFLOW_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"GASFLOW_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"GASFLOW_JWT_EXPIRATION_MINUTES" required:"true"`
}

// IntaSendConfig carries credentials and tunables for the mobile-money processor.
type IntaSendConfig struct {
	BaseURL          string        `envconfig:"GASFLOW_INTASEND_BASE_URL" default:"https://payment.intasend.com"`
	PublicKey        string        `envconfig:"GASFLOW_INTASEND_PUBLIC_KEY" required:"true"`
	WebhookChallenge string        `envconfig:"GASFLOW_INTASEND_WEBHOOK_CHALLENGE" required:"true"`
	Currency         string        `envconfig:"GASFLOW_INTASEND_CURRENCY" default:"KES"`
	RedirectURL      string        `envconfig:"GASFLOW_INTASEND_REDIRECT_URL"`
	Timeout          time.Duration `envconfig:"GASFLOW_INTASEND_TIMEOUT" default:"10s"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"GASFLOW_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"GASFLOW_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"GASFLOW_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	PaymentsTopic            string `envconfig:"GASFLOW_PUBSUB_PAYMENTS_TOPIC" required:"true"`
	PaymentsSubscription     string `envconfig:"GASFLOW_PUBSUB_PAYMENTS_SUBSCRIPTION" required:"true"`
	NotificationTopic        string `envconfig:"GASFLOW_PUBSUB_NOTIFICATION_TOPIC" default:"gf-notification-events"`
	NotificationSubscription string `envconfig:"GASFLOW_PUBSUB_NOTIFICATION_SUBSCRIPTION" required:"true"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"GASFLOW_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"GASFLOW_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"GASFLOW_OUTBOX_MAX_ATTEMPTS" default:"10"`
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
