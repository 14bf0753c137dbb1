package config

// EnvPrefix is passed to envconfig; individual fields spell out the full
// variable name so the prefix stays empty.
const EnvPrefix = ""

const (
	AppEnvDev  = "development"
	AppEnvProd = "production"
)

// Environment variable names referenced outside struct tags (tests, error
// messages).
const (
	EnvAppEnv                   = "GASFLOW_APP_ENV"
	EnvPort                     = "GASFLOW_APP_PORT"
	EnvDBDSN                    = "GASFLOW_DB_DSN"
	EnvDBHost                   = "GASFLOW_DB_HOST"
	EnvDBUser                   = "GASFLOW_DB_USER"
	EnvDBName                   = "GASFLOW_DB_NAME"
	EnvRedisURL                 = "GASFLOW_REDIS_URL"
	EnvJWTSecret                = "GASFLOW_JWT_SECRET"
	EnvJWTIssuer                = "GASFLOW_JWT_ISSUER"
	EnvJWTExpMins               = "GASFLOW_JWT_EXPIRATION_MINUTES"
	EnvIntaSendPublicKey        = "GASFLOW_INTASEND_PUBLIC_KEY"
	EnvIntaSendWebhookChallenge = "GASFLOW_INTASEND_WEBHOOK_CHALLENGE"
	EnvGCPProjectID             = "GASFLOW_GCP_PROJECT_ID"
	EnvPubSubPaymentsTopic      = "GASFLOW_PUBSUB_PAYMENTS_TOPIC"
	EnvPubSubPaymentsSub        = "GASFLOW_PUBSUB_PAYMENTS_SUBSCRIPTION"
	EnvPubSubNotificationTopic  = "GASFLOW_PUBSUB_NOTIFICATION_TOPIC"
	EnvPubSubNotificationSub    = "GASFLOW_PUBSUB_NOTIFICATION_SUBSCRIPTION"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
