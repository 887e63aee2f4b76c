package config

// EnvPrefix is passed to envconfig; every field already carries its full variable name.
const EnvPrefix = "INFLUENCEHUB"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv            = "INFLUENCEHUB_APP_ENV"
	EnvPort              = "INFLUENCEHUB_APP_PORT"
	EnvDBDSN             = "INFLUENCEHUB_DB_DSN"
	EnvDBHost            = "INFLUENCEHUB_DB_HOST"
	EnvDBUser            = "INFLUENCEHUB_DB_USER"
	EnvDBName            = "INFLUENCEHUB_DB_NAME"
	EnvRedisURL          = "INFLUENCEHUB_REDIS_URL"
	EnvJWTSecret         = "INFLUENCEHUB_JWT_SECRET"
	EnvJWTIssuer         = "INFLUENCEHUB_JWT_ISSUER"
	EnvGatewayTimeout    = "INFLUENCEHUB_GATEWAY_TIMEOUT"
	EnvFeesPlatformRate  = "INFLUENCEHUB_FEES_PLATFORM_RATE"
	EnvFeesProviderRate  = "INFLUENCEHUB_FEES_PROVIDER_RATE"
	EnvFeesProviderFixed = "INFLUENCEHUB_FEES_PROVIDER_FIXED"
	EnvPubSubEscrowTopic = "INFLUENCEHUB_PUBSUB_ESCROW_TOPIC"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
