package config

// EnvPrefix is handed to envconfig; every field carries an explicit envconfig tag so the
// prefix only matters for fields without one.
const EnvPrefix = "CHROME"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv = "CHROME_APP_ENV"

	EnvDBDSN  = "CHROME_DB_DSN"
	EnvDBHost = "CHROME_DB_HOST"
	EnvDBUser = "CHROME_DB_USER"
	EnvDBName = "CHROME_DB_NAME"

	EnvJWTSecret      = "CHROME_JWT_SECRET"
	EnvJWTJWKSURL     = "CHROME_JWT_JWKS_URL"
	EnvJWTJWKSTimeout = "CHROME_JWT_JWKS_TIMEOUT"
	EnvJWTIssuer      = "CHROME_JWT_ISSUER"

	EnvHTTPTrustProxy = "CHROME_HTTP_TRUST_PROXY"

	EnvStorageAccessKey = "CHROME_STORAGE_ACCESS_KEY"
	EnvStorageSecretKey = "CHROME_STORAGE_SECRET_KEY"

	EnvUploadURLExpiry = "CHROME_UPLOAD_URL_EXPIRY"
	EnvListingTTL      = "CHROME_LISTING_TTL"
	EnvAITimeout       = "CHROME_AI_TIMEOUT"
	EnvAIMaxTokens     = "CHROME_AI_DESCRIPTION_MAX_TOKENS"
	EnvAIRateLimitMax  = "CHROME_AI_RATE_LIMIT_MAX"
	EnvCronInterval    = "CHROME_CRON_INTERVAL"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
