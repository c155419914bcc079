package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"go.uber.org/multierr"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Auth         AuthConfig
	CORS         CORSConfig
	Storage      StorageConfig
	Uploads      UploadsConfig
	Listings     ListingsConfig
	AI           AIConfig
	AIRateLimit  AIRateLimitConfig
	Idempotency  IdempotencyConfig
	Cron         CronConfig
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
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	var err error
	if c.Uploads.URLExpiry <= 0 {
		err = multierr.Append(err, fmt.Errorf("%s must be positive", EnvUploadURLExpiry))
	}
	if c.Listings.TTL <= 0 {
		err = multierr.Append(err, fmt.Errorf("%s must be positive", EnvListingTTL))
	}
	if c.AI.Timeout <= 0 {
		err = multierr.Append(err, fmt.Errorf("%s must be positive", EnvAITimeout))
	}
	if c.AI.MaxTokens <= 0 {
		err = multierr.Append(err, fmt.Errorf("%s must be positive", EnvAIMaxTokens))
	}
	if c.AIRateLimit.Limit < 0 {
		err = multierr.Append(err, fmt.Errorf("%s must not be negative", EnvAIRateLimitMax))
	}
	if c.JWT.Secret == "" && c.JWT.JWKSURL == "" {
		err = multierr.Append(err, fmt.Errorf("one of %s or %s is required", EnvJWTSecret, EnvJWTJWKSURL))
	}
	if c.JWT.JWKSURL != "" && c.JWT.JWKSTimeout <= 0 {
		err = multierr.Append(err, fmt.Errorf("%s must be positive", EnvJWTJWKSTimeout))
	}
	if c.Cron.Interval <= 0 {
		err = multierr.Append(err, fmt.Errorf("%s must be positive", EnvCronInterval))
	}
	return err
}

type AppConfig struct {
	Env          string `envconfig:"CHROME_APP_ENV" required:"true"`
	Port         string `envconfig:"CHROME_APP_PORT" default:"5001"`
	LogLevel     string `envconfig:"CHROME_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"CHROME_LOG_WARN_STACK" default:"false"`

	ReadTimeout     time.Duration `envconfig:"CHROME_HTTP_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"CHROME_HTTP_WRITE_TIMEOUT" default:"30s"`
	ShutdownTimeout time.Duration `envconfig:"CHROME_HTTP_SHUTDOWN_TIMEOUT" default:"20s"`

	// TrustProxy honours X-Forwarded-For and X-Real-IP. Enable only behind a proxy
	// that overwrites them.
	TrustProxy bool `envconfig:"CHROME_HTTP_TRUST_PROXY" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN string `envconfig:"CHROME_DB_DSN"`

	LegacyHost     string `envconfig:"CHROME_DB_HOST"`
	LegacyPort     int    `envconfig:"CHROME_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"CHROME_DB_USER"`
	LegacyPassword string `envconfig:"CHROME_DB_PASSWORD"`
	LegacyName     string `envconfig:"CHROME_DB_NAME"`
	LegacySSLMode  string `envconfig:"CHROME_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"CHROME_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"CHROME_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"CHROME_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"CHROME_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	QueryTimeout    time.Duration `envconfig:"CHROME_DB_QUERY_TIMEOUT" default:"10s"`
}

// RedisConfig is optional; an empty URL and address disables redis-backed features.
type RedisConfig struct {
	URL          string        `envconfig:"CHROME_REDIS_URL"`
	Address      string        `envconfig:"CHROME_REDIS_ADDR"`
	Password     string        `envconfig:"CHROME_REDIS_PASSWORD"`
	DB           int           `envconfig:"CHROME_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"CHROME_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"CHROME_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"CHROME_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"CHROME_REDIS_READ_TIMEOUT" default:"3s"`
	WriteTimeout time.Duration `envconfig:"CHROME_REDIS_WRITE_TIMEOUT" default:"3s"`
}

func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != "" || strings.TrimSpace(r.Address) != ""
}

// JWTConfig describes how identity tokens minted by the identity provider are verified.
// Secret (HS256) serves local tooling; JWKSURL (RS256) takes precedence when set.
type JWTConfig struct {
	Secret            string        `envconfig:"CHROME_JWT_SECRET"`
	JWKSURL           string        `envconfig:"CHROME_JWT_JWKS_URL"`
	JWKSTimeout       time.Duration `envconfig:"CHROME_JWT_JWKS_TIMEOUT" default:"5s"`
	Issuer            string        `envconfig:"CHROME_JWT_ISSUER" required:"true"`
	Audience          string        `envconfig:"CHROME_JWT_AUDIENCE"`
	ExpirationMinutes int           `envconfig:"CHROME_JWT_EXPIRATION_MINUTES" default:"60"`
}

type AuthConfig struct {
	RequireForWrites bool `envconfig:"CHROME_AUTH_REQUIRE_FOR_WRITES" default:"false"`
}

type CORSConfig struct {
	AllowedOrigins []string `envconfig:"CHROME_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000,http://localhost:19006"`
}

type StorageConfig struct {
	Endpoint  string `envconfig:"CHROME_STORAGE_ENDPOINT" default:"localhost:9000"`
	Region    string `envconfig:"CHROME_STORAGE_REGION" default:"us-east-1"`
	AccessKey string `envconfig:"CHROME_STORAGE_ACCESS_KEY" required:"true"`
	SecretKey string `envconfig:"CHROME_STORAGE_SECRET_KEY" required:"true"`
	Bucket    string `envconfig:"CHROME_STORAGE_BUCKET" default:"chrome-hearts"`
	UseSSL    bool   `envconfig:"CHROME_STORAGE_USE_SSL" default:"false"`
	// PublicBaseURL overrides the retrieval base (CDN, reverse proxy). Defaults to
	// <scheme>://<endpoint>/<bucket>.
	PublicBaseURL string `envconfig:"CHROME_STORAGE_PUBLIC_BASE_URL"`
	PublicRead    bool   `envconfig:"CHROME_STORAGE_PUBLIC_READ" default:"true"`
}

type UploadsConfig struct {
	URLExpiry     time.Duration `envconfig:"CHROME_UPLOAD_URL_EXPIRY" default:"1h"`
	DefaultPrefix string        `envconfig:"CHROME_UPLOAD_DEFAULT_PREFIX" default:"products"`
	AllowedTypes  []string      `envconfig:"CHROME_UPLOAD_ALLOWED_TYPES" default:"image/jpeg,image/png,image/webp,image/gif,image/heic"`
}

type ListingsConfig struct {
	TTL              time.Duration `envconfig:"CHROME_LISTING_TTL" default:"720h"`
	EnforceOwnership bool          `envconfig:"CHROME_LISTING_ENFORCE_OWNERSHIP" default:"true"`
}

type AIConfig struct {
	Host        string        `envconfig:"CHROME_OLLAMA_HOST" default:"http://localhost:11434"`
	Model       string        `envconfig:"CHROME_OLLAMA_MODEL" default:"llama3"`
	Timeout     time.Duration `envconfig:"CHROME_AI_TIMEOUT" default:"15s"`
	MaxTokens   int           `envconfig:"CHROME_AI_DESCRIPTION_MAX_TOKENS" default:"160"`
	Temperature float64       `envconfig:"CHROME_AI_TEMPERATURE" default:"0.6"`
}

type AIRateLimitConfig struct {
	Window time.Duration `envconfig:"CHROME_AI_RATE_LIMIT_WINDOW" default:"5m"`
	Limit  int           `envconfig:"CHROME_AI_RATE_LIMIT_MAX" default:"20"`
}

type IdempotencyConfig struct {
	TTL time.Duration `envconfig:"CHROME_IDEMPOTENCY_TTL" default:"24h"`
}

// CronConfig drives cmd/cron-worker. LockTTL bounds how long a crashed worker holds the
// shared lock.
type CronConfig struct {
	Interval time.Duration `envconfig:"CHROME_CRON_INTERVAL" default:"15m"`
	LockTTL  time.Duration `envconfig:"CHROME_CRON_LOCK_TTL" default:"10m"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"CHROME_AUTO_MIGRATE" default:"false"`
	Metrics     bool `envconfig:"CHROME_METRICS_ENABLED" default:"true"`
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
