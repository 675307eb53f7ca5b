// Package config loads runtime configuration from the environment. A .env
// file, when present, is loaded first; real environment variables win.
package config

import (
	"errors"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// HTTPConfig tunes the public listener.
type HTTPConfig struct {
	Addr            string        `env:"HTTP_ADDR" env-default:":8080"`
	ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" env-default:"15s"`
	WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" env-default:"30s"`
	IdleTimeout     time.Duration `env:"HTTP_IDLE_TIMEOUT" env-default:"60s"`
	ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" env-default:"10s"`
	MaxBodyBytes    int64         `env:"HTTP_MAX_BODY_BYTES" env-default:"1048576"`
	MaxUploadBytes  int64         `env:"HTTP_MAX_UPLOAD_BYTES" env-default:"5242880"`
	RateLimitRPS    float64       `env:"HTTP_RATE_LIMIT_RPS" env-default:"50"`
	RateLimitBurst  int           `env:"HTTP_RATE_LIMIT_BURST" env-default:"100"`
	CORSOrigin      string        `env:"HTTP_CORS_ORIGIN" env-default:"*"`
	ShareBaseURL    string        `env:"HTTP_SHARE_BASE_URL" env-default:"https://murmur.dev"`
}

// MongoConfig locates the database.
type MongoConfig struct {
	URI      string `env:"MONGO_URI" env-default:"mongodb://localhost:27017"`
	Database string `env:"MONGO_DATABASE" env-default:"murmur"`
}

// TokenConfig holds the four signing secrets and the token lifetimes.
type TokenConfig struct {
	UserAccessSecret   string        `env:"JWT_USER_ACCESS_SECRET"`
	UserRefreshSecret  string        `env:"JWT_USER_REFRESH_SECRET"`
	AdminAccessSecret  string        `env:"JWT_ADMIN_ACCESS_SECRET"`
	AdminRefreshSecret string        `env:"JWT_ADMIN_REFRESH_SECRET"`
	Issuer             string        `env:"JWT_ISSUER" env-default:"murmur"`
	Scheme             string        `env:"JWT_BEARER_SCHEME" env-default:"Bearer"`
	AccessTTL          time.Duration `env:"JWT_ACCESS_TTL" env-default:"1h"`
	RefreshTTL         time.Duration `env:"JWT_REFRESH_TTL" env-default:"168h"`
}

// SMTPConfig locates the outbound mail relay. An empty host disables email
// delivery; OTP codes then go nowhere, which only makes sense in dev.
type SMTPConfig struct {
	Host     string `env:"SMTP_HOST"`
	Port     int    `env:"SMTP_PORT" env-default:"587"`
	Username string `env:"SMTP_USERNAME"`
	Password string `env:"SMTP_PASSWORD"`
	From     string `env:"SMTP_FROM" env-default:"no-reply@murmur.dev"`
	TLS      bool   `env:"SMTP_TLS" env-default:"true"`
	Buffer   int    `env:"SMTP_QUEUE_BUFFER" env-default:"64"`
}

// MinIOConfig locates the image store. An empty endpoint disables uploads.
type MinIOConfig struct {
	Endpoint  string `env:"MINIO_ENDPOINT"`
	AccessKey string `env:"MINIO_ACCESS_KEY"`
	SecretKey string `env:"MINIO_SECRET_KEY"`
	Bucket    string `env:"MINIO_BUCKET" env-default:"murmur"`
	UseSSL    bool   `env:"MINIO_USE_SSL" env-default:"false"`
}

// Config is the full runtime configuration.
type Config struct {
	Env            string `env:"APP_ENV" env-default:"development"`
	Version        string `env:"APP_VERSION" env-default:"dev"`
	CryptoSecret   string `env:"CRYPTO_SECRET"`
	GoogleAudience string `env:"GOOGLE_CLIENT_ID"`
	BcryptCost     int    `env:"BCRYPT_COST" env-default:"12"`

	HTTP  HTTPConfig
	Mongo MongoConfig
	Token TokenConfig
	SMTP  SMTPConfig
	MinIO MinIOConfig
}

// Dev reports whether the process runs in development mode. Error responses
// include stack details only in dev.
func (c *Config) Dev() bool { return c.Env != "production" }

// Load reads .env (if present) and the environment, then validates the
// values without defaults.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Token.UserAccessSecret == "" || c.Token.UserRefreshSecret == "" ||
		c.Token.AdminAccessSecret == "" || c.Token.AdminRefreshSecret == "" {
		return errors.New("config: all four JWT secrets must be set")
	}
	if c.CryptoSecret == "" {
		return errors.New("config: CRYPTO_SECRET must be set")
	}
	return nil
}
