package config

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
)

// Config is built once at process start and handed to every component.
// Nothing below cmd/ reads the process environment directly.
type Config struct {
	AppEnv  string `envconfig:"APP_ENV" default:"dev" validate:"oneof=dev test staging prod"`
	AppHost string `envconfig:"APP_HOST" default:"0.0.0.0"`
	AppPort string `envconfig:"APP_PORT" default:"4000" validate:"required,numeric"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=trace debug info warn warning error"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"text" validate:"oneof=text json"`

	Database Database
	Stripe   Stripe
	Email    Email
	Cache    Cache
	Archive  Archive
	Admin    Admin

	FrontendURL      string `envconfig:"FRONTEND_URL" default:"http://localhost:5173" validate:"required,url"`
	WebhookBodyLimit int    `envconfig:"WEBHOOK_BODY_LIMIT" default:"1048576" validate:"min=1024"`
}

type Database struct {
	Driver      string `envconfig:"DB_DRIVER" default:"postgres" validate:"oneof=postgres mysql"`
	URL         string `envconfig:"DATABASE_URL" validate:"required"`
	AutoMigrate bool   `envconfig:"DB_AUTO_MIGRATE" default:"false"`
	MaxRetries  uint64 `envconfig:"DB_CONNECT_RETRIES" default:"5"`
}

type Stripe struct {
	SecretKey string `envconfig:"STRIPE_SECRET_KEY" validate:"required"`
	// WebhookSecrets holds every accepted signing secret; more than one during
	// a rotation. Empty means unverified mode.
	WebhookSecrets []string `envconfig:"STRIPE_WEBHOOK_SECRET"`
}

type Email struct {
	SendGridAPIKey string `envconfig:"SENDGRID_API_KEY"`
	SendGridURL    string `envconfig:"SENDGRID_API_URL" default:"https://api.sendgrid.com/v3/mail/send" validate:"url"`
	From           string `envconfig:"EMAIL_FROM" default:"no-reply@comanda.app" validate:"email"`
	FromName       string `envconfig:"EMAIL_FROM_NAME" default:"Comanda"`
	SMTPHost       string `envconfig:"SMTP_HOST"`
	SMTPPort       string `envconfig:"SMTP_PORT" default:"587"`
	SMTPUsername   string `envconfig:"SMTP_USERNAME"`
	SMTPPassword   string `envconfig:"SMTP_PASSWORD"`
}

type Cache struct {
	Host     string `envconfig:"CACHE_HOST"`
	Port     int    `envconfig:"CACHE_PORT" default:"6379"`
	Password string `envconfig:"CACHE_PASSWORD"`
	DB       int    `envconfig:"CACHE_DB" default:"0"`
}

type Archive struct {
	Enabled         bool   `envconfig:"S3_ARCHIVE_ENABLED" default:"false"`
	AccessKeyID     string `envconfig:"S3_ACCESS_KEY_ID"`
	SecretAccessKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	Region          string `envconfig:"S3_REGION" default:"us-east-1"`
	BucketName      string `envconfig:"S3_BUCKET_NAME"`
	EndpointURL     string `envconfig:"S3_ENDPOINT_URL"`
	Prefix          string `envconfig:"S3_ARCHIVE_PREFIX" default:"webhooks"`
}

type Admin struct {
	User         string `envconfig:"ADMIN_USER" default:"admin"`
	PasswordHash string `envconfig:"ADMIN_PASSWORD_HASH"`
}

// Load reads the process environment into a validated Config.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, errors.Wrap(err, "read environment")
	}
	cfg.Stripe.WebhookSecrets = compact(cfg.Stripe.WebhookSecrets)
	cfg.FrontendURL = strings.TrimRight(cfg.FrontendURL, "/")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field constraints and the cross-field rules that the
// struct tags cannot express.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return errors.Wrap(err, "invalid configuration")
	}
	if c.IsProd() && c.UnverifiedWebhooks() {
		return errors.New("STRIPE_WEBHOOK_SECRET is required when APP_ENV=prod")
	}
	if c.Archive.Enabled {
		if c.Archive.AccessKeyID == "" || c.Archive.SecretAccessKey == "" || c.Archive.BucketName == "" {
			return errors.New("S3_ACCESS_KEY_ID, S3_SECRET_ACCESS_KEY and S3_BUCKET_NAME are required when S3_ARCHIVE_ENABLED=true")
		}
	}
	return nil
}

func (c *Config) IsProd() bool {
	return c.AppEnv == "prod"
}

// UnverifiedWebhooks reports the development posture where webhook
// signatures are not checked at all.
func (c *Config) UnverifiedWebhooks() bool {
	return len(c.Stripe.WebhookSecrets) == 0
}

func (c *Config) ListenAddr() string {
	return c.AppHost + ":" + c.AppPort
}

func compact(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// LoadDatabase reads only the database settings, for tools like cmd/migrate
// that must run without the Stripe keys.
func LoadDatabase() (Database, error) {
	var db Database
	if err := envconfig.Process("", &db); err != nil {
		return Database{}, errors.Wrap(err, "read database environment")
	}
	if err := validator.New().Struct(db); err != nil {
		return Database{}, errors.Wrap(err, "invalid database configuration")
	}
	return db, nil
}
