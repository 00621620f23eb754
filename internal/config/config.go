package config // package config loads application configuration from environment variables

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Application environments.  Development responses carry full error
// details; production responses hide anything that is not operational.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Store drivers selectable through STORE_DRIVER.
const (
	StoreMongo  = "mongo"
	StoreMemory = "memory"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  It is loaded once at startup and handed to the
// constructors that need it; nothing below main reads the environment.
type Config struct {
	Env         string `env:"APP_ENV" envDefault:"development"` // application environment
	Port        string `env:"APP_PORT" envDefault:"3000"`       // HTTP port to listen on
	BodyLimit   string `env:"BODY_LIMIT" envDefault:"10K"`      // max accepted request body
	StoreDriver string `env:"STORE_DRIVER" envDefault:"mongo"`  // mongo | memory
	MongoURI    string `env:"MONGO_URI" envDefault:"mongodb://localhost:27017"`
	MongoDB     string `env:"MONGO_DB" envDefault:"tours"`
	RabbitURL   string `env:"RABBITMQ_URL"` // empty disables booking events

	JWTSecret     string        `env:"JWT_SECRET,required"`                   // secret used to sign JWTs
	JWTExpiresIn  time.Duration `env:"JWT_EXPIRES_IN" envDefault:"2160h"`     // session token lifetime
	BcryptCost    int           `env:"BCRYPT_COST" envDefault:"12"`           // bcrypt cost for password hashing
	ResetTokenTTL time.Duration `env:"RESET_TOKEN_TTL" envDefault:"10m"`      // password reset token lifetime
	ResetURLBase  string        `env:"RESET_URL_BASE" envDefault:"http://localhost:3000"`

	SMTP SMTPConfig
}

// SMTPConfig holds the mail transport settings used by the password reset flow.
type SMTPConfig struct {
	Host     string `env:"SMTP_HOST" envDefault:"localhost"`
	Port     int    `env:"SMTP_PORT" envDefault:"2525"`
	Username string `env:"SMTP_USERNAME"`
	Password string `env:"SMTP_PASSWORD"`
	From     string `env:"SMTP_FROM" envDefault:"Tours <no-reply@tours.local>"`
}

// Load reads an optional .env file and then parses the environment into a
// Config.  Missing required variables and malformed values are returned as
// errors so main can decide how to report them.
func Load() (Config, error) {
	_ = godotenv.Load() // a missing .env is fine; real env vars always win

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// IsProduction reports whether error details must be withheld from clients.
func (c Config) IsProduction() bool { return c.Env == EnvProduction }

func (c Config) validate() error {
	switch c.Env {
	case EnvDevelopment, EnvProduction:
	default:
		return fmt.Errorf("invalid APP_ENV %q", c.Env)
	}
	switch c.StoreDriver {
	case StoreMongo, StoreMemory:
	default:
		return fmt.Errorf("invalid STORE_DRIVER %q", c.StoreDriver)
	}
	if len(c.JWTSecret) < 32 {
		return errors.New("JWT_SECRET must be at least 32 characters")
	}
	if c.JWTExpiresIn <= 0 || c.ResetTokenTTL <= 0 {
		return errors.New("token lifetimes must be positive")
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return fmt.Errorf("invalid BCRYPT_COST %d", c.BcryptCost)
	}
	return nil
}
