// Package config loads service settings from the environment (and an optional .env file)
// and holds the domain limits shared by the services.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	// Messaging
	MaxMessageLength    = 5000
	MonitorMessageLimit = 100

	// Accounts
	MinPasswordLength = 8
	MaxPasswordLength = 100

	// Sessions
	MinSessionSecretLength = 32
	SessionIssuer          = "collective-backend"
)

const (
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

type DatabaseConfig struct {
	Host     string `mapstructure:"db_host"`
	Port     string `mapstructure:"db_port"`
	User     string `mapstructure:"db_user"`
	Password string `mapstructure:"db_password"`
	Name     string `mapstructure:"db_name"`
	SSLMode  string `mapstructure:"db_sslmode"`
}

// DSN renders the connection string understood by gorm's postgres driver.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		d.Host, d.User, d.Password, d.Name, d.Port, d.SSLMode)
}

type RedisConfig struct {
	Addr     string `mapstructure:"redis_addr"`
	Password string `mapstructure:"redis_password"`
	DB       int    `mapstructure:"redis_db"`
}

type SessionConfig struct {
	Secret       string        `mapstructure:"session_secret"`
	TTL          time.Duration `mapstructure:"session_ttl"`
	CookieName   string        `mapstructure:"session_cookie"`
	CookieSecure bool          `mapstructure:"cookie_secure"`
}

type Config struct {
	Port           string        `mapstructure:"port"`
	StorageBackend string        `mapstructure:"storage_backend"`
	LogLevel       string        `mapstructure:"log_level"`
	LogFormat      string        `mapstructure:"log_format"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`

	Database DatabaseConfig `mapstructure:",squash"`
	Redis    RedisConfig    `mapstructure:",squash"`
	Session  SessionConfig  `mapstructure:",squash"`
}

var defaults = map[string]any{
	"port":            "8080",
	"storage_backend": BackendPostgres,
	"log_level":       "info",
	"log_format":      "text",
	"request_timeout": "3s",

	"db_host":     "localhost",
	"db_port":     "5432",
	"db_user":     "user",
	"db_password": "password",
	"db_name":     "collectivedb",
	"db_sslmode":  "disable",

	"redis_addr":     "localhost:6379",
	"redis_password": "",
	"redis_db":       0,

	"session_secret": "",
	"session_ttl":    "168h",
	"session_cookie": "master-collective-session",
	"cookie_secure":  false,
}

// Load reads the optional .env files, then the process environment, and validates the result.
func Load(envFiles ...string) (*Config, error) {
	c, err := read(envFiles...)
	if err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadDatabase is Load for tools that only talk to PostgreSQL. Session settings are
// not required.
func LoadDatabase(envFiles ...string) (*Config, error) {
	c, err := read(envFiles...)
	if err != nil {
		return nil, err
	}
	if err := c.Database.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func read(envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && len(envFiles) > 0 {
		return nil, fmt.Errorf("config: load env file: %w", err)
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
		// AutomaticEnv only resolves keys viper already knows about.
		if err := v.BindEnv(key, strings.ToUpper(key)); err != nil {
			return nil, fmt.Errorf("config: bind %s: %w", key, err)
		}
	}
	v.AutomaticEnv()

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	return &c, nil
}

func (d DatabaseConfig) Validate() error {
	if d.Host == "" || d.Port == "" || d.Name == "" {
		return errors.New("config: DB_HOST, DB_PORT and DB_NAME are required")
	}
	return nil
}

// Validate checks the settings that have no safe default.
func (c *Config) Validate() error {
	switch c.StorageBackend {
	case BackendPostgres, BackendMemory:
	default:
		return fmt.Errorf("config: unknown STORAGE_BACKEND %q", c.StorageBackend)
	}
	if c.StorageBackend == BackendPostgres {
		if err := c.Database.Validate(); err != nil {
			return err
		}
	}
	if len(c.Session.Secret) < MinSessionSecretLength {
		return fmt.Errorf("config: SESSION_SECRET must be at least %d characters", MinSessionSecretLength)
	}
	if c.Session.TTL <= 0 {
		return errors.New("config: SESSION_TTL must be positive")
	}
	if c.RequestTimeout <= 0 {
		return errors.New("config: REQUEST_TIMEOUT must be positive")
	}
	return nil
}
