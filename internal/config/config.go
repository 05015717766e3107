package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/ehr/patientdata/internal/platform/db"
)

// ErrNotConfigured means the database credentials are absent, as opposed to
// present but rejected by the server.
var ErrNotConfigured = errors.New("database connection is not configured")

type Config struct {
	DBUsername     string `mapstructure:"DB_USERNAME"`
	DBPassword     string `mapstructure:"DB_PASSWORD"`
	DBDSN          string `mapstructure:"DB_DSN"`
	DBDriver       string `mapstructure:"DB_DRIVER"`
	DBDialect      string `mapstructure:"DB_DIALECT"`
	Env            string `mapstructure:"ENV"`
	LogLevel       string `mapstructure:"LOG_LEVEL"`
	LogFile        string `mapstructure:"LOG_FILE"`
	Port           string `mapstructure:"PORT"`
	AuthSigningKey string `mapstructure:"AUTH_SIGNING_KEY"`
	AuthIssuer     string `mapstructure:"AUTH_ISSUER"`
	AuthAudience   string `mapstructure:"AUTH_AUDIENCE"`
}

var keys = []string{
	"DB_USERNAME", "DB_PASSWORD", "DB_DSN", "DB_DRIVER", "DB_DIALECT",
	"ENV", "LOG_LEVEL", "LOG_FILE", "PORT",
	"AUTH_SIGNING_KEY", "AUTH_ISSUER", "AUTH_AUDIENCE",
}

// Load reads path, then the environment, which takes precedence. An empty
// path means ".env", which may be absent; an explicit path must be readable.
func Load(path string) (*Config, error) {
	optional := path == ""
	if optional {
		path = ".env"
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.AutomaticEnv()

	v.SetDefault("DB_DRIVER", db.DriverOracle)
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("PORT", "8000")

	// Bind env vars explicitly so Unmarshal picks them up
	for _, k := range keys {
		v.BindEnv(k)
	}

	if err := v.ReadInConfig(); err != nil && !(optional && isNotFound(err)) {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	var missing []string
	if cfg.DBUsername == "" {
		missing = append(missing, "DB_USERNAME")
	}
	if cfg.DBPassword == "" {
		missing = append(missing, "DB_PASSWORD")
	}
	if cfg.DBDSN == "" {
		missing = append(missing, "DB_DSN")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s must be set", ErrNotConfigured, strings.Join(missing, ", "))
	}

	return cfg, nil
}

func isNotFound(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	return errors.Is(err, fs.ErrNotExist) || errors.As(err, &notFound)
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// Validate checks the settings every command depends on.
func (c *Config) Validate() error {
	switch c.Env {
	case "development", "staging", "production":
	default:
		return fmt.Errorf("ENV must be \"development\", \"staging\", or \"production\", got %q", c.Env)
	}
	if _, err := db.NewConnector(c.Credentials(), zerolog.Nop()).Dialect(); err != nil {
		return err
	}
	return nil
}

// ValidateServe adds the checks needed before exposing the HTTP API. Outside
// development every request must carry a signed token.
func (c *Config) ValidateServe() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if !c.IsDev() && c.AuthSigningKey == "" {
		return fmt.Errorf("AUTH_SIGNING_KEY is required when ENV=%q", c.Env)
	}
	if c.Port == "" {
		return fmt.Errorf("PORT must not be empty")
	}
	return nil
}

func (c *Config) Credentials() db.Credentials {
	return db.Credentials{
		Username: c.DBUsername,
		Password: c.DBPassword,
		Locator:  c.DBDSN,
		Driver:   c.DBDriver,
		Dialect:  db.Dialect(c.DBDialect),
	}
}
