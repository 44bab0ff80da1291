package server

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/elskow/users-api/internal/config"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
	EnvTesting     = "testing"
)

const envPrefix = "USERS"

// LoadConfig reads config/server/config.toml, applies the session.<env>
// overlay and lets USERS_* environment variables override any key.
func LoadConfig() (*config.AppConfig, error) {
	return loadConfig("./config/server")
}

func loadConfig(paths ...string) (*config.AppConfig, error) {
	// A missing .env is the normal case outside local development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("error reading .env file: %w", err)
	}

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = EnvDevelopment
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg config.AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	cfg.Env = env

	// Load environment-specific configurations
	if envSettings := v.GetStringMap(fmt.Sprintf("session.%s", env)); len(envSettings) > 0 {
		if err := v.UnmarshalKey(fmt.Sprintf("session.%s", env), &cfg.Session); err != nil {
			return nil, fmt.Errorf("error unmarshaling env config: %w", err)
		}
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Second)
	v.SetDefault("server.shutdown_timeout", 15*time.Second)

	v.SetDefault("grpc.enabled", false)
	v.SetDefault("grpc.port", "9090")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 30*time.Minute)
	v.SetDefault("database.connect_retries", 5)
	v.SetDefault("database.connect_backoff", 2*time.Second)

	// Keys without a default are declared so AutomaticEnv can still bind them.
	for _, key := range []string{
		"database.user", "database.password", "database.name",
		"session.secret", "session.domain",
		"google.client_id", "google.client_secret", "google.redirect_url",
		"smtp.host", "smtp.username", "smtp.password", "smtp.from",
	} {
		v.SetDefault(key, "")
	}

	v.SetDefault("session.cookie_name", "session")
	v.SetDefault("session.lifetime", 5*time.Minute)
	v.SetDefault("session.secure", true)
	v.SetDefault("session.same_site", "none")

	v.SetDefault("auth.legacy_admin_plaintext", true)
	v.SetDefault("auth.bcrypt_cost", 10)

	v.SetDefault("google.jwks_url", "https://www.googleapis.com/oauth2/v3/certs")
	v.SetDefault("google.jwks_refresh", time.Hour)

	v.SetDefault("smtp.port", 587)

	v.SetDefault("pin.ttl", 10*time.Minute)

	v.SetDefault("cors.max_age", 300)
}

func validate(cfg *config.AppConfig) error {
	if cfg.Session.Secret == "" {
		return errors.New("session.secret is required")
	}
	if cfg.Session.Lifetime <= 0 {
		return errors.New("session.lifetime must be positive")
	}
	if cfg.Pin.TTL <= 0 {
		return errors.New("pin.ttl must be positive")
	}
	return nil
}
