package config

import "time"

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            string        `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// GRPCConfig configures the gRPC listener that only serves health checks.
type GRPCConfig struct {
	Enabled          bool   `mapstructure:"enabled"`
	Port             string `mapstructure:"port"`
	EnableReflection bool   `mapstructure:"enable_reflection"`
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnectRetries  int           `mapstructure:"connect_retries"`
	ConnectBackoff  time.Duration `mapstructure:"connect_backoff"`
	LogQueries      bool          `mapstructure:"log_queries"`
}

type SessionConfig struct {
	Secret     string        `mapstructure:"secret"`
	CookieName string        `mapstructure:"cookie_name"`
	Lifetime   time.Duration `mapstructure:"lifetime"`
	Secure     bool          `mapstructure:"secure"`
	SameSite   string        `mapstructure:"same_site"`
	Domain     string        `mapstructure:"domain"`
}

type AuthConfig struct {
	// LegacyAdminPlaintext keeps the bootstrap behavior where admin passwords
	// are compared by plain equality instead of bcrypt.
	LegacyAdminPlaintext bool `mapstructure:"legacy_admin_plaintext"`
	BcryptCost           int  `mapstructure:"bcrypt_cost"`
}

type GoogleConfig struct {
	ClientID     string        `mapstructure:"client_id"`
	ClientSecret string        `mapstructure:"client_secret"`
	RedirectURL  string        `mapstructure:"redirect_url"`
	JWKSURL      string        `mapstructure:"jwks_url"`
	JWKSRefresh  time.Duration `mapstructure:"jwks_refresh"`
}

type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

type PinConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	MaxAge         int      `mapstructure:"max_age"`
}

type APIConfig struct {
	// MirrorProblemStatus fills the error envelope "status" with the HTTP code.
	// Off by default; existing clients expect 0.
	MirrorProblemStatus bool `mapstructure:"mirror_problem_status"`
}

type AppConfig struct {
	Env      string         `mapstructure:"env"`
	Server   ServerConfig   `mapstructure:"server"`
	GRPC     GRPCConfig     `mapstructure:"grpc"`
	Database DatabaseConfig `mapstructure:"database"`
	Session  SessionConfig  `mapstructure:"session"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Google   GoogleConfig   `mapstructure:"google"`
	SMTP     SMTPConfig     `mapstructure:"smtp"`
	Pin      PinConfig      `mapstructure:"pin"`
	CORS     CORSConfig     `mapstructure:"cors"`
	API      APIConfig      `mapstructure:"api"`
}

// IsTesting reports whether the service runs in the testing execution mode.
func (c *AppConfig) IsTesting() bool {
	return c.Env == "testing"
}
