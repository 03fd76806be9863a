package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Database drivers understood by the credential store factory.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// minSecretLength is the shortest HMAC secret accepted for either token kind.
const minSecretLength = 32

// Config is the root configuration structure for the service desk core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Service  ServiceConfig  `yaml:"service"`
	Database DatabaseConfig `yaml:"database"`
	API      APIConfig      `yaml:"api"`
	Logging  LoggingConfig  `yaml:"logging"`
	Security SecurityConfig `yaml:"security"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ServiceConfig identifies this deployment.
type ServiceConfig struct {
	Name string `yaml:"name"`
}

// DatabaseConfig contains credential and audit storage settings.
type DatabaseConfig struct {
	// Driver selects the backing store: sqlite, postgres or memory.
	Driver string `yaml:"driver"`

	// Path is the SQLite database file (sqlite driver only).
	Path string `yaml:"path"`

	// DSN is the PostgreSQL connection string (postgres driver only).
	DSN string `yaml:"dsn"`

	WALMode     bool `yaml:"wal_mode"`
	BusyTimeout int  `yaml:"busy_timeout"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// SecurityConfig contains token signing and bootstrap settings.
type SecurityConfig struct {
	AccessToken    TokenConfig          `yaml:"access_token"`
	RefreshToken   TokenConfig          `yaml:"refresh_token"`
	BootstrapAdmin BootstrapAdminConfig `yaml:"bootstrap_admin"`
}

// TokenConfig holds the HMAC secret and lifetime (seconds) for one token kind.
type TokenConfig struct {
	Secret string `yaml:"secret"`
	TTL    int    `yaml:"ttl"`
}

// TTLDuration returns the token lifetime as a Duration.
func (t TokenConfig) TTLDuration() time.Duration {
	return time.Duration(t.TTL) * time.Second
}

// BootstrapAdminConfig controls creation of the first admin credential.
// An empty Email disables seeding.
type BootstrapAdminConfig struct {
	Email string `yaml:"email"`
}

// MQTTConfig contains MQTT broker settings for the audit mirror.
type MQTTConfig struct {
	Enabled     bool                `yaml:"enabled"`
	Broker      MQTTBrokerConfig    `yaml:"broker"`
	Auth        MQTTAuthConfig      `yaml:"auth"`
	QoS         int                 `yaml:"qos"`
	TopicPrefix string              `yaml:"topic_prefix"`
	Reconnect   MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings in seconds.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: SERVICEDESK_SECTION_KEY
// For example: SERVICEDESK_DATABASE_DSN, SERVICEDESK_ACCESS_TOKEN_SECRET
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
// Secrets have no default: both must come from the file or the environment.
func defaultConfig() *Config {
	return &Config{
		Service: ServiceConfig{
			Name: "servicedesk",
		},
		Database: DatabaseConfig{
			Driver:      DriverSQLite,
			Path:        "./data/servicedesk.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Security: SecurityConfig{
			AccessToken: TokenConfig{
				TTL: 3600,
			},
			RefreshToken: TokenConfig{
				TTL: 7 * 24 * 3600,
			},
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "servicedesk-core",
			},
			QoS:         1,
			TopicPrefix: "servicedesk",
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) {
	// Database
	if v := os.Getenv("SERVICEDESK_DATABASE_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("SERVICEDESK_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("SERVICEDESK_DATABASE_DSN"); v != "" {
		cfg.Database.DSN = v
	}

	// API
	if v := os.Getenv("SERVICEDESK_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("SERVICEDESK_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}

	// MQTT
	if v := os.Getenv("SERVICEDESK_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("SERVICEDESK_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// Security - token secrets (always set these from the environment in production)
	if v := os.Getenv("SERVICEDESK_ACCESS_TOKEN_SECRET"); v != "" {
		cfg.Security.AccessToken.Secret = v
	}
	if v := os.Getenv("SERVICEDESK_REFRESH_TOKEN_SECRET"); v != "" {
		cfg.Security.RefreshToken.Secret = v
	}
	if v := os.Getenv("SERVICEDESK_BOOTSTRAP_ADMIN_EMAIL"); v != "" {
		cfg.Security.BootstrapAdmin.Email = v
	}
}

// Validate checks the configuration for errors and security issues.
//
// Returns:
//   - error: Description of every validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Database validation
	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.Path == "" {
			errs = append(errs, "database.path is required for the sqlite driver")
		}
	case DriverPostgres:
		if c.Database.DSN == "" {
			errs = append(errs, "database.dsn is required for the postgres driver (set SERVICEDESK_DATABASE_DSN)")
		}
	case DriverMemory:
	default:
		errs = append(errs, fmt.Sprintf("database.driver %q must be sqlite, postgres, or memory", c.Database.Driver))
	}

	// API validation
	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}
	if c.API.TLS.Enabled && (c.API.TLS.CertFile == "" || c.API.TLS.KeyFile == "") {
		errs = append(errs, "api.tls.cert_file and api.tls.key_file are required when TLS is enabled")
	}

	// Security validation - both secrets are REQUIRED and must differ, so a
	// leaked access secret cannot be used to mint refresh tokens.
	errs = append(errs, validateToken("security.access_token", "SERVICEDESK_ACCESS_TOKEN_SECRET", c.Security.AccessToken)...)
	errs = append(errs, validateToken("security.refresh_token", "SERVICEDESK_REFRESH_TOKEN_SECRET", c.Security.RefreshToken)...)
	if c.Security.AccessToken.Secret != "" && c.Security.AccessToken.Secret == c.Security.RefreshToken.Secret {
		errs = append(errs, "security.access_token.secret and security.refresh_token.secret must be distinct")
	}

	// MQTT validation (only when the audit mirror is enabled)
	if c.MQTT.Enabled {
		if c.MQTT.Broker.Host == "" {
			errs = append(errs, "mqtt.broker.host is required when mqtt is enabled")
		}
		if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
			errs = append(errs, "mqtt.qos must be 0, 1, or 2")
		}
		if c.MQTT.TopicPrefix == "" {
			errs = append(errs, "mqtt.topic_prefix is required when mqtt is enabled")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

func validateToken(section, envVar string, t TokenConfig) []string {
	var errs []string
	if t.Secret == "" {
		errs = append(errs, fmt.Sprintf("%s.secret is required (set %s environment variable)", section, envVar))
	} else if len(t.Secret) < minSecretLength {
		errs = append(errs, fmt.Sprintf("%s.secret must be at least %d characters", section, minSecretLength))
	}
	if t.TTL <= 0 {
		errs = append(errs, fmt.Sprintf("%s.ttl must be a positive number of seconds", section))
	}
	return errs
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
