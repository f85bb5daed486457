package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

// Config holds all service configuration
type Config struct {
	LogFormat    string             `toml:"log_format"`
	Server       ServerConfig       `toml:"server"`
	DB           DBConfig           `toml:"db"`
	Redis        RedisConfig        `toml:"redis"`
	Fanout       FanoutConfig       `toml:"fanout"`
	Provisioning ProvisioningConfig `toml:"provisioning"`
}

type ServerConfig struct {
	GRPCPort int `toml:"grpc_port"`
	HTTPPort int `toml:"http_port"`
}

type DBConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	Name     string `toml:"name"`
	SSLMode  string `toml:"sslmode"`
	MaxConns int32  `toml:"max_conns"`
	MinConns int32  `toml:"min_conns"`

	// ConnectAttempts is the number of connection attempts at startup.
	ConnectAttempts uint `toml:"connect_attempts"`
}

// DSN returns the libpq style connection string.
func (c DBConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

// URL returns the connection string in URL form, as golang-migrate expects.
func (c DBConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode)
}

type RedisConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`

	// SourceCacheTTL is how long source configurations stay cached. Zero
	// disables the cache.
	SourceCacheTTL duration      `toml:"source_cache_ttl"`
	Events         EventChannels `toml:"events"`
}

// EventChannels names the pub/sub channels carrying platform events.
type EventChannels struct {
	TenantCreated      string `toml:"tenant_created"`
	UserDeleted        string `toml:"user_deleted"`
	LocalizationEdited string `toml:"localization_edited"`
}

type FanoutConfig struct {
	MaxConcurrency int      `toml:"max_concurrency"`
	DefaultTimeout duration `toml:"default_timeout"`
}

type ProvisioningConfig struct {
	DisplayName    string              `toml:"display_name"`
	ProfileName    string              `toml:"profile_name"`
	Columns        []ColumnConfig      `toml:"columns"`
	SearchedFields []string            `toml:"searched_columns"`
	FirstMatched   []string            `toml:"first_matched_columns"`
	FormatColumns  map[string]string   `toml:"format_columns"`
	Sources        []ProvisionedSource `toml:"sources"`
	Timeout        float64             `toml:"timeout"`
}

type ColumnConfig struct {
	Title         string `toml:"title"`
	Field         string `toml:"field"`
	Type          string `toml:"type"`
	Default       string `toml:"default"`
	NumberDisplay string `toml:"number_display"`
}

// ProvisionedSource is an extra source created for every new tenant.
type ProvisionedSource struct {
	Backend     string         `toml:"backend"`
	Name        string         `toml:"name"`
	ExtraFields map[string]any `toml:"extra_fields"`
}

// duration decodes TOML strings such as "1.5s".
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		LogFormat: "console",
		Server: ServerConfig{
			GRPCPort: 50061,
			HTTPPort: 8081,
		},
		DB: DBConfig{
			Host:            "localhost",
			Port:            5432,
			User:            "admin",
			Password:        "securepassword",
			Name:            "directory",
			SSLMode:         "disable",
			MaxConns:        20,
			MinConns:        2,
			ConnectAttempts: 5,
		},
		Redis: RedisConfig{
			Addr:           "localhost:6379",
			SourceCacheTTL: duration{time.Hour},
			Events: EventChannels{
				TenantCreated:      "auth_tenant_added",
				UserDeleted:        "user_deleted",
				LocalizationEdited: "localization_edited",
			},
		},
		Fanout: FanoutConfig{
			MaxConcurrency: 10,
			DefaultTimeout: duration{time.Second},
		},
		Provisioning: ProvisioningConfig{
			DisplayName: "default_display",
			ProfileName: "default",
			Columns: []ColumnConfig{
				{Title: "Firstname", Field: "firstname"},
				{Title: "Lastname", Field: "lastname"},
				{Title: "Number", Field: "phone", Type: "number", NumberDisplay: "{firstname} {lastname}"},
				{Title: "Mobile", Field: "mobile", Type: "callable"},
				{Title: "Email", Field: "email", Type: "email"},
				{Title: "Favorite", Field: "favorite", Type: "favorite"},
				{Title: "Personal", Field: "personal", Type: "personal"},
			},
			SearchedFields: []string{"firstname", "lastname", "phone", "mobile", "email"},
			FirstMatched:   []string{"phone", "mobile"},
			FormatColumns:  map[string]string{"name": "{firstname} {lastname}"},
			Timeout:        1,
		},
	}
}

// Load reads the TOML file at filename over the defaults, then applies the
// DIRD_* environment overrides. An empty filename loads only the defaults.
func Load(filename string) (*Config, error) {
	cfg := Default()
	if filename != "" {
		content, err := os.ReadFile(filename)
		if err != nil {
			return nil, fmt.Errorf("error reading config file: %v", err)
		}
		if _, err := toml.Decode(string(content), cfg); err != nil {
			return nil, fmt.Errorf("error parsing config file: %v", err)
		}
	}
	applyEnv(cfg)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.DB.Host = getEnv("DIRD_DB_HOST", cfg.DB.Host)
	cfg.DB.Port = getEnvAsInt("DIRD_DB_PORT", cfg.DB.Port)
	cfg.DB.User = getEnv("DIRD_DB_USER", cfg.DB.User)
	cfg.DB.Password = getEnv("DIRD_DB_PASSWORD", cfg.DB.Password)
	cfg.DB.Name = getEnv("DIRD_DB_NAME", cfg.DB.Name)
	cfg.Redis.Addr = getEnv("DIRD_REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = getEnv("DIRD_REDIS_PASSWORD", cfg.Redis.Password)
	cfg.LogFormat = getEnv("DIRD_LOG_FORMAT", cfg.LogFormat)
}

func (c *Config) validate() error {
	if c.DB.Name == "" {
		return fmt.Errorf("db.name is required")
	}
	if c.Fanout.MaxConcurrency <= 0 {
		return fmt.Errorf("fanout.max_concurrency must be positive")
	}
	if c.Fanout.DefaultTimeout.Duration <= 0 {
		return fmt.Errorf("fanout.default_timeout must be positive")
	}
	return nil
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
