package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// DefaultUser is the identity used when neither the request nor the
// configuration names one.
const DefaultUser = "default_user"

// Config holds all configuration for the assistant
type Config struct {
	General      GeneralConfig      `mapstructure:"general"`
	Identity     IdentityConfig     `mapstructure:"identity"`
	Server       ServerConfig       `mapstructure:"server"`
	LLM          LLMConfig          `mapstructure:"llm"`
	Storage      StorageConfig      `mapstructure:"storage"`
	Session      SessionConfig      `mapstructure:"session"`
	Orchestrator OrchestratorConfig `mapstructure:"orchestrator"`
	Reconcile    ReconcileConfig    `mapstructure:"reconcile"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	Debug     bool   `mapstructure:"debug"`
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"` // json or console
}

// IdentityConfig controls how user identities are resolved from text.
type IdentityConfig struct {
	DefaultUser string `mapstructure:"default_user"`
	Strict      bool   `mapstructure:"strict"`
}

// Normalize falls back to the legacy USER_ID variable and then to DefaultUser.
func (c IdentityConfig) Normalize() IdentityConfig {
	c.DefaultUser = strings.ToLower(strings.TrimSpace(c.DefaultUser))
	if c.DefaultUser == "" {
		c.DefaultUser = strings.ToLower(strings.TrimSpace(os.Getenv("USER_ID")))
	}
	if c.DefaultUser == "" {
		c.DefaultUser = DefaultUser
	}
	return c
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Address      string        `mapstructure:"address"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// LLMConfig describes the OpenAI-compatible completion endpoint.
// An empty APIKey disables LLM use; rule-based interpretation is used instead.
type LLMConfig struct {
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	Model       string        `mapstructure:"model"`
	Temperature float32       `mapstructure:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// Enabled reports whether a completion endpoint is configured.
func (c LLMConfig) Enabled() bool { return strings.TrimSpace(c.APIKey) != "" }

type StorageConfig struct {
	Primary  string         `mapstructure:"primary"` // postgres or none
	Postgres PostgresConfig `mapstructure:"postgres"`
	File     FileConfig     `mapstructure:"file"`
}

func (s StorageConfig) Validate() error {
	switch s.Primary {
	case "postgres", "none":
	default:
		return fmt.Errorf("storage.primary must be postgres or none, got %q", s.Primary)
	}
	if strings.TrimSpace(s.File.DataDir) == "" {
		return errors.New("storage.file.data_dir is required")
	}
	return s.Postgres.Validate()
}

type PostgresConfig struct {
	URL             string        `mapstructure:"url"`
	Host            string        `mapstructure:"host"`
	Port            string        `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	Timeout         time.Duration `mapstructure:"timeout"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MigrationsDir   string        `mapstructure:"migrations_dir"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// Configured reports whether enough is set to attempt a connection.
// An unconfigured primary is not an error; it makes every primary call unavailable.
func (p PostgresConfig) Configured() bool {
	return strings.TrimSpace(p.URL) != "" || (strings.TrimSpace(p.Host) != "" && strings.TrimSpace(p.DBName) != "")
}

func (p PostgresConfig) Validate() error {
	if p.Timeout < 0 {
		return errors.New("storage.postgres.timeout must not be negative")
	}
	if strings.TrimSpace(p.URL) != "" {
		if _, err := url.Parse(p.URL); err != nil {
			return fmt.Errorf("storage.postgres.url: %w", err)
		}
	}
	return nil
}

// DSN builds the connection string, preferring URL when set.
func (p PostgresConfig) DSN() string {
	if strings.TrimSpace(p.URL) != "" {
		return p.URL
	}
	port := p.Port
	if port == "" {
		port = "5432"
	}
	sslmode := p.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(p.User, p.Password),
		Host:     p.Host + ":" + port,
		Path:     "/" + p.DBName,
		RawQuery: "sslmode=" + sslmode,
	}
	return u.String()
}

type FileConfig struct {
	DataDir     string        `mapstructure:"data_dir"`
	LockTimeout time.Duration `mapstructure:"lock_timeout"`
}

// SessionConfig selects the optional per-user conversation memory.
type SessionConfig struct {
	Backend  string        `mapstructure:"backend"` // memory, redis or none
	MaxTurns int           `mapstructure:"max_turns"`
	TTL      time.Duration `mapstructure:"ttl"`
	Redis    RedisConfig   `mapstructure:"redis"`
}

func (s SessionConfig) Validate() error {
	switch s.Backend {
	case "memory", "none":
		return nil
	case "redis":
		return s.Redis.Validate()
	}
	return fmt.Errorf("session.backend must be memory, redis or none, got %q", s.Backend)
}

type RedisConfig struct {
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// Configured reports whether a redis host is set.
func (r RedisConfig) Configured() bool { return strings.TrimSpace(r.Host) != "" }

func (r RedisConfig) Validate() error {
	if strings.TrimSpace(r.Host) == "" {
		return errors.New("session.redis.host is required")
	}
	if strings.TrimSpace(r.Port) == "" {
		return errors.New("session.redis.port is required")
	}
	return nil
}

type OrchestratorConfig struct {
	ConfidenceThreshold float64 `mapstructure:"confidence_threshold"`
}

func (o OrchestratorConfig) Validate() error {
	if o.ConfidenceThreshold < 0 || o.ConfidenceThreshold > 1 {
		return fmt.Errorf("orchestrator.confidence_threshold must be within [0,1], got %v", o.ConfidenceThreshold)
	}
	return nil
}

// ReconcileConfig schedules the fallback-to-primary migration job.
// An empty Schedule means the job only runs through `aide reconcile`.
type ReconcileConfig struct {
	Schedule string        `mapstructure:"schedule"`
	LockTTL  time.Duration `mapstructure:"lock_ttl"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("general.log_level", "info")
	v.SetDefault("general.log_format", "console")
	v.SetDefault("identity.default_user", "")
	v.SetDefault("identity.strict", false)
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.temperature", 0.1)
	v.SetDefault("llm.max_tokens", 1024)
	v.SetDefault("llm.timeout", 30*time.Second)
	v.SetDefault("storage.primary", "postgres")
	v.SetDefault("storage.postgres.url", "")
	v.SetDefault("storage.postgres.host", "")
	v.SetDefault("storage.postgres.port", "5432")
	v.SetDefault("storage.postgres.user", "")
	v.SetDefault("storage.postgres.password", "")
	v.SetDefault("storage.postgres.dbname", "")
	v.SetDefault("storage.postgres.sslmode", "disable")
	v.SetDefault("storage.postgres.timeout", 5*time.Second)
	v.SetDefault("storage.postgres.max_open_conns", 10)
	v.SetDefault("storage.postgres.conn_max_lifetime", 30*time.Minute)
	v.SetDefault("storage.postgres.migrations_dir", "migrations")
	v.SetDefault("storage.file.data_dir", "data")
	v.SetDefault("storage.file.lock_timeout", 5*time.Second)
	v.SetDefault("session.backend", "memory")
	v.SetDefault("session.max_turns", 10)
	v.SetDefault("session.ttl", 24*time.Hour)
	v.SetDefault("session.redis.host", "")
	v.SetDefault("session.redis.port", "6379")
	v.SetDefault("session.redis.password", "")
	v.SetDefault("session.redis.db", 0)
	v.SetDefault("session.redis.timeout", 3*time.Second)
	v.SetDefault("orchestrator.confidence_threshold", 0.5)
	v.SetDefault("reconcile.schedule", "")
	v.SetDefault("reconcile.lock_ttl", 5*time.Minute)
}

// Load reads .env, the JSON config file and AIDE_* environment variables.
// A missing config file is fine; defaults and the environment still apply.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("json")
	setDefaults(v)

	if path == "" {
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
		if exe, err := os.Executable(); err == nil {
			exeDir := filepath.Dir(exe)
			v.AddConfigPath(exeDir)
			v.AddConfigPath(filepath.Join(exeDir, "..", "config"))
		}
	} else {
		v.SetConfigFile(path)
	}

	v.SetEnvPrefix("AIDE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Identity = cfg.Identity.Normalize()

	if err := cfg.Storage.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Session.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Orchestrator.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadConfig is Load for command entry points: any error is fatal.
func LoadConfig(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}
	return cfg
}
