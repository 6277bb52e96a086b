package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Remote store drivers.
const (
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config holds every application setting. It mirrors config.yaml.
type Config struct {
	Server ServerConfig `mapstructure:"server"`
	Log    LogConfig    `mapstructure:"log"`
	Remote RemoteConfig `mapstructure:"remote"`
	Local  LocalConfig  `mapstructure:"local"`
	Vote   VoteConfig   `mapstructure:"vote"`
	Auth   AuthConfig   `mapstructure:"auth"`
	Health HealthConfig `mapstructure:"health"`
	Client ClientConfig `mapstructure:"client"`
}

type ServerConfig struct {
	Mode    string     `mapstructure:"mode"`
	Address string     `mapstructure:"address"`
	Cors    CorsConfig `mapstructure:"cors"`
}

type CorsConfig struct {
	AllowedOrigins []string `mapstructure:"allowedOrigins"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// RemoteConfig selects and configures the authoritative backend.
type RemoteConfig struct {
	Driver   string         `mapstructure:"driver"`
	Timeout  time.Duration  `mapstructure:"timeout"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	SQLite   SQLiteConfig   `mapstructure:"sqlite"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type PostgresConfig struct {
	DSN string `mapstructure:"dsn"`
}

type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

// LocalConfig is the device-local fallback database.
type LocalConfig struct {
	Path      string `mapstructure:"path"`
	KeyPrefix string `mapstructure:"keyPrefix"`
}

type VoteConfig struct {
	MaxAttempts    int           `mapstructure:"maxAttempts"`
	InitialBackoff time.Duration `mapstructure:"initialBackoff"`
	MaxBackoff     time.Duration `mapstructure:"maxBackoff"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwtSecret"`
	Issuer    string `mapstructure:"issuer"`
	// ServiceKey admits the comment service to the counter routes. Empty closes them.
	ServiceKey string `mapstructure:"serviceKey"`
}

type HealthConfig struct {
	Interval    time.Duration `mapstructure:"interval"`
	PingTimeout time.Duration `mapstructure:"pingTimeout"`
}

// ClientConfig tunes the view models used by the demo client.
type ClientConfig struct {
	// BusyPolicy is "queue" or "reject".
	BusyPolicy string `mapstructure:"busyPolicy"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.cors.allowedOrigins", []string{"http://localhost:5173"})

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("remote.driver", DriverRedis)
	v.SetDefault("remote.timeout", 5*time.Second)
	v.SetDefault("remote.redis.address", "localhost:6379")
	v.SetDefault("remote.redis.username", "")
	v.SetDefault("remote.redis.password", "")
	v.SetDefault("remote.redis.db", 0)
	v.SetDefault("remote.postgres.dsn", "")
	v.SetDefault("remote.sqlite.path", "remote.db")

	v.SetDefault("local.path", "local.db")
	v.SetDefault("local.keyPrefix", "trailhead:")

	v.SetDefault("vote.maxAttempts", 4)
	v.SetDefault("vote.initialBackoff", 20*time.Millisecond)
	v.SetDefault("vote.maxBackoff", 200*time.Millisecond)

	v.SetDefault("auth.jwtSecret", "")
	v.SetDefault("auth.issuer", "trailhead")
	v.SetDefault("auth.serviceKey", "")

	v.SetDefault("health.interval", 15*time.Second)
	v.SetDefault("health.pingTimeout", 2*time.Second)

	v.SetDefault("client.busyPolicy", "queue")
}

// Load reads config.yaml from the given directories (./config and . when none are given),
// then applies environment overrides such as REMOTE_DRIVER or AUTH_JWTSECRET.
// A .env file in the working directory is loaded first when present. A missing config file is not an error.
func Load(paths ...string) (*Config, error) {
	// 1. Optional .env
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	// 2. Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if len(paths) == 0 {
		paths = []string{"./config", "."}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	// 3. Environment overrides
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the application cannot start with.
func (c *Config) Validate() error {
	var errs []error
	switch c.Server.Mode {
	case "", "debug", "release", "test":
	default:
		errs = append(errs, fmt.Errorf("server.mode must be debug, release or test, got %q", c.Server.Mode))
	}
	switch c.Remote.Driver {
	case DriverRedis:
		if c.Remote.Redis.Address == "" {
			errs = append(errs, errors.New("remote.redis.address is required"))
		}
	case DriverPostgres:
		if c.Remote.Postgres.DSN == "" {
			errs = append(errs, errors.New("remote.postgres.dsn is required"))
		}
	case DriverSQLite:
		if c.Remote.SQLite.Path == "" {
			errs = append(errs, errors.New("remote.sqlite.path is required"))
		}
	default:
		errs = append(errs, fmt.Errorf("remote.driver must be one of %s, %s, %s, got %q",
			DriverRedis, DriverPostgres, DriverSQLite, c.Remote.Driver))
	}
	if c.Remote.Timeout <= 0 {
		errs = append(errs, errors.New("remote.timeout must be positive"))
	}
	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("auth.jwtSecret is required"))
	}
	if c.Local.Path == "" {
		errs = append(errs, errors.New("local.path is required"))
	}
	if c.Vote.MaxAttempts < 1 {
		errs = append(errs, errors.New("vote.maxAttempts must be at least 1"))
	}
	if c.Vote.InitialBackoff <= 0 || c.Vote.MaxBackoff < c.Vote.InitialBackoff {
		errs = append(errs, errors.New("vote backoff must be positive with maxBackoff >= initialBackoff"))
	}
	if c.Health.Interval <= 0 || c.Health.PingTimeout <= 0 {
		errs = append(errs, errors.New("health.interval and health.pingTimeout must be positive"))
	}
	if c.Client.BusyPolicy != "queue" && c.Client.BusyPolicy != "reject" {
		errs = append(errs, fmt.Errorf("client.busyPolicy must be queue or reject, got %q", c.Client.BusyPolicy))
	}
	return errors.Join(errs...)
}
