package config

import (
	"errors"
	"fmt"
	"log"
	"net/url"
	"os"
	"strings"
	"time"

	storage "github.com/jghoshh/taskvibe/backend/storage/persistent"
	"github.com/jghoshh/taskvibe/lib/utils"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ConfigFileEnv names the environment variable pointing at an optional YAML config file.
const ConfigFileEnv = "TASKVIBE_CONFIG"

// Config holds every setting of the server and the shell. Each key is read from
// the environment variable of the same name in upper case.
type Config struct {
	ServerURL         string `mapstructure:"server_url"`
	JWTSigningKey     string `mapstructure:"jwt_signing_key"`
	AuthPassphrase    string `mapstructure:"auth_passphrase"`
	StorageBackend    string `mapstructure:"storage_backend"`
	SQLitePath        string `mapstructure:"sqlite_path"`
	MongoURI          string `mapstructure:"mongodb_uri"`
	DBName            string `mapstructure:"db_name"`
	RedisURL          string `mapstructure:"redis_url"`
	RabbitMQURL       string `mapstructure:"rabbitmq_url"`
	NumEventProducers int    `mapstructure:"num_event_producers"`
	NumEventConsumers int    `mapstructure:"num_event_consumers"`
	Timezone          string `mapstructure:"timezone"`
	// Keyring entry names the shell stores its tokens under.
	AuthTokenKey    string `mapstructure:"auth_token"`
	RefreshTokenKey string `mapstructure:"auth_token_refresh"`
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() *Config {
	return &Config{
		ServerURL:         "http://localhost:8080",
		StorageBackend:    storage.BackendMemory,
		DBName:            "taskvibe",
		NumEventProducers: 1,
		NumEventConsumers: 2,
		AuthTokenKey:      "AUTH_TOKEN",
		RefreshTokenKey:   "AUTH_TOKEN_REFRESH",
	}
}

var keys = []string{
	"server_url", "jwt_signing_key", "auth_passphrase", "storage_backend", "sqlite_path",
	"mongodb_uri", "db_name", "redis_url", "rabbitmq_url", "num_event_producers",
	"num_event_consumers", "timezone", "auth_token", "auth_token_refresh",
}

// Load reads the given .env files (".env" when none are named), then an optional YAML
// file named by TASKVIBE_CONFIG, then the environment. Later sources win.
func Load(envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil {
		log.Printf("No .env file loaded: %v", err)
	}

	defaults := DefaultConfig()
	v := viper.New()
	v.SetDefault("server_url", defaults.ServerURL)
	v.SetDefault("storage_backend", defaults.StorageBackend)
	v.SetDefault("db_name", defaults.DBName)
	v.SetDefault("num_event_producers", defaults.NumEventProducers)
	v.SetDefault("num_event_consumers", defaults.NumEventConsumers)
	v.SetDefault("auth_token", defaults.AuthTokenKey)
	v.SetDefault("auth_token_refresh", defaults.RefreshTokenKey)

	for _, key := range keys {
		if err := v.BindEnv(key, strings.ToUpper(key)); err != nil {
			return nil, err
		}
	}

	if path := os.Getenv(ConfigFileEnv); path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

// Validate checks the settings the server cannot start without.
func (c *Config) Validate() error {
	var errs []error

	if c.JWTSigningKey == "" {
		errs = append(errs, errors.New("JWT_SIGNING_KEY is required"))
	}
	if c.AuthPassphrase != "" && !utils.ValidatePassphrase(c.AuthPassphrase) {
		errs = append(errs, errors.New("AUTH_PASSPHRASE must be at least 8 characters with a letter and a digit"))
	}
	if u, err := url.Parse(c.ServerURL); err != nil || u.Host == "" {
		errs = append(errs, fmt.Errorf("SERVER_URL %q is not a valid url", c.ServerURL))
	}
	switch c.StorageBackend {
	case storage.BackendMemory, storage.BackendSQLite:
	case storage.BackendMongo:
		if c.MongoURI == "" {
			errs = append(errs, errors.New("MONGODB_URI is required for the mongo backend"))
		}
		if c.DBName == "" {
			errs = append(errs, errors.New("DB_NAME is required for the mongo backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORAGE_BACKEND %q", c.StorageBackend))
	}
	if c.NumEventProducers < 1 || c.NumEventConsumers < 1 {
		errs = append(errs, errors.New("NUM_EVENT_PRODUCERS and NUM_EVENT_CONSUMERS must be at least 1"))
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// Location is the zone that decides where a day starts. Empty means local time.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("unknown TIMEZONE %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// StorageOptions translates the config into storage backend options.
func (c *Config) StorageOptions() storage.Options {
	return storage.Options{
		Backend:    c.StorageBackend,
		SQLitePath: c.SQLitePath,
		MongoURI:   c.MongoURI,
		DBName:     c.DBName,
	}
}
