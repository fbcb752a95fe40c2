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

type DatabaseConfig struct {
	Driver        string        `mapstructure:"driver"` // mysql, postgres or sqlite
	DSN           string        `mapstructure:"dsn"`
	MaxOpenConns  int           `mapstructure:"max_open_conns"`
	MaxIdleConns  int           `mapstructure:"max_idle_conns"`
	SlowThreshold time.Duration `mapstructure:"slow_threshold"`
}

type MinioConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

type StorageConfig struct {
	Driver    string      `mapstructure:"driver"` // local or minio
	LocalRoot string      `mapstructure:"local_root"`
	PublicURL string      `mapstructure:"public_url"`
	Minio     MinioConfig `mapstructure:"minio"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type ConsulConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	Address       string `mapstructure:"address"`
	AdvertiseHost string `mapstructure:"advertise_host"`
}

type GRPCConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

type Config struct {
	HTTPPort     int    `mapstructure:"http_port"`
	GRPCPort     int    `mapstructure:"grpc_port"`
	LogLevel     string `mapstructure:"log_level"`
	LogFile      string `mapstructure:"log_file"` // empty means stdout only
	LogMaxSizeMB int    `mapstructure:"log_max_size_mb"`
	ServiceName  string `mapstructure:"service_name"`

	JwtSecret string        `mapstructure:"jwt_secret"`
	JwtTTL    time.Duration `mapstructure:"jwt_ttl"`

	Database DatabaseConfig `mapstructure:"database"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Consul   ConsulConfig   `mapstructure:"consul"`
	GRPC     GRPCConfig     `mapstructure:"grpc"`
}

const insecureDefaultSecret = "default-very-insecure-secret-key"

var AppConfig Config

func setDefaults(v *viper.Viper) {
	v.SetDefault("http_port", 8080)
	v.SetDefault("grpc_port", 50051)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_file", "")
	v.SetDefault("log_max_size_mb", 100)
	v.SetDefault("service_name", "blogdesk")
	v.SetDefault("jwt_secret", insecureDefaultSecret) // CHANGE THIS IN PRODUCTION
	v.SetDefault("jwt_ttl", 24*time.Hour)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "blogdesk.db")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.slow_threshold", time.Second)

	v.SetDefault("storage.driver", "local")
	v.SetDefault("storage.local_root", "./storage/public")
	v.SetDefault("storage.public_url", "/storage")
	v.SetDefault("storage.minio.bucket", "blogdesk")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")

	v.SetDefault("consul.enabled", false)
	v.SetDefault("consul.address", "localhost:8500")
	v.SetDefault("consul.advertise_host", "localhost")

	v.SetDefault("grpc.enabled", true)
}

// Load reads .env, the optional config file and BLOGDESK_* environment
// variables, in that order of increasing precedence. An empty path searches
// "." and "./config" for config.yaml.
func Load(path string) (*Config, error) {
	// A missing .env is normal outside local development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("BLOGDESK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("fatal error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// InitConfig loads the configuration into AppConfig.
func InitConfig(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	AppConfig = *cfg
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "mysql", "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	switch c.Storage.Driver {
	case "local", "minio":
	default:
		return fmt.Errorf("unsupported storage driver %q", c.Storage.Driver)
	}
	if c.Storage.Driver == "minio" && c.Storage.Minio.Endpoint == "" {
		return errors.New("storage.minio.endpoint is required for the minio driver")
	}
	if c.JwtTTL <= 0 {
		return errors.New("jwt_ttl must be positive")
	}
	return nil
}

// UsesInsecureSecret reports whether the JWT secret is still the shipped default.
func (c *Config) UsesInsecureSecret() bool {
	return c.JwtSecret == insecureDefaultSecret
}
