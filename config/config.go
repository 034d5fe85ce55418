package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	StorageRedis  = "redis"
	StorageMongo  = "mongo"
	StorageMemory = "memory"
)

type Config struct {
	Port           int64         `mapstructure:"port"`
	LogLevel       string        `mapstructure:"log_level"`
	BodyLimit      string        `mapstructure:"body_limit"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	Storage        string        `mapstructure:"storage"`
	RedisServer    RedisServer   `mapstructure:"redis_server"`
	MongoServer    MongoServer   `mapstructure:"mongo_server"`
}

type RedisServer struct {
	Addr     string `mapstructure:"addr"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type MongoServer struct {
	URI          string `mapstructure:"uri"`
	Database     string `mapstructure:"database"`
	Transactions bool   `mapstructure:"transactions"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", 8080)
	v.SetDefault("log_level", "info")
	v.SetDefault("body_limit", "1M")
	v.SetDefault("request_timeout", "30s")
	v.SetDefault("storage", StorageRedis)
	v.SetDefault("redis_server.addr", "localhost:6379")
	v.SetDefault("redis_server.user", "")
	v.SetDefault("redis_server.password", "")
	v.SetDefault("redis_server.db", 0)
	v.SetDefault("mongo_server.uri", "mongodb://localhost:27017")
	v.SetDefault("mongo_server.database", "messageboard")
	v.SetDefault("mongo_server.transactions", false)
}

// LoadConfig loads the configuration from a file. Every key can be overridden
// from the environment, e.g. MESSAGES_REDIS_SERVER_ADDR. An empty file name
// loads defaults and environment only.
func LoadConfig(file string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("messages")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("fail to read config file %s, err: %w", file, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("fail to decode config, err: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c Config) Validate() error {
	switch c.Storage {
	case StorageRedis, StorageMongo, StorageMemory:
	default:
		return fmt.Errorf("unknown storage %q, want one of %s, %s, %s", c.Storage, StorageRedis, StorageMongo, StorageMemory)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("invalid request timeout %s", c.RequestTimeout)
	}
	return nil
}
