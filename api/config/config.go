package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	workerconfig "videoDownloader/worker/config"
)

type Config struct {
	Server   ServerConfig               `mapstructure:"server"`
	Log      LogConfig                  `mapstructure:"log"`
	Redis    RedisConfig                `mapstructure:"redis"`
	Kafka    KafkaConfig                `mapstructure:"kafka"`
	Database DatabaseConfig             `mapstructure:"database"`
	Worker   workerconfig.Config        `mapstructure:"worker"`
	Storage  workerconfig.StorageConfig `mapstructure:"storage"`
}

type ServerConfig struct {
	Port           string `mapstructure:"port"`
	Env            string `mapstructure:"env"`
	Version        string `mapstructure:"version"`
	MaxCookieBytes int64  `mapstructure:"max_cookie_bytes"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"` // json or console
	Output     string `mapstructure:"output"` // stdout or file
	File       string `mapstructure:"file"`
	MaxSize    int    `mapstructure:"max_size"` // megabytes
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"` // days
	Compress   bool   `mapstructure:"compress"`
}

// RedisConfig enables the status mirror when Addr is set.
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// KafkaConfig enables lifecycle events when Brokers is set.
type KafkaConfig struct {
	Brokers string `mapstructure:"brokers"`
	Topic   string `mapstructure:"topic"`
}

func (k KafkaConfig) BrokerList() []string {
	var out []string
	for _, b := range strings.Split(k.Brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

// DatabaseConfig enables the Postgres task log when URL is set.
type DatabaseConfig struct {
	URL string `mapstructure:"url"`
}

// Load reads config.yaml from path (or ./data and . when path is empty),
// then applies environment overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath("./data")
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnv(v)

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
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8000")
	v.SetDefault("server.env", "development")
	v.SetDefault("server.version", "1.0.0")
	v.SetDefault("server.max_cookie_bytes", 1024*1024)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output", "stdout")
	v.SetDefault("log.file", "logs/app.log")
	v.SetDefault("log.max_size", 100)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age", 28)
	v.SetDefault("log.compress", true)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", 24*time.Hour)

	v.SetDefault("kafka.brokers", "")
	v.SetDefault("kafka.topic", "video_tasks")

	v.SetDefault("database.url", "")

	workerconfig.SetDefaults(v)
}

// bindEnv keeps the plain variable names deployments already use.
func bindEnv(v *viper.Viper) {
	_ = v.BindEnv("server.port", "PORT", "SERVICE_PORT")
	_ = v.BindEnv("server.env", "ENV")
	_ = v.BindEnv("storage.cloudinary_url", "CLOUDINARY_URL")
	_ = v.BindEnv("redis.addr", "REDIS_ADDR")
	_ = v.BindEnv("kafka.brokers", "KAFKA_BROKERS")
	_ = v.BindEnv("database.url", "DATABASE_URL")
	_ = v.BindEnv("worker.worker_count", "WORKER_COUNT")
	_ = v.BindEnv("worker.cookies_path", "COOKIES_PATH")
}

func (c *Config) validate() error {
	if c.Server.Port == "" {
		return errors.New("server port is not set")
	}
	if err := c.Worker.Validate(); err != nil {
		return fmt.Errorf("worker: %w", err)
	}
	return nil
}
