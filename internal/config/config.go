package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"

	BrokerMemory = "memory"
	BrokerRedis  = "redis"
)

type Config struct {
	Mode        string          `mapstructure:"mode"`
	Port        int             `mapstructure:"port"`
	LogLevel    string          `mapstructure:"log_level"`
	Storage     string          `mapstructure:"storage"`
	Broker      string          `mapstructure:"broker"`
	DatabaseURL string          `mapstructure:"database_url"`
	RedisURL    string          `mapstructure:"redis_url"`
	JWT         JWTConfig       `mapstructure:"jwt"`
	LiveKit     LiveKitConfig   `mapstructure:"livekit"`
	Admission   AdmissionConfig `mapstructure:"admission"`
	CORS        CORSConfig      `mapstructure:"cors"`
}

type JWTConfig struct {
	Secret   string        `mapstructure:"secret"`
	TTL      time.Duration `mapstructure:"ttl"`
	GuestTTL time.Duration `mapstructure:"guest_ttl"`
}

// LiveKitConfig описывает медиа-SDK. Без ключа и секрета токены не выдаются
// (открытый режим).
type LiveKitConfig struct {
	AppID     string        `mapstructure:"app_id"`
	URL       string        `mapstructure:"url"`
	APIKey    string        `mapstructure:"api_key"`
	APISecret string        `mapstructure:"api_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

type AdmissionConfig struct {
	CodeLength      int           `mapstructure:"code_length"`
	MaxCodeAttempts int           `mapstructure:"max_code_attempts"`
	WaitTimeout     time.Duration `mapstructure:"wait_timeout"`
	SweepInterval   time.Duration `mapstructure:"sweep_interval"`
	PollInterval    time.Duration `mapstructure:"poll_interval"`
	GracePeriod     time.Duration `mapstructure:"grace_period"`
	LongPollMax     time.Duration `mapstructure:"long_poll_max"`
	JoinRateLimit   int           `mapstructure:"join_rate_limit"`
	JoinRateWindow  time.Duration `mapstructure:"join_rate_window"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// Load читает .env, затем config/config.<CONFIG_ENV>.yaml (если есть)
// и переменные окружения.
func Load() (*Config, error) {
	if err := godotenv.Load(".env.local"); err != nil {
		if err := godotenv.Load(); err != nil {
			log.Debug().Str("module", "config").Msg(".env not found, using environment variables")
		}
	}

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	return LoadFile(fmt.Sprintf("config/config.%s.yaml", env))
}

// LoadFile работает как Load, но без .env и с явным путём к yaml.
// Отсутствующий файл не считается ошибкой.
func LoadFile(fileName string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)

	v.SetEnvPrefix("ROOMGATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Старые имена переменных без префикса
	for key, envName := range map[string]string{
		"port":         "PORT",
		"database_url": "DATABASE_URL",
		"redis_url":    "REDIS_URL",
		"jwt.secret":   "JWT_SECRET",
	} {
		if err := v.BindEnv(key, "ROOMGATE_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), envName); err != nil {
			return nil, fmt.Errorf("bind %s: %w", envName, err)
		}
	}

	if fileName != "" {
		v.SetConfigFile(fileName)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config %s: %w", fileName, err)
			}
			log.Debug().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
		} else {
			log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("log_level", "info")
	v.SetDefault("storage", StoragePostgres)
	v.SetDefault("broker", BrokerRedis)
	v.SetDefault("database_url", "")
	v.SetDefault("redis_url", "")

	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.ttl", "24h")
	v.SetDefault("jwt.guest_ttl", "12h")

	v.SetDefault("livekit.app_id", "roomgate")
	v.SetDefault("livekit.url", "ws://localhost:7880")
	v.SetDefault("livekit.api_key", "")
	v.SetDefault("livekit.api_secret", "")
	v.SetDefault("livekit.token_ttl", "6h")

	v.SetDefault("admission.code_length", 8)
	v.SetDefault("admission.max_code_attempts", 20)
	v.SetDefault("admission.wait_timeout", "10m")
	v.SetDefault("admission.sweep_interval", "30s")
	v.SetDefault("admission.poll_interval", "2s")
	v.SetDefault("admission.grace_period", "2s")
	v.SetDefault("admission.long_poll_max", "30s")
	v.SetDefault("admission.join_rate_limit", 10)
	v.SetDefault("admission.join_rate_window", "1m")

	v.SetDefault("cors.allowed_origins", []string{"http://localhost:3000"})
}

func (c *Config) Validate() error {
	switch c.Storage {
	case StorageMemory:
	case StoragePostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is not set")
		}
	default:
		return fmt.Errorf("unknown storage %q", c.Storage)
	}

	switch c.Broker {
	case BrokerMemory:
	case BrokerRedis:
		if c.RedisURL == "" {
			return errors.New("REDIS_URL is not set")
		}
	default:
		return fmt.Errorf("unknown broker %q", c.Broker)
	}

	if c.JWT.Secret == "" {
		return errors.New("JWT_SECRET is not set")
	}
	if c.Admission.CodeLength < 4 {
		return fmt.Errorf("admission.code_length must be at least 4, got %d", c.Admission.CodeLength)
	}
	if c.Admission.MaxCodeAttempts < 1 {
		return fmt.Errorf("admission.max_code_attempts must be positive, got %d", c.Admission.MaxCodeAttempts)
	}
	return nil
}

// Addr возвращает адрес для http.Server.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}
