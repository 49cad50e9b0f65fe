package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config keeps runtime settings for the service.
type Config struct {
	Env               string `mapstructure:"ENV"`
	DatabaseURL       string `mapstructure:"DATABASE_URL"`
	TelegramToken     string `mapstructure:"TELEGRAM_TOKEN"`
	HTTPAddr          string `mapstructure:"HTTP_ADDR"`
	Timezone          string `mapstructure:"TIMEZONE"`
	ScanIntervalSecs  int    `mapstructure:"SCAN_INTERVAL_SECONDS"`
	DailyAgendaTime   string `mapstructure:"DAILY_AGENDA_TIME"`
	RedisAddr         string `mapstructure:"REDIS_ADDR"`
	RedisPassword     string `mapstructure:"REDIS_PASSWORD"`
	RedisDB           int    `mapstructure:"REDIS_DB"`
	FiredKeyTTLHours  int    `mapstructure:"FIRED_KEY_TTL_HOURS"`
	PushRatePerSecond int    `mapstructure:"PUSH_RATE_PER_SECOND"`
	CORSOrigins       string `mapstructure:"CORS_ORIGINS"`

	Location *time.Location `mapstructure:"-"`
}

// Load reads configuration from .env, config.yaml and environment variables,
// in increasing precedence, with sane defaults.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AutomaticEnv()

	v.SetDefault("ENV", "development")
	v.SetDefault("DATABASE_URL", "care_scheduler.db")
	v.SetDefault("TELEGRAM_TOKEN", "")
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("TIMEZONE", "Local")
	v.SetDefault("SCAN_INTERVAL_SECONDS", 60)
	v.SetDefault("DAILY_AGENDA_TIME", "08:00")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("FIRED_KEY_TTL_HOURS", 48)
	v.SetDefault("PUSH_RATE_PER_SECOND", 25)
	v.SetDefault("CORS_ORIGINS", "")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("decode config: %w", err)
	}
	cfg.TelegramToken = strings.TrimSpace(cfg.TelegramToken)
	cfg.DailyAgendaTime = strings.TrimSpace(cfg.DailyAgendaTime)

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return cfg, fmt.Errorf("invalid TIMEZONE %q: %w", cfg.Timezone, err)
	}
	cfg.Location = loc

	if cfg.ScanIntervalSecs <= 0 {
		return cfg, fmt.Errorf("SCAN_INTERVAL_SECONDS must be positive")
	}
	if cfg.PushRatePerSecond <= 0 {
		cfg.PushRatePerSecond = 25
	}

	return cfg, nil
}

func (c Config) ScanInterval() time.Duration {
	return time.Duration(c.ScanIntervalSecs) * time.Second
}

func (c Config) FiredKeyTTL() time.Duration {
	return time.Duration(c.FiredKeyTTLHours) * time.Hour
}

// AllowedOrigins splits CORS_ORIGINS; an empty list disables CORS.
func (c Config) AllowedOrigins() []string {
	var out []string
	for _, o := range strings.Split(c.CORSOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

func (c Config) IsProduction() bool {
	return c.Env == "production"
}
