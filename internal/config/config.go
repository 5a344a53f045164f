// Package config загружает настройки сервера из окружения и флагов.
// Флаги командной строки переопределяют переменные окружения.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Поддерживаемые хранилища
const (
	StoreBolt   = "bolt"
	StoreSQLite = "sqlite"
	StoreRedis  = "redis"
	StoreMemory = "memory"
)

// MinJWTSecretLen минимальная длина секрета подписи
const MinJWTSecretLen = 16

// Config настройки сервера
type Config struct {
	Addr      string `env:"LUXTA_ADDR" envDefault:":8080"`
	Store     string `env:"LUXTA_STORE" envDefault:"bolt"`
	BoltPath  string `env:"LUXTA_BOLT_PATH" envDefault:"luxta.db"`
	SQLiteDSN string `env:"LUXTA_SQLITE_DSN" envDefault:"luxta.sqlite"`

	RedisAddr     string `env:"LUXTA_REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"LUXTA_REDIS_PASSWORD"`
	RedisPrefix   string `env:"LUXTA_REDIS_PREFIX" envDefault:"luxta:"`

	JWTSecret string `env:"LUXTA_JWT_SECRET"`
	Timezone  string `env:"LUXTA_TIMEZONE" envDefault:"UTC"`
	LogFormat string `env:"LUXTA_LOG_FORMAT" envDefault:"text"`
	LogLevel  string `env:"LUXTA_LOG_LEVEL" envDefault:"info"`

	// Пустой endpoint отключает экспорт трейсов
	OTelEndpoint string `env:"LUXTA_OTEL_ENDPOINT"`

	AccessTokenTTL  time.Duration `env:"LUXTA_ACCESS_TOKEN_TTL" envDefault:"24h"`
	TokenValidity   time.Duration `env:"LUXTA_TOKEN_VALIDITY" envDefault:"1h"`
	TokenRetention  time.Duration `env:"LUXTA_TOKEN_RETENTION" envDefault:"24h"`
	MinDwell        time.Duration `env:"LUXTA_MIN_DWELL" envDefault:"15s"`
	SweepInterval   time.Duration `env:"LUXTA_SWEEP_INTERVAL" envDefault:"5m"`
	RateWindow      time.Duration `env:"LUXTA_RATE_WINDOW" envDefault:"1m"`
	ShutdownTimeout time.Duration `env:"LUXTA_SHUTDOWN_TIMEOUT" envDefault:"10s"`

	RewardCoins   int64 `env:"LUXTA_REWARD_COINS" envDefault:"30"`
	RewardXP      int64 `env:"LUXTA_REWARD_XP" envDefault:"5"`
	GameEntryCost int64 `env:"LUXTA_GAME_ENTRY_COST" envDefault:"10"`

	DailyQuota    int `env:"LUXTA_DAILY_QUOTA" envDefault:"20"`
	RedisDB       int `env:"LUXTA_REDIS_DB" envDefault:"0"`
	RateLimit     int `env:"LUXTA_RATE_LIMIT" envDefault:"120"`
	AuthRateLimit int `env:"LUXTA_AUTH_RATE_LIMIT" envDefault:"10"`
}

// Load читает окружение, затем флаги из args, и проверяет результат
func Load(args []string) (*Config, error) {
	cfg, err := ParseEnv()
	if err != nil {
		return nil, err
	}

	fs := flag.NewFlagSet("luxta-server", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	cfg.RegisterFlags(fs)
	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ParseEnv читает только переменные окружения, без проверки
func ParseEnv() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// RegisterFlags добавляет флаги; текущие значения становятся значениями по умолчанию
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.Addr, "addr", c.Addr, "HTTP listen address")
	fs.StringVar(&c.Store, "store", c.Store, "storage backend: bolt, sqlite, redis or memory")
	fs.StringVar(&c.BoltPath, "bolt-path", c.BoltPath, "bbolt database file")
	fs.StringVar(&c.SQLiteDSN, "sqlite-dsn", c.SQLiteDSN, "sqlite database file or DSN")
	fs.StringVar(&c.RedisAddr, "redis-addr", c.RedisAddr, "redis address")
	fs.StringVar(&c.Timezone, "timezone", c.Timezone, "IANA zone of daily quota counters")
	fs.StringVar(&c.LogFormat, "log-format", c.LogFormat, "log format: text or json")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "log level: debug, info, warn or error")
	fs.StringVar(&c.OTelEndpoint, "otel-endpoint", c.OTelEndpoint, "OTLP/HTTP traces endpoint")
	fs.DurationVar(&c.SweepInterval, "sweep-interval", c.SweepInterval, "interval between sweeper passes")
	fs.IntVar(&c.DailyQuota, "daily-quota", c.DailyQuota, "tokens per user and link per day")
}

// Validate проверяет согласованность настроек
func (c *Config) Validate() error {
	var errs []error

	if err := c.ValidateStore(); err != nil {
		errs = append(errs, err)
	}

	if len(c.JWTSecret) < MinJWTSecretLen {
		errs = append(errs, fmt.Errorf("LUXTA_JWT_SECRET must be at least %d characters", MinJWTSecretLen))
	}
	if c.DailyQuota <= 0 {
		errs = append(errs, errors.New("daily quota must be positive"))
	}
	if c.TokenValidity <= 0 {
		errs = append(errs, errors.New("token validity must be positive"))
	}
	if c.TokenRetention <= c.TokenValidity {
		errs = append(errs, errors.New("token retention must exceed token validity"))
	}
	if c.MinDwell < 0 || c.MinDwell >= c.TokenValidity {
		errs = append(errs, errors.New("min dwell must be within token validity"))
	}
	if c.SweepInterval <= 0 {
		errs = append(errs, errors.New("sweep interval must be positive"))
	}
	if c.AccessTokenTTL <= 0 {
		errs = append(errs, errors.New("access token ttl must be positive"))
	}
	if c.RewardCoins < 0 || c.RewardXP < 0 || c.GameEntryCost < 0 {
		errs = append(errs, errors.New("reward and entry cost must not be negative"))
	}
	if c.RateLimit <= 0 || c.AuthRateLimit <= 0 || c.RateWindow <= 0 {
		errs = append(errs, errors.New("rate limits must be positive"))
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, err)
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		errs = append(errs, fmt.Errorf("unknown log format %q", c.LogFormat))
	}

	return errors.Join(errs...)
}

// ValidateStore проверяет только настройки хранилища.
// Достаточно для административных команд
func (c *Config) ValidateStore() error {
	switch c.Store {
	case StoreBolt:
		if c.BoltPath == "" {
			return errors.New("bolt path is required")
		}
	case StoreSQLite:
		if c.SQLiteDSN == "" {
			return errors.New("sqlite dsn is required")
		}
	case StoreRedis:
		if c.RedisAddr == "" {
			return errors.New("redis address is required")
		}
	case StoreMemory:
	default:
		return fmt.Errorf("unknown store %q", c.Store)
	}
	return nil
}

// Location возвращает зону календарного дня
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" || strings.EqualFold(c.Timezone, "UTC") {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// NewLogger создает slog логгер согласно LogFormat и LogLevel
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	level, err := parseLevel(c.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return level, nil
}
