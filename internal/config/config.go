// Package config resolves server settings from defaults, a .env file, the
// environment and command-line flags, in increasing order of precedence.
package config

import (
	"flag"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type RateLimitConfig struct {
	Burst          int
	RefillInterval time.Duration
}

type RedisConfig struct {
	Addr         string
	Password     string
	DB           int
	StreamMaxLen int64
}

// Enabled reports whether a journal should be attached.
func (r RedisConfig) Enabled() bool { return r.Addr != "" }

type Config struct {
	ChatAddr        string
	HTTPAddr        string
	OutboundBuffer  int
	MaxTextSize     int
	ShutdownTimeout time.Duration
	RateLimit       RateLimitConfig
	Redis           RedisConfig
	LogLevel        slog.Level
}

func Default() Config {
	return Config{
		ChatAddr:        ":4242",
		HTTPAddr:        ":9090",
		OutboundBuffer:  32,
		MaxTextSize:     500,
		ShutdownTimeout: 5 * time.Second,
		RateLimit: RateLimitConfig{
			Burst:          10,
			RefillInterval: time.Second,
		},
		Redis: RedisConfig{
			StreamMaxLen: 1000,
		},
		LogLevel: slog.LevelInfo,
	}
}

// Load reads .env (a missing file is fine), then the environment, then args.
func Load(args []string) (Config, error) {
	_ = godotenv.Load()
	cfg := FromEnv(os.Getenv)

	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	fs.StringVar(&cfg.ChatAddr, "addr", cfg.ChatAddr, "chat listen address")
	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "websocket, metrics and health listen address (empty disables)")
	fs.StringVar(&cfg.Redis.Addr, "redis-addr", cfg.Redis.Addr, "redis address for the activity journal (empty disables)")
	level := fs.String("log-level", cfg.LogLevel.String(), "log level: debug, info, warn, error")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	cfg.LogLevel = parseLevel(*level, cfg.LogLevel)
	return sanitize(cfg), nil
}

// FromEnv builds a Config from defaults overridden by getenv. Unparseable
// values keep their defaults.
func FromEnv(getenv func(string) string) Config {
	cfg := Default()

	if v := getenv("CHAT_ADDR"); v != "" {
		cfg.ChatAddr = v
	}
	if v := getenv("HTTP_ADDR"); v != "" {
		if v == "off" {
			v = ""
		}
		cfg.HTTPAddr = v
	}
	if v := getenv("OUTBOUND_BUFFER"); v != "" {
		cfg.OutboundBuffer = parseIntValue(v, cfg.OutboundBuffer)
	}
	if v := getenv("MAX_TEXT_SIZE"); v != "" {
		cfg.MaxTextSize = parseIntValue(v, cfg.MaxTextSize)
	}
	if v := getenv("SHUTDOWN_TIMEOUT"); v != "" {
		cfg.ShutdownTimeout = parseDuration(v, cfg.ShutdownTimeout)
	}
	if v := getenv("RATE_LIMIT_BURST"); v != "" {
		cfg.RateLimit.Burst = parseIntValue(v, cfg.RateLimit.Burst)
	}
	if v := getenv("RATE_LIMIT_REFILL_INTERVAL"); v != "" {
		cfg.RateLimit.RefillInterval = parseDuration(v, cfg.RateLimit.RefillInterval)
	}
	if v := getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := getenv("REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil && db >= 0 {
			cfg.Redis.DB = db
		}
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = parseLevel(v, cfg.LogLevel)
	}

	return sanitize(cfg)
}

func sanitize(cfg Config) Config {
	def := Default()
	if cfg.ChatAddr == "" {
		cfg.ChatAddr = def.ChatAddr
	}
	if cfg.OutboundBuffer <= 0 {
		cfg.OutboundBuffer = def.OutboundBuffer
	}
	// Texts above the default no longer fit in one frame with the longest
	// login and room name.
	if cfg.MaxTextSize <= 0 || cfg.MaxTextSize > def.MaxTextSize {
		cfg.MaxTextSize = def.MaxTextSize
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = def.ShutdownTimeout
	}
	if cfg.RateLimit.Burst <= 0 {
		cfg.RateLimit.Burst = def.RateLimit.Burst
	}
	if cfg.RateLimit.RefillInterval <= 0 {
		cfg.RateLimit.RefillInterval = def.RateLimit.RefillInterval
	}
	if cfg.Redis.StreamMaxLen <= 0 {
		cfg.Redis.StreamMaxLen = def.Redis.StreamMaxLen
	}
	return cfg
}

func parseIntValue(value string, defaultValue int) int {
	if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
		return parsed
	}
	return defaultValue
}

// parseDuration accepts Go durations ("500ms") or whole seconds ("3").
func parseDuration(value string, defaultValue time.Duration) time.Duration {
	if d, err := time.ParseDuration(value); err == nil && d > 0 {
		return d
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	return defaultValue
}

func parseLevel(value string, defaultValue slog.Level) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(value))); err != nil {
		return defaultValue
	}
	return level
}
