package config

import "time"

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	DatabasePath      string        `mapstructure:"database_path" yaml:"database_path"`
	UploadDir         string        `mapstructure:"upload_dir" yaml:"upload_dir"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`
	HistoryPageSize   int           `mapstructure:"history_page_size" yaml:"history_page_size"`

	JWT       JWTConfig       `mapstructure:"jwt" yaml:"jwt"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit" yaml:"rate_limit"`
	Redis     RedisConfig     `mapstructure:"redis" yaml:"redis"`
}

// JWTConfig holds bearer-token verification settings.
type JWTConfig struct {
	Secret   string `mapstructure:"secret" yaml:"secret"`
	Issuer   string `mapstructure:"issuer" yaml:"issuer"`
	Audience string `mapstructure:"audience" yaml:"audience"`
}

// RateLimitConfig holds per-user event quota settings.
type RateLimitConfig struct {
	Quota  int           `mapstructure:"quota" yaml:"quota"`
	Window time.Duration `mapstructure:"window" yaml:"window"`
}

// RedisConfig selects the distributed rate-limit counter store.
// An empty Addr keeps counters in process memory.
type RedisConfig struct {
	Addr     string `mapstructure:"addr" yaml:"addr"`
	Password string `mapstructure:"password" yaml:"password"`
	DB       int    `mapstructure:"db" yaml:"db"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              ":8080",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		DatabasePath:      "drift.db",
		UploadDir:         "uploads",
		LogLevel:          "info",
		HistoryPageSize:   50,
		JWT: JWTConfig{
			Issuer:   "drift",
			Audience: "drift-client",
		},
		RateLimit: RateLimitConfig{
			Quota:  120,
			Window: time.Minute,
		},
	}
}
