package pathpal

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration. It is loaded from YAML and selectively
// overridden by environment variables (secrets in particular never belong
// in the file).
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Session   SessionConfig   `yaml:"session"`
	CSRF      CSRFConfig      `yaml:"csrf"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	OTP       OTPConfig       `yaml:"otp"`
	Email     EmailConfig     `yaml:"email"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig contains HTTP listener settings.
type ServerConfig struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	CORSOrigin string `yaml:"cors_origin"`
}

// DatabaseConfig contains SQLite settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// RedisConfig selects the shared-store backend. When Enabled is false the
// CSRF token store and session store run in process memory, which is fine
// for a single instance and loses all outstanding tokens, counters, and
// pending challenges on restart.
type RedisConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
	DB      int    `yaml:"db"`
}

// SessionConfig contains session cookie settings.
type SessionConfig struct {
	CookieName string        `yaml:"cookie_name"`
	TTL        time.Duration `yaml:"ttl"`
	Secure     bool          `yaml:"secure"`
}

// CSRFConfig contains anti-forgery token settings.
type CSRFConfig struct {
	Validity time.Duration `yaml:"validity"`
}

// TierConfig is one rate-limit tier's budget.
type TierConfig struct {
	Max    int           `yaml:"max"`
	Window time.Duration `yaml:"window"`
}

// RateLimitConfig holds the four tiers.
type RateLimitConfig struct {
	General   TierConfig `yaml:"general"`
	Elevated  TierConfig `yaml:"elevated"`
	Login     TierConfig `yaml:"login"`
	OtherAuth TierConfig `yaml:"other_auth"`
}

// OTPConfig contains one-time-passcode lifecycle settings.
type OTPConfig struct {
	TTL            time.Duration `yaml:"ttl"`
	ResendCooldown time.Duration `yaml:"resend_cooldown"`
}

// EmailConfig contains SMTP settings. Password is only read from the
// environment (EMAIL_PASS).
type EmailConfig struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	Username       string `yaml:"username"`
	Password       string `yaml:"-"`
	From           string `yaml:"from"`
	SupportAddress string `yaml:"support_address"`
}

// LoggingConfig contains log output settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// DefaultConfig returns the configuration the original deployment shipped
// with: 5-minute CSRF tokens, the four documented rate tiers, 10-minute
// OTPs with a 60-second resend cooldown, 24-hour sessions.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Host:       "0.0.0.0",
			Port:       3000,
			CORSOrigin: "http://localhost:3000",
		},
		Database: DatabaseConfig{
			Path:        "data/pathpal.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		Session: SessionConfig{
			CookieName: "pathpal_sid",
			TTL:        24 * time.Hour,
		},
		CSRF: CSRFConfig{
			Validity: 5 * time.Minute,
		},
		RateLimit: RateLimitConfig{
			General:   TierConfig{Max: 100, Window: 15 * time.Minute},
			Elevated:  TierConfig{Max: 300, Window: 15 * time.Minute},
			Login:     TierConfig{Max: 5, Window: 10 * time.Minute},
			OtherAuth: TierConfig{Max: 20, Window: 10 * time.Minute},
		},
		OTP: OTPConfig{
			TTL:            10 * time.Minute,
			ResendCooldown: 60 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// LoadConfig reads path (optional), layers it over the defaults, and
// applies environment overrides.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("reading config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("CORS_ORIGIN"); v != "" {
		cfg.Server.CORSOrigin = v
	}
	if v := os.Getenv("DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Enabled = true
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("EMAIL_HOST"); v != "" {
		cfg.Email.Host = v
	}
	if v := os.Getenv("EMAIL_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Email.Port = port
		}
	}
	if v := os.Getenv("EMAIL_USER"); v != "" {
		cfg.Email.Username = v
	}
	if v := os.Getenv("EMAIL_PASS"); v != "" {
		cfg.Email.Password = v
	}
	if v := os.Getenv("EMAIL_FROM"); v != "" {
		cfg.Email.From = v
	}
}

// Validate rejects configurations the engine cannot run with.
func (c Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.Session.TTL <= 0 {
		return errors.New("session ttl must be positive")
	}
	if c.CSRF.Validity <= 0 {
		return errors.New("csrf validity must be positive")
	}
	for name, tier := range map[string]TierConfig{
		"general":    c.RateLimit.General,
		"elevated":   c.RateLimit.Elevated,
		"login":      c.RateLimit.Login,
		"other_auth": c.RateLimit.OtherAuth,
	} {
		if tier.Max <= 0 || tier.Window <= 0 {
			return fmt.Errorf("rate limit tier %s must have positive max and window", name)
		}
	}
	if c.OTP.TTL <= 0 || c.OTP.ResendCooldown <= 0 {
		return errors.New("otp ttl and resend cooldown must be positive")
	}
	if c.OTP.ResendCooldown >= c.OTP.TTL {
		return errors.New("otp resend cooldown must be shorter than otp ttl")
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		return errors.New("redis enabled but addr empty")
	}
	return nil
}
