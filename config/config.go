package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server struct {
		Port string
	}
	Database struct {
		DSN string
	}
	Redis struct {
		Addr     string
		Password string
		DB       int
	}
	Match struct {
		DefaultTimeout time.Duration // used when a request carries no timeoutMs
		MaxTimeout     time.Duration
		EntryTTL       time.Duration // stale-entry guard on pool payloads
		EventGrace     time.Duration
	}
	Cache struct {
		TTL time.Duration
	}
	Log struct {
		Level string
	}
}

var C Config

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", ":8080")
	v.SetDefault("database.dsn", "")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("match.defaultTimeout", 30*time.Second)
	v.SetDefault("match.maxTimeout", 2*time.Minute)
	v.SetDefault("match.entryTTL", 5*time.Minute)
	v.SetDefault("match.eventGrace", 2*time.Second)
	v.SetDefault("cache.ttl", 10*time.Minute)
	v.SetDefault("log.level", "info")
}

// Load reads path (if it exists) into C. Environment variables prefixed with
// PEERMATCH_ override file values, e.g. PEERMATCH_REDIS_ADDR.
func Load(path string) error {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("peermatch")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("read config: %w", err)
			}
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return err
	}
	C = c
	return nil
}

func (c *Config) Validate() error {
	if c.Redis.Addr == "" {
		return errors.New("redis addr is required")
	}
	if c.Match.DefaultTimeout <= 0 {
		return errors.New("match.defaultTimeout must be positive")
	}
	if c.Match.MaxTimeout < c.Match.DefaultTimeout {
		return errors.New("match.maxTimeout must not be below match.defaultTimeout")
	}
	if c.Match.EventGrace < 0 || c.Match.EntryTTL < 0 {
		return errors.New("match.eventGrace and match.entryTTL must not be negative")
	}
	// a pool entry must outlive the longest wait its owner may be holding
	if c.Match.EntryTTL != 0 && c.Match.EntryTTL < c.Match.MaxTimeout {
		return fmt.Errorf("match.entryTTL (%s) must be 0 or at least match.maxTimeout (%s)",
			c.Match.EntryTTL, c.Match.MaxTimeout)
	}
	return nil
}
