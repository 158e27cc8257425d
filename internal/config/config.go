package config

import (
	"fmt"
	"strings"
	"time"

	coreconfig "github.com/m3rciful/regbot/core/config"
	coredatabase "github.com/m3rciful/regbot/core/database"
	coreredis "github.com/m3rciful/regbot/core/redis"
)

const (
	// StoreMemory keeps registration sessions inside the bot process.
	StoreMemory = "memory"
	// StoreRedis shares registration sessions and locks through Redis.
	StoreRedis = "redis"
)

// RegistrationConfig tunes the registration flow.
type RegistrationConfig struct {
	Store string `yaml:"store" envconfig:"REGISTRATION_STORE"`
	// SessionTTL expires sessions idle for longer than this; 0 keeps them until completion.
	SessionTTL    time.Duration `yaml:"session_ttl" envconfig:"REGISTRATION_SESSION_TTL"`
	SweepInterval time.Duration `yaml:"sweep_interval" envconfig:"REGISTRATION_SWEEP_INTERVAL"`
	LockWait      time.Duration `yaml:"lock_wait" envconfig:"REGISTRATION_LOCK_WAIT"`
	LockTTL       time.Duration `yaml:"lock_ttl" envconfig:"REGISTRATION_LOCK_TTL"`
}

// WorkTimeout bounds one locked message so it finishes well inside the lock lease.
func (r RegistrationConfig) WorkTimeout() time.Duration {
	return r.LockTTL * 2 / 3
}

// Config is the full application configuration.
type Config struct {
	coreconfig.Config `yaml:",inline"`

	Database     coredatabase.Config `yaml:"database"`
	Redis        coreredis.Config    `yaml:"redis"`
	Registration RegistrationConfig  `yaml:"registration"`
}

// CoreConfig exposes the embedded core configuration.
func (c *Config) CoreConfig() *coreconfig.Config {
	if c == nil {
		return nil
	}
	return &c.Config
}

// Load reads YAML from path, overlays the environment and validates the result.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := coreconfig.Decode(path, &cfg); err != nil {
		return nil, err
	}
	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize validates every section and fills defaults.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}
	if err := coreconfig.Normalize(&cfg.Config); err != nil {
		return err
	}
	if err := cfg.Database.Normalize(); err != nil {
		return err
	}

	reg := &cfg.Registration
	reg.Store = strings.ToLower(strings.TrimSpace(reg.Store))
	if reg.Store == "" {
		reg.Store = StoreMemory
	}
	switch reg.Store {
	case StoreMemory:
	case StoreRedis:
		if strings.TrimSpace(cfg.Redis.URL) == "" {
			return fmt.Errorf("redis.url is required when registration.store is 'redis'")
		}
	default:
		return fmt.Errorf("invalid registration.store %q; allowed: memory, redis", reg.Store)
	}
	if reg.SessionTTL < 0 {
		return fmt.Errorf("registration.session_ttl must be >= 0")
	}
	if reg.SweepInterval <= 0 {
		reg.SweepInterval = time.Minute
	}
	if reg.LockWait <= 0 {
		reg.LockWait = 10 * time.Second
	}
	if reg.LockTTL <= 0 {
		reg.LockTTL = 30 * time.Second
	}
	if reg.LockTTL < reg.LockWait {
		return fmt.Errorf("registration.lock_ttl (%s) must not be shorter than registration.lock_wait (%s)", reg.LockTTL, reg.LockWait)
	}

	if cfg.Redis.PoolSize < 0 || cfg.Redis.MinIdleConns < 0 {
		return fmt.Errorf("redis pool settings must be >= 0")
	}
	return nil
}
