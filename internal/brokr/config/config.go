// Package config loads the broker configuration: one descriptor per database
// alias plus audit, pool, and gateway tunables. The loaded configuration is
// an immutable snapshot behind an atomic pointer; a reload replaces the whole
// snapshot at once, so concurrent requests never see a half-updated set of
// descriptors.
package config

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/spf13/viper"
)

// Supported engine types for direct mode. sqlite needs only a file path;
// the rest connect over the network.
var (
	hostEngines = map[string]bool{
		"postgres": true,
		"mysql":    true,
		"mariadb":  true,
		"kingbase": true,
	}
	fileEngines = map[string]bool{
		"sqlite": true,
	}
)

// DefaultPorts maps host engines to their conventional ports, used when a
// descriptor omits the port.
var DefaultPorts = map[string]int{
	"postgres": 5432,
	"mysql":    3306,
	"mariadb":  3306,
	"kingbase": 54321,
}

// DatabaseCfg is one immutable database descriptor.
type DatabaseCfg struct {
	Alias      string `mapstructure:"-"`
	Mode       string `mapstructure:"mode"` // direct | proxied
	Type       string `mapstructure:"type"`
	Permission Tier   `mapstructure:"permission"`

	// direct mode
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`

	// proxied mode
	APIURL   string `mapstructure:"api_url"`
	APIToken string `mapstructure:"api_token"`
}

// PortOrDefault returns the configured port, or the engine's conventional
// port when unset.
func (d DatabaseCfg) PortOrDefault() int {
	if d.Port > 0 {
		return d.Port
	}
	return DefaultPorts[d.Type]
}

type AuditCfg struct {
	Enabled       bool          `mapstructure:"enabled"`
	Dir           string        `mapstructure:"dir"`
	RetentionDays int           `mapstructure:"retention_days"`
	AppendTimeout time.Duration `mapstructure:"append_timeout"`
}

type PoolCfg struct {
	MaxConnsPerDB  int           `mapstructure:"max_conns_per_db"`
	AcquireTimeout time.Duration `mapstructure:"acquire_timeout"`
}

type GatewayCfg struct {
	Timeout       time.Duration `mapstructure:"timeout"`
	MaxRetries    int           `mapstructure:"max_retries"`
	RetryBaseWait time.Duration `mapstructure:"retry_base_wait"`
}

type LoggingCfg struct {
	Level string `mapstructure:"level"`
}

type Config struct {
	Databases map[string]DatabaseCfg `mapstructure:"databases"`
	DefaultDB string                 `mapstructure:"default_db"`
	Audit     AuditCfg               `mapstructure:"audit"`
	Pool      PoolCfg                `mapstructure:"pool"`
	Gateway   GatewayCfg             `mapstructure:"gateway"`
	Logging   LoggingCfg             `mapstructure:"logging"`
}

var current atomic.Pointer[Config]

// Load populates the global config snapshot from a viper instance. The new
// snapshot becomes visible to readers in one atomic swap, and only after it
// validated completely.
func Load(v *viper.Viper) error {
	v.SetDefault("audit.enabled", true)
	v.SetDefault("audit.dir", "./logs/audit")
	v.SetDefault("audit.retention_days", 30)
	v.SetDefault("audit.append_timeout", "2s")
	v.SetDefault("pool.max_conns_per_db", 4)
	v.SetDefault("pool.acquire_timeout", "5s")
	v.SetDefault("gateway.timeout", "30s")
	v.SetDefault("gateway.max_retries", 2)
	v.SetDefault("gateway.retry_base_wait", "200ms")
	v.SetDefault("logging.level", "info")

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.validate(); err != nil {
		return err
	}
	current.Store(&c)
	return nil
}

// Get returns the current config snapshot. Callers must not mutate it.
func Get() *Config {
	if c := current.Load(); c != nil {
		return c
	}
	return &Config{}
}

func (c *Config) validate() error {
	for alias, db := range c.Databases {
		db.Alias = alias
		if db.Permission == "" {
			db.Permission = TierReadonly
		}
		if _, err := ParseTier(string(db.Permission)); err != nil {
			return fmt.Errorf("databases.%s: %w", alias, err)
		}
		if err := validateDatabase(db); err != nil {
			return err
		}
		c.Databases[alias] = db
	}
	if c.DefaultDB != "" {
		if _, ok := c.Databases[c.DefaultDB]; !ok {
			return fmt.Errorf("default_db %q is not a configured alias", c.DefaultDB)
		}
	}
	return nil
}

// validateDatabase checks one descriptor for completeness against its mode,
// mirroring what the admin surface enforces on save.
func validateDatabase(db DatabaseCfg) error {
	switch db.Mode {
	case "direct":
		switch {
		case hostEngines[db.Type]:
			if db.Host == "" {
				return fmt.Errorf("databases.%s: direct %s requires 'host'", db.Alias, db.Type)
			}
			if db.User == "" {
				return fmt.Errorf("databases.%s: direct %s requires 'user'", db.Alias, db.Type)
			}
			if db.Database == "" {
				return fmt.Errorf("databases.%s: direct %s requires 'database'", db.Alias, db.Type)
			}
			if db.Port < 0 {
				return fmt.Errorf("databases.%s: 'port' must be a positive integer", db.Alias)
			}
		case fileEngines[db.Type]:
			if db.Database == "" {
				return fmt.Errorf("databases.%s: direct sqlite requires 'database' (file path)", db.Alias)
			}
		case db.Type == "":
			return fmt.Errorf("databases.%s: direct mode requires 'type'", db.Alias)
		default:
			return fmt.Errorf("databases.%s: unsupported engine type %q", db.Alias, db.Type)
		}
	case "proxied":
		if db.APIURL == "" {
			return fmt.Errorf("databases.%s: proxied mode requires 'api_url'", db.Alias)
		}
		if db.APIToken == "" {
			return fmt.Errorf("databases.%s: proxied mode requires 'api_token'", db.Alias)
		}
	case "":
		return fmt.Errorf("databases.%s: 'mode' is required (direct or proxied)", db.Alias)
	default:
		return fmt.Errorf("databases.%s: mode must be 'direct' or 'proxied', got %q", db.Alias, db.Mode)
	}
	return nil
}
