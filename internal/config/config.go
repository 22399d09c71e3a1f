// Package config reads process configuration from environment variables (prefix SURFACE_) and
// an optional config file.
package config

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const envPrefix = "SURFACE"

type Config interface {
	EnvConfig
	SecurityConfig
	HandoffConfig
	StoreConfig
	Validate() error
}

type mainConfig struct {
	EnvVars
	Security
	Handoff
	Stores
}

var _ Config = mainConfig{}

// Load builds the configuration. configFile may be empty; environment variables always win over
// file values.
func Load(configFile string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setDefaults(v)
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "[config.Load] read %s", configFile)
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) mainConfig {
	return mainConfig{
		EnvVars:  EnvVars{v: v},
		Security: Security{v: v},
		Handoff:  Handoff{v: v},
		Stores:   Stores{v: v},
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "Surface Auth")
	v.SetDefault("app.env", "DEV")
	v.SetDefault("app.port", "8080")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.surface", "admin_console")
	v.SetDefault("app.landing_path", "/")
	v.SetDefault("app.login_path", "/login")

	v.SetDefault("security.lockout_threshold", 5)
	v.SetDefault("security.lockout_window", "15m")
	v.SetDefault("security.store_timeout", "2s")
	v.SetDefault("security.session_idle_timeout", "30m")
	v.SetDefault("security.session_sweep_interval", "5m")
	v.SetDefault("security.reveal_unknown_login", false)
	v.SetDefault("security.secure_cookies", true)
	v.SetDefault("security.login_rate", 1.0)
	v.SetDefault("security.login_burst", 10)

	v.SetDefault("handoff.secret", "")
	v.SetDefault("handoff.ttl", "5m")
	v.SetDefault("handoff.max_lifetime", "15m")
	v.SetDefault("handoff.replay_guard", ReplayGuardNone)
	v.SetDefault("surfaces.admin_console.base_url", "http://localhost:8080")
	v.SetDefault("surfaces.admin_console.users_table", "admin_users")
	v.SetDefault("surfaces.client_portal.base_url", "http://localhost:8081")
	v.SetDefault("surfaces.client_portal.users_table", "portal_users")

	v.SetDefault("store.users", StoreMemory)
	v.SetDefault("store.failures", StoreMemory)
	v.SetDefault("store.sessions", StoreMemory)
	v.SetDefault("store.postgres_dsn", "")
	v.SetDefault("store.postgres_max_conns", 10)
	v.SetDefault("store.redis_url", "redis://localhost:6379/0")
	v.SetDefault("store.bolt_path", "./data/sessions.db")
	v.SetDefault("bootstrap.admin_login", "")
	v.SetDefault("bootstrap.admin_password", "")
}

// Validate checks the combinations Load can not default.
func (c mainConfig) Validate() error {
	if !knownSurface(c.GetSurface()) {
		return errors.Errorf("app.surface %q is not a known surface", c.GetSurface())
	}
	if n := len(c.GetHandoffSecret()); n < 32 {
		return errors.Errorf("handoff.secret must be at least 32 bytes, got %d", n)
	}
	if c.GetHandoffTTL() < time.Second || c.GetHandoffTTL() > c.GetHandoffMaxLifetime() {
		return errors.Errorf("handoff.ttl %s must be at least 1s and at most handoff.max_lifetime %s", c.GetHandoffTTL(), c.GetHandoffMaxLifetime())
	}
	if c.GetLockoutThreshold() <= 0 || c.GetLockoutWindow() <= 0 {
		return errors.New("security.lockout_threshold and security.lockout_window must be positive")
	}
	if err := oneOf("store.users", c.GetUsersStore(), StoreMemory, StorePostgres); err != nil {
		return err
	}
	if err := oneOf("store.failures", c.GetFailuresStore(), StoreMemory, StorePostgres, StoreRedis); err != nil {
		return err
	}
	if err := oneOf("store.sessions", c.GetSessionsStore(), StoreMemory, StoreRedis, StoreBolt); err != nil {
		return err
	}
	if err := oneOf("handoff.replay_guard", c.GetReplayGuard(), ReplayGuardNone, ReplayGuardMemory, ReplayGuardRedis); err != nil {
		return err
	}
	if c.GetPostgresDSN() == "" && (c.GetUsersStore() == StorePostgres || c.GetFailuresStore() == StorePostgres) {
		return errors.New("store.postgres_dsn is required for postgres stores")
	}
	return nil
}

func oneOf(key, value string, allowed ...string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return errors.Errorf("%s must be one of %s, got %q", key, strings.Join(allowed, "|"), value)
}
