package config

import (
	"time"

	"github.com/spf13/viper"
)

type SecurityConfig interface {
	GetLockoutThreshold() int
	GetLockoutWindow() time.Duration
	GetStoreTimeout() time.Duration
	GetSessionIdleTimeout() time.Duration
	GetSessionSweepInterval() time.Duration
	GetRevealUnknownLogin() bool
	GetSecureCookies() bool
	GetLoginRate() float64
	GetLoginBurst() int
}

type Security struct {
	v *viper.Viper
}

var _ SecurityConfig = Security{}

func (s Security) GetLockoutThreshold() int {
	return s.v.GetInt("security.lockout_threshold")
}

func (s Security) GetLockoutWindow() time.Duration {
	return s.v.GetDuration("security.lockout_window")
}

func (s Security) GetStoreTimeout() time.Duration {
	return s.v.GetDuration("security.store_timeout")
}

func (s Security) GetSessionIdleTimeout() time.Duration {
	return s.v.GetDuration("security.session_idle_timeout")
}

func (s Security) GetSessionSweepInterval() time.Duration {
	return s.v.GetDuration("security.session_sweep_interval")
}

// GetRevealUnknownLogin lets logs tell unknown or inactive logins apart from wrong secrets.
func (s Security) GetRevealUnknownLogin() bool {
	return s.v.GetBool("security.reveal_unknown_login")
}

func (s Security) GetSecureCookies() bool {
	return s.v.GetBool("security.secure_cookies")
}

// GetLoginRate is the sustained login requests per second allowed from one source address.
func (s Security) GetLoginRate() float64 {
	return s.v.GetFloat64("security.login_rate")
}

func (s Security) GetLoginBurst() int {
	return s.v.GetInt("security.login_burst")
}
