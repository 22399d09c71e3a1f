package config

import (
	"strings"

	"github.com/spf13/viper"
)

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
	GetLogLevel() string
	GetSurface() string
	GetLandingPath() string
	GetLoginPath() string
}

type EnvVars struct {
	v *viper.Viper
}

var _ EnvConfig = EnvVars{}

// GetPort returns the listen address, always with a leading colon.
func (e EnvVars) GetPort() string {
	port := e.v.GetString("app.port")
	if !strings.HasPrefix(port, ":") {
		port = ":" + port
	}
	return port
}

func (e EnvVars) GetAppName() string {
	return e.v.GetString("app.name")
}

func (e EnvVars) GetEnv() string {
	return strings.ToUpper(e.v.GetString("app.env"))
}

func (e EnvVars) GetLogLevel() string {
	return e.v.GetString("app.log_level")
}

// GetSurface is the surface this process serves.
func (e EnvVars) GetSurface() string {
	return e.v.GetString("app.surface")
}

func (e EnvVars) GetLandingPath() string {
	return e.v.GetString("app.landing_path")
}

func (e EnvVars) GetLoginPath() string {
	return e.v.GetString("app.login_path")
}
