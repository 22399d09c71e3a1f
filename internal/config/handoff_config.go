package config

import (
	"time"

	"github.com/spf13/viper"
)

const (
	ReplayGuardNone   = "none"
	ReplayGuardMemory = "memory"
	ReplayGuardRedis  = "redis"
)

var surfaceNames = []string{"admin_console", "client_portal"}

type HandoffConfig interface {
	GetHandoffSecret() []byte
	GetHandoffTTL() time.Duration
	GetHandoffMaxLifetime() time.Duration
	GetReplayGuard() string
	GetSurfaces() []string
	GetSurfaceBaseURL(surface string) string
	GetSurfaceUsersTable(surface string) string
}

type Handoff struct {
	v *viper.Viper
}

var _ HandoffConfig = Handoff{}

// GetHandoffSecret must be identical on every surface.
func (h Handoff) GetHandoffSecret() []byte {
	return []byte(h.v.GetString("handoff.secret"))
}

func (h Handoff) GetHandoffTTL() time.Duration {
	return h.v.GetDuration("handoff.ttl")
}

func (h Handoff) GetHandoffMaxLifetime() time.Duration {
	return h.v.GetDuration("handoff.max_lifetime")
}

func (h Handoff) GetReplayGuard() string {
	return h.v.GetString("handoff.replay_guard")
}

func (h Handoff) GetSurfaces() []string {
	return append([]string(nil), surfaceNames...)
}

func (h Handoff) GetSurfaceBaseURL(surface string) string {
	return h.v.GetString("surfaces." + surface + ".base_url")
}

func (h Handoff) GetSurfaceUsersTable(surface string) string {
	return h.v.GetString("surfaces." + surface + ".users_table")
}

func knownSurface(surface string) bool {
	for _, s := range surfaceNames {
		if s == surface {
			return true
		}
	}
	return false
}
