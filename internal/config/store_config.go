package config

import "github.com/spf13/viper"

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreRedis    = "redis"
	StoreBolt     = "bolt"
)

type StoreConfig interface {
	GetUsersStore() string
	GetFailuresStore() string
	GetSessionsStore() string
	GetPostgresDSN() string
	GetPostgresMaxConns() int32
	GetRedisURL() string
	GetBoltPath() string
	GetBootstrapAdminLogin() string
	GetBootstrapAdminPassword() string
}

type Stores struct {
	v *viper.Viper
}

var _ StoreConfig = Stores{}

func (s Stores) GetUsersStore() string {
	return s.v.GetString("store.users")
}

func (s Stores) GetFailuresStore() string {
	return s.v.GetString("store.failures")
}

func (s Stores) GetSessionsStore() string {
	return s.v.GetString("store.sessions")
}

func (s Stores) GetPostgresDSN() string {
	return s.v.GetString("store.postgres_dsn")
}

func (s Stores) GetPostgresMaxConns() int32 {
	return s.v.GetInt32("store.postgres_max_conns")
}

func (s Stores) GetRedisURL() string {
	return s.v.GetString("store.redis_url")
}

func (s Stores) GetBoltPath() string {
	return s.v.GetString("store.bolt_path")
}

// GetBootstrapAdminLogin seeds a super admin into the in-memory credential store. Ignored for
// other stores.
func (s Stores) GetBootstrapAdminLogin() string {
	return s.v.GetString("bootstrap.admin_login")
}

func (s Stores) GetBootstrapAdminPassword() string {
	return s.v.GetString("bootstrap.admin_password")
}
