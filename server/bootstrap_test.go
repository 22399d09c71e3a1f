package server_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/jrsteele09/go-surface-auth/internal/config"
	"github.com/jrsteele09/go-surface-auth/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func loadConfig(t *testing.T, body string) config.Config {
	t.Helper()
	path := filepath.Join(t.TempDir(), "surface.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	cfg, err := config.Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestBuildDeps_MemoryStores(t *testing.T) {
	dir := t.TempDir()
	cfg := loadConfig(t, `
app:
  env: TEST
  surface: admin_console
handoff:
  secret: `+testSecret+`
  replay_guard: memory
security:
  secure_cookies: false
  login_burst: 2
  login_rate: 0.001
store:
  sessions: bolt
  bolt_path: `+filepath.Join(dir, "sessions.db")+`
bootstrap:
  admin_login: root
  admin_password: `+testPassword+`
`)

	deps, closeDeps, err := server.BuildDeps(context.Background(), cfg, prometheus.NewRegistry())
	require.NoError(t, err)
	defer closeDeps()
	require.NotNil(t, deps.Gatherer)
	require.NotEmpty(t, deps.Cleanups)

	srv, err := server.New(cfg, deps)
	require.NoError(t, err)

	rec := do(srv, loginRequest("root", testPassword))
	require.Equal(t, http.StatusOK, rec.Code)
	cookie := sessionCookie(t, rec)

	rec = do(srv, httptest.NewRequest(http.MethodGet, "/api/admin/status", nil), cookie)
	require.Equal(t, http.StatusOK, rec.Code, "the bootstrap account is a super admin")
	require.Contains(t, rec.Body.String(), `"replay_guard":"memory"`)

	// burst of two per address is spent
	rec = do(srv, loginRequest("root", testPassword))
	require.Equal(t, http.StatusOK, rec.Code)
	rec = do(srv, loginRequest("root", testPassword))
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Equal(t, "1", rec.Header().Get("Retry-After"))
}

func TestBuildDeps_GeneratedPassword(t *testing.T) {
	cfg := loadConfig(t, `
app:
  env: TEST
handoff:
  secret: `+testSecret+`
`)

	deps, closeDeps, err := server.BuildDeps(context.Background(), cfg, prometheus.NewRegistry())
	require.NoError(t, err)
	defer closeDeps()

	srv, err := server.New(cfg, deps)
	require.NoError(t, err)

	rec := do(srv, loginRequest(server.DefaultSuperAdminLogin, "guess"))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestBuildDeps_UnreachableRedis(t *testing.T) {
	cfg := loadConfig(t, `
app:
  env: TEST
handoff:
  secret: `+testSecret+`
store:
  failures: redis
  redis_url: redis://127.0.0.1:1/0
`)

	_, closeDeps, err := server.BuildDeps(context.Background(), cfg, prometheus.NewRegistry())
	require.Error(t, err)
	closeDeps()
}
