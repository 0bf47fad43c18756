package router

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	apphttp "fantopark_backend/internal/http"
	"fantopark_backend/platform/logger"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

type testConfig struct{}

func (testConfig) GetHTTPAddr() string        { return ":0" }
func (testConfig) GetCORSAllowAll() bool      { return false }
func (testConfig) GetCORSOrigins() []string   { return []string{"http://localhost:4200"} }
func (testConfig) GetCORSAllowCreds() bool    { return true }
func (testConfig) GetRateLimitRPS() float64   { return 100 }
func (testConfig) GetRateLimitBurst() int     { return 100 }
func (testConfig) GetJWTAccessSecret() string { return "s3cret" }

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

type pingModule struct{ registered bool }

func (m *pingModule) Name() string { return "ping" }

func (m *pingModule) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.registered = true
	ctx.V1.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	ctx.Protected.GET("/whoami", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	ctx.Admin.GET("/secret", func(c *gin.Context) { c.Status(http.StatusNoContent) })
}

func newTestApp(health apphttp.HealthChecker, mods ...apphttp.Module) *gin.Engine {
	gin.SetMode(gin.TestMode)
	return New(&apphttp.App{
		Config:   testConfig{},
		Logger:   logger.Nop(),
		Health:   health,
		Gatherer: prometheus.NewRegistry(),
		Modules:  mods,
	})
}

func serve(engine *gin.Engine, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealthReflectsDatabase(t *testing.T) {
	if rec := serve(newTestApp(pinger{}), "/health"); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec := serve(newTestApp(pinger{err: errors.New("down")}), "/health"); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestModulesMountUnderAPIPrefix(t *testing.T) {
	mod := &pingModule{}
	engine := newTestApp(pinger{}, mod)
	if !mod.registered {
		t.Fatalf("module routes were not registered")
	}

	rec := serve(engine, "/api/v1/ping")
	if rec.Code != http.StatusOK || rec.Body.String() != "pong" {
		t.Fatalf("unexpected response %d %q", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Fatalf("expected request id header")
	}
}

func TestProtectedGroupsRequireToken(t *testing.T) {
	engine := newTestApp(pinger{}, &pingModule{})
	for _, path := range []string{"/api/v1/whoami", "/api/v1/admin/secret"} {
		if rec := serve(engine, path); rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401, got %d", path, rec.Code)
		}
	}
}

func TestMetricsEndpoint(t *testing.T) {
	if rec := serve(newTestApp(pinger{}), "/metrics"); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
