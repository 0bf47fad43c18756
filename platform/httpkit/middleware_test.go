package httpkit

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"fantopark_backend/platform/apperr"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/time/rate"
)

type jwtConfig struct{ secret string }

func (c jwtConfig) GetJWTAccessSecret() string { return c.secret }

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func newTestEngine(cfg jwtConfig) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.GET("/me", AuthRequired(cfg), func(c *gin.Context) {
		id := GetIdentity(c)
		c.JSON(http.StatusOK, gin.H{"actor": Actor(id), "admin": id.HasRole("admin")})
	})
	engine.GET("/admin", AuthRequired(cfg), RequireRole("admin"), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return engine
}

func TestAuthRequiredAcceptsAccessToken(t *testing.T) {
	cfg := jwtConfig{secret: "s3cret"}
	engine := newTestEngine(cfg)

	token := signToken(t, cfg.secret, jwt.MapClaims{
		"sub":   "user-1",
		"email": "Priya@FanToPark.com",
		"roles": []string{"sales"},
		"type":  "access",
		"exp":   time.Now().Add(time.Hour).Unix(),
	})

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if want := `{"actor":"priya@fantopark.com","admin":false}`; rec.Body.String() != want {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}
}

func TestAuthRequiredRejectsRefreshTokenAndMissingHeader(t *testing.T) {
	cfg := jwtConfig{secret: "s3cret"}
	engine := newTestEngine(cfg)

	refresh := signToken(t, cfg.secret, jwt.MapClaims{"sub": "user-1", "type": "refresh"})
	for _, header := range []string{"", "Bearer " + refresh, "Basic abc"} {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		engine.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("header %q: expected 401, got %d", header, rec.Code)
		}
	}
}

func TestRequireRole(t *testing.T) {
	cfg := jwtConfig{secret: "s3cret"}
	engine := newTestEngine(cfg)

	for roles, want := range map[string]int{"sales": http.StatusForbidden, "admin": http.StatusNoContent} {
		token := signToken(t, cfg.secret, jwt.MapClaims{"sub": "u", "roles": []string{roles}, "type": "access"})
		req := httptest.NewRequest(http.MethodGet, "/admin", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		engine.ServeHTTP(rec, req)
		if rec.Code != want {
			t.Fatalf("role %s: expected %d, got %d", roles, want, rec.Code)
		}
	}
}

func TestHandleErrorMapsKindsAndHidesUnknown(t *testing.T) {
	gin.SetMode(gin.TestMode)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	HandleError(c, apperr.Validation("transition not allowed").WithCode("INVALID_TRANSITION"))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
	if want := `{"error":"transition not allowed","code":"INVALID_TRANSITION"}`; rec.Body.String() != want {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(rec)
	HandleError(c, errors.New("pq: connection refused"))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if want := `{"error":"internal error"}`; rec.Body.String() != want {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}
}

func TestIPRateLimiterEvictsIdleAddresses(t *testing.T) {
	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	limiter := NewIPRateLimiter(rate.Limit(1), 1, nil)
	limiter.now = func() time.Time { return clock }

	first := limiter.getLimiter("10.0.0.1")
	limiter.getLimiter("10.0.0.2")
	if limiter.size() != 2 {
		t.Fatalf("expected 2 limiters, got %d", limiter.size())
	}

	clock = clock.Add(5 * time.Minute)
	if limiter.getLimiter("10.0.0.1") != first {
		t.Fatalf("an active address must keep its limiter")
	}

	clock = clock.Add(limiterIdleTTL - time.Minute)
	limiter.getLimiter("10.0.0.3")
	if limiter.size() != 2 {
		t.Fatalf("expected the idle address to be evicted, got %d limiters", limiter.size())
	}
	if _, ok := limiter.limiters["10.0.0.2"]; ok {
		t.Fatalf("10.0.0.2 should have been evicted")
	}
}

func TestRateLimitRejectsBurstOverflow(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.GET("/x", NewIPRateLimiter(rate.Limit(0.001), 1, nil).RateLimit(), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	codes := make([]int, 0, 2)
	for n := 0; n < 2; n++ {
		rec := httptest.NewRecorder()
		engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
		codes = append(codes, rec.Code)
	}
	if codes[0] != http.StatusNoContent || codes[1] != http.StatusTooManyRequests {
		t.Fatalf("expected 204 then 429, got %v", codes)
	}
}
