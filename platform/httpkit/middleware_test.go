package httpkit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"leadflow_backend/platform/logger"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const testSecret = "test-access-secret"

type stubConfig struct{ secret, token string }

func (s stubConfig) GetJWTAccessSecret() string  { return s.secret }
func (s stubConfig) GetInternalAPIToken() string { return s.token }

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func newAuthEngine() *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.GET("/me", AuthRequired(stubConfig{secret: testSecret}), func(c *gin.Context) {
		id := MustGetIdentity(c)
		if id == nil {
			return
		}
		c.JSON(http.StatusOK, gin.H{"user": id.UserID(), "team": id.TeamID(), "role": id.Role()})
	})
	engine.POST("/lead-only", AuthRequired(stubConfig{secret: testSecret}), RequireRole("TEAM_LEAD"), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return engine
}

func TestAuthRequired(t *testing.T) {
	engine := newAuthEngine()
	valid := signToken(t, jwt.MapClaims{
		"sub":     uuid.NewString(),
		"team_id": uuid.NewString(),
		"role":    "AGENT",
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	missingTeam := signToken(t, jwt.MapClaims{"sub": uuid.NewString(), "exp": time.Now().Add(time.Hour).Unix()})
	expired := signToken(t, jwt.MapClaims{
		"sub":     uuid.NewString(),
		"team_id": uuid.NewString(),
		"exp":     time.Now().Add(-time.Hour).Unix(),
	})

	cases := []struct {
		name   string
		header string
		want   int
	}{
		{"valid token", "Bearer " + valid, http.StatusOK},
		{"missing header", "", http.StatusUnauthorized},
		{"missing team claim", "Bearer " + missingTeam, http.StatusUnauthorized},
		{"expired token", "Bearer " + expired, http.StatusUnauthorized},
		{"garbage", "Bearer abc.def.ghi", http.StatusUnauthorized},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			engine.ServeHTTP(rec, req)
			if rec.Code != tc.want {
				t.Fatalf("expected %d, got %d (%s)", tc.want, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	engine := newAuthEngine()

	for role, want := range map[string]int{"TEAM_LEAD": http.StatusNoContent, "AGENT": http.StatusForbidden} {
		token := signToken(t, jwt.MapClaims{
			"sub":     uuid.NewString(),
			"team_id": uuid.NewString(),
			"role":    role,
			"exp":     time.Now().Add(time.Hour).Unix(),
		})
		req := httptest.NewRequest(http.MethodPost, "/lead-only", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		engine.ServeHTTP(rec, req)
		if rec.Code != want {
			t.Errorf("role %s: expected %d, got %d", role, want, rec.Code)
		}
	}
}

func TestInternalToken(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		name       string
		configured string
		provided   string
		want       int
	}{
		{"match", "s3cret", "s3cret", http.StatusOK},
		{"mismatch", "s3cret", "nope", http.StatusUnauthorized},
		{"missing header", "s3cret", "", http.StatusUnauthorized},
		{"unconfigured rejects all", "", "", http.StatusUnauthorized},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			engine := gin.New()
			engine.POST("/internal", InternalToken(stubConfig{token: tc.configured}), func(c *gin.Context) {
				c.Status(http.StatusOK)
			})
			req := httptest.NewRequest(http.MethodPost, "/internal", nil)
			if tc.provided != "" {
				req.Header.Set(HeaderInternalToken, tc.provided)
			}
			rec := httptest.NewRecorder()
			engine.ServeHTTP(rec, req)
			if rec.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, rec.Code)
			}
		})
	}
}

func TestIPRateLimiter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	limiter := NewIPRateLimiter(rate.Every(time.Hour), 2, logger.Discard())
	engine.POST("/hook", limiter.RateLimit(), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	send := func(ip string) int {
		req := httptest.NewRequest(http.MethodPost, "/hook", nil)
		req.RemoteAddr = ip + ":4000"
		rec := httptest.NewRecorder()
		engine.ServeHTTP(rec, req)
		return rec.Code
	}

	for i := 0; i < 2; i++ {
		if code := send("10.0.0.1"); code != http.StatusNoContent {
			t.Fatalf("request %d: expected 204, got %d", i, code)
		}
	}
	if code := send("10.0.0.1"); code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 once the burst is spent, got %d", code)
	}
	if code := send("10.0.0.2"); code != http.StatusNoContent {
		t.Fatalf("other clients keep their own budget, got %d", code)
	}
}
