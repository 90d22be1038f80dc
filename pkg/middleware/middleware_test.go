package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sparklab/sparklab-api/pkg/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingLimiter struct {
	limit int
	seen  map[string]int
	err   error
}

func (l *countingLimiter) Allow(_ context.Context, key string) (bool, error) {
	if l.err != nil {
		return false, l.err
	}
	l.seen[key]++
	return l.seen[key] <= l.limit, nil
}

func newRouter(tokens *services.TokenService, limiter Limiter) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Metrics())
	r.GET("/api/ping", AuthMiddleware(tokens), RateLimit(limiter), func(c *gin.Context) {
		claims, ok := GetUserClaimsFromContext(c)
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.String(http.StatusOK, claims.Email)
	})
	return r
}

func get(r http.Handler, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api/ping", nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware(t *testing.T) {
	tokens := services.NewTokenService("secret", time.Hour)
	r := newRouter(tokens, nil)

	token, err := tokens.GenerateToken(uuid.New(), "a@example.com")
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic " + token, http.StatusUnauthorized},
		{"garbage token", "Bearer not-a-jwt", http.StatusUnauthorized},
		{"valid token", "Bearer " + token, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := get(r, tt.header)
			assert.Equal(t, tt.status, w.Code)
			if tt.status == http.StatusUnauthorized {
				assert.Contains(t, w.Body.String(), `"code":"UNAUTHORIZED"`)
			} else {
				assert.Equal(t, "a@example.com", w.Body.String())
			}
		})
	}
}

func TestRateLimit(t *testing.T) {
	tokens := services.NewTokenService("secret", time.Hour)
	limiter := &countingLimiter{limit: 2, seen: map[string]int{}}
	r := newRouter(tokens, limiter)

	token, err := tokens.GenerateToken(uuid.New(), "a@example.com")
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, get(r, "Bearer "+token).Code)
	assert.Equal(t, http.StatusOK, get(r, "Bearer "+token).Code)
	w := get(r, "Bearer "+token)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "RATE_LIMITED")

	other, err := tokens.GenerateToken(uuid.New(), "b@example.com")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, get(r, "Bearer "+other).Code)
}

func TestRateLimitFailsOpen(t *testing.T) {
	tokens := services.NewTokenService("secret", time.Hour)
	r := newRouter(tokens, &countingLimiter{err: errors.New("redis down")})

	token, err := tokens.GenerateToken(uuid.New(), "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, get(r, "Bearer "+token).Code)
}

func TestRedisLimiterUnreachable(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	_, err := NewRedisLimiter(client, 5, time.Minute).Allow(context.Background(), "user")
	assert.Error(t, err)
}
