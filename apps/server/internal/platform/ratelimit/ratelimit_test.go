package ratelimit_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"

	"github.com/openscribe/scribe/apps/server/internal/platform/ratelimit"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newLimitedRouter(t *testing.T, limit int) (*gin.Engine, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	r := gin.New()
	r.Use(ratelimit.New(rdb, limit, time.Minute).Middleware())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r, mr
}

func hit(r *gin.Engine) int {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.9:1234"
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Code
}

func TestLimiter_AllowsUpToLimit(t *testing.T) {
	r, _ := newLimitedRouter(t, 3)

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, hit(r))
	}
	assert.Equal(t, http.StatusTooManyRequests, hit(r))
}

func TestLimiter_WindowRollsOver(t *testing.T) {
	r, mr := newLimitedRouter(t, 1)

	assert.Equal(t, http.StatusOK, hit(r))
	assert.Equal(t, http.StatusTooManyRequests, hit(r))

	// The bucket key is derived from wall-clock time, so fast-forwarding
	// miniredis alone is not enough; expire the bucket directly.
	mr.FastForward(2 * time.Minute)
	for _, k := range mr.Keys() {
		mr.Del(k)
	}
	assert.Equal(t, http.StatusOK, hit(r))
}

func TestLimiter_RedisDownFailsOpen(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	r := gin.New()
	r.Use(ratelimit.New(rdb, 1, time.Minute).Middleware())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	mr.Close()
	assert.Equal(t, http.StatusOK, hit(r))
}
