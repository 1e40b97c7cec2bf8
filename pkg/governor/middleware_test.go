package governor

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/convoguard/convoguard/pkg/store"
)

func newTestRouter(g *Governor) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(g.Middleware(nil))
	router.POST("/messages", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "accepted"})
	})
	return router
}

func postMessage(router *gin.Engine, tenantID, customerID string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/messages", nil)
	if tenantID != "" {
		req.Header.Set("X-Tenant-ID", tenantID)
	}
	if customerID != "" {
		req.Header.Set("X-Customer-ID", customerID)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestMiddleware_AllowsAndCounts(t *testing.T) {
	counterStore := store.NewMemoryStore()
	g := New(counterStore, nil, nil, nil, nil)
	router := newTestRouter(g)

	for i := 0; i < 3; i++ {
		w := postMessage(router, "tenant-1", "customer-1")
		assert.Equal(t, http.StatusOK, w.Code)
	}

	minute, _, err := g.Usage(context.Background(), "tenant-1", "customer-1", time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(3), minute)
}

func TestMiddleware_RejectsOverLimit(t *testing.T) {
	g := New(store.NewMemoryStore(), &Config{
		MinuteLimit:   2,
		HourlyLimit:   100,
		SpamCooldown:  time.Minute,
		AbuseCooldown: time.Hour,
		KeyPrefix:     "test:",
	}, nil, nil, nil)
	router := newTestRouter(g)

	assert.Equal(t, http.StatusOK, postMessage(router, "tenant-1", "customer-1").Code)
	assert.Equal(t, http.StatusOK, postMessage(router, "tenant-1", "customer-1").Code)

	w := postMessage(router, "tenant-1", "customer-1")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))
	assert.Contains(t, w.Body.String(), ReasonMinuteExceeded)
}

func TestMiddleware_SkipsRequestsWithoutIdentity(t *testing.T) {
	g := New(store.NewMemoryStore(), &Config{
		MinuteLimit:   1,
		HourlyLimit:   1,
		SpamCooldown:  time.Minute,
		AbuseCooldown: time.Hour,
		KeyPrefix:     "test:",
	}, nil, nil, nil)
	router := newTestRouter(g)

	// Anonymous traffic is not governed here; upstream auth handles it.
	for i := 0; i < 5; i++ {
		w := postMessage(router, "", "")
		assert.Equal(t, http.StatusOK, w.Code)
	}
}

func TestHeaderIdentity(t *testing.T) {
	gin.SetMode(gin.TestMode)

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodPost, "/messages", nil)
	c.Request.Header.Set("X-Tenant-ID", "tenant-1")
	c.Request.Header.Set("X-Customer-ID", "customer-1")

	tenantID, customerID, ok := HeaderIdentity(c)
	assert.True(t, ok)
	assert.Equal(t, "tenant-1", tenantID)
	assert.Equal(t, "customer-1", customerID)

	c.Request.Header.Del("X-Customer-ID")
	_, _, ok = HeaderIdentity(c)
	assert.False(t, ok)
}
