package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go-timetrack/internal/shared/contextutil"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
)

func newIdempotencyRouter(t *testing.T) (*gin.Engine, redismock.ClientMock) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	rdb, rmock := redismock.NewClientMock()

	router := gin.New()
	router.POST("/shifts/clock-in",
		func(c *gin.Context) {
			ctx := contextutil.WithUserID(c.Request.Context(), "user-1")
			c.Request = c.Request.WithContext(ctx)
			c.Next()
		},
		Idempotency(rdb),
		func(c *gin.Context) {
			c.JSON(http.StatusCreated, gin.H{"document_id": "fresh"})
		},
	)
	return router, rmock
}

func TestIdempotency_ReplaysCachedResponse(t *testing.T) {
	router, rmock := newIdempotencyRouter(t)

	// The cache key carries the route and the authenticated subject.
	rmock.ExpectGet("idemp:/shifts/clock-in:user-1:key-1").
		SetVal(`{"document_id":"d1"}`)

	req := httptest.NewRequest(http.MethodPost, "/shifts/clock-in", nil)
	req.Header.Set("Idempotency-Key", "key-1")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"d1"`)
	assert.NotContains(t, w.Body.String(), "fresh")
	assert.NoError(t, rmock.ExpectationsWereMet())
}

func TestIdempotency_ConcurrentRequestRejected(t *testing.T) {
	router, rmock := newIdempotencyRouter(t)

	cacheKey := "idemp:/shifts/clock-in:user-1:key-1"
	rmock.ExpectGet(cacheKey).RedisNil()
	rmock.ExpectSetNX(cacheKey+":lock", "locked", 30*time.Second).SetVal(false)

	req := httptest.NewRequest(http.MethodPost, "/shifts/clock-in", nil)
	req.Header.Set("Idempotency-Key", "key-1")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "PROCESSING")
	assert.NoError(t, rmock.ExpectationsWereMet())
}

func TestIdempotency_FirstRequestPassesThrough(t *testing.T) {
	router, rmock := newIdempotencyRouter(t)

	cacheKey := "idemp:/shifts/clock-in:user-1:key-1"
	rmock.ExpectGet(cacheKey).RedisNil()
	rmock.ExpectSetNX(cacheKey+":lock", "locked", 30*time.Second).SetVal(true)

	req := httptest.NewRequest(http.MethodPost, "/shifts/clock-in", nil)
	req.Header.Set("Idempotency-Key", "key-1")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), "fresh")
	assert.NoError(t, rmock.ExpectationsWereMet())
}
