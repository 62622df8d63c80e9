package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func newCronRouter(cronKey string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/cron/sync-cycle", CronAuth(cronKey), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return router
}

func TestCronAuth(t *testing.T) {
	router := newCronRouter("secret-key")

	t.Run("valid header key", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/cron/sync-cycle", nil)
		req.Header.Set(CronKeyHeader, "secret-key")
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("valid bearer key", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/cron/sync-cycle", nil)
		req.Header.Set(AuthHeaderKey, BearerPrefix+"secret-key")
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("wrong key", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/cron/sync-cycle", nil)
		req.Header.Set(CronKeyHeader, "wrong")
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("missing key", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/cron/sync-cycle", nil)
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("unconfigured key rejects everything", func(t *testing.T) {
		unconfigured := newCronRouter("")
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/cron/sync-cycle", nil)
		req.Header.Set(CronKeyHeader, "")
		unconfigured.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}
