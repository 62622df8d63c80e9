package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type pingRegistrar struct {
	prefix string
}

func (p pingRegistrar) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET(p.prefix+"/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})
}

func get(engine *gin.Engine, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
	return w
}

func TestRouter_MountsUnderVersionPrefix(t *testing.T) {
	engine := gin.New()

	New(engine, "v1").
		Register(pingRegistrar{prefix: "/integrations"}).
		Setup()

	w := get(engine, "/api/v1/integrations/ping")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pong", w.Body.String())
}

func TestRouter_VersionIsolatesRoutes(t *testing.T) {
	engine := gin.New()

	New(engine, "v2").
		Register(pingRegistrar{prefix: "/webhooks"}).
		Setup()

	assert.Equal(t, http.StatusNotFound, get(engine, "/api/v1/webhooks/ping").Code)
	assert.Equal(t, http.StatusOK, get(engine, "/api/v2/webhooks/ping").Code)
}

func TestRouter_MiddlewareRunsBeforeRoutes(t *testing.T) {
	engine := gin.New()

	New(engine, "v1").
		Use(func(c *gin.Context) {
			c.AbortWithStatus(http.StatusTeapot)
		}).
		Register(pingRegistrar{prefix: "/integrations"}).
		Setup()

	assert.Equal(t, http.StatusTeapot, get(engine, "/api/v1/integrations/ping").Code)
}

func TestRouter_MultipleRegistrars(t *testing.T) {
	engine := gin.New()

	New(engine, "v1").
		Register(pingRegistrar{prefix: "/integrations"}).
		Register(pingRegistrar{prefix: "/webhooks"}).
		Setup()

	assert.Equal(t, http.StatusOK, get(engine, "/api/v1/integrations/ping").Code)
	assert.Equal(t, http.StatusOK, get(engine, "/api/v1/webhooks/ping").Code)
}
