package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(engine *gin.Engine, method, target string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	for k, vs := range header {
		req.Header[k] = vs
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func okEngine(mw ...gin.HandlerFunc) *gin.Engine {
	engine := gin.New()
	engine.Use(mw...)
	engine.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	return engine
}

func TestCORSWithConfig_AllowedOrigin(t *testing.T) {
	engine := okEngine(CORSWithConfig(CORSConfig{
		AllowOrigins:     []string{"https://app.example.com"},
		AllowMethods:     []string{"GET", "POST"},
		AllowHeaders:     []string{"Content-Type"},
		AllowCredentials: true,
	}))

	w := serve(engine, http.MethodGet, "/ping", http.Header{"Origin": {"https://app.example.com"}})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
}

func TestCORSWithConfig_UnknownOriginGetsNoHeaders(t *testing.T) {
	engine := okEngine(CORSWithConfig(CORSConfig{AllowOrigins: []string{"https://app.example.com"}}))

	w := serve(engine, http.MethodGet, "/ping", http.Header{"Origin": {"https://evil.example.com"}})

	// The request is still served; the browser enforces the missing header.
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSWithConfig_EmptyWhitelistRejectsAll(t *testing.T) {
	engine := okEngine(CORSWithConfig(DefaultCORSConfig()))

	w := serve(engine, http.MethodGet, "/ping", http.Header{"Origin": {"https://anywhere.example.com"}})

	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSWithConfig_Preflight(t *testing.T) {
	engine := okEngine(CORSWithConfig(CORSConfig{
		AllowOrigins: []string{"https://app.example.com"},
		AllowMethods: []string{"GET", "POST"},
	}))

	w := serve(engine, http.MethodOptions, "/ping", http.Header{"Origin": {"https://app.example.com"}})

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "POST")
}

func TestCORSWithConfig_PreflightForUnknownOriginStill204(t *testing.T) {
	engine := okEngine(CORSWithConfig(CORSConfig{AllowOrigins: []string{"https://app.example.com"}}))

	w := serve(engine, http.MethodOptions, "/ping", http.Header{"Origin": {"https://evil.example.com"}})

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSWithConfig_WildcardSkipsCredentials(t *testing.T) {
	engine := okEngine(CORSWithConfig(CORSConfig{
		AllowOrigins:     []string{"*"},
		AllowCredentials: true,
	}))

	w := serve(engine, http.MethodGet, "/ping", http.Header{"Origin": {"https://anywhere.example.com"}})

	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Credentials"))
}

func TestRequestID_Generated(t *testing.T) {
	var seen string
	engine := gin.New()
	engine.Use(RequestID())
	engine.GET("/ping", func(c *gin.Context) {
		seen = c.GetString("request_id")
		c.Status(http.StatusOK)
	})

	w := serve(engine, http.MethodGet, "/ping", nil)

	require.NotEmpty(t, seen)
	assert.Equal(t, seen, w.Header().Get("X-Request-ID"))
}

func TestRequestID_PropagatesCallerID(t *testing.T) {
	engine := okEngine(RequestID())

	w := serve(engine, http.MethodGet, "/ping", http.Header{"X-Request-Id": {"upstream-id"}})

	assert.Equal(t, "upstream-id", w.Header().Get("X-Request-ID"))
}

func TestRequestID_Unique(t *testing.T) {
	engine := okEngine(RequestID())

	first := serve(engine, http.MethodGet, "/ping", nil).Header().Get("X-Request-ID")
	second := serve(engine, http.MethodGet, "/ping", nil).Header().Get("X-Request-ID")

	assert.NotEqual(t, first, second)
}

func TestSecure_DefaultHeaders(t *testing.T) {
	engine := okEngine(Secure())

	w := serve(engine, http.MethodGet, "/ping", nil)

	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Contains(t, w.Header().Get("Content-Security-Policy"), "default-src 'self'")
	// HSTS only makes sense behind TLS, so the default leaves it unset.
	assert.Empty(t, w.Header().Get("Strict-Transport-Security"))
}

func TestSecureWithConfig_HSTS(t *testing.T) {
	engine := okEngine(SecureWithConfig(SecurityConfig{HSTSMaxAge: 31536000, HSTSPreload: true}))

	w := serve(engine, http.MethodGet, "/ping", nil)

	hsts := w.Header().Get("Strict-Transport-Security")
	assert.Contains(t, hsts, "max-age=31536000")
	assert.Contains(t, hsts, "preload")
}
