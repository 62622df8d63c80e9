package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// CronKeyHeader is the header carrying the shared cron trigger secret
const CronKeyHeader = "x-cron-key"

// CronAuth guards the scheduled cycle trigger endpoint with a shared secret.
// The key is accepted from the x-cron-key header or as a bearer token, and is
// compared in constant time. An unconfigured key rejects everything.
func CronAuth(cronKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		provided := c.GetHeader(CronKeyHeader)
		if provided == "" {
			if h := c.GetHeader(AuthHeaderKey); strings.HasPrefix(h, BearerPrefix) {
				provided = strings.TrimPrefix(h, BearerPrefix)
			}
		}

		if cronKey == "" || provided == "" ||
			subtle.ConstantTimeCompare([]byte(provided), []byte(cronKey)) != 1 {
			abortWithError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid cron key")
			return
		}

		c.Next()
	}
}
