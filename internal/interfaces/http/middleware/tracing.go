// Package middleware provides the HTTP middleware chain for the SyncBridge API.
package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// maxHeaderAttrLength caps header-sourced trace attributes
const maxHeaderAttrLength = 128

// Tracing starts a server span per request, named after the route pattern.
// Install TraceTags right after it so spans get the caller attributes.
func Tracing() gin.HandlerFunc {
	return otelgin.Middleware("syncbridge-backend")
}

// TraceTags tags the request span with the request id and, after the rest of
// the chain has authenticated the caller, the organization and user. It must
// run inside the Tracing span, before otelgin ends it.
func TraceTags() gin.HandlerFunc {
	return func(c *gin.Context) {
		span := trace.SpanFromContext(c.Request.Context())
		if span.IsRecording() {
			if id := requestIDAttr(c); id != "" {
				span.SetAttributes(attribute.String("request_id", id))
			}
		}

		c.Next()

		if !span.IsRecording() {
			return
		}
		if orgID := orgIDAttr(c); orgID != "" {
			span.SetAttributes(attribute.String("org_id", orgID))
		}
		if userID, ok := c.Get(JWTUserIDKey); ok {
			if id, _ := userID.(string); id != "" {
				span.SetAttributes(attribute.String("user_id", id))
			}
		}
	}
}

func requestIDAttr(c *gin.Context) string {
	if id := c.GetString("request_id"); id != "" {
		return id
	}
	// Header fallback for requests that bypass the RequestID middleware,
	// truncated so oversized headers cannot bloat spans.
	header := c.GetHeader("X-Request-ID")
	if len(header) > maxHeaderAttrLength {
		header = header[:maxHeaderAttrLength]
	}
	return header
}

// orgIDAttr prefers the authenticated claim; the X-Org-ID header is accepted
// only when it parses as a UUID so arbitrary header text never lands in
// trace attributes.
func orgIDAttr(c *gin.Context) string {
	if orgID, ok := c.Get(JWTOrgIDKey); ok {
		if id, _ := orgID.(string); id != "" {
			return id
		}
	}
	header := c.GetHeader("X-Org-ID")
	if header == "" {
		return ""
	}
	if _, err := uuid.Parse(header); err != nil {
		return ""
	}
	return header
}
