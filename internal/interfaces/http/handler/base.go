package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/syncbridge/backend/internal/domain/connector"
	"github.com/syncbridge/backend/internal/domain/shared"
	"github.com/syncbridge/backend/internal/interfaces/http/dto"
	"github.com/syncbridge/backend/internal/interfaces/http/middleware"
)

// BaseHandler provides the response helpers shared by all handlers.
type BaseHandler struct{}

// getRequestID reads the id set by the RequestID middleware, falling back to
// the inbound header when the middleware did not run.
func getRequestID(c *gin.Context) string {
	if id := c.GetString("request_id"); id != "" {
		return id
	}
	return c.GetHeader("X-Request-ID")
}

// getUserID extracts the user ID from JWT claims
func getUserID(c *gin.Context) (uuid.UUID, error) {
	userIDStr := middleware.GetJWTUserID(c)
	if userIDStr == "" {
		return uuid.Nil, errors.New("user ID not found in context")
	}
	return uuid.Parse(userIDStr)
}

// getOrgID extracts the organization ID from JWT claims
func getOrgID(c *gin.Context) (uuid.UUID, error) {
	orgIDStr := middleware.GetJWTOrgID(c)
	if orgIDStr == "" {
		return uuid.Nil, errors.New("organization ID not found in context")
	}
	return uuid.Parse(orgIDStr)
}

// Success sends a 200 response wrapping data in the standard envelope.
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// SuccessWithMeta sends a 200 response with pagination meta.
func (h *BaseHandler) SuccessWithMeta(c *gin.Context, data any, total int64, page, pageSize int) {
	c.JSON(http.StatusOK, dto.NewSuccessResponseWithMeta(data, total, page, pageSize))
}

// Created sends a 201 response wrapping data in the standard envelope.
func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, dto.NewSuccessResponse(data))
}

// NoContent sends an empty 204 response.
func (h *BaseHandler) NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// Error sends an error response with an explicit status code.
func (h *BaseHandler) Error(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, dto.NewErrorResponseWithRequestID(code, message, getRequestID(c)))
}

// BadRequest sends a 400 response.
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Error(c, http.StatusBadRequest, dto.ErrCodeBadRequest, message)
}

// Unauthorized sends a 401 response.
func (h *BaseHandler) Unauthorized(c *gin.Context, message string) {
	h.Error(c, http.StatusUnauthorized, dto.ErrCodeUnauthorized, message)
}

// InternalError sends a 500 response.
func (h *BaseHandler) InternalError(c *gin.Context, message string) {
	h.Error(c, http.StatusInternalServerError, dto.ErrCodeInternal, message)
}

// connectorErrorCodes maps connector sentinel errors to API error codes.
// Each sentinel maps to exactly one code; matching goes through errors.Is so
// wrapped errors resolve too.
var connectorErrorCodes = []struct {
	err  error
	code string
}{
	{connector.ErrIntegrationNotFound, dto.ErrCodeNotFound},
	{connector.ErrIntegrationExists, dto.ErrCodeAlreadyExists},
	{connector.ErrIntegrationNotActive, dto.ErrCodeInvalidState},
	{connector.ErrInvalidStatusTransition, dto.ErrCodeInvalidState},
	{connector.ErrInvalidShopDomain, dto.ErrCodeInvalidInput},
	{connector.ErrInvalidSyncKind, dto.ErrCodeInvalidInput},
	{connector.ErrInvalidCredential, dto.ErrCodeInvalidInput},
	{connector.ErrInvalidOrganizationID, dto.ErrCodeInvalidInput},
	{connector.ErrMissingScopes, dto.ErrCodeMissingScopes},
	{connector.ErrInvalidSignature, dto.ErrCodeInvalidSignature},
	{connector.ErrStateMalformed, dto.ErrCodeInvalidSignature},
	{connector.ErrStateInvalidSignature, dto.ErrCodeInvalidSignature},
	{connector.ErrStateExpired, dto.ErrCodeInvalidSignature},
	{connector.ErrStateReplayed, dto.ErrCodeInvalidSignature},
	{connector.ErrShopMismatch, dto.ErrCodeInvalidSignature},
	{connector.ErrCredentialRejected, dto.ErrCodeUpstreamAuth},
	{connector.ErrPermissionDenied, dto.ErrCodeUpstreamAuth},
	{connector.ErrTokenExchangeFailed, dto.ErrCodeUpstreamAuth},
	{connector.ErrTokenRefreshFailed, dto.ErrCodeUpstreamAuth},
	{connector.ErrAccountNotFound, dto.ErrCodeUpstream},
	{connector.ErrAccountSuspended, dto.ErrCodeUpstream},
	{connector.ErrUpstreamUnavailable, dto.ErrCodeUpstream},
	{connector.ErrUpstreamExhausted, dto.ErrCodeUpstream},
	{connector.ErrInvalidShopResponse, dto.ErrCodeUpstream},
	{connector.ErrWebhookSetupFailed, dto.ErrCodeUpstream},
	{connector.ErrPlatformRateLimited, dto.ErrCodeRateLimited},
}

// HandleError converts domain and connector errors to HTTP responses.
// Unrecognized errors become opaque 500s so internals never leak to callers.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}

	requestID := getRequestID(c)

	for _, m := range connectorErrorCodes {
		if errors.Is(err, m.err) {
			c.JSON(dto.GetHTTPStatus(m.code), dto.NewErrorResponseWithRequestID(m.code, err.Error(), requestID))
			return
		}
	}

	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		code := dto.NormalizeErrorCode(domainErr.Code)
		c.JSON(dto.GetHTTPStatus(code), dto.NewErrorResponseWithRequestID(code, domainErr.Message, requestID))
		return
	}

	c.JSON(http.StatusInternalServerError, dto.NewErrorResponseWithRequestID(
		dto.ErrCodeInternal,
		"An unexpected error occurred",
		requestID,
	))
}
