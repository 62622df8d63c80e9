package handler

import (
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	connectapp "github.com/syncbridge/backend/internal/application/connector"
	"github.com/syncbridge/backend/internal/domain/connector"
	"github.com/syncbridge/backend/internal/domain/shared"
	"github.com/syncbridge/backend/internal/infrastructure/auth"
	"github.com/syncbridge/backend/internal/interfaces/http/dto"
	"github.com/syncbridge/backend/internal/interfaces/http/middleware"
)

// IntegrationHandler exposes the integration connect, lifecycle and sync
// trigger endpoints.
type IntegrationHandler struct {
	BaseHandler
	connects    *connectapp.ConnectServiceImpl
	syncs       connectapp.SyncTrigger
	frontendURL string
}

// NewIntegrationHandler creates a new IntegrationHandler
func NewIntegrationHandler(connects *connectapp.ConnectServiceImpl, syncs connectapp.SyncTrigger, frontendURL string) *IntegrationHandler {
	return &IntegrationHandler{
		connects:    connects,
		syncs:       syncs,
		frontendURL: strings.TrimRight(frontendURL, "/"),
	}
}

// RegisterRoutes registers all integration routes
func (h *IntegrationHandler) RegisterRoutes(rg *gin.RouterGroup) {
	integrations := rg.Group("/integrations")
	{
		shopify := integrations.Group("/shopify")
		{
			shopify.GET("/connect", h.Connect)
			shopify.GET("/callback", h.Callback)
			shopify.POST("/token", h.ConnectToken)
		}

		integrations.GET("", h.List)
		integrations.GET("/:id", h.Get)
		integrations.DELETE("/:id", h.Delete)
		integrations.POST("/:id/toggle", h.Toggle)
		integrations.POST("/:id/refresh", h.Refresh)
		integrations.GET("/:id/health", h.Health)
		integrations.POST("/:id/sync",
			middleware.RequireRole(auth.RoleOwner, auth.RoleAdmin, auth.RoleMember),
			h.TriggerSync)
	}
}

// Connect starts the OAuth handshake and returns the authorize URL the
// browser should be sent to.
func (h *IntegrationHandler) Connect(c *gin.Context) {
	orgID, err := getOrgID(c)
	if err != nil {
		h.Unauthorized(c, "Organization context required")
		return
	}

	var req dto.ConnectRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	redirect, err := h.connects.BeginOAuth(c.Request.Context(), orgID, req.Shop)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, dto.ConnectRedirectResponse{
		AuthorizeURL: redirect.AuthorizeURL,
		State:        redirect.State,
	})
}

// Callback completes the OAuth handshake. The platform redirects the browser
// here, so failures surface as a redirect back to the frontend with an error
// code rather than a JSON body.
func (h *IntegrationHandler) Callback(c *gin.Context) {
	params := make(map[string]string)
	for key, values := range c.Request.URL.Query() {
		if len(values) > 0 {
			params[key] = values[0]
		}
	}

	input := connectapp.CallbackInput{
		Params: params,
		Shop:   params["shop"],
		Code:   params["code"],
		State:  params["state"],
		HMAC:   params["hmac"],
	}

	integ, err := h.connects.CompleteOAuth(c.Request.Context(), input)
	if err != nil {
		h.redirectWithError(c, err)
		return
	}

	q := url.Values{}
	q.Set("connected", "1")
	q.Set("shop", integ.PlatformAccountID)
	c.Redirect(http.StatusFound, h.frontendURL+"/settings/integrations?"+q.Encode())
}

// ConnectToken connects a shop using a private app access token
func (h *IntegrationHandler) ConnectToken(c *gin.Context) {
	orgID, err := getOrgID(c)
	if err != nil {
		h.Unauthorized(c, "Organization context required")
		return
	}

	var req dto.TokenConnectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	result, err := h.connects.ConnectWithToken(c.Request.Context(), connectapp.TokenConnectInput{
		OrganizationID: orgID,
		ShopDomain:     req.ShopDomain,
		AccessToken:    req.AccessToken,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, dto.TokenConnectResponse{
		Integration:   dto.ToIntegrationResponse(result.Integration),
		MissingScopes: result.MissingScopes,
	})
}

// List returns the organization's integrations, paginated
func (h *IntegrationHandler) List(c *gin.Context) {
	orgID, err := getOrgID(c)
	if err != nil {
		h.Unauthorized(c, "Organization context required")
		return
	}

	var req dto.ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	filter := shared.Filter{Page: req.Page, PageSize: req.PageSize}
	filter.Normalize()

	result, err := h.connects.List(c.Request.Context(), orgID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.SuccessWithMeta(c, dto.ToIntegrationResponses(result.Items), result.Total, result.Page, result.PageSize)
}

// Get returns a single integration owned by the organization
func (h *IntegrationHandler) Get(c *gin.Context) {
	orgID, id, ok := h.ownedID(c)
	if !ok {
		return
	}

	integ, err := h.connects.Get(c.Request.Context(), orgID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, dto.ToIntegrationResponse(integ))
}

// Delete soft-deletes an integration and its recorded webhook events
func (h *IntegrationHandler) Delete(c *gin.Context) {
	orgID, id, ok := h.ownedID(c)
	if !ok {
		return
	}

	if err := h.connects.Delete(c.Request.Context(), orgID, id); err != nil {
		h.HandleError(c, err)
		return
	}

	h.NoContent(c)
}

// Toggle flips an integration between active and inactive
func (h *IntegrationHandler) Toggle(c *gin.Context) {
	orgID, id, ok := h.ownedID(c)
	if !ok {
		return
	}

	integ, err := h.connects.Toggle(c.Request.Context(), orgID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, dto.ToIntegrationResponse(integ))
}

// Refresh renews the integration's access credential with the platform
func (h *IntegrationHandler) Refresh(c *gin.Context) {
	orgID, id, ok := h.ownedID(c)
	if !ok {
		return
	}

	integ, err := h.connects.Refresh(c.Request.Context(), orgID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, dto.ToIntegrationResponse(integ))
}

// Health returns connection and webhook delivery health for an integration
func (h *IntegrationHandler) Health(c *gin.Context) {
	orgID, id, ok := h.ownedID(c)
	if !ok {
		return
	}

	health, err := h.connects.Health(c.Request.Context(), orgID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, dto.IntegrationHealthResponse{
		IntegrationID:  health.IntegrationID.String(),
		Status:         health.Status.String(),
		SyncInProgress: health.SyncInProgress,
		LastSyncAt:     health.LastSyncAt,
		LastSyncResult: health.LastSyncResult,
		LastSyncError:  health.LastSyncError,
		MissingScopes:  health.MissingScopes,
		TokenExpiresAt: health.TokenExpiresAt,
		Webhooks:       health.Webhooks,
	})
}

// TriggerSync requests a sync run for an integration. Internal service
// callers bypass the ownership check.
func (h *IntegrationHandler) TriggerSync(c *gin.Context) {
	var idReq dto.IDRequest
	if err := c.ShouldBindUri(&idReq); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}
	id := uuid.MustParse(idReq.ID)

	orgID := uuid.Nil
	requestedBy := "internal"
	if !middleware.IsInternalCaller(c) {
		var err error
		orgID, err = getOrgID(c)
		if err != nil {
			h.Unauthorized(c, "Organization context required")
			return
		}
		requestedBy = "api"
		if userID, err := getUserID(c); err == nil {
			requestedBy = "user:" + userID.String()
		}
	}

	var req dto.SyncTriggerRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		middleware.HandleValidationError(c, err)
		return
	}
	kind := connector.SyncKind(req.Kind)
	if kind == "" {
		kind = connector.SyncKindIncremental
	}

	result, err := h.syncs.Trigger(c.Request.Context(), orgID, id, kind, requestedBy)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	resp := dto.SyncTriggerResponse{
		Started: result.Started,
		Reason:  result.Reason,
	}
	if result.Started {
		resp.Kind = string(result.Kind)
		windowStart, windowEnd := result.WindowStart, result.WindowEnd
		resp.WindowStart = &windowStart
		resp.WindowEnd = &windowEnd
		if result.Webhooks != nil {
			resp.Webhooks = &dto.WebhookSetupResponse{
				Completed:     result.Webhooks.Completed,
				Subscriptions: result.Webhooks.Subscriptions,
				Error:         result.Webhooks.Error,
			}
		}
		c.JSON(http.StatusAccepted, dto.NewSuccessResponse(resp))
		return
	}

	h.Success(c, resp)
}

// ownedID extracts the organization and integration IDs, responding with an
// error itself when either is missing or malformed.
func (h *IntegrationHandler) ownedID(c *gin.Context) (orgID, id uuid.UUID, ok bool) {
	orgID, err := getOrgID(c)
	if err != nil {
		h.Unauthorized(c, "Organization context required")
		return uuid.Nil, uuid.Nil, false
	}

	var idReq dto.IDRequest
	if err := c.ShouldBindUri(&idReq); err != nil {
		middleware.HandleValidationError(c, err)
		return uuid.Nil, uuid.Nil, false
	}

	return orgID, uuid.MustParse(idReq.ID), true
}

// callbackErrorCodes maps handshake failures to the short query-string codes
// the frontend shows to the user.
var callbackErrorCodes = []struct {
	err  error
	code string
}{
	{connector.ErrInvalidSignature, "invalid_signature"},
	{connector.ErrStateMalformed, "invalid_state"},
	{connector.ErrStateInvalidSignature, "invalid_state"},
	{connector.ErrStateExpired, "state_expired"},
	{connector.ErrStateReplayed, "state_replayed"},
	{connector.ErrShopMismatch, "shop_mismatch"},
	{connector.ErrMissingScopes, "missing_scopes"},
	{connector.ErrTokenExchangeFailed, "token_exchange_failed"},
	{connector.ErrIntegrationExists, "already_connected"},
	{connector.ErrInvalidShopDomain, "invalid_shop"},
}

func (h *IntegrationHandler) redirectWithError(c *gin.Context, err error) {
	code := "connection_failed"
	for _, m := range callbackErrorCodes {
		if errors.Is(err, m.err) {
			code = m.code
			break
		}
	}

	q := url.Values{}
	q.Set("error", code)
	q.Set("details", err.Error())
	c.Redirect(http.StatusFound, h.frontendURL+"/settings/integrations?"+q.Encode())
}
