package shopify

// ---------------------------------------------------------------------------
// Admin API payloads
// ---------------------------------------------------------------------------

// accessTokenRequest is the OAuth authorization code exchange body
type accessTokenRequest struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	Code         string `json:"code"`
}

// accessTokenResponse is the OAuth token exchange result
type accessTokenResponse struct {
	AccessToken string `json:"access_token"`
	Scope       string `json:"scope"`
}

// shopResponse wraps the shop resource
type shopResponse struct {
	Shop shopPayload `json:"shop"`
}

type shopPayload struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	Domain       string `json:"domain"`
	MyshopifyDom string `json:"myshopify_domain"`
	Currency     string `json:"currency"`
	IanaTimezone string `json:"iana_timezone"`
	PlanName     string `json:"plan_name"`
}

// accessScopesResponse lists the scopes granted to a credential
type accessScopesResponse struct {
	AccessScopes []accessScope `json:"access_scopes"`
}

type accessScope struct {
	Handle string `json:"handle"`
}

// webhookRequest creates a webhook subscription
type webhookRequest struct {
	Webhook webhookPayload `json:"webhook"`
}

// webhookResponse wraps a created webhook subscription
type webhookResponse struct {
	Webhook webhookPayload `json:"webhook"`
}

type webhookPayload struct {
	ID      int64  `json:"id,omitempty"`
	Topic   string `json:"topic"`
	Address string `json:"address"`
	Format  string `json:"format,omitempty"`
}

// ordersResponse is a single page of the orders listing
type ordersResponse struct {
	Orders []orderPayload `json:"orders"`
}

type orderPayload struct {
	ID              int64  `json:"id"`
	TotalPrice      string `json:"total_price"`
	Currency        string `json:"currency"`
	FinancialStatus string `json:"financial_status"`
	CreatedAt       string `json:"created_at"`
}

// apiErrorResponse is the platform's error envelope. Errors may be a string
// or a field map depending on the endpoint, so it is left untyped.
type apiErrorResponse struct {
	Errors interface{} `json:"errors"`
}
