package connector

import (
	"time"

	"github.com/google/uuid"

	"github.com/syncbridge/backend/internal/domain/shared"
)

// ---------------------------------------------------------------------------
// Platform
// ---------------------------------------------------------------------------

// Platform identifies the external commerce platform an integration targets.
type Platform string

const (
	// PlatformShopify represents the Shopify commerce platform
	PlatformShopify Platform = "SHOPIFY"
)

// IsValid returns true if the platform is valid
func (p Platform) IsValid() bool {
	return p == PlatformShopify
}

// String returns the string representation of Platform
func (p Platform) String() string {
	return string(p)
}

// ---------------------------------------------------------------------------
// Status
// ---------------------------------------------------------------------------

// Status represents the lifecycle status of an integration
type Status string

const (
	// StatusPending indicates an OAuth flow awaiting callback completion
	StatusPending Status = "pending"
	// StatusActive indicates a healthy, connected integration
	StatusActive Status = "active"
	// StatusInactive indicates an integration paused by the user
	StatusInactive Status = "inactive"
	// StatusError indicates a terminal connection failure
	StatusError Status = "error"
)

// IsValid returns true if the status is valid
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusActive, StatusInactive, StatusError:
		return true
	default:
		return false
	}
}

// String returns the string representation of Status
func (s Status) String() string {
	return string(s)
}

// CanToggle returns true if the status participates in the active/inactive
// toggle. Pending and error integrations are not toggleable.
func (s Status) CanToggle() bool {
	return s == StatusActive || s == StatusInactive
}

// ---------------------------------------------------------------------------
// SyncKind
// ---------------------------------------------------------------------------

// SyncKind distinguishes an incremental sync from a full historical sync
type SyncKind string

const (
	// SyncKindIncremental covers the recent lookback window
	SyncKindIncremental SyncKind = "incremental"
	// SyncKindFull covers the maximum historical lookback window
	SyncKindFull SyncKind = "full"
)

// IsValid returns true if the sync kind is valid
func (k SyncKind) IsValid() bool {
	return k == SyncKindIncremental || k == SyncKindFull
}

// ---------------------------------------------------------------------------
// Sync outcome value objects
// ---------------------------------------------------------------------------

// SyncResult records the outcome of a completed data sync
type SyncResult struct {
	// Kind is the sync kind that produced this result
	Kind SyncKind `json:"kind"`
	// OrdersSynced is the number of orders pulled in this run
	OrdersSynced int `json:"orders_synced"`
	// WindowStart is the start of the synced time range
	WindowStart time.Time `json:"window_start"`
	// WindowEnd is the end of the synced time range
	WindowEnd time.Time `json:"window_end"`
	// CompletedAt is when the sync finished
	CompletedAt time.Time `json:"completed_at"`
}

// SyncError records the last sync failure for diagnostics
type SyncError struct {
	// Code is a machine-readable failure classification
	Code string `json:"code"`
	// Message is the human-readable failure description
	Message string `json:"message"`
	// OccurredAt is when the failure was recorded
	OccurredAt time.Time `json:"occurred_at"`
}

// ---------------------------------------------------------------------------
// Integration aggregate
// ---------------------------------------------------------------------------

// Integration is the aggregate root for a connection between an organization
// and an external platform account.
//
// At most one non-deleted Integration may exist per
// (OrganizationID, Platform, PlatformAccountID) triple; the application layer
// enforces this at creation time.
type Integration struct {
	shared.BaseAggregateRoot

	OrganizationID    uuid.UUID
	Platform          Platform
	PlatformAccountID string
	AccountName       string

	AccessToken    string
	RefreshToken   string
	TokenExpiresAt *time.Time

	Status Status

	// GrantedScopes are the permission scopes the platform reported for the
	// stored credential. MissingScopes is the shortfall against the required
	// set; on the OAuth path a non-empty shortfall is a hard failure, on the
	// private-token path it is recorded here as a warning only.
	GrantedScopes []string
	MissingScopes []string

	// Advisory sync lock, embedded in the aggregate and persisted before any
	// sync work begins. A held lock older than the staleness threshold is
	// treated as abandoned.
	SyncInProgress bool
	SyncStartedAt  *time.Time
	LastSyncBy     string

	LastSyncAt     *time.Time
	LastSyncResult *SyncResult
	LastSyncError  *SyncError
}

// NewPendingIntegration creates an integration awaiting OAuth callback
// completion.
func NewPendingIntegration(organizationID uuid.UUID, platform Platform, platformAccountID string) (*Integration, error) {
	if organizationID == uuid.Nil {
		return nil, ErrInvalidOrganizationID
	}
	if !platform.IsValid() {
		return nil, ErrInvalidPlatform
	}
	if platformAccountID == "" {
		return nil, ErrInvalidAccountID
	}
	return &Integration{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		OrganizationID:    organizationID,
		Platform:          platform,
		PlatformAccountID: platformAccountID,
		Status:            StatusPending,
	}, nil
}

// NewActiveIntegration creates an integration directly in active status.
// Used by the private-token flow after the credential has been live-tested.
func NewActiveIntegration(organizationID uuid.UUID, platform Platform, platformAccountID, accountName, accessToken string) (*Integration, error) {
	integ, err := NewPendingIntegration(organizationID, platform, platformAccountID)
	if err != nil {
		return nil, err
	}
	if accessToken == "" {
		return nil, ErrInvalidCredential
	}
	integ.AccountName = accountName
	integ.AccessToken = accessToken
	integ.Status = StatusActive
	return integ, nil
}

// Activate transitions a pending integration to active with the exchanged
// credential and account details.
func (i *Integration) Activate(accessToken string, expiresAt *time.Time, accountName string, grantedScopes []string) error {
	if i.Status != StatusPending {
		return ErrInvalidStatusTransition
	}
	if accessToken == "" {
		return ErrInvalidCredential
	}
	i.AccessToken = accessToken
	i.TokenExpiresAt = expiresAt
	i.AccountName = accountName
	i.GrantedScopes = grantedScopes
	i.MissingScopes = nil
	i.Status = StatusActive
	i.Touch()
	return nil
}

// Reauthorize returns a failed or paused integration to pending so a fresh
// consent round can run against it. A live record, whether active or already
// mid-handshake, conflicts instead.
func (i *Integration) Reauthorize() error {
	if i.Status == StatusActive || i.Status == StatusPending {
		return ErrIntegrationExists
	}
	i.Status = StatusPending
	i.MissingScopes = nil
	i.Touch()
	return nil
}

// MarkError records a terminal connection failure. Missing scopes, when the
// failure is a scope shortfall, are retained for operator diagnostics.
func (i *Integration) MarkError(code, message string, missingScopes []string) {
	i.Status = StatusError
	i.MissingScopes = missingScopes
	i.LastSyncError = &SyncError{
		Code:       code,
		Message:    message,
		OccurredAt: time.Now(),
	}
	i.Touch()
}

// Toggle flips an integration between active and inactive. Pending and error
// integrations are left untouched.
func (i *Integration) Toggle() error {
	if !i.Status.CanToggle() {
		return ErrInvalidStatusTransition
	}
	if i.Status == StatusActive {
		i.Status = StatusInactive
	} else {
		i.Status = StatusActive
	}
	i.Touch()
	return nil
}

// RefreshCredential replaces the stored credential after a successful token
// refresh. The integration stays active.
func (i *Integration) RefreshCredential(accessToken, refreshToken string, expiresAt *time.Time) error {
	if accessToken == "" {
		return ErrInvalidCredential
	}
	i.AccessToken = accessToken
	if refreshToken != "" {
		i.RefreshToken = refreshToken
	}
	i.TokenExpiresAt = expiresAt
	i.Status = StatusActive
	i.Touch()
	return nil
}

// SyncLockHeld reports whether the advisory sync lock is currently held and
// has not yet exceeded the staleness threshold.
func (i *Integration) SyncLockHeld(now time.Time, staleAfter time.Duration) bool {
	if !i.SyncInProgress {
		return false
	}
	if i.SyncStartedAt == nil {
		// Lock flag without a start timestamp is treated as abandoned.
		return false
	}
	return now.Sub(*i.SyncStartedAt) < staleAfter
}

// SyncWindow computes the lookback window for a sync run. A full sync, or any
// sync on an integration that has never synced, covers the initial lookback;
// otherwise the incremental lookback applies.
func (i *Integration) SyncWindow(kind SyncKind, now time.Time, incremental, initial time.Duration) (start, end time.Time) {
	if kind == SyncKindFull || i.LastSyncAt == nil {
		return now.Add(-initial), now
	}
	return now.Add(-incremental), now
}
