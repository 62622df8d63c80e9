package shopify

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/syncbridge/backend/internal/domain/connector"
)

// stateFieldSeparator joins the signed state token fields. It cannot occur in
// a UUID, a platform code or a hex nonce.
const stateFieldSeparator = "|"

// stateFieldCount is the exact number of fields in a well-formed token
const stateFieldCount = 5

// StateTokenCodec issues and validates the signed handshake tokens that bind
// an OAuth authorization round-trip to the organization that started it.
// Tokens are ephemeral and never persisted.
type StateTokenCodec struct {
	secret []byte
	ttl    time.Duration

	// now is swappable for expiry tests
	now func() time.Time
}

// NewStateTokenCodec creates a codec signing with secret and accepting
// tokens younger than ttl.
func NewStateTokenCodec(secret string, ttl time.Duration) *StateTokenCodec {
	return &StateTokenCodec{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Encode creates a signed, url-safe state token carrying the organization,
// platform and a single-use nonce.
func (c *StateTokenCodec) Encode(organizationID uuid.UUID, platform connector.Platform, nonce string) (string, error) {
	if organizationID == uuid.Nil {
		return "", connector.ErrInvalidOrganizationID
	}
	if !platform.IsValid() {
		return "", connector.ErrInvalidPlatform
	}
	if nonce == "" || strings.Contains(nonce, stateFieldSeparator) {
		return "", connector.ErrStateMalformed
	}

	issuedAtMs := c.now().UnixMilli()
	payload := strings.Join([]string{
		organizationID.String(),
		platform.String(),
		strconv.FormatInt(issuedAtMs, 10),
		nonce,
	}, stateFieldSeparator)

	signature := c.sign(payload)
	token := payload + stateFieldSeparator + signature
	return base64.RawURLEncoding.EncodeToString([]byte(token)), nil
}

// Decode validates a state token's structure, signature and age, returning
// the verified claims. The caller must additionally assert that the shop
// echoed back by the platform matches the claims; that mismatch is
// ErrShopMismatch, not a signature failure.
func (c *StateTokenCodec) Decode(token string) (*connector.StateClaims, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", connector.ErrStateMalformed, err)
	}

	fields := strings.Split(string(raw), stateFieldSeparator)
	if len(fields) != stateFieldCount {
		return nil, connector.ErrStateMalformed
	}

	payload := strings.Join(fields[:4], stateFieldSeparator)
	expected := c.sign(payload)
	// Constant-time comparison; never short-circuit on the first differing byte.
	if !hmac.Equal([]byte(expected), []byte(fields[4])) {
		return nil, connector.ErrStateInvalidSignature
	}

	organizationID, err := uuid.Parse(fields[0])
	if err != nil {
		return nil, connector.ErrStateMalformed
	}
	platform := connector.Platform(fields[1])
	if !platform.IsValid() {
		return nil, connector.ErrStateMalformed
	}
	issuedAtMs, err := strconv.ParseInt(fields[2], 10, 64)
	if err != nil {
		return nil, connector.ErrStateMalformed
	}

	issuedAt := time.UnixMilli(issuedAtMs)
	if c.now().Sub(issuedAt) > c.ttl {
		return nil, connector.ErrStateExpired
	}

	return &connector.StateClaims{
		OrganizationID: organizationID,
		Platform:       platform,
		Nonce:          fields[3],
		IssuedAt:       issuedAt,
	}, nil
}

// sign computes the hex-encoded HMAC-SHA256 over the payload
func (c *StateTokenCodec) sign(payload string) string {
	h := hmac.New(sha256.New, c.secret)
	h.Write([]byte(payload))
	return hex.EncodeToString(h.Sum(nil))
}

// Ensure StateTokenCodec implements the domain port
var _ connector.StateTokenCodec = (*StateTokenCodec)(nil)
