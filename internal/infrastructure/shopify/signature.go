package shopify

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"sort"
	"strings"

	"github.com/syncbridge/backend/internal/domain/connector"
)

// SignatureVerifier checks the authenticity of OAuth callbacks and webhook
// deliveries against the shared signing secrets.
type SignatureVerifier struct {
	callbackSecret []byte
	webhookSecret  []byte
}

// NewSignatureVerifier creates a verifier. The callback secret signs query
// canonicalization HMACs (the OAuth app secret); the webhook secret signs raw
// request bodies.
func NewSignatureVerifier(callbackSecret, webhookSecret string) *SignatureVerifier {
	return &SignatureVerifier{
		callbackSecret: []byte(callbackSecret),
		webhookSecret:  []byte(webhookSecret),
	}
}

// VerifyCallback verifies an HMAC computed over the canonicalized callback
// query parameters. A missing secret fails closed; it never means "skip
// verification". Parameter order does not affect the result; any added,
// removed or altered parameter does.
func (v *SignatureVerifier) VerifyCallback(params map[string]string, providedHex string) bool {
	if len(v.callbackSecret) == 0 || providedHex == "" {
		return false
	}

	expected := CanonicalSignature(params, v.callbackSecret)
	return hmac.Equal([]byte(expected), []byte(providedHex))
}

// VerifyWebhookBody verifies the base64 HMAC-SHA256 Shopify computes over a
// raw webhook body.
func (v *SignatureVerifier) VerifyWebhookBody(body []byte, providedBase64 string) bool {
	if len(v.webhookSecret) == 0 || providedBase64 == "" {
		return false
	}

	h := hmac.New(sha256.New, v.webhookSecret)
	h.Write(body)
	expected := base64.StdEncoding.EncodeToString(h.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(providedBase64))
}

// CanonicalSignature computes the hex HMAC-SHA256 over the canonical form of
// a parameter set: signature fields removed, remaining keys sorted
// lexicographically, pairs joined as "key=value" with "&".
func CanonicalSignature(params map[string]string, secret []byte) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		if k == "hmac" || k == "signature" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+params[k])
	}

	h := hmac.New(sha256.New, secret)
	h.Write([]byte(strings.Join(pairs, "&")))
	return hex.EncodeToString(h.Sum(nil))
}

// Ensure SignatureVerifier implements the domain port
var _ connector.CallbackVerifier = (*SignatureVerifier)(nil)
