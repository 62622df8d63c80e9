package shopify

import (
	"strings"

	"github.com/syncbridge/backend/internal/domain/connector"
)

const (
	shopDomainSuffix = ".myshopify.com"
	shopNameMin      = 3
	shopNameMax      = 60
)

// NormalizeShopDomain reduces any user-supplied shop reference to the bare
// store name. Accepted inputs include full URLs, bare hostnames with or
// without the platform suffix, and a leading www prefix. The result is the
// lowercase store name with no suffix.
func NormalizeShopDomain(raw string) (string, error) {
	s := strings.TrimSpace(strings.ToLower(raw))
	if s == "" {
		return "", connector.ErrInvalidShopDomain
	}

	for _, prefix := range []string{"https://", "http://"} {
		s = strings.TrimPrefix(s, prefix)
	}
	s = strings.TrimPrefix(s, "www.")

	// Drop any path, query or fragment after the host.
	for _, sep := range []string{"/", "?", "#"} {
		if idx := strings.Index(s, sep); idx >= 0 {
			s = s[:idx]
		}
	}

	s = strings.TrimSuffix(s, shopDomainSuffix)

	if len(s) < shopNameMin || len(s) > shopNameMax {
		return "", connector.ErrInvalidShopDomain
	}
	if !isAlnum(s[0]) || !isAlnum(s[len(s)-1]) {
		return "", connector.ErrInvalidShopDomain
	}
	for i := 0; i < len(s); i++ {
		if !isAlnum(s[i]) && s[i] != '-' {
			return "", connector.ErrInvalidShopDomain
		}
	}
	return s, nil
}

// ShopHost returns the full API hostname for a normalized store name
func ShopHost(shopName string) string {
	return shopName + shopDomainSuffix
}

func isAlnum(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9')
}
