// Package clickid builds the platform-specific fbc composite string
// from a raw click id and the requesting domain.
package clickid

import (
	"fmt"
	"strings"
	"time"
)

// defaultSubdomainIndex is used when the requesting domain is unknown.
const defaultSubdomainIndex = 1

// Format builds "fb.<subdomainIndex>.<creationTimeMillis>.<raw>".
// Returns "" when raw is empty.
//
// The creation time is epoch milliseconds. The platform silently drops
// click attribution when this segment is expressed in seconds.
func Format(raw, domain string) string {
	return FormatAt(raw, domain, time.Now())
}

// FormatAt is Format with an explicit creation time.
func FormatAt(raw, domain string, now time.Time) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}
	return fmt.Sprintf("fb.%d.%d.%s", subdomainIndex(domain), now.UnixMilli(), raw)
}

// subdomainIndex derives the fbc subdomain index from the domain:
// one dot-part -> 0, "example.com" -> 1, "www.example.com" -> 2.
func subdomainIndex(domain string) int {
	domain = strings.TrimSpace(domain)
	if domain == "" {
		return defaultSubdomainIndex
	}
	return len(strings.Split(domain, ".")) - 1
}
