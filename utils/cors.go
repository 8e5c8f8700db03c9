package utils

import (
	"net/netip"
	"net/url"
	"strings"
)

const (
	// AnyOrigin allows every origin.
	AnyOrigin = "*"
	// PrivateOrigins allows localhost, private and link-local addresses, .local names and
	// single-label LAN hostnames.
	PrivateOrigins = "private"
)

// CORSPolicy decides the Access-Control-Allow-Origin value for a request origin.
// An empty policy behaves like AnyOrigin.
type CORSPolicy struct {
	Origins []string
}

// AllowOrigin returns the header value to send for origin and whether CORS headers apply at all.
func (p CORSPolicy) AllowOrigin(origin string) (string, bool) {
	if len(p.Origins) == 0 {
		return AnyOrigin, true
	}
	for _, allowed := range p.Origins {
		allowed = strings.TrimSpace(allowed)
		switch {
		case allowed == AnyOrigin:
			return AnyOrigin, true
		case origin == "":
			continue
		case allowed == PrivateOrigins && IsPrivateOrigin(origin):
			return origin, true
		case strings.EqualFold(strings.TrimRight(allowed, "/"), origin):
			return origin, true
		}
	}
	return "", false
}

// IsPrivateOrigin reports whether an Origin header points at a local or LAN host.
func IsPrivateOrigin(origin string) bool {
	parsed, err := url.Parse(origin)
	if err != nil || parsed.Host == "" {
		return false
	}
	hostname := parsed.Hostname()
	if hostname == "localhost" || strings.HasSuffix(hostname, ".local") {
		return true
	}
	if addr, err := netip.ParseAddr(hostname); err == nil {
		return addr.IsLoopback() || addr.IsPrivate() || addr.IsLinkLocalUnicast()
	}
	return !strings.Contains(hostname, ".")
}
