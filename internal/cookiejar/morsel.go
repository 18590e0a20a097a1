// Package cookiejar implements the Cookie Store (Component D): RFC 6265
// domain/path/secure/SameSite matching and expiry, keyed by
// (domain, path, name) per spec.md §3.1/§4.D. Grounded structurally on
// net/http/cookiejar's domain-matching approach but implemented from
// scratch since net/http/cookiejar doesn't expose per-morsel SameSite/
// secure control at the granularity the Option Compiler needs (it only
// reads/writes whole http.Cookie slices per URL).
package cookiejar

import (
	"net/http"
	"strings"
	"time"
)

// SameSite mirrors http.SameSite's values as an independent type so this
// package has no hard dependency on net/http beyond Set-Cookie parsing.
type SameSite int

const (
	SameSiteDefault SameSite = iota
	SameSiteNone
	SameSiteLax
	SameSiteStrict
)

// Morsel is one stored cookie: curl_cffi's CurlMorsel translated into a Go
// struct, uniquely identified by (Domain, Path, Name) per spec.md §3.1.
type Morsel struct {
	Name   string
	Value  string
	Domain string // always lowercase, leading dot means "domain and subdomains"
	Path   string
	Secure bool
	HTTPOnly bool
	SameSite SameSite
	Expires  time.Time // zero value means session cookie (no expiry)
	Created  time.Time
}

// HasExpiry reports whether the morsel carries a non-session expiry.
func (m Morsel) HasExpiry() bool { return !m.Expires.IsZero() }

// Expired reports whether m has passed its expiry as of now.
func (m Morsel) Expired(now time.Time) bool {
	return m.HasExpiry() && now.After(m.Expires)
}

// domainMatch reports whether cookieDomain (as stored, possibly with a
// leading dot for a domain-and-subdomains cookie) matches requestHost, per
// RFC 6265 §5.1.3.
func domainMatch(cookieDomain, requestHost string) bool {
	cookieDomain = strings.ToLower(cookieDomain)
	requestHost = strings.ToLower(requestHost)

	if strings.HasPrefix(cookieDomain, ".") {
		bare := cookieDomain[1:]
		if requestHost == bare {
			return true
		}
		return strings.HasSuffix(requestHost, cookieDomain)
	}
	return cookieDomain == requestHost
}

// pathMatch reports whether cookiePath matches requestPath per RFC 6265
// §5.1.4: exact match, or cookiePath is a URI prefix ending in "/", or
// requestPath extends cookiePath with an immediate "/".
func pathMatch(cookiePath, requestPath string) bool {
	if cookiePath == requestPath {
		return true
	}
	if !strings.HasPrefix(requestPath, cookiePath) {
		return false
	}
	if strings.HasSuffix(cookiePath, "/") {
		return true
	}
	return len(requestPath) > len(cookiePath) && requestPath[len(cookiePath)] == '/'
}

// sameSite reports whether a and b belong to the same "site" for
// SameSite purposes: a coarse stand-in for RFC 6265bis's public-suffix-
// list-based registrable domain, since this package carries no PSL. Two
// hosts under the same last-two-labels ("example.com") are treated as
// same-site; this misclassifies multi-label public suffixes (e.g.
// "co.uk") as a single site, a known approximation.
func sameSite(a, b string) bool {
	return registrableDomain(a) == registrableDomain(b)
}

func registrableDomain(host string) string {
	host = strings.ToLower(host)
	labels := strings.Split(host, ".")
	if len(labels) <= 2 {
		return host
	}
	return strings.Join(labels[len(labels)-2:], ".")
}

// defaultPath computes RFC 6265 §5.1.4's default-path for a request URI
// path when the server didn't send a Path attribute.
func defaultPath(requestPath string) string {
	if requestPath == "" || requestPath[0] != '/' {
		return "/"
	}
	idx := strings.LastIndex(requestPath, "/")
	if idx <= 0 {
		return "/"
	}
	return requestPath[:idx]
}

func toGoSameSite(s SameSite) http.SameSite {
	switch s {
	case SameSiteNone:
		return http.SameSiteNoneMode
	case SameSiteLax:
		return http.SameSiteLaxMode
	case SameSiteStrict:
		return http.SameSiteStrictMode
	default:
		return http.SameSiteDefaultMode
	}
}

func fromGoSameSite(s http.SameSite) SameSite {
	switch s {
	case http.SameSiteNoneMode:
		return SameSiteNone
	case http.SameSiteLaxMode:
		return SameSiteLax
	case http.SameSiteStrictMode:
		return SameSiteStrict
	default:
		return SameSiteDefault
	}
}
