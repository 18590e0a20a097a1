package cookiejar

import (
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"
)

// ConflictError is returned by Jar.Get when two or more stored morsels
// share name but disagree on value, mirroring curl_cffi's CookieConflict
// (requests/errors.py) and the semantics exercised by
// tests/unittest/test_cookies.py: same name + same value across domains is
// NOT a conflict, only a value mismatch is.
type ConflictError struct {
	Name   string
	Values []string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("cookiejar: cookie %q has conflicting values across domains: %v", e.Name, e.Values)
}

// key identifies a stored morsel uniquely, per spec.md §3.1.
type key struct {
	domain string
	path   string
	name   string
}

// Jar is the Cookie Store: an RFC 6265 domain/path/secure/SameSite/expiry
// aware cookie collection keyed by (domain, path, name). Safe for
// concurrent use.
type Jar struct {
	mu      sync.RWMutex
	morsels map[key]Morsel
	now     func() time.Time
}

// New returns an empty Jar.
func New() *Jar {
	return &Jar{morsels: make(map[key]Morsel), now: time.Now}
}

// Set stores or replaces m, keyed by (m.Domain, m.Path, m.Name).
func (j *Jar) Set(m Morsel) {
	if m.Domain == "" {
		m.Domain = ""
	}
	m.Domain = strings.ToLower(m.Domain)
	if m.Path == "" {
		m.Path = "/"
	}
	if m.Created.IsZero() {
		m.Created = j.now()
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	j.morsels[key{domain: m.Domain, path: m.Path, name: m.Name}] = m
}

// SetRaw is a convenience wrapper for callers (tests, curl_options escape
// hatch) that only care about name/value/domain and accept path defaults.
func (j *Jar) SetRaw(name, value, domain string) {
	j.Set(Morsel{Name: name, Value: value, Domain: domain, Path: "/"})
}

// Get returns the single value stored for name across every domain/path,
// following curl_cffi's Cookies.get: if multiple stored morsels share name
// but disagree on value, Get returns *ConflictError; if they agree, Get
// returns that shared value.
func (j *Jar) Get(name string) (string, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	var value string
	found := false
	var conflicting []string
	for k, m := range j.morsels {
		if k.name != name || m.Expired(j.now()) {
			continue
		}
		if !found {
			value = m.Value
			found = true
			continue
		}
		if m.Value != value {
			conflicting = append(conflicting, value, m.Value)
		}
	}
	if len(conflicting) > 0 {
		return "", &ConflictError{Name: name, Values: dedupe(conflicting)}
	}
	if !found {
		return "", nil
	}
	return value, nil
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := in[:0]
	for _, v := range in {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

// CookiesFor returns every non-expired morsel applicable to an outbound
// request for method against reqURL, respecting domain match, path
// match, Secure (HTTPS-only), the SameSite attach-time rules of spec.md
// §4.D, and ordered by RFC 6265 §5.4 (longest path first, then oldest
// Created first) — the order curl_cffi's get_cookies_for_curl builds its
// Cookie header in.
//
// siteURL is the URL that began the current request chain: nil when
// reqURL is itself the start (a caller's direct call, not a followed
// redirect). A non-nil siteURL whose host isn't same-site with reqURL's
// marks this as a cross-site request, the condition Strict/Lax morsels
// are filtered against.
func (j *Jar) CookiesFor(reqURL *url.URL, method string, siteURL *url.URL) []Morsel {
	j.mu.RLock()
	defer j.mu.RUnlock()

	host := reqURL.Hostname()
	path := reqURL.Path
	if path == "" {
		path = "/"
	}
	secure := reqURL.Scheme == "https"
	crossSite := siteURL != nil && !sameSite(siteURL.Hostname(), host)
	now := j.now()

	var out []Morsel
	for k, m := range j.morsels {
		if m.Expired(now) {
			continue
		}
		if !domainMatch(k.domain, host) {
			continue
		}
		if !pathMatch(k.path, path) {
			continue
		}
		if m.Secure && !secure {
			continue
		}
		if !attachable(m.SameSite, m.Secure, method, crossSite) {
			continue
		}
		out = append(out, m)
	}

	sort.SliceStable(out, func(i, k2 int) bool {
		if len(out[i].Path) != len(out[k2].Path) {
			return len(out[i].Path) > len(out[k2].Path)
		}
		return out[i].Created.Before(out[k2].Created)
	})
	return out
}

// attachable applies spec.md §4.D's SameSite rules at attach time: Strict
// morsels never attach cross-site; Lax morsels attach cross-site only for
// a top-level-navigation GET/HEAD (curl_cffi has no notion of subresource
// requests, so every request is treated as top-level here); None morsels
// require the morsel's own Secure flag regardless of scheme. A morsel
// with no SameSite attribute (SameSiteDefault, the server never sent one)
// is unrestricted, matching spec.md §4.D's three named values.
func attachable(ss SameSite, secureFlag bool, method string, crossSite bool) bool {
	switch ss {
	case SameSiteStrict:
		return !crossSite
	case SameSiteLax:
		if !crossSite {
			return true
		}
		return method == "" || method == "GET" || method == "HEAD"
	case SameSiteNone:
		return secureFlag
	default:
		return true
	}
}

// SetFromResponse parses every Set-Cookie header line in header (as seen
// on a response from reqURL) and stores the resulting morsels, applying
// RFC 6265 §5.1.4's default-path rule when the server omitted Path and
// rejecting (silently dropping) cookies whose Domain attribute doesn't
// domain-match reqURL's host (cross-domain cookie injection).
func (j *Jar) SetFromResponse(reqURL *url.URL, header http.Header) error {
	lines := header.Values("Set-Cookie")
	if len(lines) == 0 {
		return nil
	}
	host := strings.ToLower(reqURL.Hostname())

	for _, line := range lines {
		c, err := http.ParseSetCookie(line)
		if err != nil {
			continue // malformed Set-Cookie lines are dropped, not fatal
		}

		domain := strings.ToLower(c.Domain)
		if domain == "" {
			domain = host
		} else if !domainMatch(domain, host) && domain != host {
			continue
		}

		path := c.Path
		if path == "" {
			path = defaultPath(reqURL.Path)
		}

		m := Morsel{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   domain,
			Path:     path,
			Secure:   c.Secure,
			HTTPOnly: c.HttpOnly,
			SameSite: fromGoSameSite(c.SameSite),
		}
		if c.MaxAge < 0 || (c.MaxAge == 0 && !c.Expires.IsZero() && c.Expires.Before(j.now())) {
			j.delete(domain, path, c.Name)
			continue
		}
		if c.MaxAge > 0 {
			m.Expires = j.now().Add(time.Duration(c.MaxAge) * time.Second)
		} else if !c.Expires.IsZero() {
			m.Expires = c.Expires
		}
		j.Set(m)
	}
	return nil
}

func (j *Jar) delete(domain, path, name string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	delete(j.morsels, key{domain: domain, path: path, name: name})
}

// Clear removes every stored morsel, mirroring curl_cffi's unconditional
// COOKIEFILE/COOKIELIST "ALL" reset in session.py before per-request
// cookies are reapplied.
func (j *Jar) Clear() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.morsels = make(map[key]Morsel)
}

// All returns every stored, non-expired morsel, for diagnostics and for
// Session.Cookies().
func (j *Jar) All() []Morsel {
	j.mu.RLock()
	defer j.mu.RUnlock()
	now := j.now()
	out := make([]Morsel, 0, len(j.morsels))
	for _, m := range j.morsels {
		if !m.Expired(now) {
			out = append(out, m)
		}
	}
	return out
}
