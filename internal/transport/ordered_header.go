package transport

import (
	"net/http"

	"github.com/masqhttp/masq/fingerprint"
)

type headerEntry struct {
	key   string
	value string
}

// OrderedHeader is a case-preserving, insertion-ordered header set. Unlike
// http.Header (a map, hence unordered) OrderedHeader keeps entries in a
// slice, in insertion order and with their casing. On the wire only the
// casing survives, and only on HTTP/1.1 (see ApplyToRequest). Grounded on
// firasghr-GoSessionEngine/client/ordered_header.go, generalized from a
// single hardcoded Chrome-120 constructor into one driven by a
// fingerprint.Spec plus per-request Set/Add calls from the Option Compiler.
//
// Not safe for concurrent use; callers build one per outgoing request.
type OrderedHeader struct {
	entries []headerEntry
}

// FromFingerprint seeds an OrderedHeader with spec's default header lines,
// in the order the registry declared them.
func FromFingerprint(spec fingerprint.Spec) *OrderedHeader {
	h := &OrderedHeader{entries: make([]headerEntry, 0, len(spec.Headers))}
	for _, line := range spec.Headers {
		h.entries = append(h.entries, headerEntry{key: line.Name, value: line.Value})
	}
	return h
}

// Add appends key/value, preserving key's exact casing.
func (h *OrderedHeader) Add(key, value string) {
	h.entries = append(h.entries, headerEntry{key: key, value: value})
}

// Set replaces the first entry matching key case-insensitively and drops
// any further duplicates; if key is new it is appended.
func (h *OrderedHeader) Set(key, value string) {
	canon := http.CanonicalHeaderKey(key)
	replaced := false
	out := h.entries[:0]
	for _, e := range h.entries {
		if http.CanonicalHeaderKey(e.key) == canon {
			if !replaced {
				out = append(out, headerEntry{key: key, value: value})
				replaced = true
			}
			continue
		}
		out = append(out, e)
	}
	if !replaced {
		out = append(out, headerEntry{key: key, value: value})
	}
	h.entries = out
}

// Del removes every entry matching key case-insensitively.
func (h *OrderedHeader) Del(key string) {
	canon := http.CanonicalHeaderKey(key)
	out := h.entries[:0]
	for _, e := range h.entries {
		if http.CanonicalHeaderKey(e.key) != canon {
			out = append(out, e)
		}
	}
	h.entries = out
}

// Get returns the first value matching key case-insensitively.
func (h *OrderedHeader) Get(key string) string {
	canon := http.CanonicalHeaderKey(key)
	for _, e := range h.entries {
		if http.CanonicalHeaderKey(e.key) == canon {
			return e.value
		}
	}
	return ""
}

// Len returns the entry count, including duplicates.
func (h *OrderedHeader) Len() int { return len(h.entries) }

// Clone returns a copy safe to mutate independently.
func (h *OrderedHeader) Clone() *OrderedHeader {
	c := &OrderedHeader{entries: make([]headerEntry, len(h.entries))}
	copy(c.entries, h.entries)
	return c
}

// ApplyToRequest writes every entry into req.Header using the raw key
// bytes (bypassing http.CanonicalHeaderKey). Go's HTTP/1.1 writer emits
// those keys with their casing but in sorted key order; the HTTP/2 writer
// lowercases them and sends them in map order. Insertion order is not
// kept on either path.
func (h *OrderedHeader) ApplyToRequest(req *http.Request) {
	req.Header = make(http.Header, len(h.entries))
	for _, e := range h.entries {
		req.Header[e.key] = append(req.Header[e.key], e.value)
	}
}

// ToHTTPHeader converts to a standard http.Header, preserving key casing
// but not insertion order (maps have none).
func (h *OrderedHeader) ToHTTPHeader() http.Header {
	out := make(http.Header, len(h.entries))
	for _, e := range h.entries {
		out[e.key] = append(out[e.key], e.value)
	}
	return out
}

// Entries returns the ordered (key, value) pairs, for callers (such as the
// HTTP/3 writer) that need to walk them directly rather than through
// net/http's Header type.
func (h *OrderedHeader) Entries() []HeaderKV {
	out := make([]HeaderKV, len(h.entries))
	for i, e := range h.entries {
		out[i] = HeaderKV{Key: e.key, Value: e.value}
	}
	return out
}

// HeaderKV is one ordered header line.
type HeaderKV struct {
	Key   string
	Value string
}
