// Package fingerprint provides the catalog of named browser impersonation
// targets and the rules for resolving a target name into a concrete,
// structured description of its TLS/HTTP2/HTTP3 wire behavior.
package fingerprint

import "fmt"

// HTTPVersion selects which protocol generation a target prefers.
type HTTPVersion string

const (
	HTTPVersion1   HTTPVersion = "v1"
	HTTPVersion2   HTTPVersion = "v2"
	HTTPVersion3   HTTPVersion = "v3"
	HTTPVersion3Only HTTPVersion = "v3only"
)

// PseudoHeaderOrder is a permutation of the four HTTP/2 (and HTTP/3)
// pseudo-headers: method, authority, scheme, path.
type PseudoHeaderOrder [4]byte

// Valid reports whether o contains exactly one of each of m, a, s, p.
func (o PseudoHeaderOrder) Valid() bool {
	var seen [256]bool
	for _, b := range o {
		switch b {
		case 'm', 'a', 's', 'p':
			if seen[b] {
				return false
			}
			seen[b] = true
		default:
			return false
		}
	}
	return seen['m'] && seen['a'] && seen['s'] && seen['p']
}

// Spec is a structured description of one impersonation target: everything
// needed to shape an outbound TLS ClientHello, HTTP/2 preface, HTTP/3
// preface and default header set so that it is byte-indistinguishable from
// the target browser. Field names follow spec.md §3.1.
type Spec struct {
	// Identity (display-only; never affects wire bytes).
	Client        string
	ClientVersion string
	OS            string
	OSVersion     string

	// TLS.
	TLSVersionMin          uint16
	TLSCiphers             []uint16 // ordered, insertion order preserved
	TLSSupportedGroups     []uint16 // ordered, insertion order preserved
	TLSSignatureHashes     []uint16
	TLSCertCompression     []string
	TLSALPN                []string
	TLSALPS                []string
	TLSGrease              bool
	TLSSessionTicket       bool
	TLSExtensionOrder      string // string of extension ids, e.g. "0-23-65281-...-21"
	TLSKeyShareLimit       int
	TLSDelegatedCreds      bool
	TLSRecordSizeLimit     *uint16
	TLSUseNewALPSCodepoint bool
	TLSSignedCertTimestamp bool
	TLSECH                *ECHConfig

	// HTTP/2.
	HTTP2Settings            string // "k:v;k:v;..." encoded
	HTTP2WindowUpdate        uint32
	HTTP2PseudoHeadersOrder  PseudoHeaderOrder
	HTTP2StreamWeight        *uint8
	HTTP2StreamExclusive     *bool
	HTTP2NoPriority          bool
	HTTP2PriorityExclusive   *bool

	// HTTP/3.
	HTTP3Settings           string
	HTTP3PseudoHeadersOrder PseudoHeaderOrder
	HTTP3TLSExtensionOrder  string
	QUICTransportParameters string

	// Defaults.
	Headers     OrderedHeaders
	HeaderLang  string
	HTTPVersion HTTPVersion
}

// ECHConfig carries Encrypted Client Hello parameters for targets that
// enable it. Present only on targets where the real browser does.
type ECHConfig struct {
	ConfigList []byte
}

// OrderedHeaders is an insertion-ordered, case-preserving set of default
// header lines, mirroring the role of OrderedHeader in
// firasghr-GoSessionEngine/client/ordered_header.go but scoped to a read-only
// fingerprint default rather than a mutable per-request builder.
type OrderedHeaders []HeaderLine

// HeaderLine is one name/value pair with its original casing.
type HeaderLine struct {
	Name  string
	Value string
}

// Clone returns a copy whose slice fields (ciphers, groups, signature
// hashes, cert compression, ALPN, ALPS, headers) are copied, so callers may
// modify those in the result of Resolve without changing the registry's
// entry. The pointer-typed optional fields (TLSRecordSizeLimit, TLSECH,
// HTTP2StreamWeight, HTTP2StreamExclusive, HTTP2PriorityExclusive) still
// point at the same values as in s.
func (s Spec) Clone() Spec {
	c := s
	c.TLSCiphers = append([]uint16(nil), s.TLSCiphers...)
	c.TLSSupportedGroups = append([]uint16(nil), s.TLSSupportedGroups...)
	c.TLSSignatureHashes = append([]uint16(nil), s.TLSSignatureHashes...)
	c.TLSCertCompression = append([]string(nil), s.TLSCertCompression...)
	c.TLSALPN = append([]string(nil), s.TLSALPN...)
	c.TLSALPS = append([]string(nil), s.TLSALPS...)
	c.Headers = append(OrderedHeaders(nil), s.Headers...)
	return c
}

// Validate checks the invariants from spec.md §3.1.
func (s Spec) Validate() error {
	if !s.HTTP2PseudoHeadersOrder.Valid() {
		return fmt.Errorf("fingerprint: http2 pseudo-header order %q is not a permutation of m,a,s,p", string(s.HTTP2PseudoHeadersOrder[:]))
	}
	if s.HTTPVersion == HTTPVersion3 || s.HTTPVersion == HTTPVersion3Only {
		if s.HTTP2Settings != "" && s.HTTPVersion == HTTPVersion3Only {
			return fmt.Errorf("fingerprint: v3only cannot carry http2 fields")
		}
	}
	if len(s.TLSExtensionOrder) > 0 {
		for _, id := range splitDash(s.TLSExtensionOrder) {
			if _, ok := knownExtensionIDs[id]; !ok {
				return fmt.Errorf("fingerprint: unknown tls extension id %q in extension order", id)
			}
		}
	}
	return nil
}

func splitDash(s string) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '-' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	out = append(out, s[start:])
	return out
}

// knownExtensionIDs is the set of TLS extension ids this registry knows how
// to place in tls_extension_order. It includes experimental codepoints
// (17513, 30032, 65037); GREASE values are not in the table.
var knownExtensionIDs = map[string]struct{}{
	"0": {}, "5": {}, "10": {}, "11": {}, "13": {}, "16": {}, "17": {},
	"18": {}, "21": {}, "23": {}, "27": {}, "28": {}, "34": {}, "35": {},
	"43": {}, "45": {}, "51": {}, "65037": {}, "65281": {}, "17513": {},
	"30032": {}, "22": {},
}
