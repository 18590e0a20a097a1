package fingerprint

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
)

// Overrides carries the per-request fingerprint adjustments spec.md §4.B
// allows on top of a resolved target: an explicit JA3 string, an Akamai
// HTTP/2 fingerprint string, and a free-form "extra" patch applied last.
type Overrides struct {
	JA3    string
	Akamai string
	Extra  *Spec
}

// Apply resolves base against o, warning (via logger, which may be nil) on
// any field collisions between base and an explicit override, then returns
// the resulting Spec. base is not mutated.
func Apply(base Spec, o Overrides, logger *log.Logger) (Spec, error) {
	out := base.Clone()

	if o.JA3 != "" {
		ja3, err := parseJA3(o.JA3)
		if err != nil {
			return Spec{}, fmt.Errorf("fingerprint: parse ja3 override: %w", err)
		}
		warnConflict(logger, "ja3", "tls_version_min", out.TLSVersionMin != 0 && out.TLSVersionMin != ja3.TLSVersionMin)
		warnConflict(logger, "ja3", "tls_ciphers", len(out.TLSCiphers) > 0)
		out.TLSVersionMin = ja3.TLSVersionMin
		out.TLSCiphers = ja3.TLSCiphers
		out.TLSSupportedGroups = ja3.TLSSupportedGroups
		out.TLSCertCompression = ja3.TLSCertCompression
		out.TLSExtensionOrder = ja3.TLSExtensionOrder
	}

	if o.Akamai != "" {
		ak, err := parseAkamai(o.Akamai)
		if err != nil {
			return Spec{}, fmt.Errorf("fingerprint: parse akamai override: %w", err)
		}
		warnConflict(logger, "akamai", "http2_settings", out.HTTP2Settings != "" && out.HTTP2Settings != ak.HTTP2Settings)
		out.HTTP2Settings = ak.HTTP2Settings
		out.HTTP2WindowUpdate = ak.HTTP2WindowUpdate
		out.HTTP2PseudoHeadersOrder = ak.HTTP2PseudoHeadersOrder
		out.HTTP2NoPriority = ak.HTTP2NoPriority
	}

	if o.Extra != nil {
		out = mergeSpec(out, *o.Extra)
	}

	if err := out.Validate(); err != nil {
		return Spec{}, err
	}
	return out, nil
}

func warnConflict(logger *log.Logger, source, field string, collides bool) {
	if !collides || logger == nil {
		return
	}
	logger.Warn("fingerprint override replaces existing field", "source", source, "field", field)
}

// parseJA3 parses the canonical 5-field JA3 string:
// "tls_version,ciphers,extensions,curves,curve_formats" — each field
// (after the first) a "-"-separated list of decimal values. See
// spec.md §6.2 and the glossary entry for Ja3.
func parseJA3(s string) (Spec, error) {
	fields := strings.Split(s, ",")
	if len(fields) != 5 {
		return Spec{}, fmt.Errorf("ja3 string must have 5 comma-separated fields, got %d", len(fields))
	}

	tlsVersion, err := strconv.ParseUint(fields[0], 10, 16)
	if err != nil {
		return Spec{}, fmt.Errorf("invalid tls version field: %w", err)
	}
	ciphers, err := parseUint16List(fields[1])
	if err != nil {
		return Spec{}, fmt.Errorf("invalid ciphers field: %w", err)
	}
	extensionOrder := strings.ReplaceAll(strings.TrimSpace(fields[2]), "-", "-")
	curves, err := parseUint16List(fields[3])
	if err != nil {
		return Spec{}, fmt.Errorf("invalid curves field: %w", err)
	}
	formats, err := parseDashList(fields[4])
	if err != nil {
		return Spec{}, fmt.Errorf("invalid curve formats field: %w", err)
	}

	return Spec{
		TLSVersionMin:      uint16(tlsVersion),
		TLSCiphers:         ciphers,
		TLSSupportedGroups: curves,
		TLSCertCompression: formats,
		TLSExtensionOrder:  extensionOrder,
	}, nil
}

// parseAkamai parses the canonical Akamai HTTP/2 fingerprint string:
// "settings|window_update|priority|pseudo_header_order". settings is a
// ";"-separated list of "id:value" pairs, priority is either "0" (no
// PRIORITY frames) or a stream-dependency tuple, pseudo_header_order is
// the 4-letter permutation of m/a/s/p. See spec.md §6.2 and the glossary
// entry for Akamai fingerprint.
func parseAkamai(s string) (Spec, error) {
	parts := strings.Split(s, "|")
	if len(parts) != 4 {
		return Spec{}, fmt.Errorf("akamai string must have 4 pipe-separated fields, got %d", len(parts))
	}

	settings := parts[0]
	windowUpdate, err := strconv.ParseUint(parts[1], 10, 32)
	if err != nil {
		return Spec{}, fmt.Errorf("invalid window_update field: %w", err)
	}
	noPriority := parts[2] == "0"

	order := parts[3]
	if len(order) != 4 {
		return Spec{}, fmt.Errorf("pseudo_header_order must be exactly 4 characters, got %q", order)
	}
	var pseudo PseudoHeaderOrder
	copy(pseudo[:], order)
	if !pseudo.Valid() {
		return Spec{}, fmt.Errorf("pseudo_header_order %q is not a permutation of m,a,s,p", order)
	}

	return Spec{
		HTTP2Settings:           settings,
		HTTP2WindowUpdate:       uint32(windowUpdate),
		HTTP2NoPriority:         noPriority,
		HTTP2PseudoHeadersOrder: pseudo,
	}, nil
}

func parseUint16List(s string) ([]uint16, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, "-")
	out := make([]uint16, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseUint(p, 10, 16)
		if err != nil {
			return nil, err
		}
		out = append(out, uint16(v))
	}
	return out, nil
}

func parseDashList(s string) ([]string, error) {
	if s == "" {
		return nil, nil
	}
	return strings.Split(s, "-"), nil
}

// mergeSpec overlays any non-zero field of patch onto base, last-write
// wins, used for the free-form "extra" override and for curl_options-style
// escape-hatch patches applied after impersonation.
func mergeSpec(base, patch Spec) Spec {
	out := base
	if patch.Client != "" {
		out.Client = patch.Client
	}
	if patch.ClientVersion != "" {
		out.ClientVersion = patch.ClientVersion
	}
	if patch.OS != "" {
		out.OS = patch.OS
	}
	if patch.OSVersion != "" {
		out.OSVersion = patch.OSVersion
	}
	if patch.TLSVersionMin != 0 {
		out.TLSVersionMin = patch.TLSVersionMin
	}
	if len(patch.TLSCiphers) > 0 {
		out.TLSCiphers = patch.TLSCiphers
	}
	if len(patch.TLSSupportedGroups) > 0 {
		out.TLSSupportedGroups = patch.TLSSupportedGroups
	}
	if len(patch.TLSSignatureHashes) > 0 {
		out.TLSSignatureHashes = patch.TLSSignatureHashes
	}
	if len(patch.TLSCertCompression) > 0 {
		out.TLSCertCompression = patch.TLSCertCompression
	}
	if len(patch.TLSALPN) > 0 {
		out.TLSALPN = patch.TLSALPN
	}
	if len(patch.TLSALPS) > 0 {
		out.TLSALPS = patch.TLSALPS
	}
	if patch.TLSExtensionOrder != "" {
		out.TLSExtensionOrder = patch.TLSExtensionOrder
	}
	if patch.TLSKeyShareLimit != 0 {
		out.TLSKeyShareLimit = patch.TLSKeyShareLimit
	}
	if patch.HTTP2Settings != "" {
		out.HTTP2Settings = patch.HTTP2Settings
	}
	if patch.HTTP2WindowUpdate != 0 {
		out.HTTP2WindowUpdate = patch.HTTP2WindowUpdate
	}
	if patch.HTTP2PseudoHeadersOrder != (PseudoHeaderOrder{}) {
		out.HTTP2PseudoHeadersOrder = patch.HTTP2PseudoHeadersOrder
	}
	if patch.HTTP3Settings != "" {
		out.HTTP3Settings = patch.HTTP3Settings
	}
	if patch.QUICTransportParameters != "" {
		out.QUICTransportParameters = patch.QUICTransportParameters
	}
	if len(patch.Headers) > 0 {
		out.Headers = patch.Headers
	}
	if patch.HTTPVersion != "" {
		out.HTTPVersion = patch.HTTPVersion
	}
	return out
}
