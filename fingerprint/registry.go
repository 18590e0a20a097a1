package fingerprint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// EnvOverrideDir is the environment variable that, when set, points at a
// directory containing a registry.json file of additional or replacement
// targets. Mirrors curl_cffi's on-disk fingerprint override file (see
// SPEC_FULL.md §1).
const EnvOverrideDir = "MASQ_FINGERPRINT_DIR"

const overrideFileName = "registry.json"

// UnknownImpersonationError is returned by Resolve when name does not match
// any known or stable "latest" target.
type UnknownImpersonationError struct {
	Name string
}

func (e *UnknownImpersonationError) Error() string {
	return fmt.Sprintf("fingerprint: unknown impersonation target %q", e.Name)
}

// Registry is a catalog of named impersonation targets. The zero value is
// not usable; construct with NewRegistry or Default.
type Registry struct {
	mu       sync.RWMutex
	targets  map[string]Spec
	families map[string]string // family (e.g. "chrome") -> latest known target name
}

var (
	defaultOnce sync.Once
	defaultReg  *Registry
)

// Default returns the process-wide registry, seeded with the built-in
// native targets and, if present, merged with the on-disk override file
// named by EnvOverrideDir (or a package-default config dir when unset).
func Default() *Registry {
	defaultOnce.Do(func() {
		defaultReg = NewRegistry()
		if dir := configDir(); dir != "" {
			_ = defaultReg.LoadOverridesFromDir(dir) // best effort; absence is not an error
		}
	})
	return defaultReg
}

func configDir() string {
	if d := os.Getenv(EnvOverrideDir); d != "" {
		return d
	}
	home, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, "masq")
}

// NewRegistry returns a registry seeded with only the built-in native
// targets (no on-disk merge). Useful for tests and for embedders that want
// full control over what is resolvable.
func NewRegistry() *Registry {
	r := &Registry{
		targets:  make(map[string]Spec, len(nativeTargets)),
		families: make(map[string]string),
	}
	for name, spec := range nativeTargets {
		r.targets[name] = spec
	}
	for family, latest := range nativeFamilyLatest {
		r.families[family] = latest
	}
	return r
}

// List returns every known target name, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.targets))
	for name := range r.targets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve returns the Spec for name. Names without a version suffix (e.g.
// "chrome" rather than "chrome131") resolve to the family's stable "latest
// known" entry. Returns *UnknownImpersonationError if name is not
// recognized either directly or as a family alias.
func (r *Registry) Resolve(name string) (Spec, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if spec, ok := r.targets[name]; ok {
		return spec.Clone(), nil
	}
	if latest, ok := r.families[name]; ok {
		if spec, ok := r.targets[latest]; ok {
			return spec.Clone(), nil
		}
	}
	return Spec{}, &UnknownImpersonationError{Name: name}
}

// Register adds or replaces a target by name. It leaves every family's
// "latest known" alias unchanged; SetFamilyLatest sets that alias.
func (r *Registry) Register(name string, spec Spec) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.targets[name] = spec
}

// SetFamilyLatest designates target as the entry that bare family names
// (e.g. "chrome") resolve to.
func (r *Registry) SetFamilyLatest(family, target string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.families[family] = target
}

// overrideFile is the on-disk shape: { "<target_name>": Spec-as-JSON, ... }.
type overrideFile map[string]jsonSpec

// LoadOverridesFromDir merges registry.json from dir into the registry.
// Targets present on disk take precedence over built-in entries with the
// same name. A missing file is not an error; a malformed file is.
func (r *Registry) LoadOverridesFromDir(dir string) error {
	data, err := os.ReadFile(filepath.Join(dir, overrideFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("fingerprint: read override file: %w", err)
	}
	var file overrideFile
	if err := json.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("fingerprint: parse override file: %w", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, js := range file {
		r.targets[name] = js.toSpec()
	}
	return nil
}

// jsonSpec is the on-disk JSON representation of Spec; kept distinct from
// Spec itself so the wire format (snake_case, string-encoded extension
// orders) can evolve independently of the in-memory struct layout.
type jsonSpec struct {
	Client        string `json:"client"`
	ClientVersion string `json:"client_version"`
	OS            string `json:"os"`
	OSVersion     string `json:"os_version"`

	TLSVersion             string   `json:"tls_version"`
	TLSCiphers             []uint16 `json:"tls_ciphers"`
	TLSSupportedGroups     []uint16 `json:"tls_supported_groups"`
	TLSSignatureHashes     []uint16 `json:"tls_signature_hashes"`
	TLSCertCompression     []string `json:"tls_cert_compression"`
	TLSALPN                []string `json:"tls_alpn"`
	TLSALPS                []string `json:"tls_alps"`
	TLSGrease              bool     `json:"tls_grease"`
	TLSSessionTicket       bool     `json:"tls_session_ticket"`
	TLSExtensionOrder      string   `json:"tls_extension_order"`
	TLSKeyShareLimit       int      `json:"tls_key_shares_limit"`
	TLSDelegatedCreds      bool     `json:"tls_delegated_credentials"`
	TLSUseNewALPSCodepoint bool     `json:"tls_use_new_alps_codepoint"`
	TLSSignedCertTimestamp bool     `json:"tls_signed_cert_timestamps"`

	HTTP2Settings           string `json:"http2_settings"`
	HTTP2WindowUpdate       uint32 `json:"http2_window_update"`
	HTTP2PseudoHeadersOrder string `json:"http2_pseudo_headers_order"`
	HTTP2NoPriority         bool   `json:"http2_no_priority"`

	HTTP3Settings           string `json:"http3_settings"`
	HTTP3PseudoHeadersOrder string `json:"http3_pseudo_headers_order"`
	HTTP3TLSExtensionOrder  string `json:"http3_tls_extension_order"`
	QUICTransportParameters string `json:"quic_transport_parameters"`

	Headers     map[string]string `json:"headers"`
	HeaderOrder []string          `json:"header_order"`
	HeaderLang  string            `json:"header_lang"`
	HTTPVersion string            `json:"http_version"`
}

func (j jsonSpec) toSpec() Spec {
	var order PseudoHeaderOrder
	copy(order[:], j.HTTP2PseudoHeadersOrder)
	var h3order PseudoHeaderOrder
	copy(h3order[:], j.HTTP3PseudoHeadersOrder)

	hdrs := make(OrderedHeaders, 0, len(j.HeaderOrder))
	for _, name := range j.HeaderOrder {
		if v, ok := j.Headers[name]; ok {
			hdrs = append(hdrs, HeaderLine{Name: name, Value: v})
		}
	}

	return Spec{
		Client:                 j.Client,
		ClientVersion:          j.ClientVersion,
		OS:                     j.OS,
		OSVersion:              j.OSVersion,
		TLSCiphers:             j.TLSCiphers,
		TLSSupportedGroups:     j.TLSSupportedGroups,
		TLSSignatureHashes:     j.TLSSignatureHashes,
		TLSCertCompression:     j.TLSCertCompression,
		TLSALPN:                j.TLSALPN,
		TLSALPS:                j.TLSALPS,
		TLSGrease:              j.TLSGrease,
		TLSSessionTicket:       j.TLSSessionTicket,
		TLSExtensionOrder:      j.TLSExtensionOrder,
		TLSKeyShareLimit:       j.TLSKeyShareLimit,
		TLSDelegatedCreds:      j.TLSDelegatedCreds,
		TLSUseNewALPSCodepoint: j.TLSUseNewALPSCodepoint,
		TLSSignedCertTimestamp: j.TLSSignedCertTimestamp,
		HTTP2Settings:          j.HTTP2Settings,
		HTTP2WindowUpdate:      j.HTTP2WindowUpdate,
		HTTP2PseudoHeadersOrder: order,
		HTTP2NoPriority:        j.HTTP2NoPriority,
		HTTP3Settings:           j.HTTP3Settings,
		HTTP3PseudoHeadersOrder: h3order,
		HTTP3TLSExtensionOrder:  j.HTTP3TLSExtensionOrder,
		QUICTransportParameters: j.QUICTransportParameters,
		Headers:                 hdrs,
		HeaderLang:              j.HeaderLang,
		HTTPVersion:             HTTPVersion(j.HTTPVersion),
	}
}

// nativeTargets is the built-in table of impersonation targets, always
// merged into every Registry regardless of on-disk overrides. Values are
// grounded on internal/fingerprints/profiles.go's GetDefaultProfiles, with
// the JA3/UA fields expanded into structured TLS/H2 fields per spec.md §3.1.
var nativeTargets = map[string]Spec{
	"chrome131": {
		Client: "Chrome", ClientVersion: "131", OS: "Windows", OSVersion: "10",
		TLSCiphers: []uint16{
			0x1301, 0x1302, 0x1303, // AES128-GCM, AES256-GCM, CHACHA20 (TLS1.3)
			0xc02b, 0xc02f, 0xc02c, 0xc030, 0xcca9, 0xcca8, 0xc013, 0xc014, 0x009c, 0x009d, 0x002f, 0x0035,
		},
		TLSSupportedGroups: []uint16{0x001d, 0x0017, 0x0018}, // x25519, secp256r1, secp384r1
		TLSSignatureHashes: []uint16{0x0403, 0x0804, 0x0401, 0x0503, 0x0805, 0x0501, 0x0806, 0x0601},
		TLSALPN:            []string{"h2", "http/1.1"},
		TLSGrease:          true,
		TLSSessionTicket:   true,
		TLSExtensionOrder:  "0-23-65281-10-11-35-16-5-13-18-51-45-43-27-17513-21",
		TLSKeyShareLimit:   2,
		HTTP2Settings:      "1:65536;2:0;4:6291456;6:262144",
		HTTP2WindowUpdate:  15663105,
		HTTP2PseudoHeadersOrder: PseudoHeaderOrder{'m', 'a', 's', 'p'},
		HTTP3Settings:           "",
		Headers: OrderedHeaders{
			{Name: "sec-ch-ua", Value: `"Google Chrome";v="131", "Chromium";v="131", "Not_A Brand";v="24"`},
			{Name: "sec-ch-ua-mobile", Value: "?0"},
			{Name: "sec-ch-ua-platform", Value: `"Windows"`},
			{Name: "Upgrade-Insecure-Requests", Value: "1"},
			{Name: "User-Agent", Value: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"},
			{Name: "Accept", Value: "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8,application/signed-exchange;v=b3;q=0.7"},
			{Name: "Sec-Fetch-Site", Value: "none"},
			{Name: "Sec-Fetch-Mode", Value: "navigate"},
			{Name: "Sec-Fetch-User", Value: "?1"},
			{Name: "Sec-Fetch-Dest", Value: "document"},
			{Name: "Accept-Encoding", Value: "gzip, deflate, br, zstd"},
			{Name: "Accept-Language", Value: "en-US,en;q=0.9"},
		},
		HTTPVersion: HTTPVersion2,
	},
	"chrome120": {
		Client: "Chrome", ClientVersion: "120", OS: "Linux", OSVersion: "",
		TLSCiphers: []uint16{
			0x1301, 0x1302, 0x1303,
			0xc02b, 0xc02f, 0xc02c, 0xc030, 0xcca9, 0xcca8, 0xc013, 0xc014, 0x009c, 0x009d, 0x002f, 0x0035,
		},
		TLSSupportedGroups: []uint16{0x001d, 0x0017, 0x0018},
		TLSSignatureHashes: []uint16{0x0403, 0x0804, 0x0401},
		TLSALPN:            []string{"h2", "http/1.1"},
		TLSGrease:          true,
		TLSSessionTicket:   true,
		TLSExtensionOrder:  "0-23-65281-10-11-35-16-5-13-18-51-45-43-27-17513",
		TLSKeyShareLimit:   1,
		HTTP2Settings:      "1:65536;2:0;4:6291456;6:262144",
		HTTP2WindowUpdate:  15663105,
		HTTP2PseudoHeadersOrder: PseudoHeaderOrder{'m', 'a', 's', 'p'},
		Headers: OrderedHeaders{
			{Name: "sec-ch-ua", Value: `"Not_A Brand";v="8", "Chromium";v="120", "Google Chrome";v="120"`},
			{Name: "sec-ch-ua-mobile", Value: "?0"},
			{Name: "sec-ch-ua-platform", Value: `"Linux"`},
			{Name: "Upgrade-Insecure-Requests", Value: "1"},
			{Name: "User-Agent", Value: "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"},
			{Name: "Accept", Value: "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8,application/signed-exchange;v=b3;q=0.7"},
			{Name: "Accept-Encoding", Value: "gzip, deflate, br"},
			{Name: "Accept-Language", Value: "en-US,en;q=0.9"},
		},
		HTTPVersion: HTTPVersion2,
	},
	"firefox121": {
		Client: "Firefox", ClientVersion: "121", OS: "Linux", OSVersion: "",
		TLSCiphers: []uint16{
			0x1301, 0x1303, 0x1302,
			0xc02b, 0xc02f, 0xcca9, 0xcca8, 0xc02c, 0xc030, 0xc00a, 0xc009, 0xc013, 0xc014, 0x009c, 0x009d, 0x002f, 0x0035, 0x000a,
		},
		TLSSupportedGroups: []uint16{0x001d, 0x0017, 0x0018, 0x0019, 0x0100, 0x0101},
		TLSSignatureHashes: []uint16{0x0403, 0x0503, 0x0603, 0x0804, 0x0805, 0x0806},
		TLSALPN:            []string{"h2", "http/1.1"},
		TLSGrease:          false,
		TLSSessionTicket:   true,
		TLSExtensionOrder:  "0-23-65281-10-11-16-5-34-51-43-13-45-28",
		TLSKeyShareLimit:   1,
		HTTP2Settings:      "1:65536;4:131072;5:16384",
		HTTP2WindowUpdate:  12517377,
		HTTP2PseudoHeadersOrder: PseudoHeaderOrder{'m', 'p', 'a', 's'},
		Headers: OrderedHeaders{
			{Name: "User-Agent", Value: "Mozilla/5.0 (X11; Ubuntu; Linux x86_64; rv:121.0) Gecko/20100101 Firefox/121.0"},
			{Name: "Accept", Value: "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8"},
			{Name: "Accept-Language", Value: "en-US,en;q=0.5"},
			{Name: "Accept-Encoding", Value: "gzip, deflate, br"},
			{Name: "Upgrade-Insecure-Requests", Value: "1"},
			{Name: "Sec-Fetch-Dest", Value: "document"},
			{Name: "Sec-Fetch-Mode", Value: "navigate"},
			{Name: "Sec-Fetch-Site", Value: "none"},
			{Name: "Sec-Fetch-User", Value: "?1"},
		},
		HTTPVersion: HTTPVersion2,
	},
	"safari17_0": {
		Client: "Safari", ClientVersion: "17.0", OS: "macOS", OSVersion: "14",
		TLSCiphers: []uint16{
			0x1301, 0x1302, 0x1303,
			0xc02c, 0xc02b, 0xcca9, 0xc030, 0xc02f, 0xcca8, 0xc024, 0xc023, 0xc00a, 0xc009, 0xc014, 0xc013, 0x009d, 0x009c, 0x003d, 0x003c, 0x0035, 0x002f,
		},
		TLSSupportedGroups: []uint16{0x001d, 0x0017, 0x0018, 0x0019},
		TLSSignatureHashes: []uint16{0x0403, 0x0804, 0x0503, 0x0805, 0x0401, 0x0805},
		TLSALPN:            []string{"h2", "http/1.1"},
		TLSGrease:          true,
		TLSSessionTicket:   true,
		TLSExtensionOrder:  "65281-0-23-13-5-18-16-30032-11-10-35-22-23-21",
		TLSKeyShareLimit:   1,
		HTTP2Settings:      "4:2097152;3:100",
		HTTP2WindowUpdate:  10485760,
		HTTP2PseudoHeadersOrder: PseudoHeaderOrder{'m', 's', 'p', 'a'},
		Headers: OrderedHeaders{
			{Name: "Accept", Value: "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8"},
			{Name: "Accept-Language", Value: "en-US,en;q=0.9"},
			{Name: "Accept-Encoding", Value: "gzip, deflate, br"},
			{Name: "User-Agent", Value: "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Safari/605.1.15"},
		},
		HTTPVersion: HTTPVersion2,
	},
	"edge131": {
		Client: "Edge", ClientVersion: "131", OS: "Windows", OSVersion: "10",
		TLSCiphers: []uint16{
			0x1301, 0x1302, 0x1303,
			0xc02b, 0xc02f, 0xc02c, 0xc030, 0xcca9, 0xcca8, 0xc013, 0xc014, 0x009c, 0x009d, 0x002f, 0x0035,
		},
		TLSSupportedGroups: []uint16{0x001d, 0x0017, 0x0018},
		TLSSignatureHashes: []uint16{0x0403, 0x0804, 0x0401},
		TLSALPN:            []string{"h2", "http/1.1"},
		TLSGrease:          true,
		TLSSessionTicket:   true,
		TLSExtensionOrder:  "0-23-65281-10-11-35-16-5-13-18-51-45-43-27-17513-21-28",
		TLSKeyShareLimit:   2,
		HTTP2Settings:      "1:65536;2:0;4:6291456;6:262144",
		HTTP2WindowUpdate:  15663105,
		HTTP2PseudoHeadersOrder: PseudoHeaderOrder{'m', 'a', 's', 'p'},
		Headers: OrderedHeaders{
			{Name: "sec-ch-ua", Value: `"Microsoft Edge";v="131", "Chromium";v="131", "Not_A Brand";v="24"`},
			{Name: "sec-ch-ua-mobile", Value: "?0"},
			{Name: "sec-ch-ua-platform", Value: `"Windows"`},
			{Name: "User-Agent", Value: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36 Edg/131.0.0.0"},
			{Name: "Accept", Value: "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8,application/signed-exchange;v=b3;q=0.7"},
			{Name: "Accept-Encoding", Value: "gzip, deflate, br"},
			{Name: "Accept-Language", Value: "en-US,en;q=0.9"},
		},
		HTTPVersion: HTTPVersion2,
	},
	"chrome131_android": {
		Client: "Chrome", ClientVersion: "131", OS: "Android", OSVersion: "14",
		TLSCiphers: []uint16{
			0x1301, 0x1302, 0x1303,
			0xc02b, 0xc02f, 0xc02c, 0xc030, 0xcca9, 0xcca8, 0xc013, 0xc014, 0x009c, 0x009d, 0x002f, 0x0035,
		},
		TLSSupportedGroups: []uint16{0x001d, 0x0017, 0x0018},
		TLSSignatureHashes: []uint16{0x0403, 0x0804, 0x0401},
		TLSALPN:            []string{"h2", "http/1.1"},
		TLSGrease:          true,
		TLSSessionTicket:   true,
		TLSExtensionOrder:  "0-23-65281-10-11-35-16-5-13-18-51-45-43-27",
		TLSKeyShareLimit:   1,
		HTTP2Settings:      "1:65536;2:0;4:6291456;6:262144",
		HTTP2WindowUpdate:  15663105,
		HTTP2PseudoHeadersOrder: PseudoHeaderOrder{'m', 'a', 's', 'p'},
		Headers: OrderedHeaders{
			{Name: "sec-ch-ua", Value: `"Google Chrome";v="131", "Chromium";v="131", "Not_A Brand";v="24"`},
			{Name: "sec-ch-ua-mobile", Value: "?1"},
			{Name: "sec-ch-ua-platform", Value: `"Android"`},
			{Name: "User-Agent", Value: "Mozilla/5.0 (Linux; Android 14) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Mobile Safari/537.36"},
			{Name: "Accept", Value: "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8"},
			{Name: "Accept-Encoding", Value: "gzip, deflate, br"},
			{Name: "Accept-Language", Value: "en-US,en;q=0.9"},
		},
		HTTPVersion: HTTPVersion2,
	},
	"safari17_2_ios": {
		Client: "Safari", ClientVersion: "17.2", OS: "iOS", OSVersion: "17.2",
		TLSCiphers: []uint16{
			0x1301, 0x1302, 0x1303,
			0xc02c, 0xc02b, 0xcca9, 0xc030, 0xc02f, 0xcca8, 0xc024, 0xc023, 0xc00a, 0xc009,
		},
		TLSSupportedGroups: []uint16{0x001d, 0x0017, 0x0018},
		TLSSignatureHashes: []uint16{0x0403, 0x0804, 0x0503},
		TLSALPN:            []string{"h2", "http/1.1"},
		TLSGrease:          true,
		TLSSessionTicket:   true,
		TLSExtensionOrder:  "0-23-65281-10-11-16-5-13-18-51-45-43-27-21",
		TLSKeyShareLimit:   1,
		HTTP2Settings:      "4:2097152;3:100",
		HTTP2WindowUpdate:  10485760,
		HTTP2PseudoHeadersOrder: PseudoHeaderOrder{'m', 's', 'p', 'a'},
		Headers: OrderedHeaders{
			{Name: "User-Agent", Value: "Mozilla/5.0 (iPhone; CPU iPhone OS 17_2 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.2 Mobile/15E148 Safari/604.1"},
			{Name: "Accept", Value: "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8"},
			{Name: "Accept-Language", Value: "en-US,en;q=0.9"},
			{Name: "Accept-Encoding", Value: "gzip, deflate, br"},
		},
		HTTPVersion: HTTPVersion2,
	},
	"chrome145": {
		Client: "Chrome", ClientVersion: "145", OS: "macOS", OSVersion: "Tahoe",
		TLSCiphers: []uint16{
			0x1301, 0x1302, 0x1303,
			0xc02b, 0xc02f, 0xc02c, 0xc030, 0xcca9, 0xcca8, 0xc013, 0xc014, 0x009c, 0x009d, 0x002f, 0x0035,
		},
		TLSSupportedGroups: []uint16{0x001d, 0x0017, 0x0018},
		TLSSignatureHashes: []uint16{0x0403, 0x0804, 0x0401},
		TLSALPN:            []string{"h3", "h2", "http/1.1"},
		TLSGrease:          true,
		TLSSessionTicket:   true,
		TLSExtensionOrder:  "0-23-65281-10-11-35-16-5-13-18-51-45-43-27-17513-21",
		TLSKeyShareLimit:   2,
		HTTP2Settings:      "1:65536;2:0;4:6291456;6:262144",
		HTTP2WindowUpdate:  15663105,
		HTTP2PseudoHeadersOrder: PseudoHeaderOrder{'m', 'a', 's', 'p'},
		HTTP3Settings:           "max_field_section_size:262144;qpack_blocked_streams:100",
		HTTP3PseudoHeadersOrder: PseudoHeaderOrder{'m', 'a', 's', 'p'},
		QUICTransportParameters: "initial_max_data:15728640;initial_max_stream_data_bidi_local:6291456",
		Headers: OrderedHeaders{
			{Name: "sec-ch-ua", Value: `"Google Chrome";v="145", "Chromium";v="145", "Not_A Brand";v="24"`},
			{Name: "sec-ch-ua-mobile", Value: "?0"},
			{Name: "sec-ch-ua-platform", Value: `"macOS"`},
			{Name: "User-Agent", Value: "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/145.0.0.0 Safari/537.36"},
			{Name: "Accept", Value: "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8"},
			{Name: "Accept-Encoding", Value: "gzip, deflate, br, zstd"},
			{Name: "Accept-Language", Value: "en-US,en;q=0.9"},
		},
		HTTPVersion: HTTPVersion3,
	},
	"okhttp4_12": {
		Client: "OkHttp", ClientVersion: "4.12.0", OS: "Android", OSVersion: "",
		TLSCiphers: []uint16{
			0x1301, 0x1302, 0x1303,
			0xc02b, 0xc02f, 0xc02c, 0xc030, 0xcca9, 0xcca8, 0xc013, 0xc014, 0x009c, 0x009d, 0x002f, 0x0035,
		},
		TLSSupportedGroups: []uint16{0x001d, 0x0017, 0x0018},
		TLSSignatureHashes: []uint16{0x0403, 0x0804, 0x0401},
		TLSALPN:            []string{"h2", "http/1.1"},
		TLSGrease:          false,
		TLSSessionTicket:   true,
		TLSExtensionOrder:  "0-23-65281-10-11-35-16-5-13-18-51-45-43-27",
		TLSKeyShareLimit:   1,
		HTTP2Settings:      "1:65536;2:0;4:6291456;6:262144",
		HTTP2WindowUpdate:  15663105,
		HTTP2PseudoHeadersOrder: PseudoHeaderOrder{'m', 'a', 's', 'p'},
		Headers: OrderedHeaders{
			{Name: "User-Agent", Value: "okhttp/4.12.0"},
			{Name: "Accept-Encoding", Value: "gzip"},
		},
		HTTPVersion: HTTPVersion2,
	},
	"chrome91_tls12": {
		Client: "Chrome", ClientVersion: "91", OS: "Windows", OSVersion: "10",
		TLSVersionMin: 0x0303, // TLS 1.2
		TLSCiphers: []uint16{
			0xc02b, 0xc02f, 0xc02c, 0xc030, 0xcca9, 0xcca8, 0xc013, 0xc014, 0x009c, 0x009d, 0x002f, 0x0035, 0x000a,
		},
		TLSSupportedGroups: []uint16{0x001d, 0x0017, 0x0018},
		TLSSignatureHashes: []uint16{0x0401, 0x0501, 0x0601},
		TLSALPN:            []string{"h2", "http/1.1"},
		TLSGrease:          true,
		TLSSessionTicket:   true,
		TLSExtensionOrder:  "65281-0-23-35-13-5-18-16-11-51-45-43-10-27-21",
		TLSKeyShareLimit:   1,
		HTTP2Settings:      "1:65536;2:0;4:6291456;6:262144",
		HTTP2WindowUpdate:  15663105,
		HTTP2PseudoHeadersOrder: PseudoHeaderOrder{'m', 'a', 's', 'p'},
		Headers: OrderedHeaders{
			{Name: "User-Agent", Value: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"},
			{Name: "Accept", Value: "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,image/apng,*/*;q=0.8"},
			{Name: "Accept-Encoding", Value: "gzip, deflate, br"},
			{Name: "Accept-Language", Value: "en-US,en;q=0.9"},
		},
		HTTPVersion: HTTPVersion2,
	},
}

// nativeFamilyLatest maps a bare family name to the stable "latest known"
// target name for that family (spec.md §4.B: "names without a version
// suffix resolve to a stable 'latest known' entry").
var nativeFamilyLatest = map[string]string{
	"chrome":  "chrome145",
	"firefox": "firefox121",
	"safari":  "safari17_0",
	"edge":    "edge131",
	"okhttp":  "okhttp4_12",
}

// Platforms returns the sorted set of distinct OS values across every
// known target, for UIs that want to group by platform.
func (r *Registry) Platforms() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[string]struct{})
	for _, spec := range r.targets {
		seen[spec.OS] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for os := range seen {
		out = append(out, os)
	}
	sort.Strings(out)
	return out
}

// ByPlatform returns every known target name for the given OS, sorted.
func (r *Registry) ByPlatform(os string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []string
	for name, spec := range r.targets {
		if strings.EqualFold(spec.OS, os) {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}
