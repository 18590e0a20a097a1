// Package options implements the Option Compiler (Component C): it turns a
// request description plus a resolved fingerprint into the ordered program
// the Transport Binding executes. The ordering rules are transcribed from
// curl_cffi's requests/session.py (_set_curl_options) per spec.md §4.C.
package options

import (
	"io"
	"time"

	"github.com/masqhttp/masq/fingerprint"
	"github.com/masqhttp/masq/internal/transport"
)

// Input mirrors the fields of the public Request type without importing
// the root masq package (which imports this package), so Compile can run
// without a dependency cycle.
type Input struct {
	Method  string
	URL     string
	Params  map[string][]string

	Headers     map[string][]string
	HeaderOrder []string // explicit casing/order for Headers; entries not listed are appended alphabetically

	Body        io.Reader
	BodyBytes   []byte // set instead of Body when the caller passed a []byte/string/map directly
	JSON        any
	Form        map[string][]string // application/x-www-form-urlencoded
	Files       []FilePart

	Cookies []CookiePair // merged session-jar + per-call cookies, in application order

	Username string
	Password string

	Timeout        time.Duration
	ConnectTimeout time.Duration

	AllowRedirects bool
	MaxRedirects   int

	ProxyURL   string
	Verify     bool
	CACert     string
	ClientCert string
	ClientKey  string

	Referer        string
	AcceptEncoding string

	Impersonate       string
	JA3               string
	Akamai            string
	ExtraFP           *fingerprint.Spec
	SkipDefaultHeaders bool
	HTTPVersion        fingerprint.HTTPVersion

	RawOptions map[string]any // curl_options escape hatch, applied last

	Interface     string
	MaxRecvSpeed  int64
	PreserveHost  bool

	Stream bool
}

// CookiePair is one name/value cookie to attach as a Cookie: header.
type CookiePair struct {
	Name  string
	Value string
}

// FilePart is one multipart/form-data file field, supplementing the
// Python original's files=... parameter (left unimplemented there; see
// SPEC_FULL.md §3).
type FilePart struct {
	FieldName string
	FileName  string
	Content   io.Reader
	MIMEType  string
}

// Program is the Option Compiler's output: everything the Transfer Engine
// and Transport Binding need to actually execute one request.
type Program struct {
	Method string
	URL    string

	Headers *transport.OrderedHeader
	Body    io.Reader
	BodyLen int64

	CookieHeader string // precomputed Cookie: header value, "" if none apply

	ConnectTimeout time.Duration
	TotalTimeout   time.Duration

	FollowRedirects bool
	MaxRedirects    int

	ProxyURL    string
	ProxyIsSOCKS bool
	TLSVerify   bool
	CACert      string
	ClientCert  string
	ClientKey   string

	FingerprintSpec fingerprint.Spec

	Interface    string
	MaxRecvSpeed int64

	NoBody bool // HEAD

	Trace map[string]any
}
