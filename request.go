package masq

import (
	"io"
	"time"

	"github.com/masqhttp/masq/fingerprint"
	"github.com/masqhttp/masq/internal/options"
)

// FilePart is one multipart/form-data file field (spec.md §6.2's files=...).
type FilePart = options.FilePart

// Request describes one call: a method/URL plus every per-request override
// spec.md §6.2 names. The zero value is a bare GET with the session's
// defaults; RequestOptions layer overrides on top, following
// examples/go.go's RequestOption/WithX functional-options idiom.
type Request struct {
	Method string
	URL    string

	Params map[string][]string

	Headers     map[string][]string
	HeaderOrder []string

	Body      io.Reader
	BodyBytes []byte
	JSON      any
	Form      map[string][]string
	Files     []FilePart

	Cookies map[string]string

	Username string
	Password string

	Timeout        time.Duration
	ConnectTimeout time.Duration

	AllowRedirects bool
	MaxRedirects   int

	ProxyURL     string
	ProxyAuth    string
	Verify       bool
	CACert       string
	ClientCert   string
	ClientKey    string

	Referer        string
	AcceptEncoding string

	Impersonate string
	JA3         string
	Akamai      string
	ExtraFP     *fingerprint.Spec

	DefaultHeaders     map[string][]string
	SkipDefaultHeaders bool
	DefaultEncoding    string
	HTTPVersion        fingerprint.HTTPVersion

	RawOptions map[string]any

	Interface    string
	MaxRecvSpeed int64
	PreserveHost bool

	DiscardCookies bool
	Stream         bool

	ContentCallback func([]byte) error
}

// RequestOption mutates a Request in place, the functional-options
// idiom examples/go.go's RequestOption/WithProfile/WithHeader use.
type RequestOption func(*Request)

func WithParams(params map[string][]string) RequestOption {
	return func(r *Request) { r.Params = params }
}

func WithHeader(key, value string) RequestOption {
	return func(r *Request) {
		if r.Headers == nil {
			r.Headers = make(map[string][]string)
		}
		r.Headers[key] = append(r.Headers[key], value)
	}
}

func WithHeaders(headers map[string][]string) RequestOption {
	return func(r *Request) { r.Headers = headers }
}

func WithBody(body io.Reader) RequestOption {
	return func(r *Request) { r.Body = body }
}

func WithBytes(data []byte) RequestOption {
	return func(r *Request) { r.BodyBytes = data }
}

func WithJSON(v any) RequestOption {
	return func(r *Request) { r.JSON = v }
}

func WithForm(form map[string][]string) RequestOption {
	return func(r *Request) { r.Form = form }
}

func WithFiles(files ...FilePart) RequestOption {
	return func(r *Request) { r.Files = files }
}

func WithCookie(name, value string) RequestOption {
	return func(r *Request) {
		if r.Cookies == nil {
			r.Cookies = make(map[string]string)
		}
		r.Cookies[name] = value
	}
}

func WithAuth(username, password string) RequestOption {
	return func(r *Request) { r.Username, r.Password = username, password }
}

func WithTimeout(d time.Duration) RequestOption {
	return func(r *Request) { r.Timeout = d }
}

func WithConnectTimeout(d time.Duration) RequestOption {
	return func(r *Request) { r.ConnectTimeout = d }
}

func WithAllowRedirects(allow bool) RequestOption {
	return func(r *Request) { r.AllowRedirects = allow }
}

func WithMaxRedirects(n int) RequestOption {
	return func(r *Request) { r.MaxRedirects = n }
}

func WithProxy(proxyURL string) RequestOption {
	return func(r *Request) { r.ProxyURL = proxyURL }
}

func WithProxyAuth(userpass string) RequestOption {
	return func(r *Request) { r.ProxyAuth = userpass }
}

func WithVerify(verify bool) RequestOption {
	return func(r *Request) { r.Verify = verify }
}

func WithCACert(path string) RequestOption {
	return func(r *Request) { r.CACert = path }
}

func WithClientCert(certPath, keyPath string) RequestOption {
	return func(r *Request) { r.ClientCert, r.ClientKey = certPath, keyPath }
}

func WithReferer(referer string) RequestOption {
	return func(r *Request) { r.Referer = referer }
}

func WithAcceptEncoding(enc string) RequestOption {
	return func(r *Request) { r.AcceptEncoding = enc }
}

// WithImpersonate selects a named target from the fingerprint registry,
// spec.md §4.B's primary selector (e.g. "chrome120", "safari17_0").
func WithImpersonate(name string) RequestOption {
	return func(r *Request) { r.Impersonate = name }
}

func WithJA3(ja3 string) RequestOption {
	return func(r *Request) { r.JA3 = ja3 }
}

func WithAkamai(akamai string) RequestOption {
	return func(r *Request) { r.Akamai = akamai }
}

func WithExtraFingerprint(patch *fingerprint.Spec) RequestOption {
	return func(r *Request) { r.ExtraFP = patch }
}

func WithDefaultHeaders(headers map[string][]string) RequestOption {
	return func(r *Request) { r.DefaultHeaders = headers }
}

func WithSkipDefaultHeaders(skip bool) RequestOption {
	return func(r *Request) { r.SkipDefaultHeaders = skip }
}

func WithDefaultEncoding(enc string) RequestOption {
	return func(r *Request) { r.DefaultEncoding = enc }
}

func WithHTTPVersion(v fingerprint.HTTPVersion) RequestOption {
	return func(r *Request) { r.HTTPVersion = v }
}

// WithRawOption is the curl_options escape hatch (spec.md §6.2's
// raw_options), applied after every named option.
func WithRawOption(name string, value any) RequestOption {
	return func(r *Request) {
		if r.RawOptions == nil {
			r.RawOptions = make(map[string]any)
		}
		r.RawOptions[name] = value
	}
}

func WithInterface(iface string) RequestOption {
	return func(r *Request) { r.Interface = iface }
}

func WithMaxRecvSpeed(bytesPerSecond int64) RequestOption {
	return func(r *Request) { r.MaxRecvSpeed = bytesPerSecond }
}

func WithPreserveHost(preserve bool) RequestOption {
	return func(r *Request) { r.PreserveHost = preserve }
}

func WithDiscardCookies(discard bool) RequestOption {
	return func(r *Request) { r.DiscardCookies = discard }
}

func WithStream(stream bool) RequestOption {
	return func(r *Request) { r.Stream = stream }
}

func WithContentCallback(fn func([]byte) error) RequestOption {
	return func(r *Request) { r.ContentCallback = fn }
}
