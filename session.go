package masq

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/masqhttp/masq/fingerprint"
	"github.com/masqhttp/masq/internal/cookiejar"
	"github.com/masqhttp/masq/internal/engine"
	"github.com/masqhttp/masq/internal/options"
	"github.com/masqhttp/masq/internal/transport"
	"github.com/masqhttp/masq/response"
	"github.com/masqhttp/masq/ws"
)

// Session is Component F: a synchronous client carrying a cookie jar, a
// set of persistent per-call defaults, and the Transfer Engine's
// connection pool, grounded on curl_cffi's requests.Session
// (requests/session.py). Every method is safe to call from multiple
// goroutines; AsyncSession exists separately for callers that want
// explicit concurrency bounded by a fixed number of in-flight requests
// rather than the Go runtime's own goroutine scheduling.
type Session struct {
	mu       sync.RWMutex
	closed   bool
	defaults Request

	jar      *cookiejar.Jar
	registry *fingerprint.Registry
	compiler *options.Compiler
	engine   *engine.Engine
	logger   *log.Logger
}

// NewSession returns a ready Session. Every RequestOption passed here
// becomes a persistent default applied to every call made through this
// Session, merged against that call's own options per the rules
// documented on Session.Request.
func NewSession(opts ...RequestOption) *Session {
	logger := log.New(nil)
	reg := fingerprint.Default()

	defaults := Request{AllowRedirects: true, MaxRedirects: 30, Verify: true}
	for _, o := range opts {
		o(&defaults)
	}

	return &Session{
		defaults: defaults,
		jar:      cookiejar.New(),
		registry: reg,
		compiler: options.NewCompiler(reg, logger),
		engine:   engine.New(64, logger),
		logger:   logger,
	}
}

// Close stops the Session's background watchdog and rejects every
// further operation with *SessionClosedError, spec.md §4.F.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.logger.Debug("session: closing")
	return s.engine.Close()
}

// Cookies returns every cookie currently stored in the session jar.
func (s *Session) Cookies() []cookiejar.Morsel { return s.jar.All() }

// Impersonations lists every fingerprint name this Session's registry
// can resolve, for callers building a WithImpersonate value dynamically.
func (s *Session) Impersonations() []string { return s.registry.List() }

// mergeRequest layers call on top of def: scalar fields use call's value
// when call's is non-zero (per-call wins if set, the same
// zero-as-unset convention examples/go.go's Timeout-vs-defaultTimeout
// comparison uses); map fields shallow-merge with call's keys
// overriding def's; slice fields never merge, call replaces wholesale
// when non-nil.
func mergeRequest(def, call Request) Request {
	out := def

	if call.Params != nil {
		out.Params = mergeMultiMap(def.Params, call.Params)
	}
	if call.Headers != nil {
		out.Headers = mergeMultiMap(def.Headers, call.Headers)
	}
	if call.HeaderOrder != nil {
		out.HeaderOrder = call.HeaderOrder
	}
	if call.Body != nil {
		out.Body = call.Body
	}
	if call.BodyBytes != nil {
		out.BodyBytes = call.BodyBytes
	}
	if call.JSON != nil {
		out.JSON = call.JSON
	}
	if call.Form != nil {
		out.Form = mergeMultiMap(def.Form, call.Form)
	}
	if call.Files != nil {
		out.Files = call.Files
	}
	if call.Cookies != nil {
		out.Cookies = mergeMap(def.Cookies, call.Cookies)
	}
	if call.Username != "" {
		out.Username = call.Username
	}
	if call.Password != "" {
		out.Password = call.Password
	}
	if call.Timeout != 0 {
		out.Timeout = call.Timeout
	}
	if call.ConnectTimeout != 0 {
		out.ConnectTimeout = call.ConnectTimeout
	}
	if call.AllowRedirects != def.AllowRedirects {
		out.AllowRedirects = call.AllowRedirects
	}
	if call.MaxRedirects != 0 {
		out.MaxRedirects = call.MaxRedirects
	}
	if call.ProxyURL != "" {
		out.ProxyURL = call.ProxyURL
	}
	if call.ProxyAuth != "" {
		out.ProxyAuth = call.ProxyAuth
	}
	if call.Verify != def.Verify {
		out.Verify = call.Verify
	}
	if call.CACert != "" {
		out.CACert = call.CACert
	}
	if call.ClientCert != "" {
		out.ClientCert, out.ClientKey = call.ClientCert, call.ClientKey
	}
	if call.Referer != "" {
		out.Referer = call.Referer
	}
	if call.AcceptEncoding != "" {
		out.AcceptEncoding = call.AcceptEncoding
	}
	if call.Impersonate != "" {
		out.Impersonate = call.Impersonate
	}
	if call.JA3 != "" {
		out.JA3 = call.JA3
	}
	if call.Akamai != "" {
		out.Akamai = call.Akamai
	}
	if call.ExtraFP != nil {
		out.ExtraFP = call.ExtraFP
	}
	if call.DefaultHeaders != nil {
		out.DefaultHeaders = mergeMultiMap(def.DefaultHeaders, call.DefaultHeaders)
	}
	if call.SkipDefaultHeaders {
		out.SkipDefaultHeaders = true
	}
	if call.DefaultEncoding != "" {
		out.DefaultEncoding = call.DefaultEncoding
	}
	if call.HTTPVersion != "" {
		out.HTTPVersion = call.HTTPVersion
	}
	if call.RawOptions != nil {
		out.RawOptions = mergeAnyMap(def.RawOptions, call.RawOptions)
	}
	if call.Interface != "" {
		out.Interface = call.Interface
	}
	if call.MaxRecvSpeed != 0 {
		out.MaxRecvSpeed = call.MaxRecvSpeed
	}
	if call.PreserveHost {
		out.PreserveHost = true
	}
	if call.DiscardCookies {
		out.DiscardCookies = true
	}
	if call.Stream {
		out.Stream = true
	}
	if call.ContentCallback != nil {
		out.ContentCallback = call.ContentCallback
	}
	return out
}

// injectProxyAuth sets userinfo on proxyURL from a "user:pass" string,
// spec.md §6.2's proxy_auth kept as a separate named option from
// proxy/proxies so a caller can swap credentials without re-parsing the
// proxy URL itself.
func injectProxyAuth(proxyURL, userpass string) (string, error) {
	u, err := url.Parse(proxyURL)
	if err != nil {
		return "", err
	}
	user, pass, _ := strings.Cut(userpass, ":")
	u.User = url.UserPassword(user, pass)
	return u.String(), nil
}

func mergeMultiMap(def, call map[string][]string) map[string][]string {
	out := make(map[string][]string, len(def)+len(call))
	for k, v := range def {
		out[k] = v
	}
	for k, v := range call {
		out[k] = v
	}
	return out
}

func mergeMap(def, call map[string]string) map[string]string {
	out := make(map[string]string, len(def)+len(call))
	for k, v := range def {
		out[k] = v
	}
	for k, v := range call {
		out[k] = v
	}
	return out
}

func mergeAnyMap(def, call map[string]any) map[string]any {
	out := make(map[string]any, len(def)+len(call))
	for k, v := range def {
		out[k] = v
	}
	for k, v := range call {
		out[k] = v
	}
	return out
}

// buildInput turns req (already merged against session defaults) into the
// options.Input the Option Compiler expects, folding in the per-request
// cookies curl_cffi's get_cookies_for_curl would have assembled from the
// jar plus req.Cookies. siteURL is the URL that began the current
// request chain (nil for a direct, non-redirect call); it is forwarded
// to the jar so Strict/Lax morsels can be withheld on a cross-site
// redirect hop per spec.md §4.D.
func (s *Session) buildInput(req Request, siteURL *url.URL) (options.Input, *url.URL, error) {
	reqURL, err := url.Parse(req.URL)
	if err != nil {
		return options.Input{}, nil, fmt.Errorf("masq: parse url: %w", err)
	}

	proxyURL := req.ProxyURL
	if proxyURL != "" && req.ProxyAuth != "" {
		proxyURL, err = injectProxyAuth(proxyURL, req.ProxyAuth)
		if err != nil {
			return options.Input{}, nil, fmt.Errorf("masq: proxy auth: %w", err)
		}
	}

	var cookies []options.CookiePair
	for _, m := range s.jar.CookiesFor(reqURL, req.Method, siteURL) {
		cookies = append(cookies, options.CookiePair{Name: m.Name, Value: m.Value})
	}
	for name, value := range req.Cookies {
		cookies = append(cookies, options.CookiePair{Name: name, Value: value})
	}

	// req.DefaultHeaders (spec.md §6.2's default_headers) is a lower-
	// precedence layer beneath req.Headers: it supplies a base header set
	// a caller wants applied to every request without repeating WithHeader
	// calls, while still letting a single call override any of those keys.
	headers := req.Headers
	if req.DefaultHeaders != nil {
		headers = mergeMultiMap(req.DefaultHeaders, req.Headers)
	}

	in := options.Input{
		Method:             req.Method,
		URL:                req.URL,
		Params:             req.Params,
		Headers:            headers,
		HeaderOrder:        req.HeaderOrder,
		Body:               req.Body,
		BodyBytes:          req.BodyBytes,
		JSON:               req.JSON,
		Form:               req.Form,
		Files:              req.Files,
		Cookies:            cookies,
		Username:           req.Username,
		Password:           req.Password,
		Timeout:            req.Timeout,
		ConnectTimeout:     req.ConnectTimeout,
		AllowRedirects:     req.AllowRedirects,
		MaxRedirects:       req.MaxRedirects,
		ProxyURL:           proxyURL,
		Verify:             req.Verify,
		CACert:             req.CACert,
		ClientCert:         req.ClientCert,
		ClientKey:          req.ClientKey,
		Referer:            req.Referer,
		AcceptEncoding:     req.AcceptEncoding,
		Impersonate:        req.Impersonate,
		JA3:                req.JA3,
		Akamai:             req.Akamai,
		ExtraFP:            req.ExtraFP,
		SkipDefaultHeaders: req.SkipDefaultHeaders,
		HTTPVersion:        req.HTTPVersion,
		RawOptions:         req.RawOptions,
		Interface:          req.Interface,
		MaxRecvSpeed:       req.MaxRecvSpeed,
		PreserveHost:       req.PreserveHost,
		Stream:             req.Stream,
	}
	return in, reqURL, nil
}

const maxRedirectsHardCap = 100

// Request issues one HTTP request, merging opts against the Session's
// persistent defaults (see mergeRequest), driving redirects itself so
// Response.History/RedirectCount can be populated and MaxRedirects
// enforced at the exact depth spec.md §8 requires, and updating the
// cookie jar from every response seen along the way (unless
// req.DiscardCookies).
func (s *Session) Request(ctx context.Context, method, rawURL string, opts ...RequestOption) (*Response, error) {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return nil, &SessionClosedError{}
	}
	defaults := s.defaults
	s.mu.RUnlock()

	call := Request{}
	for _, o := range opts {
		o(&call)
	}
	req := mergeRequest(defaults, call)
	req.Method, req.URL = method, rawURL

	var history []*response.Response
	maxRedirects := req.MaxRedirects
	if maxRedirects <= 0 || maxRedirects > maxRedirectsHardCap {
		maxRedirects = maxRedirectsHardCap
	}

	var siteURL *url.URL
	for depth := 0; ; depth++ {
		in, reqURL, err := s.buildInput(req, siteURL)
		if err != nil {
			return nil, err
		}
		if depth == 0 {
			siteURL = reqURL
		}

		prog, err := s.compiler.Compile(in)
		if err != nil {
			return nil, fmt.Errorf("masq: compile request: %w", err)
		}

		httpResp, release, err := s.engine.Execute(ctx, prog)
		if err != nil {
			return nil, classifyEngineError(err)
		}

		if !req.DiscardCookies {
			_ = s.jar.SetFromResponse(reqURL, httpResp.Header)
		}

		resp, err := response.Build(httpResp, reqURL, history, prog.Trace, req.DefaultEncoding)
		release()
		if err != nil {
			return nil, err
		}

		location := resp.Header.Get("Location")
		if !req.AllowRedirects || !isRedirectStatus(resp.StatusCode) || location == "" {
			if req.ContentCallback != nil {
				if cbErr := req.ContentCallback(resp.Content()); cbErr != nil {
					return resp, cbErr
				}
			}
			return resp, nil
		}
		if depth >= maxRedirects {
			return resp, &response.TooManyRedirectsError{Response: resp, Limit: maxRedirects}
		}

		nextURL, err := reqURL.Parse(location)
		if err != nil {
			return resp, nil
		}
		history = append(history, resp)

		req.URL = nextURL.String()
		if resp.StatusCode == 303 || ((resp.StatusCode == 301 || resp.StatusCode == 302) && req.Method == "POST") {
			req.Method = "GET"
			req.Body, req.BodyBytes, req.JSON, req.Form, req.Files = nil, nil, nil, nil, nil
		}
	}
}

// proxyRawDial mirrors Engine.build's proxy-dialer selection (SOCKS vs
// HTTP CONNECT) for WSConnect, which dials its own net.Conn via
// transport.DialWebSocket rather than going through Engine/Pool.
func proxyRawDial(prog *options.Program) (transport.RawDialFunc, error) {
	if prog.ProxyURL == "" {
		return nil, nil
	}
	if prog.ProxyIsSOCKS {
		sd, err := transport.NewSOCKSDialer(prog.ProxyURL)
		if err != nil {
			return nil, fmt.Errorf("masq: build socks dialer: %w", err)
		}
		return sd.DialContext, nil
	}
	hd, err := transport.NewHTTPProxyDialer(prog.ProxyURL)
	if err != nil {
		return nil, fmt.Errorf("masq: build http proxy dialer: %w", err)
	}
	return hd.DialContext, nil
}

func isRedirectStatus(code int) bool {
	switch code {
	case 301, 302, 303, 307, 308:
		return true
	}
	return false
}

// Stream issues a request and returns an incrementally-readable
// response.Stream instead of buffering the full body, spec.md §4.G.
func (s *Session) Stream(ctx context.Context, method, rawURL string, opts ...RequestOption) (*response.Stream, error) {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return nil, &SessionClosedError{}
	}
	defaults := s.defaults
	s.mu.RUnlock()

	call := Request{}
	for _, o := range opts {
		o(&call)
	}
	req := mergeRequest(defaults, call)
	req.Method, req.URL = method, rawURL

	in, reqURL, err := s.buildInput(req, nil)
	if err != nil {
		return nil, err
	}
	prog, err := s.compiler.Compile(in)
	if err != nil {
		return nil, fmt.Errorf("masq: compile request: %w", err)
	}

	httpResp, release, err := s.engine.Execute(ctx, prog)
	if err != nil {
		return nil, classifyEngineError(err)
	}
	// release returns the pooled *http.Client handle, independent of the
	// response body's lifetime (the body streams over its own connection,
	// managed by the transport's own idle-conn pool, not Engine's).
	release()

	if !req.DiscardCookies {
		_ = s.jar.SetFromResponse(reqURL, httpResp.Header)
	}
	return response.NewStream(ctx, httpResp, reqURL, prog.Trace, 16), nil
}

// WSConnect upgrades to a WebSocket connection impersonating the
// session's resolved fingerprint, spec.md §4.H.
func (s *Session) WSConnect(ctx context.Context, rawURL string, opts ...RequestOption) (*ws.WebSocket, int, map[string][]string, error) {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return nil, 0, nil, &SessionClosedError{}
	}
	defaults := s.defaults
	s.mu.RUnlock()

	call := Request{}
	for _, o := range opts {
		o(&call)
	}
	req := mergeRequest(defaults, call)
	req.Method, req.URL = "GET", rawURL

	in, reqURL, err := s.buildInput(req, nil)
	if err != nil {
		return nil, 0, nil, err
	}
	prog, err := s.compiler.Compile(in)
	if err != nil {
		return nil, 0, nil, fmt.Errorf("masq: compile request: %w", err)
	}

	header := map[string][]string{}
	if prog.Headers != nil {
		header = prog.Headers.ToHTTPHeader()
	}
	if prog.CookieHeader != "" {
		header["Cookie"] = []string{prog.CookieHeader}
	}

	rawDial, err := proxyRawDial(prog)
	if err != nil {
		return nil, 0, nil, err
	}

	conn, status, respHeader, err := ws.Dial(ctx, prog.FingerprintSpec, rawDial, req.URL, header)
	if err != nil {
		return nil, status, respHeader, err
	}
	return conn, status, respHeader, nil
}
