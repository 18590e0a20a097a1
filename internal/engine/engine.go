package engine

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/net/http2"

	"github.com/masqhttp/masq/fingerprint"
	"github.com/masqhttp/masq/internal/options"
	"github.com/masqhttp/masq/internal/transport"
)

// Engine is the Transfer Engine (Component E). Where curl_cffi's
// async_base.py drives libcurl's multi handle through a socket-action /
// timer-function callback protocol to get asynchrony out of a
// fundamentally synchronous C library, Go's net/http and netpoller are
// already asynchronous under the hood, so Engine's job shrinks to: compile
// once per (fingerprint, proxy) combination, reuse via Pool, and enforce
// an overall deadline — the one piece curl_cffi's CURLOPT_TIMEOUT and its
// _force_timeout safeguard ticker existed for.
type Engine struct {
	pool   *Pool
	logger *log.Logger

	mu       sync.Mutex
	watchdog *time.Ticker
	stop     chan struct{}
}

// New returns an Engine backed by a LIFO Pool that keeps at most
// maxClients handles (see Pool).
func New(maxClients int, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.New(nil)
	}
	e := &Engine{
		pool:   NewPool(maxClients, 90*time.Second),
		logger: logger,
		stop:   make(chan struct{}),
	}
	e.startWatchdog(30 * time.Second)
	return e
}

// startWatchdog launches a ticker that periodically sweeps the pool for
// idle handles, the direct descendant of curl_cffi's _force_timeout: a
// safeguard that runs independently of any single transfer so that a
// misbehaving or forgotten connection doesn't pin resources forever.
func (e *Engine) startWatchdog(interval time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.watchdog = time.NewTicker(interval)
	go func() {
		for {
			select {
			case <-e.watchdog.C:
				if n := e.pool.EvictIdle(); n > 0 {
					e.logger.Debug("engine: evicted idle handles", "count", n)
				}
			case <-e.stop:
				return
			}
		}
	}()
}

// Close stops the watchdog. It does not forcibly close pooled
// connections; those close themselves via their transport's idle-conn
// timeout.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	select {
	case <-e.stop:
		return nil
	default:
		close(e.stop)
		e.watchdog.Stop()
	}
	return nil
}

// poolKey identifies the (fingerprint, proxy, TLS-verify) combination a
// connection stack is specific to: handles built for one combination must
// never be reused for another, or the wrong ClientHello / proxy route
// would leak across requests.
func poolKey(prog *options.Program) string {
	return fmt.Sprintf("%v|%s|%v|%s|%v", prog.FingerprintSpec, prog.ProxyURL, prog.TLSVerify, prog.CACert, prog.FingerprintSpec.HTTPVersion)
}

// Execute runs prog to completion and returns the raw *http.Response.
// Callers (response.Build) are responsible for turning that into the
// public Response and driving cookie-jar/redirect bookkeeping, since
// curl_cffi's per-transfer CURLOPT_WRITEFUNCTION/HEADERFUNCTION
// callbacks have no single idiomatic Go analog — an http.Client's
// RoundTrip already streams the body lazily via resp.Body.
func (e *Engine) Execute(ctx context.Context, prog *options.Program) (*http.Response, func(), error) {
	key := poolKey(prog)

	requestID := uuid.NewString()
	if prog.Trace != nil {
		prog.Trace["request_id"] = requestID
	}
	e.logger.Debug("engine: executing request", "id", requestID, "method", prog.Method, "url", prog.URL)

	client, _, release, err := e.pool.Acquire(key, func() (*http.Client, *http2.Transport, error) {
		return e.build(prog)
	})
	if err != nil {
		return nil, nil, err
	}

	if prog.TotalTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, prog.TotalTimeout)
		// cancel fires at the deadline rather than on return, so the
		// caller can still read resp.Body after Execute returns.
		time.AfterFunc(prog.TotalTimeout, cancel)
	}

	req, err := http.NewRequestWithContext(ctx, prog.Method, prog.URL, prog.Body)
	if err != nil {
		release()
		return nil, nil, fmt.Errorf("engine: build request: %w", err)
	}
	if prog.BodyLen > 0 {
		req.ContentLength = prog.BodyLen
	}
	if prog.Headers != nil {
		prog.Headers.ApplyToRequest(req)
	}
	if prog.CookieHeader != "" {
		req.Header.Set("Cookie", prog.CookieHeader)
	}

	resp, err := client.Do(req)
	if err != nil {
		release()
		return nil, nil, classifyTransportError(err)
	}

	return resp, release, nil
}

// build constructs the *http.Client and (if applicable) the underlying
// *http2.Transport for one pool key, wiring the uTLS dialer, the SOCKS
// dialer (if prog.ProxyIsSOCKS), and the HTTP/3 QUIC dialer per
// prog.FingerprintSpec.HTTPVersion.
func (e *Engine) build(prog *options.Program) (*http.Client, *http2.Transport, error) {
	spec := prog.FingerprintSpec

	var rawDial transport.RawDialFunc
	switch {
	case prog.ProxyURL == "":
		// no proxy: rawDial stays nil, UTLSDialer uses its own default dial.
	case prog.ProxyIsSOCKS:
		sd, err := transport.NewSOCKSDialer(prog.ProxyURL)
		if err != nil {
			return nil, nil, fmt.Errorf("engine: build socks dialer: %w", err)
		}
		rawDial = sd.DialContext
	default:
		hd, err := transport.NewHTTPProxyDialer(prog.ProxyURL)
		if err != nil {
			return nil, nil, fmt.Errorf("engine: build http proxy dialer: %w", err)
		}
		rawDial = hd.DialContext
	}

	switch spec.HTTPVersion {
	case fingerprint.HTTPVersion3, fingerprint.HTTPVersion3Only:
		rt, err := e.buildH3RoundTripper(spec)
		if err != nil {
			return nil, nil, err
		}
		return &http.Client{Transport: rt, CheckRedirect: noRedirect(prog)}, nil, nil

	case fingerprint.HTTPVersion1:
		rt, err := e.buildH1RoundTripper(prog, rawDial)
		if err != nil {
			return nil, nil, err
		}
		return &http.Client{Transport: rt, CheckRedirect: noRedirect(prog)}, nil, nil

	default: // HTTPVersion2 negotiated via ALPN, falls back to h1 if the server doesn't offer h2
		dial := withConnectTimeout(buildDialTLS(spec, rawDial), prog.ConnectTimeout)
		h2t := transport.H2Transport(spec, dial)
		h2t.TLSClientConfig = tlsConfigFor(prog)
		rt := &negotiatingRoundTripper{
			h2: h2t,
			h1: e.buildPlainH1Transport(prog, dial),
		}
		return &http.Client{Transport: rt, CheckRedirect: noRedirect(prog)}, h2t, nil
	}
}

// tlsConfigFor builds the *tls.Config handed to the uTLS dialer on both
// the h2 path (as h2t.TLSClientConfig) and the h1 path
// (buildPlainH1Transport), so prog.TLSVerify/CACert/ClientCert reach every
// dial.
func tlsConfigFor(prog *options.Program) *tls.Config {
	cfg := &tls.Config{InsecureSkipVerify: !prog.TLSVerify}
	if prog.CACert != "" {
		if pem, err := os.ReadFile(prog.CACert); err == nil {
			pool := x509.NewCertPool()
			if pool.AppendCertsFromPEM(pem) {
				cfg.RootCAs = pool
			}
		}
	}
	if prog.ClientCert != "" && prog.ClientKey != "" {
		if cert, err := tls.LoadX509KeyPair(prog.ClientCert, prog.ClientKey); err == nil {
			cfg.Certificates = []tls.Certificate{cert}
		}
	}
	return cfg
}

func buildDialTLS(spec fingerprint.Spec, rawDial transport.RawDialFunc) transport.DialTLSFunc {
	if rawDial != nil {
		return transport.UTLSDialerWithRawDial(spec, rawDial)
	}
	return transport.UTLSDialer(spec)
}

// withConnectTimeout bounds dial (the raw TCP/proxy dial plus the TLS
// handshake, which UTLSDialerWithRawDial performs as one synchronous
// step) to prog.ConnectTimeout, separately from the overall
// prog.TotalTimeout context Execute applies. A dial that fails because
// this sub-context expired is reported as *ConnectTimeoutError rather
// than the generic connect/TLS failure classifyTransportError would
// otherwise produce, so a caller can tell "never connected in time"
// apart from "connection refused" or "certificate invalid".
func withConnectTimeout(dial transport.DialTLSFunc, timeout time.Duration) transport.DialTLSFunc {
	if timeout <= 0 {
		return dial
	}
	return func(ctx context.Context, network, addr string, tlsCfg *tls.Config) (net.Conn, error) {
		dialCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		conn, err := dial(dialCtx, network, addr, tlsCfg)
		if err != nil && dialCtx.Err() == context.DeadlineExceeded {
			return nil, &ConnectTimeoutError{Err: err}
		}
		return conn, err
	}
}

func (e *Engine) buildH1RoundTripper(prog *options.Program, rawDial transport.RawDialFunc) (http.RoundTripper, error) {
	dial := withConnectTimeout(buildDialTLS(prog.FingerprintSpec, rawDial), prog.ConnectTimeout)
	return e.buildPlainH1Transport(prog, dial), nil
}

func (e *Engine) buildPlainH1Transport(prog *options.Program, dial transport.DialTLSFunc) *http.Transport {
	tlsCfg := tlsConfigFor(prog)
	return &http.Transport{
		DialTLSContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			return dial(ctx, network, addr, tlsCfg)
		},
		ForceAttemptHTTP2:     false,
		IdleConnTimeout:       90 * time.Second,
		MaxIdleConnsPerHost:   8,
		ResponseHeaderTimeout: 0,
	}
}

func (e *Engine) buildH3RoundTripper(spec fingerprint.Spec) (http.RoundTripper, error) {
	return transport.NewH3RoundTripper(spec)
}

// negotiatingRoundTripper tries HTTP/2 first (the common case for modern
// browser fingerprints) and falls back to HTTP/1.1 when the server's ALPN
// selection wasn't h2. This is necessary because http2.Transport alone
// refuses to dial a server that didn't negotiate h2, but a caller that
// asked for a Chrome-like fingerprint still expects plain HTTP/1.1 sites
// to work.
type negotiatingRoundTripper struct {
	h2 *http2.Transport
	h1 *http.Transport
}

func (n *negotiatingRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := n.h2.RoundTrip(req)
	if err == nil {
		return resp, nil
	}
	if isALPNMismatch(err) {
		return n.h1.RoundTrip(req)
	}
	return resp, err
}

func isALPNMismatch(err error) bool {
	return err != nil && strings.Contains(err.Error(), "http2: unsupported scheme") ||
		err != nil && strings.Contains(err.Error(), "server didn't respond with protocol")
}

// noRedirect always stops net/http's own redirect following at the first
// 3xx, regardless of prog.FollowRedirects: the caller (session.go) drives
// the redirect loop itself so it can record each hop into
// response.Response.History and enforce prog.MaxRedirects exactly, which
// net/http's built-in CheckRedirect==nil behavior cannot give us (it
// discards intermediate responses as it follows them).
func noRedirect(prog *options.Program) func(*http.Request, []*http.Request) error {
	return func(req *http.Request, via []*http.Request) error {
		return http.ErrUseLastResponse
	}
}

// classifyTransportError sorts a failed client.Do into the categories
// session.go's classifyEngineError switches on to build the exported
// *masq.TransportError family (connect vs TLS vs proxy vs timeout),
// keeping the concrete error types in this package so it stays free of a
// dependency on the root masq package.
func classifyTransportError(err error) error {
	var connectTimeout *ConnectTimeoutError
	if errors.As(err, &connectTimeout) {
		return connectTimeout
	}

	var proxyErr *transport.ProxyDialError
	if errors.As(err, &proxyErr) {
		return &ProxyError{Err: err}
	}

	if isTLSError(err) {
		return &TLSError{Err: err}
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		if urlErr.Timeout() {
			return &ReadTimeoutError{Err: err}
		}
		var netErr *net.OpError
		if errors.As(err, &netErr) && netErr.Op == "dial" {
			return &ConnectError{Err: err}
		}
	}

	return &RequestError{Err: err}
}

// isTLSError reports whether err is (or wraps) one of the certificate or
// handshake failures x509/crypto-tls raise once a TCP connection is
// already open, so classifyTransportError can tell those apart from a
// plain connect failure.
func isTLSError(err error) bool {
	var hostErr x509.HostnameError
	if errors.As(err, &hostErr) {
		return true
	}
	var authErr x509.UnknownAuthorityError
	if errors.As(err, &authErr) {
		return true
	}
	var certErr x509.CertificateInvalidError
	if errors.As(err, &certErr) {
		return true
	}
	var rootsErr x509.SystemRootsError
	if errors.As(err, &rootsErr) {
		return true
	}
	var verifyErr *tls.CertificateVerificationError
	if errors.As(err, &verifyErr) {
		return true
	}
	var recErr tls.RecordHeaderError
	if errors.As(err, &recErr) {
		return true
	}
	return false
}
