package masq

import (
	"errors"
	"fmt"

	"github.com/masqhttp/masq/fingerprint"
	"github.com/masqhttp/masq/internal/cookiejar"
	"github.com/masqhttp/masq/internal/engine"
	"github.com/masqhttp/masq/response"
)

// TransportError is the base of the error taxonomy (spec.md §7): it
// carries a stable code and message, plus a partial Response when headers
// were seen before the failure. Grounded on examples/go.go's
// CycleTLSError (Type/Message/Unwrap) generalized from a single flat
// error family into the sub-kinds spec.md §7 names.
type TransportError struct {
	Code     int
	Message  string
	Response *Response
	Err      error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("masq: %s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("masq: %s", e.Message)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ConnectionError is a TransportError subkind for DNS/connect/TLS
// failures.
type ConnectionError struct{ *TransportError }

// SSLError is a ConnectionError subkind for certificate/hostname/trust
// failures.
type SSLError struct{ *ConnectionError }

// ProxyError is a ConnectionError subkind for proxy handshake failures.
type ProxyError struct{ *ConnectionError }

// TimeoutError is the base timeout kind; ConnectTimeoutError and
// ReadTimeoutError narrow it to the phase that expired.
type TimeoutError struct{ *TransportError }

// ConnectTimeoutError fires when the TCP/TLS handshake itself exceeded
// its deadline.
type ConnectTimeoutError struct{ *TimeoutError }

// ReadTimeoutError fires when the response body read exceeded its
// deadline.
type ReadTimeoutError struct{ *TimeoutError }

// classifyEngineError converts the engine-local error kinds
// (internal/engine/errors.go) that Engine.Execute returns into the
// exported taxonomy above, so a caller's errors.As against *SSLError,
// *ProxyError, *ConnectionError, *ConnectTimeoutError, *ReadTimeoutError
// or *TransportError discriminates instead of always failing against an
// opaque fmt.Errorf string. errors.As matches only the exact kind
// returned: a parent kind such as *TimeoutError or *ConnectionError does
// not match a subkind value, since the embedded parent pointer is not part
// of the Unwrap chain. session.go calls this on every error
// engine.Execute returns.
func classifyEngineError(err error) error {
	if err == nil {
		return nil
	}

	var connectTimeout *engine.ConnectTimeoutError
	if errors.As(err, &connectTimeout) {
		return &ConnectTimeoutError{TimeoutError: &TimeoutError{TransportError: &TransportError{
			Message: "connect timed out", Err: err,
		}}}
	}

	var readTimeout *engine.ReadTimeoutError
	if errors.As(err, &readTimeout) {
		return &ReadTimeoutError{TimeoutError: &TimeoutError{TransportError: &TransportError{
			Message: "read timed out", Err: err,
		}}}
	}

	var tlsErr *engine.TLSError
	if errors.As(err, &tlsErr) {
		return &SSLError{ConnectionError: &ConnectionError{TransportError: &TransportError{
			Message: "tls verification failed", Err: err,
		}}}
	}

	var proxyErr *engine.ProxyError
	if errors.As(err, &proxyErr) {
		return &ProxyError{ConnectionError: &ConnectionError{TransportError: &TransportError{
			Message: "proxy failed", Err: err,
		}}}
	}

	var connectErr *engine.ConnectError
	if errors.As(err, &connectErr) {
		return &ConnectionError{TransportError: &TransportError{
			Message: "connect failed", Err: err,
		}}
	}

	var reqErr *engine.RequestError
	if errors.As(err, &reqErr) {
		return &TransportError{Message: "request failed", Err: err}
	}

	return err
}

// TooManyRedirectsError re-exports response.TooManyRedirectsError so
// callers importing only the root package still see the name spec.md §7
// uses.
type TooManyRedirectsError = response.TooManyRedirectsError

// ChunkedEncodingError re-exports response.ChunkedEncodingError.
type ChunkedEncodingError = response.ChunkedEncodingError

// PartialReadError re-exports response.PartialReadError (spec.md §7's
// PartialRead).
type PartialReadError = response.PartialReadError

// HTTPError re-exports response.HTTPError, raised by Response.RaiseForStatus.
type HTTPError = response.HTTPError

// CookieConflictError wraps internal/cookiejar.ConflictError for callers
// that only import the root package.
type CookieConflictError struct {
	*cookiejar.ConflictError
}

// SessionClosedError is returned by any Session operation after Close.
type SessionClosedError struct{}

func (e *SessionClosedError) Error() string { return "masq: session is closed" }

// UnknownImpersonationError wraps fingerprint.UnknownImpersonationError.
type UnknownImpersonationError struct {
	*fingerprint.UnknownImpersonationError
}

// WebSocketClosedError, WebSocketTimeoutError, and WebSocketError mirror
// the ws package's error kinds under root-package names, per spec.md §7.
type WebSocketClosedError struct{ Code int; Reason string; Err error }

func (e *WebSocketClosedError) Error() string {
	return fmt.Sprintf("masq: websocket closed (code %d): %s", e.Code, e.Reason)
}
func (e *WebSocketClosedError) Unwrap() error { return e.Err }

type WebSocketTimeoutError struct{ Err error }

func (e *WebSocketTimeoutError) Error() string { return fmt.Sprintf("masq: websocket timeout: %v", e.Err) }
func (e *WebSocketTimeoutError) Unwrap() error  { return e.Err }

type WebSocketError struct{ Err error }

func (e *WebSocketError) Error() string { return fmt.Sprintf("masq: websocket error: %v", e.Err) }
func (e *WebSocketError) Unwrap() error { return e.Err }
