package engine

import "fmt"

// The types below are the engine-local half of the transport-error
// taxonomy: Engine cannot import the root masq package (masq imports
// engine), so it classifies failures into these concrete kinds and lets
// session.go convert them into the exported *masq.TransportError family
// spec.md §7 names. Each wraps the underlying net/url/tls/x509 error
// untouched, so callers that only care about the stdlib error still get
// it via errors.As/errors.Is.

// ConnectError means the TCP dial (or, for a proxied request, the tunnel
// dial through the proxy) failed before any TLS handshake began.
type ConnectError struct{ Err error }

func (e *ConnectError) Error() string { return fmt.Sprintf("engine: connect failed: %v", e.Err) }
func (e *ConnectError) Unwrap() error { return e.Err }

// TLSError narrows ConnectError to a certificate or handshake failure
// once the TCP connection was already established.
type TLSError struct{ Err error }

func (e *TLSError) Error() string { return fmt.Sprintf("engine: tls handshake failed: %v", e.Err) }
func (e *TLSError) Unwrap() error { return e.Err }

// ProxyError means the forward proxy itself (SOCKS or HTTP CONNECT)
// refused or failed the tunnel, as opposed to the origin server.
type ProxyError struct{ Err error }

func (e *ProxyError) Error() string { return fmt.Sprintf("engine: proxy failed: %v", e.Err) }
func (e *ProxyError) Unwrap() error { return e.Err }

// ConnectTimeoutError fires when the dial+handshake phase exceeded
// prog.ConnectTimeout, before a single request byte reached the server.
type ConnectTimeoutError struct{ Err error }

func (e *ConnectTimeoutError) Error() string { return fmt.Sprintf("engine: connect timeout: %v", e.Err) }
func (e *ConnectTimeoutError) Unwrap() error  { return e.Err }

// ReadTimeoutError fires when prog.TotalTimeout (or the caller's ctx
// deadline) expired after the connection was established.
type ReadTimeoutError struct{ Err error }

func (e *ReadTimeoutError) Error() string { return fmt.Sprintf("engine: read timeout: %v", e.Err) }
func (e *ReadTimeoutError) Unwrap() error  { return e.Err }

// RequestError is the fallback kind for a failure classifyTransportError
// couldn't place into any of the above: still a transport failure, just
// not one of the named sub-kinds spec.md §7 calls out.
type RequestError struct{ Err error }

func (e *RequestError) Error() string { return fmt.Sprintf("engine: request failed: %v", e.Err) }
func (e *RequestError) Unwrap() error  { return e.Err }
