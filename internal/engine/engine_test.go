package engine

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"net"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/masqhttp/masq/fingerprint"
	"github.com/masqhttp/masq/internal/options"
	"github.com/masqhttp/masq/internal/transport"
)

func TestPoolKeyDiffersByFingerprintAndProxy(t *testing.T) {
	base := &options.Program{FingerprintSpec: fingerprint.Spec{Client: "chrome131"}}
	withProxy := &options.Program{FingerprintSpec: fingerprint.Spec{Client: "chrome131"}, ProxyURL: "http://127.0.0.1:8080"}
	otherFP := &options.Program{FingerprintSpec: fingerprint.Spec{Client: "firefox121"}}

	require.NotEqual(t, poolKey(base), poolKey(withProxy))
	require.NotEqual(t, poolKey(base), poolKey(otherFP))
	require.Equal(t, poolKey(base), poolKey(&options.Program{FingerprintSpec: fingerprint.Spec{Client: "chrome131"}}))
}

func TestNoRedirectAlwaysStopsAtFirstHop(t *testing.T) {
	// noRedirect always returns ErrUseLastResponse regardless of
	// FollowRedirects: the caller (session.go) drives the redirect loop
	// itself so it can build Response.History and enforce MaxRedirects.
	for _, follow := range []bool{true, false} {
		fn := noRedirect(&options.Program{FollowRedirects: follow})
		require.NotNil(t, fn)
		err := fn(&http.Request{}, nil)
		require.ErrorIs(t, err, http.ErrUseLastResponse)
	}
}

func TestClassifyTransportErrorWrapsTimeout(t *testing.T) {
	err := classifyTransportError(&url.Error{Op: "Get", URL: "https://example.com", Err: timeoutErr{}})
	require.Error(t, err)
	require.Contains(t, err.Error(), "timeout")
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestClassifyTransportErrorWrapsGenericFailure(t *testing.T) {
	err := classifyTransportError(errors.New("boom"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "request failed")

	var generic *RequestError
	require.ErrorAs(t, err, &generic)
}

func TestClassifyTransportErrorDiscriminatesConnectFailure(t *testing.T) {
	err := classifyTransportError(&url.Error{Op: "Get", URL: "https://example.com", Err: &net.OpError{Op: "dial", Err: errors.New("connection refused")}})

	var connectErr *ConnectError
	require.ErrorAs(t, err, &connectErr)
}

func TestClassifyTransportErrorDiscriminatesProxyFailure(t *testing.T) {
	err := classifyTransportError(&url.Error{Op: "Get", URL: "https://example.com", Err: &transport.ProxyDialError{Addr: "127.0.0.1:1080", Err: errors.New("refused")}})

	var proxyErr *ProxyError
	require.ErrorAs(t, err, &proxyErr)
}

func TestClassifyTransportErrorDiscriminatesTLSFailure(t *testing.T) {
	err := classifyTransportError(&url.Error{Op: "Get", URL: "https://example.com", Err: x509.HostnameError{Certificate: &x509.Certificate{}, Host: "example.com"}})

	var tlsErr *TLSError
	require.ErrorAs(t, err, &tlsErr)
}

func TestClassifyTransportErrorDiscriminatesConnectTimeout(t *testing.T) {
	wrapped := &net.OpError{Op: "dial", Err: &ConnectTimeoutError{Err: errors.New("context deadline exceeded")}}
	err := classifyTransportError(&url.Error{Op: "Get", URL: "https://example.com", Err: wrapped})

	var connTimeout *ConnectTimeoutError
	require.ErrorAs(t, err, &connTimeout)
}

func TestWithConnectTimeoutWrapsDeadlineExceeded(t *testing.T) {
	dial := func(ctx context.Context, network, addr string, tlsCfg *tls.Config) (net.Conn, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	wrapped := withConnectTimeout(dial, time.Millisecond)

	_, err := wrapped(context.Background(), "tcp", "example.com:443", nil)
	var connTimeout *ConnectTimeoutError
	require.ErrorAs(t, err, &connTimeout)
}

func TestWithConnectTimeoutPassesThroughWhenDisabled(t *testing.T) {
	wanted := errors.New("boom")
	dial := func(ctx context.Context, network, addr string, tlsCfg *tls.Config) (net.Conn, error) {
		return nil, wanted
	}
	wrapped := withConnectTimeout(dial, 0)

	_, err := wrapped(context.Background(), "tcp", "example.com:443", nil)
	require.Same(t, wanted, err)
}
