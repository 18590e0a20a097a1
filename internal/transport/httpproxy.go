package transport

import (
	"bufio"
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"net/url"
)

// HTTPProxyDialer tunnels a raw TCP connection through an HTTP/HTTPS
// forward proxy via CONNECT, the non-SOCKS half of spec.md §4.C rule 6:
// a SOCKS proxy speaks its own framing and needs no CONNECT, but any
// other proxy scheme does.
type HTTPProxyDialer struct {
	proxyURL *url.URL
}

// NewHTTPProxyDialer builds an HTTPProxyDialer from a "http://" or
// "https://" proxy URL, optionally carrying Basic-auth userinfo.
func NewHTTPProxyDialer(proxyURL string) (*HTTPProxyDialer, error) {
	u, err := url.Parse(proxyURL)
	if err != nil {
		return nil, fmt.Errorf("transport: parse proxy url: %w", err)
	}
	return &HTTPProxyDialer{proxyURL: u}, nil
}

// DialContext connects to the proxy, issues CONNECT addr, and returns the
// tunnel once the proxy answers 200. The returned net.Conn is a plain TCP
// (or proxy-TLS, if the proxy scheme itself is https) connection ready for
// the caller to layer its own TLS handshake with the origin on top of.
func (d *HTTPProxyDialer) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	var dialer net.Dialer
	proxyAddr := d.proxyURL.Host
	if d.proxyURL.Port() == "" {
		if d.proxyURL.Scheme == "https" {
			proxyAddr = net.JoinHostPort(d.proxyURL.Hostname(), "443")
		} else {
			proxyAddr = net.JoinHostPort(d.proxyURL.Hostname(), "80")
		}
	}

	conn, err := dialer.DialContext(ctx, network, proxyAddr)
	if err != nil {
		return nil, &ProxyDialError{Addr: proxyAddr, Err: err}
	}
	if d.proxyURL.Scheme == "https" {
		tlsConn := tls.Client(conn, &tls.Config{ServerName: d.proxyURL.Hostname()})
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			conn.Close()
			return nil, &ProxyDialError{Addr: proxyAddr, Err: fmt.Errorf("tls handshake with proxy: %w", err)}
		}
		conn = tlsConn
	}

	req := &http.Request{
		Method: "CONNECT",
		URL:    &url.URL{Opaque: addr},
		Host:   addr,
		Header: make(http.Header),
	}
	if user := d.proxyURL.User; user != nil {
		password, _ := user.Password()
		req.SetBasicAuth(user.Username(), password)
	}

	if err := req.Write(conn); err != nil {
		conn.Close()
		return nil, &ProxyDialError{Addr: proxyAddr, Err: fmt.Errorf("write connect request: %w", err)}
	}

	resp, err := http.ReadResponse(bufio.NewReader(conn), req)
	if err != nil {
		conn.Close()
		return nil, &ProxyDialError{Addr: proxyAddr, Err: fmt.Errorf("read connect response: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		conn.Close()
		return nil, &ProxyDialError{Addr: proxyAddr, Err: fmt.Errorf("connect to %s: %s", addr, resp.Status)}
	}
	return conn, nil
}
