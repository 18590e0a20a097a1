package transport

import (
	"context"
	"crypto/tls"
	"net"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/masqhttp/masq/fingerprint"
)

// DialWebSocket opens a WebSocket connection whose underlying TLS
// handshake is impersonated per spec, using gorilla/websocket for the
// HTTP Upgrade handshake and frame codec (spec.md §4.H). This stands in
// for curl_cffi's ws_recv/ws_send binding in requests/websockets.py: the
// framing responsibilities curl owns internally are delegated here to the
// ecosystem WebSocket library the corpus reaches for.
func DialWebSocket(ctx context.Context, spec fingerprint.Spec, rawDial RawDialFunc, url string, header http.Header) (*websocket.Conn, *http.Response, error) {
	if rawDial == nil {
		rawDial = defaultRawDial
	}
	tlsDial := UTLSDialerWithRawDial(spec, rawDial)

	dialer := &websocket.Dialer{
		NetDialContext: rawDial,
		NetDialTLSContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			return tlsDial(ctx, network, addr, &tls.Config{ServerName: sniFromAddr(addr)})
		},
	}

	return dialer.DialContext(ctx, url, header)
}

func sniFromAddr(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}
