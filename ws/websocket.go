// Package ws implements the WebSocket component (Component H): recv/send/
// close atop gorilla/websocket's frame codec, with the AGAIN-equivalent
// retry loop and message-iterator of spec.md §4.H. Grounded structurally
// on curl_cffi's requests/websockets.py translated into Go idioms per
// the redesign note in spec.md §9 (blocking recv loop replaced by a
// context-aware read, AGAIN's busy-wait replaced by the underlying
// net.Conn's own read-deadline blocking).
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/masqhttp/masq/fingerprint"
	"github.com/masqhttp/masq/internal/transport"
)

// ClosedError wraps a close frame or underlying connection failure
// observed on Recv, spec.md §7's WebSocketClosed.
type ClosedError struct {
	Code   int
	Reason string
	Err    error
}

func (e *ClosedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("ws: closed: %v", e.Err)
	}
	return fmt.Sprintf("ws: closed (code %d): %s", e.Code, e.Reason)
}

func (e *ClosedError) Unwrap() error { return e.Err }

// TimeoutError wraps a Recv/Send deadline expiry, spec.md §7's
// WebSocketTimeout.
type TimeoutError struct {
	Err error
}

func (e *TimeoutError) Error() string { return fmt.Sprintf("ws: timeout: %v", e.Err) }
func (e *TimeoutError) Unwrap() error { return e.Err }

// GenericError wraps any other transport-level WebSocket failure,
// spec.md §7's WebSocketError.
type GenericError struct {
	Err error
}

func (e *GenericError) Error() string { return fmt.Sprintf("ws: error: %v", e.Err) }
func (e *GenericError) Unwrap() error { return e.Err }

// Message is one assembled WebSocket payload: either text or binary,
// matching gorilla/websocket's message-type split (curl_cffi instead
// exposes a combined bytes+flags tuple; spec.md §4.H's "assembles a
// message by calling the transport's frame-recv in a loop" is the same
// idea, just delegated to gorilla's own fragmentation reassembly rather
// than a manual bytesleft loop).
type Message struct {
	Binary bool
	Data   []byte
}

// WebSocket is one impersonated WebSocket connection.
type WebSocket struct {
	conn *websocket.Conn

	mu     sync.Mutex
	closed bool
}

// Dial opens a WebSocket connection to url impersonating spec's TLS/HTTP
// fingerprint for the Upgrade handshake, per spec.md §4.H.
func Dial(ctx context.Context, spec fingerprint.Spec, rawDial transport.RawDialFunc, url string, header map[string][]string) (*WebSocket, int, map[string][]string, error) {
	conn, resp, err := transport.DialWebSocket(ctx, spec, rawDial, url, http.Header(header))
	if err != nil {
		if resp != nil {
			return nil, resp.StatusCode, map[string][]string(resp.Header), &GenericError{Err: err}
		}
		return nil, 0, nil, &GenericError{Err: err}
	}
	status := 101
	var respHeader map[string][]string
	if resp != nil {
		status = resp.StatusCode
		respHeader = map[string][]string(resp.Header)
	}
	return &WebSocket{conn: conn}, status, respHeader, nil
}

// Recv assembles the next complete message, translating gorilla's
// read-deadline timeouts and close errors into the typed taxonomy
// spec.md §7 describes. gorilla/websocket's ReadMessage already performs
// the frame-loop / fragmentation reassembly spec.md §4.H describes as a
// manual "call frame-recv until bytesleft == 0" loop, so there is no
// AGAIN-equivalent busy-wait to reimplement: a read that would block
// simply blocks on the underlying net.Conn (or returns a timeout error
// if a deadline was set via SetReadDeadline).
func (w *WebSocket) Recv(ctx context.Context) (*Message, error) {
	if dl, ok := ctx.Deadline(); ok {
		_ = w.conn.SetReadDeadline(dl)
	} else {
		_ = w.conn.SetReadDeadline(time.Time{})
	}

	msgType, data, err := w.conn.ReadMessage()
	if err != nil {
		return nil, classifyRecvError(err)
	}
	return &Message{Binary: msgType == websocket.BinaryMessage, Data: data}, nil
}

func classifyRecvError(err error) error {
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		return &ClosedError{Code: closeErr.Code, Reason: closeErr.Text, Err: err}
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &TimeoutError{Err: err}
	}
	if errors.Is(err, websocket.ErrCloseSent) {
		return &ClosedError{Err: err}
	}
	return &GenericError{Err: err}
}

// Send writes data as a single binary-opcode frame (spec.md §4.H's
// BINARY default).
func (w *WebSocket) Send(data []byte) error {
	if err := w.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		return &GenericError{Err: err}
	}
	return nil
}

// SendStr writes s as a single text-opcode frame.
func (w *WebSocket) SendStr(s string) error {
	if err := w.conn.WriteMessage(websocket.TextMessage, []byte(s)); err != nil {
		return &GenericError{Err: err}
	}
	return nil
}

// SendJSON marshals v and sends it as a text frame.
func (w *WebSocket) SendJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return &GenericError{Err: err}
	}
	return w.SendStr(string(data))
}

// Close sends a close frame with code and reason, then drops the
// underlying connection. Idempotent per spec.md §5 ("close frames plus
// cancellation are idempotent; double-close is a no-op").
func (w *WebSocket) Close(code int, reason string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true

	deadline := time.Now().Add(2 * time.Second)
	msg := websocket.FormatCloseMessage(code, reason)
	_ = w.conn.WriteControl(websocket.CloseMessage, msg, deadline)
	return w.conn.Close()
}

// Iter yields assembled messages until the peer closes the connection
// (translated to ClosedError, swallowed here: the iteration just ends),
// matching spec.md §4.H's message iterator.
func (w *WebSocket) Iter(ctx context.Context) func(yield func(*Message, error) bool) {
	return func(yield func(*Message, error) bool) {
		for {
			msg, err := w.Recv(ctx)
			if err != nil {
				var closed *ClosedError
				if errors.As(err, &closed) {
					return
				}
				yield(nil, err)
				return
			}
			if !yield(msg, nil) {
				return
			}
		}
	}
}
