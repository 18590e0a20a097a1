package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

// echoServer upgrades every connection and echoes back whatever it reads,
// closing on an empty Close message like S6's scenario server.
func echoServer(t *testing.T) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()
		for {
			mt, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if err := conn.WriteMessage(mt, data); err != nil {
				return
			}
		}
	}))
}

func dialDirect(t *testing.T, srv *httptest.Server) *WebSocket {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	return &WebSocket{conn: conn}
}

func TestSendRecvEcho(t *testing.T) {
	srv := echoServer(t)
	defer srv.Close()

	w := dialDirect(t, srv)
	defer w.Close(websocket.CloseNormalClosure, "")

	require.NoError(t, w.Send([]byte("Foo")))
	msg, err := w.Recv(context.Background())
	require.NoError(t, err)
	require.True(t, msg.Binary)
	require.Equal(t, []byte("Foo"), msg.Data)
}

func TestSendStrEcho(t *testing.T) {
	srv := echoServer(t)
	defer srv.Close()

	w := dialDirect(t, srv)
	defer w.Close(websocket.CloseNormalClosure, "")

	require.NoError(t, w.SendStr("hello"))
	msg, err := w.Recv(context.Background())
	require.NoError(t, err)
	require.False(t, msg.Binary)
	require.Equal(t, "hello", string(msg.Data))
}

func TestSendJSONEcho(t *testing.T) {
	srv := echoServer(t)
	defer srv.Close()

	w := dialDirect(t, srv)
	defer w.Close(websocket.CloseNormalClosure, "")

	require.NoError(t, w.SendJSON(map[string]int{"a": 1}))
	msg, err := w.Recv(context.Background())
	require.NoError(t, err)
	require.JSONEq(t, `{"a":1}`, string(msg.Data))
}

func TestCloseIsIdempotent(t *testing.T) {
	srv := echoServer(t)
	defer srv.Close()

	w := dialDirect(t, srv)
	require.NoError(t, w.Close(websocket.CloseNormalClosure, "bye"))
	require.NoError(t, w.Close(websocket.CloseNormalClosure, "bye"))
}

func TestRecvAfterServerCloseReturnsClosedError(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done"))
		conn.Close()
	}))
	defer srv.Close()

	w := dialDirect(t, srv)
	defer w.Close(websocket.CloseNormalClosure, "")

	_, err := w.Recv(context.Background())
	require.Error(t, err)
	var closed *ClosedError
	require.ErrorAs(t, err, &closed)
}

func TestRecvRespectsContextDeadline(t *testing.T) {
	srv := echoServer(t)
	defer srv.Close()

	w := dialDirect(t, srv)
	defer w.Close(websocket.CloseNormalClosure, "")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := w.Recv(ctx) // nothing sent, server never writes unprompted
	require.Error(t, err)
	var timeout *TimeoutError
	require.ErrorAs(t, err, &timeout)
}
