package masq

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWithHeaderAppendsAcrossCalls(t *testing.T) {
	var r Request
	WithHeader("X-A", "1")(&r)
	WithHeader("X-A", "2")(&r)
	WithHeader("X-B", "3")(&r)

	require.Equal(t, []string{"1", "2"}, r.Headers["X-A"])
	require.Equal(t, []string{"3"}, r.Headers["X-B"])
}

func TestWithCookieInitializesMapLazily(t *testing.T) {
	var r Request
	require.Nil(t, r.Cookies)

	WithCookie("sid", "abc")(&r)
	WithCookie("theme", "dark")(&r)

	require.Equal(t, "abc", r.Cookies["sid"])
	require.Equal(t, "dark", r.Cookies["theme"])
}

func TestWithRawOptionInitializesMapLazily(t *testing.T) {
	var r Request
	WithRawOption("low_speed_limit", 1000)(&r)
	require.Equal(t, 1000, r.RawOptions["low_speed_limit"])
}

func TestWithAuthSetsBothFields(t *testing.T) {
	var r Request
	WithAuth("bob", "hunter2")(&r)
	require.Equal(t, "bob", r.Username)
	require.Equal(t, "hunter2", r.Password)
}

func TestWithClientCertSetsBothPaths(t *testing.T) {
	var r Request
	WithClientCert("/tmp/client.pem", "/tmp/client.key")(&r)
	require.Equal(t, "/tmp/client.pem", r.ClientCert)
	require.Equal(t, "/tmp/client.key", r.ClientKey)
}
