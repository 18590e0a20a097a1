package response

import (
	"bytes"
	"compress/gzip"
	"io"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
)

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func nopBody(data []byte) io.ReadCloser {
	return io.NopCloser(bytes.NewReader(data))
}

func TestBuildPlainBody(t *testing.T) {
	resp := &http.Response{
		StatusCode: 200,
		Status:     "200 OK",
		Proto:      "HTTP/1.1",
		Header:     http.Header{"Content-Type": []string{"text/plain; charset=iso-8859-1"}},
		Body:       nopBody([]byte("hello")),
	}

	r, err := Build(resp, mustURL(t, "https://example.com/"), nil, nil, "")
	require.NoError(t, err)
	require.Equal(t, "hello", r.Text())
	require.Equal(t, "iso-8859-1", r.Charset())
}

func TestBuildDecompressesGzip(t *testing.T) {
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	_, err := gw.Write([]byte(`{"ok":true}`))
	require.NoError(t, err)
	require.NoError(t, gw.Close())

	resp := &http.Response{
		StatusCode: 200,
		Status:     "200 OK",
		Header:     http.Header{"Content-Encoding": []string{"gzip"}},
		Body:       nopBody(buf.Bytes()),
	}

	r, err := Build(resp, mustURL(t, "https://example.com/"), nil, nil, "")
	require.NoError(t, err)

	var v struct {
		OK bool `json:"ok"`
	}
	require.NoError(t, r.JSON(&v))
	require.True(t, v.OK)
}

func TestRaiseForStatus(t *testing.T) {
	resp := &http.Response{StatusCode: 404, Status: "404 Not Found", Header: http.Header{}, Body: nopBody(nil)}
	r, err := Build(resp, mustURL(t, "https://example.com/"), nil, nil, "")
	require.NoError(t, err)

	err = r.RaiseForStatus()
	require.Error(t, err)
	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	require.Equal(t, r, httpErr.Response)
}

func TestOkRangeBoundaries(t *testing.T) {
	for _, tc := range []struct {
		status int
		ok     bool
	}{
		{199, false}, {200, true}, {399, true}, {400, false}, {500, false},
	} {
		r := &Response{StatusCode: tc.status}
		require.Equal(t, tc.ok, r.Ok(), "status %d", tc.status)
	}
}

func TestHistoryCarriesRedirectCount(t *testing.T) {
	first := &Response{StatusCode: 301}
	resp := &http.Response{StatusCode: 200, Status: "200 OK", Header: http.Header{}, Body: nopBody(nil)}
	r, err := Build(resp, mustURL(t, "https://example.com/final"), []*Response{first}, nil, "")
	require.NoError(t, err)
	require.Equal(t, 1, r.RedirectCount)
	require.Len(t, r.History, 1)
}
