package options

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/masqhttp/masq/fingerprint"
)

func newTestCompiler(t *testing.T) *Compiler {
	t.Helper()
	return NewCompiler(fingerprint.NewRegistry(), nil)
}

func TestCompileDefaultsToGETAndChrome(t *testing.T) {
	c := newTestCompiler(t)
	prog, err := c.Compile(Input{URL: "https://example.com/"})
	require.NoError(t, err)
	require.Equal(t, "GET", prog.Method)
	require.Equal(t, "Chrome", prog.FingerprintSpec.Client)
}

func TestCompileAppliesQueryParams(t *testing.T) {
	c := newTestCompiler(t)
	prog, err := c.Compile(Input{
		URL:    "https://example.com/search",
		Params: map[string][]string{"q": {"go lang"}},
	})
	require.NoError(t, err)
	require.Equal(t, "https://example.com/search?q=go+lang", prog.URL)
}

func TestCompileJSONBodySetsContentType(t *testing.T) {
	c := newTestCompiler(t)
	prog, err := c.Compile(Input{
		Method: "POST",
		URL:    "https://example.com/api",
		JSON:   map[string]string{"a": "b"},
	})
	require.NoError(t, err)
	require.Equal(t, "application/json", prog.Headers.Get("Content-Type"))
	require.NotZero(t, prog.BodyLen)
}

func TestCompileFormBodySetsURLEncodedContentTypeOnlyForNonPOST(t *testing.T) {
	c := newTestCompiler(t)

	postProg, err := c.Compile(Input{
		Method: "POST",
		URL:    "https://example.com/api",
		Form:   map[string][]string{"a": {"b"}},
	})
	require.NoError(t, err)
	require.Empty(t, postProg.Headers.Get("Content-Type"))

	putProg, err := c.Compile(Input{
		Method: "PUT",
		URL:    "https://example.com/api",
		Form:   map[string][]string{"a": {"b"}},
	})
	require.NoError(t, err)
	require.Equal(t, "application/x-www-form-urlencoded", putProg.Headers.Get("Content-Type"))
}

func TestCompileHostHeaderStrippedUnlessPreserveHost(t *testing.T) {
	c := newTestCompiler(t)

	stripped, err := c.Compile(Input{
		URL:     "https://example.com/",
		Headers: map[string][]string{"Host": {"evil.example"}},
	})
	require.NoError(t, err)
	require.Empty(t, stripped.Headers.Get("Host"))

	kept, err := c.Compile(Input{
		URL:          "https://example.com/",
		Headers:      map[string][]string{"Host": {"evil.example"}},
		PreserveHost: true,
	})
	require.NoError(t, err)
	require.Equal(t, "evil.example", kept.Headers.Get("Host"))
}

func TestCompileCookiesJoinedInOrder(t *testing.T) {
	c := newTestCompiler(t)
	prog, err := c.Compile(Input{
		URL: "https://example.com/",
		Cookies: []CookiePair{
			{Name: "a", Value: "1"},
			{Name: "b", Value: "2"},
		},
	})
	require.NoError(t, err)
	require.Equal(t, "a=1; b=2", prog.CookieHeader)
}

func TestCompileHeadSetsNoBody(t *testing.T) {
	c := newTestCompiler(t)
	prog, err := c.Compile(Input{Method: "HEAD", URL: "https://example.com/"})
	require.NoError(t, err)
	require.True(t, prog.NoBody)
}

func TestCompileProxySOCKSDetection(t *testing.T) {
	c := newTestCompiler(t)
	prog, err := c.Compile(Input{URL: "https://example.com/", ProxyURL: "socks5://127.0.0.1:1080"})
	require.NoError(t, err)
	require.True(t, prog.ProxyIsSOCKS)

	prog2, err := c.Compile(Input{URL: "https://example.com/", ProxyURL: "http://127.0.0.1:8080"})
	require.NoError(t, err)
	require.False(t, prog2.ProxyIsSOCKS)
}

func TestCompileHTTPVersionOverridesImpersonateAfterTheFact(t *testing.T) {
	c := newTestCompiler(t)
	prog, err := c.Compile(Input{
		URL:         "https://example.com/",
		Impersonate: "chrome131",
		HTTPVersion: fingerprint.HTTPVersion1,
	})
	require.NoError(t, err)
	require.Equal(t, fingerprint.HTTPVersion1, prog.FingerprintSpec.HTTPVersion)
}

func TestCompileUnknownImpersonateErrors(t *testing.T) {
	c := newTestCompiler(t)
	_, err := c.Compile(Input{URL: "https://example.com/", Impersonate: "netscape"})
	require.Error(t, err)
}

func TestCompileMultipartFiles(t *testing.T) {
	c := newTestCompiler(t)
	prog, err := c.Compile(Input{
		Method: "POST",
		URL:    "https://example.com/upload",
		Files: []FilePart{
			{FieldName: "file", FileName: "a.txt", Content: strings.NewReader("hello")},
		},
	})
	require.NoError(t, err)
	require.Contains(t, prog.Headers.Get("Content-Type"), "multipart/form-data")
}

func TestCompileDefaultAcceptEncodingIncludesBrotliAndZstd(t *testing.T) {
	c := newTestCompiler(t)
	prog, err := c.Compile(Input{URL: "https://example.com/"})
	require.NoError(t, err)
	require.Contains(t, prog.Headers.Get("Accept-Encoding"), "br")
	require.Contains(t, prog.Headers.Get("Accept-Encoding"), "zstd")
}
