package masq

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/masqhttp/masq/response"
)

func TestSessionRequestFollowsRedirectAndRecordsHistory(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		if r.URL.Path == "/start" {
			http.Redirect(w, r, "/end", http.StatusFound)
			return
		}
		w.Write([]byte("done"))
	}))
	defer srv.Close()

	s := NewSession(WithImpersonate("chrome131"))
	defer s.Close()

	resp, err := s.Request(context.Background(), "GET", srv.URL+"/start")
	require.NoError(t, err)
	require.Equal(t, 200, resp.StatusCode)
	require.Equal(t, "done", string(resp.Content()))
	require.Len(t, resp.History, 1)
	require.Equal(t, 302, resp.History[0].StatusCode)
	require.Equal(t, 2, hits)
}

func TestSessionRequestEnforcesMaxRedirectsAtExactDepth(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, srv.URL+"/next", http.StatusFound)
	}))
	defer srv.Close()

	s := NewSession(WithImpersonate("chrome131"))
	defer s.Close()

	_, err := s.Request(context.Background(), "GET", srv.URL, WithMaxRedirects(2))
	require.Error(t, err)
	var tooMany *response.TooManyRedirectsError
	require.ErrorAs(t, err, &tooMany)
	require.Equal(t, 2, tooMany.Limit)
}

func TestSessionRequestDowngradesPOSTOn302(t *testing.T) {
	var gotMethod string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/submit" {
			http.Redirect(w, r, "/landed", http.StatusFound)
			return
		}
		gotMethod = r.Method
		buf := make([]byte, 16)
		n, _ := r.Body.Read(buf)
		gotBody = buf[:n]
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	s := NewSession(WithImpersonate("chrome131"))
	defer s.Close()

	resp, err := s.Request(context.Background(), "POST", srv.URL+"/submit", WithBytes([]byte("payload")))
	require.NoError(t, err)
	require.Equal(t, 200, resp.StatusCode)
	require.Equal(t, "GET", gotMethod)
	require.Empty(t, gotBody)
}

func TestSessionRequestPreserves307Method(t *testing.T) {
	var gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/submit" {
			http.Redirect(w, r, "/landed", http.StatusTemporaryRedirect)
			return
		}
		gotMethod = r.Method
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	s := NewSession(WithImpersonate("chrome131"))
	defer s.Close()

	resp, err := s.Request(context.Background(), "POST", srv.URL+"/submit", WithBytes([]byte("payload")))
	require.NoError(t, err)
	require.Equal(t, 200, resp.StatusCode)
	require.Equal(t, "POST", gotMethod)
}

func TestSessionRequestRejectsAfterClose(t *testing.T) {
	s := NewSession()
	require.NoError(t, s.Close())

	_, err := s.Request(context.Background(), "GET", "http://example.invalid/")
	require.Error(t, err)
	var closedErr *SessionClosedError
	require.ErrorAs(t, err, &closedErr)

	require.NoError(t, s.Close()) // idempotent
}

func TestSessionCookiesRoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "sid", Value: "abc123"})
		w.Write([]byte("set"))
	}))
	defer srv.Close()

	s := NewSession(WithImpersonate("chrome131"))
	defer s.Close()

	_, err := s.Request(context.Background(), "GET", srv.URL)
	require.NoError(t, err)

	var found bool
	for _, m := range s.Cookies() {
		if m.Name == "sid" && m.Value == "abc123" {
			found = true
		}
	}
	require.True(t, found)
}

func TestSessionImpersonationsListsRegisteredNames(t *testing.T) {
	s := NewSession()
	defer s.Close()

	names := s.Impersonations()
	require.NotEmpty(t, names)
}

func TestSessionStreamDeliversBodyIncrementally(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("chunk-data"))
	}))
	defer srv.Close()

	s := NewSession(WithImpersonate("chrome131"))
	defer s.Close()

	st, err := s.Stream(context.Background(), "GET", srv.URL)
	require.NoError(t, err)
	defer st.Close()

	var got []byte
	err = st.IterContent(func(b []byte) error {
		got = append(got, b...)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, "chunk-data", string(got))
}

func TestMergeRequestScalarAndMapPrecedence(t *testing.T) {
	def := Request{
		AllowRedirects: true,
		MaxRedirects:   30,
		Verify:         true,
		Timeout:        5 * time.Second,
		Headers:        map[string][]string{"X-Default": {"1"}},
	}
	call := Request{
		Timeout: 10 * time.Second,
		Headers: map[string][]string{"X-Call": {"2"}},
	}

	merged := mergeRequest(def, call)
	require.Equal(t, 10*time.Second, merged.Timeout)
	require.True(t, merged.AllowRedirects)
	require.Equal(t, 30, merged.MaxRedirects)
	require.Equal(t, []string{"1"}, merged.Headers["X-Default"])
	require.Equal(t, []string{"2"}, merged.Headers["X-Call"])
}

func TestMergeRequestCallOverridesScalarWhenDifferentFromDefault(t *testing.T) {
	def := Request{AllowRedirects: true, Verify: true}
	call := Request{AllowRedirects: false, Verify: false}

	merged := mergeRequest(def, call)
	require.False(t, merged.AllowRedirects)
	require.False(t, merged.Verify)
}

func TestInjectProxyAuthSetsUserinfo(t *testing.T) {
	out, err := injectProxyAuth("http://proxy.example:8080", "alice:secret")
	require.NoError(t, err)
	require.Contains(t, out, "alice:secret@")
}
