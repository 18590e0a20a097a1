package masq

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestShorthandMethodsDispatchToDefaultSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(r.Method))
	}))
	defer srv.Close()

	cases := []struct {
		name string
		call func(context.Context, string, ...RequestOption) (*Response, error)
		want string
	}{
		{"Get", Get, "GET"},
		{"Post", Post, "POST"},
		{"Put", Put, "PUT"},
		{"Patch", Patch, "PATCH"},
		{"Delete", Delete, "DELETE"},
		{"Options", Options, "OPTIONS"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			resp, err := tc.call(context.Background(), srv.URL, WithImpersonate("chrome131"))
			require.NoError(t, err)
			require.Equal(t, tc.want, string(resp.Content()))
		})
	}
}

func TestShorthandHeadIssuesHeadRequest(t *testing.T) {
	var gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
	}))
	defer srv.Close()

	resp, err := Head(context.Background(), srv.URL, WithImpersonate("chrome131"))
	require.NoError(t, err)
	require.Equal(t, "HEAD", gotMethod)
	require.Equal(t, 200, resp.StatusCode)
}

func TestDefaultReturnsSameSessionAcrossCalls(t *testing.T) {
	require.Same(t, Default(), Default())
}
