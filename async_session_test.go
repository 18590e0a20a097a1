package masq

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAsyncSessionRequestDeliversResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("async-ok"))
	}))
	defer srv.Close()

	a := NewAsyncSession(4, WithImpersonate("chrome131"))
	defer a.Close()

	ch := a.Request(context.Background(), "GET", srv.URL)
	res := <-ch
	require.NoError(t, res.Err)
	require.Equal(t, "async-ok", string(res.Response.Content()))
}

func TestAsyncSessionBoundsConcurrency(t *testing.T) {
	var inFlight int32
	var maxSeen int32
	release := make(chan struct{})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			cur := atomic.LoadInt32(&maxSeen)
			if n <= cur || atomic.CompareAndSwapInt32(&maxSeen, cur, n) {
				break
			}
		}
		<-release
		atomic.AddInt32(&inFlight, -1)
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	const concurrency = 2
	a := NewAsyncSession(concurrency, WithImpersonate("chrome131"))
	defer a.Close()

	chans := make([]<-chan Result, 0, 5)
	for i := 0; i < 5; i++ {
		chans = append(chans, a.Request(context.Background(), "GET", srv.URL))
	}

	time.Sleep(100 * time.Millisecond)
	require.LessOrEqual(t, atomic.LoadInt32(&maxSeen), int32(concurrency))

	close(release)
	for _, ch := range chans {
		res := <-ch
		require.NoError(t, res.Err)
	}
}

func TestAsyncSessionRequestRespectsContextCancellation(t *testing.T) {
	a := NewAsyncSession(1)
	defer a.Close()

	// Occupy the single slot so the next call must block on ctx instead.
	blockCh := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-blockCh
		w.Write([]byte("ok"))
	}))
	defer srv.Close()
	defer close(blockCh)

	_ = a.Request(context.Background(), "GET", srv.URL)
	time.Sleep(20 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ch := a.Request(ctx, "GET", srv.URL)
	res := <-ch
	require.Error(t, res.Err)
	require.ErrorIs(t, res.Err, context.Canceled)
}
