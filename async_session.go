package masq

import (
	"context"

	"github.com/masqhttp/masq/response"
	"github.com/masqhttp/masq/ws"
)

// Result carries one Session.Request outcome back through a channel, the
// Go analog of curl_cffi's asyncio.Future completed from the event loop's
// socket-action callback (async_base.py's AsyncCurl).
type Result struct {
	Response *Response
	Err      error
}

// AsyncSession wraps a Session behind a bounded worker pool: callers get
// a future-like channel back immediately, and concurrency is bounded by
// a semaphore of the size given to NewAsyncSession rather than by however
// many goroutines happen to be live.
type AsyncSession struct {
	session *Session
	sem     chan struct{}
}

// NewAsyncSession returns an AsyncSession sharing one underlying Session.
// concurrency bounds how many requests may be in flight at once;
// concurrency<=0 defaults to 64, matching Session's own pool size.
func NewAsyncSession(concurrency int, opts ...RequestOption) *AsyncSession {
	if concurrency <= 0 {
		concurrency = 64
	}
	return &AsyncSession{
		session: NewSession(opts...),
		sem:     make(chan struct{}, concurrency),
	}
}

// Request dispatches a request on its own goroutine and returns a channel
// that receives exactly one result once it completes (or ctx is
// cancelled, in which case the channel still receives the resulting
// context error). Acquiring a concurrency slot blocks until one is free
// or ctx is done.
func (a *AsyncSession) Request(ctx context.Context, method, url string, opts ...RequestOption) <-chan Result {
	ch := make(chan Result, 1)
	go func() {
		select {
		case a.sem <- struct{}{}:
		case <-ctx.Done():
			ch <- Result{Err: ctx.Err()}
			return
		}
		defer func() { <-a.sem }()

		resp, err := a.session.Request(ctx, method, url, opts...)
		ch <- Result{Response: resp, Err: err}
	}()
	return ch
}

// Stream mirrors Request but for Session.Stream.
func (a *AsyncSession) Stream(ctx context.Context, method, url string, opts ...RequestOption) (<-chan *response.Stream, <-chan error) {
	streamCh := make(chan *response.Stream, 1)
	errCh := make(chan error, 1)
	go func() {
		select {
		case a.sem <- struct{}{}:
		case <-ctx.Done():
			errCh <- ctx.Err()
			return
		}
		defer func() { <-a.sem }()

		s, err := a.session.Stream(ctx, method, url, opts...)
		if err != nil {
			errCh <- err
			return
		}
		streamCh <- s
	}()
	return streamCh, errCh
}

// WSConnect mirrors Session.WSConnect.
func (a *AsyncSession) WSConnect(ctx context.Context, url string, opts ...RequestOption) (<-chan *ws.WebSocket, <-chan error) {
	connCh := make(chan *ws.WebSocket, 1)
	errCh := make(chan error, 1)
	go func() {
		select {
		case a.sem <- struct{}{}:
		case <-ctx.Done():
			errCh <- ctx.Err()
			return
		}
		defer func() { <-a.sem }()

		conn, _, _, err := a.session.WSConnect(ctx, url, opts...)
		if err != nil {
			errCh <- err
			return
		}
		connCh <- conn
	}()
	return connCh, errCh
}

// Close closes the underlying Session.
func (a *AsyncSession) Close() error { return a.session.Close() }
