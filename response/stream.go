package response

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"sync"
)

// chunk is one queue entry: either a body fragment, the terminating
// sentinel (Done == true), or a terminal error.
type chunk struct {
	data []byte
	err  error
	done bool
}

// Stream is the streaming counterpart to Response (§4.G): a write
// callback (fed by the engine reading resp.Body) enqueues chunks into a
// bounded channel; a consumer goroutine is not needed since callers pull
// directly, the same way curl_cffi's queue.Queue is pulled from the
// awaiting coroutine. Backpressure comes from the channel's capacity: once
// it's full, the feeding goroutine blocks, which in turn blocks body
// reads from the wire.
type Stream struct {
	StatusCode int
	Status     string
	Header     http.Header
	URL        *url.URL
	Trace      map[string]any

	queue  chan chunk
	closed chan struct{}
	once   sync.Once
	body   io.ReadCloser
}

// NewStream starts feeding resp.Body into a Stream with the given queue
// depth (the bound providing backpressure). The feed goroutine exits when
// the body is exhausted, an error occurs, or Close is called.
func NewStream(ctx context.Context, resp *http.Response, reqURL *url.URL, trace map[string]any, queueDepth int) *Stream {
	if queueDepth <= 0 {
		queueDepth = 16
	}
	s := &Stream{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Header:     resp.Header,
		URL:        reqURL,
		Trace:      trace,
		queue:      make(chan chunk, queueDepth),
		closed:     make(chan struct{}),
		body:       resp.Body,
	}
	go s.feed(ctx)
	return s
}

// feed reads resp.Body in fixed-size reads and enqueues each as a chunk,
// enqueuing the terminating sentinel on EOF or a typed error otherwise —
// the write-callback half of spec.md §4.G's protocol. Closing s (the
// "quit" flag) makes feed stop reading and enqueue an abort sentinel
// instead, mirroring "the next write-callback returns a caller-aborts
// sentinel".
func (s *Stream) feed(ctx context.Context) {
	defer s.body.Close()
	defer close(s.queue)
	buf := make([]byte, 32*1024)
	for {
		select {
		case <-s.closed:
			s.enqueue(chunk{err: errAborted, done: true})
			return
		case <-ctx.Done():
			s.enqueue(chunk{err: ctx.Err(), done: true})
			return
		default:
		}

		n, err := s.body.Read(buf)
		if n > 0 {
			cp := make([]byte, n)
			copy(cp, buf[:n])
			if !s.enqueue(chunk{data: cp}) {
				return
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				s.enqueue(chunk{done: true})
			} else {
				s.enqueue(chunk{err: &ChunkedEncodingError{Err: err}, done: true})
			}
			return
		}
	}
}

// enqueue pushes c onto the queue, returning false if the stream was
// closed first (caller should stop feeding).
func (s *Stream) enqueue(c chunk) bool {
	select {
	case s.queue <- c:
		return true
	case <-s.closed:
		return false
	}
}

var errAborted = errors.New("response: stream closed by caller")

// Next pulls the next body fragment, returning (nil, nil) at the
// terminating sentinel and (nil, err) on a propagated transport error.
func (s *Stream) Next() ([]byte, error) {
	c, ok := <-s.queue
	if !ok {
		return nil, nil
	}
	if c.done {
		if c.err != nil && !errors.Is(c.err, errAborted) {
			return nil, c.err
		}
		return nil, nil
	}
	return c.data, nil
}

// IterContent calls fn for every body fragment until the stream
// completes or fn returns an error, matching iter_content's per-chunk
// callback shape.
func (s *Stream) IterContent(fn func([]byte) error) error {
	for {
		data, err := s.Next()
		if err != nil {
			return err
		}
		if data == nil {
			return nil
		}
		if err := fn(data); err != nil {
			return err
		}
	}
}

// IterLines calls fn for each line split on delim (default "\n"),
// carrying a partial line over chunk boundaries, per spec.md §4.G's
// iter_lines carry-over handling.
func (s *Stream) IterLines(delim []byte, fn func([]byte) error) error {
	if len(delim) == 0 {
		delim = []byte("\n")
	}
	var buf bytes.Buffer
	return s.IterContent(func(data []byte) error {
		buf.Write(data)
		for {
			idx := bytes.Index(buf.Bytes(), delim)
			if idx < 0 {
				break
			}
			line := make([]byte, idx)
			copy(line, buf.Bytes()[:idx])
			rest := make([]byte, buf.Len()-idx-len(delim))
			copy(rest, buf.Bytes()[idx+len(delim):])
			buf.Reset()
			buf.Write(rest)
			if err := fn(line); err != nil {
				return err
			}
		}
		return nil
	})
}

// Close sets the "quit" flag (§4.G): the feed goroutine stops on its next
// loop iteration and the queue drains with a sentinel, so a caller
// blocked in Next() observes completion within one queue get. Close is
// idempotent.
func (s *Stream) Close() error {
	s.once.Do(func() { close(s.closed) })
	return nil
}
