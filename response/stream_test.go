package response

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStreamIterContentYieldsAllBytesThenSentinel(t *testing.T) {
	resp := &http.Response{StatusCode: 200, Status: "200 OK", Header: http.Header{}, Body: nopBody([]byte("hello world"))}
	s := NewStream(context.Background(), resp, nil, nil, 4)

	var got bytes.Buffer
	err := s.IterContent(func(b []byte) error {
		got.Write(b)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, "hello world", got.String())
}

func TestStreamIterLinesSplitsAndCarriesOver(t *testing.T) {
	resp := &http.Response{StatusCode: 200, Status: "200 OK", Header: http.Header{}, Body: nopBody([]byte("line1\nline2\npartial"))}
	s := NewStream(context.Background(), resp, nil, nil, 2)

	var lines []string
	err := s.IterLines(nil, func(b []byte) error {
		lines = append(lines, string(b))
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, []string{"line1", "line2"}, lines) // "partial" is never terminated by a delimiter, so it's dropped
}

type slowReader struct {
	data []byte
	pos  int
}

func (r *slowReader) Read(p []byte) (int, error) {
	if r.pos >= len(r.data) {
		return 0, io.EOF
	}
	time.Sleep(5 * time.Millisecond)
	n := copy(p, r.data[r.pos:r.pos+1])
	r.pos += n
	return n, nil
}

func (r *slowReader) Close() error { return nil }

func TestStreamCloseUnblocksNextWithinOneGet(t *testing.T) {
	resp := &http.Response{StatusCode: 200, Status: "200 OK", Header: http.Header{}, Body: &slowReader{data: bytes.Repeat([]byte("x"), 1000)}}
	s := NewStream(context.Background(), resp, nil, nil, 1)

	data, err := s.Next()
	require.NoError(t, err)
	require.Equal(t, []byte("x"), data)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close()) // idempotent

	deadline := time.After(time.Second)
	for {
		d, err := s.Next()
		if d == nil {
			require.True(t, err == nil || err == errAborted || err.Error() == errAborted.Error())
			return
		}
		select {
		case <-deadline:
			t.Fatal("stream did not terminate within deadline after Close")
		default:
		}
	}
}

func TestStreamEmptyBodyEndsWithSentinel(t *testing.T) {
	resp := &http.Response{StatusCode: 200, Status: "200 OK", Header: http.Header{}, Body: nopBody(nil)}
	s := NewStream(context.Background(), resp, nil, nil, 1)

	data, err := s.Next()
	require.NoError(t, err)
	require.Nil(t, data) // empty body: straight to sentinel
}
