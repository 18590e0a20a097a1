// Package response implements Component G: turning a raw *http.Response
// (and, for redirects, the chain of intermediate ones) into the public
// Response value the rest of the module hands back to callers, plus the
// bounded streaming reader of §4.G. Grounded on
// internal/cycletls/client.go's response handling (status/header/body
// capture around Do) generalized into its own package since the spec
// gives Response independent lifecycle (lazy text/json decode, history,
// streaming) that the teacher's thin wrapper doesn't need.
package response

import (
	"compress/flate"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/zstd"

	"github.com/masqhttp/masq/internal/cookiejar"
)

// Response is the public result of a non-streaming request: the final
// response in a redirect chain, with History holding the intermediate
// 3xx responses (most-recent-last), per spec.md §4.G ("history is
// captured on 3xx so the last win is what appears on Response").
type Response struct {
	StatusCode int
	Status     string
	Proto      string
	Header     http.Header
	URL        *url.URL
	History    []*Response

	RedirectCount int

	// Trace carries per-request diagnostics recorded by the Option Compiler
	// and the Transfer Engine (the stream flag, any raw options applied and
	// the request id), the Go analog of curl_cffi's curl_infos dict (SPEC_FULL.md §1).
	Trace map[string]any

	Cookies []cookiejar.Morsel

	body            []byte
	defaultEncoding string
}

// Build reads resp's body fully (decompressing per Content-Encoding),
// closes it, and assembles a *Response. history holds any prior 3xx
// Responses already built for this redirect chain.
func Build(resp *http.Response, reqURL *url.URL, history []*Response, trace map[string]any, defaultEncoding string) (*Response, error) {
	defer resp.Body.Close()

	reader, err := decompressingReader(resp)
	if err != nil {
		return nil, fmt.Errorf("response: decompress: %w", err)
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, &PartialReadError{Err: err, Bytes: body}
	}

	if defaultEncoding == "" {
		defaultEncoding = "utf-8"
	}

	return &Response{
		StatusCode:      resp.StatusCode,
		Status:          resp.Status,
		Proto:           resp.Proto,
		Header:          resp.Header,
		URL:             reqURL,
		History:         history,
		RedirectCount:   len(history),
		Trace:           trace,
		body:            body,
		defaultEncoding: defaultEncoding,
	}, nil
}

// decompressingReader wraps resp.Body according to its Content-Encoding
// header, per the Accept-Encoding default the Option Compiler sets
// (br, gzip, deflate, zstd — SPEC_FULL.md §2).
func decompressingReader(resp *http.Response) (io.Reader, error) {
	enc := strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding")))
	switch enc {
	case "", "identity":
		return resp.Body, nil
	case "gzip", "x-gzip":
		return gzip.NewReader(resp.Body)
	case "deflate":
		return flate.NewReader(resp.Body), nil
	case "br":
		return brotli.NewReader(resp.Body), nil
	case "zstd":
		zr, err := zstd.NewReader(resp.Body)
		if err != nil {
			return nil, err
		}
		return zr.IOReadCloser(), nil
	default:
		return resp.Body, nil
	}
}

// Content returns the raw (already decompressed) response body bytes.
func (r *Response) Content() []byte { return r.body }

// Text returns Content as a string. It does no transcoding: the bytes are
// taken as UTF-8 whatever charset Charset reports.
func (r *Response) Text() string {
	return string(r.body)
}

// Charset returns the charset named in Content-Type, or r.defaultEncoding
// if the header omits one.
func (r *Response) Charset() string {
	_, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err == nil {
		if cs, ok := params["charset"]; ok && cs != "" {
			return strings.ToLower(cs)
		}
	}
	return r.defaultEncoding
}

// JSON decodes Content into v.
func (r *Response) JSON(v any) error {
	if len(r.body) == 0 {
		return fmt.Errorf("response: empty body")
	}
	return json.Unmarshal(r.body, v)
}

// Ok reports whether StatusCode is in [200, 400).
func (r *Response) Ok() bool { return r.StatusCode >= 200 && r.StatusCode < 400 }

// RaiseForStatus returns an *HTTPError if StatusCode is 4xx/5xx, nil
// otherwise — the opt-in check spec.md §7 describes.
func (r *Response) RaiseForStatus() error {
	if r.StatusCode < 400 {
		return nil
	}
	return &HTTPError{Response: r}
}

// HTTPError is raised by RaiseForStatus for 4xx/5xx responses.
type HTTPError struct {
	Response *Response
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("response: http error: %s", e.Response.Status)
}

// PartialReadError wraps an I/O failure that occurred mid-body-read,
// carrying whatever bytes were captured before the failure (spec.md §7's
// PartialRead).
type PartialReadError struct {
	Err   error
	Bytes []byte
}

func (e *PartialReadError) Error() string {
	return fmt.Sprintf("response: partial read after %d bytes: %v", len(e.Bytes), e.Err)
}

func (e *PartialReadError) Unwrap() error { return e.Err }

// TooManyRedirectsError is returned when a redirect chain exceeds
// MaxRedirects, carrying the last 3xx Response per spec.md §7/§8.
type TooManyRedirectsError struct {
	Response *Response
	Limit    int
}

func (e *TooManyRedirectsError) Error() string {
	return fmt.Sprintf("response: too many redirects (limit %d), last status %s", e.Limit, e.Response.Status)
}

// ChunkedEncodingError wraps a body read failure specific to chunked
// transfer-encoding streams (spec.md §7).
type ChunkedEncodingError struct {
	Err error
}

func (e *ChunkedEncodingError) Error() string { return fmt.Sprintf("response: chunked encoding error: %v", e.Err) }
func (e *ChunkedEncodingError) Unwrap() error { return e.Err }
