// Package masq is a browser-impersonating HTTP/WebSocket client: it
// drives real uTLS ClientHellos, HTTP/2 SETTINGS/header ordering, and a
// minimal HTTP/3 stack so outbound requests carry the same wire
// fingerprint a named browser target would produce, on top of Go's own
// net/http plumbing rather than a libcurl binding.
//
// Session is the synchronous entry point; AsyncSession wraps the same
// machinery for callers that want explicit concurrency bounded by the
// connection pool rather than ad hoc goroutines. Get/Post/... are
// package-level shorthands against a lazily-built default Session.
package masq

import "github.com/masqhttp/masq/response"

// Response re-exports response.Response so callers importing only the
// root package never need the response package's own import path.
type Response = response.Response

// Stream re-exports response.Stream, returned by Session.Stream.
type Stream = response.Stream
