package masq

import (
	"context"
	"sync"
)

var (
	defaultOnce    sync.Once
	defaultSession *Session
)

// Default returns the package-level Session Get/Post/... forward to,
// built lazily on first use.
func Default() *Session {
	defaultOnce.Do(func() { defaultSession = NewSession() })
	return defaultSession
}

// Get issues a GET against the default Session.
func Get(ctx context.Context, url string, opts ...RequestOption) (*Response, error) {
	return Default().Request(ctx, "GET", url, opts...)
}

// Post issues a POST against the default Session.
func Post(ctx context.Context, url string, opts ...RequestOption) (*Response, error) {
	return Default().Request(ctx, "POST", url, opts...)
}

// Put issues a PUT against the default Session.
func Put(ctx context.Context, url string, opts ...RequestOption) (*Response, error) {
	return Default().Request(ctx, "PUT", url, opts...)
}

// Patch issues a PATCH against the default Session.
func Patch(ctx context.Context, url string, opts ...RequestOption) (*Response, error) {
	return Default().Request(ctx, "PATCH", url, opts...)
}

// Delete issues a DELETE against the default Session.
func Delete(ctx context.Context, url string, opts ...RequestOption) (*Response, error) {
	return Default().Request(ctx, "DELETE", url, opts...)
}

// Head issues a HEAD against the default Session.
func Head(ctx context.Context, url string, opts ...RequestOption) (*Response, error) {
	return Default().Request(ctx, "HEAD", url, opts...)
}

// Options issues an OPTIONS against the default Session.
func Options(ctx context.Context, url string, opts ...RequestOption) (*Response, error) {
	return Default().Request(ctx, "OPTIONS", url, opts...)
}
