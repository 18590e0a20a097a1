package masq

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTransportErrorUnwrapsAndFormats(t *testing.T) {
	inner := errors.New("boom")
	err := &TransportError{Message: "dial failed", Err: inner}

	require.Contains(t, err.Error(), "dial failed")
	require.Contains(t, err.Error(), "boom")
	require.ErrorIs(t, err, inner)
}

func TestTransportErrorWithoutWrappedErrFormatsMessageOnly(t *testing.T) {
	err := &TransportError{Message: "no route to host"}
	require.Equal(t, "masq: no route to host", err.Error())
	require.Nil(t, err.Unwrap())
}

func TestConnectionErrorSubkindUnwrapsThroughTransportError(t *testing.T) {
	inner := errors.New("refused")
	base := &TransportError{Message: "connect failed", Err: inner}
	err := &ConnectionError{TransportError: base}

	require.ErrorIs(t, err, inner)
}

func TestSSLErrorChainUnwrapsThroughConnectionError(t *testing.T) {
	inner := errors.New("certificate expired")
	base := &TransportError{Message: "tls handshake failed", Err: inner}
	err := &SSLError{ConnectionError: &ConnectionError{TransportError: base}}

	require.ErrorIs(t, err, inner)
	require.Contains(t, err.Error(), "tls handshake failed")
}

func TestSessionClosedErrorMessage(t *testing.T) {
	err := &SessionClosedError{}
	require.Equal(t, "masq: session is closed", err.Error())
}

func TestWebSocketClosedErrorUnwrapsAndFormats(t *testing.T) {
	inner := errors.New("eof")
	err := &WebSocketClosedError{Code: 1006, Reason: "abnormal closure", Err: inner}

	require.Contains(t, err.Error(), "1006")
	require.Contains(t, err.Error(), "abnormal closure")
	require.ErrorIs(t, err, inner)
}

func TestWebSocketTimeoutErrorUnwraps(t *testing.T) {
	inner := errors.New("deadline exceeded")
	err := &WebSocketTimeoutError{Err: inner}
	require.ErrorIs(t, err, inner)
	require.Contains(t, err.Error(), "deadline exceeded")
}
