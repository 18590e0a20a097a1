package engine

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/net/http2"
)

func buildNoop() (*http.Client, *http2.Transport, error) {
	return &http.Client{}, nil, nil
}

func TestAcquireBuildsOnEmptyStack(t *testing.T) {
	p := NewPool(4, time.Minute)
	client, _, release, err := p.Acquire("k1", buildNoop)
	require.NoError(t, err)
	require.NotNil(t, client)
	require.Equal(t, 1, p.Size())
	release()
	require.Equal(t, 1, p.Size())
}

func TestAcquireReusesMostRecentlyReleasedHandle(t *testing.T) {
	p := NewPool(4, time.Minute)

	client1, _, release1, err := p.Acquire("k1", buildNoop)
	require.NoError(t, err)
	release1()

	client2, _, release2, err := p.Acquire("k1", buildNoop)
	require.NoError(t, err)
	defer release2()

	require.Same(t, client1, client2, "LIFO pool must hand back the most recently released handle")
}

func TestAcquireDropsHandlesOverCapacity(t *testing.T) {
	p := NewPool(1, time.Minute)

	_, _, release1, err := p.Acquire("a", buildNoop)
	require.NoError(t, err)
	_, _, release2, err := p.Acquire("b", buildNoop)
	require.NoError(t, err)

	release1() // total is 2 > maxClients, so this handle is dropped and total falls to 1
	release2() // total is 1, within maxClients, so this handle is pooled

	require.Equal(t, 1, p.Size())
}

func TestEvictIdleRemovesStaleHandles(t *testing.T) {
	p := NewPool(4, -time.Second) // maxIdle normalizes to 90s default when <= 0... use EvictIdle directly instead

	_, _, release, err := p.Acquire("k1", buildNoop)
	require.NoError(t, err)
	release()

	p.maxIdle = 0 // force every handle to read as stale regardless of clock resolution
	removed := p.EvictIdle()
	require.Equal(t, 1, removed)
	require.Equal(t, 0, p.Size())
}

func TestSeparateKeysDoNotShareHandles(t *testing.T) {
	p := NewPool(4, time.Minute)

	clientA, _, releaseA, err := p.Acquire("a", buildNoop)
	require.NoError(t, err)
	clientB, _, releaseB, err := p.Acquire("b", buildNoop)
	require.NoError(t, err)
	defer releaseA()
	defer releaseB()

	require.NotSame(t, clientA, clientB)
}
