package stream

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShare_SynchronousSourceProducesOnSubscribe(t *testing.T) {
	shared := Share(Of("net"), nil)

	sub := shared.Subscribe()

	select {
	case <-shared.Produced():
	default:
		t.Fatal("synchronous source should have produced during Subscribe")
	}
	select {
	case <-shared.Attached():
	default:
		t.Fatal("hub should be attached")
	}

	got, err := Collect(sub)
	require.NoError(t, err)
	assert.Equal(t, []string{"net"}, got)
}

func TestShare_LateSubscriberReplaysLatestValue(t *testing.T) {
	src := newChanStream[int]()
	shared := Share[int](src, nil)

	first := shared.Subscribe()
	src.ch <- 1
	v, err := first.Next()
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	second := shared.Subscribe()
	v, err = second.Next()
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	src.ch <- 2
	close(src.ch)

	rest, err := Collect(first)
	require.NoError(t, err)
	assert.Equal(t, []int{2}, rest)

	rest, err = Collect(second)
	require.NoError(t, err)
	assert.Equal(t, []int{2}, rest)
}

func TestShare_SourceConnectedOnce(t *testing.T) {
	var connects atomic.Int32
	shared := Share(Defer(func() Stream[int] {
		connects.Add(1)
		return Of(1)
	}), nil)

	a := shared.Subscribe()
	b := shared.Subscribe()

	_, err := Collect(a)
	require.NoError(t, err)
	_, err = Collect(b)
	require.NoError(t, err)
	assert.Equal(t, int32(1), connects.Load())
}

func TestShare_LastSubscriberTearsDown(t *testing.T) {
	var released atomic.Int32
	src := newChanStream[int]()
	shared := Share[int](src, func() { released.Add(1) })

	a := shared.Subscribe()
	b := shared.Subscribe()

	require.NoError(t, a.Close())
	assert.False(t, src.closed.Load())
	assert.Equal(t, int32(0), released.Load())

	require.NoError(t, b.Close())
	assert.True(t, src.closed.Load())
	assert.Equal(t, int32(1), released.Load())

	_, ok := shared.TrySubscribe()
	assert.False(t, ok)

	_, err := shared.Subscribe().Next()
	assert.ErrorIs(t, err, ErrClosed)
}

func TestShare_SubscribeAfterCompletion(t *testing.T) {
	var released atomic.Int32
	shared := Share(Of(1, 2), func() { released.Add(1) })

	_, err := Collect(shared.Subscribe())
	require.NoError(t, err)
	assert.Equal(t, int32(1), released.Load())

	late, ok := shared.TrySubscribe()
	require.True(t, ok)
	got, err := Collect(late)
	require.NoError(t, err)
	assert.Equal(t, []int{2}, got)
}

func TestShare_FailureReachesEverySubscriber(t *testing.T) {
	boom := errors.New("boom")
	release := make(chan struct{})
	shared := Share(FromFuture(context.Background(), func(ctx context.Context) (int, error) {
		<-release
		return 0, boom
	}), nil)

	a := shared.Subscribe()
	b := shared.Subscribe()
	close(release)

	_, err := a.Next()
	assert.ErrorIs(t, err, boom)
	_, err = b.Next()
	assert.ErrorIs(t, err, boom)
}
