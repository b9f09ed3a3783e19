package amevents

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dtrain-ml/dtrain/appmaster/internal/sproto"
)

func recvOne(t *testing.T, sub *Subscription) sproto.AppEvent {
	t.Helper()
	select {
	case ev := <-sub.C:
		return ev
	case <-time.After(time.Second):
		require.FailNow(t, "timed out waiting for event")
		return nil
	}
}

func TestPublishReachesAllSubscribers(t *testing.T) {
	p := NewPublisher()
	a := p.Subscribe()
	b := p.Subscribe()
	defer a.Close()
	defer b.Close()

	p.Publish(sproto.FailAttempt{Diagnostics: "boom", ExitCode: sproto.ExitCodeAbort})

	for _, sub := range []*Subscription{a, b} {
		ev := recvOne(t, sub)
		fail, ok := ev.(sproto.FailAttempt)
		require.True(t, ok)
		require.Equal(t, "boom", fail.Diagnostics)
		require.Equal(t, sproto.ExitCodeAbort, fail.ExitCode)
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	p := NewPublisher()
	a := p.Subscribe()
	b := p.Subscribe()
	defer b.Close()

	a.Close()
	p.Publish(sproto.ApplicationSuccess{Message: "done"})

	ev := recvOne(t, b)
	require.IsType(t, sproto.ApplicationSuccess{}, ev)

	// The closed subscription's channel must be closed rather than left
	// dangling.
	_, open := <-a.C
	require.False(t, open)
}

func TestCloseWithFullBufferDoesNotDeadlock(t *testing.T) {
	p := NewPublisher()
	a := p.Subscribe()

	for i := 0; i < perConsumerBufferSize+8; i++ {
		p.Publish(sproto.ExecutorKill{ID: "e"})
	}

	done := make(chan struct{})
	go func() {
		a.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		require.FailNow(t, "close deadlocked on a full subscription")
	}
}
