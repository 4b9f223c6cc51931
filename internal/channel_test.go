package internal

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorChannelSendAfterClose(t *testing.T) {
	ch := NewErrorChannel(1)
	ch.Close()
	ch.Close()

	err := ch.Send(context.Background(), Envelope{Pod: "p1"})
	assert.ErrorIs(t, err, ErrChannelClosed)
}

func TestErrorChannelUnblocksOnClose(t *testing.T) {
	ch := NewErrorChannel(1)
	require.NoError(t, ch.Send(context.Background(), Envelope{Pod: "p1"}))

	result := make(chan error, 1)
	go func() { result <- ch.Send(context.Background(), Envelope{Pod: "p2"}) }()

	select {
	case <-result:
		t.Fatal("send on a full channel must block")
	case <-time.After(50 * time.Millisecond):
	}
	ch.Close()
	assert.ErrorIs(t, <-result, ErrChannelClosed)
}

func TestErrorChannelSendCancelled(t *testing.T) {
	ch := NewErrorChannel(1)
	require.NoError(t, ch.Send(context.Background(), Envelope{Pod: "p1"}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, ch.Send(ctx, Envelope{Pod: "p2"}), context.DeadlineExceeded)
}

func TestErrorChannelBackpressure(t *testing.T) {
	ch := NewErrorChannel(1)
	block := make(chan struct{})
	notifier := &fakeNotifier{block: block}
	dispatcher := NewDispatcher(ch, notifier, nopLogger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go dispatcher.Run(ctx)

	a1 := Envelope{Pod: "a", Record: Record{Level: "ERROR", Message: "a1"}}
	a2 := Envelope{Pod: "a", Record: Record{Level: "ERROR", Message: "a2"}}
	b1 := Envelope{Pod: "b", Record: Record{Level: "ERROR", Message: "b1"}}

	// a1 is taken by the blocked dispatcher, a2 fills the buffer.
	require.NoError(t, ch.Send(ctx, a1))
	require.Eventually(t, func() bool { return len(ch.ch) == 0 }, time.Second, 5*time.Millisecond)
	require.NoError(t, ch.Send(ctx, a2))

	sent := make(chan error, 1)
	go func() { sent <- ch.Send(ctx, b1) }()
	select {
	case <-sent:
		t.Fatal("second producer must block while the dispatcher is stalled")
	case <-time.After(50 * time.Millisecond):
	}

	close(block)
	require.NoError(t, <-sent)
	require.Eventually(t, func() bool { return len(notifier.Envelopes()) == 3 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []Envelope{a1, a2, b1}, notifier.Envelopes())
}
