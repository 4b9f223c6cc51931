package internal

import (
	"context"
	"errors"
	"sync"
)

var ErrChannelClosed = errors.New("error channel closed")

// ErrorChannel is a bounded queue of envelopes with many producers and a
// single consumer. Only the consumer closes it.
type ErrorChannel struct {
	ch     chan Envelope
	closed chan struct{}
	once   sync.Once
}

func NewErrorChannel(capacity int) *ErrorChannel {
	return &ErrorChannel{
		ch:     make(chan Envelope, capacity),
		closed: make(chan struct{}),
	}
}

// Send blocks while the queue is full. It fails with ErrChannelClosed once
// the consumer is gone and with ctx.Err() when the producer is cancelled.
func (c *ErrorChannel) Send(ctx context.Context, env Envelope) error {
	select {
	case <-c.closed:
		return ErrChannelClosed
	default:
	}
	select {
	case c.ch <- env:
		return nil
	case <-c.closed:
		return ErrChannelClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *ErrorChannel) Receive() <-chan Envelope {
	return c.ch
}

func (c *ErrorChannel) Close() {
	c.once.Do(func() { close(c.closed) })
}

func (c *ErrorChannel) Closed() <-chan struct{} {
	return c.closed
}
