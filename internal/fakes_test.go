package internal

import (
	"context"
	"io"
	"sync"

	"github.com/rs/zerolog"
)

var nopLogger = zerolog.Nop()

// fakeStream is a log stream whose lines are pushed by the test. It closes
// when the opening context is cancelled, like a client-go stream does.
type fakeStream struct {
	ctx context.Context
	r   *io.PipeReader
	w   *io.PipeWriter
}

func newFakeStream(ctx context.Context) *fakeStream {
	r, w := io.Pipe()
	s := &fakeStream{ctx: ctx, r: r, w: w}
	context.AfterFunc(ctx, func() { r.CloseWithError(ctx.Err()) })
	return s
}

func (s *fakeStream) Read(p []byte) (int, error) { return s.r.Read(p) }
func (s *fakeStream) Close() error               { return s.r.Close() }

func (s *fakeStream) WriteLine(line string) error {
	_, err := io.WriteString(s.w, line+"\n")
	return err
}

// Cancelled reports whether the tailer that opened the stream was cancelled.
func (s *fakeStream) Cancelled() bool { return s.ctx.Err() != nil }

// End ends the stream the way a restarted container does.
func (s *fakeStream) End() { s.w.Close() }

type fakeLogSource struct {
	mu      sync.Mutex
	opens   map[TaskKey]int
	streams map[TaskKey][]*fakeStream
	openErr func(key TaskKey, attempt int) error
}

func newFakeLogSource() *fakeLogSource {
	return &fakeLogSource{
		opens:   make(map[TaskKey]int),
		streams: make(map[TaskKey][]*fakeStream),
	}
}

func (f *fakeLogSource) Open(ctx context.Context, key TaskKey) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opens[key]++
	if f.openErr != nil {
		if err := f.openErr(key, f.opens[key]); err != nil {
			return nil, err
		}
	}
	s := newFakeStream(ctx)
	f.streams[key] = append(f.streams[key], s)
	return s, nil
}

func (f *fakeLogSource) Opens(key TaskKey) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opens[key]
}

func (f *fakeLogSource) TotalOpens() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.opens {
		total += n
	}
	return total
}

// Stream returns the latest stream opened for key, or nil.
func (f *fakeLogSource) Stream(key TaskKey) *fakeStream {
	f.mu.Lock()
	defer f.mu.Unlock()
	streams := f.streams[key]
	if len(streams) == 0 {
		return nil
	}
	return streams[len(streams)-1]
}

type fakeNotifier struct {
	mu        sync.Mutex
	envelopes []Envelope
	err       error
	block     chan struct{}
}

func (n *fakeNotifier) Notify(ctx context.Context, env Envelope) error {
	if n.block != nil {
		select {
		case <-n.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.envelopes = append(n.envelopes, env)
	return n.err
}

func (n *fakeNotifier) Envelopes() []Envelope {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Envelope(nil), n.envelopes...)
}

// fakePodSource hands events pushed by the test to the watcher.
type fakePodSource struct {
	events chan PodEvent
	fail   chan error
}

func newFakePodSource() *fakePodSource {
	return &fakePodSource{events: make(chan PodEvent), fail: make(chan error, 1)}
}

func (f *fakePodSource) Watch(ctx context.Context, events chan<- PodEvent) error {
	for {
		select {
		case ev := <-f.events:
			select {
			case events <- ev:
			case <-ctx.Done():
				return nil
			}
		case err := <-f.fail:
			return err
		case <-ctx.Done():
			return nil
		}
	}
}

func running(name string, containers ...string) PodEvent {
	return PodEvent{Type: Applied, Pod: PodSnapshot{Name: name, Phase: phaseRunning, Containers: containers}}
}

func deleted(name string, containers ...string) PodEvent {
	return PodEvent{Type: Deleted, Pod: PodSnapshot{Name: name, Phase: phaseRunning, Containers: containers}}
}
