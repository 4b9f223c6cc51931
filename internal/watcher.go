package internal

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

// PodSource feeds pod events for one namespace until ctx is done or the
// watch fails for good.
type PodSource interface {
	Watch(ctx context.Context, events chan<- PodEvent) error
}

type taskExit struct {
	key TaskKey
	id  uint64
}

// PodWatcher keeps one tailer running per container of every running pod.
// Events are handled one at a time, so the registry needs no locking.
type PodWatcher struct {
	source   PodSource
	logs     LogSource
	errors   *ErrorChannel
	cfg      TailerConfig
	ignored  map[string]struct{}
	registry *Registry
	logger   zerolog.Logger

	exited chan taskExit
	done   chan struct{}
}

func NewPodWatcher(source PodSource, logs LogSource, errCh *ErrorChannel, cfg TailerConfig, ignored []string, logger zerolog.Logger) *PodWatcher {
	return &PodWatcher{
		source:   source,
		logs:     logs,
		errors:   errCh,
		cfg:      cfg,
		ignored:  lo.Associate(ignored, func(name string) (string, struct{}) { return name, struct{}{} }),
		registry: NewRegistry(),
		logger:   logger.With().Str("component", "watcher").Logger(),
		exited:   make(chan taskExit),
		done:     make(chan struct{}),
	}
}

// Run consumes pod events until ctx is cancelled (nil) or the source fails
// (its error). All tailers are cancelled on return.
func (w *PodWatcher) Run(ctx context.Context) error {
	defer close(w.done)
	defer w.registry.CancelAll()

	events := make(chan PodEvent)
	failed := make(chan error, 1)
	go func() {
		failed <- w.source.Watch(ctx, events)
	}()

	for {
		select {
		case ev := <-events:
			w.handle(ctx, ev)
		case exit := <-w.exited:
			if w.registry.Release(exit.key, exit.id) {
				w.logger.Info().Stringer("task", exit.key).Msg("released finished log task")
			}
		case err := <-failed:
			if err != nil {
				return fmt.Errorf("pod watch failed: %w", err)
			}
			if ctx.Err() == nil {
				return fmt.Errorf("pod watch ended unexpectedly")
			}
			return nil
		case <-ctx.Done():
			return nil
		}
	}
}

func (w *PodWatcher) handle(ctx context.Context, ev PodEvent) {
	switch ev.Type {
	case Applied:
		w.handleApplied(ctx, ev.Pod)
	case Deleted:
		w.handleDeleted(ev.Pod)
	case InitialSync, InitialSyncDone:
		w.logger.Debug().Stringer("event", ev.Type).Msg("sync marker")
	}
}

func (w *PodWatcher) handleApplied(ctx context.Context, pod PodSnapshot) {
	if pod.Phase != phaseRunning {
		return
	}
	for _, container := range pod.Containers {
		if _, skip := w.ignored[container]; skip {
			continue
		}
		key := TaskKey{Pod: pod.Name, Container: container}
		if w.registry.Has(key) {
			continue
		}
		w.spawn(ctx, key)
	}
}

func (w *PodWatcher) handleDeleted(pod PodSnapshot) {
	for _, key := range w.registry.CancelPod(pod.Name) {
		w.logger.Info().Stringer("task", key).Msg("cancelled log task")
	}
}

func (w *PodWatcher) spawn(ctx context.Context, key TaskKey) {
	taskCtx, cancel := context.WithCancel(ctx)
	id := w.registry.Add(key, cancel)
	tailer := NewTailer(key, w.logs, w.errors, w.cfg, w.logger)

	go func() {
		tailer.Run(taskCtx)
		select {
		case w.exited <- taskExit{key: key, id: id}:
		case <-w.done:
		}
	}()
	w.logger.Info().Stringer("task", key).Msg("started log task")
}

// Tasks returns the number of registered tailers. Only safe to call from the
// goroutine driving the watcher, or once Run has returned.
func (w *PodWatcher) Tasks() int {
	return w.registry.Len()
}
