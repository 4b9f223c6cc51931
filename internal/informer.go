package internal

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/client-go/informers"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/cache"
)

// InformerSource turns a namespaced pod informer into a PodEvent feed.
type InformerSource struct {
	clientset kubernetes.Interface
	namespace string
	resync    time.Duration
	logger    zerolog.Logger
}

func NewInformerSource(clientset kubernetes.Interface, namespace string, resync time.Duration, logger zerolog.Logger) *InformerSource {
	return &InformerSource{
		clientset: clientset,
		namespace: namespace,
		resync:    resync,
		logger:    logger.With().Str("component", "informer").Str("namespace", namespace).Logger(),
	}
}

func (s *InformerSource) Watch(ctx context.Context, events chan<- PodEvent) error {
	ctx, cancel := context.WithCancel(ctx)
	var (
		factory  = informers.NewSharedInformerFactoryWithOptions(s.clientset, s.resync, informers.WithNamespace(s.namespace))
		informer = factory.Core().V1().Pods().Informer()
		fatal    = make(chan error, 1)
	)
	defer factory.Shutdown()
	defer cancel()

	emit := func(ev PodEvent) {
		select {
		case events <- ev:
		case <-ctx.Done():
		}
	}

	err := informer.SetWatchErrorHandler(func(_ *cache.Reflector, err error) {
		if apierrors.IsForbidden(err) || apierrors.IsUnauthorized(err) {
			select {
			case fatal <- err:
			default:
			}
			return
		}
		s.logger.Error().Err(err).Msg("pod watch interrupted, retrying")
	})
	if err != nil {
		return fmt.Errorf("informer.SetWatchErrorHandler() failed: %w", err)
	}

	registration, err := informer.AddEventHandler(cache.ResourceEventHandlerFuncs{
		AddFunc: func(obj any) {
			pod, ok := obj.(*corev1.Pod)
			if !ok {
				s.logger.Error().Msgf("AddFunc: unexpected object %T", obj)
				return
			}
			emit(PodEvent{Type: Applied, Pod: SnapshotOf(pod)})
		},
		UpdateFunc: func(_, obj any) {
			pod, ok := obj.(*corev1.Pod)
			if !ok {
				s.logger.Error().Msgf("UpdateFunc: unexpected object %T", obj)
				return
			}
			emit(PodEvent{Type: Applied, Pod: SnapshotOf(pod)})
		},
		DeleteFunc: func(obj any) {
			if tombstone, ok := obj.(cache.DeletedFinalStateUnknown); ok {
				obj = tombstone.Obj
			}
			pod, ok := obj.(*corev1.Pod)
			if !ok {
				s.logger.Error().Msgf("DeleteFunc: unexpected object %T", obj)
				return
			}
			emit(PodEvent{Type: Deleted, Pod: SnapshotOf(pod)})
		},
	})
	if err != nil {
		return fmt.Errorf("informer.AddEventHandler() failed: %w", err)
	}

	// InitialSyncDone follows the replay of every pod listed at start.
	emit(PodEvent{Type: InitialSync})
	factory.Start(ctx.Done())

	synced := make(chan bool, 1)
	go func() {
		synced <- cache.WaitForNamedCacheSync("pods", ctx.Done(), registration.HasSynced)
	}()
	select {
	case err := <-fatal:
		return fmt.Errorf("pod watch rejected: %w", err)
	case ok := <-synced:
		if !ok {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("cache.WaitForNamedCacheSync() failed")
		}
	}
	emit(PodEvent{Type: InitialSyncDone})
	s.logger.Info().Msg("informer cache synced, watching pods")

	select {
	case <-ctx.Done():
		return nil
	case err := <-fatal:
		return fmt.Errorf("pod watch rejected: %w", err)
	}
}
