package internal

import (
	"context"
	"fmt"

	"github.com/manisharma/error-log-alerter/pkg/core/object"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"k8s.io/client-go/kubernetes"
)

// Streamer wires the pod watcher, its tailers, the alert dispatcher and the
// liveness probe into one process lifetime.
type Streamer struct {
	cfg        object.Config
	logger     zerolog.Logger
	errors     *ErrorChannel
	watcher    *PodWatcher
	dispatcher *Dispatcher
	probe      *Probe
}

func NewStreamer(cfg object.Config, logger zerolog.Logger, clientset kubernetes.Interface) (*Streamer, error) {
	notifier, err := NewSlackNotifier(SlackConfig{
		WebhookURL:       cfg.WebhookURL,
		Namespace:        cfg.Namespace,
		Cluster:          cfg.ClusterName,
		TraceURLTemplate: cfg.TraceURLTemplate,
		LogsURLTemplate:  cfg.LogsURLTemplate,
		Timeout:          cfg.DeliveryTimeout,
	})
	if err != nil {
		return nil, err
	}
	return NewStreamerWith(cfg, logger, NewInformerSource(clientset, cfg.Namespace, cfg.ResyncPeriod, logger), newLogSource(cfg, clientset), notifier), nil
}

// NewStreamerWith builds a streamer on top of the given collaborators.
func NewStreamerWith(cfg object.Config, logger zerolog.Logger, pods PodSource, logs LogSource, notifier Notifier) *Streamer {
	s := &Streamer{
		cfg:    cfg,
		logger: logger,
		errors: NewErrorChannel(cfg.ChannelCapacity),
		probe:  NewProbe(cfg.ProbeAddr, cfg.Profiling, logger),
	}
	s.watcher = NewPodWatcher(pods, logs, s.errors, TailerConfig{
		ConnectBackoff:   cfg.ConnectBackoff,
		ReconnectBackoff: cfg.ReconnectBackoff,
	}, cfg.IgnoredContainers(), logger)
	s.dispatcher = NewDispatcher(s.errors, notifier, logger)
	return s
}

func newLogSource(cfg object.Config, clientset kubernetes.Interface) LogSource {
	if cfg.LogSource == object.LogSourceFile {
		return NewFileLogSource(cfg.PodLogDir, cfg.Namespace)
	}
	return NewAPILogSource(clientset, cfg.Namespace)
}

// Run blocks until ctx is cancelled (nil) or a fatal error occurs: the pod
// watch failing or the probe port being unavailable.
func (s *Streamer) Run(ctx context.Context) error {
	if err := s.probe.Listen(); err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.probe.Serve(ctx)
	})
	g.Go(func() error {
		return s.dispatcher.Run(ctx)
	})
	g.Go(func() error {
		s.logger.Info().Str("namespace", s.cfg.Namespace).Msg("watching pods")
		if err := s.watcher.Run(ctx); err != nil {
			return fmt.Errorf("watcher: %w", err)
		}
		return nil
	})
	return g.Wait()
}
