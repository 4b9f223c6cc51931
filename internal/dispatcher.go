package internal

import (
	"context"

	"github.com/rs/zerolog"
)

// Notifier delivers one alert. Retries, if any, are its own business.
type Notifier interface {
	Notify(ctx context.Context, env Envelope) error
}

type Dispatcher struct {
	errors   *ErrorChannel
	notifier Notifier
	logger   zerolog.Logger
}

func NewDispatcher(errCh *ErrorChannel, notifier Notifier, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		errors:   errCh,
		notifier: notifier,
		logger:   logger.With().Str("component", "dispatcher").Logger(),
	}
}

// Run drains the error channel in order until ctx is done, then closes it so
// blocked tailers give up.
func (d *Dispatcher) Run(ctx context.Context) error {
	defer d.errors.Close()
	for {
		select {
		case env := <-d.errors.Receive():
			d.dispatch(ctx, env)
		case <-ctx.Done():
			return nil
		}
	}
}

func (d *Dispatcher) dispatch(ctx context.Context, env Envelope) {
	logger := d.logger.With().Str("pod", env.Pod).Str("container", env.Container).Logger()
	logger.Debug().Str("message", env.Record.Message).Msg("found error record")
	if err := d.notifier.Notify(ctx, env); err != nil {
		logger.Error().Err(err).Msg("alert delivery failed")
		return
	}
	logger.Info().Msg("alert sent")
}
