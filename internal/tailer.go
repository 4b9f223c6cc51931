package internal

import (
	"bufio"
	"context"
	"errors"
	"io"
	"time"

	"github.com/rs/zerolog"
)

const (
	DefaultConnectBackoff   = 5 * time.Second
	DefaultReconnectBackoff = 2 * time.Second
)

type tailState int

const (
	stateConnecting tailState = iota
	stateStreaming
	stateStopped
)

func (s tailState) String() string {
	switch s {
	case stateConnecting:
		return "connecting"
	case stateStreaming:
		return "streaming"
	default:
		return "stopped"
	}
}

type TailerConfig struct {
	ConnectBackoff   time.Duration
	ReconnectBackoff time.Duration
}

// Tailer follows the log stream of one container and forwards its error
// records. It reconnects until cancelled, until the error channel is closed,
// or until the log source reports the container gone.
type Tailer struct {
	key    TaskKey
	source LogSource
	errors *ErrorChannel
	cfg    TailerConfig
	logger zerolog.Logger

	stream io.ReadCloser
}

func NewTailer(key TaskKey, source LogSource, errCh *ErrorChannel, cfg TailerConfig, logger zerolog.Logger) *Tailer {
	if cfg.ConnectBackoff <= 0 {
		cfg.ConnectBackoff = DefaultConnectBackoff
	}
	if cfg.ReconnectBackoff <= 0 {
		cfg.ReconnectBackoff = DefaultReconnectBackoff
	}
	return &Tailer{
		key:    key,
		source: source,
		errors: errCh,
		cfg:    cfg,
		logger: logger.With().Str("pod", key.Pod).Str("container", key.Container).Logger(),
	}
}

func (t *Tailer) Run(ctx context.Context) {
	state := stateConnecting
	for state != stateStopped {
		next := t.step(ctx, state)
		if next != state {
			t.logger.Debug().Stringer("from", state).Stringer("to", next).Msg("tailer state changed")
		}
		state = next
	}
	t.logger.Info().Msg("tailing stopped")
}

func (t *Tailer) step(ctx context.Context, state tailState) tailState {
	switch state {
	case stateConnecting:
		return t.connect(ctx)
	case stateStreaming:
		return t.streamLines(ctx)
	default:
		return stateStopped
	}
}

func (t *Tailer) connect(ctx context.Context) tailState {
	if ctx.Err() != nil {
		return stateStopped
	}
	t.logger.Info().Msg("opening log stream")
	stream, err := t.source.Open(ctx, t.key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			t.logger.Info().Err(err).Msg("container not found, likely deleted")
			return stateStopped
		}
		if ctx.Err() != nil {
			return stateStopped
		}
		t.logger.Error().Err(err).Dur("backoff", t.cfg.ConnectBackoff).Msg("opening log stream failed")
		return t.backoff(ctx, t.cfg.ConnectBackoff, stateConnecting)
	}
	t.stream = stream
	return stateStreaming
}

func (t *Tailer) streamLines(ctx context.Context) tailState {
	stream := t.stream
	t.stream = nil
	defer stream.Close()
	stop := context.AfterFunc(ctx, func() { stream.Close() })
	defer stop()

	reader := bufio.NewReader(stream)
	for {
		if ctx.Err() != nil {
			return stateStopped
		}
		line, err := reader.ReadString('\n')
		if len(line) > 0 && ctx.Err() == nil {
			if sendErr := t.handleLine(ctx, line); sendErr != nil {
				if errors.Is(sendErr, ErrChannelClosed) {
					t.logger.Info().Msg("error channel closed")
				}
				return stateStopped
			}
		}
		if err != nil {
			if ctx.Err() != nil {
				return stateStopped
			}
			if errors.Is(err, io.EOF) {
				t.logger.Info().Dur("backoff", t.cfg.ReconnectBackoff).Msg("log stream ended, retrying")
			} else {
				t.logger.Error().Err(err).Dur("backoff", t.cfg.ReconnectBackoff).Msg("reading log stream failed")
			}
			return t.backoff(ctx, t.cfg.ReconnectBackoff, stateConnecting)
		}
	}
}

// handleLine forwards the line if it carries an error record. Only a failed
// send is returned.
func (t *Tailer) handleLine(ctx context.Context, line string) error {
	payload, ok := ExtractJSON(line)
	if !ok {
		return nil
	}
	record, err := ParseRecord(payload)
	if err != nil {
		t.logger.Warn().Err(err).Msg("parsing log record failed")
		return nil
	}
	if !record.IsError() {
		return nil
	}
	return t.errors.Send(ctx, Envelope{Record: record, Container: t.key.Container, Pod: t.key.Pod})
}

func (t *Tailer) backoff(ctx context.Context, d time.Duration, next tailState) tailState {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return next
	case <-ctx.Done():
		return stateStopped
	}
}
