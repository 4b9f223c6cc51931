package internal

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/rs/zerolog"
)

// Probe answers liveness and readiness checks with a fixed 200 OK.
type Probe struct {
	addr      string
	profiling bool
	logger    zerolog.Logger
	listener  net.Listener
	server    *http.Server
}

func NewProbe(addr string, profiling bool, logger zerolog.Logger) *Probe {
	return &Probe{
		addr:      addr,
		profiling: profiling,
		logger:    logger.With().Str("component", "probe").Logger(),
	}
}

// Listen binds the probe port. A failure here is fatal for the process.
func (p *Probe) Listen() error {
	listener, err := net.Listen("tcp", p.addr)
	if err != nil {
		return fmt.Errorf("failed to bind probe listener to %s: %w", p.addr, err)
	}
	p.listener = listener

	mux := http.NewServeMux()
	if p.profiling {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Connection", "close")
		w.Header().Set("Content-Length", "2")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	p.server = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	return nil
}

func (p *Probe) Addr() net.Addr {
	return p.listener.Addr()
}

// Serve blocks until ctx is done. Listen must have succeeded.
func (p *Probe) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = p.server.Shutdown(shutdownCtx)
	}()

	p.logger.Info().Str("addr", p.listener.Addr().String()).Msg("health check server listening")
	if err := p.server.Serve(p.listener); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("probe server failed: %w", err)
	}
	return nil
}
