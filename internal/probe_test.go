package internal

import (
	"context"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProbeAnswersOK(t *testing.T) {
	probe := NewProbe("127.0.0.1:0", false, nopLogger)
	require.NoError(t, probe.Listen())

	ctx, cancel := context.WithCancel(context.Background())
	result := make(chan error, 1)
	go func() { result <- probe.Serve(ctx) }()

	for _, path := range []string{"/", "/isalive", "/isready"} {
		resp, err := http.Get("http://" + probe.Addr().String() + path)
		require.NoError(t, err)
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "OK", string(body))
	}

	cancel()
	select {
	case err := <-result:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("probe did not stop")
	}
}

func TestProbeBindFailure(t *testing.T) {
	taken, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer taken.Close()

	err = NewProbe(taken.Addr().String(), false, nopLogger).Listen()
	assert.ErrorContains(t, err, "failed to bind probe listener")
}
