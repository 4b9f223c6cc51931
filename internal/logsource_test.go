package internal

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
)

func newTestClientset(t *testing.T, handler http.HandlerFunc) kubernetes.Interface {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	clientset, err := kubernetes.NewForConfig(&rest.Config{Host: server.URL})
	require.NoError(t, err)
	return clientset
}

func TestAPILogSourceOpen(t *testing.T) {
	clientset := newTestClientset(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/namespaces/helved/pods/p1/log", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "app", q.Get("container"))
		assert.Equal(t, "true", q.Get("follow"))
		assert.Equal(t, "0", q.Get("tailLines"))
		assert.NotEqual(t, "true", q.Get("timestamps"))
		_, _ = io.WriteString(w, "line one\nline two\n")
	})

	stream, err := NewAPILogSource(clientset, "helved").Open(context.Background(), TaskKey{Pod: "p1", Container: "app"})
	require.NoError(t, err)
	defer stream.Close()

	body, err := io.ReadAll(stream)
	require.NoError(t, err)
	assert.Equal(t, "line one\nline two\n", string(body))
}

func TestAPILogSourceNotFound(t *testing.T) {
	clientset := newTestClientset(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"kind":"Status","apiVersion":"v1","status":"Failure","message":"pods \"p1\" not found","reason":"NotFound","code":404}`)
	})

	_, err := NewAPILogSource(clientset, "helved").Open(context.Background(), TaskKey{Pod: "p1", Container: "app"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAPILogSourceOtherErrors(t *testing.T) {
	clientset := newTestClientset(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"kind":"Status","apiVersion":"v1","status":"Failure","message":"container \"app\" in pod \"p1\" is waiting to start","reason":"BadRequest","code":400}`)
	})

	_, err := NewAPILogSource(clientset, "helved").Open(context.Background(), TaskKey{Pod: "p1", Container: "app"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}
