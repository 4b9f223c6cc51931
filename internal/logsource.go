package internal

import (
	"context"
	"errors"
	"fmt"
	"io"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/client-go/kubernetes"
)

// ErrNotFound reports that the pod or container behind a log stream is gone.
var ErrNotFound = errors.New("log source not found")

// LogSource opens a following stream of new log lines for one container.
// Implementations wrap ErrNotFound when the target no longer exists.
type LogSource interface {
	Open(ctx context.Context, key TaskKey) (io.ReadCloser, error)
}

type APILogSource struct {
	clientset kubernetes.Interface
	namespace string
}

func NewAPILogSource(clientset kubernetes.Interface, namespace string) *APILogSource {
	return &APILogSource{clientset: clientset, namespace: namespace}
}

func (s *APILogSource) Open(ctx context.Context, key TaskKey) (io.ReadCloser, error) {
	tailLines := int64(0)
	req := s.clientset.CoreV1().Pods(s.namespace).GetLogs(key.Pod, &corev1.PodLogOptions{
		Container:  key.Container,
		Follow:     true,
		TailLines:  &tailLines,
		Timestamps: false,
	})
	stream, err := req.Stream(ctx)
	if err != nil {
		if apierrors.IsNotFound(err) {
			return nil, fmt.Errorf("%w: %s: %v", ErrNotFound, key, err)
		}
		return nil, fmt.Errorf("GetLogs(%s).Stream() failed: %w", key, err)
	}
	return stream, nil
}
