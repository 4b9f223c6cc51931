package internal

import (
	"fmt"
	"os"
	"path/filepath"

	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	"k8s.io/client-go/util/homedir"
)

var serviceAccountTokenPath = "/var/run/secrets/kubernetes.io/serviceaccount/token"

// NewClientset prefers the in-cluster service account and falls back to a
// kubeconfig file.
func NewClientset(kubeconfig string) (kubernetes.Interface, error) {
	config, err := restConfig(kubeconfig)
	if err != nil {
		return nil, err
	}
	clientset, err := kubernetes.NewForConfig(config)
	if err != nil {
		return nil, fmt.Errorf("kubernetes.NewForConfig() failed: %w", err)
	}
	return clientset, nil
}

func restConfig(kubeconfig string) (*rest.Config, error) {
	if kubeconfig == "" {
		if _, err := os.Stat(serviceAccountTokenPath); err == nil {
			config, err := rest.InClusterConfig()
			if err != nil {
				return nil, fmt.Errorf("rest.InClusterConfig() failed: %w", err)
			}
			return config, nil
		}
		kubeconfig = filepath.Join(homedir.HomeDir(), ".kube", "config")
	}
	config, err := clientcmd.BuildConfigFromFlags("", kubeconfig)
	if err != nil {
		return nil, fmt.Errorf("clientcmd.BuildConfigFromFlags(%s) failed: %w", kubeconfig, err)
	}
	return config, nil
}
