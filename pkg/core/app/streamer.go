package app

import (
	"fmt"
	"net/url"

	"github.com/manisharma/error-log-alerter/internal"
	"github.com/manisharma/error-log-alerter/pkg/core/object"
	"github.com/rs/zerolog"
)

// NewStreamer validates config, connects to the cluster and builds the
// streamer.
func NewStreamer(config object.Config, logger zerolog.Logger) (*internal.Streamer, error) {
	if err := validate(config); err != nil {
		return nil, err
	}
	clientset, err := internal.NewClientset(config.Kubeconfig)
	if err != nil {
		return nil, fmt.Errorf("unable to initialize kube client: %w", err)
	}
	return internal.NewStreamer(config, logger, clientset)
}

func validate(config object.Config) error {
	if config.Namespace == "" {
		return fmt.Errorf("namespace is required")
	}
	u, err := url.Parse(config.WebhookURL)
	if err != nil {
		return fmt.Errorf("invalid webhook URL, err: %s", err.Error())
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid webhook URL %q, expected an absolute http(s) URL", config.WebhookURL)
	}
	if config.LogSource != object.LogSourceAPI && config.LogSource != object.LogSourceFile {
		return fmt.Errorf("invalid log source %q, only '%s' and '%s' are supported", config.LogSource, object.LogSourceAPI, object.LogSourceFile)
	}
	if config.LogSource == object.LogSourceFile && config.PodLogDir == "" {
		return fmt.Errorf("pod log directory is required for the '%s' log source", object.LogSourceFile)
	}
	if config.ChannelCapacity <= 0 {
		return fmt.Errorf("channel capacity must be positive")
	}
	if config.ConnectBackoff <= 0 || config.ReconnectBackoff <= 0 {
		return fmt.Errorf("backoff durations must be positive")
	}
	if config.ProbeAddr == "" {
		return fmt.Errorf("probe address is required")
	}
	return nil
}
