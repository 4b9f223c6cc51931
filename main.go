package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/manisharma/error-log-alerter/pkg/core/app"
	"github.com/manisharma/error-log-alerter/pkg/core/object"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var Build = "v0.0.0"

func main() {
	var (
		config   object.Config
		logLevel string
	)

	rootCmd := &cobra.Command{
		Use:          "error-log-alerter",
		Short:        "Tail pod logs in a namespace and alert on ERROR records",
		Version:      Build,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			level, err := zerolog.ParseLevel(logLevel)
			if err != nil {
				return err
			}
			logger := zerolog.New(os.Stdout).Level(level).With().Str("app", "error-log-alerter").Str("build", Build).Timestamp().Logger()
			return run(cmd.Context(), config, logger)
		},
	}

	flags := rootCmd.Flags()
	flags.StringVar(&config.Namespace, "namespace", os.Getenv("NAIS_NAMESPACE"), "kubernetes namespace to watch pods in")
	flags.StringVar(&config.SelfContainer, "self", os.Getenv("NAIS_APP_NAME"), "own container name, never tailed")
	flags.Var(&config.ExcludeContainers, "exclude", "container names to never tail, repeatable")
	flags.StringVar(&config.ClusterName, "cluster", os.Getenv("NAIS_CLUSTER_NAME"), "cluster name shown in alerts")
	flags.StringVar(&config.WebhookURL, "webhookURL", os.Getenv("apiUrl"), "slack incoming webhook URL")
	flags.StringVar(&config.ProbeAddr, "probeAddr", "0.0.0.0:8080", "liveness probe listen address")
	flags.BoolVar(&config.Profiling, "profiling", false, "serve pprof on the probe address")
	flags.StringVar(&config.Kubeconfig, "kubeconfig", os.Getenv("KUBECONFIG"), "path to kubeconfig when running outside the cluster")
	flags.StringVar(&config.LogSource, "logSource", object.LogSourceAPI, "where to read container logs from, eg: 'api', 'file'")
	flags.StringVar(&config.PodLogDir, "podLogDir", "/var/log/pods", "kubelet pod log directory for the 'file' log source")
	flags.IntVar(&config.ChannelCapacity, "channelCapacity", 100, "error records buffered before tailers block")
	flags.DurationVar(&config.ConnectBackoff, "connectBackoff", 5*time.Second, "delay before retrying a failed log stream setup")
	flags.DurationVar(&config.ReconnectBackoff, "reconnectBackoff", 2*time.Second, "delay before reopening an ended log stream")
	flags.DurationVar(&config.DeliveryTimeout, "deliveryTimeout", 10*time.Second, "timeout of one webhook call")
	flags.DurationVar(&config.ResyncPeriod, "resync", 5*time.Minute, "pod informer resync period")
	flags.StringVar(&config.TraceURLTemplate, "traceURL", os.Getenv("TRACE_URL_TEMPLATE"), "trace link template, eg: 'https://grafana/explore?q={trace_id}'")
	flags.StringVar(&config.LogsURLTemplate, "logsURL", os.Getenv("LOGS_URL_TEMPLATE"), "logs link template, eg: 'https://logs/query?container={container}&ts={timestamp}'")
	flags.StringVar(&logLevel, "logLevel", "info", "log level, eg: 'debug', 'info', 'warn'")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, config object.Config, logger zerolog.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	streamer, err := app.NewStreamer(config, logger)
	if err != nil {
		logger.Error().Err(err).Msg("app.NewStreamer() failed")
		return err
	}

	// await interruptions
	deathStream := make(chan os.Signal, 1)
	signal.Notify(deathStream, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(deathStream)
	go func() {
		select {
		case <-deathStream:
			logger.Info().Msg("interrupted, shutting down")
			cancel()
		case <-ctx.Done():
		}
	}()

	logger.Info().Msg("error log alerter is running...")
	if err := streamer.Run(ctx); err != nil {
		logger.Error().Err(err).Msg("streamer.Run(ctx) failed")
		return err
	}
	logger.Info().Msg("stopped")
	return nil
}
