package object

import "time"

const (
	LogSourceAPI  = "api"
	LogSourceFile = "file"
)

type Config struct {
	Namespace         string
	SelfContainer     string
	ExcludeContainers SliceFlag
	ClusterName       string
	WebhookURL        string
	ProbeAddr         string
	Profiling         bool
	Kubeconfig        string
	LogSource         string
	PodLogDir         string
	ChannelCapacity   int
	ConnectBackoff    time.Duration
	ReconnectBackoff  time.Duration
	DeliveryTimeout   time.Duration
	ResyncPeriod      time.Duration
	TraceURLTemplate  string
	LogsURLTemplate   string
	LogLevel          string
}

// IgnoredContainers returns every container name that must never be tailed,
// the process's own container first.
func (c Config) IgnoredContainers() []string {
	ignored := make([]string, 0, len(c.ExcludeContainers)+1)
	if c.SelfContainer != "" {
		ignored = append(ignored, c.SelfContainer)
	}
	return append(ignored, c.ExcludeContainers.Items()...)
}
