package config

import (
	"fmt"
	"time"
)

// ObservabilityConfig configures the admin listener serving probes and metrics.
// It stays on its own port so scrapes never queue behind evaluation traffic.
type ObservabilityConfig struct {
	Port string `envconfig:"PORT" default:"9090"`

	// Timeout bounds reads, writes and graceful shutdown of the admin server.
	Timeout time.Duration `envconfig:"TIMEOUT" default:"5s" validate:"min=1s"`

	// ProbeTimeout bounds each dependency check behind the readiness probe.
	ProbeTimeout time.Duration `envconfig:"PROBE_TIMEOUT" default:"2s" validate:"min=100ms"`

	LivenessPath  string `envconfig:"LIVENESS_PATH" default:"/healthz" validate:"startswith=/"`
	ReadinessPath string `envconfig:"READINESS_PATH" default:"/readyz" validate:"startswith=/"`
	MetricsPath   string `envconfig:"METRICS_PATH" default:"/metrics" validate:"startswith=/"`

	// Profiling mounts net/http/pprof under /debug.
	Profiling bool `envconfig:"PROFILING" default:"false"`
}

// Validate checks the port and that the probe deadline fits inside the request timeout.
func (o *ObservabilityConfig) Validate() error {
	if err := validatePort(o.Port, "observability"); err != nil {
		return err
	}
	if o.ProbeTimeout > o.Timeout {
		return fmt.Errorf("observability probe timeout (%s) cannot exceed request timeout (%s)", o.ProbeTimeout, o.Timeout)
	}
	if o.LivenessPath == o.ReadinessPath || o.LivenessPath == o.MetricsPath || o.ReadinessPath == o.MetricsPath {
		return fmt.Errorf("observability paths must be distinct")
	}
	return nil
}
