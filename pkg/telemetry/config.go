package telemetry

import (
	"fmt"
	"time"
)

// Config carries the telemetry configuration for one ocinuke process.
type Config struct {
	// ServiceName identifies the process in logs, traces, and metrics.
	ServiceName string

	// ServiceVersion is the build version reported on telemetry.
	ServiceVersion string

	// Environment is the deployment environment label (dev, staging, prod).
	Environment string

	// Logging configures structured logging.
	Logging LoggingConfig

	// Tracing configures distributed tracing.
	Tracing TracingConfig

	// Metrics configures Prometheus metrics.
	Metrics MetricsConfig

	// Events configures the progress event fan-out.
	Events EventsConfig

	// ResourceAttributes are extra attributes stamped on exported traces.
	ResourceAttributes map[string]string
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	// Level is the minimum level emitted (trace, debug, info, warn, error, fatal).
	Level string

	// Format is console or json.
	Format string

	// Output is stdout, stderr, or a file path.
	Output string

	// EnableCaller adds file:line caller information.
	EnableCaller bool

	// EnableSampling samples high-frequency logs.
	EnableSampling bool

	// SamplingInitial is the per-second burst logged before sampling kicks in.
	SamplingInitial int

	// SamplingThereafter logs every Nth message once sampling is active.
	SamplingThereafter int

	// TimeFormat is the console timestamp format (rfc3339, kitchen).
	TimeFormat string
}

// TracingConfig configures distributed tracing.
type TracingConfig struct {
	// Enabled controls whether spans are produced at all.
	Enabled bool

	// Exporter is otlp, stdout, or none.
	Exporter string

	// Endpoint is the OTLP collector endpoint.
	Endpoint string

	// SamplingRate is the trace sampling rate, 0.0 to 1.0.
	SamplingRate float64

	// MaxExportBatchSize bounds one export batch.
	MaxExportBatchSize int

	// ExportTimeout bounds one export call.
	ExportTimeout time.Duration

	// Headers are extra headers sent to the OTLP collector.
	Headers map[string]string

	// Insecure disables TLS on the exporter connection.
	Insecure bool
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	// Enabled controls whether metrics are collected and served.
	Enabled bool

	// ListenAddress is the metrics HTTP listen address.
	ListenAddress string

	// Path is the HTTP path serving the metrics.
	Path string

	// Namespace prefixes every metric name.
	Namespace string

	// DurationBuckets are the deletion latency buckets in seconds. Cloud
	// deletes routinely take tens of seconds, so the default buckets skew
	// much slower than typical request-latency buckets.
	DurationBuckets []float64
}

// EventsConfig configures the progress event fan-out.
type EventsConfig struct {
	// Enabled controls whether events are delivered at all.
	Enabled bool

	// BufferSize is the async delivery buffer.
	BufferSize int

	// EnableAsync decouples event delivery from the engine's hot path.
	EnableAsync bool
}

// DefaultConfig returns the defaults for interactive use.
func DefaultConfig() *Config {
	return &Config{
		ServiceName:    "ocinuke",
		ServiceVersion: "dev",
		Environment:    "development",
		Logging: LoggingConfig{
			Level:              "info",
			Format:             "console",
			Output:             "stderr",
			EnableCaller:       false,
			EnableSampling:     false,
			SamplingInitial:    100,
			SamplingThereafter: 100,
			TimeFormat:         "rfc3339",
		},
		Tracing: TracingConfig{
			Enabled:            false,
			Exporter:           "stdout",
			SamplingRate:       1.0,
			MaxExportBatchSize: 512,
			ExportTimeout:      30 * time.Second,
			Headers:            make(map[string]string),
			Insecure:           true,
		},
		Metrics: MetricsConfig{
			Enabled:       false,
			ListenAddress: ":9090",
			Path:          "/metrics",
			Namespace:     "ocinuke",
			DurationBuckets: []float64{
				0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600,
			},
		},
		Events: EventsConfig{
			Enabled:     true,
			BufferSize:  1024,
			EnableAsync: true,
		},
		ResourceAttributes: make(map[string]string),
	}
}

// AutomationConfig returns defaults for unattended runs: JSON logs, metrics
// on, and sampled tracing.
func AutomationConfig() *Config {
	cfg := DefaultConfig()
	cfg.Environment = "production"
	cfg.Logging.Format = "json"
	cfg.Logging.Output = "stdout"
	cfg.Logging.EnableSampling = true
	cfg.Metrics.Enabled = true
	cfg.Tracing.Enabled = true
	cfg.Tracing.Exporter = "otlp"
	cfg.Tracing.SamplingRate = 0.1
	cfg.Tracing.Insecure = false
	return cfg
}

// Validate checks the configuration before any component is built from it.
func (c *Config) Validate() error {
	if c.ServiceName == "" {
		return fmt.Errorf("service name is required")
	}
	if c.ServiceVersion == "" {
		return fmt.Errorf("service version is required")
	}

	validLevels := map[string]bool{
		"trace": true, "debug": true, "info": true,
		"warn": true, "error": true, "fatal": true,
	}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	if c.Logging.Format != "console" && c.Logging.Format != "json" {
		return fmt.Errorf("invalid log format: %s (must be 'console' or 'json')", c.Logging.Format)
	}

	validExporters := map[string]bool{
		"otlp": true, "stdout": true, "none": true,
	}
	if c.Tracing.Enabled && !validExporters[c.Tracing.Exporter] {
		return fmt.Errorf("invalid trace exporter: %s", c.Tracing.Exporter)
	}
	if c.Tracing.Enabled && c.Tracing.Exporter == "otlp" && c.Tracing.Endpoint == "" {
		return fmt.Errorf("otlp exporter requires an endpoint")
	}

	if c.Tracing.SamplingRate < 0 || c.Tracing.SamplingRate > 1 {
		return fmt.Errorf("trace sampling rate must be between 0 and 1, got: %f", c.Tracing.SamplingRate)
	}

	if c.Metrics.Enabled && c.Metrics.ListenAddress == "" {
		return fmt.Errorf("metrics listen address is required when metrics are enabled")
	}

	if c.Events.Enabled && c.Events.BufferSize <= 0 {
		return fmt.Errorf("event buffer size must be positive, got: %d", c.Events.BufferSize)
	}

	return nil
}
