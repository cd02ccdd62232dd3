// Package config handles YAML configuration loading, environment variable
// expansion, and structural validation for the relay.
package config

import (
	"fmt"
	"time"

	"github.com/flemzord/mcrelay/internal/proxy"
)

// Config is the top-level configuration structure.
type Config struct {
	// Workers is the number of independent proxy workers.
	Workers int `yaml:"workers"`

	// ClientQueueSize is each worker's message queue capacity.
	ClientQueueSize int `yaml:"client_queue_size"`

	// ClientQueueNoNotifyRate is the baseline notification suppression
	// ratio for the message queue. Zero disables suppression.
	ClientQueueNoNotifyRate int `yaml:"client_queue_no_notify_rate"`

	// ClientQueueWaitThresholdUs re-enables queue notifications when
	// consumer lag exceeds this many microseconds.
	ClientQueueWaitThresholdUs int64 `yaml:"client_queue_wait_threshold_us"`

	// ProxyMaxInflightRequests caps concurrently-processing requests per
	// worker. Zero disables rate-limiting.
	ProxyMaxInflightRequests int `yaml:"proxy_max_inflight_requests"`

	// ProxyMaxThrottledRequests caps each worker's waiting queues. Zero
	// disables the cap.
	ProxyMaxThrottledRequests int `yaml:"proxy_max_throttled_requests"`

	// WaitingRequestTimeoutMs bounds how long a request may wait for
	// admission before it is shed with BUSY. Zero disables the timeout.
	WaitingRequestTimeoutMs int `yaml:"waiting_request_timeout_ms"`

	// MaxNoFlushEventLoops bounds how many busy event-loop turns may pass
	// before pending transport writes are flushed anyway.
	MaxNoFlushEventLoops int `yaml:"max_no_flush_event_loops"`

	// ResetInactiveConnectionIntervalMs arms the per-worker inactivity
	// sweep of backend connections, in milliseconds. Zero disables it.
	ResetInactiveConnectionIntervalMs int `yaml:"reset_inactive_connection_interval"`

	// EnableServerShutdown allows wire-level shutdown requests to stop
	// the instance.
	EnableServerShutdown bool `yaml:"enable_server_shutdown"`

	// ConfigPollIntervalMs is how often the reload watcher checks the
	// config file for changes, in milliseconds.
	ConfigPollIntervalMs int `yaml:"config_poll_interval_ms"`

	Admin AdminConfig `yaml:"admin"`
	Trace TraceConfig `yaml:"trace"`
}

// AdminConfig configures the HTTP admin surface.
type AdminConfig struct {
	// Addr is the listen address, e.g. "127.0.0.1:5055". Empty disables
	// the admin server.
	Addr string `yaml:"addr"`

	// BearerToken protects every admin endpoint except /health when set.
	BearerToken string `yaml:"bearer_token"`
}

// TraceConfig configures OpenTelemetry trace export.
type TraceConfig struct {
	Enabled bool `yaml:"enabled"`

	// Endpoint is the OTLP/HTTP collector endpoint, host:port.
	Endpoint string `yaml:"endpoint"`
}

// Default returns the configuration used when a field is left unset.
func Default() *Config {
	return &Config{
		Workers:              4,
		ClientQueueSize:      1024,
		MaxNoFlushEventLoops: 40,
		ConfigPollIntervalMs: 5000,
	}
}

// withDefaults fills zero fields in place.
func (c *Config) withDefaults() {
	d := Default()
	if c.Workers == 0 {
		c.Workers = d.Workers
	}
	if c.ClientQueueSize == 0 {
		c.ClientQueueSize = d.ClientQueueSize
	}
	if c.MaxNoFlushEventLoops == 0 {
		c.MaxNoFlushEventLoops = d.MaxNoFlushEventLoops
	}
	if c.ConfigPollIntervalMs == 0 {
		c.ConfigPollIntervalMs = d.ConfigPollIntervalMs
	}
}

// PollInterval returns the reload watcher's poll period.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.ConfigPollIntervalMs) * time.Millisecond
}

// ProxyOptions maps the file schema onto per-worker options.
func (c *Config) ProxyOptions() proxy.Options {
	return proxy.Options{
		ClientQueueSize:                 c.ClientQueueSize,
		ClientQueueNoNotifyRate:         c.ClientQueueNoNotifyRate,
		ClientQueueWaitThresholdUs:      c.ClientQueueWaitThresholdUs,
		MaxInflightRequests:             c.ProxyMaxInflightRequests,
		MaxThrottledRequests:            c.ProxyMaxThrottledRequests,
		WaitingRequestTimeoutMs:         c.WaitingRequestTimeoutMs,
		MaxNoFlushEventLoops:            c.MaxNoFlushEventLoops,
		ResetInactiveConnectionInterval: time.Duration(c.ResetInactiveConnectionIntervalMs) * time.Millisecond,
	}
}

// Flattened renders the effective options as a string map, the form served
// by the service-info options endpoint.
func (c *Config) Flattened() map[string]string {
	return map[string]string{
		"workers":                            fmt.Sprintf("%d", c.Workers),
		"client_queue_size":                  fmt.Sprintf("%d", c.ClientQueueSize),
		"client_queue_no_notify_rate":        fmt.Sprintf("%d", c.ClientQueueNoNotifyRate),
		"client_queue_wait_threshold_us":     fmt.Sprintf("%d", c.ClientQueueWaitThresholdUs),
		"proxy_max_inflight_requests":        fmt.Sprintf("%d", c.ProxyMaxInflightRequests),
		"proxy_max_throttled_requests":       fmt.Sprintf("%d", c.ProxyMaxThrottledRequests),
		"waiting_request_timeout_ms":         fmt.Sprintf("%d", c.WaitingRequestTimeoutMs),
		"max_no_flush_event_loops":           fmt.Sprintf("%d", c.MaxNoFlushEventLoops),
		"reset_inactive_connection_interval": fmt.Sprintf("%d", c.ResetInactiveConnectionIntervalMs),
		"enable_server_shutdown":             fmt.Sprintf("%t", c.EnableServerShutdown),
	}
}
