package config

import (
	"errors"
	"fmt"
	"net"
)

// Validate checks a loaded configuration for structural errors. It is
// read-only and collects every problem instead of stopping at the first.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Workers < 1 {
		errs = append(errs, fmt.Errorf("workers must be at least 1, got %d", cfg.Workers))
	}
	if cfg.ClientQueueSize < 1 {
		errs = append(errs, fmt.Errorf("client_queue_size must be at least 1, got %d", cfg.ClientQueueSize))
	}
	if cfg.ClientQueueNoNotifyRate < 0 {
		errs = append(errs, fmt.Errorf("client_queue_no_notify_rate must not be negative, got %d", cfg.ClientQueueNoNotifyRate))
	}
	if cfg.ClientQueueWaitThresholdUs < 0 {
		errs = append(errs, fmt.Errorf("client_queue_wait_threshold_us must not be negative, got %d", cfg.ClientQueueWaitThresholdUs))
	}
	if cfg.ProxyMaxInflightRequests < 0 {
		errs = append(errs, fmt.Errorf("proxy_max_inflight_requests must not be negative, got %d", cfg.ProxyMaxInflightRequests))
	}
	if cfg.ProxyMaxThrottledRequests < 0 {
		errs = append(errs, fmt.Errorf("proxy_max_throttled_requests must not be negative, got %d", cfg.ProxyMaxThrottledRequests))
	}
	if cfg.WaitingRequestTimeoutMs < 0 {
		errs = append(errs, fmt.Errorf("waiting_request_timeout_ms must not be negative, got %d", cfg.WaitingRequestTimeoutMs))
	}
	if cfg.MaxNoFlushEventLoops < 1 {
		errs = append(errs, fmt.Errorf("max_no_flush_event_loops must be at least 1, got %d", cfg.MaxNoFlushEventLoops))
	}
	if cfg.ResetInactiveConnectionIntervalMs < 0 {
		errs = append(errs, fmt.Errorf("reset_inactive_connection_interval must not be negative, got %d", cfg.ResetInactiveConnectionIntervalMs))
	}
	if cfg.ConfigPollIntervalMs < 0 {
		errs = append(errs, fmt.Errorf("config_poll_interval_ms must not be negative, got %d", cfg.ConfigPollIntervalMs))
	}

	if cfg.Admin.Addr != "" {
		if _, _, err := net.SplitHostPort(cfg.Admin.Addr); err != nil {
			errs = append(errs, fmt.Errorf("admin.addr %q is not host:port: %v", cfg.Admin.Addr, err))
		}
	}
	if cfg.Trace.Enabled && cfg.Trace.Endpoint == "" {
		errs = append(errs, errors.New("trace.endpoint is required when trace.enabled is true"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}
