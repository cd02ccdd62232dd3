package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mcrelay.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_AppliesDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load(writeConfig(t, "proxy_max_inflight_requests: 64\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Workers != 4 {
		t.Errorf("Workers = %d, want default 4", cfg.Workers)
	}
	if cfg.ClientQueueSize != 1024 {
		t.Errorf("ClientQueueSize = %d, want default 1024", cfg.ClientQueueSize)
	}
	if cfg.MaxNoFlushEventLoops != 40 {
		t.Errorf("MaxNoFlushEventLoops = %d, want default 40", cfg.MaxNoFlushEventLoops)
	}
	if cfg.ProxyMaxInflightRequests != 64 {
		t.Errorf("ProxyMaxInflightRequests = %d, want 64", cfg.ProxyMaxInflightRequests)
	}
}

func TestLoad_ExpandsEnvVars(t *testing.T) {
	t.Setenv("MCRELAY_TEST_WORKERS", "7")

	cfg, err := Load(writeConfig(t, "workers: ${MCRELAY_TEST_WORKERS}\nadmin:\n  addr: ${MCRELAY_TEST_ADDR:-127.0.0.1:5055}\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Workers != 7 {
		t.Errorf("Workers = %d, want 7 from env", cfg.Workers)
	}
	if cfg.Admin.Addr != "127.0.0.1:5055" {
		t.Errorf("Admin.Addr = %q, want fallback default", cfg.Admin.Addr)
	}
}

func TestLoad_UnresolvedVarFails(t *testing.T) {
	t.Parallel()

	_, err := Load(writeConfig(t, "admin:\n  bearer_token: ${MCRELAY_TEST_MISSING_SECRET}\n"))
	if err == nil {
		t.Fatal("expected an error for an unresolved variable")
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults are valid", func(*Config) {}, false},
		{"zero workers", func(c *Config) { c.Workers = 0 }, true},
		{"negative inflight", func(c *Config) { c.ProxyMaxInflightRequests = -1 }, true},
		{"negative throttled", func(c *Config) { c.ProxyMaxThrottledRequests = -2 }, true},
		{"negative waiting timeout", func(c *Config) { c.WaitingRequestTimeoutMs = -1 }, true},
		{"bad admin addr", func(c *Config) { c.Admin.Addr = "nonsense" }, true},
		{"good admin addr", func(c *Config) { c.Admin.Addr = "127.0.0.1:5055" }, false},
		{"trace without endpoint", func(c *Config) { c.Trace.Enabled = true }, true},
		{"trace with endpoint", func(c *Config) {
			c.Trace.Enabled = true
			c.Trace.Endpoint = "localhost:4318"
		}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := Default()
			tc.mutate(cfg)
			err := Validate(cfg)
			if tc.wantErr && err == nil {
				t.Fatal("expected validation error")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected validation error: %v", err)
			}
		})
	}
}

func TestProxyOptions_Mapping(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.ProxyMaxInflightRequests = 10
	cfg.ProxyMaxThrottledRequests = 20
	cfg.WaitingRequestTimeoutMs = 30
	cfg.ResetInactiveConnectionIntervalMs = 60000

	opts := cfg.ProxyOptions()
	if opts.MaxInflightRequests != 10 || opts.MaxThrottledRequests != 20 || opts.WaitingRequestTimeoutMs != 30 {
		t.Fatalf("admission options not mapped: %+v", opts)
	}
	if opts.ResetInactiveConnectionInterval != time.Minute {
		t.Fatalf("reset interval = %s, want 1m", opts.ResetInactiveConnectionInterval)
	}
}

func TestFlattened_CoversCoreOptions(t *testing.T) {
	t.Parallel()

	flat := Default().Flattened()
	for _, key := range []string{
		"workers",
		"client_queue_size",
		"proxy_max_inflight_requests",
		"proxy_max_throttled_requests",
		"waiting_request_timeout_ms",
		"max_no_flush_event_loops",
	} {
		if _, ok := flat[key]; !ok {
			t.Errorf("flattened options missing %q", key)
		}
	}
}
