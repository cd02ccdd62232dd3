package admin

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/flemzord/mcrelay/internal/relay"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T, cfg Config) (*Server, *httptest.Server) {
	t.Helper()
	inst, err := relay.New(relay.Options{
		Workers: 2,
		Version: "mcrelay test",
		Logger:  testLogger(),
	}, relay.StaticConfigFactory(relay.NullRoute{}, "mcrelay test", nil))
	if err != nil {
		t.Fatal(err)
	}
	inst.Start()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = inst.Shutdown(ctx)
	})

	s := NewServer(cfg, inst, testLogger())
	ts := httptest.NewServer(s.buildRouter())
	t.Cleanup(ts.Close)
	return s, ts
}

func TestHealth_NoAuthRequired(t *testing.T) {
	t.Parallel()

	_, ts := newTestServer(t, Config{BearerToken: "secret"})

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET /health = %d, want 200", resp.StatusCode)
	}
	var body HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Status != "ok" || body.Workers != 2 {
		t.Fatalf("health = %+v", body)
	}
}

func TestStatus_RequiresAuth(t *testing.T) {
	t.Parallel()

	_, ts := newTestServer(t, Config{BearerToken: "secret"})

	resp, err := http.Get(ts.URL + "/status")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unauthenticated GET /status = %d, want 401", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/status", nil)
	req.Header.Set("Authorization", "Bearer secret")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("authenticated GET /status = %d, want 200", resp.StatusCode)
	}

	var body StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if len(body.Workers) != 2 {
		t.Fatalf("status reported %d workers, want 2", len(body.Workers))
	}
}

func TestMetrics_ExposesProxyStats(t *testing.T) {
	t.Parallel()

	_, ts := newTestServer(t, Config{})

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET /metrics = %d, want 200", resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(raw), "mcrelay_proxy_stat") {
		t.Fatal("metrics output missing mcrelay_proxy_stat")
	}
}

func TestAuth_ConstantTimeEqual(t *testing.T) {
	t.Parallel()

	if !constantTimeEqual("token", "token") {
		t.Fatal("equal strings compared unequal")
	}
	if constantTimeEqual("token", "Token") || constantTimeEqual("token", "toke") {
		t.Fatal("unequal strings compared equal")
	}
}
