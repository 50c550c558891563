package influxdb_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/comfortclick-bridge/internal/infrastructure/config"
	"github.com/nerrad567/comfortclick-bridge/internal/infrastructure/influxdb"
)

// fakeInflux answers /ping and records line protocol bodies sent to /api/v2/write.
type fakeInflux struct {
	mu        sync.Mutex
	writes    []string
	query     []string
	unhealthy bool
}

func (f *fakeInflux) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case strings.HasSuffix(r.URL.Path, "/ping"):
		if f.unhealthy {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	case strings.HasSuffix(r.URL.Path, "/write"):
		body, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		f.writes = append(f.writes, string(body))
		f.query = append(f.query, r.URL.RawQuery)
		f.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeInflux) lines() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return strings.Join(f.writes, "\n")
}

func testConfig(url string) config.InfluxDBConfig {
	return config.InfluxDBConfig{
		Enabled:       true,
		URL:           url,
		Token:         "test-token",
		Org:           "home",
		Bucket:        "comfortclick",
		BatchSize:     10,
		FlushInterval: 1,
	}
}

func newServer(t *testing.T) (*fakeInflux, *httptest.Server) {
	t.Helper()
	fake := &fakeInflux{}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	return fake, srv
}

func TestConnect(t *testing.T) {
	_, srv := newServer(t)

	client, err := influxdb.Connect(testConfig(srv.URL))
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	if !client.IsConnected() {
		t.Error("IsConnected() = false after Connect()")
	}
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}

func TestConnect_Disabled(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:1")
	cfg.Enabled = false

	if _, err := influxdb.Connect(cfg); !errors.Is(err, influxdb.ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestConnect_Failures(t *testing.T) {
	fake, unhealthy := newServer(t)
	fake.unhealthy = true

	gone := httptest.NewServer(http.NotFoundHandler())
	gone.Close()

	for name, url := range map[string]string{
		"unhealthy server":   unhealthy.URL,
		"unreachable server": gone.URL,
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := influxdb.Connect(testConfig(url)); !errors.Is(err, influxdb.ErrConnectionFailed) {
				t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
			}
		})
	}
}

func TestConnect_DefaultBatchSettings(t *testing.T) {
	_, srv := newServer(t)
	cfg := testConfig(srv.URL)
	cfg.BatchSize = -1
	cfg.FlushInterval = 0

	client, err := influxdb.Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	client.Close()
}

func TestWrites_ReachServerOnClose(t *testing.T) {
	fake, srv := newServer(t)
	client, err := influxdb.Connect(testConfig(srv.URL))
	if err != nil {
		t.Fatal(err)
	}

	ts := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	client.WriteEntityState("fan-1", "fan", map[string]any{"on": true}, ts)
	client.WriteEntityState("empty", "fan", nil, ts)
	client.WriteUtilityReading("water-1", "water", "m³", 123.5, ts)
	client.WritePoint("bridge", map[string]string{"host": "test"}, map[string]any{"up": 1.0})

	if err := client.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if client.IsConnected() {
		t.Error("IsConnected() = true after Close()")
	}

	lines := fake.lines()
	for _, want := range []string{
		"entity_state,entity_id=fan-1,kind=fan on=true",
		"utility_meter,device_class=water,entity_id=water-1,unit=m³ value=123.5",
		"bridge,host=test up=1",
	} {
		if !strings.Contains(lines, want) {
			t.Errorf("line protocol missing %q in:\n%s", want, lines)
		}
	}
	if strings.Contains(lines, "entity_id=empty") {
		t.Error("state without fields was written")
	}

	fake.mu.Lock()
	defer fake.mu.Unlock()
	if len(fake.query) == 0 || !strings.Contains(fake.query[0], "bucket=comfortclick") {
		t.Errorf("write query = %v", fake.query)
	}
}

func TestWrites_AfterCloseAreDropped(t *testing.T) {
	fake, srv := newServer(t)
	client, err := influxdb.Connect(testConfig(srv.URL))
	if err != nil {
		t.Fatal(err)
	}
	client.Close()

	client.WriteEntityState("fan-1", "fan", map[string]any{"on": true}, time.Now())
	client.Flush()

	if err := client.HealthCheck(context.Background()); !errors.Is(err, influxdb.ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}
	if lines := fake.lines(); lines != "" {
		t.Errorf("writes after Close reached the server: %q", lines)
	}
}

func TestClose_Nil(t *testing.T) {
	var c influxdb.Client
	if err := c.Close(); err != nil {
		t.Errorf("Close() on zero client error = %v", err)
	}
}
