package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"
)

func TestLoadMetricsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewLoadMetrics(reg)
	if err != nil {
		t.Fatalf("NewLoadMetrics: %v", err)
	}

	m.ObserveLoad(ResultOK, 2*time.Second)
	m.ObserveLoad(ResultFailed, time.Second)
	m.ObserveLoad(ResultOK, time.Second)
	m.AddElevation(5, 2)
	m.AddMeshes(10, 1)
	m.SetEntities("nodes", 42)
	m.SetUnresolved(3)

	if got := testutil.ToFloat64(m.Loads.WithLabelValues(ResultOK)); got != 2 {
		t.Errorf("ok loads = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.Loads.WithLabelValues(ResultFailed)); got != 1 {
		t.Errorf("failed loads = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.ElevationRequests); got != 5 {
		t.Errorf("elevation requests = %v, want 5", got)
	}
	if got := testutil.ToFloat64(m.ElevationFailed); got != 2 {
		t.Errorf("elevation failures = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.MeshFailures); got != 1 {
		t.Errorf("mesh failures = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.Entities.WithLabelValues("nodes")); got != 42 {
		t.Errorf("nodes = %v, want 42", got)
	}
	if got := testutil.ToFloat64(m.Unresolved); got != 3 {
		t.Errorf("unresolved = %v, want 3", got)
	}
	if n := testutil.CollectAndCount(m.LoadDuration); n != 1 {
		t.Errorf("load duration metrics = %d, want 1", n)
	}
}

func TestLoadMetricsRegisterTwice(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewLoadMetrics(reg)
	if err != nil {
		t.Fatalf("first NewLoadMetrics: %v", err)
	}
	second, err := NewLoadMetrics(reg)
	if err != nil {
		t.Fatalf("second NewLoadMetrics: %v", err)
	}

	first.AddMeshes(1, 0)
	if got := testutil.ToFloat64(second.Meshes); got != 1 {
		t.Errorf("second registration does not share counters: %v", got)
	}
}

func TestLoadMetricsNil(t *testing.T) {
	var m *LoadMetrics
	m.ObserveLoad(ResultOK, time.Second)
	m.AddElevation(1, 1)
	m.AddMeshes(1, 1)
	m.SetEntities("ways", 1)
	m.SetUnresolved(1)
	if m.Handler() == nil {
		t.Error("nil metrics should still return a handler")
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewLoadMetrics(reg)
	if err != nil {
		t.Fatalf("NewLoadMetrics: %v", err)
	}
	m.SetEntities("buildings", 7)

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	body, _ := io.ReadAll(rr.Body)
	if !strings.Contains(string(body), `osmworld_entities{kind="buildings"} 7`) {
		t.Errorf("entities gauge missing from output:\n%s", body)
	}
}

func TestSamplerSample(t *testing.T) {
	reg := prometheus.NewRegistry()
	s := NewSampler(0, zap.NewNop(), reg)
	if s.interval != DefaultInterval {
		t.Errorf("interval = %v, want %v", s.interval, DefaultInterval)
	}
	if s.Last() != nil {
		t.Error("Last before first sample should be nil")
	}

	sample := s.Sample()
	if sample == nil || s.Last() != sample {
		t.Fatal("Sample did not store the sample")
	}
	if got := testutil.ToFloat64(s.memGauge); got != sample.MemoryPercent {
		t.Errorf("memory gauge = %v, want %v", got, sample.MemoryPercent)
	}

	count, err := testutil.GatherAndCount(reg)
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if count != 4 {
		t.Errorf("registered gauges = %d, want 4", count)
	}
}
