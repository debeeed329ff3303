package authgate

import (
	"sync"
	"testing"
)

func TestMetricsIncAndSnapshot(t *testing.T) {
	metrics := NewMetrics(MetricsConfig{Enabled: true})

	metrics.Inc(MetricLoginSuccess)
	metrics.Inc(MetricLoginSuccess)
	metrics.Inc(MetricLoginFailure)

	if got := metrics.Value(MetricLoginSuccess); got != 2 {
		t.Fatalf("expected 2 successes, got %d", got)
	}
	snap := metrics.Snapshot()
	if snap.Counters[MetricLoginSuccess] != 2 || snap.Counters[MetricLoginFailure] != 1 {
		t.Fatalf("unexpected snapshot: %+v", snap.Counters)
	}
	if snap.Counters[MetricCodeSent] != 0 {
		t.Fatalf("untouched counter must read zero, got %d", snap.Counters[MetricCodeSent])
	}
}

func TestMetricsDisabled(t *testing.T) {
	metrics := NewMetrics(MetricsConfig{Enabled: false})

	metrics.Inc(MetricLoginSuccess)
	if got := metrics.Value(MetricLoginSuccess); got != 0 {
		t.Fatalf("disabled metrics must not count, got %d", got)
	}
	if len(metrics.Snapshot().Counters) != 0 {
		t.Fatal("disabled metrics must snapshot empty")
	}
}

func TestMetricsConcurrentInc(t *testing.T) {
	metrics := NewMetrics(MetricsConfig{Enabled: true})

	const workers = 8
	const perWorker = 1000

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				metrics.Inc(MetricLoginSuccess)
			}
		}()
	}
	wg.Wait()

	if got := metrics.Value(MetricLoginSuccess); got != workers*perWorker {
		t.Fatalf("expected %d increments, got %d", workers*perWorker, got)
	}
}

func TestMetricsNilReceiver(t *testing.T) {
	var metrics *Metrics

	metrics.Inc(MetricLoginSuccess)
	if metrics.Enabled() {
		t.Fatal("nil metrics must report disabled")
	}
	if metrics.Value(MetricLoginSuccess) != 0 {
		t.Fatal("nil metrics must read zero")
	}
}
