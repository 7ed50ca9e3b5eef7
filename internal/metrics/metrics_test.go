package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveSink(t *testing.T) {
	okBefore := testutil.ToFloat64(CounterSinkWrites.WithLabelValues("csv", "ok"))
	errBefore := testutil.ToFloat64(CounterSinkWrites.WithLabelValues("csv", "error"))
	rowsBefore := testutil.ToFloat64(CounterRowsLoaded.WithLabelValues("csv"))

	ObserveSink("csv", 10, nil)
	ObserveSink("csv", 10, errors.New("disk full"))

	if got := testutil.ToFloat64(CounterSinkWrites.WithLabelValues("csv", "ok")) - okBefore; got != 1 {
		t.Errorf("ok writes = %v, want 1", got)
	}
	if got := testutil.ToFloat64(CounterSinkWrites.WithLabelValues("csv", "error")) - errBefore; got != 1 {
		t.Errorf("error writes = %v, want 1", got)
	}
	if got := testutil.ToFloat64(CounterRowsLoaded.WithLabelValues("csv")) - rowsBefore; got != 10 {
		t.Errorf("rows loaded = %v, want 10", got)
	}
}

func TestObserveOperations(t *testing.T) {
	before := testutil.ToFloat64(CounterCleaningOps.WithLabelValues("clamped"))
	ObserveOperations(map[string]int{"clamped": 3, "filled": 0})
	if got := testutil.ToFloat64(CounterCleaningOps.WithLabelValues("clamped")) - before; got != 3 {
		t.Errorf("clamped = %v, want 3", got)
	}
}

func TestObserveStage(t *testing.T) {
	ObserveStage("extract", 5*time.Millisecond)
	if n := testutil.CollectAndCount(HistogramRunDuration); n < 1 {
		t.Errorf("CollectAndCount = %d, want at least 1", n)
	}
}
