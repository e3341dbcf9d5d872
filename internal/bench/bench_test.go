package bench_test

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/example/denoisegraph/internal/bench"
)

// ---------------------------------------------------------------------------
// Aggregation
// ---------------------------------------------------------------------------

func TestStatsMinMaxMean(t *testing.T) {
	durations := []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		300 * time.Millisecond,
	}
	s := bench.ComputeStats(durations)

	if s.Min != 100*time.Millisecond {
		t.Errorf("want min=100ms, got %v", s.Min)
	}

	if s.Max != 300*time.Millisecond {
		t.Errorf("want max=300ms, got %v", s.Max)
	}

	if s.Mean != 200*time.Millisecond {
		t.Errorf("want mean=200ms, got %v", s.Mean)
	}
}

func TestStatsSingleRun(t *testing.T) {
	s := bench.ComputeStats([]time.Duration{150 * time.Millisecond})
	if s.Min != s.Max || s.Min != s.Mean {
		t.Errorf("single run: min/max/mean should all be equal, got min=%v max=%v mean=%v", s.Min, s.Max, s.Mean)
	}
}

// ---------------------------------------------------------------------------
// Throughput
// ---------------------------------------------------------------------------

func TestThroughput(t *testing.T) {
	// 4 megapixels processed in 500ms → 8 Mpix/s
	got := bench.Throughput(4, 500*time.Millisecond)
	if got < 7.99 || got > 8.01 {
		t.Errorf("want ~8 Mpix/s, got %.4f", got)
	}
}

func TestThroughputZeroDuration(t *testing.T) {
	got := bench.Throughput(4, 0)
	if got != 0 {
		t.Errorf("want 0 for zero duration, got %.4f", got)
	}
}

// ---------------------------------------------------------------------------
// Throughput threshold gate
// ---------------------------------------------------------------------------

func TestThroughputThresholdBelowThreshold(t *testing.T) {
	err := bench.CheckThroughputThreshold(0.8, 1.0)
	if err == nil {
		t.Error("want error when mean throughput is below threshold")
	}
}

func TestThroughputThresholdAboveThreshold(t *testing.T) {
	err := bench.CheckThroughputThreshold(1.5, 1.0)
	if err != nil {
		t.Errorf("want no error when throughput exceeds threshold, got: %v", err)
	}
}

func TestThroughputThresholdExactlyAtThreshold(t *testing.T) {
	err := bench.CheckThroughputThreshold(1.0, 1.0)
	if err != nil {
		t.Errorf("want no error at exact threshold, got: %v", err)
	}
}

func TestThroughputThresholdDisabledWhenZero(t *testing.T) {
	err := bench.CheckThroughputThreshold(0, 0)
	if err != nil {
		t.Errorf("threshold=0 should disable gate, got: %v", err)
	}
}

// ---------------------------------------------------------------------------
// Output formatting
// ---------------------------------------------------------------------------

func TestFormatTableContainsHeaders(t *testing.T) {
	runs := []bench.RunResult{
		{Index: 0, Cold: true, Duration: 800 * time.Millisecond, Megapixels: 4, MPixPerSec: 5},
		{Index: 1, Cold: false, Duration: 500 * time.Millisecond, Megapixels: 4, MPixPerSec: 8},
	}
	stats := bench.ComputeStats([]time.Duration{800 * time.Millisecond, 500 * time.Millisecond})

	var buf strings.Builder
	bench.FormatTable(runs, stats, &buf)
	out := buf.String()

	for _, want := range []string{"run", "cold", "ms", "mpix"} {
		if !strings.Contains(strings.ToLower(out), want) {
			t.Errorf("table output missing %q:\n%s", want, out)
		}
	}
}

func TestFormatJSONIsValidJSON(t *testing.T) {
	runs := []bench.RunResult{
		{Index: 0, Cold: true, Duration: 800 * time.Millisecond, Megapixels: 4, MPixPerSec: 5},
	}
	stats := bench.ComputeStats([]time.Duration{800 * time.Millisecond})

	var buf bytes.Buffer
	bench.FormatJSON(runs, stats, &buf)

	var out any

	err := json.Unmarshal(buf.Bytes(), &out)
	if err != nil {
		t.Errorf("FormatJSON produced invalid JSON: %v\n%s", err, buf.String())
	}
}
