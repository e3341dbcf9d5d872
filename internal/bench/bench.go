// Package bench provides benchmarking primitives for the denoisegraph bench
// command: per-run timing, aggregate stats, and a throughput figure
// (megapixels/sec) in place of the teacher's real-time factor, since a
// denoiser run has no audio-duration counterpart to compare against.
package bench

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"
)

// ---------------------------------------------------------------------------
// Run result and stats
// ---------------------------------------------------------------------------

// RunResult holds the timing and throughput for a single graph Run.
type RunResult struct {
	Index      int
	Cold       bool // true for the first run (cold-start, includes Finalize)
	Duration   time.Duration
	Megapixels float64 // H*W/1e6 of the tile processed
	MPixPerSec float64
}

// Stats holds aggregate timing statistics across all runs.
type Stats struct {
	Min  time.Duration
	Max  time.Duration
	Mean time.Duration
}

// ComputeStats calculates min, max and mean over a slice of durations.
// The slice must be non-empty.
func ComputeStats(durations []time.Duration) Stats {
	if len(durations) == 0 {
		return Stats{}
	}

	mn, mx := durations[0], durations[0]

	var sum time.Duration

	for _, d := range durations {
		if d < mn {
			mn = d
		}

		if d > mx {
			mx = d
		}

		sum += d
	}

	return Stats{
		Min:  mn,
		Max:  mx,
		Mean: sum / time.Duration(len(durations)),
	}
}

// Throughput returns megapixels of tile processed divided by elapsed
// duration. Returns 0 if dur is zero to avoid division by zero.
func Throughput(megapixels float64, dur time.Duration) float64 {
	if dur <= 0 {
		return 0
	}

	return megapixels / dur.Seconds()
}

// ---------------------------------------------------------------------------
// Throughput threshold gate
// ---------------------------------------------------------------------------

// CheckThroughputThreshold returns an error if meanMPixPerSec is below
// threshold. A threshold of 0 disables the gate.
func CheckThroughputThreshold(meanMPixPerSec, threshold float64) error {
	if threshold <= 0 {
		return nil
	}

	if meanMPixPerSec < threshold {
		return fmt.Errorf("mean throughput %.3f Mpix/s below threshold %.3f", meanMPixPerSec, threshold)
	}

	return nil
}

// ---------------------------------------------------------------------------
// Output formatters
// ---------------------------------------------------------------------------

// FormatTable writes a human-readable ASCII table of bench results to w.
func FormatTable(runs []RunResult, stats Stats, w io.Writer) {
	sb := &strings.Builder{}

	fmt.Fprintf(sb, "%-5s  %-5s  %10s  %10s  %10s\n", "Run", "Cold", "MS", "Mpix", "Mpix/s")
	fmt.Fprintln(sb, strings.Repeat("-", 48))

	for _, r := range runs {
		cold := ""
		if r.Cold {
			cold = "yes"
		}

		fmt.Fprintf(sb, "%-5d  %-5s  %10.1f  %10.3f  %10.2f\n",
			r.Index+1,
			cold,
			float64(r.Duration.Milliseconds()),
			r.Megapixels,
			r.MPixPerSec,
		)
	}

	fmt.Fprintln(sb, strings.Repeat("-", 48))
	fmt.Fprintf(sb, "%-5s  %-5s  %10.1f  %10s  %10s  (min)\n", "", "", float64(stats.Min.Milliseconds()), "", "")
	fmt.Fprintf(sb, "%-5s  %-5s  %10.1f  %10s  %10s  (mean)\n", "", "", float64(stats.Mean.Milliseconds()), "", "")
	fmt.Fprintf(sb, "%-5s  %-5s  %10.1f  %10s  %10s  (max)\n", "", "", float64(stats.Max.Milliseconds()), "", "")

	fmt.Fprint(w, sb.String())
}

// jsonReport is the top-level JSON structure emitted by FormatJSON.
type jsonReport struct {
	Runs  []jsonRun `json:"runs"`
	Stats jsonStats `json:"stats"`
}

type jsonRun struct {
	Index      int     `json:"index"`
	Cold       bool    `json:"cold"`
	DurationMS float64 `json:"duration_ms"`
	Megapixels float64 `json:"megapixels"`
	MPixPerSec float64 `json:"mpix_per_sec"`
}

type jsonStats struct {
	MinMS  float64 `json:"min_ms"`
	MeanMS float64 `json:"mean_ms"`
	MaxMS  float64 `json:"max_ms"`
}

// FormatJSON writes a JSON report of bench results to w.
func FormatJSON(runs []RunResult, stats Stats, w io.Writer) {
	jr := jsonReport{
		Runs: make([]jsonRun, len(runs)),
		Stats: jsonStats{
			MinMS:  float64(stats.Min.Milliseconds()),
			MeanMS: float64(stats.Mean.Milliseconds()),
			MaxMS:  float64(stats.Max.Milliseconds()),
		},
	}

	for i, r := range runs {
		jr.Runs[i] = jsonRun{
			Index:      r.Index,
			Cold:       r.Cold,
			DurationMS: float64(r.Duration.Milliseconds()),
			Megapixels: r.Megapixels,
			MPixPerSec: r.MPixPerSec,
		}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(jr)
}
