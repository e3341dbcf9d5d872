// Package doctor provides environment preflight checks for denoisegraph:
// that the configured weights file exists and carries the expected conv
// tensors, and that the requested graph shape's scratch budget is sane
// before a Run is attempted.
package doctor

import (
	"fmt"
	"io"
	"os"

	"github.com/example/denoisegraph/internal/rtensor/ops"
	"github.com/example/denoisegraph/internal/safetensors"
)

// PassMark and FailMark are the prefix symbols printed for each check result.
const (
	PassMark = "✓"
	FailMark = "✗"
)

// ScratchSizeFunc returns the scratch byte size a configured Graph requires,
// or an error if the graph could not be planned.
type ScratchSizeFunc func() (int64, error)

// Config holds injectable dependencies for each doctor check.
type Config struct {
	// WeightsPath is the safetensors file expected to hold the network's
	// conv weights and biases.
	WeightsPath string
	// RequiredTensors lists the dotted tensor names (e.g. "enc1.weight")
	// that must be present in WeightsPath.
	RequiredTensors []string
	// ScratchSize reports the scratch arena size GetScratchByteSize would
	// compute for the configured graph. Nil skips the check.
	ScratchSize ScratchSizeFunc
	// MaxScratchBytes bounds ScratchSize's result; 0 disables the bound.
	MaxScratchBytes int64
}

// Result collects the outcome of all checks.
type Result struct {
	failures []string
}

// Failed returns true if any check failed.
func (r *Result) Failed() bool { return len(r.failures) > 0 }

// Failures returns the list of failure messages.
func (r *Result) Failures() []string { return append([]string(nil), r.failures...) }

// AddFailure appends an external failure message to the result.
func (r *Result) AddFailure(msg string) { r.failures = append(r.failures, msg) }

func (r *Result) fail(msg string) { r.failures = append(r.failures, msg) }

// Run executes all configured checks and writes human-readable output to w.
// Each check line is prefixed with PassMark or FailMark.
func Run(cfg Config, w io.Writer) Result {
	var res Result

	// ---- weights file -------------------------------------------------
	store, err := safetensors.OpenStore(cfg.WeightsPath, safetensors.StoreOptions{})
	if err != nil {
		res.fail(fmt.Sprintf("weights file %q: %v", cfg.WeightsPath, err))
		fmt.Fprintf(w, "%s weights file: %v\n", FailMark, err)
	} else {
		fmt.Fprintf(w, "%s weights file: %s (%d tensors)\n", PassMark, cfg.WeightsPath, len(store.Names()))

		for _, name := range cfg.RequiredTensors {
			if store.Has(name) {
				fmt.Fprintf(w, "%s tensor: %s\n", PassMark, name)
			} else {
				res.fail(fmt.Sprintf("tensor %q: not found in %s", name, cfg.WeightsPath))
				fmt.Fprintf(w, "%s tensor: %s not found\n", FailMark, name)
			}
		}

		store.Close()
	}

	// ---- scratch budget -------------------------------------------------
	if cfg.ScratchSize != nil {
		size, err := cfg.ScratchSize()
		if err != nil {
			res.fail(fmt.Sprintf("scratch plan: %v", err))
			fmt.Fprintf(w, "%s scratch plan: %v\n", FailMark, err)
		} else if cfg.MaxScratchBytes > 0 && size > cfg.MaxScratchBytes {
			res.fail(fmt.Sprintf("scratch size %d exceeds budget %d", size, cfg.MaxScratchBytes))
			fmt.Fprintf(w, "%s scratch size: %d bytes exceeds budget %d\n", FailMark, size, cfg.MaxScratchBytes)
		} else {
			fmt.Fprintf(w, "%s scratch size: %d bytes\n", PassMark, size)
		}
	}

	// ---- CPU features -------------------------------------------------
	if ops.HasAVX2FMA() {
		fmt.Fprintf(w, "%s cpu features: AVX2+FMA available\n", PassMark)
	} else {
		fmt.Fprintf(w, "%s cpu features: AVX2+FMA not available (falling back to portable kernels)\n", PassMark)
	}

	return res
}

// WeightsFileExists is a small convenience helper used by cmd/denoisegraph's
// doctor subcommand to short-circuit before even attempting OpenStore.
func WeightsFileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
