// Package cpuengine is the reference CPU implementation of the
// internal/engine.Engine and internal/rtensor.Buffer interfaces. It exists
// so the graph runtime is runnable and testable without real device
// hardware, the way internal/onnx.Engine gives the teacher's TTS service a
// concrete, constructed-once, closed-once backend.
package cpuengine

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/example/denoisegraph/internal/engine"
	"github.com/example/denoisegraph/internal/rtensor"
)

// Engine is an in-process CPU compute backend. Kernels submitted via
// SubmitKernel2D run synchronously on a bounded worker pool: SubmitKernel2D
// blocks until every row chunk it spawned has completed, matching
// internal/runtime/ops.parallelFor's shape, so that "when execute(op_i)
// returns, subsequent execute will observe its writes" (spec.md §5) holds
// without a separate per-op barrier. Wait drains any engine-wide pending
// work (none today, since every submission is already synchronous; kept
// for engine.Engine's async-backend contract).
type Engine struct {
	workers   int
	blockSize int

	inFlight atomic.Int64
}

// Options configures a new CPU Engine.
type Options struct {
	// Workers bounds concurrent SubmitKernel2D fan-out. 0 or 1 means
	// sequential execution.
	Workers int
	// TensorBlockSize selects the channel-blocked layout the engine
	// prefers: 1 (planar), 8, or 16.
	TensorBlockSize int
}

// New constructs a CPU Engine. Logs construction the way
// internal/onnx.NewEngine logs each created runner.
func New(opts Options) (*Engine, error) {
	if opts.TensorBlockSize != 1 && opts.TensorBlockSize != 8 && opts.TensorBlockSize != 16 {
		return nil, fmt.Errorf("cpuengine: unsupported tensor block size %d", opts.TensorBlockSize)
	}

	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}

	e := &Engine{
		workers:   workers,
		blockSize: opts.TensorBlockSize,
	}

	slog.Info("created CPU engine", "workers", workers, "tensor_block_size", opts.TensorBlockSize)

	return e, nil
}

// TensorBlockSize implements engine.Engine.
func (e *Engine) TensorBlockSize() int { return e.blockSize }

// NewBuffer implements engine.Engine.
func (e *Engine) NewBuffer(byteSize int64, storage rtensor.Storage) (rtensor.Buffer, error) {
	if byteSize < 0 {
		return nil, fmt.Errorf("cpuengine: negative buffer size %d", byteSize)
	}

	return &Buffer{data: make([]byte, byteSize), storage: storage}, nil
}

// SubmitKernel2D implements engine.Engine. Fans the kernel out across rows
// using a bounded goroutine pool, chunking by outer index only (columns run
// sequentially within a row chunk), matching
// internal/runtime/ops.parallelFor's shape exactly: it blocks until every
// spawned chunk has returned before SubmitKernel2D itself returns. This is
// required, not incidental — Graph.Run's ops read/write their bound tensors
// immediately after Execute's SubmitKernel2D call returns, with no
// per-op barrier, so a kernel that is still writing when SubmitKernel2D
// returns would race the caller.
func (e *Engine) SubmitKernel2D(r engine.Range2D, k engine.Kernel2D) {
	if r.Rows <= 0 || r.Cols <= 0 {
		return
	}

	if e.workers <= 1 || r.Rows <= 1 {
		for row := 0; row < r.Rows; row++ {
			for col := 0; col < r.Cols; col++ {
				k(row, col)
			}
		}

		return
	}

	chunk := (r.Rows + e.workers - 1) / e.workers

	var wg sync.WaitGroup

	for lo := 0; lo < r.Rows; lo += chunk {
		hi := lo + chunk
		if hi > r.Rows {
			hi = r.Rows
		}

		wg.Add(1)
		e.inFlight.Add(1)

		go func(lo, hi int) {
			defer wg.Done()
			defer e.inFlight.Add(-1)

			for row := lo; row < hi; row++ {
				for col := 0; col < r.Cols; col++ {
					k(row, col)
				}
			}
		}(lo, hi)
	}

	wg.Wait()
}

// ScratchByteSize implements engine.Engine. The CPU backend needs no
// additional workspace beyond the tensor arena.
func (e *Engine) ScratchByteSize() int64 { return 0 }

// Wait implements engine.Engine. Every SubmitKernel2D call already blocks
// until its fan-out completes, so there is no pending work to drain; Wait
// is a no-op kept to satisfy the Engine interface's async-backend contract
// (spec.md §5's "final barrier" before Run returns).
func (e *Engine) Wait() {}

// InFlight reports the number of currently-executing kernel chunks; exposed
// for doctor/bench diagnostics, not part of engine.Engine.
func (e *Engine) InFlight() int64 { return e.inFlight.Load() }
