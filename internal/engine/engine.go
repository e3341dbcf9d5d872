// Package engine declares the narrow compute-backend interface the graph
// runtime submits work to (spec §6). The graph package never branches on
// backend; only Engine implementations do. See internal/engine/cpuengine
// for a concrete CPU implementation.
package engine

import "github.com/example/denoisegraph/internal/rtensor"

// Range2D is a 2-D kernel launch range, e.g. {Rows: H, Cols: W} for a
// data-parallel op fanned out over output rows/columns.
type Range2D struct {
	Rows int
	Cols int
}

// Kernel2D is called by Engine.SubmitKernel2D once per (r, c) cell of the
// launch range; r and c range over [0, Range2D.Rows) and [0, Range2D.Cols).
type Kernel2D func(r, c int)

// Engine is the compute-backend collaborator consumed by this module (spec
// §6). Implementations submit kernels, allocate device memory, and own the
// tensor block size used to pick a blocked layout.
type Engine interface {
	// TensorBlockSize returns the channel block size for blocked layouts:
	// 1 (planar), 8, or 16.
	TensorBlockSize() int

	// NewBuffer allocates byteSize bytes of the given storage class.
	NewBuffer(byteSize int64, storage rtensor.Storage) (rtensor.Buffer, error)

	// SubmitKernel2D fans a kernel out over a 2-D range. May be
	// asynchronous with respect to the engine's queue; execution is
	// in-order relative to other submissions from the same goroutine.
	SubmitKernel2D(r Range2D, k Kernel2D)

	// ScratchByteSize returns additional workspace the engine itself needs
	// (e.g. kernel scratch), laid out before the tensor arena.
	ScratchByteSize() int64

	// Wait drains all pending asynchronous work.
	Wait()
}
