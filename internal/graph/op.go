// Package graph implements the operation graph: a directed acyclic graph of
// tensor ops built up by Add* calls, packed onto a scratch arena by the
// lifetime-based planner in internal/graph/arena, and executed in insertion
// order with progress reporting. Op polymorphism follows spec.md §9: a Go
// interface plays the role of the vtable, with InputProcess/OutputProcess as
// distinct struct types because their external Image bindings differ from
// the pure tensor-to-tensor ops. Node/dependency bookkeeping (ops reference
// only previously added ops, consumers extend a source's lifetime) is
// grounded on other_examples zerfoo-zerfoo's graph.go, adapted from a
// trainable autodiff graph to a finalize-once inference graph.
package graph

import (
	"github.com/example/denoisegraph/internal/engine"
	"github.com/example/denoisegraph/internal/rtensor"
)

// Op is the abstract graph node contract from spec.md §4.1: a destination
// tensor descriptor known at construction, a one-time Finalize step run
// after planning binds the destination, an Execute step that issues the
// kernel, and a work-amount estimate used only to weight progress reports.
type Op interface {
	// Name identifies the op, used for weight lookup (Conv/ConcatConv),
	// error messages and progress diagnostics.
	Name() string

	// Dst returns the output tensor descriptor. Known at construction,
	// before planning or binding.
	Dst() rtensor.Desc

	// SetDst binds the op's output tensor after the arena planner has
	// assigned it an offset. Called exactly once by Graph, except for
	// OutputProcess which has no transient destination and ignores it.
	SetDst(t *rtensor.Tensor)

	// Support reports whether eng can execute this op with the shapes and
	// types it was constructed with.
	Support(eng engine.Engine) bool

	// WorkAmount is a monotone, non-negative relative cost estimate,
	// proportional to output element count for data-parallel ops. Used only
	// to weight Graph.Run's progress callback.
	WorkAmount() float64

	// Finalize runs once, after every transient tensor in the Graph has
	// been bound, in insertion order. Used for one-time setup: reordering
	// weights into the engine's preferred layout, compiling kernels.
	Finalize(eng engine.Engine) error

	// Execute issues the op's kernel. May be asynchronous with respect to
	// the engine's queue, but must appear in-order relative to other ops:
	// when Execute(op[i]) returns, Execute(op[i+1]) observes its writes.
	Execute(eng engine.Engine) error

	// sources returns the ops this op consumes, so Graph can validate
	// cross-graph references and extend each source's death index. nil for
	// ops with no graph-internal sources (InputProcess).
	sources() []Op
}

// Activation selects the post-convolution nonlinearity (spec.md §4.4).
type Activation int

const (
	ActivationNone Activation = iota
	ActivationReLU
)

func (a Activation) String() string {
	switch a {
	case ActivationReLU:
		return "relu"
	default:
		return "none"
	}
}

// PostOp selects a fused post-convolution operation (spec.md §4.4). Only
// Pool fusion is modeled; when fused, the Conv's destination dims are
// halved.
type PostOp int

const (
	PostOpNone PostOp = iota
	PostOpPool
)

func (p PostOp) String() string {
	switch p {
	case PostOpPool:
		return "pool"
	default:
		return "none"
	}
}

// Progress is the narrow collaborator consumed by Graph.Run (spec.md §6):
// Update reports a fraction in [0,1] and returns false to request
// cancellation.
type Progress interface {
	Update(fraction float64) bool
}

// ProgressFunc adapts a plain function to Progress.
type ProgressFunc func(fraction float64) bool

func (f ProgressFunc) Update(fraction float64) bool { return f(fraction) }
