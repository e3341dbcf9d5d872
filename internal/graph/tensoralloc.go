package graph

import "github.com/example/denoisegraph/internal/rtensor"

// allocAlignment is the byte alignment the arena planner enforces for every
// transient tensor, chosen to match a typical cache line so kernels fanning
// out across rows never split a cache line between two live tensors.
const allocAlignment = 64

// tensorAlloc is the internal record created per op while building (spec.md
// §3): the op's destination descriptor, the allocation ID handed to the
// arena planner, and the bound tensor once planning has run.
type tensorAlloc struct {
	desc    rtensor.Desc
	allocID int
	bound   *rtensor.Tensor
}
