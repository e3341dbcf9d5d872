package graph

import "github.com/example/denoisegraph/internal/rtensor"

// boundDstOp is implemented by every concrete Op type that owns a transient
// destination tensor (everything except OutputProcess). It lets a consumer
// op (OutputProcess, ConcatConv reading its sources) retrieve the tensor
// SetDst bound, without widening the public Op interface with an accessor
// most callers never need.
type boundDstOp interface {
	boundTensor() *rtensor.Tensor
}

// boundTensorOf returns op's bound destination tensor, if any.
func boundTensorOf(op Op) (*rtensor.Tensor, bool) {
	b, ok := op.(boundDstOp)
	if !ok {
		return nil, false
	}

	t := b.boundTensor()

	return t, t != nil
}
