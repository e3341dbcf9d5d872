package graph

import (
	"github.com/example/denoisegraph/internal/engine"
	"github.com/example/denoisegraph/internal/rtensor"
	"github.com/example/denoisegraph/internal/rtensor/ops"
)

// Conv implements spec.md §4.4: a 3x3, stride-1, padding-1 convolution
// (H,W preserved) with weights and bias taken from the Graph's constTensors
// map under name+".weight"/name+".bias", an optional ReLU activation, and an
// optional fused 2x2 max-pool post-op that halves the destination's H,W.
type Conv struct {
	name       string
	owner      *Graph
	src        Op
	activation Activation
	postOp     PostOp
	dst        rtensor.Desc

	weight, bias *rtensor.Tensor
	boundDst     *rtensor.Tensor
}

// AddConv constructs a Conv node reading srcOp's destination (spec.md §6
// addConv). The weight/bias tensors are resolved lazily from the Graph's
// constTensors map during Finalize, so SetConstTensor may be called either
// before or after AddConv as long as it happens before Finalize.
func (g *Graph) AddConv(name string, srcOp Op, activation Activation, postOp PostOp) (Op, error) {
	if err := g.checkSource(srcOp); err != nil {
		return nil, err
	}

	srcDesc := srcOp.Dst()
	outDesc := srcDesc

	if postOp == PostOpPool {
		outDesc = outDesc.WithHW(srcDesc.H()/2, srcDesc.W()/2)
	}

	op := &Conv{name: name, owner: g, src: srcOp, activation: activation, postOp: postOp, dst: outDesc}
	g.register(op)
	g.registerTransient(op, outDesc)

	return op, nil
}

func (c *Conv) Name() string             { return c.name }
func (c *Conv) Dst() rtensor.Desc        { return c.dst }
func (c *Conv) SetDst(t *rtensor.Tensor) { c.boundDst = t }
func (c *Conv) WorkAmount() float64      { return float64(c.dst.ElemCount()) }
func (c *Conv) sources() []Op            { return []Op{c.src} }
func (c *Conv) boundTensor() *rtensor.Tensor { return c.boundDst }

func (c *Conv) Support(eng engine.Engine) bool {
	d := c.src.Dst()
	return d.Layout == rtensor.CHW && d.DType == rtensor.F32 &&
		c.dst.Layout == rtensor.CHW && c.dst.DType == rtensor.F32 &&
		eng.TensorBlockSize() == 1
}

// Finalize resolves this Conv's weight/bias tensors from the Graph's
// constTensors map. The CPU reference kernel consumes planar-layout weights
// directly, so no reorder copy is made; on an engine whose preferred layout
// is blocked, a real implementation would reorder here into a private
// tensor and call trackPrivate — left as a documented gap (see DESIGN.md)
// since Support() already rejects blocked layouts for this reference
// engine.
func (c *Conv) Finalize(engine.Engine) error {
	weight, ok := c.owner.ConstTensor(c.name + ".weight")
	if !ok {
		return errMisconfiguredf("graph: conv %q missing constant tensor %q", c.name, c.name+".weight")
	}

	c.weight = weight
	c.bias, _ = c.owner.ConstTensor(c.name + ".bias") // bias is optional

	return nil
}

func (c *Conv) Execute(eng engine.Engine) error {
	srcTensor, ok := boundTensorOf(c.src)
	if !ok {
		return errMisconfiguredf("graph: conv %q source has no bound tensor", c.name)
	}

	convOut, err := ops.Conv2D3x3(srcTensor, c.weight, c.bias)
	if err != nil {
		return err
	}

	committed := convOut

	if c.postOp == PostOpPool {
		pooled, err := ops.MaxPool2x2(convOut)
		if err != nil {
			return err
		}

		committed = pooled
	}

	// ReLU is applied to whatever is actually committed (pooled output when
	// postOp fuses a pool, the raw conv output otherwise), never to a
	// throwaway copy: ops.Conv2D3x3/MaxPool2x2 each decode into a fresh
	// []float32 (rtensor.Tensor.Float32), so mutating an earlier copy would
	// not reach the tensor that gets pooled or committed below. ReLU
	// commutes with max-pooling (both are monotone nondecreasing), so
	// applying it after the fused pool is equivalent to applying it before.
	data, err := committed.Float32()
	if err != nil {
		return err
	}

	if c.activation == ActivationReLU {
		ops.ReLU(data)
	}

	return c.boundDst.SetFloat32(data)
}
