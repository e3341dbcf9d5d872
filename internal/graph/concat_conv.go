package graph

import (
	"github.com/example/denoisegraph/internal/engine"
	"github.com/example/denoisegraph/internal/rtensor"
	"github.com/example/denoisegraph/internal/rtensor/ops"
)

// ConcatConv implements spec.md §4.4: logically concatenates src1 and src2
// along the channel axis, then convolves. When the arena planner can place
// both sources contiguously (see spec.md §4.6 "concat source" rule), the
// concatenation is a no-copy view; otherwise ConcatConv falls back to
// materializing the concatenated input once per Execute.
type ConcatConv struct {
	name       string
	owner      *Graph
	src1, src2 Op
	activation Activation
	dst        rtensor.Desc

	colocated bool

	weight, bias *rtensor.Tensor
	boundDst     *rtensor.Tensor
}

// AddConcatConv constructs a ConcatConv node (spec.md §6 addConcatConv).
// src1 and src2 must share H,W; their channel counts sum into the
// convolution's input channel count.
func (g *Graph) AddConcatConv(name string, src1Op, src2Op Op, activation Activation) (Op, error) {
	if err := g.checkSource(src1Op); err != nil {
		return nil, err
	}

	if err := g.checkSource(src2Op); err != nil {
		return nil, err
	}

	d1, d2 := src1Op.Dst(), src2Op.Dst()
	if d1.H() != d2.H() || d1.W() != d2.W() {
		return nil, errMisconfiguredf(
			"graph: ConcatConv sources %q (%dx%d) and %q (%dx%d) have mismatched spatial dims",
			src1Op.Name(), d1.H(), d1.W(), src2Op.Name(), d2.H(), d2.W(),
		)
	}

	outDesc := d1.WithC(d1.C() + d2.C())

	op := &ConcatConv{name: name, owner: g, src1: src1Op, src2: src2Op, activation: activation, dst: outDesc}
	g.register(op)
	g.registerTransient(op, outDesc)

	// Attempt colocation per spec.md §4.6 and §9 Open Question 2: requires
	// identical element size between the two sources. Both this graph's
	// tensors are always F32 today, so the size1 == size2 check is a
	// forward-looking guard for when a second dtype is introduced.
	s1, _ := d1.DType.ByteSize()
	s2, _ := d2.DType.ByteSize()
	op.colocated = s1 == s2 && g.addColocation(src1Op, src2Op)

	return op, nil
}

func (c *ConcatConv) Name() string             { return c.name }
func (c *ConcatConv) Dst() rtensor.Desc        { return c.dst }
func (c *ConcatConv) SetDst(t *rtensor.Tensor) { c.boundDst = t }
func (c *ConcatConv) WorkAmount() float64      { return float64(c.dst.ElemCount()) }
func (c *ConcatConv) sources() []Op            { return []Op{c.src1, c.src2} }
func (c *ConcatConv) boundTensor() *rtensor.Tensor { return c.boundDst }

func (c *ConcatConv) Support(eng engine.Engine) bool {
	d1, d2 := c.src1.Dst(), c.src2.Dst()
	return d1.Layout == rtensor.CHW && d1.DType == rtensor.F32 &&
		d2.Layout == rtensor.CHW && d2.DType == rtensor.F32 &&
		eng.TensorBlockSize() == 1
}

func (c *ConcatConv) Finalize(engine.Engine) error {
	weight, ok := c.owner.ConstTensor(c.name + ".weight")
	if !ok {
		return errMisconfiguredf("graph: concatconv %q missing constant tensor %q", c.name, c.name+".weight")
	}

	c.weight = weight
	c.bias, _ = c.owner.ConstTensor(c.name + ".bias")

	return nil
}

// Execute implements the no-copy view (when colocated) or materialized
// fallback (spec.md §4.4, §4.6).
func (c *ConcatConv) Execute(eng engine.Engine) error {
	input, err := c.concatInput()
	if err != nil {
		return err
	}

	convOut, err := ops.Conv2D3x3(input, c.weight, c.bias)
	if err != nil {
		return err
	}

	data, err := convOut.Float32()
	if err != nil {
		return err
	}

	if c.activation == ActivationReLU {
		ops.ReLU(data)
	}

	return c.boundDst.SetFloat32(data)
}

// concatInput returns a tensor viewing src1||src2 concatenated along
// channels. When c.colocated, the arena planner placed both sources
// back-to-back in the same scratch Buffer, so a new Tensor descriptor
// spanning both byte ranges is a zero-copy view. Otherwise it materializes
// the concatenation via ops.ConcatChannels.
func (c *ConcatConv) concatInput() (*rtensor.Tensor, error) {
	t1, ok1 := boundTensorOf(c.src1)
	t2, ok2 := boundTensorOf(c.src2)

	if !ok1 || !ok2 {
		return nil, errMisconfiguredf("graph: concatconv %q sources have no bound tensor", c.name)
	}

	if !c.colocated {
		return ops.ConcatChannels(t1, t2)
	}

	d1, d2 := t1.Desc(), t2.Desc()
	combined := d1.WithC(d1.C() + d2.C())

	return rtensor.NewTransient(combined, t1.Buffer(), t1.ByteOffset())
}
