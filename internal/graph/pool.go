package graph

import (
	"github.com/example/denoisegraph/internal/engine"
	"github.com/example/denoisegraph/internal/rtensor"
	"github.com/example/denoisegraph/internal/rtensor/ops"
)

// Pool implements spec.md §4.5: 2x2 max pooling, stride 2. Output dims are
// floor(H/2), floor(W/2); channels unchanged.
type Pool struct {
	name     string
	src      Op
	dst      rtensor.Desc
	boundDst *rtensor.Tensor
}

// AddPool constructs a Pool node reading srcOp's destination (spec.md §6
// addPool).
func (g *Graph) AddPool(name string, srcOp Op) (Op, error) {
	if err := g.checkSource(srcOp); err != nil {
		return nil, err
	}

	srcDesc := srcOp.Dst()
	outDesc := srcDesc.WithHW(srcDesc.H()/2, srcDesc.W()/2)

	op := &Pool{name: name, src: srcOp, dst: outDesc}
	g.register(op)
	g.registerTransient(op, outDesc)

	return op, nil
}

func (p *Pool) Name() string             { return p.name }
func (p *Pool) Dst() rtensor.Desc        { return p.dst }
func (p *Pool) SetDst(t *rtensor.Tensor) { p.boundDst = t }
func (p *Pool) WorkAmount() float64      { return float64(p.dst.ElemCount()) }
func (p *Pool) sources() []Op            { return []Op{p.src} }
func (p *Pool) boundTensor() *rtensor.Tensor { return p.boundDst }

func (p *Pool) Support(eng engine.Engine) bool {
	d := p.src.Dst()
	return d.Layout == rtensor.CHW && d.DType == rtensor.F32 && eng.TensorBlockSize() == 1
}

func (p *Pool) Finalize(engine.Engine) error { return nil }

func (p *Pool) Execute(eng engine.Engine) error {
	srcTensor, ok := boundTensorOf(p.src)
	if !ok {
		return errMisconfiguredf("graph: pool %q source has no bound tensor", p.name)
	}

	out, err := ops.MaxPool2x2(srcTensor)
	if err != nil {
		return err
	}

	data, err := out.Float32()
	if err != nil {
		return err
	}

	return p.boundDst.SetFloat32(data)
}

// Upsample implements spec.md §4.5: nearest-neighbor 2x. Output dims are
// 2H, 2W.
type Upsample struct {
	name     string
	src      Op
	dst      rtensor.Desc
	boundDst *rtensor.Tensor
}

// AddUpsample constructs an Upsample node reading srcOp's destination
// (spec.md §6 addUpsample).
func (g *Graph) AddUpsample(name string, srcOp Op) (Op, error) {
	if err := g.checkSource(srcOp); err != nil {
		return nil, err
	}

	srcDesc := srcOp.Dst()
	outDesc := srcDesc.WithHW(srcDesc.H()*2, srcDesc.W()*2)

	op := &Upsample{name: name, src: srcOp, dst: outDesc}
	g.register(op)
	g.registerTransient(op, outDesc)

	return op, nil
}

func (u *Upsample) Name() string             { return u.name }
func (u *Upsample) Dst() rtensor.Desc        { return u.dst }
func (u *Upsample) SetDst(t *rtensor.Tensor) { u.boundDst = t }
func (u *Upsample) WorkAmount() float64      { return float64(u.dst.ElemCount()) }
func (u *Upsample) sources() []Op            { return []Op{u.src} }
func (u *Upsample) boundTensor() *rtensor.Tensor { return u.boundDst }

func (u *Upsample) Support(eng engine.Engine) bool {
	d := u.src.Dst()
	return d.Layout == rtensor.CHW && d.DType == rtensor.F32 && eng.TensorBlockSize() == 1
}

func (u *Upsample) Finalize(engine.Engine) error { return nil }

func (u *Upsample) Execute(eng engine.Engine) error {
	srcTensor, ok := boundTensorOf(u.src)
	if !ok {
		return errMisconfiguredf("graph: upsample %q source has no bound tensor", u.name)
	}

	out, err := ops.Upsample2xNearest(srcTensor)
	if err != nil {
		return err
	}

	data, err := out.Float32()
	if err != nil {
		return err
	}

	return u.boundDst.SetFloat32(data)
}
