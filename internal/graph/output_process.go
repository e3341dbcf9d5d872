package graph

import (
	"math"

	"github.com/example/denoisegraph/internal/engine"
	"github.com/example/denoisegraph/internal/imgio"
	"github.com/example/denoisegraph/internal/rtensor"
	"github.com/example/denoisegraph/internal/transfer"
)

// OutputProcess implements spec.md §4.3: the inverse of InputProcess for the
// primary color channels only. It reads channels [0,3) of srcOp's
// destination, applies the transfer function's inverse tone curve, and
// writes an external output image at the tile position. OutputProcess has
// no transient destination of its own (spec.md §4.7 "unless the op is an
// OutputProcess which writes to an external image").
type OutputProcess struct {
	name  string
	src   Op
	tf    transfer.Function
	hdr   bool
	snorm bool

	out  *imgio.Image
	tile imgio.Tile
}

// AddOutputProcess constructs an OutputProcess node reading srcOp's
// destination (spec.md §6 addOutputProcess). srcOp must already be part of
// this Graph.
func (g *Graph) AddOutputProcess(name string, srcOp Op, tf transfer.Function, hdr, snorm bool) (*OutputProcess, error) {
	if err := g.checkSource(srcOp); err != nil {
		return nil, err
	}

	if srcOp.Dst().C() < 3 {
		return nil, errMisconfiguredf("graph: OutputProcess source %q has C=%d, need >= 3", srcOp.Name(), srcOp.Dst().C())
	}

	op := &OutputProcess{name: name, src: srcOp, tf: tf, hdr: hdr, snorm: snorm}
	g.register(op)
	// No registerTransient: OutputProcess writes to an external image.

	return op, nil
}

// SetOutput binds the destination image and tile placement for the next
// Run.
func (p *OutputProcess) SetOutput(out *imgio.Image, tile imgio.Tile) {
	p.out, p.tile = out, tile
}

func (p *OutputProcess) Name() string             { return p.name }
func (p *OutputProcess) Dst() rtensor.Desc         { return p.src.Dst() }
func (p *OutputProcess) SetDst(*rtensor.Tensor)    {}
func (p *OutputProcess) WorkAmount() float64       { return float64(p.tile.H * p.tile.W * 3) }
func (p *OutputProcess) sources() []Op             { return []Op{p.src} }
func (p *OutputProcess) Finalize(engine.Engine) error { return nil }

func (p *OutputProcess) Support(eng engine.Engine) bool {
	d := p.src.Dst()
	return d.Layout == rtensor.CHW && d.DType == rtensor.F32 && eng.TensorBlockSize() == 1
}

// Execute implements spec.md §4.3: inverse tone curve, undo input scale,
// undo snorm remap, optional SDR clamp, written at the tile position.
func (p *OutputProcess) Execute(eng engine.Engine) error {
	srcDesc := p.src.Dst()
	h, w := int(srcDesc.H()), int(srcDesc.W())
	spatial := h * w

	srcTensor, err := p.srcTensor()
	if err != nil {
		return err
	}

	data, err := srcTensor.Float32()
	if err != nil {
		return err
	}

	scale := float32(1)
	if p.tf != nil {
		scale = p.tf.InputScale()
	}

	if scale == 0 {
		scale = 1
	}

	eng.SubmitKernel2D(engine.Range2D{Rows: p.tile.H, Cols: p.tile.W}, func(r, c int) {
		hDst := p.tile.HDstBegin + r
		wDst := p.tile.WDstBegin + c

		if hDst < 0 || hDst >= h || wDst < 0 || wDst >= w {
			return
		}

		base := hDst*w + wDst

		var v transfer.Vec3
		for i := 0; i < 3; i++ {
			v[i] = data[i*spatial+base]
		}

		if p.tf != nil {
			v = p.tf.Inverse(v)
		}

		for i := range v {
			v[i] /= scale

			if p.snorm {
				v[i] = (v[i] - 0.5) * 2

				if !p.hdr {
					v[i] = clamp(v[i], -1, 1)
				}
			} else if !p.hdr {
				v[i] = clamp(v[i], 0, 1)
			}
		}

		hSrc, wSrc := p.tile.HSrcBegin+r, p.tile.WSrcBegin+c
		if hSrc < 0 || hSrc >= p.out.H || wSrc < 0 || wSrc >= p.out.W {
			return
		}

		px := p.out.At(hSrc, wSrc)
		for i := 0; i < 3 && i < len(px); i++ {
			px[i] = v[i]
		}
	})

	return nil
}

// srcTensor retrieves src's bound destination tensor from the underlying
// concrete op type, since Op itself exposes no accessor for the bound
// tensor (only SetDst, a write-only setter called once by Graph).
func (p *OutputProcess) srcTensor() (*rtensor.Tensor, error) {
	if t, ok := boundTensorOf(p.src); ok {
		return t, nil
	}

	return nil, errMisconfiguredf("graph: OutputProcess source %q has no bound tensor (Finalize not run?)", p.src.Name())
}
