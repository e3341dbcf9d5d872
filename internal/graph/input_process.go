package graph

import (
	"math"

	"github.com/example/denoisegraph/internal/engine"
	"github.com/example/denoisegraph/internal/imgio"
	"github.com/example/denoisegraph/internal/rtensor"
	"github.com/example/denoisegraph/internal/transfer"
)

// InputProcess implements spec.md §4.2: the tile-aware reorder that maps up
// to three source images (color, albedo, normal) into a single padded,
// channel-ordered tensor, applying the transfer function's forward tone
// curve and HDR/SDR/signed-normalized handling.
type InputProcess struct {
	name string
	dst  rtensor.Desc

	tileAlignment int
	tf            transfer.Function
	hdr           bool
	snorm         bool

	color, albedo, normal *imgio.Image
	tile                  imgio.Tile

	boundDst *rtensor.Tensor
}

// AddInputProcess constructs an InputProcess node producing a tensor of the
// given dims (spec.md §6 addInputProcess). tileAlignment bounds the H,W the
// destination must be divisible by, mirroring the network's downsampling
// factor (e.g. 2 for one Pool stage); 0 or 1 disables the check. Source
// images and the active tile are bound per run via SetInput, since a single
// InputProcess shape is reused across the overlapping tiles of a
// larger-than-working-set image (GLOSSARY "Tile").
func (g *Graph) AddInputProcess(
	name string,
	dstDims []int64,
	tileAlignment int,
	tf transfer.Function,
	hdr, snorm bool,
) (*InputProcess, error) {
	if g.finalized.Load() {
		return nil, errMisconfiguredf("graph: cannot add ops after Finalize")
	}

	desc, err := rtensor.NewDesc(dstDims, rtensor.F32, rtensor.CHW)
	if err != nil {
		return nil, err
	}

	if tileAlignment > 1 {
		if desc.H()%int64(tileAlignment) != 0 || desc.W()%int64(tileAlignment) != 0 {
			return nil, errMisconfiguredf(
				"graph: InputProcess dst H=%d,W=%d not divisible by tile alignment %d",
				desc.H(), desc.W(), tileAlignment,
			)
		}
	}

	op := &InputProcess{name: name, dst: desc, tileAlignment: tileAlignment, tf: tf, hdr: hdr, snorm: snorm}
	g.register(op)
	g.registerTransient(op, desc)

	return op, nil
}

// SetInput binds the source images and tile placement for the next Run.
// color, albedo, normal may each be nil (optional per spec.md §4.2); at
// least one must be non-nil. Channels are written in [color, albedo,
// normal] order starting at channel 0; remaining destination channels are
// zeroed.
func (p *InputProcess) SetInput(color, albedo, normal *imgio.Image, tile imgio.Tile) {
	p.color, p.albedo, p.normal = color, albedo, normal
	p.tile = tile
}

func (p *InputProcess) Name() string             { return p.name }
func (p *InputProcess) Dst() rtensor.Desc        { return p.dst }
func (p *InputProcess) SetDst(t *rtensor.Tensor) { p.boundDst = t }
func (p *InputProcess) WorkAmount() float64      { return float64(p.dst.ElemCount()) }
func (p *InputProcess) sources() []Op            { return nil }
func (p *InputProcess) boundTensor() *rtensor.Tensor { return p.boundDst }

// Support reports whether the destination layout/dtype is one the CPU
// reference kernel below implements: planar CHW float32. Blocked layouts
// are representable in TensorDesc/the arena but the CPU reorder kernel does
// not yet implement the SIMD-blocked channel write (see DESIGN.md).
func (p *InputProcess) Support(eng engine.Engine) bool {
	return p.dst.Layout == rtensor.CHW && p.dst.DType == rtensor.F32 && eng.TensorBlockSize() == 1
}

// Finalize has nothing to do for InputProcess: no weights to reorder.
func (p *InputProcess) Finalize(engine.Engine) error { return nil }

// Execute implements the per-pixel reorder algorithm from spec.md §4.2,
// fanned out across destination rows via Engine.SubmitKernel2D.
func (p *InputProcess) Execute(eng engine.Engine) error {
	c := int(p.dst.C())
	h := int(p.dst.H())
	w := int(p.dst.W())

	out := make([]float32, p.dst.ElemCount())
	spatial := h * w

	scale := float32(1)
	if p.tf != nil {
		scale = p.tf.InputScale()
	}

	eng.SubmitKernel2D(engine.Range2D{Rows: h, Cols: w}, func(hDst, wDst int) {
		base := hDst*w + wDst

		if !p.tile.Contains(hDst, wDst) {
			// Zero padding (spec.md §4.2 step 2); out is already zeroed.
			return
		}

		hSrc, wSrc := p.tile.SourceCoord(hDst, wDst)

		p.writeGroup(out, base, spatial, c, 0, p.color, hSrc, wSrc, scale, groupColor)
		p.writeGroup(out, base, spatial, c, 3, p.albedo, hSrc, wSrc, scale, groupAlbedo)
		p.writeGroup(out, base, spatial, c, 6, p.normal, hSrc, wSrc, scale, groupNormal)
	})

	return p.boundDst.SetFloat32(out)
}

type pixelGroup int

const (
	groupColor pixelGroup = iota
	groupAlbedo
	groupNormal
)

// writeGroup writes one 3-channel group (color/albedo/normal) at channel
// offset chOff, following spec.md §4.2 step 3. img == nil leaves the
// channels at their zeroed default (step 4, for destinations with C beyond
// the channels present).
func (p *InputProcess) writeGroup(
	out []float32, base, spatial, c, chOff int, img *imgio.Image,
	hSrc, wSrc int, scale float32, group pixelGroup,
) {
	if chOff+3 > c || img == nil {
		return
	}

	px := img.At(hSrc, wSrc)

	var v transfer.Vec3
	for i := 0; i < 3; i++ {
		if i < len(px) {
			v[i] = px[i]
		}

		if math.IsNaN(float64(v[i])) {
			v[i] = 0
		}
	}

	switch group {
	case groupColor:
		lo, hi := float32(0), float32(1)

		if p.snorm {
			lo = -1
		}

		if p.hdr {
			hi = float32(math.Inf(1))
		}

		for i := range v {
			v[i] = clamp(v[i]*scale, lo, hi)

			if p.snorm {
				v[i] = v[i]*0.5 + 0.5
			}
		}

		if p.tf != nil {
			v = p.tf.Forward(v)
		}
	case groupAlbedo:
		for i := range v {
			if p.color == nil {
				v[i] *= scale
			}

			v[i] = clamp(v[i], 0, 1)
		}

		if p.color == nil && p.tf != nil {
			v = p.tf.Forward(v)
		}
	case groupNormal:
		for i := range v {
			if p.color == nil {
				v[i] *= scale
			}

			v[i] = clamp(v[i], -1, 1)
			v[i] = v[i]*0.5 + 0.5
		}
	}

	for i := 0; i < 3; i++ {
		out[(chOff+i)*spatial+base] = v[i]
	}
}

func clamp(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}

	if v > hi {
		return hi
	}

	return v
}
