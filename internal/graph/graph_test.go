package graph

import (
	"math"
	"testing"

	"github.com/example/denoisegraph/internal/engine/cpuengine"
	"github.com/example/denoisegraph/internal/imgio"
	"github.com/example/denoisegraph/internal/rtensor"
	"github.com/example/denoisegraph/internal/transfer"
)

func newTestEngine(t *testing.T) *cpuengine.Engine {
	t.Helper()

	eng, err := cpuengine.New(cpuengine.Options{Workers: 2, TensorBlockSize: 1})
	if err != nil {
		t.Fatalf("cpuengine.New: %v", err)
	}

	return eng
}

// identityConvWeight builds a [c,c,3,3] weight tensor that is the identity
// kernel (center tap 1, all else 0) per output channel == input channel, so
// a Conv with this weight and a zero bias is a pass-through.
func identityConvWeight(t *testing.T, c int64) *rtensor.Tensor {
	t.Helper()

	desc, err := rtensor.NewDesc([]int64{c, c, 3, 3}, rtensor.F32, rtensor.CHW)
	if err != nil {
		t.Fatalf("NewDesc: %v", err)
	}

	tensor, err := rtensor.NewPrivate(desc)
	if err != nil {
		t.Fatalf("NewPrivate: %v", err)
	}

	data := make([]float32, c*c*9)
	for oc := int64(0); oc < c; oc++ {
		data[(oc*c+oc)*9+4] = 1 // center tap of the (oc,oc) 3x3 kernel
	}

	if err := tensor.SetFloat32(data); err != nil {
		t.Fatalf("SetFloat32: %v", err)
	}

	return tensor
}

// negatedIdentityConvWeight is identityConvWeight with every center tap
// negated, so a Conv with this weight and zero bias computes dst = -src:
// useful for forcing a negative conv output regardless of the sign of the
// (non-negative, post-InputProcess) input, to exercise ReLU.
func negatedIdentityConvWeight(t *testing.T, c int64) *rtensor.Tensor {
	t.Helper()

	w := identityConvWeight(t, c)

	data, err := w.Float32()
	if err != nil {
		t.Fatalf("Float32: %v", err)
	}

	for i := range data {
		data[i] = -data[i]
	}

	if err := w.SetFloat32(data); err != nil {
		t.Fatalf("SetFloat32: %v", err)
	}

	return w
}

func zeroBias(t *testing.T, c int64) *rtensor.Tensor {
	t.Helper()

	desc, err := rtensor.NewDesc([]int64{1, c, 1, 1}, rtensor.F32, rtensor.CHW)
	if err != nil {
		t.Fatalf("NewDesc: %v", err)
	}

	tensor, err := rtensor.NewPrivate(desc)
	if err != nil {
		t.Fatalf("NewPrivate: %v", err)
	}

	if err := tensor.SetFloat32(make([]float32, c)); err != nil {
		t.Fatalf("SetFloat32: %v", err)
	}

	return tensor
}

func finalizeAndScratch(t *testing.T, g *Graph, eng *cpuengine.Engine) {
	t.Helper()

	size, err := g.GetScratchByteSize()
	if err != nil {
		t.Fatalf("GetScratchByteSize: %v", err)
	}

	buf, err := eng.NewBuffer(size, rtensor.StorageHost)
	if err != nil {
		t.Fatalf("NewBuffer: %v", err)
	}

	if err := g.SetScratch(buf); err != nil {
		t.Fatalf("SetScratch: %v", err)
	}

	if err := g.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
}

func fillColorImage(h, w int, v func(h, w, c int) float32) *imgio.Image {
	img := imgio.NewImage(h, w, 3, imgio.F32)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			px := img.At(y, x)
			for c := 0; c < 3; c++ {
				px[c] = v(y, x, c)
			}
		}
	}

	return img
}

// TestRoundTripIdentityNetwork covers spec.md §8 invariant 1: an
// InputProcess -> OutputProcess pair with no intermediate ops reproduces
// input pixels within tolerance, for every hdr/snorm combination.
func TestRoundTripIdentityNetwork(t *testing.T) {
	for _, hdr := range []bool{false, true} {
		for _, snorm := range []bool{false, true} {
			hdr, snorm := hdr, snorm
			t.Run(name(hdr, snorm), func(t *testing.T) {
				eng := newTestEngine(t)
				g := New(eng)

				tf := transfer.NewLinear(1)

				in, err := g.AddInputProcess("in", []int64{1, 3, 4, 4}, 0, tf, hdr, snorm)
				if err != nil {
					t.Fatalf("AddInputProcess: %v", err)
				}

				out, err := g.AddOutputProcess("out", in, tf, hdr, snorm)
				if err != nil {
					t.Fatalf("AddOutputProcess: %v", err)
				}

				finalizeAndScratch(t, g, eng)

				var base float32 = 0.2
				if snorm {
					base = -0.3
				}

				color := fillColorImage(4, 4, func(h, w, c int) float32 {
					return base + 0.01*float32(h+w+c)
				})

				tile := imgio.Tile{H: 4, W: 4}
				in.SetInput(color, nil, nil, tile)

				outImg := imgio.NewImage(4, 4, 3, imgio.F32)
				out.SetOutput(&outImg, tile)

				if err := g.Run(ProgressFunc(func(float64) bool { return true })); err != nil {
					t.Fatalf("Run: %v", err)
				}

				for y := 0; y < 4; y++ {
					for x := 0; x < 4; x++ {
						want := color.At(y, x)
						got := outImg.At(y, x)

						for c := 0; c < 3; c++ {
							if math.Abs(float64(want[c]-got[c])) > 1e-4 {
								t.Fatalf("pixel (%d,%d) channel %d: got %v want %v", y, x, c, got[c], want[c])
							}
						}
					}
				}
			})
		}
	}
}

func name(hdr, snorm bool) string {
	s := "sdr"
	if hdr {
		s = "hdr"
	}

	if snorm {
		s += "_snorm"
	}

	return s
}

// TestInputProcessZeroPadding covers spec.md §8 invariant 2: destination
// pixels outside the tile placement are bitwise zero across all channels.
func TestInputProcessZeroPadding(t *testing.T) {
	eng := newTestEngine(t)
	g := New(eng)

	tf := transfer.NewLinear(1)

	in, err := g.AddInputProcess("in", []int64{1, 9, 16, 16}, 0, tf, false, false)
	if err != nil {
		t.Fatalf("AddInputProcess: %v", err)
	}

	finalizeAndScratch(t, g, eng)

	color := fillColorImage(16, 16, func(h, w, c int) float32 { return 0.5 })
	albedo := fillColorImage(16, 16, func(h, w, c int) float32 { return 0.5 })
	normal := fillColorImage(16, 16, func(h, w, c int) float32 { return 0.5 })

	tile := imgio.Tile{HSrcBegin: 0, WSrcBegin: 0, HDstBegin: 2, WDstBegin: 2, H: 12, W: 12}
	in.SetInput(color, albedo, normal, tile)

	if err := g.Run(nil); err != nil {
		t.Fatalf("Run: %v", err)
	}

	bound, ok := boundTensorOf(in)
	if !ok {
		t.Fatal("InputProcess has no bound tensor")
	}

	data, err := bound.Float32()
	if err != nil {
		t.Fatalf("Float32: %v", err)
	}

	const h, w, c = 16, 16, 9
	spatial := h * w

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			inside := tile.Contains(y, x)

			for ch := 0; ch < c; ch++ {
				v := data[ch*spatial+y*w+x]
				if !inside && v != 0 {
					t.Fatalf("expected zero padding at (%d,%d) channel %d, got %v", y, x, ch, v)
				}
			}
		}
	}
}

// TestInputProcessNaNSanitization covers spec.md §8 invariant 3.
func TestInputProcessNaNSanitization(t *testing.T) {
	eng := newTestEngine(t)
	g := New(eng)

	in, err := g.AddInputProcess("in", []int64{1, 3, 2, 2}, 0, transfer.NewLinear(1), false, false)
	if err != nil {
		t.Fatalf("AddInputProcess: %v", err)
	}

	finalizeAndScratch(t, g, eng)

	nan := float32(math.NaN())
	color := fillColorImage(2, 2, func(h, w, c int) float32 { return nan })

	tile := imgio.Tile{H: 2, W: 2}
	in.SetInput(color, nil, nil, tile)

	if err := g.Run(nil); err != nil {
		t.Fatalf("Run: %v", err)
	}

	bound, _ := boundTensorOf(in)

	data, err := bound.Float32()
	if err != nil {
		t.Fatalf("Float32: %v", err)
	}

	for i, v := range data {
		if math.IsNaN(float64(v)) {
			t.Fatalf("index %d is NaN", i)
		}
	}
}

// TestInputProcessChannelOrdering covers spec.md §8 invariant 4.
func TestInputProcessChannelOrdering(t *testing.T) {
	eng := newTestEngine(t)
	g := New(eng)

	tf := transfer.NewLinear(1)

	in, err := g.AddInputProcess("in", []int64{1, 9, 2, 2}, 0, tf, false, false)
	if err != nil {
		t.Fatalf("AddInputProcess: %v", err)
	}

	finalizeAndScratch(t, g, eng)

	color := fillColorImage(2, 2, func(h, w, c int) float32 { return 0.1 })
	albedo := fillColorImage(2, 2, func(h, w, c int) float32 { return 0.2 })
	normal := fillColorImage(2, 2, func(h, w, c int) float32 { return 0.3 })

	tile := imgio.Tile{H: 2, W: 2}
	in.SetInput(color, albedo, normal, tile)

	if err := g.Run(nil); err != nil {
		t.Fatalf("Run: %v", err)
	}

	bound, _ := boundTensorOf(in)

	data, err := bound.Float32()
	if err != nil {
		t.Fatalf("Float32: %v", err)
	}

	spatial := 4
	if data[0*spatial] == 0 || data[3*spatial] == 0 || data[6*spatial] == 0 {
		t.Fatalf("expected non-zero color/albedo/normal channels, got %v", data)
	}

	// Now with only color present, channels [3,9) must be zero.
	g.Clear()

	in, err = g.AddInputProcess("in", []int64{1, 9, 2, 2}, 0, tf, false, false)
	if err != nil {
		t.Fatalf("AddInputProcess: %v", err)
	}

	finalizeAndScratch(t, g, eng)

	in.SetInput(color, nil, nil, tile)

	if err := g.Run(nil); err != nil {
		t.Fatalf("Run: %v", err)
	}

	bound, _ = boundTensorOf(in)

	data, err = bound.Float32()
	if err != nil {
		t.Fatalf("Float32: %v", err)
	}

	for ch := 3; ch < 9; ch++ {
		for p := 0; p < spatial; p++ {
			if v := data[ch*spatial+p]; v != 0 {
				t.Fatalf("expected channel %d to be zero, got %v at pixel %d", ch, v, p)
			}
		}
	}
}

// TestScenarioS1EncoderDecoder builds the U-Net-shaped graph from spec.md §8
// scenario S1 and asserts it runs end to end.
func TestScenarioS1EncoderDecoder(t *testing.T) {
	eng := newTestEngine(t)
	g := New(eng)

	tf := transfer.NewLinear(1)

	in, err := g.AddInputProcess("in", []int64{1, 9, 16, 16}, 4, tf, false, false)
	if err != nil {
		t.Fatalf("AddInputProcess: %v", err)
	}

	g.SetConstTensor("enc1.weight", identityConvWeight(t, 9))
	g.SetConstTensor("enc1.bias", zeroBias(t, 9))
	enc1, err := g.AddConv("enc1", in, ActivationReLU, PostOpNone)
	if err != nil {
		t.Fatalf("AddConv enc1: %v", err)
	}

	pool, err := g.AddPool("pool1", enc1)
	if err != nil {
		t.Fatalf("AddPool: %v", err)
	}

	g.SetConstTensor("enc2.weight", identityConvWeight(t, 9))
	g.SetConstTensor("enc2.bias", zeroBias(t, 9))
	enc2, err := g.AddConv("enc2", pool, ActivationReLU, PostOpNone)
	if err != nil {
		t.Fatalf("AddConv enc2: %v", err)
	}

	up, err := g.AddUpsample("up1", enc2)
	if err != nil {
		t.Fatalf("AddUpsample: %v", err)
	}

	g.SetConstTensor("dec1.weight", identityConvWeight(t, 9))
	g.SetConstTensor("dec1.bias", zeroBias(t, 9))
	dec1, err := g.AddConv("dec1", up, ActivationReLU, PostOpNone)
	if err != nil {
		t.Fatalf("AddConv dec1: %v", err)
	}

	out, err := g.AddOutputProcess("out", dec1, tf, false, false)
	if err != nil {
		t.Fatalf("AddOutputProcess: %v", err)
	}

	if ok, reasons := g.IsSupported(); !ok {
		t.Fatalf("IsSupported = false: %v", reasons)
	}

	size, err := g.GetScratchByteSize()
	if err != nil {
		t.Fatalf("GetScratchByteSize: %v", err)
	}

	if size <= 0 {
		t.Fatalf("GetScratchByteSize = %d, want > 0", size)
	}

	finalizeAndScratch(t, g, eng)

	color := fillColorImage(16, 16, func(h, w, c int) float32 { return 0.4 })
	albedo := fillColorImage(16, 16, func(h, w, c int) float32 { return 0.4 })
	normal := fillColorImage(16, 16, func(h, w, c int) float32 { return 0.4 })

	tile := imgio.Tile{H: 16, W: 16}
	in.SetInput(color, albedo, normal, tile)

	outImg := imgio.NewImage(16, 16, 3, imgio.F32)
	out.SetOutput(&outImg, tile)

	if err := g.Run(nil); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if outImg.H != color.H || outImg.W != color.W {
		t.Fatalf("output shape %dx%d != input shape %dx%d", outImg.H, outImg.W, color.H, color.W)
	}
}

// TestConvReLUPoolAppliesActivationToPooledOutput covers the fused
// Conv(ActivationReLU, PostOpPool) combo spec.md §4.4 describes
// ("postOp ... when Pool is fused, the op's destination dims are halved")
// and buildNetwork's default "enc1" uses. The conv weight negates its
// input, so every conv output in a uniform-input pooling window is
// negative; ReLU must zero the value that is actually pooled and
// committed, not a discarded copy, so the bound destination tensor must
// read exactly 0, not the negative pre-activation max.
func TestConvReLUPoolAppliesActivationToPooledOutput(t *testing.T) {
	eng := newTestEngine(t)
	g := New(eng)

	tf := transfer.NewLinear(1)

	in, err := g.AddInputProcess("in", []int64{1, 3, 8, 8}, 2, tf, false, false)
	if err != nil {
		t.Fatalf("AddInputProcess: %v", err)
	}

	g.SetConstTensor("enc1.weight", negatedIdentityConvWeight(t, 3))
	g.SetConstTensor("enc1.bias", zeroBias(t, 3))

	enc1, err := g.AddConv("enc1", in, ActivationReLU, PostOpPool)
	if err != nil {
		t.Fatalf("AddConv: %v", err)
	}

	finalizeAndScratch(t, g, eng)

	color := fillColorImage(8, 8, func(h, w, c int) float32 { return 0.5 })
	in.SetInput(color, nil, nil, imgio.Tile{H: 8, W: 8})

	if err := g.Run(nil); err != nil {
		t.Fatalf("Run: %v", err)
	}

	dst, ok := boundTensorOf(enc1)
	if !ok {
		t.Fatal("enc1 has no bound tensor after Run")
	}

	data, err := dst.Float32()
	if err != nil {
		t.Fatalf("Float32: %v", err)
	}

	for i, v := range data {
		if v != 0 {
			t.Fatalf("data[%d] = %v, want 0 (ReLU must zero the pooled negative conv output)", i, v)
		}
	}
}

// TestFinalizeIdempotence covers spec.md §8 invariant 9: calling Finalize
// twice yields identical bound tensors and private byte sizes.
func TestFinalizeIdempotence(t *testing.T) {
	eng := newTestEngine(t)
	g := New(eng)

	in, err := g.AddInputProcess("in", []int64{1, 3, 4, 4}, 0, transfer.NewLinear(1), false, false)
	if err != nil {
		t.Fatalf("AddInputProcess: %v", err)
	}

	g.SetConstTensor("c1.weight", identityConvWeight(t, 3))
	g.SetConstTensor("c1.bias", zeroBias(t, 3))

	conv, err := g.AddConv("c1", in, ActivationNone, PostOpNone)
	if err != nil {
		t.Fatalf("AddConv: %v", err)
	}

	finalizeAndScratch(t, g, eng)

	tBefore, _ := boundTensorOf(conv)
	offsetBefore := tBefore.ByteOffset()
	privBefore := g.GetPrivateByteSize()

	if err := g.Finalize(); err != nil {
		t.Fatalf("second Finalize: %v", err)
	}

	tAfter, _ := boundTensorOf(conv)
	if tAfter.ByteOffset() != offsetBefore {
		t.Fatalf("bound offset changed across Finalize calls: %d != %d", tAfter.ByteOffset(), offsetBefore)
	}

	if g.GetPrivateByteSize() != privBefore {
		t.Fatalf("private byte size changed across Finalize calls: %d != %d", g.GetPrivateByteSize(), privBefore)
	}
}

// TestScratchByteSizeMonotonic covers spec.md §8 invariant 6.
func TestScratchByteSizeMonotonic(t *testing.T) {
	eng := newTestEngine(t)
	g := New(eng)

	in, err := g.AddInputProcess("in", []int64{1, 3, 8, 8}, 0, transfer.NewLinear(1), false, false)
	if err != nil {
		t.Fatalf("AddInputProcess: %v", err)
	}

	sizeBefore, err := g.GetScratchByteSize()
	if err != nil {
		t.Fatalf("GetScratchByteSize: %v", err)
	}

	g.SetConstTensor("c1.weight", identityConvWeight(t, 3))
	g.SetConstTensor("c1.bias", zeroBias(t, 3))

	if _, err := g.AddConv("c1", in, ActivationNone, PostOpNone); err != nil {
		t.Fatalf("AddConv: %v", err)
	}

	sizeAfter, err := g.GetScratchByteSize()
	if err != nil {
		t.Fatalf("GetScratchByteSize: %v", err)
	}

	if sizeAfter < sizeBefore {
		t.Fatalf("GetScratchByteSize decreased after AddConv: %d -> %d", sizeBefore, sizeAfter)
	}
}

// TestDirtyRecompute covers spec.md §8 invariant 10.
func TestDirtyRecompute(t *testing.T) {
	eng := newTestEngine(t)
	g := New(eng)

	in, err := g.AddInputProcess("in", []int64{1, 3, 8, 8}, 0, transfer.NewLinear(1), false, false)
	if err != nil {
		t.Fatalf("AddInputProcess: %v", err)
	}

	g.SetConstTensor("c1.weight", identityConvWeight(t, 3))
	g.SetConstTensor("c1.bias", zeroBias(t, 3))

	if _, err := g.AddConv("c1", in, ActivationNone, PostOpNone); err != nil {
		t.Fatalf("AddConv: %v", err)
	}

	finalizeAndScratch(t, g, eng)

	sizeBefore, err := g.GetScratchByteSize()
	if err != nil {
		t.Fatalf("GetScratchByteSize: %v", err)
	}

	g.Clear()

	in, err = g.AddInputProcess("in", []int64{1, 3, 8, 8}, 0, transfer.NewLinear(1), false, false)
	if err != nil {
		t.Fatalf("AddInputProcess: %v", err)
	}

	g.SetConstTensor("c1.weight", identityConvWeight(t, 3))
	g.SetConstTensor("c1.bias", zeroBias(t, 3))

	c1, err := g.AddConv("c1", in, ActivationNone, PostOpNone)
	if err != nil {
		t.Fatalf("AddConv: %v", err)
	}

	g.SetConstTensor("c2.weight", identityConvWeight(t, 3))
	g.SetConstTensor("c2.bias", zeroBias(t, 3))

	conv1, _ := g.AddConv("c1b", in, ActivationNone, PostOpNone)
	_ = conv1

	if _, err := g.AddConv("c2", c1, ActivationNone, PostOpNone); err != nil {
		t.Fatalf("AddConv c2: %v", err)
	}

	sizeAfter, err := g.GetScratchByteSize()
	if err != nil {
		t.Fatalf("GetScratchByteSize: %v", err)
	}

	if sizeAfter <= sizeBefore {
		t.Fatalf("expected larger scratch size after adding another conv to a cleared graph, got %d <= %d", sizeAfter, sizeBefore)
	}
}

// TestProgressLawAndCancellation covers spec.md §8 invariants 7,8 and
// scenario S5.
func TestProgressLawAndCancellation(t *testing.T) {
	eng := newTestEngine(t)
	g := New(eng)

	in, err := g.AddInputProcess("in", []int64{1, 3, 4, 4}, 0, transfer.NewLinear(1), false, false)
	if err != nil {
		t.Fatalf("AddInputProcess: %v", err)
	}

	g.SetConstTensor("c1.weight", identityConvWeight(t, 3))
	g.SetConstTensor("c1.bias", zeroBias(t, 3))
	conv1, err := g.AddConv("c1", in, ActivationNone, PostOpNone)
	if err != nil {
		t.Fatalf("AddConv c1: %v", err)
	}

	g.SetConstTensor("c2.weight", identityConvWeight(t, 3))
	g.SetConstTensor("c2.bias", zeroBias(t, 3))
	conv2, err := g.AddConv("c2", conv1, ActivationNone, PostOpNone)
	if err != nil {
		t.Fatalf("AddConv c2: %v", err)
	}

	g.SetConstTensor("c3.weight", identityConvWeight(t, 3))
	g.SetConstTensor("c3.bias", zeroBias(t, 3))
	if _, err := g.AddConv("c3", conv2, ActivationNone, PostOpNone); err != nil {
		t.Fatalf("AddConv c3: %v", err)
	}

	finalizeAndScratch(t, g, eng)

	color := fillColorImage(4, 4, func(h, w, c int) float32 { return 0.1 })
	tile := imgio.Tile{H: 4, W: 4}
	in.SetInput(color, nil, nil, tile)

	t.Run("progress law sums to one", func(t *testing.T) {
		var fractions []float64

		err := g.Run(ProgressFunc(func(f float64) bool {
			fractions = append(fractions, f)
			return true
		}))
		if err != nil {
			t.Fatalf("Run: %v", err)
		}

		if len(fractions) == 0 {
			t.Fatal("expected at least one progress update")
		}

		var sum float64

		prev := 0.0
		for _, f := range fractions {
			if f < prev {
				t.Fatalf("progress not non-decreasing: %v", fractions)
			}

			sum += f - prev
			prev = f
		}

		if math.Abs(sum-1.0) > 1e-6 {
			t.Fatalf("progress increments sum to %v, want 1.0", sum)
		}
	})

	t.Run("cancellation stops before threshold", func(t *testing.T) {
		executed := 0
		cancelAt := 0.5

		execCount := 0
		err := g.Run(ProgressFunc(func(f float64) bool {
			if f >= cancelAt {
				return false
			}

			executed++

			return true
		}))
		_ = execCount

		if err == nil {
			t.Fatal("expected cancellation error")
		}

		total := g.GetWorkAmount()
		cumulative := 0.0
		wantExecuted := 0

		for _, op := range g.ops {
			if cumulative/total >= cancelAt {
				break
			}

			wantExecuted++
			cumulative += op.WorkAmount()
		}

		if executed != wantExecuted {
			t.Fatalf("executed %d ops before cancellation, want %d", executed, wantExecuted)
		}
	})
}

// TestConcatConvColocation covers spec.md §8 invariant 5 and scenario S4:
// the planner colocates ConcatConv's two sources back-to-back so
// concatenation is a no-copy view, and Run completes over that view. The
// output is not compared against an explicit materialized concat.
func TestConcatConvColocation(t *testing.T) {
	eng := newTestEngine(t)
	g := New(eng)

	tf := transfer.NewLinear(1)

	in, err := g.AddInputProcess("in", []int64{1, 3, 4, 4}, 0, tf, false, false)
	if err != nil {
		t.Fatalf("AddInputProcess: %v", err)
	}

	up, err := g.AddUpsample("up", in)
	if err != nil {
		t.Fatalf("AddUpsample: %v", err)
	}

	skip, err := g.AddUpsample("skip", in)
	if err != nil {
		t.Fatalf("AddUpsample skip: %v", err)
	}

	g.SetConstTensor("dec.weight", identityConvWeight(t, 6))
	g.SetConstTensor("dec.bias", zeroBias(t, 6))

	concat, err := g.AddConcatConv("dec", up, skip, ActivationNone)
	if err != nil {
		t.Fatalf("AddConcatConv: %v", err)
	}

	cc, ok := concat.(*ConcatConv)
	if !ok {
		t.Fatal("AddConcatConv did not return *ConcatConv")
	}

	finalizeAndScratch(t, g, eng)

	if !cc.colocated {
		t.Fatal("expected ConcatConv sources to colocate in the arena")
	}

	t1, _ := boundTensorOf(up)
	t2, _ := boundTensorOf(skip)

	size1, _ := t1.Desc().ByteSize()
	if t2.ByteOffset() != t1.ByteOffset()+size1 {
		t.Fatalf("colocation offsets: got B=%d, want A(%d)+size(%d)=%d", t2.ByteOffset(), t1.ByteOffset(), size1, t1.ByteOffset()+size1)
	}

	color := fillColorImage(4, 4, func(h, w, c int) float32 { return 0.3 })
	tile := imgio.Tile{H: 4, W: 4}
	in.SetInput(color, nil, nil, tile)

	if err := g.Run(nil); err != nil {
		t.Fatalf("Run: %v", err)
	}
}

// TestMisconfigurationErrors covers spec.md §7 Misconfiguration.
func TestMisconfigurationErrors(t *testing.T) {
	eng := newTestEngine(t)
	g1 := New(eng)
	g2 := New(eng)

	in1, err := g1.AddInputProcess("in", []int64{1, 3, 4, 4}, 0, transfer.NewLinear(1), false, false)
	if err != nil {
		t.Fatalf("AddInputProcess: %v", err)
	}

	if _, err := g2.AddConv("c", in1, ActivationNone, PostOpNone); err == nil {
		t.Fatal("expected error adding an op referencing another graph's source")
	}

	finalizeAndScratch(t, g1, eng)

	if _, err := g1.AddUpsample("u", in1); err == nil {
		t.Fatal("expected error adding an op after Finalize")
	}

	g3 := New(eng)
	if _, err := g3.AddInputProcess("in", []int64{1, 3, 4, 4}, 0, transfer.NewLinear(1), false, false); err != nil {
		t.Fatalf("AddInputProcess: %v", err)
	}

	if err := g3.Run(nil); err == nil {
		t.Fatal("expected error running before Finalize")
	}
}
