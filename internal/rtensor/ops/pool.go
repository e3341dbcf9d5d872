package ops

import "github.com/example/denoisegraph/internal/rtensor"

// MaxPool2x2 performs 2x2 max pooling, stride 2. Output dims are floor(H/2),
// floor(W/2); channels unchanged.
func MaxPool2x2(input *rtensor.Tensor) (*rtensor.Tensor, error) {
	inDesc := input.Desc()
	n := inDesc.N()
	c := inDesc.C()
	h, w := planarHW(inDesc)

	outH, outW := h/2, w/2

	inputData, err := input.Float32()
	if err != nil {
		return nil, err
	}

	outDesc, err := rtensor.NewDesc([]int64{n, c, int64(outH), int64(outW)}, rtensor.F32, rtensor.CHW)
	if err != nil {
		return nil, err
	}

	out, err := rtensor.NewPrivate(outDesc)
	if err != nil {
		return nil, err
	}

	outData := make([]float32, outDesc.ElemCount())

	batch := int(n)
	ch := int(c)
	spatial := h * w
	outSpatial := outH * outW

	for b := 0; b < batch; b++ {
		parallelFor(ch, func(cLo, cHi int) {
			for ci := cLo; ci < cHi; ci++ {
				inBase := (b*ch + ci) * spatial
				outBase := (b*ch + ci) * outSpatial

				for oy := 0; oy < outH; oy++ {
					for ox := 0; ox < outW; ox++ {
						iy := oy * 2
						ix := ox * 2

						m := inputData[inBase+iy*w+ix]
						if v := inputData[inBase+iy*w+ix+1]; v > m {
							m = v
						}

						if v := inputData[inBase+(iy+1)*w+ix]; v > m {
							m = v
						}

						if v := inputData[inBase+(iy+1)*w+ix+1]; v > m {
							m = v
						}

						outData[outBase+oy*outW+ox] = m
					}
				}
			}
		})
	}

	if err := out.SetFloat32(outData); err != nil {
		return nil, err
	}

	return out, nil
}

// Upsample2xNearest performs nearest-neighbor 2x upsampling. Output dims are
// 2H, 2W; channels unchanged.
func Upsample2xNearest(input *rtensor.Tensor) (*rtensor.Tensor, error) {
	inDesc := input.Desc()
	n := inDesc.N()
	c := inDesc.C()
	h, w := planarHW(inDesc)

	outH, outW := h*2, w*2

	inputData, err := input.Float32()
	if err != nil {
		return nil, err
	}

	outDesc, err := rtensor.NewDesc([]int64{n, c, int64(outH), int64(outW)}, rtensor.F32, rtensor.CHW)
	if err != nil {
		return nil, err
	}

	out, err := rtensor.NewPrivate(outDesc)
	if err != nil {
		return nil, err
	}

	outData := make([]float32, outDesc.ElemCount())

	batch := int(n)
	ch := int(c)
	spatial := h * w
	outSpatial := outH * outW

	for b := 0; b < batch; b++ {
		parallelFor(ch, func(cLo, cHi int) {
			for ci := cLo; ci < cHi; ci++ {
				inBase := (b*ch + ci) * spatial
				outBase := (b*ch + ci) * outSpatial

				for iy := 0; iy < h; iy++ {
					for ix := 0; ix < w; ix++ {
						v := inputData[inBase+iy*w+ix]
						oy := iy * 2
						ox := ix * 2

						outData[outBase+oy*outW+ox] = v
						outData[outBase+oy*outW+ox+1] = v
						outData[outBase+(oy+1)*outW+ox] = v
						outData[outBase+(oy+1)*outW+ox+1] = v
					}
				}
			}
		})
	}

	if err := out.SetFloat32(outData); err != nil {
		return nil, err
	}

	return out, nil
}

// ConcatChannels concatenates a and b along the channel axis. Both must
// share N, H, W and element type. Used as the materialized fallback when
// the arena planner cannot colocate a ConcatConv's sources as a no-copy
// view (see internal/graph/arena).
func ConcatChannels(a, b *rtensor.Tensor) (*rtensor.Tensor, error) {
	ad, bd := a.Desc(), b.Desc()

	ah, aw := planarHW(ad)
	bh, bw := planarHW(bd)

	if ad.N() != bd.N() || ah != bh || aw != bw {
		return nil, ErrShapeMismatch
	}

	aData, err := a.Float32()
	if err != nil {
		return nil, err
	}

	bData, err := b.Float32()
	if err != nil {
		return nil, err
	}

	outC := ad.C() + bd.C()

	outDesc, err := rtensor.NewDesc([]int64{ad.N(), outC, int64(ah), int64(aw)}, rtensor.F32, rtensor.CHW)
	if err != nil {
		return nil, err
	}

	out, err := rtensor.NewPrivate(outDesc)
	if err != nil {
		return nil, err
	}

	outData := make([]float32, outDesc.ElemCount())
	copy(outData[:len(aData)], aData)
	copy(outData[len(aData):len(aData)+len(bData)], bData)

	if err := out.SetFloat32(outData); err != nil {
		return nil, err
	}

	return out, nil
}
