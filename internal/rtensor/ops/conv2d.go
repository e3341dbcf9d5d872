package ops

import (
	"errors"
	"fmt"

	"github.com/example/denoisegraph/internal/rtensor"
)

// ErrShapeMismatch is returned when operand shapes are incompatible for a
// kernel (e.g. a bias vector whose length does not match out_channels).
var ErrShapeMismatch = errors.New("ops: shape mismatch")

// Conv2D3x3 performs a deterministic CPU 3x3 convolution, stride 1, padding
// 1 (H,W preserved). input is [N,C,H,W] planar CHW F32; kernel is
// [outC,inC,3,3]; bias holds outC values (e.g. shape [1,outC,1,1]) or is nil.
//
// The computation is rearranged into a GEMM via im2col, generalizing the
// teacher's Conv1D fast path from a 1-D patch matrix to a 2-D one: each
// output pixel becomes one row of [inC*9] gathered input values, and the
// output channel loop is the embarrassingly-parallel GEMM dimension.
func Conv2D3x3(input *rtensor.Tensor, kernel *rtensor.Tensor, bias *rtensor.Tensor) (*rtensor.Tensor, error) {
	inDesc := input.Desc()
	kDesc := kernel.Desc()

	n := inDesc.N()
	inCh := inDesc.C()
	h, w := planarHW(inDesc)
	outCh := kDesc.N()

	if kDesc.C() != inCh {
		return nil, fmt.Errorf("ops: conv2d kernel in_channels %d does not match input channels %d: %w", kDesc.C(), inCh, ErrShapeMismatch)
	}

	var biasData []float32
	if bias != nil {
		bd, err := bias.Float32()
		if err != nil {
			return nil, err
		}

		if int64(len(bd)) != outCh {
			return nil, fmt.Errorf("ops: conv2d bias length %d does not match out_channels %d: %w", len(bd), outCh, ErrShapeMismatch)
		}

		biasData = bd
	}

	inputData, err := input.Float32()
	if err != nil {
		return nil, err
	}

	kernelData, err := kernel.Float32()
	if err != nil {
		return nil, err
	}

	outDesc, err := rtensor.NewDesc([]int64{n, outCh, int64(h), int64(w)}, rtensor.F32, rtensor.CHW)
	if err != nil {
		return nil, err
	}

	out, err := rtensor.NewPrivate(outDesc)
	if err != nil {
		return nil, err
	}

	outData := make([]float32, outDesc.ElemCount())
	conv2D3x3Kernel(inputData, kernelData, biasData, int(n), int(inCh), h, w, int(outCh), outData)

	if err := out.SetFloat32(outData); err != nil {
		return nil, err
	}

	return out, nil
}

// conv2D3x3Kernel implements the im2col + GEMM convolution over planar CHW
// float32 data. patchLen = inCh*9; the im2col matrix is [H*W, patchLen].
func conv2D3x3Kernel(inputData, kernelData, biasData []float32, batch, inCh, h, w, outCh int, outData []float32) {
	const kSize = 3
	const pad = 1

	patchLen := inCh * kSize * kSize
	spatial := h * w
	imcolSize := spatial * patchLen

	imcol := getScratch(imcolSize)
	defer putScratch(imcol)

	for b := 0; b < batch; b++ {
		if b > 0 {
			for i := range imcol {
				imcol[i] = 0
			}
		}

		for ic := 0; ic < inCh; ic++ {
			inBase := (b*inCh + ic) * spatial
			for ky := 0; ky < kSize; ky++ {
				for kx := 0; kx < kSize; kx++ {
					col := (ic*kSize+ky)*kSize + kx
					for oy := 0; oy < h; oy++ {
						iy := oy - pad + ky
						if iy < 0 || iy >= h {
							continue
						}

						rowBase := inBase + iy*w
						imRowBase := oy * w

						for ox := 0; ox < w; ox++ {
							ix := ox - pad + kx
							if ix < 0 || ix >= w {
								continue
							}

							imcol[(imRowBase+ox)*patchLen+col] = inputData[rowBase+ix]
						}
					}
				}
			}
		}

		outBase := b * outCh * spatial
		parallelFor(outCh, func(ocLo, ocHi int) {
			for oc := ocLo; oc < ocHi; oc++ {
				kernelRow := kernelData[oc*patchLen : (oc+1)*patchLen]

				biasVal := float32(0)
				if biasData != nil {
					biasVal = biasData[oc]
				}

				outOC := outData[outBase+oc*spatial : outBase+(oc+1)*spatial]
				for p := 0; p < spatial; p++ {
					outOC[p] = DotProduct(kernelRow, imcol[p*patchLen:(p+1)*patchLen]) + biasVal
				}
			}
		})
	}
}

// ReLU applies the rectified-linear activation in place.
func ReLU(data []float32) {
	for i, v := range data {
		if v < 0 {
			data[i] = 0
		}
	}
}
