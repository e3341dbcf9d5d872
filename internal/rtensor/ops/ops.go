// Package ops implements the concrete CPU tensor kernels used by the graph
// op types: 2-D convolution (im2col + GEMM), 2x2 max pooling, nearest 2x
// upsampling, and channel-concat helpers. Parallel fan-out and scratch
// buffer pooling follow the same shape as the teacher's runtime/ops package,
// generalized from 1-D sequence convolution to 2-D image convolution.
package ops

import (
	"sync"
	"sync/atomic"

	"github.com/example/denoisegraph/internal/rtensor"
)

// workers controls the number of goroutines used by the parallel kernels
// below. A value of 0 or 1 means sequential (default). Set via SetWorkers;
// the CLI's worker setting configures the CPU engine and does not change it.
var workers atomic.Int32

// SetWorkers sets the maximum number of goroutines used for parallel kernel
// execution. n <= 1 disables parallelism.
func SetWorkers(n int) {
	const maxInt32 = int(^uint32(0) >> 1)

	if n < 0 {
		n = 0
	}

	if n > maxInt32 {
		n = maxInt32
	}

	//nolint:gosec // n is clamped to int32 range above.
	workers.Store(int32(n))
}

// getWorkers returns the current worker count (0 or 1 -> sequential).
func getWorkers() int { return int(workers.Load()) }

// parallelFor splits the range [0, n) into chunks and runs fn(lo, hi)
// concurrently. When the configured worker count is <= 1, the call is
// sequential (no goroutines spawned).
func parallelFor(n int, fn func(lo, hi int)) {
	w := getWorkers()
	if w <= 1 || n <= 1 {
		fn(0, n)
		return
	}

	if w > n {
		w = n
	}

	var wg sync.WaitGroup

	chunk := (n + w - 1) / w
	for lo := 0; lo < n; lo += chunk {
		hi := lo + chunk
		if hi > n {
			hi = n
		}

		wg.Add(1)

		go func(lo, hi int) {
			defer wg.Done()
			fn(lo, hi)
		}(lo, hi)
	}

	wg.Wait()
}

// scratchPools is a size-class pool for reusable []float32 scratch buffers,
// used by the im2col patch matrix to avoid a multi-MB allocation per Conv2D
// call. Size classes are powers of two from 2^10 to 2^26 elements.
var scratchPools [17]sync.Pool

func getScratch(n int) []float32 {
	cls := scratchClass(n)
	sz := 1 << (cls + 10)

	if sz < n {
		return make([]float32, n)
	}

	if v := scratchPools[cls].Get(); v != nil {
		bufPtr, ok := v.(*[]float32)
		if !ok || bufPtr == nil {
			return make([]float32, n)
		}

		buf := (*bufPtr)[:n]
		for i := range buf {
			buf[i] = 0
		}

		return buf
	}

	buf := make([]float32, sz)

	return buf[:n]
}

func putScratch(buf []float32) {
	c := cap(buf)

	cls := scratchClass(c)
	if 1<<(cls+10) < c {
		return
	}

	buf = buf[:c]
	scratchPools[cls].Put(&buf)
}

func scratchClass(n int) int {
	if n <= 1<<10 {
		return 0
	}

	bits := 0

	v := n - 1
	for v > 0 {
		v >>= 1
		bits++
	}

	cls := bits - 10
	if cls < 0 {
		cls = 0
	}

	if cls > 16 {
		cls = 16
	}

	return cls
}

// DotProduct returns the dot product of a and b. len(a) must equal len(b).
// It is a portable, manually-unrolled Go loop with no assembly path; it does
// not branch on HasAVX2FMA.
func DotProduct(a, b []float32) float32 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}

	var sum0, sum1, sum2, sum3 float32

	i := 0
	for ; i+4 <= n; i += 4 {
		sum0 += a[i] * b[i]
		sum1 += a[i+1] * b[i+1]
		sum2 += a[i+2] * b[i+2]
		sum3 += a[i+3] * b[i+3]
	}

	sum := sum0 + sum1 + sum2 + sum3
	for ; i < n; i++ {
		sum += a[i] * b[i]
	}

	return sum
}

func planarHW(desc rtensor.Desc) (h, w int) {
	return int(desc.H()), int(desc.W())
}
