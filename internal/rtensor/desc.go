package rtensor

import "fmt"

// Desc is a tensor descriptor: dimensions, element type and layout. Dims is
// either {C, H, W} or {N, C, H, W}; N defaults to 1 when omitted.
//
// Desc carries no memory binding — see Tensor for a Desc bound to a Buffer
// byte range or a private allocation.
type Desc struct {
	Dims   []int64
	DType  DType
	Layout Layout
}

// NewDesc validates and returns a tensor descriptor. dims must have length 3
// ({C,H,W}) or 4 ({N,C,H,W}).
func NewDesc(dims []int64, dtype DType, layout Layout) (Desc, error) {
	d := Desc{Dims: append([]int64(nil), dims...), DType: dtype, Layout: layout}
	if err := d.validate(); err != nil {
		return Desc{}, err
	}

	return d, nil
}

func (d Desc) validate() error {
	switch len(d.Dims) {
	case 3, 4:
	default:
		return fmt.Errorf("rtensor: desc dims must have rank 3 or 4, got %d (%v)", len(d.Dims), d.Dims)
	}

	c := d.C()
	h := d.H()
	w := d.W()

	if h <= 0 || w <= 0 {
		return fmt.Errorf("rtensor: desc H,W must be > 0, got H=%d W=%d", h, w)
	}

	if c <= 0 {
		return fmt.Errorf("rtensor: desc C must be > 0, got %d", c)
	}

	bs := int64(d.Layout.BlockSize())
	if bs > 1 && c%bs != 0 {
		return fmt.Errorf("rtensor: desc C=%d is not a multiple of block size %d for layout %v", c, bs, d.Layout)
	}

	if _, err := d.DType.ByteSize(); err != nil {
		return err
	}

	return nil
}

// N returns the batch dimension, defaulting to 1 for rank-3 descriptors.
func (d Desc) N() int64 {
	if len(d.Dims) == 4 {
		return d.Dims[0]
	}

	return 1
}

// C returns the channel dimension.
func (d Desc) C() int64 {
	if len(d.Dims) == 4 {
		return d.Dims[1]
	}

	return d.Dims[0]
}

// H returns the height dimension.
func (d Desc) H() int64 {
	if len(d.Dims) == 4 {
		return d.Dims[2]
	}

	return d.Dims[1]
}

// W returns the width dimension.
func (d Desc) W() int64 {
	if len(d.Dims) == 4 {
		return d.Dims[3]
	}

	return d.Dims[2]
}

// ElemCount returns the total number of elements, including the channel
// block padding implied by a blocked layout.
func (d Desc) ElemCount() int64 {
	bs := int64(d.Layout.BlockSize())
	c := d.C()
	if bs > 1 {
		// C is already validated to be a multiple of bs; group count * block.
		c = (c / bs) * bs
	}

	return d.N() * c * d.H() * d.W()
}

// ByteSize returns the byte size of the whole tensor given its element type.
func (d Desc) ByteSize() (int64, error) {
	elemBytes, err := d.DType.ByteSize()
	if err != nil {
		return 0, err
	}

	return d.ElemCount() * int64(elemBytes), nil
}

// WithDims returns a copy of d with Dims replaced.
func (d Desc) WithDims(dims []int64) Desc {
	d.Dims = append([]int64(nil), dims...)
	return d
}

// WithC returns a copy of d with the channel dimension replaced.
func (d Desc) WithC(c int64) Desc {
	dims := append([]int64(nil), d.Dims...)
	if len(dims) == 4 {
		dims[1] = c
	} else {
		dims[0] = c
	}

	d.Dims = dims

	return d
}

// WithHW returns a copy of d with height/width replaced.
func (d Desc) WithHW(h, w int64) Desc {
	dims := append([]int64(nil), d.Dims...)
	if len(dims) == 4 {
		dims[2], dims[3] = h, w
	} else {
		dims[1], dims[2] = h, w
	}

	d.Dims = dims

	return d
}
