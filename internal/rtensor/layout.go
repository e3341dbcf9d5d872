package rtensor

import "fmt"

// Layout describes how a tensor's channel axis is arranged in memory.
//
// CHW is a plain planar layout. Chw8c and Chw16c split the channel axis into
// an outer group axis and an inner block of 8 or 16 contiguous channels,
// matching SIMD/subgroup width; the block size is fixed per Engine (see
// internal/engine.Engine.TensorBlockSize) and is called the tensor
// block size throughout this package.
type Layout int

const (
	CHW Layout = iota
	Chw8c
	Chw16c
)

func (l Layout) String() string {
	switch l {
	case CHW:
		return "chw"
	case Chw8c:
		return "Chw8c"
	case Chw16c:
		return "Chw16c"
	default:
		return fmt.Sprintf("layout(%d)", int(l))
	}
}

// BlockSize returns the channel block size implied by the layout: 1 for
// planar CHW, 8 or 16 for the blocked layouts.
func (l Layout) BlockSize() int {
	switch l {
	case Chw8c:
		return 8
	case Chw16c:
		return 16
	default:
		return 1
	}
}

// IsBlocked reports whether the layout tiles the channel axis.
func (l Layout) IsBlocked() bool {
	return l.BlockSize() > 1
}

// LayoutForBlockSize maps an engine's tensor block size to the matching
// blocked layout. blockSize == 1 maps to CHW.
func LayoutForBlockSize(blockSize int) (Layout, error) {
	switch blockSize {
	case 1:
		return CHW, nil
	case 8:
		return Chw8c, nil
	case 16:
		return Chw16c, nil
	default:
		return CHW, fmt.Errorf("rtensor: unsupported tensor block size %d", blockSize)
	}
}
