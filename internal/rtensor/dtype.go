// Package rtensor implements the descriptor and memory-binding types for the
// denoising graph: element types, blocked layouts, and the byte-size
// arithmetic the arena planner and graph builder depend on.
package rtensor

import "fmt"

// DType is a tensor element type.
type DType int

const (
	F32 DType = iota
	F16
)

func (d DType) String() string {
	switch d {
	case F32:
		return "f32"
	case F16:
		return "f16"
	default:
		return fmt.Sprintf("dtype(%d)", int(d))
	}
}

// ByteSize returns the size in bytes of one element of this type.
func (d DType) ByteSize() (int, error) {
	switch d {
	case F32:
		return 4, nil
	case F16:
		return 2, nil
	default:
		return 0, fmt.Errorf("rtensor: unknown dtype %v", d)
	}
}
