// Package imgio holds the external pixel-buffer types InputProcess and
// OutputProcess read and write: Image (caller-owned, never copied beyond
// declared bounds) and Tile (placement of a source region within a padded
// destination tensor). Grounded on the teacher's internal/audio external
// media-buffer convention (caller owns the backing slice; format fields are
// explicit, not inferred).
package imgio

import "fmt"

// PixelFormat names the element type backing an Image's pixel buffer.
type PixelFormat int

const (
	U8 PixelFormat = iota
	U16
	F16
	F32
)

func (f PixelFormat) String() string {
	switch f {
	case U8:
		return "u8"
	case U16:
		return "u16"
	case F16:
		return "f16"
	case F32:
		return "f32"
	default:
		return fmt.Sprintf("pixelformat(%d)", int(f))
	}
}

// Image is an external pixel buffer: height, width, channel count, pixel
// format, and row stride in elements. Not owned by the graph — callers
// retain the backing slice and its lifetime must outlive any op reading or
// writing it.
type Image struct {
	H, W, Channels int
	Format         PixelFormat
	// RowStride is the number of elements between the start of consecutive
	// rows; RowStride >= W*Channels. 0 means tightly packed (RowStride ==
	// W*Channels).
	RowStride int
	// Data holds float32 samples regardless of Format; U8/U16 images are
	// expected to be decoded to float32 by the caller before binding, since
	// the graph's kernels always operate on F32 tensors (see
	// rtensor.ErrUnsupportedDType).
	Data []float32
}

// Stride returns the effective row stride in elements.
func (img Image) Stride() int {
	if img.RowStride > 0 {
		return img.RowStride
	}

	return img.W * img.Channels
}

// At returns the Channels values for pixel (h, w). Bounds are not checked:
// callers must ensure 0 <= h < H and 0 <= w < W, and an index outside the
// data panics as with any direct slice index —
// this mirrors the teacher's audio buffers, which likewise assume the
// caller respects declared bounds.
func (img Image) At(h, w int) []float32 {
	base := h*img.Stride() + w*img.Channels
	return img.Data[base : base+img.Channels]
}

// NewImage allocates a tightly-packed Image with H*W*Channels zeroed
// samples.
func NewImage(h, w, channels int, format PixelFormat) Image {
	return Image{
		H:        h,
		W:        w,
		Channels: channels,
		Format:   format,
		Data:     make([]float32, h*w*channels),
	}
}

// Tile describes a rectangular source region and its placement within a
// padded destination tensor: enables processing images larger than the
// network's working set by overlapping subregions.
type Tile struct {
	HSrcBegin, WSrcBegin int
	HDstBegin, WDstBegin int
	H, W                 int
}

// Contains reports whether destination coordinates (hDst, wDst) fall inside
// this tile's placement in the destination tensor.
func (t Tile) Contains(hDst, wDst int) bool {
	h := hDst - t.HDstBegin
	w := wDst - t.WDstBegin

	return h >= 0 && h < t.H && w >= 0 && w < t.W
}

// SourceCoord maps destination coordinates inside the tile back to source
// image coordinates. Callers must check Contains first.
func (t Tile) SourceCoord(hDst, wDst int) (h, w int) {
	h = hDst - t.HDstBegin + t.HSrcBegin
	w = wDst - t.WDstBegin + t.WSrcBegin

	return h, w
}
