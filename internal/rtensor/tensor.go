package rtensor

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// Tensor is a Desc bound to a memory region: either a Buffer plus a byte
// offset (transient, lives on the scratch arena) or a private allocation
// (constants/weights). A Tensor's byte span must fit inside its Buffer.
type Tensor struct {
	desc Desc

	buf    Buffer
	offset int64

	private []byte
}

// NewTransient binds desc to buf at byteOffset. The tensor's span must fit
// within buf.
func NewTransient(desc Desc, buf Buffer, byteOffset int64) (*Tensor, error) {
	if buf == nil {
		return nil, errors.New("rtensor: transient tensor requires a non-nil buffer")
	}

	size, err := desc.ByteSize()
	if err != nil {
		return nil, err
	}

	if byteOffset < 0 || byteOffset+size > buf.ByteSize() {
		return nil, fmt.Errorf(
			"rtensor: tensor span [%d:%d) does not fit inside buffer of size %d",
			byteOffset, byteOffset+size, buf.ByteSize(),
		)
	}

	return &Tensor{desc: desc, buf: buf, offset: byteOffset}, nil
}

// NewPrivate allocates desc as a private, non-scratch tensor (e.g. reordered
// convolution weights produced during Op.Finalize).
func NewPrivate(desc Desc) (*Tensor, error) {
	size, err := desc.ByteSize()
	if err != nil {
		return nil, err
	}

	return &Tensor{desc: desc, private: make([]byte, size)}, nil
}

// Desc returns the tensor's descriptor.
func (t *Tensor) Desc() Desc { return t.desc }

// IsTransient reports whether the tensor is a view over a scratch Buffer, as
// opposed to a private allocation.
func (t *Tensor) IsTransient() bool { return t.buf != nil }

// ByteOffset returns the tensor's offset into its Buffer. Only meaningful
// for transient tensors.
func (t *Tensor) ByteOffset() int64 { return t.offset }

// Buffer returns the bound Buffer, or nil for private tensors.
func (t *Tensor) Buffer() Buffer { return t.buf }

// Bytes returns the tensor's raw byte span, reading from the bound Buffer
// for transient tensors or returning the private allocation directly.
func (t *Tensor) Bytes() ([]byte, error) {
	size, err := t.desc.ByteSize()
	if err != nil {
		return nil, err
	}

	if t.buf != nil {
		data := t.buf.Data()
		if t.offset+size > int64(len(data)) {
			return nil, fmt.Errorf("rtensor: tensor span exceeds bound buffer (offset=%d size=%d buflen=%d)", t.offset, size, len(data))
		}

		return data[t.offset : t.offset+size], nil
	}

	return t.private, nil
}

// Float32 decodes the tensor as a []float32 view. Only valid for F32
// tensors; F16 tensors report rtensor.ErrUnsupportedDType so callers can
// surface it the way Op.Support() reports an unsupported configuration.
func (t *Tensor) Float32() ([]float32, error) {
	if t.desc.DType != F32 {
		return nil, fmt.Errorf("rtensor: Float32 requires an F32 tensor, got %v: %w", t.desc.DType, ErrUnsupportedDType)
	}

	raw, err := t.Bytes()
	if err != nil {
		return nil, err
	}

	n := len(raw) / 4
	out := make([]float32, n)

	for i := range out {
		bits := binary.LittleEndian.Uint32(raw[i*4 : i*4+4])
		out[i] = math.Float32frombits(bits)
	}

	return out, nil
}

// SetFloat32 encodes data into the tensor's byte span. Only valid for F32
// tensors; len(data) must equal the tensor's element count.
func (t *Tensor) SetFloat32(data []float32) error {
	if t.desc.DType != F32 {
		return fmt.Errorf("rtensor: SetFloat32 requires an F32 tensor, got %v: %w", t.desc.DType, ErrUnsupportedDType)
	}

	if int64(len(data)) != t.desc.ElemCount() {
		return fmt.Errorf("rtensor: SetFloat32 data length %d does not match element count %d", len(data), t.desc.ElemCount())
	}

	raw, err := t.Bytes()
	if err != nil {
		return err
	}

	for i, v := range data {
		binary.LittleEndian.PutUint32(raw[i*4:i*4+4], math.Float32bits(v))
	}

	return nil
}

// ErrUnsupportedDType is returned when an operation requires a concrete
// element type the engine or tensor accessor does not implement.
var ErrUnsupportedDType = errors.New("rtensor: unsupported element type")
