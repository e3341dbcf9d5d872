package rtensor

import "testing"

// fakeBuffer is a minimal in-package Buffer used only to exercise Tensor
// binding; the real implementation lives in internal/engine/cpuengine.
type fakeBuffer struct {
	data []byte
}

func newFakeBuffer(size int64) *fakeBuffer { return &fakeBuffer{data: make([]byte, size)} }

func (b *fakeBuffer) Data() []byte      { return b.data }
func (b *fakeBuffer) ByteSize() int64   { return int64(len(b.data)) }
func (b *fakeBuffer) Storage() Storage  { return StorageHost }
func (b *fakeBuffer) Map() ([]byte, error) { return b.data, nil }
func (b *fakeBuffer) Unmap() error       { return nil }

func (b *fakeBuffer) Read(offset, size int64, hostPtr []byte, _ SyncMode) error {
	copy(hostPtr, b.data[offset:offset+size])
	return nil
}

func (b *fakeBuffer) Write(offset, size int64, hostPtr []byte, _ SyncMode) error {
	copy(b.data[offset:offset+size], hostPtr[:size])
	return nil
}

func (b *fakeBuffer) Realloc(newByteSize int64) error {
	b.data = make([]byte, newByteSize)
	return nil
}

func TestTransientTensorBindAndRoundTrip(t *testing.T) {
	desc, err := NewDesc([]int64{1, 2, 2, 2}, F32, CHW)
	if err != nil {
		t.Fatalf("NewDesc: %v", err)
	}

	buf := newFakeBuffer(64)

	tn, err := NewTransient(desc, buf, 16)
	if err != nil {
		t.Fatalf("NewTransient: %v", err)
	}

	data := []float32{1, 2, 3, 4, 5, 6, 7, 8}
	if err := tn.SetFloat32(data); err != nil {
		t.Fatalf("SetFloat32: %v", err)
	}

	got, err := tn.Float32()
	if err != nil {
		t.Fatalf("Float32: %v", err)
	}

	for i := range data {
		if got[i] != data[i] {
			t.Fatalf("round trip mismatch at %d: got %v want %v", i, got, data)
		}
	}
}

func TestTransientTensorRejectsOutOfBoundsOffset(t *testing.T) {
	desc, _ := NewDesc([]int64{1, 2, 2, 2}, F32, CHW)
	buf := newFakeBuffer(16)

	if _, err := NewTransient(desc, buf, 8); err == nil {
		t.Fatal("expected error for tensor span exceeding buffer")
	}
}

func TestPrivateTensorIsNotTransient(t *testing.T) {
	desc, _ := NewDesc([]int64{1, 2, 2, 2}, F32, CHW)

	tn, err := NewPrivate(desc)
	if err != nil {
		t.Fatalf("NewPrivate: %v", err)
	}

	if tn.IsTransient() {
		t.Fatal("private tensor reported as transient")
	}

	if err := tn.SetFloat32(make([]float32, 8)); err != nil {
		t.Fatalf("SetFloat32 on private tensor: %v", err)
	}
}
