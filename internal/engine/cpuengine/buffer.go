package cpuengine

import (
	"fmt"

	"github.com/example/denoisegraph/internal/rtensor"
)

// Buffer is a host-memory implementation of rtensor.Buffer. Device and
// shared storage classes are modeled identically to host storage since this
// engine has no real device; the Storage tag is preserved for callers that
// branch on it (e.g. doctor diagnostics).
type Buffer struct {
	data    []byte
	storage rtensor.Storage
	mapped  bool
}

func (b *Buffer) Data() []byte { return b.data }

func (b *Buffer) ByteSize() int64 { return int64(len(b.data)) }

func (b *Buffer) Storage() rtensor.Storage { return b.storage }

func (b *Buffer) Map() ([]byte, error) {
	b.mapped = true
	return b.data, nil
}

func (b *Buffer) Unmap() error {
	b.mapped = false
	return nil
}

func (b *Buffer) Read(offset, size int64, hostPtr []byte, _ rtensor.SyncMode) error {
	if offset < 0 || size < 0 || offset+size > int64(len(b.data)) {
		return fmt.Errorf("cpuengine: read [%d:%d) out of bounds for buffer of size %d", offset, offset+size, len(b.data))
	}

	copy(hostPtr, b.data[offset:offset+size])

	return nil
}

func (b *Buffer) Write(offset, size int64, hostPtr []byte, _ rtensor.SyncMode) error {
	if offset < 0 || size < 0 || offset+size > int64(len(b.data)) {
		return fmt.Errorf("cpuengine: write [%d:%d) out of bounds for buffer of size %d", offset, offset+size, len(b.data))
	}

	if int64(len(hostPtr)) < size {
		return fmt.Errorf("cpuengine: write source has %d bytes, need %d", len(hostPtr), size)
	}

	copy(b.data[offset:offset+size], hostPtr[:size])

	return nil
}

func (b *Buffer) Realloc(newByteSize int64) error {
	if newByteSize < 0 {
		return fmt.Errorf("cpuengine: negative realloc size %d", newByteSize)
	}

	b.data = make([]byte, newByteSize)

	return nil
}
