package rtensor

import "fmt"

// Storage selects where a Buffer's bytes live.
type Storage int

const (
	StorageHost Storage = iota
	StorageDevice
	StorageShared
)

func (s Storage) String() string {
	switch s {
	case StorageHost:
		return "host"
	case StorageDevice:
		return "device"
	case StorageShared:
		return "shared"
	default:
		return fmt.Sprintf("storage(%d)", int(s))
	}
}

// SyncMode selects whether a Buffer.Read/Write call blocks until the
// transfer completes (Sync) or returns immediately, with completion defined
// by the owning Engine (Async).
type SyncMode int

const (
	Sync SyncMode = iota
	Async
)

// Buffer is the narrow memory-allocation collaborator consumed by this
// package (spec §6). Concrete implementations live behind an Engine, e.g.
// internal/engine/cpuengine.
type Buffer interface {
	Data() []byte
	ByteSize() int64
	Storage() Storage
	Map() ([]byte, error)
	Unmap() error
	Read(offset, size int64, hostPtr []byte, mode SyncMode) error
	Write(offset, size int64, hostPtr []byte, mode SyncMode) error
	// Realloc resizes the buffer, destroying its contents. Any Tensor bound
	// to this buffer must be rebound by the caller after Realloc returns.
	Realloc(newByteSize int64) error
}
