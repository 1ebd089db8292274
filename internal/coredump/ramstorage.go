package coredump

import (
	"sync"

	"github.com/memfault/diagsdk/internal/interfaces"
	"github.com/memfault/diagsdk/internal/sdkerr"
)

// RAMStorage is a StorageDriver backed by a plain byte slice, for
// platforms without dedicated coredump flash (or for tests). Unlike a
// flash-backed driver it needs no sector buffering of its own, but it
// still reports a SectorSize so StorageWriter exercises the same
// buffering path production drivers do.
type RAMStorage struct {
	mu         sync.Mutex
	data       []byte
	sectorSize uint32
}

// NewRAMStorage allocates a RAM-backed storage region of the given size.
func NewRAMStorage(size uint32, sectorSize uint32) *RAMStorage {
	return &RAMStorage{data: make([]byte, size), sectorSize: sectorSize}
}

func (r *RAMStorage) Info() (interfaces.StorageInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return interfaces.StorageInfo{SectorSize: r.sectorSize, TotalSize: uint32(len(r.data))}, nil
}

func (r *RAMStorage) ReadAt(off uint32, p []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if off >= uint32(len(r.data)) || off+uint32(len(p)) > uint32(len(r.data)) {
		return sdkerr.New("coredump.RAMStorage.ReadAt", sdkerr.CodeInvalidInput, "read beyond end of region")
	}
	copy(p, r.data[off:off+uint32(len(p))])
	return nil
}

func (r *RAMStorage) WriteAt(off uint32, p []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if off >= uint32(len(r.data)) || off+uint32(len(p)) > uint32(len(r.data)) {
		return sdkerr.New("coredump.RAMStorage.WriteAt", sdkerr.CodeInvalidInput, "write beyond end of region")
	}
	copy(r.data[off:off+uint32(len(p))], p)
	return nil
}

func (r *RAMStorage) Erase(off uint32, length uint32) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	end := off + length
	if off >= uint32(len(r.data)) {
		return sdkerr.New("coredump.RAMStorage.Erase", sdkerr.CodeInvalidInput, "erase beyond end of region")
	}
	if end > uint32(len(r.data)) {
		end = uint32(len(r.data))
	}
	for i := off; i < end; i++ {
		r.data[i] = 0xFF
	}
	return nil
}

// Clear invalidates any stored coredump by zeroing only the first byte
// (which falls inside the magic word), rather than erasing the whole
// region — matching how the reference RAM-backed port avoids a full
// erase cycle on every capture.
func (r *RAMStorage) Clear() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.data) == 0 {
		return sdkerr.New("coredump.RAMStorage.Clear", sdkerr.CodeStorageError, "zero-length region")
	}
	r.data[0] = 0
	return nil
}

var _ interfaces.StorageDriver = (*RAMStorage)(nil)
