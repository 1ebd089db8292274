package coredump

import (
	"bytes"

	"github.com/memfault/diagsdk/internal/interfaces"
	"github.com/memfault/diagsdk/internal/sdkerr"
)

// FailureMode injects a specific storage-driver misbehavior into
// DebugStorage, for exercising RunStorageSelfTest against the same
// fault classes a bring-up engineer hits with a new flash driver.
type FailureMode int

const (
	FailureNone FailureMode = iota
	FailureWriteAlwaysErrors
	FailureReadAlwaysErrors
	FailureEraseAlwaysErrors
	FailureWriteSilentNoOp     // WriteAt reports success but never stores the bytes
	FailureReadReturnsStaleData // ReadAt returns erased (0xFF) bytes instead of what was just written
)

// DebugStorage wraps a RAMStorage and injects FailureMode into its
// operations, for use only by RunStorageSelfTest and its tests.
type DebugStorage struct {
	ram  *RAMStorage
	mode FailureMode
}

// NewDebugStorage builds a DebugStorage of the given size injecting mode.
func NewDebugStorage(size uint32, sectorSize uint32, mode FailureMode) *DebugStorage {
	return &DebugStorage{ram: NewRAMStorage(size, sectorSize), mode: mode}
}

func (d *DebugStorage) Info() (interfaces.StorageInfo, error) {
	return d.ram.Info()
}

func (d *DebugStorage) ReadAt(off uint32, p []byte) error {
	if d.mode == FailureReadAlwaysErrors {
		return sdkerr.New("coredump.DebugStorage.ReadAt", sdkerr.CodeStorageError, "injected read failure")
	}
	if d.mode == FailureReadReturnsStaleData {
		// Report the erased state regardless of what was written,
		// modelling read-after-write incoherency.
		if err := d.ram.ReadAt(off, p); err != nil {
			return err
		}
		for i := range p {
			p[i] = 0xFF
		}
		return nil
	}
	return d.ram.ReadAt(off, p)
}

func (d *DebugStorage) WriteAt(off uint32, p []byte) error {
	switch d.mode {
	case FailureWriteAlwaysErrors:
		return sdkerr.New("coredump.DebugStorage.WriteAt", sdkerr.CodeStorageError, "injected write failure")
	case FailureWriteSilentNoOp:
		return nil // claims success, bytes never reach the backing store
	default:
		return d.ram.WriteAt(off, p)
	}
}

func (d *DebugStorage) Erase(off uint32, length uint32) error {
	if d.mode == FailureEraseAlwaysErrors {
		return sdkerr.New("coredump.DebugStorage.Erase", sdkerr.CodeStorageError, "injected erase failure")
	}
	return d.ram.Erase(off, length)
}

func (d *DebugStorage) Clear() error {
	return d.ram.Clear()
}

var _ interfaces.StorageDriver = (*DebugStorage)(nil)

// RunStorageSelfTest exercises a platform's StorageDriver port with a
// write/read-back/erase cycle, returning an error describing the first
// inconsistency found. It is meant to be run once at bring-up, not on
// every boot.
func RunStorageSelfTest(driver interfaces.StorageDriver) error {
	info, err := driver.Info()
	if err != nil {
		return sdkerr.Wrap("coredump.RunStorageSelfTest", sdkerr.CodeStorageError, err)
	}
	if info.TotalSize == 0 {
		return sdkerr.New("coredump.RunStorageSelfTest", sdkerr.CodeInvalidInput, "zero-length storage region")
	}

	pattern := make([]byte, minInt(16, int(info.TotalSize)))
	for i := range pattern {
		pattern[i] = byte(0xA5 ^ i)
	}

	if err := driver.Erase(0, uint32(len(pattern))); err != nil {
		return sdkerr.Wrap("coredump.RunStorageSelfTest", sdkerr.CodeStorageError, err)
	}
	if err := driver.WriteAt(0, pattern); err != nil {
		return sdkerr.Wrap("coredump.RunStorageSelfTest", sdkerr.CodeStorageError, err)
	}

	readBack := make([]byte, len(pattern))
	if err := driver.ReadAt(0, readBack); err != nil {
		return sdkerr.Wrap("coredump.RunStorageSelfTest", sdkerr.CodeStorageError, err)
	}
	if !bytes.Equal(readBack, pattern) {
		return sdkerr.New("coredump.RunStorageSelfTest", sdkerr.CodeIntegrityError, "read-back did not match what was written")
	}

	if err := driver.Clear(); err != nil {
		return sdkerr.Wrap("coredump.RunStorageSelfTest", sdkerr.CodeStorageError, err)
	}
	firstByte := make([]byte, 1)
	if err := driver.ReadAt(0, firstByte); err != nil {
		return sdkerr.Wrap("coredump.RunStorageSelfTest", sdkerr.CodeStorageError, err)
	}
	if firstByte[0] != 0 {
		return sdkerr.New("coredump.RunStorageSelfTest", sdkerr.CodeIntegrityError, "Clear did not invalidate the stored header")
	}

	return nil
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
