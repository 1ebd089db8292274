package coredump

import (
	"github.com/memfault/diagsdk/internal/bufpool"
	"github.com/memfault/diagsdk/internal/interfaces"
	"github.com/memfault/diagsdk/internal/sdkerr"
)

// StorageWriter buffers writes up to the driver's sector size before
// flushing, so callers never issue a WriteAt smaller than one sector to
// a flash-backed StorageDriver (many such drivers can only program
// whole pages/sectors cleanly).
type StorageWriter struct {
	driver interfaces.StorageDriver
	sector uint32
	offset uint32
	buf    []byte // pending bytes, len < sector
}

// NewStorageWriter constructs a writer over driver using sectorSize as
// the flush granularity. A sectorSize of 0 disables buffering (every
// Write is flushed immediately).
func NewStorageWriter(driver interfaces.StorageDriver, sectorSize uint32) *StorageWriter {
	return &StorageWriter{driver: driver, sector: sectorSize}
}

// Write appends p to the pending buffer, flushing whole sectors to the
// driver as they fill.
func (w *StorageWriter) Write(p []byte) error {
	if w.sector == 0 {
		if err := w.driver.WriteAt(w.offset, p); err != nil {
			return sdkerr.Wrap("coredump.StorageWriter.Write", sdkerr.CodeStorageError, err)
		}
		w.offset += uint32(len(p))
		return nil
	}

	if w.buf == nil {
		w.buf = bufpool.Get(0)
	}
	w.buf = append(w.buf, p...)

	for uint32(len(w.buf)) >= w.sector {
		chunk := w.buf[:w.sector]
		if err := w.driver.WriteAt(w.offset, chunk); err != nil {
			return sdkerr.Wrap("coredump.StorageWriter.Write", sdkerr.CodeStorageError, err)
		}
		w.offset += w.sector
		remaining := len(w.buf) - int(w.sector)
		copy(w.buf, w.buf[w.sector:])
		w.buf = w.buf[:remaining]
	}
	return nil
}

// Flush writes out any partial trailing sector, zero-padded, and
// releases the internal buffer.
func (w *StorageWriter) Flush() error {
	defer func() {
		if w.buf != nil {
			bufpool.Put(w.buf[:cap(w.buf)])
			w.buf = nil
		}
	}()
	if len(w.buf) == 0 {
		return nil
	}
	padded := w.buf
	if w.sector > 0 && uint32(len(padded)) < w.sector {
		padded = append(padded, make([]byte, w.sector-uint32(len(padded)))...)
	}
	if err := w.driver.WriteAt(w.offset, padded); err != nil {
		return sdkerr.Wrap("coredump.StorageWriter.Flush", sdkerr.CodeStorageError, err)
	}
	w.offset += uint32(len(padded))
	return nil
}

// Offset returns the number of bytes written (flushed or pending) so
// far. After Flush it includes the zero padding Flush wrote.
func (w *StorageWriter) Offset() uint32 {
	return w.offset + uint32(len(w.buf))
}
