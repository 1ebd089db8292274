package coredump

import (
	"github.com/memfault/diagsdk/internal/interfaces"
	"github.com/memfault/diagsdk/internal/sdkerr"
)

// Source adapts a StorageDriver holding a captured coredump into the
// registry's Source interface: HasMore/ReadNext/MarkSent, satisfied
// structurally without this package importing the source package.
//
// It carries no "already sent" flag of its own: MarkSent invalidates
// the stored header via Clear, so HasMore naturally goes false until a
// fresh Capture writes a new valid header.
type Source struct {
	driver interfaces.StorageDriver
}

// NewSource wraps driver for draining by the data source registry.
func NewSource(driver interfaces.StorageDriver) *Source {
	return &Source{driver: driver}
}

// HasMore reports whether a valid, not-yet-sent coredump is stored.
func (s *Source) HasMore() bool {
	hdr := make([]byte, headerLen)
	if err := s.driver.ReadAt(0, hdr); err != nil {
		return false
	}
	_, ok := DecodeHeader(hdr)
	return ok
}

// ReadNext reads the entire stored coredump (header and blocks) into
// memory for handoff to the packetizer.
func (s *Source) ReadNext() ([]byte, error) {
	hdr := make([]byte, headerLen)
	if err := s.driver.ReadAt(0, hdr); err != nil {
		return nil, sdkerr.Wrap("coredump.Source.ReadNext", sdkerr.CodeStorageError, err)
	}
	total, ok := DecodeHeader(hdr)
	if !ok {
		return nil, sdkerr.New("coredump.Source.ReadNext", sdkerr.CodeNoMoreData, "no valid coredump stored")
	}
	out := make([]byte, total)
	if err := s.driver.ReadAt(0, out); err != nil {
		return nil, sdkerr.Wrap("coredump.Source.ReadNext", sdkerr.CodeStorageError, err)
	}
	return out, nil
}

// MarkSent invalidates the stored coredump so it is not resent.
func (s *Source) MarkSent() error {
	if err := s.driver.Clear(); err != nil {
		return sdkerr.Wrap("coredump.Source.MarkSent", sdkerr.CodeStorageError, err)
	}
	return nil
}
