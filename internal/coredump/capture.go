package coredump

import (
	"github.com/memfault/diagsdk/internal/interfaces"
	"github.com/memfault/diagsdk/internal/sdkerr"
)

// Inputs bundles everything a capture pass needs. Compress selects RLE
// encoding for memory region payloads (Config.EnableCompression).
type Inputs struct {
	DeviceSerial    string
	SoftwareType    string
	SoftwareVersion string
	HardwareVersion string
	BuildID         []byte
	RebootReason    uint16
	TraceReason     *uint16
	Regions         []interfaces.Region
	Compress        bool
}

// blockSink receives encoded (tag, payload) pairs. ProbeSize and
// Capture both drive the same emission sequence through different
// sinks so the probe can never drift from what is actually written.
type blockSink interface {
	writeBlock(tag BlockTag, payload []byte) error
}

type sizeSink struct{ total uint32 }

func (s *sizeSink) writeBlock(_ BlockTag, payload []byte) error {
	s.total += blockHeaderLen + uint32(len(payload))
	return nil
}

type storageSink struct{ w *StorageWriter }

func (s *storageSink) writeBlock(tag BlockTag, payload []byte) error {
	var hdr [blockHeaderLen]byte
	EncodeBlockHeader(hdr[:], tag, uint32(len(payload)))
	if err := s.w.Write(hdr[:]); err != nil {
		return err
	}
	return s.w.Write(payload)
}

func emitBlocks(sink blockSink, in Inputs) error {
	if in.DeviceSerial != "" {
		if err := sink.writeBlock(TagDeviceSerial, []byte(in.DeviceSerial)); err != nil {
			return err
		}
	}
	if in.SoftwareType != "" {
		if err := sink.writeBlock(TagSoftwareType, []byte(in.SoftwareType)); err != nil {
			return err
		}
	}
	if in.SoftwareVersion != "" {
		if err := sink.writeBlock(TagSoftwareVersion, []byte(in.SoftwareVersion)); err != nil {
			return err
		}
	}
	if in.HardwareVersion != "" {
		if err := sink.writeBlock(TagHardwareVersion, []byte(in.HardwareVersion)); err != nil {
			return err
		}
	}
	if len(in.BuildID) > 0 {
		if err := sink.writeBlock(TagBuildID, in.BuildID); err != nil {
			return err
		}
	}
	{
		payload := []byte{byte(in.RebootReason), byte(in.RebootReason >> 8)}
		if err := sink.writeBlock(TagRebootReason, payload); err != nil {
			return err
		}
	}
	if in.TraceReason != nil {
		payload := []byte{byte(*in.TraceReason), byte(*in.TraceReason >> 8)}
		if err := sink.writeBlock(TagTraceReason, payload); err != nil {
			return err
		}
	}
	for _, region := range in.Regions {
		payload, err := encodeMemoryRegion(region, in.Compress)
		if err != nil {
			return err
		}
		if err := sink.writeBlock(TagMemoryRegion, payload); err != nil {
			return err
		}
	}
	return nil
}

func encodeMemoryRegion(region interfaces.Region, compress bool) ([]byte, error) {
	body := region.Data
	useRLE := false
	if compress && hasRLEGain(body) {
		encoded := RLEEncode(make([]byte, 0, len(body)), body)
		if len(encoded) < len(body) {
			body = encoded
			useRLE = true
		}
	}
	payload := make([]byte, MemoryRegionHeaderLen, MemoryRegionHeaderLen+len(body))
	EncodeMemoryRegionHeader(payload, region.Addr, useRLE)
	payload = append(payload, body...)
	return payload, nil
}

// hasRLEGain reports whether src contains at least one run of length >=
// 2, the minimum condition under which RLE can shrink the payload.
func hasRLEGain(src []byte) bool {
	for i := 1; i < len(src); i++ {
		if src[i] == src[i-1] {
			return true
		}
	}
	return false
}

// ProbeSize computes the exact encoded size of a capture without
// touching storage, so the header's total-length field can be written
// once up front on storage that cannot be rewritten after the fact.
func ProbeSize(in Inputs) uint32 {
	s := &sizeSink{}
	_ = emitBlocks(s, in) // sizeSink never errors
	return headerLen + s.total
}

// Capture runs the full capture sequence against driver: probe the
// encoded size, verify it fits, clear any previous coredump, write the
// header, then stream every block. A failure at any step aborts the
// capture; a partially written region is left in place rather than
// retried, per the no-retry propagation policy every subsystem here
// follows.
func Capture(driver interfaces.StorageDriver, in Inputs) error {
	info, err := driver.Info()
	if err != nil {
		return sdkerr.Wrap("coredump.Capture", sdkerr.CodeStorageError, err)
	}

	total := ProbeSize(in)
	if total > info.TotalSize {
		return sdkerr.New("coredump.Capture", sdkerr.CodeTruncated, "capture does not fit in available storage")
	}

	if err := driver.Clear(); err != nil {
		return sdkerr.Wrap("coredump.Capture", sdkerr.CodeStorageError, err)
	}

	w := NewStorageWriter(driver, info.SectorSize)
	var hdr [headerLen]byte
	EncodeHeader(hdr[:], total)
	if err := w.Write(hdr[:]); err != nil {
		return err
	}

	sink := &storageSink{w: w}
	if err := emitBlocks(sink, in); err != nil {
		return err
	}

	return w.Flush()
}
