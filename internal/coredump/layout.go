// Package coredump implements crash capture: a tagged-block binary
// layout, a buffered sector-aware storage writer, a size-only probe
// pass, a RAM-backed storage reference port, and a storage self-test
// harness.
package coredump

import (
	"encoding/binary"

	"github.com/memfault/diagsdk/internal/constants"
)

// BlockTag identifies the contents of one coredump block.
type BlockTag uint16

const (
	TagDeviceSerial     BlockTag = 1
	TagSoftwareVersion  BlockTag = 2
	TagSoftwareType     BlockTag = 3
	TagHardwareVersion  BlockTag = 4
	TagMemoryRegion     BlockTag = 5
	TagRebootReason     BlockTag = 6
	TagTraceReason      BlockTag = 7
	TagBuildID          BlockTag = 8
	TagMachineType      BlockTag = 9
)

// memoryRegionFlagRLE marks a TagMemoryRegion block's payload as
// RLE-compressed; the flag occupies the high bit of the address word so
// the block stays addr(4)+flag-folded rather than growing a byte.
const memoryRegionFlagRLE = 1 << 31

// headerLen is magic(4) + version(1) + totalLen(4).
const headerLen = 9

// blockHeaderLen is tag(2) + length(4).
const blockHeaderLen = 6

// EncodeHeader writes the fixed coredump header into buf (>= headerLen
// bytes) given the total encoded length including this header.
func EncodeHeader(buf []byte, totalLen uint32) {
	binary.LittleEndian.PutUint32(buf[0:4], constants.CoredumpMagic)
	buf[4] = constants.CoredumpVersion
	binary.LittleEndian.PutUint32(buf[5:9], totalLen)
}

// DecodeHeader parses the fixed header, reporting ok=false if the magic
// or version does not match what this package produces.
func DecodeHeader(buf []byte) (totalLen uint32, ok bool) {
	if len(buf) < headerLen {
		return 0, false
	}
	if binary.LittleEndian.Uint32(buf[0:4]) != constants.CoredumpMagic {
		return 0, false
	}
	if buf[4] != constants.CoredumpVersion {
		return 0, false
	}
	return binary.LittleEndian.Uint32(buf[5:9]), true
}

// EncodeBlockHeader writes a block header into buf (>= blockHeaderLen
// bytes).
func EncodeBlockHeader(buf []byte, tag BlockTag, payloadLen uint32) {
	binary.LittleEndian.PutUint16(buf[0:2], uint16(tag))
	binary.LittleEndian.PutUint32(buf[2:6], payloadLen)
}

// DecodeBlockHeader parses a block header.
func DecodeBlockHeader(buf []byte) (tag BlockTag, payloadLen uint32, ok bool) {
	if len(buf) < blockHeaderLen {
		return 0, 0, false
	}
	return BlockTag(binary.LittleEndian.Uint16(buf[0:2])), binary.LittleEndian.Uint32(buf[2:6]), true
}

// MemoryRegionHeaderLen is the fixed prefix of a TagMemoryRegion block's
// payload: a 32-bit address word whose top bit doubles as the
// RLE-compressed flag.
const MemoryRegionHeaderLen = 4

// EncodeMemoryRegionHeader packs addr and the RLE flag into buf (>= 4
// bytes).
func EncodeMemoryRegionHeader(buf []byte, addr uint32, rle bool) {
	word := addr &^ memoryRegionFlagRLE
	if rle {
		word |= memoryRegionFlagRLE
	}
	binary.LittleEndian.PutUint32(buf[0:4], word)
}

// DecodeMemoryRegionHeader unpacks a memory region block's address
// header.
func DecodeMemoryRegionHeader(buf []byte) (addr uint32, rle bool) {
	word := binary.LittleEndian.Uint32(buf[0:4])
	return word &^ memoryRegionFlagRLE, word&memoryRegionFlagRLE != 0
}

// RLEEncode run-length-encodes src as (runLen byte, value byte) pairs,
// each run capped at constants.MaxRLERunLength.
func RLEEncode(dst []byte, src []byte) []byte {
	i := 0
	for i < len(src) {
		v := src[i]
		run := 1
		for i+run < len(src) && src[i+run] == v && run < constants.MaxRLERunLength {
			run++
		}
		dst = append(dst, byte(run), v)
		i += run
	}
	return dst
}

// RLEDecode expands an RLE-encoded payload into a buffer of exactly
// wantLen bytes, or returns ok=false if the stream does not produce
// exactly that many bytes.
func RLEDecode(dst []byte, src []byte, wantLen int) (out []byte, ok bool) {
	n := 0
	for i := 0; i+1 < len(src); i += 2 {
		run := int(src[i])
		v := src[i+1]
		for r := 0; r < run; r++ {
			if n >= wantLen {
				return dst, false
			}
			dst = append(dst, v)
			n++
		}
	}
	return dst, n == wantLen
}
