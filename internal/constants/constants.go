// Package constants holds default sizing and protocol constants shared
// across the SDK's subsystems.
package constants

// Reboot tracking region layout
const (
	// RebootRegionMagic identifies an initialized reboot tracking region.
	RebootRegionMagic = 0x000052F7

	// RebootRegionVersion is the current on-wire layout version.
	RebootRegionVersion = 1
)

// Coredump defaults
const (
	// DefaultCoredumpStorageSize is the default size in bytes reserved for
	// coredump storage when a platform does not specify one.
	DefaultCoredumpStorageSize = 1024

	// CoredumpMagic identifies a valid coredump header.
	CoredumpMagic = 0x45524F43 // "CORE" little-endian

	// CoredumpVersion is the current coredump binary layout version.
	CoredumpVersion = 1

	// MaxRLERunLength is the longest run a single RLE pair can encode.
	MaxRLERunLength = 255
)

// Event storage defaults
const (
	// DefaultEventStorageLen is the default size in bytes of the event ring.
	DefaultEventStorageLen = 2048

	// EventHeaderLen is the fixed-size prefix stored ahead of every event
	// record: a uint16 length plus a uint8 kind tag.
	EventHeaderLen = 3
)

// Log ring defaults
const (
	// DefaultLogRingLen is the default size in bytes of the log ring.
	DefaultLogRingLen = 1024

	// MaxLogLineSaveLen caps a single preformatted log line.
	MaxLogLineSaveLen = 128
)

// Packetizer defaults
const (
	// MinChunkBufLen is the smallest chunk buffer the packetizer will emit
	// into: 1 header byte + the longest possible varint (5 bytes) + a
	// 2-byte CRC16 + at least 1 payload byte.
	MinChunkBufLen = 9

	// DefaultSingleChunkLen is the default caller-supplied chunk buffer
	// size when none is configured.
	DefaultSingleChunkLen = 128
)

// HTTP defaults
const (
	// DefaultAPIHost is the default chunks ingestion hostname.
	DefaultAPIHost = "chunks.memfault.com"

	// SDKVersion is reported in the User-Agent header of chunk POSTs.
	SDKVersion = "0.1.0"

	// MaxHTTPLineLen bounds a single status/header line the response
	// parser will buffer before giving up.
	MaxHTTPLineLen = 128
)
