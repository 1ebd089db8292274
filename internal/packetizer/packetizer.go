// Package packetizer implements chunked transport: splitting a logical
// message into MTU-sized chunks a transport of unknown reliability can
// carry, and reassembling the chunk stream back into the logical
// message (with its CRC16 validated) on the receiving side.
package packetizer

import (
	"sync"

	"github.com/memfault/diagsdk/internal/constants"
	"github.com/memfault/diagsdk/internal/sdkerr"
	"github.com/memfault/diagsdk/internal/wire"
)

// State is the packetizer's 3-state machine, in the shape of a typed
// tag-state enum rather than a bundle of booleans.
type State int

const (
	StateIdle State = iota
	StateInitial
	StateContinuation
)

// Result reports what GetNext did on this call, mirroring the original
// packetizer's tri-state get_next return.
type Result int

const (
	// ResultNoMoreData means no message is in flight; nothing was written.
	ResultNoMoreData Result = iota
	// ResultEndOfChunk means this call wrote the final chunk of the message.
	ResultEndOfChunk
	// ResultMoreDataForChunk means a chunk was written and at least one
	// more chunk remains.
	ResultMoreDataForChunk
)

// headerContinuation / headerMoreData / headerChannelMask match the bit
// layout used across the wire: continuation in bit 7, "more data
// follows" in bit 6, channel id in bits 0-2.
const (
	headerContinuation = 1 << 7
	headerMoreData     = 1 << 6
	headerChannelMask  = 0x07
)

// ReadMsgFunc reads len(dst) bytes of the logical message starting at
// offset into dst, the way the original packetizer's read_msg_fn
// delegates to whichever data source supplied the message.
type ReadMsgFunc func(dst []byte, offset int) (int, error)

// BytesReader adapts an already-materialized payload to ReadMsgFunc.
func BytesReader(payload []byte) ReadMsgFunc {
	return func(dst []byte, offset int) (int, error) {
		return copy(dst, payload[offset:]), nil
	}
}

// Packetizer drives the chunking state machine for a single logical
// message at a time.
type Packetizer struct {
	mu        sync.Mutex
	state     State
	channel   uint8
	totalSize int
	offset    int
	crc       uint16
	multiCall bool
	read      ReadMsgFunc
}

// New creates an idle Packetizer.
func New() *Packetizer {
	return &Packetizer{}
}

// Begin starts chunking a totalSize-byte logical message, read on demand
// through read, over channel (0-7). It fails with CodeBusy if a
// previous message has not finished (or been Aborted).
//
// The CRC16 of the whole message is computed up front by streaming read
// 32 bytes at a time (SPEC_FULL.md §4.5, matching the original's
// prv_compute_crc16), so it can be placed in the initial chunk before
// any payload bytes are emitted. When multiCall is true, continuation
// chunks omit the read-offset varint (enable_multi_call_chunk mode);
// otherwise each continuation chunk carries its own offset so chunks
// can be re-requested out of order.
func (p *Packetizer) Begin(channel uint8, totalSize int, multiCall bool, read ReadMsgFunc) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != StateIdle {
		return sdkerr.New("packetizer.Begin", sdkerr.CodeBusy, "a message is already in flight")
	}

	var crc uint16
	var window [32]byte
	for off := 0; off < totalSize; off += len(window) {
		n := len(window)
		if totalSize-off < n {
			n = totalSize - off
		}
		if _, err := read(window[:n], off); err != nil {
			return sdkerr.Wrap("packetizer.Begin", sdkerr.CodeStorageError, err)
		}
		crc = wire.UpdateCRC16(crc, window[:n])
	}

	p.channel = channel & headerChannelMask
	p.totalSize = totalSize
	p.offset = 0
	p.crc = crc
	p.multiCall = multiCall
	p.read = read
	p.state = StateInitial
	return nil
}

// Active reports whether a message is currently being chunked.
func (p *Packetizer) Active() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state != StateIdle
}

// GetNext writes the next chunk into buf. buf must be at least
// constants.MinChunkBufLen bytes.
//
// Wire layout (SPEC_FULL.md §3/§4.5):
//
//	initial chunk:      header | (md ? varint(total_size) : "") | crc_lo,crc_hi | data
//	continuation chunk:  header | (multiCall ? "" : varint(read_offset)) | data
//
// The length varint is present on the initial chunk only when the whole
// message does not fit in a single chunk (md=1); a single-chunk message
// carries the CRC immediately after the header with no length prefix.
func (p *Packetizer) GetNext(buf []byte) (n int, result Result, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(buf) < constants.MinChunkBufLen {
		return 0, ResultNoMoreData, sdkerr.New("packetizer.GetNext", sdkerr.CodeInvalidInput, "chunk buffer too small")
	}
	if p.state == StateIdle {
		return 0, ResultNoMoreData, sdkerr.New("packetizer.GetNext", sdkerr.CodeNoMoreData, "no message in flight")
	}

	if p.state == StateInitial {
		return p.getNextInitial(buf)
	}
	return p.getNextContinuation(buf)
}

func (p *Packetizer) getNextInitial(buf []byte) (int, Result, error) {
	singleChunkLen := 1 + 2 + p.totalSize
	if singleChunkLen <= len(buf) {
		header := byte(p.channel)
		buf[0] = header
		buf[1] = byte(p.crc)
		buf[2] = byte(p.crc >> 8)
		if _, err := p.read(buf[3:3+p.totalSize], 0); err != nil {
			return 0, ResultNoMoreData, sdkerr.Wrap("packetizer.GetNext", sdkerr.CodeStorageError, err)
		}
		p.offset = p.totalSize
		p.finish()
		return singleChunkLen, ResultEndOfChunk, nil
	}

	var varintBuf [wire.MaxVarintLen32]byte
	varintLen := wire.PutUvarint(varintBuf[:], uint32(p.totalSize))
	need := 1 + varintLen + 2
	if need >= len(buf) {
		return 0, ResultNoMoreData, sdkerr.New("packetizer.GetNext", sdkerr.CodeInvalidInput, "chunk buffer too small for header")
	}

	take := len(buf) - need
	if take > p.totalSize {
		take = p.totalSize
	}

	buf[0] = byte(p.channel) | headerMoreData
	copy(buf[1:1+varintLen], varintBuf[:varintLen])
	buf[1+varintLen] = byte(p.crc)
	buf[1+varintLen+1] = byte(p.crc >> 8)
	if _, err := p.read(buf[need:need+take], 0); err != nil {
		return 0, ResultNoMoreData, sdkerr.Wrap("packetizer.GetNext", sdkerr.CodeStorageError, err)
	}

	p.offset = take
	p.state = StateContinuation
	return need + take, ResultMoreDataForChunk, nil
}

func (p *Packetizer) getNextContinuation(buf []byte) (int, Result, error) {
	remaining := p.totalSize - p.offset

	if p.multiCall {
		payloadSpace := len(buf) - 1
		take := remaining
		if take > payloadSpace {
			take = payloadSpace
		}
		moreData := take < remaining

		header := byte(p.channel) | headerContinuation
		if moreData {
			header |= headerMoreData
		}
		buf[0] = header
		if _, err := p.read(buf[1:1+take], p.offset); err != nil {
			return 0, ResultNoMoreData, sdkerr.Wrap("packetizer.GetNext", sdkerr.CodeStorageError, err)
		}
		p.offset += take
		if !moreData {
			p.finish()
			return 1 + take, ResultEndOfChunk, nil
		}
		return 1 + take, ResultMoreDataForChunk, nil
	}

	var varintBuf [wire.MaxVarintLen32]byte
	varintLen := wire.PutUvarint(varintBuf[:], uint32(p.offset))
	need := 1 + varintLen
	if need >= len(buf) {
		return 0, ResultNoMoreData, sdkerr.New("packetizer.GetNext", sdkerr.CodeInvalidInput, "chunk buffer too small for header")
	}
	payloadSpace := len(buf) - need
	take := remaining
	if take > payloadSpace {
		take = payloadSpace
	}
	moreData := take < remaining

	header := byte(p.channel) | headerContinuation
	if moreData {
		header |= headerMoreData
	}
	buf[0] = header
	copy(buf[1:1+varintLen], varintBuf[:varintLen])
	if _, err := p.read(buf[need:need+take], p.offset); err != nil {
		return 0, ResultNoMoreData, sdkerr.Wrap("packetizer.GetNext", sdkerr.CodeStorageError, err)
	}
	p.offset += take
	if !moreData {
		p.finish()
		return need + take, ResultEndOfChunk, nil
	}
	return need + take, ResultMoreDataForChunk, nil
}

func (p *Packetizer) finish() {
	p.state = StateIdle
	p.read = nil
	p.totalSize = 0
	p.offset = 0
	p.crc = 0
}

// Abort cancels an in-flight message, returning the packetizer to Idle.
func (p *Packetizer) Abort() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.finish()
}
