package packetizer

import (
	"github.com/memfault/diagsdk/internal/sdkerr"
	"github.com/memfault/diagsdk/internal/wire"
)

// Reassembler is the receive-side counterpart to Packetizer: it folds a
// stream of chunks back into the original message and validates the
// CRC16 carried in the initial chunk once the final chunk arrives.
// multiCall must match the mode the sender used to Begin the message,
// since that determines whether continuation chunks carry an offset
// varint.
type Reassembler struct {
	multiCall bool
	buf       []byte
	total     int
	crc       uint16
	started   bool
}

// NewReassembler creates an empty Reassembler for the given chunking
// mode.
func NewReassembler(multiCall bool) *Reassembler {
	return &Reassembler{multiCall: multiCall}
}

// AddChunk feeds one chunk in. It returns done=true once every chunk of
// the message has been folded in, at which point Payload returns the
// reassembled, integrity-checked data.
func (r *Reassembler) AddChunk(chunk []byte) (done bool, err error) {
	if len(chunk) == 0 {
		return false, sdkerr.New("packetizer.Reassembler.AddChunk", sdkerr.CodeInvalidInput, "empty chunk")
	}
	header := chunk[0]
	continuation := header&headerContinuation != 0
	moreData := header&headerMoreData != 0
	rest := chunk[1:]

	if !continuation {
		if r.started {
			return false, sdkerr.New("packetizer.Reassembler.AddChunk", sdkerr.CodeInvalidInput, "unexpected initial chunk mid-message")
		}
		var crcOffset int
		total := 0
		if moreData {
			v, n, ok := wire.Uvarint(rest)
			if !ok {
				return false, sdkerr.New("packetizer.Reassembler.AddChunk", sdkerr.CodeTruncated, "truncated length varint")
			}
			total = int(v)
			crcOffset = n
		}
		if len(rest) < crcOffset+2 {
			return false, sdkerr.New("packetizer.Reassembler.AddChunk", sdkerr.CodeTruncated, "truncated CRC16")
		}
		r.crc = uint16(rest[crcOffset]) | uint16(rest[crcOffset+1])<<8
		payload := rest[crcOffset+2:]
		if !moreData {
			total = len(payload)
		}
		r.total = total
		r.buf = make([]byte, 0, total)
		r.buf = append(r.buf, payload...)
		r.started = true
	} else {
		if !r.started {
			return false, sdkerr.New("packetizer.Reassembler.AddChunk", sdkerr.CodeInvalidInput, "continuation chunk with no initial chunk")
		}
		payload := rest
		if !r.multiCall {
			_, n, ok := wire.Uvarint(rest)
			if !ok {
				return false, sdkerr.New("packetizer.Reassembler.AddChunk", sdkerr.CodeTruncated, "truncated offset varint")
			}
			payload = rest[n:]
		}
		r.buf = append(r.buf, payload...)
	}

	if moreData {
		return false, nil
	}
	if len(r.buf) != r.total {
		return false, sdkerr.New("packetizer.Reassembler.AddChunk", sdkerr.CodeTruncated, "reassembled length does not match announced total")
	}
	return true, nil
}

// Payload returns the reassembled message with its CRC16 validated
// against the value carried in the initial chunk.
func (r *Reassembler) Payload() ([]byte, error) {
	if wire.CRC16(r.buf) != r.crc {
		return nil, sdkerr.New("packetizer.Reassembler.Payload", sdkerr.CodeIntegrityError, "CRC16 mismatch")
	}
	return r.buf, nil
}
