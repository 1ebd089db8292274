package packetizer

import (
	"bytes"
	"testing"

	"github.com/memfault/diagsdk/internal/sdkerr"
	"github.com/memfault/diagsdk/internal/wire"
)

func drainAndReassemble(t *testing.T, p *Packetizer, chunkBufLen int, multiCall bool) []byte {
	t.Helper()
	r := NewReassembler(multiCall)
	buf := make([]byte, chunkBufLen)
	for {
		n, result, err := p.GetNext(buf)
		if err != nil {
			t.Fatalf("GetNext: %v", err)
		}
		chunkDone, err := r.AddChunk(buf[:n])
		if err != nil {
			t.Fatalf("AddChunk: %v", err)
		}
		if result == ResultEndOfChunk {
			if !chunkDone {
				t.Fatal("Packetizer reported EndOfChunk but Reassembler disagreed")
			}
			break
		}
	}
	payload, err := r.Payload()
	if err != nil {
		t.Fatalf("Payload: %v", err)
	}
	return payload
}

func TestSingleChunkRoundTrip(t *testing.T) {
	p := New()
	msg := []byte("short message")
	if err := p.Begin(3, len(msg), false, BytesReader(msg)); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	got := drainAndReassemble(t, p, 64, false)
	if !bytes.Equal(got, msg) {
		t.Errorf("got %q, want %q", got, msg)
	}
	if p.Active() {
		t.Error("packetizer should be idle after a fully drained message")
	}
}

func TestMultiChunkRoundTrip(t *testing.T) {
	p := New()
	msg := make([]byte, 500)
	for i := range msg {
		msg[i] = byte(i)
	}
	if err := p.Begin(1, len(msg), false, BytesReader(msg)); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	got := drainAndReassemble(t, p, 32, false) // small buffer forces many chunks
	if !bytes.Equal(got, msg) {
		t.Errorf("multi-chunk reassembly mismatch, got %d bytes want %d", len(got), len(msg))
	}
}

func TestMultiCallModeContinuationOmitsOffset(t *testing.T) {
	p := New()
	msg := make([]byte, 300)
	for i := range msg {
		msg[i] = byte(i * 3)
	}
	if err := p.Begin(2, len(msg), true, BytesReader(msg)); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	got := drainAndReassemble(t, p, 24, true)
	if !bytes.Equal(got, msg) {
		t.Errorf("multi-call reassembly mismatch, got %d bytes want %d", len(got), len(msg))
	}
}

func TestBeginWhileActiveReturnsBusy(t *testing.T) {
	p := New()
	if err := p.Begin(0, 1, false, BytesReader([]byte("x"))); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	err := p.Begin(0, 1, false, BytesReader([]byte("y")))
	if !sdkerr.Is(err, sdkerr.CodeBusy) {
		t.Errorf("got %v, want CodeBusy", err)
	}
}

func TestAbortResetsToIdle(t *testing.T) {
	p := New()
	_ = p.Begin(0, 3, false, BytesReader([]byte("abc")))
	p.Abort()
	if p.Active() {
		t.Error("expected packetizer to be idle after Abort")
	}
	if err := p.Begin(0, 3, false, BytesReader([]byte("def"))); err != nil {
		t.Errorf("Begin after Abort should succeed, got %v", err)
	}
}

func TestGetNextRejectsUndersizedBuffer(t *testing.T) {
	p := New()
	_ = p.Begin(0, 3, false, BytesReader([]byte("abc")))
	_, _, err := p.GetNext(make([]byte, 1))
	if !sdkerr.Is(err, sdkerr.CodeInvalidInput) {
		t.Errorf("got %v, want CodeInvalidInput", err)
	}
}

func TestReassemblerRejectsBadCRC(t *testing.T) {
	p := New()
	msg := []byte("integrity check")
	_ = p.Begin(0, len(msg), false, BytesReader(msg))

	buf := make([]byte, 64)
	n, _, err := p.GetNext(buf)
	if err != nil {
		t.Fatalf("GetNext: %v", err)
	}
	tampered := append([]byte(nil), buf[:n]...)
	tampered[len(tampered)-1] ^= 0xFF // corrupt the last payload byte

	r := NewReassembler(false)
	if _, err := r.AddChunk(tampered); err != nil {
		t.Fatalf("AddChunk: %v", err)
	}
	if _, err := r.Payload(); !sdkerr.Is(err, sdkerr.CodeIntegrityError) {
		t.Errorf("got %v, want CodeIntegrityError", err)
	}
}

// TestScenarioCSingleChunkLiteralBytes matches spec.md §8 Scenario C: a
// 3-byte payload with a 16-byte chunk buffer fits in a single chunk, so
// the initial chunk carries no length varint — just header, CRC16
// (low byte first), then the payload.
func TestScenarioCSingleChunkLiteralBytes(t *testing.T) {
	p := New()
	payload := []byte{0xAA, 0xBB, 0xCC}
	if err := p.Begin(0, len(payload), false, BytesReader(payload)); err != nil {
		t.Fatalf("Begin: %v", err)
	}

	buf := make([]byte, 16)
	n, result, err := p.GetNext(buf)
	if err != nil {
		t.Fatalf("GetNext: %v", err)
	}
	if result != ResultEndOfChunk {
		t.Fatalf("result = %v, want ResultEndOfChunk", result)
	}

	crc := wire.CRC16(payload)
	want := []byte{0x00, byte(crc), byte(crc >> 8), 0xAA, 0xBB, 0xCC}
	if !bytes.Equal(buf[:n], want) {
		t.Errorf("chunk bytes = % X, want % X", buf[:n], want)
	}
}

// TestScenarioDMultiChunkLiteralBytes matches spec.md §8 Scenario D: a
// 128-byte payload with a 16-byte chunk buffer does not fit in one
// chunk, so the initial chunk carries header 0x40, varint(128) =
// {0x80, 0x01}, the CRC16, and as much payload as remains (11 bytes);
// subsequent chunks in default mode carry a continuation header plus
// varint(read_offset), with 0xC0 on every chunk but the last (0x80).
func TestScenarioDMultiChunkLiteralBytes(t *testing.T) {
	payload := make([]byte, 128)
	for i := range payload {
		payload[i] = byte(i)
	}
	p := New()
	if err := p.Begin(0, len(payload), false, BytesReader(payload)); err != nil {
		t.Fatalf("Begin: %v", err)
	}

	buf := make([]byte, 16)
	n, result, err := p.GetNext(buf)
	if err != nil {
		t.Fatalf("GetNext (initial): %v", err)
	}
	if result != ResultMoreDataForChunk {
		t.Fatalf("initial result = %v, want ResultMoreDataForChunk", result)
	}
	if buf[0] != 0x40 {
		t.Errorf("initial header = %#x, want 0x40", buf[0])
	}
	if !bytes.Equal(buf[1:3], []byte{0x80, 0x01}) {
		t.Errorf("initial length varint = % X, want 80 01", buf[1:3])
	}
	crc := wire.CRC16(payload)
	if buf[3] != byte(crc) || buf[4] != byte(crc>>8) {
		t.Errorf("initial CRC bytes = % X, want %02X %02X", buf[3:5], byte(crc), byte(crc>>8))
	}
	if n != 16 {
		t.Fatalf("initial chunk length = %d, want 16 (5-byte header + 11 data bytes)", n)
	}
	if !bytes.Equal(buf[5:16], payload[:11]) {
		t.Errorf("initial data bytes = % X, want % X", buf[5:16], payload[:11])
	}

	r := NewReassembler(false)
	done, err := r.AddChunk(buf[:n])
	if err != nil {
		t.Fatalf("AddChunk(initial): %v", err)
	}
	if done {
		t.Fatal("reassembler reported done after the initial chunk")
	}

	var lastHeader byte
	for {
		n, result, err := p.GetNext(buf)
		if err != nil {
			t.Fatalf("GetNext (continuation): %v", err)
		}
		lastHeader = buf[0]
		if lastHeader&headerContinuation == 0 {
			t.Fatalf("continuation header %#x missing continuation bit", lastHeader)
		}
		done, err := r.AddChunk(buf[:n])
		if err != nil {
			t.Fatalf("AddChunk: %v", err)
		}
		if result == ResultEndOfChunk {
			if lastHeader&headerMoreData != 0 {
				t.Errorf("final chunk header %#x should not have the more-data bit set (want 0x80)", lastHeader)
			}
			if !done {
				t.Fatal("Packetizer reported EndOfChunk but Reassembler disagreed")
			}
			break
		}
		if lastHeader&headerMoreData == 0 {
			t.Errorf("non-final continuation header %#x should have the more-data bit set (want 0xC0)", lastHeader)
		}
	}

	got, err := r.Payload()
	if err != nil {
		t.Fatalf("Payload: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("reassembled payload mismatch, got %d bytes want %d", len(got), len(payload))
	}
}
