package wire

import "testing"

func TestCRC16KnownVector(t *testing.T) {
	// "123456789" is the standard CRC check string; CRC-16/XMODEM (poly
	// 0x1021, init 0x0000) of it is the well-known value 0x31C3.
	got := CRC16([]byte("123456789"))
	const want = 0x31C3
	if got != want {
		t.Errorf("CRC16(\"123456789\") = 0x%04X, want 0x%04X", got, want)
	}
}

func TestCRC16StreamingMatchesSingleShot(t *testing.T) {
	msg := []byte("a reasonably long message split across several update calls for streaming")

	single := CRC16(msg)

	var streamed uint16
	for i := 0; i < len(msg); i += 7 {
		end := i + 7
		if end > len(msg) {
			end = len(msg)
		}
		streamed = UpdateCRC16(streamed, msg[i:end])
	}

	if single != streamed {
		t.Errorf("streamed CRC 0x%04X != single-shot CRC 0x%04X", streamed, single)
	}
}

func TestCRC16EmptyInput(t *testing.T) {
	if got := CRC16(nil); got != 0 {
		t.Errorf("CRC16(nil) = 0x%04X, want 0", got)
	}
}
