// Package logring implements the bounded circular log buffer: unlike
// event storage, it overwrites its oldest entries once full, since a
// trailing window of recent log lines is more useful during crash
// analysis than guaranteeing no log line is ever dropped.
package logring

import (
	"encoding/binary"
	"sync"

	"github.com/memfault/diagsdk/internal/constants"
	"github.com/memfault/diagsdk/internal/sdkerr"
)

// Ring is a fixed-capacity overwrite-oldest circular buffer of
// length-prefixed log lines.
type Ring struct {
	mu       sync.Mutex
	buf      []byte
	capacity int
	head     int // read cursor: offset of oldest unread byte
	tail     int // write cursor: offset of next free byte
	full     bool
}

// New creates a Ring with the given capacity in bytes.
func New(capacity uint32) *Ring {
	if capacity == 0 {
		capacity = constants.DefaultLogRingLen
	}
	return &Ring{buf: make([]byte, capacity), capacity: int(capacity)}
}

const lineHeaderLen = 2 // uint16 length prefix

// Append writes one log line, truncating to MaxLogLineSaveLen and
// evicting the oldest lines as needed to make room. A line longer than
// the ring's total capacity is truncated to fit.
func (r *Ring) Append(line []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(line) > constants.MaxLogLineSaveLen {
		line = line[:constants.MaxLogLineSaveLen]
	}
	need := lineHeaderLen + len(line)
	for need > r.capacity {
		line = line[:len(line)-1]
		need = lineHeaderLen + len(line)
	}

	for r.usedLocked()+need > r.capacity {
		r.evictOldestLocked()
	}

	r.writeAt(r.tail, func(w *ringWriter) {
		w.putUint16(uint16(len(line)))
		w.putBytes(line)
	})
	r.tail = (r.tail + need) % r.capacity
	if r.tail == r.head {
		r.full = true
	}
}

func (r *Ring) usedLocked() int {
	if r.full {
		return r.capacity
	}
	if r.tail >= r.head {
		return r.tail - r.head
	}
	return r.capacity - r.head + r.tail
}

func (r *Ring) evictOldestLocked() {
	if r.head == r.tail && !r.full {
		return
	}
	length := int(r.readUint16(r.head))
	r.head = (r.head + lineHeaderLen + length) % r.capacity
	r.full = false
}

// Lines returns every stored line, oldest first, without consuming them.
func (r *Ring) Lines() [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out [][]byte
	pos := r.head
	remaining := r.usedLocked()
	for remaining > 0 {
		length := int(r.readUint16(pos))
		line := make([]byte, length)
		p := (pos + lineHeaderLen) % r.capacity
		for i := 0; i < length; i++ {
			line[i] = r.buf[(p+i)%r.capacity]
		}
		out = append(out, line)
		consumed := lineHeaderLen + length
		pos = (pos + consumed) % r.capacity
		remaining -= consumed
	}
	return out
}

// PeekFront returns the oldest stored line without consuming it.
func (r *Ring) PeekFront() (line []byte, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.usedLocked() == 0 {
		return nil, false
	}
	length := int(r.readUint16(r.head))
	p := (r.head + lineHeaderLen) % r.capacity
	out := make([]byte, length)
	for i := 0; i < length; i++ {
		out[i] = r.buf[(p+i)%r.capacity]
	}
	return out, true
}

// PopFront removes the oldest stored line.
func (r *Ring) PopFront() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.usedLocked() == 0 {
		return sdkerr.New("logring.PopFront", sdkerr.CodeNoMoreData, "ring is empty")
	}
	r.evictOldestLocked()
	return nil
}

// HasMore reports whether at least one line is stored.
func (r *Ring) HasMore() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.usedLocked() > 0
}

// ReadNext returns the oldest stored line, satisfying source.Source
// without this package importing it.
func (r *Ring) ReadNext() ([]byte, error) {
	line, ok := r.PeekFront()
	if !ok {
		return nil, sdkerr.New("logring.ReadNext", sdkerr.CodeNoMoreData, "ring is empty")
	}
	return line, nil
}

// MarkSent removes the line returned by the last ReadNext.
func (r *Ring) MarkSent() error {
	return r.PopFront()
}

// Reset clears the ring.
func (r *Ring) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.head, r.tail, r.full = 0, 0, false
}

func (r *Ring) readUint16(pos int) uint16 {
	b0 := r.buf[pos]
	b1 := r.buf[(pos+1)%r.capacity]
	return binary.LittleEndian.Uint16([]byte{b0, b1})
}

type ringWriter struct {
	r   *Ring
	pos int
}

func (r *Ring) writeAt(pos int, fn func(w *ringWriter)) {
	fn(&ringWriter{r: r, pos: pos})
}

func (w *ringWriter) putUint16(v uint16) {
	var tmp [2]byte
	binary.LittleEndian.PutUint16(tmp[:], v)
	w.putBytes(tmp[:])
}

func (w *ringWriter) putBytes(b []byte) {
	for _, c := range b {
		w.r.buf[w.pos%w.r.capacity] = c
		w.pos++
	}
}
