// Package eventlog implements the bounded FIFO event store: a
// fixed-capacity byte buffer holding opaque, already-encoded event
// records until the packetizer drains them.
package eventlog

import (
	"encoding/binary"
	"sync"

	"github.com/memfault/diagsdk/internal/constants"
	"github.com/memfault/diagsdk/internal/sdkerr"
)

// Store is a bounded FIFO queue of opaque records. Records are never
// evicted to make room for new ones — a Store that is full rejects new
// appends until the reader drains it via MarkSent, so producers can
// detect and count drops rather than silently lose older (often more
// diagnostically important) events to make room for newer ones.
type Store struct {
	mu       sync.Mutex
	buf      []byte // [head:tail) holds unread records; buf[tail:] is free space
	head     int
	tail     int
	capacity int
	dropped  uint64
}

// New creates a Store with the given capacity in bytes.
func New(capacity uint32) *Store {
	if capacity == 0 {
		capacity = constants.DefaultEventStorageLen
	}
	return &Store{buf: make([]byte, capacity), capacity: int(capacity)}
}

// recordHeaderLen is length(uint16) + kind(uint8).
const recordHeaderLen = 3

// Append encodes one record (kind, payload) and pushes it onto the
// queue. It fails with CodeNoMoreData if the record does not fit in the
// remaining free space; the store is left unchanged (no partial write).
func (s *Store) Append(kind uint8, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(payload) > 0xFFFF {
		return sdkerr.New("eventlog.Append", sdkerr.CodeInvalidInput, "payload exceeds 65535 bytes")
	}
	need := recordHeaderLen + len(payload)

	s.compact()
	free := s.capacity - s.tail
	if need > free {
		s.dropped++
		return sdkerr.New("eventlog.Append", sdkerr.CodeNoMoreData, "event store full")
	}

	binary.LittleEndian.PutUint16(s.buf[s.tail:], uint16(len(payload)))
	s.buf[s.tail+2] = kind
	copy(s.buf[s.tail+recordHeaderLen:], payload)
	s.tail += need
	return nil
}

// compact shifts unread bytes down to the front of buf, reclaiming the
// space freed by prior MarkSent calls. Called with mu held.
func (s *Store) compact() {
	if s.head == 0 {
		return
	}
	n := copy(s.buf, s.buf[s.head:s.tail])
	s.head = 0
	s.tail = n
}

// HasMore reports whether at least one unread record remains.
func (s *Store) HasMore() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.head < s.tail
}

// ReadNext returns the next unread record, kind byte followed by
// payload, satisfying source.Source without this package importing it.
func (s *Store) ReadNext() ([]byte, error) {
	kind, payload, ok := s.Peek()
	if !ok {
		return nil, sdkerr.New("eventlog.ReadNext", sdkerr.CodeNoMoreData, "no unread record")
	}
	out := make([]byte, 1+len(payload))
	out[0] = kind
	copy(out[1:], payload)
	return out, nil
}

// Peek returns the next unread record without removing it.
func (s *Store) Peek() (kind uint8, payload []byte, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.head >= s.tail {
		return 0, nil, false
	}
	length := binary.LittleEndian.Uint16(s.buf[s.head:])
	kind = s.buf[s.head+2]
	payload = make([]byte, length)
	copy(payload, s.buf[s.head+recordHeaderLen:s.head+recordHeaderLen+int(length)])
	return kind, payload, true
}

// MarkSent removes the record currently returned by Peek.
func (s *Store) MarkSent() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.head >= s.tail {
		return sdkerr.New("eventlog.MarkSent", sdkerr.CodeInvalidInput, "no record to mark sent")
	}
	length := binary.LittleEndian.Uint16(s.buf[s.head:])
	s.head += recordHeaderLen + int(length)
	return nil
}

// Dropped returns the cumulative count of records rejected for lack of
// space.
func (s *Store) Dropped() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// Len returns the number of bytes currently occupied by unread records.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tail - s.head
}
