// Package source implements the data source registry: a fixed-priority
// facade over the coredump, event, and log producers (plus any
// caller-registered custom data recording sources) that the packetizer
// drains from. A flat slice, never a graph — no source references
// another, so there is nothing here that could cycle.
package source

import (
	"sync"

	"github.com/memfault/diagsdk/internal/sdkerr"
)

// Source is satisfied by anything the registry can drain: the
// coredump reader, the event store, the log ring, and any
// caller-supplied custom data recording source.
type Source interface {
	HasMore() bool
	ReadNext() ([]byte, error)
	MarkSent() error
}

// Registry drains sources in registration order: earlier-registered
// sources are always exhausted before later ones are considered, so
// callers register in priority order (coredump, events, logs, then any
// custom sources).
type Registry struct {
	mu      sync.Mutex
	sources []Source
	current Source // the source that served the last ReadNext, pending MarkSent
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{}
}

// Register appends src to the end of the priority order.
func (r *Registry) Register(src Source) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources = append(r.sources, src)
}

// HasMore reports whether any registered source still has data.
func (r *Registry) HasMore() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sources {
		if s.HasMore() {
			return true
		}
	}
	return false
}

// ReadNext returns the next record from the highest-priority source
// that has one. The returned record must be acknowledged with
// MarkSent before the next ReadNext call.
func (r *Registry) ReadNext() ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current != nil {
		return nil, sdkerr.New("source.Registry.ReadNext", sdkerr.CodeBusy, "previous record not yet marked sent")
	}
	for _, s := range r.sources {
		if !s.HasMore() {
			continue
		}
		data, err := s.ReadNext()
		if err != nil {
			return nil, err
		}
		r.current = s
		return data, nil
	}
	return nil, sdkerr.New("source.Registry.ReadNext", sdkerr.CodeNoMoreData, "no source has data")
}

// MarkSent acknowledges the record returned by the last ReadNext.
func (r *Registry) MarkSent() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == nil {
		return sdkerr.New("source.Registry.MarkSent", sdkerr.CodeInvalidInput, "no pending record")
	}
	err := r.current.MarkSent()
	r.current = nil
	return err
}
