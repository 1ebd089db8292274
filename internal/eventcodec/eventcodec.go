// Package eventcodec implements the CBOR event envelope (spec.md §6):
// an integer-keyed map carrying device info, an event kind tag, and a
// kind-specific payload sub-map. The packetizer and event storage never
// look inside it — they move opaque bytes — so only the producers here
// and this package's decoder (used by this package's tests) understand
// the shape.
package eventcodec

import (
	"github.com/fxamacker/cbor/v2"

	"github.com/memfault/diagsdk/internal/interfaces"
	"github.com/memfault/diagsdk/internal/sdkerr"
)

// Kind identifies the shape of an Envelope's Payload.
type Kind uint8

const (
	KindReboot Kind = 1 + iota
	KindTrace
	KindHeartbeat
	KindLogCollection
)

// Envelope is the outer map every event is wrapped in before being
// appended to event storage.
type Envelope struct {
	DeviceSerial    string          `cbor:"1,keyasint"`
	SoftwareType    string          `cbor:"2,keyasint"`
	SoftwareVersion string          `cbor:"3,keyasint"`
	HardwareVersion string          `cbor:"4,keyasint,omitempty"`
	Kind            Kind            `cbor:"5,keyasint"`
	Payload         cbor.RawMessage `cbor:"6,keyasint"`
}

// RebootPayload mirrors the reboot-tracking reconciliation outcome.
type RebootPayload struct {
	Reason           uint16 `cbor:"1,keyasint"`
	CrashCount       uint32 `cbor:"2,keyasint"`
	UnexpectedReboot bool   `cbor:"3,keyasint"`
}

// TraceEvent is a single-point observation capturable from ISR context
// (SPEC_FULL.md §4.9): a reason code plus the program counter and link
// register at the point of capture, with an optional snapshot of
// recently collected log lines.
type TraceEvent struct {
	Reason   uint16   `cbor:"1,keyasint"`
	PC       uint32   `cbor:"2,keyasint"`
	LR       uint32   `cbor:"3,keyasint"`
	LogLines [][]byte `cbor:"4,keyasint,omitempty"`
}

// Heartbeat is a periodic event carrying a fixed metric set. The timer
// that would trigger one on a real device is out of scope; only the
// event shape and serialization live here.
type Heartbeat struct {
	Metrics map[string]int64 `cbor:"1,keyasint"`
}

// LogCollectionPayload carries a batch of log lines uploaded as an
// event rather than read back out of the log ring individually.
type LogCollectionPayload struct {
	Lines [][]byte `cbor:"1,keyasint"`
}

func wrap(info interfaces.DeviceInfo, kind Kind, payload interface{}) ([]byte, error) {
	raw, err := cbor.Marshal(payload)
	if err != nil {
		return nil, sdkerr.Wrap("eventcodec.wrap", sdkerr.CodeInvalidInput, err)
	}
	env := Envelope{
		DeviceSerial:    info.DeviceSerial,
		SoftwareType:    info.SoftwareType,
		SoftwareVersion: info.SoftwareVersion,
		HardwareVersion: info.HardwareVersion,
		Kind:            kind,
		Payload:         raw,
	}
	out, err := cbor.Marshal(env)
	if err != nil {
		return nil, sdkerr.Wrap("eventcodec.wrap", sdkerr.CodeInvalidInput, err)
	}
	return out, nil
}

// EncodeReboot wraps a reboot reconciliation outcome as an Event.
func EncodeReboot(info interfaces.DeviceInfo, p RebootPayload) ([]byte, error) {
	return wrap(info, KindReboot, p)
}

// EncodeTrace wraps a TraceEvent as an Event.
func EncodeTrace(info interfaces.DeviceInfo, ev TraceEvent) ([]byte, error) {
	return wrap(info, KindTrace, ev)
}

// EncodeHeartbeat wraps a Heartbeat as an Event.
func EncodeHeartbeat(info interfaces.DeviceInfo, hb Heartbeat) ([]byte, error) {
	return wrap(info, KindHeartbeat, hb)
}

// EncodeLogCollection wraps a batch of log lines as an Event.
func EncodeLogCollection(info interfaces.DeviceInfo, lines [][]byte) ([]byte, error) {
	return wrap(info, KindLogCollection, LogCollectionPayload{Lines: lines})
}

// Decode parses the outer Envelope without interpreting Payload.
func Decode(data []byte) (Envelope, error) {
	var env Envelope
	if err := cbor.Unmarshal(data, &env); err != nil {
		return Envelope{}, sdkerr.Wrap("eventcodec.Decode", sdkerr.CodeIntegrityError, err)
	}
	return env, nil
}

// DecodeReboot interprets env.Payload as a RebootPayload. It returns
// CodeInvalidInput if env.Kind is not KindReboot.
func (env Envelope) DecodeReboot() (RebootPayload, error) {
	var p RebootPayload
	if env.Kind != KindReboot {
		return p, sdkerr.New("eventcodec.DecodeReboot", sdkerr.CodeInvalidInput, "envelope is not a reboot event")
	}
	if err := cbor.Unmarshal(env.Payload, &p); err != nil {
		return p, sdkerr.Wrap("eventcodec.DecodeReboot", sdkerr.CodeIntegrityError, err)
	}
	return p, nil
}

// DecodeTrace interprets env.Payload as a TraceEvent.
func (env Envelope) DecodeTrace() (TraceEvent, error) {
	var ev TraceEvent
	if env.Kind != KindTrace {
		return ev, sdkerr.New("eventcodec.DecodeTrace", sdkerr.CodeInvalidInput, "envelope is not a trace event")
	}
	if err := cbor.Unmarshal(env.Payload, &ev); err != nil {
		return ev, sdkerr.Wrap("eventcodec.DecodeTrace", sdkerr.CodeIntegrityError, err)
	}
	return ev, nil
}

// DecodeHeartbeat interprets env.Payload as a Heartbeat.
func (env Envelope) DecodeHeartbeat() (Heartbeat, error) {
	var hb Heartbeat
	if env.Kind != KindHeartbeat {
		return hb, sdkerr.New("eventcodec.DecodeHeartbeat", sdkerr.CodeInvalidInput, "envelope is not a heartbeat event")
	}
	if err := cbor.Unmarshal(env.Payload, &hb); err != nil {
		return hb, sdkerr.Wrap("eventcodec.DecodeHeartbeat", sdkerr.CodeIntegrityError, err)
	}
	return hb, nil
}

// DecodeLogCollection interprets env.Payload as a LogCollectionPayload.
func (env Envelope) DecodeLogCollection() (LogCollectionPayload, error) {
	var p LogCollectionPayload
	if env.Kind != KindLogCollection {
		return p, sdkerr.New("eventcodec.DecodeLogCollection", sdkerr.CodeInvalidInput, "envelope is not a log-collection event")
	}
	if err := cbor.Unmarshal(env.Payload, &p); err != nil {
		return p, sdkerr.Wrap("eventcodec.DecodeLogCollection", sdkerr.CodeIntegrityError, err)
	}
	return p, nil
}
