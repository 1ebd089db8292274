// Package diagsdk is an embedded observability SDK for resource
// constrained devices: reboot reason tracking across a noinit RAM
// region, coredump capture into bounded on-device storage, a FIFO
// event store and an overwrite-oldest log ring, and a chunked
// transport for getting all of it off the device over an unreliable
// link.
//
// A platform integration supplies a set of Hooks (device identity, a
// millisecond clock, a reset call, a log sink, and optionally coredump
// storage and a noinit region) to Boot, which wires every subsystem
// together and returns an *SDK. From there, AppendEvent and
// AppendLogLine feed local storage, CaptureCoredump runs on a fatal
// error path, and BeginNextMessage/NextChunk/BuildUploadRequest drain
// whatever is pending over the configured transport.
//
// See SPEC_FULL.md in the repository root for the full specification
// this package implements.
package diagsdk
