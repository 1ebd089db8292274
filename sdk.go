package diagsdk

import (
	"fmt"
	"io"

	"github.com/memfault/diagsdk/internal/config"
	"github.com/memfault/diagsdk/internal/coredump"
	"github.com/memfault/diagsdk/internal/eventlog"
	"github.com/memfault/diagsdk/internal/httpchunk"
	"github.com/memfault/diagsdk/internal/interfaces"
	"github.com/memfault/diagsdk/internal/logging"
	"github.com/memfault/diagsdk/internal/logring"
	"github.com/memfault/diagsdk/internal/packetizer"
	"github.com/memfault/diagsdk/internal/reboot"
	"github.com/memfault/diagsdk/internal/sdkerr"
	"github.com/memfault/diagsdk/internal/source"
)

// Config is the SDK's boot-time configuration, loadable from TOML via
// config.Load or built programmatically via config.Default.
type Config = config.Config

// Hooks bundles every platform hook the SDK is built against
// (SPEC_FULL.md §4.1). CoredumpStorage and RebootRegion are optional:
// a platform with neither simply cannot capture or track crashes.
type Hooks struct {
	DeviceInfo interfaces.DeviceInfoSource
	Time       interfaces.TimeSource
	Rebooter   interfaces.Rebooter
	Log        interfaces.LogSink
	Regions    interfaces.RegionProvider

	CoredumpStorage interfaces.StorageDriver
	RebootRegion    []byte
	BootupReason    interfaces.BootupReasonSource
}

// Options holds additional, non-domain SDK construction parameters, in
// the shape of the teacher's own Options{Context,Logger,Observer}.
type Options struct {
	Logger   *logging.Logger
	Observer Observer
}

// SDK is the booted, wired-together instance of every subsystem:
// reboot tracking, coredump capture, event storage, the log ring, the
// packetizer, and the data source registry that feeds it.
type SDK struct {
	cfg   Config
	hooks Hooks

	reboot   *reboot.Tracker
	bootInfo reboot.BootInfo

	events     *eventlog.Store
	logs       *logring.Ring
	pktz       *packetizer.Packetizer
	sources    *source.Registry

	metrics  *Metrics
	observer Observer
	logger   *logging.Logger
}

// Boot reconciles reboot tracking, allocates event storage and the log
// ring, and wires the data source registry in fixed priority order
// (coredump, events, logs), mirroring the teacher's CreateAndServe.
func Boot(cfg Config, hooks Hooks, options *Options) (*SDK, error) {
	if hooks.DeviceInfo == nil {
		return nil, sdkerr.New("diagsdk.Boot", sdkerr.CodeInvalidInput, "Hooks.DeviceInfo is required")
	}
	if options == nil {
		options = &Options{}
	}

	logger := options.Logger
	if logger == nil {
		logger = logging.Default()
	}

	metrics := NewMetrics()
	observer := options.Observer
	if observer == nil {
		observer = NewMetricsObserver(metrics)
	}

	var bootup *reboot.BootupInfo
	if hooks.BootupReason != nil {
		br, err := hooks.BootupReason.BootupReason()
		if err != nil {
			return nil, sdkerr.Wrap("diagsdk.Boot", sdkerr.CodeInvalidInput, err)
		}
		bootup = &reboot.BootupInfo{Reason: reboot.Reason(br.Reason), RawRegister: br.RawRegister}
	}

	tracker, bootInfo := reboot.Boot(hooks.RebootRegion, bootup)
	metrics.RecordBootCrashCount(bootInfo.CrashCount)

	events := eventlog.New(cfg.EventStorageLen)
	logs := logring.New(cfg.LogRingLen)

	registry := source.New()
	if hooks.CoredumpStorage != nil {
		registry.Register(coredump.NewSource(hooks.CoredumpStorage))
	}
	registry.Register(events)
	registry.Register(logs)

	s := &SDK{
		cfg:      cfg,
		hooks:    hooks,
		reboot:   tracker,
		bootInfo: bootInfo,
		events:   events,
		logs:     logs,
		pktz:     packetizer.New(),
		sources:  registry,
		metrics:  metrics,
		observer: observer,
		logger:   logger,
	}

	logger.Info("diagsdk boot complete",
		"device_serial", cfg.DeviceSerial,
		"reboot_reason", bootInfo.Reason,
		"crash_count", bootInfo.CrashCount,
		"tracker_booted", tracker.Booted(),
	)
	return s, nil
}

// BootInfo returns the previous boot's reconciled reboot reason.
func (s *SDK) BootInfo() reboot.BootInfo {
	return s.bootInfo
}

// Metrics returns the live counters instance.
func (s *SDK) Metrics() *Metrics {
	return s.metrics
}

// MetricsSnapshot returns a point-in-time copy of the counters.
func (s *SDK) MetricsSnapshot() MetricsSnapshot {
	return s.metrics.Snapshot()
}

// MarkResetImminent records that the caller is about to perform an
// intentional reset, so the next Boot call does not count it as a
// crash. regs may be nil if the caller has no PC/LR worth recording
// (e.g. a reset requested from a normal, non-fault call site).
func (s *SDK) MarkResetImminent(reason reboot.Reason, regs *reboot.RegsAtMark) error {
	return s.reboot.MarkResetImminent(reason, regs)
}

// CoredumpAlreadySaved reports whether a coredump has been captured
// since the last Boot, so a caller can avoid re-capturing on a repeated
// fault (e.g. a watchdog firing again before the first coredump uploads).
func (s *SDK) CoredumpAlreadySaved() (bool, error) {
	return s.reboot.CoredumpSaved()
}

// CaptureCoredump runs the full capture sequence against the configured
// coredump storage, collecting regions from Hooks.Regions (if set).
// Fails with CodeNotBooted if no CoredumpStorage hook was supplied.
func (s *SDK) CaptureCoredump(crash interfaces.CrashInfo, traceReason *uint16, compress bool) error {
	if s.hooks.CoredumpStorage == nil {
		return sdkerr.New("diagsdk.CaptureCoredump", sdkerr.CodeNotBooted, "no coredump storage hook configured")
	}
	info, err := s.hooks.DeviceInfo.DeviceInfo()
	if err != nil {
		return sdkerr.Wrap("diagsdk.CaptureCoredump", sdkerr.CodeInvalidInput, err)
	}
	var regions []interfaces.Region
	if s.hooks.Regions != nil {
		regions = s.hooks.Regions.Regions(crash)
	}

	in := coredump.Inputs{
		DeviceSerial:    info.DeviceSerial,
		SoftwareType:    info.SoftwareType,
		SoftwareVersion: info.SoftwareVersion,
		HardwareVersion: info.HardwareVersion,
		RebootReason:    uint16(crash.Reason),
		TraceReason:     traceReason,
		Regions:         regions,
		Compress:        compress,
	}

	err = coredump.Capture(s.hooks.CoredumpStorage, in)
	if sdkerr.Is(err, sdkerr.CodeTruncated) {
		s.observer.ObserveCoredumpCapture(true)
		return err
	}
	if err != nil {
		s.observer.ObserveCoredumpAborted()
		return err
	}
	s.observer.ObserveCoredumpCapture(false)
	if s.reboot.Booted() {
		_ = s.reboot.MarkCoredumpSaved()
	}
	return nil
}

// AppendEvent appends an already-encoded event record (see
// internal/eventcodec) to event storage.
func (s *SDK) AppendEvent(kind uint8, payload []byte) error {
	err := s.events.Append(kind, payload)
	s.observer.ObserveEventAppend(err != nil)
	return err
}

// AppendLogLine appends a preformatted log line to the log ring.
// logring.Append writes only into the ring's fixed buffer, evicting the
// oldest lines as needed, and serializes on the ring's internal mutex,
// so it blocks while another caller holds that mutex.
func (s *SDK) AppendLogLine(line []byte) {
	s.logs.Append(line)
}

// HasPendingData reports whether any registered source, or an
// in-flight message, still has data to send.
func (s *SDK) HasPendingData() bool {
	return s.pktz.Active() || s.sources.HasMore()
}

// BeginNextMessage selects the highest-priority source with data and
// starts chunking it over channel. Fails with CodeBusy if a message is
// already in flight, or CodeNoMoreData if no source has data.
func (s *SDK) BeginNextMessage(channel uint8) error {
	if s.pktz.Active() {
		return sdkerr.New("diagsdk.BeginNextMessage", sdkerr.CodeBusy, "a message is already in flight")
	}
	payload, err := s.sources.ReadNext()
	if err != nil {
		return err
	}
	return s.pktz.Begin(channel, len(payload), s.cfg.EnableMultiCallChunk, packetizer.BytesReader(payload))
}

// NextChunk pulls the next chunk of the in-flight message into buf. On
// the final chunk it acknowledges the source that supplied the
// message, per SPEC_FULL.md §4.6 ("on EndOfChunk for the final chunk,
// the packetizer calls mark_sent()").
func (s *SDK) NextChunk(buf []byte) (n int, done bool, err error) {
	n, result, err := s.pktz.GetNext(buf)
	if err != nil {
		return n, false, err
	}
	// bit 7 of the chunk header marks a continuation chunk; see
	// internal/packetizer's header bit layout.
	continuation := n > 0 && buf[0]&0x80 != 0
	s.observer.ObserveChunkEmitted(continuation, n)
	done = result == packetizer.ResultEndOfChunk
	if done {
		if merr := s.sources.MarkSent(); merr != nil {
			return n, done, merr
		}
	}
	return n, done, nil
}

// AbortMessage cancels the in-flight message, if any. Synchronous and
// idempotent, per SPEC_FULL.md §5.
func (s *SDK) AbortMessage() {
	s.pktz.Abort()
}

// BuildUploadRequest writes the exact chunk-upload request header
// (SPEC_FULL.md §4.7) to w, followed by payload.
func (s *SDK) BuildUploadRequest(w io.Writer, payload []byte) error {
	if err := httpchunk.BuildChunkPostHeader(w, s.cfg.DeviceSerial, s.cfg.ProjectKey, s.cfg.APIHost, len(payload)); err != nil {
		return sdkerr.Wrap("diagsdk.BuildUploadRequest", sdkerr.CodeStorageError, err)
	}
	if _, err := w.Write(payload); err != nil {
		return sdkerr.Wrap("diagsdk.BuildUploadRequest", sdkerr.CodeStorageError, err)
	}
	return nil
}

// HandleUploadResponse records the response status and, for a
// coredump upload, clears local storage on 409 ("already uploaded"),
// per SPEC_FULL.md §6.
func (s *SDK) HandleUploadResponse(statusCode int) error {
	s.observer.ObserveHTTPStatus(statusCode)
	switch {
	case statusCode == 202:
		return nil
	case statusCode == 409:
		if s.hooks.CoredumpStorage != nil {
			return s.hooks.CoredumpStorage.Clear()
		}
		return nil
	default:
		return sdkerr.New("diagsdk.HandleUploadResponse", sdkerr.CodeStorageError,
			fmt.Sprintf("unexpected upload response status %d", statusCode))
	}
}

// RunCoredumpStorageSelfTest exercises the debug storage self-test
// harness (SPEC_FULL.md §4.3) against the configured coredump storage.
func (s *SDK) RunCoredumpStorageSelfTest() error {
	if s.hooks.CoredumpStorage == nil {
		return sdkerr.New("diagsdk.RunCoredumpStorageSelfTest", sdkerr.CodeNotBooted, "no coredump storage hook configured")
	}
	return coredump.RunStorageSelfTest(s.hooks.CoredumpStorage)
}
