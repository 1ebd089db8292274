package diagsdk

import (
	"bytes"
	"strings"
	"testing"

	"github.com/memfault/diagsdk/internal/config"
	"github.com/memfault/diagsdk/internal/coredump"
	"github.com/memfault/diagsdk/internal/interfaces"
	"github.com/memfault/diagsdk/internal/reboot"
)

func testHooks() Hooks {
	return Hooks{
		DeviceInfo:      NewFakeDeviceInfoSource(),
		Time:            &FakeTimeSource{},
		Rebooter:        &FakeRebooter{},
		Log:             &FakeLogSink{},
		Regions:         &FakeRegionProvider{},
		CoredumpStorage: coredump.NewRAMStorage(4096, 0),
	}
}

func testConfig() Config {
	cfg := config.Default()
	cfg.DeviceSerial = "DEV123"
	cfg.ProjectKey = "proj-key"
	cfg.EventStorageLen = 256
	cfg.LogRingLen = 256
	return cfg
}

func TestBootFreshRegionReportsUnknownReason(t *testing.T) {
	sdk, err := Boot(testConfig(), testHooks(), nil)
	if err != nil {
		t.Fatalf("Boot: %v", err)
	}
	if sdk.BootInfo().Reason != reboot.ReasonUnknown {
		t.Errorf("BootInfo().Reason = %v, want ReasonUnknown", sdk.BootInfo().Reason)
	}
}

func TestBootRequiresDeviceInfoHook(t *testing.T) {
	hooks := testHooks()
	hooks.DeviceInfo = nil
	if _, err := Boot(testConfig(), hooks, nil); err == nil {
		t.Error("expected Boot to fail without a DeviceInfo hook")
	}
}

func TestAppendEventsAndLogsDrainThroughTransport(t *testing.T) {
	sdk, err := Boot(testConfig(), testHooks(), nil)
	if err != nil {
		t.Fatalf("Boot: %v", err)
	}
	if err := sdk.AppendEvent(1, []byte("evt-a")); err != nil {
		t.Fatalf("AppendEvent: %v", err)
	}
	sdk.AppendLogLine([]byte("log line one"))

	if !sdk.HasPendingData() {
		t.Fatal("expected pending data after appending an event and a log line")
	}

	if err := sdk.BeginNextMessage(0); err != nil {
		t.Fatalf("BeginNextMessage: %v", err)
	}
	buf := make([]byte, 64)
	var reassembled []byte
	for {
		n, done, err := sdk.NextChunk(buf)
		if err != nil {
			t.Fatalf("NextChunk: %v", err)
		}
		reassembled = append(reassembled, buf[:n]...)
		if done {
			break
		}
	}
	if len(reassembled) == 0 {
		t.Error("expected a non-empty reassembled message")
	}

	snap := sdk.MetricsSnapshot()
	if snap.EventsAppended != 1 {
		t.Errorf("EventsAppended = %d, want 1", snap.EventsAppended)
	}
	if snap.ChunksInitial == 0 {
		t.Error("expected at least one initial chunk recorded")
	}

	// The event should have been acknowledged; the log line is still
	// pending since it was registered lower priority.
	if !sdk.HasPendingData() {
		t.Error("expected the log line to still be pending after draining the event")
	}
}

func TestBeginNextMessageWhileActiveReturnsBusy(t *testing.T) {
	sdk, err := Boot(testConfig(), testHooks(), nil)
	if err != nil {
		t.Fatalf("Boot: %v", err)
	}
	sdk.AppendLogLine([]byte("one"))
	if err := sdk.BeginNextMessage(0); err != nil {
		t.Fatalf("BeginNextMessage: %v", err)
	}
	if err := sdk.BeginNextMessage(0); !IsCode(err, CodeBusy) {
		t.Errorf("expected CodeBusy, got %v", err)
	}
	sdk.AbortMessage()
}

func TestCaptureCoredumpWithoutStorageHookFails(t *testing.T) {
	hooks := testHooks()
	hooks.CoredumpStorage = nil
	sdk, err := Boot(testConfig(), hooks, nil)
	if err != nil {
		t.Fatalf("Boot: %v", err)
	}
	crash := interfaces.CrashInfo{Reason: uint16(reboot.ReasonHardFault)}
	if err := sdk.CaptureCoredump(crash, nil, false); !IsCode(err, CodeNotBooted) {
		t.Errorf("expected CodeNotBooted, got %v", err)
	}
}

func TestCaptureCoredumpFeedsRegistryAndMetrics(t *testing.T) {
	hooks := testHooks()
	hooks.Regions = &FakeRegionProvider{List: []interfaces.Region{{Addr: 0x2000, Data: []byte("stackdata")}}}
	sdk, err := Boot(testConfig(), hooks, nil)
	if err != nil {
		t.Fatalf("Boot: %v", err)
	}
	crash := interfaces.CrashInfo{Reason: uint16(reboot.ReasonHardFault), PC: 0x1234, SP: 0x2000}
	if err := sdk.CaptureCoredump(crash, nil, false); err != nil {
		t.Fatalf("CaptureCoredump: %v", err)
	}

	if !sdk.HasPendingData() {
		t.Error("expected the captured coredump to be pending for upload")
	}
	snap := sdk.MetricsSnapshot()
	if snap.CoredumpsCaptured != 1 {
		t.Errorf("CoredumpsCaptured = %d, want 1", snap.CoredumpsCaptured)
	}
}

func TestBuildUploadRequestAndHandleResponse(t *testing.T) {
	sdk, err := Boot(testConfig(), testHooks(), nil)
	if err != nil {
		t.Fatalf("Boot: %v", err)
	}
	var buf bytes.Buffer
	payload := []byte("chunk-bytes")
	if err := sdk.BuildUploadRequest(&buf, payload); err != nil {
		t.Fatalf("BuildUploadRequest: %v", err)
	}
	req := buf.String()
	if !strings.HasPrefix(req, "POST /api/v0/chunks/DEV123 HTTP/1.1\r\n") {
		t.Errorf("unexpected request line: %q", req)
	}
	if !strings.Contains(req, "Memfault-Project-Key:proj-key\r\n") {
		t.Errorf("missing project key header: %q", req)
	}
	if !strings.HasSuffix(req, payload) {
		t.Errorf("expected request to end with the payload body")
	}

	if err := sdk.HandleUploadResponse(202); err != nil {
		t.Errorf("HandleUploadResponse(202): %v", err)
	}
	if err := sdk.HandleUploadResponse(500); err == nil {
		t.Error("expected HandleUploadResponse(500) to return an error")
	}
	snap := sdk.MetricsSnapshot()
	if snap.HTTP2xx != 1 || snap.HTTP5xx != 1 {
		t.Errorf("HTTP status buckets = %+v, want 2xx=1 5xx=1", snap)
	}
}

func TestHandleUploadResponseConflictClearsCoredumpStorage(t *testing.T) {
	hooks := testHooks()
	sdk, err := Boot(testConfig(), hooks, nil)
	if err != nil {
		t.Fatalf("Boot: %v", err)
	}
	if err := sdk.CaptureCoredump(interfaces.CrashInfo{Reason: uint16(reboot.ReasonHardFault)}, nil, false); err != nil {
		t.Fatalf("CaptureCoredump: %v", err)
	}
	if err := sdk.HandleUploadResponse(409); err != nil {
		t.Fatalf("HandleUploadResponse(409): %v", err)
	}
	if err := sdk.RunCoredumpStorageSelfTest(); err != nil {
		t.Fatalf("RunCoredumpStorageSelfTest after clear: %v", err)
	}
}

func TestMarkResetImminentReconciledAcrossReboot(t *testing.T) {
	region := make([]byte, 32)
	hooks := testHooks()
	hooks.RebootRegion = region
	sdk, err := Boot(testConfig(), hooks, nil)
	if err != nil {
		t.Fatalf("Boot: %v", err)
	}
	if err := sdk.MarkResetImminent(reboot.ReasonUserReset, nil); err != nil {
		t.Fatalf("MarkResetImminent: %v", err)
	}

	next, err := Boot(testConfig(), hooks, nil)
	if err != nil {
		t.Fatalf("second Boot: %v", err)
	}
	if next.BootInfo().Reason != reboot.ReasonUserReset {
		t.Errorf("BootInfo().Reason = %v, want ReasonUserReset", next.BootInfo().Reason)
	}
	if next.BootInfo().CrashCount != 0 {
		t.Errorf("CrashCount = %d, want 0 for an expected reset", next.BootInfo().CrashCount)
	}
}

func TestBootupReasonHookPassesThroughOnFreshRegion(t *testing.T) {
	hooks := testHooks()
	hooks.RebootRegion = make([]byte, 32)
	hooks.BootupReason = &FakeBootupReasonSource{Reason: uint16(reboot.ReasonSoftwareReset), RawRegister: 0x0008}

	sdk, err := Boot(testConfig(), hooks, nil)
	if err != nil {
		t.Fatalf("Boot: %v", err)
	}
	if sdk.BootInfo().Reason != reboot.ReasonSoftwareReset {
		t.Errorf("BootInfo().Reason = %v, want ReasonSoftwareReset", sdk.BootInfo().Reason)
	}
	if sdk.BootInfo().RebootRegReason != reboot.ReasonSoftwareReset {
		t.Errorf("BootInfo().RebootRegReason = %v, want ReasonSoftwareReset", sdk.BootInfo().RebootRegReason)
	}
	if sdk.BootInfo().CrashCount != 0 {
		t.Errorf("CrashCount = %d, want 0", sdk.BootInfo().CrashCount)
	}
}

func TestMarkedReasonWinsOverHardwareBootupReason(t *testing.T) {
	region := make([]byte, 32)
	hooks := testHooks()
	hooks.RebootRegion = region
	hooks.BootupReason = &FakeBootupReasonSource{Reason: uint16(reboot.ReasonPowerOnReset)}

	sdk, err := Boot(testConfig(), hooks, nil)
	if err != nil {
		t.Fatalf("Boot: %v", err)
	}
	if err := sdk.MarkResetImminent(reboot.ReasonAssert, &reboot.RegsAtMark{PC: 0x1000, LR: 0x2000}); err != nil {
		t.Fatalf("MarkResetImminent: %v", err)
	}

	hooks.BootupReason = &FakeBootupReasonSource{Reason: uint16(reboot.ReasonPinReset), RawRegister: 0x000A}
	next, err := Boot(testConfig(), hooks, nil)
	if err != nil {
		t.Fatalf("second Boot: %v", err)
	}
	if next.BootInfo().Reason != reboot.ReasonAssert {
		t.Errorf("Reason = %v, want ReasonAssert (marked reason wins)", next.BootInfo().Reason)
	}
	if next.BootInfo().RebootRegReason != reboot.ReasonPinReset {
		t.Errorf("RebootRegReason = %v, want ReasonPinReset", next.BootInfo().RebootRegReason)
	}
	if next.BootInfo().CrashCount != 1 {
		t.Errorf("CrashCount = %d, want 1", next.BootInfo().CrashCount)
	}
	if !next.BootInfo().UnexpectedReboot {
		t.Error("expected Assert to be flagged unexpected")
	}
}

func TestCaptureCoredumpMarksRebootTrackerSaved(t *testing.T) {
	region := make([]byte, 32)
	hooks := testHooks()
	hooks.RebootRegion = region
	sdk, err := Boot(testConfig(), hooks, nil)
	if err != nil {
		t.Fatalf("Boot: %v", err)
	}

	saved, err := sdk.CoredumpAlreadySaved()
	if err != nil {
		t.Fatalf("CoredumpAlreadySaved: %v", err)
	}
	if saved {
		t.Error("expected CoredumpAlreadySaved to be false before a capture")
	}

	if err := sdk.CaptureCoredump(interfaces.CrashInfo{Reason: uint16(reboot.ReasonHardFault)}, nil, false); err != nil {
		t.Fatalf("CaptureCoredump: %v", err)
	}
	saved, err = sdk.CoredumpAlreadySaved()
	if err != nil {
		t.Fatalf("CoredumpAlreadySaved: %v", err)
	}
	if !saved {
		t.Error("expected CoredumpAlreadySaved to be true after a capture")
	}
}
