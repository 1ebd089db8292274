package diagsdk

import (
	"sync"

	"github.com/google/uuid"

	"github.com/memfault/diagsdk/internal/interfaces"
)

// FakeDeviceInfoSource is a DeviceInfoSource for tests. DeviceInfo
// returns the fields exactly as set; NewFakeDeviceInfoSource fills
// Serial with a random value so parallel tests never collide on a
// hardcoded device identity.
type FakeDeviceInfoSource struct {
	Serial          string
	SoftwareType    string
	SoftwareVersion string
	HardwareVersion string
}

// NewFakeDeviceInfoSource returns a FakeDeviceInfoSource with a random
// serial and otherwise reasonable test defaults.
func NewFakeDeviceInfoSource() *FakeDeviceInfoSource {
	return &FakeDeviceInfoSource{
		Serial:          uuid.NewString(),
		SoftwareType:    "test-app",
		SoftwareVersion: "0.0.0-test",
		HardwareVersion: "test-rig",
	}
}

func (f *FakeDeviceInfoSource) DeviceInfo() (interfaces.DeviceInfo, error) {
	return interfaces.DeviceInfo{
		DeviceSerial:    f.Serial,
		SoftwareType:    f.SoftwareType,
		SoftwareVersion: f.SoftwareVersion,
		HardwareVersion: f.HardwareVersion,
	}, nil
}

var _ interfaces.DeviceInfoSource = (*FakeDeviceInfoSource)(nil)

// FakeTimeSource is a TimeSource whose clock only advances when told to,
// for deterministic tests of anything timing-sensitive.
type FakeTimeSource struct {
	mu     sync.Mutex
	millis uint64
}

func (f *FakeTimeSource) SinceBootMillis() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.millis
}

// Advance moves the fake clock forward by delta milliseconds.
func (f *FakeTimeSource) Advance(delta uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.millis += delta
}

var _ interfaces.TimeSource = (*FakeTimeSource)(nil)

// FakeRebooter records reset requests instead of actually resetting,
// since a test process obviously cannot reboot.
type FakeRebooter struct {
	mu          sync.Mutex
	RebootCount int
}

func (f *FakeRebooter) Reboot() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.RebootCount++
}

func (f *FakeRebooter) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.RebootCount
}

var _ interfaces.Rebooter = (*FakeRebooter)(nil)

// FakeLogSink collects every record passed to it for later assertions.
type FakeLogSink struct {
	mu      sync.Mutex
	Records []FakeLogRecord
}

// FakeLogRecord is one entry captured by FakeLogSink.
type FakeLogRecord struct {
	Level interfaces.LogLevel
	Msg   string
}

func (f *FakeLogSink) Log(level interfaces.LogLevel, msg string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Records = append(f.Records, FakeLogRecord{Level: level, Msg: msg})
}

func (f *FakeLogSink) All() []FakeLogRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]FakeLogRecord, len(f.Records))
	copy(out, f.Records)
	return out
}

var _ interfaces.LogSink = (*FakeLogSink)(nil)

// FakeCriticalSection implements CriticalSection with a plain mutex,
// the way the default test fake is expected to per SPEC_FULL.md §5;
// production platform code supplies a non-reentrant spinlock or RTOS
// mutex instead.
type FakeCriticalSection struct {
	mu sync.Mutex
}

func (f *FakeCriticalSection) Lock()   { f.mu.Lock() }
func (f *FakeCriticalSection) Unlock() { f.mu.Unlock() }

var _ interfaces.CriticalSection = (*FakeCriticalSection)(nil)

// FakeRegionProvider returns a fixed set of memory regions regardless
// of the CrashInfo passed in, for tests that don't care about
// crash-specific region selection.
type FakeRegionProvider struct {
	List []interfaces.Region
}

func (f *FakeRegionProvider) Regions(interfaces.CrashInfo) []interfaces.Region {
	return f.List
}

var _ interfaces.RegionProvider = (*FakeRegionProvider)(nil)

// FakeBootupReasonSource returns a fixed hardware reset-cause register
// reading, for tests that exercise reboot reconciliation against a
// hardware bootup reason.
type FakeBootupReasonSource struct {
	Reason      uint16
	RawRegister uint32
}

func (f *FakeBootupReasonSource) BootupReason() (interfaces.BootupReason, error) {
	return interfaces.BootupReason{Reason: f.Reason, RawRegister: f.RawRegister}, nil
}

var _ interfaces.BootupReasonSource = (*FakeBootupReasonSource)(nil)
