// Package reboot implements reboot reason tracking: a small record kept
// in a noinit RAM region (memory that survives a reset but not a power
// cycle) that lets a device reconcile why its *previous* boot ended and
// decide whether that ending counts as a crash.
//
// The record's integrity is guarded by a CRC32 trailer (the same style
// other persisted-header formats in this ecosystem use, e.g. a U-Boot
// environment block's checksum) rather than inventing a bespoke scheme:
// a region whose CRC does not verify is treated as uninitialized.
package reboot

import (
	"encoding/binary"
	"hash/crc32"
	"sync"

	"github.com/memfault/diagsdk/internal/constants"
	"github.com/memfault/diagsdk/internal/sdkerr"
)

// Reason is a 16-bit tagged reboot reason code.
type Reason uint16

// Reason ranges, per the device's published enumeration.
const (
	ReasonUnknown        Reason = 0x0000
	ReasonUserShutdown   Reason = 0x0001
	ReasonUserReset      Reason = 0x0002
	ReasonFirmwareUpdate Reason = 0x0003
	ReasonLowPower       Reason = 0x0004
	ReasonDebuggerHalted Reason = 0x0005
	ReasonButtonReset    Reason = 0x0006
	ReasonPowerOnReset   Reason = 0x0007
	ReasonSoftwareReset  Reason = 0x0008
	ReasonPinReset       Reason = 0x000A
	ReasonSelfTest       Reason = 0x000B

	ReasonCustomBase Reason = 0x1000
	ReasonCustomMax  Reason = 0x1100

	ReasonUnknownError       Reason = 0x8000
	ReasonAssert             Reason = 0x8001
	ReasonWatchdogDeprecated Reason = 0x8002
	ReasonBrownOutReset      Reason = 0x8003
	ReasonNmi                Reason = 0x8004
	ReasonHardwareWatchdog   Reason = 0x8005
	ReasonSoftwareWatchdog   Reason = 0x8006
	ReasonClockFailure       Reason = 0x8007
	ReasonKernelPanic        Reason = 0x8008
	ReasonFirmwareUpdateError Reason = 0x8009
	ReasonOutOfMemory        Reason = 0x800A
	ReasonStackOverflow      Reason = 0x800B

	ReasonBusFault          Reason = 0x9100
	ReasonMemFault          Reason = 0x9200
	ReasonUsageFault        Reason = 0x9300
	ReasonHardFault         Reason = 0x9400
	ReasonLockup            Reason = 0x9401
	ReasonSecurityViolation Reason = 0x9402
	ReasonParityError       Reason = 0x9403
	ReasonTemperature       Reason = 0x9404
	ReasonHardware          Reason = 0x9405

	ReasonCustomUnexpectedBase Reason = 0xA000
	ReasonCustomUnexpectedMax  Reason = 0xA100
)

// Expected reports whether a reason represents a normal, intentional
// reboot rather than a crash. ReasonUnknown is deliberately NOT expected:
// an effective reason of Unknown means nothing reconciled it, which the
// crash-count rule treats the same as an unexpected crash.
func (r Reason) Expected() bool {
	switch {
	case r == ReasonUserShutdown, r == ReasonUserReset,
		r == ReasonFirmwareUpdate, r == ReasonLowPower, r == ReasonDebuggerHalted,
		r == ReasonButtonReset, r == ReasonPowerOnReset, r == ReasonSoftwareReset,
		r == ReasonPinReset, r == ReasonSelfTest:
		return true
	case r >= ReasonCustomBase && r < ReasonCustomMax:
		return true
	default:
		return false
	}
}

// regionLen is the on-wire size of the tracking record: magic(4) +
// version(1) + markedReason(2) + bootupReason(2) + rawRegister(4) +
// pc(4) + lr(4) + coredumpSaved(1) + crashCount(4) + crc32(4).
const regionLen = 4 + 1 + 2 + 2 + 4 + 4 + 4 + 1 + 4 + 4

// BootupInfo carries the hardware reset-cause register value a platform
// read at startup, before any software reconciliation. RawRegister is
// the platform-specific, unparsed register contents retained alongside
// Reason for diagnostics.
type BootupInfo struct {
	Reason      Reason
	RawRegister uint32
}

// RegsAtMark is the small set of registers worth recording at the
// moment a self-triggered reset becomes imminent, mirroring what a fault
// handler captures: just enough to locate the call site.
type RegsAtMark struct {
	PC uint32
	LR uint32
}

// BootInfo is returned by Boot and RebootReason, describing the previous
// boot's reconciled outcome.
type BootInfo struct {
	// Reason is the effective reason: the marked reason if one was
	// recorded before the reset, else the hardware bootup reason.
	Reason Reason
	// RebootRegReason is the raw hardware reset-cause register reason
	// from the boot that just completed, independent of whether a
	// reason was also marked in software.
	RebootRegReason Reason
	CrashCount      uint32
	UnexpectedReboot bool
	PC               uint32
	LR               uint32
}

// ResetInfo is returned by ReadResetInfo: the reason and registers
// recorded by the first MarkResetImminent call since Boot, if any.
type ResetInfo struct {
	Reason Reason
	PC     uint32
	LR     uint32
}

// Tracker owns a noinit region and reconciles it on Boot.
type Tracker struct {
	mu     sync.Mutex
	region []byte // nil in "bad region" mode: every call becomes a no-op
	booted bool
}

// Boot reconciles the region left behind by the previous boot against
// bootup (the hardware reset-cause register read at startup, or nil if
// the platform doesn't expose one), then reinitializes the region to
// track the upcoming (current) boot.
//
// Reconciliation (SPEC_FULL.md §4.2):
//  1. A region that fails to decode (bad CRC, bad magic, too small) is
//     treated as freshly initialized: the effective reason is bootup's
//     reason, or ReasonUnknown if bootup is nil. This branch never
//     increments the crash count — there is no prior state to blame.
//  2. Otherwise, if a reason was marked before the reset, it is the
//     effective reason; the hardware bootup reason (if any) is recorded
//     separately as RebootRegReason rather than overwritten.
//  3. Otherwise the hardware bootup reason is effective.
//  4. The crash count increments by one iff the effective reason is
//     Unknown or falls in an unexpected range — evaluated exactly once,
//     for this Boot call.
//
// Passing a nil or undersized region puts the tracker into "bad region"
// mode: every subsequent call becomes a no-op and Booted reports false,
// matching how the underlying port behaves when a platform has no
// noinit memory available.
func Boot(region []byte, bootup *BootupInfo) (*Tracker, BootInfo) {
	t := &Tracker{}
	var bootupReason Reason
	var rawRegister uint32
	if bootup != nil {
		bootupReason = bootup.Reason
		rawRegister = bootup.RawRegister
	}

	if len(region) < regionLen {
		return t, BootInfo{Reason: bootupReason, RebootRegReason: bootupReason}
	}
	t.region = region
	t.booted = true

	prev, ok := t.decode()
	var info BootInfo
	if !ok {
		info = BootInfo{Reason: bootupReason, RebootRegReason: bootupReason}
	} else {
		info = BootInfo{
			RebootRegReason: bootupReason,
			CrashCount:      prev.CrashCount,
			PC:              prev.PC,
			LR:              prev.LR,
		}
		if prev.MarkedReason != ReasonUnknown {
			info.Reason = prev.MarkedReason
		} else {
			info.Reason = bootupReason
		}
		if info.Reason == ReasonUnknown || !info.Reason.Expected() {
			info.CrashCount++
			info.UnexpectedReboot = true
		}
	}

	t.encode(record{
		MarkedReason: ReasonUnknown,
		BootupReason: bootupReason,
		RawRegister:  rawRegister,
		CrashCount:   info.CrashCount,
	})
	return t, info
}

// Booted reports whether the tracker has a usable region.
func (t *Tracker) Booted() bool {
	return t.booted
}

type record struct {
	MarkedReason  Reason
	BootupReason  Reason
	RawRegister   uint32
	PC            uint32
	LR            uint32
	CoredumpSaved bool
	CrashCount    uint32
}

func (t *Tracker) decode() (record, bool) {
	buf := t.region
	if binary.LittleEndian.Uint32(buf[0:4]) != constants.RebootRegionMagic {
		return record{}, false
	}
	if buf[4] != constants.RebootRegionVersion {
		return record{}, false
	}
	body := buf[:regionLen-4]
	gotCRC := binary.LittleEndian.Uint32(buf[regionLen-4 : regionLen])
	if crc32.ChecksumIEEE(body) != gotCRC {
		return record{}, false
	}
	r := record{
		MarkedReason: Reason(binary.LittleEndian.Uint16(buf[5:7])),
		BootupReason: Reason(binary.LittleEndian.Uint16(buf[7:9])),
		RawRegister:  binary.LittleEndian.Uint32(buf[9:13]),
		PC:           binary.LittleEndian.Uint32(buf[13:17]),
		LR:           binary.LittleEndian.Uint32(buf[17:21]),
	}
	r.CoredumpSaved = buf[21] != 0
	r.CrashCount = binary.LittleEndian.Uint32(buf[22:26])
	return r, true
}

func (t *Tracker) encode(r record) {
	buf := t.region
	binary.LittleEndian.PutUint32(buf[0:4], constants.RebootRegionMagic)
	buf[4] = constants.RebootRegionVersion
	binary.LittleEndian.PutUint16(buf[5:7], uint16(r.MarkedReason))
	binary.LittleEndian.PutUint16(buf[7:9], uint16(r.BootupReason))
	binary.LittleEndian.PutUint32(buf[9:13], r.RawRegister)
	binary.LittleEndian.PutUint32(buf[13:17], r.PC)
	binary.LittleEndian.PutUint32(buf[17:21], r.LR)
	if r.CoredumpSaved {
		buf[21] = 1
	} else {
		buf[21] = 0
	}
	binary.LittleEndian.PutUint32(buf[22:26], r.CrashCount)
	body := buf[:regionLen-4]
	crc := crc32.ChecksumIEEE(body)
	binary.LittleEndian.PutUint32(buf[regionLen-4:regionLen], crc)
}

// MarkResetImminent records that the current boot is about to perform an
// intentional reset for the given reason, so the next Boot call reports
// it as the effective reason rather than crediting it toward the crash
// count. If a reason has already been marked since the last Boot, this
// call is a no-op: the first reason marked wins.
func (t *Tracker) MarkResetImminent(reason Reason, regs *RegsAtMark) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.booted {
		return sdkerr.New("reboot.MarkResetImminent", sdkerr.CodeNotBooted, "no usable tracking region")
	}
	rec, ok := t.decode()
	if !ok {
		rec = record{}
	}
	if rec.MarkedReason != ReasonUnknown {
		return nil
	}
	rec.MarkedReason = reason
	if regs != nil {
		rec.PC = regs.PC
		rec.LR = regs.LR
	}
	t.encode(rec)
	return nil
}

// ReadResetInfo reports the reason and registers recorded by the first
// MarkResetImminent call since Boot, without clearing them. The
// second return value is false if no reason is currently marked.
func (t *Tracker) ReadResetInfo() (ResetInfo, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.booted {
		return ResetInfo{}, false
	}
	rec, ok := t.decode()
	if !ok || rec.MarkedReason == ReasonUnknown {
		return ResetInfo{}, false
	}
	return ResetInfo{Reason: rec.MarkedReason, PC: rec.PC, LR: rec.LR}, true
}

// ClearResetInfo zeroes the marked reason and its registers, leaving the
// crash count untouched.
func (t *Tracker) ClearResetInfo() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.booted {
		return sdkerr.New("reboot.ClearResetInfo", sdkerr.CodeNotBooted, "no usable tracking region")
	}
	rec, ok := t.decode()
	if !ok {
		rec = record{}
	}
	rec.MarkedReason = ReasonUnknown
	rec.PC = 0
	rec.LR = 0
	t.encode(rec)
	return nil
}

// RebootReason returns the same reconciled BootInfo Boot returned,
// recomputed from the region's current contents: the effective reason,
// the hardware bootup reason, the crash count, and whether the effective
// reason was unexpected.
func (t *Tracker) RebootReason() (BootInfo, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.booted {
		return BootInfo{}, sdkerr.New("reboot.RebootReason", sdkerr.CodeNotBooted, "no usable tracking region")
	}
	rec, ok := t.decode()
	if !ok {
		return BootInfo{}, nil
	}
	info := BootInfo{
		RebootRegReason: rec.BootupReason,
		CrashCount:      rec.CrashCount,
		PC:              rec.PC,
		LR:              rec.LR,
	}
	if rec.MarkedReason != ReasonUnknown {
		info.Reason = rec.MarkedReason
	} else {
		info.Reason = rec.BootupReason
	}
	info.UnexpectedReboot = info.Reason == ReasonUnknown || !info.Reason.Expected()
	return info, nil
}

// GetUnexpectedRebootOccurred reports whether the effective reason
// recorded for the current boot falls outside the expected range.
func (t *Tracker) GetUnexpectedRebootOccurred() (bool, error) {
	info, err := t.RebootReason()
	if err != nil {
		return false, err
	}
	return info.UnexpectedReboot, nil
}

// MarkCoredumpSaved records that a coredump was written for the current
// crash, so duplicate capture attempts (e.g. a watchdog firing again
// before upload) can be detected by a platform integration.
func (t *Tracker) MarkCoredumpSaved() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.booted {
		return sdkerr.New("reboot.MarkCoredumpSaved", sdkerr.CodeNotBooted, "no usable tracking region")
	}
	rec, ok := t.decode()
	if !ok {
		rec = record{}
	}
	rec.CoredumpSaved = true
	t.encode(rec)
	return nil
}

// CoredumpSaved reports whether MarkCoredumpSaved has been called since
// the last Boot.
func (t *Tracker) CoredumpSaved() (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.booted {
		return false, sdkerr.New("reboot.CoredumpSaved", sdkerr.CodeNotBooted, "no usable tracking region")
	}
	rec, ok := t.decode()
	if !ok {
		return false, nil
	}
	return rec.CoredumpSaved, nil
}

// GetCrashCount returns the cumulative count of unexpected reboots.
func (t *Tracker) GetCrashCount() (uint32, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.booted {
		return 0, sdkerr.New("reboot.GetCrashCount", sdkerr.CodeNotBooted, "no usable tracking region")
	}
	rec, ok := t.decode()
	if !ok {
		return 0, nil
	}
	return rec.CrashCount, nil
}

// ResetCrashCount zeroes the cumulative crash count.
func (t *Tracker) ResetCrashCount() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.booted {
		return sdkerr.New("reboot.ResetCrashCount", sdkerr.CodeNotBooted, "no usable tracking region")
	}
	rec, ok := t.decode()
	if !ok {
		rec = record{}
	}
	rec.CrashCount = 0
	t.encode(rec)
	return nil
}
