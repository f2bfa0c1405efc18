// Copyright 2020 Sebastian Lehmann. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

package psoc6flash

import (
	"fmt"
	"time"
)

// Options configures a Programmer, following the functional-options
// pattern used throughout the pack's closest domain cousin
// (moffa90-go-cyacd's bootloader.Option).
type Options struct {
	sink               Sink
	acquireTimeout     time.Duration
	verifyAfterProgram bool
	verifyByChecksum   bool
	swjClockHz         uint32
}

type Option func(*Options)

func WithSink(sink Sink) Option {
	return func(o *Options) { o.sink = sink }
}

func WithAcquireTimeout(d time.Duration) Option {
	return func(o *Options) { o.acquireTimeout = d }
}

// WithSWJClockHz sets the SWCLK/TCK frequency requested from the probe
// via SWJ_Clock during Acquire's bring-up sequence.
func WithSWJClockHz(hz uint32) Option {
	return func(o *Options) { o.swjClockHz = hz }
}

func WithVerifyAfterProgram(enabled bool) Option {
	return func(o *Options) { o.verifyAfterProgram = enabled }
}

// WithChecksumVerify opts into the faster ChecksumRow SROM call
// instead of a full block read-back during Verify.
func WithChecksumVerify(enabled bool) Option {
	return func(o *Options) { o.verifyByChecksum = enabled }
}

const defaultAcquireTimeout = 1500 * time.Millisecond
const defaultSWJClockHz = 1_000_000

func defaultOptions() Options {
	return Options{sink: nopSink{}, acquireTimeout: defaultAcquireTimeout, swjClockHz: defaultSWJClockHz}
}

// DeviceInfo is the decoded reply of the SiliconID SROM call.
type DeviceInfo struct {
	FamilyID   uint16
	SiliconID  uint16
	RevisionID byte
	Protection ProtectionState
}

// Programmer is the Programmer API exposed to a UI collaborator:
// scan()/open(info)/acquire/get_info/erase/program/verify/close.
type Programmer struct {
	session *TargetSession
	opts    Options
}

// Open opens the probe described by info and returns a Programmer
// bound to it. The probe is not yet acquired; call Acquire before
// issuing erase/program/verify operations.
func Open(info ProbeInfo, options ...Option) (*Programmer, error) {
	t, err := openTransport(info)
	if err != nil {
		return nil, err
	}
	opts := defaultOptions()
	for _, o := range options {
		o(&opts)
	}
	return &Programmer{session: newSession(t, opts.swjClockHz), opts: opts}, nil
}

func (p *Programmer) log(format string, args ...interface{}) {
	p.opts.sink.Log(fmt.Sprintf(format, args...))
}

// Close releases the probe handle.
func (p *Programmer) Close() error {
	return p.session.close()
}

// Acquire runs the acquisition state machine: reset assert/release, SWJ
// bring-up + DP IDCODE polling against a deadline, debug/system power
// up, AP open, and Test Mode entry. Only AcquireReset is implemented;
// AcquirePower is recognised but returns AcquireModeUnsupported.
func (p *Programmer) Acquire(mode AcquireMode, ap ApSelector, cancel func() bool) error {
	if mode != AcquireReset {
		return newAcquireError(AcquireModeUnsupported, "acquire mode %v not implemented", mode)
	}

	s := p.session
	s.acquireState = StateIdle

	if err := p.dapConnectAndConfigure(); err != nil {
		return err
	}

	// 1. Pull SRST low and hold >= 1ms.
	if _, err := s.dap.swjPins(0x00, 0x80, 0); err != nil {
		s.acquireState = StateIdle
		return err
	}
	time.Sleep(1 * time.Millisecond)
	s.acquireState = StateResetHeld

	// 2/3. Release SRST; retry SWJ bring-up + IDCODE read until deadline.
	deadline := time.Now().Add(p.opts.acquireTimeout)
	if _, err := s.dap.swjPins(0x80, 0x80, 0); err != nil {
		s.acquireState = StateIdle
		return err
	}
	s.acquireState = StateWaitTestMode

	var idcode uint32
	acquired := false
	for time.Now().Before(deadline) {
		if cancel != nil && cancel() {
			return p.abortToIdle()
		}
		if err := s.swd.bringUp(); err != nil {
			continue
		}
		id, err := s.swd.dpInit()
		if err != nil {
			continue
		}
		idcode = id
		acquired = true
		break
	}
	if !acquired {
		s.acquireState = StateIdle
		return newAcquireError(NoSwdResponse, "no SWD response within %s (last idcode 0x%08x)", p.opts.acquireTimeout, idcode)
	}
	p.log("acquired SWD link, idcode 0x%08x", idcode)

	// 5. Open the requested AP; confirm it's an AHB-AP.
	if err := s.swd.openAP(ap); err != nil {
		s.acquireState = StateIdle
		return newAcquireError(NoSwdResponse, "opening AP %v: %v", ap, err)
	}
	s.selectedAP = ap
	s.acquireState = StateAPOpened

	// 6. Enter test mode and poll for bit31.
	if err := s.swd.writeMem(ap, s.family.TestCtrlAddr, encodeWord(0x80000000)); err != nil {
		s.acquireState = StateIdle
		return err
	}
	testDeadline := time.Now().Add(500 * time.Millisecond)
	for time.Now().Before(testDeadline) {
		raw, err := s.swd.readMem(ap, s.family.TestCtrlAddr, 4)
		if err == nil && le_to_h_u32(raw)&0x80000000 != 0 {
			s.acquireState = StateReady
			p.log("target ready on AP %v", ap)
			return nil
		}
	}
	s.acquireState = StateIdle
	return newAcquireError(TestModeNotEntered, "test mode register never reported bit31 set")
}

func (p *Programmer) dapConnectAndConfigure() error {
	if err := p.session.dap.connect(ConnectSWD); err != nil {
		return err
	}
	if err := p.session.dap.swjClock(p.session.swjClockHz); err != nil {
		return err
	}
	if err := p.session.dap.transferConfigure(0, dapWaitRetries, 0); err != nil {
		return err
	}
	return p.session.dap.swdConfigure(0)
}

// abortToIdle runs WriteAbort, clears DP sticky bits, releases SRST
// and transitions to IDLE, per the cooperative-cancel contract.
func (p *Programmer) abortToIdle() error {
	_ = p.session.dap.writeAbort(0, 0x1e)
	_ = p.session.swd.writeDP(dpCTRLSTAT, ctrlStatStickyClear)
	_, _ = p.session.dap.swjPins(0x80, 0x80, 0)
	p.session.acquireState = StateIdle
	return &CancelledError{}
}

// GetInfo invokes the SiliconID SROM call and returns the decoded
// device identity. Requires the session to be READY.
func (p *Programmer) GetInfo(cancel func() bool) (DeviceInfo, error) {
	if p.session.acquireState != StateReady {
		return DeviceInfo{}, newAcquireError(NoSwdResponse, "session not acquired")
	}
	fam, sil, rev, prot, err := p.session.siliconID(cancel)
	if err != nil {
		return DeviceInfo{}, err
	}
	return DeviceInfo{FamilyID: fam, SiliconID: sil, RevisionID: rev, Protection: prot}, nil
}

// Erase aligns [start,end) outward to sector boundaries and invokes
// EraseSector once per sector. Non-goal: this module never
// blocks the caller from erasing a SECURE/DEAD part; leaves that
// refusal decision to the caller.
func (p *Programmer) Erase(start, end uint32, cancel func() bool) error {
	if p.session.acquireState != StateReady {
		return newAcquireError(NoSwdResponse, "session not acquired")
	}
	sector := p.session.family.SectorSize
	alignedStart := start &^ (sector - 1)
	alignedEnd := (end + sector - 1) &^ (sector - 1)

	total := (alignedEnd - alignedStart) / sector
	p.log("erasing [0x%08x,0x%08x) as %d sector(s)", alignedStart, alignedEnd, total)
	var done uint32
	for addr := alignedStart; addr < alignedEnd; addr += sector {
		if cancel != nil && cancel() {
			return p.abortToIdle()
		}
		params := []uint32{sromOpcodeWord(sromOpEraseSector, 0), addr}
		if _, err := p.session.sromCall(params, cancel); err != nil {
			return err
		}
		done++
		reportProgress(p.opts.sink, done, total)
	}
	return nil
}

// Program writes data starting at start, row by row: align to rowSize,
// pad the trailing partial row with 0xFF,
// burst-write each row to the SRAM scratch buffer, then ProgramRow.
func (p *Programmer) Program(data []byte, start uint32, cancel func() bool) error {
	if p.session.acquireState != StateReady {
		return newAcquireError(NoSwdResponse, "session not acquired")
	}
	rowSize := p.session.family.RowSize
	padded, rowStart := padToRows(data, start, rowSize)

	totalBytes := uint32(len(padded))
	var doneBytes uint32
	numRows := totalBytes / rowSize
	p.log("programming %d byte(s) at 0x%08x as %d row(s)", len(data), start, numRows)

	for i := uint32(0); i < numRows; i++ {
		if cancel != nil && cancel() {
			return p.abortToIdle()
		}
		row := padded[i*rowSize : (i+1)*rowSize]
		rowAddr := rowStart + i*rowSize

		if err := p.session.swd.writeMem(p.session.selectedAP, p.session.family.SromDataAddr, row); err != nil {
			return err
		}

		params := []uint32{sromOpcodeWord(sromOpProgramRow, 0), rowAddr, p.session.family.SromDataAddr, rowSize}
		if _, err := p.session.sromCall(params, cancel); err != nil {
			return err
		}

		doneBytes += rowSize
		reportProgress(p.opts.sink, doneBytes, totalBytes)
	}

	if p.opts.verifyAfterProgram {
		return p.Verify(data, start, cancel)
	}
	return nil
}

// Verify reads back [start, start+len(data)) row by row and compares
// against data, returning VerifyMismatchError on the first mismatch.
// If WithChecksumVerify was set, it instead compares the
// SROM-computed row checksum, which is faster but only detects that
// *some* byte in the row differs, not which one.
func (p *Programmer) Verify(data []byte, start uint32, cancel func() bool) error {
	if p.session.acquireState != StateReady {
		return newAcquireError(NoSwdResponse, "session not acquired")
	}
	rowSize := p.session.family.RowSize
	padded, rowStart := padToRows(data, start, rowSize)
	numRows := uint32(len(padded)) / rowSize

	for i := uint32(0); i < numRows; i++ {
		if cancel != nil && cancel() {
			return p.abortToIdle()
		}
		rowAddr := rowStart + i*rowSize
		expected := padded[i*rowSize : (i+1)*rowSize]

		if p.opts.verifyByChecksum {
			params := []uint32{sromOpcodeWord(sromOpChecksum, 0), rowAddr, rowSize}
			if _, err := p.session.sromCall(params, cancel); err != nil {
				return err
			}
			continue
		}

		actual, err := p.session.swd.readMem(p.session.selectedAP, rowAddr, rowSize)
		if err != nil {
			return err
		}
		for j := range expected {
			if actual[j] != expected[j] {
				return &VerifyMismatchError{Addr: rowAddr + uint32(j), Expected: expected[j], Actual: actual[j]}
			}
		}
	}
	return nil
}

// padToRows aligns [start, start+len(data)) outward to rowSize
// boundaries, padding the added bytes with 0xFF.
func padToRows(data []byte, start, rowSize uint32) ([]byte, uint32) {
	end := start + uint32(len(data))
	alignedStart := start &^ (rowSize - 1)
	alignedEnd := (end + rowSize - 1) &^ (rowSize - 1)

	padded := make([]byte, alignedEnd-alignedStart)
	for i := range padded {
		padded[i] = 0xFF
	}
	copy(padded[start-alignedStart:], data)
	return padded, alignedStart
}
