// Copyright 2020 Sebastian Lehmann. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

package psoc6flash

// AcquireState is the state of the Acquire state machine.
type AcquireState int

const (
	StateIdle AcquireState = iota
	StateResetHeld
	StateWaitTestMode
	StateAPOpened
	StateReady
)

func (s AcquireState) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateResetHeld:
		return "RESET_HELD"
	case StateWaitTestMode:
		return "WAIT_TEST_MODE"
	case StateAPOpened:
		return "AP_OPENED"
	case StateReady:
		return "READY"
	default:
		return "UNKNOWN"
	}
}

// AcquireMode selects the sequence used to acquire the target.
type AcquireMode int

const (
	AcquireReset AcquireMode = iota
	AcquirePower
)

// TargetSession is the exclusive owner of the probe handle for its
// lifetime, from Open to Close. It is mutated only by the
// Programmer on the calling goroutine.
type TargetSession struct {
	transport *hidTransport
	dap       *dapLink
	swd       *swdLink

	swjClockHz    uint32
	selectedAP    ApSelector
	acquireState  AcquireState
	family        DeviceFamily
}

func newSession(t *hidTransport, swjClockHz uint32) *TargetSession {
	dap := newDapLink(t)
	return &TargetSession{
		transport:    t,
		dap:          dap,
		swd:          newSwdLink(dap),
		swjClockHz:   swjClockHz,
		acquireState: StateIdle,
		family:       psoc6,
	}
}

func (s *TargetSession) close() error {
	if s.transport == nil {
		return nil
	}
	return s.transport.close()
}
