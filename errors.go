// Copyright 2020 Sebastian Lehmann. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

package psoc6flash

import "fmt"

// ParseErrorKind tags the reason a firmware file failed to parse.
type ParseErrorKind int

const (
	HexChecksum ParseErrorKind = iota
	HexLength
	HexRecord
	NotElf
	NotElf32
	Truncated
)

func (k ParseErrorKind) String() string {
	switch k {
	case HexChecksum:
		return "HexChecksum"
	case HexLength:
		return "HexLength"
	case HexRecord:
		return "HexRecord"
	case NotElf:
		return "NotElf"
	case NotElf32:
		return "NotElf32"
	case Truncated:
		return "Truncated"
	default:
		return "Unknown"
	}
}

// ParseError is returned by the HEX and ELF32 parsers. It aborts ingest
// with no side effects on the caller-supplied FirmwareRecord.
type ParseError struct {
	Kind    ParseErrorKind
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func newParseError(kind ParseErrorKind, format string, args ...interface{}) error {
	return &ParseError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// HidErrorKind tags the reason a HID transport call failed.
type HidErrorKind int

const (
	HidNotFound HidErrorKind = iota
	HidIoError
	HidTimeout
)

func (k HidErrorKind) String() string {
	switch k {
	case HidNotFound:
		return "NotFound"
	case HidIoError:
		return "IoError"
	case HidTimeout:
		return "Timeout"
	default:
		return "Unknown"
	}
}

// HidError propagates out of the current operation; the transport does
// not retry it itself.
type HidError struct {
	Kind    HidErrorKind
	Message string
}

func (e *HidError) Error() string {
	return fmt.Sprintf("hid: %s: %s", e.Kind, e.Message)
}

func newHidError(kind HidErrorKind, format string, args ...interface{}) error {
	return &HidError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// DapErrorKind tags the ack status that aborted a CMSIS-DAP transfer.
type DapErrorKind int

const (
	DapNoAck DapErrorKind = iota
	DapFault
	DapProtocolError
	DapWaitExceeded
)

func (k DapErrorKind) String() string {
	switch k {
	case DapNoAck:
		return "NoAck"
	case DapFault:
		return "Fault"
	case DapProtocolError:
		return "ProtocolError"
	case DapWaitExceeded:
		return "WaitExceeded"
	default:
		return "Unknown"
	}
}

// DapError is recoverable only by aborting the current transfer. For
// DapFault the transfer layer has already issued WriteAbort by the
// time this surfaces; the other kinds surface without one.
type DapError struct {
	Kind    DapErrorKind
	Message string
}

func (e *DapError) Error() string {
	return fmt.Sprintf("dap: %s: %s", e.Kind, e.Message)
}

func newDapError(kind DapErrorKind, format string, args ...interface{}) error {
	return &DapError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// AcquireErrorKind tags why the Acquire state machine returned to IDLE.
type AcquireErrorKind int

const (
	AcquireTimeout AcquireErrorKind = iota
	NoSwdResponse
	TestModeNotEntered
	AcquireModeUnsupported
)

func (k AcquireErrorKind) String() string {
	switch k {
	case AcquireTimeout:
		return "Timeout"
	case NoSwdResponse:
		return "NoSwdResponse"
	case TestModeNotEntered:
		return "TestModeNotEntered"
	case AcquireModeUnsupported:
		return "ModeUnsupported"
	default:
		return "Unknown"
	}
}

// AcquireError is fatal for the current session; the caller must
// re-Acquire before issuing further operations.
type AcquireError struct {
	Kind    AcquireErrorKind
	Message string
}

func (e *AcquireError) Error() string {
	return fmt.Sprintf("acquire: %s: %s", e.Kind, e.Message)
}

func newAcquireError(kind AcquireErrorKind, format string, args ...interface{}) error {
	return &AcquireError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// SromError carries the 28-bit error id returned in an SROM result word.
type SromError struct {
	Code uint32
}

func (e *SromError) Error() string {
	return fmt.Sprintf("srom: call failed with error id 0x%07x", e.Code&0x0fffffff)
}

// VerifyMismatchError is a programming result, non-fatal to the
// transport: the caller decides whether to abort or continue.
type VerifyMismatchError struct {
	Addr     uint32
	Expected byte
	Actual   byte
}

func (e *VerifyMismatchError) Error() string {
	return fmt.Sprintf("verify mismatch at 0x%08x: expected 0x%02x, got 0x%02x", e.Addr, e.Expected, e.Actual)
}

// CancelledError acknowledges a cooperative cancel request.
type CancelledError struct{}

func (e *CancelledError) Error() string {
	return "operation cancelled"
}
