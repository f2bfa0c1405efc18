// Copyright 2020 Sebastian Lehmann. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

package psoc6flash

import "fmt"

// CMSIS-DAP v1 command bytes; not every one of them is issued by this
// module. The byte layout matches the CMSIS-DAP specification
// bit-for-bit.
const (
	cmdInfo              = 0x00
	cmdHostStatus         = 0x01
	cmdConnect            = 0x02
	cmdDisconnect         = 0x03
	cmdTransferConfigure  = 0x04
	cmdTransfer           = 0x05
	cmdTransferBlock      = 0x06
	cmdTransferAbort      = 0x07
	cmdWriteAbort         = 0x08
	cmdDelay              = 0x09
	cmdResetTarget        = 0x0A
	cmdSWJPins            = 0x10
	cmdSWJClock           = 0x11
	cmdSWJSequence        = 0x12
	cmdSWDConfigure       = 0x13
	cmdJTAGSequence       = 0x14
	cmdJTAGConfigure      = 0x15
	cmdJTAGIDCode         = 0x16

	dapOK = 0x00
)

// ConnectMode selects the wire protocol requested from DAP_Connect.
type ConnectMode byte

const (
	ConnectDefault ConnectMode = 0
	ConnectSWD     ConnectMode = 1
	ConnectJTAG    ConnectMode = 2
)

// TransferAck mirrors the 3-bit ACK field returned by DAP_Transfer.
type TransferAck int

const (
	AckOK TransferAck = iota
	AckWait
	AckFault
	AckProtocolError
	AckNoAck
)

const (
	ackBitOK    = 0x01
	ackBitWait  = 0x02
	ackBitFault = 0x04
)

func ackFromStatusByte(b byte) TransferAck {
	switch b & 0x07 {
	case ackBitOK:
		return AckOK
	case ackBitWait:
		return AckWait
	case ackBitFault:
		return AckFault
	case 0x00:
		return AckNoAck
	default:
		return AckProtocolError
	}
}

// TransferOp is the operation requested by one DapTransferRequest.
type TransferOp int

const (
	OpRead TransferOp = iota
	OpWrite
	OpReadMatch
	OpWriteMatch
)

// DapTransferRequest is one packed request in a Transfer() call.
type DapTransferRequest struct {
	Reg  byte // 4-bit DP/AP register selector, pre-shifted into bits [3:2]
	AP   bool
	Op   TransferOp
	Data uint32
}

func (r DapTransferRequest) descriptor() byte {
	desc := r.Reg & 0x0c
	if r.AP {
		desc |= 0x01
	}
	switch r.Op {
	case OpRead:
		desc |= 0x02
	case OpReadMatch:
		desc |= 0x02 | 0x10
	case OpWrite:
		// bits already correct: no read bit, plain write
	case OpWriteMatch:
		desc |= 0x20
	}
	return desc
}

func (r DapTransferRequest) hasData() bool {
	return r.Op == OpWrite || r.Op == OpWriteMatch || r.Op == OpReadMatch
}

// dapWaitRetries is the spec's K=100 WAIT-retry count; this
// deliberately differs from the teacher's ST-Link exponential-backoff
// retry constant (see DESIGN.md).
const dapWaitRetries = 100

// probeTransport is the send/recv collaborator dapLink is built on.
// hidTransport implements it for real hardware; tests substitute an
// in-memory simulator (end-to-end scenarios).
type probeTransport interface {
	send(report []byte) error
	recv() ([]byte, error)
}

// dapLink drives one CMSIS-DAP probe: it owns the transport and
// enforces the request/response discipline on top of it.
type dapLink struct {
	transport     probeTransport
	maxPacketSize int
}

func newDapLink(t probeTransport) *dapLink {
	return &dapLink{transport: t, maxPacketSize: hidReportSize}
}

func (d *dapLink) exec(cmd byte, payload []byte) ([]byte, error) {
	req := make([]byte, 0, 1+len(payload))
	req = append(req, cmd)
	req = append(req, payload...)

	if err := d.transport.send(req); err != nil {
		return nil, err
	}
	resp, err := d.transport.recv()
	if err != nil {
		return nil, err
	}
	if len(resp) == 0 || resp[0] != cmd {
		return nil, newDapError(DapProtocolError, "echoed command byte mismatch")
	}
	return resp[1:], nil
}

// info issues DAP_Info for the given info id and returns the raw
// string/byte payload the probe reports.
func (d *dapLink) info(id byte) ([]byte, error) {
	resp, err := d.exec(cmdInfo, []byte{id})
	if err != nil {
		return nil, err
	}
	if len(resp) == 0 {
		return nil, nil
	}
	n := int(resp[0])
	if n+1 > len(resp) {
		return nil, newDapError(DapProtocolError, "info response truncated")
	}
	return resp[1 : 1+n], nil
}

func (d *dapLink) connect(mode ConnectMode) error {
	resp, err := d.exec(cmdConnect, []byte{byte(mode)})
	if err != nil {
		return err
	}
	if len(resp) == 0 || resp[0] == 0 {
		return newDapError(DapProtocolError, "connect failed")
	}
	return nil
}

func (d *dapLink) disconnect() error {
	_, err := d.exec(cmdDisconnect, nil)
	return err
}

func (d *dapLink) transferConfigure(idleCycles byte, waitRetry, matchRetry uint16) error {
	buf := NewBuffer(5)
	buf.WriteByte(idleCycles)
	buf.WriteUint16LE(waitRetry)
	buf.WriteUint16LE(matchRetry)
	_, err := d.exec(cmdTransferConfigure, buf.Bytes())
	return err
}

func (d *dapLink) writeAbort(dapIndex byte, value uint32) error {
	buf := NewBuffer(5)
	buf.WriteByte(dapIndex)
	buf.WriteUint32LE(value)
	_, err := d.exec(cmdWriteAbort, buf.Bytes())
	return err
}

// swjClock issues SWJ_Clock to request a new SWCLK/TCK frequency in
// Hz. The probe is free to clamp this to whatever it actually
// supports; callers that need the effective rate must read it back
// via DAP_Info.
func (d *dapLink) swjClock(hz uint32) error {
	buf := NewBuffer(4)
	buf.WriteUint32LE(hz)
	_, err := d.exec(cmdSWJClock, buf.Bytes())
	return err
}

// swjSequence clocks numBits through SWDIO/TMS from data, LSB-first,
// packed 8 bits per byte.
func (d *dapLink) swjSequence(numBits int, data []byte) error {
	if numBits < 1 || numBits > 256 {
		return newDapError(DapProtocolError, "swj sequence bit count %d out of range", numBits)
	}
	buf := NewBuffer(1 + len(data))
	buf.WriteByte(byte(numBits & 0xff))
	buf.Write(data)
	_, err := d.exec(cmdSWJSequence, buf.Bytes())
	return err
}

func (d *dapLink) swjPins(output, mask byte, waitUs uint32) (byte, error) {
	buf := NewBuffer(6)
	buf.WriteByte(output)
	buf.WriteByte(mask)
	buf.WriteUint32LE(waitUs)
	resp, err := d.exec(cmdSWJPins, buf.Bytes())
	if err != nil {
		return 0, err
	}
	if len(resp) == 0 {
		return 0, newDapError(DapProtocolError, "swj_pins response empty")
	}
	return resp[0], nil
}

func (d *dapLink) swdConfigure(cfg byte) error {
	_, err := d.exec(cmdSWDConfigure, []byte{cfg})
	return err
}

func (d *dapLink) delay(us uint16) error {
	buf := NewBuffer(2)
	buf.WriteUint16LE(us)
	_, err := d.exec(cmdDelay, buf.Bytes())
	return err
}

func (d *dapLink) resetTarget() error {
	_, err := d.exec(cmdResetTarget, nil)
	return err
}

// transfer packs reqs into a single Transfer command, retrying the
// whole call up to dapWaitRetries times while every observed ack is
// AckWait. A FAULT ack triggers WriteAbort before the error is
// surfaced; NO_ACK/PROTOCOL_ERROR are fatal immediately.
func (d *dapLink) transfer(dapIndex byte, reqs []DapTransferRequest) ([]uint32, error) {
	for attempt := 0; attempt <= dapWaitRetries; attempt++ {
		values, ack, err := d.doTransfer(dapIndex, reqs)
		if err != nil {
			return nil, err
		}
		switch ack {
		case AckOK:
			return values, nil
		case AckWait:
			continue
		case AckFault:
			_ = d.writeAbort(dapIndex, 0x1e)
			return nil, newDapError(DapFault, "transfer faulted")
		case AckNoAck:
			return nil, newDapError(DapNoAck, "no acknowledgment from target")
		default:
			return nil, newDapError(DapProtocolError, "unexpected transfer ack")
		}
	}
	return nil, newDapError(DapWaitExceeded, "exceeded %d WAIT retries", dapWaitRetries)
}

func (d *dapLink) doTransfer(dapIndex byte, reqs []DapTransferRequest) ([]uint32, TransferAck, error) {
	buf := NewBuffer(2 + len(reqs)*5)
	buf.WriteByte(dapIndex)
	buf.WriteByte(byte(len(reqs)))
	for _, r := range reqs {
		buf.WriteByte(r.descriptor())
		if r.hasData() {
			buf.WriteUint32LE(r.Data)
		}
	}

	resp, err := d.exec(cmdTransfer, buf.Bytes())
	if err != nil {
		return nil, 0, err
	}
	if len(resp) < 2 {
		return nil, 0, newDapError(DapProtocolError, "transfer response truncated")
	}
	countExecuted := int(resp[0])
	ack := ackFromStatusByte(resp[1])

	data := NewBuffer(len(resp) - 2)
	data.Write(resp[2:])

	values := make([]uint32, 0, countExecuted)
	for i := 0; i < countExecuted && i < len(reqs); i++ {
		if reqs[i].Op != OpRead {
			continue
		}
		if data.Len() < 4 {
			return nil, 0, newDapError(DapProtocolError, "transfer response missing read data")
		}
		values = append(values, data.ReadUint32LE())
	}
	return values, ack, nil
}

// transferBlockMaxWords returns how many 32-bit words fit in one
// TransferBlock report given the transport's max packet size.
func (d *dapLink) transferBlockMaxWords() int {
	const headerLen = 1 + 1 + 2 + 1 // cmd + dapIndex + count(u16) + reg descriptor
	return (d.maxPacketSize - headerLen) / 4
}

// transferBlockRead performs a single TransferBlock read of length
// words from the register described by reg/ap.
func (d *dapLink) transferBlockRead(dapIndex byte, ap bool, reg byte, length int) ([]uint32, error) {
	desc := reg & 0x0c
	if ap {
		desc |= 0x01
	}
	desc |= 0x02

	buf := NewBuffer(4)
	buf.WriteByte(dapIndex)
	buf.WriteUint16LE(uint16(length))
	buf.WriteByte(desc)
	resp, err := d.exec(cmdTransferBlock, buf.Bytes())
	if err != nil {
		return nil, err
	}
	if len(resp) < 3 {
		return nil, newDapError(DapProtocolError, "transfer_block response truncated")
	}
	count := int(resp[0]) | int(resp[1])<<8
	ack := ackFromStatusByte(resp[2])
	if ack != AckOK {
		return nil, newDapError(DapFault, "transfer_block ack %v", ack)
	}
	data := NewBuffer(len(resp) - 3)
	data.Write(resp[3:])
	values := make([]uint32, 0, count)
	for i := 0; i < count; i++ {
		if data.Len() < 4 {
			return nil, newDapError(DapProtocolError, "transfer_block response missing data")
		}
		values = append(values, data.ReadUint32LE())
	}
	return values, nil
}

// transferBlockWrite performs a single TransferBlock write of values
// to the register described by reg/ap.
func (d *dapLink) transferBlockWrite(dapIndex byte, ap bool, reg byte, values []uint32) error {
	desc := reg & 0x0c
	if ap {
		desc |= 0x01
	}

	buf := NewBuffer(4 + len(values)*4)
	buf.WriteByte(dapIndex)
	buf.WriteUint16LE(uint16(len(values)))
	buf.WriteByte(desc)
	for _, v := range values {
		buf.WriteUint32LE(v)
	}

	resp, err := d.exec(cmdTransferBlock, buf.Bytes())
	if err != nil {
		return err
	}
	if len(resp) < 3 {
		return newDapError(DapProtocolError, "transfer_block response truncated")
	}
	ack := ackFromStatusByte(resp[2])
	if ack != AckOK {
		return newDapError(DapFault, "transfer_block ack %v", ack)
	}
	return nil
}

func (a TransferAck) String() string {
	switch a {
	case AckOK:
		return "OK"
	case AckWait:
		return "WAIT"
	case AckFault:
		return "FAULT"
	case AckProtocolError:
		return "PROTOCOL_ERROR"
	case AckNoAck:
		return "NO_ACK"
	default:
		return fmt.Sprintf("ack(%d)", int(a))
	}
}
