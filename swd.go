// Copyright 2020 Sebastian Lehmann. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

package psoc6flash

import (
	"github.com/boljen/go-bitmap"
)

// DP register offsets.
const (
	dpIDCODE    = 0x00
	dpABORT     = 0x00 // write-only alias of IDCODE's address
	dpCTRLSTAT  = 0x04
	dpSELECT    = 0x08
	dpRDBUFF    = 0x0C
)

// AP-MEM register offsets within the currently selected bank.
const (
	apCSW = 0x00
	apTAR = 0x04
	apDRW = 0x0C
)

const (
	cswDeviceEn        = 0x40
	cswBasicWordAuto   = 0x23000052 // 32-bit access, auto-increment, basic mode
	tarAutoIncrementBoundary = 0x400

	ctrlStatCSysPwrUpReq = 0x40000000
	ctrlStatCSysPwrUpAck = 0x80000000
	ctrlStatCDbgPwrUpReq = 0x10000000
	ctrlStatCDbgPwrUpAck = 0x20000000
	ctrlStatStickyClear  = 0x50000F00
)

// swdSwitchSequence is issued via SWJ_Sequence to switch a JTAG-or-unknown
// wire state into SWD.
var swdSwitchSequence = []byte{0x9E, 0xE7}

// ApSelector names the two access ports PSoC6 exposes to the debugger.
type ApSelector byte

const (
	ApCM0 ApSelector = 0
	ApCM4 ApSelector = 1
)

// swdLink drives the DP/AP layer on top of a dapLink. TAR is cached
// so that setting it again to the same address skips the write; the
// cache is dropped after every block transfer, so addresses reached
// by auto-increment are not predicted. The CSW value written by
// openAP is recorded but not consulted to skip later writes.
type swdLink struct {
	dap *dapLink

	dapIndex byte
	selected uint32 // last value written to DP SELECT
	haveSel  bool

	cachedCSW uint32
	haveCSW   bool
	cachedTAR uint32
	haveTAR   bool

	openedAPs bitmap.Bitmap
}

func newSwdLink(dap *dapLink) *swdLink {
	return &swdLink{dap: dap, openedAPs: bitmap.New(8)}
}

// bringUp resets the wire state and switches it into SWD mode.
func (s *swdLink) bringUp() error {
	// pulse nRESET low then high through SWJ_Pins.
	if _, err := s.dap.swjPins(0x00, 0x80, 0); err != nil {
		return err
	}
	if _, err := s.dap.swjPins(0x80, 0x80, 1000); err != nil {
		return err
	}

	// >= 50 cycles of 1s, the JTAG-to-SWD select sequence, >= 50 more
	// cycles of 1s (line reset), then 8 idle cycles of 0s.
	ones := make([]byte, 8)
	for i := range ones {
		ones[i] = 0xFF
	}
	if err := s.dap.swjSequence(51, ones); err != nil {
		return err
	}
	if err := s.dap.swjSequence(16, swdSwitchSequence); err != nil {
		return err
	}
	if err := s.dap.swjSequence(51, ones); err != nil {
		return err
	}
	zero := []byte{0x00}
	return s.dap.swjSequence(8, zero)
}

// dpInit reads IDCODE, clears sticky errors, and powers up the debug
// and system domains.
func (s *swdLink) dpInit() (uint32, error) {
	idcode, err := s.readDP(dpIDCODE)
	if err != nil {
		return 0, err
	}

	if err := s.writeDP(dpSELECT, 0); err != nil {
		return 0, err
	}
	s.haveSel = true
	s.selected = 0

	if err := s.writeDP(dpCTRLSTAT, ctrlStatStickyClear); err != nil {
		return 0, err
	}

	if err := s.powerUp(); err != nil {
		return 0, err
	}

	return idcode, nil
}

// powerUp requests debug and system power-up and polls CTRL/STAT until
// both ack bits are set.
func (s *swdLink) powerUp() error {
	req := uint32(ctrlStatCDbgPwrUpReq | ctrlStatCSysPwrUpReq)
	ack := uint32(ctrlStatCDbgPwrUpAck | ctrlStatCSysPwrUpAck)

	for i := 0; i < 100; i++ {
		stat, err := s.readDP(dpCTRLSTAT)
		if err != nil {
			return err
		}
		if stat&(req|ack) == (req | ack) {
			return nil
		}
		if err := s.writeDP(dpCTRLSTAT, (stat&0x07FFFFFF)|req); err != nil {
			return err
		}
	}
	return newDapError(DapProtocolError, "timed out waiting for debug/system power-up ack")
}

func (s *swdLink) readDP(reg byte) (uint32, error) {
	values, err := s.dap.transfer(s.dapIndex, []DapTransferRequest{{Reg: reg, AP: false, Op: OpRead}})
	if err != nil {
		return 0, err
	}
	if len(values) != 1 {
		return 0, newDapError(DapProtocolError, "dp read returned no value")
	}
	return values[0], nil
}

func (s *swdLink) writeDP(reg byte, value uint32) error {
	_, err := s.dap.transfer(s.dapIndex, []DapTransferRequest{{Reg: reg, AP: false, Op: OpWrite, Data: value}})
	return err
}

// selectAP writes DP SELECT with APSEL|APBANKSEL, skipping the write
// if the bank for this ap/register is already selected.
func (s *swdLink) selectAP(ap ApSelector, apReg byte) error {
	apBank := apReg / 16
	sel := (uint32(ap) << 24) | (uint32(apBank&0xf) << 4)
	if s.haveSel && s.selected == sel {
		return nil
	}
	if err := s.writeDP(dpSELECT, sel); err != nil {
		return err
	}
	s.selected = sel
	s.haveSel = true
	return nil
}

func (s *swdLink) readAP(ap ApSelector, apReg byte) (uint32, error) {
	if err := s.selectAP(ap, apReg); err != nil {
		return 0, err
	}
	values, err := s.dap.transfer(s.dapIndex, []DapTransferRequest{{Reg: apReg % 16, AP: true, Op: OpRead}})
	if err != nil {
		return 0, err
	}
	if len(values) != 1 {
		return 0, newDapError(DapProtocolError, "ap read returned no value")
	}
	return values[0], nil
}

func (s *swdLink) writeAP(ap ApSelector, apReg byte, value uint32) error {
	if err := s.selectAP(ap, apReg); err != nil {
		return err
	}
	_, err := s.dap.transfer(s.dapIndex, []DapTransferRequest{{Reg: apReg % 16, AP: true, Op: OpWrite, Data: value}})
	return err
}

// openAP marks ap as initialised for this session, performing the
// CSW bring-up (basic mode, 32-bit access, auto-increment) once.
func (s *swdLink) openAP(ap ApSelector) error {
	if s.openedAPs.Get(int(ap)) {
		return nil
	}
	csw, err := s.readAP(ap, apCSW)
	if err != nil {
		return err
	}
	if csw&cswDeviceEn == 0 {
		return newDapError(DapProtocolError, "AP %d has DeviceEn clear", ap)
	}
	if err := s.writeAP(ap, apCSW, cswBasicWordAuto); err != nil {
		return err
	}
	s.cachedCSW = cswBasicWordAuto
	s.haveCSW = true
	s.haveTAR = false
	s.openedAPs.Set(int(ap), true)
	return nil
}

// readMem reads length bytes (a multiple of 4) from addr through
// AP-MEM, chunking at the TAR auto-increment boundary.
func (s *swdLink) readMem(ap ApSelector, addr uint32, length uint32) ([]byte, error) {
	if length%4 != 0 {
		return nil, newDapError(DapProtocolError, "readMem length must be word-aligned")
	}
	if err := s.openAP(ap); err != nil {
		return nil, err
	}

	out := make([]byte, 0, length)
	var done uint32
	for done < length {
		if err := s.setTAR(ap, addr+done); err != nil {
			return nil, err
		}
		chunkBytes := tarAutoIncrementBoundary - (addr+done)&(tarAutoIncrementBoundary-1)
		remaining := length - done
		if chunkBytes > remaining {
			chunkBytes = remaining
		}
		words := int(chunkBytes / 4)
		maxWords := s.dap.transferBlockMaxWords()

		for words > 0 {
			n := words
			if n > maxWords {
				n = maxWords
			}
			values, err := s.dap.transferBlockRead(s.dapIndex, true, apDRW, n)
			if err != nil {
				return nil, err
			}
			for _, v := range values {
				b := make([]byte, 4)
				uint32ToLittleEndian(b, v)
				out = append(out, b...)
			}
			words -= n
			s.haveTAR = false // device auto-incremented TAR out from under our cache
		}
		done += chunkBytes
	}
	return out, nil
}

// writeMem writes data (length a multiple of 4) to addr through
// AP-MEM, chunking at the TAR auto-increment boundary.
func (s *swdLink) writeMem(ap ApSelector, addr uint32, data []byte) error {
	if len(data)%4 != 0 {
		return newDapError(DapProtocolError, "writeMem length must be word-aligned")
	}
	if err := s.openAP(ap); err != nil {
		return err
	}

	var done uint32
	total := uint32(len(data))
	for done < total {
		if err := s.setTAR(ap, addr+done); err != nil {
			return err
		}
		chunkBytes := tarAutoIncrementBoundary - (addr+done)&(tarAutoIncrementBoundary-1)
		remaining := total - done
		if chunkBytes > remaining {
			chunkBytes = remaining
		}
		words := int(chunkBytes / 4)
		maxWords := s.dap.transferBlockMaxWords()

		off := uint32(0)
		for words > 0 {
			n := words
			if n > maxWords {
				n = maxWords
			}
			values := make([]uint32, n)
			for i := 0; i < n; i++ {
				values[i] = le_to_h_u32(data[done+off+uint32(i*4):])
			}
			if err := s.dap.transferBlockWrite(s.dapIndex, true, apDRW, values); err != nil {
				return err
			}
			off += uint32(n * 4)
			words -= n
			s.haveTAR = false
		}
		done += chunkBytes
	}
	return nil
}

func (s *swdLink) setTAR(ap ApSelector, addr uint32) error {
	if s.haveTAR && s.cachedTAR == addr {
		return nil
	}
	if err := s.writeAP(ap, apTAR, addr); err != nil {
		return err
	}
	s.cachedTAR = addr
	s.haveTAR = true
	return nil
}
