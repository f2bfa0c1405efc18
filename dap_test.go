// Copyright 2020 Sebastian Lehmann. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

package psoc6flash

import (
	"testing"
)

func TestTransferRequestDescriptorEncoding(t *testing.T) {
	cases := []struct {
		name string
		req  DapTransferRequest
		want byte
	}{
		{"dp read", DapTransferRequest{Reg: 0x0, AP: false, Op: OpRead}, 0x02},
		{"dp write", DapTransferRequest{Reg: 0x4, AP: false, Op: OpWrite}, 0x04},
		{"ap read", DapTransferRequest{Reg: 0xC, AP: true, Op: OpRead}, 0x0F},
		{"ap write", DapTransferRequest{Reg: 0x4, AP: true, Op: OpWrite}, 0x05},
	}
	for _, c := range cases {
		if got := c.req.descriptor(); got != c.want {
			t.Errorf("%s: got descriptor 0x%02x, want 0x%02x", c.name, got, c.want)
		}
	}
}

// fakeTransport is an in-process stand-in for hidTransport, letting the
// DAP transfer tests below run without real HID hardware (the
// end-to-end scenarios use dapSimulator instead). It is grounded on
// moffa90-go-cyacd's examples/mock_device RealisticMockDevice pattern:
// a handler function receives the raw outgoing report and returns the
// raw response, with byte 0 of both being the echoed command.
type fakeTransport struct {
	pending []byte
	handle  func(req []byte) []byte
}

func (f *fakeTransport) send(report []byte) error {
	f.pending = append([]byte(nil), report...)
	return nil
}

func (f *fakeTransport) recv() ([]byte, error) {
	return f.handle(f.pending), nil
}

func TestDapTransferWaitThenOk(t *testing.T) {
	// property 8: a simulated transport that returns WAIT twice then
	// OK produces the same read value as a single-shot OK.
	calls := 0
	ft := &fakeTransport{handle: func(req []byte) []byte {
		calls++
		if calls <= 2 {
			return []byte{req[0], 0, 0x02 /* AckWait, 0 executed */}
		}
		return []byte{req[0], 1, 0x01 /* AckOK */, 0x78, 0x56, 0x34, 0x12}
	}}

	link := newDapLink(ft)
	values, err := link.transfer(0, []DapTransferRequest{{Reg: 0x0, AP: false, Op: OpRead}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts (2 waits + 1 ok), got %d", calls)
	}
	if len(values) != 1 || values[0] != 0x12345678 {
		t.Fatalf("unexpected values: %v", values)
	}
}

func TestDapTransferFaultRunsWriteAbort(t *testing.T) {
	abortSeen := false
	ft := &fakeTransport{handle: func(req []byte) []byte {
		if req[0] == cmdWriteAbort {
			abortSeen = true
			return []byte{req[0]}
		}
		return []byte{req[0], 0, 0x04 /* AckFault */}
	}}

	link := newDapLink(ft)
	_, err := link.transfer(0, []DapTransferRequest{{Reg: 0x0, AP: false, Op: OpRead}})
	if err == nil {
		t.Fatal("expected fault error")
	}
	derr, ok := err.(*DapError)
	if !ok || derr.Kind != DapFault {
		t.Fatalf("expected DapFault, got %v", err)
	}
	if !abortSeen {
		t.Fatal("expected WriteAbort to be issued on FAULT")
	}
}

func TestDapTransferWaitExceeded(t *testing.T) {
	ft := &fakeTransport{handle: func(req []byte) []byte {
		return []byte{req[0], 0, 0x02 /* AckWait */}
	}}

	link := newDapLink(ft)
	_, err := link.transfer(0, []DapTransferRequest{{Reg: 0x0, AP: false, Op: OpRead}})
	if err == nil {
		t.Fatal("expected wait-exceeded error")
	}
	derr, ok := err.(*DapError)
	if !ok || derr.Kind != DapWaitExceeded {
		t.Fatalf("expected DapWaitExceeded, got %v", err)
	}
}
