// Copyright 2020 Sebastian Lehmann. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

package psoc6flash

import (
	"time"

	"github.com/karalabe/hid"
)

// hidReportSize is the fixed CMSIS-DAP v1 HID report length.
const hidReportSize = 64

// defaultHidReadTimeout is the transport's blocking-read timeout.
const defaultHidReadTimeout = 1 * time.Second

// ProbeInfo describes one enumerated CMSIS-DAP HID device, returned by
// Scan without opening it.
type ProbeInfo struct {
	VendorID     uint16
	ProductID    uint16
	SerialNumber string
	Product      string
	path         string
}

// Scan enumerates attached CMSIS-DAP HID probes. vid/pid of 0 match any
// vendor/product id.
func Scan(vid, pid uint16) ([]ProbeInfo, error) {
	if !hid.Supported() {
		return nil, newHidError(HidNotFound, "hid support unavailable on this platform")
	}
	infos := hid.Enumerate(vid, pid)
	result := make([]ProbeInfo, 0, len(infos))
	for _, info := range infos {
		result = append(result, ProbeInfo{
			VendorID:     info.VendorID,
			ProductID:    info.ProductID,
			SerialNumber: info.Serial,
			Product:      info.Product,
			path:         info.Path,
		})
	}
	return result, nil
}

// hidTransport implements the raw scan/open/write/read collaborator
// the DAP protocol layer is built on. It enforces a single
// outstanding request per probe by construction: every call blocks
// until its own write or read completes before another may start.
type hidTransport struct {
	dev         *hid.Device
	readTimeout time.Duration
}

// openTransport opens a probe by its enumerated ProbeInfo.
func openTransport(info ProbeInfo) (*hidTransport, error) {
	infos := hid.Enumerate(info.VendorID, info.ProductID)
	for _, candidate := range infos {
		if candidate.Path != info.path {
			continue
		}
		dev, err := candidate.Open()
		if err != nil {
			return nil, newHidError(HidIoError, "opening device: %v", err)
		}
		return &hidTransport{dev: dev, readTimeout: defaultHidReadTimeout}, nil
	}
	return nil, newHidError(HidNotFound, "probe %04x:%04x (%s) no longer present", info.VendorID, info.ProductID, info.SerialNumber)
}

func (t *hidTransport) close() error {
	if t.dev == nil {
		return nil
	}
	return t.dev.Close()
}

// send pads report to hidReportSize and writes it. karalabe/hid expects
// byte 0 of the buffer to be the HID report-ID; CMSIS-DAP probes that
// don't use numbered reports still accept a leading 0x00 there, so we
// always reserve it and shift the payload one byte to the right.
func (t *hidTransport) send(report []byte) error {
	buf := make([]byte, hidReportSize+1)
	buf[0] = 0x00 // report ID
	n := copy(buf[1:], report)
	_ = n

	if _, err := t.dev.Write(buf); err != nil {
		return newHidError(HidIoError, "write: %v", err)
	}
	return nil
}

// recv blocks for at most t.readTimeout waiting for one report. Some
// platforms prepend the report-ID byte to the data returned by Read;
// others don't. We detect and strip it the way
// bootloader.sendCommandWithResponse does for CYACD frames: if the
// buffer is one byte longer than a bare report and its first byte is
// zero, treat that as the report ID rather than protocol data.
func (t *hidTransport) recv() ([]byte, error) {
	buf := make([]byte, hidReportSize+1)

	type result struct {
		n   int
		err error
	}
	done := make(chan result, 1)
	go func() {
		n, err := t.dev.Read(buf)
		done <- result{n, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return nil, newHidError(HidIoError, "read: %v", r.err)
		}
		if r.n == 0 {
			return nil, newHidError(HidIoError, "zero-length read")
		}
		if r.n > hidReportSize && buf[0] == 0x00 {
			return buf[1:r.n], nil
		}
		return buf[:r.n], nil
	case <-time.After(t.readTimeout):
		return nil, newHidError(HidTimeout, "no response within %s", t.readTimeout)
	}
}
