// Copyright 2020 Sebastian Lehmann. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

package psoc6flash

import (
	"bytes"
	"testing"
)

func TestFirmwareRecordClassifyAndMerge(t *testing.T) {
	// E2: two HEX blocks at 0x10000000 (len 512) and 0x10000400 (len
	// 512) merge into one 1536-byte segment with 0x00 fill between.
	fr := NewFirmwareRecord()
	fr.Classify(newSegment(0x10000000, bytes.Repeat([]byte{0xAA}, 512)))
	fr.Classify(newSegment(0x10000400, bytes.Repeat([]byte{0xBB}, 512)))
	fr.Merge(RowSizePSoC6)

	if len(fr.ApplicationFlash) != 1 {
		t.Fatalf("expected 1 merged segment, got %d", len(fr.ApplicationFlash))
	}
	merged := fr.ApplicationFlash[0]
	if merged.First != 0x10000000 || merged.Last != 0x10000000+1536-1 {
		t.Fatalf("unexpected merged bounds [%x,%x]", merged.First, merged.Last)
	}
	if len(merged.Data) != 1536 {
		t.Fatalf("expected 1536 merged bytes, got %d", len(merged.Data))
	}
}

func TestRowMergerBoundary(t *testing.T) {
	// two segments exactly rowSize+1 bytes apart do not merge.
	fr := NewFirmwareRecord()
	fr.Classify(newSegment(0x10000000, []byte{1}))
	fr.Classify(newSegment(0x10000000+RowSizePSoC6+1, []byte{2}))
	fr.Merge(RowSizePSoC6)

	if len(fr.ApplicationFlash) != 2 {
		t.Fatalf("expected segments beyond the boundary to stay separate, got %d", len(fr.ApplicationFlash))
	}

	// adjacent rows do merge.
	fr2 := NewFirmwareRecord()
	fr2.Classify(newSegment(0x10000000, []byte{1}))
	fr2.Classify(newSegment(0x10000000+RowSizePSoC6, []byte{2}))
	fr2.Merge(RowSizePSoC6)

	if len(fr2.ApplicationFlash) != 1 {
		t.Fatalf("expected adjacent-row segments to merge, got %d", len(fr2.ApplicationFlash))
	}
}

func TestMergerIdempotence(t *testing.T) {
	fr := NewFirmwareRecord()
	fr.Classify(newSegment(0x10000000, bytes.Repeat([]byte{1}, 512)))
	fr.Classify(newSegment(0x10000400, bytes.Repeat([]byte{2}, 512)))
	fr.Merge(RowSizePSoC6)

	before := fr.ApplicationFlash[0].Data
	fr.Merge(RowSizePSoC6)
	after := fr.ApplicationFlash[0].Data

	if !bytes.Equal(before, after) {
		t.Fatal("merging an already-merged record changed its data")
	}
	if len(fr.ApplicationFlash) != 1 {
		t.Fatalf("expected merge to remain idempotent, got %d segments", len(fr.ApplicationFlash))
	}
}

func TestRegionDispatch(t *testing.T) {
	for _, r := range psoc6Regions {
		if got := regionOf(r.Start); got == RegionNone {
			t.Fatalf("region %v start address resolved to None", r.Tag)
		}
		if got := regionOf(r.Start - 1); got == r.Tag {
			t.Fatalf("address one below %v's start incorrectly resolved into it", r.Tag)
		}
		if got := regionOf(r.Start + r.Length - 1); got != r.Tag {
			t.Fatalf("last address of %v resolved to %v", r.Tag, got)
		}
	}

	if regionOf(0) != RegionNone {
		t.Fatal("address 0 should be unmapped")
	}
}

func TestOrderStaysInSyncAfterMerge(t *testing.T) {
	fr := NewFirmwareRecord()
	fr.Classify(newSegment(0x10000000, bytes.Repeat([]byte{0xAA}, 512)))
	fr.Classify(newSegment(0x10000400, bytes.Repeat([]byte{0xBB}, 512)))
	fr.Classify(newSegment(0x14000000, []byte{0x01}))

	if len(fr.order) != 3 {
		t.Fatalf("expected one order entry per classified segment, got %d", len(fr.order))
	}

	fr.Merge(RowSizePSoC6)

	total := len(fr.ApplicationFlash) + len(fr.Eeprom) + len(fr.SFlash) + len(fr.XIP)
	if fr.Checksum != nil {
		total++
	}
	if fr.MetaData != nil {
		total++
	}
	if fr.EFuse != nil {
		total++
	}
	if len(fr.order) != total {
		t.Fatalf("order length %d does not match current segment count %d after merge", len(fr.order), total)
	}
}

func TestToHexEmitsInOrder(t *testing.T) {
	fr := NewFirmwareRecord()
	fr.Classify(newSegment(0x14000000, []byte{0x01, 0x02}))
	fr.Classify(newSegment(0x10000000, []byte{0x03, 0x04}))
	fr.Merge(RowSizePSoC6)

	var buf bytes.Buffer
	if err := fr.ToHex(&buf); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	segs := fr.segmentsByOrder()
	if len(segs) != 2 {
		t.Fatalf("expected 2 segments in order, got %d", len(segs))
	}
	if segs[0].First != 0x14000000 || segs[1].First != 0x10000000 {
		t.Fatalf("segmentsByOrder did not preserve classification order: got firsts %x, %x", segs[0].First, segs[1].First)
	}

	roundTrip, err := ParseHex(&buf)
	if err != nil {
		t.Fatalf("re-parsing emitted hex failed: %v", err)
	}
	if len(roundTrip) != 2 {
		t.Fatalf("expected 2 segments out of the round trip, got %d", len(roundTrip))
	}
}

func TestUnmappedSegmentsAreDropped(t *testing.T) {
	fr := NewFirmwareRecord()
	fr.Classify(newSegment(0x00000000, []byte{1, 2, 3}))

	if len(fr.ApplicationFlash) != 0 || fr.MetaData != nil {
		t.Fatal("unmapped segment should not populate any bucket")
	}
	if len(fr.order) != 0 {
		t.Fatal("unmapped segment should not be recorded in order")
	}
}
