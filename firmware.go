// Copyright 2020 Sebastian Lehmann. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

package psoc6flash

import "io"

// FirmwareRecord groups classified segments into region buckets.
// List-valued buckets hold segments in insertion order; single-valued
// buckets hold at most one segment, the most recently classified one.
type FirmwareRecord struct {
	ApplicationFlash []*Segment
	EccFlash         []*Segment
	Eeprom           []*Segment
	SFlash           []*Segment
	XIP              []*Segment

	NVuser          *Segment
	NVWO            *Segment
	Checksum        *Segment
	FlashProtection *Segment
	MetaData        *Segment
	ChipProtection  *Segment
	EFuse           *Segment

	// order holds one tag per currently-classified segment/slot, in the
	// sequence ToHex should emit them. Classify appends to it; Merge
	// resyncs it afterwards so its length always tracks the live
	// segment count.
	order []RegionTag
}

// NewFirmwareRecord returns an empty record ready for Classify calls.
func NewFirmwareRecord() *FirmwareRecord {
	return &FirmwareRecord{}
}

// Classify locates seg's region by its start address and appends it to
// the matching bucket. Segments in unmapped regions are silently
// dropped.
func (fr *FirmwareRecord) Classify(seg *Segment) {
	tag := regionOf(seg.First)
	logicalTag := tag
	if tag.isSFlashSubRegion() {
		logicalTag = RegionSFlash
	}

	switch logicalTag {
	case RegionApplicationFlash:
		fr.ApplicationFlash = append(fr.ApplicationFlash, seg)
	case RegionEeprom:
		fr.Eeprom = append(fr.Eeprom, seg)
	case RegionSFlash:
		fr.SFlash = append(fr.SFlash, seg)
	case RegionXIP:
		fr.XIP = append(fr.XIP, seg)
	case RegionChecksum:
		fr.Checksum = seg
	case RegionMetaData:
		fr.MetaData = seg
	case RegionEFuse:
		fr.EFuse = seg
	case RegionNone:
		logger.Debugf("dropping segment at 0x%08x: unmapped region", seg.First)
		return
	default:
		logger.Debugf("dropping segment at 0x%08x: no bucket for region %s", seg.First, logicalTag)
		return
	}

	fr.order = append(fr.order, logicalTag)
}

// Merge runs the adjacent-row merger over every list bucket, aligned to
// rowSize. It mutates the record in place and returns it for
// chaining.
func (fr *FirmwareRecord) Merge(rowSize uint32) *FirmwareRecord {
	fr.ApplicationFlash = mergeBucket(fr.ApplicationFlash, rowSize)
	fr.EccFlash = mergeBucket(fr.EccFlash, rowSize)
	fr.Eeprom = mergeBucket(fr.Eeprom, rowSize)
	fr.SFlash = mergeBucket(fr.SFlash, rowSize)
	fr.XIP = mergeBucket(fr.XIP, rowSize)
	fr.trimOrder()
	return fr
}

// trimOrder resyncs order to the current bucket sizes after a merge
// has consumed segments. It keeps the earliest occurrence of each tag
// and drops the rest, so order's relative emission sequence survives
// merging even though its length shrinks.
func (fr *FirmwareRecord) trimOrder() {
	want := map[RegionTag]int{
		RegionApplicationFlash: len(fr.ApplicationFlash),
		RegionEeprom:           len(fr.Eeprom),
		RegionSFlash:           len(fr.SFlash),
		RegionXIP:              len(fr.XIP),
	}
	if fr.Checksum != nil {
		want[RegionChecksum] = 1
	}
	if fr.MetaData != nil {
		want[RegionMetaData] = 1
	}
	if fr.EFuse != nil {
		want[RegionEFuse] = 1
	}

	seen := make(map[RegionTag]int, len(want))
	trimmed := make([]RegionTag, 0, len(fr.order))
	for _, tag := range fr.order {
		if seen[tag] < want[tag] {
			trimmed = append(trimmed, tag)
			seen[tag]++
		}
	}
	fr.order = trimmed
}

// segmentsByOrder walks order and returns the segment each entry
// currently refers to, threading a per-tag cursor through each
// list-valued bucket so repeated tags consume it in append order.
func (fr *FirmwareRecord) segmentsByOrder() []*Segment {
	cursor := make(map[RegionTag]int, len(fr.order))
	out := make([]*Segment, 0, len(fr.order))
	for _, tag := range fr.order {
		switch tag {
		case RegionApplicationFlash:
			out = append(out, fr.ApplicationFlash[cursor[tag]])
			cursor[tag]++
		case RegionEeprom:
			out = append(out, fr.Eeprom[cursor[tag]])
			cursor[tag]++
		case RegionSFlash:
			out = append(out, fr.SFlash[cursor[tag]])
			cursor[tag]++
		case RegionXIP:
			out = append(out, fr.XIP[cursor[tag]])
			cursor[tag]++
		case RegionChecksum:
			out = append(out, fr.Checksum)
		case RegionMetaData:
			out = append(out, fr.MetaData)
		case RegionEFuse:
			out = append(out, fr.EFuse)
		}
	}
	return out
}

// ToHex re-serializes the record back to Intel-HEX text, emitting
// segments in the sequence recorded by order rather than bucket
// declaration order.
func (fr *FirmwareRecord) ToHex(w io.Writer) error {
	return SerializeHex(w, fr.segmentsByOrder())
}

// mergeBucket implements the adjacent-row merger for one list-valued
// bucket. Segments must already be in insertion order. The merge scan
// walks pairs in reverse so that removing a consumed segment does not
// invalidate the index of segments not yet visited.
func mergeBucket(segs []*Segment, rowSize uint32) []*Segment {
	if len(segs) < 2 {
		return segs
	}
	mask := ^(rowSize - 1)

	for i := len(segs) - 1; i > 0; i-- {
		prev := segs[i-1]
		curr := segs[i]

		prevFirstRow := prev.First & mask
		prevLastRow := prev.Last & mask
		currFirstRow := curr.First & mask
		currLastRow := curr.Last & mask

		switch {
		case currFirstRow >= prevLastRow && currFirstRow-prevLastRow <= rowSize:
			segs[i-1] = mergeByAddress(prev, curr)
			segs = append(segs[:i], segs[i+1:]...)

		case prevFirstRow >= currLastRow && prevFirstRow-currLastRow <= rowSize:
			segs[i-1] = mergeByAddress(curr, prev)
			segs = append(segs[:i], segs[i+1:]...)
		}
	}
	return segs
}

// mergeByAddress concatenates the two segments in ascending address
// order, zero-filling the gap between them.
func mergeByAddress(a, b *Segment) *Segment {
	lo, hi := a, b
	if hi.First < lo.First {
		lo, hi = hi, lo
	}
	gap := int(hi.First) - int(lo.Last) - 1
	data := make([]byte, 0, len(lo.Data)+gap+len(hi.Data))
	data = append(data, lo.Data...)
	for i := 0; i < gap; i++ {
		data = append(data, 0x00)
	}
	data = append(data, hi.Data...)
	return newSegment(lo.First, data)
}
