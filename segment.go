// Copyright 2020 Sebastian Lehmann. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

package psoc6flash

// Segment is a contiguous byte range in target address space, produced
// by a parser and immutable once emitted.
type Segment struct {
	First uint32
	Last  uint32
	Data  []byte
}

// Len returns the number of bytes covered by the segment.
func (s *Segment) Len() uint32 {
	return s.Last - s.First + 1
}

func newSegment(first uint32, data []byte) *Segment {
	return &Segment{
		First: first,
		Last:  first + uint32(len(data)) - 1,
		Data:  data,
	}
}
