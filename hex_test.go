// Copyright 2020 Sebastian Lehmann. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

package psoc6flash

import (
	"bytes"
	"strings"
	"testing"
)

func TestParseHexMinimalRecord(t *testing.T) {
	// E1: one 16-byte data record at 0x0000, all zeros.
	const src = ":1000000000000000000000000000000000000000F0\r\n:00000001FF\r\n"

	segments, err := ParseHex(strings.NewReader(src))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(segments) != 1 {
		t.Fatalf("expected 1 segment, got %d", len(segments))
	}
	seg := segments[0]
	if seg.First != 0 || seg.Last != 15 {
		t.Fatalf("unexpected segment bounds [%d,%d]", seg.First, seg.Last)
	}
	for _, b := range seg.Data {
		if b != 0 {
			t.Fatalf("expected all-zero payload, got %v", seg.Data)
		}
	}
}

func TestHexRoundTrip(t *testing.T) {
	segments := []*Segment{
		newSegment(0x10000000, []byte{1, 2, 3, 4}),
		newSegment(0x10001000, bytes.Repeat([]byte{0xAB}, 200)),
	}

	var buf bytes.Buffer
	if err := SerializeHex(&buf, segments); err != nil {
		t.Fatalf("serialize: %v", err)
	}

	parsed, err := ParseHex(&buf)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(parsed) != len(segments) {
		t.Fatalf("expected %d segments, got %d", len(segments), len(parsed))
	}
	for i, want := range segments {
		got := parsed[i]
		if got.First != want.First || got.Last != want.Last {
			t.Fatalf("segment %d bounds mismatch: got [%d,%d] want [%d,%d]", i, got.First, got.Last, want.First, want.Last)
		}
		if !bytes.Equal(got.Data, want.Data) {
			t.Fatalf("segment %d data mismatch", i)
		}
	}
}

func TestHexChecksumCorruption(t *testing.T) {
	const good = ":1000000000000000000000000000000000000000F0\r\n:00000001FF\r\n"

	// flip a data byte, leaving the checksum stale.
	corrupted := strings.Replace(good, ":1000000000", ":1000000001", 1)

	_, err := ParseHex(strings.NewReader(corrupted))
	if err == nil {
		t.Fatal("expected checksum error, got nil")
	}
	perr, ok := err.(*ParseError)
	if !ok || perr.Kind != HexChecksum {
		t.Fatalf("expected HexChecksum ParseError, got %v", err)
	}
}

func TestHexLineEndingVariants(t *testing.T) {
	lines := []string{
		":1000000000000000000000000000000000000000F0",
		":00000001FF",
	}
	variants := []string{
		strings.Join(lines, "\r\n"),
		strings.Join(lines, "\n"),
		strings.Join(lines, "\r"),
	}
	for _, v := range variants {
		segs, err := ParseHex(strings.NewReader(v))
		if err != nil {
			t.Fatalf("unexpected error for variant %q: %v", v, err)
		}
		if len(segs) != 1 {
			t.Fatalf("expected 1 segment for variant %q, got %d", v, len(segs))
		}
	}
}
