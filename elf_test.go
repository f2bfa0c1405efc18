// Copyright 2020 Sebastian Lehmann. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

package psoc6flash

import (
	"bytes"
	"encoding/binary"
	"testing"
)

// buildElf32 assembles a minimal little-endian ELF32 image with one
// program header, for E3-style tests. vaddr and paddr are written to
// their real, distinct Elf32_Phdr offsets (8 and 12 respectively) so a
// vaddr != paddr image actually exercises which one the loader reads.
func buildElf32(t *testing.T, vaddr, paddr, filesz, memsz uint32, data []byte) []byte {
	t.Helper()

	const phoff = ehdr32Size
	fileOff := uint32(phoff + phdr32Size)

	ehdr := make([]byte, ehdr32Size)
	copy(ehdr[0:4], elfMagic[:])
	ehdr[4] = elfClass32
	ehdr[5] = elfDataLE
	binary.LittleEndian.PutUint32(ehdr[28:32], phoff)
	binary.LittleEndian.PutUint16(ehdr[42:44], phdr32Size)
	binary.LittleEndian.PutUint16(ehdr[44:46], 1)

	phdr := make([]byte, phdr32Size)
	binary.LittleEndian.PutUint32(phdr[0:4], ptLoad)
	binary.LittleEndian.PutUint32(phdr[4:8], fileOff)
	binary.LittleEndian.PutUint32(phdr[8:12], vaddr)
	binary.LittleEndian.PutUint32(phdr[12:16], paddr)
	binary.LittleEndian.PutUint32(phdr[16:20], filesz)
	binary.LittleEndian.PutUint32(phdr[20:24], memsz)

	var buf bytes.Buffer
	buf.Write(ehdr)
	buf.Write(phdr)
	buf.Write(data[:filesz])
	return buf.Bytes()
}

func TestParseElf32ZeroFill(t *testing.T) {
	// E3: p_paddr=0x10000000, p_filesz=4, p_memsz=16, data=DE AD BE EF.
	// p_vaddr is deliberately different so the test fails if the loader
	// ever reads vaddr instead of paddr.
	raw := buildElf32(t, 0x20000000, 0x10000000, 4, 16, []byte{0xDE, 0xAD, 0xBE, 0xEF})

	segments, err := ParseElf32(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(segments) != 1 {
		t.Fatalf("expected 1 program segment, got %d", len(segments))
	}
	seg := segments[0]
	if !seg.IsLoad() {
		t.Fatal("expected PT_LOAD segment")
	}
	if len(seg.Data) != 16 {
		t.Fatalf("expected 16-byte data, got %d", len(seg.Data))
	}
	want := []byte{0xDE, 0xAD, 0xBE, 0xEF, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}
	if !bytes.Equal(seg.Data, want) {
		t.Fatalf("zero-fill mismatch: got %x want %x", seg.Data, want)
	}

	asSeg := seg.ToSegment()
	if asSeg.First != 0x10000000 || asSeg.Last != 0x1000000F {
		t.Fatalf("unexpected segment bounds [%x,%x]", asSeg.First, asSeg.Last)
	}
}

func TestParseElf32RejectsBadMagic(t *testing.T) {
	raw := make([]byte, ehdr32Size)
	_, err := ParseElf32(raw)
	perr, ok := err.(*ParseError)
	if !ok || perr.Kind != NotElf {
		t.Fatalf("expected NotElf ParseError, got %v", err)
	}
}

func TestParseElf32RejectsTruncated(t *testing.T) {
	raw := make([]byte, 10)
	_, err := ParseElf32(raw)
	perr, ok := err.(*ParseError)
	if !ok || perr.Kind != Truncated {
		t.Fatalf("expected Truncated ParseError, got %v", err)
	}
}
