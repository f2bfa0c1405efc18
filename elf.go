// Copyright 2020 Sebastian Lehmann. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

package psoc6flash

import (
	"encoding/binary"
)

var elfMagic = [4]byte{0x7F, 'E', 'L', 'F'}

const (
	elfClass32 = 1
	elfDataLE  = 1

	ptLoad = 1

	ehdr32Size = 52
	phdr32Size = 32
)

// ProgramSegment is one entry of an ELF32 program header table, with
// data zero-filled to p_memsz.
type ProgramSegment struct {
	Type      uint32
	LoadAddr  uint32
	FileSize  uint32
	MemSize   uint32
	Data      []byte
}

// ParseElf32 parses a little-endian ELF32 image and emits one
// ProgramSegment per program-header entry. Only PT_LOAD entries carry
// bytes; others emit an empty Data slice.
func ParseElf32(raw []byte) ([]*ProgramSegment, error) {
	if len(raw) < ehdr32Size {
		return nil, newParseError(Truncated, "file shorter than an ELF32 header")
	}
	if [4]byte{raw[0], raw[1], raw[2], raw[3]} != elfMagic {
		return nil, newParseError(NotElf, "missing 0x7F 'E' 'L' 'F' magic")
	}
	if raw[4] != elfClass32 {
		return nil, newParseError(NotElf32, "EI_CLASS is not ELFCLASS32")
	}
	if raw[5] != elfDataLE {
		return nil, newParseError(NotElf32, "only little-endian ELF32 is supported")
	}

	phoff := binary.LittleEndian.Uint32(raw[28:32])
	phentsize := binary.LittleEndian.Uint16(raw[42:44])
	phnum := binary.LittleEndian.Uint16(raw[44:46])

	if phentsize < phdr32Size {
		return nil, newParseError(Truncated, "program header entry size %d smaller than expected", phentsize)
	}

	segments := make([]*ProgramSegment, 0, phnum)
	for i := uint16(0); i < phnum; i++ {
		start := uint64(phoff) + uint64(i)*uint64(phentsize)
		end := start + phdr32Size
		if end > uint64(len(raw)) {
			return nil, newParseError(Truncated, "program header table extends past end of file")
		}
		ph := raw[start:end]

		seg := &ProgramSegment{
			Type:     binary.LittleEndian.Uint32(ph[0:4]),
			LoadAddr: binary.LittleEndian.Uint32(ph[12:16]), // p_paddr
			FileSize: binary.LittleEndian.Uint32(ph[16:20]),
			MemSize:  binary.LittleEndian.Uint32(ph[20:24]),
		}

		if seg.Type == ptLoad {
			pOffset := binary.LittleEndian.Uint32(ph[4:8])
			fileEnd := uint64(pOffset) + uint64(seg.FileSize)
			if fileEnd > uint64(len(raw)) {
				return nil, newParseError(Truncated, "PT_LOAD segment extends past end of file")
			}
			data := make([]byte, seg.MemSize)
			copy(data, raw[pOffset:fileEnd])
			seg.Data = data
		}

		segments = append(segments, seg)
	}

	return segments, nil
}

// ToSegment converts a PT_LOAD ProgramSegment into a Segment ready for
// classification. Callers must only invoke this for Type == PT_LOAD.
func (p *ProgramSegment) ToSegment() *Segment {
	return newSegment(p.LoadAddr, p.Data)
}

// IsLoad reports whether this program header is a PT_LOAD entry, i.e.
// whether it carries file-backed bytes at all.
func (p *ProgramSegment) IsLoad() bool {
	return p.Type == ptLoad
}
