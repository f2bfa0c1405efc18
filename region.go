// Copyright 2020 Sebastian Lehmann. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

package psoc6flash

// RegionTag names one of the PSoC6 address-space regions a segment can
// classify into.
type RegionTag int

const (
	RegionNone RegionTag = iota
	RegionApplicationFlash
	RegionEeprom
	RegionSFlashUserData
	RegionSFlashNAR
	RegionSFlashPublicKey
	RegionSFlashTOC2
	RegionSFlashRTOC2
	RegionSFlash // logical rename target for the five SFlash sub-regions
	RegionXIP
	RegionChecksum
	RegionMetaData
	RegionEFuse
)

func (t RegionTag) String() string {
	switch t {
	case RegionApplicationFlash:
		return "ApplicationFlash"
	case RegionEeprom:
		return "Eeprom"
	case RegionSFlashUserData:
		return "SFlashUserData"
	case RegionSFlashNAR:
		return "SFlashNAR"
	case RegionSFlashPublicKey:
		return "SFlashPublicKey"
	case RegionSFlashTOC2:
		return "SFlashTOC2"
	case RegionSFlashRTOC2:
		return "SFlashRTOC2"
	case RegionSFlash:
		return "SFlash"
	case RegionXIP:
		return "XIP"
	case RegionChecksum:
		return "Checksum"
	case RegionMetaData:
		return "MetaData"
	case RegionEFuse:
		return "eFuse"
	default:
		return "None"
	}
}

// isSFlashSubRegion reports whether tag is one of the five SFlash
// sub-regions that get renamed to the single logical RegionSFlash
// bucket during classification.
func (t RegionTag) isSFlashSubRegion() bool {
	switch t {
	case RegionSFlashUserData, RegionSFlashNAR, RegionSFlashPublicKey, RegionSFlashTOC2, RegionSFlashRTOC2:
		return true
	default:
		return false
	}
}

// MemoryRegion is a static, non-overlapping table entry describing one
// named address range for a device family.
type MemoryRegion struct {
	Tag    RegionTag
	Start  uint32
	Length uint32
}

func (r MemoryRegion) contains(addr uint32) bool {
	return addr >= r.Start && uint64(addr) < uint64(r.Start)+uint64(r.Length)
}

// RowSizePSoC6 is the smallest unit of flash PSoC6 can program.
const RowSizePSoC6 = 512

// psoc6Regions is the static PSoC6 region table, ordered so the
// SFlash sub-regions are contiguous for readability; lookup is a
// linear scan since the table is small and static.
var psoc6Regions = []MemoryRegion{
	{RegionApplicationFlash, 0x10000000, 0x00200000},
	{RegionEeprom, 0x14000000, 0x00008000},
	{RegionSFlashUserData, 0x16000800, 0x00000800},
	{RegionSFlashNAR, 0x16001A00, 0x200},
	{RegionSFlashPublicKey, 0x16005A00, 0xC00},
	{RegionSFlashTOC2, 0x16007C00, 0x200},
	{RegionSFlashRTOC2, 0x16007E00, 0x200},
	{RegionXIP, 0x18000000, 0x78000000},
	{RegionChecksum, 0x90300000, 0x100},
	{RegionMetaData, 0x90500000, 0x100},
	{RegionEFuse, 0x90700000, 0x1000},
}

// regionOf returns the first region containing addr, or RegionNone if
// the address is unmapped.
func regionOf(addr uint32) RegionTag {
	for _, r := range psoc6Regions {
		if r.contains(addr) {
			return r.Tag
		}
	}
	return RegionNone
}

// DeviceFamily bundles the family-specific constants the Programmer
// needs beyond the region table: SROM addressing and the AP-MEM
// register locations of the PSoC6 Test Controller.
type DeviceFamily struct {
	FamilyID       uint16
	Name           string
	TestCtrlAddr   uint32
	SromParamsAddr uint32
	SromDataAddr   uint32
	SromTriggerReg uint32
	RowSize        uint32
	SectorSize     uint32
}

// psoc6 is the only supported family; the spec's Non-goals exclude
// multi-target vendor support.
var psoc6 = DeviceFamily{
	FamilyID:       0x0100,
	Name:           "PSoC6",
	TestCtrlAddr:   0x40260100,
	SromParamsAddr: 0x08000FF0,
	SromDataAddr:   0x08000400,
	SromTriggerReg: 0x40261000,
	RowSize:        RowSizePSoC6,
	SectorSize:     256 * RowSizePSoC6,
}
