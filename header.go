package ggbasm

import "github.com/rukai/ggbasm/asm"

// nintendoLogo is the 48-byte bitmap the boot ROM compares against; a
// cartridge with any other value at 0x0104..0x0133 refuses to boot.
var nintendoLogo = [0x30]byte{
	0xCE, 0xED, 0x66, 0x66, 0xCC, 0x0D, 0x00, 0x0B, 0x03, 0x73, 0x00,
	0x83, 0x00, 0x0C, 0x00, 0x0D, 0x00, 0x08, 0x11, 0x1F, 0x88, 0x89,
	0x00, 0x0E, 0xDC, 0xCC, 0x6E, 0xE6, 0xDD, 0xDD, 0xD9, 0x99, 0xBB,
	0xBB, 0x67, 0x63, 0x6E, 0x0E, 0xEC, 0xCC, 0xDD, 0xDC, 0x99, 0x9F,
	0xBB, 0xB9, 0x33, 0x3E,
}

// NintendoLogo returns the canonical logo bitmap stored at
// 0x0104..0x0133 of every bootable cartridge.
func NintendoLogo() []byte {
	logo := nintendoLogo
	return logo[:]
}

// ColorSupport declares a cartridge's Game Boy Color capability.
type ColorSupport byte

const (
	ColorUnsupported ColorSupport = iota
	ColorBackwardsCompatible
	ColorOnly
)

func (c ColorSupport) byte() byte {
	switch c {
	case ColorBackwardsCompatible:
		return 0x80
	case ColorOnly:
		return 0xC0
	default:
		return 0x00
	}
}

// CartridgeType identifies the mapper hardware declared at 0x0147.
type CartridgeType byte

const (
	RomOnly              CartridgeType = 0x00
	Mbc1                 CartridgeType = 0x01
	Mbc1Ram              CartridgeType = 0x02
	Mbc1RamBattery       CartridgeType = 0x03
	Mbc2                 CartridgeType = 0x05
	Mbc2Battery          CartridgeType = 0x06
	RomRam               CartridgeType = 0x08
	RomRamBattery        CartridgeType = 0x09
	Mmm01                CartridgeType = 0x0B
	Mmm01Ram             CartridgeType = 0x0C
	Mmm01RamBattery      CartridgeType = 0x0D
	Mbc3TimerBattery     CartridgeType = 0x0F
	Mbc3TimerRamBattery  CartridgeType = 0x10
	Mbc3                 CartridgeType = 0x11
	Mbc3Ram              CartridgeType = 0x12
	Mbc3RamBattery       CartridgeType = 0x13
	Mbc5                 CartridgeType = 0x19
	Mbc5Ram              CartridgeType = 0x1A
	Mbc5RamBattery       CartridgeType = 0x1B
	Mbc5Rumble           CartridgeType = 0x1C
	Mbc5RumbleRam        CartridgeType = 0x1D
	Mbc5RumbleRamBattery CartridgeType = 0x1E
	PocketCamera         CartridgeType = 0xFC
	HuC3                 CartridgeType = 0xFE
	HuC1RamBattery       CartridgeType = 0xFF
)

func (c CartridgeType) String() string {
	switch c {
	case RomOnly:
		return "ROM only"
	case Mbc1, Mbc1Ram, Mbc1RamBattery:
		return "MBC1"
	case Mbc2, Mbc2Battery:
		return "MBC2"
	case RomRam, RomRamBattery:
		return "ROM+RAM"
	case Mmm01, Mmm01Ram, Mmm01RamBattery:
		return "MMM01"
	case Mbc3TimerBattery, Mbc3TimerRamBattery, Mbc3, Mbc3Ram, Mbc3RamBattery:
		return "MBC3"
	case Mbc5, Mbc5Ram, Mbc5RamBattery, Mbc5Rumble, Mbc5RumbleRam, Mbc5RumbleRamBattery:
		return "MBC5"
	case PocketCamera:
		return "Pocket Camera"
	case HuC3:
		return "HuC3"
	case HuC1RamBattery:
		return "HuC1"
	default:
		return "unknown"
	}
}

// maxSizeFactor returns the largest ROM-size code the mapper supports,
// or -1 when no limit is known.
func (c CartridgeType) maxSizeFactor() int {
	switch c {
	case RomOnly, RomRam, RomRamBattery:
		return 0
	case Mbc1, Mbc1Ram, Mbc1RamBattery,
		Mbc3TimerBattery, Mbc3TimerRamBattery, Mbc3, Mbc3Ram, Mbc3RamBattery,
		HuC1RamBattery:
		return 6
	case Mbc2, Mbc2Battery:
		return 3
	case Mbc5, Mbc5Ram, Mbc5RamBattery, Mbc5Rumble, Mbc5RumbleRam, Mbc5RumbleRamBattery,
		PocketCamera:
		return 8
	default:
		return -1
	}
}

func (c CartridgeType) validateSize(factor byte, size uint32) error {
	max := c.maxSizeFactor()
	if max >= 0 && int(factor) > max {
		return asm.Errorf(asm.ErrRange,
			"ROM is too big, %s supports at most %d bytes but the ROM is %d bytes",
			c, (2*RomBankSize)<<max, size)
	}
	return nil
}

// RamType identifies the cartridge RAM declared at 0x0149.
type RamType byte

const (
	RamNone RamType = iota
	RamMbc2
	Ram2KB
	Ram8KB
	Ram32KB
)

func (r RamType) byte() byte {
	switch r {
	case Ram2KB:
		return 1
	case Ram8KB:
		return 2
	case Ram32KB:
		return 3
	default:
		return 0
	}
}

// A Header carries the cartridge metadata stored at 0x0104..0x014F.
type Header struct {
	// Title is stored as 11 ASCII bytes, zero padded.
	Title        string
	ColorSupport ColorSupport
	// Licence is the two character new-licensee code.
	Licence       string
	SGBSupport    bool
	CartridgeType CartridgeType
	RamType       RamType
	Japanese      bool
	Version       byte
}

// write appends the header bytes for 0x0104..0x014F to rom. The global
// checksum bytes are left zero; they are stamped once the whole image
// exists.
func (h *Header) write(rom *[]byte, sizeFactor byte) {
	*rom = append(*rom, nintendoLogo[:]...)

	title := []byte(h.Title)
	if len(title) > 11 {
		title = title[:11]
	}
	*rom = append(*rom, title...)
	*rom = append(*rom, make([]byte, 15-len(title))...)
	*rom = append(*rom, h.ColorSupport.byte())

	*rom = append(*rom, []byte(h.Licence)...)
	*rom = append(*rom, make([]byte, 2-len(h.Licence))...)

	if h.SGBSupport {
		*rom = append(*rom, 0x03)
	} else {
		*rom = append(*rom, 0x00)
	}
	*rom = append(*rom, byte(h.CartridgeType))
	*rom = append(*rom, sizeFactor)
	*rom = append(*rom, h.RamType.byte())
	if h.Japanese {
		*rom = append(*rom, 0x00)
	} else {
		*rom = append(*rom, 0x01)
	}
	// The new licensee code is in use, so the old one is fixed at 0x33.
	*rom = append(*rom, 0x33)
	*rom = append(*rom, h.Version)

	*rom = append(*rom, complementCheck(*rom))

	// Global checksum placeholder.
	*rom = append(*rom, 0x00, 0x00)
}

// complementCheck computes the header complement check over
// 0x0134..0x014C so that the bytes sum with it and 0x19 to zero.
func complementCheck(rom []byte) byte {
	var checksum byte
	for _, v := range rom[0x0134:0x014D] {
		checksum -= v + 1
	}
	return checksum
}

// stampGlobalChecksum writes the big-endian 16-bit sum of every ROM
// byte except the checksum field itself into 0x014E..0x014F.
func stampGlobalChecksum(rom []byte) {
	var sum uint16
	for i, v := range rom {
		if i == 0x014E || i == 0x014F {
			continue
		}
		sum += uint16(v)
	}
	rom[0x014E] = byte(sum >> 8)
	rom[0x014F] = byte(sum)
}
