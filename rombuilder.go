// Package ggbasm builds Game Boy cartridge images. A RomBuilder composes
// instructions parsed from assembly source files with raw byte blocks
// produced by the host program, then compiles them into a contiguous ROM
// of 16 KiB banks with a valid cartridge header.
package ggbasm

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/rukai/ggbasm/asm"
)

// RomBankSize is the size of one switchable ROM bank.
const RomBankSize = 0x4000

// maxRomSize is the largest image an MBC can address (8 MB, 512 banks).
const maxRomSize = RomBankSize * 512

// A segment is a chunk of ROM content placed at a fixed address within
// the image.
type segment interface {
	address() uint32
}

// An instSegment holds parsed instructions whose sizes were determined
// in pass 1 but whose operands are encoded in pass 2.
type instSegment struct {
	addr   uint32
	insts  []asm.Instruction
	source string
}

func (s *instSegment) address() uint32 { return s.addr }

// A byteSegment holds raw bytes supplied by the host.
type byteSegment struct {
	addr uint32
	b    []byte
}

func (s *byteSegment) address() uint32 { return s.addr }

// A headerSegment marks the cartridge header at 0x0104..0x014F.
type headerSegment struct {
	addr   uint32
	header Header
}

func (s *headerSegment) address() uint32 { return s.addr }

// A vectorSegment holds the RST/IRQ vector table and the entry point
// jump at 0x0000..0x0103.
type vectorSegment struct{}

func (s *vectorSegment) address() uint32 { return 0 }

// bankAddress converts a linear ROM offset to the CPU-visible address:
// bank 0 is mapped at 0x0000-0x3FFF, every other bank at 0x4000-0x7FFF.
func bankAddress(linear uint32) uint16 {
	if linear < RomBankSize {
		return uint16(linear)
	}
	return uint16(RomBankSize + linear%RomBankSize)
}

func bankOf(linear uint32) uint32 {
	return linear / RomBankSize
}

// A RomBuilder tracks the state of a ROM as it is constructed. It keeps
// a cursor into the banked address space and places each added block at
// the cursor. The cursor only ever advances; gaps are zero-filled at
// compile time.
type RomBuilder struct {
	segments []segment
	address  uint32
	symbols  map[string]int64
	header   *Header
	out      io.Writer
	verbose  bool
}

// NewRomBuilder creates a RomBuilder with the cursor at bank 0,
// offset 0.
func NewRomBuilder() *RomBuilder {
	return &RomBuilder{
		symbols: make(map[string]int64),
	}
}

// SetVerbose directs diagnostic output describing placement and symbol
// binding to w.
func (b *RomBuilder) SetVerbose(w io.Writer) {
	b.out = w
	b.verbose = w != nil
}

func (b *RomBuilder) log(format string, args ...any) {
	if b.verbose {
		fmt.Fprintf(b.out, format, args...)
		fmt.Fprintln(b.out)
	}
}

// GlobalAddress returns the cursor's linear offset within the ROM.
func (b *RomBuilder) GlobalAddress() uint32 {
	return b.address
}

// BankAddress returns the cursor's CPU-visible address within the
// current bank.
func (b *RomBuilder) BankAddress() uint16 {
	return bankAddress(b.address)
}

// Bank returns the bank the cursor is in.
func (b *RomBuilder) Bank() uint32 {
	return bankOf(b.address)
}

// Symbols returns a copy of the identifiers bound so far: labels, EQU
// constants and named byte blocks.
func (b *RomBuilder) Symbols() map[string]int64 {
	out := make(map[string]int64, len(b.symbols))
	for k, v := range b.symbols {
		out[k] = v
	}
	return out
}

func (b *RomBuilder) bind(name string, value int64, source string, line int) error {
	if _, found := b.symbols[name]; found {
		return &asm.Error{
			Kind: asm.ErrDuplicateLabel,
			Msg:  fmt.Sprintf("identifier '%s' is used twice: one usage occurred in %s on line %d", name, source, line),
		}
	}
	b.symbols[name] = value
	b.log("%-20s = 0x%04x", name, value)
	return nil
}

// AddBasicInterruptsAndJumps emits jump data for 0x0000 through 0x0103:
// a jp 0x0100 at each RST and interrupt vector, and a nop; jp 0x0150
// entry point at 0x0100. The cursor must be at (0, 0x0000).
func (b *RomBuilder) AddBasicInterruptsAndJumps() error {
	if b.address != 0 {
		return asm.Errorf(asm.ErrAdvance, "attempted to add interrupt and jump data when address != 0x0000")
	}
	b.segments = append(b.segments, &vectorSegment{})
	b.address = 0x0104
	b.log("%04x  interrupt and jump vectors", 0)
	return nil
}

// AddHeader emits the cartridge header at 0x0104..0x014F. The cursor
// must be at (0, 0x0104). The title is truncated or zero-padded to 11
// bytes; the checksums are stamped after the whole image is assembled.
func (b *RomBuilder) AddHeader(header Header) error {
	if b.address != 0x0104 {
		return asm.Errorf(asm.ErrAdvance, "attempted to add header data when address != 0x0104")
	}
	if len(header.Licence) > 2 {
		return asm.Errorf(asm.ErrRange, "header licence was larger than 2 bytes")
	}
	if len(header.Title) > 11 {
		header.Title = header.Title[:11]
	}
	b.segments = append(b.segments, &headerSegment{addr: b.address, header: header})
	b.header = &header
	b.address = 0x0150
	b.log("%04x  cartridge header '%s'", 0x104, header.Title)
	return nil
}

// AdvanceAddress moves the cursor to the given bank and CPU-visible
// offset. The new position must not precede the current one, and the
// offset must lie inside the bank's address window. The skipped range
// is zero-filled in the compiled image.
func (b *RomBuilder) AdvanceAddress(bank uint32, offset uint16) error {
	var linear uint32
	switch {
	case bank == 0 && offset < RomBankSize:
		linear = uint32(offset)
	case bank > 0 && offset >= RomBankSize && offset < 2*RomBankSize:
		linear = bank*RomBankSize + uint32(offset) - RomBankSize
	default:
		return asm.Errorf(asm.ErrAdvance, "offset 0x%04x is outside bank %d's address window", offset, bank)
	}
	if linear >= maxRomSize {
		return asm.Errorf(asm.ErrAdvance, "bank %d offset 0x%04x is beyond the largest addressable ROM", bank, offset)
	}
	if linear < b.address {
		return asm.Errorf(asm.ErrAdvance, "attempted to advance to a previous address: 0x%06x < 0x%06x", linear, b.address)
	}
	b.address = linear
	return nil
}

// checkBankCrossing verifies that the block [start, end) stays inside a
// single bank, then moves the cursor to end.
func (b *RomBuilder) checkBankCrossing(start, end uint32, what string) error {
	if end > start && bankOf(start) != bankOf(end-1) {
		return asm.Errorf(asm.ErrBankOverflow, "the added %s cross bank boundaries: 0x%06x..0x%06x", what, start, end)
	}
	b.address = end
	return nil
}

// AddBytes places a raw byte block at the cursor.
func (b *RomBuilder) AddBytes(data []byte) error {
	start := b.address
	b.segments = append(b.segments, &byteSegment{addr: start, b: data})
	b.log("%06x  %d bytes", start, len(data))
	return b.checkBankCrossing(start, start+uint32(len(data)), "bytes")
}

// AddNamedBytes places a raw byte block at the cursor and binds name to
// its address so assembly code can reference it.
func (b *RomBuilder) AddNamedBytes(name string, data []byte) error {
	if err := b.bind(name, int64(bankAddress(b.address)), "data generated by host code", 0); err != nil {
		return err
	}
	return b.AddBytes(data)
}

// AddAsmFile assembles the file at path and places its output at the
// cursor.
func (b *RomBuilder) AddAsmFile(path string) error {
	insts, err := asm.ParseFile(path)
	if err != nil {
		return err
	}
	return b.addInstructions(insts, fmt.Sprintf("asm file %s", path))
}

// AddAsmReader assembles source read from r. The name appears in error
// messages.
func (b *RomBuilder) AddAsmReader(r io.Reader, name string) error {
	insts, err := asm.Parse(r, name)
	if err != nil {
		return err
	}
	return b.addInstructions(insts, fmt.Sprintf("asm file %s", name))
}

// AddInstructions places instructions built programmatically by the
// host.
func (b *RomBuilder) AddInstructions(insts []asm.Instruction) error {
	return b.addInstructions(insts, "instructions generated by host code")
}

// addInstructions runs pass 1 over the instructions: labels are bound
// to the running cursor, EQU constants are resolved eagerly in source
// order, and every other statement advances the cursor by its encoded
// size.
func (b *RomBuilder) addInstructions(insts []asm.Instruction, source string) error {
	start := b.address
	cur := b.address
	for i := range insts {
		inst := &insts[i]
		switch inst.Op {
		case asm.OpLabel:
			if err := b.bind(inst.Name, int64(bankAddress(cur)), source, inst.Line); err != nil {
				return err
			}

		case asm.OpEqu:
			v, err := inst.Expr.Eval(b.symbols)
			if err != nil {
				return asm.Locate(err, inst.File, inst.Line)
			}
			if err := b.bind(inst.Name, v, source, inst.Line); err != nil {
				return err
			}

		case asm.OpAdvanceAddress:
			v, err := inst.Expr.Eval(b.symbols)
			if err != nil {
				return asm.Locate(err, inst.File, inst.Line)
			}
			offset := bankAddress(cur)
			end := uint32(RomBankSize)
			if bankOf(cur) > 0 {
				end = 2 * RomBankSize
			}
			if v < int64(offset) || v >= int64(end) {
				return asm.Locate(asm.Errorf(asm.ErrAdvance,
					"cannot advance to 0x%04x from 0x%04x", v, offset), inst.File, inst.Line)
			}
			inst.Target = uint16(v)
			cur += uint32(v) - uint32(offset)

		default:
			cur += uint32(inst.EncodedLen())
		}
	}

	b.segments = append(b.segments, &instSegment{addr: start, insts: insts, source: source})
	b.log("%06x  %d statements from %s", start, len(insts), source)
	return b.checkBankCrossing(start, cur, "instructions")
}

// AddImage converts the PNG at path to Game Boy tile data, places it at
// the cursor, and binds name to its address.
func (b *RomBuilder) AddImage(path string, name string, colorMap map[Color]uint8) error {
	file, err := os.Open(path)
	if err != nil {
		return asm.Errorf(asm.ErrIO, "cannot read image file %s: %v", path, err)
	}
	defer file.Close()

	data, err := TilesFromPNG(file, colorMap)
	if err != nil {
		return err
	}
	return b.AddNamedBytes(name, data)
}

// AddAudioFile converts the audio text file at path into sound register
// data, placing it at the cursor. Labels defined in the file join the
// symbol table.
func (b *RomBuilder) AddAudioFile(path string) error {
	text, err := os.ReadFile(path)
	if err != nil {
		return asm.Errorf(asm.ErrIO, "cannot read audio file %s: %v", path, err)
	}
	lines, err := ParseAudioText(string(text))
	if err != nil {
		return asm.Locate(err, path, 0)
	}
	insts, err := GenerateAudioData(lines)
	if err != nil {
		return asm.Locate(err, path, 0)
	}
	return b.addInstructions(insts, fmt.Sprintf("audio file %s", path))
}

// PrintSymbolsByValue writes the bound identifiers sorted by value.
func (b *RomBuilder) PrintSymbolsByValue(w io.Writer) {
	type sym struct {
		name  string
		value int64
	}
	sorted := make([]sym, 0, len(b.symbols))
	for name, value := range b.symbols {
		sorted = append(sorted, sym{name, value})
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].value < sorted[j].value })
	for _, s := range sorted {
		fmt.Fprintf(w, "0x%04x - %s\n", s.value, s.name)
	}
}

// Compile resolves all symbols, encodes every placed block, fills gaps
// with zeroes, pads the image to a 16 KiB multiple, and stamps the
// header checksums.
func (b *RomBuilder) Compile() ([]byte, error) {
	if len(b.segments) == 0 {
		return nil, asm.Errorf(asm.ErrIO, "no instructions or binary data was added to the RomBuilder")
	}

	finalSize := (b.address + RomBankSize - 1) / RomBankSize * RomBankSize
	if finalSize == 0 {
		finalSize = RomBankSize
	}
	if finalSize > maxRomSize {
		return nil, asm.Errorf(asm.ErrRange,
			"ROM is too big, there is no MBC that supports a ROM size larger than 8MB, raw ROM size was %d", b.address)
	}
	sizeFactor := romSizeFactor(finalSize)

	rom := make([]byte, 0, finalSize)
	for _, seg := range b.segments {
		// Zero-fill the gap up to the segment's placement address.
		if gap := int(seg.address()) - len(rom); gap > 0 {
			rom = append(rom, make([]byte, gap)...)
		}

		switch s := seg.(type) {
		case *vectorSegment:
			// RST vectors 0x00..0x38 and interrupt vectors 0x40..0x60
			// all jump to the entry point.
			for i := 0; i < 13; i++ {
				rom = append(rom, 0xC3, 0x00, 0x01, 0x00, 0x00, 0x00, 0x00, 0x00)
			}
			rom = append(rom, make([]byte, 0x100-13*8)...)
			rom = append(rom, 0x00, 0xC3, 0x50, 0x01)

		case *headerSegment:
			s.header.write(&rom, sizeFactor)

		case *byteSegment:
			rom = append(rom, s.b...)

		case *instSegment:
			for i := range s.insts {
				inst := &s.insts[i]
				pc := bankAddress(uint32(len(rom)))
				if err := inst.Encode(&rom, b.symbols, pc); err != nil {
					return nil, asm.Locate(err, inst.File, inst.Line)
				}
			}
		}
	}

	rom = append(rom, make([]byte, int(finalSize)-len(rom))...)

	if b.header != nil {
		if err := b.header.CartridgeType.validateSize(sizeFactor, finalSize); err != nil {
			return nil, err
		}
		stampGlobalChecksum(rom)
	}

	b.log("compiled %d byte ROM (%d banks)", len(rom), len(rom)/RomBankSize)
	return rom, nil
}

// WriteToDisk compiles the ROM and writes it to path.
func (b *RomBuilder) WriteToDisk(path string) error {
	rom, err := b.Compile()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, rom, 0644); err != nil {
		return asm.Errorf(asm.ErrIO, "cannot write %s: %v", path, err)
	}
	return nil
}

// romSizeFactor returns the header ROM-size code for an image of the
// given size: (32 KiB << factor) is the first size that fits.
func romSizeFactor(size uint32) byte {
	var factor byte
	for s := uint32(2 * RomBankSize); s < size; s <<= 1 {
		factor++
	}
	return factor
}
