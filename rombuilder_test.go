package ggbasm

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/rukai/ggbasm/asm"
)

func testHeader() Header {
	return Header{
		Title:         "TEST",
		CartridgeType: RomOnly,
	}
}

func checkKind(t *testing.T, err error, kind asm.ErrorKind) {
	t.Helper()
	if err == nil {
		t.Fatal("expected an error, got none")
	}
	var asmErr *asm.Error
	if !errors.As(err, &asmErr) {
		t.Fatalf("expected *asm.Error, got %T (%v)", err, err)
	}
	if asmErr.Kind != kind {
		t.Errorf("expected %v, got %v (%v)", kind, asmErr.Kind, err)
	}
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatal(err)
	}
}

func TestEmptyBank0Rom(t *testing.T) {
	b := NewRomBuilder()
	must(t, b.AddBasicInterruptsAndJumps())
	must(t, b.AddHeader(testHeader()))
	must(t, b.AdvanceAddress(0, 0x150))
	must(t, b.AddBytes(make([]byte, 0x2EB0)))

	rom, err := b.Compile()
	must(t, err)

	if len(rom) != 0x4000 {
		t.Fatalf("rom is %d bytes, expected 16384", len(rom))
	}
	if rom[0x100] != 0x00 || rom[0x101] != 0xC3 || rom[0x102] != 0x50 || rom[0x103] != 0x01 {
		t.Errorf("entry point is % X, expected 00 C3 50 01", rom[0x100:0x104])
	}
	if !bytes.Equal(rom[0x104:0x134], NintendoLogo()) {
		t.Error("logo does not match the canonical sequence")
	}
	// Every RST and interrupt vector jumps to the entry point.
	for v := 0; v < 13; v++ {
		if !bytes.Equal(rom[v*8:v*8+4], []byte{0xC3, 0x00, 0x01, 0x00}) {
			t.Errorf("vector 0x%02x is % X", v*8, rom[v*8:v*8+4])
		}
	}
}

func TestForwardReference(t *testing.T) {
	b := NewRomBuilder()
	must(t, b.AdvanceAddress(0, 0x150))
	must(t, b.AddAsmReader(strings.NewReader("\tjp later\nlater:\n\tnop\n"), "test.asm"))

	if got := b.Symbols()["later"]; got != 0x153 {
		t.Errorf("later = 0x%x, expected 0x153", got)
	}

	rom, err := b.Compile()
	must(t, err)
	if !bytes.Equal(rom[0x150:0x154], []byte{0xC3, 0x53, 0x01, 0x00}) {
		t.Errorf("code is % X, expected C3 53 01 00", rom[0x150:0x154])
	}
}

func TestBankCrossingRejected(t *testing.T) {
	b := NewRomBuilder()
	must(t, b.AdvanceAddress(0, 0x3FFE))
	checkKind(t, b.AddBytes([]byte{1, 2, 3, 4}), asm.ErrBankOverflow)
}

func TestBlockEndingExactlyAtBankBoundary(t *testing.T) {
	b := NewRomBuilder()
	must(t, b.AdvanceAddress(0, 0x3FFC))
	must(t, b.AddBytes([]byte{1, 2, 3, 4}))
	if b.GlobalAddress() != 0x4000 {
		t.Errorf("cursor is 0x%x, expected 0x4000", b.GlobalAddress())
	}
}

func TestJrRange(t *testing.T) {
	b := NewRomBuilder()
	must(t, b.AdvanceAddress(0, 0x150))
	must(t, b.AddAsmReader(strings.NewReader("start:\n\tjr start\n"), "test.asm"))
	rom, err := b.Compile()
	must(t, err)
	if !bytes.Equal(rom[0x150:0x152], []byte{0x18, 0xFE}) {
		t.Errorf("code is % X, expected 18 FE", rom[0x150:0x152])
	}

	b = NewRomBuilder()
	must(t, b.AdvanceAddress(0, 0x150))
	must(t, b.AddAsmReader(strings.NewReader("\tjr target\n\tadvance_address 0x1D2\ntarget:\n"), "test.asm"))
	_, err = b.Compile()
	checkKind(t, err, asm.ErrRange)
}

func TestEquIndirect(t *testing.T) {
	b := NewRomBuilder()
	must(t, b.AdvanceAddress(0, 0x150))
	must(t, b.AddAsmReader(strings.NewReader("FOO EQU 0xFF40\n\tld a, [FOO]\n"), "test.asm"))
	rom, err := b.Compile()
	must(t, err)
	if !bytes.Equal(rom[0x150:0x153], []byte{0xFA, 0x40, 0xFF}) {
		t.Errorf("code is % X, expected FA 40 FF", rom[0x150:0x153])
	}
}

func TestTwoBankImage(t *testing.T) {
	b := NewRomBuilder()
	must(t, b.AdvanceAddress(0, 0x150))
	must(t, b.AddAsmReader(strings.NewReader("\tnop\n"), "code.asm"))
	must(t, b.AdvanceAddress(1, 0x4000))
	must(t, b.AddBytes(bytes.Repeat([]byte{0xAA}, 0x4000)))

	rom, err := b.Compile()
	must(t, err)

	if len(rom) != 0x8000 {
		t.Fatalf("rom is %d bytes, expected 32768", len(rom))
	}
	if rom[0x4000] != 0xAA || rom[0x7FFF] != 0xAA {
		t.Error("bank 1 contents missing")
	}
	for addr := 0x0400; addr < 0x4000; addr++ {
		if rom[addr] != 0x00 {
			t.Fatalf("bank 0 tail byte 0x%04x is 0x%02x, expected 0", addr, rom[addr])
		}
	}
}

func TestAdvanceBackwardsRejected(t *testing.T) {
	b := NewRomBuilder()
	must(t, b.AdvanceAddress(0, 0x150))
	checkKind(t, b.AdvanceAddress(0, 0x100), asm.ErrAdvance)
}

func TestAdvanceOffsetWindow(t *testing.T) {
	b := NewRomBuilder()
	// Bank 0 offsets live below 0x4000.
	checkKind(t, b.AdvanceAddress(0, 0x4000), asm.ErrAdvance)
	// Bank 1+ offsets live in 0x4000..0x7FFF.
	checkKind(t, b.AdvanceAddress(1, 0x150), asm.ErrAdvance)
	checkKind(t, b.AdvanceAddress(1, 0x8000), asm.ErrAdvance)
	must(t, b.AdvanceAddress(1, 0x4000))
}

func TestAdvanceCursorRoundTrip(t *testing.T) {
	b := NewRomBuilder()
	must(t, b.AdvanceAddress(2, 0x4123))
	if b.Bank() != 2 || b.BankAddress() != 0x4123 {
		t.Errorf("cursor is (%d, 0x%04x), expected (2, 0x4123)", b.Bank(), b.BankAddress())
	}
	if b.GlobalAddress() != 2*0x4000+0x123 {
		t.Errorf("global address is 0x%x", b.GlobalAddress())
	}
}

func TestBankOneLabelsAreCPUVisible(t *testing.T) {
	b := NewRomBuilder()
	must(t, b.AdvanceAddress(1, 0x4000))
	must(t, b.AddAsmReader(strings.NewReader("BankEntry:\n\tnop\n"), "bank1.asm"))
	if got := b.Symbols()["BankEntry"]; got != 0x4000 {
		t.Errorf("BankEntry = 0x%x, expected 0x4000", got)
	}
}

func TestDuplicateLabel(t *testing.T) {
	b := NewRomBuilder()
	must(t, b.AddAsmReader(strings.NewReader("twice:\n"), "a.asm"))
	checkKind(t, b.AddAsmReader(strings.NewReader("twice:\n"), "b.asm"), asm.ErrDuplicateLabel)
}

func TestEquMustReferenceEarlierSymbols(t *testing.T) {
	b := NewRomBuilder()
	err := b.AddAsmReader(strings.NewReader("FOO EQU later\nlater:\n"), "test.asm")
	checkKind(t, err, asm.ErrUndefinedSymbol)
}

func TestAdvanceAddressDirective(t *testing.T) {
	b := NewRomBuilder()
	must(t, b.AdvanceAddress(0, 0x150))
	must(t, b.AddAsmReader(strings.NewReader("\tadvance_address 0x160\n\thalt\n"), "test.asm"))
	if b.GlobalAddress() != 0x162 {
		t.Errorf("cursor is 0x%x, expected 0x162", b.GlobalAddress())
	}

	rom, err := b.Compile()
	must(t, err)
	for addr := 0x150; addr < 0x160; addr++ {
		if rom[addr] != 0 {
			t.Fatalf("gap byte 0x%04x is 0x%02x", addr, rom[addr])
		}
	}
	if rom[0x160] != 0x76 {
		t.Errorf("byte at 0x160 is 0x%02x, expected 0x76", rom[0x160])
	}
}

func TestAdvanceAddressDirectiveBackwards(t *testing.T) {
	b := NewRomBuilder()
	must(t, b.AdvanceAddress(0, 0x150))
	err := b.AddAsmReader(strings.NewReader("\tadvance_address 0x100\n"), "test.asm")
	checkKind(t, err, asm.ErrAdvance)
}

func TestNamedBytes(t *testing.T) {
	b := NewRomBuilder()
	must(t, b.AdvanceAddress(0, 0x200))
	must(t, b.AddNamedBytes("Tiles", []byte{1, 2, 3}))
	must(t, b.AddAsmReader(strings.NewReader("\tld hl, Tiles\n"), "test.asm"))

	rom, err := b.Compile()
	must(t, err)
	if !bytes.Equal(rom[0x203:0x206], []byte{0x21, 0x00, 0x02}) {
		t.Errorf("code is % X, expected 21 00 02", rom[0x203:0x206])
	}
}

func TestCompileEmptyBuilder(t *testing.T) {
	b := NewRomBuilder()
	if _, err := b.Compile(); err == nil {
		t.Error("expected an error compiling an empty builder")
	}
}

func TestRomPaddedToBankMultiple(t *testing.T) {
	b := NewRomBuilder()
	must(t, b.AdvanceAddress(1, 0x4000))
	must(t, b.AddBytes([]byte{1}))
	rom, err := b.Compile()
	must(t, err)
	if len(rom)%0x4000 != 0 {
		t.Errorf("rom length %d is not a multiple of 0x4000", len(rom))
	}
	if len(rom) != 0x8000 {
		t.Errorf("rom length is %d, expected 32768", len(rom))
	}
}

func TestCartridgeTypeSizeValidation(t *testing.T) {
	// A ROM-only cartridge cannot exceed 32 KB.
	b := NewRomBuilder()
	must(t, b.AddBasicInterruptsAndJumps())
	must(t, b.AddHeader(testHeader()))
	must(t, b.AdvanceAddress(2, 0x4000))
	must(t, b.AddBytes([]byte{1}))
	_, err := b.Compile()
	checkKind(t, err, asm.ErrRange)

	// MBC5 allows it.
	b = NewRomBuilder()
	must(t, b.AddBasicInterruptsAndJumps())
	h := testHeader()
	h.CartridgeType = Mbc5
	must(t, b.AddHeader(h))
	must(t, b.AdvanceAddress(2, 0x4000))
	must(t, b.AddBytes([]byte{1}))
	_, err = b.Compile()
	must(t, err)
}

func TestChecksums(t *testing.T) {
	b := NewRomBuilder()
	must(t, b.AddBasicInterruptsAndJumps())
	must(t, b.AddHeader(testHeader()))
	must(t, b.AddAsmReader(strings.NewReader("Start:\n\tnop\n\tjp Start\n"), "main.asm"))

	rom, err := b.Compile()
	must(t, err)

	// Complement check identity from the programming manual.
	var comp byte
	for _, v := range rom[0x134:0x14D] {
		comp += v
	}
	if comp+rom[0x14D]+0x19 != 0 {
		t.Error("complement check identity does not hold")
	}

	// Global checksum covers everything but itself, stored big-endian.
	var sum uint16
	for i, v := range rom {
		if i == 0x14E || i == 0x14F {
			continue
		}
		sum += uint16(v)
	}
	stored := uint16(rom[0x14E])<<8 | uint16(rom[0x14F])
	if sum != stored {
		t.Errorf("global checksum stored 0x%04x, computed 0x%04x", stored, sum)
	}
	if stored == 0 {
		t.Error("global checksum was not stamped")
	}
}

func TestAddInstructions(t *testing.T) {
	b := NewRomBuilder()
	must(t, b.AdvanceAddress(0, 0x150))
	insts := []asm.Instruction{
		{Op: asm.OpLabel, Name: "Generated"},
		{Op: asm.OpLdR8I8, Dst: asm.A, Expr: asm.Number(0x42)},
		{Op: asm.OpJpI16, Flag: asm.Always, Expr: asm.Identifier("Generated")},
	}
	must(t, b.AddInstructions(insts))

	rom, err := b.Compile()
	must(t, err)
	if !bytes.Equal(rom[0x150:0x155], []byte{0x3E, 0x42, 0xC3, 0x50, 0x01}) {
		t.Errorf("code is % X", rom[0x150:0x155])
	}
}

func TestHeaderPlacementGuards(t *testing.T) {
	b := NewRomBuilder()
	checkKind(t, b.AddHeader(testHeader()), asm.ErrAdvance)

	b = NewRomBuilder()
	must(t, b.AddBasicInterruptsAndJumps())
	checkKind(t, b.AddBasicInterruptsAndJumps(), asm.ErrAdvance)
}
