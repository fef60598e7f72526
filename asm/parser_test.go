package asm

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// parseOne parses a single statement line and returns it, skipping the
// line's trailing empty statement if any.
func parseOne(t *testing.T, line string) Instruction {
	t.Helper()
	insts, err := ParseString(line)
	if err != nil {
		t.Fatalf("parse of %q failed: %v", line, err)
	}
	for _, inst := range insts {
		if inst.Op != OpEmpty {
			return inst
		}
	}
	t.Fatalf("parse of %q produced no statement", line)
	return Instruction{}
}

func TestParseStatementKinds(t *testing.T) {
	cases := []struct {
		line string
		op   Op
	}{
		{"label:", OpLabel},
		{"label", OpLabel},
		{"FOO EQU 5", OpEqu},
		{"\tdb 1", OpDB},
		{"\tdw 1", OpDW},
		{"\tadvance_address 0x150", OpAdvanceAddress},
		{"\tnop", OpNop},
		{"\thalt", OpHalt},
		{"\tret", OpRet},
		{"\tret z", OpRet},
		{"\tjp 0x100", OpJpI16},
		{"\tjp hl", OpJpRhl},
		{"\tjr 0x100", OpJr},
		{"\tcall 0x100", OpCall},
		{"\tinc hl", OpIncR16},
		{"\tinc h", OpIncR8},
		{"\tinc [hl]", OpIncMRhl},
		{"\tadd hl, bc", OpAddRhlR16},
		{"\tadd sp, 1", OpAddRspI8},
		{"\tadd a, b", OpAddR8},
		{"\tadd a, 1", OpAddI8},
		{"\tadd [hl]", OpAddMRhl},
		{"\tld a, b", OpLdR8R8},
		{"\tld a, 1", OpLdR8I8},
		{"\tld hl, 0x8000", OpLdR16I16},
		{"\tld a, [hl]", OpLdR8MRhl},
		{"\tld [hl], a", OpLdMRhlR8},
		{"\tld [hl], 1", OpLdMRhlI8},
		{"\tld [bc], a", OpLdMRbcRa},
		{"\tld a, [de]", OpLdRaMRde},
		{"\tld [0x1234], a", OpLdMI16Ra},
		{"\tld a, [0x1234]", OpLdRaMI16},
		{"\tld [0x1234], sp", OpLdMI16Rsp},
		{"\tld a, [0xFF00+C]", OpLdhRaMRc},
		{"\tld [0xFF00+C], a", OpLdhMRcRa},
		{"\tld a, [0xFF00+1]", OpLdhRaMI8},
		{"\tld [0xFF00+1], a", OpLdhMI8Ra},
		{"\tld hl, sp+1", OpLdRhlRspI8},
		{"\tld sp, hl", OpLdRspRhl},
		{"\tldi [hl], a", OpLdiMRhlRa},
		{"\tldd a, [hl]", OpLddRaMRhl},
		{"\tpush af", OpPush},
		{"\tpop de", OpPop},
		{"\tswap a", OpSwapR8},
		{"\tsrl [hl]", OpSrlMRhl},
		{"\tbit 1, a", OpBitBitR8},
		{"\tres 1, [hl]", OpResBitMRhl},
		{"\tset 1, d", OpSetBitR8},
	}

	for _, c := range cases {
		inst := parseOne(t, c.line)
		if inst.Op != c.op {
			t.Errorf("%q parsed as op %d, expected %d", c.line, inst.Op, c.op)
		}
	}
}

func TestParseOperandFields(t *testing.T) {
	inst := parseOne(t, "\tld d, e")
	if inst.Dst != D || inst.Src != E {
		t.Errorf("ld d, e parsed with dst=%v src=%v", inst.Dst, inst.Src)
	}

	inst = parseOne(t, "\tjp nc, 0x1234")
	if inst.Flag != NC {
		t.Errorf("jp nc parsed with flag %d", inst.Flag)
	}

	inst = parseOne(t, "mylabel:")
	if inst.Name != "mylabel" {
		t.Errorf("label parsed with name %q", inst.Name)
	}

	inst = parseOne(t, "\tdb 1, \"hi\", 3")
	if len(inst.Data) != 3 || string(inst.Data[1].Str) != "hi" {
		t.Errorf("db items parsed incorrectly: %+v", inst.Data)
	}
}

func TestParseEmptyAndComments(t *testing.T) {
	insts, err := ParseString("; a comment\n\n\tnop ; trailing\n")
	if err != nil {
		t.Fatal(err)
	}
	var ops []Op
	for _, inst := range insts {
		ops = append(ops, inst.Op)
	}
	want := []Op{OpEmpty, OpEmpty, OpNop}
	if len(ops) != len(want) {
		t.Fatalf("got %d statements, expected %d", len(ops), len(want))
	}
	for i := range want {
		if ops[i] != want[i] {
			t.Errorf("statement %d is op %d, expected %d", i, ops[i], want[i])
		}
	}
}

func TestParseLineNumbers(t *testing.T) {
	insts, err := ParseString("\tnop\n\thalt\n\tdi")
	if err != nil {
		t.Fatal(err)
	}
	for i, inst := range insts {
		if inst.Line != i+1 {
			t.Errorf("statement %d has line %d", i, inst.Line)
		}
	}
}

func TestParseErrorLocation(t *testing.T) {
	_, err := Parse(strings.NewReader("\tnop\n\tbogus 1\n"), "source.asm")
	if err == nil {
		t.Fatal("expected an error")
	}
	asmErr, ok := err.(*Error)
	if !ok {
		t.Fatalf("expected *Error, got %T", err)
	}
	if asmErr.File != "source.asm" || asmErr.Line != 2 {
		t.Errorf("error located at %s:%d, expected source.asm:2", asmErr.File, asmErr.Line)
	}
}

func TestInclude(t *testing.T) {
	dir := t.TempDir()

	sub := filepath.Join(dir, "sub")
	if err := os.Mkdir(sub, 0755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, filepath.Join(dir, "main.asm"), "\tnop\n\tinclude \"sub/defs.asm\"\n\thalt\n")
	writeFile(t, filepath.Join(sub, "defs.asm"), "FOO EQU 1\n\tinclude \"more.asm\"\n")
	writeFile(t, filepath.Join(sub, "more.asm"), "\tdi\n")

	insts, err := ParseFile(filepath.Join(dir, "main.asm"))
	if err != nil {
		t.Fatal(err)
	}

	var ops []Op
	for _, inst := range insts {
		if inst.Op != OpEmpty {
			ops = append(ops, inst.Op)
		}
	}
	want := []Op{OpNop, OpEqu, OpDi, OpHalt}
	if len(ops) != len(want) {
		t.Fatalf("got %d statements, expected %d", len(ops), len(want))
	}
	for i := range want {
		if ops[i] != want[i] {
			t.Errorf("statement %d is op %d, expected %d", i, ops[i], want[i])
		}
	}
}

func TestIncludeCycle(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.asm"), "\tinclude \"b.asm\"\n")
	writeFile(t, filepath.Join(dir, "b.asm"), "\tinclude \"a.asm\"\n")

	_, err := ParseFile(filepath.Join(dir, "a.asm"))
	if err == nil {
		t.Fatal("expected an include cycle error")
	}
	asmErr, ok := err.(*Error)
	if !ok || asmErr.Kind != ErrIO {
		t.Errorf("expected an io error, got %v", err)
	}
}

func TestIncludeMissing(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.asm"), "\tinclude \"nope.asm\"\n")

	_, err := ParseFile(filepath.Join(dir, "a.asm"))
	if err == nil {
		t.Fatal("expected an error")
	}
	asmErr, ok := err.(*Error)
	if !ok || asmErr.Kind != ErrIO {
		t.Errorf("expected an io error, got %v", err)
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}
