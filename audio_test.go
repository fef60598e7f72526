package ggbasm

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/rukai/ggbasm/asm"
)

func TestParseAudioText(t *testing.T) {
	lines, err := ParseAudioText("label song\nD6:2:10:7:4Y:NY\nrest 5\n; comment\n")
	if err != nil {
		t.Fatal(err)
	}
	if len(lines) != 3 {
		t.Fatalf("got %d lines, expected 3", len(lines))
	}
	if lines[0].kind != audioLabel || lines[0].label != "song" {
		t.Errorf("line 0 parsed as %+v", lines[0])
	}
	if lines[1].kind != audioChannel2 {
		t.Errorf("line 1 parsed as %+v", lines[1])
	}
	if lines[2].kind != audioRest || lines[2].rest != 5 {
		t.Errorf("line 2 parsed as %+v", lines[2])
	}
}

func TestParseAudioTextErrors(t *testing.T) {
	cases := []string{
		"label",              // missing argument
		"rest xyz",           // non-numeric rest
		"rest 300",           // out of byte range
		"X6:2:10:7:4Y:NY",    // invalid note
		"e6:2:10:7:4Y:NY",    // e sharp does not exist
		"D9:2:10:7:4Y:NY",    // octave out of range
		"D6:5:10:7:4Y:NY",    // duty out of range
		"D6:2:40:7:4Y:NY",    // length out of range
		"D6:2:10:7:4Q:NY",    // bad flag
		"D6:2:10",            // too short
	}
	for _, c := range cases {
		if _, err := ParseAudioText(c); err == nil {
			t.Errorf("expected error parsing %q", c)
		}
	}
}

func TestGenerateAudioData(t *testing.T) {
	lines, err := ParseAudioText("label song\nD6:2:10:7:4Y:NY\nrest 5\n")
	if err != nil {
		t.Fatal(err)
	}
	insts, err := GenerateAudioData(lines)
	if err != nil {
		t.Fatal(err)
	}
	if len(insts) != 3 {
		t.Fatalf("got %d instructions, expected 3", len(insts))
	}

	if insts[0].Op != asm.OpLabel || insts[0].Name != "song" {
		t.Errorf("instruction 0 is %+v", insts[0])
	}

	// D octave 6 natural has frequency 1825 (0x0721). Duty 2, length
	// 0x10, volume 7, argument 4, envelope increase, initial set.
	want := []byte{0xAF, 0x7C, 0x21, 0x87, 0x09, 0x00, 0x00, 0x00}
	if insts[1].Op != asm.OpDB || !bytes.Equal(insts[1].Data[0].Str, want) {
		t.Errorf("channel entry is % X, expected % X", insts[1].Data[0].Str, want)
	}

	wantRest := []byte{0x00, 0x00, 0x00, 0x00, 0x05, 0x00, 0x00, 0x00}
	if insts[2].Op != asm.OpDB || !bytes.Equal(insts[2].Data[0].Str, wantRest) {
		t.Errorf("rest entry is % X, expected % X", insts[2].Data[0].Str, wantRest)
	}
}

func TestGenerateAudioSharpNotes(t *testing.T) {
	// Lowercase letters are sharps: d6 is D#6, frequency 1837.
	lines, err := ParseAudioText("d6:2:10:7:4Y:NY\n")
	if err != nil {
		t.Fatal(err)
	}
	insts, err := GenerateAudioData(lines)
	if err != nil {
		t.Fatal(err)
	}
	entry := insts[0].Data[0].Str
	freq := uint16(entry[2]) | uint16(entry[3]&0x07)<<8
	if freq != 1837 {
		t.Errorf("frequency is %d, expected 1837", freq)
	}
}

func TestAddAudioFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "song.gbaudio")
	text := "label intro\nC4:0:3F:F:0N:YY\nrest 10\n"
	if err := os.WriteFile(path, []byte(text), 0644); err != nil {
		t.Fatal(err)
	}

	b := NewRomBuilder()
	must(t, b.AdvanceAddress(0, 0x150))
	must(t, b.AddAudioFile(path))

	if got := b.Symbols()["intro"]; got != 0x150 {
		t.Errorf("intro = 0x%x, expected 0x150", got)
	}
	// Two 8-byte entries follow the label.
	if b.GlobalAddress() != 0x150+16 {
		t.Errorf("cursor is 0x%x, expected 0x160", b.GlobalAddress())
	}
}
