package ggbasm

import (
	"strconv"
	"strings"

	"github.com/rukai/ggbasm/asm"
)

// The audio text format holds one sound step per line. A step is either
// a channel-2 state line in the form AB:C:DD:E:FG:HI
//
//	A  note            A-G natural, a-g sharp
//	B  octave          3-8
//	C  duty            0-3
//	DD length          00-3F
//	E  envelope initial volume 0-F
//	F  envelope argument       0-7
//	G  envelope increase       Y/N
//	H  enable length           Y/N
//	I  initial                 Y/N
//
// or one of the control lines:
//
//	label NAME  bind NAME to the address of the next entry
//	rest N      wait N frames before the next entry
//
// Each channel-2 or rest step becomes an 8 byte entry: the values for
// NR21..NR24, a frame delay, and three reserved bytes. A label step
// emits no bytes.

type audioLineKind byte

const (
	audioLabel audioLineKind = iota
	audioRest
	audioChannel2
)

// An AudioLine is one parsed line of an audio text file.
type AudioLine struct {
	kind  audioLineKind
	label string
	rest  byte
	ch    channel2State
}

type channel2State struct {
	note                  byte // semitone index 0..11
	octave                byte
	duty                  byte
	length                byte
	envelopeInitialVolume byte
	envelopeArgument      byte
	envelopeIncrease      bool
	enableLength          bool
	initial               bool
}

// ParseAudioText parses the audio text format into typed lines.
func ParseAudioText(text string) ([]AudioLine, error) {
	var result []AudioLine
	for i, line := range strings.Split(text, "\n") {
		row := i + 1
		if idx := strings.IndexByte(line, ';'); idx >= 0 {
			line = line[:idx]
		}
		tokens := strings.Fields(line)
		if len(tokens) == 0 {
			continue
		}

		switch strings.ToLower(tokens[0]) {
		case "label":
			if len(tokens) != 2 {
				return nil, audioErr(row, "label needs exactly one argument")
			}
			result = append(result, AudioLine{kind: audioLabel, label: tokens[1]})

		case "rest", "wait":
			if len(tokens) != 2 {
				return nil, audioErr(row, "rest needs exactly one argument")
			}
			v, err := strconv.ParseUint(tokens[1], 10, 8)
			if err != nil {
				return nil, audioErr(row, "rest argument is not a byte-sized integer")
			}
			result = append(result, AudioLine{kind: audioRest, rest: byte(v)})

		default:
			ch, err := parseChannel2(tokens[0], row)
			if err != nil {
				return nil, err
			}
			result = append(result, AudioLine{kind: audioChannel2, ch: ch})
		}
	}
	return result, nil
}

func audioErr(row int, msg string) error {
	return &asm.Error{Kind: asm.ErrParse, Line: row, Msg: msg}
}

func parseChannel2(s string, row int) (channel2State, error) {
	var ch channel2State
	if len(s) < 15 {
		return ch, audioErr(row, "channel state line is too short")
	}

	sharp := s[0] >= 'a' && s[0] <= 'g'
	semitone, ok := noteSemitone(s[0], sharp)
	if !ok {
		return ch, audioErr(row, "invalid character for note")
	}
	ch.note = semitone

	if s[1] < '3' || s[1] > '8' {
		return ch, audioErr(row, "invalid character for octave")
	}
	ch.octave = s[1] - '0'

	if s[3] < '0' || s[3] > '3' {
		return ch, audioErr(row, "invalid character for duty")
	}
	ch.duty = s[3] - '0'

	length, err := strconv.ParseUint(s[5:7], 16, 8)
	if err != nil || length > 0x3F {
		return ch, audioErr(row, "invalid characters for length")
	}
	ch.length = byte(length)

	vol, err := strconv.ParseUint(s[8:9], 16, 8)
	if err != nil {
		return ch, audioErr(row, "invalid character for envelope initial volume")
	}
	ch.envelopeInitialVolume = byte(vol)

	if s[10] < '0' || s[10] > '7' {
		return ch, audioErr(row, "invalid character for envelope argument")
	}
	ch.envelopeArgument = s[10] - '0'

	flags := []struct {
		c   byte
		dst *bool
		msg string
	}{
		{s[11], &ch.envelopeIncrease, "envelope increase"},
		{s[13], &ch.enableLength, "enable length"},
		{s[14], &ch.initial, "initial"},
	}
	for _, f := range flags {
		switch f.c {
		case 'Y':
			*f.dst = true
		case 'N':
			*f.dst = false
		default:
			return ch, audioErr(row, "invalid character for "+f.msg)
		}
	}

	return ch, nil
}

func noteSemitone(c byte, sharp bool) (byte, bool) {
	natural := map[byte]byte{'C': 0, 'D': 2, 'E': 4, 'F': 5, 'G': 7, 'A': 9, 'B': 11}
	if sharp {
		c -= 'a' - 'A'
	}
	semitone, ok := natural[c]
	if !ok {
		return 0, false
	}
	if sharp {
		// E and B have no sharp.
		if c == 'E' || c == 'B' {
			return 0, false
		}
		semitone++
	}
	return semitone, true
}

// noteFrequency holds the NR23/NR24 frequency values for octaves 3..8,
// twelve semitones each, starting at C.
var noteFrequency = [6][12]uint16{
	{44, 156, 262, 363, 457, 547, 631, 710, 786, 854, 923, 986},
	{1046, 1102, 1155, 1205, 1253, 1297, 1339, 1379, 1417, 1452, 1486, 1517},
	{1546, 1575, 1602, 1627, 1650, 1673, 1694, 1714, 1732, 1750, 1767, 1783},
	{1798, 1812, 1825, 1837, 1849, 1860, 1871, 1881, 1890, 1899, 1907, 1915},
	{1923, 1930, 1936, 1943, 1949, 1954, 1959, 1964, 1969, 1974, 1978, 1982},
	{1985, 1988, 1992, 1995, 1998, 2001, 2004, 2006, 2009, 2011, 2013, 2015},
}

// defaultDelay is the frame count a channel entry plays for before the
// next entry is processed.
const defaultDelay = 0x09

// GenerateAudioData converts parsed audio lines into instruction data:
// labels become label statements, every other line an 8-byte register
// table entry.
func GenerateAudioData(lines []AudioLine) ([]asm.Instruction, error) {
	var insts []asm.Instruction
	for _, line := range lines {
		switch line.kind {
		case audioLabel:
			insts = append(insts, asm.Instruction{Op: asm.OpLabel, Name: line.label})

		case audioRest:
			entry := []byte{0x00, 0x00, 0x00, 0x00, line.rest, 0x00, 0x00, 0x00}
			insts = append(insts, asm.Instruction{Op: asm.OpDB, Data: []asm.DataItem{{Str: entry}}})

		case audioChannel2:
			ch := line.ch
			frequency := noteFrequency[ch.octave-3][ch.note]

			// Length counts down, so longer values mean shorter play.
			nr21 := ch.duty<<6 | (0x3F-ch.length)&0x3F
			nr22 := ch.envelopeInitialVolume<<4 | boolBit(ch.envelopeIncrease)<<3 | ch.envelopeArgument&0x07
			nr23 := byte(frequency & 0xFF)
			nr24 := byte(frequency>>8)&0x07 | boolBit(ch.enableLength)<<6 | boolBit(ch.initial)<<7

			entry := []byte{nr21, nr22, nr23, nr24, defaultDelay, 0x00, 0x00, 0x00}
			insts = append(insts, asm.Instruction{Op: asm.OpDB, Data: []asm.DataItem{{Str: entry}}})
		}
	}
	return insts, nil
}

func boolBit(b bool) byte {
	if b {
		return 1
	}
	return 0
}
