// Copyright 2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package host implements an interactive shell for building and
// inspecting Game Boy ROM images. Within the host it is possible to
// assemble ROM images from source files, decode and verify cartridge
// headers, dump the contents of the image, list bound symbols, and
// evaluate arbitrary expressions against them.
package host

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"

	"github.com/beevik/cmd"
	"github.com/rukai/ggbasm"
	"github.com/rukai/ggbasm/asm"
)

// A Host holds a ROM image under construction or inspection, the
// symbols bound while building it, and the shell state used to drive
// commands.
type Host struct {
	input       *bufio.Scanner
	output      *bufio.Writer
	interactive bool
	rom         []byte
	symbols     map[string]int64
	lastCmd     *cmd.Selection
	settings    *settings
}

// New creates a new host environment.
func New() *Host {
	return &Host{
		symbols:  make(map[string]int64),
		settings: newSettings(),
	}
}

// RunCommands accepts host commands from a reader and outputs the
// results to a writer. If the commands are interactive, a prompt is
// displayed while the host waits for the next command to be entered.
func (h *Host) RunCommands(r io.Reader, w io.Writer, interactive bool) {
	h.input = bufio.NewScanner(r)
	h.output = bufio.NewWriter(w)
	h.interactive = interactive

	if interactive {
		h.println("Game Boy ROM workbench. Type 'help' for a list of commands.")
	}

	for {
		h.prompt()

		line, err := h.getLine()
		if err != nil {
			break
		}

		var c cmd.Selection
		if line != "" {
			c, err = cmds.Lookup(line)
			switch {
			case err == cmd.ErrNotFound:
				h.println("Command not found.")
				continue
			case err == cmd.ErrAmbiguous:
				h.println("Command is ambiguous.")
				continue
			case err != nil:
				h.printf("ERROR: %v.\n", err)
				continue
			}
		} else if h.lastCmd != nil {
			c = *h.lastCmd
		}

		if c.Command == nil {
			continue
		}
		h.lastCmd = &c

		handler := c.Command.Data.(func(*Host, cmd.Selection) error)
		err = handler(h, c)
		if err != nil {
			break
		}
	}

	h.flush()
}

func (h *Host) print(args ...any) {
	fmt.Fprint(h.output, args...)
}

func (h *Host) printf(format string, args ...any) {
	fmt.Fprintf(h.output, format, args...)
	h.flush()
}

func (h *Host) println(args ...any) {
	fmt.Fprintln(h.output, args...)
	h.flush()
}

func (h *Host) flush() {
	h.output.Flush()
}

func (h *Host) getLine() (string, error) {
	if h.input.Scan() {
		return h.input.Text(), nil
	}
	if h.input.Err() != nil {
		return "", h.input.Err()
	}
	return "", io.EOF
}

func (h *Host) prompt() {
	if h.interactive {
		h.printf("* ")
	}
}

func (h *Host) displayHelpText(c *cmd.Command) {
	if c.Usage != "" {
		h.printf("Usage: %s\n", c.Usage)
	}
}

// parseExpr evaluates an expression string against the host's symbols.
// In hex mode, bare digit strings are treated as hexadecimal.
func (h *Host) parseExpr(s string) (int64, error) {
	if h.settings.HexMode && !strings.ContainsAny(s, "$%") && !strings.Contains(s, "0x") {
		s = "$" + s
	}
	e, err := asm.ParseExpr(s)
	if err != nil {
		return 0, err
	}
	return e.Eval(h.symbols)
}

func (h *Host) cmdHelp(c cmd.Selection) error {
	if len(c.Args) == 0 {
		h.println("Commands:")
		h.println("    help                 Display help for a command")
		h.println("    rom build            Build a ROM image from an assembly file")
		h.println("    rom load             Load a ROM image from disk")
		h.println("    rom save             Save the ROM image to disk")
		h.println("    header               Decode the cartridge header")
		h.println("    symbols              List bound identifiers")
		h.println("    evaluate             Evaluate an expression")
		h.println("    memory dump          Dump ROM contents at address")
		h.println("    set                  Set a configuration variable")
		h.println("    quit                 Quit the program")
		return nil
	}

	s, err := cmds.Lookup(strings.Join(c.Args, " "))
	if err != nil {
		h.printf("%v\n", err)
		return nil
	}
	if s.Command.Usage != "" {
		h.printf("Usage: %s\n\n", s.Command.Usage)
	}
	switch {
	case s.Command.Description != "":
		h.printf("%s\n", s.Command.Description)
	case s.Command.Brief != "":
		h.printf("%s.\n", s.Command.Brief)
	}
	return nil
}

func (h *Host) cmdRomBuild(c cmd.Selection) error {
	if len(c.Args) < 1 {
		h.displayHelpText(c.Command)
		return nil
	}

	filename := c.Args[0]
	if filepath.Ext(filename) == "" {
		filename += ".asm"
	}

	title := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	builder := ggbasm.NewRomBuilder()

	err := func() error {
		if err := builder.AddBasicInterruptsAndJumps(); err != nil {
			return err
		}
		if err := builder.AddHeader(ggbasm.Header{
			Title:         strings.ToUpper(title),
			CartridgeType: ggbasm.RomOnly,
		}); err != nil {
			return err
		}
		return builder.AddAsmFile(filename)
	}()
	if err != nil {
		h.printf("Failed to assemble '%s': %v\n", filepath.Base(filename), err)
		return nil
	}

	rom, err := builder.Compile()
	if err != nil {
		h.printf("Failed to compile '%s': %v\n", filepath.Base(filename), err)
		return nil
	}

	h.rom = rom
	h.symbols = builder.Symbols()
	h.printf("Assembled '%s' into a %d byte ROM.\n", filepath.Base(filename), len(rom))
	return nil
}

func (h *Host) cmdRomLoad(c cmd.Selection) error {
	if len(c.Args) < 1 {
		h.displayHelpText(c.Command)
		return nil
	}

	filename := c.Args[0]
	rom, err := os.ReadFile(filename)
	if err != nil {
		h.printf("Failed to load '%s': %v\n", filepath.Base(filename), err)
		return nil
	}

	h.rom = rom
	h.symbols = make(map[string]int64)
	h.printf("Loaded %d bytes from '%s'.\n", len(rom), filepath.Base(filename))
	return nil
}

func (h *Host) cmdRomSave(c cmd.Selection) error {
	if len(c.Args) < 1 {
		h.displayHelpText(c.Command)
		return nil
	}
	if h.rom == nil {
		h.println("No ROM image loaded.")
		return nil
	}

	filename := c.Args[0]
	if err := os.WriteFile(filename, h.rom, 0644); err != nil {
		h.printf("Failed to save '%s': %v\n", filepath.Base(filename), err)
		return nil
	}
	h.printf("Saved %d bytes to '%s'.\n", len(h.rom), filepath.Base(filename))
	return nil
}

func (h *Host) cmdHeader(c cmd.Selection) error {
	if len(h.rom) < 0x150 {
		h.println("No ROM image with a complete header is loaded.")
		return nil
	}

	rom := h.rom
	title := strings.TrimRight(string(rom[0x134:0x13F]), "\x00")
	h.printf("Title:           %s\n", title)
	h.printf("Cartridge type:  %s ($%02X)\n", ggbasm.CartridgeType(rom[0x147]), rom[0x147])
	h.printf("ROM size:        %d KB ($%02X)\n", 32<<rom[0x148], rom[0x148])
	h.printf("RAM code:        $%02X\n", rom[0x149])
	h.printf("Version:         %d\n", rom[0x14C])

	if bytes.Equal(rom[0x104:0x134], ggbasm.NintendoLogo()) {
		h.println("Logo:            ok")
	} else {
		h.println("Logo:            INVALID")
	}

	var comp byte
	for _, v := range rom[0x134:0x14D] {
		comp += v
	}
	if comp+rom[0x14D]+0x19 == 0 {
		h.println("Complement:      ok")
	} else {
		h.println("Complement:      INVALID")
	}

	var sum uint16
	for i, v := range rom {
		if i == 0x14E || i == 0x14F {
			continue
		}
		sum += uint16(v)
	}
	stored := uint16(rom[0x14E])<<8 | uint16(rom[0x14F])
	if sum == stored {
		h.printf("Checksum:        ok ($%04X)\n", stored)
	} else {
		h.printf("Checksum:        INVALID (computed $%04X, stored $%04X)\n", sum, stored)
	}
	return nil
}

func (h *Host) cmdSymbols(c cmd.Selection) error {
	if len(h.symbols) == 0 {
		h.println("No symbols are bound.")
		return nil
	}

	type sym struct {
		name  string
		value int64
	}
	sorted := make([]sym, 0, len(h.symbols))
	for name, value := range h.symbols {
		sorted = append(sorted, sym{name, value})
	}

	byName := len(c.Args) > 0 && strings.ToLower(c.Args[0]) == "byname"
	sort.Slice(sorted, func(i, j int) bool {
		if byName {
			return strings.ToLower(sorted[i].name) < strings.ToLower(sorted[j].name)
		}
		return sorted[i].value < sorted[j].value
	})

	for _, s := range sorted {
		h.printf("%-20s $%04X\n", s.name, s.value)
	}
	return nil
}

func (h *Host) cmdEvaluate(c cmd.Selection) error {
	if len(c.Args) < 1 {
		h.displayHelpText(c.Command)
		return nil
	}

	expr := strings.Join(c.Args, " ")
	v, err := h.parseExpr(expr)
	if err != nil {
		h.printf("%v\n", err)
		return nil
	}

	h.printf("$%04X\n", v)
	return nil
}

func (h *Host) cmdMemoryDump(c cmd.Selection) error {
	if h.rom == nil {
		h.println("No ROM image loaded.")
		return nil
	}

	var addr uint32
	if len(c.Args) > 0 && c.Args[0] != "$" {
		a, err := h.parseExpr(c.Args[0])
		if err != nil {
			h.printf("%v\n", err)
			return nil
		}
		addr = uint32(a)
	} else {
		addr = h.settings.NextMemDumpAddr
	}

	count := uint32(h.settings.MemDumpBytes)
	if len(c.Args) >= 2 {
		n, err := h.parseExpr(c.Args[1])
		if err != nil {
			h.printf("%v\n", err)
			return nil
		}
		count = uint32(n)
	}

	h.dumpMemory(addr, count)

	h.settings.NextMemDumpAddr = addr + count
	h.lastCmd.Args = []string{"$", fmt.Sprintf("%d", count)}
	return nil
}

func (h *Host) cmdSet(c cmd.Selection) error {
	switch len(c.Args) {
	case 0:
		h.println("Variables:")
		h.settings.Display(h.output)

	case 1:
		h.displayHelpText(c.Command)

	default:
		key, value := strings.ToLower(c.Args[0]), strings.Join(c.Args[1:], " ")

		var err error
		switch h.settings.Kind(key) {
		case reflect.Invalid:
			err = fmt.Errorf("setting '%s' not found", key)
		case reflect.String:
			err = h.settings.Set(key, value)
		case reflect.Bool:
			var v bool
			v, err = stringToBool(value)
			if err == nil {
				err = h.settings.Set(key, v)
			}
		default:
			var v int64
			v, err = h.parseExpr(value)
			if err == nil {
				err = h.settings.Set(key, v)
			}
		}

		if err == nil {
			h.println("Setting updated.")
		} else {
			h.printf("%v\n", err)
		}
	}

	return nil
}

func (h *Host) cmdQuit(c cmd.Selection) error {
	return errors.New("exiting program")
}

func (h *Host) dumpMemory(addr0, count uint32) {
	if count == 0 {
		return
	}
	if addr0 >= uint32(len(h.rom)) {
		h.printf("Address $%06X is past the end of the ROM.\n", addr0)
		return
	}
	addr1 := addr0 + count - 1
	if addr1 >= uint32(len(h.rom)) {
		addr1 = uint32(len(h.rom)) - 1
	}

	buf := []byte("      -" + strings.Repeat(" ", 35))

	// Don't align the display for short dumps.
	if addr1-addr0 < 8 {
		addrToBuf(addr0, buf[0:6])
		for a, c1, c2 := addr0, 8, 34; a <= addr1; a, c1, c2 = a+1, c1+3, c2+1 {
			m := h.rom[a]
			byteToBuf(m, buf[c1:c1+2])
			buf[c2] = toPrintableChar(m)
		}
		h.println(string(buf))
		return
	}

	// Align addr0 and addr1 to 8-byte boundaries.
	start := addr0 &^ 7
	stop := (addr1 + 8) &^ 7
	if stop > uint32(len(h.rom)) {
		stop = uint32(len(h.rom))
	}

	for r := start; r < stop; r += 8 {
		addrToBuf(r, buf[0:6])
		for a, c1, c2 := r, 8, 34; a < r+8; a, c1, c2 = a+1, c1+3, c2+1 {
			if a < uint32(len(h.rom)) {
				m := h.rom[a]
				byteToBuf(m, buf[c1:c1+2])
				buf[c2] = toPrintableChar(m)
			} else {
				buf[c1], buf[c1+1], buf[c2] = ' ', ' ', ' '
			}
		}
		h.println(string(buf))
	}
}
