// Copyright 2014-2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package asm implements a Game Boy (LR35902) assembler.
//
// Assembly text is parsed into a sequence of Instruction values, one
// per source line; an include directive is replaced by the statements
// of the included file. Instructions carry unresolved constant expressions;
// they are encoded to bytes once a complete symbol table is available.
package asm

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// A parser converts assembly source lines into Instruction values.
type parser struct {
	expr      exprParser
	insts     []Instruction
	including []string // absolute paths of the open include stack
}

// Parse reads assembly statements from r. The filename appears in error
// messages and is the base for resolving include directives.
func Parse(r io.Reader, filename string) ([]Instruction, error) {
	p := &parser{}
	if err := p.parseReader(r, filename); err != nil {
		return nil, err
	}
	return p.insts, nil
}

// ParseFile reads and parses the assembly file at path.
func ParseFile(path string) ([]Instruction, error) {
	p := &parser{}
	if err := p.parsePath(path, fstring{}); err != nil {
		return nil, err
	}
	return p.insts, nil
}

// ParseString parses assembly source held in a string. Include
// directives are resolved relative to the working directory.
func ParseString(source string) ([]Instruction, error) {
	return Parse(strings.NewReader(source), "string")
}

func (p *parser) parsePath(path string, at fstring) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return errorf(ErrIO, at, "cannot resolve '%s': %v", path, err)
	}
	for _, open := range p.including {
		if open == abs {
			return errorf(ErrIO, at, "include cycle involving '%s'", path)
		}
	}

	file, err := os.Open(path)
	if err != nil {
		return errorf(ErrIO, at, "cannot read '%s': %v", path, err)
	}
	defer file.Close()

	p.including = append(p.including, abs)
	err = p.parseReader(file, path)
	p.including = p.including[:len(p.including)-1]
	return err
}

func (p *parser) parseReader(r io.Reader, filename string) error {
	scanner := bufio.NewScanner(r)
	row := 1
	for scanner.Scan() {
		line := newFstring(filename, row, scanner.Text())
		if err := p.parseLine(line.stripTrailingComment()); err != nil {
			return err
		}
		row++
	}
	if err := scanner.Err(); err != nil {
		return Errorf(ErrIO, "cannot read '%s': %v", filename, err)
	}
	return nil
}

// emit appends an instruction, stamping its source location.
func (p *parser) emit(line fstring, inst Instruction) {
	inst.File = line.file
	inst.Line = line.row
	p.insts = append(p.insts, inst)
}

// Parse a single line of assembly code.
func (p *parser) parseLine(line fstring) error {
	l := line.consumeWhitespace()
	if l.isEmpty() {
		p.emit(line, Instruction{Op: OpEmpty})
		return nil
	}

	if !l.startsWith(identifierStartChar) {
		return errorf(ErrLex, l, "unexpected character '%c'", l.str[0])
	}

	word, rest := l.consumeWhile(identifierChar)

	// A label is an identifier followed by a colon.
	if rest.startsWithChar(':') {
		if err := p.parseEnd(rest.consume(1)); err != nil {
			return err
		}
		p.emit(line, Instruction{Op: OpLabel, Name: word.str})
		return nil
	}

	rest = rest.consumeWhitespace()

	inst, err := p.parseStatement(word, rest)
	if err != nil {
		return err
	}
	if inst.Op == OpEmpty && inst.Name == "" {
		// Not a recognized mnemonic: either `IDENT EQU expr` or a bare
		// label on a line of its own.
		switch {
		case rest.startsWithWord("equ"):
			e, remain, err := p.expr.parse(rest.consumeWord("equ"))
			if err != nil {
				return err
			}
			if err := p.parseEnd(remain); err != nil {
				return err
			}
			inst = Instruction{Op: OpEqu, Name: word.str, Expr: e}
		case rest.isEmpty():
			inst = Instruction{Op: OpLabel, Name: word.str}
		default:
			return errorf(ErrParse, word, "invalid opcode '%s'", word.str)
		}
	}

	if inst.Op == opInclude {
		return p.parseInclude(word, inst.Name)
	}

	p.emit(line, inst)
	return nil
}

// opInclude is a parser-internal marker; include directives expand into
// the including file's statement list and never reach the caller.
const opInclude Op = -1

// parseStatement parses the statement beginning with the given mnemonic
// word. It returns a zero Instruction when the word is not a mnemonic.
func (p *parser) parseStatement(word, l fstring) (Instruction, error) {
	switch strings.ToLower(word.str) {
	case "nop":
		return p.parseBare(l, OpNop)
	case "stop":
		return p.parseBare(l, OpStop)
	case "halt":
		return p.parseBare(l, OpHalt)
	case "di":
		return p.parseBare(l, OpDi)
	case "ei":
		return p.parseBare(l, OpEi)
	case "reti":
		return p.parseBare(l, OpReti)
	case "rrca":
		return p.parseBare(l, OpRrca)
	case "rra":
		return p.parseBare(l, OpRra)
	case "cpl":
		return p.parseBare(l, OpCpl)
	case "ccf":
		return p.parseBare(l, OpCcf)
	case "rlca":
		return p.parseBare(l, OpRlca)
	case "rla":
		return p.parseBare(l, OpRla)
	case "daa":
		return p.parseBare(l, OpDaa)
	case "scf":
		return p.parseBare(l, OpScf)
	case "ret":
		return p.parseRet(l)
	case "rst":
		return p.parseRst(l)
	case "call":
		return p.parseFlagTarget(l, OpCall)
	case "jp":
		return p.parseJp(l)
	case "jr":
		return p.parseFlagTarget(l, OpJr)
	case "inc":
		return p.parseIncDec(l, OpIncR16, OpIncR8, OpIncMRhl)
	case "dec":
		return p.parseIncDec(l, OpDecR16, OpDecR8, OpDecMRhl)
	case "add":
		return p.parseAdd(l)
	case "sub":
		return p.parseAccOp(l, OpSubR8, OpSubMRhl, OpSubI8)
	case "and":
		return p.parseAccOp(l, OpAndR8, OpAndMRhl, OpAndI8)
	case "or":
		return p.parseAccOp(l, OpOrR8, OpOrMRhl, OpOrI8)
	case "adc":
		return p.parseAccOp(l, OpAdcR8, OpAdcMRhl, OpAdcI8)
	case "sbc":
		return p.parseAccOp(l, OpSbcR8, OpSbcMRhl, OpSbcI8)
	case "xor":
		return p.parseAccOp(l, OpXorR8, OpXorMRhl, OpXorI8)
	case "cp":
		return p.parseAccOp(l, OpCpR8, OpCpMRhl, OpCpI8)
	case "ld":
		return p.parseLd(l)
	case "ldi":
		return p.parseLdid(l, OpLdiMRhlRa, OpLdiRaMRhl)
	case "ldd":
		return p.parseLdid(l, OpLddMRhlRa, OpLddRaMRhl)
	case "push":
		return p.parsePushPop(l, OpPush)
	case "pop":
		return p.parsePushPop(l, OpPop)
	case "rlc":
		return p.parseRotate(l, OpRlcR8, OpRlcMRhl)
	case "rrc":
		return p.parseRotate(l, OpRrcR8, OpRrcMRhl)
	case "rl":
		return p.parseRotate(l, OpRlR8, OpRlMRhl)
	case "rr":
		return p.parseRotate(l, OpRrR8, OpRrMRhl)
	case "sla":
		return p.parseRotate(l, OpSlaR8, OpSlaMRhl)
	case "sra":
		return p.parseRotate(l, OpSraR8, OpSraMRhl)
	case "swap":
		return p.parseRotate(l, OpSwapR8, OpSwapMRhl)
	case "srl":
		return p.parseRotate(l, OpSrlR8, OpSrlMRhl)
	case "bit":
		return p.parseBitOp(l, OpBitBitR8, OpBitBitMRhl)
	case "res":
		return p.parseBitOp(l, OpResBitR8, OpResBitMRhl)
	case "set":
		return p.parseBitOp(l, OpSetBitR8, OpSetBitMRhl)
	case "db":
		return p.parseData(l, OpDB)
	case "dw":
		return p.parseData(l, OpDW)
	case "advance_address":
		return p.parseAdvance(l)
	case "include":
		path, remain, err := p.parseStringLiteral(l)
		if err != nil {
			return Instruction{}, err
		}
		if err := p.parseEnd(remain); err != nil {
			return Instruction{}, err
		}
		return Instruction{Op: opInclude, Name: string(path)}, nil
	}
	return Instruction{}, nil
}

// parseInclude expands an include directive in place. The path is
// resolved relative to the including file's directory; cycles fail.
func (p *parser) parseInclude(at fstring, path string) error {
	dir := filepath.Dir(at.file)
	if at.file == "" || at.file == "string" {
		dir = "."
	}
	return p.parsePath(filepath.Join(dir, path), at)
}

// parseEnd verifies that nothing but whitespace remains on the line.
func (p *parser) parseEnd(l fstring) error {
	l = l.consumeWhitespace()
	if !l.isEmpty() {
		return errorf(ErrParse, l, "unexpected characters '%s'", l.str)
	}
	return nil
}

func (p *parser) parseBare(l fstring, op Op) (Instruction, error) {
	if err := p.parseEnd(l); err != nil {
		return Instruction{}, err
	}
	return Instruction{Op: op}, nil
}

//
// operand matchers
//

func matchReg8(l fstring) (Reg8, fstring, bool) {
	for i, name := range reg8Name {
		if l.startsWithWord(name) {
			return Reg8(i), l.consume(1), true
		}
	}
	return 0, l, false
}

func matchReg16(l fstring) (Reg16, fstring, bool) {
	for i, name := range reg16Name {
		if l.startsWithWord(name) {
			return Reg16(i), l.consume(2), true
		}
	}
	return 0, l, false
}

func matchReg16Push(l fstring) (Reg16Push, fstring, bool) {
	for i, name := range reg16PushName {
		if l.startsWithWord(name) {
			return Reg16Push(i), l.consume(2), true
		}
	}
	return 0, l, false
}

func matchFlag(l fstring) (Flag, fstring, bool) {
	switch {
	case l.startsWithWord("nz"):
		return NZ, l.consume(2), true
	case l.startsWithWord("nc"):
		return NC, l.consume(2), true
	case l.startsWithWord("z"):
		return Z, l.consume(1), true
	case l.startsWithWord("c"):
		return Carry, l.consume(1), true
	}
	return 0, l, false
}

// matchComma consumes an optionally space-padded comma.
func matchComma(l fstring) (fstring, bool) {
	l = l.consumeWhitespace()
	if !l.startsWithChar(',') {
		return l, false
	}
	return l.consume(1).consumeWhitespace(), true
}

// lineEnd reports whether only whitespace remains.
func lineEnd(l fstring) bool {
	return l.consumeWhitespace().isEmpty()
}

//
// bracketed operands
//

type indirectKind byte

const (
	indBC indirectKind = iota
	indDE
	indHL
	indHighC    // [0xFF00+C]
	indHighExpr // [0xFF00+n]
	indExpr     // [nn]
)

type indirect struct {
	kind indirectKind
	expr *Expr
}

// parseIndirect parses a '['-prefixed operand through its closing ']'.
func (p *parser) parseIndirect(l fstring) (ind indirect, remain fstring, err error) {
	open := l
	l = l.consume(1).consumeWhitespace()

	finish := func(kind indirectKind, e *Expr, l fstring) (indirect, fstring, error) {
		l = l.consumeWhitespace()
		if !l.startsWithChar(']') {
			return indirect{}, l, errorf(ErrParse, open, "missing ']' in operand")
		}
		return indirect{kind, e}, l.consume(1), nil
	}

	switch {
	case l.startsWithWord("bc"):
		return finish(indBC, nil, l.consume(2))
	case l.startsWithWord("de"):
		return finish(indDE, nil, l.consume(2))
	case l.startsWithWord("hl"):
		return finish(indHL, nil, l.consume(2))
	}

	// [0xFF00+C] and [0xFF00+n] high-RAM forms. A plain [0xFF00] is an
	// ordinary 16-bit indirection, so the '+' decides.
	if l.startsWithString("0xFF00") || l.startsWithString("0xff00") ||
		l.startsWithString("$FF00") || l.startsWithString("$ff00") {
		n := 6
		if l.startsWithChar('$') {
			n = 5
		}
		rest := l.consume(n).consumeWhitespace()
		if rest.startsWithChar('+') {
			rest = rest.consume(1).consumeWhitespace()
			if f, r2, ok := matchFlag(rest); ok && f == Carry {
				return finish(indHighC, nil, r2)
			}
			e, r2, err := p.expr.parse(rest)
			if err != nil {
				return indirect{}, rest, err
			}
			return finish(indHighExpr, e, r2)
		}
	}

	e, r2, err := p.expr.parse(l)
	if err != nil {
		return indirect{}, l, err
	}
	return finish(indExpr, e, r2)
}

//
// statement parsers
//

func (p *parser) parseRet(l fstring) (Instruction, error) {
	if lineEnd(l) {
		return Instruction{Op: OpRet, Flag: Always}, nil
	}
	f, remain, ok := matchFlag(l)
	if !ok {
		return Instruction{}, errorf(ErrParse, l, "invalid condition '%s'", l.str)
	}
	if err := p.parseEnd(remain); err != nil {
		return Instruction{}, err
	}
	return Instruction{Op: OpRet, Flag: f}, nil
}

func (p *parser) parseRst(l fstring) (Instruction, error) {
	e, remain, err := p.expr.parse(l)
	if err != nil {
		return Instruction{}, err
	}
	if err := p.parseEnd(remain); err != nil {
		return Instruction{}, err
	}
	return Instruction{Op: OpRst, Expr: e}, nil
}

// parseFlagTarget parses `op [flag,] expr` statements (call and jr).
func (p *parser) parseFlagTarget(l fstring, op Op) (Instruction, error) {
	if f, remain, ok := matchFlag(l); ok {
		if r2, ok := matchComma(remain); ok {
			e, r3, err := p.expr.parse(r2)
			if err != nil {
				return Instruction{}, err
			}
			if err := p.parseEnd(r3); err != nil {
				return Instruction{}, err
			}
			return Instruction{Op: op, Flag: f, Expr: e}, nil
		}
	}
	e, remain, err := p.expr.parse(l)
	if err != nil {
		return Instruction{}, err
	}
	if err := p.parseEnd(remain); err != nil {
		return Instruction{}, err
	}
	return Instruction{Op: op, Flag: Always, Expr: e}, nil
}

func (p *parser) parseJp(l fstring) (Instruction, error) {
	if l.startsWithWord("hl") && lineEnd(l.consume(2)) {
		return Instruction{Op: OpJpRhl}, nil
	}
	inst, err := p.parseFlagTarget(l, OpJpI16)
	return inst, err
}

func (p *parser) parseIncDec(l fstring, opR16, opR8, opMRhl Op) (Instruction, error) {
	if r, remain, ok := matchReg16(l); ok && lineEnd(remain) {
		return Instruction{Op: opR16, R16: r}, nil
	}
	if r, remain, ok := matchReg8(l); ok && lineEnd(remain) {
		return Instruction{Op: opR8, Dst: r}, nil
	}
	if l.startsWithChar('[') {
		ind, remain, err := p.parseIndirect(l)
		if err != nil {
			return Instruction{}, err
		}
		if ind.kind == indHL && lineEnd(remain) {
			return Instruction{Op: opMRhl}, nil
		}
	}
	return Instruction{}, errorf(ErrParse, l, "invalid operand '%s'", l.str)
}

func (p *parser) parseAdd(l fstring) (Instruction, error) {
	// add hl, r16
	if l.startsWithWord("hl") {
		if r2, ok := matchComma(l.consume(2)); ok {
			r, r3, ok := matchReg16(r2)
			if !ok {
				return Instruction{}, errorf(ErrParse, r2, "invalid operand '%s'", r2.str)
			}
			if err := p.parseEnd(r3); err != nil {
				return Instruction{}, err
			}
			return Instruction{Op: OpAddRhlR16, R16: r}, nil
		}
	}
	// add sp, n
	if l.startsWithWord("sp") {
		if r2, ok := matchComma(l.consume(2)); ok {
			e, r3, err := p.expr.parse(r2)
			if err != nil {
				return Instruction{}, err
			}
			if err := p.parseEnd(r3); err != nil {
				return Instruction{}, err
			}
			return Instruction{Op: OpAddRspI8, Expr: e}, nil
		}
	}
	return p.parseAccOp(l, OpAddR8, OpAddMRhl, OpAddI8)
}

// parseAccOp parses the accumulator arithmetic forms `op r8`,
// `op [hl]` and `op n`, each with an optional leading `a,`. rgbds uses
// the explicit accumulator operand inconsistently, so it is always
// optional here, matching the reference assembler.
func (p *parser) parseAccOp(l fstring, opR8, opMRhl, opI8 Op) (Instruction, error) {
	if r, remain, ok := matchReg8(l); ok {
		if r == A {
			if r2, ok := matchComma(remain); ok {
				return p.parseAccOperand(r2, opR8, opMRhl, opI8)
			}
		}
		if lineEnd(remain) {
			return Instruction{Op: opR8, Dst: r}, nil
		}
	}
	return p.parseAccOperand(l, opR8, opMRhl, opI8)
}

func (p *parser) parseAccOperand(l fstring, opR8, opMRhl, opI8 Op) (Instruction, error) {
	if l.startsWithChar('[') {
		ind, remain, err := p.parseIndirect(l)
		if err != nil {
			return Instruction{}, err
		}
		if ind.kind != indHL {
			return Instruction{}, errorf(ErrParse, l, "invalid operand '%s'", l.str)
		}
		if err := p.parseEnd(remain); err != nil {
			return Instruction{}, err
		}
		return Instruction{Op: opMRhl}, nil
	}
	if r, remain, ok := matchReg8(l); ok && lineEnd(remain) {
		return Instruction{Op: opR8, Dst: r}, nil
	}
	e, remain, err := p.expr.parse(l)
	if err != nil {
		return Instruction{}, err
	}
	if err := p.parseEnd(remain); err != nil {
		return Instruction{}, err
	}
	return Instruction{Op: opI8, Expr: e}, nil
}

func (p *parser) parseLd(l fstring) (Instruction, error) {
	// Memory destination: ld [..], src
	if l.startsWithChar('[') {
		ind, remain, err := p.parseIndirect(l)
		if err != nil {
			return Instruction{}, err
		}
		remain, ok := matchComma(remain)
		if !ok {
			return Instruction{}, errorf(ErrParse, l, "expected ',' after memory operand")
		}

		switch ind.kind {
		case indBC, indDE:
			if r, r2, ok := matchReg8(remain); ok && r == A && lineEnd(r2) {
				if ind.kind == indBC {
					return Instruction{Op: OpLdMRbcRa}, nil
				}
				return Instruction{Op: OpLdMRdeRa}, nil
			}
		case indHL:
			if r, r2, ok := matchReg8(remain); ok && lineEnd(r2) {
				return Instruction{Op: OpLdMRhlR8, Dst: r}, nil
			}
			e, r2, err := p.expr.parse(remain)
			if err != nil {
				return Instruction{}, err
			}
			if err := p.parseEnd(r2); err != nil {
				return Instruction{}, err
			}
			return Instruction{Op: OpLdMRhlI8, Expr: e}, nil
		case indHighC:
			if r, r2, ok := matchReg8(remain); ok && r == A && lineEnd(r2) {
				return Instruction{Op: OpLdhMRcRa}, nil
			}
		case indHighExpr:
			if r, r2, ok := matchReg8(remain); ok && r == A && lineEnd(r2) {
				return Instruction{Op: OpLdhMI8Ra, Expr: ind.expr}, nil
			}
		case indExpr:
			if remain.startsWithWord("sp") && lineEnd(remain.consume(2)) {
				return Instruction{Op: OpLdMI16Rsp, Expr: ind.expr}, nil
			}
			if r, r2, ok := matchReg8(remain); ok && r == A && lineEnd(r2) {
				return Instruction{Op: OpLdMI16Ra, Expr: ind.expr}, nil
			}
		}
		return Instruction{}, errorf(ErrParse, remain, "invalid source operand '%s'", remain.str)
	}

	// 16-bit register destination.
	if r, remain, ok := matchReg16(l); ok {
		remain, okc := matchComma(remain)
		if !okc {
			return Instruction{}, errorf(ErrParse, l, "expected ',' after register")
		}
		switch r {
		case SP:
			if remain.startsWithWord("hl") && lineEnd(remain.consume(2)) {
				return Instruction{Op: OpLdRspRhl}, nil
			}
		case HL:
			// ld hl, sp+n
			if remain.startsWithWord("sp") {
				r2 := remain.consume(2).consumeWhitespace()
				if r2.startsWithChar('+') {
					e, r3, err := p.expr.parse(r2.consume(1).consumeWhitespace())
					if err != nil {
						return Instruction{}, err
					}
					if err := p.parseEnd(r3); err != nil {
						return Instruction{}, err
					}
					return Instruction{Op: OpLdRhlRspI8, Expr: e}, nil
				}
			}
		}
		e, r2, err := p.expr.parse(remain)
		if err != nil {
			return Instruction{}, err
		}
		if err := p.parseEnd(r2); err != nil {
			return Instruction{}, err
		}
		return Instruction{Op: OpLdR16I16, R16: r, Expr: e}, nil
	}

	// 8-bit register destination.
	if r, remain, ok := matchReg8(l); ok {
		remain, okc := matchComma(remain)
		if !okc {
			return Instruction{}, errorf(ErrParse, l, "expected ',' after register")
		}

		if remain.startsWithChar('[') {
			ind, r2, err := p.parseIndirect(remain)
			if err != nil {
				return Instruction{}, err
			}
			if err := p.parseEnd(r2); err != nil {
				return Instruction{}, err
			}
			if ind.kind == indHL {
				return Instruction{Op: OpLdR8MRhl, Dst: r}, nil
			}
			if r != A {
				return Instruction{}, errorf(ErrParse, remain, "only register a can load from '%s'", remain.str)
			}
			switch ind.kind {
			case indBC:
				return Instruction{Op: OpLdRaMRbc}, nil
			case indDE:
				return Instruction{Op: OpLdRaMRde}, nil
			case indHighC:
				return Instruction{Op: OpLdhRaMRc}, nil
			case indHighExpr:
				return Instruction{Op: OpLdhRaMI8, Expr: ind.expr}, nil
			default:
				return Instruction{Op: OpLdRaMI16, Expr: ind.expr}, nil
			}
		}

		if src, r2, ok := matchReg8(remain); ok && lineEnd(r2) {
			return Instruction{Op: OpLdR8R8, Dst: r, Src: src}, nil
		}

		e, r2, err := p.expr.parse(remain)
		if err != nil {
			return Instruction{}, err
		}
		if err := p.parseEnd(r2); err != nil {
			return Instruction{}, err
		}
		return Instruction{Op: OpLdR8I8, Dst: r, Expr: e}, nil
	}

	return Instruction{}, errorf(ErrParse, l, "invalid operand '%s'", l.str)
}

// parseLdid parses the post-increment/decrement loads:
// ldi/ldd [hl], a and ldi/ldd a, [hl].
func (p *parser) parseLdid(l fstring, opStore, opLoad Op) (Instruction, error) {
	if l.startsWithChar('[') {
		ind, remain, err := p.parseIndirect(l)
		if err != nil {
			return Instruction{}, err
		}
		remain, ok := matchComma(remain)
		if ind.kind == indHL && ok {
			if r, r2, ok := matchReg8(remain); ok && r == A && lineEnd(r2) {
				return Instruction{Op: opStore}, nil
			}
		}
		return Instruction{}, errorf(ErrParse, l, "invalid operand '%s'", l.str)
	}
	if r, remain, ok := matchReg8(l); ok && r == A {
		if remain, ok := matchComma(remain); ok && remain.startsWithChar('[') {
			ind, r2, err := p.parseIndirect(remain)
			if err != nil {
				return Instruction{}, err
			}
			if ind.kind == indHL && lineEnd(r2) {
				return Instruction{Op: opLoad}, nil
			}
		}
	}
	return Instruction{}, errorf(ErrParse, l, "invalid operand '%s'", l.str)
}

func (p *parser) parsePushPop(l fstring, op Op) (Instruction, error) {
	r, remain, ok := matchReg16Push(l)
	if !ok {
		return Instruction{}, errorf(ErrParse, l, "invalid register pair '%s'", l.str)
	}
	if err := p.parseEnd(remain); err != nil {
		return Instruction{}, err
	}
	return Instruction{Op: op, RPush: r}, nil
}

func (p *parser) parseRotate(l fstring, opR8, opMRhl Op) (Instruction, error) {
	if r, remain, ok := matchReg8(l); ok && lineEnd(remain) {
		return Instruction{Op: opR8, Dst: r}, nil
	}
	if l.startsWithChar('[') {
		ind, remain, err := p.parseIndirect(l)
		if err != nil {
			return Instruction{}, err
		}
		if ind.kind == indHL && lineEnd(remain) {
			return Instruction{Op: opMRhl}, nil
		}
	}
	return Instruction{}, errorf(ErrParse, l, "invalid operand '%s'", l.str)
}

func (p *parser) parseBitOp(l fstring, opR8, opMRhl Op) (Instruction, error) {
	e, remain, err := p.expr.parse(l)
	if err != nil {
		return Instruction{}, err
	}
	remain, ok := matchComma(remain)
	if !ok {
		return Instruction{}, errorf(ErrParse, l, "expected ',' after bit index")
	}
	if r, r2, ok := matchReg8(remain); ok && lineEnd(r2) {
		return Instruction{Op: opR8, Dst: r, Expr: e}, nil
	}
	if remain.startsWithChar('[') {
		ind, r2, err := p.parseIndirect(remain)
		if err != nil {
			return Instruction{}, err
		}
		if ind.kind == indHL && lineEnd(r2) {
			return Instruction{Op: opMRhl, Expr: e}, nil
		}
	}
	return Instruction{}, errorf(ErrParse, remain, "invalid operand '%s'", remain.str)
}

// parseData parses a DB or DW item list.
func (p *parser) parseData(l fstring, op Op) (Instruction, error) {
	inst := Instruction{Op: op}
	for {
		l = l.consumeWhitespace()
		if l.startsWithChar('"') {
			if op == OpDW {
				return Instruction{}, errorf(ErrParse, l, "string literals are not allowed in dw")
			}
			s, remain, err := p.parseStringLiteral(l)
			if err != nil {
				return Instruction{}, err
			}
			inst.Data = append(inst.Data, DataItem{Str: s})
			l = remain
		} else {
			e, remain, err := p.expr.parse(l)
			if err != nil {
				return Instruction{}, err
			}
			inst.Data = append(inst.Data, DataItem{Expr: e})
			l = remain
		}

		remain, ok := matchComma(l)
		if !ok {
			break
		}
		l = remain
	}
	if err := p.parseEnd(l); err != nil {
		return Instruction{}, err
	}
	return inst, nil
}

func (p *parser) parseAdvance(l fstring) (Instruction, error) {
	e, remain, err := p.expr.parse(l)
	if err != nil {
		return Instruction{}, err
	}
	if err := p.parseEnd(remain); err != nil {
		return Instruction{}, err
	}
	return Instruction{Op: OpAdvanceAddress, Expr: e}, nil
}

// parseStringLiteral parses a double-quoted string with the escapes
// \\, \", \n and \0.
func (p *parser) parseStringLiteral(l fstring) ([]byte, fstring, error) {
	if !l.startsWithChar('"') {
		return nil, l, errorf(ErrParse, l, "expected a string literal")
	}
	var out []byte
	i := 1
	for ; i < len(l.str); i++ {
		c := l.str[i]
		switch c {
		case '"':
			return out, l.consume(i + 1), nil
		case '\\':
			i++
			if i >= len(l.str) {
				return nil, l, errorf(ErrLex, l, "unterminated string literal")
			}
			switch l.str[i] {
			case '\\':
				out = append(out, '\\')
			case '"':
				out = append(out, '"')
			case 'n':
				out = append(out, '\n')
			case '0':
				out = append(out, 0)
			default:
				return nil, l, errorf(ErrLex, l, "unknown escape '\\%c'", l.str[i])
			}
		default:
			out = append(out, c)
		}
	}
	return nil, l, errorf(ErrLex, l, "unterminated string literal")
}
