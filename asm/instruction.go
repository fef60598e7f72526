package asm

// Reg8 identifies one of the CPU's 8-bit registers.
type Reg8 byte

const (
	A Reg8 = iota
	B
	C
	D
	E
	H
	L
)

var reg8Name = []string{"a", "b", "c", "d", "e", "h", "l"}

func (r Reg8) String() string { return reg8Name[r] }

// bits returns the register's 3-bit field used by many opcodes.
func (r Reg8) bits() byte {
	switch r {
	case A:
		return 0x07
	case B:
		return 0x00
	case C:
		return 0x01
	case D:
		return 0x02
	case E:
		return 0x03
	case H:
		return 0x04
	default:
		return 0x05
	}
}

// Reg16 identifies one of the 16-bit register pairs usable as a
// pointer or arithmetic operand.
type Reg16 byte

const (
	BC Reg16 = iota
	DE
	HL
	SP
)

var reg16Name = []string{"bc", "de", "hl", "sp"}

func (r Reg16) String() string { return reg16Name[r] }

// Reg16Push identifies a register pair usable with push and pop.
type Reg16Push byte

const (
	PushBC Reg16Push = iota
	PushDE
	PushHL
	PushAF
)

var reg16PushName = []string{"bc", "de", "hl", "af"}

func (r Reg16Push) String() string { return reg16PushName[r] }

// Flag identifies a jump/call/ret condition code.
type Flag byte

const (
	Always Flag = iota
	Z
	NZ
	Carry
	NC
)

// Op enumerates every statement kind the parser produces: one case per
// LR35902 mnemonic family plus the assembler directives. The encoded
// length of a CPU instruction is a pure function of its Op; DB and DW
// lengths depend on their item lists.
type Op int

const (
	// Keeping track of empty lines makes it easy to refer errors back
	// to a line number.
	OpEmpty Op = iota
	OpAdvanceAddress
	OpEqu
	OpLabel
	OpDB
	OpDW

	OpNop
	OpStop
	OpHalt
	OpDi
	OpEi
	OpRrca
	OpRra
	OpCpl
	OpCcf
	OpRlca
	OpRla
	OpDaa
	OpScf
	OpRet
	OpReti
	OpRst
	OpCall
	OpJpI16
	OpJpRhl
	OpJr
	OpIncR16
	OpIncR8
	OpIncMRhl
	OpDecR16
	OpDecR8
	OpDecMRhl
	OpAddR8
	OpAddMRhl
	OpAddI8
	OpAddRhlR16
	OpAddRspI8
	OpSubR8
	OpSubMRhl
	OpSubI8
	OpAndR8
	OpAndMRhl
	OpAndI8
	OpOrR8
	OpOrMRhl
	OpOrI8
	OpAdcR8
	OpAdcMRhl
	OpAdcI8
	OpSbcR8
	OpSbcMRhl
	OpSbcI8
	OpXorR8
	OpXorMRhl
	OpXorI8
	OpCpR8
	OpCpMRhl
	OpCpI8
	OpLdR16I16
	OpLdMI16Rsp
	OpLdMRbcRa
	OpLdMRdeRa
	OpLdRaMRbc
	OpLdRaMRde
	OpLdR8R8
	OpLdR8I8
	OpLdR8MRhl
	OpLdMRhlR8
	OpLdMRhlI8
	OpLdMI16Ra
	OpLdRaMI16
	OpLdhRaMI8
	OpLdhMI8Ra
	OpLdhRaMRc
	OpLdhMRcRa
	OpLdiMRhlRa
	OpLddMRhlRa
	OpLdiRaMRhl
	OpLddRaMRhl
	OpLdRhlRspI8
	OpLdRspRhl
	OpPush
	OpPop

	// 0xCB prefix
	OpRlcR8
	OpRlcMRhl
	OpRrcR8
	OpRrcMRhl
	OpRlR8
	OpRlMRhl
	OpRrR8
	OpRrMRhl
	OpSlaR8
	OpSlaMRhl
	OpSraR8
	OpSraMRhl
	OpSwapR8
	OpSwapMRhl
	OpSrlR8
	OpSrlMRhl
	OpBitBitR8
	OpBitBitMRhl
	OpResBitR8
	OpResBitMRhl
	OpSetBitR8
	OpSetBitMRhl
)

// A DataItem is one element of a DB or DW list: either the bytes of a
// string literal or a constant expression.
type DataItem struct {
	Str  []byte
	Expr *Expr
}

// An Instruction is one parsed statement: a CPU instruction, a
// directive, a label definition or an empty line.
type Instruction struct {
	Op   Op
	File string // source file the statement came from, if any
	Line int    // 1-based source line the statement came from

	Name   string     // label or equ identifier
	Dst    Reg8       // 8-bit register operand (destination for ld r8,r8)
	Src    Reg8       // source register for ld r8,r8
	R16    Reg16      // 16-bit register pair operand
	RPush  Reg16Push  // push/pop register pair
	Flag   Flag       // condition code
	Expr   *Expr      // immediate/target/bit-index/equ expression
	Data   []DataItem // db/dw items
	Target uint16     // resolved advance_address target (set in pass 1)
}

// EncodedLen returns the number of bytes the instruction occupies in
// the ROM. It never evaluates operand expressions, so it is usable
// before symbol resolution. OpAdvanceAddress gaps are sized by the
// placement engine and report zero here.
func (inst *Instruction) EncodedLen() int {
	switch inst.Op {
	case OpEmpty, OpEqu, OpLabel, OpAdvanceAddress:
		return 0

	case OpDB:
		n := 0
		for _, item := range inst.Data {
			if item.Str != nil {
				n += len(item.Str)
			} else {
				n++
			}
		}
		return n

	case OpDW:
		return 2 * len(inst.Data)

	case OpHalt:
		// halt is followed by a nop to sidestep the hardware halt bug.
		return 2

	case OpCall, OpJpI16, OpLdR16I16, OpLdMI16Rsp, OpLdMI16Ra, OpLdRaMI16:
		return 3

	case OpJr,
		OpAddI8, OpAddRspI8, OpSubI8, OpAndI8, OpOrI8, OpAdcI8, OpSbcI8, OpXorI8, OpCpI8,
		OpLdR8I8, OpLdMRhlI8, OpLdhRaMI8, OpLdhMI8Ra, OpLdRhlRspI8,
		OpRlcR8, OpRlcMRhl, OpRrcR8, OpRrcMRhl, OpRlR8, OpRlMRhl, OpRrR8, OpRrMRhl,
		OpSlaR8, OpSlaMRhl, OpSraR8, OpSraMRhl, OpSwapR8, OpSwapMRhl, OpSrlR8, OpSrlMRhl,
		OpBitBitR8, OpBitBitMRhl, OpResBitR8, OpResBitMRhl, OpSetBitR8, OpSetBitMRhl:
		return 2

	default:
		return 1
	}
}

// Encode appends the instruction's bytes to rom. Expressions are
// evaluated against symbols; pc is the CPU-visible address of the
// instruction's first byte, used for relative jumps and
// advance_address gap filling.
func (inst *Instruction) Encode(rom *[]byte, symbols map[string]int64, pc uint16) error {
	put := func(b ...byte) {
		*rom = append(*rom, b...)
	}
	putByteExpr := func(opcode byte, e *Expr) error {
		v, err := e.EvalByte(symbols)
		if err != nil {
			return err
		}
		put(opcode, v)
		return nil
	}
	putWordExpr := func(opcode byte, e *Expr) error {
		v, err := e.EvalWord(symbols)
		if err != nil {
			return err
		}
		put(opcode, v[0], v[1])
		return nil
	}
	cb := func(opcode byte) {
		put(0xCB, opcode)
	}
	cbBit := func(base byte, e *Expr, reg byte) error {
		bit, err := e.EvalBit(symbols)
		if err != nil {
			return err
		}
		cb(base | bit*0x08 | reg)
		return nil
	}

	switch inst.Op {
	case OpEmpty, OpEqu, OpLabel:

	case OpAdvanceAddress:
		if inst.Target < pc {
			return Errorf(ErrAdvance, "attempted to advance to a previous address 0x%04x < 0x%04x", inst.Target, pc)
		}
		for i := pc; i < inst.Target; i++ {
			put(0x00)
		}

	case OpDB:
		for _, item := range inst.Data {
			if item.Str != nil {
				put(item.Str...)
				continue
			}
			v, err := item.Expr.EvalByte(symbols)
			if err != nil {
				return err
			}
			put(v)
		}

	case OpDW:
		for _, item := range inst.Data {
			v, err := item.Expr.EvalWord(symbols)
			if err != nil {
				return err
			}
			put(v[0], v[1])
		}

	case OpNop:
		put(0x00)
	case OpStop:
		put(0x10)
	case OpHalt:
		put(0x76, 0x00)
	case OpDi:
		put(0xF3)
	case OpEi:
		put(0xFB)
	case OpRrca:
		put(0x0F)
	case OpRra:
		put(0x1F)
	case OpCpl:
		put(0x2F)
	case OpCcf:
		put(0x3F)
	case OpRlca:
		put(0x07)
	case OpRla:
		put(0x17)
	case OpDaa:
		put(0x27)
	case OpScf:
		put(0x37)

	case OpRet:
		switch inst.Flag {
		case Always:
			put(0xC9)
		case Z:
			put(0xC8)
		case Carry:
			put(0xD8)
		case NZ:
			put(0xC0)
		case NC:
			put(0xD0)
		}
	case OpReti:
		put(0xD9)

	case OpRst:
		v, err := inst.Expr.Eval(symbols)
		if err != nil {
			return err
		}
		if v < 0 || v > 0x38 || v%8 != 0 {
			return Errorf(ErrRange, "0x%x is not a restart vector", v)
		}
		put(0xC7 | byte(v))

	case OpCall:
		var opcode byte
		switch inst.Flag {
		case Always:
			opcode = 0xCD
		case Z:
			opcode = 0xCC
		case Carry:
			opcode = 0xDC
		case NZ:
			opcode = 0xC4
		case NC:
			opcode = 0xD4
		}
		return putWordExpr(opcode, inst.Expr)

	case OpJpI16:
		var opcode byte
		switch inst.Flag {
		case Always:
			opcode = 0xC3
		case Z:
			opcode = 0xCA
		case Carry:
			opcode = 0xDA
		case NZ:
			opcode = 0xC2
		case NC:
			opcode = 0xD2
		}
		return putWordExpr(opcode, inst.Expr)

	case OpJpRhl:
		put(0xE9)

	case OpJr:
		target, err := inst.Expr.Eval(symbols)
		if err != nil {
			return err
		}
		// The displacement is relative to the address following the
		// 2-byte jr instruction.
		disp := target - int64(pc) - 2
		if disp > 0x7F || disp < -0x80 {
			return Errorf(ErrRange, "relative jump displacement %d does not fit in a signed byte", disp)
		}
		var opcode byte
		switch inst.Flag {
		case Always:
			opcode = 0x18
		case Z:
			opcode = 0x28
		case Carry:
			opcode = 0x38
		case NZ:
			opcode = 0x20
		case NC:
			opcode = 0x30
		}
		put(opcode, byte(disp))

	case OpIncR16:
		put([]byte{0x03, 0x13, 0x23, 0x33}[inst.R16])
	case OpIncR8:
		put([]byte{0x3C, 0x04, 0x0C, 0x14, 0x1C, 0x24, 0x2C}[inst.Dst])
	case OpIncMRhl:
		put(0x34)
	case OpDecR16:
		put([]byte{0x0B, 0x1B, 0x2B, 0x3B}[inst.R16])
	case OpDecR8:
		put([]byte{0x3D, 0x05, 0x0D, 0x15, 0x1D, 0x25, 0x2D}[inst.Dst])
	case OpDecMRhl:
		put(0x35)

	case OpAddR8:
		put(0x80 | inst.Dst.bits())
	case OpAddMRhl:
		put(0x86)
	case OpAddI8:
		return putByteExpr(0xC6, inst.Expr)
	case OpAddRhlR16:
		put([]byte{0x09, 0x19, 0x29, 0x39}[inst.R16])
	case OpAddRspI8:
		return putByteExpr(0xE8, inst.Expr)

	case OpSubR8:
		put(0x90 | inst.Dst.bits())
	case OpSubMRhl:
		put(0x96)
	case OpSubI8:
		return putByteExpr(0xD6, inst.Expr)

	case OpAndR8:
		put(0xA0 | inst.Dst.bits())
	case OpAndMRhl:
		put(0xA6)
	case OpAndI8:
		return putByteExpr(0xE6, inst.Expr)

	case OpOrR8:
		put(0xB0 | inst.Dst.bits())
	case OpOrMRhl:
		put(0xB6)
	case OpOrI8:
		return putByteExpr(0xF6, inst.Expr)

	case OpAdcR8:
		put(0x88 | inst.Dst.bits())
	case OpAdcMRhl:
		put(0x8E)
	case OpAdcI8:
		return putByteExpr(0xCE, inst.Expr)

	case OpSbcR8:
		put(0x98 | inst.Dst.bits())
	case OpSbcMRhl:
		put(0x9E)
	case OpSbcI8:
		return putByteExpr(0xDE, inst.Expr)

	case OpXorR8:
		put(0xA8 | inst.Dst.bits())
	case OpXorMRhl:
		put(0xAE)
	case OpXorI8:
		return putByteExpr(0xEE, inst.Expr)

	case OpCpR8:
		put(0xB8 | inst.Dst.bits())
	case OpCpMRhl:
		put(0xBE)
	case OpCpI8:
		return putByteExpr(0xFE, inst.Expr)

	case OpLdR16I16:
		return putWordExpr([]byte{0x01, 0x11, 0x21, 0x31}[inst.R16], inst.Expr)
	case OpLdMI16Rsp:
		return putWordExpr(0x08, inst.Expr)
	case OpLdMRbcRa:
		put(0x02)
	case OpLdMRdeRa:
		put(0x12)
	case OpLdRaMRbc:
		put(0x0A)
	case OpLdRaMRde:
		put(0x1A)

	case OpLdR8R8:
		var base byte
		switch inst.Dst {
		case A:
			base = 0x78
		case B:
			base = 0x40
		case C:
			base = 0x48
		case D:
			base = 0x50
		case E:
			base = 0x58
		case H:
			base = 0x60
		case L:
			base = 0x68
		}
		put(base | inst.Src.bits())

	case OpLdR8I8:
		return putByteExpr([]byte{0x3E, 0x06, 0x0E, 0x16, 0x1E, 0x26, 0x2E}[inst.Dst], inst.Expr)
	case OpLdR8MRhl:
		put([]byte{0x7E, 0x46, 0x4E, 0x56, 0x5E, 0x66, 0x6E}[inst.Dst])
	case OpLdMRhlR8:
		put(0x70 | inst.Dst.bits())
	case OpLdMRhlI8:
		return putByteExpr(0x36, inst.Expr)
	case OpLdMI16Ra:
		return putWordExpr(0xEA, inst.Expr)
	case OpLdRaMI16:
		return putWordExpr(0xFA, inst.Expr)
	case OpLdhRaMI8:
		return putByteExpr(0xF0, inst.Expr)
	case OpLdhMI8Ra:
		return putByteExpr(0xE0, inst.Expr)
	case OpLdhRaMRc:
		put(0xF2)
	case OpLdhMRcRa:
		put(0xE2)
	case OpLdiMRhlRa:
		put(0x22)
	case OpLddMRhlRa:
		put(0x32)
	case OpLdiRaMRhl:
		put(0x2A)
	case OpLddRaMRhl:
		put(0x3A)
	case OpLdRhlRspI8:
		return putByteExpr(0xF8, inst.Expr)
	case OpLdRspRhl:
		put(0xF9)

	case OpPush:
		put([]byte{0xC5, 0xD5, 0xE5, 0xF5}[inst.RPush])
	case OpPop:
		put([]byte{0xC1, 0xD1, 0xE1, 0xF1}[inst.RPush])

	case OpRlcR8:
		cb(0x00 | inst.Dst.bits())
	case OpRlcMRhl:
		cb(0x06)
	case OpRrcR8:
		cb(0x08 | inst.Dst.bits())
	case OpRrcMRhl:
		cb(0x0E)
	case OpRlR8:
		cb(0x10 | inst.Dst.bits())
	case OpRlMRhl:
		cb(0x16)
	case OpRrR8:
		cb(0x18 | inst.Dst.bits())
	case OpRrMRhl:
		cb(0x1E)
	case OpSlaR8:
		cb(0x20 | inst.Dst.bits())
	case OpSlaMRhl:
		cb(0x26)
	case OpSraR8:
		cb(0x28 | inst.Dst.bits())
	case OpSraMRhl:
		cb(0x2E)
	case OpSwapR8:
		cb(0x30 | inst.Dst.bits())
	case OpSwapMRhl:
		cb(0x36)
	case OpSrlR8:
		cb(0x38 | inst.Dst.bits())
	case OpSrlMRhl:
		cb(0x3E)

	case OpBitBitR8:
		return cbBit(0x40, inst.Expr, inst.Dst.bits())
	case OpBitBitMRhl:
		return cbBit(0x40, inst.Expr, 0x06)
	case OpResBitR8:
		return cbBit(0x80, inst.Expr, inst.Dst.bits())
	case OpResBitMRhl:
		return cbBit(0x80, inst.Expr, 0x06)
	case OpSetBitR8:
		return cbBit(0xC0, inst.Expr, inst.Dst.bits())
	case OpSetBitMRhl:
		return cbBit(0xC0, inst.Expr, 0x06)
	}

	return nil
}
