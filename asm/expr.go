package asm

import (
	"fmt"
	"strconv"
)

//
// exprOp
//

type exprOp byte

const (
	// operators in descending order of precedence

	// unary operations
	opUnaryMinus exprOp = iota

	// binary operations
	opMultiply
	opDivide
	opModulo
	opAdd
	opSubtract
	opShiftLeft
	opShiftRight
	opBitwiseAND
	opBitwiseXOR
	opBitwiseOR

	// value "operations"
	opNumber
	opIdentifier

	// pseudo-operations (used only during parsing but not stored in Exprs)
	opLeftParen
	opRightParen
)

type opdata struct {
	precedence      byte
	binary          bool
	leftAssociative bool
	symbol          string
}

var ops = []opdata{
	// unary and binary operations
	{7, false, false, "-"},  // uminus
	{6, true, true, "*"},    // multiply
	{6, true, true, "/"},    // divide
	{6, true, true, "%"},    // modulo
	{5, true, true, "+"},    // add
	{5, true, true, "-"},    // subtract
	{4, true, true, "<<"},   // shift_left
	{4, true, true, ">>"},   // shift_right
	{3, true, true, "&"},    // and
	{2, true, true, "^"},    // xor
	{1, true, true, "|"},    // or

	// value operations
	{0, false, false, ""}, // number
	{0, false, false, ""}, // identifier

	// pseudo-operations
	{0, false, false, ""}, // lparen
	{0, false, false, ""}, // rparen
}

func (op exprOp) isBinary() bool {
	return ops[op].binary
}

func (op exprOp) symbol() string {
	return ops[op].symbol
}

func (op exprOp) isCollapsible() bool {
	return ops[op].precedence > 0
}

// Compare the precedence and associativity of 'op' to 'other'.
// Return true if the shunting yard algorithm should cause an
// expression node collapse.
func (op exprOp) collapses(other exprOp) bool {
	if ops[op].leftAssociative {
		return ops[op].precedence <= ops[other].precedence
	}
	return ops[op].precedence < ops[other].precedence
}

//
// Expr
//

// An Expr is a node in a constant-expression tree. The root node
// represents an entire expression. Identifiers remain unresolved until
// the expression is evaluated against a symbol table.
type Expr struct {
	number     int64
	identifier string
	op         exprOp
	line       fstring
	child0     *Expr
	child1     *Expr
}

// Number returns an expression holding the constant value v.
func Number(v int64) *Expr {
	return &Expr{op: opNumber, number: v}
}

// Identifier returns an expression referencing the symbol name.
func Identifier(name string) *Expr {
	return &Expr{op: opIdentifier, identifier: name}
}

// String returns the expression as a postfix notation string.
func (e *Expr) String() string {
	switch {
	case e.op == opNumber:
		return fmt.Sprintf("%d", e.number)
	case e.op == opIdentifier:
		return e.identifier
	case e.op.isBinary():
		return fmt.Sprintf("%s %s %s", e.child0.String(), e.child1.String(), e.op.symbol())
	default:
		return fmt.Sprintf("%s [%s]", e.child0.String(), e.op.symbol())
	}
}

// Eval evaluates the expression tree against the symbol table,
// producing a 64-bit result. Unknown identifiers and division by zero
// are errors.
func (e *Expr) Eval(symbols map[string]int64) (int64, error) {
	switch {
	case e.op == opNumber:
		return e.number, nil

	case e.op == opIdentifier:
		v, ok := symbols[e.identifier]
		if !ok {
			return 0, errorf(ErrUndefinedSymbol, e.line, "identifier '%s' can not be found", e.identifier)
		}
		return v, nil

	case e.op.isBinary():
		a, err := e.child0.Eval(symbols)
		if err != nil {
			return 0, err
		}
		b, err := e.child1.Eval(symbols)
		if err != nil {
			return 0, err
		}
		switch e.op {
		case opMultiply:
			return a * b, nil
		case opDivide:
			if b == 0 {
				return 0, errorf(ErrArithmetic, e.line, "attempted to divide by zero: %s / %s", e.child0, e.child1)
			}
			return a / b, nil
		case opModulo:
			if b == 0 {
				return 0, errorf(ErrArithmetic, e.line, "attempted to divide by zero (remainder): %s %% %s", e.child0, e.child1)
			}
			return a % b, nil
		case opAdd:
			return a + b, nil
		case opSubtract:
			return a - b, nil
		case opShiftLeft:
			return a << uint64(b), nil
		case opShiftRight:
			return a >> uint64(b), nil
		case opBitwiseAND:
			return a & b, nil
		case opBitwiseXOR:
			return a ^ b, nil
		default:
			return a | b, nil
		}

	default: // unary minus
		v, err := e.child0.Eval(symbols)
		if err != nil {
			return 0, err
		}
		return -v, nil
	}
}

// EvalByte evaluates the expression and range-checks the result against
// the i8/u8 union, returning its byte encoding.
func (e *Expr) EvalByte(symbols map[string]int64) (byte, error) {
	v, err := e.Eval(symbols)
	if err != nil {
		return 0, err
	}
	if v < -128 || v > 255 {
		return 0, errorf(ErrRange, e.line, "0x%x does not fit in one byte", v)
	}
	return byte(v), nil
}

// EvalWord evaluates the expression and range-checks the result against
// the i16/u16 union, returning its little-endian encoding.
func (e *Expr) EvalWord(symbols map[string]int64) ([2]byte, error) {
	v, err := e.Eval(symbols)
	if err != nil {
		return [2]byte{}, err
	}
	if v < -32768 || v > 0xFFFF {
		return [2]byte{}, errorf(ErrRange, e.line, "0x%x does not fit in two bytes", v)
	}
	return [2]byte{byte(v), byte(v >> 8)}, nil
}

// EvalBit evaluates the expression as a bit index in the range 0..7.
func (e *Expr) EvalBit(symbols map[string]int64) (byte, error) {
	v, err := e.Eval(symbols)
	if err != nil {
		return 0, err
	}
	if v < 0 || v > 7 {
		return 0, errorf(ErrRange, e.line, "%d does not index a bit in a byte", v)
	}
	return byte(v), nil
}

//
// token
//

type tokentype byte

const (
	tokenNil tokentype = iota
	tokenOp
	tokenNumber
	tokenIdentifier
	tokenLeftParen
	tokenRightParen
)

func (tt tokentype) isValue() bool {
	return tt == tokenNumber || tt == tokenIdentifier
}

type token struct {
	tt         tokentype
	number     int64
	identifier fstring
	op         exprOp
}

//
// exprParser
//

type exprParser struct {
	operandStack  exprStack
	operatorStack opStack
	parenCounter  int
	prevToken     token
}

// Parse an expression from the line until a token is reached that cannot
// be part of the expression. Parsing is performed with Dijkstra's
// shunting-yard algorithm.
func (p *exprParser) parse(line fstring) (e *Expr, remain fstring, err error) {
	p.prevToken = token{}

	orig := line
	for err == nil {
		var tok token
		tok, remain, err = p.parseToken(line)
		if err != nil {
			break
		}

		// We're done when the token parser returns the nil token.
		if tok.tt == tokenNil {
			break
		}

		switch tok.tt {
		case tokenNumber:
			p.operandStack.push(&Expr{op: opNumber, number: tok.number, line: orig})

		case tokenIdentifier:
			p.operandStack.push(&Expr{op: opIdentifier, identifier: tok.identifier.str, line: orig})

		case tokenOp:
			for err == nil && !p.operatorStack.empty() && tok.op.collapses(p.operatorStack.peek()) {
				err = p.operandStack.collapse(p.operatorStack.pop())
			}
			p.operatorStack.push(tok.op)

		case tokenLeftParen:
			p.operatorStack.push(opLeftParen)

		case tokenRightParen:
			for err == nil {
				if p.operatorStack.empty() {
					err = errorf(ErrParse, line, "mismatched parentheses")
					break
				}
				op := p.operatorStack.pop()
				if op == opLeftParen {
					break
				}
				err = p.operandStack.collapse(op)
			}
		}
		line = remain
	}

	// Collapse any operators (and operands) remaining on the stack.
	for err == nil && !p.operatorStack.empty() {
		op := p.operatorStack.pop()
		if op == opLeftParen {
			err = errorf(ErrParse, orig, "mismatched parentheses")
			break
		}
		err = p.operandStack.collapse(op)
	}

	if err == nil {
		e = p.operandStack.peek()
		if e == nil {
			err = errorf(ErrParse, orig, "expected an expression")
		}
	}
	if err != nil {
		if _, ok := err.(*Error); !ok {
			err = errorf(ErrParse, orig, "expression syntax error")
		}
	}
	p.reset()
	return e, remain, err
}

// Attempt to parse the next expression token from the line. An
// expression ends at the first token that cannot continue it, which is
// reported as the nil token.
func (p *exprParser) parseToken(line fstring) (t token, remain fstring, err error) {
	if line.isEmpty() {
		t.tt, remain = tokenNil, line
		return
	}

	valueExpected := !p.prevToken.tt.isValue() && p.prevToken.tt != tokenRightParen

	switch {
	case line.startsWith(decimal) || line.startsWithChar('$') ||
		(line.startsWithChar('%') && valueExpected):
		t.number, remain, err = parseNumber(line)
		t.tt = tokenNumber
		if !valueExpected {
			err = errorf(ErrParse, line, "unexpected number")
		}

	case line.startsWithChar('('):
		p.parenCounter++
		t.tt, t.op = tokenLeftParen, opLeftParen
		remain = line.consume(1)

	case line.startsWithChar(')'):
		if p.parenCounter == 0 {
			// Not part of the expression; let the caller have it.
			t.tt, remain = tokenNil, line
			return
		}
		p.parenCounter--
		t.tt, t.op, remain = tokenRightParen, opRightParen, line.consume(1)

	case line.startsWith(identifierStartChar):
		t.tt = tokenIdentifier
		t.identifier, remain = line.consumeWhile(identifierChar)
		if !valueExpected {
			err = errorf(ErrParse, line, "unexpected identifier '%s'", t.identifier.str)
		}

	default:
		for i, o := range ops {
			if o.symbol == "" || !line.startsWithString(o.symbol) {
				continue
			}
			if o.binary && valueExpected {
				// A binary operator where a value belongs can only be
				// the unary form of '-'.
				continue
			}
			if !o.binary && !valueExpected {
				continue
			}
			t.tt, t.op, remain = tokenOp, exprOp(i), line.consume(len(o.symbol))
			break
		}
		if t.tt != tokenOp {
			// An unrecognized character ends the expression.
			t.tt, remain = tokenNil, line
			return
		}
	}

	p.prevToken = t
	remain = remain.consumeWhitespace()
	return
}

// parseNumber parses an integer literal from the line. The following
// formats are accepted:
//
//	42        decimal
//	$2A       hexadecimal
//	0x2A      hexadecimal
//	2Ah       hexadecimal (trailing radix letter)
//	%1010     binary
//	0b1010    binary
func parseNumber(line fstring) (value int64, remain fstring, err error) {
	base, fn := 10, decimal
	switch {
	case line.startsWithChar('$'):
		line = line.consume(1)
		base, fn = 16, hexadecimal
	case line.startsWithString("0x") || line.startsWithString("0X"):
		line = line.consume(2)
		base, fn = 16, hexadecimal
	case line.startsWithString("0b") || line.startsWithString("0B"):
		line = line.consume(2)
		base, fn = 2, binarynum
	case line.startsWithChar('%'):
		line = line.consume(1)
		base, fn = 2, binarynum
	default:
		// A decimal literal, unless hex digits followed by a trailing
		// 'h' make it hexadecimal.
		numstr, rest := line.consumeWhile(hexadecimal)
		if rest.startsWithChar('h') || rest.startsWithChar('H') {
			value, err = strconv.ParseInt(numstr.str, 16, 64)
			if err != nil {
				return 0, rest, errorf(ErrLex, line, "failed to parse integer '%s'", numstr.str)
			}
			return value, rest.consume(1), nil
		}
	}

	numstr, remain := line.consumeWhile(fn)
	if numstr.isEmpty() {
		return 0, remain, errorf(ErrLex, line, "malformed integer literal")
	}

	value, converr := strconv.ParseInt(numstr.str, base, 64)
	if converr != nil {
		return 0, remain, errorf(ErrLex, line, "failed to parse integer '%s'", numstr.str)
	}
	return value, remain, nil
}

func (p *exprParser) reset() {
	p.operandStack.data, p.operatorStack.data = nil, nil
	p.parenCounter = 0
}

//
// exprStack
//

type exprStack struct {
	data []*Expr
}

func (s *exprStack) empty() bool {
	return len(s.data) == 0
}

func (s *exprStack) push(e *Expr) {
	s.data = append(s.data, e)
}

func (s *exprStack) pop() *Expr {
	l := len(s.data)
	e := s.data[l-1]
	s.data = s.data[:l-1]
	return e
}

func (s *exprStack) peek() *Expr {
	if len(s.data) == 0 {
		return nil
	}
	return s.data[len(s.data)-1]
}

// Collapse one or more expression nodes on the top of the
// stack into a combined expression node, and push the combined
// node back onto the stack.
func (s *exprStack) collapse(op exprOp) error {
	switch {
	case !op.isCollapsible():
		return Errorf(ErrParse, "expression syntax error")
	case op.isBinary():
		if len(s.data) < 2 {
			return Errorf(ErrParse, "expression syntax error")
		}
		e := &Expr{op: op, child1: s.pop(), child0: s.pop()}
		e.line = e.child0.line
		s.push(e)
	default:
		if s.empty() {
			return Errorf(ErrParse, "expression syntax error")
		}
		e := &Expr{op: op, child0: s.pop()}
		e.line = e.child0.line
		s.push(e)
	}
	return nil
}

//
// opStack
//

type opStack struct {
	data []exprOp
}

func (s *opStack) push(op exprOp) {
	s.data = append(s.data, op)
}

func (s *opStack) pop() exprOp {
	op := s.data[len(s.data)-1]
	s.data = s.data[0 : len(s.data)-1]
	return op
}

func (s *opStack) empty() bool {
	return len(s.data) == 0
}

func (s *opStack) peek() exprOp {
	return s.data[len(s.data)-1]
}

// ParseExpr parses source as a complete constant expression. Trailing
// characters after the expression are an error.
func ParseExpr(source string) (*Expr, error) {
	var p exprParser
	e, remain, err := p.parse(newFstring("", 1, source).consumeWhitespace())
	if err != nil {
		return nil, err
	}
	if !remain.consumeWhitespace().isEmpty() {
		return nil, errorf(ErrParse, remain, "unexpected characters after expression: '%s'", remain.str)
	}
	return e, nil
}
