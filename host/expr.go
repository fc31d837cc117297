// Copyright 2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package host

import (
	"errors"
	"strconv"
	"strings"
)

var (
	errExprParse   = errors.New("expression syntax error")
	errDivideZero  = errors.New("division by zero")
	errUnbalanced  = errors.New("mismatched parentheses")
	errBadConstant = errors.New("invalid numeric constant")
)

// A resolver looks up the value of a named identifier, such as a register.
type resolver interface {
	resolveIdentifier(s string) (int64, error)
}

// An exprParser evaluates integer expressions typed at the monitor prompt.
//
// Numbers may be written in decimal, or with a $ or 0x prefix (hex), a %
// or 0b prefix (binary), a 0d prefix (decimal) or an h suffix (hex). A
// single quoted character evaluates to its ASCII code. In hex mode, a
// bare number, or a word made only of hex digits, is read as hex.
//
// Operators, from lowest to highest precedence:
//
//	|
//	^
//	&
//	<< >>
//	+ -
//	* / %
//	unary - + ~
type exprParser struct {
	hexMode bool
}

func newExprParser() *exprParser {
	return &exprParser{}
}

type binaryOp struct {
	sym  string
	prec int
	eval func(a, b int64) (int64, error)
}

// Two-character operators come first so they match before any prefix.
var binaryOps = []binaryOp{
	{"<<", 4, func(a, b int64) (int64, error) { return a << uint64(b&63), nil }},
	{">>", 4, func(a, b int64) (int64, error) { return a >> uint64(b&63), nil }},
	{"|", 1, func(a, b int64) (int64, error) { return a | b, nil }},
	{"^", 2, func(a, b int64) (int64, error) { return a ^ b, nil }},
	{"&", 3, func(a, b int64) (int64, error) { return a & b, nil }},
	{"+", 5, func(a, b int64) (int64, error) { return a + b, nil }},
	{"-", 5, func(a, b int64) (int64, error) { return a - b, nil }},
	{"*", 6, func(a, b int64) (int64, error) { return a * b, nil }},
	{"/", 6, func(a, b int64) (int64, error) {
		if b == 0 {
			return 0, errDivideZero
		}
		return a / b, nil
	}},
	{"%", 6, func(a, b int64) (int64, error) {
		if b == 0 {
			return 0, errDivideZero
		}
		return a % b, nil
	}},
}

// Parse evaluates the expression, resolving identifiers through 'r'.
func (p *exprParser) Parse(expr string, r resolver) (int64, error) {
	s := &exprScanner{hexMode: p.hexMode, r: r, text: expr}
	v, err := s.parseBinary(1)
	if err != nil {
		return 0, err
	}
	s.skipSpace()
	switch {
	case s.text == "":
		return v, nil
	case s.text[0] == ')':
		return 0, errUnbalanced
	default:
		return 0, errExprParse
	}
}

type exprScanner struct {
	hexMode bool
	r       resolver
	text    string
}

func (s *exprScanner) skipSpace() {
	s.text = strings.TrimLeft(s.text, " \t")
}

func (s *exprScanner) peekOp() *binaryOp {
	for i := range binaryOps {
		if strings.HasPrefix(s.text, binaryOps[i].sym) {
			return &binaryOps[i]
		}
	}
	return nil
}

// Binary operators of equal precedence associate to the left.
func (s *exprScanner) parseBinary(minPrec int) (int64, error) {
	lhs, err := s.parseUnary()
	if err != nil {
		return 0, err
	}
	for {
		s.skipSpace()
		op := s.peekOp()
		if op == nil || op.prec < minPrec {
			return lhs, nil
		}
		s.text = s.text[len(op.sym):]

		rhs, err := s.parseBinary(op.prec + 1)
		if err != nil {
			return 0, err
		}
		if lhs, err = op.eval(lhs, rhs); err != nil {
			return 0, err
		}
	}
}

func (s *exprScanner) parseUnary() (int64, error) {
	s.skipSpace()
	if s.text == "" {
		return 0, errExprParse
	}

	c := s.text[0]
	switch {
	case c == '-' || c == '+' || c == '~':
		s.text = s.text[1:]
		v, err := s.parseUnary()
		if err != nil {
			return 0, err
		}
		switch c {
		case '-':
			return -v, nil
		case '~':
			return ^v, nil
		}
		return v, nil

	case c == '(':
		s.text = s.text[1:]
		v, err := s.parseBinary(1)
		if err != nil {
			return 0, err
		}
		s.skipSpace()
		if s.text == "" || s.text[0] != ')' {
			return 0, errUnbalanced
		}
		s.text = s.text[1:]
		return v, nil

	case c == '\'':
		if len(s.text) < 3 || s.text[2] != '\'' {
			return 0, errExprParse
		}
		v := int64(s.text[1])
		s.text = s.text[3:]
		return v, nil

	case c == '$':
		s.text = s.text[1:]
		return parseNumber(s.word(), 16)

	case c == '%':
		s.text = s.text[1:]
		return parseNumber(s.word(), 2)

	case isDigit(c):
		return s.number(s.word())

	case isIdentStart(c):
		w := s.word()
		if s.hexMode && isHexWord(w) {
			return parseNumber(w, 16)
		}
		return s.r.resolveIdentifier(w)
	}
	return 0, errExprParse
}

// Consume the next run of word characters.
func (s *exprScanner) word() string {
	i := 0
	for i < len(s.text) && isWordChar(s.text[i]) {
		i++
	}
	w := s.text[:i]
	s.text = s.text[i:]
	return w
}

func (s *exprScanner) number(w string) (int64, error) {
	lw := strings.ToLower(w)
	switch {
	case strings.HasPrefix(lw, "0x"):
		return parseNumber(w[2:], 16)
	case strings.HasPrefix(lw, "0b") && !strings.HasSuffix(lw, "h"):
		return parseNumber(w[2:], 2)
	case strings.HasPrefix(lw, "0d"):
		return parseNumber(w[2:], 10)
	case strings.HasSuffix(lw, "h"):
		return parseNumber(w[:len(w)-1], 16)
	case s.hexMode:
		return parseNumber(w, 16)
	default:
		return parseNumber(w, 10)
	}
}

func parseNumber(w string, base int) (int64, error) {
	if w == "" {
		return 0, errBadConstant
	}
	v, err := strconv.ParseInt(w, base, 64)
	if err != nil {
		return 0, errBadConstant
	}
	return v, nil
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isIdentStart(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '_' || c == '.'
}

// Word characters include the apostrophe so alternate registers such as
// af' can be named.
func isWordChar(c byte) bool {
	return isIdentStart(c) || isDigit(c) || c == '\''
}

func isHexWord(w string) bool {
	for i := 0; i < len(w); i++ {
		c := w[i] | 0x20
		if !isDigit(w[i]) && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
