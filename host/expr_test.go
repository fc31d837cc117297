package host

import (
	"errors"
	"fmt"
	"testing"
)

type mapResolver map[string]int64

func (m mapResolver) resolveIdentifier(s string) (int64, error) {
	if v, ok := m[s]; ok {
		return v, nil
	}
	return 0, fmt.Errorf("identifier '%s' not found", s)
}

func TestExprParse(t *testing.T) {
	r := mapResolver{"hl": 0x1234, "af'": 0xff00, ".": 0x100}

	tests := []struct {
		expr    string
		hexMode bool
		want    int64
		err     error
	}{
		{"42", false, 42, nil},
		{"42", true, 0x42, nil},
		{"0d42", true, 42, nil},
		{"$1F", false, 0x1f, nil},
		{"0x1f", false, 0x1f, nil},
		{"0FFh", false, 0xff, nil},
		{"%101", false, 5, nil},
		{"0b101", false, 5, nil},
		{"'z'", false, 'z', nil},
		{"hl + 1", false, 0x1235, nil},
		{"af' >> 8", false, 0xff, nil},
		{". + 3", false, 0x103, nil},
		{"1 + 2 * 3 - 4", false, 3, nil},
		{"100 / 10 / 2", false, 5, nil},
		{"17 % 5", false, 2, nil},
		{"1 | 2 ^ 3 & 6", false, 1 | (2 ^ (3 & 6)), nil},
		{"-(2 + 3)", false, -5, nil},
		{"~0 & $ff", false, 0xff, nil},
		{"--1", false, 1, nil},
		{"cafe", true, 0xcafe, nil},
		{"1 / 0", false, 0, errDivideZero},
		{"1 % 0", false, 0, errDivideZero},
		{"(1 + 2", false, 0, errUnbalanced},
		{"1 + 2)", false, 0, errUnbalanced},
		{"1 +", false, 0, errExprParse},
		{"1 2", false, 0, errExprParse},
		{"12ab", false, 0, errBadConstant},
		{"$", false, 0, errBadConstant},
		{"'a", false, 0, errExprParse},
	}

	for _, tt := range tests {
		p := &exprParser{hexMode: tt.hexMode}
		v, err := p.Parse(tt.expr, r)
		switch {
		case tt.err != nil:
			if !errors.Is(err, tt.err) {
				t.Errorf("Parse(%q): err = %v, want %v", tt.expr, err, tt.err)
			}
		case err != nil:
			t.Errorf("Parse(%q): unexpected error %v", tt.expr, err)
		case v != tt.want:
			t.Errorf("Parse(%q) = %d, want %d", tt.expr, v, tt.want)
		}
	}
}

func TestExprUnknownIdentifier(t *testing.T) {
	p := newExprParser()
	if _, err := p.Parse("nothing + 1", mapResolver{}); err == nil {
		t.Error("expected an error for an unknown identifier")
	}
}
