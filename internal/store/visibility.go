package store

import (
	"errors"
)

var errBadVisibility = errors.New("malformed visibility expression")

// Authorizations is the set of tokens a session may see.
type Authorizations map[string]struct{}

// NewAuthorizations builds a set from auths, ignoring empty tokens.
func NewAuthorizations(auths ...string) Authorizations {
	a := make(Authorizations, len(auths))
	for _, s := range auths {
		if s != "" {
			a[s] = struct{}{}
		}
	}
	return a
}

// CanSee evaluates a visibility expression such as "A&(B|C)". An empty
// expression is visible to everyone. Malformed expressions are never visible.
func (a Authorizations) CanSee(expr string) bool {
	if expr == "" {
		return true
	}
	p := visParser{expr: expr, auths: a}
	ok, err := p.expression()
	if err != nil || p.pos != len(expr) {
		return false
	}
	return ok
}

type visParser struct {
	expr  string
	pos   int
	auths Authorizations
}

// expression parses terms joined by a single operator kind. Mixing & and |
// without parentheses is rejected.
func (p *visParser) expression() (bool, error) {
	v, err := p.term()
	if err != nil {
		return false, err
	}
	var op byte
	for p.pos < len(p.expr) && p.expr[p.pos] != ')' {
		c := p.expr[p.pos]
		if c != '&' && c != '|' {
			return false, errBadVisibility
		}
		if op != 0 && op != c {
			return false, errBadVisibility
		}
		op = c
		p.pos++

		r, err := p.term()
		if err != nil {
			return false, err
		}
		if op == '&' {
			v = v && r
		} else {
			v = v || r
		}
	}
	return v, nil
}

func (p *visParser) term() (bool, error) {
	if p.pos < len(p.expr) && p.expr[p.pos] == '(' {
		p.pos++
		v, err := p.expression()
		if err != nil {
			return false, err
		}
		if p.pos >= len(p.expr) || p.expr[p.pos] != ')' {
			return false, errBadVisibility
		}
		p.pos++
		return v, nil
	}

	start := p.pos
	for p.pos < len(p.expr) && isTokenByte(p.expr[p.pos]) {
		p.pos++
	}
	if start == p.pos {
		return false, errBadVisibility
	}
	_, ok := p.auths[p.expr[start:p.pos]]
	return ok, nil
}

func isTokenByte(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	case c == '_', c == '-', c == '.', c == ':', c == '/':
		return true
	}
	return false
}
