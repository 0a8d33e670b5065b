package eval

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/anyos-project/anytoolchain/pkg/cmakelang/ast"
)

// condToken is one condition-argument token after ${}/$ENV{} expansion.
// Quoted tracks whether the source argument was quoted, since a quoted
// token is never re-dereferenced as a bare variable name (spec §4.1.4,
// "Condition evaluation").
type condToken struct {
	text   string
	quoted bool
}

var binaryOps = map[string]bool{
	"STREQUAL": true, "STRLESS": true, "STRGREATER": true,
	"EQUAL": true, "LESS": true, "GREATER": true, "MATCHES": true,
}

var unaryOps = map[string]bool{
	"EXISTS": true, "IS_DIRECTORY": true, "DEFINED": true,
}

// evalCondition evaluates an if()/elseif() argument list to a bool.
func (e *Evaluator) evalCondition(args []ast.Arg, sc ScopeID) (bool, error) {
	var toks []condToken
	for _, a := range args {
		v := e.expand(a.Text, sc)
		if a.Quoted {
			toks = append(toks, condToken{text: v, quoted: true})
		} else {
			for _, part := range splitUnquoted(v) {
				toks = append(toks, condToken{text: part, quoted: false})
			}
		}
	}

	cp := &condParser{toks: toks, arena: e.Arena, sc: sc}
	result, err := cp.parseOr()
	if err != nil {
		return false, err
	}
	if cp.pos != len(cp.toks) {
		return false, fmt.Errorf("if(): unexpected trailing tokens in condition")
	}
	return result, nil
}

type condParser struct {
	toks  []condToken
	pos   int
	arena *ScopeArena
	sc    ScopeID
}

func (c *condParser) peek() (condToken, bool) {
	if c.pos >= len(c.toks) {
		return condToken{}, false
	}
	return c.toks[c.pos], true
}

func (c *condParser) advance() condToken {
	t := c.toks[c.pos]
	c.pos++
	return t
}

func (c *condParser) parseOr() (bool, error) {
	left, err := c.parseAnd()
	if err != nil {
		return false, err
	}
	for {
		t, ok := c.peek()
		if !ok || !strings.EqualFold(t.text, "OR") {
			return left, nil
		}
		c.advance()
		right, err := c.parseAnd()
		if err != nil {
			return false, err
		}
		left = left || right
	}
}

func (c *condParser) parseAnd() (bool, error) {
	left, err := c.parseNot()
	if err != nil {
		return false, err
	}
	for {
		t, ok := c.peek()
		if !ok || !strings.EqualFold(t.text, "AND") {
			return left, nil
		}
		c.advance()
		right, err := c.parseNot()
		if err != nil {
			return false, err
		}
		left = left && right
	}
}

func (c *condParser) parseNot() (bool, error) {
	if t, ok := c.peek(); ok && !t.quoted && strings.EqualFold(t.text, "NOT") {
		c.advance()
		v, err := c.parseNot()
		if err != nil {
			return false, err
		}
		return !v, nil
	}
	return c.parsePrimary()
}

func (c *condParser) parsePrimary() (bool, error) {
	// Note: parenthesized sub-expressions (`if((A AND B) OR C)`) are not
	// supported — the argument-list parser already strips structural
	// parens when tolerating nested ones (see ast.parseArgList), so no
	// "(" / ")" token ever reaches here to group on.
	t, ok := c.peek()
	if !ok {
		return false, fmt.Errorf("if(): expected token, got end of condition")
	}

	if !t.quoted && unaryOps[strings.ToUpper(t.text)] {
		op := strings.ToUpper(t.text)
		c.advance()
		operand, ok := c.peek()
		if !ok {
			return false, fmt.Errorf("if(): %s requires an operand", op)
		}
		c.advance()
		switch op {
		case "DEFINED":
			return c.arena.Defined(c.sc, operand.text), nil
		case "EXISTS":
			_, err := os.Stat(operand.text)
			return err == nil, nil
		case "IS_DIRECTORY":
			st, err := os.Stat(operand.text)
			return err == nil && st.IsDir(), nil
		}
	}

	lhs := c.advance()

	if t2, ok := c.peek(); ok && !t2.quoted && binaryOps[strings.ToUpper(t2.text)] {
		op := strings.ToUpper(t2.text)
		c.advance()
		rhsTok, ok := c.peek()
		if !ok {
			return false, fmt.Errorf("if(): %s requires a right-hand operand", op)
		}
		c.advance()
		return evalBinary(op, c.resolve(lhs), c.resolve(rhsTok))
	}

	return truthy(c.resolve(lhs)), nil
}

// resolve dereferences a bare (unquoted) token as a variable name when one
// is defined; otherwise the token's own text is the value (spec
// §4.1.4 — the classic `if(UNDEFINED_NAME)` auto-string behavior).
func (c *condParser) resolve(t condToken) string {
	if !t.quoted {
		if v, ok := c.arena.Get(c.sc, t.text); ok {
			return v
		}
	}
	return t.text
}

func evalBinary(op, lhs, rhs string) (bool, error) {
	switch op {
	case "STREQUAL":
		return lhs == rhs, nil
	case "STRLESS":
		return lhs < rhs, nil
	case "STRGREATER":
		return lhs > rhs, nil
	case "MATCHES":
		re, err := regexp.Compile(rhs)
		if err != nil {
			return false, fmt.Errorf("if(): invalid MATCHES pattern %q: %w", rhs, err)
		}
		return re.MatchString(lhs), nil
	case "EQUAL", "LESS", "GREATER":
		l, err := strconv.ParseFloat(lhs, 64)
		if err != nil {
			return false, fmt.Errorf("if(): %s requires numeric operands, got %q", op, lhs)
		}
		r, err := strconv.ParseFloat(rhs, 64)
		if err != nil {
			return false, fmt.Errorf("if(): %s requires numeric operands, got %q", op, rhs)
		}
		switch op {
		case "EQUAL":
			return l == r, nil
		case "LESS":
			return l < r, nil
		default:
			return l > r, nil
		}
	}
	return false, fmt.Errorf("if(): unknown operator %s", op)
}

// truthy implements CMake boolean-constant rules (spec §4.1.4).
func truthy(s string) bool {
	upper := strings.ToUpper(s)
	switch upper {
	case "1", "ON", "YES", "TRUE", "Y":
		return true
	case "0", "OFF", "NO", "FALSE", "N", "IGNORE", "NOTFOUND", "":
		return false
	}
	if strings.HasSuffix(upper, "-NOTFOUND") {
		return false
	}
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		return n != 0
	}
	return true
}
