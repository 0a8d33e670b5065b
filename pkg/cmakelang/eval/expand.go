package eval

import (
	"os"
	"strings"

	"github.com/anyos-project/anytoolchain/pkg/cmakelang/ast"
)

// expand performs `${NAME}` and `$ENV{NAME}` substitution, recursively
// expanding both the reference's own text and the looked-up value (spec
// §4.1.3: "${${INNER}}" resolves INNER first, then the variable it names).
// An undefined name expands to the empty string rather than an error —
// scripts routinely probe for optional cache variables this way.
func (e *Evaluator) expand(s string, sc ScopeID) string {
	var out strings.Builder
	i := 0
	for i < len(s) {
		if s[i] == '$' && i+5 <= len(s) && s[i+1:i+4] == "ENV" && s[i+4] == '{' {
			end := matchBrace(s, i+4)
			if end < 0 {
				out.WriteByte(s[i])
				i++
				continue
			}
			name := e.expand(s[i+5:end], sc)
			out.WriteString(os.Getenv(name))
			i = end + 1
			continue
		}
		if s[i] == '$' && i+1 < len(s) && s[i+1] == '{' {
			end := matchBrace(s, i+1)
			if end < 0 {
				out.WriteByte(s[i])
				i++
				continue
			}
			name := e.expand(s[i+2:end], sc)
			if v, ok := e.Arena.Get(sc, name); ok {
				out.WriteString(e.expand(v, sc))
			}
			i = end + 1
			continue
		}
		out.WriteByte(s[i])
		i++
	}
	return out.String()
}

// matchBrace returns the index of the '}' matching the '{' at s[open],
// honoring nested braces so "${${INNER}}" resolves correctly. Returns -1 if
// unbalanced.
func matchBrace(s string, open int) int {
	depth := 0
	for i := open; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// splitUnquoted applies CMake-subset list splitting to an expanded value:
// semicolons separate elements, and elements that end up empty vanish
// (spec §4.1.3; this is the well-known `message(${LIST})` gotcha — a
// variable holding "x;y" prints as the same "x;y" as the quoted form only
// because message() rejoins its received arguments with ";").
func splitUnquoted(expanded string) []string {
	var out []string
	for _, part := range strings.Split(expanded, ";") {
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// expandArgs expands and splits a raw argument list per the quoted/unquoted
// rule, producing the final flat argument vector a command receives.
func (e *Evaluator) expandArgs(args []ast.Arg, sc ScopeID) []string {
	var out []string
	for _, a := range args {
		v := e.expand(a.Text, sc)
		if a.Quoted {
			out = append(out, v)
		} else {
			out = append(out, splitUnquoted(v)...)
		}
	}
	return out
}
