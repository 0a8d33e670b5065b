package executor

import "strings"

// splitShellWords is a minimal tokenizer for the command lines this
// package itself constructs (see eval.quoteShellWords): plain
// whitespace-separated words, with single-quoted segments (using the
// `'\''` escape for an embedded quote) kept as one word. It is not a
// general shell parser — just enough to recover argv for builtin
// dispatch and for the "env VAR=VAL... cmd..." rewrite.
func splitShellWords(s string) []string {
	var words []string
	var cur strings.Builder
	inQuote := false
	have := false

	flush := func() {
		if have {
			words = append(words, cur.String())
			cur.Reset()
			have = false
		}
	}

	i := 0
	for i < len(s) {
		c := s[i]
		switch {
		case inQuote:
			if c == '\'' && i+3 <= len(s) && s[i+1] == '\\' && s[i+2] == '\'' && i+3 < len(s) && s[i+3] == '\'' {
				cur.WriteByte('\'')
				i += 4
				continue
			}
			if c == '\'' {
				inQuote = false
				i++
				continue
			}
			cur.WriteByte(c)
			have = true
			i++
		case c == '\'':
			inQuote = true
			have = true
			i++
		case c == ' ' || c == '\t':
			flush()
			i++
		default:
			cur.WriteByte(c)
			have = true
			i++
		}
	}
	flush()
	return words
}
