package lexer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLex_PlainCommand(t *testing.T) {
	toks, err := Lex([]byte(`set(A "x;y")`))
	require.NoError(t, err)

	require.Len(t, toks, 6)
	assert.Equal(t, "set", toks[0].Text)
	assert.Equal(t, LParen, toks[1].Kind)
	assert.Equal(t, "A", toks[2].Text)
	assert.False(t, toks[2].Quoted)
	assert.Equal(t, "x;y", toks[3].Text)
	assert.True(t, toks[3].Quoted)
	assert.Equal(t, RParen, toks[4].Kind)
	assert.Equal(t, EOF, toks[5].Kind)
}

func TestLex_LineComment(t *testing.T) {
	toks, err := Lex([]byte("set(A 1) # trailing comment\nmessage(A)"))
	require.NoError(t, err)

	var words []string
	for _, tok := range toks {
		if tok.Kind == Word {
			words = append(words, tok.Text)
		}
	}
	assert.Equal(t, []string{"set", "A", "1", "message", "A"}, words)
}

func TestLex_BracketCommentNesting(t *testing.T) {
	toks, err := Lex([]byte("#[==[ this has a ]=] inside it ]==]\nmessage(ok)"))
	require.NoError(t, err)

	var words []string
	for _, tok := range toks {
		if tok.Kind == Word {
			words = append(words, tok.Text)
		}
	}
	assert.Equal(t, []string{"message", "ok"}, words)
}

func TestLex_BracketString(t *testing.T) {
	toks, err := Lex([]byte(`message([=[raw $text; no escapes\n]=])`))
	require.NoError(t, err)

	require.True(t, toks[2].Quoted)
	assert.Equal(t, `raw $text; no escapes\n`, toks[2].Text)
}

func TestLex_EscapesInQuotedString(t *testing.T) {
	toks, err := Lex([]byte(`message("a\"b\\c\$d\n\te")`))
	require.NoError(t, err)

	assert.Equal(t, "a\"b\\c$d\n\te", toks[2].Text)
}

func TestLex_LineContinuation(t *testing.T) {
	toks, err := Lex([]byte("message(a\\\nb)"))
	require.NoError(t, err)

	var words []string
	for _, tok := range toks {
		if tok.Kind == Word {
			words = append(words, tok.Text)
		}
	}
	assert.Equal(t, []string{"message", "ab"}, words)
}

func TestLex_UnterminatedBracketCommentErrors(t *testing.T) {
	_, err := Lex([]byte("#[==[ never closed"))
	assert.Error(t, err)
}
