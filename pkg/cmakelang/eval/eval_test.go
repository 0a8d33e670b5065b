package eval

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/anyos-project/anytoolchain/pkg/buildgraph"
	"github.com/anyos-project/anytoolchain/pkg/cmakelang/ast"
	"github.com/anyos-project/anytoolchain/pkg/cmakelang/lexer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, src string) (*Evaluator, error) {
	t.Helper()
	toks, err := lexer.Lex([]byte(src))
	require.NoError(t, err)
	prog, err := ast.Parse(toks)
	require.NoError(t, err)
	e := New(buildgraph.NewGraph(), slog.New(slog.NewTextHandler(bytes.NewBuffer(nil), nil)), "/src", "/build")
	return e, e.EvalProgram(prog)
}

func TestEval_SetAndGet(t *testing.T) {
	e, err := run(t, `set(A hello)`)
	require.NoError(t, err)
	v, ok := e.Arena.Get(Root, "A")
	require.True(t, ok)
	assert.Equal(t, "hello", v)
}

// S1: message(${A}) and message("${A}") both print "x;y" for A="x;y",
// and foreach(v ${A}) visits "x" then "y" individually.
func TestEval_UnquotedListSplittingGotcha(t *testing.T) {
	e, err := run(t, `set(A "x;y")`)
	require.NoError(t, err)

	unquoted := e.expandArgs([]ast.Arg{{Text: "${A}", Quoted: false}}, Root)
	assert.Equal(t, []string{"x", "y"}, unquoted)
	assert.Equal(t, "x;y", joinSemicolon(unquoted))

	quoted := e.expandArgs([]ast.Arg{{Text: "${A}", Quoted: true}}, Root)
	assert.Equal(t, []string{"x;y"}, quoted)

	var foreachValues []string
	for _, v := range e.expandArgs([]ast.Arg{{Text: "${A}", Quoted: false}}, Root) {
		foreachValues = append(foreachValues, v)
	}
	assert.Equal(t, []string{"x", "y"}, foreachValues)
}

func joinSemicolon(parts []string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += ";"
		}
		out += p
	}
	return out
}

func TestEval_IfElseifElse(t *testing.T) {
	e, err := run(t, `
set(X 0)
if(FOO STREQUAL "bar")
  set(RESULT first)
elseif(1 EQUAL 1)
  set(RESULT second)
else()
  set(RESULT third)
endif()
`)
	require.NoError(t, err)
	v, _ := e.Arena.Get(Root, "RESULT")
	assert.Equal(t, "second", v)
}

func TestEval_Foreach(t *testing.T) {
	e, err := run(t, `
set(OUT "")
foreach(v a b c)
  set(OUT "${OUT}${v}")
endforeach()
`)
	require.NoError(t, err)
	v, _ := e.Arena.Get(Root, "OUT")
	assert.Equal(t, "abc", v)
}

func TestEval_MessageFatalErrorReturnsJoinedText(t *testing.T) {
	e, err := run(t, "")
	require.NoError(t, err)
	err = e.cmdMessage([]string{"FATAL_ERROR", "build", "failed"})
	require.Error(t, err)
	assert.Equal(t, "build;failed", err.Error())
}

func TestEval_FunctionScopingDoesNotLeak(t *testing.T) {
	e, err := run(t, `
function(setlocal)
  set(LEAKED yes)
endfunction()
setlocal()
`)
	require.NoError(t, err)
	_, ok := e.Arena.Get(Root, "LEAKED")
	assert.False(t, ok)
}

func TestEval_MacroLeaksIntoCallerScope(t *testing.T) {
	e, err := run(t, `
macro(setlocal)
  set(LEAKED yes)
endmacro()
setlocal()
`)
	require.NoError(t, err)
	v, ok := e.Arena.Get(Root, "LEAKED")
	require.True(t, ok)
	assert.Equal(t, "yes", v)
}

func TestEval_MacroArgBindingAndARGN(t *testing.T) {
	e, err := run(t, `
macro(greet name)
  set(GREETED ${name})
  set(EXTRA ${ARGN})
endmacro()
greet(alice bob carol)
`)
	require.NoError(t, err)
	v, _ := e.Arena.Get(Root, "GREETED")
	assert.Equal(t, "alice", v)
	extra, _ := e.Arena.Get(Root, "EXTRA")
	assert.Equal(t, "bob;carol", extra)
}

func TestEval_AddCustomCommandPopulatesGraph(t *testing.T) {
	e, err := run(t, `add_custom_command(OUTPUT out.o COMMAND cc -c in.c -o out.o DEPENDS in.c)`)
	require.NoError(t, err)
	require.Equal(t, 1, e.Graph.NumRules())
	r := e.Graph.Rule(0)
	assert.Equal(t, []string{"out.o"}, r.Outputs)
	assert.Equal(t, []string{"in.c"}, r.Dependencies)
	assert.Contains(t, r.Commands[0], "cc -c in.c -o out.o")
}

func TestEval_ConditionDefinedAndNot(t *testing.T) {
	e, err := run(t, `
set(X 1)
if(DEFINED X AND NOT DEFINED Y)
  set(RESULT ok)
endif()
`)
	require.NoError(t, err)
	v, _ := e.Arena.Get(Root, "RESULT")
	assert.Equal(t, "ok", v)
}
