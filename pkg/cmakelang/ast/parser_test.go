package ast

import (
	"testing"

	"github.com/anyos-project/anytoolchain/pkg/cmakelang/lexer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, src string) *Program {
	t.Helper()
	toks, err := lexer.Lex([]byte(src))
	require.NoError(t, err)
	prog, err := Parse(toks)
	require.NoError(t, err)
	return prog
}

func TestParse_PlainCommand(t *testing.T) {
	prog := mustParse(t, `set(A "x;y")`)
	require.Len(t, prog.Nodes, 1)
	n := prog.Nodes[0]
	assert.Equal(t, Command, n.Kind)
	assert.Equal(t, "set", n.Name)
	require.Len(t, n.Args, 2)
	assert.Equal(t, "A", n.Args[0].Text)
	assert.Equal(t, "x;y", n.Args[1].Text)
	assert.True(t, n.Args[1].Quoted)
}

func TestParse_IfElseifElseChain(t *testing.T) {
	prog := mustParse(t, `
if(A)
  message(a)
elseif(B)
  message(b)
else()
  message(c)
endif()
`)
	require.Len(t, prog.Nodes, 1)
	n := prog.Nodes[0]
	require.Equal(t, If, n.Kind)
	require.Len(t, n.IfBody, 1)
	assert.Equal(t, "a", n.IfBody[0].Args[0].Text)

	require.NotNil(t, n.ElseChain)
	assert.Equal(t, "B", n.ElseChain.Condition[0].Text)
	assert.Equal(t, "b", n.ElseChain.Body[0].Args[0].Text)

	require.NotNil(t, n.ElseChain.Next)
	assert.Empty(t, n.ElseChain.Next.Condition)
	assert.Equal(t, "c", n.ElseChain.Next.Body[0].Args[0].Text)
	assert.Nil(t, n.ElseChain.Next.Next)
}

func TestParse_Foreach(t *testing.T) {
	prog := mustParse(t, `
foreach(v x y z)
  message(${v})
endforeach()
`)
	n := prog.Nodes[0]
	require.Equal(t, Foreach, n.Kind)
	assert.Equal(t, "v", n.LoopVar)
	require.Len(t, n.LoopValues, 3)
	assert.Equal(t, "x", n.LoopValues[0].Text)
	require.Len(t, n.LoopBody, 1)
}

func TestParse_FunctionDefinition(t *testing.T) {
	prog := mustParse(t, `
function(greet name)
  message(${name})
endfunction()
`)
	n := prog.Nodes[0]
	require.Equal(t, FuncDef, n.Kind)
	assert.Equal(t, "greet", n.DefName)
	assert.Equal(t, []string{"name"}, n.DefParams)
	assert.False(t, n.IsMacro)
}

func TestParse_NestedParensInArgListAreTolerated(t *testing.T) {
	prog := mustParse(t, `add_custom_command(OUTPUT o COMMAND echo (nested) DEPENDS d)`)
	n := prog.Nodes[0]
	var texts []string
	for _, a := range n.Args {
		texts = append(texts, a.Text)
	}
	assert.Equal(t, []string{"OUTPUT", "o", "COMMAND", "echo", "nested", "DEPENDS", "d"}, texts)
}
