// Package ast defines the CMake-subset abstract syntax tree and the parser
// that builds it from a lexer.Token stream (spec §4.1.2).
//
// A Node is a tagged variant with exactly the four shapes the spec names:
// plain command, if-block, foreach and function/macro definition. Go's
// idiomatic sum-type substitute — one struct per kind, selected through a
// Kind field — replaces the source's union-of-pointer-fields layout (see
// DESIGN NOTES, "Representing the AST and symbol table").
package ast

// Kind identifies which of the four node shapes a Node holds.
type Kind int

const (
	Command Kind = iota
	If
	Foreach
	FuncDef
)

// Arg is one unexpanded command argument, carrying whether it was quoted
// (double-quoted or bracket-string) so that later variable expansion can
// apply quoted-vs-unquoted splitting semantics (spec §4.1.3).
type Arg struct {
	Text   string
	Quoted bool
}

// ElseBranch is one link in an if/elseif/else chain.
type ElseBranch struct {
	// Condition is empty (and therefore always true) for a plain `else`.
	Condition []Arg
	Body      []*Node
	// Next points at a further elseif/else branch, or nil at the chain end.
	Next *ElseBranch
}

// Node is one AST element. Only the fields relevant to Kind are populated.
type Node struct {
	Kind Kind
	Line int

	// Command (Kind == Command)
	Name string
	Args []Arg

	// If (Kind == If)
	IfCondition []Arg
	IfBody      []*Node
	ElseChain   *ElseBranch

	// Foreach (Kind == Foreach)
	LoopVar    string
	LoopValues []Arg
	LoopBody   []*Node

	// FuncDef (Kind == FuncDef)
	DefName   string
	DefParams []string
	DefBody   []*Node
	IsMacro   bool
}

// Program is a parsed script: a flat sibling sequence of top-level nodes.
type Program struct {
	Nodes []*Node
}
