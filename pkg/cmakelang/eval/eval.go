// Package eval walks a parsed cmakelang/ast.Program, threading a chained
// variable Scope through it and emitting buildgraph rules/targets as
// add_custom_command/add_custom_target are encountered (spec §4.1).
package eval

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/anyos-project/anytoolchain/pkg/buildgraph"
	"github.com/anyos-project/anytoolchain/pkg/cmakelang/ast"
)

// funcDef is a registered function or macro body, kept by reference into
// the parsed AST rather than copied (function bodies outlive every call).
type funcDef struct {
	node    *ast.Node
	isMacro bool
}

// Evaluator holds everything one script evaluation run threads through:
// the scope arena, registered functions, and the build graph being
// populated as a side effect of add_custom_command/add_custom_target.
type Evaluator struct {
	Arena     *ScopeArena
	Functions map[string]*funcDef
	Graph     *buildgraph.Graph
	Logger    *slog.Logger
	SourceDir string
	BinaryDir string
}

// New returns an Evaluator with its root scope pre-populated with the
// CMAKE_*_DIR variables every command/condition can rely on.
func New(graph *buildgraph.Graph, logger *slog.Logger, sourceDir, binaryDir string) *Evaluator {
	e := &Evaluator{
		Arena:     NewScopeArena(),
		Functions: make(map[string]*funcDef),
		Graph:     graph,
		Logger:    logger,
		SourceDir: sourceDir,
		BinaryDir: binaryDir,
	}
	for _, kv := range [][2]string{
		{"CMAKE_SOURCE_DIR", sourceDir},
		{"CMAKE_BINARY_DIR", binaryDir},
		{"CMAKE_CURRENT_SOURCE_DIR", sourceDir},
		{"CMAKE_CURRENT_BINARY_DIR", binaryDir},
	} {
		e.Arena.Set(Root, kv[0], kv[1])
	}
	return e
}

// EvalProgram evaluates every top-level node of prog in the root scope.
func (e *Evaluator) EvalProgram(prog *ast.Program) error {
	return e.evalNodes(prog.Nodes, Root)
}

func (e *Evaluator) evalNodes(nodes []*ast.Node, sc ScopeID) error {
	for _, n := range nodes {
		if err := e.evalNode(n, sc); err != nil {
			return fmt.Errorf("line %d: %w", n.Line, err)
		}
	}
	return nil
}

func (e *Evaluator) evalNode(n *ast.Node, sc ScopeID) error {
	switch n.Kind {
	case ast.Command:
		args := e.expandArgs(n.Args, sc)
		return e.dispatch(n.Name, args, sc)

	case ast.If:
		return e.evalIf(n, sc)

	case ast.Foreach:
		return e.evalForeach(n, sc)

	case ast.FuncDef:
		e.Functions[strings.ToLower(n.DefName)] = &funcDef{node: n, isMacro: n.IsMacro}
		return nil

	default:
		return fmt.Errorf("eval: unknown node kind %v", n.Kind)
	}
}

func (e *Evaluator) evalIf(n *ast.Node, sc ScopeID) error {
	ok, err := e.evalCondition(n.IfCondition, sc)
	if err != nil {
		return err
	}
	if ok {
		return e.evalNodes(n.IfBody, sc)
	}

	for branch := n.ElseChain; branch != nil; branch = branch.Next {
		if branch.Condition == nil { // plain else
			return e.evalNodes(branch.Body, sc)
		}
		ok, err := e.evalCondition(branch.Condition, sc)
		if err != nil {
			return err
		}
		if ok {
			return e.evalNodes(branch.Body, sc)
		}
	}
	return nil
}

func (e *Evaluator) evalForeach(n *ast.Node, sc ScopeID) error {
	values := e.expandArgs(n.LoopValues, sc)
	for _, v := range values {
		e.Arena.Set(sc, n.LoopVar, v)
		if err := e.evalNodes(n.LoopBody, sc); err != nil {
			return err
		}
	}
	return nil
}

// callUserDefined invokes a previously-registered function() or macro().
// A function runs in a fresh child scope (so its SET()s don't leak to the
// caller without PARENT_SCOPE); a macro runs directly in the caller's
// scope, which is the source of the well-known CMake quirk that a macro's
// ARGN/ARGV bindings persist into the caller after it returns.
func (e *Evaluator) callUserDefined(name string, args []string, sc ScopeID) error {
	def, ok := e.Functions[strings.ToLower(name)]
	if !ok {
		e.Logger.Debug("ignoring unknown command", "name", name)
		return nil
	}

	callScope := sc
	if !def.isMacro {
		callScope = e.Arena.NewChild(sc)
	}

	for i, p := range def.node.DefParams {
		v := ""
		if i < len(args) {
			v = args[i]
		}
		e.Arena.Set(callScope, p, v)
	}

	e.Arena.Set(callScope, "ARGC", strconv.Itoa(len(args)))
	e.Arena.Set(callScope, "ARGV", strings.Join(args, ";"))
	for i, a := range args {
		e.Arena.Set(callScope, "ARGV"+strconv.Itoa(i), a)
	}
	extra := def.node.DefParams
	if len(args) > len(extra) {
		e.Arena.Set(callScope, "ARGN", strings.Join(args[len(extra):], ";"))
	} else {
		e.Arena.Set(callScope, "ARGN", "")
	}

	return e.evalNodes(def.node.DefBody, callScope)
}
