package ast

import (
	"fmt"
	"strings"

	"github.com/anyos-project/anytoolchain/pkg/cmakelang/lexer"
)

// Parse consumes a token sequence (as produced by lexer.Lex) into a Program.
func Parse(tokens []lexer.Token) (*Program, error) {
	p := &parser{toks: tokens}
	nodes, err := p.parseNodes(nil)
	if err != nil {
		return nil, err
	}
	if p.peek().Kind != lexer.EOF {
		return nil, fmt.Errorf("parser: unexpected trailing input at line %d", p.peek().Line)
	}
	return &Program{Nodes: nodes}, nil
}

type parser struct {
	toks []lexer.Token
	pos  int
}

func (p *parser) peek() lexer.Token {
	return p.toks[p.pos]
}

func (p *parser) advance() lexer.Token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *parser) skipNewlines() {
	for p.peek().Kind == lexer.Newline {
		p.advance()
	}
}

// parseNodes parses sibling nodes until EOF or until the command name
// matches one of the given terminator keywords (case-insensitive), leaving
// the terminator unconsumed.
func (p *parser) parseNodes(terminators []string) ([]*Node, error) {
	var nodes []*Node

	for {
		p.skipNewlines()
		if p.peek().Kind == lexer.EOF {
			return nodes, nil
		}
		if p.peek().Kind == lexer.Word && isOneOf(p.peek().Text, terminators) {
			return nodes, nil
		}

		node, err := p.parseOne()
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, node)
	}
}

func isOneOf(s string, set []string) bool {
	for _, item := range set {
		if strings.EqualFold(s, item) {
			return true
		}
	}
	return false
}

func (p *parser) parseOne() (*Node, error) {
	nameTok := p.peek()
	if nameTok.Kind != lexer.Word {
		return nil, fmt.Errorf("parser: expected command name at line %d, got %s", nameTok.Line, nameTok.Kind)
	}

	switch strings.ToLower(nameTok.Text) {
	case "if":
		return p.parseIf()
	case "foreach":
		return p.parseForeach()
	case "function":
		return p.parseFuncDef(false)
	case "macro":
		return p.parseFuncDef(true)
	default:
		return p.parseCommand()
	}
}

// parseArgList parses "( ... )" immediately following the current position
// (which must be at the name token) and returns the raw argument list.
// Nested parens are tolerated and skipped without semantic meaning.
func (p *parser) parseArgList() ([]Arg, error) {
	if p.peek().Kind != lexer.LParen {
		return nil, fmt.Errorf("parser: expected '(' at line %d", p.peek().Line)
	}
	p.advance()

	var args []Arg
	depth := 0

	for {
		tok := p.peek()
		switch tok.Kind {
		case lexer.EOF:
			return nil, fmt.Errorf("parser: unterminated argument list")
		case lexer.Newline:
			p.advance()
		case lexer.LParen:
			depth++
			p.advance()
		case lexer.RParen:
			if depth == 0 {
				p.advance()
				return args, nil
			}
			depth--
			p.advance()
		case lexer.Word:
			args = append(args, Arg{Text: tok.Text, Quoted: tok.Quoted})
			p.advance()
		}
	}
}

func (p *parser) parseCommand() (*Node, error) {
	nameTok := p.advance()
	args, err := p.parseArgList()
	if err != nil {
		return nil, err
	}
	return &Node{Kind: Command, Line: nameTok.Line, Name: nameTok.Text, Args: args}, nil
}

func (p *parser) parseIf() (*Node, error) {
	ifLine := p.peek().Line
	p.advance() // "if"
	cond, err := p.parseArgList()
	if err != nil {
		return nil, err
	}
	body, err := p.parseNodes([]string{"elseif", "else", "endif"})
	if err != nil {
		return nil, err
	}

	node := &Node{Kind: If, Line: ifLine, IfCondition: cond, IfBody: body}

	chain, err := p.parseElseChain()
	if err != nil {
		return nil, err
	}
	node.ElseChain = chain
	return node, nil
}

func (p *parser) parseElseChain() (*ElseBranch, error) {
	tok := p.peek()
	if tok.Kind != lexer.Word {
		return nil, fmt.Errorf("parser: expected elseif/else/endif at line %d", tok.Line)
	}

	switch strings.ToLower(tok.Text) {
	case "endif":
		p.advance()
		if _, err := p.parseArgList(); err != nil {
			return nil, err
		}
		return nil, nil
	case "elseif":
		p.advance()
		cond, err := p.parseArgList()
		if err != nil {
			return nil, err
		}
		body, err := p.parseNodes([]string{"elseif", "else", "endif"})
		if err != nil {
			return nil, err
		}
		next, err := p.parseElseChain()
		if err != nil {
			return nil, err
		}
		return &ElseBranch{Condition: cond, Body: body, Next: next}, nil
	case "else":
		p.advance()
		if _, err := p.parseArgList(); err != nil {
			return nil, err
		}
		body, err := p.parseNodes([]string{"endif"})
		if err != nil {
			return nil, err
		}
		next, err := p.parseElseChain()
		if err != nil {
			return nil, err
		}
		return &ElseBranch{Condition: nil, Body: body, Next: next}, nil
	default:
		return nil, fmt.Errorf("parser: expected elseif/else/endif at line %d", tok.Line)
	}
}

func (p *parser) parseForeach() (*Node, error) {
	line := p.peek().Line
	p.advance() // "foreach"
	args, err := p.parseArgList()
	if err != nil {
		return nil, err
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("parser: foreach() requires a loop variable at line %d", line)
	}

	body, err := p.parseNodes([]string{"endforeach"})
	if err != nil {
		return nil, err
	}
	p.advance() // "endforeach"
	if _, err := p.parseArgList(); err != nil {
		return nil, err
	}

	return &Node{
		Kind:       Foreach,
		Line:       line,
		LoopVar:    args[0].Text,
		LoopValues: args[1:],
		LoopBody:   body,
	}, nil
}

func (p *parser) parseFuncDef(isMacro bool) (*Node, error) {
	line := p.peek().Line
	p.advance() // "function"/"macro"
	args, err := p.parseArgList()
	if err != nil {
		return nil, err
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("parser: function/macro requires a name at line %d", line)
	}

	terminator := "endfunction"
	if isMacro {
		terminator = "endmacro"
	}

	body, err := p.parseNodes([]string{terminator})
	if err != nil {
		return nil, err
	}
	p.advance() // terminator
	if _, err := p.parseArgList(); err != nil {
		return nil, err
	}

	params := make([]string, len(args)-1)
	for i, a := range args[1:] {
		params[i] = a.Text
	}

	return &Node{
		Kind:      FuncDef,
		Line:      line,
		DefName:   args[0].Text,
		DefParams: params,
		DefBody:   body,
		IsMacro:   isMacro,
	}, nil
}
