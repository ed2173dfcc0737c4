// Package parser turns RPQ surface syntax into an expression tree.
//
// Grammar (whitespace is ignored):
//
//	expr    := seq ('|' seq)*
//	seq     := unary ('/' unary)*
//	unary   := primary ('*' | '+')*
//	primary := '<' digits '>' | '^' primary | '(' expr ')'
package parser

import (
	"fmt"
	"strconv"

	"github.com/wbrown/janus-rpq/rpq"
)

// ParseError reports a syntax error at a 1-based column
type ParseError struct {
	Pos int
	Msg string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("rpq syntax error at column %d: %s", e.Pos, e.Msg)
}

func errorf(pos int, format string, args ...interface{}) error {
	return &ParseError{Pos: pos, Msg: fmt.Sprintf(format, args...)}
}

// Parser parses RPQ tokens into an Expr
type Parser struct {
	lexer *Lexer
}

// NewParser creates a new parser
func NewParser(lexer *Lexer) *Parser {
	return &Parser{lexer: lexer}
}

// Parse lexes and parses a complete RPQ
func Parse(input string) (Expr, error) {
	lexer := NewLexer(input)
	if err := lexer.Lex(); err != nil {
		return nil, err
	}

	return NewParser(lexer).Parse()
}

// Parse reads one expression and requires the input to end after it
func (p *Parser) Parse() (Expr, error) {
	if tok := p.lexer.PeekToken(); tok.Type == TokenEOF {
		return nil, errorf(tok.Pos, "empty query")
	}

	expr, err := p.parseAlternation()
	if err != nil {
		return nil, err
	}

	if tok := p.lexer.PeekToken(); tok.Type != TokenEOF {
		return nil, errorf(tok.Pos, "unexpected %s", tok)
	}
	return expr, nil
}

func (p *Parser) parseAlternation() (Expr, error) {
	first, err := p.parseSequence()
	if err != nil {
		return nil, err
	}

	branches := []Expr{first}
	for p.lexer.PeekToken().Type == TokenPipe {
		p.lexer.NextToken()
		next, err := p.parseSequence()
		if err != nil {
			return nil, err
		}
		branches = append(branches, next)
	}

	if len(branches) == 1 {
		return first, nil
	}
	return Alternation{Branches: branches}, nil
}

func (p *Parser) parseSequence() (Expr, error) {
	first, err := p.parseUnary()
	if err != nil {
		return nil, err
	}

	items := []Expr{first}
	for p.lexer.PeekToken().Type == TokenSlash {
		p.lexer.NextToken()
		next, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		items = append(items, next)
	}

	if len(items) == 1 {
		return first, nil
	}
	return Sequence{Items: items}, nil
}

func (p *Parser) parseUnary() (Expr, error) {
	expr, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}

	for {
		switch p.lexer.PeekToken().Type {
		case TokenStar:
			p.lexer.NextToken()
			expr = Star{Sub: expr}
		case TokenPlus:
			p.lexer.NextToken()
			expr = Plus{Sub: expr}
		default:
			return expr, nil
		}
	}
}

func (p *Parser) parsePrimary() (Expr, error) {
	tok := p.lexer.NextToken()

	switch tok.Type {
	case TokenIRI:
		id, err := strconv.ParseUint(tok.Value, 10, 32)
		if err != nil {
			return nil, errorf(tok.Pos, "label %s out of range", tok.Value)
		}
		return IRI{Label: rpq.Label{ID: uint32(id)}}, nil

	case TokenCaret:
		sub, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		return Inverse{Sub: sub}, nil

	case TokenLeftParen:
		if p.lexer.PeekToken().Type == TokenRightParen {
			return nil, errorf(tok.Pos, "empty parentheses")
		}
		expr, err := p.parseAlternation()
		if err != nil {
			return nil, err
		}
		closing := p.lexer.NextToken()
		if closing.Type != TokenRightParen {
			return nil, errorf(closing.Pos, "expected ')' to close '(' at column %d, got %s", tok.Pos, closing)
		}
		return expr, nil

	case TokenEOF:
		return nil, errorf(tok.Pos, "unexpected end of query")

	default:
		return nil, errorf(tok.Pos, "unexpected %s", tok)
	}
}
