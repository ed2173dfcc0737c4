package parser

import "fmt"

// TokenType represents the type of RPQ token
type TokenType int

const (
	TokenEOF TokenType = iota
	TokenIRI
	TokenCaret
	TokenSlash
	TokenPipe
	TokenStar
	TokenPlus
	TokenLeftParen
	TokenRightParen
)

// Token represents a lexical token in an RPQ
type Token struct {
	Type  TokenType
	Value string // digits of an IRI, empty otherwise
	Pos   int    // 1-based column
}

// String returns a string representation of the token
func (t Token) String() string {
	switch t.Type {
	case TokenEOF:
		return fmt.Sprintf("EOF[%d]", t.Pos)
	case TokenIRI:
		return fmt.Sprintf("IRI[%d]:<%s>", t.Pos, t.Value)
	case TokenCaret:
		return fmt.Sprintf("Caret[%d]", t.Pos)
	case TokenSlash:
		return fmt.Sprintf("Slash[%d]", t.Pos)
	case TokenPipe:
		return fmt.Sprintf("Pipe[%d]", t.Pos)
	case TokenStar:
		return fmt.Sprintf("Star[%d]", t.Pos)
	case TokenPlus:
		return fmt.Sprintf("Plus[%d]", t.Pos)
	case TokenLeftParen:
		return fmt.Sprintf("LeftParen[%d]", t.Pos)
	case TokenRightParen:
		return fmt.Sprintf("RightParen[%d]", t.Pos)
	default:
		return fmt.Sprintf("Unknown[%d]:%s", t.Pos, t.Value)
	}
}
