package parser

import (
	"unicode"
)

// Lexer tokenizes RPQ input
type Lexer struct {
	input   string
	pos     int
	tokens  []Token
	current int
}

// NewLexer creates a new lexer for the given input
func NewLexer(input string) *Lexer {
	return &Lexer{
		input:  input,
		tokens: []Token{},
	}
}

// Lex tokenizes the entire input
func (l *Lexer) Lex() error {
	for l.pos < len(l.input) {
		l.skipWhitespace()
		if l.pos >= len(l.input) {
			break
		}

		start := l.pos + 1
		ch := l.input[l.pos]
		var typ TokenType
		switch ch {
		case '<':
			digits, err := l.readIRI()
			if err != nil {
				return err
			}
			l.tokens = append(l.tokens, Token{Type: TokenIRI, Value: digits, Pos: start})
			continue
		case '^':
			typ = TokenCaret
		case '/':
			typ = TokenSlash
		case '|':
			typ = TokenPipe
		case '*':
			typ = TokenStar
		case '+':
			typ = TokenPlus
		case '(':
			typ = TokenLeftParen
		case ')':
			typ = TokenRightParen
		default:
			return errorf(start, "unexpected character %q", ch)
		}
		l.pos++
		l.tokens = append(l.tokens, Token{Type: typ, Pos: start})
	}

	l.tokens = append(l.tokens, Token{Type: TokenEOF, Pos: l.pos + 1})
	return nil
}

// Tokens returns the lexed tokens, EOF included
func (l *Lexer) Tokens() []Token {
	return l.tokens
}

// NextToken returns the next token
func (l *Lexer) NextToken() Token {
	if l.current >= len(l.tokens) {
		return Token{Type: TokenEOF, Pos: l.pos + 1}
	}
	token := l.tokens[l.current]
	l.current++
	return token
}

// PeekToken returns the next token without advancing
func (l *Lexer) PeekToken() Token {
	if l.current >= len(l.tokens) {
		return Token{Type: TokenEOF, Pos: l.pos + 1}
	}
	return l.tokens[l.current]
}

func (l *Lexer) skipWhitespace() {
	for l.pos < len(l.input) && unicode.IsSpace(rune(l.input[l.pos])) {
		l.pos++
	}
}

// readIRI consumes <digits> and returns the digits
func (l *Lexer) readIRI() (string, error) {
	start := l.pos + 1
	l.pos++ // skip '<'
	begin := l.pos
	for l.pos < len(l.input) && l.input[l.pos] >= '0' && l.input[l.pos] <= '9' {
		l.pos++
	}
	digits := l.input[begin:l.pos]
	if l.pos >= len(l.input) {
		return "", errorf(start, "unterminated IRI")
	}
	if l.input[l.pos] != '>' {
		return "", errorf(l.pos+1, "IRI must be a numeric label, got %q", l.input[l.pos])
	}
	if digits == "" {
		return "", errorf(start, "empty IRI")
	}
	l.pos++ // skip '>'
	return digits, nil
}
