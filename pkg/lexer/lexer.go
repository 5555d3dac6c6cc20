// Package lexer turns Lox source text into a flat token sequence.
package lexer

import (
	"errors"
	"strconv"
	"unicode/utf8"

	"github.com/lemonberrylabs/loxwalk/pkg/diagnostics"
	"github.com/lemonberrylabs/loxwalk/pkg/token"
)

// Lexer tokenizes a Lox source string in a single left-to-right pass.
type Lexer struct {
	input  string
	start  int // first byte of the token being scanned
	pos    int // next byte to read
	line   int
	tokens []token.Token
	diags  []*diagnostics.Diagnostic
}

// NewLexer creates a new lexer for the given input.
func NewLexer(input string) *Lexer {
	return &Lexer{input: input, line: 1}
}

// Scan is shorthand for NewLexer(source).Tokenize().
func Scan(source string) ([]token.Token, []*diagnostics.Diagnostic) {
	return NewLexer(source).Tokenize()
}

// Tokenize scans the entire input. Lexical errors are collected and scanning
// continues, so the returned token slice is always usable and always ends
// with exactly one EOF token.
func (l *Lexer) Tokenize() ([]token.Token, []*diagnostics.Diagnostic) {
	for !l.atEnd() {
		l.start = l.pos
		l.scanToken()
	}
	l.tokens = append(l.tokens, token.Token{Type: token.EOF, Line: l.line})
	return l.tokens, l.diags
}

func (l *Lexer) scanToken() {
	ch := l.advance()
	switch ch {
	case '(':
		l.emit(token.LeftParen)
	case ')':
		l.emit(token.RightParen)
	case '{':
		l.emit(token.LeftBrace)
	case '}':
		l.emit(token.RightBrace)
	case ',':
		l.emit(token.Comma)
	case '.':
		l.emit(token.Dot)
	case '-':
		l.emit(token.Minus)
	case '+':
		l.emit(token.Plus)
	case ';':
		l.emit(token.Semicolon)
	case '*':
		l.emit(token.Star)
	case '!':
		l.emitEither('=', token.BangEqual, token.Bang)
	case '=':
		l.emitEither('=', token.EqualEqual, token.Equal)
	case '<':
		l.emitEither('=', token.LessEqual, token.Less)
	case '>':
		l.emitEither('=', token.GreaterEqual, token.Greater)
	case '/':
		if l.match('/') {
			for !l.atEnd() && l.peek() != '\n' {
				l.pos++
			}
			return
		}
		l.emit(token.Slash)
	case ' ', '\r', '\t':
	case '\n':
		l.line++
	case '"':
		l.readString()
	default:
		switch {
		case isDigit(ch):
			l.readNumber()
		case isIdentStart(ch):
			l.readIdentifier()
		default:
			// Skip the whole rune so one stray multi-byte character is one error.
			if ch >= utf8.RuneSelf {
				_, size := utf8.DecodeRuneInString(l.input[l.start:])
				l.pos = l.start + size
			}
			l.report("Unexpected character.")
		}
	}
}

// readString reads a double-quoted string literal. Newlines are allowed and
// advance the line counter; there are no escape sequences.
func (l *Lexer) readString() {
	for !l.atEnd() && l.peek() != '"' {
		if l.peek() == '\n' {
			l.line++
		}
		l.pos++
	}
	if l.atEnd() {
		l.report("Unterminated string.")
		return
	}
	l.pos++ // closing quote
	l.emitLiteral(token.String, l.input[l.start+1:l.pos-1])
}

// readNumber reads digits with an optional fractional part. A trailing '.'
// with no digit after it is left for the next token.
func (l *Lexer) readNumber() {
	for isDigit(l.peek()) {
		l.pos++
	}
	if l.peek() == '.' && isDigit(l.peekNext()) {
		l.pos++
		for isDigit(l.peek()) {
			l.pos++
		}
	}
	raw := l.input[l.start:l.pos]
	// Literals beyond the float64 range become ±Inf.
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		l.report("Invalid number literal.")
		return
	}
	l.emitLiteral(token.Number, f)
}

// readIdentifier reads an identifier or keyword.
func (l *Lexer) readIdentifier() {
	for isIdentPart(l.peek()) {
		l.pos++
	}
	l.emit(token.LookupIdent(l.input[l.start:l.pos]))
}

func (l *Lexer) emit(tt token.TokenType) {
	l.emitLiteral(tt, nil)
}

func (l *Lexer) emitLiteral(tt token.TokenType, literal interface{}) {
	l.tokens = append(l.tokens, token.Token{
		Type:    tt,
		Lexeme:  l.input[l.start:l.pos],
		Literal: literal,
		Line:    l.line,
	})
}

func (l *Lexer) emitEither(next byte, matched, single token.TokenType) {
	if l.match(next) {
		l.emit(matched)
		return
	}
	l.emit(single)
}

func (l *Lexer) report(msg string) {
	l.diags = append(l.diags, diagnostics.New(diagnostics.Lexical, l.line, msg))
}

func (l *Lexer) advance() byte {
	ch := l.input[l.pos]
	l.pos++
	return ch
}

func (l *Lexer) match(expected byte) bool {
	if l.atEnd() || l.input[l.pos] != expected {
		return false
	}
	l.pos++
	return true
}

func (l *Lexer) peek() byte {
	if l.atEnd() {
		return 0
	}
	return l.input[l.pos]
}

func (l *Lexer) peekNext() byte {
	if l.pos+1 >= len(l.input) {
		return 0
	}
	return l.input[l.pos+1]
}

func (l *Lexer) atEnd() bool {
	return l.pos >= len(l.input)
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

func isIdentStart(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || ch == '_'
}

func isIdentPart(ch byte) bool {
	return isIdentStart(ch) || isDigit(ch)
}
