// Package parser converts a token sequence into a list of statements using
// recursive descent. Each precedence level is one method that only calls into
// the next-tighter level.
package parser

import (
	"errors"

	"github.com/lemonberrylabs/loxwalk/pkg/ast"
	"github.com/lemonberrylabs/loxwalk/pkg/diagnostics"
	"github.com/lemonberrylabs/loxwalk/pkg/token"
)

// MaxArgs is the maximum number of parameters or call arguments.
const MaxArgs = 255

// Parser is a recursive descent parser for Lox programs.
type Parser struct {
	tokens []token.Token
	pos    int
	arena  *ast.Arena
	diags  []*diagnostics.Diagnostic
}

// New creates a parser that allocates expression nodes from arena.
func New(tokens []token.Token, arena *ast.Arena) *Parser {
	if arena == nil {
		arena = ast.NewArena()
	}
	return &Parser{tokens: tokens, arena: arena}
}

// Parse parses a complete program with a fresh arena.
func Parse(tokens []token.Token) ([]ast.Stmt, []*diagnostics.Diagnostic) {
	return New(tokens, nil).ParseProgram()
}

// ParseProgram parses declarations until EOF. A malformed declaration is
// reported and skipped; parsing resumes at the next statement boundary, so
// the returned statements are those that parsed cleanly, in source order.
func (p *Parser) ParseProgram() ([]ast.Stmt, []*diagnostics.Diagnostic) {
	var stmts []ast.Stmt
	for !p.atEnd() {
		if stmt := p.declaration(); stmt != nil {
			stmts = append(stmts, stmt)
		}
	}
	return stmts, p.diags
}

// declaration parses one declaration, recovering from errors in panic mode.
// It returns nil when the declaration was discarded.
func (p *Parser) declaration() ast.Stmt {
	stmt, err := p.parseDeclaration()
	if err != nil {
		p.record(err)
		p.synchronize()
		return nil
	}
	return stmt
}

func (p *Parser) parseDeclaration() (ast.Stmt, error) {
	switch {
	case p.match(token.Class):
		return nil, p.skipClass()
	case p.match(token.Fun):
		return p.function()
	case p.match(token.Var):
		return p.varDeclaration()
	default:
		return p.statement()
	}
}

// skipClass rejects a class declaration. A well-formed header
// `class Name (< Super)? {` is consumed through the matching closing brace
// so method bodies do not produce a cascade of errors. Anything else is
// returned as an error and left to synchronize.
func (p *Parser) skipClass() error {
	keyword := p.previous()
	unsupported := diagnostics.AtToken(diagnostics.Syntax, keyword, "Classes are not supported.")
	if !p.match(token.Identifier) {
		return unsupported
	}
	if p.match(token.Less) && !p.match(token.Identifier) {
		return unsupported
	}
	if !p.check(token.LeftBrace) {
		return unsupported
	}

	p.diags = append(p.diags, unsupported)
	depth := 0
	for !p.atEnd() {
		switch p.advance().Type {
		case token.LeftBrace:
			depth++
		case token.RightBrace:
			depth--
			if depth == 0 {
				return nil
			}
		}
	}
	return nil
}

func (p *Parser) function() (ast.Stmt, error) {
	name, err := p.expect(token.Identifier, "Expect function name.")
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.LeftParen, "Expect '(' after function name."); err != nil {
		return nil, err
	}
	var params []token.Token
	if !p.check(token.RightParen) {
		for {
			if len(params) >= MaxArgs {
				p.report(p.current(), "Can't have more than 255 parameters.")
			}
			param, err := p.expect(token.Identifier, "Expect parameter name.")
			if err != nil {
				return nil, err
			}
			params = append(params, param)
			if !p.match(token.Comma) {
				break
			}
		}
	}
	if _, err := p.expect(token.RightParen, "Expect ')' after parameters."); err != nil {
		return nil, err
	}
	if _, err := p.expect(token.LeftBrace, "Expect '{' before function body."); err != nil {
		return nil, err
	}
	body, err := p.block()
	if err != nil {
		return nil, err
	}
	return &ast.Function{Name: name, Params: params, Body: body}, nil
}

func (p *Parser) varDeclaration() (ast.Stmt, error) {
	name, err := p.expect(token.Identifier, "Expect variable name.")
	if err != nil {
		return nil, err
	}
	var init ast.Expr = p.arena.Empty()
	if p.match(token.Equal) {
		init, err = p.expression()
		if err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(token.Semicolon, "Expect ';' after variable declaration."); err != nil {
		return nil, err
	}
	return &ast.Var{Name: name, Initializer: init}, nil
}

func (p *Parser) statement() (ast.Stmt, error) {
	switch {
	case p.match(token.For):
		return p.forStatement()
	case p.match(token.If):
		return p.ifStatement()
	case p.match(token.Print):
		return p.printStatement()
	case p.match(token.Return):
		return p.returnStatement()
	case p.match(token.While):
		return p.whileStatement()
	case p.match(token.LeftBrace):
		stmts, err := p.block()
		if err != nil {
			return nil, err
		}
		return &ast.Block{Statements: stmts}, nil
	default:
		return p.expressionStatement()
	}
}

// forStatement desugars "for (init; cond; incr) body" into
// { init; while (cond) { body; incr; } }.
func (p *Parser) forStatement() (ast.Stmt, error) {
	if _, err := p.expect(token.LeftParen, "Expect '(' after 'for'."); err != nil {
		return nil, err
	}

	var init ast.Stmt
	var err error
	switch {
	case p.match(token.Semicolon):
	case p.match(token.Var):
		init, err = p.varDeclaration()
	default:
		init, err = p.expressionStatement()
	}
	if err != nil {
		return nil, err
	}

	var cond ast.Expr
	if !p.check(token.Semicolon) {
		if cond, err = p.expression(); err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(token.Semicolon, "Expect ';' after loop condition."); err != nil {
		return nil, err
	}

	var incr ast.Expr
	if !p.check(token.RightParen) {
		if incr, err = p.expression(); err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(token.RightParen, "Expect ')' after for clauses."); err != nil {
		return nil, err
	}

	body, err := p.statement()
	if err != nil {
		return nil, err
	}
	if incr != nil {
		body = &ast.Block{Statements: []ast.Stmt{body, &ast.Expression{Expression: incr}}}
	}
	if cond == nil {
		cond = p.arena.Literal(true)
	}
	body = &ast.While{Condition: cond, Body: body}
	if init != nil {
		body = &ast.Block{Statements: []ast.Stmt{init, body}}
	}
	return body, nil
}

func (p *Parser) ifStatement() (ast.Stmt, error) {
	if _, err := p.expect(token.LeftParen, "Expect '(' after 'if'."); err != nil {
		return nil, err
	}
	cond, err := p.expression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.RightParen, "Expect ')' after if condition."); err != nil {
		return nil, err
	}
	then, err := p.statement()
	if err != nil {
		return nil, err
	}
	var els ast.Stmt
	if p.match(token.Else) {
		if els, err = p.statement(); err != nil {
			return nil, err
		}
	}
	return &ast.If{Condition: cond, Then: then, Else: els}, nil
}

func (p *Parser) printStatement() (ast.Stmt, error) {
	value, err := p.expression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.Semicolon, "Expect ';' after value."); err != nil {
		return nil, err
	}
	return &ast.Print{Expression: value}, nil
}

func (p *Parser) returnStatement() (ast.Stmt, error) {
	keyword := p.previous()
	var value ast.Expr = p.arena.Empty()
	if !p.check(token.Semicolon) {
		var err error
		if value, err = p.expression(); err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(token.Semicolon, "Expect ';' after return value."); err != nil {
		return nil, err
	}
	return &ast.Return{Keyword: keyword, Value: value}, nil
}

func (p *Parser) whileStatement() (ast.Stmt, error) {
	if _, err := p.expect(token.LeftParen, "Expect '(' after 'while'."); err != nil {
		return nil, err
	}
	cond, err := p.expression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.RightParen, "Expect ')' after condition."); err != nil {
		return nil, err
	}
	body, err := p.statement()
	if err != nil {
		return nil, err
	}
	return &ast.While{Condition: cond, Body: body}, nil
}

// block parses declarations up to the closing brace. The opening brace has
// already been consumed. Errors inside the block are recovered locally.
func (p *Parser) block() ([]ast.Stmt, error) {
	var stmts []ast.Stmt
	for !p.check(token.RightBrace) && !p.atEnd() {
		if stmt := p.declaration(); stmt != nil {
			stmts = append(stmts, stmt)
		}
	}
	if _, err := p.expect(token.RightBrace, "Expect '}' after block."); err != nil {
		return nil, err
	}
	return stmts, nil
}

func (p *Parser) expressionStatement() (ast.Stmt, error) {
	expr, err := p.expression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.Semicolon, "Expect ';' after expression."); err != nil {
		return nil, err
	}
	return &ast.Expression{Expression: expr}, nil
}

// synchronize discards tokens until just after a semicolon or just before a
// keyword that starts a statement.
func (p *Parser) synchronize() {
	p.advance()
	for !p.atEnd() {
		if p.previous().Type == token.Semicolon {
			return
		}
		switch p.current().Type {
		case token.Class, token.Fun, token.Var, token.For, token.If,
			token.While, token.Print, token.Return:
			return
		}
		p.advance()
	}
}

// record appends a parse error to the diagnostics.
func (p *Parser) record(err error) {
	var d *diagnostics.Diagnostic
	if errors.As(err, &d) {
		p.diags = append(p.diags, d)
		return
	}
	p.diags = append(p.diags, diagnostics.AtToken(diagnostics.Syntax, p.current(), err.Error()))
}

// report records an error that does not require resynchronizing.
func (p *Parser) report(tok token.Token, msg string) {
	p.diags = append(p.diags, diagnostics.AtToken(diagnostics.Syntax, tok, msg))
}

// current returns the current token.
func (p *Parser) current() token.Token {
	if p.pos >= len(p.tokens) {
		line := 1
		if len(p.tokens) > 0 {
			line = p.tokens[len(p.tokens)-1].Line
		}
		return token.Token{Type: token.EOF, Line: line}
	}
	return p.tokens[p.pos]
}

// previous returns the most recently consumed token.
func (p *Parser) previous() token.Token {
	if p.pos == 0 {
		return p.current()
	}
	return p.tokens[p.pos-1]
}

// advance consumes the current token and returns it. It never moves past EOF.
func (p *Parser) advance() token.Token {
	if !p.atEnd() {
		p.pos++
	}
	return p.previous()
}

func (p *Parser) atEnd() bool {
	return p.current().Type == token.EOF
}

func (p *Parser) check(tt token.TokenType) bool {
	return p.current().Type == tt
}

// match consumes the current token if it has one of the given types.
func (p *Parser) match(types ...token.TokenType) bool {
	for _, tt := range types {
		if p.check(tt) {
			p.advance()
			return true
		}
	}
	return false
}

// expect consumes a token of the expected type or returns a syntax error
// located at the offending token.
func (p *Parser) expect(tt token.TokenType, msg string) (token.Token, error) {
	if p.check(tt) {
		return p.advance(), nil
	}
	return p.current(), diagnostics.AtToken(diagnostics.Syntax, p.current(), msg)
}
