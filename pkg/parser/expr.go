package parser

import (
	"github.com/lemonberrylabs/loxwalk/pkg/ast"
	"github.com/lemonberrylabs/loxwalk/pkg/diagnostics"
	"github.com/lemonberrylabs/loxwalk/pkg/token"
)

// expression is the entry point: handles the lowest precedence operators.
// Precedence (low to high):
//
//	=            (right-assoc)
//	or
//	and
//	== !=
//	> >= < <=
//	+ -
//	* /
//	unary ! -    (right-assoc)
//	call
func (p *Parser) expression() (ast.Expr, error) {
	return p.assignment()
}

func (p *Parser) assignment() (ast.Expr, error) {
	expr, err := p.or()
	if err != nil {
		return nil, err
	}

	if p.match(token.Equal) {
		equals := p.previous()
		value, err := p.assignment()
		if err != nil {
			return nil, err
		}
		if v, ok := expr.(*ast.Variable); ok {
			return p.arena.Assign(v.Name, value), nil
		}
		p.report(equals, "Invalid assignment target.")
	}
	return expr, nil
}

func (p *Parser) or() (ast.Expr, error) {
	left, err := p.and()
	if err != nil {
		return nil, err
	}
	for p.match(token.Or) {
		op := p.previous()
		right, err := p.and()
		if err != nil {
			return nil, err
		}
		left = p.arena.Logical(left, op, right)
	}
	return left, nil
}

func (p *Parser) and() (ast.Expr, error) {
	left, err := p.equality()
	if err != nil {
		return nil, err
	}
	for p.match(token.And) {
		op := p.previous()
		right, err := p.equality()
		if err != nil {
			return nil, err
		}
		left = p.arena.Logical(left, op, right)
	}
	return left, nil
}

// binaryLevel parses a left-associative chain of operators from ops whose
// operands come from the next-tighter level.
func (p *Parser) binaryLevel(next func() (ast.Expr, error), ops ...token.TokenType) (ast.Expr, error) {
	left, err := next()
	if err != nil {
		return nil, err
	}
	for p.match(ops...) {
		op := p.previous()
		right, err := next()
		if err != nil {
			return nil, err
		}
		left = p.arena.Binary(left, op, right)
	}
	return left, nil
}

func (p *Parser) equality() (ast.Expr, error) {
	return p.binaryLevel(p.comparison, token.BangEqual, token.EqualEqual)
}

func (p *Parser) comparison() (ast.Expr, error) {
	return p.binaryLevel(p.term, token.Greater, token.GreaterEqual, token.Less, token.LessEqual)
}

func (p *Parser) term() (ast.Expr, error) {
	return p.binaryLevel(p.factor, token.Minus, token.Plus)
}

func (p *Parser) factor() (ast.Expr, error) {
	return p.binaryLevel(p.unary, token.Slash, token.Star)
}

func (p *Parser) unary() (ast.Expr, error) {
	if p.match(token.Bang, token.Minus) {
		op := p.previous()
		right, err := p.unary()
		if err != nil {
			return nil, err
		}
		return p.arena.Unary(op, right), nil
	}
	return p.call()
}

func (p *Parser) call() (ast.Expr, error) {
	expr, err := p.primary()
	if err != nil {
		return nil, err
	}
	for p.match(token.LeftParen) {
		expr, err = p.finishCall(expr)
		if err != nil {
			return nil, err
		}
	}
	return expr, nil
}

// finishCall parses the argument list after "(".
func (p *Parser) finishCall(callee ast.Expr) (ast.Expr, error) {
	var args []ast.Expr
	if !p.check(token.RightParen) {
		for {
			if len(args) >= MaxArgs {
				p.report(p.current(), "Can't have more than 255 arguments.")
			}
			arg, err := p.expression()
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			if !p.match(token.Comma) {
				break
			}
		}
	}
	paren, err := p.expect(token.RightParen, "Expect ')' after arguments.")
	if err != nil {
		return nil, err
	}
	return p.arena.Call(callee, paren, args), nil
}

func (p *Parser) primary() (ast.Expr, error) {
	tok := p.current()

	switch tok.Type {
	case token.False:
		p.advance()
		return p.arena.Literal(false), nil
	case token.True:
		p.advance()
		return p.arena.Literal(true), nil
	case token.Nil:
		p.advance()
		return p.arena.Literal(nil), nil
	case token.Number, token.String:
		p.advance()
		return p.arena.Literal(tok.Literal), nil
	case token.Identifier:
		p.advance()
		return p.arena.Variable(tok), nil
	case token.LeftParen:
		p.advance()
		inner, err := p.expression()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.RightParen, "Expect ')' after expression."); err != nil {
			return nil, err
		}
		return p.arena.Grouping(inner), nil
	default:
		return nil, diagnostics.AtToken(diagnostics.Syntax, tok, "Expect expression.")
	}
}
