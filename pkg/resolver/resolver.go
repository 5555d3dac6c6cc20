// Package resolver performs the static pass between parsing and
// interpretation. For every variable reference or assignment that names a
// local it records how many scopes lie between the use and the declaration.
// References it does not record are globals.
package resolver

import (
	"fmt"

	"github.com/lemonberrylabs/loxwalk/pkg/ast"
	"github.com/lemonberrylabs/loxwalk/pkg/diagnostics"
	"github.com/lemonberrylabs/loxwalk/pkg/token"
)

// Locals maps an expression to the number of environment hops between the
// scope where it is evaluated and the scope that declares the name.
type Locals map[ast.ExprID]int

type functionType int

const (
	functionNone functionType = iota
	functionBody
)

// Resolver walks a statement list maintaining a stack of lexical scopes.
type Resolver struct {
	scopes  []map[string]bool // name -> ready (false between declare and define)
	locals  Locals
	current functionType
	diags   []*diagnostics.Diagnostic

	// name of the global whose initializer is being resolved, if any
	initializingGlobal string
}

// New creates a resolver with an empty table.
func New() *Resolver {
	return &Resolver{locals: make(Locals)}
}

// Resolve resolves a complete program.
func Resolve(stmts []ast.Stmt) (Locals, []*diagnostics.Diagnostic) {
	r := New()
	r.resolveStmts(stmts)
	return r.locals, r.diags
}

func (r *Resolver) resolveStmts(stmts []ast.Stmt) {
	for _, s := range stmts {
		r.resolveStmt(s)
	}
}

func (r *Resolver) resolveStmt(s ast.Stmt) {
	switch n := s.(type) {
	case *ast.Block:
		r.beginScope()
		r.resolveStmts(n.Statements)
		r.endScope()
	case *ast.Var:
		r.declare(n.Name)
		if len(r.scopes) == 0 {
			r.initializingGlobal = n.Name.Lexeme
		}
		r.resolveExpr(n.Initializer)
		r.initializingGlobal = ""
		r.define(n.Name)
	case *ast.Function:
		r.declare(n.Name)
		r.define(n.Name)
		r.resolveFunction(n, functionBody)
	case *ast.Expression:
		r.resolveExpr(n.Expression)
	case *ast.Print:
		r.resolveExpr(n.Expression)
	case *ast.If:
		r.resolveExpr(n.Condition)
		r.resolveStmt(n.Then)
		if n.Else != nil {
			r.resolveStmt(n.Else)
		}
	case *ast.While:
		r.resolveExpr(n.Condition)
		r.resolveStmt(n.Body)
	case *ast.Return:
		if r.current == functionNone {
			r.report(n.Keyword, "Can't return from top-level code.")
		}
		r.resolveExpr(n.Value)
	default:
		panic(fmt.Sprintf("resolver: unhandled statement type %T", s))
	}
}

func (r *Resolver) resolveFunction(fn *ast.Function, kind functionType) {
	enclosing := r.current
	r.current = kind
	defer func() { r.current = enclosing }()

	r.beginScope()
	for _, param := range fn.Params {
		r.declare(param)
		r.define(param)
	}
	r.resolveStmts(fn.Body)
	r.endScope()
}

func (r *Resolver) resolveExpr(e ast.Expr) {
	switch n := e.(type) {
	case *ast.Variable:
		if r.readsOwnInitializer(n.Name) {
			r.report(n.Name, "Can't read local variable in its own initializer.")
		}
		r.resolveLocal(n, n.Name)
	case *ast.Assign:
		r.resolveExpr(n.Value)
		r.resolveLocal(n, n.Name)
	case *ast.Binary:
		r.resolveExpr(n.Left)
		r.resolveExpr(n.Right)
	case *ast.Logical:
		r.resolveExpr(n.Left)
		r.resolveExpr(n.Right)
	case *ast.Unary:
		r.resolveExpr(n.Right)
	case *ast.Grouping:
		r.resolveExpr(n.Expression)
	case *ast.Call:
		r.resolveExpr(n.Callee)
		for _, arg := range n.Arguments {
			r.resolveExpr(arg)
		}
	case *ast.Literal, *ast.Empty:
	default:
		panic(fmt.Sprintf("resolver: unhandled expression type %T", e))
	}
}

// readsOwnInitializer reports whether name refers to the variable whose
// initializer is currently being resolved, in a local or the global scope.
func (r *Resolver) readsOwnInitializer(name token.Token) bool {
	if len(r.scopes) == 0 {
		return r.initializingGlobal != "" && r.initializingGlobal == name.Lexeme
	}
	ready, ok := r.scopes[len(r.scopes)-1][name.Lexeme]
	return ok && !ready
}

// resolveLocal records the hop count to the innermost scope declaring name.
func (r *Resolver) resolveLocal(e ast.Expr, name token.Token) {
	for i := len(r.scopes) - 1; i >= 0; i-- {
		if _, ok := r.scopes[i][name.Lexeme]; ok {
			r.locals[e.ID()] = len(r.scopes) - 1 - i
			return
		}
	}
}

func (r *Resolver) beginScope() {
	r.scopes = append(r.scopes, make(map[string]bool))
}

func (r *Resolver) endScope() {
	r.scopes = r.scopes[:len(r.scopes)-1]
}

func (r *Resolver) declare(name token.Token) {
	if len(r.scopes) == 0 {
		return
	}
	scope := r.scopes[len(r.scopes)-1]
	if _, exists := scope[name.Lexeme]; exists {
		r.report(name, "Already a variable with this name in this scope.")
	}
	scope[name.Lexeme] = false
}

func (r *Resolver) define(name token.Token) {
	if len(r.scopes) == 0 {
		return
	}
	r.scopes[len(r.scopes)-1][name.Lexeme] = true
}

func (r *Resolver) report(tok token.Token, msg string) {
	r.diags = append(r.diags, diagnostics.AtToken(diagnostics.Resolution, tok, msg))
}
