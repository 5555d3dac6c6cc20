// Package ast defines the syntax tree produced by the parser. Expressions
// and statements are closed sum types: the marker methods are unexported so
// no other package can add variants, and every consumer switches over the
// full set.
package ast

import "github.com/lemonberrylabs/loxwalk/pkg/token"

// ExprID identifies an expression node. It is the index of the node in the
// Arena that allocated it and is the key of the resolver's side table.
type ExprID int

// Expr is the interface for all expression nodes.
type Expr interface {
	ID() ExprID
	exprNode()
}

// Base carries the identity shared by every expression node.
type Base struct {
	NodeID ExprID
}

// ID returns the node's arena index.
func (b Base) ID() ExprID { return b.NodeID }

func (Base) exprNode() {}

// Literal is a number, string, boolean or nil constant.
type Literal struct {
	Base
	// Value is nil, bool, float64 or string.
	Value interface{}
}

// Grouping is a parenthesized expression.
type Grouping struct {
	Base
	Expression Expr
}

// Unary is a prefix operation: !x or -x.
type Unary struct {
	Base
	Operator token.Token
	Right    Expr
}

// Binary is an arithmetic, comparison or equality operation.
type Binary struct {
	Base
	Left     Expr
	Operator token.Token
	Right    Expr
}

// Logical is a short-circuiting "and" / "or".
type Logical struct {
	Base
	Left     Expr
	Operator token.Token
	Right    Expr
}

// Variable is a read of a named variable.
type Variable struct {
	Base
	Name token.Token
}

// Assign stores Value into an existing variable.
type Assign struct {
	Base
	Name  token.Token
	Value Expr
}

// Call invokes Callee with Arguments. Paren is the closing parenthesis and
// locates runtime errors raised by the call.
type Call struct {
	Base
	Callee    Expr
	Paren     token.Token
	Arguments []Expr
}

// Empty marks the absence of an optional expression, such as a variable
// declared without an initializer. It evaluates to nil.
type Empty struct {
	Base
}

// Stmt is the interface for all statement nodes.
type Stmt interface {
	stmtNode()
}

// Expression is an expression evaluated for its side effects.
type Expression struct {
	Expression Expr
}

// Print writes the stringified value of Expression followed by a newline.
type Print struct {
	Expression Expr
}

// Var declares Name in the current scope. Initializer is *Empty when the
// declaration has no "= value" part; it is never nil.
type Var struct {
	Name        token.Token
	Initializer Expr
}

// Block runs Statements in a fresh nested scope.
type Block struct {
	Statements []Stmt
}

// If runs Then when Condition is truthy, else Else (which may be nil).
type If struct {
	Condition Expr
	Then      Stmt
	Else      Stmt
}

// While runs Body as long as Condition is truthy. "for" loops are desugared
// into While by the parser.
type While struct {
	Condition Expr
	Body      Stmt
}

// Function declares a named function.
type Function struct {
	Name   token.Token
	Params []token.Token
	Body   []Stmt
}

// Return exits the enclosing function. Value is *Empty for a bare "return;".
type Return struct {
	Keyword token.Token
	Value   Expr
}

func (*Expression) stmtNode() {}
func (*Print) stmtNode()      {}
func (*Var) stmtNode()        {}
func (*Block) stmtNode()      {}
func (*If) stmtNode()         {}
func (*While) stmtNode()      {}
func (*Function) stmtNode()   {}
func (*Return) stmtNode()     {}
