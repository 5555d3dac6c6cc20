package ast

import "github.com/lemonberrylabs/loxwalk/pkg/token"

// Arena allocates expression nodes and hands out their identities. A single
// arena may be shared by several parses (e.g. successive REPL lines) so that
// IDs stay unique for the lifetime of an interpreter.
type Arena struct {
	nodes []Expr
}

// NewArena creates an empty arena.
func NewArena() *Arena {
	return &Arena{}
}

// Len returns the number of nodes allocated so far.
func (a *Arena) Len() int {
	return len(a.nodes)
}

// Node returns the node with the given ID, or nil if it was not allocated by
// this arena.
func (a *Arena) Node(id ExprID) Expr {
	if id < 0 || int(id) >= len(a.nodes) {
		return nil
	}
	return a.nodes[id]
}

func (a *Arena) next() Base {
	return Base{NodeID: ExprID(len(a.nodes))}
}

func (a *Arena) add(e Expr) {
	a.nodes = append(a.nodes, e)
}

// Literal allocates a literal node.
func (a *Arena) Literal(value interface{}) *Literal {
	n := &Literal{Base: a.next(), Value: value}
	a.add(n)
	return n
}

// Grouping allocates a grouping node.
func (a *Arena) Grouping(inner Expr) *Grouping {
	n := &Grouping{Base: a.next(), Expression: inner}
	a.add(n)
	return n
}

// Unary allocates a unary node.
func (a *Arena) Unary(op token.Token, right Expr) *Unary {
	n := &Unary{Base: a.next(), Operator: op, Right: right}
	a.add(n)
	return n
}

// Binary allocates a binary node.
func (a *Arena) Binary(left Expr, op token.Token, right Expr) *Binary {
	n := &Binary{Base: a.next(), Left: left, Operator: op, Right: right}
	a.add(n)
	return n
}

// Logical allocates a logical node.
func (a *Arena) Logical(left Expr, op token.Token, right Expr) *Logical {
	n := &Logical{Base: a.next(), Left: left, Operator: op, Right: right}
	a.add(n)
	return n
}

// Variable allocates a variable reference.
func (a *Arena) Variable(name token.Token) *Variable {
	n := &Variable{Base: a.next(), Name: name}
	a.add(n)
	return n
}

// Assign allocates an assignment.
func (a *Arena) Assign(name token.Token, value Expr) *Assign {
	n := &Assign{Base: a.next(), Name: name, Value: value}
	a.add(n)
	return n
}

// Call allocates a call.
func (a *Arena) Call(callee Expr, paren token.Token, args []Expr) *Call {
	n := &Call{Base: a.next(), Callee: callee, Paren: paren, Arguments: args}
	a.add(n)
	return n
}

// Empty allocates an empty-expression marker.
func (a *Arena) Empty() *Empty {
	n := &Empty{Base: a.next()}
	a.add(n)
	return n
}
