package ast

import (
	"fmt"
	"strconv"
	"strings"
)

// Format renders an expression as a parenthesized prefix form, e.g.
// "(+ 2 (* 3 4))". It is used for --dump-ast and in tests.
func Format(e Expr) string {
	var sb strings.Builder
	writeExpr(&sb, e)
	return sb.String()
}

// FormatStmt renders a statement in the same prefix form.
func FormatStmt(s Stmt) string {
	var sb strings.Builder
	writeStmt(&sb, s)
	return sb.String()
}

// FormatProgram renders statements one per line.
func FormatProgram(stmts []Stmt) string {
	lines := make([]string, len(stmts))
	for i, s := range stmts {
		lines[i] = FormatStmt(s)
	}
	return strings.Join(lines, "\n")
}

func writeExpr(sb *strings.Builder, e Expr) {
	switch n := e.(type) {
	case *Literal:
		sb.WriteString(literalText(n.Value))
	case *Grouping:
		parenthesize(sb, "group", n.Expression)
	case *Unary:
		parenthesize(sb, n.Operator.Lexeme, n.Right)
	case *Binary:
		parenthesize(sb, n.Operator.Lexeme, n.Left, n.Right)
	case *Logical:
		parenthesize(sb, n.Operator.Lexeme, n.Left, n.Right)
	case *Variable:
		sb.WriteString(n.Name.Lexeme)
	case *Assign:
		sb.WriteString("(= " + n.Name.Lexeme + " ")
		writeExpr(sb, n.Value)
		sb.WriteString(")")
	case *Call:
		parenthesize(sb, "call", append([]Expr{n.Callee}, n.Arguments...)...)
	case *Empty:
		sb.WriteString("<empty>")
	default:
		panic(fmt.Sprintf("ast: unhandled expression type %T", e))
	}
}

func writeStmt(sb *strings.Builder, s Stmt) {
	switch n := s.(type) {
	case *Expression:
		parenthesize(sb, ";", n.Expression)
	case *Print:
		parenthesize(sb, "print", n.Expression)
	case *Var:
		if _, empty := n.Initializer.(*Empty); empty {
			sb.WriteString("(var " + n.Name.Lexeme + ")")
			return
		}
		sb.WriteString("(var " + n.Name.Lexeme + " ")
		writeExpr(sb, n.Initializer)
		sb.WriteString(")")
	case *Block:
		sb.WriteString("(block")
		for _, st := range n.Statements {
			sb.WriteString(" ")
			writeStmt(sb, st)
		}
		sb.WriteString(")")
	case *If:
		sb.WriteString("(if ")
		writeExpr(sb, n.Condition)
		sb.WriteString(" ")
		writeStmt(sb, n.Then)
		if n.Else != nil {
			sb.WriteString(" ")
			writeStmt(sb, n.Else)
		}
		sb.WriteString(")")
	case *While:
		sb.WriteString("(while ")
		writeExpr(sb, n.Condition)
		sb.WriteString(" ")
		writeStmt(sb, n.Body)
		sb.WriteString(")")
	case *Function:
		params := make([]string, len(n.Params))
		for i, p := range n.Params {
			params[i] = p.Lexeme
		}
		sb.WriteString("(fun " + n.Name.Lexeme + " (" + strings.Join(params, " ") + ")")
		for _, st := range n.Body {
			sb.WriteString(" ")
			writeStmt(sb, st)
		}
		sb.WriteString(")")
	case *Return:
		if _, empty := n.Value.(*Empty); empty {
			sb.WriteString("(return)")
			return
		}
		parenthesize(sb, "return", n.Value)
	default:
		panic(fmt.Sprintf("ast: unhandled statement type %T", s))
	}
}

func parenthesize(sb *strings.Builder, name string, exprs ...Expr) {
	sb.WriteString("(" + name)
	for _, e := range exprs {
		sb.WriteString(" ")
		writeExpr(sb, e)
	}
	sb.WriteString(")")
}

func literalText(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return "nil"
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case string:
		return strconv.Quote(val)
	default:
		return fmt.Sprintf("%v", val)
	}
}
