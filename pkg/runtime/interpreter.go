package runtime

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/lemonberrylabs/loxwalk/pkg/ast"
	"github.com/lemonberrylabs/loxwalk/pkg/token"
	"github.com/lemonberrylabs/loxwalk/pkg/types"
)

// DefaultMaxCallDepth is the default limit on nested function calls.
const DefaultMaxCallDepth = 2048

// FlowControl represents special flow control signals during execution.
type FlowControl int

const (
	FlowNone   FlowControl = iota
	FlowReturn             // return a value from the enclosing function
)

// StmtResult is the result of executing a single statement.
type StmtResult struct {
	Flow  FlowControl
	Value types.Value // return value for FlowReturn
}

// Interpreter executes resolved Lox programs. Globals and resolved locals
// persist across Interpret calls so a REPL can build on earlier lines.
// An Interpreter must not be used from more than one goroutine at a time.
type Interpreter struct {
	globals *Environment
	env     *Environment
	locals  map[ast.ExprID]int
	out     io.Writer
	logger  *zap.Logger

	maxCallDepth int
	stepLimit    int
	callDepth    int
	steps        int
	line         int // most recent source line seen, for interruption errors
}

// Option configures an Interpreter.
type Option func(*Interpreter)

// WithLogger sets the logger used for debug output.
func WithLogger(logger *zap.Logger) Option {
	return func(i *Interpreter) {
		i.logger = logger
	}
}

// WithMaxCallDepth limits nested calls; exceeding it is a runtime error.
// Zero disables the limit.
func WithMaxCallDepth(n int) Option {
	return func(i *Interpreter) {
		i.maxCallDepth = n
	}
}

// WithStepLimit limits the number of statements a single Interpret call may
// execute. Zero disables the limit.
func WithStepLimit(n int) Option {
	return func(i *Interpreter) {
		i.stepLimit = n
	}
}

// NewInterpreter creates an interpreter that prints to out.
func NewInterpreter(out io.Writer, opts ...Option) *Interpreter {
	globals := NewEnvironment(nil)
	i := &Interpreter{
		globals:      globals,
		env:          globals,
		locals:       make(map[ast.ExprID]int),
		out:          out,
		logger:       zap.NewNop(),
		maxCallDepth: DefaultMaxCallDepth,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Globals returns the global environment, e.g. for installing natives.
func (i *Interpreter) Globals() *Environment {
	return i.globals
}

// Interpret executes stmts in order. locals is the resolver's table for
// these statements; it is merged into the tables of earlier calls. The first
// runtime error aborts execution and is returned as a *types.RuntimeError.
func (i *Interpreter) Interpret(ctx context.Context, stmts []ast.Stmt, locals map[ast.ExprID]int) error {
	for id, depth := range locals {
		i.locals[id] = depth
	}
	i.steps = 0
	i.callDepth = 0
	i.env = i.globals

	for _, stmt := range stmts {
		if _, err := i.execute(ctx, stmt); err != nil {
			i.logger.Debug("runtime error", zap.Int("line", i.line), zap.Error(err))
			return err
		}
	}
	return nil
}

// checkpoint enforces cancellation and the step limit.
func (i *Interpreter) checkpoint(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return types.NewInterruptedError(i.line, err)
	}
	i.steps++
	if i.stepLimit > 0 && i.steps > i.stepLimit {
		return types.NewStepLimitError(i.line, i.stepLimit)
	}
	return nil
}

func (i *Interpreter) execute(ctx context.Context, stmt ast.Stmt) (StmtResult, error) {
	if err := i.checkpoint(ctx); err != nil {
		return StmtResult{}, err
	}

	switch s := stmt.(type) {
	case *ast.Expression:
		_, err := i.evaluate(ctx, s.Expression)
		return StmtResult{}, err

	case *ast.Print:
		v, err := i.evaluate(ctx, s.Expression)
		if err != nil {
			return StmtResult{}, err
		}
		if _, err := fmt.Fprintln(i.out, v.String()); err != nil {
			return StmtResult{}, fmt.Errorf("writing output: %w", err)
		}
		return StmtResult{}, nil

	case *ast.Var:
		v, err := i.evaluate(ctx, s.Initializer)
		if err != nil {
			return StmtResult{}, err
		}
		i.line = s.Name.Line
		i.env.Define(s.Name.Lexeme, v)
		return StmtResult{}, nil

	case *ast.Block:
		return i.executeBlock(ctx, s.Statements, NewEnvironment(i.env))

	case *ast.If:
		cond, err := i.evaluate(ctx, s.Condition)
		if err != nil {
			return StmtResult{}, err
		}
		if cond.Truthy() {
			return i.execute(ctx, s.Then)
		}
		if s.Else != nil {
			return i.execute(ctx, s.Else)
		}
		return StmtResult{}, nil

	case *ast.While:
		return i.executeWhile(ctx, s)

	case *ast.Function:
		fn := &Function{decl: s, closure: i.env, interp: i}
		i.env.Define(s.Name.Lexeme, types.NewCallable(fn))
		return StmtResult{}, nil

	case *ast.Return:
		v, err := i.evaluate(ctx, s.Value)
		if err != nil {
			return StmtResult{}, err
		}
		return StmtResult{Flow: FlowReturn, Value: v}, nil

	default:
		panic(fmt.Sprintf("runtime: unhandled statement type %T", stmt))
	}
}

func (i *Interpreter) executeWhile(ctx context.Context, s *ast.While) (StmtResult, error) {
	for {
		if err := ctx.Err(); err != nil {
			return StmtResult{}, types.NewInterruptedError(i.line, err)
		}
		cond, err := i.evaluate(ctx, s.Condition)
		if err != nil {
			return StmtResult{}, err
		}
		if !cond.Truthy() {
			return StmtResult{}, nil
		}
		result, err := i.execute(ctx, s.Body)
		if err != nil || result.Flow == FlowReturn {
			return result, err
		}
	}
}

// executeBlock runs stmts in env and restores the previous environment on
// every exit path.
func (i *Interpreter) executeBlock(ctx context.Context, stmts []ast.Stmt, env *Environment) (StmtResult, error) {
	previous := i.env
	i.env = env
	defer func() { i.env = previous }()

	for _, stmt := range stmts {
		result, err := i.execute(ctx, stmt)
		if err != nil || result.Flow == FlowReturn {
			return result, err
		}
	}
	return StmtResult{}, nil
}

func (i *Interpreter) evaluate(ctx context.Context, expr ast.Expr) (types.Value, error) {
	switch e := expr.(type) {
	case *ast.Literal:
		return types.FromLiteral(e.Value), nil

	case *ast.Empty:
		return types.Nil, nil

	case *ast.Grouping:
		return i.evaluate(ctx, e.Expression)

	case *ast.Variable:
		i.line = e.Name.Line
		return i.lookUp(e.Name, e)

	case *ast.Assign:
		v, err := i.evaluate(ctx, e.Value)
		if err != nil {
			return types.Nil, err
		}
		i.line = e.Name.Line
		if depth, ok := i.locals[e.ID()]; ok {
			err = i.env.AssignAt(depth, e.Name, v)
		} else {
			err = i.globals.Assign(e.Name, v)
		}
		if err != nil {
			return types.Nil, err
		}
		return v, nil

	case *ast.Logical:
		left, err := i.evaluate(ctx, e.Left)
		if err != nil {
			return types.Nil, err
		}
		if e.Operator.Type == token.Or {
			if left.Truthy() {
				return left, nil
			}
		} else if !left.Truthy() {
			return left, nil
		}
		return i.evaluate(ctx, e.Right)

	case *ast.Unary:
		right, err := i.evaluate(ctx, e.Right)
		if err != nil {
			return types.Nil, err
		}
		i.line = e.Operator.Line
		return evalUnary(e.Operator, right)

	case *ast.Binary:
		left, err := i.evaluate(ctx, e.Left)
		if err != nil {
			return types.Nil, err
		}
		right, err := i.evaluate(ctx, e.Right)
		if err != nil {
			return types.Nil, err
		}
		i.line = e.Operator.Line
		return evalBinary(e.Operator, left, right)

	case *ast.Call:
		return i.evalCall(ctx, e)

	default:
		panic(fmt.Sprintf("runtime: unhandled expression type %T", expr))
	}
}

func (i *Interpreter) lookUp(name token.Token, expr ast.Expr) (types.Value, error) {
	if depth, ok := i.locals[expr.ID()]; ok {
		return i.env.GetAt(depth, name)
	}
	return i.globals.Get(name)
}

func (i *Interpreter) evalCall(ctx context.Context, e *ast.Call) (types.Value, error) {
	callee, err := i.evaluate(ctx, e.Callee)
	if err != nil {
		return types.Nil, err
	}
	args := make([]types.Value, 0, len(e.Arguments))
	for _, a := range e.Arguments {
		v, err := i.evaluate(ctx, a)
		if err != nil {
			return types.Nil, err
		}
		args = append(args, v)
	}
	i.line = e.Paren.Line

	fn, ok := callee.AsCallable()
	if !ok {
		return types.Nil, types.NewRuntimeError(e.Paren, types.MsgNotCallable)
	}
	if len(args) != fn.Arity() {
		return types.Nil, types.NewArityError(e.Paren, fn.Arity(), len(args))
	}

	i.callDepth++
	defer func() { i.callDepth-- }()
	if i.maxCallDepth > 0 && i.callDepth > i.maxCallDepth {
		return types.Nil, types.NewRuntimeError(e.Paren, types.MsgStackOverflow)
	}
	return fn.Call(ctx, args)
}

func evalUnary(op token.Token, right types.Value) (types.Value, error) {
	switch op.Type {
	case token.Minus:
		n, ok := right.AsNumber()
		if !ok {
			return types.Nil, types.NewRuntimeError(op, types.MsgOperandNumber)
		}
		return types.NewNumber(-n), nil
	case token.Bang:
		return types.NewBool(!right.Truthy()), nil
	default:
		panic(fmt.Sprintf("runtime: unknown unary operator %s", op.Type))
	}
}

func evalBinary(op token.Token, left, right types.Value) (types.Value, error) {
	switch op.Type {
	case token.EqualEqual:
		return types.NewBool(left.Equal(right)), nil
	case token.BangEqual:
		return types.NewBool(!left.Equal(right)), nil
	case token.Plus:
		return evalAdd(op, left, right)
	}

	a, aok := left.AsNumber()
	b, bok := right.AsNumber()
	if !aok || !bok {
		return types.Nil, types.NewRuntimeError(op, types.MsgOperandsNumbers)
	}

	switch op.Type {
	case token.Minus:
		return types.NewNumber(a - b), nil
	case token.Star:
		return types.NewNumber(a * b), nil
	case token.Slash:
		// IEEE semantics: x/0 is ±Inf, 0/0 is NaN.
		return types.NewNumber(a / b), nil
	case token.Greater:
		return types.NewBool(a > b), nil
	case token.GreaterEqual:
		return types.NewBool(a >= b), nil
	case token.Less:
		return types.NewBool(a < b), nil
	case token.LessEqual:
		return types.NewBool(a <= b), nil
	default:
		panic(fmt.Sprintf("runtime: unknown binary operator %s", op.Type))
	}
}

// evalAdd handles +: number addition or string concatenation.
func evalAdd(op token.Token, left, right types.Value) (types.Value, error) {
	if a, ok := left.AsNumber(); ok {
		if b, ok := right.AsNumber(); ok {
			return types.NewNumber(a + b), nil
		}
	}
	if left.Type() == types.TypeString && right.Type() == types.TypeString {
		return types.NewString(left.AsString() + right.AsString()), nil
	}
	return types.Nil, types.NewRuntimeError(op, types.MsgOperandsPlus)
}
