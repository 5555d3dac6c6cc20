package runtime

import (
	"context"

	"github.com/lemonberrylabs/loxwalk/pkg/ast"
	"github.com/lemonberrylabs/loxwalk/pkg/types"
)

// Function is a user-defined function value. It captures the environment in
// which its declaration was executed.
type Function struct {
	decl    *ast.Function
	closure *Environment
	interp  *Interpreter
}

// Arity implements types.Callable.
func (f *Function) Arity() int {
	return len(f.decl.Params)
}

// Call implements types.Callable. Parameters are bound in a fresh environment
// whose parent is the closure.
func (f *Function) Call(ctx context.Context, args []types.Value) (types.Value, error) {
	env := NewEnvironment(f.closure)
	for i, param := range f.decl.Params {
		env.Define(param.Lexeme, args[i])
	}
	result, err := f.interp.executeBlock(ctx, f.decl.Body, env)
	if err != nil {
		return types.Nil, err
	}
	if result.Flow == FlowReturn {
		return result.Value, nil
	}
	return types.Nil, nil
}

// String implements types.Callable.
func (f *Function) String() string {
	return "<fn " + f.decl.Name.Lexeme + ">"
}
