// Package runtime implements the Lox tree-walk interpreter.
package runtime

import (
	"github.com/lemonberrylabs/loxwalk/pkg/token"
	"github.com/lemonberrylabs/loxwalk/pkg/types"
)

// Environment maps names to values with parent scope chaining. Lookups by
// name walk up the chain; lookups by distance jump directly to the ancestor
// the resolver computed.
type Environment struct {
	enclosing *Environment
	values    map[string]types.Value
}

// NewEnvironment creates an environment nested in enclosing, which is nil for
// the global scope.
func NewEnvironment(enclosing *Environment) *Environment {
	return &Environment{
		enclosing: enclosing,
		values:    make(map[string]types.Value),
	}
}

// Enclosing returns the parent environment.
func (e *Environment) Enclosing() *Environment {
	return e.enclosing
}

// Define binds name in this environment, replacing any existing binding.
func (e *Environment) Define(name string, value types.Value) {
	e.values[name] = value
}

// Get retrieves a variable value, searching up the scope chain.
func (e *Environment) Get(name token.Token) (types.Value, error) {
	for env := e; env != nil; env = env.enclosing {
		if v, ok := env.values[name.Lexeme]; ok {
			return v, nil
		}
	}
	return types.Nil, types.NewUndefinedVariable(name)
}

// Assign updates the nearest existing binding of name.
func (e *Environment) Assign(name token.Token, value types.Value) error {
	for env := e; env != nil; env = env.enclosing {
		if _, ok := env.values[name.Lexeme]; ok {
			env.values[name.Lexeme] = value
			return nil
		}
	}
	return types.NewUndefinedVariable(name)
}

// Ancestor returns the environment distance hops up the chain, or nil if the
// chain is shorter than that.
func (e *Environment) Ancestor(distance int) *Environment {
	env := e
	for i := 0; i < distance && env != nil; i++ {
		env = env.enclosing
	}
	return env
}

// GetAt reads name from the ancestor at distance without searching.
func (e *Environment) GetAt(distance int, name token.Token) (types.Value, error) {
	if env := e.Ancestor(distance); env != nil {
		if v, ok := env.values[name.Lexeme]; ok {
			return v, nil
		}
	}
	return types.Nil, types.NewUndefinedVariable(name)
}

// AssignAt writes name in the ancestor at distance without searching.
func (e *Environment) AssignAt(distance int, name token.Token, value types.Value) error {
	env := e.Ancestor(distance)
	if env == nil {
		return types.NewUndefinedVariable(name)
	}
	env.values[name.Lexeme] = value
	return nil
}

// Names returns the names bound directly in this environment.
func (e *Environment) Names() []string {
	names := make([]string, 0, len(e.values))
	for k := range e.values {
		names = append(names, k)
	}
	return names
}
