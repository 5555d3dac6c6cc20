// Package stdlib implements the native functions available to every Lox
// program.
package stdlib

import (
	"context"
	"sort"

	"github.com/lemonberrylabs/loxwalk/pkg/types"
)

// NativeFunc is the Go implementation of a native function. Arguments have
// already been checked against the declared arity.
type NativeFunc func(ctx context.Context, args []types.Value) (types.Value, error)

// Native is a callable implemented in Go.
type Native struct {
	name  string
	arity int
	fn    NativeFunc
}

// Name returns the global name the native is installed under.
func (n *Native) Name() string { return n.name }

// Arity implements types.Callable.
func (n *Native) Arity() int { return n.arity }

// Call implements types.Callable.
func (n *Native) Call(ctx context.Context, args []types.Value) (types.Value, error) {
	return n.fn(ctx, args)
}

// String implements types.Callable.
func (n *Native) String() string { return "<native fn>" }

// Definer binds a global name. *runtime.Environment satisfies it.
type Definer interface {
	Define(name string, value types.Value)
}

// Registry holds the native functions.
type Registry struct {
	natives map[string]*Native
}

// NewRegistry creates a registry with all built-in natives registered.
func NewRegistry() *Registry {
	r := &Registry{
		natives: make(map[string]*Native),
	}
	r.registerTime(defaultClock)
	return r
}

// Register adds a native to the registry, replacing any with the same name.
func (r *Registry) Register(name string, arity int, fn NativeFunc) {
	r.natives[name] = &Native{name: name, arity: arity, fn: fn}
}

// Lookup returns the native registered under name.
func (r *Registry) Lookup(name string) (*Native, bool) {
	n, ok := r.natives[name]
	return n, ok
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.natives))
	for name := range r.natives {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Install defines every native in d.
func (r *Registry) Install(d Definer) {
	for _, name := range r.Names() {
		d.Define(name, types.NewCallable(r.natives[name]))
	}
}
