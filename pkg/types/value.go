// Package types defines the runtime values of the Lox interpreter.
// It implements the Lox type system: nil, bool, number, string, callable.
package types

import (
	"context"
	"fmt"
	"strconv"
)

// ValueType represents the dynamic type of a Lox value.
type ValueType int

const (
	TypeNil      ValueType = iota
	TypeBool               // bool
	TypeNumber             // float64
	TypeString             // string
	TypeCallable           // Callable
)

// String returns the type name used in diagnostics and debug output.
func (t ValueType) String() string {
	switch t {
	case TypeNil:
		return "nil"
	case TypeBool:
		return "bool"
	case TypeNumber:
		return "number"
	case TypeString:
		return "string"
	case TypeCallable:
		return "callable"
	default:
		return "unknown"
	}
}

// Callable is implemented by user-defined functions and natives.
type Callable interface {
	Arity() int
	Call(ctx context.Context, args []Value) (Value, error)
	String() string
}

// Value represents a Lox runtime value. It uses a tagged union approach.
type Value struct {
	typ       ValueType
	boolVal   bool
	numberVal float64
	stringVal string
	callVal   Callable
}

// Nil is the singleton nil value.
var Nil = Value{typ: TypeNil}

// NewBool creates a boolean value.
func NewBool(v bool) Value {
	return Value{typ: TypeBool, boolVal: v}
}

// NewNumber creates a number value.
func NewNumber(v float64) Value {
	return Value{typ: TypeNumber, numberVal: v}
}

// NewString creates a string value.
func NewString(v string) Value {
	return Value{typ: TypeString, stringVal: v}
}

// NewCallable creates a callable value.
func NewCallable(c Callable) Value {
	return Value{typ: TypeCallable, callVal: c}
}

// FromLiteral converts a token literal (nil, bool, float64 or string) into a
// Value. It panics on any other Go type.
func FromLiteral(lit interface{}) Value {
	switch v := lit.(type) {
	case nil:
		return Nil
	case bool:
		return NewBool(v)
	case float64:
		return NewNumber(v)
	case string:
		return NewString(v)
	default:
		panic(fmt.Sprintf("types: unsupported literal %T", lit))
	}
}

// Type returns the value's type.
func (v Value) Type() ValueType {
	return v.typ
}

// IsNil returns true if the value is nil.
func (v Value) IsNil() bool {
	return v.typ == TypeNil
}

// AsBool returns the boolean value. Panics if not a bool.
func (v Value) AsBool() bool {
	if v.typ != TypeBool {
		panic(fmt.Sprintf("AsBool called on %s value", v.typ))
	}
	return v.boolVal
}

// AsNumber returns the number value and whether v is a number.
func (v Value) AsNumber() (float64, bool) {
	if v.typ != TypeNumber {
		return 0, false
	}
	return v.numberVal, true
}

// AsString returns the string value. Panics if not a string.
func (v Value) AsString() string {
	if v.typ != TypeString {
		panic(fmt.Sprintf("AsString called on %s value", v.typ))
	}
	return v.stringVal
}

// AsCallable returns the callable and whether v is callable.
func (v Value) AsCallable() (Callable, bool) {
	if v.typ != TypeCallable {
		return nil, false
	}
	return v.callVal, true
}

// Truthy reports the truthiness of a value. Only false and nil are falsy;
// 0 and the empty string are truthy.
func (v Value) Truthy() bool {
	switch v.typ {
	case TypeNil:
		return false
	case TypeBool:
		return v.boolVal
	default:
		return true
	}
}

// Equal tests Lox equality. Values of different types are never equal, nil
// equals only nil, and numbers compare with IEEE == (so NaN != NaN).
// Callables are equal only to themselves.
func (v Value) Equal(other Value) bool {
	if v.typ != other.typ {
		return false
	}
	switch v.typ {
	case TypeNil:
		return true
	case TypeBool:
		return v.boolVal == other.boolVal
	case TypeNumber:
		return v.numberVal == other.numberVal
	case TypeString:
		return v.stringVal == other.stringVal
	case TypeCallable:
		return v.callVal == other.callVal
	default:
		return false
	}
}

// String renders the value the way print displays it. Integral numbers print
// without a fractional part.
func (v Value) String() string {
	switch v.typ {
	case TypeNil:
		return "nil"
	case TypeBool:
		return strconv.FormatBool(v.boolVal)
	case TypeNumber:
		return strconv.FormatFloat(v.numberVal, 'f', -1, 64)
	case TypeString:
		return v.stringVal
	case TypeCallable:
		return v.callVal.String()
	default:
		return "<unknown>"
	}
}

// GoString implements fmt.GoStringer for test failure output.
func (v Value) GoString() string {
	if v.typ == TypeString {
		return strconv.Quote(v.stringVal)
	}
	return v.String()
}
