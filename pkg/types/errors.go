package types

import (
	"fmt"

	"github.com/lemonberrylabs/loxwalk/pkg/token"
)

// Runtime error messages.
const (
	MsgOperandNumber   = "Operand must be a number."
	MsgOperandsNumbers = "Operands must be numbers."
	MsgOperandsPlus    = "Operands must be two numbers or two strings."
	MsgNotCallable     = "Can only call functions and classes."
	MsgStackOverflow   = "Stack overflow."
)

// RuntimeError is a dynamic error raised during evaluation. It carries the
// token nearest the failure so the line can be reported.
type RuntimeError struct {
	Token   token.Token
	Message string
	Cause   error // set when the error wraps a host failure, e.g. cancellation
}

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	return fmt.Sprintf("%s\n[line %d]", e.Message, e.Token.Line)
}

// Unwrap returns the underlying cause, if any.
func (e *RuntimeError) Unwrap() error {
	return e.Cause
}

// NewRuntimeError creates a RuntimeError at tok.
func NewRuntimeError(tok token.Token, msg string) *RuntimeError {
	return &RuntimeError{Token: tok, Message: msg}
}

// NewUndefinedVariable creates the error for reading or assigning an unknown
// name.
func NewUndefinedVariable(name token.Token) *RuntimeError {
	return NewRuntimeError(name, fmt.Sprintf("Undefined variable '%s'.", name.Lexeme))
}

// NewArityError creates the error for a call with the wrong argument count.
func NewArityError(paren token.Token, want, got int) *RuntimeError {
	return NewRuntimeError(paren, fmt.Sprintf("Expected %d arguments but got %d.", want, got))
}

// NewStepLimitError creates the error raised when a run executes more
// statements than allowed.
func NewStepLimitError(line, limit int) *RuntimeError {
	return NewRuntimeError(token.Token{Line: line},
		fmt.Sprintf("Execution exceeded maximum step limit of %d.", limit))
}

// NewInterruptedError wraps a context error as a runtime error at line.
func NewInterruptedError(line int, cause error) *RuntimeError {
	return &RuntimeError{
		Token:   token.Token{Line: line},
		Message: fmt.Sprintf("Execution interrupted: %v.", cause),
		Cause:   cause,
	}
}
