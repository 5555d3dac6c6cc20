// Package diagnostics defines the structured errors reported by every stage of
// the interpreter pipeline, and the Collector that accumulates them for a run.
package diagnostics

import (
	"fmt"
	"strings"

	"github.com/lemonberrylabs/loxwalk/pkg/token"
)

// Kind identifies the pipeline stage that produced a diagnostic.
type Kind int

const (
	Lexical    Kind = iota // unexpected character, unterminated string
	Syntax                 // parse errors
	Resolution             // static scope errors
	Runtime                // dynamic errors; fatal to the run
)

// String returns the lowercase kind name used in JSON payloads.
func (k Kind) String() string {
	switch k {
	case Lexical:
		return "lexical"
	case Syntax:
		return "syntax"
	case Resolution:
		return "resolution"
	case Runtime:
		return "runtime"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(text []byte) error {
	for _, kind := range []Kind{Lexical, Syntax, Resolution, Runtime} {
		if kind.String() == string(text) {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("unknown diagnostic kind %q", text)
}

// Diagnostic is a single (line, message) report.
type Diagnostic struct {
	Kind    Kind   `json:"kind"`
	Line    int    `json:"line"`
	Where   string `json:"where,omitempty"` // e.g. " at 'x'" or " at end"
	Message string `json:"message"`
}

// New creates a diagnostic without a token location.
func New(kind Kind, line int, msg string) *Diagnostic {
	return &Diagnostic{Kind: kind, Line: line, Message: msg}
}

// AtToken creates a diagnostic located at tok.
func AtToken(kind Kind, tok token.Token, msg string) *Diagnostic {
	where := fmt.Sprintf(" at '%s'", tok.Lexeme)
	if tok.Type == token.EOF {
		where = " at end"
	}
	return &Diagnostic{Kind: kind, Line: tok.Line, Where: where, Message: msg}
}

// Error implements the error interface.
func (d *Diagnostic) Error() string {
	if d.Kind == Runtime {
		return fmt.Sprintf("%s\n[line %d]", d.Message, d.Line)
	}
	return fmt.Sprintf("[line %d] Error%s: %s", d.Line, d.Where, d.Message)
}

// Collector accumulates diagnostics across the stages of a single run. It
// replaces a process-wide "had error" flag: each run owns its collector.
type Collector struct {
	diags []*Diagnostic
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{}
}

// Add appends diagnostics in order.
func (c *Collector) Add(diags ...*Diagnostic) {
	c.diags = append(c.diags, diags...)
}

// Count returns the number of diagnostics of the given kind.
func (c *Collector) Count(kind Kind) int {
	n := 0
	for _, d := range c.diags {
		if d.Kind == kind {
			n++
		}
	}
	return n
}

// HasStaticErrors reports whether any lexical, syntax or resolution error was
// recorded. Interpretation must not start when this is true.
func (c *Collector) HasStaticErrors() bool {
	return c.Count(Lexical)+c.Count(Syntax)+c.Count(Resolution) > 0
}

// HasRuntimeError reports whether a runtime error was recorded.
func (c *Collector) HasRuntimeError() bool {
	return c.Count(Runtime) > 0
}

// HasErrors reports whether anything was recorded.
func (c *Collector) HasErrors() bool {
	return len(c.diags) > 0
}

// All returns a copy of the recorded diagnostics in report order.
func (c *Collector) All() []*Diagnostic {
	out := make([]*Diagnostic, len(c.diags))
	copy(out, c.diags)
	return out
}

// Reset clears the collector so it can be reused, e.g. per REPL line.
func (c *Collector) Reset() {
	c.diags = nil
}

// Format renders diagnostics one per line.
func Format(diags []*Diagnostic) string {
	parts := make([]string, len(diags))
	for i, d := range diags {
		parts[i] = d.Error()
	}
	return strings.Join(parts, "\n")
}
