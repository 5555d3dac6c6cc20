package runtime

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lemonberrylabs/loxwalk/pkg/ast"
	"github.com/lemonberrylabs/loxwalk/pkg/lexer"
	"github.com/lemonberrylabs/loxwalk/pkg/parser"
	"github.com/lemonberrylabs/loxwalk/pkg/resolver"
	"github.com/lemonberrylabs/loxwalk/pkg/stdlib"
	"github.com/lemonberrylabs/loxwalk/pkg/types"
)

// session runs successive sources through one interpreter and arena, as the
// REPL does.
type session struct {
	t      *testing.T
	arena  *ast.Arena
	interp *Interpreter
	out    *bytes.Buffer
}

func newSession(t *testing.T, opts ...Option) *session {
	out := &bytes.Buffer{}
	interp := NewInterpreter(out, opts...)
	stdlib.NewRegistry().Install(interp.Globals())
	return &session{t: t, arena: ast.NewArena(), interp: interp, out: out}
}

func (s *session) run(ctx context.Context, src string) (string, error) {
	s.t.Helper()
	tokens, lexDiags := lexer.Scan(src)
	require.Empty(s.t, lexDiags)
	stmts, parseDiags := parser.New(tokens, s.arena).ParseProgram()
	require.Empty(s.t, parseDiags)
	locals, resolveDiags := resolver.Resolve(stmts)
	require.Empty(s.t, resolveDiags)

	s.out.Reset()
	err := s.interp.Interpret(ctx, stmts, locals)
	return s.out.String(), err
}

func run(t *testing.T, src string) (string, error) {
	t.Helper()
	return newSession(t).run(context.Background(), src)
}

// Deliberate choice: integral numbers print without a trailing ".0"
// instead of keeping the fractional part of the float64 text.
func TestStringifyNumbers(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"integral quotient", "print 4 / 2;", "2\n"},
		{"integral literal", "print 10.0;", "10\n"},
		{"negative zero", "print -0;", "-0\n"},
		{"fraction kept", "print 1.5;", "1.5\n"},
		{"large integral", "print 1000000 * 1000000;", "1000000000000\n"},
		{"beyond float range", "print " + strings.Repeat("9", 400) + ";", "+Inf\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := run(t, tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestInterpretOutput(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"addition", "var a = 1; var b = 2; print a + b;", "3\n"},
		{"concat", `print "a" + "b";`, "ab\n"},
		{"precedence", "print 2 + 3 * 4;", "14\n"},
		{"left assoc", "print 8 - 3 - 2;", "3\n"},
		{"fraction", "print 7 / 2;", "3.5\n"},
		{"negative", "print -3;", "-3\n"},
		{"divide by zero", "print 1 / 0;", "+Inf\n"},
		{"comparison", "print 1 < 2; print 2 <= 1; print 3 > 2; print 3 >= 4;", "true\nfalse\ntrue\nfalse\n"},
		{"equality", `print nil == nil; print 1 == "1"; print "a" != "b";`, "true\nfalse\ntrue\n"},
		{"not", "print !nil; print !0;", "true\nfalse\n"},
		{"nil print", "var a; print a;", "nil\n"},
		{"or returns operand", `print nil or "yes"; print 1 or 2;`, "yes\n1\n"},
		{"and returns operand", `print nil and 1; print 1 and 2;`, "nil\n2\n"},
		{"short circuit", `var x = 0; false and (x = 1); true or (x = 2); print x;`, "0\n"},
		{"shadowing", "var a = 1; { var a = 2; print a; } print a;", "2\n1\n"},
		{"assign outer", "var a = 1; { a = 2; } print a;", "2\n"},
		{"assign value", "var a; var b; a = b = 3; print a; print b;", "3\n3\n"},
		{"if then", `if (true) print "yes"; else print "no";`, "yes\n"},
		{"if else", `if (nil) print "yes"; else print "no";`, "no\n"},
		{"while", "var i = 0; while (i < 3) { print i; i = i + 1; }", "0\n1\n2\n"},
		{"for", "for (var i = 0; i < 3; i = i + 1) print i;", "0\n1\n2\n"},
		{"function", "fun add(a, b) { return a + b; } print add(1, 2);", "3\n"},
		{"implicit nil return", "fun f() {} print f();", "nil\n"},
		{"bare return", "fun f() { return; print 1; } print f();", "nil\n"},
		{"return from loop", "fun f() { while (true) { return 7; } } print f();", "7\n"},
		{"function value", "fun f() {} print f; print clock;", "<fn f>\n<native fn>\n"},
		{"recursion", "fun fib(n) { if (n < 2) return n; return fib(n - 1) + fib(n - 2); } print fib(15);", "610\n"},
		{
			"closure counter",
			`fun makeCounter() { var i = 0; fun count() { i = i + 1; return i; } return count; }
			 var c = makeCounter(); print c(); print c();`,
			"1\n2\n",
		},
		{
			"closure captures resolution",
			`var a = "global";
			 { fun show() { print a; } show(); var a = "block"; show(); }`,
			"global\nglobal\n",
		},
		{"clock", "print clock() > 0;", "true\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := run(t, tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestInterpretRuntimeErrors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		output  string
		message string
		line    int
	}{
		{"add mixed", `print "a" + 1;`, "", "Operands must be two numbers or two strings.", 1},
		{"subtract string", `print 1 - "a";`, "", "Operands must be numbers.", 1},
		{"compare string", `print "a" < "b";`, "", "Operands must be numbers.", 1},
		{"negate string", `print -"a";`, "", "Operand must be a number.", 1},
		{"undefined read", "print 1;\nprint x;", "1\n", "Undefined variable 'x'.", 2},
		{"undefined assign", "y = 1;", "", "Undefined variable 'y'.", 1},
		{"call non-callable", `"x"();`, "", "Can only call functions and classes.", 1},
		{"arity", "fun f(a) {}\nf(1, 2);", "", "Expected 1 arguments but got 2.", 2},
		{"native arity", "clock(1);", "", "Expected 0 arguments but got 1.", 1},
		{"stops at first error", "print 1; print nil + 1; print 2;", "1\n", "Operands must be two numbers or two strings.", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := run(t, tt.input)
			var rerr *types.RuntimeError
			require.ErrorAs(t, err, &rerr)
			assert.Equal(t, tt.message, rerr.Message)
			assert.Equal(t, tt.line, rerr.Token.Line)
			assert.Equal(t, tt.output, got)
		})
	}
}

func TestInterpretRestoresEnvironmentAfterError(t *testing.T) {
	s := newSession(t)
	_, err := s.run(context.Background(), "var a = 1; { var a = 2; print nil + 1; }")
	require.Error(t, err)

	out, err := s.run(context.Background(), "print a;")
	require.NoError(t, err)
	assert.Equal(t, "1\n", out)
}

func TestInterpretPersistsAcrossCalls(t *testing.T) {
	s := newSession(t)
	_, err := s.run(context.Background(), "var n = 10; fun make() { var k = 5; fun get() { return k + n; } return get; }")
	require.NoError(t, err)
	_, err = s.run(context.Background(), "var g = make();")
	require.NoError(t, err)

	out, err := s.run(context.Background(), "print g();")
	require.NoError(t, err)
	assert.Equal(t, "15\n", out)
}

func TestInterpretStackOverflow(t *testing.T) {
	s := newSession(t, WithMaxCallDepth(50))
	_, err := s.run(context.Background(), "fun f(n) { return f(n + 1); } f(0);")
	var rerr *types.RuntimeError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, types.MsgStackOverflow, rerr.Message)
}

func TestInterpretStepLimit(t *testing.T) {
	s := newSession(t, WithStepLimit(100))
	_, err := s.run(context.Background(), "while (true) {}")
	var rerr *types.RuntimeError
	require.ErrorAs(t, err, &rerr)
	assert.Contains(t, rerr.Message, "step limit of 100")
}

func TestInterpretHonorsContext(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := newSession(t).run(ctx, "var i = 0; while (true) { i = i + 1; }")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestInterpretCancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out, err := newSession(t).run(ctx, "print 1;")
	assert.Empty(t, out)
	assert.ErrorIs(t, err, context.Canceled)
}
