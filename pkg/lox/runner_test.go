package lox

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lemonberrylabs/loxwalk/pkg/diagnostics"
)

func messages(res Result) []string {
	out := make([]string, len(res.Diagnostics))
	for i, d := range res.Diagnostics {
		out[i] = d.Error()
	}
	return out
}

func TestExec(t *testing.T) {
	tests := []struct {
		name   string
		source string
		output string
		stage  Stage
		diags  []string
		exit   int
	}{
		{
			name:   "sum",
			source: "var a = 1; var b = 2; print a + b;",
			output: "3\n",
			stage:  StageInterpret,
			diags:  []string{},
			exit:   ExitOK,
		},
		{
			name:   "concat",
			source: `print "a" + "b";`,
			output: "ab\n",
			stage:  StageInterpret,
			diags:  []string{},
			exit:   ExitOK,
		},
		{
			name:   "runtime type error",
			source: `print "a" + 1;`,
			output: "",
			stage:  StageInterpret,
			diags:  []string{"Operands must be two numbers or two strings.\n[line 1]"},
			exit:   ExitSoftware,
		},
		{
			name:   "undefined variable",
			source: "print 1;\nprint nope;\nprint 2;",
			output: "1\n",
			stage:  StageInterpret,
			diags:  []string{"Undefined variable 'nope'.\n[line 2]"},
			exit:   ExitSoftware,
		},
		{
			name:   "lexical error still parses",
			source: "print 1 @;\nprint ;",
			output: "",
			stage:  StageParse,
			diags: []string{
				"[line 1] Error: Unexpected character.",
				"[line 2] Error at ';': Expect expression.",
			},
			exit: ExitDataErr,
		},
		{
			name:   "resolution error does not execute",
			source: "print 1;\n{ var a = a; }",
			output: "",
			stage:  StageResolve,
			diags:  []string{"[line 2] Error at 'a': Can't read local variable in its own initializer."},
			exit:   ExitDataErr,
		},
		{
			name:   "global self reference",
			source: "var a = a;",
			output: "",
			stage:  StageResolve,
			diags:  []string{"[line 1] Error at 'a': Can't read local variable in its own initializer."},
			exit:   ExitDataErr,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, res := Exec(context.Background(), tt.source)
			assert.Equal(t, tt.output, out)
			assert.Equal(t, tt.stage, res.Stage)
			assert.Equal(t, tt.diags, messages(res))
			assert.Equal(t, tt.exit, res.ExitCode())
			assert.Equal(t, tt.exit == ExitOK, res.OK())
		})
	}
}

func TestRunnerKeepsGlobalsBetweenRuns(t *testing.T) {
	var out bytes.Buffer
	r := NewRunner(&out, WithLogger(zap.NewNop()))
	ctx := context.Background()

	res := r.Run(ctx, "var greeting = \"hi\"; fun greet(name) { return greeting + \" \" + name; }")
	require.True(t, res.OK())

	res = r.Run(ctx, "print missing;")
	require.Len(t, res.Diagnostics, 1)
	assert.Equal(t, diagnostics.Runtime, res.Diagnostics[0].Kind)

	// Errors on one line do not leak into the next.
	res = r.Run(ctx, `print greet("lox");`)
	require.True(t, res.OK())
	assert.Equal(t, "hi lox\n", out.String())
}

func TestRunnerDumps(t *testing.T) {
	var out, trace bytes.Buffer
	r := NewRunner(&out, WithTokenDump(&trace), WithASTDump(&trace))
	res := r.Run(context.Background(), "print 1 + 2;")
	require.True(t, res.OK())

	dump := trace.String()
	assert.Contains(t, dump, `PRINT "print"`)
	assert.Contains(t, dump, "EOF")
	assert.True(t, strings.HasSuffix(dump, "(print (+ 1 2))\n"))
	assert.Equal(t, "3\n", out.String())
}

func TestRunnerLimits(t *testing.T) {
	_, res := Exec(context.Background(), "fun f() { return f(); } f();", WithMaxCallDepth(10))
	require.Len(t, res.Diagnostics, 1)
	assert.Equal(t, "Stack overflow.", res.Diagnostics[0].Message)

	_, res = Exec(context.Background(), "while (true) {}", WithMaxSteps(10))
	require.Len(t, res.Diagnostics, 1)
	assert.Contains(t, res.Diagnostics[0].Message, "step limit")
}

func TestRunnerTimeout(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, res := Exec(ctx, "while (true) {}")
	require.Len(t, res.Diagnostics, 1)
	assert.Equal(t, diagnostics.Runtime, res.Diagnostics[0].Kind)
	assert.Contains(t, res.Diagnostics[0].Message, "deadline exceeded")
	assert.Equal(t, ExitSoftware, res.ExitCode())
}
