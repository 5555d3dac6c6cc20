// Package lox wires the pipeline stages together: scan, parse, resolve and
// interpret. A Runner owns one interpreter, so reusing it across calls keeps
// globals and function definitions alive the way a REPL session expects.
package lox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/lemonberrylabs/loxwalk/pkg/ast"
	"github.com/lemonberrylabs/loxwalk/pkg/diagnostics"
	"github.com/lemonberrylabs/loxwalk/pkg/lexer"
	"github.com/lemonberrylabs/loxwalk/pkg/parser"
	"github.com/lemonberrylabs/loxwalk/pkg/resolver"
	"github.com/lemonberrylabs/loxwalk/pkg/runtime"
	"github.com/lemonberrylabs/loxwalk/pkg/stdlib"
	"github.com/lemonberrylabs/loxwalk/pkg/types"
)

// Process exit codes, following the BSD sysexits convention.
const (
	ExitOK       = 0
	ExitUsage    = 64 // EX_USAGE
	ExitDataErr  = 65 // EX_DATAERR: lexical, syntax or resolution error
	ExitSoftware = 70 // EX_SOFTWARE: runtime error
	ExitIOErr    = 74 // EX_IOERR: unreadable source file
)

// Stage names the last pipeline stage a run reached.
type Stage string

const (
	StageParse     Stage = "parse"
	StageResolve   Stage = "resolve"
	StageInterpret Stage = "interpret"
)

// Result summarizes one run.
type Result struct {
	Stage       Stage                     `json:"stage"`
	Diagnostics []*diagnostics.Diagnostic `json:"diagnostics"`
	Duration    time.Duration             `json:"duration"`

	// Err is a failure of the host rather than the program, e.g. an output
	// write error. It is nil for ordinary Lox errors.
	Err error `json:"-"`
}

// OK reports whether the run completed without diagnostics.
func (r Result) OK() bool {
	return len(r.Diagnostics) == 0 && r.Err == nil
}

// ExitCode maps the result onto a process exit code.
func (r Result) ExitCode() int {
	for _, d := range r.Diagnostics {
		if d.Kind != diagnostics.Runtime {
			return ExitDataErr
		}
	}
	if len(r.Diagnostics) > 0 || r.Err != nil {
		return ExitSoftware
	}
	return ExitOK
}

// Runner executes Lox source.
type Runner struct {
	logger *zap.Logger
	diags  *diagnostics.Collector
	arena  *ast.Arena
	interp *runtime.Interpreter

	trace      io.Writer
	dumpTokens bool
	dumpAST    bool
}

type settings struct {
	logger       *zap.Logger
	trace        io.Writer
	dumpTokens   bool
	dumpAST      bool
	maxCallDepth int
	maxSteps     int
	natives      *stdlib.Registry
}

// Option configures a Runner.
type Option func(*settings)

// WithLogger sets the logger for stage timings and diagnostics counts.
func WithLogger(logger *zap.Logger) Option {
	return func(s *settings) { s.logger = logger }
}

// WithTokenDump writes the token stream of every run to w.
func WithTokenDump(w io.Writer) Option {
	return func(s *settings) {
		s.trace = w
		s.dumpTokens = true
	}
}

// WithASTDump writes the parsed program of every run to w.
func WithASTDump(w io.Writer) Option {
	return func(s *settings) {
		s.trace = w
		s.dumpAST = true
	}
}

// WithMaxCallDepth bounds nested calls.
func WithMaxCallDepth(n int) Option {
	return func(s *settings) { s.maxCallDepth = n }
}

// WithMaxSteps bounds the number of statements a run may execute.
func WithMaxSteps(n int) Option {
	return func(s *settings) { s.maxSteps = n }
}

// WithNatives replaces the default native function registry.
func WithNatives(r *stdlib.Registry) Option {
	return func(s *settings) { s.natives = r }
}

// NewRunner creates a runner whose print statements write to out.
func NewRunner(out io.Writer, opts ...Option) *Runner {
	s := settings{
		logger:       zap.NewNop(),
		maxCallDepth: runtime.DefaultMaxCallDepth,
	}
	for _, opt := range opts {
		opt(&s)
	}
	if s.natives == nil {
		s.natives = stdlib.NewRegistry()
	}

	interp := runtime.NewInterpreter(out,
		runtime.WithLogger(s.logger),
		runtime.WithMaxCallDepth(s.maxCallDepth),
		runtime.WithStepLimit(s.maxSteps),
	)
	s.natives.Install(interp.Globals())

	return &Runner{
		logger:     s.logger,
		diags:      diagnostics.NewCollector(),
		arena:      ast.NewArena(),
		interp:     interp,
		trace:      s.trace,
		dumpTokens: s.dumpTokens,
		dumpAST:    s.dumpAST,
	}
}

// Run executes source. Lexical errors do not stop parsing, but any static
// error stops the run before interpretation. The first runtime error ends
// interpretation.
func (r *Runner) Run(ctx context.Context, source string) Result {
	r.diags.Reset()
	start := time.Now()
	res := r.run(ctx, source)
	res.Diagnostics = r.diags.All()
	res.Duration = time.Since(start)

	r.logger.Debug("run finished",
		zap.String("stage", string(res.Stage)),
		zap.Int("diagnostics", len(res.Diagnostics)),
		zap.Duration("duration", res.Duration),
	)
	return res
}

func (r *Runner) run(ctx context.Context, source string) Result {
	tokens, lexDiags := lexer.Scan(source)
	r.diags.Add(lexDiags...)
	if r.dumpTokens {
		for _, tok := range tokens {
			fmt.Fprintln(r.trace, tok.String())
		}
	}

	stmts, parseDiags := parser.New(tokens, r.arena).ParseProgram()
	r.diags.Add(parseDiags...)
	if r.diags.HasStaticErrors() {
		return Result{Stage: StageParse}
	}
	if r.dumpAST {
		fmt.Fprintln(r.trace, ast.FormatProgram(stmts))
	}

	locals, resolveDiags := resolver.Resolve(stmts)
	r.diags.Add(resolveDiags...)
	if r.diags.HasStaticErrors() {
		return Result{Stage: StageResolve}
	}

	if err := r.interp.Interpret(ctx, stmts, locals); err != nil {
		var rerr *types.RuntimeError
		if !errors.As(err, &rerr) {
			r.logger.Error("interpreter failed", zap.Error(err))
			return Result{Stage: StageInterpret, Err: err}
		}
		r.diags.Add(diagnostics.New(diagnostics.Runtime, rerr.Token.Line, rerr.Message))
	}
	return Result{Stage: StageInterpret}
}

// Exec runs source once on a fresh runner and returns the captured output.
func Exec(ctx context.Context, source string, opts ...Option) (string, Result) {
	var out bytes.Buffer
	res := NewRunner(&out, opts...).Run(ctx, source)
	return out.String(), res
}
