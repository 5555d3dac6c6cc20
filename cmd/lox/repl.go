package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/lemonberrylabs/loxwalk/pkg/lox"
)

// repl reads one line at a time and runs it on a single runner, so
// declarations persist between lines. Errors are reported and the session
// continues. It returns at end of input.
func repl(ctx context.Context, in io.Reader, out, stderr io.Writer, prompt string, opts []lox.Option) error {
	runner := lox.NewRunner(out, opts...)
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	for {
		fmt.Fprint(out, prompt)
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := scanner.Text()
		if line == "" {
			continue
		}

		lineCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
		res := runner.Run(lineCtx, line)
		stop()
		report(stderr, res)
	}
}
