// Package main is the entry point for the lox interpreter and playground
// server.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lemonberrylabs/loxwalk/pkg/config"
	"github.com/lemonberrylabs/loxwalk/pkg/diagnostics"
	"github.com/lemonberrylabs/loxwalk/pkg/logging"
	"github.com/lemonberrylabs/loxwalk/pkg/lox"
)

// Set via -ldflags at build time.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const usage = "Usage: lox [script]"

// exitError carries a process exit code out of a cobra command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error {
	return e.err
}

var rootCmd = &cobra.Command{
	Use:           "lox [script]",
	Short:         "Tree-walk interpreter for the Lox language",
	Args:          scriptArgs,
	RunE:          run,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.Version = version + " (commit=" + commit + ", built=" + date + ")"
	rootCmd.SetVersionTemplate("lox version {{.Version}}\n")
	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &exitError{code: lox.ExitUsage, err: fmt.Errorf("%w\n%s", err, usage)}
	})

	rootCmd.PersistentFlags().String("config", "", "YAML config file (env LOX_CONFIG)")
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	rootCmd.Flags().Bool("dump-tokens", false, "Print the token stream to stderr before running")
	rootCmd.Flags().Bool("dump-ast", false, "Print the parsed program to stderr before running")
	rootCmd.Flags().Int("max-call-depth", 0, "Maximum nested call depth (default 2048)")

	rootCmd.AddCommand(serveCmd)
}

func main() {
	os.Exit(execute(rootCmd, os.Stderr))
}

// execute runs cmd and maps its error onto a process exit code.
func execute(cmd *cobra.Command, stderr io.Writer) int {
	err := cmd.Execute()
	if err == nil {
		return lox.ExitOK
	}
	var ee *exitError
	if errors.As(err, &ee) {
		if ee.err != nil {
			fmt.Fprintln(stderr, ee.err)
		}
		return ee.code
	}
	fmt.Fprintln(stderr, "Error:", err)
	return 1
}

func scriptArgs(cmd *cobra.Command, args []string) error {
	if len(args) > 1 {
		return &exitError{code: lox.ExitUsage, err: errors.New(usage)}
	}
	return nil
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if v, _ := cmd.Flags().GetBool("dump-tokens"); v {
		cfg.DumpTokens = true
	}
	if v, _ := cmd.Flags().GetBool("dump-ast"); v {
		cfg.DumpAST = true
	}
	if v, _ := cmd.Flags().GetInt("max-call-depth"); v > 0 {
		cfg.MaxCallDepth = v
	}

	logger, err := cliLogger(cfg.Debug)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	opts := runnerOptions(cfg, logger, cmd.ErrOrStderr())
	if len(args) == 0 {
		return repl(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr(), cfg.Prompt, opts)
	}
	if code := runFile(cmd.Context(), args[0], cmd.OutOrStdout(), cmd.ErrOrStderr(), opts); code != lox.ExitOK {
		return &exitError{code: code}
	}
	return nil
}

// runFile executes a script file and returns the exit code. Ctrl-C interrupts
// the running script.
func runFile(ctx context.Context, path string, stdout, stderr io.Writer, opts []lox.Option) int {
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(stderr, "Could not read file %s: %v\n", path, err)
		return lox.ExitIOErr
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	res := lox.NewRunner(stdout, opts...).Run(ctx, string(data))
	report(stderr, res)
	return res.ExitCode()
}

func report(stderr io.Writer, res lox.Result) {
	if len(res.Diagnostics) > 0 {
		fmt.Fprintln(stderr, diagnostics.Format(res.Diagnostics))
	}
	if res.Err != nil {
		fmt.Fprintln(stderr, res.Err)
	}
}

func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		path = os.Getenv("LOX_CONFIG")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}
	if v, _ := cmd.Flags().GetBool("debug"); v {
		cfg.Debug = true
	}
	return cfg, nil
}

// cliLogger keeps stderr quiet unless debug output was requested.
func cliLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return logging.New(true)
	}
	return logging.Quiet()
}

func runnerOptions(cfg config.Config, logger *zap.Logger, trace io.Writer) []lox.Option {
	opts := []lox.Option{lox.WithLogger(logger)}
	if cfg.MaxCallDepth > 0 {
		opts = append(opts, lox.WithMaxCallDepth(cfg.MaxCallDepth))
	}
	if cfg.DumpTokens {
		opts = append(opts, lox.WithTokenDump(trace))
	}
	if cfg.DumpAST {
		opts = append(opts, lox.WithASTDump(trace))
	}
	return opts
}
