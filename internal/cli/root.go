package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/fixturekit/internal/browser"
	"github.com/roach88/fixturekit/internal/runner"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
	Config  string // optional YAML configuration file

	// Launcher, IDs and Now replace the production defaults in tests.
	Launcher browser.Launcher
	IDs      runner.IDGenerator
	Now      func() time.Time
}

// Version is reported by --version.
var Version = "dev"

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the fixturekit CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fixturekit",
		Short: "fixturekit - scoped fixtures for browser test suites",
		Long: `Run the built-in demo suites with scoped fixtures, parametrization,
markers and reruns, and keep a history of every run.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Config, "config", "", "path to a YAML configuration file")

	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))
	cmd.AddCommand(NewAskCommand(opts))

	return cmd
}

// Execute runs the CLI with args and returns the process exit code. Errors
// are reported on stderr, or on stdout as a JSON error response when
// --format json is set.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	return execute(ctx, &RootOptions{}, args, stdout, stderr)
}

func execute(ctx context.Context, opts *RootOptions, args []string, stdout, stderr io.Writer) int {
	cmd := newRootCommand(opts)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		// Usage errors from cobra: unknown command, bad flag, wrong arity.
		err = WrapExitError(ExitCommandError, "usage", err)
	} else if exitErr.Message == "" && exitErr.Err == nil {
		// The command already reported the failure.
		return exitErr.Code
	}

	f := &OutputFormatter{Format: opts.Format, Writer: stdout, ErrWriter: stderr, Verbose: opts.Verbose}
	if !isValidFormat(opts.Format) {
		f.Format = "text"
	}
	_ = f.Error(ErrorCode(err), err.Error(), nil)
	return GetExitCode(err)
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
