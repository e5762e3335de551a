package root

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/playwrighty/playwrighty/pkg/telemetry"
	"github.com/playwrighty/playwrighty/pkg/version"
)

// ErrTestsFailed is returned when at least one test did not pass. The
// verdicts have already been printed, so callers only set the exit code.
var ErrTestsFailed = errors.New("one or more tests failed")

const serviceName = "playwrighty"

type rootFlags struct {
	debug   bool
	logFile string

	logCloser io.Closer
}

func newRootCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "playwrighty",
		Short: "Run end-to-end tests written in Markdown",
		Long: `Run end-to-end tests written as plain Markdown documents. An AI agent
reads each test, drives a browser through the Playwright MCP server and
reports whether the test passed.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			closer, err := setupLogging(cmd.ErrOrStderr(), flags.debug, flags.logFile)
			if err != nil {
				return err
			}
			flags.logCloser = closer
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&flags.debug, "debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().StringVar(&flags.logFile, "log-file", "", "Write logs to this file instead of stderr")

	cmd.AddGroup(&cobra.Group{ID: "core", Title: "Core Commands:"})
	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newRunAllCmd())
	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the command line. Errors other than ErrTestsFailed are
// printed to stderr.
func Execute(ctx context.Context, stdout, stderr io.Writer, args ...string) error {
	shutdown, err := telemetry.Setup(ctx, serviceName, version.String())
	if err != nil {
		slog.Warn("Failed to set up tracing", "error", err)
	} else {
		defer func() {
			if err := shutdown(context.WithoutCancel(ctx)); err != nil {
				slog.Debug("Failed to flush traces", "error", err)
			}
		}()
	}

	var flags rootFlags
	cmd := newRootCmd(&flags)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err = cmd.ExecuteContext(ctx)
	if flags.logCloser != nil {
		_ = flags.logCloser.Close()
	}
	if err != nil && !errors.Is(err, ErrTestsFailed) {
		fmt.Fprintln(stderr, "Error:", err)
	}
	return err
}

// setupLogging installs the default logger. Only warnings and errors are
// shown unless debug is set.
func setupLogging(stderr io.Writer, debug bool, logFile string) (io.Closer, error) {
	level := slog.LevelWarn
	if debug {
		level = slog.LevelDebug
	}

	w := stderr
	var closer io.Closer
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("opening log file: %w", err)
		}
		w, closer = f, f
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
	return closer, nil
}
