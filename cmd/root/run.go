package root

import (
	"github.com/spf13/cobra"
)

func newRunCmd() *cobra.Command {
	var flags runFlags

	cmd := &cobra.Command{
		Use:     "run <file>",
		Short:   "Run a single test",
		Long:    "Run a single Markdown test and exit with a non-zero status unless it passes",
		GroupID: "core",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTestCommand(cmd, &flags, args[0])
		},
	}
	flags.addFlags(cmd)

	return cmd
}

func runTestCommand(cmd *cobra.Command, flags *runFlags, file string) error {
	runner, _, err := flags.newRunner(cmd)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if res := runner.RunFile(ctx, file); !res.Passed() {
		if err := ctx.Err(); err != nil {
			return err
		}
		return ErrTestsFailed
	}
	return nil
}

func newRunAllCmd() *cobra.Command {
	var flags runFlags

	cmd := &cobra.Command{
		Use:     "run-all [dir]",
		Short:   "Run every test in a directory",
		Long:    "Run every Markdown test in a directory, one after the other, and print a summary",
		GroupID: "core",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAllCommand(cmd, &flags, args)
		},
	}
	flags.addFlags(cmd)

	return cmd
}

func runAllCommand(cmd *cobra.Command, flags *runFlags, args []string) error {
	runner, cfg, err := flags.newRunner(cmd)
	if err != nil {
		return err
	}

	dir := cfg.TestsDir
	if len(args) > 0 {
		dir = args[0]
	}

	summary, err := runner.RunAll(cmd.Context(), dir)
	if err != nil {
		return err
	}
	if !summary.OK() {
		return ErrTestsFailed
	}
	return nil
}
