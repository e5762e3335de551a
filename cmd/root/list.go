package root

import (
	"github.com/spf13/cobra"

	"github.com/playwrighty/playwrighty/pkg/cli"
)

func newListCmd() *cobra.Command {
	var flags configFlags

	cmd := &cobra.Command{
		Use:     "list [dir]",
		Short:   "List the tests in a directory",
		GroupID: "core",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.load(cmd)
			if err != nil {
				return err
			}

			dir := cfg.TestsDir
			if len(args) > 0 {
				dir = args[0]
			}

			out := cli.NewPrinter(cmd.OutOrStdout())
			entries, err := cli.NewRunner(cfg, nil, out).List(dir)
			if err != nil {
				return err
			}
			out.PrintList(entries)
			return nil
		},
	}
	flags.addFlags(cmd)

	return cmd
}
