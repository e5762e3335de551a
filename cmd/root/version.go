package root

import (
	"github.com/spf13/cobra"

	"github.com/playwrighty/playwrighty/pkg/cli"
	"github.com/playwrighty/playwrighty/pkg/version"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cli.NewPrinter(cmd.OutOrStdout()).Printf("playwrighty version %s\n", version.Full())
			return nil
		},
	}
}
