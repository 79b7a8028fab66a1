package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/54b3r/desfrut-go/internal/version"
)

// NewVersionCmd constructs the `desfrut version` subcommand. It prints the
// version, git commit, and build date injected at build time via -ldflags.
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the desfrut version, git commit, and build date",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "desfrut %s\n", version.String())
		},
	}
}
