package cli

import (
	"fmt"

	"github.com/kcaldas/devkit/pkg/version"
	"github.com/spf13/cobra"
)

// NewVersionCommand prints build information.
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Print build information",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{"toolkit": "none"},
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), version.GetInfo().String())
			return err
		},
	}
}
