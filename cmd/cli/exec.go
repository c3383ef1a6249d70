package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/kcaldas/devkit/pkg/commands"
	"github.com/kcaldas/devkit/pkg/devkit"
	"github.com/spf13/cobra"
)

// NewExecCommand runs one console command, or a script piped on stdin
func NewExecCommand(provider func() *devkit.Toolkit) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "exec <command> [args...]",
		Short: "Execute a console command",
		Long: `Execute a single console command and print its result.

With no arguments, console lines are read from stdin and executed in order.

Examples:
  devkit exec getDeviceInfo
  devkit exec startProfiling 500
  echo "clearLogs" | devkit exec`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExec(cmd, provider(), args)
		},
	}
	cmd.Flags().Bool("keep-going", false, "continue a piped script after a failing command")
	return cmd
}

func runExec(cmd *cobra.Command, tk *devkit.Toolkit, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	lines := []string{strings.Join(args, " ")}
	if len(args) == 0 {
		if !hasPipedInput(cmd.InOrStdin()) {
			return fmt.Errorf("no command given")
		}
		script, err := readScript(cmd.InOrStdin())
		if err != nil {
			return err
		}
		lines = script
	}

	keepGoing, _ := cmd.Flags().GetBool("keep-going")
	var failed int
	for _, line := range lines {
		name, cmdArgs, ok := commands.ParseLine(line)
		if !ok {
			continue
		}
		result, err := tk.Commands.Execute(ctx, name, cmdArgs...)
		if err != nil {
			if !keepGoing {
				return err
			}
			failed++
			fmt.Fprintf(cmd.ErrOrStderr(), "error: %v\n", err)
			continue
		}
		if err := printResult(cmd.OutOrStdout(), result); err != nil {
			return err
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d commands failed", failed, len(lines))
	}
	return nil
}
