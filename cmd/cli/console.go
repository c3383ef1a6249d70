package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/kcaldas/devkit/pkg/devkit"
	"github.com/kcaldas/devkit/pkg/history"
	"github.com/spf13/cobra"
)

const consolePrompt = "devkit> "

// NewConsoleCommand creates the interactive debug console
func NewConsoleCommand(provider func() *devkit.Toolkit) *cobra.Command {
	return &cobra.Command{
		Use:   "console",
		Short: "Interactive debug console",
		Long: `Reads console commands line by line and executes them.

Type "help" for the list of commands, "history" for the lines entered in
earlier sessions and "exit" to leave.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConsole(cmd, provider())
		},
	}
}

func runConsole(cmd *cobra.Command, tk *devkit.Toolkit) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	in := cmd.InOrStdin()
	out := cmd.OutOrStdout()
	interactive := isTerminal(in)

	lines := history.NewConsoleHistory(tk.Config.HistoryPath(), nil)
	if err := lines.Load(); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", err)
	}

	prompt := func() {
		if interactive {
			fmt.Fprint(out, consolePrompt)
		}
	}

	scanner := bufio.NewScanner(in)
	prompt()
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "exit", "quit":
			return nil
		case "":
			prompt()
			continue
		case "history":
			if err := printResult(out, lines.Entries()); err != nil {
				return err
			}
			prompt()
			continue
		}
		if err := lines.Add(line); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", err)
		}

		result, err := tk.Commands.ExecuteLine(ctx, line)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "error: %v\n", err)
		} else if err := printResult(out, result); err != nil {
			return err
		}
		prompt()
	}
	return scanner.Err()
}
