package cli

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/kcaldas/devkit/pkg/devkit"
	"github.com/kcaldas/devkit/pkg/report"
	"github.com/spf13/cobra"
)

// NewReportCommand generates, saves and optionally shares a debug report
func NewReportCommand(provider func() *devkit.Toolkit) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Generate and save a debug report",
		Long: `Generate a debug report from the current toolkit state and save it as JSON.

Examples:
  devkit report                 # Save and print the report path
  devkit report --render        # Also print a rendered summary
  devkit report --share         # Copy the saved report to the clipboard
  devkit report --list          # List saved reports`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReport(cmd, provider())
		},
	}

	cmd.Flags().Bool("share", false, "copy the saved report to the clipboard")
	cmd.Flags().Bool("render", false, "print a markdown summary of the report")
	cmd.Flags().String("style", "auto", "glamour style used by --render (auto, dark, light, notty)")
	cmd.Flags().Int("width", 100, "word wrap width used by --render")
	cmd.Flags().Bool("list", false, "list saved reports instead of generating one")
	cmd.Flags().Int("limit", 20, "number of reports shown by --list")

	return cmd
}

func runReport(cmd *cobra.Command, tk *devkit.Toolkit) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	out := cmd.OutOrStdout()

	if list, _ := cmd.Flags().GetBool("list"); list {
		limit, _ := cmd.Flags().GetInt("limit")
		return listReports(ctx, cmd, tk, limit)
	}

	r := tk.Reports.Generate()
	path, err := tk.Reports.Save(ctx, r)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, path)

	if share, _ := cmd.Flags().GetBool("share"); share {
		if err := tk.Reports.Share(path); err != nil {
			return err
		}
		fmt.Fprintln(cmd.ErrOrStderr(), "Report copied to clipboard")
	}

	if render, _ := cmd.Flags().GetBool("render"); render {
		style, _ := cmd.Flags().GetString("style")
		width, _ := cmd.Flags().GetInt("width")
		rendered, err := report.Render(report.Markdown(r), style, width)
		if err != nil {
			return err
		}
		fmt.Fprint(out, rendered)
	}
	return nil
}

func listReports(ctx context.Context, cmd *cobra.Command, tk *devkit.Toolkit, limit int) error {
	if tk.Store == nil {
		return fmt.Errorf("report index unavailable")
	}
	records, err := tk.Store.ListReports(ctx, limit)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCREATED\tSIZE\tPATH")
	for _, rec := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", rec.ID[:8], humanize.Time(rec.CreatedAt), humanize.IBytes(uint64(rec.SizeBytes)), rec.Path)
	}
	return w.Flush()
}
