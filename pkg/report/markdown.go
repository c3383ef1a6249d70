package report

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/dustin/go-humanize"
	"github.com/kcaldas/devkit/pkg/debuglog"
	"github.com/kcaldas/devkit/pkg/errtrack"
	"github.com/kcaldas/devkit/pkg/network"
	"github.com/samber/lo"
)

// Markdown summarises r for humans.
func Markdown(r Report) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Debug report %s\n\n", r.ID)
	fmt.Fprintf(&b, "Generated %s (%s)\n\n", r.Timestamp.Format(time.RFC3339), humanize.Time(r.Timestamp))

	b.WriteString("## Device\n\n")
	d := r.DeviceInfo
	fmt.Fprintf(&b, "| Field | Value |\n|---|---|\n")
	fmt.Fprintf(&b, "| ID | %s |\n| Name | %s |\n| Platform | %s/%s |\n| Version | %s |\n| Go | %s |\n| CPUs | %d |\n\n",
		d.ID, d.Name, d.Platform, d.Arch, d.Version, d.GoVersion, d.NumCPU)

	b.WriteString("## Performance\n\n")
	pm := r.PerformanceMetrics
	if len(pm.FPS) == 0 && len(pm.MemorySnapshots) == 0 {
		b.WriteString("No samples recorded.\n\n")
	} else {
		fmt.Fprintf(&b, "- Samples: %d\n", len(pm.FPS))
		if len(pm.FPS) > 0 {
			fmt.Fprintf(&b, "- FPS: avg %.1f, min %.1f\n", mean(pm.FPS), lo.Min(pm.FPS))
			fmt.Fprintf(&b, "- CPU: avg %.1f%%, max %.1f%%\n", mean(pm.CPU), lo.Max(pm.CPU))
			fmt.Fprintf(&b, "- Memory: peak %s\n", humanize.IBytes(lo.Max(pm.Memory)))
		}
		if n := len(pm.MemorySnapshots); n > 0 {
			last := pm.MemorySnapshots[n-1]
			fmt.Fprintf(&b, "- Heap: %s of %s across %d snapshots\n",
				humanize.IBytes(last.HeapUsed), humanize.IBytes(last.HeapTotal), n)
		}
		if len(pm.NetworkLatency) > 0 {
			fmt.Fprintf(&b, "- Network latency: avg %.0fms\n", mean(pm.NetworkLatency))
		}
		b.WriteString("\n")
	}

	b.WriteString("## Network\n\n")
	nl := r.NetworkLogs
	fmt.Fprintf(&b, "%d requests, %d responses, %d errors, %d mocks\n\n",
		len(nl.Requests), len(nl.Responses), len(nl.Errors), len(nl.Mocks))
	if len(nl.Responses) > 0 {
		byStatus := lo.CountValuesBy(nl.Responses, func(r network.Response) int { return r.Status })
		statuses := lo.Keys(byStatus)
		sort.Ints(statuses)
		b.WriteString("| Status | Count |\n|---|---|\n")
		for _, s := range statuses {
			fmt.Fprintf(&b, "| %d | %d |\n", s, byStatus[s])
		}
		b.WriteString("\n")
	}

	b.WriteString("## Errors\n\n")
	if len(r.ErrorReports.Tracked) == 0 && len(r.ErrorReports.Logged) == 0 {
		b.WriteString("None.\n\n")
	} else {
		bySeverity := lo.CountValuesBy(r.ErrorReports.Tracked, func(e errtrack.Report) errtrack.Severity { return e.Context.Severity })
		fmt.Fprintf(&b, "- Tracked: %d (fatal %d, error %d, warning %d)\n", len(r.ErrorReports.Tracked),
			bySeverity[errtrack.SeverityFatal], bySeverity[errtrack.SeverityError], bySeverity[errtrack.SeverityWarning])
		fmt.Fprintf(&b, "- Logged: %d\n\n", len(r.ErrorReports.Logged))
		for _, e := range lo.Slice(r.ErrorReports.Logged, 0, 5) {
			fmt.Fprintf(&b, "- `%s` %s\n", e.Timestamp.Format(time.TimeOnly), e.Message)
		}
		b.WriteString("\n")
	}

	b.WriteString("## Logs\n\n")
	byLevel := lo.CountValuesBy(r.Logs, func(e debuglog.Entry) debuglog.Level { return e.Level })
	fmt.Fprintf(&b, "%d entries (debug %d, info %d, warn %d, error %d)\n\n", len(r.Logs),
		byLevel[debuglog.LevelDebug], byLevel[debuglog.LevelInfo], byLevel[debuglog.LevelWarn], byLevel[debuglog.LevelError])

	b.WriteString("## State\n\n")
	fmt.Fprintf(&b, "%d snapshots", len(r.State.History))
	if r.State.Current != nil {
		fmt.Fprintf(&b, ", current #%d (%s)", r.State.Current.ID, r.State.Current.Action)
	}
	b.WriteString("\n")

	if s := r.DebugSession; s != nil {
		b.WriteString("\n## Debug session\n\n")
		end := s.EndTime
		if end.IsZero() {
			end = r.Timestamp
		}
		fmt.Fprintf(&b, "Started %s, lasted %s, %d actions, %d state changes\n",
			s.StartTime.Format(time.RFC3339), end.Sub(s.StartTime).Round(time.Millisecond), len(s.Actions), len(s.StateChanges))
	}

	return b.String()
}

// Render formats markdown for a terminal with the named glamour style.
// An empty or "auto" style follows the terminal background.
func Render(markdown, style string, width int) (string, error) {
	if width <= 0 {
		width = 80
	}
	styleOpt := glamour.WithStandardStyle(style)
	if style == "" || style == "auto" {
		styleOpt = glamour.WithAutoStyle()
	}
	renderer, err := glamour.NewTermRenderer(styleOpt, glamour.WithWordWrap(width))
	if err != nil {
		return "", fmt.Errorf("invalid glamour style: %s", style)
	}
	out, err := renderer.Render(markdown)
	if err != nil {
		return "", fmt.Errorf("failed to render with style %s: %w", style, err)
	}
	return out, nil
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	return lo.Sum(xs) / float64(len(xs))
}
