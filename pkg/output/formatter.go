// Package output provides formatters for displaying trace summaries.
package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	json "github.com/goccy/go-json"

	"github.com/danpilch/gonytprof/pkg/format"
)

// Format represents the output format type.
type Format string

const (
	FormatTable    Format = "table"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "md"
	FormatTSV      Format = "tsv"
)

// ParseFormat parses a format name. The empty string means table.
func ParseFormat(name string) (Format, error) {
	switch f := Format(strings.ToLower(name)); f {
	case "":
		return FormatTable, nil
	case FormatTable, FormatJSON, FormatMarkdown, FormatTSV:
		return f, nil
	case "markdown":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("unknown output format %q", name)
	}
}

// Formatter handles output formatting.
type Formatter struct {
	format      Format
	writer      io.Writer
	showProfile bool
	tracePath   string
}

// NewFormatter creates a new formatter.
func NewFormatter(format Format, writer io.Writer) *Formatter {
	return &Formatter{
		format: format,
		writer: writer,
	}
}

// SetShowProfile adds a per-file sparkline column to the table format.
func (f *Formatter) SetShowProfile(show bool) {
	f.showProfile = show
}

// SetTracePath names the trace in suggested follow-up commands.
func (f *Formatter) SetTracePath(path string) {
	f.tracePath = path
}

// Render outputs the summary in the configured format.
func (f *Formatter) Render(s Summary) error {
	switch f.format {
	case FormatJSON:
		return f.renderJSON(s)
	case FormatMarkdown:
		return f.renderMarkdown(s)
	case FormatTSV:
		return f.renderTSV(s)
	default:
		return f.renderTable(s)
	}
}

func (f *Formatter) renderJSON(s Summary) error {
	enc := json.NewEncoder(f.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)
	cellStyle  = lipgloss.NewStyle().Padding(0, 1)
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12")).
			MarginBottom(1)
	dimStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))

	// share colours, hottest first
	hotStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	warmStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	coolStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
)

func newTable(headers []string, rows [][]string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(dimStyle).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers(headers...).
		Rows(rows...)
}

func (f *Formatter) renderTable(s Summary) error {
	title := "Trace Summary"
	if s.Application != "" {
		title += ": " + s.Application
	}
	fmt.Fprintln(f.writer, titleStyle.Render(title))
	fmt.Fprintln(f.writer, strings.Repeat("═", 60))
	fmt.Fprintf(f.writer, "pid %d, %s, %s lines in %s files, %s subroutines\n",
		s.PID, s.Duration, humanize.Comma(int64(s.LineCount)),
		humanize.Comma(int64(s.Files)), humanize.Comma(int64(s.Subs)))
	if !s.Start.IsZero() {
		fmt.Fprintln(f.writer, dimStyle.Render("started "+s.Start.Format("2006-01-02 15:04:05 MST")))
	}
	fmt.Fprintln(f.writer)

	if len(s.HotLines) == 0 {
		fmt.Fprintln(f.writer, dimStyle.Render("No line records"))
		return nil
	}

	rows := make([][]string, len(s.HotLines))
	for i, l := range s.HotLines {
		rows[i] = []string{
			fmt.Sprintf("%s:%d", l.File, l.Line),
			humanize.Comma(int64(l.Calls)),
			ticks(l.ExclusiveTicks),
			ticks(l.InclusiveTicks),
			shareStyle(l.Share).Render(percent(l.Share)),
			truncate(strings.TrimSpace(l.Source), 40),
		}
	}
	fmt.Fprintln(f.writer, newTable([]string{"LINE", "CALLS", "EXCLUSIVE", "INCLUSIVE", "SHARE", "SOURCE"}, rows))

	if len(s.HotSubs) > 0 {
		rows = make([][]string, len(s.HotSubs))
		for i, sub := range s.HotSubs {
			rows[i] = []string{
				sub.Name,
				humanize.Comma(int64(sub.Calls)),
				humanize.Comma(int64(sub.Callers)),
				ticks(sub.ExclusiveTicks),
				ticks(sub.InclusiveTicks),
			}
		}
		fmt.Fprintln(f.writer)
		fmt.Fprintln(f.writer, newTable([]string{"SUBROUTINE", "CALLS", "CALLERS", "EXCLUSIVE", "INCLUSIVE"}, rows))
	}

	headers := []string{"FILE", "LINES", "EXCLUSIVE", "SHARE"}
	if f.showProfile {
		headers = append(headers, "PROFILE")
	}
	rows = make([][]string, len(s.ByFile))
	for i, fd := range s.ByFile {
		row := []string{
			fd.Path,
			humanize.Comma(int64(fd.Lines)),
			ticks(fd.ExclusiveTicks),
			shareStyle(fd.Share).Render(percent(fd.Share)),
		}
		if f.showProfile {
			row = append(row, Sparkline(fd.Profile, DefaultSparklineWidth))
		}
		rows[i] = row
	}
	fmt.Fprintln(f.writer)
	fmt.Fprintln(f.writer, newTable(headers, rows))

	fmt.Fprintln(f.writer)
	fmt.Fprintf(f.writer, "Total: %s exclusive\n", coolStyle.Render(ticks(s.TotalTicks)))
	return nil
}

// renderMarkdown outputs the summary as a Markdown report suitable for
// pasting into issues or feeding to other tools.
func (f *Formatter) renderMarkdown(s Summary) error {
	name := s.Application
	if name == "" {
		name = "unknown program"
	}
	fmt.Fprintf(f.writer, "# Trace: %s\n\n", name)
	fmt.Fprintf(f.writer, "**PID:** %d  \n**Duration:** %s  \n**Total exclusive time:** %s\n\n",
		s.PID, s.Duration, ticks(s.TotalTicks))

	if len(s.HotLines) > 0 {
		fmt.Fprintln(f.writer, "## Hot Lines")
		fmt.Fprintln(f.writer)
		fmt.Fprintln(f.writer, "| Line | Calls | Exclusive | Inclusive | Share |")
		fmt.Fprintln(f.writer, "|------|-------|-----------|-----------|-------|")
		for _, l := range s.HotLines {
			fmt.Fprintf(f.writer, "| `%s:%d` | %d | %s | %s | %s |\n",
				l.File, l.Line, l.Calls, ticks(l.ExclusiveTicks), ticks(l.InclusiveTicks), percent(l.Share))
		}
		fmt.Fprintln(f.writer)
	}

	if len(s.HotSubs) > 0 {
		fmt.Fprintln(f.writer, "## Hot Subroutines")
		fmt.Fprintln(f.writer)
		fmt.Fprintln(f.writer, "| Subroutine | Calls | Callers | Exclusive | Inclusive |")
		fmt.Fprintln(f.writer, "|------------|-------|---------|-----------|-----------|")
		for _, sub := range s.HotSubs {
			fmt.Fprintf(f.writer, "| `%s` | %d | %d | %s | %s |\n",
				sub.Name, sub.Calls, sub.Callers, ticks(sub.ExclusiveTicks), ticks(sub.InclusiveTicks))
		}
		fmt.Fprintln(f.writer)
	}

	suggestions := DrillDown(s, f.tracePath)
	if len(suggestions) > 0 {
		fmt.Fprintln(f.writer, "## Suggested Next Steps")
		fmt.Fprintln(f.writer)
		for _, sg := range suggestions {
			fmt.Fprintf(f.writer, "- `%s` - %s\n", sg.Command, sg.Reason)
		}
	}
	return nil
}

// renderTSV outputs the hot lines as tab-separated values.
func (f *Formatter) renderTSV(s Summary) error {
	fmt.Fprintln(f.writer, "FILE\tLINE\tCALLS\tINCLUSIVE_TICKS\tEXCLUSIVE_TICKS\tSHARE")
	for _, l := range s.HotLines {
		fmt.Fprintf(f.writer, "%s\t%d\t%d\t%d\t%d\t%.4f\n",
			l.File, l.Line, l.Calls, l.InclusiveTicks, l.ExclusiveTicks, l.Share)
	}
	return nil
}

func shareStyle(share float64) lipgloss.Style {
	switch {
	case share >= 0.5:
		return hotStyle
	case share >= 0.2:
		return warmStyle
	default:
		return coolStyle
	}
}

func ticks(t uint64) string {
	return format.TicksToDuration(t).String()
}

func percent(share float64) string {
	return fmt.Sprintf("%.1f%%", share*100)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
