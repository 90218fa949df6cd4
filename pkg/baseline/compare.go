// Package baseline compares a trace against an earlier baseline trace of
// the same program and classifies how much each subroutine drifted.
package baseline

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/danpilch/gonytprof/pkg/format"
)

// Severity indicates the magnitude of a timing drift.
type Severity string

const (
	SeverityNone     Severity = "none"
	SeverityMinor    Severity = "minor"
	SeverityModerate Severity = "moderate"
	SeverityMajor    Severity = "major"
	SeverityRegress  Severity = "regression"
)

// TotalName labels the row comparing total exclusive line time.
const TotalName = "(total)"

// Comparison holds the drift analysis for one subroutine.
type Comparison struct {
	Name          string
	BaselineTicks uint64
	CurrentTicks  uint64
	DeltaPct      float64
	Severity      Severity
}

var (
	blTitle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	blHeader = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("62")).Padding(0, 1)
	blDim    = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	blOK     = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	blWarn   = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	blErr    = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	blMinor  = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
)

// Compare matches subroutines by name and calculates the drift of their
// exclusive time. Subroutines present in only one trace count as zero
// in the other. The first row is always the total.
func Compare(base, cur *format.TraceModel) []Comparison {
	baseTimes, curTimes := exclusiveBySub(base), exclusiveBySub(cur)

	names := make([]string, 0, len(curTimes)+len(baseTimes))
	for name := range curTimes {
		names = append(names, name)
	}
	for name := range baseTimes {
		if _, ok := curTimes[name]; !ok {
			names = append(names, name)
		}
	}
	sort.Slice(names, func(i, j int) bool {
		a, b := curTimes[names[i]], curTimes[names[j]]
		if a != b {
			return a > b
		}
		return names[i] < names[j]
	})

	comparisons := []Comparison{compare(TotalName, totalExclusive(base), totalExclusive(cur))}
	for _, name := range names {
		comparisons = append(comparisons, compare(name, baseTimes[name], curTimes[name]))
	}
	return comparisons
}

func compare(name string, base, cur uint64) Comparison {
	var deltaPct float64
	if base != 0 {
		deltaPct = (float64(cur) - float64(base)) / float64(base) * 100
	} else if cur != 0 {
		deltaPct = 100
	}
	return Comparison{
		Name:          name,
		BaselineTicks: base,
		CurrentTicks:  cur,
		DeltaPct:      deltaPct,
		Severity:      classifySeverity(deltaPct),
	}
}

func exclusiveBySub(m *format.TraceModel) map[string]uint64 {
	times := make(map[string]uint64)
	for _, e := range m.Calls {
		name := fmt.Sprintf("sub#%d", e.Callee)
		if d, ok := m.Def(e.Callee); ok {
			name = d.Name
		} else if e.Callee == 0 {
			continue
		}
		times[name] = format.SaturatingAdd64(times[name], e.ExclusiveTicks)
	}
	return times
}

func totalExclusive(m *format.TraceModel) uint64 {
	var total uint64
	for _, r := range m.Records {
		total = format.SaturatingAdd64(total, r.ExclusiveTicks)
	}
	return total
}

func classifySeverity(deltaPct float64) Severity {
	absDelta := math.Abs(deltaPct)
	if absDelta < 5 {
		return SeverityNone
	}
	if absDelta < 15 {
		return SeverityMinor
	}
	if absDelta < 30 {
		return SeverityModerate
	}
	if deltaPct > 0 {
		return SeverityRegress
	}
	return SeverityMajor
}

// Regressions counts comparisons classified as regression or major.
func Regressions(comparisons []Comparison) int {
	n := 0
	for _, c := range comparisons {
		if c.Severity == SeverityRegress || c.Severity == SeverityMajor {
			n++
		}
	}
	return n
}

// RenderComparison outputs a styled comparison table.
func RenderComparison(w io.Writer, baseName string, comparisons []Comparison) {
	fmt.Fprintln(w, blTitle.Render("Baseline Comparison"))
	fmt.Fprintln(w, blDim.Render(strings.Repeat("═", 90)))
	fmt.Fprintf(w, "Comparing against %s\n\n",
		lipgloss.NewStyle().Bold(true).Render(fmt.Sprintf("%q", baseName)))

	fmt.Fprintf(w, "  %s %s %s %s %s\n",
		blHeader.Render("SUBROUTINE                      "),
		blHeader.Render("BASELINE    "),
		blHeader.Render("CURRENT     "),
		blHeader.Render("DELTA    "),
		blHeader.Render("SEVERITY  "))
	fmt.Fprintln(w, "  "+blDim.Render(strings.Repeat("─", 90)))

	for _, c := range comparisons {
		var sevStr string
		switch c.Severity {
		case SeverityRegress:
			sevStr = blErr.Render("REGRESSION")
		case SeverityMajor:
			sevStr = blErr.Render("MAJOR")
		case SeverityModerate:
			sevStr = blWarn.Render("moderate")
		case SeverityMinor:
			sevStr = blMinor.Render("minor")
		default:
			sevStr = blOK.Render("none")
		}

		fmt.Fprintf(w, "  %-33s %-14s %-14s %-10s %s\n",
			c.Name,
			format.TicksToDuration(c.BaselineTicks),
			format.TicksToDuration(c.CurrentTicks),
			fmt.Sprintf("%+.1f%%", c.DeltaPct),
			sevStr)
	}

	fmt.Fprintln(w)
	if n := Regressions(comparisons); n > 0 {
		fmt.Fprintf(w, "  %s\n", blErr.Render(fmt.Sprintf("%d potential regressions detected.", n)))
	} else {
		fmt.Fprintf(w, "  %s\n", blOK.Render("No significant regressions detected."))
	}
}
