package debug

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/danpilch/gonytprof/pkg/format"
	"github.com/danpilch/gonytprof/pkg/reader"
)

var (
	debugTitle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	debugHeader = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("62")).Padding(0, 1)
	debugDim    = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

var chunkKinds = map[format.ChunkTag]string{
	format.ChunkLineStats: "line stats",
	format.ChunkFiles:     "files",
	format.ChunkSubs:      "subroutines",
	format.ChunkCalls:     "call edges",
	format.ChunkEnd:       "end",
}

// ChunkKind describes a chunk tag for humans.
func ChunkKind(tag format.ChunkTag) string {
	if k, ok := chunkKinds[tag]; ok {
		return k
	}
	return "unknown"
}

// DumpChunks prints the banner attributes and the location of every
// chunk in a verified trace.
func DumpChunks(w io.Writer, res reader.VerifyResult) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, debugTitle.Render("Trace Layout"))
	fmt.Fprintln(w, debugDim.Render(strings.Repeat("═", 64)))

	h := res.Header
	fmt.Fprintf(w, "  %-16s %s %d.%d\n", "format", format.FormatName, h.Major, h.Minor)
	keys := make([]string, 0, len(h.Attributes))
	for k := range h.Attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "  %-16s %s\n", k, h.Attributes[k])
	}
	fmt.Fprintf(w, "  %-16s pid=%d ppid=%d\n", "process", res.Process.PID, res.Process.PPID)
	fmt.Fprintf(w, "  %-16s %s\n", "size", humanize.IBytes(uint64(res.Size)))

	fmt.Fprintln(w)
	fmt.Fprintf(w, "  %s %s %s %s\n",
		debugHeader.Render("TAG"),
		debugHeader.Render("OFFSET    "),
		debugHeader.Render("LENGTH    "),
		debugHeader.Render("KIND          "))
	fmt.Fprintln(w, "  "+debugDim.Render(strings.Repeat("─", 64)))
	for _, c := range res.Chunks {
		fmt.Fprintf(w, "  %-5s %-12s %-12d %s\n",
			c.Tag, fmt.Sprintf("0x%08x", c.Offset), c.Len, debugDim.Render(ChunkKind(c.Tag)))
	}
}
