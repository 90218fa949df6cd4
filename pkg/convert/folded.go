package convert

import (
	"bufio"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/danpilch/gonytprof/pkg/format"
)

// FoldedOptions controls WriteFolded.
type FoldedOptions struct {
	// Lines appends a "file:line" frame below each subroutine.
	Lines bool
}

// WriteFolded writes the trace as folded stacks: "root;foo;bar ticks\n".
// Each line record's exclusive ticks are charged to the stack of the
// subroutine that contains the line, so the weights sum to the total
// exclusive time of the run.
func WriteFolded(w io.Writer, m *format.TraceModel, opts FoldedOptions) error {
	bw := bufio.NewWriter(w)
	writeCollapsed(bw, foldedStacks(m, opts))
	return bw.Flush()
}

func foldedStacks(m *format.TraceModel, opts FoldedOptions) map[string]uint64 {
	g := newCallGraph(m)
	stacks := make(map[string]uint64)
	for _, r := range m.Records {
		if r.ExclusiveTicks == 0 {
			continue
		}
		frames := g.stack(g.subAt(r.FID, r.Line))
		if opts.Lines {
			frames = append(frames, fmt.Sprintf("%s:%d", path.Base(fileName(m, r.FID)), r.Line))
		}
		key := strings.Join(sanitizeFrames(frames), ";")
		stacks[key] = format.SaturatingAdd64(stacks[key], r.ExclusiveTicks)
	}
	return stacks
}

// sanitizeFrames keeps the separator characters out of frame names.
func sanitizeFrames(frames []string) []string {
	r := strings.NewReplacer(";", ":", "\n", " ")
	for i, f := range frames {
		frames[i] = r.Replace(f)
	}
	return frames
}

func writeCollapsed(w io.Writer, stacks map[string]uint64) {
	// Sort for deterministic output
	keys := make([]string, 0, len(stacks))
	for k := range stacks {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		fmt.Fprintf(w, "%s %d\n", k, stacks[k])
	}
}
