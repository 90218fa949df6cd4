// Package convert renders a parsed trace in formats other profilers and
// viewers understand: folded stacks, speedscope JSON and pprof.
package convert

import (
	"cmp"
	"path"
	"slices"
	"strconv"

	"github.com/danpilch/gonytprof/pkg/format"
)

// RootName labels code that runs outside any subroutine when the trace
// does not name its application.
const RootName = "main"

// callGraph indexes a model's subroutines and call edges.
type callGraph struct {
	m        *format.TraceModel
	names    map[uint32]string
	children map[uint32][]format.CallEdgeRecord
	// parent is the caller through which each sid was first reached
	// walking breadth-first from the root.
	parent map[uint32]uint32
}

func newCallGraph(m *format.TraceModel) *callGraph {
	g := &callGraph{
		m:        m,
		names:    make(map[uint32]string, len(m.Defs)+1),
		children: make(map[uint32][]format.CallEdgeRecord),
		parent:   make(map[uint32]uint32),
	}
	g.names[0] = rootName(m)
	for _, d := range m.Defs {
		g.names[d.SID] = d.Name
	}
	for _, e := range m.Calls {
		g.children[e.Caller] = append(g.children[e.Caller], e)
	}
	for _, edges := range g.children {
		slices.SortFunc(edges, func(a, b format.CallEdgeRecord) int {
			return cmp.Compare(a.Callee, b.Callee)
		})
	}

	seen := map[uint32]bool{0: true}
	queue := []uint32{0}
	// callers never reached from the root still get a path
	for _, sid := range g.callers() {
		if sid != 0 {
			queue = append(queue, sid)
		}
	}
	for len(queue) > 0 {
		sid := queue[0]
		queue = queue[1:]
		seen[sid] = true
		for _, e := range g.children[sid] {
			if seen[e.Callee] {
				continue
			}
			if _, ok := g.parent[e.Callee]; ok {
				continue
			}
			g.parent[e.Callee] = sid
			queue = append(queue, e.Callee)
		}
	}
	return g
}

func (g *callGraph) callers() []uint32 {
	out := make([]uint32, 0, len(g.children))
	for sid := range g.children {
		out = append(out, sid)
	}
	slices.Sort(out)
	return out
}

func (g *callGraph) name(sid uint32) string {
	if n, ok := g.names[sid]; ok {
		return n
	}
	return "sub#" + strconv.FormatUint(uint64(sid), 10)
}

// path returns the sids from the root down to sid. Subroutines that
// were never reached from the root hang directly below it.
func (g *callGraph) path(sid uint32) []uint32 {
	var rev []uint32
	seen := make(map[uint32]bool)
	for !seen[sid] {
		seen[sid] = true
		rev = append(rev, sid)
		p, ok := g.parent[sid]
		if !ok {
			break
		}
		sid = p
	}
	if rev[len(rev)-1] != 0 {
		rev = append(rev, 0)
	}
	slices.Reverse(rev)
	return rev
}

// stack returns the frame names from the root down to sid.
func (g *callGraph) stack(sid uint32) []string {
	sids := g.path(sid)
	out := make([]string, len(sids))
	for i, s := range sids {
		out[i] = g.name(s)
	}
	return out
}

// subAt returns the innermost subroutine whose line range covers
// fid:line, or 0 when none does.
func (g *callGraph) subAt(fid, line uint32) uint32 {
	var (
		best  uint32
		width uint32
	)
	for _, d := range g.m.Defs {
		if d.FID != fid || line < d.FirstLine || line > d.LastLine {
			continue
		}
		if w := d.LastLine - d.FirstLine; best == 0 || w < width {
			best, width = d.SID, w
		}
	}
	return best
}

func rootName(m *format.TraceModel) string {
	if app := m.Header.Attributes[format.AttrApplication]; app != "" {
		return path.Base(app)
	}
	return RootName
}

func fileName(m *format.TraceModel, fid uint32) string {
	if f, ok := m.File(fid); ok {
		return f.Path
	}
	return "fid#" + strconv.FormatUint(uint64(fid), 10)
}
