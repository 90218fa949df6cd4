package output

import (
	"path"
	"sort"
	"time"

	"github.com/danpilch/gonytprof/pkg/format"
)

// DefaultTop is the number of hot lines and subroutines reported.
const DefaultTop = 10

// Summary is the reportable digest of one trace.
type Summary struct {
	Application string        `json:"application"`
	PID         uint32        `json:"pid"`
	Start       time.Time     `json:"start"`
	Duration    time.Duration `json:"duration_ns"`
	Compressed  bool          `json:"compressed"`

	Files     int `json:"files"`
	Subs      int `json:"subroutines"`
	Edges     int `json:"call_edges"`
	LineCount int `json:"lines"`

	// TotalTicks is the sum of exclusive line time.
	TotalTicks uint64 `json:"total_ticks"`

	HotLines []HotLine    `json:"hot_lines"`
	HotSubs  []HotSub     `json:"hot_subroutines"`
	ByFile   []FileDigest `json:"files_by_time"`
}

// HotLine is one line ranked by exclusive time.
type HotLine struct {
	File           string  `json:"file"`
	Line           uint32  `json:"line"`
	Calls          uint32  `json:"calls"`
	InclusiveTicks uint64  `json:"inclusive_ticks"`
	ExclusiveTicks uint64  `json:"exclusive_ticks"`
	Share          float64 `json:"share"`
	Source         string  `json:"source,omitempty"`
}

// HotSub is one subroutine ranked by exclusive time, summed over all
// its callers.
type HotSub struct {
	Name           string `json:"name"`
	File           string `json:"file,omitempty"`
	Calls          uint32 `json:"calls"`
	Callers        int    `json:"callers"`
	InclusiveTicks uint64 `json:"inclusive_ticks"`
	ExclusiveTicks uint64 `json:"exclusive_ticks"`
}

// FileDigest totals one file's line records.
type FileDigest struct {
	Path           string  `json:"path"`
	Lines          int     `json:"lines"`
	ExclusiveTicks uint64  `json:"exclusive_ticks"`
	Share          float64 `json:"share"`

	// Profile is the exclusive time of each line record in line order.
	Profile []float64 `json:"-"`
}

// Summarize ranks the lines, subroutines and files of m. top limits the
// ranked lists; zero means DefaultTop and a negative value means no
// limit.
func Summarize(m *format.TraceModel, top int) Summary {
	if top == 0 {
		top = DefaultTop
	}
	s := Summary{
		Application: m.Header.Attributes[format.AttrApplication],
		PID:         m.Process.PID,
		Duration:    m.Process.Duration(),
		Compressed:  m.Header.Compressed(),
		Files:       len(m.Files),
		Subs:        len(m.Defs),
		Edges:       len(m.Calls),
		LineCount:   len(m.Records),
	}
	if m.Process.StartTime > 0 {
		s.Start = m.Process.Start().UTC()
	}
	for _, r := range m.Records {
		s.TotalTicks = format.SaturatingAdd64(s.TotalTicks, r.ExclusiveTicks)
	}

	s.HotLines = hotLines(m, s.TotalTicks)
	s.HotSubs = hotSubs(m)
	s.ByFile = fileDigests(m, s.TotalTicks)
	s.HotLines = limit(s.HotLines, top)
	s.HotSubs = limit(s.HotSubs, top)
	s.ByFile = limit(s.ByFile, top)
	return s
}

func hotLines(m *format.TraceModel, total uint64) []HotLine {
	sources := make(map[format.LineKey]string, len(m.Sources))
	for _, src := range m.Sources {
		sources[format.LineKey{FID: src.FID, Line: src.Line}] = src.Text
	}

	lines := make([]HotLine, 0, len(m.Records))
	for _, r := range m.Records {
		lines = append(lines, HotLine{
			File:           filePath(m, r.FID),
			Line:           r.Line,
			Calls:          r.Calls,
			InclusiveTicks: r.InclusiveTicks,
			ExclusiveTicks: r.ExclusiveTicks,
			Share:          share(r.ExclusiveTicks, total),
			Source:         sources[format.LineKey{FID: r.FID, Line: r.Line}],
		})
	}
	sort.SliceStable(lines, func(i, j int) bool {
		return lines[i].ExclusiveTicks > lines[j].ExclusiveTicks
	})
	return lines
}

func hotSubs(m *format.TraceModel) []HotSub {
	index := make(map[uint32]int)
	var subs []HotSub
	for _, e := range m.Calls {
		i, ok := index[e.Callee]
		if !ok {
			i = len(subs)
			index[e.Callee] = i
			hs := HotSub{Name: subName(m, e.Callee)}
			if d, ok := m.Def(e.Callee); ok {
				hs.File = filePath(m, d.FID)
			}
			subs = append(subs, hs)
		}
		hs := &subs[i]
		hs.Calls = format.SaturatingAdd32(hs.Calls, e.Calls)
		hs.Callers++
		hs.InclusiveTicks = format.SaturatingAdd64(hs.InclusiveTicks, e.InclusiveTicks)
		hs.ExclusiveTicks = format.SaturatingAdd64(hs.ExclusiveTicks, e.ExclusiveTicks)
	}
	sort.SliceStable(subs, func(i, j int) bool {
		if subs[i].ExclusiveTicks != subs[j].ExclusiveTicks {
			return subs[i].ExclusiveTicks > subs[j].ExclusiveTicks
		}
		return subs[i].Name < subs[j].Name
	})
	return subs
}

func fileDigests(m *format.TraceModel, total uint64) []FileDigest {
	index := make(map[uint32]int)
	var files []FileDigest
	for _, r := range m.Records {
		i, ok := index[r.FID]
		if !ok {
			i = len(files)
			index[r.FID] = i
			files = append(files, FileDigest{Path: filePath(m, r.FID)})
		}
		fd := &files[i]
		fd.Lines++
		fd.ExclusiveTicks = format.SaturatingAdd64(fd.ExclusiveTicks, r.ExclusiveTicks)
		fd.Profile = append(fd.Profile, float64(r.ExclusiveTicks))
	}
	for i := range files {
		files[i].Share = share(files[i].ExclusiveTicks, total)
	}
	sort.SliceStable(files, func(i, j int) bool {
		return files[i].ExclusiveTicks > files[j].ExclusiveTicks
	})
	return files
}

func limit[T any](s []T, n int) []T {
	if n < 0 || len(s) <= n {
		return s
	}
	return s[:n]
}

func share(part, total uint64) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total)
}

func filePath(m *format.TraceModel, fid uint32) string {
	if f, ok := m.File(fid); ok {
		return f.Path
	}
	return "?"
}

func subName(m *format.TraceModel, sid uint32) string {
	if sid == 0 {
		if app := m.Header.Attributes[format.AttrApplication]; app != "" {
			return path.Base(app)
		}
		return "main"
	}
	if d, ok := m.Def(sid); ok {
		return d.Name
	}
	return "?"
}
