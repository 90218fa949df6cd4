package output

import (
	"bytes"
	"strings"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/require"

	"github.com/danpilch/gonytprof/pkg/format"
)

func sampleModel() *format.TraceModel {
	return &format.TraceModel{
		Header: format.TraceHeader{
			Major:      5,
			Attributes: map[string]string{format.AttrApplication: "/src/app.pl"},
			Flags:      map[string]bool{},
		},
		Process: format.ProcessInfo{PID: 31, StartTime: 1700000000, EndTime: 1700000002, HasEnd: true},
		Files: []format.FileRecord{
			{FID: 1, Path: "/src/app.pl"},
			{FID: 2, Path: "/src/Lib.pm"},
		},
		Sources: []format.SourceLine{{FID: 1, Line: 2, Text: "  run();\n"}},
		Defs: []format.SubroutineDefinition{
			{SID: 1, FID: 1, FirstLine: 10, LastLine: 20, Name: "main::foo"},
			{SID: 2, FID: 2, FirstLine: 1, LastLine: 5, Name: "Lib::bar"},
			{SID: 3, FID: 2, FirstLine: 7, LastLine: 9, Name: "Lib::baz"},
		},
		Calls: []format.CallEdgeRecord{
			{Caller: 0, Callee: 1, Calls: 1, InclusiveTicks: 1000, ExclusiveTicks: 50},
			{Caller: 1, Callee: 2, Calls: 3, InclusiveTicks: 50, ExclusiveTicks: 30},
			{Caller: 2, Callee: 3, Calls: 3, InclusiveTicks: 20, ExclusiveTicks: 20},
		},
		Records: []format.LineStatRecord{
			{FID: 1, Line: 2, Calls: 1, InclusiveTicks: 1000, ExclusiveTicks: 100},
			{FID: 1, Line: 12, Calls: 3, InclusiveTicks: 120, ExclusiveTicks: 50},
			{FID: 1, Line: 15, Calls: 1, InclusiveTicks: 0, ExclusiveTicks: 0},
			{FID: 2, Line: 3, Calls: 3, InclusiveTicks: 50, ExclusiveTicks: 30},
			{FID: 2, Line: 8, Calls: 3, InclusiveTicks: 20, ExclusiveTicks: 20},
		},
	}
}

func TestSummarize(t *testing.T) {
	s := Summarize(sampleModel(), -1)
	require.Equal(t, "/src/app.pl", s.Application)
	require.Equal(t, uint32(31), s.PID)
	require.Equal(t, 2*time.Second, s.Duration)
	require.Equal(t, uint64(200), s.TotalTicks)
	require.Equal(t, 5, s.LineCount)
	require.Equal(t, 3, s.Subs)

	require.Len(t, s.HotLines, 5)
	require.Equal(t, uint32(2), s.HotLines[0].Line)
	require.Equal(t, 0.5, s.HotLines[0].Share)
	require.Equal(t, "  run();\n", s.HotLines[0].Source)
	require.Equal(t, uint32(12), s.HotLines[1].Line)
	require.Equal(t, uint32(15), s.HotLines[4].Line)

	var names []string
	for _, sub := range s.HotSubs {
		names = append(names, sub.Name)
	}
	require.Equal(t, []string{"main::foo", "Lib::bar", "Lib::baz"}, names)
	require.Equal(t, "/src/Lib.pm", s.HotSubs[1].File)
	require.Equal(t, 1, s.HotSubs[1].Callers)

	require.Len(t, s.ByFile, 2)
	require.Equal(t, "/src/app.pl", s.ByFile[0].Path)
	require.Equal(t, 0.75, s.ByFile[0].Share)
	require.Equal(t, []float64{100, 50, 0}, s.ByFile[0].Profile)

	limited := Summarize(sampleModel(), 2)
	require.Len(t, limited.HotLines, 2)
	require.Len(t, limited.HotSubs, 2)
	require.Equal(t, 5, limited.LineCount)

	require.Len(t, Summarize(sampleModel(), 0).HotLines, 5)
}

func TestSummarizeMergesCallers(t *testing.T) {
	m := &format.TraceModel{
		Calls: []format.CallEdgeRecord{
			{Caller: 0, Callee: 1, Calls: 2, InclusiveTicks: 10, ExclusiveTicks: 5},
			{Caller: 2, Callee: 1, Calls: 3, InclusiveTicks: 7, ExclusiveTicks: 7},
			{Caller: 1, Callee: 0, Calls: 1},
		},
	}
	s := Summarize(m, 0)
	require.Len(t, s.HotSubs, 2)
	require.Equal(t, HotSub{Name: "?", Calls: 5, Callers: 2, InclusiveTicks: 17, ExclusiveTicks: 12}, s.HotSubs[0])
	require.Equal(t, "main", s.HotSubs[1].Name)
	require.Zero(t, s.TotalTicks)
	require.True(t, s.Start.IsZero())
}

func TestSparkline(t *testing.T) {
	require.Equal(t, "", Sparkline(nil, 10))
	require.Equal(t, "▁█", Sparkline([]float64{0, 7}, 10))
	require.Equal(t, "▁█", Sparkline([]float64{1, 2, 3, 4}, 2))
	require.Equal(t, "▁▁▁", Sparkline([]float64{5, 5, 5}, 0))
	require.Len(t, []rune(Sparkline(make([]float64, 100), 0)), DefaultSparklineWidth)
}

func TestParseFormat(t *testing.T) {
	for name, want := range map[string]Format{
		"":         FormatTable,
		"table":    FormatTable,
		"JSON":     FormatJSON,
		"tsv":      FormatTSV,
		"md":       FormatMarkdown,
		"markdown": FormatMarkdown,
	} {
		got, err := ParseFormat(name)
		require.NoError(t, err, name)
		require.Equal(t, want, got, name)
	}
	_, err := ParseFormat("xml")
	require.ErrorContains(t, err, `unknown output format "xml"`)
}

func TestRenderTSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewFormatter(FormatTSV, &buf).Render(Summarize(sampleModel(), 2)))
	require.Equal(t, strings.Join([]string{
		"FILE\tLINE\tCALLS\tINCLUSIVE_TICKS\tEXCLUSIVE_TICKS\tSHARE",
		"/src/app.pl\t2\t1\t1000\t100\t0.5000",
		"/src/app.pl\t12\t3\t120\t50\t0.2500",
	}, "\n")+"\n", buf.String())
}

func TestRenderJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewFormatter(FormatJSON, &buf).Render(Summarize(sampleModel(), 0)))

	var decoded struct {
		Application string    `json:"application"`
		TotalTicks  uint64    `json:"total_ticks"`
		HotLines    []HotLine `json:"hot_lines"`
		ByFile      []struct {
			Path    string   `json:"path"`
			Profile []uint64 `json:"profile"`
		} `json:"files_by_time"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Equal(t, "/src/app.pl", decoded.Application)
	require.Equal(t, uint64(200), decoded.TotalTicks)
	require.Equal(t, uint32(2), decoded.HotLines[0].Line)
	require.Nil(t, decoded.ByFile[0].Profile)
}

func TestRenderTable(t *testing.T) {
	var buf bytes.Buffer
	f := NewFormatter(FormatTable, &buf)
	f.SetShowProfile(true)
	require.NoError(t, f.Render(Summarize(sampleModel(), 0)))

	out := buf.String()
	require.Contains(t, out, "Trace Summary: /src/app.pl")
	require.Contains(t, out, "pid 31, 2s, 5 lines in 2 files, 3 subroutines")
	require.Contains(t, out, "/src/app.pl:2")
	require.Contains(t, out, "run();")
	require.Contains(t, out, "50.0%")
	require.Contains(t, out, "main::foo")
	require.Contains(t, out, "PROFILE")
	require.Contains(t, out, "█")
	require.Contains(t, out, "Total:")
	require.Contains(t, out, "20µs")

	buf.Reset()
	require.NoError(t, NewFormatter("", &buf).Render(Summarize(&format.TraceModel{}, 0)))
	require.Contains(t, buf.String(), "No line records")
	require.NotContains(t, buf.String(), "PROFILE")
}

func TestRenderMarkdown(t *testing.T) {
	var buf bytes.Buffer
	f := NewFormatter(FormatMarkdown, &buf)
	f.SetTracePath("t.out")
	require.NoError(t, f.Render(Summarize(sampleModel(), 0)))

	out := buf.String()
	require.True(t, strings.HasPrefix(out, "# Trace: /src/app.pl\n"))
	require.Contains(t, out, "| `/src/app.pl:2` | 1 | 10µs | 100µs | 50.0% |")
	require.Contains(t, out, "| `Lib::baz` | 3 | 1 | 2µs | 2µs |")
	require.Contains(t, out, "nytprof folded t.out | flamegraph.pl")
	require.Contains(t, out, "One line dominates")
}

func TestDrillDown(t *testing.T) {
	empty := DrillDown(Summary{}, "")
	require.Len(t, empty, 1)
	require.Equal(t, "nytprof dump --chunks trace.out", empty[0].Command)

	noEdges := DrillDown(Summary{LineCount: 1, HotLines: []HotLine{{Share: 0.1}}}, "x")
	require.Len(t, noEdges, 1)
	require.Contains(t, noEdges[0].Command, "speedscope")

	s := Summarize(sampleModel(), 0)
	require.Len(t, DrillDown(s, "x"), 4)
}
