package convert

import (
	"fmt"
	"io"
	"math"
	"time"

	"github.com/google/pprof/profile"

	"github.com/danpilch/gonytprof/pkg/format"
)

// Sample value indexes in the profile ToPprof builds.
const (
	PprofCalls = iota
	PprofInclusive
	PprofExclusive
)

// ToPprof builds a pprof profile with one sample per line record. The
// leaf location is the line inside its enclosing subroutine; the frames
// above it follow the call graph up to the root. Values are calls,
// inclusive and exclusive nanoseconds; exclusive is the default.
func ToPprof(m *format.TraceModel) (*profile.Profile, error) {
	g := newCallGraph(m)
	b := &pprofBuilder{
		p: &profile.Profile{
			SampleType: []*profile.ValueType{
				{Type: "calls", Unit: "count"},
				{Type: "inclusive", Unit: "nanoseconds"},
				{Type: "exclusive", Unit: "nanoseconds"},
			},
			DefaultSampleType: "exclusive",
			PeriodType:        &profile.ValueType{Type: "wall", Unit: "nanoseconds"},
			Period:            int64(time.Second / format.TicksPerSecond),
			TimeNanos:         int64(m.Process.StartTime * 1e9),
			DurationNanos:     int64(m.Process.Duration()),
		},
		functions: make(map[uint32]*profile.Function),
		subLocs:   make(map[uint32]*profile.Location),
		lineLocs:  make(map[format.LineKey]*profile.Location),
		g:         g,
	}
	b.p.Comments = append(b.p.Comments, m.Header.Comments...)

	for _, r := range m.Records {
		sid := g.subAt(r.FID, r.Line)
		path := g.path(sid)
		// pprof lists the leaf first
		locs := []*profile.Location{b.lineLocation(sid, r.FID, r.Line)}
		for i := len(path) - 2; i >= 0; i-- {
			locs = append(locs, b.subLocation(path[i]))
		}
		b.p.Sample = append(b.p.Sample, &profile.Sample{
			Location: locs,
			Value: []int64{
				int64(r.Calls),
				ticksToNanos(r.InclusiveTicks),
				ticksToNanos(r.ExclusiveTicks),
			},
		})
	}

	if err := b.p.CheckValid(); err != nil {
		return nil, fmt.Errorf("build pprof profile: %w", err)
	}
	return b.p, nil
}

// WritePprof writes ToPprof(m) in gzipped protobuf form.
func WritePprof(w io.Writer, m *format.TraceModel) error {
	p, err := ToPprof(m)
	if err != nil {
		return err
	}
	return p.Write(w)
}

type pprofBuilder struct {
	p         *profile.Profile
	g         *callGraph
	functions map[uint32]*profile.Function
	subLocs   map[uint32]*profile.Location
	lineLocs  map[format.LineKey]*profile.Location
}

func (b *pprofBuilder) function(sid uint32) *profile.Function {
	if fn, ok := b.functions[sid]; ok {
		return fn
	}
	fn := &profile.Function{
		ID:         uint64(len(b.p.Function) + 1),
		Name:       b.g.name(sid),
		SystemName: b.g.name(sid),
	}
	if d, ok := b.g.m.Def(sid); ok {
		fn.Filename = fileName(b.g.m, d.FID)
		fn.StartLine = int64(d.FirstLine)
	}
	b.functions[sid] = fn
	b.p.Function = append(b.p.Function, fn)
	return fn
}

func (b *pprofBuilder) subLocation(sid uint32) *profile.Location {
	if loc, ok := b.subLocs[sid]; ok {
		return loc
	}
	fn := b.function(sid)
	loc := &profile.Location{
		ID:   uint64(len(b.p.Location) + 1),
		Line: []profile.Line{{Function: fn, Line: fn.StartLine}},
	}
	b.subLocs[sid] = loc
	b.p.Location = append(b.p.Location, loc)
	return loc
}

func (b *pprofBuilder) lineLocation(sid, fid, line uint32) *profile.Location {
	key := format.LineKey{FID: fid, Line: line}
	if loc, ok := b.lineLocs[key]; ok {
		return loc
	}
	fn := b.function(sid)
	if fn.Filename == "" {
		fn.Filename = fileName(b.g.m, fid)
	}
	loc := &profile.Location{
		ID:   uint64(len(b.p.Location) + 1),
		Line: []profile.Line{{Function: fn, Line: int64(line)}},
	}
	b.lineLocs[key] = loc
	b.p.Location = append(b.p.Location, loc)
	return loc
}

func ticksToNanos(t uint64) int64 {
	const perTick = uint64(time.Second / format.TicksPerSecond)
	if t > math.MaxInt64/perTick {
		return math.MaxInt64
	}
	return int64(t * perTick)
}
