package format

import (
	"math"
	"time"
)

// TraceHeader is the parsed banner.
type TraceHeader struct {
	Major       int
	Minor       int
	Comments    []string
	Attributes  map[string]string
	Flags       map[string]bool
	NVSize      int
	TicksPerSec uint64
	Basetime    int64
}

// Compressed reports whether chunk payloads carry a compression mode byte.
func (h *TraceHeader) Compressed() bool {
	return h.Flags[FlagCompressed]
}

// PFramed reports whether the process-start record has a length word.
func (h *TraceHeader) PFramed() bool {
	return h.Flags[FlagPFramed]
}

// ProcessInfo holds the process-start and process-end records.
type ProcessInfo struct {
	PID       uint32
	PPID      uint32
	StartTime float64
	EndTime   float64
	HasEnd    bool
}

// Start returns the process start as a time.Time.
func (p ProcessInfo) Start() time.Time {
	return floatTime(p.StartTime)
}

// Duration returns EndTime-StartTime, or zero when no end was recorded.
func (p ProcessInfo) Duration() time.Duration {
	if !p.HasEnd || p.EndTime < p.StartTime {
		return 0
	}
	return time.Duration((p.EndTime - p.StartTime) * float64(time.Second))
}

func floatTime(f float64) time.Time {
	sec, frac := math.Modf(f)
	return time.Unix(int64(sec), int64(frac*1e9))
}

// FileRecord describes one source file. FID 0 is reserved.
type FileRecord struct {
	FID      uint32
	EvalFID  uint32
	EvalLine uint32
	Flags    uint32
	Size     uint32
	MTime    uint32
	Path     string
	UTF8     bool
}

// HasSource reports whether source lines were embedded for this file.
func (f FileRecord) HasSource() bool {
	return f.Flags&FileHasSrc != 0
}

// IsEval reports whether the file is a dynamically generated eval.
func (f FileRecord) IsEval() bool {
	return f.Flags&FileIsEval != 0
}

// SourceLine is one embedded line of source text.
type SourceLine struct {
	FID  uint32
	Line uint32
	Text string
}

// SubroutineDefinition records where a subroutine lives.
type SubroutineDefinition struct {
	SID       uint32
	FID       uint32
	FirstLine uint32
	LastLine  uint32
	Name      string
}

// LineKey identifies a line-stat record.
type LineKey struct {
	FID  uint32
	Line uint32
}

// LineStatRecord is the aggregate for one (fid, line).
type LineStatRecord struct {
	FID            uint32
	Line           uint32
	Calls          uint32
	InclusiveTicks uint64
	ExclusiveTicks uint64
}

// EdgeKey identifies a call-graph edge.
type EdgeKey struct {
	Caller uint32
	Callee uint32
}

// CallEdgeRecord is the aggregate for one (caller, callee) pair.
type CallEdgeRecord struct {
	Caller         uint32
	Callee         uint32
	Calls          uint32
	InclusiveTicks uint64
	ExclusiveTicks uint64
}

// TraceModel is the immutable result of parsing a trace file.
type TraceModel struct {
	Header  TraceHeader
	Process ProcessInfo
	Files   []FileRecord
	Sources []SourceLine
	Defs    []SubroutineDefinition
	Calls   []CallEdgeRecord
	Records []LineStatRecord
}

// File returns the record for fid.
func (m *TraceModel) File(fid uint32) (FileRecord, bool) {
	for _, f := range m.Files {
		if f.FID == fid {
			return f, true
		}
	}
	return FileRecord{}, false
}

// Def returns the subroutine definition for sid.
func (m *TraceModel) Def(sid uint32) (SubroutineDefinition, bool) {
	for _, d := range m.Defs {
		if d.SID == sid {
			return d, true
		}
	}
	return SubroutineDefinition{}, false
}

// DefByName returns the first subroutine definition with the given name.
func (m *TraceModel) DefByName(name string) (SubroutineDefinition, bool) {
	for _, d := range m.Defs {
		if d.Name == name {
			return d, true
		}
	}
	return SubroutineDefinition{}, false
}

// Edge returns the call-graph edge between two subroutines.
func (m *TraceModel) Edge(caller, callee uint32) (CallEdgeRecord, bool) {
	for _, c := range m.Calls {
		if c.Caller == caller && c.Callee == callee {
			return c, true
		}
	}
	return CallEdgeRecord{}, false
}

// TicksToDuration converts profiler ticks to a time.Duration.
func TicksToDuration(ticks uint64) time.Duration {
	return time.Duration(ticks) * (time.Second / TicksPerSecond)
}

// DurationToTicks converts a time.Duration to profiler ticks.
func DurationToTicks(d time.Duration) uint64 {
	if d <= 0 {
		return 0
	}
	return uint64(d / (time.Second / TicksPerSecond))
}

// SaturatingAdd32 adds without wrapping past math.MaxUint32.
func SaturatingAdd32(a, b uint32) uint32 {
	if a > math.MaxUint32-b {
		return math.MaxUint32
	}
	return a + b
}

// SaturatingAdd64 adds without wrapping past math.MaxUint64.
func SaturatingAdd64(a, b uint64) uint64 {
	if a > math.MaxUint64-b {
		return math.MaxUint64
	}
	return a + b
}
