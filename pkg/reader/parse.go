package reader

import (
	"encoding/binary"
	"os"

	"github.com/danpilch/gonytprof/pkg/format"
	"github.com/danpilch/gonytprof/pkg/table"
	"github.com/danpilch/gonytprof/pkg/token"
)

// Read loads and parses the trace file at path.
func Read(path string) (*format.TraceModel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &format.IOError{Op: "read", Path: path, Err: err}
	}
	return Parse(data)
}

// Parse decodes a complete trace file held in memory.
func Parse(data []byte) (*format.TraceModel, error) {
	info, err := ParseHeader(data)
	if err != nil {
		return nil, err
	}
	proc, err := parseProcess(data, info)
	if err != nil {
		return nil, err
	}
	chunks, err := scanChunks(data, info.FirstChunkOffset)
	if err != nil {
		return nil, err
	}

	m := &format.TraceModel{Header: info.Header, Process: proc}
	nv := info.Header.NVSize
	for _, c := range chunks {
		payload := data[c.PayloadOffset():c.End()]
		base := c.PayloadOffset()
		if info.Header.Compressed() && c.Tag != format.ChunkEnd {
			if payload, err = format.DecodePayload(payload, base); err != nil {
				return nil, err
			}
			base++
		}

		switch c.Tag {
		case format.ChunkLineStats:
			err = parseLineStats(m, payload, base)
		case format.ChunkFiles:
			err = parseFiles(m, payload, nv, base)
		case format.ChunkSubs:
			err = parseSubs(m, payload, nv, base)
		case format.ChunkCalls:
			err = parseCalls(m, payload, base)
		case format.ChunkEnd:
			err = parseEnd(m, payload, nv, base)
		}
		if err != nil {
			return nil, err
		}
	}
	return m, nil
}

func parseLineStats(m *format.TraceModel, p []byte, base int64) error {
	if err := checkStride(format.ChunkLineStats, len(p), base); err != nil {
		return err
	}
	m.Records = make([]format.LineStatRecord, 0, len(p)/format.RecordStride)
	for off := 0; off < len(p); off += format.RecordStride {
		r := p[off : off+format.RecordStride]
		m.Records = append(m.Records, format.LineStatRecord{
			FID:            binary.LittleEndian.Uint32(r),
			Line:           binary.LittleEndian.Uint32(r[4:]),
			Calls:          binary.LittleEndian.Uint32(r[8:]),
			InclusiveTicks: binary.LittleEndian.Uint64(r[12:]),
			ExclusiveTicks: binary.LittleEndian.Uint64(r[20:]),
		})
	}
	return nil
}

func parseCalls(m *format.TraceModel, p []byte, base int64) error {
	if err := checkStride(format.ChunkCalls, len(p), base); err != nil {
		return err
	}
	m.Calls = make([]format.CallEdgeRecord, 0, len(p)/format.RecordStride)
	for off := 0; off < len(p); off += format.RecordStride {
		r := p[off : off+format.RecordStride]
		m.Calls = append(m.Calls, format.CallEdgeRecord{
			Caller:         binary.LittleEndian.Uint32(r),
			Callee:         binary.LittleEndian.Uint32(r[4:]),
			Calls:          binary.LittleEndian.Uint32(r[8:]),
			InclusiveTicks: binary.LittleEndian.Uint64(r[12:]),
			ExclusiveTicks: binary.LittleEndian.Uint64(r[20:]),
		})
	}
	return nil
}

func parseFiles(m *format.TraceModel, p []byte, nv int, base int64) error {
	dec := token.NewDecoder(p, nv, base)
	count, err := dec.U32()
	if err != nil {
		return err
	}
	if int64(count) > int64(dec.Remaining()) {
		return format.Errorf(base, "file count %d exceeds F chunk", count)
	}
	m.Files = make([]format.FileRecord, 0, count)
	for i := uint32(0); i < count; i++ {
		at := dec.Offset()
		rec, err := dec.Next()
		if err != nil {
			return err
		}
		f, ok := rec.(token.NewFID)
		if !ok {
			return format.Errorf(at, "expected %s token in F chunk, found %s", token.TagNewFID, rec.Tag())
		}
		m.Files = append(m.Files, format.FileRecord{
			FID:      f.FID,
			EvalFID:  f.EvalFID,
			EvalLine: f.EvalLine,
			Flags:    f.Flags,
			Size:     f.Size,
			MTime:    f.MTime,
			Path:     f.Name.Data,
			UTF8:     f.Name.UTF8,
		})
	}
	for dec.More() {
		at := dec.Offset()
		rec, err := dec.Next()
		if err != nil {
			return err
		}
		s, ok := rec.(token.SrcLine)
		if !ok {
			return format.Errorf(at, "unexpected %s token in F chunk", rec.Tag())
		}
		m.Sources = append(m.Sources, format.SourceLine{FID: s.FID, Line: s.Line, Text: s.Text.Data})
	}
	return nil
}

func parseSubs(m *format.TraceModel, p []byte, nv int, base int64) error {
	names, off, err := table.ParseStrings(p, 0, base)
	if err != nil {
		return err
	}
	dec := token.NewDecoder(p[off:], nv, base+int64(off))
	count, err := dec.U32()
	if err != nil {
		return err
	}
	if int64(count) > int64(dec.Remaining()) {
		return format.Errorf(base+int64(off), "subroutine count %d exceeds D chunk", count)
	}
	m.Defs = make([]format.SubroutineDefinition, 0, count)
	for i := uint32(0); i < count; i++ {
		at := dec.Offset()
		rec, err := dec.Next()
		if err != nil {
			return err
		}
		s, ok := rec.(token.SubInfo)
		if !ok {
			return format.Errorf(at, "expected %s token in D chunk, found %s", token.TagSubInfo, rec.Tag())
		}
		if int(s.Name) >= len(names) {
			return format.Errorf(at, "subroutine name index %d out of range (%d names)", s.Name, len(names))
		}
		m.Defs = append(m.Defs, format.SubroutineDefinition{
			SID:       s.SID,
			FID:       s.FID,
			FirstLine: s.FirstLine,
			LastLine:  s.LastLine,
			Name:      names[s.Name],
		})
	}
	if dec.More() {
		return format.Errorf(dec.Offset(), "trailing bytes in D chunk")
	}
	return nil
}

func parseEnd(m *format.TraceModel, p []byte, nv int, base int64) error {
	if len(p) == 0 {
		return nil
	}
	dec := token.NewDecoder(p, nv, base)
	rec, err := dec.Next()
	if err != nil {
		return err
	}
	end, ok := rec.(token.ProcessEnd)
	if !ok {
		return format.Errorf(base, "expected %s token in E chunk, found %s", token.TagPIDEnd, rec.Tag())
	}
	if dec.More() {
		return format.Errorf(dec.Offset(), "trailing bytes in E chunk")
	}
	m.Process.EndTime = end.Time
	m.Process.HasEnd = true
	return nil
}
