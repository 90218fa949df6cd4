// Package writer produces NYTProf-compatible trace files. A Writer owns
// all aggregation state for one profiling session: callers feed it
// files, subroutines, line statistics and call edges in any order, and
// Close flushes everything as a fixed sequence of chunks.
//
// A Writer is not safe for concurrent use.
package writer

import (
	"cmp"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"slices"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"github.com/danpilch/gonytprof/pkg/format"
	"github.com/danpilch/gonytprof/pkg/table"
	"github.com/danpilch/gonytprof/pkg/token"
)

// State is the lifecycle position of a Writer.
type State int

const (
	StateUnopened State = iota
	StateHeaderWritten
	StateRecording
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUnopened:
		return "unopened"
	case StateHeaderWritten:
		return "header-written"
	case StateRecording:
		return "recording"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Writer aggregates one profiling session and writes it on Close.
type Writer struct {
	cfg    Config
	log    *logrus.Logger
	enc    Encoder
	path   string
	state  State
	proc   token.ProcessStart
	layout Layout

	files   *table.FileTable
	subs    *table.SubTable
	sources map[format.LineKey]string
	lines   map[format.LineKey]*format.LineStatRecord
	edges   map[format.EdgeKey]*format.CallEdgeRecord
}

// Open creates path and writes the banner and process-start record.
func Open(path string, cfg Config) (*Writer, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, &format.IOError{Op: "create", Path: path, Err: err}
	}
	w, err := newWriter(f, path, cfg)
	if err != nil {
		f.Close()
		return nil, err
	}
	return w, nil
}

// New writes the banner and process-start record to out. out is closed
// by Close.
func New(out io.WriteCloser, cfg Config) (*Writer, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return newWriter(out, "", cfg)
}

func newWriter(out io.WriteCloser, path string, cfg Config) (*Writer, error) {
	backend, _ := ParseBackend(string(cfg.Backend))

	w := &Writer{
		cfg:     cfg,
		log:     cfg.Logger,
		enc:     NewEncoder(backend, out, cfg.Logger),
		path:    path,
		state:   StateUnopened,
		files:   table.NewFileTable(),
		subs:    table.NewSubTable(),
		sources: make(map[format.LineKey]string),
		lines:   make(map[format.LineKey]*format.LineStatRecord),
		edges:   make(map[format.EdgeKey]*format.CallEdgeRecord),
		layout:  Layout{NVSize: cfg.NVSize, PFramed: cfg.LegacyFraming},
	}
	if cfg.WrapEncoder != nil {
		w.enc = cfg.WrapEncoder(w.enc)
	}

	pid, ppid := processIDs()
	if cfg.PID != 0 {
		pid = cfg.PID
	}
	if cfg.PPID != 0 {
		ppid = cfg.PPID
	}
	now := cfg.Now()
	w.proc = token.ProcessStart{PID: pid, PPID: ppid, Time: unixSeconds(now)}

	banner := Banner(BannerInfo{
		Generated:   now,
		Application: cfg.Application,
		NVSize:      cfg.NVSize,
		Compressed:  cfg.CompressThreshold > 0,
		PFramed:     cfg.LegacyFraming,
	})
	if err := w.enc.WriteHeader(banner, w.proc, w.layout); err != nil {
		return nil, &format.IOError{Op: "write header", Path: path, Err: err}
	}
	w.state = StateHeaderWritten

	w.log.WithFields(logrus.Fields{
		"backend":    w.enc.Name(),
		"banner_len": len(banner),
		"pid":        pid,
		"nv_size":    cfg.NVSize,
	}).Debug("wrote header")
	return w, nil
}

// State returns the writer's lifecycle state.
func (w *Writer) State() State {
	return w.state
}

// Backend returns the name of the encoder in use.
func (w *Writer) Backend() string {
	return w.enc.Name()
}

func (w *Writer) record(op string) error {
	if w.state == StateClosed {
		return &format.UsageError{Op: op, Reason: "writer is closed"}
	}
	w.state = StateRecording
	return nil
}

// AddFile registers a source file by path, taking its size and mtime
// from the filesystem when it exists. Re-adding a path returns its
// existing fid.
func (w *Writer) AddFile(path string) (uint32, error) {
	if fid, ok := w.files.Lookup(path); ok {
		return fid, w.record("add file")
	}
	rec := format.FileRecord{Path: path, Flags: format.FileViaStmt}
	if size, mtime, err := statFile(path); err == nil {
		rec.Size, rec.MTime = size, mtime
	} else {
		w.log.WithField("path", path).WithError(err).Debug("cannot stat source file")
	}
	return w.AddFileRecord(rec)
}

// AddFileRecord registers a file with explicit metadata. FID is
// assigned by the writer and ignored on input.
func (w *Writer) AddFileRecord(rec format.FileRecord) (uint32, error) {
	if err := w.record("add file"); err != nil {
		return 0, err
	}
	rec.UTF8 = rec.UTF8 || !isASCII(rec.Path)
	fid, added := w.files.Intern(rec)
	if added {
		w.log.WithFields(logrus.Fields{"fid": fid, "path": rec.Path}).Debug("new fid")
	}
	return fid, nil
}

// AddEvalFile registers code compiled at runtime from parentFID's
// parentLine.
func (w *Writer) AddEvalFile(parentFID, parentLine uint32, name string) (uint32, error) {
	if _, ok := w.files.Get(parentFID); !ok {
		return 0, &format.UsageError{Op: "add eval file", Reason: fmt.Sprintf("unknown parent fid %d", parentFID)}
	}
	return w.AddFileRecord(format.FileRecord{
		Path:     name,
		EvalFID:  parentFID,
		EvalLine: parentLine,
		Flags:    format.FileIsEval,
	})
}

// AddSourceLine embeds one line of source text for fid.
func (w *Writer) AddSourceLine(fid, line uint32, text string) error {
	if err := w.record("add source line"); err != nil {
		return err
	}
	if !w.files.SetFlags(fid, format.FileHasSrc) {
		return &format.UsageError{Op: "add source line", Reason: fmt.Sprintf("unknown fid %d", fid)}
	}
	w.sources[format.LineKey{FID: fid, Line: line}] = text
	return nil
}

// DefineSub records a subroutine's extent and returns its sid. Defining
// a known name again returns the original sid. fid 0 is allowed for
// subroutines without source.
func (w *Writer) DefineSub(fid, firstLine, lastLine uint32, name string) (uint32, error) {
	if err := w.record("define sub"); err != nil {
		return 0, err
	}
	if fid != 0 {
		if _, ok := w.files.Get(fid); !ok {
			return 0, &format.UsageError{Op: "define sub", Reason: fmt.Sprintf("unknown fid %d", fid)}
		}
	}
	sid, _ := w.subs.Define(format.SubroutineDefinition{
		FID:       fid,
		FirstLine: firstLine,
		LastLine:  lastLine,
		Name:      name,
	})
	return sid, nil
}

// RecordLine adds to the statistics for (fid, line).
func (w *Writer) RecordLine(fid, line, calls uint32, inclusive, exclusive uint64) error {
	if err := w.record("record line"); err != nil {
		return err
	}
	key := format.LineKey{FID: fid, Line: line}
	rec, ok := w.lines[key]
	if !ok {
		rec = &format.LineStatRecord{FID: fid, Line: line}
		w.lines[key] = rec
	}
	rec.Calls = format.SaturatingAdd32(rec.Calls, calls)
	rec.InclusiveTicks = format.SaturatingAdd64(rec.InclusiveTicks, inclusive)
	rec.ExclusiveTicks = format.SaturatingAdd64(rec.ExclusiveTicks, exclusive)
	return nil
}

// RecordCallEdge counts one call from caller to callee lasting ticks.
func (w *Writer) RecordCallEdge(caller, callee uint32, ticks uint64) error {
	return w.RecordCallEdgeTimes(caller, callee, 1, ticks, 0)
}

// RecordCallEdgeTimes adds calls and both tick totals to an edge.
func (w *Writer) RecordCallEdgeTimes(caller, callee, calls uint32, inclusive, exclusive uint64) error {
	if err := w.record("record call edge"); err != nil {
		return err
	}
	key := format.EdgeKey{Caller: caller, Callee: callee}
	rec, ok := w.edges[key]
	if !ok {
		rec = &format.CallEdgeRecord{Caller: caller, Callee: callee}
		w.edges[key] = rec
	}
	rec.Calls = format.SaturatingAdd32(rec.Calls, calls)
	rec.InclusiveTicks = format.SaturatingAdd64(rec.InclusiveTicks, inclusive)
	rec.ExclusiveTicks = format.SaturatingAdd64(rec.ExclusiveTicks, exclusive)
	return nil
}

// Close writes the S, F, D, C and E chunks in that order and closes the
// output. Calling Close again is a no-op.
func (w *Writer) Close() error {
	if w.state == StateClosed {
		return nil
	}
	w.state = StateClosed

	chunks := []struct {
		tag     format.ChunkTag
		payload []byte
	}{
		{format.ChunkLineStats, w.lineStatsPayload()},
		{format.ChunkFiles, w.filesPayload()},
		{format.ChunkSubs, w.subsPayload()},
		{format.ChunkCalls, w.callsPayload()},
	}

	for _, c := range chunks {
		if err := w.writeChunk(c.tag, c.payload); err != nil {
			w.enc.Close()
			return err
		}
	}
	if err := w.writeChunk(format.ChunkEnd, w.endPayload()); err != nil {
		w.enc.Close()
		return err
	}
	if err := w.enc.Close(); err != nil {
		return &format.IOError{Op: "close", Path: w.path, Err: err}
	}
	return nil
}

func (w *Writer) writeChunk(tag format.ChunkTag, raw []byte) error {
	payload := raw
	compressed := w.cfg.CompressThreshold > 0 && tag != format.ChunkEnd
	if compressed {
		var err error
		payload, err = format.EncodePayload(raw, w.cfg.CompressThreshold, format.DefaultCompressLevel)
		if err != nil {
			return &format.IOError{Op: "compress " + tag.String() + " chunk", Path: w.path, Err: err}
		}
	}
	if uint64(len(payload)) > math.MaxUint32 {
		return &format.UsageError{Op: "close", Reason: fmt.Sprintf("%s chunk exceeds 4GiB", tag)}
	}

	w.log.WithFields(logrus.Fields{
		"tag":        tag.String(),
		"len":        len(payload),
		"raw_len":    len(raw),
		"compressed": compressed && len(payload) > 0 && payload[0] == format.PayloadDeflate,
	}).Debug("write chunk")

	if err := w.enc.WriteChunk(tag, payload); err != nil {
		return &format.IOError{Op: "write " + tag.String() + " chunk", Path: w.path, Err: err}
	}
	return nil
}

func (w *Writer) lineStatsPayload() []byte {
	recs := make([]*format.LineStatRecord, 0, len(w.lines))
	for _, r := range w.lines {
		recs = append(recs, r)
	}
	slices.SortFunc(recs, func(a, b *format.LineStatRecord) int {
		return cmp.Or(cmp.Compare(a.FID, b.FID), cmp.Compare(a.Line, b.Line))
	})

	out := make([]byte, 0, len(recs)*format.RecordStride)
	for _, r := range recs {
		out = appendStride(out, r.FID, r.Line, r.Calls, r.InclusiveTicks, r.ExclusiveTicks)
	}
	return out
}

func (w *Writer) callsPayload() []byte {
	recs := make([]*format.CallEdgeRecord, 0, len(w.edges))
	for _, r := range w.edges {
		recs = append(recs, r)
	}
	slices.SortFunc(recs, func(a, b *format.CallEdgeRecord) int {
		return cmp.Or(cmp.Compare(a.Caller, b.Caller), cmp.Compare(a.Callee, b.Callee))
	})

	out := make([]byte, 0, len(recs)*format.RecordStride)
	for _, r := range recs {
		out = appendStride(out, r.Caller, r.Callee, r.Calls, r.InclusiveTicks, r.ExclusiveTicks)
	}
	return out
}

func appendStride(out []byte, a, b, calls uint32, inc, exc uint64) []byte {
	out = binary.LittleEndian.AppendUint32(out, a)
	out = binary.LittleEndian.AppendUint32(out, b)
	out = binary.LittleEndian.AppendUint32(out, calls)
	out = binary.LittleEndian.AppendUint64(out, inc)
	return binary.LittleEndian.AppendUint64(out, exc)
}

func (w *Writer) filesPayload() []byte {
	enc := token.NewEncoder(w.cfg.NVSize)
	enc.U32(uint32(w.files.Len()))
	for _, f := range w.files.Records() {
		enc.NewFID(token.NewFID{
			FID:      f.FID,
			EvalFID:  f.EvalFID,
			EvalLine: f.EvalLine,
			Flags:    f.Flags,
			Size:     f.Size,
			MTime:    f.MTime,
			Name:     token.String{Data: f.Path, UTF8: f.UTF8},
		})
	}

	keys := make([]format.LineKey, 0, len(w.sources))
	for k := range w.sources {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b format.LineKey) int {
		return cmp.Or(cmp.Compare(a.FID, b.FID), cmp.Compare(a.Line, b.Line))
	})
	for _, k := range keys {
		text := w.sources[k]
		enc.SrcLine(token.SrcLine{
			FID:  k.FID,
			Line: k.Line,
			Text: token.String{Data: text, UTF8: !isASCII(text)},
		})
	}
	return enc.Bytes()
}

func (w *Writer) subsPayload() []byte {
	out := w.subs.Names().Serialize()
	enc := token.NewEncoder(w.cfg.NVSize)
	enc.U32(uint32(w.subs.Len()))
	for _, d := range w.subs.Definitions() {
		name, _ := w.subs.NameIndex(d.Name)
		enc.SubInfo(token.SubInfo{
			SID:       d.SID,
			FID:       d.FID,
			FirstLine: d.FirstLine,
			LastLine:  d.LastLine,
			Name:      name,
		})
	}
	return append(out, enc.Bytes()...)
}

func (w *Writer) endPayload() []byte {
	enc := token.NewEncoder(w.cfg.NVSize)
	enc.ProcessEnd(token.ProcessEnd{PID: w.proc.PID, Time: unixSeconds(w.cfg.Now())})
	return enc.Bytes()
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

func clampU32(v int64) uint32 {
	if v < 0 {
		return 0
	}
	if v > math.MaxUint32 {
		return math.MaxUint32
	}
	return uint32(v)
}
