package reader

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/iotest"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/danpilch/gonytprof/pkg/format"
	"github.com/danpilch/gonytprof/pkg/token"
	"github.com/danpilch/gonytprof/pkg/writer"
)

type bufferSink struct {
	bytes.Buffer
}

func (*bufferSink) Close() error { return nil }

var (
	startTime = time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	endTime   = startTime.Add(1500 * time.Millisecond)
)

func writerConfig() writer.Config {
	calls := 0
	return writer.Config{
		Application: "t/test.pl",
		PID:         777,
		PPID:        1,
		Now: func() time.Time {
			calls++
			if calls == 1 {
				return startTime
			}
			return endTime
		},
	}
}

func writeTrace(t *testing.T, cfg writer.Config, fill func(w *writer.Writer)) []byte {
	t.Helper()
	sink := &bufferSink{}
	w, err := writer.New(sink, cfg)
	require.NoError(t, err)
	if fill != nil {
		fill(w)
	}
	require.NoError(t, w.Close())
	return sink.Bytes()
}

func fillSample(t *testing.T) func(w *writer.Writer) {
	return func(w *writer.Writer) {
		main, err := w.AddFileRecord(format.FileRecord{Path: "t/test.pl", Size: 64, MTime: 1714550000})
		require.NoError(t, err)
		mod, err := w.AddFileRecord(format.FileRecord{Path: "lib/Café.pm", Flags: format.FileIsPMC})
		require.NoError(t, err)
		ev, err := w.AddEvalFile(main, 4, "(eval 1)[t/test.pl:4]")
		require.NoError(t, err)
		require.NoError(t, w.AddSourceLine(main, 1, "use Café;"))
		require.NoError(t, w.AddSourceLine(main, 2, "foo();"))

		foo, err := w.DefineSub(main, 3, 5, "main::foo")
		require.NoError(t, err)
		bar, err := w.DefineSub(mod, 10, 12, "Café::bar")
		require.NoError(t, err)
		_, err = w.DefineSub(ev, 1, 1, "main::__ANON__")
		require.NoError(t, err)

		require.NoError(t, w.RecordLine(main, 2, 1, 900, 40))
		require.NoError(t, w.RecordLine(main, 4, 3, 600, 90))
		require.NoError(t, w.RecordLine(mod, 11, 3, 450, 450))
		for i := 0; i < 3; i++ {
			require.NoError(t, w.RecordCallEdge(foo, bar, 150))
		}
		require.NoError(t, w.RecordCallEdgeTimes(0, foo, 1, 880, 430))
	}
}

func TestHeaderRoundTrip(t *testing.T) {
	data := writeTrace(t, writerConfig(), nil)

	info, err := ParseHeader(data)
	require.NoError(t, err)
	require.Equal(t, 5, info.Header.Major)
	require.Equal(t, 0, info.Header.Minor)
	require.Equal(t, uint64(10_000_000), info.Header.TicksPerSec)
	require.Equal(t, 8, info.Header.NVSize)
	require.Equal(t, startTime.Unix(), info.Header.Basetime)
	require.Equal(t, "t/test.pl", info.Header.Attributes[format.AttrApplication])
	require.True(t, info.Header.Flags[format.FlagSubsLineRange])
	require.False(t, info.Header.Compressed())
	require.Len(t, info.Header.Comments, 1)

	require.Equal(t, info.HeaderLen, info.ProcessOffset)
	require.Equal(t, byte('\n'), data[info.HeaderLen-1])
	require.Equal(t, byte('P'), data[info.ProcessOffset])
	require.Equal(t, byte('S'), data[info.FirstChunkOffset])
	require.Equal(t, 1+4+4+8, info.ProcessLen())

	m, err := Parse(data)
	require.NoError(t, err)
	require.Empty(t, m.Records)
	require.Empty(t, m.Files)
	require.Empty(t, m.Defs)
	require.Empty(t, m.Calls)
	require.Equal(t, uint32(777), m.Process.PID)
	require.True(t, m.Process.HasEnd)
	require.Equal(t, 1500*time.Millisecond, m.Process.Duration().Round(time.Millisecond))
}

func TestRoundTrip(t *testing.T) {
	for _, tc := range []struct {
		name       string
		nv         int
		framed     bool
		compress   int
		compressed bool
	}{
		{name: "plain"},
		{name: "nv16", nv: 16},
		{name: "p_framed", framed: true},
		{name: "compressed", compress: 32, compressed: true},
		{name: "compressed stored", compress: 1 << 20, compressed: true},
		{name: "all", nv: 16, framed: true, compress: 1, compressed: true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			cfg := writerConfig()
			cfg.NVSize = tc.nv
			cfg.LegacyFraming = tc.framed
			cfg.CompressThreshold = tc.compress
			data := writeTrace(t, cfg, fillSample(t))

			m, err := Parse(data)
			require.NoError(t, err)
			require.Equal(t, tc.compressed, m.Header.Compressed())
			require.Equal(t, tc.framed, m.Header.PFramed())

			require.Equal(t, uint32(777), m.Process.PID)
			require.Equal(t, uint32(1), m.Process.PPID)
			require.InDelta(t, float64(startTime.Unix()), m.Process.StartTime, 1e-6)
			require.InDelta(t, float64(endTime.UnixNano())/1e9, m.Process.EndTime, 1e-6)

			require.Len(t, m.Files, 3)
			require.Equal(t, "t/test.pl", m.Files[0].Path)
			require.True(t, m.Files[0].HasSource())
			require.Equal(t, uint32(64), m.Files[0].Size)
			require.Equal(t, "lib/Café.pm", m.Files[1].Path)
			require.True(t, m.Files[1].UTF8)
			require.Equal(t, format.FileIsPMC, m.Files[1].Flags)
			require.True(t, m.Files[2].IsEval())
			require.Equal(t, uint32(1), m.Files[2].EvalFID)
			require.Equal(t, uint32(4), m.Files[2].EvalLine)

			require.Equal(t, []format.SourceLine{
				{FID: 1, Line: 1, Text: "use Café;"},
				{FID: 1, Line: 2, Text: "foo();"},
			}, m.Sources)

			require.Equal(t, []format.SubroutineDefinition{
				{SID: 1, FID: 1, FirstLine: 3, LastLine: 5, Name: "main::foo"},
				{SID: 2, FID: 2, FirstLine: 10, LastLine: 12, Name: "Café::bar"},
				{SID: 3, FID: 3, FirstLine: 1, LastLine: 1, Name: "main::__ANON__"},
			}, m.Defs)

			require.Equal(t, []format.LineStatRecord{
				{FID: 1, Line: 2, Calls: 1, InclusiveTicks: 900, ExclusiveTicks: 40},
				{FID: 1, Line: 4, Calls: 3, InclusiveTicks: 600, ExclusiveTicks: 90},
				{FID: 2, Line: 11, Calls: 3, InclusiveTicks: 450, ExclusiveTicks: 450},
			}, m.Records)

			edge, ok := m.Edge(1, 2)
			require.True(t, ok)
			require.Equal(t, uint32(3), edge.Calls)
			require.Equal(t, uint64(450), edge.InclusiveTicks)
			require.Len(t, m.Calls, 2)
		})
	}
}

func TestReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nytprof.out")
	cfg := writerConfig()
	w, err := writer.Open(path, cfg)
	require.NoError(t, err)
	fillSample(t)(w)
	require.NoError(t, w.Close())

	m, err := Read(path)
	require.NoError(t, err)
	require.Len(t, m.Records, 3)

	_, err = Read(filepath.Join(t.TempDir(), "missing.out"))
	require.True(t, format.IsIOError(err))
	require.True(t, errors.Is(err, os.ErrNotExist))
}

func TestTruncationIsDetected(t *testing.T) {
	for _, tc := range []struct {
		name string
		cfg  func(*writer.Config)
	}{
		{"plain", func(*writer.Config) {}},
		{"compressed", func(c *writer.Config) { c.CompressThreshold = 16 }},
	} {
		t.Run(tc.name, func(t *testing.T) {
			cfg := writerConfig()
			tc.cfg(&cfg)
			data := writeTrace(t, cfg, fillSample(t))

			_, err := Parse(data[:len(data)-5])
			require.True(t, format.IsFormatError(err), "got %v", err)

			for n := 0; n < len(data); n++ {
				_, err := Parse(data[:n])
				require.True(t, format.IsFormatError(err), "prefix %d: got %v", n, err)

				_, err = Verify(bytes.NewReader(data[:n]))
				require.True(t, format.IsFormatError(err), "verify prefix %d: got %v", n, err)
			}
		})
	}
}

func TestTrailingBytesIgnored(t *testing.T) {
	data := writeTrace(t, writerConfig(), fillSample(t))
	padded := append(bytes.Clone(data), 0, 0, 0, 0, 'X')

	m, err := Parse(padded)
	require.NoError(t, err)
	require.Len(t, m.Records, 3)

	res, err := Verify(bytes.NewReader(padded))
	require.NoError(t, err)
	require.Equal(t, int64(len(data)), res.Size)
}

// synthetic builds a trace with a standard banner and the given raw
// chunk bytes.
func synthetic(chunks ...[]byte) []byte {
	b := writer.Banner(writer.BannerInfo{Generated: startTime, Application: "x", NVSize: 8})
	b = token.AppendProcessStart(b, token.ProcessStart{PID: 9, PPID: 1, Time: 1.5}, 8)
	for _, c := range chunks {
		b = append(b, c...)
	}
	return b
}

func rawChunk(tag byte, payload []byte) []byte {
	out := []byte{tag}
	out = binary.LittleEndian.AppendUint32(out, uint32(len(payload)))
	return append(out, payload...)
}

func TestChunkErrors(t *testing.T) {
	emptyS := rawChunk('S', nil)
	emptyF := rawChunk('F', []byte{0})
	emptyD := rawChunk('D', []byte{0, 0})
	emptyC := rawChunk('C', nil)
	end := rawChunk('E', nil)
	firstChunk := int64(len(synthetic()))
	// offsets of F, D, C and E in a body of empty chunks
	atF, atD := firstChunk+5, firstChunk+11
	atC, atE := firstChunk+18, firstChunk+23

	for _, tc := range []struct {
		name   string
		data   []byte
		reason string
		offset int64
	}{
		{
			name:   "misaligned S",
			data:   synthetic(rawChunk('S', make([]byte, 27)), emptyF, emptyD, emptyC, end),
			reason: "misaligned S chunk: 27 bytes is not a multiple of 28",
			offset: firstChunk + 5,
		},
		{
			name:   "misaligned C",
			data:   synthetic(emptyS, emptyF, emptyD, rawChunk('C', make([]byte, 29)), end),
			reason: "misaligned C chunk: 29 bytes is not a multiple of 28",
			offset: atC + 5,
		},
		{
			name:   "unknown tag",
			data:   synthetic(rawChunk('X', nil), end),
			reason: "unknown token 0x58",
			offset: firstChunk,
		},
		{
			name:   "out of order",
			data:   synthetic(emptyS, emptyF, emptyS, emptyD, emptyC, end),
			reason: "chunk out of order: S after F",
			offset: atD,
		},
		{
			name:   "duplicate",
			data:   synthetic(emptyS, emptyF, emptyF, emptyD, emptyC, end),
			reason: "chunk out of order: F after F",
			offset: atD,
		},
		{
			name:   "end only",
			data:   synthetic(end),
			reason: "missing S chunk",
			offset: firstChunk,
		},
		{
			name:   "missing middle chunk",
			data:   synthetic(emptyS, emptyF, emptyC, end),
			reason: "missing D chunk",
			offset: atD,
		},
		{
			name:   "missing calls",
			data:   synthetic(emptyS, emptyF, emptyD, end),
			reason: "missing C chunk",
			offset: atC,
		},
		{
			name:   "missing end",
			data:   synthetic(emptyS, emptyF, emptyD, emptyC),
			reason: "missing end chunk",
			offset: atE,
		},
		{
			name:   "truncated length",
			data:   synthetic(emptyS, []byte{'F', 0, 0}),
			reason: "truncated length in F chunk",
			offset: atF + 1,
		},
		{
			name:   "truncated payload",
			data:   synthetic(rawChunk('S', make([]byte, 28))[:20]),
			reason: "truncated payload in S chunk: need 28 bytes, have 15",
			offset: firstChunk + 5,
		},
		{
			name:   "bad file token",
			data:   synthetic(emptyS, rawChunk('F', []byte{1, 'S', 1, 1, '\'', 0}), emptyD, emptyC, end),
			reason: "expected NEW_FID token in F chunk, found SRC_LINE",
			offset: atF + 6,
		},
		{
			name:   "sub name out of range",
			data:   synthetic(emptyS, emptyF, rawChunk('D', []byte{0, 1, 's', 1, 0, 1, 1, 3}), emptyC, end),
			reason: "subroutine name index 3 out of range (0 names)",
			offset: atD + 7,
		},
		{
			name:   "trailing end bytes",
			data:   synthetic(emptyS, emptyF, emptyD, emptyC, rawChunk('E', []byte{'p', 9, 0, 0, 0, 0, 0, 0, 0, 0, 0xAA})),
			reason: "trailing bytes in E chunk",
			offset: atE + 5 + 10,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(tc.data)
			var fe *format.FormatError
			require.ErrorAs(t, err, &fe)
			require.Equal(t, tc.reason, fe.Reason)
			require.Equal(t, tc.offset, fe.Offset)
		})
	}
}

func TestSplicedOutChunk(t *testing.T) {
	data := writeTrace(t, writerConfig(), fillSample(t))
	chunks, err := ScanChunks(data)
	require.NoError(t, err)

	for i, c := range chunks {
		t.Run("without "+c.Tag.String(), func(t *testing.T) {
			spliced := append(bytes.Clone(data[:c.Offset]), data[c.End():]...)
			want := fmt.Sprintf("missing %s chunk", c.Tag)
			if c.Tag == format.ChunkEnd {
				want = "missing end chunk"
			}

			_, err := Parse(spliced)
			var fe *format.FormatError
			require.ErrorAs(t, err, &fe)
			require.Equal(t, want, fe.Reason)
			require.Equal(t, c.Offset, fe.Offset)

			_, err = Verify(bytes.NewReader(spliced))
			require.ErrorAs(t, err, &fe)
			require.Equal(t, want, fe.Reason)
			require.Equal(t, c.Offset, fe.Offset, "chunk %d", i)
		})
	}

	// banner, process start and end alone are corrupt, not an empty profile
	end := chunks[len(chunks)-1]
	bare := append(bytes.Clone(data[:chunks[0].Offset]), data[end.Offset:end.End()]...)
	_, err = Parse(bare)
	require.True(t, format.IsFormatError(err))
}

func TestLongHeaderLine(t *testing.T) {
	proc := token.AppendProcessStart(nil, token.ProcessStart{PID: 1}, 8)
	body := append(rawChunk('S', nil), rawChunk('F', []byte{0})...)
	body = append(body, rawChunk('D', []byte{0, 0})...)
	body = append(body, rawChunk('C', nil)...)
	body = append(body, rawChunk('E', nil)...)
	build := func(comment int) []byte {
		data := []byte("NYTProf 5 0\n#" + strings.Repeat("c", comment) + "\n:nv_size=8\n")
		return append(append(data, proc...), body...)
	}

	ok := build(4000)
	_, err := Parse(ok)
	require.NoError(t, err)
	_, err = Verify(bytes.NewReader(ok))
	require.NoError(t, err)

	// Parse and Verify agree on the limit
	long := build(maxHeaderLine)
	_, err = Parse(long)
	var fe *format.FormatError
	require.ErrorAs(t, err, &fe)
	require.Equal(t, fmt.Sprintf("header line exceeds %d bytes", maxHeaderLine), fe.Reason)
	require.Equal(t, int64(12), fe.Offset)

	_, err = Verify(bytes.NewReader(long))
	require.ErrorAs(t, err, &fe)
	require.Equal(t, fmt.Sprintf("header line exceeds %d bytes", maxHeaderLine), fe.Reason)
	require.Equal(t, int64(12), fe.Offset)
}

func TestHeaderErrors(t *testing.T) {
	proc := token.AppendProcessStart(nil, token.ProcessStart{PID: 1}, 8)
	build := func(banner string) []byte {
		return append([]byte(banner), proc...)
	}

	for _, tc := range []struct {
		name   string
		data   []byte
		reason string
		offset int64
	}{
		{"empty", nil, "truncated header", 0},
		{"bad magic", build("NYTPROF 5 0\n:nv_size=8\n"), `bad header: "NYTPROF 5 0"`, 0},
		{"bad version", build("NYTProf 4 1\n:nv_size=8\n"), "bad header: unsupported version 4.1", 0},
		{"malformed line", build("NYTProf 5 0\n:nv_size=8\nhello\n"), `malformed header line "hello"`, 23},
		{"blank line", build("NYTProf 5 0\n:nv_size=8\n\n"), "malformed header line: blank line", 23},
		{"attribute without value", build("NYTProf 5 0\n:nv_size\n"), `malformed attribute line ":nv_size"`, 12},
		{"bad flag", build("NYTProf 5 0\n:nv_size=8\n!compressed=maybe\n"), `malformed flag line "!compressed=maybe"`, 23},
		{"missing nv_size", build("NYTProf 5 0\n#c\n"), "missing nv_size attribute", 15},
		{"unsupported nv_size", build("NYTProf 5 0\n:nv_size=12\n"), `unsupported nv_size "12"`, 24},
		{"no newline", []byte("NYTProf 5 0"), "truncated header", 11},
		{"non-ascii", build("NYTProf 5 0\n:application=caf\xc3\xa9\n:nv_size=8\n"), "non-ASCII byte 0xc3 in header", 28},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseHeader(tc.data)
			var fe *format.FormatError
			require.ErrorAs(t, err, &fe)
			require.Equal(t, tc.reason, fe.Reason)
			require.Equal(t, tc.offset, fe.Offset)

			_, err = Verify(bytes.NewReader(tc.data))
			require.ErrorAs(t, err, &fe)
			require.Equal(t, tc.reason, fe.Reason)
		})
	}
}

func TestMinimalHeader(t *testing.T) {
	data := []byte("NYTProf 5 0\n:nv_size=16\n!p_framed=1\n")
	data = append(data, 'P')
	data = binary.LittleEndian.AppendUint32(data, 8+16)
	data = binary.LittleEndian.AppendUint32(data, 31)
	data = binary.LittleEndian.AppendUint32(data, 30)
	data = format.AppendNV(data, 42.25, 16)
	for _, c := range [][]byte{rawChunk('S', nil), rawChunk('F', []byte{0}), rawChunk('D', []byte{0, 0}), rawChunk('C', nil), rawChunk('E', nil)} {
		data = append(data, c...)
	}

	info, err := ParseHeader(data)
	require.NoError(t, err)
	require.Equal(t, uint64(format.TicksPerSecond), info.Header.TicksPerSec)
	require.Equal(t, 36, info.HeaderLen)
	require.Equal(t, 36+1+4+4+4+16, info.FirstChunkOffset)

	m, err := Parse(data)
	require.NoError(t, err)
	require.Equal(t, uint32(31), m.Process.PID)
	require.Equal(t, 42.25, m.Process.StartTime)
	require.False(t, m.Process.HasEnd)

	// wrong length word
	binary.LittleEndian.PutUint32(data[37:], 12)
	_, err = Parse(data)
	require.True(t, format.IsFormatError(err))
	require.Equal(t, int64(37), format.OffsetOf(err))
}

func TestScanChunks(t *testing.T) {
	data := writeTrace(t, writerConfig(), fillSample(t))
	chunks, err := ScanChunks(data)
	require.NoError(t, err)

	var tags strings.Builder
	for i, c := range chunks {
		tags.WriteByte(byte(c.Tag))
		require.Equal(t, byte(c.Tag), data[c.Offset])
		require.Equal(t, c.Len, binary.LittleEndian.Uint32(data[c.Offset+1:]))
		if i > 0 {
			require.Equal(t, chunks[i-1].End(), c.Offset)
		}
	}
	require.Equal(t, "SFDCE", tags.String())
	require.Equal(t, int64(len(data)), chunks[len(chunks)-1].End())
	require.Equal(t, uint32(3*format.RecordStride), chunks[0].Len)

	res, err := Verify(bytes.NewReader(data))
	require.NoError(t, err)
	require.Equal(t, chunks, res.Chunks)
	require.Equal(t, "SFDCE", res.Tags())
	require.Equal(t, uint32(777), res.Process.PID)
}

func TestVerifyReadError(t *testing.T) {
	_, err := Verify(iotest.ErrReader(errors.New("disk on fire")))
	require.True(t, format.IsIOError(err))
	require.False(t, format.IsFormatError(err))
}

func TestVerifyStride(t *testing.T) {
	_, err := Verify(bytes.NewReader(synthetic(rawChunk('S', make([]byte, 30)), rawChunk('E', nil))))
	var fe *format.FormatError
	require.ErrorAs(t, err, &fe)
	require.Equal(t, "misaligned S chunk: 30 bytes is not a multiple of 28", fe.Reason)
}

func TestCopyModelReproducesTrace(t *testing.T) {
	for name, cfg := range map[string]func() writer.Config{
		"plain": writerConfig,
		"compressed nv16": func() writer.Config {
			c := writerConfig()
			c.NVSize = 16
			c.CompressThreshold = 16
			return c
		},
	} {
		t.Run(name, func(t *testing.T) {
			original := writeTrace(t, cfg(), fillSample(t))
			m, err := Parse(original)
			require.NoError(t, err)

			copied := writeTrace(t, cfg(), func(w *writer.Writer) {
				require.NoError(t, writer.CopyModel(w, m))
			})
			require.Equal(t, original, copied)
		})
	}
}

func TestCopyModelRemapsIDs(t *testing.T) {
	m := &format.TraceModel{
		Files: []format.FileRecord{
			{FID: 7, Path: "a.pl"},
			{FID: 9, Path: "(eval 3)", EvalFID: 7, EvalLine: 2, Flags: format.FileIsEval},
		},
		Sources: []format.SourceLine{{FID: 7, Line: 1, Text: "x();"}},
		Defs:    []format.SubroutineDefinition{{SID: 40, FID: 9, FirstLine: 1, LastLine: 1, Name: "main::x"}},
		Records: []format.LineStatRecord{{FID: 9, Line: 1, Calls: 2, InclusiveTicks: 5, ExclusiveTicks: 5}},
		Calls:   []format.CallEdgeRecord{{Caller: 0, Callee: 40, Calls: 2, InclusiveTicks: 5}},
	}
	got, err := Parse(writeTrace(t, writerConfig(), func(w *writer.Writer) {
		require.NoError(t, writer.CopyModel(w, m))
	}))
	require.NoError(t, err)

	require.Equal(t, uint32(1), got.Files[0].FID)
	require.True(t, got.Files[0].HasSource())
	require.Equal(t, uint32(2), got.Files[1].FID)
	require.Equal(t, uint32(1), got.Files[1].EvalFID)
	require.Equal(t, uint32(2), got.Defs[0].FID)
	require.Equal(t, uint32(1), got.Defs[0].SID)
	require.Equal(t, []format.LineStatRecord{{FID: 2, Line: 1, Calls: 2, InclusiveTicks: 5, ExclusiveTicks: 5}}, got.Records)
	require.Equal(t, []format.CallEdgeRecord{{Caller: 0, Callee: 1, Calls: 2, InclusiveTicks: 5}}, got.Calls)

	bad := &format.TraceModel{Records: []format.LineStatRecord{{FID: 3, Line: 1}}}
	sink := &bufferSink{}
	w, err := writer.New(sink, writerConfig())
	require.NoError(t, err)
	require.ErrorContains(t, writer.CopyModel(w, bad), "unknown fid 3")

	orphan := &format.TraceModel{Files: []format.FileRecord{{FID: 2, Path: "(eval 1)", EvalFID: 1}}}
	require.ErrorContains(t, writer.CopyModel(w, orphan), "eval parent fid 1")
}

func TestCopyModelUndefinedCallee(t *testing.T) {
	// sid 1 is undefined here and would alias main::foo once foo is
	// renumbered to 1
	m := &format.TraceModel{
		Defs: []format.SubroutineDefinition{{SID: 5, Name: "main::foo"}},
		Calls: []format.CallEdgeRecord{
			{Caller: 5, Callee: 1, Calls: 2, InclusiveTicks: 9, ExclusiveTicks: 4},
			{Caller: 0, Callee: 5, Calls: 1, InclusiveTicks: 10},
		},
	}
	got, err := Parse(writeTrace(t, writerConfig(), func(w *writer.Writer) {
		require.NoError(t, writer.CopyModel(w, m))
	}))
	require.NoError(t, err)

	foo, ok := got.DefByName("main::foo")
	require.True(t, ok)
	placeholder, ok := got.DefByName("sub#1")
	require.True(t, ok)
	require.NotEqual(t, foo.SID, placeholder.SID)
	require.Equal(t, uint32(0), placeholder.FID)

	edge, ok := got.Edge(foo.SID, placeholder.SID)
	require.True(t, ok)
	require.Equal(t, uint32(2), edge.Calls)
	require.Equal(t, uint64(4), edge.ExclusiveTicks)
	_, ok = got.Edge(foo.SID, foo.SID)
	require.False(t, ok)
	_, ok = got.Edge(0, foo.SID)
	require.True(t, ok)
}
