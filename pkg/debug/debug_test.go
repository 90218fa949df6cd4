package debug

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/danpilch/gonytprof/pkg/format"
	"github.com/danpilch/gonytprof/pkg/reader"
	"github.com/danpilch/gonytprof/pkg/writer"
)

type bufferSink struct {
	bytes.Buffer
}

func (b *bufferSink) Close() error { return nil }

func writeSample(t *testing.T, wrap func(writer.Encoder) writer.Encoder) []byte {
	t.Helper()
	sink := &bufferSink{}
	w, err := writer.New(sink, writer.Config{
		Backend:     writer.BackendPortable,
		Application: "app.pl",
		PID:         7,
		PPID:        1,
		Now:         func() time.Time { return time.Unix(1700000000, 0) },
		WrapEncoder: wrap,
	})
	require.NoError(t, err)
	fid, err := w.AddFileRecord(format.FileRecord{Path: "app.pl"})
	require.NoError(t, err)
	_, err = w.DefineSub(fid, 1, 3, "main::run")
	require.NoError(t, err)
	require.NoError(t, w.RecordLine(fid, 2, 1, 40, 40))
	require.NoError(t, w.Close())
	return sink.Bytes()
}

func TestHexdump(t *testing.T) {
	data := append([]byte("NYTProf 5 0\n"), 0x00, 0x01, 0x02, 0x03, 'a', 'b', 'c')
	got := Hexdump(data, 0)
	require.Equal(t,
		"00000000: 4e 59 54 50 72 6f 66 20 35 20 30 0a 00 01 02 03 NYTProf 5 0.....\n"+
			"00000010: 61 62 63"+strings.Repeat(" ", 39)+" abc\n",
		got)
}

func TestHexdumpAround(t *testing.T) {
	data := make([]byte, 100)
	for i := range data {
		data[i] = byte(i)
	}

	got := HexdumpAround(data, 50, 8)
	lines := strings.Split(strings.TrimSuffix(got, "\n"), "\n")
	require.Len(t, lines, 2)
	require.True(t, strings.HasPrefix(lines[0], "00000020: 20 21"))
	require.True(t, strings.HasPrefix(lines[1], "00000030: 30 31"))
	require.True(t, strings.HasSuffix(lines[1], "0123456789"))

	require.True(t, strings.HasPrefix(HexdumpAround(data, 3, HexdumpContext), "00000000: 00 01"))
	require.Empty(t, HexdumpAround(data, 1000, HexdumpContext))
}

func TestTraceLogger(t *testing.T) {
	var buf bytes.Buffer
	tl := NewTraceLogger(&buf)
	tl.now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 6_000_000, time.UTC) }

	tl.Log("parse", "chunk", "S at 0x40")
	tl.HexdumpAround([]byte("abc"), 1)
	require.Equal(t,
		"[TRACE 03:04:05.006] parse: chunk - S at 0x40\n"+
			"00000000: 61 62 63"+strings.Repeat(" ", 39)+" abc\n",
		buf.String())

	buf.Reset()
	tl.SetEnabled(false)
	tl.Log("parse", "chunk", "ignored")
	tl.HexdumpAround([]byte("abc"), 1)
	require.Empty(t, buf.String())
}

func TestDumpChunks(t *testing.T) {
	res, err := reader.Verify(bytes.NewReader(writeSample(t, nil)))
	require.NoError(t, err)

	var buf bytes.Buffer
	DumpChunks(&buf, res)
	out := buf.String()
	require.Contains(t, out, "Trace Layout")
	require.Contains(t, out, "NYTProf 5.0")
	require.Contains(t, out, "application")
	require.Contains(t, out, "pid=7 ppid=1")
	for _, kind := range []string{"line stats", "files", "subroutines", "call edges", "end"} {
		require.Contains(t, out, kind)
	}
	require.Contains(t, out, fmt.Sprintf("0x%08x", res.Chunks[0].Offset))
}

func TestChunkKind(t *testing.T) {
	require.Equal(t, "files", ChunkKind(format.ChunkFiles))
	require.Equal(t, "unknown", ChunkKind(format.ChunkTag('X')))
}

func TestTimedEncoder(t *testing.T) {
	var timed *TimedEncoder
	data := writeSample(t, func(e writer.Encoder) writer.Encoder {
		timed = NewTimedEncoder(e)
		return timed
	})
	require.NotNil(t, timed)
	require.Equal(t, string(writer.BackendPortable), timed.Name())

	timings := timed.Timings()
	var names []string
	total := 0
	for _, wt := range timings {
		names = append(names, wt.Name)
		require.GreaterOrEqual(t, wt.Duration, time.Duration(0))
		total += wt.Bytes
	}
	require.Equal(t, []string{
		"header", "S line stats", "F files", "D subroutines", "C call edges", "E end", "flush",
	}, names)

	res, err := reader.Verify(bytes.NewReader(data))
	require.NoError(t, err)
	for i, c := range res.Chunks {
		require.Equal(t, format.ChunkHeaderLen+int(c.Len), timings[i+1].Bytes)
	}

	var buf bytes.Buffer
	TimingReport(&buf, timings)
	require.Contains(t, buf.String(), "Encoder Timing Report")
	require.Contains(t, buf.String(), "S line stats")
	require.Contains(t, buf.String(), "TOTAL")
}

func TestPprofServer(t *testing.T) {
	logger, hook := test.NewNullLogger()
	s, err := StartPprofServer("127.0.0.1:0", logger)
	require.NoError(t, err)
	defer s.Stop()

	resp, err := http.Get("http://" + s.Addr() + "/debug/pprof/")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.Eventually(t, func() bool {
		for _, e := range hook.AllEntries() {
			if e.Message == "pprof server starting" {
				return true
			}
		}
		return false
	}, time.Second, 10*time.Millisecond)
}

func TestPprofServerBadAddress(t *testing.T) {
	s, err := StartPprofServer("127.0.0.1:0", nil)
	require.NoError(t, err)
	defer s.Stop()

	_, err = StartPprofServer(s.Addr(), nil)
	require.ErrorContains(t, err, "pprof server failed")
}
