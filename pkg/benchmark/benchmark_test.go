package benchmark

import (
	"bytes"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/danpilch/gonytprof/pkg/format"
	"github.com/danpilch/gonytprof/pkg/reader"
	"github.com/danpilch/gonytprof/pkg/writer"
)

func sampleModel() *format.TraceModel {
	return &format.TraceModel{
		Header:  format.TraceHeader{Attributes: map[string]string{format.AttrApplication: "bench.pl"}},
		Process: format.ProcessInfo{PID: 7, PPID: 1},
		Files:   []format.FileRecord{{FID: 1, Path: "bench.pl"}},
		Defs:    []format.SubroutineDefinition{{SID: 1, FID: 1, FirstLine: 3, LastLine: 9, Name: "main::work"}},
		Calls:   []format.CallEdgeRecord{{Caller: 0, Callee: 1, Calls: 2, InclusiveTicks: 40, ExclusiveTicks: 30}},
		Records: []format.LineStatRecord{
			{FID: 1, Line: 1, Calls: 1, InclusiveTicks: 50, ExclusiveTicks: 10},
			{FID: 1, Line: 4, Calls: 2, InclusiveTicks: 30, ExclusiveTicks: 30},
		},
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	for _, backend := range []writer.Backend{writer.BackendPortable, writer.BackendAccelerated} {
		logger, _ := test.NewNullLogger()
		data, err := Encode(sampleModel(), writer.Config{Backend: backend, Logger: logger})
		require.NoError(t, err, backend)

		m, err := reader.Parse(data)
		require.NoError(t, err, backend)
		require.Equal(t, "bench.pl", m.Header.Attributes[format.AttrApplication])
		require.Equal(t, uint32(7), m.Process.PID)
		require.Len(t, m.Records, 2)
		require.Len(t, m.Calls, 1)
		require.Equal(t, "main::work", m.Defs[0].Name)
	}
}

func TestRun(t *testing.T) {
	logger, _ := test.NewNullLogger()
	results, err := Run(sampleModel(), Options{Iterations: 5, Warmup: 1, CompressThreshold: 1, Logger: logger})
	require.NoError(t, err)
	require.Len(t, results, 4)

	var stages []string
	for _, r := range results {
		stages = append(stages, r.Stage)
		require.Len(t, r.Latencies, 5)
		require.Positive(t, r.Bytes)
		require.LessOrEqual(t, r.P50, r.P95)
		require.LessOrEqual(t, r.P95, r.P99)
	}
	require.Equal(t, []string{"encode/portable", "encode/accelerated", "parse", "verify"}, stages)
	require.Equal(t, results[2].Bytes, results[3].Bytes)
}

func TestPercentile(t *testing.T) {
	sorted := []time.Duration{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	require.Equal(t, time.Duration(5), percentile(sorted, 0.50))
	require.Equal(t, time.Duration(10), percentile(sorted, 0.95))
	require.Equal(t, time.Duration(1), percentile(sorted, 0))
	require.Equal(t, time.Duration(0), percentile(nil, 0.5))
}

func TestRenderResults(t *testing.T) {
	var buf bytes.Buffer
	RenderResults(&buf, []Result{{Stage: "parse", Bytes: 2048, P50: time.Millisecond, Throughput: 2048 * 1000}}, Overhead{AllocBytes: 1 << 20, AllocCount: 1500, GCPauses: 2})
	out := buf.String()
	require.Contains(t, out, "Self-Benchmark Results")
	require.Contains(t, out, "parse")
	require.Contains(t, out, "2.0 KiB")
	require.Contains(t, out, "1.0 MiB")
	require.Contains(t, out, "1,500")
}
