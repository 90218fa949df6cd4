// Package benchmark measures how long the writer and reader take on a
// given trace, so encoder changes can be checked against real data.
package benchmark

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"

	"github.com/danpilch/gonytprof/pkg/format"
	"github.com/danpilch/gonytprof/pkg/reader"
	"github.com/danpilch/gonytprof/pkg/writer"
)

// Options configures a benchmark run.
type Options struct {
	Iterations int
	Warmup     int

	// CompressThreshold is passed to the writer for the encode stages.
	CompressThreshold int

	Logger *logrus.Logger
}

// DefaultOptions returns sensible benchmark defaults.
func DefaultOptions() Options {
	return Options{
		Iterations: 20,
		Warmup:     3,
	}
}

// Result holds benchmark results for a single stage.
type Result struct {
	Stage     string
	Bytes     int
	Latencies []time.Duration
	P50       time.Duration
	P95       time.Duration
	P99       time.Duration
	// Throughput is in bytes per second at P50.
	Throughput float64
}

// Overhead holds the tool's own resource usage.
type Overhead struct {
	AllocBytes uint64
	AllocCount uint64
	GCPauses   uint32
}

var (
	bmTitle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	bmHeader = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("62")).Padding(0, 1)
	bmDim    = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

type stage struct {
	name string
	run  func() (int, error)
}

type nopCloser struct{ *bytes.Buffer }

func (nopCloser) Close() error { return nil }

// Encode writes m through a fresh writer configured by cfg and returns
// the encoded trace. The application and process ids come from m unless
// cfg sets them.
func Encode(m *format.TraceModel, cfg writer.Config) ([]byte, error) {
	if cfg.Application == "" {
		cfg.Application = m.Header.Attributes[format.AttrApplication]
	}
	if cfg.PID == 0 {
		cfg.PID, cfg.PPID = m.Process.PID, m.Process.PPID
	}

	var buf bytes.Buffer
	w, err := writer.New(nopCloser{&buf}, cfg)
	if err != nil {
		return nil, err
	}
	if err := writer.CopyModel(w, m); err != nil {
		w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Run benchmarks encoding m with each backend, then parsing and
// verifying the encoded bytes.
func Run(m *format.TraceModel, opts Options) ([]Result, error) {
	cfg := func(backend writer.Backend) writer.Config {
		return writer.Config{Backend: backend, CompressThreshold: opts.CompressThreshold, Logger: opts.Logger}
	}
	encoded, err := Encode(m, cfg(writer.BackendPortable))
	if err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}

	encodeWith := func(backend writer.Backend) func() (int, error) {
		return func() (int, error) {
			out, err := Encode(m, cfg(backend))
			return len(out), err
		}
	}
	stages := []stage{
		{"encode/portable", encodeWith(writer.BackendPortable)},
		{"encode/accelerated", encodeWith(writer.BackendAccelerated)},
		{"parse", func() (int, error) {
			_, err := reader.Parse(encoded)
			return len(encoded), err
		}},
		{"verify", func() (int, error) {
			_, err := reader.Verify(bytes.NewReader(encoded))
			return len(encoded), err
		}},
	}

	var results []Result
	for _, st := range stages {
		for i := 0; i < opts.Warmup; i++ {
			if _, err := st.run(); err != nil {
				return nil, fmt.Errorf("%s: %w", st.name, err)
			}
		}

		latencies := make([]time.Duration, opts.Iterations)
		var n int
		for i := 0; i < opts.Iterations; i++ {
			start := time.Now()
			n, err = st.run()
			latencies[i] = time.Since(start)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", st.name, err)
			}
		}

		sort.Slice(latencies, func(i, j int) bool {
			return latencies[i] < latencies[j]
		})

		result := Result{
			Stage:     st.name,
			Bytes:     n,
			Latencies: latencies,
			P50:       percentile(latencies, 0.50),
			P95:       percentile(latencies, 0.95),
			P99:       percentile(latencies, 0.99),
		}
		if result.P50 > 0 {
			result.Throughput = float64(n) / result.P50.Seconds()
		}
		results = append(results, result)
	}
	return results, nil
}

// MeasureOverhead returns the tool's memory overhead so far.
func MeasureOverhead() Overhead {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return Overhead{
		AllocBytes: m.TotalAlloc,
		AllocCount: m.Mallocs,
		GCPauses:   m.NumGC,
	}
}

// RenderResults outputs styled benchmark results.
func RenderResults(w io.Writer, results []Result, overhead Overhead) {
	fmt.Fprintln(w, bmTitle.Render("Self-Benchmark Results"))
	fmt.Fprintln(w, bmDim.Render(strings.Repeat("═", 80)))
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  %s %s %s %s %s %s\n",
		bmHeader.Render("STAGE              "),
		bmHeader.Render("SIZE      "),
		bmHeader.Render("P50        "),
		bmHeader.Render("P95        "),
		bmHeader.Render("P99        "),
		bmHeader.Render("RATE      "))
	fmt.Fprintln(w, "  "+bmDim.Render(strings.Repeat("─", 80)))

	for _, r := range results {
		rate := "-"
		if r.Throughput > 0 {
			rate = humanize.IBytes(uint64(r.Throughput)) + "/s"
		}
		fmt.Fprintf(w, "  %-20s %-11s %-12v %-12v %-12v %s\n",
			r.Stage, humanize.IBytes(uint64(r.Bytes)), r.P50, r.P95, r.P99, rate)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, bmTitle.Render("Tool Overhead"))
	fmt.Fprintln(w, bmDim.Render(strings.Repeat("─", 40)))
	fmt.Fprintf(w, "  Memory allocated: %s\n", lipgloss.NewStyle().Bold(true).Render(humanize.IBytes(overhead.AllocBytes)))
	fmt.Fprintf(w, "  Allocations:      %s\n", lipgloss.NewStyle().Bold(true).Render(humanize.Comma(int64(overhead.AllocCount))))
	fmt.Fprintf(w, "  GC pauses:        %s\n", lipgloss.NewStyle().Bold(true).Render(fmt.Sprintf("%d", overhead.GCPauses)))
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
