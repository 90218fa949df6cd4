package debug

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/danpilch/gonytprof/pkg/format"
	"github.com/danpilch/gonytprof/pkg/token"
	"github.com/danpilch/gonytprof/pkg/writer"
)

// WriteTiming records how long one encoder call took.
type WriteTiming struct {
	Name     string
	Bytes    int
	Duration time.Duration
}

// TimedEncoder wraps a writer.Encoder to record the duration of every
// header and chunk write.
type TimedEncoder struct {
	inner writer.Encoder
	now   func() time.Time

	mu      sync.Mutex
	timings []WriteTiming
}

// NewTimedEncoder wraps an encoder with timing instrumentation.
func NewTimedEncoder(e writer.Encoder) *TimedEncoder {
	return &TimedEncoder{inner: e, now: time.Now}
}

// Name returns the wrapped encoder's name.
func (t *TimedEncoder) Name() string {
	return t.inner.Name()
}

func (t *TimedEncoder) WriteHeader(banner []byte, proc token.ProcessStart, layout writer.Layout) error {
	start := t.now()
	err := t.inner.WriteHeader(banner, proc, layout)
	t.add(WriteTiming{Name: "header", Bytes: len(banner), Duration: t.now().Sub(start)})
	return err
}

func (t *TimedEncoder) WriteChunk(tag format.ChunkTag, payload []byte) error {
	start := t.now()
	err := t.inner.WriteChunk(tag, payload)
	t.add(WriteTiming{
		Name:     fmt.Sprintf("%s %s", tag, ChunkKind(tag)),
		Bytes:    format.ChunkHeaderLen + len(payload),
		Duration: t.now().Sub(start),
	})
	return err
}

func (t *TimedEncoder) Close() error {
	start := t.now()
	err := t.inner.Close()
	t.add(WriteTiming{Name: "flush", Duration: t.now().Sub(start)})
	return err
}

// Timings returns the recorded timings in call order.
func (t *TimedEncoder) Timings() []WriteTiming {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]WriteTiming(nil), t.timings...)
}

func (t *TimedEncoder) add(wt WriteTiming) {
	t.mu.Lock()
	t.timings = append(t.timings, wt)
	t.mu.Unlock()
}

// TimingReport prints a styled timing summary of encoder writes.
func TimingReport(w io.Writer, timings []WriteTiming) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, debugTitle.Render("Encoder Timing Report"))
	fmt.Fprintln(w, debugDim.Render(strings.Repeat("═", 52)))
	fmt.Fprintf(w, "  %s  %s  %s\n",
		debugHeader.Render("WRITE              "),
		debugHeader.Render("BYTES     "),
		debugHeader.Render("DURATION    "))
	fmt.Fprintln(w, "  "+debugDim.Render(strings.Repeat("─", 52)))

	var (
		total time.Duration
		bytes uint64
	)
	for _, t := range timings {
		fmt.Fprintf(w, "  %-20s %-11s %v\n", t.Name, humanize.IBytes(uint64(t.Bytes)), t.Duration)
		total += t.Duration
		bytes += uint64(t.Bytes)
	}
	fmt.Fprintln(w, "  "+debugDim.Render(strings.Repeat("─", 52)))
	fmt.Fprintf(w, "  %-20s %-11s %v\n",
		lipgloss.NewStyle().Bold(true).Render("TOTAL"), humanize.IBytes(bytes), total)
}
