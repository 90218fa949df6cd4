// Package debug provides diagnostics for trace files and the writer:
// hexdumps around failing offsets, chunk listings and encoder timing.
package debug

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// HexdumpContext is the number of bytes shown either side of an offset.
const HexdumpContext = 32

// TraceLogger writes step-by-step diagnostics for decode failures.
type TraceLogger struct {
	mu      sync.Mutex
	writer  io.Writer
	enabled bool
	now     func() time.Time
}

// NewTraceLogger creates a trace logger writing to w, or stderr when w
// is nil.
func NewTraceLogger(w io.Writer) *TraceLogger {
	if w == nil {
		w = defaultTraceWriter()
	}
	return &TraceLogger{
		writer:  w,
		enabled: true,
		now:     time.Now,
	}
}

// SetEnabled turns output on or off.
func (t *TraceLogger) SetEnabled(on bool) {
	t.mu.Lock()
	t.enabled = on
	t.mu.Unlock()
}

// Log records a trace entry for one step.
func (t *TraceLogger) Log(stage, step, detail string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.enabled {
		return
	}
	fmt.Fprintf(t.writer, "[TRACE %s] %s: %s - %s\n",
		t.now().Format("15:04:05.000"), stage, step, detail)
}

// HexdumpAround logs the bytes of data within HexdumpContext of offset.
func (t *TraceLogger) HexdumpAround(data []byte, offset int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.enabled {
		return
	}
	fmt.Fprint(t.writer, HexdumpAround(data, offset, HexdumpContext))
}

// Hexdump renders data as 16-byte rows: offset, hex bytes and printable
// ASCII. base is added to the offsets shown.
func Hexdump(data []byte, base int64) string {
	var b strings.Builder
	for i := 0; i < len(data); i += 16 {
		row := data[i:min(i+16, len(data))]
		hexRow(&b, base+int64(i), row)
	}
	return b.String()
}

// HexdumpAround renders the rows covering [offset-ctx, offset+ctx).
// Rows are aligned to 16 bytes so offsets line up with a full dump.
func HexdumpAround(data []byte, offset int64, ctx int) string {
	start := max(offset-int64(ctx), 0) &^ 15
	end := min(offset+int64(ctx), int64(len(data)))
	if start >= end {
		return ""
	}
	return Hexdump(data[start:end], start)
}

func hexRow(b *strings.Builder, off int64, row []byte) {
	fmt.Fprintf(b, "%08x: ", off)
	for i := 0; i < 16; i++ {
		if i < len(row) {
			fmt.Fprintf(b, "%02x", row[i])
		} else {
			b.WriteString("  ")
		}
		if i < 15 {
			b.WriteByte(' ')
		}
	}
	b.WriteByte(' ')
	for _, c := range row {
		if c >= 0x20 && c < 0x7F {
			b.WriteByte(c)
		} else {
			b.WriteByte('.')
		}
	}
	b.WriteByte('\n')
}

// defaultTraceWriter returns stderr for trace output.
func defaultTraceWriter() io.Writer {
	return os.Stderr
}
