// Package reader parses NYTProf-compatible trace files into a
// format.TraceModel. Parsing is strict: any deviation from the on-disk
// contract is reported as a *format.FormatError carrying the byte offset
// where it was detected, never as a partially populated model.
package reader

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	"github.com/danpilch/gonytprof/pkg/format"
	"github.com/danpilch/gonytprof/pkg/token"
)

// HeaderInfo locates the parts of a trace file that precede the chunks.
type HeaderInfo struct {
	Header format.TraceHeader

	// HeaderLen is the banner length in bytes, final newline included.
	HeaderLen int

	// ProcessOffset is where the process-start record begins. It always
	// equals HeaderLen.
	ProcessOffset int

	// FirstChunkOffset is the byte just past the process-start record.
	FirstChunkOffset int
}

// ProcessLen returns the size of the process-start record.
func (h HeaderInfo) ProcessLen() int {
	return h.FirstChunkOffset - h.ProcessOffset
}

// ParseHeader validates the banner at the start of data and computes the
// offsets of the process-start record and the first chunk. It does not
// require the process-start record itself to be present.
func ParseHeader(data []byte) (HeaderInfo, error) {
	var p bannerParser
	off := 0
	for {
		if off >= len(data) {
			return HeaderInfo{}, format.Errorf(int64(off), "truncated header")
		}
		if p.lines > 0 && data[off] == byte(format.ChunkProcess) {
			break
		}
		end := bytes.IndexByte(data[off:], '\n')
		if end+1 > maxHeaderLine || (end < 0 && len(data)-off >= maxHeaderLine) {
			return HeaderInfo{}, format.Errorf(int64(off), "header line exceeds %d bytes", maxHeaderLine)
		}
		if end < 0 {
			if err := checkASCII(data[off:], int64(off)); err != nil {
				return HeaderInfo{}, err
			}
			return HeaderInfo{}, format.Errorf(int64(len(data)), "truncated header")
		}
		if err := p.line(data[off:off+end], int64(off)); err != nil {
			return HeaderInfo{}, err
		}
		off += end + 1
	}
	if err := p.finish(int64(off)); err != nil {
		return HeaderInfo{}, err
	}
	return HeaderInfo{
		Header:           p.h,
		HeaderLen:        off,
		ProcessOffset:    off,
		FirstChunkOffset: off + processLen(&p.h),
	}, nil
}

func processLen(h *format.TraceHeader) int {
	n := token.ProcessStartLen(h.NVSize)
	if h.PFramed() {
		n += 4
	}
	return n
}

// parseProcess decodes the process-start record at info.ProcessOffset.
func parseProcess(data []byte, info HeaderInfo) (format.ProcessInfo, error) {
	off := info.ProcessOffset
	if len(data) < info.FirstChunkOffset {
		return format.ProcessInfo{}, format.Errorf(int64(off),
			"truncated process-start record: need %d bytes, have %d", info.ProcessLen(), len(data)-off)
	}
	rec := data[off:info.FirstChunkOffset]
	if rec[0] != byte(format.ChunkProcess) {
		return format.ProcessInfo{}, format.Errorf(int64(off), "expected process-start record, found 0x%02x", rec[0])
	}
	rec = rec[1:]
	nv := info.Header.NVSize
	if info.Header.PFramed() {
		if n := binary.LittleEndian.Uint32(rec); n != uint32(8+nv) {
			return format.ProcessInfo{}, format.Errorf(int64(off+1),
				"bad process-start length %d, expected %d", n, 8+nv)
		}
		rec = rec[4:]
	}
	return format.ProcessInfo{
		PID:       binary.LittleEndian.Uint32(rec),
		PPID:      binary.LittleEndian.Uint32(rec[4:]),
		StartTime: format.DecodeNV(rec[8:], nv),
	}, nil
}

// bannerParser validates banner lines one at a time so the in-memory and
// streaming readers share the same rules.
type bannerParser struct {
	h     format.TraceHeader
	lines int
}

func (p *bannerParser) line(text []byte, off int64) error {
	if err := checkASCII(text, off); err != nil {
		return err
	}
	s := string(text)
	p.lines++

	if p.lines == 1 {
		return p.magic(s, off)
	}
	if s == "" {
		return format.Errorf(off, "malformed header line: blank line")
	}

	switch s[0] {
	case '#':
		p.h.Comments = append(p.h.Comments, s[1:])
	case ':':
		key, value, ok := strings.Cut(s[1:], "=")
		if !ok || key == "" {
			return format.Errorf(off, "malformed attribute line %q", s)
		}
		if p.h.Attributes == nil {
			p.h.Attributes = make(map[string]string)
		}
		p.h.Attributes[key] = value
	case '!':
		key, value, ok := strings.Cut(s[1:], "=")
		if !ok || key == "" {
			return format.Errorf(off, "malformed flag line %q", s)
		}
		on, err := strconv.ParseBool(value)
		if err != nil {
			return format.Errorf(off, "malformed flag line %q", s)
		}
		if p.h.Flags == nil {
			p.h.Flags = make(map[string]bool)
		}
		p.h.Flags[key] = on
	default:
		return format.Errorf(off, "malformed header line %q", s)
	}
	return nil
}

func (p *bannerParser) magic(s string, off int64) error {
	fields := strings.Split(s, " ")
	if len(fields) != 3 || fields[0] != format.FormatName {
		return format.Errorf(off, "bad header: %q", s)
	}
	major, err1 := strconv.Atoi(fields[1])
	minor, err2 := strconv.Atoi(fields[2])
	if err1 != nil || err2 != nil {
		return format.Errorf(off, "bad header: %q", s)
	}
	if major != format.VersionMajor || minor != format.VersionMinor {
		return format.Errorf(off, "bad header: unsupported version %d.%d", major, minor)
	}
	p.h.Major, p.h.Minor = major, minor
	return nil
}

// finish checks the attributes the binary body depends on. off is the
// end of the banner.
func (p *bannerParser) finish(off int64) error {
	attrs := p.h.Attributes

	nv, ok := attrs[format.AttrNVSize]
	if !ok {
		return format.Errorf(off, "missing nv_size attribute")
	}
	n, err := strconv.Atoi(nv)
	if err != nil || !format.ValidNVSize(n) {
		return format.Errorf(off, "unsupported nv_size %q", nv)
	}
	p.h.NVSize = n

	p.h.TicksPerSec = format.TicksPerSecond
	if v, ok := attrs[format.AttrTicksPerSec]; ok {
		tps, err := strconv.ParseUint(v, 10, 64)
		if err != nil || tps == 0 {
			return format.Errorf(off, "bad ticks_per_sec %q", v)
		}
		p.h.TicksPerSec = tps
	}
	if v, ok := attrs[format.AttrBasetime]; ok {
		bt, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return format.Errorf(off, "bad basetime %q", v)
		}
		p.h.Basetime = bt
	}
	if p.h.Flags == nil {
		p.h.Flags = make(map[string]bool)
	}
	return nil
}

func checkASCII(b []byte, off int64) error {
	for i, c := range b {
		if c >= 0x80 {
			return format.Errorf(off+int64(i), "non-ASCII byte 0x%02x in header", c)
		}
	}
	return nil
}

// String renders the banner attributes for diagnostics.
func (h HeaderInfo) String() string {
	return fmt.Sprintf("%s %d.%d nv_size=%d header=%d process=%d first_chunk=%d",
		format.FormatName, h.Header.Major, h.Header.Minor, h.Header.NVSize,
		h.HeaderLen, h.ProcessOffset, h.FirstChunkOffset)
}
