package token

import (
	"encoding/binary"
	"math"

	"github.com/danpilch/gonytprof/pkg/format"
	"github.com/danpilch/gonytprof/pkg/varint"
)

// Encoder appends tokens to an in-memory buffer.
type Encoder struct {
	buf    []byte
	nvSize int
}

// NewEncoder returns an encoder writing nv values nvSize bytes wide.
func NewEncoder(nvSize int) *Encoder {
	return &Encoder{nvSize: nvSize}
}

// Bytes returns the encoded tokens. The slice aliases the encoder's
// buffer until the next call to Reset.
func (e *Encoder) Bytes() []byte {
	return e.buf
}

// Len returns the number of encoded bytes.
func (e *Encoder) Len() int {
	return len(e.buf)
}

// Reset discards all encoded tokens, keeping the buffer.
func (e *Encoder) Reset() {
	e.buf = e.buf[:0]
}

// U32 appends a bare varint with no tag. Used for counts.
func (e *Encoder) U32(n uint32) {
	e.buf = varint.AppendU32(e.buf, n)
}

// String appends a tagged, length-prefixed string.
func (e *Encoder) String(s String) {
	e.buf = AppendString(e.buf, s)
}

// NewFID appends a NEW_FID token.
func (e *Encoder) NewFID(r NewFID) {
	e.buf = append(e.buf, byte(TagNewFID))
	e.buf = varint.AppendU32(e.buf, r.FID)
	e.buf = varint.AppendU32(e.buf, r.EvalFID)
	e.buf = varint.AppendU32(e.buf, r.EvalLine)
	e.buf = varint.AppendU32(e.buf, r.Flags)
	e.buf = varint.AppendU32(e.buf, r.Size)
	e.buf = varint.AppendU32(e.buf, r.MTime)
	e.buf = AppendString(e.buf, r.Name)
}

// SrcLine appends a SRC_LINE token.
func (e *Encoder) SrcLine(r SrcLine) {
	e.buf = append(e.buf, byte(TagSrcLine))
	e.buf = varint.AppendU32(e.buf, r.FID)
	e.buf = varint.AppendU32(e.buf, r.Line)
	e.buf = AppendString(e.buf, r.Text)
}

// TimeLine appends a TIME_LINE token.
func (e *Encoder) TimeLine(r TimeLine) {
	e.buf = append(e.buf, byte(TagTimeLine))
	e.buf = varint.AppendI32(e.buf, r.Elapsed)
	e.buf = varint.AppendU32(e.buf, r.FID)
	e.buf = varint.AppendU32(e.buf, r.Line)
}

// SubInfo appends a SUB_INFO token.
func (e *Encoder) SubInfo(r SubInfo) {
	e.buf = append(e.buf, byte(TagSubInfo))
	e.buf = varint.AppendU32(e.buf, r.SID)
	e.buf = varint.AppendU32(e.buf, r.FID)
	e.buf = varint.AppendU32(e.buf, r.FirstLine)
	e.buf = varint.AppendU32(e.buf, r.LastLine)
	e.buf = varint.AppendU32(e.buf, r.Name)
}

// ProcessStart appends a raw process-start record.
func (e *Encoder) ProcessStart(r ProcessStart) {
	e.buf = AppendProcessStart(e.buf, r, e.nvSize)
}

// ProcessEnd appends a PID_END token.
func (e *Encoder) ProcessEnd(r ProcessEnd) {
	e.buf = append(e.buf, byte(TagPIDEnd))
	e.buf = varint.AppendU32(e.buf, r.PID)
	e.buf = format.AppendNV(e.buf, r.Time, e.nvSize)
}

// AppendString appends s as [tag][i32 length][bytes]; the length is
// negated for UTF-8 strings.
func AppendString(dst []byte, s String) []byte {
	n := len(s.Data)
	if n > math.MaxInt32 {
		panic("token: string too long")
	}
	if s.UTF8 {
		dst = append(dst, byte(TagStringUTF8))
		dst = varint.AppendI32(dst, -int32(n))
	} else {
		dst = append(dst, byte(TagString))
		dst = varint.AppendI32(dst, int32(n))
	}
	return append(dst, s.Data...)
}

// AppendProcessStart appends a process-start record with fixed-width
// little-endian pid and ppid.
func AppendProcessStart(dst []byte, r ProcessStart, nvSize int) []byte {
	dst = append(dst, byte(TagPIDStart))
	dst = binary.LittleEndian.AppendUint32(dst, r.PID)
	dst = binary.LittleEndian.AppendUint32(dst, r.PPID)
	return format.AppendNV(dst, r.Time, nvSize)
}
