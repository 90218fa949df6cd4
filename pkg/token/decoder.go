package token

import (
	"encoding/binary"

	"github.com/danpilch/gonytprof/pkg/format"
	"github.com/danpilch/gonytprof/pkg/varint"
)

// Decoder reads tokens from a byte slice. Errors are FormatErrors whose
// offsets are absolute: base plus the position within buf.
type Decoder struct {
	buf    []byte
	off    int
	base   int64
	nvSize int
}

// NewDecoder returns a decoder over buf, which starts at absolute file
// offset base.
func NewDecoder(buf []byte, nvSize int, base int64) *Decoder {
	return &Decoder{buf: buf, base: base, nvSize: nvSize}
}

// More reports whether unread bytes remain.
func (d *Decoder) More() bool {
	return d.off < len(d.buf)
}

// Offset returns the absolute offset of the next unread byte.
func (d *Decoder) Offset() int64 {
	return d.base + int64(d.off)
}

// Remaining returns the number of unread bytes.
func (d *Decoder) Remaining() int {
	return len(d.buf) - d.off
}

// PeekTag returns the next tag without consuming it.
func (d *Decoder) PeekTag() (Tag, bool) {
	if !d.More() {
		return 0, false
	}
	return Tag(d.buf[d.off]), true
}

// Next decodes one token.
func (d *Decoder) Next() (Record, error) {
	if !d.More() {
		return nil, d.errorf("unexpected end of token stream")
	}
	start := d.off
	tag := Tag(d.buf[d.off])
	switch tag {
	case TagNewFID:
		d.off++
		return d.newFID(start)
	case TagSrcLine:
		d.off++
		return d.srcLine(start)
	case TagTimeLine:
		d.off++
		return d.timeLine(start)
	case TagSubInfo:
		d.off++
		return d.subInfo(start)
	case TagPIDStart:
		return d.processStart()
	case TagPIDEnd:
		d.off++
		return d.processEnd(start)
	case TagString, TagStringUTF8:
		s, err := d.String()
		if err != nil {
			return nil, err
		}
		return s, nil
	case TagTimeBlock, TagSubEntry, TagSubReturn, TagSubCallers, TagDiscount, TagStartDeflate:
		return nil, d.errorf("unsupported token %s", tag)
	default:
		return nil, d.errorf("unknown token 0x%02x", byte(tag))
	}
}

// U32 reads a bare varint.
func (d *Decoder) U32() (uint32, error) {
	v, next, err := varint.DecodeU32(d.buf, d.off)
	if err != nil {
		return 0, d.errorf("truncated field")
	}
	d.off = next
	return v, nil
}

// I32 reads a bare signed varint.
func (d *Decoder) I32() (int32, error) {
	v, err := d.U32()
	return int32(v), err
}

// String reads a tagged, length-prefixed string. A negative length marks
// UTF-8 text.
func (d *Decoder) String() (String, error) {
	if !d.More() {
		return String{}, d.errorf("truncated string tag")
	}
	tag := Tag(d.buf[d.off])
	if tag != TagString && tag != TagStringUTF8 {
		return String{}, d.errorf("expected string, found token 0x%02x", byte(tag))
	}
	d.off++
	n32, err := d.I32()
	if err != nil {
		return String{}, err
	}
	n := int64(n32)
	utf8 := tag == TagStringUTF8
	if n < 0 {
		n = -n
		utf8 = true
	}
	if n > int64(d.Remaining()) {
		return String{}, d.errorf("truncated string: need %d bytes, have %d", n, d.Remaining())
	}
	s := String{Data: string(d.buf[d.off : d.off+int(n)]), UTF8: utf8}
	d.off += int(n)
	return s, nil
}

func (d *Decoder) newFID(start int) (Record, error) {
	var r NewFID
	for _, f := range []*uint32{&r.FID, &r.EvalFID, &r.EvalLine, &r.Flags, &r.Size, &r.MTime} {
		v, err := d.U32()
		if err != nil {
			return nil, d.wrapAt(start, err)
		}
		*f = v
	}
	name, err := d.String()
	if err != nil {
		return nil, d.wrapAt(start, err)
	}
	r.Name = name
	return r, nil
}

func (d *Decoder) srcLine(start int) (Record, error) {
	var r SrcLine
	var err error
	if r.FID, err = d.U32(); err != nil {
		return nil, d.wrapAt(start, err)
	}
	if r.Line, err = d.U32(); err != nil {
		return nil, d.wrapAt(start, err)
	}
	if r.Text, err = d.String(); err != nil {
		return nil, d.wrapAt(start, err)
	}
	return r, nil
}

func (d *Decoder) timeLine(start int) (Record, error) {
	var r TimeLine
	var err error
	if r.Elapsed, err = d.I32(); err != nil {
		return nil, d.wrapAt(start, err)
	}
	if r.FID, err = d.U32(); err != nil {
		return nil, d.wrapAt(start, err)
	}
	if r.Line, err = d.U32(); err != nil {
		return nil, d.wrapAt(start, err)
	}
	return r, nil
}

func (d *Decoder) subInfo(start int) (Record, error) {
	var r SubInfo
	for _, f := range []*uint32{&r.SID, &r.FID, &r.FirstLine, &r.LastLine, &r.Name} {
		v, err := d.U32()
		if err != nil {
			return nil, d.wrapAt(start, err)
		}
		*f = v
	}
	return r, nil
}

func (d *Decoder) processStart() (Record, error) {
	need := ProcessStartLen(d.nvSize)
	if d.Remaining() < need {
		return nil, d.errorf("truncated process-start record: need %d bytes, have %d", need, d.Remaining())
	}
	b := d.buf[d.off+1:]
	r := ProcessStart{
		PID:  binary.LittleEndian.Uint32(b[0:4]),
		PPID: binary.LittleEndian.Uint32(b[4:8]),
		Time: format.DecodeNV(b[8:], d.nvSize),
	}
	d.off += need
	return r, nil
}

func (d *Decoder) processEnd(start int) (Record, error) {
	pid, err := d.U32()
	if err != nil {
		return nil, d.wrapAt(start, err)
	}
	if d.Remaining() < d.nvSize {
		return nil, d.wrapAt(start, d.errorf("truncated timestamp"))
	}
	t := format.DecodeNV(d.buf[d.off:], d.nvSize)
	d.off += d.nvSize
	return ProcessEnd{PID: pid, Time: t}, nil
}

func (d *Decoder) errorf(msg string, args ...any) error {
	return format.Errorf(d.Offset(), msg, args...)
}

// wrapAt names the token that failed; the offset stays where decoding
// stopped.
func (d *Decoder) wrapAt(start int, err error) error {
	fe, ok := err.(*format.FormatError)
	if !ok {
		return err
	}
	return &format.FormatError{
		Reason: fe.Reason + " in " + Tag(d.buf[start]).String() + " token",
		Offset: fe.Offset,
	}
}
