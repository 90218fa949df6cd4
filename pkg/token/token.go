// Package token encodes and decodes the incremental token stream: a tag
// byte followed by varint fields and, for some records, a tagged,
// length-prefixed string.
package token

import "fmt"

// Tag is the first byte of every token.
type Tag byte

// Tag values match the reference profiler.
const (
	TagNewFID       Tag = '@'
	TagTimeLine     Tag = '+'
	TagTimeBlock    Tag = '*'
	TagSubEntry     Tag = '>'
	TagSubReturn    Tag = '<'
	TagSubInfo      Tag = 's'
	TagSubCallers   Tag = 'c'
	TagSrcLine      Tag = 'S'
	TagDiscount     Tag = '-'
	TagString       Tag = '\''
	TagStringUTF8   Tag = '"'
	TagPIDStart     Tag = 'P'
	TagPIDEnd       Tag = 'p'
	TagStartDeflate Tag = 'z'
)

var tagNames = map[Tag]string{
	TagNewFID:       "NEW_FID",
	TagTimeLine:     "TIME_LINE",
	TagTimeBlock:    "TIME_BLOCK",
	TagSubEntry:     "SUB_ENTRY",
	TagSubReturn:    "SUB_RETURN",
	TagSubInfo:      "SUB_INFO",
	TagSubCallers:   "SUB_CALLERS",
	TagSrcLine:      "SRC_LINE",
	TagDiscount:     "DISCOUNT",
	TagString:       "STRING",
	TagStringUTF8:   "STRING_UTF8",
	TagPIDStart:     "PID_START",
	TagPIDEnd:       "PID_END",
	TagStartDeflate: "START_DEFLATE",
}

func (t Tag) String() string {
	if name, ok := tagNames[t]; ok {
		return name
	}
	return fmt.Sprintf("unknown(0x%02x)", byte(t))
}

// Record is one decoded token.
type Record interface {
	Tag() Tag
}

// String is a string payload. UTF8 selects the STRING_UTF8 tag and a
// negated length on the wire.
type String struct {
	Data string
	UTF8 bool
}

func (String) Tag() Tag { return TagString }

// NewFID announces a source file.
type NewFID struct {
	FID      uint32
	EvalFID  uint32
	EvalLine uint32
	Flags    uint32
	Size     uint32
	MTime    uint32
	Name     String
}

func (NewFID) Tag() Tag { return TagNewFID }

// SrcLine carries one line of embedded source text.
type SrcLine struct {
	FID  uint32
	Line uint32
	Text String
}

func (SrcLine) Tag() Tag { return TagSrcLine }

// TimeLine attributes elapsed ticks to a statement.
type TimeLine struct {
	Elapsed int32
	FID     uint32
	Line    uint32
}

func (TimeLine) Tag() Tag { return TagTimeLine }

// SubInfo defines a subroutine; Name indexes the subroutine-name table.
type SubInfo struct {
	SID       uint32
	FID       uint32
	FirstLine uint32
	LastLine  uint32
	Name      uint32
}

func (SubInfo) Tag() Tag { return TagSubInfo }

// ProcessStart is the process-start record. Its integer fields are fixed
// 32-bit little-endian, not varints, so its size depends only on nv_size.
type ProcessStart struct {
	PID  uint32
	PPID uint32
	Time float64
}

func (ProcessStart) Tag() Tag { return TagPIDStart }

// ProcessEnd is the process-end record.
type ProcessEnd struct {
	PID  uint32
	Time float64
}

func (ProcessEnd) Tag() Tag { return TagPIDEnd }

// ProcessStartLen returns the size of a raw process-start record
// including its tag byte.
func ProcessStartLen(nvSize int) int {
	return 1 + 4 + 4 + nvSize
}
