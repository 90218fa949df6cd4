package token

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/danpilch/gonytprof/pkg/format"
)

func TestNewFIDBytes(t *testing.T) {
	e := NewEncoder(format.NVSize8)
	e.NewFID(NewFID{
		FID:     1,
		Flags:   format.FileHasSrc,
		Size:    300,
		MTime:   7,
		Name:    String{Data: "a.py"},
		EvalFID: 0,
	})

	want := []byte{
		'@', 0x01, 0x00, 0x00, 0x10, 0x81, 0x2C, 0x07,
		'\'', 0x04, 'a', '.', 'p', 'y',
	}
	require.Equal(t, want, e.Bytes())
}

func TestUTF8StringNegatesLength(t *testing.T) {
	b := AppendString(nil, String{Data: "é", UTF8: true})
	// tag, five-byte varint of -2, two bytes of text
	require.Equal(t, []byte{'"', 0xFF, 0xFF, 0xFF, 0xFF, 0xFE, 0xC3, 0xA9}, b)

	d := NewDecoder(b, format.NVSize8, 0)
	s, err := d.String()
	require.NoError(t, err)
	require.Equal(t, String{Data: "é", UTF8: true}, s)
	require.False(t, d.More())
}

func TestNegativeLengthUnderPlainTagIsUTF8(t *testing.T) {
	b := []byte{'\'', 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 'x'}
	d := NewDecoder(b, format.NVSize8, 0)
	s, err := d.String()
	require.NoError(t, err)
	require.True(t, s.UTF8)
	require.Equal(t, "x", s.Data)
}

func TestRoundTripAllKinds(t *testing.T) {
	for _, nv := range []int{format.NVSize8, format.NVSize16} {
		e := NewEncoder(nv)
		records := []Record{
			NewFID{FID: 3, EvalFID: 1, EvalLine: 12, Flags: format.FileIsEval, Size: 0x4000, MTime: 0xFFFFFFFF, Name: String{Data: "(eval 1)[x.py:12]", UTF8: true}},
			SrcLine{FID: 3, Line: 1, Text: String{Data: "print('hi')\n"}},
			TimeLine{Elapsed: -25, FID: 3, Line: 1},
			TimeLine{Elapsed: 1 << 20, FID: 3, Line: 2},
			SubInfo{SID: 9, FID: 3, FirstLine: 1, LastLine: 40, Name: 2},
			ProcessStart{PID: 1234, PPID: 1, Time: 1760000000.25},
			ProcessEnd{PID: 1234, Time: 1760000001.5},
			String{Data: ""},
		}
		for _, r := range records {
			switch r := r.(type) {
			case NewFID:
				e.NewFID(r)
			case SrcLine:
				e.SrcLine(r)
			case TimeLine:
				e.TimeLine(r)
			case SubInfo:
				e.SubInfo(r)
			case ProcessStart:
				e.ProcessStart(r)
			case ProcessEnd:
				e.ProcessEnd(r)
			case String:
				e.String(r)
			}
		}

		d := NewDecoder(e.Bytes(), nv, 100)
		for _, want := range records {
			got, err := d.Next()
			require.NoError(t, err)
			require.Equal(t, want, got)
		}
		require.False(t, d.More())
		require.Equal(t, int64(100+e.Len()), d.Offset())
	}
}

func TestProcessStartLayout(t *testing.T) {
	b := AppendProcessStart(nil, ProcessStart{PID: 0x01020304, PPID: 5, Time: 0}, format.NVSize8)
	require.Len(t, b, ProcessStartLen(format.NVSize8))
	require.Equal(t, []byte{'P', 4, 3, 2, 1, 5, 0, 0, 0}, b[:9])

	b16 := AppendProcessStart(nil, ProcessStart{Time: 2.5}, format.NVSize16)
	require.Len(t, b16, 25)
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name   string
		buf    []byte
		reason string
		offset int64
	}{
		{"unknown tag", []byte{0x01}, "unknown token 0x01", 10},
		{"unsupported tag", []byte{'*'}, "unsupported token TIME_BLOCK", 10},
		{"truncated field", []byte{'+', 0x05, 0x01}, "truncated field in TIME_LINE token", 13},
		{"truncated varint", []byte{'s', 0xC0, 0x01}, "truncated field in SUB_INFO token", 11},
		{"truncated string", []byte{'S', 1, 2, '\'', 5, 'a', 'b'}, "truncated string: need 5 bytes, have 2 in SRC_LINE token", 15},
		{"missing string", []byte{'S', 1, 2}, "truncated string tag in SRC_LINE token", 13},
		{"truncated process start", []byte{'P', 1, 0, 0}, "truncated process-start record: need 17 bytes, have 4", 10},
		{"truncated process end", []byte{'p', 1, 0, 0}, "truncated timestamp in PID_END token", 12},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDecoder(tt.buf, format.NVSize8, 10)
			_, err := d.Next()
			require.Error(t, err)
			var fe *format.FormatError
			require.ErrorAs(t, err, &fe)
			require.Equal(t, tt.reason, fe.Reason)
			require.Equal(t, tt.offset, fe.Offset)
		})
	}
}

func TestNextAtEnd(t *testing.T) {
	d := NewDecoder(nil, format.NVSize8, 0)
	_, err := d.Next()
	require.True(t, format.IsFormatError(err))
}

func TestTagString(t *testing.T) {
	require.Equal(t, "NEW_FID", TagNewFID.String())
	require.Equal(t, "unknown(0x01)", Tag(1).String())
}
