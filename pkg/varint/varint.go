// Package varint implements the profiler's variable-length integer
// encoding. The high bits of the first byte select the length class and
// the remaining bytes carry the value big-endian:
//
//	n < 0x80        0nnnnnnn
//	n < 0x4000      10nnnnnn nnnnnnnn
//	n < 0x200000    110nnnnn nnnnnnnn nnnnnnnn
//	n < 0x10000000  1110nnnn nnnnnnnn nnnnnnnn nnnnnnnn
//	otherwise       11111111 nnnnnnnn nnnnnnnn nnnnnnnn nnnnnnnn
//
// Signed values are encoded as their two's-complement bit pattern, so
// every negative number takes the five-byte form.
package varint

import (
	"github.com/danpilch/gonytprof/pkg/format"
)

// MaxLen is the longest encoding of any 32-bit value.
const MaxLen = 5

// Len returns the encoded length of n.
func Len(n uint32) int {
	switch {
	case n < 0x80:
		return 1
	case n < 0x4000:
		return 2
	case n < 0x200000:
		return 3
	case n < 0x10000000:
		return 4
	default:
		return 5
	}
}

// AppendU32 appends the encoding of n to dst.
func AppendU32(dst []byte, n uint32) []byte {
	switch {
	case n < 0x80:
		return append(dst, byte(n))
	case n < 0x4000:
		return append(dst, byte(n>>8)|0x80, byte(n))
	case n < 0x200000:
		return append(dst, byte(n>>16)|0xC0, byte(n>>8), byte(n))
	case n < 0x10000000:
		return append(dst, byte(n>>24)|0xE0, byte(n>>16), byte(n>>8), byte(n))
	default:
		return append(dst, 0xFF, byte(n>>24), byte(n>>16), byte(n>>8), byte(n))
	}
}

// AppendI32 appends the encoding of the bit pattern of n to dst.
func AppendI32(dst []byte, n int32) []byte {
	return AppendU32(dst, uint32(n))
}

// EncodeU32 returns the encoding of n.
func EncodeU32(n uint32) []byte {
	return AppendU32(make([]byte, 0, Len(n)), n)
}

// EncodeI32 returns the encoding of n.
func EncodeI32(n int32) []byte {
	return EncodeU32(uint32(n))
}

// DecodeU32 decodes the value starting at buf[off] and returns it with
// the offset just past it. A sequence cut short by the end of buf is a
// FormatError; no partial value is returned.
func DecodeU32(buf []byte, off int) (uint32, int, error) {
	if off < 0 || off >= len(buf) {
		return 0, off, format.Errorf(int64(off), "truncated varint")
	}
	d := buf[off]
	if d < 0x80 {
		return uint32(d), off + 1, nil
	}

	var n uint32
	var extra int
	switch {
	case d < 0xC0:
		n, extra = uint32(d&0x3F), 1
	case d < 0xE0:
		n, extra = uint32(d&0x1F), 2
	case d < 0xFF:
		n, extra = uint32(d&0x0F), 3
	default:
		n, extra = 0, 4
	}
	if off+1+extra > len(buf) {
		return 0, off, format.Errorf(int64(off), "truncated varint: need %d bytes, have %d", 1+extra, len(buf)-off)
	}
	for _, b := range buf[off+1 : off+1+extra] {
		n = n<<8 | uint32(b)
	}
	return n, off + 1 + extra, nil
}

// DecodeI32 decodes a signed value; see DecodeU32.
func DecodeI32(buf []byte, off int) (int32, int, error) {
	u, next, err := DecodeU32(buf, off)
	return int32(u), next, err
}
