package format

import (
	"encoding/binary"
	"math"
	"math/bits"
)

// AppendNV appends v as an nv_size-wide floating-point value. Width 8 is
// an IEEE-754 binary64; width 16 is an x87 80-bit extended value padded
// with six zero bytes, the layout of a long double on the platforms that
// declare nv_size=16. Any other width panics; callers validate with
// ValidNVSize first.
func AppendNV(dst []byte, v float64, size int) []byte {
	switch size {
	case NVSize8:
		return binary.LittleEndian.AppendUint64(dst, math.Float64bits(v))
	case NVSize16:
		mant, se := toExtended(v)
		dst = binary.LittleEndian.AppendUint64(dst, mant)
		dst = binary.LittleEndian.AppendUint16(dst, se)
		return append(dst, 0, 0, 0, 0, 0, 0)
	default:
		panic("format: unsupported nv_size")
	}
}

// DecodeNV decodes an nv_size-wide value from the start of b. b must hold
// at least size bytes.
func DecodeNV(b []byte, size int) float64 {
	switch size {
	case NVSize8:
		return math.Float64frombits(binary.LittleEndian.Uint64(b))
	case NVSize16:
		return fromExtended(binary.LittleEndian.Uint64(b), binary.LittleEndian.Uint16(b[8:]))
	default:
		panic("format: unsupported nv_size")
	}
}

func toExtended(v float64) (mant uint64, signExp uint16) {
	raw := math.Float64bits(v)
	sign := uint16(raw>>63) << 15
	exp := int((raw >> 52) & 0x7FF)
	frac := raw & (1<<52 - 1)

	switch {
	case exp == 0 && frac == 0:
		return 0, sign
	case exp == 0x7FF:
		return 1<<63 | frac<<11, sign | 0x7FFF
	case exp == 0:
		// subnormal binary64 values are normal in the extended format
		shift := bits.LeadingZeros64(frac)
		return frac << shift, sign | uint16(63-1074-shift+16383)
	default:
		return 1<<63 | frac<<11, sign | uint16(exp-1023+16383)
	}
}

func fromExtended(mant uint64, signExp uint16) float64 {
	neg := signExp&0x8000 != 0
	exp := int(signExp & 0x7FFF)

	var v float64
	switch {
	case exp == 0 && mant == 0:
		v = 0
	case exp == 0x7FFF:
		if mant<<1 == 0 {
			v = math.Inf(1)
		} else {
			v = math.NaN()
		}
	default:
		v = math.Ldexp(float64(mant), exp-16383-63)
	}
	if neg {
		v = math.Copysign(v, -1)
	}
	return v
}
