// Package format defines the constants, data model and error taxonomy
// shared by the NYTProf-compatible trace writer and reader.
package format

const (
	// FormatName is the first word of the banner's first line.
	FormatName = "NYTProf"

	VersionMajor = 5
	VersionMinor = 0

	// TicksPerSecond is fixed: one tick is 100ns.
	TicksPerSecond = 10_000_000

	// NVSize values accepted for the floating-point timestamp width.
	NVSize8  = 8
	NVSize16 = 16

	// RecordStride is the size of one fixed-width S or C record.
	RecordStride = 28

	// ChunkHeaderLen is the tag byte plus the little-endian length.
	ChunkHeaderLen = 5
)

// Banner attribute and flag keys.
const (
	AttrBasetime    = "basetime"
	AttrApplication = "application"
	AttrPerlVersion = "perl_version"
	AttrNVSize      = "nv_size"
	AttrClockID     = "clock_id"
	AttrTicksPerSec = "ticks_per_sec"
	AttrXSVersion   = "xs_version"

	FlagSubsLineRange = "subs_line_range"
	FlagCompressed    = "compressed"
	FlagPFramed       = "p_framed"
)

// ChunkTag identifies an outer chunk in the binary body.
type ChunkTag byte

const (
	ChunkProcess   ChunkTag = 'P'
	ChunkLineStats ChunkTag = 'S'
	ChunkFiles     ChunkTag = 'F'
	ChunkSubs      ChunkTag = 'D'
	ChunkCalls     ChunkTag = 'C'
	ChunkEnd       ChunkTag = 'E'
)

// ChunkOrder is the only order in which body chunks may appear.
var ChunkOrder = []ChunkTag{ChunkLineStats, ChunkFiles, ChunkSubs, ChunkCalls, ChunkEnd}

// Rank returns the position of tag in ChunkOrder, or -1 for tags that
// are not body chunks.
func (t ChunkTag) Rank() int {
	for i, c := range ChunkOrder {
		if c == t {
			return i
		}
	}
	return -1
}

func (t ChunkTag) String() string {
	return string(rune(t))
}

// File flag bits, matching the reference profiler's fid flags.
const (
	FileIsPMC       uint32 = 0x0001
	FileViaStmt     uint32 = 0x0002
	FileViaSub      uint32 = 0x0004
	FileIsAutosplit uint32 = 0x0008
	FileHasSrc      uint32 = 0x0010
	FileSaveSrc     uint32 = 0x0020
	FileIsAlias     uint32 = 0x0040
	FileIsFake      uint32 = 0x0080
	FileIsEval      uint32 = 0x0100
)

// ValidNVSize reports whether n is a supported timestamp width.
func ValidNVSize(n int) bool {
	return n == NVSize8 || n == NVSize16
}
