package writer

import (
	"bytes"
	"fmt"
	"strconv"
	"time"

	"github.com/danpilch/gonytprof/pkg/format"
)

// Version is reported in the banner's generated-by comment.
const Version = "0.3.0"

// Compatibility markers expected by the reference report tools.
const (
	perlVersionMarker = "5.036000"
	xsVersionMarker   = "6.14"
	clockID           = 1
)

// BannerInfo holds the values that vary between banners.
type BannerInfo struct {
	Generated   time.Time
	Application string
	NVSize      int
	Compressed  bool
	PFramed     bool
}

// Banner renders the ASCII header. Every line ends in exactly one
// newline and no blank line follows the last one.
func Banner(info BannerInfo) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "%s %d %d\n", format.FormatName, format.VersionMajor, format.VersionMinor)
	fmt.Fprintf(&b, "#Perl profile database. Generated by gonytprof %s on %s\n",
		Version, info.Generated.UTC().Format(time.ANSIC))

	attr := func(key, value string) {
		b.WriteString(":" + key + "=" + value + "\n")
	}
	flag := func(key string, on bool) {
		v := "0"
		if on {
			v = "1"
		}
		b.WriteString("!" + key + "=" + v + "\n")
	}

	attr(format.AttrBasetime, strconv.FormatInt(info.Generated.Unix(), 10))
	attr(format.AttrApplication, sanitizeAttr(info.Application))
	attr(format.AttrPerlVersion, perlVersionMarker)
	attr(format.AttrNVSize, strconv.Itoa(info.NVSize))
	attr(format.AttrClockID, strconv.Itoa(clockID))
	attr(format.AttrTicksPerSec, strconv.Itoa(format.TicksPerSecond))
	attr(format.AttrXSVersion, xsVersionMarker)
	flag(format.FlagSubsLineRange, true)
	flag(format.FlagCompressed, info.Compressed)
	flag(format.FlagPFramed, info.PFramed)
	return b.Bytes()
}

// sanitizeAttr keeps banner values printable single-line ASCII.
func sanitizeAttr(s string) string {
	out := []byte(s)
	for i, c := range out {
		if c < 0x20 || c > 0x7E {
			out[i] = '?'
		}
	}
	return string(out)
}
