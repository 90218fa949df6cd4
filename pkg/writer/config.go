package writer

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/danpilch/gonytprof/pkg/format"
)

// Backend selects the chunk encoder implementation.
type Backend string

const (
	BackendAuto        Backend = "auto"
	BackendAccelerated Backend = "accelerated"
	BackendPortable    Backend = "portable"
)

// ParseBackend parses a backend name. The empty string means auto.
func ParseBackend(name string) (Backend, error) {
	switch Backend(name) {
	case "", BackendAuto:
		return BackendAuto, nil
	case BackendAccelerated, "c":
		return BackendAccelerated, nil
	case BackendPortable, "py":
		return BackendPortable, nil
	default:
		return "", fmt.Errorf("unknown writer backend: %q", name)
	}
}

// Config configures one writer instance. The zero value is usable.
type Config struct {
	Backend Backend

	// LegacyFraming puts a length word on the process-start record.
	LegacyFraming bool

	// Debug logs every chunk at debug level.
	Debug bool

	// NVSize is the timestamp width, 8 or 16. Zero means 8.
	NVSize int

	// CompressThreshold enables payload compression for chunks at least
	// this many bytes long. Zero disables compression entirely.
	CompressThreshold int

	// Application is written to the banner's application attribute.
	Application string

	// PID and PPID override the current process ids when non-zero.
	PID  uint32
	PPID uint32

	// Now overrides the wall clock.
	Now func() time.Time

	// WrapEncoder, when set, wraps the selected encoder. Debug tooling
	// uses it to time chunk writes.
	WrapEncoder func(Encoder) Encoder

	Logger *logrus.Logger
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() Config {
	return Config{
		Backend: BackendAuto,
		NVSize:  format.NVSize8,
	}
}

func (c Config) withDefaults() Config {
	if c.Backend == "" {
		c.Backend = BackendAuto
	}
	if c.NVSize == 0 {
		c.NVSize = format.NVSize8
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.Logger == nil {
		c.Logger = logrus.New()
		c.Logger.SetLevel(logrus.WarnLevel)
	}
	if c.Debug && !c.Logger.IsLevelEnabled(logrus.DebugLevel) {
		c.Logger.SetLevel(logrus.DebugLevel)
	}
	return c
}

func (c Config) validate() error {
	if !format.ValidNVSize(c.NVSize) {
		return &format.UsageError{Op: "open", Reason: fmt.Sprintf("unsupported nv_size %d", c.NVSize)}
	}
	if c.CompressThreshold < 0 {
		return &format.UsageError{Op: "open", Reason: "negative compress threshold"}
	}
	if _, err := ParseBackend(string(c.Backend)); err != nil {
		return &format.UsageError{Op: "open", Reason: err.Error()}
	}
	return nil
}
