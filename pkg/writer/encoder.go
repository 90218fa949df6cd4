package writer

import (
	"io"

	"github.com/sirupsen/logrus"

	"github.com/danpilch/gonytprof/pkg/format"
	"github.com/danpilch/gonytprof/pkg/token"
)

// EncoderABI identifies the on-disk layout an encoder produces. An
// accelerated encoder stamped with a different ABI is stale.
const EncoderABI = "nytprof-5.0/1"

// Layout is the part of the banner that affects binary framing.
type Layout struct {
	NVSize  int
	PFramed bool
}

// Encoder writes the framed parts of a trace file. Every implementation
// must produce byte-identical output for the same calls.
type Encoder interface {
	// Name identifies the implementation in logs.
	Name() string

	// WriteHeader writes the banner followed by the raw process-start
	// record.
	WriteHeader(banner []byte, proc token.ProcessStart, layout Layout) error

	// WriteChunk writes [tag][u32le len][payload].
	WriteChunk(tag format.ChunkTag, payload []byte) error

	// Close flushes buffered output and closes the sink.
	Close() error
}

// NewEncoder returns the encoder for backend. Auto and accelerated use
// the accelerated encoder when it is compiled in and not stale, and fall
// back to the portable encoder otherwise.
func NewEncoder(backend Backend, sink io.WriteCloser, logger *logrus.Logger) Encoder {
	return selectEncoder(backend, sink, acceleratedBuild, logger)
}

func selectEncoder(backend Backend, sink io.WriteCloser, build string, logger *logrus.Logger) Encoder {
	if backend == BackendPortable {
		return newPortableEncoder(sink)
	}

	switch {
	case !acceleratedAvailable:
		if backend == BackendAccelerated {
			logger.Warn("accelerated encoder not compiled in; falling back to portable encoder")
		}
	case build != EncoderABI:
		logger.WithFields(logrus.Fields{
			"have": build,
			"want": EncoderABI,
		}).Warn("stale accelerated encoder; falling back to portable encoder")
	default:
		return newAcceleratedEncoder(sink)
	}
	return newPortableEncoder(sink)
}
