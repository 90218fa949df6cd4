package writer

import (
	"bufio"
	"encoding/binary"
	"io"

	"github.com/danpilch/gonytprof/pkg/format"
	"github.com/danpilch/gonytprof/pkg/token"
)

// acceleratedBuild is the ABI this encoder was built against.
var acceleratedBuild = EncoderABI

const (
	acceleratedBufferSize = 64 << 10
	// payloads above this size bypass the scratch buffer
	acceleratedInlineMax = 16 << 10
)

// acceleratedEncoder assembles each record in a reusable scratch buffer
// and issues one buffered write per record.
type acceleratedEncoder struct {
	sink    io.WriteCloser
	bw      *bufio.Writer
	scratch []byte
}

func newAcceleratedEncoder(w io.WriteCloser) *acceleratedEncoder {
	return &acceleratedEncoder{
		sink:    w,
		bw:      bufio.NewWriterSize(w, acceleratedBufferSize),
		scratch: make([]byte, 0, 256),
	}
}

func (e *acceleratedEncoder) Name() string {
	return string(BackendAccelerated)
}

func (e *acceleratedEncoder) WriteHeader(banner []byte, proc token.ProcessStart, layout Layout) error {
	b := append(e.scratch[:0], banner...)
	if layout.PFramed {
		b = append(b, byte(token.TagPIDStart))
		b = binary.LittleEndian.AppendUint32(b, uint32(8+layout.NVSize))
		b = binary.LittleEndian.AppendUint32(b, proc.PID)
		b = binary.LittleEndian.AppendUint32(b, proc.PPID)
		b = format.AppendNV(b, proc.Time, layout.NVSize)
	} else {
		b = token.AppendProcessStart(b, proc, layout.NVSize)
	}
	e.scratch = b
	_, err := e.bw.Write(b)
	return err
}

func (e *acceleratedEncoder) WriteChunk(tag format.ChunkTag, payload []byte) error {
	b := append(e.scratch[:0], byte(tag))
	b = binary.LittleEndian.AppendUint32(b, uint32(len(payload)))
	if len(payload) <= acceleratedInlineMax {
		b = append(b, payload...)
		e.scratch = b
		_, err := e.bw.Write(b)
		return err
	}
	e.scratch = b
	if _, err := e.bw.Write(b); err != nil {
		return err
	}
	_, err := e.bw.Write(payload)
	return err
}

func (e *acceleratedEncoder) Close() error {
	if err := e.bw.Flush(); err != nil {
		e.sink.Close()
		return err
	}
	return e.sink.Close()
}
