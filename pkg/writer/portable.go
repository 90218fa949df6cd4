package writer

import (
	"encoding/binary"
	"io"

	"github.com/danpilch/gonytprof/pkg/format"
	"github.com/danpilch/gonytprof/pkg/token"
)

// portableEncoder writes every field straight to the sink.
type portableEncoder struct {
	w io.WriteCloser
}

func newPortableEncoder(w io.WriteCloser) *portableEncoder {
	return &portableEncoder{w: w}
}

func (e *portableEncoder) Name() string {
	return string(BackendPortable)
}

func (e *portableEncoder) WriteHeader(banner []byte, proc token.ProcessStart, layout Layout) error {
	if _, err := e.w.Write(banner); err != nil {
		return err
	}
	if _, err := e.w.Write([]byte{byte(token.TagPIDStart)}); err != nil {
		return err
	}
	if layout.PFramed {
		if err := binary.Write(e.w, binary.LittleEndian, uint32(8+layout.NVSize)); err != nil {
			return err
		}
	}
	if err := binary.Write(e.w, binary.LittleEndian, proc.PID); err != nil {
		return err
	}
	if err := binary.Write(e.w, binary.LittleEndian, proc.PPID); err != nil {
		return err
	}
	_, err := e.w.Write(format.AppendNV(nil, proc.Time, layout.NVSize))
	return err
}

func (e *portableEncoder) WriteChunk(tag format.ChunkTag, payload []byte) error {
	if _, err := e.w.Write([]byte{byte(tag)}); err != nil {
		return err
	}
	if err := binary.Write(e.w, binary.LittleEndian, uint32(len(payload))); err != nil {
		return err
	}
	if len(payload) == 0 {
		return nil
	}
	_, err := e.w.Write(payload)
	return err
}

func (e *portableEncoder) Close() error {
	return e.w.Close()
}
