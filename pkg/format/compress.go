package format

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
)

// Payload mode bytes, present only when the banner sets !compressed=1.
// These values are part of the file format.
const (
	PayloadStored  byte = 0x00
	PayloadDeflate byte = 'z'
)

// DefaultCompressLevel is the zlib level used for chunk payloads.
const DefaultCompressLevel = zlib.DefaultCompression

// errIncompressible is returned when deflate does not shrink the payload.
var errIncompressible = errors.New("payload is incompressible")

// EncodePayload returns the on-disk form of raw for a compressed trace:
// a stored payload when raw is shorter than threshold or does not
// shrink, otherwise a deflated payload with its raw length.
func EncodePayload(raw []byte, threshold, level int) ([]byte, error) {
	if threshold > 0 && len(raw) >= threshold {
		deflated, err := deflate(raw, level)
		if err == nil {
			out := make([]byte, 0, 5+len(deflated))
			out = append(out, PayloadDeflate)
			out = binary.LittleEndian.AppendUint32(out, uint32(len(raw)))
			return append(out, deflated...), nil
		}
		if !errors.Is(err, errIncompressible) {
			return nil, err
		}
	}
	out := make([]byte, 0, 1+len(raw))
	out = append(out, PayloadStored)
	return append(out, raw...), nil
}

// DecodePayload reverses EncodePayload. offset is the absolute position
// of payload in the file and is only used for error reporting.
func DecodePayload(payload []byte, offset int64) ([]byte, error) {
	if len(payload) == 0 {
		return nil, Errorf(offset, "missing compression mode byte")
	}
	switch payload[0] {
	case PayloadStored:
		return payload[1:], nil
	case PayloadDeflate:
		if len(payload) < 5 {
			return nil, Errorf(offset, "truncated deflate header")
		}
		rawLen := binary.LittleEndian.Uint32(payload[1:5])
		raw, err := inflate(payload[5:], rawLen)
		if err != nil {
			return nil, Errorf(offset+5, "bad deflate stream: %v", err)
		}
		return raw, nil
	default:
		return nil, Errorf(offset, "unknown compression mode 0x%02x", payload[0])
	}
}

func deflate(raw []byte, level int) ([]byte, error) {
	var buf bytes.Buffer
	zw, err := zlib.NewWriterLevel(&buf, level)
	if err != nil {
		return nil, fmt.Errorf("zlib writer: %w", err)
	}
	if _, err := zw.Write(raw); err != nil {
		return nil, fmt.Errorf("zlib write: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("zlib close: %w", err)
	}
	// the mode byte and raw length cost five bytes
	if buf.Len()+5 >= len(raw)+1 {
		return nil, errIncompressible
	}
	return buf.Bytes(), nil
}

func inflate(deflated []byte, rawLen uint32) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(deflated))
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	// rawLen is untrusted; cap the up-front allocation
	buf := bytes.NewBuffer(make([]byte, 0, min(int(rawLen), 1<<20)))
	// read one byte past rawLen so an oversized stream is detected
	n, err := io.Copy(buf, io.LimitReader(zr, int64(rawLen)+1))
	if err != nil {
		return nil, err
	}
	if n != int64(rawLen) {
		return nil, fmt.Errorf("got %d bytes, expected %d", n, rawLen)
	}
	return buf.Bytes(), nil
}
