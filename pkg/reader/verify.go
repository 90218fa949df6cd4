package reader

import (
	"bufio"
	"encoding/binary"
	"errors"
	"io"

	"github.com/danpilch/gonytprof/pkg/format"
)

// maxHeaderLine bounds a banner line, newline included. Verify buffers
// exactly one line, so Parse applies the same limit.
const maxHeaderLine = 64 << 10

const verifyBufferSize = maxHeaderLine

// VerifyResult summarizes a file that passed Verify.
type VerifyResult struct {
	Header  format.TraceHeader
	Process format.ProcessInfo
	Chunks  []ChunkInfo

	// Size is the number of bytes consumed, up to the end of the E chunk.
	Size int64
}

// Tags returns the chunk tags in file order.
func (v VerifyResult) Tags() string {
	b := make([]byte, len(v.Chunks))
	for i, c := range v.Chunks {
		b[i] = byte(c.Tag)
	}
	return string(b)
}

// Verify checks the banner, the process-start record and the chunk
// framing of a trace read from r without holding it in memory. Payloads
// are skipped, except that uncompressed S and C lengths are checked
// against the record stride.
func Verify(r io.Reader) (VerifyResult, error) {
	br := bufio.NewReaderSize(r, verifyBufferSize)

	var (
		p   bannerParser
		off int64
	)
	for {
		b, err := br.Peek(1)
		if err != nil {
			return VerifyResult{}, eofAs(err, off, "truncated header")
		}
		if p.lines > 0 && b[0] == byte(format.ChunkProcess) {
			break
		}
		line, err := br.ReadSlice('\n')
		if errors.Is(err, bufio.ErrBufferFull) {
			return VerifyResult{}, format.Errorf(off, "header line exceeds %d bytes", maxHeaderLine)
		}
		if err != nil {
			if cerr := checkASCII(line, off); cerr != nil {
				return VerifyResult{}, cerr
			}
			return VerifyResult{}, eofAs(err, off+int64(len(line)), "truncated header")
		}
		if err := p.line(line[:len(line)-1], off); err != nil {
			return VerifyResult{}, err
		}
		off += int64(len(line))
	}
	if err := p.finish(off); err != nil {
		return VerifyResult{}, err
	}

	res := VerifyResult{Header: p.h}
	procBuf := make([]byte, processLen(&p.h))
	if n, err := io.ReadFull(br, procBuf); err != nil {
		return VerifyResult{}, eofAs(err, off, "truncated process-start record: need %d bytes, have %d", len(procBuf), n)
	}
	info := HeaderInfo{Header: p.h, HeaderLen: int(off), ProcessOffset: 0, FirstChunkOffset: len(procBuf)}
	proc, err := parseProcess(procBuf, info)
	if err != nil {
		return VerifyResult{}, rebase(err, off)
	}
	res.Process = proc
	off += int64(len(procBuf))

	var (
		seq chunkSequence
		hdr [format.ChunkHeaderLen]byte
	)
	for {
		n, err := io.ReadFull(br, hdr[:])
		if n == 0 && err != nil {
			return VerifyResult{}, eofAs(err, off, "missing end chunk")
		}
		tag := format.ChunkTag(hdr[0])
		if serr := seq.next(tag, off); serr != nil {
			return VerifyResult{}, serr
		}
		if err != nil {
			return VerifyResult{}, eofAs(err, off+1, "truncated length in %s chunk", tag)
		}
		c := ChunkInfo{Tag: tag, Offset: off, Len: binary.LittleEndian.Uint32(hdr[1:])}

		if !p.h.Compressed() && (tag == format.ChunkLineStats || tag == format.ChunkCalls) {
			if err := checkStride(tag, int(c.Len), c.PayloadOffset()); err != nil {
				return VerifyResult{}, err
			}
		}
		skipped, err := io.CopyN(io.Discard, br, int64(c.Len))
		if err != nil {
			return VerifyResult{}, eofAs(err, c.PayloadOffset(),
				"truncated payload in %s chunk: need %d bytes, have %d", tag, c.Len, skipped)
		}
		res.Chunks = append(res.Chunks, c)
		off = c.End()
		if tag == format.ChunkEnd {
			res.Size = off
			return res, nil
		}
	}
}

// eofAs turns an early end of input into a FormatError and wraps any
// other read failure as an IOError.
func eofAs(err error, off int64, reason string, args ...any) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return format.Errorf(off, reason, args...)
	}
	return &format.IOError{Op: "read", Err: err}
}

func rebase(err error, delta int64) error {
	var fe *format.FormatError
	if errors.As(err, &fe) && fe.Offset >= 0 {
		return format.Errorf(fe.Offset+delta, "%s", fe.Reason)
	}
	return err
}
