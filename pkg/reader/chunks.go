package reader

import (
	"encoding/binary"

	"github.com/danpilch/gonytprof/pkg/format"
)

// ChunkInfo locates one chunk in a trace file.
type ChunkInfo struct {
	Tag format.ChunkTag

	// Offset is the position of the tag byte.
	Offset int64

	// Len is the declared payload length; the payload starts at
	// Offset+format.ChunkHeaderLen.
	Len uint32
}

// PayloadOffset returns the position of the first payload byte.
func (c ChunkInfo) PayloadOffset() int64 {
	return c.Offset + format.ChunkHeaderLen
}

// End returns the position just past the payload.
func (c ChunkInfo) End() int64 {
	return c.PayloadOffset() + int64(c.Len)
}

// ScanChunks validates the header and chunk framing of data and returns
// the location of every chunk up to and including the end chunk.
// Payloads are not decoded.
func ScanChunks(data []byte) ([]ChunkInfo, error) {
	info, err := ParseHeader(data)
	if err != nil {
		return nil, err
	}
	if _, err := parseProcess(data, info); err != nil {
		return nil, err
	}
	return scanChunks(data, info.FirstChunkOffset)
}

func scanChunks(data []byte, off int) ([]ChunkInfo, error) {
	var (
		seq    chunkSequence
		chunks []ChunkInfo
	)
	for {
		if off >= len(data) {
			return nil, format.Errorf(int64(off), "missing end chunk")
		}
		tag := format.ChunkTag(data[off])
		if err := seq.next(tag, int64(off)); err != nil {
			return nil, err
		}
		if len(data)-off < format.ChunkHeaderLen {
			return nil, format.Errorf(int64(off+1), "truncated length in %s chunk", tag)
		}
		c := ChunkInfo{
			Tag:    tag,
			Offset: int64(off),
			Len:    binary.LittleEndian.Uint32(data[off+1:]),
		}
		if c.End() > int64(len(data)) {
			return nil, format.Errorf(c.PayloadOffset(),
				"truncated payload in %s chunk: need %d bytes, have %d", tag, c.Len, int64(len(data))-c.PayloadOffset())
		}
		chunks = append(chunks, c)
		if tag == format.ChunkEnd {
			return chunks, nil
		}
		off = int(c.End())
	}
}

// chunkSequence enforces the fixed chunk order: every tag must be known
// and follow directly after the one before it, starting with S. A
// skipped chunk is reported as missing.
type chunkSequence struct {
	prev  format.ChunkTag
	count int
}

func (s *chunkSequence) next(tag format.ChunkTag, off int64) error {
	rank := tag.Rank()
	if rank < 0 {
		return format.Errorf(off, "unknown token 0x%02x", byte(tag))
	}
	switch {
	case rank < s.count:
		return format.Errorf(off, "chunk out of order: %s after %s", tag, s.prev)
	case rank > s.count:
		return format.Errorf(off, "missing %s chunk", format.ChunkOrder[s.count])
	}
	s.prev = tag
	s.count++
	return nil
}

// checkStride rejects fixed-width record blocks with a remainder.
func checkStride(tag format.ChunkTag, n int, off int64) error {
	if n%format.RecordStride != 0 {
		return format.Errorf(off, "misaligned %s chunk: %d bytes is not a multiple of %d",
			tag, n, format.RecordStride)
	}
	return nil
}
