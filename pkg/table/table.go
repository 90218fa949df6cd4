// Package table provides the interning tables that map strings, file
// paths and subroutine names to dense integer ids.
//
// Tables are write-once: after a table has been serialized no further
// entries may be interned. This is a usage contract and is not checked.
package table

import (
	"github.com/danpilch/gonytprof/pkg/format"
	"github.com/danpilch/gonytprof/pkg/varint"
)

// Table interns values of type K. Append order defines index order and
// the first insertion of a value wins.
type Table[K comparable] struct {
	index   map[K]int
	entries []K
}

// New returns an empty table.
func New[K comparable]() *Table[K] {
	return &Table[K]{index: make(map[K]int)}
}

// Intern returns the index of k, appending it if it is new. added reports
// whether k was appended.
func (t *Table[K]) Intern(k K) (idx int, added bool) {
	if i, ok := t.index[k]; ok {
		return i, false
	}
	i := len(t.entries)
	t.index[k] = i
	t.entries = append(t.entries, k)
	return i, true
}

// Lookup returns the index of k without interning it.
func (t *Table[K]) Lookup(k K) (int, bool) {
	i, ok := t.index[k]
	return i, ok
}

// At returns the entry at index i.
func (t *Table[K]) At(i int) (K, bool) {
	if i < 0 || i >= len(t.entries) {
		var zero K
		return zero, false
	}
	return t.entries[i], true
}

// Len returns the number of entries.
func (t *Table[K]) Len() int {
	return len(t.entries)
}

// Entries returns the entries in index order. The slice must not be
// modified.
func (t *Table[K]) Entries() []K {
	return t.entries
}

// Serialize emits a varint count followed by each entry as a varint
// length and the bytes produced by enc.
func (t *Table[K]) Serialize(enc func(dst []byte, k K) []byte) []byte {
	out := varint.AppendU32(nil, uint32(len(t.entries)))
	var scratch []byte
	for _, k := range t.entries {
		scratch = enc(scratch[:0], k)
		out = varint.AppendU32(out, uint32(len(scratch)))
		out = append(out, scratch...)
	}
	return out
}

// ParseEntries splits a serialized table starting at buf[off] into its
// raw entries and returns the offset just past it. base is the absolute
// file offset of buf and only affects error offsets. Entries alias buf.
func ParseEntries(buf []byte, off int, base int64) ([][]byte, int, error) {
	count, off, err := varint.DecodeU32(buf, off)
	if err != nil {
		return nil, off, format.Errorf(base+int64(off), "truncated table count")
	}
	// every entry needs at least its length byte
	if int(count) > len(buf)-off {
		return nil, off, format.Errorf(base+int64(off), "table count %d exceeds payload", count)
	}
	entries := make([][]byte, 0, count)
	for i := uint32(0); i < count; i++ {
		var n uint32
		n, off, err = varint.DecodeU32(buf, off)
		if err != nil {
			return nil, off, format.Errorf(base+int64(off), "truncated table entry %d length", i)
		}
		if int(n) > len(buf)-off {
			return nil, off, format.Errorf(base+int64(off), "truncated table entry %d", i)
		}
		entries = append(entries, buf[off:off+int(n)])
		off += int(n)
	}
	return entries, off, nil
}
