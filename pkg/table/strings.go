package table

// StringTable interns strings by value.
type StringTable struct {
	*Table[string]
}

// NewStringTable returns an empty string table.
func NewStringTable() *StringTable {
	return &StringTable{Table: New[string]()}
}

// Serialize emits the table in on-disk form.
func (s *StringTable) Serialize() []byte {
	return s.Table.Serialize(func(dst []byte, k string) []byte {
		return append(dst, k...)
	})
}

// ParseStrings reads a serialized string table from buf[off:]. The
// result keeps duplicates exactly as stored; nothing is re-interned.
func ParseStrings(buf []byte, off int, base int64) ([]string, int, error) {
	raw, next, err := ParseEntries(buf, off, base)
	if err != nil {
		return nil, next, err
	}
	out := make([]string, len(raw))
	for i, r := range raw {
		out[i] = string(r)
	}
	return out, next, nil
}
