package table

import "github.com/danpilch/gonytprof/pkg/format"

// SubTable assigns subroutine ids starting at 1 and interns their names
// in a StringTable. A subroutine is identified by its name; redefining a
// known name returns the original id and keeps the original extent.
type SubTable struct {
	names *StringTable
	defs  []format.SubroutineDefinition
}

// NewSubTable returns an empty subroutine table.
func NewSubTable() *SubTable {
	return &SubTable{names: NewStringTable()}
}

// Define returns the sid for def.Name, recording def on first sight.
func (s *SubTable) Define(def format.SubroutineDefinition) (sid uint32, added bool) {
	// names and defs grow together, so name index i is sid i+1
	idx, added := s.names.Intern(def.Name)
	if !added {
		return uint32(idx + 1), false
	}
	def.SID = uint32(idx + 1)
	s.defs = append(s.defs, def)
	return def.SID, true
}

// Get returns the definition for sid.
func (s *SubTable) Get(sid uint32) (format.SubroutineDefinition, bool) {
	if sid == 0 || int(sid) > len(s.defs) {
		return format.SubroutineDefinition{}, false
	}
	return s.defs[sid-1], true
}

// NameIndex returns the string-table index of a subroutine name.
func (s *SubTable) NameIndex(name string) (uint32, bool) {
	i, ok := s.names.Lookup(name)
	return uint32(i), ok
}

// Names returns the subroutine-name string table.
func (s *SubTable) Names() *StringTable {
	return s.names
}

// Len returns the number of subroutines.
func (s *SubTable) Len() int {
	return len(s.defs)
}

// Definitions returns the subroutines in sid order.
func (s *SubTable) Definitions() []format.SubroutineDefinition {
	return s.defs
}
