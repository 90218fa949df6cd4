package table

import "github.com/danpilch/gonytprof/pkg/format"

// FileTable assigns dense file ids starting at 1. Id 0 is reserved for
// unknown or synthetic code.
type FileTable struct {
	paths   *Table[string]
	records []format.FileRecord
}

// NewFileTable returns an empty file table.
func NewFileTable() *FileTable {
	return &FileTable{paths: New[string]()}
}

// Intern returns the fid for rec.Path, creating the record on first
// sight. A record is never changed by a later Intern of the same path.
func (f *FileTable) Intern(rec format.FileRecord) (fid uint32, added bool) {
	i, added := f.paths.Intern(rec.Path)
	if added {
		rec.FID = uint32(i + 1)
		f.records = append(f.records, rec)
	}
	return uint32(i + 1), added
}

// Lookup returns the fid assigned to path.
func (f *FileTable) Lookup(path string) (uint32, bool) {
	i, ok := f.paths.Lookup(path)
	return uint32(i + 1), ok
}

// Get returns the record for fid.
func (f *FileTable) Get(fid uint32) (format.FileRecord, bool) {
	if fid == 0 || int(fid) > len(f.records) {
		return format.FileRecord{}, false
	}
	return f.records[fid-1], true
}

// SetFlags ORs flags into the record for fid. Only the writer's own
// source-embedding bookkeeping uses this before serialization.
func (f *FileTable) SetFlags(fid uint32, flags uint32) bool {
	if fid == 0 || int(fid) > len(f.records) {
		return false
	}
	f.records[fid-1].Flags |= flags
	return true
}

// Len returns the number of files.
func (f *FileTable) Len() int {
	return len(f.records)
}

// Records returns the files in fid order.
func (f *FileTable) Records() []format.FileRecord {
	return f.records
}
