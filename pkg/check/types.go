// Package check verifies batches of trace files and summarizes the
// outcome.
package check

import "fmt"

// Status represents the outcome of verifying one file.
type Status string

const (
	StatusOK         Status = "ok"
	StatusCorrupt    Status = "corrupt"
	StatusUnreadable Status = "unreadable"
)

// Check represents the verification result for one trace file.
type Check struct {
	Path   string `json:"path"`
	Status Status `json:"status"`
	Chunks int    `json:"chunks"`
	Tags   string `json:"tags,omitempty"`
	Size   int64  `json:"size"`

	// Offset is the failing byte position for corrupt files.
	Offset int64 `json:"offset,omitempty"`

	Err error `json:"-"`
}

// Line renders the check the way the verify command prints it.
func (c Check) Line() string {
	if c.Status == StatusOK {
		return fmt.Sprintf("%s ✓ %d chunks", c.Path, c.Chunks)
	}
	return fmt.Sprintf("%s ✗ %v", c.Path, c.Err)
}

// Summary calculates summary statistics from check results.
type Summary struct {
	Total      int
	OK         int
	Corrupt    int
	Unreadable int
}

// Summarize calculates summary statistics from check results.
func Summarize(checks []Check) Summary {
	s := Summary{Total: len(checks)}
	for _, c := range checks {
		switch c.Status {
		case StatusOK:
			s.OK++
		case StatusCorrupt:
			s.Corrupt++
		case StatusUnreadable:
			s.Unreadable++
		}
	}
	return s
}

// ExitCode returns 0 when every file verified and 1 otherwise.
func ExitCode(checks []Check) int {
	if Summarize(checks).OK == len(checks) {
		return 0
	}
	return 1
}
