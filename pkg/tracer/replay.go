package tracer

import (
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/danpilch/gonytprof/pkg/format"
)

// Script is a recorded event log: the files and subroutines a program
// touched and the timestamped events observed while it ran.
type Script struct {
	Files  []ScriptFile `yaml:"files"`
	Subs   []ScriptSub  `yaml:"subs"`
	Events []Event      `yaml:"events"`
}

// ScriptFile declares a source file. Files with EvalOf set are evals
// compiled at EvalLine of the named parent.
type ScriptFile struct {
	Path     string   `yaml:"path"`
	Size     uint32   `yaml:"size,omitempty"`
	MTime    uint32   `yaml:"mtime,omitempty"`
	Source   []string `yaml:"source,omitempty"`
	EvalOf   string   `yaml:"eval_of,omitempty"`
	EvalLine uint32   `yaml:"eval_line,omitempty"`
}

// ScriptSub declares a subroutine.
type ScriptSub struct {
	Name  string `yaml:"name"`
	File  string `yaml:"file"`
	First uint32 `yaml:"first"`
	Last  uint32 `yaml:"last"`
}

// Event kinds.
const (
	OpLine  = "line"
	OpEnter = "enter"
	OpLeave = "leave"
)

// Event is one observation. At is nanoseconds since the program
// started and must not decrease.
type Event struct {
	At   int64  `yaml:"at"`
	Op   string `yaml:"op"`
	File string `yaml:"file,omitempty"`
	Line uint32 `yaml:"line,omitempty"`
	Sub  string `yaml:"sub,omitempty"`
}

// Recorder is the writer surface a replay needs.
type Recorder interface {
	Sink
	AddFileRecord(rec format.FileRecord) (uint32, error)
	AddEvalFile(parentFID, parentLine uint32, name string) (uint32, error)
	AddSourceLine(fid, line uint32, text string) error
	DefineSub(fid, firstLine, lastLine uint32, name string) (uint32, error)
}

// LoadScript decodes a YAML event log.
func LoadScript(r io.Reader) (*Script, error) {
	var s Script
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		if err == io.EOF {
			return &s, nil
		}
		return nil, fmt.Errorf("decode event script: %w", err)
	}
	return &s, nil
}

// Replay registers the script's files and subroutines with rec, runs its
// events through a Session and flushes the aggregates into rec.
func Replay(s *Script, rec Recorder, opts ...Option) error {
	fids := make(map[string]uint32, len(s.Files))
	for _, f := range s.Files {
		var (
			fid uint32
			err error
		)
		if f.EvalOf != "" {
			parent, ok := fids[f.EvalOf]
			if !ok {
				return fmt.Errorf("file %q: eval parent %q must be declared first", f.Path, f.EvalOf)
			}
			fid, err = rec.AddEvalFile(parent, f.EvalLine, f.Path)
		} else {
			fid, err = rec.AddFileRecord(format.FileRecord{
				Path:  f.Path,
				Size:  f.Size,
				MTime: f.MTime,
				Flags: format.FileViaStmt,
			})
		}
		if err != nil {
			return fmt.Errorf("file %q: %w", f.Path, err)
		}
		fids[f.Path] = fid
		for i, text := range f.Source {
			if err := rec.AddSourceLine(fid, uint32(i+1), text); err != nil {
				return fmt.Errorf("file %q line %d: %w", f.Path, i+1, err)
			}
		}
	}

	sids := make(map[string]uint32, len(s.Subs))
	for _, sub := range s.Subs {
		var fid uint32
		if sub.File != "" {
			var ok bool
			if fid, ok = fids[sub.File]; !ok {
				return fmt.Errorf("sub %q: unknown file %q", sub.Name, sub.File)
			}
		}
		sid, err := rec.DefineSub(fid, sub.First, sub.Last, sub.Name)
		if err != nil {
			return fmt.Errorf("sub %q: %w", sub.Name, err)
		}
		sids[sub.Name] = sid
	}

	var now int64
	session := NewSession(append(opts, WithClock(func() time.Duration { return time.Duration(now) }))...)
	for i, ev := range s.Events {
		if ev.At < now {
			return fmt.Errorf("event %d: time goes backwards (%d < %d)", i, ev.At, now)
		}
		now = ev.At

		switch ev.Op {
		case OpLine:
			fid, ok := fids[ev.File]
			if !ok {
				return fmt.Errorf("event %d: unknown file %q", i, ev.File)
			}
			session.Line(fid, ev.Line)
		case OpEnter:
			sid, ok := sids[ev.Sub]
			if !ok {
				return fmt.Errorf("event %d: unknown sub %q", i, ev.Sub)
			}
			session.Enter(sid)
		case OpLeave:
			if err := session.Leave(); err != nil {
				return fmt.Errorf("event %d: %w", i, err)
			}
		default:
			return fmt.Errorf("event %d: unknown op %q", i, ev.Op)
		}
	}
	return session.Flush(rec)
}
