// Package tracer turns a stream of enter, line and leave events into the
// aggregate line statistics and call edges a trace file stores. It does
// not hook into any runtime: callers report events as they observe them.
package tracer

import (
	"cmp"
	"fmt"
	"slices"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/danpilch/gonytprof/pkg/format"
)

// Sink receives aggregates on Flush. *writer.Writer implements it.
type Sink interface {
	RecordLine(fid, line, calls uint32, inclusive, exclusive uint64) error
	RecordCallEdgeTimes(caller, callee, calls uint32, inclusive, exclusive uint64) error
}

// RootSID is the subroutine id used for code outside any subroutine.
const RootSID = 0

type frame struct {
	sid      uint32
	start    time.Duration
	last     time.Duration
	line     format.LineKey
	hasLine  bool
	caller   format.LineKey
	hasCall  bool
	children time.Duration
}

type lineAgg struct {
	calls uint32
	inc   time.Duration
	exc   time.Duration
}

type edgeAgg struct {
	calls uint32
	inc   time.Duration
	exc   time.Duration
}

// Session aggregates the events of one traced thread of execution.
// Time spent on a line is charged to that line when execution moves
// on, and a callee's total time is added to the calling line's
// inclusive time only.
type Session struct {
	clock  func() time.Duration
	logger *logrus.Logger

	stack []*frame
	lines map[format.LineKey]*lineAgg
	edges map[format.EdgeKey]*edgeAgg
}

// Option configures a Session.
type Option func(*Session)

// WithClock replaces the monotonic clock. now must never go backwards.
func WithClock(now func() time.Duration) Option {
	return func(s *Session) { s.clock = now }
}

// WithLogger sets the logger.
func WithLogger(logger *logrus.Logger) Option {
	return func(s *Session) { s.logger = logger }
}

// NewSession returns an empty session.
func NewSession(opts ...Option) *Session {
	s := &Session{
		lines: make(map[format.LineKey]*lineAgg),
		edges: make(map[format.EdgeKey]*edgeAgg),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.clock == nil {
		base := time.Now()
		s.clock = func() time.Duration { return time.Since(base) }
	}
	if s.logger == nil {
		s.logger = logrus.New()
		s.logger.SetLevel(logrus.WarnLevel)
	}
	return s
}

// Depth returns the number of open frames, the root frame included.
func (s *Session) Depth() int {
	return len(s.stack)
}

// Enter opens a frame for subroutine sid, called from the current line.
func (s *Session) Enter(sid uint32) {
	now := s.clock()
	f := &frame{sid: sid, start: now, last: now}
	if parent := s.top(); parent != nil {
		s.chargeLine(parent, now)
		f.caller, f.hasCall = parent.line, parent.hasLine
	}
	s.stack = append(s.stack, f)
}

// Line reports that execution reached fid:line in the current frame.
// A Line with no open frame starts the root frame.
func (s *Session) Line(fid, line uint32) {
	now := s.clock()
	cur := s.top()
	if cur == nil {
		cur = &frame{sid: RootSID, start: now, last: now}
		s.stack = append(s.stack, cur)
	}
	s.chargeLine(cur, now)
	cur.line = format.LineKey{FID: fid, Line: line}
	cur.hasLine = true
	agg := s.lineAgg(cur.line)
	agg.calls = format.SaturatingAdd32(agg.calls, 1)
}

// Leave closes the innermost frame.
func (s *Session) Leave() error {
	now := s.clock()
	cur := s.top()
	if cur == nil {
		return &format.UsageError{Op: "leave", Reason: "no open frame"}
	}
	s.chargeLine(cur, now)
	s.stack = s.stack[:len(s.stack)-1]

	total := now - cur.start
	parent := s.top()
	if parent == nil && cur.sid == RootSID {
		return nil
	}

	caller := uint32(RootSID)
	if parent != nil {
		caller = parent.sid
		parent.children += total
		parent.last = now
	}
	if cur.hasCall {
		s.lineAgg(cur.caller).inc += total
	}

	key := format.EdgeKey{Caller: caller, Callee: cur.sid}
	e, ok := s.edges[key]
	if !ok {
		e = &edgeAgg{}
		s.edges[key] = e
	}
	e.calls = format.SaturatingAdd32(e.calls, 1)
	e.inc += total
	e.exc += total - cur.children
	return nil
}

// chargeLine attributes the time since f.last to the line f is on.
func (s *Session) chargeLine(f *frame, now time.Duration) {
	if f.hasLine {
		dt := now - f.last
		agg := s.lineAgg(f.line)
		agg.inc += dt
		agg.exc += dt
	}
	f.last = now
}

func (s *Session) top() *frame {
	if len(s.stack) == 0 {
		return nil
	}
	return s.stack[len(s.stack)-1]
}

func (s *Session) lineAgg(k format.LineKey) *lineAgg {
	a, ok := s.lines[k]
	if !ok {
		a = &lineAgg{}
		s.lines[k] = a
	}
	return a
}

// Finish closes every open frame, root included.
func (s *Session) Finish() {
	for len(s.stack) > 0 {
		_ = s.Leave()
	}
}

// Flush closes all frames and hands every aggregate to sink once, in
// key order. The session is empty afterwards.
func (s *Session) Flush(sink Sink) error {
	s.Finish()

	lineKeys := make([]format.LineKey, 0, len(s.lines))
	for k := range s.lines {
		lineKeys = append(lineKeys, k)
	}
	slices.SortFunc(lineKeys, func(a, b format.LineKey) int {
		return cmp.Or(cmp.Compare(a.FID, b.FID), cmp.Compare(a.Line, b.Line))
	})
	for _, k := range lineKeys {
		a := s.lines[k]
		inc, exc := format.DurationToTicks(a.inc), format.DurationToTicks(a.exc)
		if err := sink.RecordLine(k.FID, k.Line, a.calls, inc, exc); err != nil {
			return fmt.Errorf("flush line %d:%d: %w", k.FID, k.Line, err)
		}
	}

	edgeKeys := make([]format.EdgeKey, 0, len(s.edges))
	for k := range s.edges {
		edgeKeys = append(edgeKeys, k)
	}
	slices.SortFunc(edgeKeys, func(a, b format.EdgeKey) int {
		return cmp.Or(cmp.Compare(a.Caller, b.Caller), cmp.Compare(a.Callee, b.Callee))
	})
	for _, k := range edgeKeys {
		e := s.edges[k]
		inc, exc := format.DurationToTicks(e.inc), format.DurationToTicks(e.exc)
		if err := sink.RecordCallEdgeTimes(k.Caller, k.Callee, e.calls, inc, exc); err != nil {
			return fmt.Errorf("flush edge %d->%d: %w", k.Caller, k.Callee, err)
		}
	}

	s.logger.WithFields(logrus.Fields{
		"lines": len(lineKeys),
		"edges": len(edgeKeys),
	}).Debug("flushed session")

	clear(s.lines)
	clear(s.edges)
	return nil
}
