package convert

import (
	"fmt"
	"io"
	"path"

	json "github.com/goccy/go-json"

	"github.com/danpilch/gonytprof/pkg/format"
)

// SpeedscopeSchema is the schema URL speedscope expects in "$schema".
const SpeedscopeSchema = "https://www.speedscope.app/file-format-schema.json"

// Speedscope is the subset of the speedscope file format we emit.
type Speedscope struct {
	Schema   string           `json:"$schema"`
	Shared   SpeedscopeShared `json:"shared"`
	Profiles []EventedProfile `json:"profiles"`
	Exporter string           `json:"exporter,omitempty"`
	Name     string           `json:"name,omitempty"`
}

// SpeedscopeShared holds the frame table events refer to by index.
type SpeedscopeShared struct {
	Frames []SpeedscopeFrame `json:"frames"`
}

// SpeedscopeFrame is one file:line location.
type SpeedscopeFrame struct {
	Name string `json:"name"`
	File string `json:"file,omitempty"`
	Line uint32 `json:"line,omitempty"`
}

// EventedProfile is a speedscope profile of open and close events.
type EventedProfile struct {
	Type       string            `json:"type"`
	Name       string            `json:"name"`
	Unit       string            `json:"unit"`
	StartValue uint64            `json:"startValue"`
	EndValue   uint64            `json:"endValue"`
	Events     []SpeedscopeEvent `json:"events"`
}

// SpeedscopeEvent opens ("O") or closes ("C") a frame at a time.
type SpeedscopeEvent struct {
	Type  string `json:"type"`
	At    uint64 `json:"at"`
	Frame int    `json:"frame"`
}

// ToSpeedscope lays the line records end to end as one evented profile
// in microseconds, each line a frame named "file:line" open for its
// inclusive time.
func ToSpeedscope(m *format.TraceModel) *Speedscope {
	var (
		frames  []SpeedscopeFrame
		index   = make(map[string]int)
		events  = make([]SpeedscopeEvent, 0, 2*len(m.Records))
		current uint64
	)
	for _, r := range m.Records {
		file := fileName(m, r.FID)
		name := fmt.Sprintf("%s:%d", path.Base(file), r.Line)
		idx, ok := index[name]
		if !ok {
			idx = len(frames)
			index[name] = idx
			frames = append(frames, SpeedscopeFrame{Name: name, File: file, Line: r.Line})
		}
		dur := r.InclusiveTicks / (format.TicksPerSecond / 1_000_000)
		events = append(events,
			SpeedscopeEvent{Type: "O", At: current, Frame: idx},
			SpeedscopeEvent{Type: "C", At: current + dur, Frame: idx},
		)
		current += dur
	}
	if frames == nil {
		frames = []SpeedscopeFrame{}
	}

	return &Speedscope{
		Schema:   SpeedscopeSchema,
		Shared:   SpeedscopeShared{Frames: frames},
		Exporter: "gonytprof",
		Name:     rootName(m),
		Profiles: []EventedProfile{{
			Type:     "evented",
			Name:     rootName(m),
			Unit:     "microseconds",
			EndValue: current,
			Events:   events,
		}},
	}
}

// WriteSpeedscope writes ToSpeedscope(m) as indented JSON.
func WriteSpeedscope(w io.Writer, m *format.TraceModel) error {
	out, err := json.MarshalIndent(ToSpeedscope(m), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal speedscope: %w", err)
	}
	out = append(out, '\n')
	_, err = w.Write(out)
	return err
}
