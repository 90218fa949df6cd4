package convert

import (
	"errors"
	"fmt"
	"html"
	"io"
	"sort"
	"strings"

	"github.com/danpilch/gonytprof/pkg/format"
)

// SVGOptions configures the flame graph SVG output.
type SVGOptions struct {
	Title       string
	Width       int
	Height      int
	ColorScheme string // "hot", "cold", "mem"

	Folded FoldedOptions
}

// DefaultSVGOptions returns sensible defaults.
func DefaultSVGOptions() SVGOptions {
	return SVGOptions{
		Title:       "Flame Graph",
		Width:       1200,
		ColorScheme: "hot",
	}
}

// ErrNoSamples is returned by WriteFlameGraph for a trace without any
// exclusive time.
var ErrNoSamples = errors.New("no exclusive time recorded")

// frame represents a stack frame in the flame graph tree.
type frame struct {
	name     string
	value    uint64
	children map[string]*frame
}

func newFrame(name string) *frame {
	return &frame{
		name:     name,
		children: make(map[string]*frame),
	}
}

// WriteFlameGraph renders the folded stacks of m as an SVG flame graph
// whose frame widths are proportional to exclusive time.
func WriteFlameGraph(svg io.Writer, m *format.TraceModel, opts SVGOptions) error {
	if opts.Width == 0 {
		opts.Width = 1200
	}
	if opts.Title == "" {
		opts.Title = "Flame Graph: " + rootName(m)
	}

	root := newFrame("all")
	for stack, ticks := range foldedStacks(m, opts.Folded) {
		node := root
		for _, fname := range strings.Split(stack, ";") {
			child, ok := node.children[fname]
			if !ok {
				child = newFrame(fname)
				node.children[fname] = child
			}
			child.value = format.SaturatingAdd64(child.value, ticks)
			node = child
		}
		root.value = format.SaturatingAdd64(root.value, ticks)
	}
	if root.value == 0 {
		return ErrNoSamples
	}

	frameHeight := 16
	fontSize := 12
	chartHeight := (maxDepth(root, 0) + 2) * frameHeight
	headerHeight := 40
	if opts.Height == 0 {
		opts.Height = chartHeight + headerHeight + 20
	}

	fmt.Fprintf(svg, `<?xml version="1.0" standalone="no"?>
<!DOCTYPE svg PUBLIC "-//W3C//DTD SVG 1.1//EN" "http://www.w3.org/Graphics/SVG/1.1/DTD/svg1.1.dtd">
<svg version="1.1" width="%d" height="%d" xmlns="http://www.w3.org/2000/svg">
<style>
  .func:hover { stroke:black; stroke-width:0.5; cursor:pointer; }
  text { font-family: monospace; font-size: %dpx; }
</style>
<rect x="0" y="0" width="%d" height="%d" fill="white"/>
<text x="%d" y="20" text-anchor="middle" style="font-size:16px; font-weight:bold;">%s</text>
<text x="%d" y="35" text-anchor="middle" style="font-size:12px; fill:#666;">(%s exclusive)</text>
`,
		opts.Width, opts.Height, fontSize,
		opts.Width, opts.Height,
		opts.Width/2, html.EscapeString(opts.Title),
		opts.Width/2, format.TicksToDuration(root.value))

	r := flameRenderer{
		w:           svg,
		frameHeight: frameHeight,
		baseY:       opts.Height - 20,
		total:       root.value,
		scheme:      opts.ColorScheme,
	}
	margin := 10
	r.frame(root, margin, opts.Width-2*margin, 0)

	_, err := fmt.Fprintln(svg, "</svg>")
	return err
}

type flameRenderer struct {
	w           io.Writer
	frameHeight int
	baseY       int
	total       uint64
	scheme      string
}

func (r *flameRenderer) frame(f *frame, x, width, depth int) {
	if width < 1 || f.value == 0 {
		return
	}

	y := r.baseY - depth*r.frameHeight
	red, green, blue := frameColor(depth, r.scheme)

	fmt.Fprintf(r.w, `<g class="func">
<rect x="%d" y="%d" width="%d" height="%d" fill="rgb(%d,%d,%d)" rx="1"/>
`, x, y-r.frameHeight, width, r.frameHeight-1, red, green, blue)

	if width > 40 {
		label := f.name
		maxChars := (width - 4) / 7 // approximate char width
		if len(label) > maxChars {
			if maxChars > 3 {
				label = label[:maxChars-2] + ".."
			} else {
				label = ""
			}
		}
		if label != "" {
			fmt.Fprintf(r.w, `<text x="%d" y="%d" fill="black">%s</text>
`, x+2, y-4, html.EscapeString(label))
		}
	}

	fmt.Fprintf(r.w, `<title>%s (%s, %.1f%%)</title>
</g>
`, html.EscapeString(f.name), format.TicksToDuration(f.value), float64(f.value)/float64(r.total)*100)

	// Sort children for deterministic output
	names := make([]string, 0, len(f.children))
	for name := range f.children {
		names = append(names, name)
	}
	sort.Strings(names)

	childX := x
	for _, name := range names {
		child := f.children[name]
		childWidth := max(int(float64(width)*float64(child.value)/float64(f.value)), 1)
		r.frame(child, childX, childWidth, depth+1)
		childX += childWidth
	}
}

func frameColor(depth int, scheme string) (int, int, int) {
	switch scheme {
	case "cold":
		g := 50 + (depth*30)%150
		b := 150 + (depth*20)%100
		return 30, g, b
	case "mem":
		g := 190 + (depth*15)%60
		return 30, g, 30
	default: // "hot"
		r := 200 + (depth*15)%55
		g := 50 + (depth*40)%150
		return r, g, 30
	}
}

func maxDepth(f *frame, depth int) int {
	deepest := depth
	for _, child := range f.children {
		deepest = max(deepest, maxDepth(child, depth+1))
	}
	return deepest
}
