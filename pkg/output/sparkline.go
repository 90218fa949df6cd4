package output

import "strings"

// DefaultSparklineWidth is the number of cells in a file profile.
const DefaultSparklineWidth = 20

// sparkline block characters from lowest to highest
var sparkBlocks = []rune{
	'\u2581', // ▁
	'\u2582', // ▂
	'\u2583', // ▃
	'\u2584', // ▄
	'\u2585', // ▅
	'\u2586', // ▆
	'\u2587', // ▇
	'\u2588', // █
}

// Sparkline renders values as at most width cells. When there are more
// values than cells, neighbouring values are summed into one cell.
func Sparkline(values []float64, width int) string {
	if width < 1 {
		width = DefaultSparklineWidth
	}
	return renderSparkline(bucket(values, width))
}

func bucket(values []float64, width int) []float64 {
	if len(values) <= width {
		return values
	}
	out := make([]float64, width)
	for i, v := range values {
		out[i*width/len(values)] += v
	}
	return out
}

func renderSparkline(values []float64) string {
	if len(values) == 0 {
		return ""
	}

	min, max := values[0], values[0]
	for _, v := range values {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}

	var b strings.Builder
	rng := max - min
	for _, v := range values {
		idx := 0
		if rng > 0 {
			idx = int((v - min) / rng * float64(len(sparkBlocks)-1))
		}
		if idx >= len(sparkBlocks) {
			idx = len(sparkBlocks) - 1
		}
		if idx < 0 {
			idx = 0
		}
		b.WriteRune(sparkBlocks[idx])
	}

	return b.String()
}
