package output

// Suggestion represents a diagnostic next-step.
type Suggestion struct {
	Tool    string
	Command string
	Reason  string
}

// DrillDown returns follow-up commands for looking deeper into a trace.
// tracePath is substituted into the commands; "trace.out" is used when
// it is empty.
func DrillDown(s Summary, tracePath string) []Suggestion {
	if tracePath == "" {
		tracePath = "trace.out"
	}
	if s.LineCount == 0 {
		return []Suggestion{
			{"nytprof", "nytprof dump --chunks " + tracePath, "Confirm the trace holds no line records"},
		}
	}

	var suggestions []Suggestion
	if s.Edges > 0 {
		suggestions = append(suggestions,
			Suggestion{"nytprof", "nytprof folded " + tracePath + " | flamegraph.pl > trace.svg", "Render a flame graph of subroutine stacks"},
			Suggestion{"go", "nytprof pprof -o trace.pb.gz " + tracePath + " && go tool pprof -top trace.pb.gz", "Rank subroutines with pprof"},
		)
	}
	suggestions = append(suggestions,
		Suggestion{"nytprof", "nytprof speedscope -o trace.speedscope.json " + tracePath, "Browse line timings in speedscope"},
	)
	if len(s.HotLines) > 0 && s.HotLines[0].Share >= 0.5 {
		suggestions = append(suggestions,
			Suggestion{"nytprof", "nytprof summary --top=-1 --format tsv " + tracePath, "One line dominates; list every line for context"},
		)
	}
	return suggestions
}
