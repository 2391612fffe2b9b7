package transcribe

import (
	"sort"
	"strings"
)

// Assemble recombines per-segment results into a single transcript. Results
// are re-sorted by index first since concurrent dispatch does not preserve
// completion order. Non-empty texts are joined with a single space; empty
// segments are skipped in the join and in the confidence mean, but their
// duration still counts toward the total (silence consumed time too). Zero
// results yield the zero values.
func Assemble(results []Result) (text string, confidence float64, duration float64) {
	sorted := make([]Result, len(results))
	copy(sorted, results)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Index < sorted[j].Index
	})

	var parts []string
	var confSum float64
	var spoken int

	for _, r := range sorted {
		duration += r.Duration

		t := strings.TrimSpace(r.Text)
		if t == "" {
			continue
		}
		parts = append(parts, t)
		confSum += r.Confidence
		spoken++
	}

	if spoken > 0 {
		confidence = confSum / float64(spoken)
	}

	return strings.Join(parts, " "), confidence, duration
}
