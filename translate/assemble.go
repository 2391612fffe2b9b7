package translate

import (
	"sort"
	"strings"
)

// Assemble recombines per-chunk translations in index order, joined with a
// single space. Chunk boundaries were chosen on the source text, so the
// target text cannot retain the source whitespace exactly; a single-space
// join mirrors the transcript assembler. Empty translations are skipped in
// the join. Zero chunks yield the empty string.
func Assemble(chunks []Translated) string {
	sorted := make([]Translated, len(chunks))
	copy(sorted, chunks)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Index < sorted[j].Index
	})

	var parts []string
	for _, c := range sorted {
		if t := strings.TrimSpace(c.Text); t != "" {
			parts = append(parts, t)
		}
	}

	return strings.Join(parts, " ")
}
