package translate

import "unicode"

// DefaultMaxChunkChars keeps prompts comfortably under the translation
// model's practical input budget (roughly 500 tokens of Vietnamese text).
const DefaultMaxChunkChars = 2000

// Split partitions text into ordered chunks of at most maxChars characters,
// preferring sentence-terminal cut points, then whitespace, then a hard cut
// as last resort. Splits land on original characters and nothing is
// inserted or dropped: concatenating the chunks in index order reproduces
// the input exactly. Sentence markers and the whitespace that follows them
// stay with the preceding chunk. Every chunk consumes at least one
// character, so progress is guaranteed even for a single unbroken token
// longer than the budget.
func Split(text string, maxChars int) []Chunk {
	if maxChars < 1 {
		maxChars = 1
	}

	runes := []rune(text)
	if len(runes) <= maxChars {
		return []Chunk{{Index: 0, Text: text, EndsSentence: endsAtSentence(runes)}}
	}

	var chunks []Chunk
	start := 0
	for start < len(runes) {
		end := len(runes)
		if end-start > maxChars {
			end = cut(runes, start, start+maxChars)
		}
		chunks = append(chunks, Chunk{
			Index:        len(chunks),
			Text:         string(runes[start:end]),
			EndsSentence: endsAtSentence(runes[start:end]),
		})
		start = end
	}

	return chunks
}

// cut picks the split point for the window [start, limit). Preference order:
// the last sentence terminal followed by whitespace, the last whitespace
// run, the window end.
func cut(runes []rune, start, limit int) int {
	for i := limit - 1; i > start; i-- {
		if isSentenceTerminal(runes[i]) && i+1 < len(runes) && unicode.IsSpace(runes[i+1]) {
			return absorbSpace(runes, i+1, limit)
		}
	}

	for i := limit - 1; i > start; i-- {
		if unicode.IsSpace(runes[i]) {
			return absorbSpace(runes, i, limit)
		}
	}

	return limit
}

// absorbSpace extends the cut over the whitespace run starting at pos, but
// never past the chunk budget. Whitespace left over simply leads the next
// chunk; the rejoin stays lossless either way.
func absorbSpace(runes []rune, pos, limit int) int {
	for pos < limit && pos < len(runes) && unicode.IsSpace(runes[pos]) {
		pos++
	}
	return pos
}

func isSentenceTerminal(r rune) bool {
	switch r {
	case '.', '!', '?', '…':
		return true
	}
	return false
}

func endsAtSentence(runes []rune) bool {
	for i := len(runes) - 1; i >= 0; i-- {
		if unicode.IsSpace(runes[i]) {
			continue
		}
		return isSentenceTerminal(runes[i])
	}
	return false
}
