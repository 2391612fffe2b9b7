package translate

import (
	"context"
	"fmt"
)

// Chunk is a character-bounded slice of source text, independently
// translatable. Index preserves the original ordering; EndsSentence records
// whether the chunk was cut at a sentence boundary.
type Chunk struct {
	Index        int
	Text         string
	EndsSentence bool
}

// Translated pairs a chunk index with its translation. Translation length
// bears no relation to source length.
type Translated struct {
	Index int
	Text  string
}

// Translator sends one text chunk to a translation service.
type Translator interface {
	Translate(ctx context.Context, chunk Chunk, sourceLang, targetLang string) (Translated, error)
}

// RemoteError reports a transport or HTTP failure from the translation
// service. StatusCode is zero when the request never reached the service.
type RemoteError struct {
	StatusCode int
	Err        error
}

func (e *RemoteError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("translation service error (http %d): %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("translation service error: %v", e.Err)
}

func (e *RemoteError) Unwrap() error { return e.Err }

// Temporary reports whether the failure is worth retrying.
func (e *RemoteError) Temporary() bool {
	return e.StatusCode == 0 || e.StatusCode == 429 || e.StatusCode >= 500
}

// RefusalError means the model returned a recognizable refusal instead of a
// translation. The reply must never be accepted as translated text.
type RefusalError struct {
	Reply string
}

func (e *RefusalError) Error() string {
	return fmt.Sprintf("translation service refused: %q", truncate(e.Reply, 120))
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
