package transcribe

import (
	"context"
	"fmt"

	"github.com/vietscribe/vietscribe/audio"
)

// Result is the transcription of a single audio segment. Index mirrors the
// segment's position in the original stream so results produced out of order
// can be re-sorted before assembly. An empty Text is a valid result for
// silent or unintelligible audio, never an error.
type Result struct {
	Index      int
	Text       string
	Confidence float64
	Duration   float64 // seconds
}

// Transcriber sends one audio segment to a speech-to-text service.
type Transcriber interface {
	Transcribe(ctx context.Context, segment audio.Segment, language string) (Result, error)
}

// RemoteError reports a transport or HTTP failure from the speech-to-text
// service. StatusCode is zero when the request never reached the service.
type RemoteError struct {
	StatusCode int
	Err        error
}

func (e *RemoteError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("transcription service error (http %d): %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("transcription service error: %v", e.Err)
}

func (e *RemoteError) Unwrap() error { return e.Err }

// Temporary reports whether the failure is worth retrying.
func (e *RemoteError) Temporary() bool {
	return e.StatusCode == 0 || e.StatusCode == 429 || e.StatusCode >= 500
}
