package transcribe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/vietscribe/vietscribe/audio"
)

// ensure this satisfies the interface
var _ Transcriber = (*OpenAIClient)(nil)

// OpenAIClient transcribes audio segments via the OpenAI audio transcription
// endpoint, requesting verbose JSON so per-segment log probabilities are
// available for confidence scoring.
type OpenAIClient struct {
	api   *openai.Client
	model string
}

// NewOpenAIClient creates a whisper transcription client. An empty model
// defaults to whisper-1.
func NewOpenAIClient(apiKey, model string) *OpenAIClient {
	if model == "" {
		model = openai.Whisper1
	}
	return &OpenAIClient{
		api:   openai.NewClient(apiKey),
		model: model,
	}
}

// Transcribe sends one segment to the service. The segment index propagates
// into the result unchanged for later reordering.
func (c *OpenAIClient) Transcribe(ctx context.Context, segment audio.Segment, language string) (Result, error) {
	resp, err := c.api.CreateTranscription(ctx, openai.AudioRequest{
		Model:    c.model,
		FilePath: fmt.Sprintf("segment_%03d.wav", segment.Index),
		Reader:   bytes.NewReader(segment.Data),
		Language: language,
		Format:   openai.AudioResponseFormatVerboseJSON,
	})
	if err != nil {
		return Result{}, classifyTranscriptionError(err)
	}

	logprobs := make([]float64, 0, len(resp.Segments))
	for _, seg := range resp.Segments {
		logprobs = append(logprobs, seg.AvgLogprob)
	}

	duration := resp.Duration
	if duration == 0 {
		duration = segment.Duration.Seconds()
	}

	result := Result{
		Index:      segment.Index,
		Text:       strings.TrimSpace(resp.Text),
		Confidence: Confidence(logprobs),
		Duration:   duration,
	}

	slog.Debug("transcribed segment",
		"index", segment.Index,
		"bytes", segment.Size(),
		"chars", len(result.Text),
		"confidence", result.Confidence,
		"duration", result.Duration)

	return result, nil
}

func classifyTranscriptionError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode == http.StatusBadRequest && mentionsFormat(apiErr.Message) {
			return fmt.Errorf("%w: %s", audio.ErrUnsupportedFormat, apiErr.Message)
		}
		return &RemoteError{StatusCode: apiErr.HTTPStatusCode, Err: err}
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &RemoteError{StatusCode: reqErr.HTTPStatusCode, Err: err}
	}

	return &RemoteError{Err: err}
}

func mentionsFormat(message string) bool {
	msg := strings.ToLower(message)
	return strings.Contains(msg, "format") ||
		strings.Contains(msg, "decode") ||
		strings.Contains(msg, "codec") ||
		strings.Contains(msg, "file type")
}
