package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/vietscribe/vietscribe/audio"
	"github.com/vietscribe/vietscribe/transcribe"
	"github.com/vietscribe/vietscribe/translate"
)

// StatusCompleted marks a record whose every unit succeeded. Failed
// invocations never produce a record at all: a single unresolved unit aborts
// the whole run rather than silently dropping its contribution.
const StatusCompleted = "completed"

// Record is the unified result of one pipeline invocation, handed to the
// persistence collaborator. Duration and Confidence are nil for text-only
// invocations. Immutable after creation.
type Record struct {
	ID              string
	SourceLanguage  string
	TargetLanguage  string
	SourceText      string
	TranslatedText  string
	DurationSeconds *float64
	Confidence      *float64
	CreatedAt       time.Time
	Status          string
}

// Config carries the tunables for one pipeline. Ceilings and retry bounds
// come from configuration, never ambient globals, since remote-service
// limits change.
type Config struct {
	SourceLanguage string
	TargetLanguage string

	// MaxSegmentBytes caps each encoded audio segment sent to the
	// transcription service.
	MaxSegmentBytes int

	// MaxChunkChars caps each text chunk sent to the translation service.
	MaxChunkChars int

	// Concurrency bounds simultaneous outbound remote calls per invocation.
	Concurrency int

	// MaxAttempts is the total number of tries for a unit that keeps
	// failing with a temporary remote error.
	MaxAttempts int

	// RetryBackoff is the initial delay between attempts; it doubles after
	// each temporary failure.
	RetryBackoff time.Duration

	// UnitTimeout bounds each individual remote call. Zero means no
	// per-unit timeout beyond the invocation context.
	UnitTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.SourceLanguage == "" {
		c.SourceLanguage = "vi"
	}
	if c.TargetLanguage == "" {
		c.TargetLanguage = "en"
	}
	if c.MaxSegmentBytes <= 0 {
		c.MaxSegmentBytes = audio.DefaultMaxSegment
	}
	if c.MaxChunkChars <= 0 {
		c.MaxChunkChars = translate.DefaultMaxChunkChars
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 2
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = 500 * time.Millisecond
	}
	return c
}

// Pipeline orchestrates chunking, remote dispatch and reassembly around the
// speech-to-text and translation collaborators. Invocations share no mutable
// state, so one Pipeline is safe for concurrent use.
type Pipeline struct {
	cfg         Config
	segmenter   *audio.Segmenter
	transcriber transcribe.Transcriber
	translator  translate.Translator
}

// New wires a pipeline from its collaborators. Both clients are interfaces
// so tests can substitute doubles without network access.
func New(cfg Config, transcriber transcribe.Transcriber, translator translate.Translator) *Pipeline {
	cfg = cfg.withDefaults()
	return &Pipeline{
		cfg:         cfg,
		segmenter:   audio.NewSegmenter(cfg.MaxSegmentBytes),
		transcriber: transcriber,
		translator:  translator,
	}
}

// ProcessText chunks text at sentence boundaries, translates each chunk and
// reassembles the results into a single record. Duration and confidence stay
// nil: there was no audio to measure.
func (p *Pipeline) ProcessText(ctx context.Context, text string) (Record, error) {
	translated, err := p.translateText(ctx, text)
	if err != nil {
		return Record{}, err
	}
	return p.newRecord(text, translated, nil, nil), nil
}

// ProcessAudio segments audio under the service byte ceiling, transcribes
// each segment, stitches the transcript back together and feeds it through
// the text translation path. Non-WAV payloads are transcoded first.
func (p *Pipeline) ProcessAudio(ctx context.Context, data []byte) (Record, error) {
	if !audio.IsWAV(data) {
		converted, err := audio.TranscodeToWAV(ctx, data)
		if err != nil {
			return Record{}, err
		}
		data = converted
	}

	segments, err := p.segmenter.Segment(data)
	if err != nil {
		return Record{}, err
	}

	slog.Info("processing audio",
		"bytes", len(data),
		"segments", len(segments))

	results, err := p.transcribeSegments(ctx, segments)
	if err != nil {
		return Record{}, err
	}

	transcript, confidence, duration := transcribe.Assemble(results)
	if transcript == "" {
		slog.Warn("no speech detected in audio payload", "segments", len(segments))
	}

	translated, err := p.translateText(ctx, transcript)
	if err != nil {
		return Record{}, err
	}

	return p.newRecord(transcript, translated, &duration, &confidence), nil
}

func (p *Pipeline) translateText(ctx context.Context, text string) (string, error) {
	chunks := translate.Split(text, p.cfg.MaxChunkChars)

	slog.Debug("translating text",
		"chars", len(text),
		"chunks", len(chunks))

	translated := make([]translate.Translated, len(chunks))
	err := p.forEach(ctx, len(chunks), func(ctx context.Context, i int) error {
		out, err := withRetry(ctx, p.cfg, func(ctx context.Context) (translate.Translated, error) {
			return p.translator.Translate(ctx, chunks[i], p.cfg.SourceLanguage, p.cfg.TargetLanguage)
		})
		if err != nil {
			return err
		}
		translated[i] = out
		return nil
	})
	if err != nil {
		return "", err
	}

	return translate.Assemble(translated), nil
}

func (p *Pipeline) transcribeSegments(ctx context.Context, segments []audio.Segment) ([]transcribe.Result, error) {
	results := make([]transcribe.Result, len(segments))
	err := p.forEach(ctx, len(segments), func(ctx context.Context, i int) error {
		out, err := withRetry(ctx, p.cfg, func(ctx context.Context) (transcribe.Result, error) {
			return p.transcriber.Transcribe(ctx, segments[i], p.cfg.SourceLanguage)
		})
		if err != nil {
			return err
		}
		results[i] = out
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (p *Pipeline) newRecord(source, translated string, duration, confidence *float64) Record {
	return Record{
		ID:              uuid.NewString(),
		SourceLanguage:  p.cfg.SourceLanguage,
		TargetLanguage:  p.cfg.TargetLanguage,
		SourceText:      source,
		TranslatedText:  translated,
		DurationSeconds: duration,
		Confidence:      confidence,
		CreatedAt:       time.Now().UTC(),
		Status:          StatusCompleted,
	}
}
