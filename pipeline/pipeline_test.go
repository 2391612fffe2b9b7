package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/youpy/go-wav"

	"github.com/vietscribe/vietscribe/audio"
	"github.com/vietscribe/vietscribe/transcribe"
	"github.com/vietscribe/vietscribe/translate"
)

type fakeTranslator struct {
	calls atomic.Int64
	fn    func(chunk translate.Chunk) (translate.Translated, error)
}

func (f *fakeTranslator) Translate(_ context.Context, chunk translate.Chunk, _, _ string) (translate.Translated, error) {
	f.calls.Add(1)
	if f.fn != nil {
		return f.fn(chunk)
	}
	return translate.Translated{Index: chunk.Index, Text: strings.TrimSpace(chunk.Text)}, nil
}

type fakeTranscriber struct {
	calls atomic.Int64
	fn    func(seg audio.Segment) (transcribe.Result, error)
}

func (f *fakeTranscriber) Transcribe(_ context.Context, seg audio.Segment, _ string) (transcribe.Result, error) {
	f.calls.Add(1)
	if f.fn != nil {
		return f.fn(seg)
	}
	return transcribe.Result{Index: seg.Index, Text: fmt.Sprintf("seg%d", seg.Index), Confidence: 0.5, Duration: 1}, nil
}

func testConfig() Config {
	return Config{
		SourceLanguage: "vi",
		TargetLanguage: "en",
		MaxChunkChars:  20,
		Concurrency:    4,
		MaxAttempts:    3,
		RetryBackoff:   time.Millisecond,
	}
}

func makeWAV(t *testing.T, frames int) []byte {
	t.Helper()

	var buf bytes.Buffer
	writer := wav.NewWriter(&buf, uint32(frames), 1, 8000, 16)
	samples := make([]wav.Sample, frames)
	for i := range samples {
		samples[i].Values[0] = int(int16(i % 30000))
	}
	require.NoError(t, writer.WriteSamples(samples))
	return buf.Bytes()
}

func TestProcessTextSingleChunk(t *testing.T) {
	tl := &fakeTranslator{fn: func(chunk translate.Chunk) (translate.Translated, error) {
		return translate.Translated{Index: chunk.Index, Text: "hello"}, nil
	}}
	p := New(testConfig(), &fakeTranscriber{}, tl)

	rec, err := p.ProcessText(context.Background(), "xin chào")
	require.NoError(t, err)

	assert.Equal(t, "xin chào", rec.SourceText)
	assert.Equal(t, "hello", rec.TranslatedText)
	assert.Equal(t, "vi", rec.SourceLanguage)
	assert.Equal(t, "en", rec.TargetLanguage)
	assert.Equal(t, StatusCompleted, rec.Status)
	assert.NotEmpty(t, rec.ID)
	assert.Nil(t, rec.DurationSeconds)
	assert.Nil(t, rec.Confidence)
	assert.EqualValues(t, 1, tl.calls.Load())
}

func TestProcessTextEmptyInput(t *testing.T) {
	p := New(testConfig(), &fakeTranscriber{}, &fakeTranslator{})

	rec, err := p.ProcessText(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "", rec.SourceText)
	assert.Equal(t, "", rec.TranslatedText)
	assert.Equal(t, StatusCompleted, rec.Status)
}

func TestProcessTextPreservesChunkOrder(t *testing.T) {
	// Concurrent dispatch must not reorder the assembled output. Each
	// chunk translates to its own index; the output must count upward.
	var mu sync.Mutex
	seen := map[int]bool{}

	tl := &fakeTranslator{fn: func(chunk translate.Chunk) (translate.Translated, error) {
		mu.Lock()
		seen[chunk.Index] = true
		mu.Unlock()
		time.Sleep(time.Duration(chunk.Index%3) * time.Millisecond)
		return translate.Translated{Index: chunk.Index, Text: fmt.Sprintf("<%d>", chunk.Index)}, nil
	}}
	p := New(testConfig(), &fakeTranscriber{}, tl)

	text := strings.Repeat("Some sentence here. ", 12)
	rec, err := p.ProcessText(context.Background(), text)
	require.NoError(t, err)

	require.Greater(t, len(seen), 1, "expected the input to be chunked")

	var want []string
	for i := 0; i < len(seen); i++ {
		want = append(want, fmt.Sprintf("<%d>", i))
	}
	assert.Equal(t, strings.Join(want, " "), rec.TranslatedText)
}

func TestProcessTextRefusalAborts(t *testing.T) {
	tl := &fakeTranslator{fn: func(chunk translate.Chunk) (translate.Translated, error) {
		return translate.Translated{}, &translate.RefusalError{Reply: "I'm sorry, I can't translate that."}
	}}
	p := New(testConfig(), &fakeTranscriber{}, tl)

	_, err := p.ProcessText(context.Background(), "một đoạn văn bản")
	require.Error(t, err)

	var refusal *translate.RefusalError
	assert.ErrorAs(t, err, &refusal)
	// Retried exactly once with the same input.
	assert.EqualValues(t, 2, tl.calls.Load())
}

func TestProcessTextRefusalRecoversOnRetry(t *testing.T) {
	tl := &fakeTranslator{}
	tl.fn = func(chunk translate.Chunk) (translate.Translated, error) {
		if tl.calls.Load() == 1 {
			return translate.Translated{}, &translate.RefusalError{Reply: "I cannot do that."}
		}
		return translate.Translated{Index: chunk.Index, Text: "ok"}, nil
	}
	p := New(testConfig(), &fakeTranscriber{}, tl)

	rec, err := p.ProcessText(context.Background(), "văn bản")
	require.NoError(t, err)
	assert.Equal(t, "ok", rec.TranslatedText)
	assert.EqualValues(t, 2, tl.calls.Load())
}

func TestProcessTextRetriesTemporaryErrors(t *testing.T) {
	tl := &fakeTranslator{}
	tl.fn = func(chunk translate.Chunk) (translate.Translated, error) {
		if tl.calls.Load() < 3 {
			return translate.Translated{}, &translate.RemoteError{StatusCode: 503, Err: errors.New("overloaded")}
		}
		return translate.Translated{Index: chunk.Index, Text: "done"}, nil
	}
	p := New(testConfig(), &fakeTranscriber{}, tl)

	rec, err := p.ProcessText(context.Background(), "thử lại")
	require.NoError(t, err)
	assert.Equal(t, "done", rec.TranslatedText)
	assert.EqualValues(t, 3, tl.calls.Load())
}

func TestProcessTextGivesUpAfterMaxAttempts(t *testing.T) {
	tl := &fakeTranslator{fn: func(translate.Chunk) (translate.Translated, error) {
		return translate.Translated{}, &translate.RemoteError{StatusCode: 500, Err: errors.New("down")}
	}}
	p := New(testConfig(), &fakeTranscriber{}, tl)

	_, err := p.ProcessText(context.Background(), "văn bản")
	require.Error(t, err)

	var remote *translate.RemoteError
	assert.ErrorAs(t, err, &remote)
	assert.EqualValues(t, 3, tl.calls.Load())
}

func TestProcessTextDoesNotRetryPermanentErrors(t *testing.T) {
	tl := &fakeTranslator{fn: func(translate.Chunk) (translate.Translated, error) {
		return translate.Translated{}, &translate.RemoteError{StatusCode: 400, Err: errors.New("bad request")}
	}}
	p := New(testConfig(), &fakeTranscriber{}, tl)

	_, err := p.ProcessText(context.Background(), "văn bản")
	require.Error(t, err)
	assert.EqualValues(t, 1, tl.calls.Load())
}

func TestProcessAudioEndToEnd(t *testing.T) {
	cfg := testConfig()
	cfg.MaxSegmentBytes = 2048
	cfg.MaxChunkChars = 2000

	tr := &fakeTranscriber{}
	tl := &fakeTranslator{fn: func(chunk translate.Chunk) (translate.Translated, error) {
		return translate.Translated{Index: chunk.Index, Text: "translated: " + chunk.Text}, nil
	}}
	p := New(cfg, tr, tl)

	rec, err := p.ProcessAudio(context.Background(), makeWAV(t, 4000))
	require.NoError(t, err)

	require.Greater(t, tr.calls.Load(), int64(1), "expected the audio to be segmented")

	// Transcript stitched in segment order, then fed through translation.
	assert.True(t, strings.HasPrefix(rec.SourceText, "seg0 seg1"), "transcript out of order: %q", rec.SourceText)
	assert.Equal(t, "translated: "+rec.SourceText, rec.TranslatedText)

	require.NotNil(t, rec.DurationSeconds)
	assert.InDelta(t, float64(tr.calls.Load()), *rec.DurationSeconds, 1e-9)
	require.NotNil(t, rec.Confidence)
	assert.InDelta(t, 0.5, *rec.Confidence, 1e-9)
}

func TestProcessAudioSilence(t *testing.T) {
	cfg := testConfig()
	cfg.MaxSegmentBytes = 1024 * 1024

	tr := &fakeTranscriber{fn: func(seg audio.Segment) (transcribe.Result, error) {
		return transcribe.Result{Index: seg.Index, Text: "", Confidence: 0.02, Duration: 3}, nil
	}}
	p := New(cfg, tr, &fakeTranslator{})

	rec, err := p.ProcessAudio(context.Background(), makeWAV(t, 1000))
	require.NoError(t, err)

	assert.Equal(t, "", rec.SourceText)
	assert.Equal(t, "", rec.TranslatedText)
	assert.Equal(t, StatusCompleted, rec.Status)
	require.NotNil(t, rec.Confidence)
	assert.Equal(t, 0.0, *rec.Confidence)
	require.NotNil(t, rec.DurationSeconds)
	assert.InDelta(t, 3.0, *rec.DurationSeconds, 1e-9)
}

func TestProcessAudioTranscriptionFailureAborts(t *testing.T) {
	cfg := testConfig()
	cfg.MaxSegmentBytes = 2048
	cfg.MaxAttempts = 1

	tr := &fakeTranscriber{fn: func(seg audio.Segment) (transcribe.Result, error) {
		if seg.Index == 1 {
			return transcribe.Result{}, &transcribe.RemoteError{StatusCode: 500, Err: errors.New("boom")}
		}
		return transcribe.Result{Index: seg.Index, Text: "ok", Confidence: 0.5, Duration: 1}, nil
	}}
	tl := &fakeTranslator{}
	p := New(cfg, tr, tl)

	_, err := p.ProcessAudio(context.Background(), makeWAV(t, 4000))
	require.Error(t, err)

	var remote *transcribe.RemoteError
	assert.ErrorAs(t, err, &remote)
	// The failure aborted the invocation before translation started.
	assert.EqualValues(t, 0, tl.calls.Load())
}

func TestProcessAudioUnsupportedPayload(t *testing.T) {
	p := New(testConfig(), &fakeTranscriber{}, &fakeTranslator{})

	_, err := p.ProcessAudio(context.Background(), []byte("this is not audio at all"))
	assert.ErrorIs(t, err, audio.ErrUnsupportedFormat)
}

func TestConcurrencyIsBounded(t *testing.T) {
	cfg := testConfig()
	cfg.Concurrency = 2
	cfg.MaxChunkChars = 10

	var inFlight, peak atomic.Int64
	tl := &fakeTranslator{fn: func(chunk translate.Chunk) (translate.Translated, error) {
		n := inFlight.Add(1)
		for {
			cur := peak.Load()
			if n <= cur || peak.CompareAndSwap(cur, n) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		inFlight.Add(-1)
		return translate.Translated{Index: chunk.Index, Text: "x"}, nil
	}}
	p := New(cfg, &fakeTranscriber{}, tl)

	_, err := p.ProcessText(context.Background(), strings.Repeat("word. ", 40))
	require.NoError(t, err)
	assert.LessOrEqual(t, peak.Load(), int64(2))
}
