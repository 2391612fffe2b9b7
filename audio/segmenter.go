package audio

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/youpy/go-wav"
)

// Maximum payload accepted by the transcription service (25 MB). The default
// segment ceiling stays below it so encoding overhead cannot push a segment
// over the hard limit.
const (
	MaxServicePayload  = 25 * 1024 * 1024
	DefaultMaxSegment  = 20 * 1024 * 1024
	targetSegmentRatio = 0.8

	wavHeaderBytes = 44
	readBatch      = 4096
)

// ErrIndivisibleSegment is returned when a single segment cannot be reduced
// below the configured byte ceiling.
var ErrIndivisibleSegment = errors.New("audio segment cannot be reduced below size ceiling")

// Segment is a time-bounded slice of an audio stream, independently encoded
// and transcribable. Index preserves temporal order.
type Segment struct {
	Index    int
	Data     []byte
	Duration time.Duration
}

// Size returns the encoded byte size of the segment.
func (s Segment) Size() int {
	return len(s.Data)
}

// Segmenter splits WAV payloads into ordered segments that each fit under
// MaxSegmentBytes. Cuts happen on frame boundaries, never mid-sample, and
// each slice is re-encoded as a standalone playable WAV.
type Segmenter struct {
	MaxSegmentBytes int
}

// NewSegmenter creates a Segmenter with the given byte ceiling. A
// non-positive ceiling falls back to DefaultMaxSegment.
func NewSegmenter(maxSegmentBytes int) *Segmenter {
	if maxSegmentBytes <= 0 {
		maxSegmentBytes = DefaultMaxSegment
	}
	return &Segmenter{MaxSegmentBytes: maxSegmentBytes}
}

// Segment partitions a WAV payload into ordered sub-segments. Payloads at or
// under the ceiling are returned whole. Only PCM WAV that the re-encoder can
// reproduce (8 or 16 bits per sample) is accepted; anything else surfaces
// ErrUnsupportedFormat so the caller can transcode first.
func (s *Segmenter) Segment(data []byte) ([]Segment, error) {
	if !IsWAV(data) {
		return nil, fmt.Errorf("%w: payload is not RIFF/WAVE", ErrUnsupportedFormat)
	}

	if len(data) <= s.MaxSegmentBytes {
		dur, _ := wav.NewReader(bytes.NewReader(data)).Duration()
		return []Segment{{Index: 0, Data: data, Duration: dur}}, nil
	}

	format, samples, err := decodePCM(data)
	if err != nil {
		return nil, err
	}

	blockAlign := int(format.BlockAlign)
	if blockAlign <= 0 || format.SampleRate == 0 {
		return nil, fmt.Errorf("%w: malformed wav format chunk", ErrUnsupportedFormat)
	}

	// Target well under the ceiling so header overhead and rounding cannot
	// push an encoded segment over it.
	targetPayload := int(float64(s.MaxSegmentBytes)*targetSegmentRatio) - wavHeaderBytes
	framesPerSegment := targetPayload / blockAlign
	if framesPerSegment < 1 {
		return nil, fmt.Errorf("%w: a single frame of %d bytes exceeds the %d byte target",
			ErrIndivisibleSegment, blockAlign, targetPayload)
	}

	// Re-balance to roughly equal time intervals across the computed count.
	total := len(samples)
	numSegments := (total + framesPerSegment - 1) / framesPerSegment
	framesPerSegment = (total + numSegments - 1) / numSegments

	segments := make([]Segment, 0, numSegments)
	for start := 0; start < total; start += framesPerSegment {
		end := start + framesPerSegment
		if end > total {
			end = total
		}

		encoded, err := encodePCM(samples[start:end], format)
		if err != nil {
			return nil, fmt.Errorf("failed to encode segment %d: %w", len(segments), err)
		}
		if len(encoded) > s.MaxSegmentBytes {
			return nil, fmt.Errorf("%w: segment %d encodes to %d bytes (ceiling %d)",
				ErrIndivisibleSegment, len(segments), len(encoded), s.MaxSegmentBytes)
		}

		frames := end - start
		segments = append(segments, Segment{
			Index:    len(segments),
			Data:     encoded,
			Duration: time.Duration(float64(frames) / float64(format.SampleRate) * float64(time.Second)),
		})
	}

	slog.Debug("segmented audio payload",
		"inputBytes", len(data),
		"segments", len(segments),
		"framesPerSegment", framesPerSegment)

	return segments, nil
}

func decodePCM(data []byte) (*wav.WavFormat, []wav.Sample, error) {
	reader := wav.NewReader(bytes.NewReader(data))

	format, err := reader.Format()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	if format.AudioFormat != wav.AudioFormatPCM {
		return nil, nil, fmt.Errorf("%w: audio format %d is not PCM", ErrUnsupportedFormat, format.AudioFormat)
	}
	if format.BitsPerSample != 8 && format.BitsPerSample != 16 {
		return nil, nil, fmt.Errorf("%w: %d bits per sample", ErrUnsupportedFormat, format.BitsPerSample)
	}

	var samples []wav.Sample
	for {
		batch, err := reader.ReadSamples(readBatch)
		if len(batch) > 0 {
			samples = append(samples, batch...)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
		}
	}

	return format, samples, nil
}

func encodePCM(samples []wav.Sample, format *wav.WavFormat) ([]byte, error) {
	var buf bytes.Buffer
	writer := wav.NewWriter(&buf, uint32(len(samples)), format.NumChannels, format.SampleRate, format.BitsPerSample)
	if err := writer.WriteSamples(samples); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
