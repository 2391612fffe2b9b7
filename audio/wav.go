package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
)

const (
	whisperSampleRate = 16000 // Rate expected by the transcription service
	channels          = 1     // Mono audio
)

// ErrUnsupportedFormat is returned when a payload cannot be decoded as audio.
var ErrUnsupportedFormat = errors.New("unsupported audio format")

// IsWAV reports whether data starts with a RIFF/WAVE header.
func IsWAV(data []byte) bool {
	return len(data) >= 12 &&
		bytes.Equal(data[0:4], []byte("RIFF")) &&
		bytes.Equal(data[8:12], []byte("WAVE"))
}

// TranscodeToWAV converts an arbitrary audio payload to 16kHz mono PCM WAV
// using ffmpeg. Payloads ffmpeg cannot decode surface ErrUnsupportedFormat.
func TranscodeToWAV(ctx context.Context, data []byte) ([]byte, error) {
	dir, err := os.MkdirTemp("", "vietscribe")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	inPath := filepath.Join(dir, "input")
	outPath := filepath.Join(dir, "converted.wav")

	if err := os.WriteFile(inPath, data, 0644); err != nil {
		return nil, fmt.Errorf("failed to write temp input: %w", err)
	}

	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-i", inPath,
		"-ar", fmt.Sprintf("%d", whisperSampleRate),
		"-ac", fmt.Sprintf("%d", channels),
		"-acodec", "pcm_s16le",
		"-y", // Overwrite output file
		outPath)

	if out, err := cmd.CombinedOutput(); err != nil {
		slog.Debug("ffmpeg transcode failed",
			"error", err,
			"output", string(out))
		return nil, fmt.Errorf("%w: ffmpeg: %v", ErrUnsupportedFormat, err)
	}

	converted, err := os.ReadFile(outPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read transcoded audio: %w", err)
	}

	return converted, nil
}
