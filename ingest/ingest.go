// Package ingest watches an inbox directory and runs newly dropped audio
// files through the translation pipeline.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/vietscribe/vietscribe/pipeline"
	"github.com/vietscribe/vietscribe/store"
)

const processedDirName = "processed"

// Config for the inbox watcher.
type Config struct {
	// InboxDir is the directory watched for new audio files.
	InboxDir string

	// Workers is the number of files processed concurrently.
	Workers int
}

// NotifyFunc is called after a file has been translated and stored.
type NotifyFunc func(store.Translation)

type job struct {
	Path   string
	Queued time.Time
}

// Watcher monitors the inbox and feeds files through the pipeline.
type Watcher struct {
	config Config

	pipe   *pipeline.Pipeline
	store  *store.Store
	notify NotifyFunc

	watcher *fsnotify.Watcher
	queue   chan job
	workers sync.WaitGroup
}

// New creates a Watcher. notify may be nil.
func New(cfg Config, pipe *pipeline.Pipeline, st *store.Store, notify NotifyFunc) (*Watcher, error) {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	return &Watcher{
		config:  cfg,
		pipe:    pipe,
		store:   st,
		notify:  notify,
		watcher: watcher,
		queue:   make(chan job, 100),
	}, nil
}

// Start watches the inbox until ctx is cancelled.
func (w *Watcher) Start(ctx context.Context) error {
	defer w.watcher.Close()

	if err := os.MkdirAll(w.config.InboxDir, 0755); err != nil {
		return fmt.Errorf("failed to create inbox directory: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(w.config.InboxDir, processedDirName), 0755); err != nil {
		return fmt.Errorf("failed to create processed directory: %w", err)
	}

	if err := w.watcher.Add(w.config.InboxDir); err != nil {
		return fmt.Errorf("failed to watch inbox directory: %w", err)
	}

	slog.Info("Watching inbox directory",
		"path", w.config.InboxDir,
		"workers", w.config.Workers)

	for i := 0; i < w.config.Workers; i++ {
		w.workers.Add(1)
		go w.worker(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			close(w.queue)
			w.workers.Wait()
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handleFSEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("File watcher error", "error", err)
		}
	}
}

func (w *Watcher) handleFSEvent(event fsnotify.Event) {
	if event.Op&fsnotify.Create == 0 {
		return
	}
	if !isAudioFile(event.Name) {
		return
	}

	select {
	case w.queue <- job{Path: event.Name, Queued: time.Now()}:
		slog.Info("Queued new audio file", "file", filepath.Base(event.Name))
	default:
		slog.Error("Ingest queue is full, dropping file", "file", event.Name)
	}
}

func (w *Watcher) worker(ctx context.Context) {
	defer w.workers.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case j, ok := <-w.queue:
			if !ok {
				return
			}
			if err := w.processFile(ctx, j); err != nil {
				slog.Error("Failed to process ingested file",
					"error", err,
					"file", j.Path)
			}
		}
	}
}

func (w *Watcher) processFile(ctx context.Context, j job) error {
	// The create event fires before the writer finishes; give the file a
	// moment to settle before reading it.
	if err := waitForStableSize(ctx, j.Path); err != nil {
		return err
	}

	data, err := os.ReadFile(j.Path)
	if err != nil {
		return fmt.Errorf("failed to read audio file: %w", err)
	}

	slog.Info("Processing ingested audio",
		"file", filepath.Base(j.Path),
		"bytes", len(data))

	rec, err := w.pipe.ProcessAudio(ctx, data)
	if err != nil {
		return fmt.Errorf("pipeline failed: %w", err)
	}

	row, err := w.store.Save(ctx, rec)
	if err != nil {
		return err
	}

	if w.notify != nil {
		w.notify(row)
	}

	dest := filepath.Join(w.config.InboxDir, processedDirName, filepath.Base(j.Path))
	if err := os.Rename(j.Path, dest); err != nil {
		slog.Warn("Failed to move processed file",
			"error", err,
			"file", j.Path)
	}

	return nil
}

// waitForStableSize polls until the file size stops changing.
func waitForStableSize(ctx context.Context, path string) error {
	var lastSize int64 = -1
	for {
		info, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("failed to stat ingested file: %w", err)
		}
		if info.Size() == lastSize {
			return nil
		}
		lastSize = info.Size()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(200 * time.Millisecond):
		}
	}
}

var audioExtensions = map[string]bool{
	".wav":  true,
	".mp3":  true,
	".m4a":  true,
	".mp4":  true,
	".ogg":  true,
	".oga":  true,
	".flac": true,
	".webm": true,
}

func isAudioFile(path string) bool {
	if strings.HasSuffix(path, ".tmp") {
		return false
	}
	return audioExtensions[strings.ToLower(filepath.Ext(path))]
}
