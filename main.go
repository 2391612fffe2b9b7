package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/vietscribe/vietscribe/config"
	"github.com/vietscribe/vietscribe/ingest"
	"github.com/vietscribe/vietscribe/pipeline"
	"github.com/vietscribe/vietscribe/server"
	"github.com/vietscribe/vietscribe/store"
	"github.com/vietscribe/vietscribe/transcribe"
	"github.com/vietscribe/vietscribe/translate"
)

func main() {
	httpAddr := flag.String("addr", "", "HTTP listen address (overrides HTTP_ADDR)")
	dbPath := flag.String("db", "", "Path to SQLite database (overrides DB_PATH)")
	inboxDir := flag.String("inbox", "", "Directory to watch for audio files (overrides INBOX_DIR)")
	textInput := flag.String("text", "", "Translate the given text once and exit")
	audioInput := flag.String("audio", "", "Translate the given audio file once and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	if *httpAddr != "" {
		cfg.HTTPAddr = *httpAddr
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}
	if *inboxDir != "" {
		cfg.InboxDir = *inboxDir
	}

	pipe := pipeline.New(pipeline.Config{
		SourceLanguage:  cfg.SourceLanguage,
		TargetLanguage:  cfg.TargetLanguage,
		MaxSegmentBytes: cfg.MaxSegmentBytes,
		MaxChunkChars:   cfg.MaxChunkChars,
		Concurrency:     cfg.Concurrency,
		MaxAttempts:     cfg.MaxAttempts,
		RetryBackoff:    cfg.RetryBackoff,
		UnitTimeout:     cfg.UnitTimeout,
	},
		transcribe.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.TranscriptionModel),
		translate.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.TranslationModel),
	)

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to open translation store", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		slog.Debug("Received shutdown signal")
		cancel()
	}()

	// One-shot modes translate a single input and print the stored record.
	if *textInput != "" || *audioInput != "" {
		if err := runOnce(ctx, pipe, st, *textInput, *audioInput); err != nil {
			slog.Error("Translation failed", "error", err)
			os.Exit(1)
		}
		return
	}

	srv := server.New(server.Config{
		Addr:     cfg.HTTPAddr,
		CertFile: cfg.CertFile,
		KeyFile:  cfg.KeyFile,
	}, pipe, st)

	if cfg.InboxDir != "" {
		watcher, err := ingest.New(ingest.Config{
			InboxDir: cfg.InboxDir,
			Workers:  cfg.IngestWorkers,
		}, pipe, st, srv.Broadcast)
		if err != nil {
			slog.Error("Failed to initialize ingest watcher", "error", err)
			os.Exit(1)
		}

		go func() {
			if err := watcher.Start(ctx); err != nil {
				slog.Error("Ingest watcher failed", "error", err)
			}
		}()
	}

	if err := srv.Start(ctx); err != nil {
		slog.Error("HTTP server failed", "error", err)
		os.Exit(1)
	}

	slog.Debug("Program exiting")
}

func runOnce(ctx context.Context, pipe *pipeline.Pipeline, st *store.Store, text, audioPath string) error {
	var (
		rec pipeline.Record
		err error
	)

	if text != "" {
		rec, err = pipe.ProcessText(ctx, text)
	} else {
		var data []byte
		data, err = os.ReadFile(audioPath)
		if err != nil {
			return fmt.Errorf("failed to read audio file: %w", err)
		}
		rec, err = pipe.ProcessAudio(ctx, data)
	}
	if err != nil {
		return err
	}

	row, err := st.Save(ctx, rec)
	if err != nil {
		return err
	}

	fmt.Printf("Translation ID: %s\n", row.ID)
	fmt.Printf("Source (%s): %s\n", row.SourceLanguage, row.SourceText)
	fmt.Printf("Translation (%s): %s\n", row.TargetLanguage, row.TranslatedText)
	if row.Confidence != nil {
		fmt.Printf("Confidence: %.4f\n", *row.Confidence)
	}
	if row.DurationSeconds != nil {
		fmt.Printf("Duration: %.2fs\n", *row.DurationSeconds)
	}

	return nil
}
