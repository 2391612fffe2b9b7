// Package store persists completed translation records in SQLite and serves
// them back by identifier and by recency.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/vietscribe/vietscribe/pipeline"
)

// ErrNotFound is returned when no record matches the requested identifier.
var ErrNotFound = errors.New("translation not found")

// Translation is the persisted form of a pipeline record. DurationSeconds
// and Confidence stay NULL for text-only translations.
type Translation struct {
	ID              string    `gorm:"primaryKey" json:"id"`
	CreatedAt       time.Time `gorm:"index" json:"timestamp"`
	SourceLanguage  string    `gorm:"index;not null" json:"source_language"`
	TargetLanguage  string    `gorm:"index;not null" json:"target_language"`
	SourceText      string    `gorm:"not null" json:"source_text"`
	TranslatedText  string    `gorm:"not null" json:"translated_text"`
	DurationSeconds *float64  `json:"duration_seconds"`
	Confidence      *float64  `json:"confidence"`
	Status          string    `json:"status"`
}

// Store wraps the database handle. Safe for concurrent use.
type Store struct {
	db *gorm.DB
}

// Open opens (or creates) the SQLite database at path and migrates the
// translations table.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.AutoMigrate(&Translation{}); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	slog.Info("translation store ready", "path", path)
	return &Store{db: db}, nil
}

// Save persists a completed pipeline record. Records are immutable once
// written; Save never updates an existing row.
func (s *Store) Save(ctx context.Context, rec pipeline.Record) (Translation, error) {
	row := Translation{
		ID:              rec.ID,
		CreatedAt:       rec.CreatedAt,
		SourceLanguage:  rec.SourceLanguage,
		TargetLanguage:  rec.TargetLanguage,
		SourceText:      rec.SourceText,
		TranslatedText:  rec.TranslatedText,
		DurationSeconds: rec.DurationSeconds,
		Confidence:      rec.Confidence,
		Status:          rec.Status,
	}

	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return Translation{}, fmt.Errorf("failed to insert translation: %w", err)
	}

	slog.Info("translation stored",
		"id", row.ID,
		"sourceLanguage", row.SourceLanguage,
		"targetLanguage", row.TargetLanguage,
		"sourceChars", len(row.SourceText))

	return row, nil
}

// Get returns the translation with the given identifier.
func (s *Store) Get(ctx context.Context, id string) (Translation, error) {
	var row Translation
	err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Translation{}, ErrNotFound
	}
	if err != nil {
		return Translation{}, fmt.Errorf("failed to fetch translation: %w", err)
	}
	return row, nil
}

// Recent returns up to limit translations ordered newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Translation, error) {
	if limit <= 0 {
		limit = 50
	}

	var rows []Translation
	err := s.db.WithContext(ctx).
		Order("created_at desc").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list translations: %w", err)
	}
	return rows, nil
}

// ByLanguagePair returns up to limit translations for one source/target
// pair, newest first.
func (s *Store) ByLanguagePair(ctx context.Context, sourceLang, targetLang string, limit int) ([]Translation, error) {
	if limit <= 0 {
		limit = 50
	}

	var rows []Translation
	err := s.db.WithContext(ctx).
		Where("source_language = ? AND target_language = ?", sourceLang, targetLang).
		Order("created_at desc").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list translations by language pair: %w", err)
	}
	return rows, nil
}

// Count returns the total number of stored translations.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&Translation{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count translations: %w", err)
	}
	return n, nil
}
