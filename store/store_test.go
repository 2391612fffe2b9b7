package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietscribe/vietscribe/pipeline"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	return s
}

func testRecord(createdAt time.Time) pipeline.Record {
	return pipeline.Record{
		ID:             uuid.NewString(),
		SourceLanguage: "vi",
		TargetLanguage: "en",
		SourceText:     "xin chào",
		TranslatedText: "hello",
		CreatedAt:      createdAt,
		Status:         pipeline.StatusCompleted,
	}
}

func TestSaveAndGet(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	duration := 12.5
	confidence := 0.91
	rec := testRecord(time.Now().UTC())
	rec.DurationSeconds = &duration
	rec.Confidence = &confidence

	saved, err := s.Save(ctx, rec)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, saved.ID)

	got, err := s.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "xin chào", got.SourceText)
	assert.Equal(t, "hello", got.TranslatedText)
	assert.Equal(t, "vi", got.SourceLanguage)
	assert.Equal(t, "en", got.TargetLanguage)
	assert.Equal(t, pipeline.StatusCompleted, got.Status)
	require.NotNil(t, got.DurationSeconds)
	assert.InDelta(t, 12.5, *got.DurationSeconds, 1e-9)
	require.NotNil(t, got.Confidence)
	assert.InDelta(t, 0.91, *got.Confidence, 1e-9)
}

func TestTextOnlyRecordKeepsNullMetrics(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	rec := testRecord(time.Now().UTC())
	_, err := s.Save(ctx, rec)
	require.NoError(t, err)

	got, err := s.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Nil(t, got.DurationSeconds)
	assert.Nil(t, got.Confidence)
}

func TestGetMissing(t *testing.T) {
	s := openTestStore(t)

	_, err := s.Get(context.Background(), uuid.NewString())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRecentOrdersNewestFirst(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	var ids []string
	for i := 0; i < 5; i++ {
		rec := testRecord(base.Add(time.Duration(i) * time.Minute))
		rec.SourceText = fmt.Sprintf("câu %d", i)
		_, err := s.Save(ctx, rec)
		require.NoError(t, err)
		ids = append(ids, rec.ID)
	}

	rows, err := s.Recent(ctx, 3)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, ids[4], rows[0].ID)
	assert.Equal(t, ids[3], rows[1].ID)
	assert.Equal(t, ids[2], rows[2].ID)
}

func TestRecentDefaultLimit(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.Save(ctx, testRecord(time.Now().UTC()))
	require.NoError(t, err)

	rows, err := s.Recent(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestByLanguagePair(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	viEN := testRecord(now)
	_, err := s.Save(ctx, viEN)
	require.NoError(t, err)

	esEN := testRecord(now.Add(time.Second))
	esEN.SourceLanguage = "es"
	_, err = s.Save(ctx, esEN)
	require.NoError(t, err)

	rows, err := s.ByLanguagePair(ctx, "vi", "en", 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, viEN.ID, rows[0].ID)

	rows, err = s.ByLanguagePair(ctx, "fr", "en", 10)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestCount(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)

	for i := 0; i < 3; i++ {
		_, err := s.Save(ctx, testRecord(time.Now().UTC()))
		require.NoError(t, err)
	}

	n, err = s.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
}
