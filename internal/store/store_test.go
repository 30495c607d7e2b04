package store

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerdneilsfield/go-pdf-translator/pkg/document"
)

func chunkingResult() document.ChunkingResult {
	return document.ChunkingResult{
		Chunks: []document.Chunk{
			{ID: "c0", Index: 0, Text: "eins"},
			{ID: "c1", Index: 1, Text: "zwei"},
			{ID: "c2", Index: 2, Text: "drei"},
		},
		TotalTokens: 30,
	}
}

func TestMemoryStoreCRUD(t *testing.T) {
	s := NewMemoryStore(time.Hour)

	job := NewJob("j1", "doc.pdf", document.LanguageGerman, []byte("%PDF-1.4"))
	require.NoError(t, s.Create(job))
	assert.ErrorIs(t, s.Create(job), ErrExists)

	got, err := s.Get("j1")
	require.NoError(t, err)
	assert.Equal(t, "doc.pdf", got.FileName)
	assert.Equal(t, int64(8), got.FileSize)
	assert.Equal(t, StatusUploading, got.Status)

	updated, err := s.Update("j1", func(j *Job) error {
		j.Status = StatusParsing
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, StatusParsing, updated.Status)

	_, err = s.Update("j1", func(j *Job) error {
		j.Status = StatusError
		return errors.New("abort")
	})
	require.Error(t, err)
	got, _ = s.Get("j1")
	assert.Equal(t, StatusParsing, got.Status)

	require.NoError(t, s.Delete("j1"))
	_, err = s.Get("j1")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.Delete("j1"), ErrNotFound)
	_, err = s.Update("j1", func(*Job) error { return nil })
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	s := NewMemoryStore(0)
	require.NoError(t, s.Create(NewJob("j1", "a.pdf", document.LanguageArabic, nil)))

	got, err := s.Get("j1")
	require.NoError(t, err)
	got.Translated["c0"] = document.TranslatedChunk{ChunkID: "c0"}

	again, err := s.Get("j1")
	require.NoError(t, err)
	assert.Empty(t, again.Translated)
}

func TestMemoryStoreCleanup(t *testing.T) {
	s := NewMemoryStore(time.Minute)
	now := time.Now()
	s.now = func() time.Time { return now }

	require.NoError(t, s.Create(NewJob("old", "a.pdf", document.LanguageTurkish, nil)))
	now = now.Add(2 * time.Minute)
	require.NoError(t, s.Create(NewJob("new", "b.pdf", document.LanguageTurkish, nil)))
	_, err := s.Update("new", func(*Job) error { return nil })
	require.NoError(t, err)

	removed := s.Cleanup()
	assert.Equal(t, []string{"old"}, removed)
	assert.Equal(t, 1, s.Len())

	assert.Nil(t, NewMemoryStore(0).Cleanup())
}

func TestJobTranslationProgress(t *testing.T) {
	job := NewJob("j1", "a.pdf", document.LanguageGerman, nil).WithChunks(chunkingResult())
	assert.Equal(t, StatusChunking, job.Status)
	assert.Equal(t, 3, job.Progress.TotalChunks)
	assert.Equal(t, 30, job.Progress.TotalTokens)
	assert.False(t, job.Finished())

	before := job
	job = job.WithTranslation(document.TranslatedChunk{ChunkID: "c0", TranslatedText: "one", TokensUsed: 12})
	assert.Empty(t, before.Translated)
	assert.Equal(t, 1, job.Progress.ChunksCompleted)
	assert.Equal(t, 12, job.Progress.TokensProcessed)
	assert.InDelta(t, 33.3, job.Progress.PercentComplete(), 0.0001)

	job = job.WithFailure("c1", "Failed after 3 attempts: down")
	assert.Equal(t, 1, job.Progress.ChunksFailed)
	assert.Equal(t, ChunkError, job.ChunkStatus("c1"))
	assert.False(t, job.Finished())

	job.Status = StatusTranslating
	job.Active = "c2"
	assert.Equal(t, ChunkTranslating, job.ChunkStatus("c2"))
	assert.Equal(t, ChunkComplete, job.ChunkStatus("c0"))

	job = job.WithTranslation(document.TranslatedChunk{ChunkID: "c2", TranslatedText: "three", TokensUsed: 8})
	assert.True(t, job.Finished())
	assert.Equal(t, "", job.Active)
	assert.Equal(t, "one\n\nthree", job.FullTranslation())

	// 失败的分块重新翻译成功后清除失败记录
	job = job.WithTranslation(document.TranslatedChunk{ChunkID: "c1", TranslatedText: "two", TokensUsed: 5})
	assert.Equal(t, 0, job.Progress.ChunksFailed)
	assert.Equal(t, 25, job.Progress.TokensProcessed)
	assert.InDelta(t, 100.0, job.Progress.PercentComplete(), 0.0001)
	assert.Empty(t, job.Untranslated())

	// 重复翻译同一分块时替换用量
	job = job.WithTranslation(document.TranslatedChunk{ChunkID: "c1", TranslatedText: "two", TokensUsed: 7})
	assert.Equal(t, 27, job.Progress.TokensProcessed)

	_, ok := job.FindChunk("c2")
	assert.True(t, ok)
	_, ok = job.FindChunk("zz")
	assert.False(t, ok)
}

func TestPercentComplete(t *testing.T) {
	assert.Equal(t, 0.0, Progress{}.PercentComplete())
	assert.Equal(t, 66.7, Progress{ChunksCompleted: 2, TotalChunks: 3}.PercentComplete())
}
