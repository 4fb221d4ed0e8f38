package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"KiddoNews/internal/domain"
)

func draft(url, title, content string) domain.Draft {
	return domain.Draft{Title: title, Content: content, OriginalURL: url, Source: "ynet"}
}

func TestMemoryCreateRejectsSameURL(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, domain.NewRawArticle("1", draft("u1", "a", "x"), crawled)))
	err := repo.Create(ctx, domain.NewRawArticle("2", draft("u1", "b", "y"), crawled))
	assert.ErrorIs(t, err, domain.ErrDuplicate)
}

func TestMemoryFindDuplicate(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, domain.NewRawArticle("1", draft("u1", "כותרת", "גוף"), crawled)))
	require.NoError(t, repo.Create(ctx, domain.NewRawArticle("2", domain.Draft{Title: "מבזק", OriginalURL: "u2", Kind: domain.KindFlash}, crawled)))

	cases := []struct {
		name                string
		url, title, content string
		want                string
	}{
		{"url", "u1", "other", "other", "1"},
		{"title", "u9", "כותרת", "", "1"},
		{"content", "u9", "other", "גוף", "1"},
		{"empty content never matches", "u9", "other", "", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			found, ok, err := repo.FindDuplicate(ctx, tc.url, tc.title, tc.content)
			require.NoError(t, err)
			if tc.want == "" {
				assert.False(t, ok)
				return
			}
			require.True(t, ok)
			assert.Equal(t, tc.want, found.ID)
		})
	}
}

func TestMemoryUpsertFailed(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	later := crawled.Add(time.Hour)

	require.NoError(t, repo.UpsertFailed(ctx, domain.NewFailedArticle("f1", draft("u1", "", ""), errors.New("timeout"), crawled)))
	require.NoError(t, repo.UpsertFailed(ctx, domain.NewFailedArticle("f2", draft("u1", "", ""), errors.New("404"), later)))

	stored, err := repo.FindByID(ctx, "f1")
	require.NoError(t, err)
	assert.Equal(t, "404", stored.ProcessingError)
	assert.Equal(t, later, stored.LastUpdated)
	_, err = repo.FindByID(ctx, "f2")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, repo.Create(ctx, domain.NewRawArticle("ok", draft("u2", "t", "c"), crawled)))
	require.NoError(t, repo.UpsertFailed(ctx, domain.NewFailedArticle("f3", draft("u2", "", ""), errors.New("boom"), later)))
	stored, err = repo.FindByID(ctx, "ok")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPreFiltered, stored.Status)
	assert.Empty(t, stored.ProcessingError)
}

func TestMemoryListsAndUpdate(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	first := domain.NewRawArticle("1", draft("u1", "a", "x"), crawled)
	second := domain.NewRawArticle("2", draft("u2", "b", "y"), crawled.Add(time.Minute))
	second.PublishDate = crawled.Add(time.Hour)
	require.NoError(t, repo.Create(ctx, second))
	require.NoError(t, repo.Create(ctx, first))

	pending, err := repo.ListByStatus(ctx, domain.StatusPreFiltered)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "1", pending[0].ID)

	read := domain.State{Status: second.Status, Review: second.ReviewStatus}
	require.NoError(t, domain.Apply(&second, domain.TriggerApprove, crawled))
	require.NoError(t, repo.UpdateReview(ctx, second, read))

	published, err := repo.ListPublished(ctx, 0)
	require.NoError(t, err)
	require.Len(t, published, 1)
	assert.Equal(t, "2", published[0].ID)

	missing := domain.NewRawArticle("nope", draft("u3", "c", "z"), crawled)
	assert.ErrorIs(t, repo.UpdateReview(ctx, missing, read), domain.ErrNotFound)
}

func TestMemoryUpdateReviewRejectsStaleState(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	stored := domain.NewRawArticle("1", draft("u1", "a", "x"), crawled)
	require.NoError(t, repo.Create(ctx, stored))
	read := domain.State{Status: stored.Status, Review: stored.ReviewStatus}

	approved := stored
	require.NoError(t, domain.Apply(&approved, domain.TriggerApprove, crawled))
	require.NoError(t, repo.UpdateReview(ctx, approved, read))

	filtered := stored
	filtered.GPTSummary = "סיכום"
	require.NoError(t, domain.Apply(&filtered, domain.TriggerFiltered, crawled))
	err := repo.UpdateReview(ctx, filtered, read)
	require.ErrorIs(t, err, domain.ErrInvalidTransition)

	got, err := repo.FindByID(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusProcessed, got.Status)
	assert.Equal(t, domain.ReviewApproved, got.ReviewStatus)
	assert.Empty(t, got.GPTSummary)
}

func TestMemoryCreatePromotesFailedStub(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	require.NoError(t, repo.UpsertFailed(ctx, domain.NewFailedArticle("stub", draft("u1", "כותרת", ""), errors.New("timeout"), crawled)))

	_, ok, err := repo.FindDuplicate(ctx, "u1", "כותרת", "")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, repo.Create(ctx, domain.NewRawArticle("real", draft("u1", "כותרת", "גוף"), crawled)))
	_, err = repo.FindByID(ctx, "stub")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	stored, err := repo.FindByID(ctx, "real")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPreFiltered, stored.Status)

	rejected := domain.NewFailedArticle("rej", draft("u2", "t", ""), errors.New("x"), crawled)
	require.NoError(t, domain.Apply(&rejected, domain.TriggerReject, crawled))
	require.NoError(t, repo.UpsertFailed(ctx, rejected))
	assert.ErrorIs(t, repo.Create(ctx, domain.NewRawArticle("again", draft("u2", "t2", "c"), crawled)), domain.ErrDuplicate)
}
