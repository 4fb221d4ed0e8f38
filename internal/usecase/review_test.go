package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"KiddoNews/internal/domain"
	"KiddoNews/internal/infrastructure/storage"
	"KiddoNews/internal/ports"
)

func newReviewFixture(t *testing.T) (*ReviewService, *storage.MemoryRepository, *fakeSummarizer) {
	t.Helper()
	store := storage.NewMemoryRepository()
	seedPreFiltered(t, store, 1)

	summarizer := &fakeSummarizer{errs: map[string]error{}}
	svc := NewReviewService(store, summarizer, nil)
	svc.now = func() time.Time { return testNow }
	return svc, store, summarizer
}

func TestReviewApprove(t *testing.T) {
	svc, store, _ := newReviewFixture(t)
	ctx := context.Background()

	got, err := svc.Review(ctx, ReviewRequest{ArticleID: "a1", Action: "approve", AdminNotes: "מתאים"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusProcessed, got.Status)
	assert.Equal(t, domain.ReviewApproved, got.ReviewStatus)
	assert.Empty(t, got.ProcessingError)

	published, err := svc.Published(ctx, 10)
	require.NoError(t, err)
	require.Len(t, published, 1)
	assert.Equal(t, "מתאים", published[0].AdminNotes)

	stored, err := store.FindByID(ctx, "a1")
	require.NoError(t, err)
	assert.True(t, stored.Published())
}

func TestReviewReject(t *testing.T) {
	svc, _, _ := newReviewFixture(t)

	got, err := svc.Review(context.Background(), ReviewRequest{ArticleID: "a1", Action: "REJECT"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, got.Status)
	assert.Equal(t, domain.ReviewRejected, got.ReviewStatus)
	assert.Equal(t, domain.RejectedByAdmin, got.ProcessingError)
	assert.False(t, got.Published())
}

func TestReviewRefilterAfterApproval(t *testing.T) {
	svc, _, summarizer := newReviewFixture(t)
	ctx := context.Background()

	_, err := svc.Review(ctx, ReviewRequest{ArticleID: "a1", Action: "approve"})
	require.NoError(t, err)

	got, err := svc.Review(ctx, ReviewRequest{
		ArticleID:      "a1",
		Action:         "refilter",
		AdminComments:  "פשט את השפה",
		TargetAgeRange: "6-8",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusPending, got.Status)
	assert.Equal(t, domain.ReviewPending, got.ReviewStatus)
	assert.Equal(t, "סיכום a1", got.GPTSummary)
	assert.Equal(t, "6-8", got.TargetAgeRange)
	assert.Equal(t, "פשט את השפה", got.AdminComments)
	assert.Equal(t, []ports.SummarizeOptions{{Instructions: "פשט את השפה", TargetAgeRange: "6-8"}}, summarizer.calls)

	published, err := svc.Published(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, published)
}

func TestReviewRefilterSummarizerFailureKeepsState(t *testing.T) {
	svc, store, summarizer := newReviewFixture(t)
	ctx := context.Background()
	summarizer.errs["a1"] = domain.ErrRateLimited

	_, err := svc.Review(ctx, ReviewRequest{ArticleID: "a1", Action: "refilter", AdminComments: "x"})
	assert.ErrorIs(t, err, domain.ErrRateLimited)

	stored, err := store.FindByID(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPreFiltered, stored.Status)
	assert.Empty(t, stored.AdminComments)
}

func TestReviewErrors(t *testing.T) {
	svc, _, _ := newReviewFixture(t)
	ctx := context.Background()

	_, err := svc.Review(ctx, ReviewRequest{ArticleID: "a1", Action: "publish"})
	assert.ErrorIs(t, err, domain.ErrUnknownAction)

	_, err = svc.Review(ctx, ReviewRequest{ArticleID: "missing", Action: "approve"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestReviewList(t *testing.T) {
	svc, _, _ := newReviewFixture(t)

	list, err := svc.List(context.Background(), domain.StatusPreFiltered)
	require.NoError(t, err)
	require.Len(t, list, 1)

	got, err := svc.Get(context.Background(), "a1")
	require.NoError(t, err)
	assert.Equal(t, list[0].ID, got.ID)
}
