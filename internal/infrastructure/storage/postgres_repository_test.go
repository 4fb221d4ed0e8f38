package storage

import (
	"context"
	"database/sql/driver"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"KiddoNews/internal/domain"
)

const articleID = "6f1c2a56-3f0e-4d6b-9a0c-2a4c9c7f1b11"

var crawled = time.Date(2025, time.March, 10, 6, 0, 0, 0, time.UTC)

func newMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresRepository(db), mock
}

func articleRow(id, url, title string, analysis []byte) []driver.Value {
	return []driver.Value{
		id, title, "גוף הכתבה", "{\"תקציר\"}", "כתב", "ynet", url, crawled,
		"חדשות", "", "{}", "article", "pre_filtered", "pending", "",
		"", analysis, "", "", "", "",
		int64(0), int64(0), []byte("[]"), crawled, crawled,
	}
}

func sampleArticle() domain.RawArticle {
	return domain.NewRawArticle(articleID, domain.Draft{
		Title:       "כותרת",
		Content:     "גוף",
		Source:      "ynet",
		OriginalURL: "https://www.ynet.co.il/news/article/1",
		PublishDate: crawled,
	}, crawled)
}

func TestCreateInsertsArticle(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectExec(`INSERT INTO raw_articles \(id,title,content`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Create(context.Background(), sampleArticle()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateReportsOwnedURLAsDuplicate(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectExec(`ON CONFLICT \(original_url\) DO UPDATE SET id = EXCLUDED.id, .* WHERE raw_articles.status = 'failed'`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Create(context.Background(), sampleArticle())
	assert.ErrorIs(t, err, domain.ErrDuplicate)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateMapsUniqueViolation(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectExec(`INSERT INTO raw_articles`).
		WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint"})

	err := repo.Create(context.Background(), sampleArticle())
	assert.ErrorIs(t, err, domain.ErrDuplicate)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertFailedKeepsProcessedRows(t *testing.T) {
	repo, mock := newMock(t)

	stub := domain.NewFailedArticle(articleID, domain.Draft{OriginalURL: "https://www.ynet.co.il/news/article/2"}, assert.AnError, crawled)
	mock.ExpectExec(`(?s)ON CONFLICT \(original_url\) DO UPDATE .* WHERE raw_articles.status = 'failed'`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.UpsertFailed(context.Background(), stub))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFindDuplicateSkipsEmptyContent(t *testing.T) {
	repo, mock := newMock(t)

	url := "https://www.ynet.co.il/news/article/1"
	rows := sqlmock.NewRows(columns).AddRow(articleRow(articleID, url, "כותרת", nil)...)
	mock.ExpectQuery(`SELECT .* FROM raw_articles WHERE \(\(original_url = \$1 OR title = \$2\) AND NOT \(status = \$3 AND review_status = \$4\)\) ORDER BY crawled_at ASC LIMIT 1`).
		WithArgs(url, "כותרת", "failed", "pending").
		WillReturnRows(rows)

	found, ok, err := repo.FindDuplicate(context.Background(), url, "כותרת", "")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, articleID, found.ID)
	assert.Equal(t, []string{"תקציר"}, found.Summary)
	assert.Nil(t, found.GPTAnalysis)
	assert.Equal(t, domain.StatusPreFiltered, found.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFindDuplicateMatchesContent(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectQuery(`WHERE \(\(original_url = \$1 OR title = \$2 OR content = \$3\) AND NOT`).
		WithArgs("u", "t", "c", "failed", "pending").
		WillReturnRows(sqlmock.NewRows(columns))

	_, ok, err := repo.FindDuplicate(context.Background(), "u", "t", "c")
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByIDDecodesAnalysis(t *testing.T) {
	repo, mock := newMock(t)

	analysis := []byte(`{"relevance":0.8,"sentiment":"positive","keyPhrases":["חלל"]}`)
	mock.ExpectQuery(`SELECT .* FROM raw_articles WHERE id = \$1`).
		WithArgs(articleID).
		WillReturnRows(sqlmock.NewRows(columns).AddRow(articleRow(articleID, "u", "t", analysis)...))

	found, err := repo.FindByID(context.Background(), articleID)
	require.NoError(t, err)
	require.NotNil(t, found.GPTAnalysis)
	assert.InDelta(t, 0.8, found.GPTAnalysis.Relevance, 1e-9)
	assert.Equal(t, []string{"חלל"}, found.GPTAnalysis.KeyPhrases)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByIDNotFound(t *testing.T) {
	repo, mock := newMock(t)

	_, err := repo.FindByID(context.Background(), "not-a-uuid")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	mock.ExpectQuery(`FROM raw_articles WHERE id = \$1`).
		WithArgs(articleID).
		WillReturnRows(sqlmock.NewRows(columns))
	_, err = repo.FindByID(context.Background(), articleID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListPublishedFiltersApproved(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectQuery(`WHERE review_status = \$1 ORDER BY publish_date DESC LIMIT 10`).
		WithArgs("approved").
		WillReturnRows(sqlmock.NewRows(columns))

	list, err := repo.ListPublished(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, list)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateReviewMissingRow(t *testing.T) {
	repo, mock := newMock(t)
	article := sampleArticle()
	from := domain.State{Status: article.Status, Review: article.ReviewStatus}

	mock.ExpectExec(`UPDATE raw_articles SET status = \$1, review_status = \$2`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT status, review_status FROM raw_articles WHERE id = \$1`).
		WithArgs(articleID).
		WillReturnRows(sqlmock.NewRows([]string{"status", "review_status"}))

	err := repo.UpdateReview(context.Background(), article, from)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateReviewGuardsPreviousState(t *testing.T) {
	repo, mock := newMock(t)
	article := sampleArticle()
	from := domain.State{Status: article.Status, Review: article.ReviewStatus}
	require.NoError(t, domain.Apply(&article, domain.TriggerFiltered, crawled))

	mock.ExpectExec(`WHERE \(id = \$11 AND status = \$12 AND review_status = \$13\)`).
		WithArgs("gpt_filtered", "pending",
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			articleID, "pre_filtered", "pending").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT status, review_status FROM raw_articles WHERE id = \$1`).
		WithArgs(articleID).
		WillReturnRows(sqlmock.NewRows([]string{"status", "review_status"}).AddRow("processed", "approved"))

	err := repo.UpdateReview(context.Background(), article, from)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	assert.NotErrorIs(t, err, domain.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateReviewWritesMatchingRow(t *testing.T) {
	repo, mock := newMock(t)
	article := sampleArticle()
	from := domain.State{Status: article.Status, Review: article.ReviewStatus}
	require.NoError(t, domain.Apply(&article, domain.TriggerApprove, crawled))

	mock.ExpectExec(`UPDATE raw_articles SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdateReview(context.Background(), article, from))
	require.NoError(t, mock.ExpectationsWereMet())
}
