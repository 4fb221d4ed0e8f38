package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/lib/pq"

	"KiddoNews/internal/domain"
	"KiddoNews/internal/ports"
)

const uniqueViolation = "23505"

const table = "raw_articles"

// retryableStub matches the existing row of a failed extraction no admin has acted on.
const retryableStub = "raw_articles.status = 'failed' AND raw_articles.review_status = 'pending'"

var columns = []string{
	"id", "title", "content", "summary", "author", "source", "original_url", "publish_date",
	"category", "subcategory", "images", "kind", "status", "review_status", "processing_error",
	"gpt_summary", "gpt_analysis", "age_range", "target_age_range", "admin_comments", "admin_notes",
	"likes", "saves", "comments", "last_updated", "crawled_at",
}

// PostgresRepository persists raw articles into Postgres.
type PostgresRepository struct {
	db *sql.DB
	qb sq.StatementBuilderType
}

var _ ports.ArticleStore = (*PostgresRepository)(nil)

// NewPostgresRepository wires a sql.DB implementation.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{
		db: db,
		qb: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// Create inserts a new article. A failed stub awaiting retry under the same original url is
// replaced; any other article owning the url yields domain.ErrDuplicate.
func (r *PostgresRepository) Create(ctx context.Context, article domain.RawArticle) error {
	values, err := rowValues(article)
	if err != nil {
		return err
	}

	query, args, err := r.qb.Insert(table).Columns(columns...).Values(values...).
		Suffix("ON CONFLICT (original_url) DO UPDATE SET " + excludedAssignments() +
			" WHERE " + retryableStub).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", domain.ErrDuplicate, article.OriginalURL)
		}
		return fmt.Errorf("insert article: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert article: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", domain.ErrDuplicate, article.OriginalURL)
	}
	return nil
}

// UpsertFailed inserts the failure stub or refreshes the error of an earlier failed stub.
// Rows already past ingestion or rejected by an admin are left untouched.
func (r *PostgresRepository) UpsertFailed(ctx context.Context, article domain.RawArticle) error {
	values, err := rowValues(article)
	if err != nil {
		return err
	}

	query, args, err := r.qb.Insert(table).Columns(columns...).Values(values...).
		Suffix("ON CONFLICT (original_url) DO UPDATE " +
			"SET processing_error = EXCLUDED.processing_error, last_updated = EXCLUDED.last_updated " +
			"WHERE " + retryableStub).
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert failed article: %w", err)
	}
	return nil
}

// FindDuplicate looks for an article with the same url or title, or the same content when
// content is non-empty. Failed stubs awaiting retry never match.
func (r *PostgresRepository) FindDuplicate(ctx context.Context, url, title, content string) (domain.RawArticle, bool, error) {
	match := sq.Or{sq.Eq{"original_url": url}}
	if title != "" {
		match = append(match, sq.Eq{"title": title})
	}
	if content != "" {
		match = append(match, sq.Eq{"content": content})
	}

	query, args, err := r.qb.Select(columns...).From(table).
		Where(sq.And{match, sq.Expr("NOT (status = ? AND review_status = ?)", string(domain.StatusFailed), string(domain.ReviewPending))}).
		OrderBy("crawled_at ASC").Limit(1).ToSql()
	if err != nil {
		return domain.RawArticle{}, false, fmt.Errorf("build duplicate lookup: %w", err)
	}

	article, err := scanArticle(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.RawArticle{}, false, nil
	}
	if err != nil {
		return domain.RawArticle{}, false, fmt.Errorf("find duplicate: %w", err)
	}
	return article, true, nil
}

// FindByID loads a single article.
func (r *PostgresRepository) FindByID(ctx context.Context, id string) (domain.RawArticle, error) {
	if _, err := uuid.Parse(id); err != nil {
		return domain.RawArticle{}, fmt.Errorf("%w: %s", domain.ErrNotFound, id)
	}

	query, args, err := r.qb.Select(columns...).From(table).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return domain.RawArticle{}, fmt.Errorf("build lookup: %w", err)
	}

	article, err := scanArticle(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.RawArticle{}, fmt.Errorf("%w: %s", domain.ErrNotFound, id)
	}
	if err != nil {
		return domain.RawArticle{}, fmt.Errorf("find article %s: %w", id, err)
	}
	return article, nil
}

// ListByStatus returns articles in the status, oldest crawl first.
func (r *PostgresRepository) ListByStatus(ctx context.Context, status domain.Status) ([]domain.RawArticle, error) {
	return r.list(ctx, r.qb.Select(columns...).From(table).
		Where(sq.Eq{"status": string(status)}).
		OrderBy("crawled_at ASC"))
}

// ListPublished returns approved articles, newest first.
func (r *PostgresRepository) ListPublished(ctx context.Context, limit int) ([]domain.RawArticle, error) {
	q := r.qb.Select(columns...).From(table).
		Where(sq.Eq{"review_status": string(domain.ReviewApproved)}).
		OrderBy("publish_date DESC")
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}
	return r.list(ctx, q)
}

// UpdateReview writes lifecycle, summarizer and editorial fields in one statement, guarded by
// the state the caller read.
func (r *PostgresRepository) UpdateReview(ctx context.Context, article domain.RawArticle, from domain.State) error {
	analysis, err := marshalAnalysis(article.GPTAnalysis)
	if err != nil {
		return err
	}

	query, args, err := r.qb.Update(table).
		Set("status", string(article.Status)).
		Set("review_status", string(article.ReviewStatus)).
		Set("processing_error", article.ProcessingError).
		Set("gpt_summary", article.GPTSummary).
		Set("gpt_analysis", analysis).
		Set("age_range", article.AgeRange).
		Set("target_age_range", article.TargetAgeRange).
		Set("admin_comments", article.AdminComments).
		Set("admin_notes", article.AdminNotes).
		Set("last_updated", article.LastUpdated).
		Where(sq.And{
			sq.Eq{"id": article.ID},
			sq.Eq{"status": string(from.Status)},
			sq.Eq{"review_status": string(from.Review)},
		}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update article %s: %w", article.ID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update article %s: %w", article.ID, err)
	}
	if affected == 0 {
		return r.updateConflict(ctx, article.ID, from)
	}
	return nil
}

// updateConflict explains a guarded update that matched no row.
func (r *PostgresRepository) updateConflict(ctx context.Context, id string, from domain.State) error {
	query, args, err := r.qb.Select("status", "review_status").From(table).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("build state lookup: %w", err)
	}

	var current domain.State
	err = r.db.QueryRowContext(ctx, query, args...).Scan(&current.Status, &current.Review)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", domain.ErrNotFound, id)
	}
	if err != nil {
		return fmt.Errorf("load state of %s: %w", id, err)
	}
	return staleState(id, from, current)
}

func (r *PostgresRepository) list(ctx context.Context, q sq.SelectBuilder) ([]domain.RawArticle, error) {
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query articles: %w", err)
	}

	var result []domain.RawArticle
	for rows.Next() {
		article, err := scanArticle(rows)
		if err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan article: %w", err)
		}
		result = append(result, article)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("rows iteration: %w", rowsErr)
	}

	if closeErr := rows.Close(); closeErr != nil {
		return nil, fmt.Errorf("close rows: %w", closeErr)
	}

	return result, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanArticle(row rowScanner) (domain.RawArticle, error) {
	var (
		a                  domain.RawArticle
		summary, images    pq.StringArray
		kind, status, rev  string
		analysis, comments []byte
	)

	err := row.Scan(
		&a.ID, &a.Title, &a.Content, &summary, &a.Author, &a.Source, &a.OriginalURL, &a.PublishDate,
		&a.Category, &a.Subcategory, &images, &kind, &status, &rev, &a.ProcessingError,
		&a.GPTSummary, &analysis, &a.AgeRange, &a.TargetAgeRange, &a.AdminComments, &a.AdminNotes,
		&a.Likes, &a.Saves, &comments, &a.LastUpdated, &a.CrawledAt,
	)
	if err != nil {
		return domain.RawArticle{}, err
	}

	a.Summary = []string(summary)
	a.Images = []string(images)
	a.Kind = domain.Kind(kind)
	a.Status = domain.Status(status)
	a.ReviewStatus = domain.ReviewStatus(rev)

	if len(analysis) > 0 && string(analysis) != "null" {
		a.GPTAnalysis = &domain.Analysis{}
		if err := json.Unmarshal(analysis, a.GPTAnalysis); err != nil {
			return domain.RawArticle{}, fmt.Errorf("decode analysis: %w", err)
		}
	}
	if len(comments) > 0 {
		if err := json.Unmarshal(comments, &a.Comments); err != nil {
			return domain.RawArticle{}, fmt.Errorf("decode comments: %w", err)
		}
	}
	return a, nil
}

func rowValues(a domain.RawArticle) ([]any, error) {
	analysis, err := marshalAnalysis(a.GPTAnalysis)
	if err != nil {
		return nil, err
	}
	comments := a.Comments
	if comments == nil {
		comments = []domain.Comment{}
	}
	commentsJSON, err := json.Marshal(comments)
	if err != nil {
		return nil, fmt.Errorf("encode comments: %w", err)
	}

	return []any{
		a.ID, a.Title, a.Content, pq.StringArray(orEmpty(a.Summary)), a.Author, a.Source, a.OriginalURL, a.PublishDate,
		a.Category, a.Subcategory, pq.StringArray(orEmpty(a.Images)), string(a.Kind), string(a.Status), string(a.ReviewStatus), a.ProcessingError,
		a.GPTSummary, analysis, a.AgeRange, a.TargetAgeRange, a.AdminComments, a.AdminNotes,
		a.Likes, a.Saves, string(commentsJSON), a.LastUpdated, a.CrawledAt,
	}, nil
}

// marshalAnalysis returns nil for a missing analysis so the column stays NULL. JSON goes out
// as text; lib/pq would encode []byte as bytea.
func marshalAnalysis(a *domain.Analysis) (any, error) {
	if a == nil {
		return nil, nil
	}
	raw, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("encode analysis: %w", err)
	}
	return string(raw), nil
}

func orEmpty(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func excludedAssignments() string {
	sets := make([]string, 0, len(columns))
	for _, c := range columns {
		sets = append(sets, c+" = EXCLUDED."+c)
	}
	return strings.Join(sets, ", ")
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
