package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quillnote/notes-platform/services/comments/internal/domain"
	"github.com/quillnote/notes-platform/services/comments/internal/pager"
)

const commentCols = `id, slug, author_id, COALESCE(parent_id, ''), depth, child_ids,
	body, revision_count, revised_at, likes_count, dislikes_count,
	deleted, deleted_at, COALESCE(report_target, ''), location, created_at, updated_at`

// PostgresCommentStore persists comments in Postgres.
type PostgresCommentStore struct {
	pool *pgxpool.Pool
}

var _ CommentStore = (*PostgresCommentStore)(nil)

// NewPostgresCommentStore creates a store backed by Postgres.
func NewPostgresCommentStore(pool *pgxpool.Pool) *PostgresCommentStore {
	return &PostgresCommentStore{pool: pool}
}

func scanComment(row pgx.Row) (domain.Comment, error) {
	var c domain.Comment
	err := row.Scan(&c.ID, &c.Slug, &c.AuthorID, &c.ParentID, &c.Depth, &c.ChildIDs,
		&c.Latest.Text, &c.RevisionCount, &c.Latest.CreatedAt, &c.Likes, &c.Dislikes,
		&c.Deleted, &c.DeletedAt, &c.ReportTarget, &c.Location, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func notFound(err error, what string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.NotFound(what)
	}
	return err
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func (s *PostgresCommentStore) Insert(ctx context.Context, c domain.Comment) (domain.Comment, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return domain.Comment{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if c.ParentID != "" {
		// The row lock taken here also serializes concurrent replies.
		var pid string
		err = tx.QueryRow(ctx,
			`UPDATE comments SET child_ids = array_append(child_ids, $2) WHERE id = $1 RETURNING id`,
			c.ParentID, c.ID).Scan(&pid)
		if err != nil {
			return domain.Comment{}, notFound(err, "parent comment")
		}
	}

	const q = `INSERT INTO comments (id, slug, author_id, parent_id, depth, body, revision_count,
	               revised_at, location, created_at, updated_at)
	           VALUES ($1, $2, $3, $4, $5, $6, 1, $7, $8, $7, $7)
	           RETURNING ` + commentCols
	out, err := scanComment(tx.QueryRow(ctx, q, c.ID, c.Slug, c.AuthorID, nullable(c.ParentID),
		c.Depth, c.Latest.Text, c.CreatedAt, c.Location))
	if err != nil {
		return domain.Comment{}, err
	}
	_, err = tx.Exec(ctx,
		`INSERT INTO comment_revisions (comment_id, seq, body, created_at) VALUES ($1, 1, $2, $3)`,
		c.ID, c.Latest.Text, c.CreatedAt)
	if err != nil {
		return domain.Comment{}, err
	}
	return out, tx.Commit(ctx)
}

func (s *PostgresCommentStore) Get(ctx context.Context, id string) (domain.Comment, error) {
	c, err := scanComment(s.pool.QueryRow(ctx, `SELECT `+commentCols+` FROM comments WHERE id = $1`, id))
	if err != nil {
		return domain.Comment{}, notFound(err, "comment")
	}
	return c, nil
}

func (s *PostgresCommentStore) Scan(ctx context.Context, q pager.Query[Filter]) ([]domain.Comment, error) {
	var where string
	var key string
	if q.Filter.ParentID != "" {
		where, key = `parent_id = $1`, q.Filter.ParentID
	} else {
		where, key = `slug = $1 AND parent_id IS NULL`, q.Filter.Slug
	}

	var sql string
	var args []any
	if q.Before == "" {
		sql = `SELECT ` + commentCols + ` FROM comments WHERE ` + where + ` ORDER BY id DESC LIMIT $2`
		args = []any{key, q.Limit}
	} else {
		sql = `SELECT ` + commentCols + ` FROM comments WHERE ` + where + ` AND id < $3 ORDER BY id DESC LIMIT $2`
		args = []any{key, q.Limit, q.Before}
	}

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Comment
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *PostgresCommentStore) AppendRevision(ctx context.Context, id, authorID, text string, at time.Time) (domain.Comment, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return domain.Comment{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const q = `UPDATE comments
	           SET body = $3, revised_at = $4, updated_at = $4, revision_count = revision_count + 1
	           WHERE id = $1 AND author_id = $2 AND NOT deleted
	           RETURNING ` + commentCols
	c, err := scanComment(tx.QueryRow(ctx, q, id, authorID, text, at))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Comment{}, s.explainRejectedEdit(ctx, tx, id, authorID)
	}
	if err != nil {
		return domain.Comment{}, err
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO comment_revisions (comment_id, seq, body, created_at) VALUES ($1, $2, $3, $4)`,
		id, c.RevisionCount, text, at)
	if err != nil {
		return domain.Comment{}, err
	}
	return c, tx.Commit(ctx)
}

func (s *PostgresCommentStore) explainRejectedEdit(ctx context.Context, tx pgx.Tx, id, authorID string) error {
	var owner string
	var deleted bool
	err := tx.QueryRow(ctx, `SELECT author_id, deleted FROM comments WHERE id = $1`, id).Scan(&owner, &deleted)
	switch {
	case err != nil:
		return notFound(err, "comment")
	case owner != authorID:
		return domain.Forbidden("only the author can edit a comment")
	default:
		return domain.NotFound("comment")
	}
}

func (s *PostgresCommentStore) Revisions(ctx context.Context, id string) ([]domain.Revision, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT body, created_at FROM comment_revisions WHERE comment_id = $1 ORDER BY seq ASC`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Revision
	for rows.Next() {
		var r domain.Revision
		if err := rows.Scan(&r.Text, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, domain.NotFound("comment")
	}
	return out, nil
}

func (s *PostgresCommentStore) JudgementOf(ctx context.Context, commentID, userID string) (domain.Judgement, error) {
	var kind *string
	err := s.pool.QueryRow(ctx,
		`SELECT j.kind FROM comments c
		 LEFT JOIN comment_judgements j ON j.comment_id = c.id AND j.user_id = $2
		 WHERE c.id = $1`, commentID, userID).Scan(&kind)
	if err != nil {
		return domain.JudgementNone, notFound(err, "comment")
	}
	if kind == nil {
		return domain.JudgementNone, nil
	}
	return domain.Judgement(*kind), nil
}

func (s *PostgresCommentStore) JudgementsOf(ctx context.Context, userID string, commentIDs []string) (map[string]domain.Judgement, error) {
	out := make(map[string]domain.Judgement)
	if len(commentIDs) == 0 {
		return out, nil
	}
	rows, err := s.pool.Query(ctx,
		`SELECT comment_id, kind FROM comment_judgements WHERE user_id = $1 AND comment_id = ANY($2)`,
		userID, commentIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id, kind string
		if err := rows.Scan(&id, &kind); err != nil {
			return nil, err
		}
		out[id] = domain.Judgement(kind)
	}
	return out, rows.Err()
}

// ApplyJudgement locks the comment row before reading the ledger entry.
// Every judgement write takes the comment lock first, so same-user requests
// queue on it instead of racing.
func (s *PostgresCommentStore) ApplyJudgement(ctx context.Context, commentID, userID string, next func(domain.Judgement) domain.Judgement, at time.Time) (domain.Comment, domain.Judgement, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return domain.Comment{}, domain.JudgementNone, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var deleted bool
	if err := tx.QueryRow(ctx, `SELECT deleted FROM comments WHERE id = $1 FOR UPDATE`, commentID).Scan(&deleted); err != nil {
		return domain.Comment{}, domain.JudgementNone, notFound(err, "comment")
	}
	if deleted {
		return domain.Comment{}, domain.JudgementNone, domain.NotFound("comment")
	}

	from := domain.JudgementNone
	var kind string
	err = tx.QueryRow(ctx,
		`SELECT kind FROM comment_judgements WHERE comment_id = $1 AND user_id = $2`, commentID, userID).Scan(&kind)
	switch {
	case err == nil:
		from = domain.Judgement(kind)
	case !errors.Is(err, pgx.ErrNoRows):
		return domain.Comment{}, domain.JudgementNone, err
	}
	to := next(from)

	switch {
	case from == to:
	case from == domain.JudgementNone:
		_, err = tx.Exec(ctx,
			`INSERT INTO comment_judgements (comment_id, user_id, kind) VALUES ($1, $2, $3)`,
			commentID, userID, string(to))
	case to == domain.JudgementNone:
		_, err = tx.Exec(ctx,
			`DELETE FROM comment_judgements WHERE comment_id = $1 AND user_id = $2`, commentID, userID)
	default:
		_, err = tx.Exec(ctx,
			`UPDATE comment_judgements SET kind = $3 WHERE comment_id = $1 AND user_id = $2`,
			commentID, userID, string(to))
	}
	if err != nil {
		return domain.Comment{}, domain.JudgementNone, err
	}

	dl, dd := domain.CountDelta(from, to)
	const q = `UPDATE comments
	           SET likes_count = likes_count + $2, dislikes_count = dislikes_count + $3, updated_at = $4
	           WHERE id = $1
	           RETURNING ` + commentCols
	c, err := scanComment(tx.QueryRow(ctx, q, commentID, dl, dd, at))
	if err != nil {
		return domain.Comment{}, domain.JudgementNone, err
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.Comment{}, domain.JudgementNone, err
	}
	return c, to, nil
}

func (s *PostgresCommentStore) RemoveJudgements(ctx context.Context, userID string, ids []string, kind domain.Judgement, at time.Time) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	dl, dd := domain.CountDelta(kind, domain.JudgementNone)
	const q = `WITH removed AS (
	               DELETE FROM comment_judgements
	               WHERE user_id = $1 AND comment_id = ANY($2) AND kind = $3
	               RETURNING comment_id
	           )
	           UPDATE comments c
	           SET likes_count = c.likes_count + $4, dislikes_count = c.dislikes_count + $5, updated_at = $6
	           FROM removed WHERE c.id = removed.comment_id`
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// Lock the comments in id order before touching ledger rows, as
	// ApplyJudgement does, so the two never deadlock.
	if _, err := tx.Exec(ctx,
		`SELECT id FROM comments WHERE id = ANY($1) ORDER BY id FOR UPDATE`, ids); err != nil {
		return 0, err
	}
	tag, err := tx.Exec(ctx, q, userID, ids, string(kind), dl, dd, at)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresCommentStore) MarkDeleted(ctx context.Context, id string, at time.Time) (domain.Comment, error) {
	const q = `UPDATE comments SET deleted = true, deleted_at = $2, updated_at = $2
	           WHERE id = $1 AND NOT deleted
	           RETURNING ` + commentCols
	c, err := scanComment(s.pool.QueryRow(ctx, q, id, at))
	if err != nil {
		return domain.Comment{}, notFound(err, "comment")
	}
	return c, nil
}

func (s *PostgresCommentStore) MarkDeletedOwned(ctx context.Context, ids []string, authorID string, at time.Time) ([]domain.Comment, error) {
	ids = uniq(ids)
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx,
		`SELECT id FROM comments WHERE id = ANY($1) AND author_id = $2 FOR UPDATE`, ids, authorID)
	if err != nil {
		return nil, err
	}
	owned := 0
	for rows.Next() {
		owned++
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if owned != len(ids) {
		return nil, domain.Forbidden("you do not own these comments")
	}

	rows, err = tx.Query(ctx,
		`UPDATE comments SET deleted = true, deleted_at = $2, updated_at = $2
		 WHERE id = ANY($1) AND NOT deleted
		 RETURNING `+commentCols, ids, at)
	if err != nil {
		return nil, err
	}
	var deleted []domain.Comment
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		deleted = append(deleted, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return deleted, nil
}

func (s *PostgresCommentStore) SetReportTarget(ctx context.Context, id, target string, at time.Time) (domain.Comment, error) {
	const q = `UPDATE comments SET report_target = $2, updated_at = $3 WHERE id = $1 RETURNING ` + commentCols
	c, err := scanComment(s.pool.QueryRow(ctx, q, id, target, at))
	if err != nil {
		return domain.Comment{}, notFound(err, "comment")
	}
	return c, nil
}

func (s *PostgresCommentStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func uniq(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
