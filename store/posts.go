package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrAlreadyPublished is returned when a post already carries an external id.
	ErrAlreadyPublished = errors.New("post is already published")
	// ErrPublishInProgress is returned when another publish of the same post holds the lock.
	ErrPublishInProgress = errors.New("post is already being published")
)

// PostRepository persists posts.
type PostRepository interface {
	Create(ctx context.Context, p *Post) error
	Update(ctx context.Context, p *Post) error
	Get(ctx context.Context, id int64) (Post, error)
	List(ctx context.Context) ([]Post, error)
	Delete(ctx context.Context, id int64) error

	// BeginPublish sets the publishing flag if it is clear and the post has no
	// external id yet. AbortPublish clears it again after a failed attempt.
	BeginPublish(ctx context.Context, id int64) error
	AbortPublish(ctx context.Context, id int64) error
	// MarkPublished records a successful publish: status, published date and
	// external id are written together, once.
	MarkPublished(ctx context.Context, id int64, externalID string, at time.Time) error
	// ResetPublishing clears flags left behind by an interrupted process.
	ResetPublishing(ctx context.Context) (int64, error)

	// Import inserts a complete record, e.g. from a backup.
	Import(ctx context.Context, p Post) (int64, error)
	Count(ctx context.Context) (PostCounts, error)
}

// PostStore implements PostRepository on the posts table.
type PostStore struct {
	q   dbtx
	now func() time.Time
}

const postColumns = `id, title, content, status, created_date, published_date, blog_target, external_id, tags, categories, publishing`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPost(r rowScanner) (Post, error) {
	var (
		p                     Post
		status, created       string
		published, externalID sql.NullString
		publishing            int
	)
	if err := r.Scan(&p.ID, &p.Title, &p.Content, &status, &created, &published, &p.BlogTarget, &externalID, &p.Tags, &p.Categories, &publishing); err != nil {
		return Post{}, err
	}
	p.Status = Status(status)
	p.ExternalID = externalID.String
	p.Publishing = publishing == 1

	var err error
	if p.CreatedDate, err = parseTime(created); err != nil {
		return Post{}, fmt.Errorf("post %d created_date: %w", p.ID, err)
	}
	if p.PublishedDate, err = parseNullTime(published); err != nil {
		return Post{}, fmt.Errorf("post %d published_date: %w", p.ID, err)
	}
	return p, nil
}

func (s *PostStore) Create(ctx context.Context, p *Post) error {
	p.Status = StatusDraft
	p.CreatedDate = s.now().UTC()
	p.PublishedDate = nil
	p.ExternalID = ""
	res, err := s.q.ExecContext(ctx, `
		INSERT INTO posts (title, content, status, created_date, blog_target, tags, categories)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.Title, p.Content, string(p.Status), formatTime(p.CreatedDate), p.BlogTarget, p.Tags, p.Categories)
	if err != nil {
		return persistence("insert post", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return persistence("insert post", err)
	}
	p.ID = id
	return nil
}

func (s *PostStore) Update(ctx context.Context, p *Post) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE posts SET title = ?, content = ?, tags = ?, categories = ?
		WHERE id = ?`, p.Title, p.Content, p.Tags, p.Categories, p.ID)
	if err != nil {
		return persistence("update post", err)
	}
	return expectOne(res, "update post")
}

func (s *PostStore) Get(ctx context.Context, id int64) (Post, error) {
	p, err := scanPost(s.q.QueryRowContext(ctx, `SELECT `+postColumns+` FROM posts WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Post{}, ErrNotFound
	}
	if err != nil {
		return Post{}, persistence("get post", err)
	}
	return p, nil
}

// List returns every post, newest first.
func (s *PostStore) List(ctx context.Context) ([]Post, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT `+postColumns+` FROM posts ORDER BY created_date DESC, id DESC`)
	if err != nil {
		return nil, persistence("list posts", err)
	}
	defer rows.Close()

	var posts []Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, persistence("scan post", err)
		}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, persistence("list posts", err)
	}
	return posts, nil
}

// Delete removes a post. Tag and category usage counters are left untouched.
func (s *PostStore) Delete(ctx context.Context, id int64) error {
	res, err := s.q.ExecContext(ctx, `DELETE FROM posts WHERE id = ?`, id)
	if err != nil {
		return persistence("delete post", err)
	}
	return expectOne(res, "delete post")
}

func (s *PostStore) BeginPublish(ctx context.Context, id int64) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE posts SET publishing = 1
		WHERE id = ? AND publishing = 0 AND external_id IS NULL`, id)
	if err != nil {
		return persistence("lock post", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return persistence("lock post", err)
	}
	if n == 1 {
		return nil
	}
	p, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if p.IsPublished() {
		return ErrAlreadyPublished
	}
	return ErrPublishInProgress
}

func (s *PostStore) AbortPublish(ctx context.Context, id int64) error {
	if _, err := s.q.ExecContext(ctx, `UPDATE posts SET publishing = 0 WHERE id = ?`, id); err != nil {
		return persistence("unlock post", err)
	}
	return nil
}

func (s *PostStore) MarkPublished(ctx context.Context, id int64, externalID string, at time.Time) error {
	if externalID == "" {
		return fmt.Errorf("mark post %d published: empty external id", id)
	}
	res, err := s.q.ExecContext(ctx, `
		UPDATE posts SET status = ?, published_date = ?, external_id = ?, publishing = 0
		WHERE id = ? AND external_id IS NULL`,
		string(StatusPublished), formatTime(at), externalID, id)
	if err != nil {
		return persistence("mark post published", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return persistence("mark post published", err)
	}
	if n == 0 {
		if _, err := s.Get(ctx, id); err != nil {
			return err
		}
		return ErrAlreadyPublished
	}
	return nil
}

func (s *PostStore) ResetPublishing(ctx context.Context) (int64, error) {
	res, err := s.q.ExecContext(ctx, `UPDATE posts SET publishing = 0 WHERE publishing = 1`)
	if err != nil {
		return 0, persistence("reset publishing flags", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, persistence("reset publishing flags", err)
	}
	return n, nil
}

func (s *PostStore) Import(ctx context.Context, p Post) (int64, error) {
	if !p.Status.Valid() {
		p.Status = StatusDraft
	}
	if p.CreatedDate.IsZero() {
		p.CreatedDate = s.now().UTC()
	}
	// external id and published date only travel together
	var published, externalID sql.NullString
	if p.ExternalID != "" {
		externalID = sql.NullString{String: p.ExternalID, Valid: true}
		at := p.CreatedDate
		if p.PublishedDate != nil {
			at = *p.PublishedDate
		}
		published = sql.NullString{String: formatTime(at), Valid: true}
	}
	res, err := s.q.ExecContext(ctx, `
		INSERT INTO posts (title, content, status, created_date, published_date, blog_target, external_id, tags, categories)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.Title, p.Content, string(p.Status), formatTime(p.CreatedDate), published, p.BlogTarget, externalID, p.Tags, p.Categories)
	if err != nil {
		return 0, persistence("import post", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, persistence("import post", err)
	}
	return id, nil
}

func (s *PostStore) Count(ctx context.Context) (PostCounts, error) {
	var c PostCounts
	err := s.q.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN status = 'published' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'draft' THEN 1 ELSE 0 END), 0)
		FROM posts`).Scan(&c.Total, &c.Published, &c.Drafts)
	if err != nil {
		return PostCounts{}, persistence("count posts", err)
	}
	return c, nil
}

func expectOne(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return persistence(op, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
