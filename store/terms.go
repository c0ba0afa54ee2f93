package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"
)

const (
	tagsTable       = "tags"
	categoriesTable = "categories"
)

// TermRepository persists one taxonomy: available tags or available categories.
type TermRepository interface {
	// List returns all terms, most used first.
	List(ctx context.Context) ([]Term, error)
	Get(ctx context.Context, id int64) (Term, error)
	GetByName(ctx context.Context, name string) (Term, error)
	// Add creates the term if no term with that name exists. created reports
	// whether a new row was written; otherwise the existing term is returned.
	Add(ctx context.Context, name, description string) (t Term, created bool, err error)
	Delete(ctx context.Context, id int64) error
	// IncrementUsage adds one use per entry in names, creating unknown terms
	// on first use. Repeated names count once per occurrence.
	IncrementUsage(ctx context.Context, names []string) error
	// Merge inserts t unless a term with the same name exists.
	Merge(ctx context.Context, t Term) (bool, error)
	Count(ctx context.Context) (int, error)
}

// TermStore implements TermRepository on the tags or categories table.
type TermStore struct {
	q     dbtx
	table string
	now   func() time.Time
}

func (s *TermStore) withTable(query string) string {
	return strings.ReplaceAll(query, "{table}", s.table)
}

func scanTerm(r rowScanner) (Term, error) {
	var (
		t       Term
		created string
	)
	if err := r.Scan(&t.ID, &t.Name, &t.Description, &t.UsageCount, &created); err != nil {
		return Term{}, err
	}
	var err error
	if t.CreatedDate, err = parseTime(created); err != nil {
		return Term{}, err
	}
	return t, nil
}

func (s *TermStore) List(ctx context.Context) ([]Term, error) {
	rows, err := s.q.QueryContext(ctx, s.withTable(`
		SELECT id, name, description, usage_count, created_date
		FROM {table} ORDER BY usage_count DESC, name ASC`))
	if err != nil {
		return nil, persistence("list "+s.table, err)
	}
	defer rows.Close()

	var terms []Term
	for rows.Next() {
		t, err := scanTerm(rows)
		if err != nil {
			return nil, persistence("scan "+s.table, err)
		}
		terms = append(terms, t)
	}
	if err := rows.Err(); err != nil {
		return nil, persistence("list "+s.table, err)
	}
	return terms, nil
}

func (s *TermStore) Get(ctx context.Context, id int64) (Term, error) {
	return s.getOne(ctx, `WHERE id = ?`, id)
}

func (s *TermStore) GetByName(ctx context.Context, name string) (Term, error) {
	return s.getOne(ctx, `WHERE name = ?`, strings.TrimSpace(name))
}

func (s *TermStore) getOne(ctx context.Context, where string, arg any) (Term, error) {
	t, err := scanTerm(s.q.QueryRowContext(ctx, s.withTable(`
		SELECT id, name, description, usage_count, created_date
		FROM {table} `+where), arg))
	if errors.Is(err, sql.ErrNoRows) {
		return Term{}, ErrNotFound
	}
	if err != nil {
		return Term{}, persistence("get "+s.table, err)
	}
	return t, nil
}

func (s *TermStore) Add(ctx context.Context, name, description string) (Term, bool, error) {
	name = strings.TrimSpace(name)
	description = strings.TrimSpace(description)
	v := NewValidator()
	validateTerm(v, name, description)
	if !v.Valid() {
		return Term{}, false, v.ValidationError()
	}
	created, err := s.Merge(ctx, Term{Name: name, Description: description})
	if err != nil {
		return Term{}, false, err
	}
	t, err := s.GetByName(ctx, name)
	if err != nil {
		return Term{}, false, err
	}
	return t, created, nil
}

func (s *TermStore) Delete(ctx context.Context, id int64) error {
	res, err := s.q.ExecContext(ctx, s.withTable(`DELETE FROM {table} WHERE id = ?`), id)
	if err != nil {
		return persistence("delete from "+s.table, err)
	}
	return expectOne(res, "delete from "+s.table)
}

func (s *TermStore) IncrementUsage(ctx context.Context, names []string) error {
	now := formatTime(s.now())
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		_, err := s.q.ExecContext(ctx, s.withTable(`
			INSERT INTO {table} (name, description, usage_count, created_date)
			VALUES (?, '', 1, ?)
			ON CONFLICT(name) DO UPDATE SET usage_count = usage_count + 1`), name, now)
		if err != nil {
			return persistence("increment "+s.table+" usage", err)
		}
	}
	return nil
}

func (s *TermStore) Merge(ctx context.Context, t Term) (bool, error) {
	created := t.CreatedDate
	if created.IsZero() {
		created = s.now()
	}
	res, err := s.q.ExecContext(ctx, s.withTable(`
		INSERT INTO {table} (name, description, usage_count, created_date)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO NOTHING`),
		strings.TrimSpace(t.Name), t.Description, t.UsageCount, formatTime(created))
	if err != nil {
		return false, persistence("insert into "+s.table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, persistence("insert into "+s.table, err)
	}
	return n == 1, nil
}

func (s *TermStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.q.QueryRowContext(ctx, s.withTable(`SELECT COUNT(*) FROM {table}`)).Scan(&n); err != nil {
		return 0, persistence("count "+s.table, err)
	}
	return n, nil
}
