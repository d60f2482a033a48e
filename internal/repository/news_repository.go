package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/firestation-attendance/internal/model"
)

// NewsRepo provides CRUD for the news table.
type NewsRepo struct {
	db *sql.DB
}

func NewNewsRepo(db *sql.DB) *NewsRepo { return &NewsRepo{db: db} }

const newsColumns = `id, title, content, priority, is_active, created_at, expires_at, created_by`

func scanNews(row rowScanner) (model.News, error) {
	var (
		n       model.News
		expires sql.NullTime
	)
	if err := row.Scan(&n.ID, &n.Title, &n.Content, &n.Priority, &n.IsActive,
		&n.CreatedAt, &expires, &n.CreatedBy); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.News{}, ErrNotFound
		}
		return model.News{}, err
	}
	n.ExpiresAt = nullTime(expires)
	return n, nil
}

// List returns news newest first.  With activeOnly inactive items and items
// expired at now are left out.
func (r *NewsRepo) List(ctx context.Context, activeOnly bool, now time.Time, skip, limit int) ([]model.News, error) {
	q := `SELECT ` + newsColumns + ` FROM news`
	args := []any{}
	if activeOnly {
		q += ` WHERE is_active = TRUE AND (expires_at IS NULL OR expires_at > ?)`
		args = append(args, now)
	}
	q += ` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	args = append(args, limit, skip)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.News{}
	for rows.Next() {
		n, err := scanNews(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (r *NewsRepo) GetByID(ctx context.Context, id uint64) (model.News, error) {
	return scanNews(r.db.QueryRowContext(ctx, `SELECT `+newsColumns+` FROM news WHERE id = ?`, id))
}

// Create inserts n and reloads it.
func (r *NewsRepo) Create(ctx context.Context, n *model.News) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO news (title, content, priority, is_active, expires_at, created_by) VALUES (?, ?, ?, ?, ?, ?)`,
		n.Title, n.Content, n.Priority, n.IsActive, n.ExpiresAt, n.CreatedBy)
	if err != nil {
		return writeErr(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	created, err := r.GetByID(ctx, uint64(id))
	if err != nil {
		return err
	}
	*n = created
	return nil
}

func (r *NewsRepo) Update(ctx context.Context, n model.News) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE news SET title = ?, content = ?, priority = ?, is_active = ?, expires_at = ? WHERE id = ?`,
		n.Title, n.Content, n.Priority, n.IsActive, n.ExpiresAt, n.ID)
	if err != nil {
		return writeErr(err)
	}
	return expectRow(res)
}

func (r *NewsRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM news WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return expectRow(res)
}
