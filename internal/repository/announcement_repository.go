package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/iliyamo/firestation-attendance/internal/model"
)

// AnnouncementRepo provides CRUD for the announcements table.
type AnnouncementRepo struct {
	db *sql.DB
}

func NewAnnouncementRepo(db *sql.DB) *AnnouncementRepo { return &AnnouncementRepo{db: db} }

const announcementColumns = `id, title, content, priority, valid_from, valid_until, target_groups, created_by, created_at`

func scanAnnouncement(row rowScanner) (model.Announcement, error) {
	var (
		a         model.Announcement
		until     sql.NullTime
		targets   []byte
		createdBy sql.NullInt64
	)
	if err := row.Scan(&a.ID, &a.Title, &a.Content, &a.Priority, &a.ValidFrom, &until,
		&targets, &createdBy, &a.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Announcement{}, ErrNotFound
		}
		return model.Announcement{}, err
	}
	a.ValidUntil = nullTime(until)
	a.CreatedBy = nullID(createdBy)
	if len(targets) > 0 {
		if err := json.Unmarshal(targets, &a.TargetGroups); err != nil {
			return model.Announcement{}, err
		}
	}
	return a, nil
}

func (r *AnnouncementRepo) query(ctx context.Context, q string, args ...any) ([]model.Announcement, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Announcement{}
	for rows.Next() {
		a, err := scanAnnouncement(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// List returns every announcement, newest first.
func (r *AnnouncementRepo) List(ctx context.Context) ([]model.Announcement, error) {
	return r.query(ctx, `SELECT `+announcementColumns+` FROM announcements ORDER BY created_at DESC, id DESC`)
}

// ListActive returns announcements visible at now, most urgent first.
func (r *AnnouncementRepo) ListActive(ctx context.Context, now time.Time) ([]model.Announcement, error) {
	return r.query(ctx,
		`SELECT `+announcementColumns+` FROM announcements
		 WHERE valid_from <= ? AND (valid_until IS NULL OR valid_until >= ?)
		 ORDER BY FIELD(priority, 'urgent', 'high', 'normal'), created_at DESC, id DESC`,
		now, now)
}

func (r *AnnouncementRepo) GetByID(ctx context.Context, id uint64) (model.Announcement, error) {
	return scanAnnouncement(r.db.QueryRowContext(ctx,
		`SELECT `+announcementColumns+` FROM announcements WHERE id = ?`, id))
}

// Create inserts a and reloads it.
func (r *AnnouncementRepo) Create(ctx context.Context, a *model.Announcement) error {
	targets, err := targetsJSON(a.TargetGroups)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO announcements (title, content, priority, valid_from, valid_until, target_groups, created_by)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.Title, a.Content, a.Priority, a.ValidFrom, a.ValidUntil, targets, a.CreatedBy)
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
	*a = created
	return nil
}

func (r *AnnouncementRepo) Update(ctx context.Context, a model.Announcement) error {
	targets, err := targetsJSON(a.TargetGroups)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE announcements SET title = ?, content = ?, priority = ?, valid_from = ?, valid_until = ?, target_groups = ?
		 WHERE id = ?`,
		a.Title, a.Content, a.Priority, a.ValidFrom, a.ValidUntil, targets, a.ID)
	if err != nil {
		return writeErr(err)
	}
	return expectRow(res)
}

func (r *AnnouncementRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM announcements WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return expectRow(res)
}

// targetsJSON encodes the group list for the JSON column; nil stays NULL.
func targetsJSON(ids []uint64) (any, error) {
	if ids == nil {
		return nil, nil
	}
	b, err := json.Marshal(ids)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}
