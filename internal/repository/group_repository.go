package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/firestation-attendance/internal/model"
)

// GroupRepo provides CRUD for the groups table.  Deleting a group leaves
// its members without a group (ON DELETE SET NULL).
type GroupRepo struct {
	db *sql.DB
}

func NewGroupRepo(db *sql.DB) *GroupRepo { return &GroupRepo{db: db} }

const groupColumns = "id, name, description, color, created_at"

func scanGroup(row rowScanner) (model.Group, error) {
	var (
		g           model.Group
		description sql.NullString
		color       sql.NullString
	)
	if err := row.Scan(&g.ID, &g.Name, &description, &color, &g.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Group{}, ErrNotFound
		}
		return model.Group{}, err
	}
	g.Description = nullString(description)
	g.Color = nullString(color)
	return g, nil
}

// List returns all groups by name.
func (r *GroupRepo) List(ctx context.Context) ([]model.Group, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+groupColumns+" FROM `groups` ORDER BY name, id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Group{}
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (r *GroupRepo) GetByID(ctx context.Context, id uint64) (model.Group, error) {
	return scanGroup(r.db.QueryRowContext(ctx, "SELECT "+groupColumns+" FROM `groups` WHERE id = ?", id))
}

// Create inserts g and reloads it.  A taken name returns ErrDuplicate.
func (r *GroupRepo) Create(ctx context.Context, g *model.Group) error {
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO `groups` (name, description, color) VALUES (?, ?, ?)",
		g.Name, g.Description, g.Color)
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
	*g = created
	return nil
}

func (r *GroupRepo) Update(ctx context.Context, g model.Group) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE `groups` SET name = ?, description = ?, color = ? WHERE id = ?",
		g.Name, g.Description, g.Color, g.ID)
	if err != nil {
		return writeErr(err)
	}
	return expectRow(res)
}

func (r *GroupRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM `groups` WHERE id = ?", id)
	if err != nil {
		return err
	}
	return expectRow(res)
}
