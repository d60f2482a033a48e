package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/iliyamo/firestation-attendance/internal/model"
)

// PersonnelRepo provides CRUD for the personnel table.  Members are never
// deleted; Deactivate clears is_active so their history stays intact.
type PersonnelRepo struct {
	db *sql.DB
}

func NewPersonnelRepo(db *sql.DB) *PersonnelRepo { return &PersonnelRepo{db: db} }

const personnelColumns = `id, stammrollennummer, vorname, nachname, dienstgrad, group_id, is_active, created_at`

func scanPersonnel(row rowScanner) (model.Personnel, error) {
	var (
		p     model.Personnel
		group sql.NullInt64
	)
	if err := row.Scan(&p.ID, &p.Stammrollennummer, &p.Vorname, &p.Nachname, &p.Dienstgrad,
		&group, &p.IsActive, &p.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Personnel{}, ErrNotFound
		}
		return model.Personnel{}, err
	}
	if group.Valid {
		g := uint64(group.Int64)
		p.GroupID = &g
	}
	return p, nil
}

// GetByRollTx resolves a roll number inside tx.  With activeOnly inactive
// members are treated as unknown.
func (r *PersonnelRepo) GetByRollTx(ctx context.Context, tx *sql.Tx, roll string, activeOnly bool) (model.Personnel, error) {
	q := `SELECT ` + personnelColumns + ` FROM personnel WHERE stammrollennummer = ?`
	if activeOnly {
		q += ` AND is_active = TRUE`
	}
	return scanPersonnel(tx.QueryRowContext(ctx, q+` LIMIT 1`, strings.TrimSpace(roll)))
}

// GetByID fetches one member.
func (r *PersonnelRepo) GetByID(ctx context.Context, id uint64) (model.Personnel, error) {
	return scanPersonnel(r.db.QueryRowContext(ctx,
		`SELECT `+personnelColumns+` FROM personnel WHERE id = ? LIMIT 1`, id))
}

// List returns members ordered by last and first name.
func (r *PersonnelRepo) List(ctx context.Context, activeOnly bool) ([]model.Personnel, error) {
	q := `SELECT ` + personnelColumns + ` FROM personnel`
	if activeOnly {
		q += ` WHERE is_active = TRUE`
	}
	rows, err := r.db.QueryContext(ctx, q+` ORDER BY nachname, vorname, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Personnel{}
	for rows.Next() {
		p, err := scanPersonnel(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Create inserts p and fills in ID and CreatedAt.  A taken roll number
// returns ErrDuplicate and an unknown group ErrReference.
func (r *PersonnelRepo) Create(ctx context.Context, p *model.Personnel) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO personnel (stammrollennummer, vorname, nachname, dienstgrad, group_id, is_active)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		p.Stammrollennummer, p.Vorname, p.Nachname, p.Dienstgrad, p.GroupID, p.IsActive)
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
	*p = created
	return nil
}

// Update overwrites every editable column of p.
func (r *PersonnelRepo) Update(ctx context.Context, p model.Personnel) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE personnel SET stammrollennummer = ?, vorname = ?, nachname = ?, dienstgrad = ?, group_id = ?, is_active = ?
		 WHERE id = ?`,
		p.Stammrollennummer, p.Vorname, p.Nachname, p.Dienstgrad, p.GroupID, p.IsActive, p.ID)
	if err != nil {
		return writeErr(err)
	}
	return expectRow(res)
}

// Deactivate marks a member inactive.
func (r *PersonnelRepo) Deactivate(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, `UPDATE personnel SET is_active = FALSE WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return expectRow(res)
}

// expectRow maps an UPDATE matching nothing to ErrNotFound.  MySQL reports
// unchanged rows as unaffected, so the client must run with
// clientFoundRows=true.
func expectRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
