package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/firestation-attendance/internal/model"
)

// DutyRepo provides CRUD for duty_schedules.
type DutyRepo struct {
	db *sql.DB
}

func NewDutyRepo(db *sql.DB) *DutyRepo { return &DutyRepo{db: db} }

// DutyFilter narrows List.  Zero fields do not filter.
type DutyFilter struct {
	From        *time.Time // start_time >= From
	To          *time.Time // end_time < To
	PersonnelID uint64
}

const dutyColumns = `d.id, d.title, d.duty_type, d.start_time, d.end_time, d.personnel_id, d.notes, d.created_by, d.created_at`

func scanDuty(row rowScanner, extra ...any) (model.DutySchedule, error) {
	var (
		d         model.DutySchedule
		notes     sql.NullString
		createdBy sql.NullInt64
	)
	dest := append([]any{&d.ID, &d.Title, &d.DutyType, &d.StartTime, &d.EndTime, &d.PersonnelID,
		&notes, &createdBy, &d.CreatedAt}, extra...)
	if err := row.Scan(dest...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.DutySchedule{}, ErrNotFound
		}
		return model.DutySchedule{}, err
	}
	d.Notes = nullString(notes)
	d.CreatedBy = nullID(createdBy)
	return d, nil
}

// List returns duty slots with their member, ordered by start time.
func (r *DutyRepo) List(ctx context.Context, f DutyFilter) ([]model.DutyEntry, error) {
	q := `SELECT ` + dutyColumns + `, p.vorname, p.nachname, p.dienstgrad
	      FROM duty_schedules d
	      JOIN personnel p ON p.id = d.personnel_id
	      WHERE 1 = 1`
	args := []any{}
	if f.From != nil {
		q += ` AND d.start_time >= ?`
		args = append(args, *f.From)
	}
	if f.To != nil {
		q += ` AND d.end_time < ?`
		args = append(args, *f.To)
	}
	if f.PersonnelID != 0 {
		q += ` AND d.personnel_id = ?`
		args = append(args, f.PersonnelID)
	}
	rows, err := r.db.QueryContext(ctx, q+` ORDER BY d.start_time, d.id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.DutyEntry{}
	for rows.Next() {
		var (
			e    model.DutyEntry
			rank string
		)
		d, err := scanDuty(rows, &e.Personnel.Vorname, &e.Personnel.Nachname, &rank)
		if err != nil {
			return nil, err
		}
		e.DutySchedule = d
		e.Personnel.ID = d.PersonnelID
		e.Personnel.Dienstgrad = model.RankName(rank)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *DutyRepo) GetByID(ctx context.Context, id uint64) (model.DutySchedule, error) {
	return scanDuty(r.db.QueryRowContext(ctx, `SELECT `+dutyColumns+` FROM duty_schedules d WHERE d.id = ?`, id))
}

// Create inserts d and fills in ID.  An unknown member returns ErrReference.
func (r *DutyRepo) Create(ctx context.Context, d *model.DutySchedule) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO duty_schedules (title, duty_type, start_time, end_time, personnel_id, notes, created_by)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		d.Title, d.DutyType, d.StartTime, d.EndTime, d.PersonnelID, d.Notes, d.CreatedBy)
	if err != nil {
		return writeErr(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	d.ID = uint64(id)
	return nil
}

func (r *DutyRepo) Update(ctx context.Context, d model.DutySchedule) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE duty_schedules SET title = ?, duty_type = ?, start_time = ?, end_time = ?, personnel_id = ?, notes = ?
		 WHERE id = ?`,
		d.Title, d.DutyType, d.StartTime, d.EndTime, d.PersonnelID, d.Notes, d.ID)
	if err != nil {
		return writeErr(err)
	}
	return expectRow(res)
}

func (r *DutyRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM duty_schedules WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return expectRow(res)
}
