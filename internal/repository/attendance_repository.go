package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/firestation-attendance/internal/model"
)

// AttendanceRepo reads and writes the attendances table.  The table carries
// a generated open_flag column (1 while checked_out_at is NULL, else NULL)
// with UNIQUE(session_id, personnel_id, open_flag), so a second open row
// for the same person and session fails with ErrDuplicate.
type AttendanceRepo struct {
	db *sql.DB
}

func NewAttendanceRepo(db *sql.DB) *AttendanceRepo { return &AttendanceRepo{db: db} }

// GetOpenForUpdateTx returns the person's open attendance in a session and
// locks it.
func (r *AttendanceRepo) GetOpenForUpdateTx(ctx context.Context, tx *sql.Tx, sessionID, personnelID uint64) (model.Attendance, error) {
	var (
		a   model.Attendance
		out sql.NullTime
	)
	err := tx.QueryRowContext(ctx,
		`SELECT id, session_id, personnel_id, checked_in_at, checked_out_at
		 FROM attendances
		 WHERE session_id = ? AND personnel_id = ? AND checked_out_at IS NULL
		 LIMIT 1 FOR UPDATE`,
		sessionID, personnelID).Scan(&a.ID, &a.SessionID, &a.PersonnelID, &a.CheckedInAt, &out)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Attendance{}, ErrNotFound
		}
		return model.Attendance{}, err
	}
	if out.Valid {
		t := out.Time
		a.CheckedOutAt = &t
	}
	return a, nil
}

// CreateTx inserts an open attendance and fills in its ID.
func (r *AttendanceRepo) CreateTx(ctx context.Context, tx *sql.Tx, a *model.Attendance) error {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO attendances (session_id, personnel_id, checked_in_at) VALUES (?, ?, ?)`,
		a.SessionID, a.PersonnelID, a.CheckedInAt)
	if err != nil {
		if isDuplicate(err) {
			return ErrDuplicate
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	a.ID = uint64(id)
	return nil
}

// SetCheckedOutTx closes one attendance.  Already closed rows are left as is.
func (r *AttendanceRepo) SetCheckedOutTx(ctx context.Context, tx *sql.Tx, id uint64, at time.Time) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE attendances SET checked_out_at = ? WHERE id = ? AND checked_out_at IS NULL`, at, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// CheckOutOpenTx closes every open attendance of a session at the given
// time and returns how many rows it touched.
func (r *AttendanceRepo) CheckOutOpenTx(ctx context.Context, tx *sql.Tx, sessionID uint64, at time.Time) (int64, error) {
	res, err := tx.ExecContext(ctx,
		`UPDATE attendances SET checked_out_at = ? WHERE session_id = ? AND checked_out_at IS NULL`,
		at, sessionID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ListBySession returns the attendees of a session ordered by check-in time.
// With activeOnly only people still checked in are returned.
func (r *AttendanceRepo) ListBySession(ctx context.Context, sessionID uint64, activeOnly bool) ([]model.Attendee, error) {
	q := `SELECT a.id, p.id, p.stammrollennummer, p.vorname, p.nachname, p.dienstgrad,
	             a.checked_in_at, a.checked_out_at
	      FROM attendances a
	      JOIN personnel p ON p.id = a.personnel_id
	      WHERE a.session_id = ?`
	if activeOnly {
		q += ` AND a.checked_out_at IS NULL`
	}
	q += ` ORDER BY a.checked_in_at, a.id`

	rows, err := r.db.QueryContext(ctx, q, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Attendee{}
	for rows.Next() {
		var (
			at   model.Attendee
			cout sql.NullTime
		)
		if err := rows.Scan(&at.AttendanceID, &at.PersonnelID, &at.Stammrollennummer, &at.Vorname, &at.Nachname,
			&at.Dienstgrad, &at.CheckedInAt, &cout); err != nil {
			return nil, err
		}
		if cout.Valid {
			t := cout.Time
			at.CheckedOutAt = &t
		}
		at.DienstgradName = model.RankName(at.Dienstgrad)
		out = append(out, at)
	}
	return out, rows.Err()
}
