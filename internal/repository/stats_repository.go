package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/firestation-attendance/internal/model"
)

// StatsRepo loads the joined rows the statistics are computed from.  It
// does no aggregation itself.
type StatsRepo struct {
	db        *sql.DB
	personnel *PersonnelRepo
}

func NewStatsRepo(db *sql.DB) *StatsRepo {
	return &StatsRepo{db: db, personnel: NewPersonnelRepo(db)}
}

func (r *StatsRepo) GetPersonnel(ctx context.Context, id uint64) (model.Personnel, error) {
	return r.personnel.GetByID(ctx, id)
}

// AttendanceRecords returns attendances of sessions started within
// [from, to].  personnelID 0 selects every member.
func (r *StatsRepo) AttendanceRecords(ctx context.Context, personnelID uint64, from, to time.Time) ([]model.AttendanceRecord, error) {
	q := `SELECT a.id, s.id, s.event_type, s.started_at, s.ended_at, a.checked_in_at, a.checked_out_at,
	             p.id, p.stammrollennummer, p.vorname, p.nachname, p.dienstgrad
	      FROM attendances a
	      JOIN sessions s ON s.id = a.session_id
	      JOIN personnel p ON p.id = a.personnel_id
	      WHERE s.started_at BETWEEN ? AND ?`
	args := []any{from, to}
	if personnelID != 0 {
		q += ` AND a.personnel_id = ?`
		args = append(args, personnelID)
	}
	q += ` ORDER BY s.started_at DESC, a.id DESC`

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.AttendanceRecord
	for rows.Next() {
		var (
			rec   model.AttendanceRecord
			ended sql.NullTime
			outAt sql.NullTime
		)
		if err := rows.Scan(&rec.AttendanceID, &rec.SessionID, &rec.EventType, &rec.SessionStartedAt, &ended,
			&rec.CheckedInAt, &outAt, &rec.PersonnelID, &rec.Stammrollennummer, &rec.Vorname, &rec.Nachname,
			&rec.Dienstgrad); err != nil {
			return nil, err
		}
		if ended.Valid {
			t := ended.Time
			rec.SessionEndedAt = &t
		}
		if outAt.Valid {
			t := outAt.Time
			rec.CheckedOutAt = &t
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// SessionCounts returns sessions started within [from, to] with their
// attendance row counts.
func (r *StatsRepo) SessionCounts(ctx context.Context, from, to time.Time) ([]model.SessionCount, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT s.id, s.event_type, s.started_at, COUNT(a.id)
		 FROM sessions s
		 LEFT JOIN attendances a ON a.session_id = s.id
		 WHERE s.started_at BETWEEN ? AND ?
		 GROUP BY s.id
		 ORDER BY s.started_at`,
		from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.SessionCount
	for rows.Next() {
		var sc model.SessionCount
		if err := rows.Scan(&sc.SessionID, &sc.EventType, &sc.StartedAt, &sc.Attendances); err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}
