package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/firestation-attendance/internal/model"
)

// SessionRepo reads and writes the sessions table.  State changes go through
// the ...Tx methods so they share the caller's transaction and row locks.
type SessionRepo struct {
	db *sql.DB
}

func NewSessionRepo(db *sql.DB) *SessionRepo { return &SessionRepo{db: db} }

const sessionColumns = `id, event_type, started_at, ended_at, is_active, created_by`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (model.Session, error) {
	var (
		s         model.Session
		endedAt   sql.NullTime
		createdBy sql.NullInt64
	)
	if err := row.Scan(&s.ID, &s.EventType, &s.StartedAt, &endedAt, &s.IsActive, &createdBy); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Session{}, ErrNotFound
		}
		return model.Session{}, err
	}
	if endedAt.Valid {
		t := endedAt.Time
		s.EndedAt = &t
	}
	if createdBy.Valid {
		id := uint64(createdBy.Int64)
		s.CreatedBy = &id
	}
	return s, nil
}

// CreateTx inserts s and fills in its ID.
func (r *SessionRepo) CreateTx(ctx context.Context, tx *sql.Tx, s *model.Session) error {
	const q = `INSERT INTO sessions (event_type, started_at, is_active, created_by) VALUES (?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, q, s.EventType, s.StartedAt, s.IsActive, s.CreatedBy)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	s.ID = uint64(id)
	return nil
}

// GetByIDForUpdateTx loads a session and locks its row until tx ends.
func (r *SessionRepo) GetByIDForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (model.Session, error) {
	return scanSession(tx.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE id = ? FOR UPDATE`, id))
}

// CloseTx sets ended_at and clears is_active in one statement so the two
// columns never disagree.
func (r *SessionRepo) CloseTx(ctx context.Context, tx *sql.Tx, id uint64, endedAt time.Time) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE sessions SET ended_at = ?, is_active = FALSE WHERE id = ? AND ended_at IS NULL`,
		endedAt, id)
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

// GetByID loads a session without locking.
func (r *SessionRepo) GetByID(ctx context.Context, id uint64) (model.Session, error) {
	return scanSession(r.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id))
}

// AutoEndCandidates returns ids of open non-Einsatz sessions started at or
// before cutoff, oldest first.
func (r *SessionRepo) AutoEndCandidates(ctx context.Context, cutoff time.Time) ([]uint64, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id FROM sessions
		 WHERE is_active = TRUE AND event_type <> ? AND started_at <= ?
		 ORDER BY started_at, id`,
		model.EventEinsatz, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []uint64
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// List returns sessions newest first together with their attendee counters
// and the total number of matching sessions for paging.
func (r *SessionRepo) List(ctx context.Context, activeOnly bool, skip, limit int) ([]model.SessionSummary, int, error) {
	where := ""
	if activeOnly {
		where = "WHERE s.is_active = TRUE"
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions s `+where).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT s.id, s.event_type, s.started_at, s.ended_at, s.is_active, s.created_by,
		        COUNT(a.id), COALESCE(SUM(a.checked_out_at IS NULL), 0)
		 FROM sessions s
		 LEFT JOIN attendances a ON a.session_id = s.id
		 `+where+`
		 GROUP BY s.id
		 ORDER BY s.started_at DESC, s.id DESC
		 LIMIT ? OFFSET ?`,
		limit, skip)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := []model.SessionSummary{}
	for rows.Next() {
		var (
			sum       model.SessionSummary
			endedAt   sql.NullTime
			createdBy sql.NullInt64
		)
		if err := rows.Scan(&sum.ID, &sum.EventType, &sum.StartedAt, &endedAt, &sum.IsActive, &createdBy,
			&sum.TotalAttendees, &sum.ActiveAttendees); err != nil {
			return nil, 0, err
		}
		if endedAt.Valid {
			t := endedAt.Time
			sum.EndedAt = &t
		}
		if createdBy.Valid {
			id := uint64(createdBy.Int64)
			sum.CreatedBy = &id
		}
		out = append(out, sum)
	}
	return out, total, rows.Err()
}

// ListActive returns every open session, newest first.
func (r *SessionRepo) ListActive(ctx context.Context) ([]model.Session, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE is_active = TRUE ORDER BY started_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Session{}
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
