package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/firestation-attendance/internal/model"
)

// CalendarRepo reads and writes calendar_events and event_participants.
type CalendarRepo struct {
	db *sql.DB
}

func NewCalendarRepo(db *sql.DB) *CalendarRepo { return &CalendarRepo{db: db} }

// CalendarFilter narrows List.  Zero fields do not filter.
type CalendarFilter struct {
	From      *time.Time // start_time >= From
	To        *time.Time // end_time < To
	EventType string
}

const calendarColumns = `e.id, e.title, e.description, e.event_type, e.start_time, e.end_time, e.location,
	e.all_day, e.recurrence, e.max_participants, e.registration_required, e.created_by, e.created_at,
	(SELECT COUNT(*) FROM event_participants p WHERE p.event_id = e.id)`

func scanEvent(row rowScanner) (model.CalendarEvent, error) {
	var (
		e           model.CalendarEvent
		description sql.NullString
		location    sql.NullString
		maxP        sql.NullInt64
		createdBy   sql.NullInt64
	)
	if err := row.Scan(&e.ID, &e.Title, &description, &e.EventType, &e.StartTime, &e.EndTime, &location,
		&e.AllDay, &e.Recurrence, &maxP, &e.RegistrationRequired, &createdBy, &e.CreatedAt,
		&e.ParticipantsCount); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.CalendarEvent{}, ErrNotFound
		}
		return model.CalendarEvent{}, err
	}
	e.Description = nullString(description)
	e.Location = nullString(location)
	e.CreatedBy = nullID(createdBy)
	if maxP.Valid {
		n := int(maxP.Int64)
		e.MaxParticipants = &n
	}
	return e, nil
}

// List returns events ordered by start time.
func (r *CalendarRepo) List(ctx context.Context, f CalendarFilter) ([]model.CalendarEvent, error) {
	q := `SELECT ` + calendarColumns + ` FROM calendar_events e WHERE 1 = 1`
	args := []any{}
	if f.From != nil {
		q += ` AND e.start_time >= ?`
		args = append(args, *f.From)
	}
	if f.To != nil {
		q += ` AND e.end_time < ?`
		args = append(args, *f.To)
	}
	if f.EventType != "" {
		q += ` AND e.event_type = ?`
		args = append(args, f.EventType)
	}
	rows, err := r.db.QueryContext(ctx, q+` ORDER BY e.start_time, e.id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.CalendarEvent{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *CalendarRepo) GetByID(ctx context.Context, id uint64) (model.CalendarEvent, error) {
	return scanEvent(r.db.QueryRowContext(ctx,
		`SELECT `+calendarColumns+` FROM calendar_events e WHERE e.id = ?`, id))
}

// Participants lists the registrations of an event in registration order.
func (r *CalendarRepo) Participants(ctx context.Context, eventID uint64) ([]model.EventParticipant, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT ep.id, p.id, p.vorname, p.nachname, ep.status, ep.registered_at, ep.notes
		 FROM event_participants ep
		 JOIN personnel p ON p.id = ep.personnel_id
		 WHERE ep.event_id = ?
		 ORDER BY ep.registered_at, ep.id`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.EventParticipant{}
	for rows.Next() {
		var (
			p     model.EventParticipant
			notes sql.NullString
		)
		if err := rows.Scan(&p.ID, &p.PersonnelID, &p.Vorname, &p.Nachname, &p.Status, &p.RegisteredAt, &notes); err != nil {
			return nil, err
		}
		p.Notes = nullString(notes)
		out = append(out, p)
	}
	return out, rows.Err()
}

// Create inserts e and reloads it.
func (r *CalendarRepo) Create(ctx context.Context, e *model.CalendarEvent) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO calendar_events (title, description, event_type, start_time, end_time, location,
		   all_day, recurrence, max_participants, registration_required, created_by)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Title, e.Description, e.EventType, e.StartTime, e.EndTime, e.Location,
		e.AllDay, e.Recurrence, e.MaxParticipants, e.RegistrationRequired, e.CreatedBy)
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
	*e = created
	return nil
}

func (r *CalendarRepo) Update(ctx context.Context, e model.CalendarEvent) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE calendar_events SET title = ?, description = ?, event_type = ?, start_time = ?, end_time = ?,
		   location = ?, all_day = ?, recurrence = ?, max_participants = ?, registration_required = ?
		 WHERE id = ?`,
		e.Title, e.Description, e.EventType, e.StartTime, e.EndTime,
		e.Location, e.AllDay, e.Recurrence, e.MaxParticipants, e.RegistrationRequired, e.ID)
	if err != nil {
		return writeErr(err)
	}
	return expectRow(res)
}

// Delete removes an event; its registrations go with it (ON DELETE CASCADE).
func (r *CalendarRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM calendar_events WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return expectRow(res)
}

// Register adds a participant.  The event row is locked while the slot
// count is checked, so concurrent registrations cannot overfill it.
// Returns ErrNotFound for an unknown event, ErrDuplicate when already
// registered, ErrFull at capacity and ErrReference for an unknown member.
func (r *CalendarRepo) Register(ctx context.Context, eventID, personnelID uint64, notes *string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var maxP sql.NullInt64
	err = tx.QueryRowContext(ctx,
		`SELECT max_participants FROM calendar_events WHERE id = ? FOR UPDATE`, eventID).Scan(&maxP)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}

	var exists bool
	if err := tx.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM event_participants WHERE event_id = ? AND personnel_id = ?)`,
		eventID, personnelID).Scan(&exists); err != nil {
		return err
	}
	if exists {
		return ErrDuplicate
	}

	if maxP.Valid && maxP.Int64 > 0 {
		var n int64
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM event_participants WHERE event_id = ?`, eventID).Scan(&n); err != nil {
			return err
		}
		if n >= maxP.Int64 {
			return ErrFull
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO event_participants (event_id, personnel_id, notes) VALUES (?, ?, ?)`,
		eventID, personnelID, notes); err != nil {
		return writeErr(err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Unregister removes a registration; ErrNotFound when there was none.
func (r *CalendarRepo) Unregister(ctx context.Context, eventID, personnelID uint64) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM event_participants WHERE event_id = ? AND personnel_id = ?`, eventID, personnelID)
	if err != nil {
		return err
	}
	return expectRow(res)
}
