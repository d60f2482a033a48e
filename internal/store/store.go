// Package store binds the MySQL repositories to the transactional Store the
// attendance service runs against.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/iliyamo/firestation-attendance/internal/model"
	"github.com/iliyamo/firestation-attendance/internal/repository"
	"github.com/iliyamo/firestation-attendance/internal/service"
)

// SQL implements service.Store on a *sql.DB.
type SQL struct {
	db          *sql.DB
	sessions    *repository.SessionRepo
	attendances *repository.AttendanceRepo
	personnel   *repository.PersonnelRepo
}

var _ service.Store = (*SQL)(nil)

func New(db *sql.DB) *SQL {
	return &SQL{
		db:          db,
		sessions:    repository.NewSessionRepo(db),
		attendances: repository.NewAttendanceRepo(db),
		personnel:   repository.NewPersonnelRepo(db),
	}
}

// WithTx runs fn in a READ COMMITTED transaction, committing when fn returns
// nil and rolling back otherwise.  Row locks taken by the ForUpdate lookups
// serialise concurrent transitions on the same session.
func (s *SQL) WithTx(ctx context.Context, fn func(tx service.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := fn(&sqlTx{s: s, tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	committed = true
	return nil
}

func (s *SQL) GetSession(ctx context.Context, id uint64) (model.Session, error) {
	return s.sessions.GetByID(ctx, id)
}

func (s *SQL) AutoEndCandidates(ctx context.Context, cutoff time.Time) ([]uint64, error) {
	return s.sessions.AutoEndCandidates(ctx, cutoff)
}

type sqlTx struct {
	s  *SQL
	tx *sql.Tx
}

func (t *sqlTx) InsertSession(ctx context.Context, sess *model.Session) error {
	return t.s.sessions.CreateTx(ctx, t.tx, sess)
}

func (t *sqlTx) GetSessionForUpdate(ctx context.Context, id uint64) (model.Session, error) {
	return t.s.sessions.GetByIDForUpdateTx(ctx, t.tx, id)
}

func (t *sqlTx) CloseSession(ctx context.Context, id uint64, endedAt time.Time) error {
	return t.s.sessions.CloseTx(ctx, t.tx, id, endedAt)
}

func (t *sqlTx) CheckOutOpenAttendances(ctx context.Context, sessionID uint64, at time.Time) (int64, error) {
	return t.s.attendances.CheckOutOpenTx(ctx, t.tx, sessionID, at)
}

func (t *sqlTx) GetPersonnelByRoll(ctx context.Context, roll string, activeOnly bool) (model.Personnel, error) {
	return t.s.personnel.GetByRollTx(ctx, t.tx, roll, activeOnly)
}

func (t *sqlTx) GetOpenAttendanceForUpdate(ctx context.Context, sessionID, personnelID uint64) (model.Attendance, error) {
	return t.s.attendances.GetOpenForUpdateTx(ctx, t.tx, sessionID, personnelID)
}

func (t *sqlTx) InsertAttendance(ctx context.Context, a *model.Attendance) error {
	return t.s.attendances.CreateTx(ctx, t.tx, a)
}

func (t *sqlTx) SetCheckedOut(ctx context.Context, attendanceID uint64, at time.Time) error {
	return t.s.attendances.SetCheckedOutTx(ctx, t.tx, attendanceID, at)
}
