package service

import (
	"context"
	"time"

	"github.com/iliyamo/firestation-attendance/internal/model"
)

// Store is the persistence the state machine runs against.  Every state
// change happens inside WithTx; fn's error rolls the transaction back.
type Store interface {
	WithTx(ctx context.Context, fn func(tx Tx) error) error
	GetSession(ctx context.Context, id uint64) (model.Session, error)
	// AutoEndCandidates lists open sessions, other than Einsatz, started at
	// or before cutoff.
	AutoEndCandidates(ctx context.Context, cutoff time.Time) ([]uint64, error)
}

// Tx is a unit of work.  The ForUpdate lookups lock the returned row until
// the transaction ends.  Lookups that find nothing return
// repository.ErrNotFound; an insert that would create a second open
// attendance for the same person and session returns
// repository.ErrDuplicate.
type Tx interface {
	InsertSession(ctx context.Context, s *model.Session) error
	GetSessionForUpdate(ctx context.Context, id uint64) (model.Session, error)
	CloseSession(ctx context.Context, id uint64, endedAt time.Time) error
	CheckOutOpenAttendances(ctx context.Context, sessionID uint64, at time.Time) (int64, error)

	GetPersonnelByRoll(ctx context.Context, roll string, activeOnly bool) (model.Personnel, error)

	GetOpenAttendanceForUpdate(ctx context.Context, sessionID, personnelID uint64) (model.Attendance, error)
	InsertAttendance(ctx context.Context, a *model.Attendance) error
	SetCheckedOut(ctx context.Context, attendanceID uint64, at time.Time) error
}
