package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/firestation-attendance/internal/model"
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func q(s string) string { return regexp.QuoteMeta(s) }

func beginTx(t *testing.T, db *sql.DB, mock sqlmock.Sqlmock) *sql.Tx {
	t.Helper()
	mock.ExpectBegin()
	tx, err := db.Begin()
	require.NoError(t, err)
	return tx
}

func TestWriteErr(t *testing.T) {
	dup := &mysql.MySQLError{Number: 1062, Message: "Duplicate entry '1001' for key 'uq_personnel_roll'"}
	fk := &mysql.MySQLError{Number: 1452, Message: "Cannot add or update a child row"}
	other := &mysql.MySQLError{Number: 1213, Message: "Deadlock found"}

	assert.True(t, isDuplicate(dup))
	assert.True(t, isDuplicate(fmt.Errorf("insert: %w", dup)))
	assert.False(t, isDuplicate(fk))
	assert.False(t, isDuplicate(errors.New("Duplicate entry")))
	assert.True(t, isForeignKey(fk))

	assert.ErrorIs(t, writeErr(dup), ErrDuplicate)
	assert.ErrorIs(t, writeErr(fk), ErrReference)
	assert.Same(t, other, writeErr(other))
}

func TestSessionCloseTx(t *testing.T) {
	db, mock := newMock(t)
	repo := NewSessionRepo(db)
	at := time.Date(2025, 6, 14, 12, 0, 0, 0, time.UTC)
	tx := beginTx(t, db, mock)

	mock.ExpectExec(q("UPDATE sessions SET ended_at = ?, is_active = FALSE WHERE id = ? AND ended_at IS NULL")).
		WithArgs(sqlmock.AnyArg(), 7).
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.CloseTx(context.Background(), tx, 7, at), ErrNotFound, "already closed or missing")

	mock.ExpectExec(q("UPDATE sessions SET ended_at")).
		WithArgs(sqlmock.AnyArg(), 8).
		WillReturnResult(sqlmock.NewResult(0, 1))
	assert.NoError(t, repo.CloseTx(context.Background(), tx, 8, at))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceSetCheckedOutTx(t *testing.T) {
	db, mock := newMock(t)
	repo := NewAttendanceRepo(db)
	tx := beginTx(t, db, mock)

	mock.ExpectExec(q("UPDATE attendances SET checked_out_at = ? WHERE id = ? AND checked_out_at IS NULL")).
		WithArgs(sqlmock.AnyArg(), 3).
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.SetCheckedOutTx(context.Background(), tx, 3, time.Now()), ErrNotFound)

	mock.ExpectExec(q("UPDATE attendances SET checked_out_at")).
		WithArgs(sqlmock.AnyArg(), 4).
		WillReturnResult(sqlmock.NewResult(0, 1))
	assert.NoError(t, repo.SetCheckedOutTx(context.Background(), tx, 4, time.Now()))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceCreateTx_OpenRowTaken(t *testing.T) {
	db, mock := newMock(t)
	repo := NewAttendanceRepo(db)
	tx := beginTx(t, db, mock)

	mock.ExpectExec(q("INSERT INTO attendances")).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry for key 'uq_attendance_open'"})
	a := model.Attendance{SessionID: 1, PersonnelID: 2, CheckedInAt: time.Now()}
	assert.ErrorIs(t, repo.CreateTx(context.Background(), tx, &a), ErrDuplicate)

	mock.ExpectExec(q("INSERT INTO attendances")).WillReturnResult(sqlmock.NewResult(41, 1))
	require.NoError(t, repo.CreateTx(context.Background(), tx, &a))
	assert.Equal(t, uint64(41), a.ID)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPersonnelWrites(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPersonnelRepo(db)
	group := uint64(9)
	p := model.Personnel{Stammrollennummer: "1001", Vorname: "Ada", Nachname: "Lang", Dienstgrad: "FM", GroupID: &group, IsActive: true}

	mock.ExpectExec(q("INSERT INTO personnel")).
		WillReturnError(&mysql.MySQLError{Number: 1452, Message: "fk_personnel_group"})
	assert.ErrorIs(t, repo.Create(context.Background(), &p), ErrReference)

	mock.ExpectExec(q("INSERT INTO personnel")).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "uq_personnel_roll"})
	assert.ErrorIs(t, repo.Create(context.Background(), &p), ErrDuplicate)

	p.ID = 5
	mock.ExpectExec(q("UPDATE personnel SET")).WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.Update(context.Background(), p), ErrNotFound)

	mock.ExpectExec(q("UPDATE personnel SET is_active = FALSE WHERE id = ?")).
		WithArgs(5).
		WillReturnResult(sqlmock.NewResult(0, 1))
	assert.NoError(t, repo.Deactivate(context.Background(), 5))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPersonnelGetByID_NotFound(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPersonnelRepo(db)

	mock.ExpectQuery(q("FROM personnel WHERE id = ?")).
		WithArgs(12).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	_, err := repo.GetByID(context.Background(), 12)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCalendarRegister(t *testing.T) {
	lock := q("SELECT max_participants FROM calendar_events WHERE id = ? FOR UPDATE")
	exists := q("SELECT EXISTS(SELECT 1 FROM event_participants")
	count := q("SELECT COUNT(*) FROM event_participants WHERE event_id = ?")

	t.Run("unknown event", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectBegin()
		mock.ExpectQuery(lock).WithArgs(1).WillReturnRows(sqlmock.NewRows([]string{"max_participants"}))
		mock.ExpectRollback()

		assert.ErrorIs(t, NewCalendarRepo(db).Register(context.Background(), 1, 2, nil), ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("already registered", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectBegin()
		mock.ExpectQuery(lock).WithArgs(1).WillReturnRows(sqlmock.NewRows([]string{"max_participants"}).AddRow(nil))
		mock.ExpectQuery(exists).WithArgs(1, 2).WillReturnRows(sqlmock.NewRows([]string{"e"}).AddRow(true))
		mock.ExpectRollback()

		assert.ErrorIs(t, NewCalendarRepo(db).Register(context.Background(), 1, 2, nil), ErrDuplicate)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("full", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectBegin()
		mock.ExpectQuery(lock).WithArgs(1).WillReturnRows(sqlmock.NewRows([]string{"max_participants"}).AddRow(2))
		mock.ExpectQuery(exists).WithArgs(1, 2).WillReturnRows(sqlmock.NewRows([]string{"e"}).AddRow(false))
		mock.ExpectQuery(count).WithArgs(1).WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(2))
		mock.ExpectRollback()

		assert.ErrorIs(t, NewCalendarRepo(db).Register(context.Background(), 1, 2, nil), ErrFull)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("registered", func(t *testing.T) {
		db, mock := newMock(t)
		notes := "komme später"
		mock.ExpectBegin()
		mock.ExpectQuery(lock).WithArgs(1).WillReturnRows(sqlmock.NewRows([]string{"max_participants"}).AddRow(2))
		mock.ExpectQuery(exists).WithArgs(1, 2).WillReturnRows(sqlmock.NewRows([]string{"e"}).AddRow(false))
		mock.ExpectQuery(count).WithArgs(1).WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(1))
		mock.ExpectExec(q("INSERT INTO event_participants")).
			WithArgs(1, 2, notes).
			WillReturnResult(sqlmock.NewResult(10, 1))
		mock.ExpectCommit()

		assert.NoError(t, NewCalendarRepo(db).Register(context.Background(), 1, 2, &notes))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestAnnouncementTargetsRoundTrip(t *testing.T) {
	db, mock := newMock(t)
	repo := NewAnnouncementRepo(db)
	now := time.Date(2025, 6, 14, 9, 0, 0, 0, time.UTC)
	cols := []string{"id", "title", "content", "priority", "valid_from", "valid_until", "target_groups", "created_by", "created_at"}

	mock.ExpectQuery(q("FROM announcements WHERE id = ?")).
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows(cols).AddRow(1, "t", "c", "high", now, nil, []byte("[2,3]"), nil, now))
	a, err := repo.GetByID(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, []uint64{2, 3}, a.TargetGroups)
	assert.Nil(t, a.ValidUntil)
	assert.Nil(t, a.CreatedBy)

	v, err := targetsJSON(nil)
	require.NoError(t, err)
	assert.Nil(t, v)
	v, err = targetsJSON([]uint64{4})
	require.NoError(t, err)
	assert.Equal(t, "[4]", v)

	assert.NoError(t, mock.ExpectationsWereMet())
}
