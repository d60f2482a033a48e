package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/firestation-attendance/internal/model"
	"github.com/iliyamo/firestation-attendance/internal/repository"
)

// memStore is an in-memory Store.  WithTx holds the store mutex for the
// whole callback, which gives the same serialisation the row locks give in
// MySQL, and restores a snapshot when the callback fails.
type memStore struct {
	mu          sync.Mutex
	sessions    map[uint64]model.Session
	attendances map[uint64]model.Attendance
	personnel   map[uint64]model.Personnel
	nextID      uint64

	// failClose makes CloseSession fail for the listed session ids.
	failClose map[uint64]bool
}

func newMemStore() *memStore {
	return &memStore{
		sessions:    map[uint64]model.Session{},
		attendances: map[uint64]model.Attendance{},
		personnel:   map[uint64]model.Personnel{},
		failClose:   map[uint64]bool{},
	}
}

func (m *memStore) id() uint64 {
	m.nextID++
	return m.nextID
}

func (m *memStore) addPersonnel(roll, rank string, active bool) model.Personnel {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := model.Personnel{ID: m.id(), Stammrollennummer: roll, Vorname: "Vor" + roll, Nachname: "Nach" + roll, Dienstgrad: rank, IsActive: active}
	m.personnel[p.ID] = p
	return p
}

func (m *memStore) addSession(eventType string, startedAt time.Time) model.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := model.Session{ID: m.id(), EventType: eventType, StartedAt: startedAt, IsActive: true}
	m.sessions[s.ID] = s
	return s
}

func (m *memStore) session(id uint64) model.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[id]
}

func (m *memStore) attendancesOf(sessionID uint64) []model.Attendance {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Attendance
	for _, a := range m.attendances {
		if a.SessionID == sessionID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *memStore) openCount(sessionID uint64) int {
	n := 0
	for _, a := range m.attendancesOf(sessionID) {
		if a.Open() {
			n++
		}
	}
	return n
}

func (m *memStore) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sessions := make(map[uint64]model.Session, len(m.sessions))
	for k, v := range m.sessions {
		sessions[k] = v
	}
	attendances := make(map[uint64]model.Attendance, len(m.attendances))
	for k, v := range m.attendances {
		attendances[k] = v
	}
	nextID := m.nextID

	if err := fn(memTx{m}); err != nil {
		m.sessions, m.attendances, m.nextID = sessions, attendances, nextID
		return err
	}
	return nil
}

func (m *memStore) GetSession(ctx context.Context, id uint64) (model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return model.Session{}, repository.ErrNotFound
	}
	return s, nil
}

func (m *memStore) AutoEndCandidates(ctx context.Context, cutoff time.Time) ([]uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []uint64
	for _, s := range m.sessions {
		if s.IsActive && s.EventType != model.EventEinsatz && !s.StartedAt.After(cutoff) {
			ids = append(ids, s.ID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// memTx operates on the store while WithTx holds its mutex.
type memTx struct{ m *memStore }

func (t memTx) InsertSession(ctx context.Context, s *model.Session) error {
	s.ID = t.m.id()
	t.m.sessions[s.ID] = *s
	return nil
}

func (t memTx) GetSessionForUpdate(ctx context.Context, id uint64) (model.Session, error) {
	s, ok := t.m.sessions[id]
	if !ok {
		return model.Session{}, repository.ErrNotFound
	}
	return s, nil
}

func (t memTx) CloseSession(ctx context.Context, id uint64, endedAt time.Time) error {
	if t.m.failClose[id] {
		return errors.New("connection reset")
	}
	s := t.m.sessions[id]
	s.IsActive = false
	s.EndedAt = &endedAt
	t.m.sessions[id] = s
	return nil
}

func (t memTx) CheckOutOpenAttendances(ctx context.Context, sessionID uint64, at time.Time) (int64, error) {
	var n int64
	for id, a := range t.m.attendances {
		if a.SessionID == sessionID && a.Open() {
			out := at
			a.CheckedOutAt = &out
			t.m.attendances[id] = a
			n++
		}
	}
	return n, nil
}

func (t memTx) GetPersonnelByRoll(ctx context.Context, roll string, activeOnly bool) (model.Personnel, error) {
	for _, p := range t.m.personnel {
		if p.Stammrollennummer == roll && (!activeOnly || p.IsActive) {
			return p, nil
		}
	}
	return model.Personnel{}, repository.ErrNotFound
}

func (t memTx) GetOpenAttendanceForUpdate(ctx context.Context, sessionID, personnelID uint64) (model.Attendance, error) {
	for _, a := range t.m.attendances {
		if a.SessionID == sessionID && a.PersonnelID == personnelID && a.Open() {
			return a, nil
		}
	}
	return model.Attendance{}, repository.ErrNotFound
}

func (t memTx) InsertAttendance(ctx context.Context, a *model.Attendance) error {
	if _, err := t.GetOpenAttendanceForUpdate(ctx, a.SessionID, a.PersonnelID); err == nil {
		return repository.ErrDuplicate
	}
	a.ID = t.m.id()
	t.m.attendances[a.ID] = *a
	return nil
}

func (t memTx) SetCheckedOut(ctx context.Context, attendanceID uint64, at time.Time) error {
	a, ok := t.m.attendances[attendanceID]
	if !ok {
		return repository.ErrNotFound
	}
	a.CheckedOutAt = &at
	t.m.attendances[attendanceID] = a
	return nil
}
