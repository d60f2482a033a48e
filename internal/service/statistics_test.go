package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/firestation-attendance/internal/model"
	"github.com/iliyamo/firestation-attendance/internal/repository"
)

type fakeStats struct {
	personnel map[uint64]model.Personnel
	records   []model.AttendanceRecord
	sessions  []model.SessionCount

	lastFrom, lastTo time.Time
}

func (f *fakeStats) GetPersonnel(ctx context.Context, id uint64) (model.Personnel, error) {
	p, ok := f.personnel[id]
	if !ok {
		return model.Personnel{}, repository.ErrNotFound
	}
	return p, nil
}

func (f *fakeStats) AttendanceRecords(ctx context.Context, personnelID uint64, from, to time.Time) ([]model.AttendanceRecord, error) {
	f.lastFrom, f.lastTo = from, to
	var out []model.AttendanceRecord
	for _, r := range f.records {
		if personnelID != 0 && r.PersonnelID != personnelID {
			continue
		}
		if r.SessionStartedAt.Before(from) || r.SessionStartedAt.After(to) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (f *fakeStats) SessionCounts(ctx context.Context, from, to time.Time) ([]model.SessionCount, error) {
	var out []model.SessionCount
	for _, s := range f.sessions {
		if !s.StartedAt.Before(from) && !s.StartedAt.After(to) {
			out = append(out, s)
		}
	}
	return out, nil
}

func at(month time.Month, day, hour, min int) time.Time {
	return time.Date(2025, month, day, hour, min, 0, 0, time.UTC)
}

func ptr(t time.Time) *time.Time { return &t }

func statsFixture() *fakeStats {
	f := &fakeStats{
		personnel: map[uint64]model.Personnel{
			1: {ID: 1, Stammrollennummer: "1001", Vorname: "Anna", Nachname: "Berg", Dienstgrad: "HFM", IsActive: true},
			2: {ID: 2, Stammrollennummer: "1002", Vorname: "Ben", Nachname: "Kurz", Dienstgrad: "BM", IsActive: true},
		},
		sessions: []model.SessionCount{
			{SessionID: 10, EventType: model.EventEinsatz, StartedAt: at(1, 5, 20, 0), Attendances: 2},
			{SessionID: 11, EventType: model.EventUebungsdienst, StartedAt: at(1, 12, 19, 0), Attendances: 1},
			{SessionID: 12, EventType: model.EventUebungsdienst, StartedAt: at(3, 2, 19, 0), Attendances: 1},
			{SessionID: 13, EventType: model.EventArbeitsdienstA, StartedAt: at(3, 9, 9, 0), Attendances: 0},
		},
	}
	rec := func(pid, sid uint64, et string, start time.Time, in time.Time, out, ended *time.Time) model.AttendanceRecord {
		p := f.personnel[pid]
		return model.AttendanceRecord{
			SessionID: sid, EventType: et, SessionStartedAt: start, SessionEndedAt: ended,
			CheckedInAt: in, CheckedOutAt: out,
			PersonnelID: pid, Stammrollennummer: p.Stammrollennummer, Vorname: p.Vorname, Nachname: p.Nachname, Dienstgrad: p.Dienstgrad,
		}
	}
	f.records = []model.AttendanceRecord{
		// 1.5h by checkout
		rec(1, 10, model.EventEinsatz, at(1, 5, 20, 0), at(1, 5, 20, 0), ptr(at(1, 5, 21, 30)), ptr(at(1, 5, 22, 0))),
		// 2h via session end
		rec(2, 10, model.EventEinsatz, at(1, 5, 20, 0), at(1, 5, 20, 0), nil, ptr(at(1, 5, 22, 0))),
		// 1h20m by checkout
		rec(1, 11, model.EventUebungsdienst, at(1, 12, 19, 0), at(1, 12, 19, 10), ptr(at(1, 12, 20, 30)), nil),
		// still open: zero hours
		rec(1, 12, model.EventUebungsdienst, at(3, 2, 19, 0), at(3, 2, 19, 0), nil, nil),
	}
	return f
}

func TestPersonnelYearly(t *testing.T) {
	src := statsFixture()
	svc := NewStatisticsService(src, func() time.Time { return at(6, 1, 12, 0) })

	got, err := svc.PersonnelYearly(context.Background(), 1, 0)
	require.NoError(t, err)

	assert.Equal(t, 2025, got.Year)
	assert.Equal(t, "1001", got.Personnel.Stammrollennummer)
	assert.Equal(t, 3, got.Summary.TotalSessions)
	assert.Equal(t, 2.83, got.Summary.TotalHours)
	assert.Equal(t, 75.0, got.Summary.AttendanceRate)
	assert.Equal(t, map[string]int{model.EventEinsatz: 1, model.EventUebungsdienst: 2}, got.Summary.EventTypes)

	require.Len(t, got.Monthly, 12)
	assert.Equal(t, "January", got.Monthly[0].MonthName)
	assert.Equal(t, 2, got.Monthly[0].Count)
	assert.Equal(t, 2.83, got.Monthly[0].Hours)
	assert.Equal(t, 1, got.Monthly[2].Count)
	assert.Equal(t, 0.0, got.Monthly[2].Hours)
}

func TestPersonnelYearly_EmptyYear(t *testing.T) {
	svc := NewStatisticsService(statsFixture(), nil)

	got, err := svc.PersonnelYearly(context.Background(), 2, 2019)
	require.NoError(t, err)
	assert.Zero(t, got.Summary.TotalSessions)
	assert.Zero(t, got.Summary.AttendanceRate)
	assert.Len(t, got.Monthly, 12)
}

func TestPersonnelYearly_NotFound(t *testing.T) {
	svc := NewStatisticsService(statsFixture(), nil)

	_, err := svc.PersonnelYearly(context.Background(), 99, 2025)
	assert.ErrorIs(t, err, ErrPersonnelNotFound)
}

func TestUnitYearly(t *testing.T) {
	svc := NewStatisticsService(statsFixture(), nil)

	got, err := svc.UnitYearly(context.Background(), 2025)
	require.NoError(t, err)

	assert.Equal(t, 4, got.Summary.TotalSessions)
	assert.Equal(t, 4, got.Summary.TotalAttendances)
	assert.Equal(t, 1.0, got.Summary.AverageAttendancePerSession)
	assert.Equal(t, 2, got.Summary.EventTypes[model.EventUebungsdienst])

	require.Len(t, got.TopPersonnel, 2)
	assert.Equal(t, uint64(1), got.TopPersonnel[0].ID)
	assert.Equal(t, "Anna Berg", got.TopPersonnel[0].Name)
	assert.Equal(t, 3, got.TopPersonnel[0].AttendanceCount)
	assert.Equal(t, 75.0, got.TopPersonnel[0].AttendanceRate)
	assert.Equal(t, 25.0, got.TopPersonnel[1].AttendanceRate)

	assert.Equal(t, []RankCount{{"HFM", 3}, {"BM", 1}}, got.ByRank)

	assert.Equal(t, 2, got.Monthly[0].TotalSessions)
	assert.Equal(t, map[string]int{model.EventUebungsdienst: 1, model.EventArbeitsdienstA: 1}, got.Monthly[2].SessionsByType)
	assert.Empty(t, got.Monthly[11].SessionsByType)
}

func TestSummarizeUnit_TopTen(t *testing.T) {
	var records []model.AttendanceRecord
	for pid := uint64(1); pid <= 12; pid++ {
		for i := uint64(0); i < pid; i++ {
			records = append(records, model.AttendanceRecord{PersonnelID: pid, Dienstgrad: "FM", SessionStartedAt: at(2, 1, 0, 0)})
		}
	}
	got := SummarizeUnit(nil, records)

	require.Len(t, got.TopPersonnel, 10)
	assert.Equal(t, uint64(12), got.TopPersonnel[0].ID)
	assert.Equal(t, uint64(3), got.TopPersonnel[9].ID)
	assert.Zero(t, got.TopPersonnel[0].AttendanceRate)
	assert.Zero(t, got.Summary.AverageAttendancePerSession)
}

func TestHistory(t *testing.T) {
	src := statsFixture()
	svc := NewStatisticsService(src, func() time.Time { return at(6, 1, 12, 0) })

	start := at(1, 1, 0, 0)
	end := at(1, 31, 0, 0)
	got, err := svc.History(context.Background(), 1, &start, &end)
	require.NoError(t, err)

	assert.Equal(t, Period{Start: "2025-01-01", End: "2025-01-31"}, got.Period)
	assert.Equal(t, at(1, 31, 23, 59).Add(59*time.Second), src.lastTo)
	assert.Equal(t, "Anna Berg", got.Personnel.Name)
	require.Equal(t, 2, got.TotalAttendances)

	assert.Equal(t, uint64(11), got.History[0].SessionID, "newest first")
	assert.Equal(t, "2025-01-12", got.History[0].Date)
	assert.Equal(t, "19:00", got.History[0].Time)
	require.NotNil(t, got.History[0].DurationMinutes)
	assert.Equal(t, 80, *got.History[0].DurationMinutes)
	assert.Equal(t, 90, *got.History[1].DurationMinutes)
}

func TestHistory_Defaults(t *testing.T) {
	src := statsFixture()
	now := at(6, 1, 12, 0)
	svc := NewStatisticsService(src, func() time.Time { return now })

	got, err := svc.History(context.Background(), 1, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, now.AddDate(0, 0, -365), src.lastFrom)
	assert.Equal(t, now, src.lastTo)
	require.Equal(t, 3, got.TotalAttendances)
	assert.Nil(t, got.History[0].DurationMinutes, "open attendance has no duration")
}

func TestHistory_InvalidPeriod(t *testing.T) {
	svc := NewStatisticsService(statsFixture(), nil)
	start := at(5, 1, 0, 0)
	end := at(4, 1, 0, 0)

	_, err := svc.History(context.Background(), 1, &start, &end)
	e, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, KindValidation, e.Kind)
}
