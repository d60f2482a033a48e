package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/iliyamo/firestation-attendance/internal/model"
	"github.com/iliyamo/firestation-attendance/internal/repository"
)

// StatsSource loads the rows statistics are computed from.  All ranges are
// on session.started_at and inclusive at both ends.
type StatsSource interface {
	GetPersonnel(ctx context.Context, id uint64) (model.Personnel, error)
	// AttendanceRecords returns records in [from, to]; personnelID 0 means all members.
	AttendanceRecords(ctx context.Context, personnelID uint64, from, to time.Time) ([]model.AttendanceRecord, error)
	SessionCounts(ctx context.Context, from, to time.Time) ([]model.SessionCount, error)
}

// StatisticsService aggregates attendance into yearly and historical views.
type StatisticsService struct {
	src StatsSource
	now func() time.Time
}

func NewStatisticsService(src StatsSource, now func() time.Time) *StatisticsService {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &StatisticsService{src: src, now: now}
}

type PersonnelRef struct {
	ID                uint64 `json:"id"`
	Stammrollennummer string `json:"stammrollennummer"`
	Vorname           string `json:"vorname,omitempty"`
	Nachname          string `json:"nachname,omitempty"`
	Name              string `json:"name,omitempty"`
	Dienstgrad        string `json:"dienstgrad"`
}

type PersonnelSummary struct {
	TotalSessions  int            `json:"total_sessions"`
	TotalHours     float64        `json:"total_hours"`
	AttendanceRate float64        `json:"attendance_rate"`
	EventTypes     map[string]int `json:"event_types"`
}

type MonthHours struct {
	Month     int     `json:"month"`
	MonthName string  `json:"month_name"`
	Count     int     `json:"count"`
	Hours     float64 `json:"hours"`
}

// PersonnelYearly is one member's attendance over a calendar year.
type PersonnelYearly struct {
	Personnel PersonnelRef     `json:"personnel"`
	Year      int              `json:"year"`
	Summary   PersonnelSummary `json:"summary"`
	Monthly   []MonthHours     `json:"monthly"`
}

type UnitSummary struct {
	TotalSessions               int            `json:"total_sessions"`
	TotalAttendances            int            `json:"total_attendances"`
	AverageAttendancePerSession float64        `json:"average_attendance_per_session"`
	EventTypes                  map[string]int `json:"event_types"`
}

type TopPersonnel struct {
	ID                uint64  `json:"id"`
	Stammrollennummer string  `json:"stammrollennummer"`
	Name              string  `json:"name"`
	Dienstgrad        string  `json:"dienstgrad"`
	AttendanceCount   int     `json:"attendance_count"`
	AttendanceRate    float64 `json:"attendance_rate"`
}

type RankCount struct {
	Dienstgrad      string `json:"dienstgrad"`
	AttendanceCount int    `json:"attendance_count"`
}

type MonthSessions struct {
	Month          int            `json:"month"`
	MonthName      string         `json:"month_name"`
	SessionsByType map[string]int `json:"sessions_by_type"`
	TotalSessions  int            `json:"total_sessions"`
}

// UnitYearly is the whole unit's activity over a calendar year.
type UnitYearly struct {
	Year         int             `json:"year"`
	Summary      UnitSummary     `json:"summary"`
	TopPersonnel []TopPersonnel  `json:"top_personnel"`
	ByRank       []RankCount     `json:"by_rank"`
	Monthly      []MonthSessions `json:"monthly"`
}

type HistoryEntry struct {
	SessionID       uint64     `json:"session_id"`
	EventType       string     `json:"event_type"`
	Date            string     `json:"date"`
	Time            string     `json:"time"`
	CheckedInAt     time.Time  `json:"checked_in_at"`
	CheckedOutAt    *time.Time `json:"checked_out_at"`
	DurationMinutes *int       `json:"duration_minutes"`
}

type Period struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// History lists one member's attendances in a period, newest first.
type History struct {
	Personnel        PersonnelRef   `json:"personnel"`
	Period           Period         `json:"period"`
	TotalAttendances int            `json:"total_attendances"`
	History          []HistoryEntry `json:"history"`
}

const topPersonnelLimit = 10

// YearRange returns the first and last instant of year.
func YearRange(year int) (time.Time, time.Time) {
	from := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(year, time.December, 31, 23, 59, 59, 0, time.UTC)
	return from, to
}

// PersonnelYearly reports on one member; year 0 means the current year.
func (s *StatisticsService) PersonnelYearly(ctx context.Context, personnelID uint64, year int) (PersonnelYearly, error) {
	p, err := s.personnel(ctx, personnelID)
	if err != nil {
		return PersonnelYearly{}, err
	}
	if year == 0 {
		year = s.now().Year()
	}
	from, to := YearRange(year)

	records, err := s.src.AttendanceRecords(ctx, personnelID, from, to)
	if err != nil {
		return PersonnelYearly{}, fmt.Errorf("load attendance records: %w", err)
	}
	sessions, err := s.src.SessionCounts(ctx, from, to)
	if err != nil {
		return PersonnelYearly{}, fmt.Errorf("load sessions: %w", err)
	}

	out := SummarizePersonnel(records, len(sessions))
	out.Personnel = PersonnelRef{
		ID:                p.ID,
		Stammrollennummer: p.Stammrollennummer,
		Vorname:           p.Vorname,
		Nachname:          p.Nachname,
		Dienstgrad:        p.Dienstgrad,
	}
	out.Year = year
	return out, nil
}

// SummarizePersonnel aggregates one member's records.  sessionsInYear is
// the denominator of the attendance rate.
func SummarizePersonnel(records []model.AttendanceRecord, sessionsInYear int) PersonnelYearly {
	var out PersonnelYearly
	out.Summary.EventTypes = map[string]int{}
	months := make([]MonthHours, 12)
	for i := range months {
		months[i] = MonthHours{Month: i + 1, MonthName: time.Month(i + 1).String()}
	}

	var total float64
	for _, r := range records {
		h := r.Duration().Hours()
		total += h
		out.Summary.EventTypes[r.EventType]++
		m := &months[r.SessionStartedAt.Month()-1]
		m.Count++
		m.Hours += h
	}
	for i := range months {
		months[i].Hours = round2(months[i].Hours)
	}

	out.Summary.TotalSessions = len(records)
	out.Summary.TotalHours = round2(total)
	out.Summary.AttendanceRate = percent(len(records), sessionsInYear)
	out.Monthly = months
	return out
}

// UnitYearly reports on the whole unit; year 0 means the current year.
func (s *StatisticsService) UnitYearly(ctx context.Context, year int) (UnitYearly, error) {
	if year == 0 {
		year = s.now().Year()
	}
	from, to := YearRange(year)
	sessions, err := s.src.SessionCounts(ctx, from, to)
	if err != nil {
		return UnitYearly{}, fmt.Errorf("load sessions: %w", err)
	}
	records, err := s.src.AttendanceRecords(ctx, 0, from, to)
	if err != nil {
		return UnitYearly{}, fmt.Errorf("load attendance records: %w", err)
	}
	out := SummarizeUnit(sessions, records)
	out.Year = year
	return out, nil
}

// SummarizeUnit aggregates the sessions and attendance records of a year.
func SummarizeUnit(sessions []model.SessionCount, records []model.AttendanceRecord) UnitYearly {
	var out UnitYearly
	out.Summary.EventTypes = map[string]int{}
	months := make([]MonthSessions, 12)
	for i := range months {
		months[i] = MonthSessions{Month: i + 1, MonthName: time.Month(i + 1).String(), SessionsByType: map[string]int{}}
	}

	for _, s := range sessions {
		out.Summary.EventTypes[s.EventType]++
		m := &months[s.StartedAt.Month()-1]
		m.SessionsByType[s.EventType]++
		m.TotalSessions++
		out.Summary.TotalAttendances += s.Attendances
	}
	out.Summary.TotalSessions = len(sessions)
	if len(sessions) > 0 {
		out.Summary.AverageAttendancePerSession = round2(float64(out.Summary.TotalAttendances) / float64(len(sessions)))
	}
	out.Monthly = months

	type tally struct {
		ref   model.AttendanceRecord
		count int
	}
	byPerson := map[uint64]*tally{}
	byRank := map[string]int{}
	for _, r := range records {
		t, ok := byPerson[r.PersonnelID]
		if !ok {
			t = &tally{ref: r}
			byPerson[r.PersonnelID] = t
		}
		t.count++
		byRank[r.Dienstgrad]++
	}

	top := make([]TopPersonnel, 0, len(byPerson))
	for id, t := range byPerson {
		top = append(top, TopPersonnel{
			ID:                id,
			Stammrollennummer: t.ref.Stammrollennummer,
			Name:              t.ref.Vorname + " " + t.ref.Nachname,
			Dienstgrad:        t.ref.Dienstgrad,
			AttendanceCount:   t.count,
			AttendanceRate:    percent(t.count, len(sessions)),
		})
	}
	// ties broken by id so the list is stable
	sort.Slice(top, func(i, j int) bool {
		if top[i].AttendanceCount != top[j].AttendanceCount {
			return top[i].AttendanceCount > top[j].AttendanceCount
		}
		return top[i].ID < top[j].ID
	})
	if len(top) > topPersonnelLimit {
		top = top[:topPersonnelLimit]
	}
	out.TopPersonnel = top

	ranks := make([]RankCount, 0, len(byRank))
	for code, n := range byRank {
		ranks = append(ranks, RankCount{Dienstgrad: code, AttendanceCount: n})
	}
	sort.Slice(ranks, func(i, j int) bool {
		_, li := model.RankInfo(ranks[i].Dienstgrad)
		_, lj := model.RankInfo(ranks[j].Dienstgrad)
		if li != lj {
			return li < lj
		}
		return ranks[i].Dienstgrad < ranks[j].Dienstgrad
	})
	out.ByRank = ranks
	return out
}

// History lists a member's attendances between start and end.  A nil start
// defaults to 365 days ago and a nil end to now; an explicit end covers the
// whole day.
func (s *StatisticsService) History(ctx context.Context, personnelID uint64, start, end *time.Time) (History, error) {
	p, err := s.personnel(ctx, personnelID)
	if err != nil {
		return History{}, err
	}
	now := s.now()
	from := now.AddDate(0, 0, -365)
	if start != nil {
		from = *start
	}
	to := now
	if end != nil {
		y, m, d := end.Date()
		to = time.Date(y, m, d, 23, 59, 59, 0, end.Location())
	}
	if to.Before(from) {
		return History{}, &Error{KindValidation, "invalid_period", "end date is before start date"}
	}

	records, err := s.src.AttendanceRecords(ctx, personnelID, from, to)
	if err != nil {
		return History{}, fmt.Errorf("load attendance records: %w", err)
	}

	out := History{
		Personnel: PersonnelRef{
			ID:                p.ID,
			Stammrollennummer: p.Stammrollennummer,
			Name:              p.FullName(),
			Dienstgrad:        p.Dienstgrad,
		},
		Period:  Period{Start: from.Format("2006-01-02"), End: to.Format("2006-01-02")},
		History: HistoryEntries(records),
	}
	out.TotalAttendances = len(out.History)
	return out, nil
}

// HistoryEntries converts records to history entries, newest session first.
func HistoryEntries(records []model.AttendanceRecord) []HistoryEntry {
	sorted := make([]model.AttendanceRecord, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].SessionStartedAt.After(sorted[j].SessionStartedAt)
	})

	out := make([]HistoryEntry, 0, len(sorted))
	for _, r := range sorted {
		e := HistoryEntry{
			SessionID:    r.SessionID,
			EventType:    r.EventType,
			Date:         r.SessionStartedAt.Format("2006-01-02"),
			Time:         r.SessionStartedAt.Format("15:04"),
			CheckedInAt:  r.CheckedInAt,
			CheckedOutAt: r.CheckedOutAt,
		}
		if r.Counted() {
			mins := int(r.Duration() / time.Minute)
			e.DurationMinutes = &mins
		}
		out = append(out, e)
	}
	return out
}

func (s *StatisticsService) personnel(ctx context.Context, id uint64) (model.Personnel, error) {
	p, err := s.src.GetPersonnel(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.Personnel{}, ErrPersonnelNotFound
		}
		return model.Personnel{}, fmt.Errorf("load personnel: %w", err)
	}
	return p, nil
}

func percent(n, of int) float64 {
	if of == 0 {
		return 0
	}
	return round2(float64(n) / float64(of) * 100)
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
