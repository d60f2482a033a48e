package model

import "time"

// AttendanceRecord is one attendance row joined with its session and the
// member it belongs to. Statistics are computed from slices of these.
type AttendanceRecord struct {
	AttendanceID     uint64     `json:"attendance_id"`
	SessionID        uint64     `json:"session_id"`
	EventType        string     `json:"event_type"`
	SessionStartedAt time.Time  `json:"session_started_at"`
	SessionEndedAt   *time.Time `json:"session_ended_at,omitempty"`
	CheckedInAt      time.Time  `json:"checked_in_at"`
	CheckedOutAt     *time.Time `json:"checked_out_at,omitempty"`

	PersonnelID       uint64 `json:"personnel_id"`
	Stammrollennummer string `json:"stammrollennummer"`
	Vorname           string `json:"vorname"`
	Nachname          string `json:"nachname"`
	Dienstgrad        string `json:"dienstgrad"`
}

// Duration is the time the member spent at the session: until checkout,
// else until the session ended, else zero.
func (r AttendanceRecord) Duration() time.Duration {
	switch {
	case r.CheckedOutAt != nil:
		return r.CheckedOutAt.Sub(r.CheckedInAt)
	case r.SessionEndedAt != nil:
		return r.SessionEndedAt.Sub(r.CheckedInAt)
	}
	return 0
}

// Counted reports whether Duration has an end point.
func (r AttendanceRecord) Counted() bool {
	return r.CheckedOutAt != nil || r.SessionEndedAt != nil
}

// SessionCount is a session with the number of attendance rows recorded for it.
type SessionCount struct {
	SessionID   uint64    `json:"session_id"`
	EventType   string    `json:"event_type"`
	StartedAt   time.Time `json:"started_at"`
	Attendances int       `json:"attendances"`
}
