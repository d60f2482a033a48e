package model

import "time"

// Attendance records one person's presence within one session.
type Attendance struct {
	ID           uint64     `json:"id"`             // attendances.id
	SessionID    uint64     `json:"session_id"`     // attendances.session_id
	PersonnelID  uint64     `json:"personnel_id"`   // attendances.personnel_id
	CheckedInAt  time.Time  `json:"checked_in_at"`  // attendances.checked_in_at
	CheckedOutAt *time.Time `json:"checked_out_at"` // attendances.checked_out_at (nullable)
}

// Open reports whether the person is still checked in.
func (a Attendance) Open() bool { return a.CheckedOutAt == nil }

// Attendee joins an attendance row with the person it belongs to.  It is the
// shape returned by session detail and active attendee listings.
type Attendee struct {
	AttendanceID      uint64     `json:"attendance_id"`
	PersonnelID       uint64     `json:"personnel_id"`
	Stammrollennummer string     `json:"stammrollennummer"`
	Vorname           string     `json:"vorname"`
	Nachname          string     `json:"nachname"`
	Dienstgrad        string     `json:"dienstgrad"`
	DienstgradName    string     `json:"dienstgrad_name"`
	CheckedInAt       time.Time  `json:"checked_in_at"`
	CheckedOutAt      *time.Time `json:"checked_out_at,omitempty"`
}
