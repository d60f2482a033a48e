package model

import "time"

// Event types a session can be opened for.
const (
	EventEinsatz        = "Einsatz"
	EventUebungsdienst  = "Übungsdienst"
	EventArbeitsdienstA = "Arbeitsdienst-A"
	EventArbeitsdienstB = "Arbeitsdienst-B"
	EventArbeitsdienstC = "Arbeitsdienst-C"
)

// EventTypes lists every recognised event type in display order.
var EventTypes = []string{
	EventEinsatz,
	EventUebungsdienst,
	EventArbeitsdienstA,
	EventArbeitsdienstB,
	EventArbeitsdienstC,
}

// ValidEventType reports whether t is one of EventTypes.
func ValidEventType(t string) bool {
	for _, et := range EventTypes {
		if et == t {
			return true
		}
	}
	return false
}

// Session is one dated event (response call, drill or work duty) that
// personnel check into.  A session is Open while EndedAt is nil and becomes
// Closed exactly once; it is never reopened.
//
// Fields:
//  ID        – sessions.id
//  EventType – one of EventTypes.
//  StartedAt – set on creation, never changed.
//  EndedAt   – set once when the session is closed.
//  IsActive  – mirrors EndedAt == nil.
//  CreatedBy – users.id of the creator, nil for kiosk-created sessions.
type Session struct {
	ID        uint64     `json:"id"`         // sessions.id
	EventType string     `json:"event_type"` // sessions.event_type
	StartedAt time.Time  `json:"started_at"` // sessions.started_at
	EndedAt   *time.Time `json:"ended_at"`   // sessions.ended_at (nullable)
	IsActive  bool       `json:"is_active"`  // sessions.is_active
	CreatedBy *uint64    `json:"created_by"` // sessions.created_by (nullable)
}

// Open reports whether the session still accepts check-ins.
func (s Session) Open() bool { return s.IsActive && s.EndedAt == nil }

// SessionSummary is a list row with attendee counters.
type SessionSummary struct {
	Session
	TotalAttendees  int `json:"total_attendees"`
	ActiveAttendees int `json:"active_attendees"`
}
