package model

import "time"

// Group is a squad personnel can be assigned to.
type Group struct {
	ID          uint64    `json:"id"`          // groups.id
	Name        string    `json:"name"`        // groups.name (unique)
	Description *string   `json:"description"` // groups.description (nullable)
	Color       *string   `json:"color"`       // groups.color (nullable)
	CreatedAt   time.Time `json:"created_at"`  // groups.created_at
}

// Priorities shared by announcements and news.  News additionally allows
// PriorityLow.
const (
	PriorityLow    = "low"
	PriorityNormal = "normal"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

// Announcement is shown on the kiosk between ValidFrom and ValidUntil.  A
// nil ValidUntil never expires.
type Announcement struct {
	ID           uint64     `json:"id"`
	Title        string     `json:"title"`
	Content      string     `json:"content"`
	Priority     string     `json:"priority"`
	ValidFrom    time.Time  `json:"valid_from"`
	ValidUntil   *time.Time `json:"valid_until"`
	TargetGroups []uint64   `json:"target_groups"`
	CreatedBy    *uint64    `json:"created_by"`
	CreatedAt    time.Time  `json:"created_at"`
}

// Current reports whether a is visible at now.
func (a Announcement) Current(now time.Time) bool {
	if a.ValidFrom.After(now) {
		return false
	}
	return a.ValidUntil == nil || !a.ValidUntil.Before(now)
}

// News is a station news item.  Inactive or expired items are hidden from
// the default listing.
type News struct {
	ID        uint64     `json:"id"`
	Title     string     `json:"title"`
	Content   string     `json:"content"`
	Priority  string     `json:"priority"`
	IsActive  bool       `json:"is_active"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt *time.Time `json:"expires_at"`
	CreatedBy string     `json:"created_by"` // username of the author
}

// CalendarEvent is a planned date, optionally with a participant limit.
type CalendarEvent struct {
	ID                   uint64    `json:"id"`
	Title                string    `json:"title"`
	Description          *string   `json:"description"`
	EventType            string    `json:"event_type"`
	StartTime            time.Time `json:"start_time"`
	EndTime              time.Time `json:"end_time"`
	Location             *string   `json:"location"`
	AllDay               bool      `json:"all_day"`
	Recurrence           string    `json:"recurrence"`
	MaxParticipants      *int      `json:"max_participants"`
	RegistrationRequired bool      `json:"registration_required"`
	ParticipantsCount    int       `json:"participants_count"`
	CreatedBy            *uint64   `json:"created_by"`
	CreatedAt            time.Time `json:"created_at"`
}

// Full reports whether no further participant may register.
func (e CalendarEvent) Full() bool {
	return e.MaxParticipants != nil && *e.MaxParticipants > 0 && e.ParticipantsCount >= *e.MaxParticipants
}

// EventParticipant is a registration of one member for a calendar event.
type EventParticipant struct {
	ID           uint64    `json:"id"`
	PersonnelID  uint64    `json:"personnel_id"`
	Vorname      string    `json:"vorname"`
	Nachname     string    `json:"nachname"`
	Status       string    `json:"status"`
	RegisteredAt time.Time `json:"registered_at"`
	Notes        *string   `json:"notes"`
}

// DutySchedule assigns a member to a duty slot.
type DutySchedule struct {
	ID          uint64    `json:"id"`
	Title       string    `json:"title"`
	DutyType    string    `json:"duty_type"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
	PersonnelID uint64    `json:"personnel_id"`
	Notes       *string   `json:"notes"`
	CreatedBy   *uint64   `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
}

// DutyEntry is a duty slot joined with the assigned member.
type DutyEntry struct {
	DutySchedule
	Personnel DutyPerson `json:"personnel"`
}

// DutyPerson is the member summary embedded in a DutyEntry.
type DutyPerson struct {
	ID         uint64 `json:"id"`
	Vorname    string `json:"vorname"`
	Nachname   string `json:"nachname"`
	Dienstgrad string `json:"dienstgrad"` // display name, see RankName
}
